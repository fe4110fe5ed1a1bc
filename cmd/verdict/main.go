package main

import (
	"os"

	"github.com/olorin-ai/verdict/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
