package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/olorin-ai/verdict/internal/doctor"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run preflight checks (data dir, signing key, limits file, audit DB)",
	Long:  "Verifies the data directory is writable, the audit signing key is usable, the limits document parses and validates, the audit database opens, and host pressure sampling works.",
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	ctx, span := tracer.Start(ctx, "doctor")
	defer span.End()

	report := doctor.Run(ctx)
	out := cmd.OutOrStdout()

	for _, c := range report.Checks {
		mark := "✓"
		switch c.Status {
		case "warn":
			mark = "!"
		case "fail":
			mark = "✗"
		}
		fmt.Fprintf(out, "%s %s: %s\n", mark, c.Name, c.Message)
		if c.Fix != "" && c.Status != "pass" {
			fmt.Fprintf(out, "  fix: %s\n", c.Fix)
		}
	}
	fmt.Fprintf(out, "\n%d passed, %d warnings, %d failures\n",
		report.Summary.Pass, report.Summary.Warn, report.Summary.Fail)

	if report.Status == "fail" {
		return fmt.Errorf("doctor found %d failing check(s)", report.Summary.Fail)
	}
	return nil
}
