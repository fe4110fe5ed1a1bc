package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/olorin-ai/verdict/internal/limits"
)

var validateFile string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a limits document",
	Long:  "Validates a verdict limits YAML document against range and consistency checks",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		_, span := tracer.Start(ctx, "validate")
		defer span.End()

		if validateFile == "" {
			validateFile = "verdict.limits.yaml"
		}

		doc, err := limits.Load(ctx, validateFile)
		if err != nil {
			log.Error().
				Err(err).
				Str("file", validateFile).
				Msg("Limits validation failed")
			fmt.Fprintf(os.Stderr, "✗ Validation failed: %s\n", validateFile)
			return fmt.Errorf("validation failed: %w", err)
		}

		log.Info().
			Str("file", validateFile).
			Str("version_tag", doc.VersionTag).
			Msg("Limits document valid")
		fmt.Printf("✓ Valid: %s (%s)\n", validateFile, doc.VersionTag)
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validateFile, "file", "f", "", "limits document to validate (default: verdict.limits.yaml)")
	rootCmd.AddCommand(validateCmd)
}
