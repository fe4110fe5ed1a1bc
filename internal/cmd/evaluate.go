package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/olorin-ai/verdict/internal/audit"
	"github.com/olorin-ai/verdict/internal/config"
	"github.com/olorin-ai/verdict/internal/engine"
	"github.com/olorin-ai/verdict/internal/limits"
	"github.com/olorin-ai/verdict/internal/state"
)

var (
	evaluateStateFile  string
	evaluateLimitsFile string
	evaluateModelScore float64
	evaluateExculp     float64
	evaluateDecision   string
	evaluateNoPersist  bool
	evaluateWriteState string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Run one consolidation tick over an investigation state file",
	Long: `Loads an investigation state document (JSON), runs one full decision
cycle (confidence consolidation, concern detection, override gating, risk
fusion, evidence gating, pre-publish validation), prints the outcome as
JSON on stdout, and records a signed audit entry.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		ctx, span := tracer.Start(ctx, "evaluate")
		defer span.End()

		if evaluateStateFile == "" {
			return fmt.Errorf("--state is required")
		}

		data, err := os.ReadFile(evaluateStateFile)
		if err != nil {
			return fmt.Errorf("reading state file: %w", err)
		}
		inv, err := state.Load(data)
		if err != nil {
			return fmt.Errorf("loading investigation state: %w", err)
		}

		doc, err := resolveLimits(cmd, evaluateLimitsFile)
		if err != nil {
			return err
		}

		eng := engine.NewEngine(doc)
		outcome := eng.Tick(ctx, inv, engine.TickInput{
			ModelScore:        evaluateModelScore,
			ExculpatoryWeight: evaluateExculp,
			ProposedDecision:  evaluateDecision,
		})

		if !evaluateNoPersist {
			if err := persistOutcome(cmd, inv, outcome, doc.VersionTag); err != nil {
				// Audit persistence failure must not block the decision output.
				log.Warn().Err(err).Msg("failed to persist audit record")
			}
		}

		if evaluateWriteState != "" {
			updated, err := json.MarshalIndent(inv, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling updated state: %w", err)
			}
			if err := os.WriteFile(evaluateWriteState, updated, 0o600); err != nil {
				return fmt.Errorf("writing updated state: %w", err)
			}
		}

		out, err := json.MarshalIndent(outcome, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling outcome: %w", err)
		}
		fmt.Println(string(out))

		if outcome.PublishedRisk != nil {
			log.Info().
				Float64("published_risk", *outcome.PublishedRisk).
				Str("status", outcome.Prepublish.Status).
				Bool("confirmed_fraud", outcome.ConfirmedFraud).
				Msg("risk verdict published")
		} else {
			log.Info().
				Str("status", outcome.Prepublish.Status).
				Msg("risk verdict withheld")
		}
		return nil
	},
}

// resolveLimits loads the limits document named on the command line, or
// the configured default, or falls back to stock defaults when nothing
// exists on disk.
func resolveLimits(cmd *cobra.Command, path string) (*limits.Document, error) {
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		path = cfg.LimitsFile
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Debug().Str("path", path).Msg("no limits file; using defaults")
		return limits.Defaults(), nil
	}
	return limits.Load(cmd.Context(), path)
}

func persistOutcome(cmd *cobra.Command, inv *state.Investigation, outcome engine.Outcome, limitsVersion string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	cfg.WarnIfDefaultKey()

	store, err := audit.NewStore(cfg.AuditDBPath(), cfg.SigningKey)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.Store(cmd.Context(), audit.NewRecord(inv, outcome, limitsVersion))
}

func init() {
	evaluateCmd.Flags().StringVar(&evaluateStateFile, "state", "", "investigation state JSON file (required)")
	evaluateCmd.Flags().StringVar(&evaluateLimitsFile, "limits", "", "limits YAML document (default: configured limits_file, else stock defaults)")
	evaluateCmd.Flags().Float64Var(&evaluateModelScore, "model-score", 0, "upstream fraud model score for this tick")
	evaluateCmd.Flags().Float64Var(&evaluateExculp, "exculpatory-weight", 0, "accumulated exculpatory evidence weight")
	evaluateCmd.Flags().StringVar(&evaluateDecision, "decision", "", "proposed primary decision (recorded on safety overrides)")
	evaluateCmd.Flags().BoolVar(&evaluateNoPersist, "no-persist", false, "skip writing the audit record")
	evaluateCmd.Flags().StringVar(&evaluateWriteState, "write-state", "", "write the mutated investigation state to this file")

	rootCmd.AddCommand(evaluateCmd)
}
