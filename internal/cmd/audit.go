package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/olorin-ai/verdict/internal/audit"
	"github.com/olorin-ai/verdict/internal/config"
)

var (
	auditInvestigation string
	auditStatus        string
	auditLimit         int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query the signed verdict audit trail",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List verdict audit records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		_, span := tracer.Start(ctx, "audit.list")
		defer span.End()

		store, err := openAuditStore()
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.List(ctx, auditInvestigation, auditStatus, time.Time{}, time.Time{}, auditLimit)
		if err != nil {
			return fmt.Errorf("listing audit records: %w", err)
		}

		out, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling audit records: %w", err)
		}
		fmt.Println(string(out))
		return nil
	},
}

var auditShowCmd = &cobra.Command{
	Use:   "show <record-id>",
	Short: "Show one verdict audit record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		_, span := tracer.Start(ctx, "audit.show")
		defer span.End()

		store, err := openAuditStore()
		if err != nil {
			return err
		}
		defer store.Close()

		rec, err := store.Get(ctx, args[0])
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling audit record: %w", err)
		}
		fmt.Println(string(out))
		return nil
	},
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify <record-id>",
	Short: "Verify the HMAC signature of a verdict audit record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		_, span := tracer.Start(ctx, "audit.verify")
		defer span.End()

		store, err := openAuditStore()
		if err != nil {
			return err
		}
		defer store.Close()

		ok, err := store.Verify(ctx, args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("signature verification FAILED for record %s", args[0])
		}
		fmt.Printf("✓ Signature valid: %s\n", args[0])
		return nil
	},
}

var (
	timelineBefore int
	timelineAfter  int
)

var auditTimelineCmd = &cobra.Command{
	Use:   "timeline <record-id>",
	Short: "Show surrounding verdicts for the same investigation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		_, span := tracer.Start(ctx, "audit.timeline")
		defer span.End()

		store, err := openAuditStore()
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.Timeline(ctx, args[0], timelineBefore, timelineAfter)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling timeline: %w", err)
		}
		fmt.Println(string(out))
		return nil
	},
}

func openAuditStore() (*audit.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, err
	}
	return audit.NewStore(cfg.AuditDBPath(), cfg.SigningKey)
}

func init() {
	auditListCmd.Flags().StringVar(&auditInvestigation, "investigation", "", "filter by investigation ID")
	auditListCmd.Flags().StringVar(&auditStatus, "status", "", "filter by publication status")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 50, "maximum records to return")

	auditTimelineCmd.Flags().IntVar(&timelineBefore, "before", 5, "records before the target")
	auditTimelineCmd.Flags().IntVar(&timelineAfter, "after", 5, "records after the target")

	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditTimelineCmd)
	auditCmd.AddCommand(auditShowCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	rootCmd.AddCommand(auditCmd)
}
