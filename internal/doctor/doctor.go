// Package doctor provides health checks for a verdict installation.
// Used by `verdict doctor` before wiring the engine into an orchestrator.
package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/olorin-ai/verdict/internal/audit"
	"github.com/olorin-ai/verdict/internal/config"
	"github.com/olorin-ai/verdict/internal/limits"
	"github.com/olorin-ai/verdict/internal/pressure"
)

// CheckResult is a single doctor check outcome.
type CheckResult struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Status   string `json:"status"` // pass, warn, fail
	Message  string `json:"message"`
	Fix      string `json:"fix,omitempty"`
}

// Summary tallies pass/warn/fail counts.
type Summary struct {
	Pass int `json:"pass"`
	Warn int `json:"warn"`
	Fail int `json:"fail"`
}

// Report is the complete doctor output.
type Report struct {
	Status  string        `json:"status"` // worst of all checks
	Checks  []CheckResult `json:"checks"`
	Summary Summary       `json:"summary"`
}

// Run executes all doctor checks and returns a report.
func Run(ctx context.Context) *Report {
	report := &Report{}

	report.Checks = append(report.Checks, checkConfig(ctx)...)
	report.Checks = append(report.Checks, checkHostPressure(ctx))

	for _, c := range report.Checks {
		switch c.Status {
		case "pass":
			report.Summary.Pass++
		case "warn":
			report.Summary.Warn++
		case "fail":
			report.Summary.Fail++
		}
	}

	report.Status = "pass"
	if report.Summary.Warn > 0 {
		report.Status = "warn"
	}
	if report.Summary.Fail > 0 {
		report.Status = "fail"
	}
	return report
}

func checkConfig(ctx context.Context) []CheckResult {
	cfg, err := config.Load()
	if err != nil {
		return []CheckResult{{
			Name: "config_load", Category: "config", Status: "fail",
			Message: fmt.Sprintf("Cannot load config: %v", err),
			Fix:     "Check VERDICT_DATA_DIR, VERDICT_SIGNING_KEY and verdict.config.yaml",
		}}
	}

	return []CheckResult{
		checkDataDir(cfg),
		checkSigningKey(cfg),
		checkLimitsFile(ctx, cfg),
		checkAuditDB(cfg),
	}
}

func checkDataDir(cfg *config.Config) CheckResult {
	if err := cfg.EnsureDataDir(); err != nil {
		return CheckResult{
			Name: "data_dir_writable", Category: "config", Status: "fail",
			Message: fmt.Sprintf("%s: %v", cfg.DataDir, err),
			Fix:     "Ensure directory exists and is writable",
		}
	}
	testFile := filepath.Join(cfg.DataDir, ".doctor-write-test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return CheckResult{
			Name: "data_dir_writable", Category: "config", Status: "fail",
			Message: fmt.Sprintf("%s not writable: %v", cfg.DataDir, err),
		}
	}
	_ = os.Remove(testFile)
	return CheckResult{
		Name: "data_dir_writable", Category: "config", Status: "pass",
		Message: fmt.Sprintf("%s (writable)", cfg.DataDir),
	}
}

func checkSigningKey(cfg *config.Config) CheckResult {
	if cfg.UsingDefaultSigningKey() {
		return CheckResult{
			Name: "signing_key", Category: "config", Status: "warn",
			Message: "Audit signing key is derived from the data dir path",
			Fix:     "Set VERDICT_SIGNING_KEY explicitly for production",
		}
	}
	return CheckResult{
		Name: "signing_key", Category: "config", Status: "pass",
		Message: "Audit signing key set explicitly",
	}
}

func checkLimitsFile(ctx context.Context, cfg *config.Config) CheckResult {
	if _, err := os.Stat(cfg.LimitsFile); os.IsNotExist(err) {
		return CheckResult{
			Name: "limits_file", Category: "limits", Status: "warn",
			Message: fmt.Sprintf("%s not found; stock limits will be used", cfg.LimitsFile),
			Fix:     "Create a limits document or set VERDICT_LIMITS_FILE",
		}
	}
	doc, err := limits.Load(ctx, cfg.LimitsFile)
	if err != nil {
		return CheckResult{
			Name: "limits_file", Category: "limits", Status: "fail",
			Message: fmt.Sprintf("%s: %v", cfg.LimitsFile, err),
			Fix:     "Fix the limits document; run `verdict validate` for details",
		}
	}
	return CheckResult{
		Name: "limits_file", Category: "limits", Status: "pass",
		Message: fmt.Sprintf("%s (%s)", cfg.LimitsFile, doc.VersionTag),
	}
}

func checkAuditDB(cfg *config.Config) CheckResult {
	store, err := audit.NewStore(cfg.AuditDBPath(), cfg.SigningKey)
	if err != nil {
		return CheckResult{
			Name: "audit_db", Category: "audit", Status: "fail",
			Message: fmt.Sprintf("%s: %v", cfg.AuditDBPath(), err),
			Fix:     "Check SQLite file permissions and the signing key",
		}
	}
	_ = store.Close()
	return CheckResult{
		Name: "audit_db", Category: "audit", Status: "pass",
		Message: fmt.Sprintf("%s (openable, schema ok)", cfg.AuditDBPath()),
	}
}

func checkHostPressure(ctx context.Context) CheckResult {
	p, err := pressure.Sample(ctx)
	if err != nil {
		return CheckResult{
			Name: "host_pressure", Category: "system", Status: "warn",
			Message: fmt.Sprintf("Cannot sample host pressure: %v", err),
			Fix:     "Pressure-based safety checks will rely on orchestrator-supplied values only",
		}
	}
	status := "pass"
	if p >= 0.85 {
		status = "warn"
	}
	return CheckResult{
		Name: "host_pressure", Category: "system", Status: status,
		Message: fmt.Sprintf("Current host pressure %.2f", p),
	}
}
