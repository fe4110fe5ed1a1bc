// Package config holds OPERATOR-LEVEL configuration for a verdict
// installation: the data directory, the audit signing key, and the path
// to the limits document. It is set by whoever deploys the engine, via
// env vars (VERDICT_*) or a config file (verdict.config.yaml).
//
// Per-investigation configuration (safety limits, evidence thresholds)
// lives in the limits document and is owned by the orchestrator; the
// consolidation core itself never reads env vars or files.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/olorin-ai/verdict/internal/cryptoutil"
)

// Viper keys. Each maps to an env var with the VERDICT_ prefix
// (e.g. "signing_key" → VERDICT_SIGNING_KEY) and to a YAML field in
// verdict.config.yaml.
const (
	KeyDataDir    = "data_dir"
	KeySigningKey = "signing_key"
	KeyLimitsFile = "limits_file"
)

// DefaultLimitsFile is the limits document loaded when none is named.
const DefaultLimitsFile = "verdict.limits.yaml"

// Config holds resolved operator-level configuration for a verdict process.
type Config struct {
	DataDir    string // Base directory for all state (~/.verdict)
	SigningKey string // HMAC-SHA256 key for audit signing (≥32 bytes)
	LimitsFile string // Limits document filename

	usingDefaultSigningKey bool
}

// UsingDefaultSigningKey returns true if the audit signing key was derived
// rather than set explicitly. Commands should warn when this is the case.
func (c *Config) UsingDefaultSigningKey() bool {
	return c.usingDefaultSigningKey
}

// AuditDBPath returns the full path to the verdict audit SQLite database.
func (c *Config) AuditDBPath() string {
	return filepath.Join(c.DataDir, "verdicts.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o700)
}

// WarnIfDefaultKey logs a warning when the signing key is not explicitly set.
func (c *Config) WarnIfDefaultKey() {
	if c.usingDefaultSigningKey {
		log.Warn().Msg("Using generated default VERDICT_SIGNING_KEY; set via env var or config file for production")
	}
}

func init() {
	viper.SetEnvPrefix("VERDICT")
	viper.AutomaticEnv()
	viper.SetDefault(KeyLimitsFile, DefaultLimitsFile)
}

// Load reads configuration from Viper (which merges env vars, config file,
// and defaults) and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		DataDir:    resolveDataDir(),
		SigningKey: viper.GetString(KeySigningKey),
		LimitsFile: viper.GetString(KeyLimitsFile),
	}

	if cfg.SigningKey == "" {
		cfg.SigningKey = deriveDefaultKey(cfg.DataDir, "verdict-audit-signing")
		cfg.usingDefaultSigningKey = true
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func resolveDataDir() string {
	if dir := viper.GetString(KeyDataDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".verdict"
	}
	return filepath.Join(home, ".verdict")
}

// deriveDefaultKey produces a deterministic 32-byte fallback key from the
// data directory path and a salt. Not cryptographically strong; it exists
// so the CLI works out of the box while still signing audit records with
// a per-machine-unique key.
func deriveDefaultKey(dataDir, salt string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("verdict:%s:%s", dataDir, salt)))
	return hex.EncodeToString(h[:])
}

func (c *Config) validate() error {
	if err := validateSigningKey(c.SigningKey); err != nil {
		return err
	}
	if c.LimitsFile == "" {
		return fmt.Errorf("limits_file must not be empty")
	}
	return nil
}

// validateSigningKey accepts either ≥32 raw bytes or ≥64 even hex
// characters decoding to ≥32 bytes for HMAC-SHA256.
func validateSigningKey(key string) error {
	n := len(key)
	if n >= 64 && n%2 == 0 && cryptoutil.IsHexString(key) {
		decoded, err := hex.DecodeString(key)
		if err != nil || len(decoded) < 32 {
			return fmt.Errorf("signing_key hex must decode to at least 32 bytes: %w", err)
		}
		return nil
	}
	if n >= 32 {
		return nil
	}
	return fmt.Errorf("signing_key must be at least 32 bytes or 64+ hex characters (got %d); set VERDICT_SIGNING_KEY", n)
}
