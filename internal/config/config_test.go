package config

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configFor(t *testing.T, settings map[string]interface{}) *Config {
	t.Helper()
	for k, v := range settings {
		viper.Set(k, v)
	}
	t.Cleanup(func() {
		for k := range settings {
			viper.Set(k, nil)
		}
	})

	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestLoad_DerivesDefaultSigningKey(t *testing.T) {
	cfg := configFor(t, map[string]interface{}{
		KeyDataDir: t.TempDir(),
	})

	assert.True(t, cfg.UsingDefaultSigningKey())
	assert.Len(t, cfg.SigningKey, 64, "derived key is 32 bytes hex-encoded")
}

func TestLoad_DerivedKeyIsDeterministicPerDataDir(t *testing.T) {
	dir := t.TempDir()
	a := configFor(t, map[string]interface{}{KeyDataDir: dir})
	b := configFor(t, map[string]interface{}{KeyDataDir: dir})
	c := configFor(t, map[string]interface{}{KeyDataDir: t.TempDir()})

	assert.Equal(t, a.SigningKey, b.SigningKey)
	assert.NotEqual(t, a.SigningKey, c.SigningKey, "key is bound to the data dir")
}

func TestLoad_ExplicitSigningKey(t *testing.T) {
	cfg := configFor(t, map[string]interface{}{
		KeyDataDir:    t.TempDir(),
		KeySigningKey: "explicit-signing-key-0123456789abcdef",
	})

	assert.False(t, cfg.UsingDefaultSigningKey())
	assert.Equal(t, "explicit-signing-key-0123456789abcdef", cfg.SigningKey)
}

func TestLoad_RejectsShortSigningKey(t *testing.T) {
	viper.Set(KeySigningKey, "short")
	t.Cleanup(func() { viper.Set(KeySigningKey, nil) })

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_AcceptsHexSigningKey(t *testing.T) {
	cfg := configFor(t, map[string]interface{}{
		KeyDataDir:    t.TempDir(),
		KeySigningKey: strings.Repeat("ab", 32),
	})
	assert.False(t, cfg.UsingDefaultSigningKey())
}

func TestAuditDBPath(t *testing.T) {
	dir := t.TempDir()
	cfg := configFor(t, map[string]interface{}{KeyDataDir: dir})
	assert.Equal(t, filepath.Join(dir, "verdicts.db"), cfg.AuditDBPath())
}

func TestLimitsFileDefault(t *testing.T) {
	cfg := configFor(t, map[string]interface{}{KeyDataDir: t.TempDir()})
	assert.Equal(t, DefaultLimitsFile, cfg.LimitsFile)
}
