package limits

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults_PassValidation(t *testing.T) {
	doc := Defaults()
	require.NoError(t, doc.Validate())
	assert.Equal(t, "defaults", doc.VersionTag)
	assert.Equal(t, 15, doc.Safety.MaxLoops)
	assert.Equal(t, 8, doc.Safety.OverrideStormLimit)
	assert.Equal(t, 3, doc.Evidence.MinEvidencePoints)
}

func TestParse_PartialDocumentGetsDefaults(t *testing.T) {
	content := []byte(`
safety:
  max_loops: 20
evidence:
  min_evidence_points: 5
`)
	doc, err := Parse(content)
	require.NoError(t, err)

	assert.Equal(t, 20, doc.Safety.MaxLoops, "explicit value kept")
	assert.Equal(t, 5, doc.Evidence.MinEvidencePoints)
	// Unset fields fall back to stock values
	assert.Equal(t, 0.6, doc.Safety.LoopWarningFraction)
	assert.Equal(t, 0.3, doc.Evidence.AntiFlapThreshold)
}

func TestParse_HumanReadableDurations(t *testing.T) {
	content := []byte(`
safety:
  override_cooldown: 2s
  override_storm_window: 90s
`)
	doc, err := Parse(content)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, doc.Safety.OverrideCooldown.Std())
	assert.Equal(t, 90*time.Second, doc.Safety.OverrideStormWindow.Std())
}

func TestParse_RejectsMalformedDuration(t *testing.T) {
	_, err := Parse([]byte("safety:\n  override_cooldown: soon\n"))
	assert.Error(t, err)
}

func TestParse_SetsVersionTag(t *testing.T) {
	doc, err := Parse([]byte("safety:\n  max_loops: 10\n"))
	require.NoError(t, err)
	assert.Contains(t, doc.VersionTag, "sha256:")
	assert.Len(t, doc.Hash, 64)
}

func TestParse_RejectsInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("safety: [not a map"))
	assert.Error(t, err)
}

func TestValidate_RejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Document)
	}{
		{"zero max loops", func(d *Document) { d.Safety.MaxLoops = 0 }},
		{"negative time budget", func(d *Document) { d.Safety.MaxInvestigationMinutes = -1 }},
		{"warning fraction at 1", func(d *Document) { d.Safety.LoopWarningFraction = 1.0 }},
		{"pressure above 1", func(d *Document) { d.Safety.PressureHigh = 1.2 }},
		{"pressure tiers inverted", func(d *Document) { d.Safety.PressureHigh = 0.9; d.Safety.PressureCritical = 0.8 }},
		{"zero storm limit", func(d *Document) { d.Safety.OverrideStormLimit = 0 }},
		{"zero evidence points", func(d *Document) { d.Evidence.MinEvidencePoints = 0 }},
		{"strength floors inverted", func(d *Document) { d.Evidence.StrengthComprehensive = 0.6; d.Evidence.StrengthDefault = 0.5 }},
		{"discordance cap above 1", func(d *Document) { d.Evidence.DiscordanceRiskCap = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := Defaults()
			tt.mutate(doc)
			assert.Error(t, doc.Validate())
		})
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "limits.yaml")
	content := []byte("safety:\n  max_loops: 25\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	doc, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 25, doc.Safety.MaxLoops)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
