package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olorin-ai/verdict/internal/confidence"
	"github.com/olorin-ai/verdict/internal/engine"
	"github.com/olorin-ai/verdict/internal/risk"
	"github.com/olorin-ai/verdict/internal/state"
)

func TestNewRecord_ProjectsOutcome(t *testing.T) {
	published := 0.65
	cons, err := confidence.NewConsolidated(0.75, confidence.LevelHigh, nil, 1, 0.9, nil, nil, confidence.MethodWeighted)
	require.NoError(t, err)

	inv := &state.Investigation{
		ID:                     "inv-9",
		SafetyOverrides:        []state.SafetyOverride{{}},
		OverrideStormsDetected: 2,
	}
	out := engine.Outcome{
		Confidence:    cons,
		Concerns:      []state.SafetyConcern{{}, {}},
		PublishedRisk: &published,
		Prepublish:    risk.PrepublishResult{Status: risk.StatusValid},
		Actions:       []string{"Hold transaction for manual review"},
	}

	rec := NewRecord(inv, out, "sha256:deadbeef")

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "inv-9", rec.InvestigationID)
	assert.Equal(t, risk.StatusValid, rec.Status)
	assert.True(t, rec.Published)
	require.NotNil(t, rec.RiskScore)
	assert.Equal(t, 0.65, *rec.RiskScore)
	assert.Equal(t, 0.75, rec.ConfidenceScore)
	assert.Equal(t, confidence.LevelHigh, rec.ConfidenceLevel)
	assert.Equal(t, 2, rec.ConcernCount)
	assert.Equal(t, 1, rec.OverrideCount)
	assert.Equal(t, 2, rec.StormsDetected)
	assert.Equal(t, "sha256:deadbeef", rec.LimitsVersion)
}

func TestNewRecord_GatedOutcome(t *testing.T) {
	inv := &state.Investigation{ID: "inv-10"}
	out := engine.Outcome{
		Prepublish: risk.PrepublishResult{
			Status: risk.StatusNeedsMoreEvidence,
			Issues: []string{"insufficient evidence to finalize a numeric risk verdict"},
		},
	}

	rec := NewRecord(inv, out, "defaults")

	assert.False(t, rec.Published)
	assert.Nil(t, rec.RiskScore)
	assert.Zero(t, rec.ConfidenceScore, "no consolidation attached")
	assert.NotEmpty(t, rec.Issues)
}
