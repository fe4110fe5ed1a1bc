package risk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olorin-ai/verdict/internal/limits"
	"github.com/olorin-ai/verdict/internal/state"
)

func TestNonEmptyToolResults(t *testing.T) {
	inv := &state.Investigation{
		ToolResults: map[string]interface{}{
			"a": nil,
			"b": "",
			"c": map[string]interface{}{},
			"d": []interface{}{},
			"e": "found 3 matching devices",
			"f": map[string]interface{}{"hits": 2},
			"g": 0,
		},
	}
	// "g" carries a value even though it is falsy; only structural emptiness counts
	assert.Equal(t, 3, NonEmptyToolResults(inv))
}

func TestEvidencePoints(t *testing.T) {
	inv := &state.Investigation{
		DomainFindings: map[string]*state.DomainFinding{
			"network":  {Evidence: []string{"a", "b"}},
			"location": {Evidence: nil},
			"device":   nil,
		},
	}
	assert.Equal(t, 2, EvidencePoints(inv))
}

func TestHasMinimumEvidence(t *testing.T) {
	thresholds := limits.DefaultEvidenceThresholds()

	// Nothing at all
	inv := &state.Investigation{}
	assert.False(t, HasMinimumEvidence(inv, thresholds, false))

	// Confirmed fraud bypasses the gate entirely
	assert.True(t, HasMinimumEvidence(inv, thresholds, true))

	// One non-empty tool result satisfies the gate
	inv = &state.Investigation{
		ToolResults: map[string]interface{}{"device_check": map[string]interface{}{"hits": 1}},
	}
	assert.True(t, HasMinimumEvidence(inv, thresholds, false))

	// Empty tool results do not
	inv = &state.Investigation{
		ToolResults: map[string]interface{}{"device_check": map[string]interface{}{}},
	}
	assert.False(t, HasMinimumEvidence(inv, thresholds, false))

	// Three evidence points across findings satisfy it without any tools
	inv = &state.Investigation{
		DomainFindings: map[string]*state.DomainFinding{
			"network":  {Evidence: []string{"a", "b"}},
			"location": {Evidence: []string{"c"}},
		},
	}
	assert.True(t, HasMinimumEvidence(inv, thresholds, false))

	// Two are not enough
	inv.DomainFindings["location"].Evidence = nil
	assert.False(t, HasMinimumEvidence(inv, thresholds, false))
}

func TestEvidenceSignature_StableAcrossOrdering(t *testing.T) {
	invA := &state.Investigation{
		SnowflakeData: &state.SnowflakeData{Results: []map[string]interface{}{
			{"NSURE_LAST_DECISION": "approved"},
			{"LAST_DECISION": "reject"},
		}},
		ToolResults: map[string]interface{}{
			"device_check": map[string]interface{}{"hits": 1},
		},
		DomainFindings: map[string]*state.DomainFinding{
			"network": {Evidence: []string{"b", "a"}, RiskIndicators: []string{"z", "y"}},
		},
	}
	invB := &state.Investigation{
		SnowflakeData: &state.SnowflakeData{Results: []map[string]interface{}{
			{"LAST_DECISION": "reject"},
			{"NSURE_LAST_DECISION": "approved"},
		}},
		ToolResults: map[string]interface{}{
			"device_check": map[string]interface{}{"hits": 1},
		},
		DomainFindings: map[string]*state.DomainFinding{
			"network": {Evidence: []string{"a", "b"}, RiskIndicators: []string{"y", "z"}},
		},
	}

	hashA, toolsA, pointsA, err := EvidenceSignature(invA)
	require.NoError(t, err)
	hashB, toolsB, pointsB, err := EvidenceSignature(invB)
	require.NoError(t, err)

	assert.Equal(t, hashA, hashB, "ordering differences never change the signature")
	assert.Equal(t, 1, toolsA)
	assert.Equal(t, toolsA, toolsB)
	assert.Equal(t, 2, pointsA)
	assert.Equal(t, pointsA, pointsB)
}

func TestEvidenceSignature_ChangesWithEvidence(t *testing.T) {
	inv := &state.Investigation{
		DomainFindings: map[string]*state.DomainFinding{
			"network": {Evidence: []string{"a"}},
		},
	}
	hash1, _, _, err := EvidenceSignature(inv)
	require.NoError(t, err)

	inv.DomainFindings["network"].Evidence = append(inv.DomainFindings["network"].Evidence, "b")
	hash2, _, _, err := EvidenceSignature(inv)
	require.NoError(t, err)

	assert.NotEqual(t, hash1, hash2)
}

func TestAntiFlapGuard_ClampsSwingOnUnchangedEvidence(t *testing.T) {
	ctx := context.Background()
	inv := &state.Investigation{
		DomainFindings: map[string]*state.DomainFinding{
			"network": {Evidence: []string{"a"}},
		},
	}

	// First tick establishes the snapshot
	got := CheckAntiFlapGuard(ctx, inv, 0.4, 0.3)
	assert.InDelta(t, 0.4, got, 1e-9)
	require.NotNil(t, inv.PreviousRiskScore)

	// Same evidence, large upward swing: clamped to prev + threshold
	got = CheckAntiFlapGuard(ctx, inv, 0.9, 0.3)
	assert.InDelta(t, 0.7, got, 1e-9)

	last := inv.DecisionAuditTrail[len(inv.DecisionAuditTrail)-1]
	assert.Equal(t, "anti_flap_clamp", last.Kind)
	assert.InDelta(t, 0.7, *inv.PreviousRiskScore, 1e-9, "clamped value becomes the new baseline")
}

func TestAntiFlapGuard_ClampsDownwardSwing(t *testing.T) {
	ctx := context.Background()
	inv := &state.Investigation{
		DomainFindings: map[string]*state.DomainFinding{
			"network": {Evidence: []string{"a"}},
		},
	}

	CheckAntiFlapGuard(ctx, inv, 0.8, 0.3)
	got := CheckAntiFlapGuard(ctx, inv, 0.1, 0.3)
	assert.InDelta(t, 0.5, got, 1e-9, "clamped to prev - threshold")
}

func TestAntiFlapGuard_PassesSwingWhenEvidenceChanged(t *testing.T) {
	ctx := context.Background()
	inv := &state.Investigation{
		DomainFindings: map[string]*state.DomainFinding{
			"network": {Evidence: []string{"a"}},
		},
	}

	CheckAntiFlapGuard(ctx, inv, 0.3, 0.3)

	// New evidence justifies the swing
	inv.DomainFindings["network"].Evidence = append(inv.DomainFindings["network"].Evidence, "new finding")
	got := CheckAntiFlapGuard(ctx, inv, 0.9, 0.3)

	assert.InDelta(t, 0.9, got, 1e-9)
	assert.Empty(t, inv.DecisionAuditTrail)
}

func TestAntiFlapGuard_SmallSwingPasses(t *testing.T) {
	ctx := context.Background()
	inv := &state.Investigation{}

	CheckAntiFlapGuard(ctx, inv, 0.5, 0.3)
	got := CheckAntiFlapGuard(ctx, inv, 0.7, 0.3)

	assert.InDelta(t, 0.7, got, 1e-9, "swing within the threshold passes through")
	assert.Empty(t, inv.DecisionAuditTrail)
}
