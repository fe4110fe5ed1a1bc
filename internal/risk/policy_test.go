package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olorin-ai/verdict/internal/state"
)

func ptr(v float64) *float64 { return &v }

func TestDeriveConfirmedFraud(t *testing.T) {
	tests := []struct {
		name string
		row  map[string]interface{}
		want bool
	}{
		{"nil row", nil, false},
		{"empty row", map[string]interface{}{}, false},
		{"rejected", map[string]interface{}{"NSURE_LAST_DECISION": "reject"}, true},
		{"case and whitespace", map[string]interface{}{"NSURE_LAST_DECISION": "  DECLINED "}, true},
		{"blocked via fallback field", map[string]interface{}{"LAST_DECISION": "blocked"}, true},
		{"approved", map[string]interface{}{"NSURE_LAST_DECISION": "approved"}, false},
		{"non-string decision", map[string]interface{}{"NSURE_LAST_DECISION": 1}, false},
		{"fraud label is never read", map[string]interface{}{"IS_FRAUD_TX": true}, false},
		{"chargeback counter", map[string]interface{}{"CHARGEBACK_COUNT": float64(3)}, true},
		{"dispute counter", map[string]interface{}{"DISPUTE_COUNT": float64(2)}, true},
		{"integer counter", map[string]interface{}{"CHARGEBACK_COUNT": 1}, true},
		{"string counter from warehouse export", map[string]interface{}{"DISPUTE_COUNT": "1"}, true},
		{"zero counters", map[string]interface{}{"CHARGEBACK_COUNT": float64(0), "DISPUTE_COUNT": "0"}, false},
		{"unreadable counter", map[string]interface{}{"CHARGEBACK_COUNT": "n/a"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveConfirmedFraud(tt.row))
		})
	}
}

func TestConfirmedFraudInState(t *testing.T) {
	assert.False(t, ConfirmedFraudInState(nil))
	assert.False(t, ConfirmedFraudInState(&state.Investigation{}))

	inv := &state.Investigation{
		SnowflakeData: &state.SnowflakeData{Results: []map[string]interface{}{
			{"NSURE_LAST_DECISION": "approved"},
			{"NSURE_LAST_DECISION": "deny"},
		}},
	}
	assert.True(t, ConfirmedFraudInState(inv), "any adjudicated row confirms")

	inv = &state.Investigation{
		SnowflakeData: &state.SnowflakeData{Results: []map[string]interface{}{
			{"NSURE_LAST_DECISION": "approved", "CHARGEBACK_COUNT": float64(1)},
		}},
	}
	assert.True(t, ConfirmedFraudInState(inv), "chargeback overrides an approved decision")
}

func TestFuseRisk_BaseIsMaxOfModelAndDomains(t *testing.T) {
	scores := map[string]*float64{
		"network":  ptr(0.7),
		"location": nil,
		"device":   ptr(0.4),
	}
	fused := FuseRisk(0.5, scores, 0, false)
	assert.InDelta(t, 0.7, fused, 1e-9, "highest domain score wins over the model")

	fused = FuseRisk(0.8, scores, 0, false)
	assert.InDelta(t, 0.8, fused, 1e-9, "model wins when higher")
}

func TestFuseRisk_Floors(t *testing.T) {
	// Confirmed fraud floors at 0.9 regardless of exculpatory pull
	fused := FuseRisk(0.95, nil, 1.0, true)
	assert.InDelta(t, FloorConfirmedFraud, fused, 1e-9)

	// High model score floors at 0.6
	fused = FuseRisk(0.9, nil, 0.25, false)
	assert.InDelta(t, 0.65, fused, 1e-9, "0.9 - 0.25 stays above the 0.6 floor")
	fused = FuseRisk(0.92, nil, 0.25, false)
	assert.InDelta(t, 0.67, fused, 1e-9)

	// Default floor at 0.3
	fused = FuseRisk(0.4, nil, 0.25, false)
	assert.InDelta(t, FloorDefault, fused, 1e-9)
}

func TestFuseRisk_ExculpatoryAdjustmentCapped(t *testing.T) {
	fused := FuseRisk(0.8, nil, 0.5, false)
	assert.InDelta(t, 0.55, fused, 1e-9, "down-adjustment capped at 0.25")

	fused = FuseRisk(0.8, nil, -0.3, false)
	assert.InDelta(t, 0.8, fused, 1e-9, "negative weight never raises risk")
}

func TestActionsFor_Tiers(t *testing.T) {
	assert.Len(t, ActionsFor(0.95, false), 4, "immediate escalation checklist")
	assert.Len(t, ActionsFor(0.2, true), 4, "confirmed fraud escalates regardless of score")
	assert.Len(t, ActionsFor(0.7, false), 3, "enhanced review checklist")
	assert.Len(t, ActionsFor(0.89, false), 3, "0.89 is not above the escalation cut")
	assert.Len(t, ActionsFor(0.3, false), 2, "routine monitoring checklist")
}

func TestActionsFor_ReturnsCopies(t *testing.T) {
	a := ActionsFor(0.95, false)
	a[0] = "mutated"
	b := ActionsFor(0.95, false)
	assert.NotEqual(t, "mutated", b[0], "callers cannot corrupt the shared checklists")
}

func TestDedupeRecommendations(t *testing.T) {
	out := DedupeRecommendations([]string{
		"Hold transaction for manual review",
		"hold TRANSACTION for manual review",
		"",
		"  ",
		"File suspicious activity report",
	})
	require.Len(t, out, 2)
	assert.Equal(t, "Hold transaction for manual review", out[0], "first spelling kept")
}

func TestDomainScores_PreservesNil(t *testing.T) {
	inv := &state.Investigation{
		DomainFindings: map[string]*state.DomainFinding{
			"network":  {RiskScore: ptr(0.6)},
			"location": {RiskScore: nil},
			"device":   nil,
		},
	}

	scores := DomainScores(inv)
	require.Len(t, scores, 3)
	require.NotNil(t, scores["network"])
	assert.Equal(t, 0.6, *scores["network"])
	assert.Nil(t, scores["location"], "insufficient signal stays nil, never zero")
	assert.Nil(t, scores["device"])
}

func TestCoverageAndUplift(t *testing.T) {
	assert.Equal(t, 0, CoverageScore(nil))
	assert.Equal(t, 2, CoverageScore(map[string]*float64{
		"network": ptr(0.5),
		"device":  ptr(0.2),
		"email":   ptr(0.9), // not a core coverage domain
	}))

	assert.Equal(t, UpliftPoorCoverage, UncertaintyUplift(0))
	assert.Equal(t, UpliftPoorCoverage, UncertaintyUplift(1))
	assert.Equal(t, UpliftModerateCoverage, UncertaintyUplift(2))
	assert.Zero(t, UncertaintyUplift(3))

	assert.InDelta(t, 0.65, ApplyUplift(0.5, 0), 1e-9)
	assert.InDelta(t, 1.0, ApplyUplift(0.95, 1), 1e-9, "capped at 1.0")
	assert.InDelta(t, 0.5, ApplyUplift(0.5, 3), 1e-9)
}

func TestIsolateLLMNarrative(t *testing.T) {
	inv := &state.Investigation{
		DomainFindings: map[string]*state.DomainFinding{
			"network": {
				RiskScore: ptr(0.4),
				LLMAnalysis: map[string]interface{}{
					"risk_score": 0.99,
					"nested": map[string]interface{}{"risk_score": 0.88},
					"items": []interface{}{
						map[string]interface{}{"risk_score": 0.77},
					},
				},
			},
			"device": nil,
		},
	}

	IsolateLLMNarrative(inv)

	analysis := inv.DomainFindings["network"].LLMAnalysis
	assert.NotContains(t, analysis, "risk_score")
	assert.Equal(t, 0.99, analysis["claimed_risk"])

	nested := analysis["nested"].(map[string]interface{})
	assert.Equal(t, 0.88, nested["claimed_risk"])

	item := analysis["items"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, 0.77, item["claimed_risk"])

	// Engine score untouched by narrative claims
	assert.Equal(t, 0.4, *EngineRisk(inv.DomainFindings["network"]))
	assert.Nil(t, EngineRisk(nil))
}
