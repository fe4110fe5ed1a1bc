// Package risk derives the published risk verdict for an investigation:
// confirmed-fraud detection from behavioral transaction fields, score
// fusion with floors and uncertainty uplift, anti-flap damping, evidence
// gating, and pre-publish validation. Narrative numbers produced by LLM
// analysis never enter any computation here.
package risk

import (
	"strconv"
	"strings"

	"github.com/olorin-ai/verdict/internal/state"

	verdictotel "github.com/olorin-ai/verdict/internal/otel"
)

var tracer = verdictotel.Tracer("github.com/olorin-ai/verdict/internal/risk")

// Risk floors. Exculpatory evidence can never push the fused score below
// the floor implied by the context.
const (
	FloorConfirmedFraud = 0.9
	FloorHighModel      = 0.6
	FloorDefault        = 0.3

	// highModelThreshold activates FloorHighModel.
	highModelThreshold = 0.9

	// maxExculpatoryAdjustment caps how far exculpatory evidence can pull
	// the base score down.
	maxExculpatoryAdjustment = 0.25
)

// decisionFields are the behavioral/decision columns consulted for ground
// truth. Fraud-label columns (IS_FRAUD_TX and friends) are deliberately
// not read during an investigation: reading the label would leak the
// answer the model is being evaluated against.
var decisionFields = []string{"NSURE_LAST_DECISION", "NSURE_DECISION", "LAST_DECISION"}

// counterFields are behavioral counters that constitute ground truth on
// their own: a transaction with a recorded chargeback or dispute has been
// adjudicated by the payment network regardless of any decision string.
var counterFields = []string{"CHARGEBACK_COUNT", "DISPUTE_COUNT"}

// rejectedDecisions are decision values that constitute ground-truth fraud
// adjudication.
var rejectedDecisions = map[string]bool{
	"reject":   true,
	"rejected": true,
	"declined": true,
	"decline":  true,
	"blocked":  true,
	"block":    true,
	"deny":     true,
	"denied":   true,
}

// DeriveConfirmedFraud reports whether a single transaction row carries
// ground-truth fraud adjudication: a rejected decision field or a nonzero
// chargeback/dispute counter. Narrative text and structured fraud-label
// columns never count.
func DeriveConfirmedFraud(row map[string]interface{}) bool {
	if row == nil {
		return false
	}
	for _, field := range decisionFields {
		raw, ok := row[field]
		if !ok {
			continue
		}
		decision, ok := raw.(string)
		if !ok {
			continue
		}
		if rejectedDecisions[strings.ToLower(strings.TrimSpace(decision))] {
			return true
		}
	}
	for _, field := range counterFields {
		if counterValue(row[field]) > 0 {
			return true
		}
	}
	return false
}

// counterValue reads a behavioral counter column, tolerating the numeric
// shapes JSON decoding and warehouse exports produce. Anything unreadable
// counts as zero.
func counterValue(raw interface{}) float64 {
	switch v := raw.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// ConfirmedFraudInState reports whether any transaction row in the
// investigation's warehouse data carries ground-truth fraud adjudication.
func ConfirmedFraudInState(inv *state.Investigation) bool {
	if inv == nil || inv.SnowflakeData == nil {
		return false
	}
	for _, row := range inv.SnowflakeData.Results {
		if DeriveConfirmedFraud(row) {
			return true
		}
	}
	return false
}

// FuseRisk combines the model score with the per-domain scores.
//
// base = max(model, max non-nil domain score); the floor is 0.9 for
// confirmed fraud, 0.6 when the model itself is >= 0.9, and 0.3 otherwise;
// the exculpatory down-adjustment is capped at 0.25 and can never push the
// result below the floor.
func FuseRisk(modelScore float64, domainScores map[string]*float64, exculpatoryWeight float64, confirmedFraud bool) float64 {
	base := modelScore
	for _, s := range domainScores {
		if s != nil && *s > base {
			base = *s
		}
	}

	floor := FloorDefault
	switch {
	case confirmedFraud:
		floor = FloorConfirmedFraud
	case modelScore >= highModelThreshold:
		floor = FloorHighModel
	}

	down := exculpatoryWeight
	if down > maxExculpatoryAdjustment {
		down = maxExculpatoryAdjustment
	}
	if down < 0 {
		down = 0
	}

	fused := base - down
	if fused < floor {
		fused = floor
	}
	if fused > 1 {
		fused = 1
	}
	return fused
}

// Action checklists per severity tier, escalating.
var (
	immediateEscalationActions = []string{
		"Block transaction and freeze associated account",
		"Escalate to fraud operations immediately",
		"File suspicious activity report",
		"Notify issuing bank of confirmed fraud pattern",
	}
	enhancedReviewActions = []string{
		"Hold transaction for manual review",
		"Request additional verification from customer",
		"Increase monitoring on account activity",
	}
	routineMonitoringActions = []string{
		"Continue routine monitoring",
		"Log findings for trend analysis",
	}
)

// ActionsFor maps a risk score onto its action checklist. Confirmed fraud
// and scores above 0.89 get the immediate-escalation list, scores above
// 0.59 the enhanced-review list, everything else routine monitoring.
func ActionsFor(risk float64, confirmedFraud bool) []string {
	switch {
	case confirmedFraud || risk > 0.89:
		return append([]string(nil), immediateEscalationActions...)
	case risk > 0.59:
		return append([]string(nil), enhancedReviewActions...)
	default:
		return append([]string(nil), routineMonitoringActions...)
	}
}

// DedupeRecommendations removes case-insensitive duplicates while
// preserving first-seen order.
func DedupeRecommendations(recs []string) []string {
	seen := make(map[string]bool, len(recs))
	var out []string
	for _, r := range recs {
		key := strings.ToLower(strings.TrimSpace(r))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}
