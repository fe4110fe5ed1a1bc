package risk

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/olorin-ai/verdict/internal/limits"
	"github.com/olorin-ai/verdict/internal/state"
)

// Pre-publish validation statuses.
const (
	StatusValid             = "valid"
	StatusNeedsMoreEvidence = "needs_more_evidence"
	StatusDiscordantSignals = "discordant_signals"
	StatusValidationError   = "validation_error"
)

// SnowflakeToolName is the warehouse query tool identifier as it appears
// in tools_used.
const SnowflakeToolName = "snowflake_query_tool"

// fraudRelevantFields are the columns whose presence makes a warehouse row
// useful for fraud assessment.
var fraudRelevantFields = []string{
	"NSURE_LAST_DECISION", "NSURE_DECISION", "LAST_DECISION",
	"CHARGEBACK_COUNT", "DISPUTE_COUNT", "RISK_LEVEL",
}

// PrepublishResult is the outcome of pre-publish validation.
type PrepublishResult struct {
	Status          string   `json:"status"`
	Issues          []string `json:"issues,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
	PublishableRisk float64  `json:"publishable_risk"`
}

// PrepublishValidate runs the final checks before a numeric risk verdict
// may be published. Confirmed fraud short-circuits to an always-publishable
// result. Otherwise, in order: single-source detection (warehouse-only data
// must be comprehensive), the dynamic evidence-strength floor, and
// discordance between a high internal model score and a MINIMAL external
// threat signal (which caps the publishable risk rather than blocking).
// The first failing check determines the status; every failing check
// appends its issue and recommended next actions.
func PrepublishValidate(ctx context.Context, inv *state.Investigation, t limits.EvidenceThresholds, modelScore, proposedRisk float64, confirmedFraud bool) PrepublishResult {
	_, span := tracer.Start(ctx, "risk.prepublish_validate")
	defer span.End()

	if inv == nil {
		span.SetAttributes(attribute.String("prepublish.status", StatusValidationError))
		return PrepublishResult{
			Status:          StatusValidationError,
			Issues:          []string{"no investigation state available for validation"},
			PublishableRisk: proposedRisk,
		}
	}

	if confirmedFraud {
		span.SetAttributes(attribute.String("prepublish.status", StatusValid))
		return PrepublishResult{Status: StatusValid, PublishableRisk: proposedRisk}
	}

	result := PrepublishResult{Status: StatusValid, PublishableRisk: proposedRisk}
	comprehensive := hasComprehensiveWarehouseData(inv, t)

	if isSnowflakeOnly(inv) && !comprehensive {
		result.Issues = append(result.Issues,
			"single-source evidence: only warehouse data was consulted and it is not comprehensive")
		result.Recommendations = append(result.Recommendations,
			"Run at least one corroborating tool (device, network, or threat intelligence)",
			"Expand the warehouse query to cover more transaction history")
		if result.Status == StatusValid {
			result.Status = StatusNeedsMoreEvidence
		}
	}

	strengthFloor := t.StrengthDefault
	if comprehensive {
		strengthFloor = t.StrengthComprehensive
	}
	if inv.EvidenceStrength < strengthFloor {
		result.Issues = append(result.Issues,
			fmt.Sprintf("evidence strength %.2f below required %.2f", inv.EvidenceStrength, strengthFloor))
		result.Recommendations = append(result.Recommendations,
			"Collect additional corroborating evidence before publishing a verdict")
		if result.Status == StatusValid {
			result.Status = StatusNeedsMoreEvidence
		}
	}

	if modelScore >= t.DiscordanceModelHigh && ExternalThreatLevel(inv) == "MINIMAL" {
		result.Issues = append(result.Issues,
			fmt.Sprintf("internal model score %.2f discordant with MINIMAL external threat signal", modelScore))
		result.Recommendations = append(result.Recommendations,
			"Reconcile internal model output with external threat intelligence before escalating")
		if result.PublishableRisk > t.DiscordanceRiskCap {
			result.PublishableRisk = t.DiscordanceRiskCap
		}
		if result.Status == StatusValid {
			result.Status = StatusDiscordantSignals
		}
	}

	result.Recommendations = DedupeRecommendations(result.Recommendations)
	span.SetAttributes(
		attribute.String("prepublish.status", result.Status),
		attribute.Int("prepublish.issue_count", len(result.Issues)),
		attribute.Float64("prepublish.publishable_risk", result.PublishableRisk),
	)
	return result
}

// isSnowflakeOnly reports whether the warehouse query tool is the only
// tool consulted.
func isSnowflakeOnly(inv *state.Investigation) bool {
	return len(inv.ToolsUsed) == 1 && inv.ToolsUsed.Contains(SnowflakeToolName)
}

// hasComprehensiveWarehouseData reports whether the warehouse result set
// alone is broad enough to stand as evidence: at least the configured
// number of records carrying fraud-relevant fields, with at least one
// high-risk or blocked record among them.
func hasComprehensiveWarehouseData(inv *state.Investigation, t limits.EvidenceThresholds) bool {
	if inv.SnowflakeData == nil {
		return false
	}

	relevant := 0
	highRisk := false
	for _, row := range inv.SnowflakeData.Results {
		if !rowHasFraudRelevantFields(row) {
			continue
		}
		relevant++
		if rowIsHighRisk(row) {
			highRisk = true
		}
	}
	return relevant >= t.ComprehensiveMinRecords && highRisk
}

func rowHasFraudRelevantFields(row map[string]interface{}) bool {
	for _, field := range fraudRelevantFields {
		if _, ok := row[field]; ok {
			return true
		}
	}
	return false
}

func rowIsHighRisk(row map[string]interface{}) bool {
	if DeriveConfirmedFraud(row) {
		return true
	}
	if lvl, ok := row["RISK_LEVEL"].(string); ok && strings.EqualFold(lvl, "high") {
		return true
	}
	return false
}

// ExternalThreatLevel returns the threat level reported by external threat
// intelligence, if any tool result carries one. Empty string when absent.
func ExternalThreatLevel(inv *state.Investigation) string {
	for _, result := range inv.ToolResults {
		m, ok := result.(map[string]interface{})
		if !ok {
			continue
		}
		if lvl, ok := m["threat_level"].(string); ok && lvl != "" {
			return strings.ToUpper(lvl)
		}
	}
	return ""
}
