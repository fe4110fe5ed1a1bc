package risk

import (
	"github.com/olorin-ai/verdict/internal/limits"
	"github.com/olorin-ai/verdict/internal/state"
)

// EvidencePoints counts evidence items accumulated across domain findings.
func EvidencePoints(inv *state.Investigation) int {
	points := 0
	for _, finding := range inv.DomainFindings {
		if finding == nil {
			continue
		}
		points += len(finding.Evidence)
	}
	return points
}

// NonEmptyToolResults counts tool results that actually carry content.
func NonEmptyToolResults(inv *state.Investigation) int {
	count := 0
	for _, result := range inv.ToolResults {
		if !isEmptyToolResult(result) {
			count++
		}
	}
	return count
}

func isEmptyToolResult(result interface{}) bool {
	switch v := result.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case map[string]interface{}:
		return len(v) == 0
	case []interface{}:
		return len(v) == 0
	default:
		return false
	}
}

// HasMinimumEvidence is the evidence gate: confirmed fraud bypasses it
// entirely (ground truth needs no corroboration); otherwise publication
// requires at least the configured number of non-empty tool results or
// the configured number of evidence points across domain findings.
func HasMinimumEvidence(inv *state.Investigation, t limits.EvidenceThresholds, confirmedFraud bool) bool {
	if confirmedFraud {
		return true
	}
	if NonEmptyToolResults(inv) >= t.MinToolResults {
		return true
	}
	return EvidencePoints(inv) >= t.MinEvidencePoints
}
