package risk

import "github.com/olorin-ai/verdict/internal/state"

// IsolateLLMNarrative renames any risk_score field nested under a domain
// finding's LLM-analysis block to claimed_risk, so fusion and averaging
// code can never accidentally ingest a narrative-generated number as an
// engine-computed one. Applied once per tick before fusion reads the
// findings.
func IsolateLLMNarrative(inv *state.Investigation) {
	for _, finding := range inv.DomainFindings {
		if finding == nil || finding.LLMAnalysis == nil {
			continue
		}
		isolateNarrativeBlock(finding.LLMAnalysis)
	}
}

// isolateNarrativeBlock renames risk_score keys in a narrative block,
// descending into nested maps and lists.
func isolateNarrativeBlock(block map[string]interface{}) {
	if v, ok := block["risk_score"]; ok {
		block["claimed_risk"] = v
		delete(block, "risk_score")
	}
	for _, v := range block {
		switch nested := v.(type) {
		case map[string]interface{}:
			isolateNarrativeBlock(nested)
		case []interface{}:
			for _, item := range nested {
				if m, ok := item.(map[string]interface{}); ok {
					isolateNarrativeBlock(m)
				}
			}
		}
	}
}

// EngineRisk returns the engine-computed risk score for a finding,
// ignoring anything the narrative claims. Nil when the domain had
// insufficient signal.
func EngineRisk(finding *state.DomainFinding) *float64 {
	if finding == nil {
		return nil
	}
	return finding.RiskScore
}
