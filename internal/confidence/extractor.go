package confidence

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/olorin-ai/verdict/internal/state"
)

// Extract pulls raw confidence values out of the investigation state, an
// optional list of per-agent result payloads, and an optional context map.
// Agent payloads are loosely shaped (top-level confidence fields, nested
// tool outputs, nested data maps); any single source that cannot be read
// is skipped, never fatal. The returned map is the raw input to the
// calculator and is not yet sanitized.
func Extract(inv *state.Investigation, agentResults []map[string]interface{}, extra map[string]float64) map[FieldType]float64 {
	out := make(map[FieldType]float64)

	if inv != nil {
		if inv.AIConfidence != nil {
			out[FieldAI] = *inv.AIConfidence
		}
		if inv.ConfidenceScore != nil {
			out[FieldConfidenceScore] = *inv.ConfidenceScore
		}
		if inv.Confidence != nil {
			out[FieldConfidence] = *inv.Confidence
		}
		if inv.EvidenceConfidence != nil {
			out[FieldEvidence] = *inv.EvidenceConfidence
		}
	}

	if domainAvg, ok := averageDomainConfidence(agentResults); ok {
		out[FieldDomain] = domainAvg
	}
	if toolAvg, ok := averageToolConfidence(agentResults); ok {
		out[FieldTool] = toolAvg
	}

	// Explicit context values win over anything derived above.
	for key, ft := range map[string]FieldType{
		"overall":  FieldOverall,
		"evidence": FieldEvidence,
		"tool":     FieldTool,
		"domain":   FieldDomain,
	} {
		if v, ok := extra[key]; ok {
			out[ft] = v
		}
	}

	return out
}

// averageDomainConfidence averages the per-agent confidence found at the
// top level of each result payload, trying the shapes agents actually
// produce: "confidence", then "confidence_score", then a nested
// data.confidence map.
func averageDomainConfidence(agentResults []map[string]interface{}) (float64, bool) {
	var sum float64
	var n int
	for _, r := range agentResults {
		if r == nil {
			continue
		}
		v, ok := numericField(r, "confidence")
		if !ok {
			v, ok = numericField(r, "confidence_score")
		}
		if !ok {
			if data, isMap := r["data"].(map[string]interface{}); isMap {
				v, ok = numericField(data, "confidence")
			}
		}
		if ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// averageToolConfidence averages confidences nested under each agent's
// tool outputs. Tool outputs appear as a map of tool name to result, or
// as a list of result maps.
func averageToolConfidence(agentResults []map[string]interface{}) (float64, bool) {
	var sum float64
	var n int
	for _, r := range agentResults {
		if r == nil {
			continue
		}
		switch tools := r["tool_results"].(type) {
		case map[string]interface{}:
			for _, tr := range tools {
				if v, ok := toolResultConfidence(tr); ok {
					sum += v
					n++
				}
			}
		case []interface{}:
			for _, tr := range tools {
				if v, ok := toolResultConfidence(tr); ok {
					sum += v
					n++
				}
			}
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func toolResultConfidence(tr interface{}) (float64, bool) {
	m, ok := tr.(map[string]interface{})
	if !ok {
		return 0, false
	}
	if v, ok := numericField(m, "confidence"); ok {
		return v, true
	}
	return numericField(m, "confidence_score")
}

// numericField reads a numeric value from a loosely-typed map, accepting
// the types JSON decoding and in-process callers produce. Non-numeric
// values are logged at debug and skipped.
func numericField(m map[string]interface{}, key string) (float64, bool) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			log.Debug().Str("field", key).Str("value", v.String()).Msg("skipping non-numeric confidence source")
			return 0, false
		}
		return f, true
	default:
		log.Debug().Str("field", key).Msg("skipping confidence source with unsupported type")
		return 0, false
	}
}
