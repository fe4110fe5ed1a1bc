package confidence

import (
	"github.com/rs/zerolog/log"

	"github.com/olorin-ai/verdict/internal/state"
)

// Apply writes the consolidated confidence back into investigation state
// through the accessor: the overall score under both the primary field and
// its alias, the AI component (falling back to the overall score), the
// evidence component only when present, and the consolidation metadata
// block. Any individual field that cannot be written is logged and
// skipped; application never fails.
func Apply(acc state.ConfidenceAccessor, cons *Consolidated) {
	if cons == nil {
		return
	}

	setField(acc, state.FieldConfidence, cons.OverallScore)
	setField(acc, state.FieldConfidenceScore, cons.OverallScore)

	aiScore := cons.OverallScore
	if v, ok := cons.Components[FieldAI]; ok {
		aiScore = v
	}
	setField(acc, state.FieldAIConfidence, aiScore)

	if v, ok := cons.Components[FieldEvidence]; ok {
		setField(acc, state.FieldEvidenceConfidence, v)
	}

	acc.SetConsolidationMeta(consolidationMeta(cons))
}

func setField(acc state.ConfidenceAccessor, name string, value float64) {
	if err := acc.SetConfidenceField(name, value); err != nil {
		log.Warn().Err(err).Str("field", name).Msg("skipping confidence field write")
	}
}

// consolidationMeta builds the provenance block attached to state after
// each consolidation.
func consolidationMeta(cons *Consolidated) map[string]interface{} {
	breakdown := make(map[string]float64, len(cons.Components))
	for ft, v := range cons.Components {
		breakdown[string(ft)] = v
	}
	sources := make(map[string]float64, len(cons.Sources))
	for ft, v := range cons.Sources {
		sources[string(ft)] = v
	}
	return map[string]interface{}{
		"overall_score":      cons.OverallScore,
		"level":              cons.Level,
		"method":             cons.Method,
		"breakdown":          breakdown,
		"sources":            sources,
		"consistency_rating": RatingFor(cons.ConsistencyScore),
		"reliability_rating": RatingFor(cons.ReliabilityScore),
		"consistency_score":  cons.ConsistencyScore,
		"reliability_score":  cons.ReliabilityScore,
		"quality_issue_count": len(cons.QualityIssues),
		"created_at":         cons.CreatedAt,
	}
}
