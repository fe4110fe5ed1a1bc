package confidence

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	verdictotel "github.com/olorin-ai/verdict/internal/otel"
	"github.com/olorin-ai/verdict/internal/state"
)

var tracer = verdictotel.Tracer("github.com/olorin-ai/verdict/internal/confidence")

// Consolidate runs the full confidence pipeline for one tick: extract raw
// sources from state and agent results, compute the weighted overall
// confidence, write it back through the accessor, and append the result to
// the confidence evolution log. It never fails; the worst case is the
// fallback confidence with recorded issues.
func Consolidate(ctx context.Context, inv *state.Investigation, agentResults []map[string]interface{}, extra map[string]float64) *Consolidated {
	_, span := tracer.Start(ctx, "confidence.consolidate")
	defer span.End()

	sources := Extract(inv, agentResults, extra)
	cons := SafeCalculate(TypedInput(sources))

	Apply(inv, cons)
	inv.RecordConfidence(cons.OverallScore)

	span.SetAttributes(
		attribute.Float64("confidence.overall", cons.OverallScore),
		attribute.String("confidence.level", cons.Level),
		attribute.String("confidence.method", cons.Method),
		attribute.Int("confidence.source_count", len(sources)),
		attribute.Int("confidence.issue_count", len(cons.QualityIssues)),
	)
	return cons
}
