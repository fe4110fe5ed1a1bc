// Package engine runs one consolidation tick over an investigation:
// confidence consolidation, concern detection, override gating, risk
// fusion with anti-flap damping, evidence gating, and pre-publish
// validation. The engine is a pure synchronous pipeline with no goroutines
// or I/O, and assumes single-writer, non-shared state per investigation.
package engine

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/olorin-ai/verdict/internal/confidence"
	"github.com/olorin-ai/verdict/internal/limits"
	verdictotel "github.com/olorin-ai/verdict/internal/otel"
	"github.com/olorin-ai/verdict/internal/risk"
	"github.com/olorin-ai/verdict/internal/safety"
	"github.com/olorin-ai/verdict/internal/state"
)

var tracer = verdictotel.Tracer("github.com/olorin-ai/verdict/internal/engine")

// defaultOriginalDecision stands in when the orchestrator does not name
// the decision a safety concern would override.
const defaultOriginalDecision = "continue_investigation"

// Engine consolidates one investigation tick. Construct with NewEngine and
// inject wherever a tick needs running; the engine holds only immutable
// limit configuration and is safe to share across investigations.
type Engine struct {
	limits   *limits.Document
	detector *safety.Detector
	gate     *safety.Gate
}

// NewEngine creates an engine with the given limits document. A nil
// document gets the stock defaults.
func NewEngine(doc *limits.Document) *Engine {
	if doc == nil {
		doc = limits.Defaults()
	}
	return &Engine{
		limits:   doc,
		detector: safety.NewDetector(doc.Safety),
		gate:     safety.NewGate(doc.Safety),
	}
}

// TickInput carries the per-tick signals the orchestrator collected since
// the last cycle.
type TickInput struct {
	// ModelScore is the upstream fraud model's score for this tick.
	ModelScore float64

	// AgentResults are the raw per-agent result payloads, used for
	// confidence extraction.
	AgentResults []map[string]interface{}

	// ExtraConfidence carries explicit overall/evidence/tool/domain
	// confidences supplied by the caller.
	ExtraConfidence map[string]float64

	// ExculpatoryWeight is the accumulated weight of exculpatory evidence.
	ExculpatoryWeight float64

	// ProposedDecision is the primary decision this tick would take,
	// recorded as the original decision on any safety override.
	ProposedDecision string
}

// Outcome is the result of one consolidation tick. PublishedRisk is nil
// when the evidence gate or pre-publish validation blocked publication.
type Outcome struct {
	Confidence     *confidence.Consolidated `json:"confidence"`
	Concerns       []state.SafetyConcern    `json:"concerns,omitempty"`
	ConcernSummary safety.Summary           `json:"concern_summary"`
	ConfirmedFraud bool                     `json:"confirmed_fraud"`
	FusedRisk      float64                  `json:"fused_risk"`
	CoverageScore  int                      `json:"coverage_score"`
	PublishedRisk  *float64                 `json:"published_risk,omitempty"`
	Prepublish     risk.PrepublishResult    `json:"prepublish"`
	Actions        []string                 `json:"actions,omitempty"`
}

// Tick runs one full decision cycle over the investigation, mutating the
// state in pipeline order: confidence first, then concern detection over
// the fresh confidence evolution entry, then override gating, then risk
// fusion over the gated state. The ordering is load-bearing.
func (e *Engine) Tick(ctx context.Context, inv *state.Investigation, input TickInput) Outcome {
	ctx, span := tracer.Start(ctx, "engine.tick",
		trace.WithAttributes(
			attribute.String("investigation.id", inv.ID),
			attribute.Int("investigation.loops", inv.OrchestratorLoops),
		))
	defer span.End()

	cons := confidence.Consolidate(ctx, inv, input.AgentResults, input.ExtraConfidence)

	concerns := e.detector.Detect(ctx, inv)
	inv.SafetyConcerns = append(inv.SafetyConcerns, concerns...)
	summary := safety.Summarize(concerns)

	e.gateConcerns(ctx, inv, concerns, input.ProposedDecision)

	confirmed := risk.ConfirmedFraudInState(inv)
	risk.IsolateLLMNarrative(inv)

	domainScores := risk.DomainScores(inv)
	fused := risk.FuseRisk(input.ModelScore, domainScores, input.ExculpatoryWeight, confirmed)
	coverage := risk.CoverageScore(domainScores)
	fused = risk.ApplyUplift(fused, coverage)

	adjusted := risk.CheckAntiFlapGuard(ctx, inv, fused, e.limits.Evidence.AntiFlapThreshold)

	outcome := Outcome{
		Confidence:     cons,
		Concerns:       concerns,
		ConcernSummary: summary,
		ConfirmedFraud: confirmed,
		FusedRisk:      adjusted,
		CoverageScore:  coverage,
	}

	if !risk.HasMinimumEvidence(inv, e.limits.Evidence, confirmed) {
		outcome.Prepublish = risk.PrepublishResult{
			Status:          risk.StatusNeedsMoreEvidence,
			Issues:          []string{"insufficient evidence to finalize a numeric risk verdict"},
			Recommendations: []string{"Run additional tools or broaden domain coverage"},
			PublishableRisk: adjusted,
		}
		outcome.Actions = risk.DedupeRecommendations(append(outcome.Prepublish.Recommendations, summary.RecommendedActions...))
		log.Warn().
			Str("investigation_id", inv.ID).
			Func(verdictotel.LogTraceFields(ctx)).
			Msg("publication gated: insufficient evidence")
		span.SetAttributes(attribute.Bool("tick.published", false))
		return outcome
	}

	prepub := risk.PrepublishValidate(ctx, inv, e.limits.Evidence, input.ModelScore, adjusted, confirmed)
	outcome.Prepublish = prepub

	if prepub.Status == risk.StatusValid || prepub.Status == risk.StatusDiscordantSignals {
		published := prepub.PublishableRisk
		outcome.PublishedRisk = &published
		outcome.Actions = risk.DedupeRecommendations(append(
			risk.ActionsFor(published, confirmed),
			summary.RecommendedActions...))
	} else {
		outcome.Actions = risk.DedupeRecommendations(append(prepub.Recommendations, summary.RecommendedActions...))
		log.Warn().
			Str("investigation_id", inv.ID).
			Str("prepublish_status", prepub.Status).
			Func(verdictotel.LogTraceFields(ctx)).
			Msg("publication gated by pre-publish validation")
	}

	span.SetAttributes(
		attribute.Bool("tick.published", outcome.PublishedRisk != nil),
		attribute.String("tick.prepublish_status", prepub.Status),
		attribute.Float64("tick.fused_risk", adjusted),
		attribute.Bool("tick.confirmed_fraud", confirmed),
	)
	return outcome
}

// gateConcerns proposes an override for every high-or-worse concern and
// lets the gate decide whether to record it.
func (e *Engine) gateConcerns(ctx context.Context, inv *state.Investigation, concerns []state.SafetyConcern, proposedDecision string) {
	if proposedDecision == "" {
		proposedDecision = defaultOriginalDecision
	}
	for _, c := range concerns {
		if !c.Severity.AtLeast(state.SeverityHigh) {
			continue
		}
		e.gate.AddOverride(ctx, inv, proposedDecision, c.RecommendedAction, c.Type, []string{c.Message})
	}
}
