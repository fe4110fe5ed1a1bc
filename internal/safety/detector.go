// Package safety watches a running investigation for failure modes (loop
// risk, resource pressure, confidence collapse, thin evidence, timeout)
// and guards the override mechanism against repeats and storms. Everything
// here is a synchronous transformation over one investigation's state;
// rejections and internal failures are logged no-ops, never aborts.
package safety

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/olorin-ai/verdict/internal/limits"
	verdictotel "github.com/olorin-ai/verdict/internal/otel"
	"github.com/olorin-ai/verdict/internal/state"
)

var tracer = verdictotel.Tracer("github.com/olorin-ai/verdict/internal/safety")

// Detector scans investigation state against the configured safety limits.
// It holds only immutable threshold configuration and is safe to share
// across investigations; construct one per process and inject it.
type Detector struct {
	limits limits.SafetyLimits
}

// NewDetector creates a concern detector with the given limits.
func NewDetector(l limits.SafetyLimits) *Detector {
	return &Detector{limits: l}
}

// Detect runs all five checks against the current state and returns the
// concerns raised this tick. All five always run; the result may be empty.
// The caller appends the returned concerns to the investigation log.
func (d *Detector) Detect(ctx context.Context, inv *state.Investigation) []state.SafetyConcern {
	_, span := tracer.Start(ctx, "safety.detect")
	defer span.End()

	var concerns []state.SafetyConcern
	for _, check := range []func(*state.Investigation) (state.SafetyConcern, bool){
		d.checkLoopRisk,
		d.checkResourcePressure,
		d.checkConfidenceDrop,
		d.checkEvidenceInsufficiency,
		d.checkTimeoutRisk,
	} {
		if c, ok := check(inv); ok {
			concerns = append(concerns, c)
		}
	}

	span.SetAttributes(attribute.Int("safety.concern_count", len(concerns)))
	return concerns
}

// checkLoopRisk fires once the loop count reaches the warning fraction of
// the loop budget, escalating as the ratio approaches and passes 1.0.
func (d *Detector) checkLoopRisk(inv *state.Investigation) (state.SafetyConcern, bool) {
	maxLoops := d.limits.MaxLoops
	if maxLoops <= 0 {
		return state.SafetyConcern{}, false
	}
	ratio := float64(inv.OrchestratorLoops) / float64(maxLoops)
	if ratio < d.limits.LoopWarningFraction {
		return state.SafetyConcern{}, false
	}

	severity := state.SeverityMedium
	switch {
	case ratio >= 1.0:
		severity = state.SeverityCritical
	case ratio >= 0.9:
		severity = state.SeverityHigh
	}

	return state.NewSafetyConcern(
		state.ConcernLoopRisk,
		severity,
		fmt.Sprintf("investigation has used %d of %d loops (%.0f%%)", inv.OrchestratorLoops, maxLoops, ratio*100),
		"converge on a decision or terminate the investigation",
		map[string]float64{
			"loop_count": float64(inv.OrchestratorLoops),
			"max_loops":  float64(maxLoops),
			"loop_ratio": ratio,
		},
	), true
}

// checkResourcePressure fires exactly one of two tiers per tick: the
// critical tier at the limit's own threshold, otherwise the high tier.
func (d *Detector) checkResourcePressure(inv *state.Investigation) (state.SafetyConcern, bool) {
	p := inv.ResourcePressure
	metrics := map[string]float64{
		"resource_pressure": p,
		"pressure_high":     d.limits.PressureHigh,
		"pressure_critical": d.limits.PressureCritical,
	}

	if p >= d.limits.PressureCritical {
		return state.NewSafetyConcern(
			state.ConcernResourcePressure,
			state.SeverityHigh,
			fmt.Sprintf("resource pressure %.2f at or above critical threshold %.2f", p, d.limits.PressureCritical),
			"shed non-essential work and prepare to finalize",
			metrics,
		), true
	}
	if p >= d.limits.PressureHigh {
		return state.NewSafetyConcern(
			state.ConcernResourcePressure,
			state.SeverityMedium,
			fmt.Sprintf("resource pressure %.2f above high threshold %.2f", p, d.limits.PressureHigh),
			"reduce parallel tool execution",
			metrics,
		), true
	}
	return state.SafetyConcern{}, false
}

// checkConfidenceDrop needs at least two confidence evolution entries and
// fires only when the latest value has fallen by more than the configured
// delta from the prior one.
func (d *Detector) checkConfidenceDrop(inv *state.Investigation) (state.SafetyConcern, bool) {
	n := len(inv.ConfidenceEvolution)
	if n < 2 {
		return state.SafetyConcern{}, false
	}
	prev := inv.ConfidenceEvolution[n-2]
	latest := inv.ConfidenceEvolution[n-1]
	drop := prev - latest
	if drop <= d.limits.ConfidenceDropDelta {
		return state.SafetyConcern{}, false
	}

	return state.NewSafetyConcern(
		state.ConcernConfidenceDrop,
		state.SeverityMedium,
		fmt.Sprintf("confidence dropped %.2f (%.2f -> %.2f) since last tick", drop, prev, latest),
		"re-validate recent findings before acting on them",
		map[string]float64{
			"previous_confidence": prev,
			"latest_confidence":   latest,
			"drop":                drop,
		},
	), true
}

// checkEvidenceInsufficiency fires only after a minimum number of loops,
// and only when the latest decision's evidence quality sits below the
// configured floor.
func (d *Detector) checkEvidenceInsufficiency(inv *state.Investigation) (state.SafetyConcern, bool) {
	if inv.OrchestratorLoops < d.limits.EvidenceMinLoops {
		return state.SafetyConcern{}, false
	}
	quality, ok := inv.LatestEvidenceQuality()
	if !ok || quality >= d.limits.EvidenceQualityFloor {
		return state.SafetyConcern{}, false
	}

	return state.NewSafetyConcern(
		state.ConcernEvidenceInsufficient,
		state.SeverityMedium,
		fmt.Sprintf("evidence quality %.2f still below %.2f after %d loops", quality, d.limits.EvidenceQualityFloor, inv.OrchestratorLoops),
		"broaden evidence collection or conclude with reduced confidence",
		map[string]float64{
			"evidence_quality": quality,
			"quality_floor":    d.limits.EvidenceQualityFloor,
			"loop_count":       float64(inv.OrchestratorLoops),
		},
	), true
}

// checkTimeoutRisk parses the investigation start time and compares elapsed
// minutes against the time budget. A parse failure is swallowed: no
// concern, never fatal.
func (d *Detector) checkTimeoutRisk(inv *state.Investigation) (state.SafetyConcern, bool) {
	if inv.StartTime == "" {
		return state.SafetyConcern{}, false
	}
	start, err := time.Parse(time.RFC3339, inv.StartTime)
	if err != nil {
		return state.SafetyConcern{}, false
	}

	elapsed := time.Since(start).Minutes()
	budget := d.limits.MaxInvestigationMinutes
	if elapsed < d.limits.TimeWarningFraction*budget {
		return state.SafetyConcern{}, false
	}

	severity := state.SeverityHigh
	action := "prioritize remaining checks and prepare to finalize"
	if elapsed >= budget {
		severity = state.SeverityCritical
		action = "finalize the investigation now"
	}

	return state.NewSafetyConcern(
		state.ConcernTimeoutRisk,
		severity,
		fmt.Sprintf("investigation has run %.1f of %.1f minutes", elapsed, budget),
		action,
		map[string]float64{
			"elapsed_minutes": elapsed,
			"max_minutes":     budget,
		},
	), true
}
