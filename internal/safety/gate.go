package safety

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/olorin-ai/verdict/internal/limits"
	"github.com/olorin-ai/verdict/internal/state"
)

// Gate decides whether a detected concern may actually override the
// primary decision. The check order is load-bearing: overrides cannot fire
// below the safety-level/pressure floor, cannot repeat the same key faster
// than the cooldown, and cannot exceed the storm limit even across
// distinct concern types.
type Gate struct {
	limits limits.SafetyLimits

	// now is swappable for tests.
	now func() time.Time
}

// NewGate creates an override gate with the given limits.
func NewGate(l limits.SafetyLimits) *Gate {
	return &Gate{limits: l, now: time.Now}
}

// AddOverride applies the gating sequence to a proposed override and
// records it if accepted. Returns true only when a SafetyOverride was
// appended; every rejection is a logged no-op that leaves the override
// log unchanged (storm suppression still writes its audit entry and
// counter).
func (g *Gate) AddOverride(ctx context.Context, inv *state.Investigation, original, safetyDecision string, concernType state.ConcernType, reasoning []string) bool {
	_, span := tracer.Start(ctx, "safety.add_override",
		trace.WithAttributes(
			attribute.String("override.concern_type", string(concernType)),
			attribute.String("override.original_decision", original),
			attribute.String("override.safety_decision", safetyDecision),
		))
	defer span.End()

	if inv.SafetyLevel != state.SafetyLevelElevated && inv.SafetyLevel != state.SafetyLevelEmergency {
		log.Debug().Str("safety_level", inv.SafetyLevel).Msg("override rejected: safety level below elevated")
		span.SetAttributes(attribute.String("override.outcome", "rejected_safety_level"))
		return false
	}

	if inv.ResourcePressure < g.limits.OverrideMinPressure {
		log.Debug().Float64("resource_pressure", inv.ResourcePressure).Msg("override rejected: resource pressure below floor")
		span.SetAttributes(attribute.String("override.outcome", "rejected_pressure"))
		return false
	}

	if !hasSubstantiveReason(reasoning) {
		log.Debug().Msg("override rejected: empty reasoning")
		span.SetAttributes(attribute.String("override.outcome", "rejected_reasoning"))
		return false
	}

	now := g.now()

	key := overrideKey(concernType, original, safetyDecision)
	if g.isDuplicate(inv, key, now) {
		if inv.OverrideDuplicatesSuppressed == nil {
			inv.OverrideDuplicatesSuppressed = make(map[string]int)
		}
		inv.OverrideDuplicatesSuppressed[key]++
		log.Debug().Str("override_key", key).Msg("override suppressed: duplicate within cooldown")
		span.SetAttributes(attribute.String("override.outcome", "suppressed_duplicate"))
		return false
	}

	if g.countRecent(inv, now) >= g.limits.OverrideStormLimit {
		inv.OverrideStormsDetected++
		inv.DecisionAuditTrail = append(inv.DecisionAuditTrail, state.AuditEntry{
			Kind: "override_storm_suppression",
			Detail: map[string]interface{}{
				"concern_type":      string(concernType),
				"original_decision": original,
				"safety_decision":   safetyDecision,
				"window_seconds":    g.limits.OverrideStormWindow.Std().Seconds(),
				"storm_limit":       g.limits.OverrideStormLimit,
				"storms_detected":   inv.OverrideStormsDetected,
			},
			CreatedAt: now,
		})
		log.Warn().
			Int("storms_detected", inv.OverrideStormsDetected).
			Dur("window", g.limits.OverrideStormWindow.Std()).
			Msg("override storm detected; suppressing override")
		span.SetAttributes(attribute.String("override.outcome", "suppressed_storm"))
		return false
	}

	override := state.SafetyOverride{
		OriginalDecision: original,
		SafetyDecision:   safetyDecision,
		ConcernType:      concernType,
		Reasoning:        reasoning,
		CreatedAt:        now,
	}
	inv.SafetyOverrides = append(inv.SafetyOverrides, override)
	inv.DecisionAuditTrail = append(inv.DecisionAuditTrail, state.AuditEntry{
		Kind: "safety_override",
		Detail: map[string]interface{}{
			"concern_type":      string(concernType),
			"original_decision": original,
			"safety_decision":   safetyDecision,
			"reason_count":      len(reasoning),
		},
		CreatedAt: now,
	})
	inv.AIOverrideReasons = append(inv.AIOverrideReasons,
		fmt.Sprintf("%s: %s -> %s (%s)", concernType, original, safetyDecision, firstReason(reasoning)))

	span.SetAttributes(attribute.String("override.outcome", "recorded"))
	return true
}

// isDuplicate reports whether an override with the same key was recorded
// inside the cooldown window.
func (g *Gate) isDuplicate(inv *state.Investigation, key string, now time.Time) bool {
	cutoff := now.Add(-g.limits.OverrideCooldown.Std())
	for i := len(inv.SafetyOverrides) - 1; i >= 0; i-- {
		o := inv.SafetyOverrides[i]
		if o.CreatedAt.Before(cutoff) {
			return false
		}
		if overrideKey(o.ConcernType, o.OriginalDecision, o.SafetyDecision) == key {
			return true
		}
	}
	return false
}

// countRecent counts overrides of any kind inside the storm window.
func (g *Gate) countRecent(inv *state.Investigation, now time.Time) int {
	cutoff := now.Add(-g.limits.OverrideStormWindow.Std())
	count := 0
	for i := len(inv.SafetyOverrides) - 1; i >= 0; i-- {
		if inv.SafetyOverrides[i].CreatedAt.Before(cutoff) {
			break
		}
		count++
	}
	return count
}

func overrideKey(ct state.ConcernType, original, safetyDecision string) string {
	return string(ct) + "|" + original + "|" + safetyDecision
}

func hasSubstantiveReason(reasoning []string) bool {
	for _, r := range reasoning {
		if strings.TrimSpace(r) != "" {
			return true
		}
	}
	return false
}

func firstReason(reasoning []string) string {
	for _, r := range reasoning {
		if trimmed := strings.TrimSpace(r); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
