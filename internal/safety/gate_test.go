package safety

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olorin-ai/verdict/internal/limits"
	"github.com/olorin-ai/verdict/internal/state"
)

// fakeClock gives tests control over the gate's notion of time.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func testGate() (*Gate, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
	g := NewGate(limits.DefaultSafetyLimits())
	g.now = clock.now
	return g, clock
}

func elevatedInvestigation() *state.Investigation {
	return &state.Investigation{
		SafetyLevel:      state.SafetyLevelElevated,
		ResourcePressure: 0.5,
	}
}

func TestAddOverride_Accepted(t *testing.T) {
	g, _ := testGate()
	inv := elevatedInvestigation()

	ok := g.AddOverride(context.Background(), inv,
		"continue_investigation", "terminate", state.ConcernLoopRisk,
		[]string{"loop budget exhausted"})

	require.True(t, ok)
	require.Len(t, inv.SafetyOverrides, 1)
	assert.Equal(t, "continue_investigation", inv.SafetyOverrides[0].OriginalDecision)
	assert.Equal(t, "terminate", inv.SafetyOverrides[0].SafetyDecision)

	require.Len(t, inv.DecisionAuditTrail, 1)
	assert.Equal(t, "safety_override", inv.DecisionAuditTrail[0].Kind)

	require.Len(t, inv.AIOverrideReasons, 1)
	assert.Equal(t, "LOOP_RISK: continue_investigation -> terminate (loop budget exhausted)", inv.AIOverrideReasons[0])
}

func TestAddOverride_RejectedBelowElevated(t *testing.T) {
	g, _ := testGate()
	inv := elevatedInvestigation()
	inv.SafetyLevel = state.SafetyLevelNormal

	ok := g.AddOverride(context.Background(), inv,
		"continue", "terminate", state.ConcernLoopRisk, []string{"reason"})

	assert.False(t, ok)
	assert.Empty(t, inv.SafetyOverrides)
	assert.Empty(t, inv.DecisionAuditTrail, "plain rejections leave no audit trace")
}

func TestAddOverride_EmergencyLevelAllowed(t *testing.T) {
	g, _ := testGate()
	inv := elevatedInvestigation()
	inv.SafetyLevel = state.SafetyLevelEmergency

	ok := g.AddOverride(context.Background(), inv,
		"continue", "terminate", state.ConcernTimeoutRisk, []string{"time budget exceeded"})
	assert.True(t, ok)
}

func TestAddOverride_RejectedLowPressure(t *testing.T) {
	g, _ := testGate()
	inv := elevatedInvestigation()
	inv.ResourcePressure = 0.2

	ok := g.AddOverride(context.Background(), inv,
		"continue", "terminate", state.ConcernLoopRisk, []string{"reason"})

	assert.False(t, ok)
	assert.Empty(t, inv.SafetyOverrides)
}

func TestAddOverride_RejectedBlankReasoning(t *testing.T) {
	g, _ := testGate()
	inv := elevatedInvestigation()

	for _, reasoning := range [][]string{nil, {}, {""}, {"   ", "\t"}} {
		ok := g.AddOverride(context.Background(), inv,
			"continue", "terminate", state.ConcernLoopRisk, reasoning)
		assert.False(t, ok)
	}
	assert.Empty(t, inv.SafetyOverrides)
}

func TestAddOverride_DuplicateSuppressedWithinCooldown(t *testing.T) {
	g, clock := testGate()
	inv := elevatedInvestigation()

	require.True(t, g.AddOverride(context.Background(), inv,
		"continue", "terminate", state.ConcernLoopRisk, []string{"first"}))

	clock.advance(2 * time.Second)
	ok := g.AddOverride(context.Background(), inv,
		"continue", "terminate", state.ConcernLoopRisk, []string{"repeat"})

	assert.False(t, ok, "same key inside the cooldown")
	assert.Len(t, inv.SafetyOverrides, 1, "only the first override stored")
	assert.Equal(t, 1, inv.OverrideDuplicatesSuppressed["LOOP_RISK|continue|terminate"])
}

func TestAddOverride_DifferentKeyNotADuplicate(t *testing.T) {
	g, clock := testGate()
	inv := elevatedInvestigation()

	require.True(t, g.AddOverride(context.Background(), inv,
		"continue", "terminate", state.ConcernLoopRisk, []string{"loops"}))

	clock.advance(time.Second)
	ok := g.AddOverride(context.Background(), inv,
		"continue", "terminate", state.ConcernTimeoutRisk, []string{"time"})

	assert.True(t, ok, "different concern type is a different key")
	assert.Len(t, inv.SafetyOverrides, 2)
}

func TestAddOverride_AcceptedAfterCooldown(t *testing.T) {
	g, clock := testGate()
	inv := elevatedInvestigation()

	require.True(t, g.AddOverride(context.Background(), inv,
		"continue", "terminate", state.ConcernLoopRisk, []string{"first"}))

	clock.advance(6 * time.Second)
	ok := g.AddOverride(context.Background(), inv,
		"continue", "terminate", state.ConcernLoopRisk, []string{"second"})

	assert.True(t, ok)
	assert.Len(t, inv.SafetyOverrides, 2)
	assert.Empty(t, inv.OverrideDuplicatesSuppressed)
}

func TestAddOverride_StormSuppression(t *testing.T) {
	g, clock := testGate()
	inv := elevatedInvestigation()

	// Eight distinct overrides inside the storm window
	for i := 0; i < 8; i++ {
		ok := g.AddOverride(context.Background(), inv,
			fmt.Sprintf("decision-%d", i), "terminate", state.ConcernLoopRisk,
			[]string{"reason"})
		require.True(t, ok, "override %d", i)
		clock.advance(100 * time.Millisecond)
	}

	// The ninth trips the storm limit
	ok := g.AddOverride(context.Background(), inv,
		"decision-8", "terminate", state.ConcernLoopRisk, []string{"reason"})

	assert.False(t, ok)
	assert.Len(t, inv.SafetyOverrides, 8)
	assert.Equal(t, 1, inv.OverrideStormsDetected)

	last := inv.DecisionAuditTrail[len(inv.DecisionAuditTrail)-1]
	assert.Equal(t, "override_storm_suppression", last.Kind, "storm still leaves an audit entry")
}

func TestAddOverride_StormWindowSlides(t *testing.T) {
	g, clock := testGate()
	inv := elevatedInvestigation()

	for i := 0; i < 8; i++ {
		require.True(t, g.AddOverride(context.Background(), inv,
			fmt.Sprintf("decision-%d", i), "terminate", state.ConcernLoopRisk,
			[]string{"reason"}))
		clock.advance(100 * time.Millisecond)
	}

	// Once the early overrides age out of the window, new ones pass again
	clock.advance(6 * time.Second)
	ok := g.AddOverride(context.Background(), inv,
		"decision-9", "terminate", state.ConcernLoopRisk, []string{"reason"})

	assert.True(t, ok)
	assert.Zero(t, inv.OverrideStormsDetected)
}
