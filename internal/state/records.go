package state

import "time"

// ConcernType identifies which safety check raised a concern.
type ConcernType string

const (
	ConcernLoopRisk             ConcernType = "LOOP_RISK"
	ConcernResourcePressure     ConcernType = "RESOURCE_PRESSURE"
	ConcernConfidenceDrop       ConcernType = "CONFIDENCE_DROP"
	ConcernEvidenceInsufficient ConcernType = "EVIDENCE_INSUFFICIENT"
	ConcernTimeoutRisk          ConcernType = "TIMEOUT_RISK"
)

// Severity orders safety concerns from low to critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRank supports ordering comparisons between severities.
var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// AtLeast reports whether s is at or above other in severity.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

// Valid reports whether s is one of the four known severities.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// defaultRecommendedAction stands in when a caller supplies no action.
// Concerns must never carry an empty action.
const defaultRecommendedAction = "review investigation state"

// SafetyConcern is one detected risk condition for the current tick.
type SafetyConcern struct {
	Type              ConcernType            `json:"concern_type"`
	Severity          Severity               `json:"severity"`
	Message           string                 `json:"message"`
	Metrics           map[string]float64     `json:"metrics,omitempty"`
	RecommendedAction string                 `json:"recommended_action"`
	CreatedAt         time.Time              `json:"created_at"`
}

// NewSafetyConcern builds a concern, defaulting severity to medium and the
// recommended action to a non-empty stand-in when callers omit them.
func NewSafetyConcern(ct ConcernType, severity Severity, message, action string, metrics map[string]float64) SafetyConcern {
	if !severity.Valid() {
		severity = SeverityMedium
	}
	if action == "" {
		action = defaultRecommendedAction
	}
	return SafetyConcern{
		Type:              ct,
		Severity:          severity,
		Message:           message,
		Metrics:           metrics,
		RecommendedAction: action,
		CreatedAt:         time.Now().UTC(),
	}
}

// SafetyOverride records one accepted override of the primary decision.
// Created only when the override gate accepts; append-only, never mutated.
type SafetyOverride struct {
	OriginalDecision string      `json:"original_decision"`
	SafetyDecision   string      `json:"safety_decision"`
	ConcernType      ConcernType `json:"concern_type"`
	Reasoning        []string    `json:"reasoning"`
	CreatedAt        time.Time   `json:"created_at"`
}

// AuditEntry is one line in the decision audit trail. Storm suppressions
// appear here as "override_storm_suppression" entries without a
// corresponding SafetyOverride.
type AuditEntry struct {
	Kind      string                 `json:"kind"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}
