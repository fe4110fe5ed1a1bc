// Package state defines the single mutable aggregate the consolidation
// engine operates on: one investigation's counters, findings, confidence
// fields, and append-only safety logs. The aggregate is owned by the
// orchestrator for exactly one investigation; engine code mutates it only
// through the functions in the confidence, safety, and risk packages, and
// never holds it across investigations.
package state

import (
	"encoding/json"
	"fmt"
	"time"
)

// Safety levels the orchestrator can place an investigation in. The
// override gate only records overrides at elevated or emergency.
const (
	SafetyLevelNormal    = "normal"
	SafetyLevelElevated  = "elevated"
	SafetyLevelEmergency = "emergency"
)

// Investigation is the per-investigation aggregate. Created by the
// orchestrator at investigation start, mutated exclusively by the engine
// during each decision cycle, persisted or discarded by the orchestrator
// at the end. Single writer; never shared between concurrent callers.
type Investigation struct {
	ID string `json:"id,omitempty"`

	// Running counters maintained by the orchestrator.
	OrchestratorLoops int     `json:"orchestrator_loops"`
	ResourcePressure  float64 `json:"resource_pressure"`
	SafetyLevel       string  `json:"safety_level,omitempty"`
	StartTime         string  `json:"start_time,omitempty"`

	// Confidence fields. Pointers distinguish "absent" from zero.
	AIConfidence       *float64  `json:"ai_confidence,omitempty"`
	ConfidenceScore    *float64  `json:"confidence_score,omitempty"`
	Confidence         *float64  `json:"confidence,omitempty"`
	EvidenceConfidence *float64  `json:"evidence_confidence,omitempty"`
	ConfidenceEvolution []float64 `json:"confidence_evolution,omitempty"`

	// ConfidenceConsolidation is the metadata block the applicator attaches
	// after each consolidation: breakdown, source map, reliability and
	// consistency ratings, issue count.
	ConfidenceConsolidation map[string]interface{} `json:"confidence_consolidation,omitempty"`

	// Collected findings and raw evidence.
	AIDecisions    []AIDecision              `json:"ai_decisions,omitempty"`
	SnowflakeData  *SnowflakeData            `json:"snowflake_data,omitempty"`
	ToolResults    map[string]interface{}    `json:"tool_results,omitempty"`
	DomainFindings map[string]*DomainFinding `json:"domain_findings,omitempty"`
	ToolsUsed      ToolList                  `json:"tools_used,omitempty"`
	EvidenceStrength float64                 `json:"evidence_strength,omitempty"`

	// Append-only safety logs.
	SafetyConcerns               []SafetyConcern  `json:"safety_concerns,omitempty"`
	SafetyOverrides              []SafetyOverride `json:"safety_overrides,omitempty"`
	AIOverrideReasons            []string         `json:"ai_override_reasons,omitempty"`
	OverrideDuplicatesSuppressed map[string]int   `json:"override_duplicates_suppressed,omitempty"`
	OverrideStormsDetected       int              `json:"override_storms_detected,omitempty"`
	DecisionAuditTrail           []AuditEntry     `json:"decision_audit_trail,omitempty"`

	// Anti-flap snapshot from the previous tick.
	PreviousRiskScore      *float64 `json:"_previous_risk_score,omitempty"`
	PreviousEvidenceHash   string   `json:"_previous_evidence_hash,omitempty"`
	PreviousToolsCount     int      `json:"_previous_tools_count,omitempty"`
	PreviousEvidencePoints int      `json:"_previous_evidence_points,omitempty"`
}

// AIDecision is one entry in the orchestrator's decision history. The
// concern detector only reads the evidence quality of the latest entry.
type AIDecision struct {
	Decision        string    `json:"decision,omitempty"`
	EvidenceQuality float64   `json:"evidence_quality"`
	Timestamp       time.Time `json:"timestamp,omitempty"`
}

// SnowflakeData holds the raw transaction rows pulled from the warehouse.
type SnowflakeData struct {
	Results []map[string]interface{} `json:"results,omitempty"`
}

// DomainFinding is one domain agent's output. RiskScore is nil when the
// domain had insufficient signal; nil never means safe.
type DomainFinding struct {
	RiskScore      *float64               `json:"risk_score,omitempty"`
	Evidence       []string               `json:"evidence,omitempty"`
	RiskIndicators []string               `json:"risk_indicators,omitempty"`
	LLMAnalysis    map[string]interface{} `json:"llm_analysis,omitempty"`
}

// ToolList normalizes the heterogeneous tools_used representations seen at
// the orchestrator boundary (bare strings or {"name": ...} objects) into
// plain tool-name strings, so nothing downstream ever guesses shapes.
type ToolList []string

// UnmarshalJSON accepts a mixed array of strings and objects carrying a
// "name" or "tool_name" field. Entries with neither are dropped.
func (t *ToolList) UnmarshalJSON(data []byte) error {
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing tools_used: %w", err)
	}
	names := make([]string, 0, len(raw))
	for _, entry := range raw {
		switch v := entry.(type) {
		case string:
			if v != "" {
				names = append(names, v)
			}
		case map[string]interface{}:
			if name, ok := v["name"].(string); ok && name != "" {
				names = append(names, name)
			} else if name, ok := v["tool_name"].(string); ok && name != "" {
				names = append(names, name)
			}
		}
	}
	*t = names
	return nil
}

// Contains reports whether the named tool appears in the list.
func (t ToolList) Contains(name string) bool {
	for _, n := range t {
		if n == name {
			return true
		}
	}
	return false
}

// LatestEvidenceQuality returns the evidence quality of the most recent AI
// decision, or false when no decisions have been recorded.
func (inv *Investigation) LatestEvidenceQuality() (float64, bool) {
	if len(inv.AIDecisions) == 0 {
		return 0, false
	}
	return inv.AIDecisions[len(inv.AIDecisions)-1].EvidenceQuality, true
}

// RecordConfidence appends a value to the confidence evolution log.
func (inv *Investigation) RecordConfidence(v float64) {
	inv.ConfidenceEvolution = append(inv.ConfidenceEvolution, v)
}

// Load parses an investigation state document from JSON. The orchestrator
// owns the wire format; this is the boundary where tool identifiers and
// other loosely-shaped inputs get normalized.
func Load(data []byte) (*Investigation, error) {
	var inv Investigation
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("parsing investigation state: %w", err)
	}
	return &inv, nil
}
