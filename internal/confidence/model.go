// Package confidence consolidates the heterogeneous confidence signals an
// investigation accumulates (state fields, per-agent results, caller
// context) into one validated, weighted overall confidence with provenance.
//
// The pipeline is extract -> validate -> calculate -> apply. Every stage is
// tolerant of individual bad sources: a malformed value is dropped with a
// recorded quality issue, and only when nothing valid remains does the
// calculator fall back to a fixed conservative default. Nothing in this
// package may abort the hosting investigation.
package confidence

import (
	"fmt"
	"time"
)

// FieldType identifies the source of a confidence value, not its meaning.
type FieldType string

const (
	FieldAI              FieldType = "AI"
	FieldEvidence        FieldType = "EVIDENCE"
	FieldTool            FieldType = "TOOL"
	FieldDomain          FieldType = "DOMAIN"
	FieldConfidenceScore FieldType = "CONFIDENCE_SCORE"
	FieldConfidence      FieldType = "CONFIDENCE"
	FieldOverall         FieldType = "OVERALL"
)

// defaultWeights is the weighting table for the overall calculation.
// Fields not listed here (CONFIDENCE, CONFIDENCE_SCORE) only participate
// in the unweighted-mean fallback.
var defaultWeights = map[FieldType]float64{
	FieldAI:       0.35,
	FieldEvidence: 0.25,
	FieldTool:     0.20,
	FieldDomain:   0.20,
}

// Confidence levels in descending order.
const (
	LevelCritical       = "CRITICAL"
	LevelHigh           = "HIGH"
	LevelMedium         = "MEDIUM"
	LevelLow            = "LOW"
	LevelMinimal        = "MINIMAL"
	LevelMediumFallback = "MEDIUM_FALLBACK"
)

// FallbackScore is returned when no valid confidence source survives
// sanitization. Conservative middle ground, paired with LevelMediumFallback.
const FallbackScore = 0.5

// Calculation method tags recorded on the consolidated result.
const (
	MethodWeighted    = "weighted_average"
	MethodPassthrough = "overall_passthrough"
	MethodMean        = "unweighted_mean"
	MethodFallback    = "fallback"
)

// ClassifyLevel maps an overall score onto its level description with a
// descending threshold scan.
func ClassifyLevel(score float64) string {
	switch {
	case score >= 0.9:
		return LevelCritical
	case score >= 0.75:
		return LevelHigh
	case score >= 0.5:
		return LevelMedium
	case score >= 0.25:
		return LevelLow
	default:
		return LevelMinimal
	}
}

// Consolidated is the validated outcome of one confidence consolidation.
// Construct via NewConsolidated only: every bounded field is range-checked
// at construction and out-of-range values fail rather than clamp.
type Consolidated struct {
	OverallScore     float64               `json:"overall_score"`
	Level            string                `json:"level_description"`
	Components       map[FieldType]float64 `json:"components,omitempty"`
	ConsistencyScore float64               `json:"consistency_score"`
	ReliabilityScore float64               `json:"reliability_score"`
	QualityIssues    []string              `json:"quality_issues,omitempty"`
	Sources          map[FieldType]float64 `json:"sources,omitempty"`
	Method           string                `json:"method"`
	CreatedAt        time.Time             `json:"created_at"`
}

// NewConsolidated validates and assembles a consolidated confidence.
// components and sources are stored as given (callers must not mutate them
// afterwards). Returns an error for any bounded field outside [0,1].
func NewConsolidated(overall float64, level string, components map[FieldType]float64, consistency, reliability float64, issues []string, sources map[FieldType]float64, method string) (*Consolidated, error) {
	if err := checkUnit("overall_score", overall); err != nil {
		return nil, err
	}
	if err := checkUnit("consistency_score", consistency); err != nil {
		return nil, err
	}
	if err := checkUnit("reliability_score", reliability); err != nil {
		return nil, err
	}
	for ft, v := range components {
		if err := checkUnit(fmt.Sprintf("component %s", ft), v); err != nil {
			return nil, err
		}
	}
	if level == "" {
		return nil, fmt.Errorf("level description must not be empty")
	}
	return &Consolidated{
		OverallScore:     overall,
		Level:            level,
		Components:       components,
		ConsistencyScore: consistency,
		ReliabilityScore: reliability,
		QualityIssues:    issues,
		Sources:          sources,
		Method:           method,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

func checkUnit(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s out of range: %g not in [0,1]", name, v)
	}
	return nil
}

// RatingFor renders a score as a human-readable rating used in the
// consolidation metadata block.
func RatingFor(score float64) string {
	switch {
	case score >= 0.8:
		return "excellent"
	case score >= 0.6:
		return "good"
	case score >= 0.4:
		return "fair"
	default:
		return "poor"
	}
}
