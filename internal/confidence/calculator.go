package confidence

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog/log"
)

// ErrNoValidConfidence is returned by Calculate when no value survives
// sanitization. Callers on the investigation path must use SafeCalculate,
// which converts it into the fallback result.
var ErrNoValidConfidence = errors.New("no valid confidence values after sanitization")

// Input is the tagged union of accepted calculator inputs: a typed
// field map or a legacy string-keyed map. One normalization function maps
// both onto the typed form so no downstream code guesses shapes.
type Input struct {
	typed map[FieldType]float64
	raw   map[string]float64
	isRaw bool
}

// TypedInput wraps an already-typed field map.
func TypedInput(m map[FieldType]float64) Input {
	return Input{typed: m}
}

// RawInput wraps a legacy string-keyed map (e.g. decoded JSON).
func RawInput(m map[string]float64) Input {
	return Input{raw: m, isRaw: true}
}

// rawFieldNames maps legacy keys onto field types.
var rawFieldNames = map[string]FieldType{
	"ai_confidence":       FieldAI,
	"evidence_confidence": FieldEvidence,
	"tool_confidence":     FieldTool,
	"domain_confidence":   FieldDomain,
	"confidence_score":    FieldConfidenceScore,
	"confidence":          FieldConfidence,
	"overall":             FieldOverall,
	"overall_confidence":  FieldOverall,
}

// normalize converts the input to the typed form. Unknown legacy keys are
// dropped with a recorded issue.
func (in Input) normalize() (map[FieldType]float64, []string) {
	if !in.isRaw {
		out := make(map[FieldType]float64, len(in.typed))
		for ft, v := range in.typed {
			out[ft] = v
		}
		return out, nil
	}

	out := make(map[FieldType]float64, len(in.raw))
	var issues []string
	keys := make([]string, 0, len(in.raw))
	for k := range in.raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ft, ok := rawFieldNames[k]
		if !ok {
			issues = append(issues, fmt.Sprintf("unknown confidence field %q ignored", k))
			continue
		}
		out[ft] = in.raw[k]
	}
	return out, issues
}

// sanitize drops non-finite and out-of-range values per field, recording an
// issue for each rejection rather than aborting the whole calculation.
func sanitize(values map[FieldType]float64) (map[FieldType]float64, []string) {
	valid := make(map[FieldType]float64, len(values))
	var issues []string

	fields := make([]FieldType, 0, len(values))
	for ft := range values {
		fields = append(fields, ft)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })

	for _, ft := range fields {
		v := values[ft]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			issues = append(issues, fmt.Sprintf("field %s rejected: non-finite value", ft))
			continue
		}
		if v < 0 || v > 1 {
			issues = append(issues, fmt.Sprintf("field %s rejected: %g outside [0,1]", ft, v))
			continue
		}
		valid[ft] = v
	}
	return valid, issues
}

// Calculate produces the weighted overall confidence for the given input.
//
// Order of precedence: a valid OVERALL value passes through unchanged;
// otherwise the weighted average over the default weight table; otherwise
// the unweighted mean of whatever valid values exist. Only when nothing
// valid remains does it return ErrNoValidConfidence.
func Calculate(input Input) (*Consolidated, error) {
	normalized, issues := input.normalize()
	valid, sanIssues := sanitize(normalized)
	issues = append(issues, sanIssues...)

	if len(valid) == 0 {
		return nil, fmt.Errorf("calculating confidence from %d inputs: %w", len(normalized), ErrNoValidConfidence)
	}

	validation := ValidateSources(valid)
	issues = append(issues, validation.Issues...)

	overall, method := computeOverall(valid)
	components := componentScores(valid)

	return NewConsolidated(
		overall,
		ClassifyLevel(overall),
		components,
		validation.ConsistencyScore,
		validation.ReliabilityScore,
		issues,
		valid,
		method,
	)
}

// SafeCalculate is the investigation-path entry point: it never fails.
// A calculation error becomes the fixed fallback confidence with the
// failure recorded as a quality issue.
func SafeCalculate(input Input) *Consolidated {
	result, err := Calculate(input)
	if err == nil {
		return result
	}

	log.Warn().Err(err).Msg("confidence calculation failed; using fallback")

	normalized, issues := input.normalize()
	_, sanIssues := sanitize(normalized)
	issues = append(issues, sanIssues...)
	issues = append(issues, "no valid confidence values; using fallback confidence")

	fallback, ferr := NewConsolidated(
		FallbackScore,
		LevelMediumFallback,
		nil,
		0, 0,
		issues,
		nil,
		MethodFallback,
	)
	if ferr != nil {
		// Unreachable: the fallback constants are in range.
		log.Error().Err(ferr).Msg("constructing fallback confidence")
		return &Consolidated{OverallScore: FallbackScore, Level: LevelMediumFallback, Method: MethodFallback}
	}
	return fallback
}

// computeOverall applies the precedence rules over an already-sanitized map.
func computeOverall(valid map[FieldType]float64) (score float64, method string) {
	if overall, ok := valid[FieldOverall]; ok {
		return overall, MethodPassthrough
	}

	var weightedSum, weightTotal float64
	for ft, w := range defaultWeights {
		if v, ok := valid[ft]; ok {
			weightedSum += v * w
			weightTotal += w
		}
	}
	if weightTotal > 0 {
		return weightedSum / weightTotal, MethodWeighted
	}

	var sum float64
	for _, v := range valid {
		sum += v
	}
	return sum / float64(len(valid)), MethodMean
}

// componentScores extracts the per-component breakdown (ai/evidence/tool/
// domain) from the valid set.
func componentScores(valid map[FieldType]float64) map[FieldType]float64 {
	components := make(map[FieldType]float64)
	for _, ft := range []FieldType{FieldAI, FieldEvidence, FieldTool, FieldDomain} {
		if v, ok := valid[ft]; ok {
			components[ft] = v
		}
	}
	if len(components) == 0 {
		return nil
	}
	return components
}
