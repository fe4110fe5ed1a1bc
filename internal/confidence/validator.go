package confidence

import (
	"fmt"
	"sort"
)

// inconsistencyDelta is how far above the mean of the other sources a
// single source must sit to be flagged as inconsistent.
const inconsistencyDelta = 0.3

// Validation rates how much the extracted sources agree with each other.
type Validation struct {
	Issues           []string
	ConsistencyScore float64
	ReliabilityScore float64
}

// ValidateSources detects inconsistency between confidence sources and
// derives consistency and reliability scores. It never fails; with a
// single source there is nothing to compare and the issue list is empty.
func ValidateSources(sources map[FieldType]float64) Validation {
	if len(sources) == 0 {
		return Validation{ConsistencyScore: 0, ReliabilityScore: 0}
	}

	// Stable iteration order so issue lists are deterministic.
	fields := make([]FieldType, 0, len(sources))
	for ft := range sources {
		fields = append(fields, ft)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })

	if len(fields) == 1 {
		return Validation{
			ConsistencyScore: 1.0,
			ReliabilityScore: reliability(0, 1),
		}
	}

	var issues []string
	minV, maxV := sources[fields[0]], sources[fields[0]]
	for _, ft := range fields {
		v := sources[ft]
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}

		// Mean of the remaining sources.
		var restSum float64
		for _, other := range fields {
			if other != ft {
				restSum += sources[other]
			}
		}
		restMean := restSum / float64(len(fields)-1)
		if v-restMean >= inconsistencyDelta {
			issues = append(issues, fmt.Sprintf("source %s (%.2f) is inconsistent with the other sources (mean %.2f)", ft, v, restMean))
		}
	}

	// Spread is already normalized: confidence values live in [0,1].
	consistency := 1.0 - (maxV - minV)
	if consistency < 0 {
		consistency = 0
	}

	return Validation{
		Issues:           issues,
		ConsistencyScore: consistency,
		ReliabilityScore: reliability(len(issues), len(fields)),
	}
}

// reliability starts at 1.0 and is penalized for each detected
// inconsistency and for having fewer than three sources to compare.
func reliability(inconsistencies, sourceCount int) float64 {
	score := 1.0 - 0.15*float64(inconsistencies)
	if sourceCount < 3 {
		score -= 0.1 * float64(3-sourceCount)
	}
	if score < 0 {
		return 0
	}
	return score
}
