package risk

import "github.com/olorin-ai/verdict/internal/state"

// Core coverage domains. Coverage counts how many of these produced an
// actual score this tick.
var coverageDomains = []string{"network", "location", "device"}

// Uncertainty uplift added to the fused risk when domain coverage is
// sparse. Missing data never lowers risk: absence of evidence is not
// evidence of absence.
const (
	UpliftPoorCoverage     = 0.15
	UpliftModerateCoverage = 0.10
)

// DomainScores collects the per-domain risk scores from the findings. A
// domain with insufficient signal contributes a nil entry, never an
// arbitrary low number.
func DomainScores(inv *state.Investigation) map[string]*float64 {
	scores := make(map[string]*float64, len(inv.DomainFindings))
	for domain, finding := range inv.DomainFindings {
		if finding == nil {
			scores[domain] = nil
			continue
		}
		scores[domain] = finding.RiskScore
	}
	return scores
}

// CoverageScore counts how many of the core domains (network, location,
// device) produced a score.
func CoverageScore(domainScores map[string]*float64) int {
	count := 0
	for _, domain := range coverageDomains {
		if s, ok := domainScores[domain]; ok && s != nil {
			count++
		}
	}
	return count
}

// UncertaintyUplift returns the additive risk increase for the given
// coverage: +0.15 for poor coverage (at most one domain), +0.10 for
// moderate (two domains), 0 for full coverage. Monotonically
// non-increasing in coverage.
func UncertaintyUplift(coverage int) float64 {
	switch {
	case coverage <= 1:
		return UpliftPoorCoverage
	case coverage == 2:
		return UpliftModerateCoverage
	default:
		return 0
	}
}

// ApplyUplift adds the uncertainty uplift for the given coverage to the
// fused risk, capped at 1.0.
func ApplyUplift(risk float64, coverage int) float64 {
	uplifted := risk + UncertaintyUplift(coverage)
	if uplifted > 1 {
		return 1
	}
	return uplifted
}
