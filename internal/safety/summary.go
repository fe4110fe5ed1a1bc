package safety

import (
	"strings"

	"github.com/olorin-ai/verdict/internal/state"
)

// Summary aggregates a tick's concerns for reporting.
type Summary struct {
	Total              int                       `json:"total"`
	BySeverity         map[state.Severity]int    `json:"by_severity,omitempty"`
	ByType             map[state.ConcernType]int `json:"by_type,omitempty"`
	HasCritical        bool                      `json:"has_critical"`
	RecommendedActions []string                  `json:"recommended_actions,omitempty"`
}

// Summarize groups concerns by severity and type, flags criticals, and
// deduplicates recommended actions case-insensitively in first-seen order.
func Summarize(concerns []state.SafetyConcern) Summary {
	s := Summary{
		Total:      len(concerns),
		BySeverity: make(map[state.Severity]int),
		ByType:     make(map[state.ConcernType]int),
	}

	seen := make(map[string]bool)
	for _, c := range concerns {
		s.BySeverity[c.Severity]++
		s.ByType[c.Type]++
		if c.Severity == state.SeverityCritical {
			s.HasCritical = true
		}
		key := strings.ToLower(strings.TrimSpace(c.RecommendedAction))
		if key != "" && !seen[key] {
			seen[key] = true
			s.RecommendedActions = append(s.RecommendedActions, c.RecommendedAction)
		}
	}
	return s
}
