package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/olorin-ai/verdict/internal/engine"
	"github.com/olorin-ai/verdict/internal/state"
)

// NewRecord projects one tick's outcome into a persistable audit record.
func NewRecord(inv *state.Investigation, out engine.Outcome, limitsVersion string) *Record {
	rec := &Record{
		ID:              uuid.NewString(),
		InvestigationID: inv.ID,
		Timestamp:       time.Now().UTC(),
		Status:          out.Prepublish.Status,
		Published:       out.PublishedRisk != nil,
		RiskScore:       out.PublishedRisk,
		ConfirmedFraud:  out.ConfirmedFraud,
		ConcernCount:    len(out.Concerns),
		OverrideCount:   len(inv.SafetyOverrides),
		StormsDetected:  inv.OverrideStormsDetected,
		Issues:          out.Prepublish.Issues,
		Actions:         out.Actions,
		LimitsVersion:   limitsVersion,
	}
	if out.Confidence != nil {
		rec.ConfidenceScore = out.Confidence.OverallScore
		rec.ConfidenceLevel = out.Confidence.Level
	}
	return rec
}
