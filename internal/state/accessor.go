package state

import "fmt"

// Canonical confidence field names written through the accessor.
const (
	FieldConfidence         = "confidence"
	FieldConfidenceScore    = "confidence_score"
	FieldAIConfidence       = "ai_confidence"
	FieldEvidenceConfidence = "evidence_confidence"
)

// ConfidenceAccessor is the single state-access surface the confidence
// applicator writes through. The aggregate implements it once; callers
// depend on the capability, not on the aggregate's structure.
type ConfidenceAccessor interface {
	// ConfidenceField returns the named confidence field and whether it is set.
	ConfidenceField(name string) (float64, bool)
	// SetConfidenceField writes the named confidence field. Unknown names
	// are an error so typos surface instead of silently creating fields.
	SetConfidenceField(name string, value float64) error
	// SetConsolidationMeta attaches the consolidation metadata block.
	SetConsolidationMeta(meta map[string]interface{})
}

var _ ConfidenceAccessor = (*Investigation)(nil)

// ConfidenceField implements ConfidenceAccessor.
func (inv *Investigation) ConfidenceField(name string) (float64, bool) {
	var p *float64
	switch name {
	case FieldConfidence:
		p = inv.Confidence
	case FieldConfidenceScore:
		p = inv.ConfidenceScore
	case FieldAIConfidence:
		p = inv.AIConfidence
	case FieldEvidenceConfidence:
		p = inv.EvidenceConfidence
	default:
		return 0, false
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// SetConfidenceField implements ConfidenceAccessor.
func (inv *Investigation) SetConfidenceField(name string, value float64) error {
	switch name {
	case FieldConfidence:
		inv.Confidence = &value
	case FieldConfidenceScore:
		inv.ConfidenceScore = &value
	case FieldAIConfidence:
		inv.AIConfidence = &value
	case FieldEvidenceConfidence:
		inv.EvidenceConfidence = &value
	default:
		return fmt.Errorf("unknown confidence field %q", name)
	}
	return nil
}

// SetConsolidationMeta implements ConfidenceAccessor.
func (inv *Investigation) SetConsolidationMeta(meta map[string]interface{}) {
	inv.ConfidenceConsolidation = meta
}
