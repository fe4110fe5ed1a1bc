package risk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/olorin-ai/verdict/internal/state"
)

// evidenceSnapshot is the canonical form hashed into the evidence
// signature. Field order and sorted keys keep the hash stable across
// ticks with identical evidence.
type evidenceSnapshot struct {
	TransactionDecisions []string          `json:"transaction_decisions"`
	ToolDigests          map[string]string `json:"tool_digests"`
	DomainEvidence       map[string][]string `json:"domain_evidence"`
	DomainIndicators     map[string][]string `json:"domain_indicators"`
}

// EvidenceSignature computes a stable hash over everything contributing to
// the risk score, plus the tool and evidence-point counts compared by the
// anti-flap guard.
func EvidenceSignature(inv *state.Investigation) (hash string, toolsCount, evidencePoints int, err error) {
	snap := evidenceSnapshot{
		ToolDigests:      make(map[string]string),
		DomainEvidence:   make(map[string][]string),
		DomainIndicators: make(map[string][]string),
	}

	if inv.SnowflakeData != nil {
		for _, row := range inv.SnowflakeData.Results {
			for _, field := range decisionFields {
				if v, ok := row[field].(string); ok {
					snap.TransactionDecisions = append(snap.TransactionDecisions, field+"="+v)
				}
			}
		}
		sort.Strings(snap.TransactionDecisions)
	}

	for name, result := range inv.ToolResults {
		if isEmptyToolResult(result) {
			continue
		}
		digest, derr := digestValue(result)
		if derr != nil {
			return "", 0, 0, fmt.Errorf("digesting tool result %s: %w", name, derr)
		}
		snap.ToolDigests[name] = digest
	}

	for domain, finding := range inv.DomainFindings {
		if finding == nil {
			continue
		}
		if len(finding.Evidence) > 0 {
			ev := append([]string(nil), finding.Evidence...)
			sort.Strings(ev)
			snap.DomainEvidence[domain] = ev
		}
		if len(finding.RiskIndicators) > 0 {
			ind := append([]string(nil), finding.RiskIndicators...)
			sort.Strings(ind)
			snap.DomainIndicators[domain] = ind
		}
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return "", 0, 0, fmt.Errorf("marshaling evidence snapshot: %w", err)
	}
	sum := sha256.Sum256(payload)

	return hex.EncodeToString(sum[:]), len(snap.ToolDigests), EvidencePoints(inv), nil
}

func digestValue(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8]), nil
}

// CheckAntiFlapGuard damps large risk swings that occur without any change
// in underlying evidence. When the proposed risk differs from the previous
// tick's by more than the threshold while the evidence signature and
// counts are unchanged, the risk is clamped to within the threshold of the
// previous value and the clamp is recorded in the audit trail. Otherwise
// the proposed risk passes through and the new snapshot is stored.
//
// The guard fails open: any internal failure returns the proposed risk
// unchanged rather than blocking the investigation.
func CheckAntiFlapGuard(ctx context.Context, inv *state.Investigation, proposedRisk, threshold float64) float64 {
	_, span := tracer.Start(ctx, "risk.anti_flap_guard")
	defer span.End()

	hash, toolsCount, evidencePoints, err := EvidenceSignature(inv)
	if err != nil {
		log.Warn().Err(err).Msg("anti-flap guard failed; passing proposed risk through")
		span.SetAttributes(attribute.String("anti_flap.outcome", "fail_open"))
		return proposedRisk
	}

	unchanged := inv.PreviousRiskScore != nil &&
		inv.PreviousEvidenceHash == hash &&
		inv.PreviousToolsCount == toolsCount &&
		inv.PreviousEvidencePoints == evidencePoints

	if unchanged {
		prev := *inv.PreviousRiskScore
		delta := proposedRisk - prev
		if delta > threshold || delta < -threshold {
			clamped := prev + threshold
			if delta < 0 {
				clamped = prev - threshold
			}
			inv.DecisionAuditTrail = append(inv.DecisionAuditTrail, state.AuditEntry{
				Kind: "anti_flap_clamp",
				Detail: map[string]interface{}{
					"proposed_risk": proposedRisk,
					"previous_risk": prev,
					"clamped_risk":  clamped,
					"threshold":     threshold,
					"evidence_hash": hash,
				},
				CreatedAt: time.Now().UTC(),
			})
			log.Info().
				Float64("proposed_risk", proposedRisk).
				Float64("previous_risk", prev).
				Float64("clamped_risk", clamped).
				Msg("anti-flap guard clamped risk swing with unchanged evidence")

			inv.PreviousRiskScore = &clamped
			span.SetAttributes(
				attribute.String("anti_flap.outcome", "clamped"),
				attribute.Float64("anti_flap.clamped_risk", clamped),
			)
			return clamped
		}
	}

	inv.PreviousRiskScore = &proposedRisk
	inv.PreviousEvidenceHash = hash
	inv.PreviousToolsCount = toolsCount
	inv.PreviousEvidencePoints = evidencePoints
	span.SetAttributes(attribute.String("anti_flap.outcome", "accepted"))
	return proposedRisk
}
