// Package limits holds the immutable per-investigation configuration the
// orchestrator hands to the consolidation engine: safety thresholds for the
// concern detector and override gate, and evidence thresholds for the risk
// gates. The engine only ever reads these values; they are loaded once per
// process (or per investigation) and never mutated afterwards.
package limits

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so limits documents can carry human-readable
// values ("5s", "2m"). Bare integers are read as nanoseconds.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\" or integer nanoseconds")
	}
	return d.parse(s)
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalJSON implements json.Unmarshaler with the same convention.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return d.parse(s)
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\" or integer nanoseconds")
	}
	*d = Duration(n)
	return nil
}

// parse reads either a time.ParseDuration string or bare integer
// nanoseconds.
func (d *Duration) parse(s string) error {
	if parsed, err := time.ParseDuration(s); err == nil {
		*d = Duration(parsed)
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parsing duration %q: expected a value like \"5s\"", s)
	}
	*d = Duration(n)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// SafetyLimits bounds how long and how hard a single investigation may run
// before the concern detector starts flagging it.
type SafetyLimits struct {
	// MaxLoops is the hard ceiling on orchestrator loops per investigation.
	MaxLoops int `yaml:"max_loops" json:"max_loops"`

	// MaxInvestigationMinutes is the wall-clock budget for one investigation.
	MaxInvestigationMinutes float64 `yaml:"max_investigation_minutes" json:"max_investigation_minutes"`

	// LoopWarningFraction of MaxLoops at which loop-risk concerns begin.
	LoopWarningFraction float64 `yaml:"loop_warning_fraction" json:"loop_warning_fraction"`

	// TimeWarningFraction of MaxInvestigationMinutes at which timeout-risk
	// concerns begin. Past the full budget the concern escalates to critical.
	TimeWarningFraction float64 `yaml:"time_warning_fraction" json:"time_warning_fraction"`

	// PressureHigh is the resource-pressure level that raises a
	// lower-severity resource concern.
	PressureHigh float64 `yaml:"pressure_high" json:"pressure_high"`

	// PressureCritical is the resource-pressure level that raises the
	// higher-severity resource concern. Only one of the two tiers fires
	// per tick.
	PressureCritical float64 `yaml:"pressure_critical" json:"pressure_critical"`

	// ConfidenceDropDelta is the fall between consecutive confidence
	// evolution entries that raises a confidence-drop concern.
	ConfidenceDropDelta float64 `yaml:"confidence_drop_delta" json:"confidence_drop_delta"`

	// EvidenceMinLoops is how many loops an investigation must have run
	// before evidence insufficiency is flagged at all.
	EvidenceMinLoops int `yaml:"evidence_min_loops" json:"evidence_min_loops"`

	// EvidenceQualityFloor is the evidence quality below which, after
	// EvidenceMinLoops loops, an evidence-insufficiency concern fires.
	EvidenceQualityFloor float64 `yaml:"evidence_quality_floor" json:"evidence_quality_floor"`

	// OverrideMinPressure is the resource pressure below which the
	// override gate refuses to record safety overrides.
	OverrideMinPressure float64 `yaml:"override_min_pressure" json:"override_min_pressure"`

	// OverrideCooldown suppresses repeat overrides with the same
	// (concern, original, safety) key inside this window.
	OverrideCooldown Duration `yaml:"override_cooldown" json:"override_cooldown"`

	// OverrideStormWindow and OverrideStormLimit bound the total override
	// rate: more than OverrideStormLimit overrides of any kind inside the
	// trailing window is treated as an override storm and suppressed.
	OverrideStormWindow Duration `yaml:"override_storm_window" json:"override_storm_window"`
	OverrideStormLimit  int      `yaml:"override_storm_limit" json:"override_storm_limit"`
}

// EvidenceThresholds bounds what counts as enough corroboration to publish
// a numeric risk verdict.
type EvidenceThresholds struct {
	// MinEvidencePoints across domain findings required when no tool
	// produced a non-empty result.
	MinEvidencePoints int `yaml:"min_evidence_points" json:"min_evidence_points"`

	// MinToolResults is the number of non-empty tool results that satisfy
	// the evidence gate on its own.
	MinToolResults int `yaml:"min_tool_results" json:"min_tool_results"`

	// MinDomainsPerStrategy and MinToolsPerStrategy are the per-strategy
	// coverage floors the orchestrator plans against.
	MinDomainsPerStrategy int `yaml:"min_domains_per_strategy" json:"min_domains_per_strategy"`
	MinToolsPerStrategy   int `yaml:"min_tools_per_strategy" json:"min_tools_per_strategy"`

	// ComprehensiveMinRecords is the Snowflake result-set size at which
	// single-source internal data is considered comprehensive (together
	// with fraud-relevant fields and at least one high-risk record).
	ComprehensiveMinRecords int `yaml:"comprehensive_min_records" json:"comprehensive_min_records"`

	// StrengthComprehensive and StrengthDefault are the evidence-strength
	// floors applied during pre-publish validation.
	StrengthComprehensive float64 `yaml:"strength_comprehensive" json:"strength_comprehensive"`
	StrengthDefault       float64 `yaml:"strength_default" json:"strength_default"`

	// AntiFlapThreshold is the maximum risk-score swing allowed between
	// ticks when the underlying evidence signature has not changed.
	AntiFlapThreshold float64 `yaml:"anti_flap_threshold" json:"anti_flap_threshold"`

	// DiscordanceModelHigh is the internal model score at or above which a
	// MINIMAL external threat signal counts as discordant.
	DiscordanceModelHigh float64 `yaml:"discordance_model_high" json:"discordance_model_high"`

	// DiscordanceRiskCap is the maximum publishable risk while signals
	// remain discordant.
	DiscordanceRiskCap float64 `yaml:"discordance_risk_cap" json:"discordance_risk_cap"`
}

// Document is the on-disk limits file: one safety section, one evidence
// section, plus computed provenance fields.
type Document struct {
	Safety   SafetyLimits       `yaml:"safety" json:"safety"`
	Evidence EvidenceThresholds `yaml:"evidence" json:"evidence"`

	// Computed fields (not serialized from YAML)
	Hash       string `yaml:"-" json:"-"`
	VersionTag string `yaml:"-" json:"-"`
}

// DefaultSafetyLimits returns the stock safety limits used when the
// orchestrator supplies none.
func DefaultSafetyLimits() SafetyLimits {
	return SafetyLimits{
		MaxLoops:                15,
		MaxInvestigationMinutes: 30,
		LoopWarningFraction:     0.6,
		TimeWarningFraction:     0.8,
		PressureHigh:            0.7,
		PressureCritical:        0.85,
		ConfidenceDropDelta:     0.3,
		EvidenceMinLoops:        5,
		EvidenceQualityFloor:    0.4,
		OverrideMinPressure:     0.35,
		OverrideCooldown:        Duration(5 * time.Second),
		OverrideStormWindow:     Duration(5 * time.Second),
		OverrideStormLimit:      8,
	}
}

// DefaultEvidenceThresholds returns the stock evidence thresholds.
func DefaultEvidenceThresholds() EvidenceThresholds {
	return EvidenceThresholds{
		MinEvidencePoints:       3,
		MinToolResults:          1,
		MinDomainsPerStrategy:   2,
		MinToolsPerStrategy:     1,
		ComprehensiveMinRecords: 5,
		StrengthComprehensive:   0.3,
		StrengthDefault:         0.5,
		AntiFlapThreshold:       0.3,
		DiscordanceModelHigh:    0.8,
		DiscordanceRiskCap:      0.4,
	}
}

// ComputeHash generates the SHA-256 hash of the limits file content and sets
// VersionTag to "sha256:{first8chars}".
func (d *Document) ComputeHash(content []byte) {
	hash := sha256.Sum256(content)
	d.Hash = hex.EncodeToString(hash[:])
	d.VersionTag = fmt.Sprintf("sha256:%s", d.Hash[:8])
}

// Validate rejects documents whose thresholds are out of range or
// internally inconsistent.
func (d *Document) Validate() error {
	s := d.Safety
	if s.MaxLoops <= 0 {
		return fmt.Errorf("safety.max_loops must be positive (got %d)", s.MaxLoops)
	}
	if s.MaxInvestigationMinutes <= 0 {
		return fmt.Errorf("safety.max_investigation_minutes must be positive (got %g)", s.MaxInvestigationMinutes)
	}
	for name, frac := range map[string]float64{
		"safety.loop_warning_fraction": s.LoopWarningFraction,
		"safety.time_warning_fraction": s.TimeWarningFraction,
	} {
		if frac <= 0 || frac >= 1 {
			return fmt.Errorf("%s must be in (0,1) (got %g)", name, frac)
		}
	}
	for name, lvl := range map[string]float64{
		"safety.pressure_high":          s.PressureHigh,
		"safety.pressure_critical":      s.PressureCritical,
		"safety.confidence_drop_delta":  s.ConfidenceDropDelta,
		"safety.evidence_quality_floor": s.EvidenceQualityFloor,
		"safety.override_min_pressure":  s.OverrideMinPressure,
	} {
		if lvl < 0 || lvl > 1 {
			return fmt.Errorf("%s must be in [0,1] (got %g)", name, lvl)
		}
	}
	if s.PressureHigh >= s.PressureCritical {
		return fmt.Errorf("safety.pressure_high (%g) must be below safety.pressure_critical (%g)", s.PressureHigh, s.PressureCritical)
	}
	if s.OverrideStormLimit <= 0 {
		return fmt.Errorf("safety.override_storm_limit must be positive (got %d)", s.OverrideStormLimit)
	}

	e := d.Evidence
	if e.MinEvidencePoints <= 0 {
		return fmt.Errorf("evidence.min_evidence_points must be positive (got %d)", e.MinEvidencePoints)
	}
	if e.ComprehensiveMinRecords <= 0 {
		return fmt.Errorf("evidence.comprehensive_min_records must be positive (got %d)", e.ComprehensiveMinRecords)
	}
	for name, v := range map[string]float64{
		"evidence.strength_comprehensive": e.StrengthComprehensive,
		"evidence.strength_default":       e.StrengthDefault,
		"evidence.anti_flap_threshold":    e.AntiFlapThreshold,
		"evidence.discordance_model_high": e.DiscordanceModelHigh,
		"evidence.discordance_risk_cap":   e.DiscordanceRiskCap,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0,1] (got %g)", name, v)
		}
	}
	if e.StrengthComprehensive > e.StrengthDefault {
		return fmt.Errorf("evidence.strength_comprehensive (%g) must not exceed evidence.strength_default (%g)", e.StrengthComprehensive, e.StrengthDefault)
	}
	return nil
}
