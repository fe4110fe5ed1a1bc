package limits

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"

	verdictotel "github.com/olorin-ai/verdict/internal/otel"
)

var tracer = verdictotel.Tracer("github.com/olorin-ai/verdict/internal/limits")

// Load reads a limits YAML document from disk, fills defaults for omitted
// fields, validates it, and computes the version tag. A missing file is an
// error: callers that want stock limits should use Defaults instead.
func Load(ctx context.Context, path string) (*Document, error) {
	_, span := tracer.Start(ctx, "limits.load")
	defer span.End()
	span.SetAttributes(attribute.String("limits.path", path))

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading limits file %s: %w", path, err)
	}

	doc, err := Parse(content)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("limits.version_tag", doc.VersionTag))
	return doc, nil
}

// Parse parses limits YAML bytes, applying defaults and validating.
func Parse(content []byte) (*Document, error) {
	doc := Defaults()
	if err := yaml.Unmarshal(content, doc); err != nil {
		return nil, fmt.Errorf("parsing limits YAML: %w", err)
	}
	applyDefaults(doc)
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid limits document: %w", err)
	}
	doc.ComputeHash(content)
	return doc, nil
}

// Defaults returns a document carrying the stock safety limits and evidence
// thresholds, with a fixed "defaults" version tag.
func Defaults() *Document {
	return &Document{
		Safety:     DefaultSafetyLimits(),
		Evidence:   DefaultEvidenceThresholds(),
		VersionTag: "defaults",
	}
}

// applyDefaults backfills zero-valued fields so a partial YAML document
// inherits the stock value for anything it leaves out.
func applyDefaults(d *Document) {
	def := DefaultSafetyLimits()
	if d.Safety.MaxLoops == 0 {
		d.Safety.MaxLoops = def.MaxLoops
	}
	if d.Safety.MaxInvestigationMinutes == 0 {
		d.Safety.MaxInvestigationMinutes = def.MaxInvestigationMinutes
	}
	if d.Safety.LoopWarningFraction == 0 {
		d.Safety.LoopWarningFraction = def.LoopWarningFraction
	}
	if d.Safety.TimeWarningFraction == 0 {
		d.Safety.TimeWarningFraction = def.TimeWarningFraction
	}
	if d.Safety.PressureHigh == 0 {
		d.Safety.PressureHigh = def.PressureHigh
	}
	if d.Safety.PressureCritical == 0 {
		d.Safety.PressureCritical = def.PressureCritical
	}
	if d.Safety.ConfidenceDropDelta == 0 {
		d.Safety.ConfidenceDropDelta = def.ConfidenceDropDelta
	}
	if d.Safety.EvidenceMinLoops == 0 {
		d.Safety.EvidenceMinLoops = def.EvidenceMinLoops
	}
	if d.Safety.EvidenceQualityFloor == 0 {
		d.Safety.EvidenceQualityFloor = def.EvidenceQualityFloor
	}
	if d.Safety.OverrideMinPressure == 0 {
		d.Safety.OverrideMinPressure = def.OverrideMinPressure
	}
	if d.Safety.OverrideCooldown == 0 {
		d.Safety.OverrideCooldown = def.OverrideCooldown
	}
	if d.Safety.OverrideStormWindow == 0 {
		d.Safety.OverrideStormWindow = def.OverrideStormWindow
	}
	if d.Safety.OverrideStormLimit == 0 {
		d.Safety.OverrideStormLimit = def.OverrideStormLimit
	}

	defE := DefaultEvidenceThresholds()
	if d.Evidence.MinEvidencePoints == 0 {
		d.Evidence.MinEvidencePoints = defE.MinEvidencePoints
	}
	if d.Evidence.MinToolResults == 0 {
		d.Evidence.MinToolResults = defE.MinToolResults
	}
	if d.Evidence.MinDomainsPerStrategy == 0 {
		d.Evidence.MinDomainsPerStrategy = defE.MinDomainsPerStrategy
	}
	if d.Evidence.MinToolsPerStrategy == 0 {
		d.Evidence.MinToolsPerStrategy = defE.MinToolsPerStrategy
	}
	if d.Evidence.ComprehensiveMinRecords == 0 {
		d.Evidence.ComprehensiveMinRecords = defE.ComprehensiveMinRecords
	}
	if d.Evidence.StrengthComprehensive == 0 {
		d.Evidence.StrengthComprehensive = defE.StrengthComprehensive
	}
	if d.Evidence.StrengthDefault == 0 {
		d.Evidence.StrengthDefault = defE.StrengthDefault
	}
	if d.Evidence.AntiFlapThreshold == 0 {
		d.Evidence.AntiFlapThreshold = defE.AntiFlapThreshold
	}
	if d.Evidence.DiscordanceModelHigh == 0 {
		d.Evidence.DiscordanceModelHigh = defE.DiscordanceModelHigh
	}
	if d.Evidence.DiscordanceRiskCap == 0 {
		d.Evidence.DiscordanceRiskCap = defE.DiscordanceRiskCap
	}
}
