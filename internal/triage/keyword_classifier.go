package triage

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"dispatcher/internal/models"
)

// KeywordClassifier assigns severity by matching indicator phrases in the intake text
// and applying the vulnerability bumps of START triage
type KeywordClassifier struct {
	criticalKeywords      []string
	severeKeywords        []string
	moderateKeywords      []string
	mildKeywords          []string
	vulnerabilityKeywords []string
	fallback              models.Severity
}

// NewKeywordClassifier creates a new keyword classifier
func NewKeywordClassifier(config ClassifierConfig) *KeywordClassifier {
	if !config.FallbackSeverity.Valid() {
		config.FallbackSeverity = models.SeverityModerate
	}

	return &KeywordClassifier{
		criticalKeywords: []string{
			"not breathing", "no pulse", "cardiac arrest", "unconscious",
			"massive bleeding", "massive hemorrhage", "crush", "trapped",
			"severe burn", "stroke", "anaphylaxis", "choking",
			"airway obstruction", "drowning", "electrocution", "amputation",
			"not conscious", "unresponsive",
		},
		severeKeywords: []string{
			"fracture", "broken bone", "chest pain", "difficulty breathing",
			"head injury", "spinal", "moderate burn", "heavy bleeding",
			"altered consciousness", "seizure", "deep wound", "dislocation",
		},
		moderateKeywords: []string{
			"laceration", "sprain", "minor burn", "stitches", "swelling",
			"walking wounded", "pain", "bleeding", "wound", "cut",
		},
		mildKeywords: []string{
			"bruise", "scratch", "anxiety", "minor", "scrape",
			"sore", "tired", "scared", "stressed",
		},
		vulnerabilityKeywords: []string{
			"child", "baby", "infant", "toddler", "elderly", "old man",
			"old woman", "pregnant", "disabled",
		},
		fallback: config.FallbackSeverity,
	}
}

// Classify implements the Classifier interface
func (c *KeywordClassifier) Classify(ctx context.Context, intake Intake) (Assessment, error) {
	if err := ctx.Err(); err != nil {
		return Assessment{}, err
	}

	text := strings.ToLower(intake.Description)
	var risks []string

	// Structured safety answers outrank keywords
	if isFalse(intake.Breathing) {
		risks = append(risks, "NOT BREATHING")
	}
	if isFalse(intake.Conscious) {
		risks = append(risks, "UNCONSCIOUS")
	}
	if isTrue(intake.HeavyBleeding) {
		risks = append(risks, "HEAVY BLEEDING")
	}
	if isTrue(intake.Trapped) {
		risks = append(risks, "TRAPPED")
	}

	critical := matches(text, c.criticalKeywords)
	severe := matches(text, c.severeKeywords)
	moderate := matches(text, c.moderateKeywords)
	mild := matches(text, c.mildKeywords)
	vulnerable := matches(text, c.vulnerabilityKeywords)

	risks = append(risks, critical...)
	risks = append(risks, severe...)

	var a Assessment
	switch {
	case isFalse(intake.Breathing) || isFalse(intake.Conscious) || len(critical) > 0:
		a = Assessment{Severity: models.SeverityCritical, Confidence: math.Min(0.7+0.05*float64(len(critical)), 0.95), Priority: 1}
	case isTrue(intake.HeavyBleeding) || len(severe) > 0:
		a = Assessment{Severity: models.SeveritySevere, Confidence: math.Min(0.55+0.05*float64(len(severe)), 0.80), Priority: 3}
	case len(moderate) > 0:
		a = Assessment{Severity: models.SeverityModerate, Confidence: math.Min(0.45+0.05*float64(len(moderate)), 0.70), Priority: 5}
	case len(mild) > 0:
		a = Assessment{Severity: models.SeverityMild, Confidence: 0.45, Priority: 8}
	default:
		a = Assessment{Severity: c.fallback, Confidence: 0.35, Priority: 5}
	}

	if intake.Age != nil {
		age := *intake.Age
		if age < 12 {
			risks = append(risks, fmt.Sprintf("CHILD (age %d)", age))
		} else if age > 65 {
			risks = append(risks, fmt.Sprintf("ELDERLY (age %d)", age))
		}
		if age < 12 || age > 65 {
			a.bump()
		}
	}

	if len(vulnerable) > 0 && a.Severity != models.SeverityCritical {
		a.bump()
		risks = append(risks, "vulnerable: "+strings.Join(vulnerable, ", "))
	}

	if isTrue(intake.Trapped) {
		a.bump()
	}

	a.Confidence = math.Round(a.Confidence*100) / 100
	a.RiskFactors = dedupe(risks)
	a.Reasoning = fmt.Sprintf(
		"Keyword classification: %d critical, %d severe, %d moderate, %d mild indicators.",
		len(critical), len(severe), len(moderate), len(mild),
	)

	return a, nil
}

// bump raises severity one level and lowers the priority number, never past critical
func (a *Assessment) bump() {
	if a.Severity == models.SeverityCritical {
		return
	}
	if rank := a.Severity.Rank(); rank > 0 && rank < len(models.Severities) {
		a.Severity = models.Severities[rank-1]
	}
	if a.Priority > 1 {
		a.Priority--
	}
}

func matches(text string, keywords []string) []string {
	var hits []string
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			hits = append(hits, keyword)
		}
	}
	return hits
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func isTrue(b *bool) bool  { return b != nil && *b }
func isFalse(b *bool) bool { return b != nil && !*b }
