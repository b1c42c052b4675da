package triage

import (
	"regexp"
	"strings"

	"dispatcher/internal/models"
)

type requirementRule struct {
	pattern    *regexp.Regexp
	capability models.Capability
}

// Each rule is tested independently; a case may match any number of them.
var requirementRules = []requirementRule{
	{regexp.MustCompile(`cardiac|chest|pulse|arrest`), models.CapabilityCardiology},
	{regexp.MustCompile(`bleeding|trauma|unconscious|hemorrhage`), models.CapabilityTrauma},
	{regexp.MustCompile(`fracture|bone|broken`), models.CapabilityOrthopedics},
	{regexp.MustCompile(`child|pediatric|infant`), models.CapabilityPediatrics},
	{regexp.MustCompile(`brain|neuro|stroke|coma`), models.CapabilityNeurosurgery},
	{regexp.MustCompile(`burn`), models.CapabilityBurn},
	{regexp.MustCompile(`eye|vision`), models.CapabilityOphthalmology},
}

// InferRequiredCapabilities derives the hospital capabilities a case needs from its
// symptom, history and patient text
func InferRequiredCapabilities(c models.Case) models.CapabilitySet {
	text := caseText(c)
	required := models.NewCapabilitySet()
	for _, rule := range requirementRules {
		if rule.pattern.MatchString(text) {
			required.Add(rule.capability)
		}
	}
	return required
}

func caseText(c models.Case) string {
	parts := make([]string, 0, len(c.Symptoms)+len(c.ChronicDiseases)+1)
	parts = append(parts, c.Symptoms...)
	parts = append(parts, c.TraumaHistory)
	parts = append(parts, c.ChronicDiseases...)
	for _, p := range c.Patients {
		parts = append(parts, p.Symptoms...)
		parts = append(parts, p.Trauma)
	}
	return strings.ToLower(strings.Join(parts, " "))
}
