package triage

import (
	"context"

	"dispatcher/internal/models"
)

// Intake is the free-text report and structured safety answers collected for a case
type Intake struct {
	Description   string `json:"description"`
	Age           *int   `json:"age,omitempty"`
	Conscious     *bool  `json:"conscious,omitempty"`
	Breathing     *bool  `json:"breathing,omitempty"`
	HeavyBleeding *bool  `json:"heavy_bleeding,omitempty"`
	Trapped       *bool  `json:"trapped,omitempty"`
}

// Assessment is the outcome of classifying an intake
type Assessment struct {
	Severity    models.Severity `json:"severity"`
	Confidence  float64         `json:"confidence"`
	Priority    int             `json:"priority"`
	RiskFactors []string        `json:"risk_factors"`
	Reasoning   string          `json:"reasoning"`
}

// Classifier defines the interface for case severity classification
type Classifier interface {
	// Classify analyzes an intake and returns a severity assessment
	Classify(ctx context.Context, intake Intake) (Assessment, error)
}

// ClassifierConfig contains configuration options for the classifier
type ClassifierConfig struct {
	// FallbackSeverity is used when no keyword matches. Defaults to moderate.
	FallbackSeverity models.Severity
}
