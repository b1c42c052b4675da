package triage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatcher/internal/models"
)

func TestInferRequiredCapabilities(t *testing.T) {
	tests := []struct {
		name string
		c    models.Case
		want []models.Capability
	}{
		{
			name: "no text yields no requirements",
			c:    models.Case{},
			want: []models.Capability{},
		},
		{
			name: "chest pain needs cardiology",
			c:    models.Case{Symptoms: []string{"Chest pain", "sweating"}},
			want: []models.Capability{models.CapabilityCardiology},
		},
		{
			name: "categories are independent",
			c: models.Case{
				Symptoms:      []string{"broken arm"},
				TraumaHistory: "house fire, burns on hands",
			},
			want: []models.Capability{models.CapabilityBurn, models.CapabilityOrthopedics},
		},
		{
			name: "patient fields are included",
			c: models.Case{
				Patients: []models.Patient{
					{Symptoms: []string{"blurred vision"}},
					{Trauma: "Infant, head hit, unconscious"},
				},
			},
			want: []models.Capability{
				models.CapabilityTrauma,
				models.CapabilityPediatrics,
				models.CapabilityOphthalmology,
			},
		},
		{
			name: "chronic diseases are included",
			c:    models.Case{ChronicDiseases: []string{"previous STROKE"}},
			want: []models.Capability{models.CapabilityNeurosurgery},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferRequiredCapabilities(tt.c).List())
		})
	}

	t.Run("should be deterministic", func(t *testing.T) {
		c := models.Case{Symptoms: []string{"cardiac arrest", "bleeding"}}
		assert.Equal(t, InferRequiredCapabilities(c), InferRequiredCapabilities(c))
	})
}

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }

func TestKeywordClassifier(t *testing.T) {
	c := NewKeywordClassifier(ClassifierConfig{})
	ctx := context.Background()

	t.Run("should classify critical keywords", func(t *testing.T) {
		a, err := c.Classify(ctx, Intake{Description: "Man in cardiac arrest, no pulse"})
		require.NoError(t, err)
		assert.Equal(t, models.SeverityCritical, a.Severity)
		assert.Equal(t, 1, a.Priority)
		assert.Equal(t, 0.8, a.Confidence)
		assert.Contains(t, a.RiskFactors, "cardiac arrest")
	})

	t.Run("should treat not breathing as critical", func(t *testing.T) {
		a, err := c.Classify(ctx, Intake{Description: "fell down", Breathing: boolPtr(false)})
		require.NoError(t, err)
		assert.Equal(t, models.SeverityCritical, a.Severity)
		assert.Contains(t, a.RiskFactors, "NOT BREATHING")
	})

	t.Run("should treat heavy bleeding as severe", func(t *testing.T) {
		a, err := c.Classify(ctx, Intake{Description: "", HeavyBleeding: boolPtr(true)})
		require.NoError(t, err)
		assert.Equal(t, models.SeveritySevere, a.Severity)
		assert.Equal(t, 3, a.Priority)
	})

	t.Run("should classify mild keywords", func(t *testing.T) {
		a, err := c.Classify(ctx, Intake{Description: "a small bruise"})
		require.NoError(t, err)
		assert.Equal(t, models.SeverityMild, a.Severity)
		assert.Equal(t, 8, a.Priority)
	})

	t.Run("should fall back to moderate", func(t *testing.T) {
		a, err := c.Classify(ctx, Intake{Description: "something happened"})
		require.NoError(t, err)
		assert.Equal(t, models.SeverityModerate, a.Severity)
		assert.Equal(t, 0.35, a.Confidence)
	})

	t.Run("should bump severity for elderly victims", func(t *testing.T) {
		a, err := c.Classify(ctx, Intake{Description: "sprain", Age: intPtr(80)})
		require.NoError(t, err)
		assert.Equal(t, models.SeveritySevere, a.Severity)
		assert.Equal(t, 4, a.Priority)
		assert.Contains(t, a.RiskFactors, "ELDERLY (age 80)")
	})

	t.Run("should stack bumps but stop at critical", func(t *testing.T) {
		a, err := c.Classify(ctx, Intake{Description: "a child with a bruise", Age: intPtr(5), Trapped: boolPtr(true)})
		require.NoError(t, err)
		// mild -> moderate (age) -> severe (keyword) -> critical (trapped)
		assert.Equal(t, models.SeverityCritical, a.Severity)
	})

	t.Run("should honor a cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := c.Classify(cancelled, Intake{Description: "pain"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
