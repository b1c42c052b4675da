package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Severity represents the urgency of an emergency case
type Severity string

const (
	// SeverityCritical represents life-threatening cases requiring immediate intervention
	SeverityCritical Severity = "critical"

	// SeveritySevere represents serious cases that must be handled promptly
	SeveritySevere Severity = "severe"

	// SeverityModerate represents urgent but stable cases
	SeverityModerate Severity = "moderate"

	// SeverityMild represents walking wounded and minor injuries
	SeverityMild Severity = "mild"
)

// Severities lists every severity from most to least urgent
var Severities = []Severity{SeverityCritical, SeveritySevere, SeverityModerate, SeverityMild}

// Rank returns the processing rank of the severity (critical=0 ... mild=3).
// Unknown values rank after mild.
func (s Severity) Rank() int {
	for i, known := range Severities {
		if s == known {
			return i
		}
	}
	return len(Severities)
}

// Valid reports whether s is one of the known severities
func (s Severity) Valid() bool {
	return s.Rank() < len(Severities)
}

// ParseSeverity converts a free-form string into a Severity
func ParseSeverity(value string) (Severity, error) {
	s := Severity(strings.ToLower(strings.TrimSpace(value)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown severity %q", ErrInvalidCase, value)
	}
	return s, nil
}

// Patient holds per-person details reported for a case
type Patient struct {
	Name     string   `json:"name,omitempty"`
	Age      int      `json:"age,omitempty"`
	Symptoms []string `json:"symptoms,omitempty"`
	Trauma   string   `json:"trauma,omitempty"`
}

// Case represents an emergency case reported at a location
type Case struct {
	ID              string    `json:"id"`
	Location        string    `json:"location"`
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	Severity        Severity  `json:"severity"`
	Victims         int       `json:"victims"`
	Symptoms        []string  `json:"symptoms,omitempty"`
	TraumaHistory   string    `json:"trauma_history,omitempty"`
	ChronicDiseases []string  `json:"chronic_diseases,omitempty"`
	Patients        []Patient `json:"patients,omitempty"`
	ReportedAt      time.Time `json:"reported_at"`

	// AssignedHospital is recomputed on every dispatch pass; nil means no hospital exists
	AssignedHospital *string `json:"assigned_hospital"`
}

// NewCase creates a new case at the given location with default values
func NewCase(location string, latitude, longitude float64) *Case {
	return &Case{
		ID:         uuid.NewString(),
		Location:   location,
		Latitude:   latitude,
		Longitude:  longitude,
		Severity:   SeverityModerate,
		Victims:    1,
		ReportedAt: time.Now().UTC(),
	}
}

// AssignTo sets the assigned hospital, clearing it when name is empty
func (c *Case) AssignTo(name string) {
	if name == "" {
		c.AssignedHospital = nil
		return
	}
	c.AssignedHospital = &name
}

// Assigned returns the assigned hospital name or an empty string
func (c Case) Assigned() string {
	if c.AssignedHospital == nil {
		return ""
	}
	return *c.AssignedHospital
}

// Validate rejects malformed cases before they reach the assignment engine
func (c Case) Validate() error {
	if strings.TrimSpace(c.Location) == "" {
		return fmt.Errorf("%w: location is required", ErrInvalidCase)
	}
	if !c.Severity.Valid() {
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidCase, c.Severity)
	}
	if c.Victims < 0 {
		return fmt.Errorf("%w: victims must not be negative", ErrInvalidCase)
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %.6f out of range", ErrInvalidCase, c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %.6f out of range", ErrInvalidCase, c.Longitude)
	}
	return nil
}
