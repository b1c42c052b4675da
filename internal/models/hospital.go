package models

import (
	"fmt"
	"strings"
)

// Capability is a named hospital specialty or service
type Capability string

const (
	CapabilityTrauma        Capability = "trauma"
	CapabilityCardiology    Capability = "cardiology"
	CapabilityPediatrics    Capability = "pediatrics"
	CapabilityNeurosurgery  Capability = "neurosurgery"
	CapabilityRadiology     Capability = "radiology"
	CapabilityLaboratory    Capability = "laboratory"
	CapabilityPharmacy      Capability = "pharmacy"
	CapabilityBurn          Capability = "burn"
	CapabilityOrthopedics   Capability = "orthopedics"
	CapabilityOphthalmology Capability = "ophthalmology"
)

// CanonicalCapabilities is the fixed order used whenever capabilities are counted
// or marked overloaded. Do not iterate a CapabilitySet for ordering.
var CanonicalCapabilities = []Capability{
	CapabilityTrauma,
	CapabilityCardiology,
	CapabilityPediatrics,
	CapabilityNeurosurgery,
	CapabilityRadiology,
	CapabilityLaboratory,
	CapabilityPharmacy,
	CapabilityBurn,
	CapabilityOrthopedics,
	CapabilityOphthalmology,
}

// Known reports whether c is one of the canonical capabilities
func (c Capability) Known() bool {
	for _, known := range CanonicalCapabilities {
		if c == known {
			return true
		}
	}
	return false
}

// CapabilitySet is a set of capability flags
type CapabilitySet map[Capability]bool

// NewCapabilitySet creates a set containing the given capabilities
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	set := make(CapabilitySet, len(caps))
	for _, c := range caps {
		set[c] = true
	}
	return set
}

// Has reports whether the capability is present
func (s CapabilitySet) Has(c Capability) bool {
	return s[c]
}

// Add inserts the capability into the set
func (s CapabilitySet) Add(c Capability) {
	s[c] = true
}

// Union adds every capability of other into s
func (s CapabilitySet) Union(other CapabilitySet) {
	for c, ok := range other {
		if ok {
			s[c] = true
		}
	}
}

// List returns the present capabilities in canonical order
func (s CapabilitySet) List() []Capability {
	list := make([]Capability, 0, len(s))
	for _, c := range CanonicalCapabilities {
		if s[c] {
			list = append(list, c)
		}
	}
	return list
}

// BedPool is a resource pool with current and maximum capacity
type BedPool struct {
	Available int `json:"available"`
	Total     int `json:"total"`
}

// Resources holds the raw bed and slot counts of a hospital
type Resources struct {
	EmergencyBeds BedPool `json:"emergency_beds"`
	ICUBeds       BedPool `json:"icu_beds"`
	PediatricBeds BedPool `json:"pediatric_beds"`

	// Slot pools have no stated maximum
	LabSlots      int `json:"lab_slots"`
	PharmacySlots int `json:"pharmacy_slots"`
}

// Hospital represents a receiving facility. Name is the join key and must be unique.
type Hospital struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Latitude     float64       `json:"latitude"`
	Longitude    float64       `json:"longitude"`
	Resources    Resources     `json:"resources"`
	Capabilities CapabilitySet `json:"capabilities"`
}

// AvailableBeds returns the raw emergency beds available for incoming victims
func (h Hospital) AvailableBeds() int {
	return h.Resources.EmergencyBeds.Available
}

// Offers reports whether the hospital provides the capability
func (h Hospital) Offers(c Capability) bool {
	return h.Capabilities.Has(c)
}

// Satisfies reports whether the hospital provides every required capability
func (h Hospital) Satisfies(required CapabilitySet) bool {
	for c, ok := range required {
		if ok && !h.Offers(c) {
			return false
		}
	}
	return true
}

// Validate rejects malformed hospital records
func (h Hospital) Validate() error {
	if strings.TrimSpace(h.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidHospital)
	}

	pools := map[string]BedPool{
		"emergency_beds": h.Resources.EmergencyBeds,
		"icu_beds":       h.Resources.ICUBeds,
		"pediatric_beds": h.Resources.PediatricBeds,
	}
	for name, pool := range pools {
		if pool.Available < 0 || pool.Total < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidHospital, name)
		}
		if pool.Available > pool.Total {
			return fmt.Errorf("%w: %s available exceeds total", ErrInvalidHospital, name)
		}
	}
	if h.Resources.LabSlots < 0 || h.Resources.PharmacySlots < 0 {
		return fmt.Errorf("%w: slot counts must not be negative", ErrInvalidHospital)
	}

	for c := range h.Capabilities {
		if !c.Known() {
			return fmt.Errorf("%w: unknown capability %q", ErrInvalidHospital, c)
		}
	}
	return nil
}

// ValidateRegistry validates every hospital and checks that names are unique
func ValidateRegistry(hospitals []Hospital) error {
	seen := make(map[string]bool, len(hospitals))
	for _, h := range hospitals {
		if err := h.Validate(); err != nil {
			return err
		}
		if seen[h.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateHospital, h.Name)
		}
		seen[h.Name] = true
	}
	return nil
}
