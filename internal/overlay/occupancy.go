// Package overlay derives the occupancy and danger classifications shown next to
// dispatch decisions.
package overlay

import (
	"math"

	"dispatcher/internal/models"
)

// OccupancyLevel is a discrete band of hospital load
type OccupancyLevel string

const (
	OccupancyLow      OccupancyLevel = "low"
	OccupancyModerate OccupancyLevel = "moderate"
	OccupancyHigh     OccupancyLevel = "high"
	OccupancyCritical OccupancyLevel = "critical"
)

// Pool weights for the occupancy blend. They sum to 1.
const (
	weightEmergency = 0.35
	weightICU       = 0.25
	weightPediatric = 0.20
	weightLab       = 0.10
	weightPharmacy  = 0.10

	// assumedSlotMax stands in for the unknown maximum of lab and pharmacy slot pools
	assumedSlotMax = 10.0
)

func bedUsage(p models.BedPool) float64 {
	if p.Total <= 0 {
		return 0
	}
	return clamp(float64(p.Total-p.Available)/float64(p.Total), 0, 1)
}

func slotUsage(available int) float64 {
	return clamp(1-float64(available)/assumedSlotMax, 0, 1)
}

// Occupancy returns the weighted occupancy percentage of a hospital in [0,100]
func Occupancy(h models.Hospital) int {
	r := h.Resources
	used := bedUsage(r.EmergencyBeds)*weightEmergency +
		bedUsage(r.ICUBeds)*weightICU +
		bedUsage(r.PediatricBeds)*weightPediatric +
		slotUsage(r.LabSlots)*weightLab +
		slotUsage(r.PharmacySlots)*weightPharmacy

	return int(clamp(math.Round(used*100), 0, 100))
}

// OccupancyLevelFor bands an occupancy percentage
func OccupancyLevelFor(pct int) OccupancyLevel {
	switch {
	case pct >= 75:
		return OccupancyCritical
	case pct >= 50:
		return OccupancyHigh
	case pct >= 25:
		return OccupancyModerate
	default:
		return OccupancyLow
	}
}

// EmergencyLevelFor bands a hospital by raw emergency-bed availability alone
func EmergencyLevelFor(h models.Hospital) OccupancyLevel {
	switch beds := h.Resources.EmergencyBeds.Available; {
	case beds <= 1:
		return OccupancyCritical
	case beds <= 3:
		return OccupancyHigh
	case beds <= 6:
		return OccupancyModerate
	default:
		return OccupancyLow
	}
}

// EffectiveAvailability reports which capabilities remain usable at the given occupancy.
// Offered capabilities go offline in canonical order as load rises; unoffered ones are
// always unavailable.
func EffectiveAvailability(h models.Hospital, pct int) map[models.Capability]bool {
	pct = int(clamp(float64(pct), 0, 100))

	offered := 0
	for _, c := range models.CanonicalCapabilities {
		if h.Offers(c) {
			offered++
		}
	}
	overloaded := offered * pct / 100

	availability := make(map[models.Capability]bool, len(models.CanonicalCapabilities))
	seen := 0
	for _, c := range models.CanonicalCapabilities {
		if !h.Offers(c) {
			availability[c] = false
			continue
		}
		availability[c] = seen >= overloaded
		seen++
	}
	return availability
}

// Status bundles the derived overlays for one hospital
type Status struct {
	Hospital       string                     `json:"hospital"`
	Occupancy      int                        `json:"occupancy"`
	Level          OccupancyLevel             `json:"level"`
	EmergencyLevel OccupancyLevel             `json:"emergency_level"`
	Availability   map[models.Capability]bool `json:"availability"`
}

// StatusFor derives every overlay for a hospital
func StatusFor(h models.Hospital) Status {
	pct := Occupancy(h)
	return Status{
		Hospital:       h.Name,
		Occupancy:      pct,
		Level:          OccupancyLevelFor(pct),
		EmergencyLevel: EmergencyLevelFor(h),
		Availability:   EffectiveAvailability(h, pct),
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
