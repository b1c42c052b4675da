package allocation

import (
	"dispatcher/internal/geo"
	"dispatcher/internal/models"
)

// FindBackup returns the nearest hospital other than excludeName whose raw available beds
// cover requiredBeds and which offers every required capability. It returns nil when no
// hospital qualifies.
func FindBackup(lat, lon float64, hospitals []models.Hospital, excludeName string, requiredBeds int, required models.CapabilitySet) *models.Hospital {
	for _, c := range rankByDistance(geo.Point{Latitude: lat, Longitude: lon}, hospitals) {
		if c.hospital.Name == excludeName {
			continue
		}
		if c.hospital.AvailableBeds() >= requiredBeds && c.hospital.Satisfies(required) {
			h := *c.hospital
			return &h
		}
	}
	return nil
}
