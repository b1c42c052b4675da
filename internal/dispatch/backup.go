package dispatch

import (
	"context"

	"dispatcher/internal/allocation"
	"dispatcher/internal/geo"
	"dispatcher/internal/metrics"
	"dispatcher/internal/models"
	"dispatcher/internal/triage"
)

// BackupResult is the outcome of a backup hospital lookup for one case.
// Available is false when no alternative exists; dispatch then confirms by phone.
type BackupResult struct {
	CaseID     string           `json:"case_id"`
	Primary    string           `json:"primary,omitempty"`
	Available  bool             `json:"available"`
	Hospital   *models.Hospital `json:"hospital"`
	DistanceKm float64          `json:"distance_km,omitempty"`
}

// Backup finds the nearest alternative to the case's assigned hospital using raw
// bed counts
func (c *Coordinator) Backup(ctx context.Context, caseID string) (BackupResult, error) {
	cs, err := c.store.GetCase(ctx, caseID)
	if err != nil {
		return BackupResult{}, err
	}
	hospitals, err := c.store.ListHospitals(ctx)
	if err != nil {
		return BackupResult{}, err
	}

	required := triage.InferRequiredCapabilities(cs)
	h := allocation.FindBackup(cs.Latitude, cs.Longitude, hospitals, cs.Assigned(), cs.Victims, required)

	result := BackupResult{CaseID: cs.ID, Primary: cs.Assigned(), Hospital: h}
	if h == nil {
		metrics.BackupLookupsTotal.WithLabelValues("none").Inc()
		c.log.Info("backup_unavailable", "case", cs.ID, "primary", result.Primary)
		return result, nil
	}

	result.Available = true
	result.DistanceKm = geo.Distance(cs.Latitude, cs.Longitude, h.Latitude, h.Longitude)
	metrics.BackupLookupsTotal.WithLabelValues("found").Inc()
	return result, nil
}
