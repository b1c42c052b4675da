package dispatch

import (
	"time"

	"dispatcher/internal/allocation"
	"dispatcher/internal/models"
	"dispatcher/internal/overlay"
)

// LocationDanger is the danger classification of one reported location
type LocationDanger struct {
	Location     string              `json:"location"`
	TotalVictims int                 `json:"total_victims"`
	Danger       overlay.DangerLevel `json:"danger"`
}

// Snapshot is the complete output of one dispatch pass
type Snapshot struct {
	ID         string    `json:"id"`
	ComputedAt time.Time `json:"computed_at"`

	// Cases carry the assigned hospital computed by this pass
	Cases     []models.Case         `json:"cases"`
	Decisions []allocation.Decision `json:"decisions"`
	Ledger    allocation.Ledger     `json:"ledger"`

	Hospitals  []overlay.Status `json:"hospitals"`
	Locations  []LocationDanger `json:"locations"`
	Unassigned int              `json:"unassigned"`
}

func locationDangers(groups []allocation.PlaceGroup) []LocationDanger {
	out := make([]LocationDanger, len(groups))
	for i, g := range groups {
		out[i] = LocationDanger{
			Location:     g.Location,
			TotalVictims: g.TotalVictims,
			Danger:       overlay.DangerLevelFor(g.TotalVictims),
		}
	}
	return out
}
