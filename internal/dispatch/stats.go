package dispatch

import (
	"context"

	"dispatcher/internal/allocation"
	"dispatcher/internal/models"
)

// Stats summarizes the stored cases
type Stats struct {
	TotalCases           int                     `json:"total_cases"`
	TotalVictims         int                     `json:"total_victims"`
	SeverityDistribution map[models.Severity]int `json:"severity_distribution"`
	Locations            []LocationDanger        `json:"locations"`
	Unassigned           int                     `json:"unassigned"`
}

// Stats computes case totals, the severity distribution and per-location danger
func (c *Coordinator) Stats(ctx context.Context) (Stats, error) {
	cases, err := c.store.ListCases(ctx)
	if err != nil {
		return Stats{}, err
	}
	return computeStats(cases), nil
}

func computeStats(cases []models.Case) Stats {
	stats := Stats{
		TotalCases:           len(cases),
		SeverityDistribution: make(map[models.Severity]int, len(models.Severities)),
		Locations:            locationDangers(allocation.Group(cases)),
	}
	for _, s := range models.Severities {
		stats.SeverityDistribution[s] = 0
	}

	for _, c := range cases {
		stats.TotalVictims += c.Victims
		stats.SeverityDistribution[c.Severity]++
		if c.AssignedHospital == nil {
			stats.Unassigned++
		}
	}
	return stats
}
