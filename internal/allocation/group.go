// Package allocation assigns emergency cases to hospitals under capacity and capability
// constraints.
package allocation

import (
	"sort"

	"dispatcher/internal/geo"
	"dispatcher/internal/models"
	"dispatcher/internal/triage"
)

// PlaceGroup is the set of cases reported at one location. Groups are rebuilt on every pass.
type PlaceGroup struct {
	Location     string               `json:"location"`
	Centroid     geo.Point            `json:"centroid"`
	Cases        []models.Case        `json:"cases"`
	TotalVictims int                  `json:"total_victims"`
	Required     models.CapabilitySet `json:"required_capabilities"`
}

// MinSeverityRank returns the most urgent severity rank among the group's cases
func (g PlaceGroup) MinSeverityRank() int {
	best := len(models.Severities)
	for _, c := range g.Cases {
		if r := c.Severity.Rank(); r < best {
			best = r
		}
	}
	return best
}

// Group partitions cases by exact location name. Groups appear in first-seen order.
func Group(cases []models.Case) []PlaceGroup {
	index := make(map[string]int)
	var groups []PlaceGroup

	for _, c := range cases {
		i, ok := index[c.Location]
		if !ok {
			i = len(groups)
			index[c.Location] = i
			groups = append(groups, PlaceGroup{
				Location: c.Location,
				Required: models.NewCapabilitySet(),
			})
		}
		g := &groups[i]
		g.Cases = append(g.Cases, c)
		g.TotalVictims += c.Victims
		g.Required.Union(triage.InferRequiredCapabilities(c))
	}

	for i := range groups {
		g := &groups[i]
		points := make([]geo.Point, len(g.Cases))
		for j, c := range g.Cases {
			points[j] = geo.Point{Latitude: c.Latitude, Longitude: c.Longitude}
		}
		g.Centroid = geo.Centroid(points)

		sort.SliceStable(g.Cases, func(a, b int) bool {
			ra, rb := g.Cases[a].Severity.Rank(), g.Cases[b].Severity.Rank()
			if ra != rb {
				return ra < rb
			}
			return g.Cases[a].ReportedAt.Before(g.Cases[b].ReportedAt)
		})
	}

	return groups
}

// Order returns the groups sorted by most urgent member first, then by victims descending.
// Remaining ties keep input order.
func Order(groups []PlaceGroup) []PlaceGroup {
	ordered := make([]PlaceGroup, len(groups))
	copy(ordered, groups)

	sort.SliceStable(ordered, func(i, j int) bool {
		ri, rj := ordered[i].MinSeverityRank(), ordered[j].MinSeverityRank()
		if ri != rj {
			return ri < rj
		}
		return ordered[i].TotalVictims > ordered[j].TotalVictims
	})
	return ordered
}
