package allocation

import (
	"sort"

	"dispatcher/internal/geo"
	"dispatcher/internal/models"
)

// Tier names the fallback level that selected a hospital
type Tier string

const (
	// TierNone means no hospital exists to assign
	TierNone Tier = "none"

	// TierFullMatch selects the nearest hospital with enough beds and every required capability
	TierFullMatch Tier = "full-match"

	// TierCapacityOnly selects the nearest hospital with enough beds
	TierCapacityOnly Tier = "capacity-only"

	// TierCapabilityOnly selects the nearest capable hospital even when it is over capacity.
	// Dispatchers confirm these by phone.
	TierCapabilityOnly Tier = "capability-only"

	// TierNearest selects the nearest hospital unconditionally
	TierNearest Tier = "nearest"
)

type candidate struct {
	hospital *models.Hospital
	distance float64
}

type tierRule struct {
	tier  Tier
	match func(c candidate, g PlaceGroup, ledger Ledger) bool
}

func hasCapacity(c candidate, g PlaceGroup, ledger Ledger) bool {
	return ledger.Remaining(c.hospital.Name, c.hospital.AvailableBeds()) >= g.TotalVictims
}

func hasCapabilities(c candidate, g PlaceGroup, _ Ledger) bool {
	return c.hospital.Satisfies(g.Required)
}

var tierRules = []tierRule{
	{TierFullMatch, func(c candidate, g PlaceGroup, l Ledger) bool {
		return hasCapacity(c, g, l) && hasCapabilities(c, g, l)
	}},
	{TierCapacityOnly, hasCapacity},
	{TierCapabilityOnly, hasCapabilities},
	{TierNearest, func(candidate, PlaceGroup, Ledger) bool { return true }},
}

// Decision is the hospital chosen for one place group
type Decision struct {
	Location   string   `json:"location"`
	Hospital   string   `json:"hospital,omitempty"`
	Tier       Tier     `json:"tier"`
	Victims    int      `json:"victims"`
	DistanceKm float64  `json:"distance_km"`
	CaseIDs    []string `json:"case_ids"`
}

// Assigned reports whether a hospital was selected
func (d Decision) Assigned() bool {
	return d.Tier != TierNone
}

// Result is the output of one assignment pass
type Result struct {
	// Decisions are in processing order
	Decisions []Decision `json:"decisions"`

	// Ledger holds the victims committed to each hospital during the pass
	Ledger Ledger `json:"ledger"`
}

// HospitalFor returns the hospital assigned to a location
func (r Result) HospitalFor(location string) (string, bool) {
	for _, d := range r.Decisions {
		if d.Location == location && d.Assigned() {
			return d.Hospital, true
		}
	}
	return "", false
}

// CaseAssignments maps case IDs to their assigned hospital. Unassigned cases are absent.
func (r Result) CaseAssignments() map[string]string {
	out := make(map[string]string)
	for _, d := range r.Decisions {
		if !d.Assigned() {
			continue
		}
		for _, id := range d.CaseIDs {
			out[id] = d.Hospital
		}
	}
	return out
}

// Assign runs one assignment pass over the groups. Groups are processed in Order and
// each owns a share of a ledger created for this call only.
func Assign(groups []PlaceGroup, hospitals []models.Hospital) Result {
	ordered := Order(groups)
	result := Result{
		Decisions: make([]Decision, 0, len(ordered)),
		Ledger:    NewLedger(),
	}

	if len(hospitals) == 0 {
		for _, g := range ordered {
			result.Decisions = append(result.Decisions, Decision{
				Location: g.Location,
				Tier:     TierNone,
				Victims:  g.TotalVictims,
				CaseIDs:  caseIDs(g),
			})
		}
		return result
	}

	for _, g := range ordered {
		d := selectHospital(g, rankByDistance(g.Centroid, hospitals), result.Ledger)
		result.Ledger.Commit(d.Hospital, g.TotalVictims)
		result.Decisions = append(result.Decisions, d)
	}

	return result
}

func selectHospital(g PlaceGroup, ranked []candidate, ledger Ledger) Decision {
	for _, rule := range tierRules {
		for _, c := range ranked {
			if rule.match(c, g, ledger) {
				return Decision{
					Location:   g.Location,
					Hospital:   c.hospital.Name,
					Tier:       rule.tier,
					Victims:    g.TotalVictims,
					DistanceKm: c.distance,
					CaseIDs:    caseIDs(g),
				}
			}
		}
	}
	// unreachable with a non-empty candidate list
	return Decision{Location: g.Location, Tier: TierNone, Victims: g.TotalVictims, CaseIDs: caseIDs(g)}
}

func rankByDistance(from geo.Point, hospitals []models.Hospital) []candidate {
	ranked := make([]candidate, len(hospitals))
	for i := range hospitals {
		h := &hospitals[i]
		ranked[i] = candidate{
			hospital: h,
			distance: geo.Distance(from.Latitude, from.Longitude, h.Latitude, h.Longitude),
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].distance < ranked[j].distance
	})
	return ranked
}

func caseIDs(g PlaceGroup) []string {
	ids := make([]string, len(g.Cases))
	for i, c := range g.Cases {
		ids[i] = c.ID
	}
	return ids
}

// AssignCases groups, orders and assigns the cases in one pass. The returned cases are
// copies in input order with AssignedHospital recomputed; inputs are not modified.
func AssignCases(cases []models.Case, hospitals []models.Hospital) ([]models.Case, Result) {
	result := Assign(Group(cases), hospitals)
	byLocation := make(map[string]string, len(result.Decisions))
	for _, d := range result.Decisions {
		if d.Assigned() {
			byLocation[d.Location] = d.Hospital
		}
	}

	assigned := make([]models.Case, len(cases))
	for i, c := range cases {
		c.AssignTo(byLocation[c.Location])
		assigned[i] = c
	}
	return assigned, result
}
