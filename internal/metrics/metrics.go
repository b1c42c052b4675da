// Package metrics registers the Prometheus collectors of the dispatch service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PassesTotal counts published assignment passes
	PassesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_passes_total",
		Help: "Total number of assignment passes published",
	})

	// SupersededPassesTotal counts passes discarded because a newer one was already published
	SupersededPassesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_superseded_passes_total",
		Help: "Assignment passes discarded because a newer pass was already published",
	})

	// PassDurationMs observes the wall time of a published pass
	PassDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_pass_duration_ms",
		Help:    "Assignment pass duration in milliseconds, including store reads",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})

	// TierSelectionsTotal counts place groups by the tier that selected their hospital
	TierSelectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_tier_selections_total",
		Help: "Place groups assigned per selection tier",
	}, []string{"tier"})

	// UnassignedCasesTotal counts cases left without a hospital
	UnassignedCasesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_unassigned_cases_total",
		Help: "Cases left without a hospital because the registry was empty",
	})

	// BackupLookupsTotal counts backup lookups by result (found, none)
	BackupLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_backup_lookups_total",
		Help: "Backup hospital lookups by result",
	}, []string{"result"})

	// SnapshotCacheTotal counts snapshot cache lookups by result (hit, miss, error)
	SnapshotCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_snapshot_cache_total",
		Help: "Snapshot cache lookups by result",
	}, []string{"result"})

	// StatusCacheTotal counts hospital status lookups by result (hit, miss)
	StatusCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_status_cache_total",
		Help: "Hospital status cache lookups by result",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(PassesTotal)
	prometheus.MustRegister(SupersededPassesTotal)
	prometheus.MustRegister(PassDurationMs)
	prometheus.MustRegister(TierSelectionsTotal)
	prometheus.MustRegister(UnassignedCasesTotal)
	prometheus.MustRegister(BackupLookupsTotal)
	prometheus.MustRegister(SnapshotCacheTotal)
	prometheus.MustRegister(StatusCacheTotal)
}

// Handler exposes the default registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.Handler()
}
