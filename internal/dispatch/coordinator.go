// Package dispatch runs assignment passes over the stored cases and hospitals and
// serves their results.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"dispatcher/internal/allocation"
	"dispatcher/internal/cache"
	"dispatcher/internal/logger"
	"dispatcher/internal/metrics"
	"dispatcher/internal/models"
	"dispatcher/internal/overlay"
	"dispatcher/internal/store"
	"dispatcher/internal/triage"
)

const recomputeKey = "recompute"

// CoordinatorConfig contains configuration for the dispatch coordinator
type CoordinatorConfig struct {
	// PassTimeout bounds the store reads and writes of one pass
	PassTimeout time.Duration

	// StatusTTL bounds how long a hospital overlay is served without a store read
	StatusTTL time.Duration
	Logger    *slog.Logger
}

// Coordinator owns the latest dispatch snapshot. Every pass builds its own ledger;
// concurrent recompute requests share one in-flight pass. A pass that started before
// an already published one is discarded, so results never go backwards.
type Coordinator struct {
	store      store.Store
	cache      cache.SnapshotCache
	statuses   *cache.StatusCache
	classifier triage.Classifier
	log        *slog.Logger
	timeout    time.Duration

	flight singleflight.Group

	// passSeq numbers passes in the order they start reading the store
	passSeq atomic.Uint64

	// publishMu serializes publishing; published is the sequence of the latest result
	publishMu sync.Mutex
	published uint64

	mu     sync.RWMutex
	latest *Snapshot
}

// NewCoordinator creates a new dispatch coordinator. A nil cache disables caching.
func NewCoordinator(s store.Store, c cache.SnapshotCache, classifier triage.Classifier, config CoordinatorConfig) *Coordinator {
	if c == nil {
		c = cache.NopCache{}
	}
	if classifier == nil {
		classifier = triage.NewKeywordClassifier(triage.ClassifierConfig{})
	}
	if config.PassTimeout == 0 {
		config.PassTimeout = 30 * time.Second
	}
	if config.StatusTTL == 0 {
		config.StatusTTL = time.Minute
	}
	if config.Logger == nil {
		config.Logger = logger.L()
	}

	return &Coordinator{
		store:      s,
		cache:      c,
		statuses:   cache.NewStatusCache(config.StatusTTL),
		classifier: classifier,
		log:        config.Logger,
		timeout:    config.PassTimeout,
	}
}

// Recompute runs a wholesale assignment pass, or joins the one already in flight
func (c *Coordinator) Recompute(ctx context.Context) (*Snapshot, error) {
	ch := c.flight.DoChan(recomputeKey, func() (interface{}, error) {
		// detached so one caller giving up does not fail the others
		passCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.runPass(passCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

// refresh starts a fresh pass that observes every write made before the call
func (c *Coordinator) refresh(ctx context.Context) {
	c.flight.Forget(recomputeKey)
	if _, err := c.Recompute(ctx); err != nil {
		c.log.Warn("dispatch_refresh_failed", "err", err)
	}
}

func (c *Coordinator) runPass(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	seq := c.passSeq.Add(1)

	cases, err := c.store.ListCases(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cases: %w", err)
	}
	hospitals, err := c.store.ListHospitals(ctx)
	if err != nil {
		return nil, fmt.Errorf("load hospitals: %w", err)
	}

	assigned, result := allocation.AssignCases(cases, hospitals)

	snap := &Snapshot{
		ID:         uuid.NewString(),
		ComputedAt: time.Now().UTC(),
		Cases:      assigned,
		Decisions:  result.Decisions,
		Ledger:     result.Ledger,
		Hospitals:  make([]overlay.Status, len(hospitals)),
		Locations:  locationDangers(allocation.Group(cases)),
	}
	for i, h := range hospitals {
		snap.Hospitals[i] = overlay.StatusFor(h)
	}

	assignments := make(map[string]string, len(assigned))
	for _, a := range assigned {
		assignments[a.ID] = a.Assigned()
		if a.AssignedHospital == nil {
			snap.Unassigned++
		}
	}

	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	if seq <= c.published {
		metrics.SupersededPassesTotal.Inc()
		c.log.Debug("dispatch_pass_superseded", "snapshot", snap.ID, "seq", seq, "published", c.published)
		c.mu.RLock()
		latest := c.latest
		c.mu.RUnlock()
		return latest, nil
	}

	if err := c.store.SetAssignments(ctx, assignments); err != nil {
		return nil, fmt.Errorf("save assignments: %w", err)
	}
	c.published = seq

	for _, d := range result.Decisions {
		metrics.TierSelectionsTotal.WithLabelValues(string(d.Tier)).Inc()
	}
	metrics.UnassignedCasesTotal.Add(float64(snap.Unassigned))
	metrics.PassesTotal.Inc()
	metrics.PassDurationMs.Observe(float64(time.Since(start).Milliseconds()))

	c.mu.Lock()
	c.latest = snap
	c.mu.Unlock()
	c.statuses.Replace(snap.Hospitals)

	if data, err := json.Marshal(snap); err != nil {
		c.log.Warn("snapshot_encode_failed", "err", err)
	} else if err := c.cache.Put(ctx, data); err != nil {
		c.log.Warn("snapshot_cache_put_failed", "err", err)
	}

	c.log.Info("dispatch_pass",
		"snapshot", snap.ID,
		"seq", seq,
		"cases", len(cases),
		"hospitals", len(hospitals),
		"groups", len(result.Decisions),
		"unassigned", snap.Unassigned,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return snap, nil
}

// Snapshot returns the latest snapshot from memory, then the cache, and finally
// computes one
func (c *Coordinator) Snapshot(ctx context.Context) (*Snapshot, error) {
	c.mu.RLock()
	snap := c.latest
	c.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}

	data, err := c.cache.Get(ctx)
	switch {
	case err == nil:
		var cached Snapshot
		if err := json.Unmarshal(data, &cached); err == nil {
			metrics.SnapshotCacheTotal.WithLabelValues("hit").Inc()
			c.mu.Lock()
			if c.latest == nil {
				c.latest = &cached
			}
			snap = c.latest
			c.mu.Unlock()
			return snap, nil
		}
		metrics.SnapshotCacheTotal.WithLabelValues("error").Inc()
		c.log.Warn("snapshot_cache_decode_failed")
	case errors.Is(err, cache.ErrMiss):
		metrics.SnapshotCacheTotal.WithLabelValues("miss").Inc()
	default:
		metrics.SnapshotCacheTotal.WithLabelValues("error").Inc()
		c.log.Warn("snapshot_cache_get_failed", "err", err)
	}

	return c.Recompute(ctx)
}

// CreateCase validates and stores a case, classifying its severity when it is missing,
// then recomputes assignments
func (c *Coordinator) CreateCase(ctx context.Context, nc models.Case, intake *triage.Intake) (models.Case, error) {
	if nc.ID == "" {
		nc.ID = uuid.NewString()
	}
	if nc.ReportedAt.IsZero() {
		nc.ReportedAt = time.Now().UTC()
	}
	if nc.Severity == "" {
		in := triage.Intake{Description: caseDescription(nc)}
		if intake != nil {
			in = *intake
			if in.Description == "" {
				in.Description = caseDescription(nc)
			}
		}
		assessment, err := c.classifier.Classify(ctx, in)
		if err != nil {
			return models.Case{}, fmt.Errorf("classify case: %w", err)
		}
		nc.Severity = assessment.Severity
		c.log.Debug("case_classified", "case", nc.ID, "severity", nc.Severity, "confidence", assessment.Confidence)
	}
	nc.AssignedHospital = nil

	if err := nc.Validate(); err != nil {
		return models.Case{}, err
	}
	if err := c.store.SaveCase(ctx, nc); err != nil {
		return models.Case{}, err
	}
	c.log.Info("case_saved", "case", nc.ID, "location", nc.Location, "severity", nc.Severity, "victims", nc.Victims)

	c.refresh(ctx)
	return c.store.GetCase(ctx, nc.ID)
}

// DeleteCase removes a case and recomputes assignments
func (c *Coordinator) DeleteCase(ctx context.Context, id string) error {
	if err := c.store.DeleteCase(ctx, id); err != nil {
		return err
	}
	c.log.Info("case_deleted", "case", id)
	c.refresh(ctx)
	return nil
}

// GetCase returns a stored case with its current assignment
func (c *Coordinator) GetCase(ctx context.Context, id string) (models.Case, error) {
	return c.store.GetCase(ctx, id)
}

// ListCases returns the stored cases newest report first, optionally filtered by severity
func (c *Coordinator) ListCases(ctx context.Context, severity models.Severity) ([]models.Case, error) {
	cases, err := c.store.ListCases(ctx)
	if err != nil {
		return nil, err
	}

	filtered := cases[:0]
	for _, cs := range cases {
		if severity == "" || cs.Severity == severity {
			filtered = append(filtered, cs)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].ReportedAt.After(filtered[j].ReportedAt)
	})
	return filtered, nil
}

// UpsertHospital validates a hospital, stores it by name and recomputes assignments
func (c *Coordinator) UpsertHospital(ctx context.Context, h models.Hospital) (models.Hospital, error) {
	if h.ID == "" {
		if existing, err := c.store.GetHospital(ctx, h.Name); err == nil {
			h.ID = existing.ID
		} else {
			h.ID = uuid.NewString()
		}
	}
	if h.Capabilities == nil {
		h.Capabilities = models.NewCapabilitySet()
	}
	if err := h.Validate(); err != nil {
		return models.Hospital{}, err
	}
	if err := c.store.SaveHospital(ctx, h); err != nil {
		return models.Hospital{}, err
	}
	c.statuses.Invalidate(h.Name)
	c.log.Info("hospital_saved", "hospital", h.Name, "emergency_beds", h.AvailableBeds())

	c.refresh(ctx)
	return h, nil
}

// DeleteHospital removes a hospital from the registry and recomputes assignments
func (c *Coordinator) DeleteHospital(ctx context.Context, name string) error {
	if err := c.store.DeleteHospital(ctx, name); err != nil {
		return err
	}
	c.statuses.Invalidate(name)
	c.log.Info("hospital_deleted", "hospital", name)
	c.refresh(ctx)
	return nil
}

// ListHospitals returns the hospital registry
func (c *Coordinator) ListHospitals(ctx context.Context) ([]models.Hospital, error) {
	return c.store.ListHospitals(ctx)
}

// HospitalStatus returns the overlays of one hospital, from the last pass when they
// are still cached and derived from the registry otherwise
func (c *Coordinator) HospitalStatus(ctx context.Context, name string) (overlay.Status, error) {
	if status, ok := c.statuses.Get(name); ok {
		metrics.StatusCacheTotal.WithLabelValues("hit").Inc()
		return status, nil
	}
	metrics.StatusCacheTotal.WithLabelValues("miss").Inc()

	h, err := c.store.GetHospital(ctx, name)
	if err != nil {
		return overlay.Status{}, err
	}
	status := overlay.StatusFor(h)
	c.statuses.Put(status)
	return status, nil
}

func caseDescription(c models.Case) string {
	parts := make([]string, 0, len(c.Symptoms)+1)
	parts = append(parts, c.Symptoms...)
	parts = append(parts, c.TraumaHistory)
	for _, p := range c.Patients {
		parts = append(parts, p.Symptoms...)
		parts = append(parts, p.Trauma)
	}

	text := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			text = append(text, p)
		}
	}
	return strings.Join(text, ". ")
}
