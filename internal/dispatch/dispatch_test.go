package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatcher/internal/allocation"
	"dispatcher/internal/cache"
	"dispatcher/internal/models"
	"dispatcher/internal/overlay"
	"dispatcher/internal/store"
	"dispatcher/internal/triage"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memorySnapshotCache keeps the encoded snapshot in a byte slice
type memorySnapshotCache struct {
	mu   sync.Mutex
	data []byte
}

func (m *memorySnapshotCache) Get(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, cache.ErrMiss
	}
	return m.data, nil
}

func (m *memorySnapshotCache) Put(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	return nil
}

// pausingStore holds the first case listing until released, after the cases were read
type pausingStore struct {
	*store.MemoryStore
	paused  atomic.Bool
	listed  chan struct{}
	release chan struct{}
}

func newPausingStore() *pausingStore {
	return &pausingStore{
		MemoryStore: store.NewMemoryStore(),
		listed:      make(chan struct{}),
		release:     make(chan struct{}),
	}
}

func (p *pausingStore) ListCases(ctx context.Context) ([]models.Case, error) {
	cases, err := p.MemoryStore.ListCases(ctx)
	if p.paused.CompareAndSwap(false, true) {
		close(p.listed)
		<-p.release
	}
	return cases, err
}

// countingStore counts hospital reads
type countingStore struct {
	*store.MemoryStore
	hospitalReads atomic.Int32
}

func (c *countingStore) GetHospital(ctx context.Context, name string) (models.Hospital, error) {
	c.hospitalReads.Add(1)
	return c.MemoryStore.GetHospital(ctx, name)
}

func newTestCoordinator(t *testing.T, c cache.SnapshotCache) (*Coordinator, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	coord := NewCoordinator(s, c, nil, CoordinatorConfig{Logger: quietLogger(), PassTimeout: 5 * time.Second})
	return coord, s
}

func seed(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()
	hospitals := []models.Hospital{
		{
			Name:     "Central",
			Latitude: 0.01,
			Resources: models.Resources{
				EmergencyBeds: models.BedPool{Available: 3, Total: 30},
				ICUBeds:       models.BedPool{Available: 1, Total: 12},
				PediatricBeds: models.BedPool{Available: 2, Total: 8},
				LabSlots:      4,
				PharmacySlots: 2,
			},
			Capabilities: models.NewCapabilitySet(models.CapabilityTrauma, models.CapabilityCardiology),
		},
		{
			Name:     "Harbor",
			Latitude: 0.05,
			Resources: models.Resources{
				EmergencyBeds: models.BedPool{Available: 10, Total: 10},
			},
			Capabilities: models.NewCapabilitySet(models.CapabilityTrauma, models.CapabilityBurn),
		},
	}
	require.NoError(t, store.SeedHospitals(ctx, s, hospitals))

	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	cases := []models.Case{
		{ID: "a1", Location: "Station", Severity: models.SeverityCritical, Victims: 2, Symptoms: []string{"heavy bleeding"}, ReportedAt: base},
		{ID: "a2", Location: "Station", Severity: models.SeverityMild, Victims: 1, ReportedAt: base.Add(time.Minute)},
		{ID: "b1", Location: "Mill", Severity: models.SeveritySevere, Victims: 7, TraumaHistory: "burns", ReportedAt: base.Add(2 * time.Minute)},
	}
	for _, c := range cases {
		require.NoError(t, s.SaveCase(ctx, c))
	}
}

func TestRecompute(t *testing.T) {
	ctx := context.Background()
	local := &memorySnapshotCache{}
	coord, s := newTestCoordinator(t, local)
	seed(t, s)

	snap, err := coord.Recompute(ctx)
	require.NoError(t, err)

	t.Run("should assign groups in priority order", func(t *testing.T) {
		require.Len(t, snap.Decisions, 2)
		assert.Equal(t, "Station", snap.Decisions[0].Location)
		assert.Equal(t, "Central", snap.Decisions[0].Hospital)
		assert.Equal(t, allocation.TierFullMatch, snap.Decisions[0].Tier)
		assert.Equal(t, "Mill", snap.Decisions[1].Location)
		assert.Equal(t, "Harbor", snap.Decisions[1].Hospital)
		assert.Equal(t, 3, snap.Ledger["Central"])
		assert.Equal(t, 7, snap.Ledger["Harbor"])
	})

	t.Run("should persist assignments", func(t *testing.T) {
		c, err := s.GetCase(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, "Harbor", c.Assigned())
		assert.Zero(t, snap.Unassigned)
	})

	t.Run("should derive overlays", func(t *testing.T) {
		require.Len(t, snap.Hospitals, 2)
		central := snap.Hospitals[0]
		assert.Equal(t, "Central", central.Hospital)
		assert.Equal(t, 83, central.Occupancy)
		assert.Equal(t, overlay.OccupancyCritical, central.Level)
		assert.Equal(t, overlay.OccupancyHigh, central.EmergencyLevel)

		require.Len(t, snap.Locations, 2)
		assert.Equal(t, overlay.DangerYellow, snap.Locations[0].Danger)
		assert.Equal(t, overlay.DangerOrange, snap.Locations[1].Danger)
	})

	t.Run("should write the snapshot to the cache", func(t *testing.T) {
		data, err := local.Get(ctx)
		require.NoError(t, err)

		var cached Snapshot
		require.NoError(t, json.Unmarshal(data, &cached))
		assert.Equal(t, snap.ID, cached.ID)
	})

	t.Run("should serve the latest snapshot from memory", func(t *testing.T) {
		latest, err := coord.Snapshot(ctx)
		require.NoError(t, err)
		assert.Same(t, snap, latest)
	})
}

func TestRecomputeConcurrent(t *testing.T) {
	coord, s := newTestCoordinator(t, nil)
	seed(t, s)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := coord.Recompute(context.Background())
			if err == nil && len(snap.Decisions) != 2 {
				t.Errorf("unexpected decisions: %d", len(snap.Decisions))
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestRecomputeDuringMutation(t *testing.T) {
	ctx := context.Background()
	s := newPausingStore()
	seed(t, s.MemoryStore)
	coord := NewCoordinator(s, nil, nil, CoordinatorConfig{Logger: quietLogger(), PassTimeout: 5 * time.Second})

	// a scheduled pass reads three cases and stalls before publishing
	done := make(chan *Snapshot, 1)
	go func() {
		snap, err := coord.Recompute(ctx)
		assert.NoError(t, err)
		done <- snap
	}()
	<-s.listed

	created, err := coord.CreateCase(ctx, models.Case{
		ID:       "c1",
		Location: "Depot",
		Severity: models.SeverityModerate,
		Victims:  1,
	}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, created.Assigned())

	close(s.release)
	stale := <-done

	t.Run("should keep the newer snapshot", func(t *testing.T) {
		latest, err := coord.Snapshot(ctx)
		require.NoError(t, err)
		assert.Len(t, latest.Cases, 4)
		assert.Len(t, stale.Cases, 4)
	})

	t.Run("should keep the assignment of the new case", func(t *testing.T) {
		c, err := coord.GetCase(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, created.Assigned(), c.Assigned())
	})
}

func TestHospitalStatusCache(t *testing.T) {
	ctx := context.Background()
	s := &countingStore{MemoryStore: store.NewMemoryStore()}
	seed(t, s.MemoryStore)
	coord := NewCoordinator(s, nil, nil, CoordinatorConfig{Logger: quietLogger()})

	t.Run("should derive a status on a miss and reuse it", func(t *testing.T) {
		status, err := coord.HospitalStatus(ctx, "Central")
		require.NoError(t, err)
		assert.Equal(t, 83, status.Occupancy)

		_, err = coord.HospitalStatus(ctx, "Central")
		require.NoError(t, err)
		assert.Equal(t, int32(1), s.hospitalReads.Load())
	})

	t.Run("should serve statuses computed by a pass", func(t *testing.T) {
		_, err := coord.Recompute(ctx)
		require.NoError(t, err)
		before := s.hospitalReads.Load()

		status, err := coord.HospitalStatus(ctx, "Harbor")
		require.NoError(t, err)
		assert.Equal(t, overlay.OccupancyLow, status.EmergencyLevel)
		assert.Equal(t, before, s.hospitalReads.Load())
	})

	t.Run("should reflect an updated hospital", func(t *testing.T) {
		_, err := coord.UpsertHospital(ctx, models.Hospital{
			Name:      "Harbor",
			Resources: models.Resources{EmergencyBeds: models.BedPool{Available: 1, Total: 10}},
		})
		require.NoError(t, err)

		status, err := coord.HospitalStatus(ctx, "Harbor")
		require.NoError(t, err)
		assert.Equal(t, overlay.OccupancyCritical, status.EmergencyLevel)
	})

	t.Run("should forget a deleted hospital", func(t *testing.T) {
		require.NoError(t, coord.DeleteHospital(ctx, "Harbor"))

		_, err := coord.HospitalStatus(ctx, "Harbor")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestSnapshotFromCache(t *testing.T) {
	cached := Snapshot{ID: "cached-snapshot", ComputedAt: time.Now().UTC()}
	data, err := json.Marshal(cached)
	require.NoError(t, err)

	local := &memorySnapshotCache{data: data}
	coord, _ := newTestCoordinator(t, local)

	snap, err := coord.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cached-snapshot", snap.ID)
}

func TestSnapshotComputesOnMiss(t *testing.T) {
	coord, s := newTestCoordinator(t, cache.NopCache{})
	seed(t, s)

	snap, err := coord.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Cases, 3)
}

func TestCaseMutations(t *testing.T) {
	ctx := context.Background()
	coord, s := newTestCoordinator(t, nil)
	seed(t, s)

	t.Run("should classify and assign a new case", func(t *testing.T) {
		c, err := coord.CreateCase(ctx, models.Case{
			Location: "Bridge",
			Victims:  1,
			Symptoms: []string{"not breathing"},
		}, nil)
		require.NoError(t, err)

		assert.NotEmpty(t, c.ID)
		assert.False(t, c.ReportedAt.IsZero())
		assert.Equal(t, models.SeverityCritical, c.Severity)
		assert.NotEmpty(t, c.Assigned())
	})

	t.Run("should use structured intake answers", func(t *testing.T) {
		trapped := true
		age := 80
		c, err := coord.CreateCase(ctx, models.Case{Location: "Bridge", Victims: 1}, &triage.Intake{
			Description: "sprained wrist",
			Age:         &age,
			Trapped:     &trapped,
		})
		require.NoError(t, err)
		assert.Equal(t, models.SeverityCritical, c.Severity)
	})

	t.Run("should reject invalid cases", func(t *testing.T) {
		_, err := coord.CreateCase(ctx, models.Case{Location: "", Severity: models.SeverityMild}, nil)
		assert.ErrorIs(t, err, models.ErrInvalidCase)
	})

	t.Run("should list newest first with a severity filter", func(t *testing.T) {
		all, err := coord.ListCases(ctx, "")
		require.NoError(t, err)
		require.Len(t, all, 5)
		for i := 1; i < len(all); i++ {
			assert.False(t, all[i].ReportedAt.After(all[i-1].ReportedAt))
		}

		mild, err := coord.ListCases(ctx, models.SeverityMild)
		require.NoError(t, err)
		require.Len(t, mild, 1)
		assert.Equal(t, "a2", mild[0].ID)
	})

	t.Run("should report missing cases", func(t *testing.T) {
		assert.ErrorIs(t, coord.DeleteCase(ctx, "missing"), store.ErrNotFound)
	})
}

func TestHospitalMutations(t *testing.T) {
	ctx := context.Background()
	coord, s := newTestCoordinator(t, nil)
	seed(t, s)

	_, err := coord.Recompute(ctx)
	require.NoError(t, err)

	t.Run("should reassign when a hospital is removed", func(t *testing.T) {
		require.NoError(t, coord.DeleteHospital(ctx, "Harbor"))

		c, err := coord.GetCase(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, "Central", c.Assigned())
	})

	t.Run("should unassign everything with an empty registry", func(t *testing.T) {
		require.NoError(t, coord.DeleteHospital(ctx, "Central"))

		snap, err := coord.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, snap.Unassigned)
		for _, c := range snap.Cases {
			assert.Nil(t, c.AssignedHospital)
		}
		for _, d := range snap.Decisions {
			assert.Equal(t, allocation.TierNone, d.Tier)
		}
	})

	t.Run("should register a hospital and assign to it", func(t *testing.T) {
		h, err := coord.UpsertHospital(ctx, models.Hospital{
			Name:      "Field",
			Resources: models.Resources{EmergencyBeds: models.BedPool{Available: 20, Total: 20}},
		})
		require.NoError(t, err)
		assert.NotEmpty(t, h.ID)

		c, err := coord.GetCase(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, "Field", c.Assigned())

		status, err := coord.HospitalStatus(ctx, "Field")
		require.NoError(t, err)
		assert.Equal(t, overlay.OccupancyLow, status.EmergencyLevel)
	})

	t.Run("should reject invalid hospitals", func(t *testing.T) {
		_, err := coord.UpsertHospital(ctx, models.Hospital{
			Name:      "Broken",
			Resources: models.Resources{EmergencyBeds: models.BedPool{Available: 5, Total: 1}},
		})
		assert.ErrorIs(t, err, models.ErrInvalidHospital)
	})
}

func TestBackup(t *testing.T) {
	ctx := context.Background()
	coord, s := newTestCoordinator(t, nil)
	seed(t, s)
	_, err := coord.Recompute(ctx)
	require.NoError(t, err)

	t.Run("should find an alternative to the assigned hospital", func(t *testing.T) {
		res, err := coord.Backup(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, "Central", res.Primary)
		require.True(t, res.Available)
		assert.Equal(t, "Harbor", res.Hospital.Name)
		assert.Greater(t, res.DistanceKm, 0.0)
	})

	t.Run("should report when no alternative exists", func(t *testing.T) {
		res, err := coord.Backup(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, "Harbor", res.Primary)
		assert.False(t, res.Available)
		assert.Nil(t, res.Hospital)
	})

	t.Run("should fail for unknown cases", func(t *testing.T) {
		_, err := coord.Backup(ctx, "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	coord, s := newTestCoordinator(t, nil)
	seed(t, s)

	before, err := coord.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, before.Unassigned)

	_, err = coord.Recompute(ctx)
	require.NoError(t, err)

	stats, err := coord.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalCases)
	assert.Equal(t, 10, stats.TotalVictims)
	assert.Equal(t, map[models.Severity]int{
		models.SeverityCritical: 1,
		models.SeveritySevere:   1,
		models.SeverityModerate: 0,
		models.SeverityMild:     1,
	}, stats.SeverityDistribution)
	assert.Zero(t, stats.Unassigned)
	require.Len(t, stats.Locations, 2)
	assert.Equal(t, "Station", stats.Locations[0].Location)
}

func TestScheduler(t *testing.T) {
	coord, _ := newTestCoordinator(t, nil)

	t.Run("should reject an invalid schedule", func(t *testing.T) {
		_, err := NewScheduler("every now and then", coord, time.Second)
		assert.Error(t, err)
	})

	t.Run("should start and stop", func(t *testing.T) {
		sched, err := NewScheduler("@every 1h", coord, time.Second)
		require.NoError(t, err)
		sched.Start()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		sched.Stop(ctx)
	})

	t.Run("should recompute when the job runs", func(t *testing.T) {
		c, s := newTestCoordinator(t, nil)
		seed(t, s)
		sched, err := NewScheduler("@every 1h", c, time.Second)
		require.NoError(t, err)

		sched.run()

		snap, err := c.Snapshot(context.Background())
		require.NoError(t, err)
		assert.Len(t, snap.Decisions, 2)
	})
}
