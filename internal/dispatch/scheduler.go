package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler periodically recomputes assignments so bed count changes made outside
// the API are picked up
type Scheduler struct {
	cron        *cron.Cron
	coordinator *Coordinator
	timeout     time.Duration
}

// NewScheduler registers the refresh job on the given cron spec, e.g. "@every 30s"
func NewScheduler(spec string, coordinator *Coordinator, timeout time.Duration) (*Scheduler, error) {
	s := &Scheduler{
		cron:        cron.New(),
		coordinator: coordinator,
		timeout:     timeout,
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.coordinator.Recompute(ctx); err != nil {
		s.coordinator.log.Error("scheduled_recompute_failed", "err", err)
	}
}

// Start runs the scheduler in the background
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running job until ctx is done
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
