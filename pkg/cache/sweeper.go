package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule runs the sweeper at the top of every hour.
const DefaultSweepSchedule = "0 * * * *"

// Sweeper deletes expired cache entries on a cron schedule. Stores with
// server-side expiry (Redis) make each sweep a cheap no-op; the sqlite
// and memory stores need it to reclaim space.
type Sweeper struct {
	cache    *Cache
	schedule string
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
}

// NewSweeper creates a sweeper for the cache. An empty schedule uses
// DefaultSweepSchedule.
func NewSweeper(cache *Cache, schedule string) *Sweeper {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	return &Sweeper{
		cache:    cache,
		schedule: schedule,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "cache.sweeper"),
	}
}

// Start begins scheduled sweeping. The context stops the sweeper.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cache.Enabled() {
		s.logger.Debug("cache disabled, skipping sweeper")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	_, err := s.cron.AddFunc(s.schedule, func() {
		s.runSweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("cache sweeper started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// runSweep executes one sweep cycle.
func (s *Sweeper) runSweep(ctx context.Context) {
	deleted, err := s.cache.Sweep(ctx)
	if err != nil {
		s.logger.Error("cache sweep failed", "error", err)
		return
	}

	if deleted > 0 {
		s.logger.Info("cache sweep completed", "deleted_count", deleted)
	} else {
		s.logger.Debug("cache sweep completed, no entries deleted")
	}
}

// Stop stops the sweeper and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("cache sweeper stopped")
	}
}

// IsRunning returns true if the sweeper is active.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled sweep time.
func (s *Sweeper) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return nil
	}

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}

	next := entries[0].Next
	return &next
}
