package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultPruneSchedule runs retention pruning daily at 3 AM.
const DefaultPruneSchedule = "0 3 * * *"

// RetentionConfig contains configuration for the retention pruner.
type RetentionConfig struct {
	// RetentionDays is how many days of records to keep.
	// 0 keeps records forever (no pruning).
	RetentionDays int

	// PruneSchedule is a standard 5-field cron expression.
	// Default: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string
}

// Pruner enforces the retention window on ledger records.
type Pruner struct {
	store   Store
	config  *RetentionConfig
	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
}

// NewPruner creates a retention pruner for the store.
func NewPruner(store Store, config *RetentionConfig) *Pruner {
	if config == nil {
		config = &RetentionConfig{PruneSchedule: DefaultPruneSchedule}
	}
	if config.PruneSchedule == "" {
		config.PruneSchedule = DefaultPruneSchedule
	}

	return &Pruner{
		store:  store,
		config: config,
		cron:   cron.New(),
		logger: slog.Default().With("component", "ledger.retention"),
	}
}

// Prune deletes records older than the retention window and returns how
// many were removed. A zero retention window makes Prune a no-op.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	if p.config.RetentionDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().AddDate(0, 0, -p.config.RetentionDays)
	deleted, err := p.store.Delete(ctx, &Query{EndTime: &cutoff})
	if err != nil {
		return 0, NewRetentionError(p.config.RetentionDays, err)
	}

	if deleted > 0 {
		p.logger.Info("pruned ledger records",
			"deleted_count", deleted,
			"retention_days", p.config.RetentionDays,
		)
	} else {
		p.logger.Debug("no ledger records pruned",
			"retention_days", p.config.RetentionDays,
		)
	}
	return deleted, nil
}

// Start begins scheduled pruning. The context stops the pruner. A zero
// retention window skips scheduling entirely.
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.config.RetentionDays <= 0 {
		p.logger.Debug("retention disabled, skipping pruner")
		return nil
	}

	if _, err := cron.ParseStandard(p.config.PruneSchedule); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", p.config.PruneSchedule, err)
	}

	_, err := p.cron.AddFunc(p.config.PruneSchedule, func() {
		if _, err := p.Prune(ctx); err != nil {
			p.logger.Error("scheduled prune failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule prune: %w", err)
	}

	p.cron.Start()
	p.running = true

	p.logger.Info("ledger pruner started",
		"schedule", p.config.PruneSchedule,
		"retention_days", p.config.RetentionDays,
	)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()

	return nil
}

// Stop stops the pruner and waits for a running prune to finish.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cron != nil && p.running {
		ctx := p.cron.Stop()
		<-ctx.Done()
		p.running = false
		p.logger.Info("ledger pruner stopped")
	}
}

// IsRunning returns true if the pruner is active.
func (p *Pruner) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.running
}

// NextRun returns the next scheduled prune time.
func (p *Pruner) NextRun() *time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries := p.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
