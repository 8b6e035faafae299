package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionConfig controls pruning of old audit records.
type RetentionConfig struct {
	// MaxAge deletes records older than this. Zero keeps records forever.
	MaxAge time.Duration

	// MaxRecords caps the total record count. Zero means unlimited.
	MaxRecords int64

	// Schedule is a cron expression for automatic pruning, e.g.
	// "0 3 * * *" for daily at 3 AM. Empty disables the scheduler.
	Schedule string
}

// Retention prunes audit records on a cron schedule, enforcing age and
// count limits.
type Retention struct {
	store  Store
	config RetentionConfig
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewRetention creates a retention enforcer for store.
func NewRetention(store Store, config RetentionConfig, logger *slog.Logger) *Retention {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retention{
		store:  store,
		config: config,
		cron:   cron.New(),
		logger: logger.With("component", "audit.retention"),
	}
}

// Start schedules automatic pruning. It is a no-op when no schedule is
// configured.
func (r *Retention) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.config.Schedule == "" {
		r.logger.Info("retention schedule not configured, skipping scheduler")
		return nil
	}
	if r.running {
		return fmt.Errorf("retention scheduler already running")
	}

	if _, err := cron.ParseStandard(r.config.Schedule); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", r.config.Schedule, err)
	}

	_, err := r.cron.AddFunc(r.config.Schedule, func() {
		if _, err := r.Prune(ctx); err != nil {
			r.logger.Error("scheduled prune failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule retention: %w", err)
	}

	r.cron.Start()
	r.running = true
	r.logger.Info("retention scheduler started", "schedule", r.config.Schedule)
	return nil
}

// Stop halts the scheduler and waits for a running prune to finish.
func (r *Retention) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	<-r.cron.Stop().Done()
	r.running = false
	r.logger.Info("retention scheduler stopped")
}

// Prune enforces the age limit, then the count limit, and returns the
// total number of records removed.
func (r *Retention) Prune(ctx context.Context) (int64, error) {
	var removed int64

	if r.config.MaxAge > 0 {
		cutoff := time.Now().Add(-r.config.MaxAge)
		n, err := r.store.PruneBefore(ctx, cutoff)
		if err != nil {
			return removed, err
		}
		removed += n
	}

	if r.config.MaxRecords > 0 {
		n, err := r.store.PruneToCount(ctx, r.config.MaxRecords)
		if err != nil {
			return removed, err
		}
		removed += n
	}

	if removed > 0 {
		r.logger.Info("audit records pruned", "removed", removed)
	}
	return removed, nil
}
