package worker

import (
	"context"
	"log/slog"
	"time"
)

// PruneFunc deletes entries last updated before threshold.
type PruneFunc func(ctx context.Context, threshold time.Time) (int, error)

// Pruner deletes old cursors based on a retention policy.
type Pruner struct {
	name      string
	retention time.Duration
	prune     PruneFunc
	now       func() time.Time
}

// NewPruner creates a new Pruner worker.
func NewPruner(name string, retention time.Duration, prune PruneFunc) *Pruner {
	return &Pruner{
		name:      name,
		retention: retention,
		prune:     prune,
		now:       time.Now,
	}
}

// Start runs the pruner loop until ctx is done.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	// Check every 10% of the retention period, between 1 minute and 1 hour
	interval := min(p.retention/10, 1*time.Hour)
	interval = max(interval, 1*time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *Pruner) runOnce(ctx context.Context) int {
	threshold := p.now().Add(-p.retention)

	removed, err := p.prune(ctx, threshold)
	if err != nil {
		slog.Error("Pruner failed", "name", p.name, "error", err)
		return 0
	}
	if removed > 0 {
		slog.Debug("Pruned stale entries", "name", p.name, "removed", removed)
	}
	return removed
}
