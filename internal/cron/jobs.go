package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Pruner is the subset of the decision ledger needed by RetentionJob.
// Defined here to keep cron free of a storage dependency.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// Retention defaults.
const (
	DefaultRetention         = 7 * 24 * time.Hour
	DefaultRetentionSchedule = "0 * * * *"
)

// RetentionJob deletes ledger rows older than MaxAge.
type RetentionJob struct {
	Store        Pruner
	MaxAge       time.Duration    // zero = DefaultRetention
	Logger       *slog.Logger     // nil = slog.Default()
	ScheduleExpr string           // empty = DefaultRetentionSchedule
	Now          func() time.Time // nil = time.Now
}

// Compile-time interface check.
var _ Job = (*RetentionJob)(nil)

// Name implements Job.
func (j *RetentionJob) Name() string {
	return "ledger_retention"
}

// Schedule implements Job.
func (j *RetentionJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return DefaultRetentionSchedule
}

// Run prunes rows created before now minus MaxAge.
func (j *RetentionJob) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("cron: retention cancelled: %w", ctx.Err())
	}

	maxAge := j.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultRetention
	}
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}

	pruned, err := j.Store.Prune(ctx, now().Add(-maxAge))
	if err != nil {
		return fmt.Errorf("cron: prune ledger: %w", err)
	}
	if pruned > 0 {
		logger := j.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Info("pruned ledger decisions", "count", pruned, "max_age", maxAge)
	}
	return nil
}
