package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/fashionmarket/storefront-backend/pkg/logger"
)

const defaultWaitlistRetention = 90 * 24 * time.Hour

type waitlistPurger interface {
	DeleteNotifiedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type WaitlistCleanupJobParams struct {
	Logger     *logger.Logger
	Repository waitlistPurger
	Retention  time.Duration
}

func NewWaitlistCleanupJob(params WaitlistCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("waitlist repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultWaitlistRetention
	}
	return &waitlistCleanupJob{
		logg:      params.Logger,
		repo:      params.Repository,
		retention: retention,
		now:       time.Now,
	}, nil
}

type waitlistCleanupJob struct {
	logg      *logger.Logger
	repo      waitlistPurger
	retention time.Duration
	now       func() time.Time
}

func (j *waitlistCleanupJob) Name() string { return "waitlist-cleanup" }

// Run purges notified entries. Pending entries are never touched.
func (j *waitlistCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.repo.DeleteNotifiedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("waitlist cleanup: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	})
	j.logg.Info(logCtx, "waitlist cleanup complete")
	return nil
}
