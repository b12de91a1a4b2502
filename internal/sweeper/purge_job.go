package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/schedule"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/logger"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/metrics"
)

const defaultOutboxRetention = 30 * 24 * time.Hour

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PurgeJobParams configure the schedule purge job.
type PurgeJobParams struct {
	Logger          *logger.Logger
	ScheduleRepo    schedule.Repository
	OutboxRepo      outboxRetentionRepo
	Metrics         *metrics.SweepJobMetrics
	OutboxRetention time.Duration
}

// NewPurgeJob builds the job that removes processed schedule entries past
// their retention window and published outbox rows past theirs.
func NewPurgeJob(params PurgeJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.ScheduleRepo == nil {
		return nil, fmt.Errorf("schedule repository required")
	}
	if params.OutboxRetention <= 0 {
		params.OutboxRetention = defaultOutboxRetention
	}
	return &purgeJob{
		logg:            params.Logger,
		scheduleRepo:    params.ScheduleRepo,
		outboxRepo:      params.OutboxRepo,
		metrics:         params.Metrics,
		outboxRetention: params.OutboxRetention,
		now:             time.Now,
	}, nil
}

type purgeJob struct {
	logg            *logger.Logger
	scheduleRepo    schedule.Repository
	outboxRepo      outboxRetentionRepo
	metrics         *metrics.SweepJobMetrics
	outboxRetention time.Duration
	now             func() time.Time
}

func (j *purgeJob) Name() string { return "schedule-purge" }

func (j *purgeJob) Run(ctx context.Context) error {
	now := j.now().UTC()

	purged, err := j.scheduleRepo.PurgeBefore(ctx, now)
	if err != nil {
		return fmt.Errorf("purge schedule entries: %w", err)
	}
	if purged > 0 {
		logCtx := j.logg.WithField(ctx, "purged", purged)
		j.logg.Info(logCtx, "processed schedule entries purged")
	}

	var outboxDeleted int64
	if j.outboxRepo != nil {
		cutoff := now.Add(-j.outboxRetention)
		outboxDeleted, err = j.outboxRepo.DeletePublishedBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("purge outbox events: %w", err)
		}
		if outboxDeleted > 0 {
			logCtx := j.logg.WithFields(ctx, map[string]any{
				"cutoff":       cutoff,
				"rows_deleted": outboxDeleted,
			})
			j.logg.Info(logCtx, "published outbox events purged")
		}
	}

	if j.metrics != nil && purged+outboxDeleted > 0 {
		j.metrics.AddProcessed(j.Name(), int(purged+outboxDeleted))
	}
	return nil
}
