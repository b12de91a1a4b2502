package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/orders"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/schedule"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/enums"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/logger"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ExpiryJobParams configure the reservation expiry job.
type ExpiryJobParams struct {
	Logger       *logger.Logger
	DB           txRunner
	ScheduleRepo schedule.Repository
	Orders       orders.Service
	Metrics      *metrics.SweepJobMetrics
	InstanceID   string
	BatchSize    int
	ClaimLease   time.Duration
	Retention    time.Duration
}

// NewExpiryJob builds the job that reclaims unpaid reservations.
func NewExpiryJob(params ExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.ScheduleRepo == nil {
		return nil, fmt.Errorf("schedule repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.InstanceID == "" {
		params.InstanceID = uuid.NewString()
	}
	if params.BatchSize <= 0 {
		params.BatchSize = 100
	}
	if params.ClaimLease <= 0 {
		params.ClaimLease = time.Minute
	}
	if params.Retention <= 0 {
		params.Retention = 24 * time.Hour
	}
	return &expiryJob{
		logg:         params.Logger,
		db:           params.DB,
		scheduleRepo: params.ScheduleRepo,
		orders:       params.Orders,
		metrics:      params.Metrics,
		instanceID:   params.InstanceID,
		batchSize:    params.BatchSize,
		claimLease:   params.ClaimLease,
		retention:    params.Retention,
		now:          time.Now,
	}, nil
}

type expiryJob struct {
	logg         *logger.Logger
	db           txRunner
	scheduleRepo schedule.Repository
	orders       orders.Service
	metrics      *metrics.SweepJobMetrics
	instanceID   string
	batchSize    int
	claimLease   time.Duration
	retention    time.Duration
	now          func() time.Time
}

func (j *expiryJob) Name() string { return "reservation-expiry" }

func (j *expiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	entries, err := j.scheduleRepo.FindDue(ctx, enums.ScheduleKindOrderExpiry, now, j.batchSize)
	if err != nil {
		return fmt.Errorf("query due expiry entries: %w", err)
	}

	var errs []error
	processed := 0
	for _, entry := range entries {
		claimed, err := j.scheduleRepo.Claim(ctx, entry.ID, j.instanceID, now.Add(j.claimLease), now)
		if err != nil {
			errs = append(errs, fmt.Errorf("claim entry %s: %w", entry.ID, err))
			continue
		}
		if !claimed {
			continue
		}
		if err := j.processEntry(ctx, entry.ID, entry.OrderID, now); err != nil {
			errs = append(errs, fmt.Errorf("process entry %s: %w", entry.ID, err))
			continue
		}
		processed++
	}
	if processed > 0 {
		j.recordProcessed(processed)
		logCtx := j.logg.WithField(ctx, "processed", processed)
		j.logg.Info(logCtx, "expired reservations swept")
	}
	return multierr.Combine(errs...)
}

// processEntry marks the entry and compensates the order in one transaction.
// A competing sweeper losing the MarkProcessed race exits without side
// effects.
func (j *expiryJob) processEntry(ctx context.Context, entryID uuid.UUID, orderID *uuid.UUID, now time.Time) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		applied, err := j.scheduleRepo.WithTx(tx).MarkProcessed(ctx, entryID, now, now.Add(j.retention))
		if err != nil {
			return fmt.Errorf("mark processed: %w", err)
		}
		if !applied {
			return nil
		}
		if orderID == nil {
			return fmt.Errorf("expiry entry %s has no order id", entryID)
		}
		if _, err := j.orders.ExpireInTx(ctx, tx, *orderID, now); err != nil {
			return err
		}
		return nil
	})
}

func (j *expiryJob) recordProcessed(count int) {
	if j.metrics == nil {
		return
	}
	j.metrics.AddProcessed(j.Name(), count)
}
