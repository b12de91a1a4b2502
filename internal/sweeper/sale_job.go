package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/schedule"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/db/models"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/enums"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/logger"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/metrics"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/outbox"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/outbox/payloads"
)

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// SaleJobParams configure the sale window job.
type SaleJobParams struct {
	Logger       *logger.Logger
	DB           txRunner
	ScheduleRepo schedule.Repository
	Outbox       outboxEmitter
	Metrics      *metrics.SweepJobMetrics
	InstanceID   string
	BatchSize    int
	ClaimLease   time.Duration
	Retention    time.Duration
}

// NewSaleJob builds the job that opens and closes scheduled sale windows.
func NewSaleJob(params SaleJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.ScheduleRepo == nil {
		return nil, fmt.Errorf("schedule repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
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
	return &saleJob{
		logg:         params.Logger,
		db:           params.DB,
		scheduleRepo: params.ScheduleRepo,
		outbox:       params.Outbox,
		metrics:      params.Metrics,
		instanceID:   params.InstanceID,
		batchSize:    params.BatchSize,
		claimLease:   params.ClaimLease,
		retention:    params.Retention,
		now:          time.Now,
	}, nil
}

type saleJob struct {
	logg         *logger.Logger
	db           txRunner
	scheduleRepo schedule.Repository
	outbox       outboxEmitter
	metrics      *metrics.SweepJobMetrics
	instanceID   string
	batchSize    int
	claimLease   time.Duration
	retention    time.Duration
	now          func() time.Time
}

func (j *saleJob) Name() string { return "sale-window" }

func (j *saleJob) Run(ctx context.Context) error {
	var errs []error
	for _, kind := range []enums.ScheduleKind{enums.ScheduleKindSaleStart, enums.ScheduleKindSaleEnd} {
		if err := j.sweepKind(ctx, kind); err != nil {
			errs = append(errs, err)
		}
	}
	return multierr.Combine(errs...)
}

func (j *saleJob) sweepKind(ctx context.Context, kind enums.ScheduleKind) error {
	now := j.now().UTC()
	entries, err := j.scheduleRepo.FindDue(ctx, kind, now, j.batchSize)
	if err != nil {
		return fmt.Errorf("query due %s entries: %w", kind, err)
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
		if err := j.processEntry(ctx, entry, kind, now); err != nil {
			errs = append(errs, fmt.Errorf("process entry %s: %w", entry.ID, err))
			continue
		}
		processed++
	}
	if processed > 0 {
		j.recordProcessed(processed)
		logCtx := j.logg.WithFields(ctx, map[string]any{"kind": kind, "processed": processed})
		j.logg.Info(logCtx, "sale window entries swept")
	}
	return multierr.Combine(errs...)
}

// processEntry applies the window flip and marks the entry in one
// transaction. The bulk update must touch exactly the variants the entry
// names; a mismatch rolls everything back so a later cycle can retry.
func (j *saleJob) processEntry(ctx context.Context, entry models.ScheduleEntry, kind enums.ScheduleKind, now time.Time) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.scheduleRepo.WithTx(tx)
		applied, err := repo.MarkProcessed(ctx, entry.ID, now, now.Add(j.retention))
		if err != nil {
			return fmt.Errorf("mark processed: %w", err)
		}
		if !applied {
			return nil
		}

		// The scan snapshot is stale by now; a cancellation may have
		// withdrawn variants since. Re-read the list inside the tx.
		fresh, err := repo.FindByID(ctx, entry.ID)
		if err != nil {
			return fmt.Errorf("reload entry: %w", err)
		}
		variantIDs := []uuid.UUID(fresh.VariantIDs)
		if len(variantIDs) == 0 {
			return nil
		}

		var res *gorm.DB
		eventType := enums.EventSaleStarted
		if kind == enums.ScheduleKindSaleStart {
			res = tx.WithContext(ctx).
				Model(&models.ProductVariant{}).
				Where("id IN ?", variantIDs).
				Update("is_on_sale", true)
		} else {
			eventType = enums.EventSaleEnded
			res = tx.WithContext(ctx).
				Model(&models.ProductVariant{}).
				Where("id IN ?", variantIDs).
				Updates(map[string]any{"is_on_sale": false, "sale_options": nil})
		}
		if res.Error != nil {
			return fmt.Errorf("apply %s: %w", kind, res.Error)
		}
		if res.RowsAffected != int64(len(variantIDs)) {
			return fmt.Errorf("apply %s touched %d of %d variants", kind, res.RowsAffected, len(variantIDs))
		}

		event := outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateProductVariant,
			AggregateID:   variantIDs[0],
			Data: payloads.SaleWindow{
				VariantIDs: variantIDs,
				OccurredAt: now,
			},
			Version:    1,
			OccurredAt: now,
		}
		if err := j.outbox.Emit(ctx, tx, event); err != nil {
			return fmt.Errorf("emit %s: %w", eventType, err)
		}
		return nil
	})
}

func (j *saleJob) recordProcessed(count int) {
	if j.metrics == nil {
		return
	}
	j.metrics.AddProcessed(j.Name(), count)
}
