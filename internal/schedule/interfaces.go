package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/db/models"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/enums"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/types"
)

// Repository is the durable schedule store. Entries survive process restarts;
// the sweep discovers due work by querying, never by in-process timers.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, entry *models.ScheduleEntry) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ScheduleEntry, error)
	FindDue(ctx context.Context, kind enums.ScheduleKind, now time.Time, limit int) ([]models.ScheduleEntry, error)

	// Claim leases one due entry to a sweeper instance. It returns false when
	// another instance holds a live lease or the entry is already processed.
	Claim(ctx context.Context, id uuid.UUID, claimedBy string, leaseUntil, now time.Time) (bool, error)

	// MarkProcessed flips the entry exactly once. It returns false when the
	// entry was already processed by a competing sweeper.
	MarkProcessed(ctx context.Context, id uuid.UUID, appliedAt, purgeAfter time.Time) (bool, error)

	FindPendingSaleEntriesForVariant(ctx context.Context, variantID uuid.UUID) ([]models.ScheduleEntry, error)
	UpdateVariantIDs(ctx context.Context, id uuid.UUID, variantIDs types.UUIDList) error
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
	DeletePendingExpiryForOrder(ctx context.Context, orderID uuid.UUID) (int64, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
