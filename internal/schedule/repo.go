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

type repository struct {
	db *gorm.DB
}

// NewRepository builds a schedule repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.ScheduleEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ScheduleEntry, error) {
	var entry models.ScheduleEntry
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) FindDue(ctx context.Context, kind enums.ScheduleKind, now time.Time, limit int) ([]models.ScheduleEntry, error) {
	var entries []models.ScheduleEntry
	err := r.db.WithContext(ctx).
		Where("kind = ? AND processed = ? AND activation_time <= ?", kind, false, now).
		Where("claimed_until IS NULL OR claimed_until < ?", now).
		Order("activation_time ASC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) Claim(ctx context.Context, id uuid.UUID, claimedBy string, leaseUntil, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ScheduleEntry{}).
		Where("id = ? AND processed = ?", id, false).
		Where("claimed_until IS NULL OR claimed_until < ?", now).
		Updates(map[string]any{
			"claimed_by":    claimedBy,
			"claimed_until": leaseUntil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) MarkProcessed(ctx context.Context, id uuid.UUID, appliedAt, purgeAfter time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ScheduleEntry{}).
		Where("id = ? AND processed = ?", id, false).
		Updates(map[string]any{
			"processed":   true,
			"applied_at":  appliedAt,
			"purge_after": purgeAfter,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// FindPendingSaleEntriesForVariant loads unprocessed sale entries and filters
// membership in Go. variant_ids is a JSON column and containment queries are
// not portable across the supported dialects.
func (r *repository) FindPendingSaleEntriesForVariant(ctx context.Context, variantID uuid.UUID) ([]models.ScheduleEntry, error) {
	var entries []models.ScheduleEntry
	err := r.db.WithContext(ctx).
		Where("processed = ? AND kind IN ?", false, []enums.ScheduleKind{enums.ScheduleKindSaleStart, enums.ScheduleKindSaleEnd}).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	matched := entries[:0]
	for _, entry := range entries {
		if entry.VariantIDs.Contains(variantID) {
			matched = append(matched, entry)
		}
	}
	return matched, nil
}

func (r *repository) UpdateVariantIDs(ctx context.Context, id uuid.UUID, variantIDs types.UUIDList) error {
	return r.db.WithContext(ctx).
		Model(&models.ScheduleEntry{}).
		Where("id = ?", id).
		Update("variant_ids", variantIDs).Error
}

func (r *repository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&models.ScheduleEntry{})
	return res.RowsAffected, res.Error
}

func (r *repository) DeletePendingExpiryForOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("kind = ? AND order_id = ? AND processed = ?", enums.ScheduleKindOrderExpiry, orderID, false).
		Delete(&models.ScheduleEntry{})
	return res.RowsAffected, res.Error
}

func (r *repository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("processed = ? AND purge_after IS NOT NULL AND purge_after < ?", true, cutoff).
		Delete(&models.ScheduleEntry{})
	return res.RowsAffected, res.Error
}
