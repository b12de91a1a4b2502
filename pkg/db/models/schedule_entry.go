package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/enums"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/types"
)

// ScheduleEntry pairs a future instant with an effect the sweep applies exactly
// once. Processed entries keep a PurgeAfter timestamp so the purge job can
// physically remove them later.
type ScheduleEntry struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Kind           enums.ScheduleKind `gorm:"column:kind;type:text;not null;index:ix_schedule_entries_due"`
	ActivationTime time.Time          `gorm:"column:activation_time;not null;index:ix_schedule_entries_due"`
	VariantIDs     types.UUIDList     `gorm:"column:variant_ids;type:jsonb;serializer:json"`
	OrderID        *uuid.UUID         `gorm:"column:order_id;type:uuid"`
	Processed      bool               `gorm:"column:processed;not null;default:false;index:ix_schedule_entries_due"`
	AppliedAt      *time.Time         `gorm:"column:applied_at"`
	PurgeAfter     *time.Time         `gorm:"column:purge_after;index"`
	ClaimedBy      *string            `gorm:"column:claimed_by"`
	ClaimedUntil   *time.Time         `gorm:"column:claimed_until"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
