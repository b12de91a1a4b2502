package models

import (
	"time"

	"github.com/google/uuid"
)

// VariantSize holds the available quantity for one size of a variant. It is the
// unit of conditional stock mutation: quantity_left only changes through the
// guarded decrement or the unconditional increment, never read-modify-write.
type VariantSize struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	VariantID    uuid.UUID `gorm:"column:variant_id;type:uuid;not null;uniqueIndex:ux_variant_sizes_variant_size"`
	Size         string    `gorm:"column:size;not null;uniqueIndex:ux_variant_sizes_variant_size"`
	QuantityLeft int       `gorm:"column:quantity_left;not null;default:0"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
