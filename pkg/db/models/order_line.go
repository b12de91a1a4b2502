package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderLine snapshots one allocated (variant, size, qty) with the unit price
// and cost at reservation time.
type OrderLine struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	VariantID      uuid.UUID `gorm:"column:variant_id;type:uuid;not null"`
	Size           string    `gorm:"column:size;not null"`
	Qty            int       `gorm:"column:qty;not null"`
	UnitPriceCents int       `gorm:"column:unit_price_cents;not null"`
	UnitCostCents  int       `gorm:"column:unit_cost_cents;not null;default:0"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}
