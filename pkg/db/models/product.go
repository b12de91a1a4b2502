package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the parent record for sellable variants. Catalog CRUD lives in the
// admin surface; the core only needs the ownership linkage and price snapshots.
type Product struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Title       string    `gorm:"column:title;not null"`
	Description string    `gorm:"column:description"`
	PriceCents  int       `gorm:"column:price_cents;not null"`
	CostCents   int       `gorm:"column:cost_cents;not null;default:0"`
	IsActive    bool      `gorm:"column:is_active;not null;default:true"`
	Variants    []ProductVariant `gorm:"foreignKey:ProductID"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
