package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/enums"
)

// Order is a time-boxed reservation of stock. It is created pending with its
// lines already allocated and either confirms before ReservedUntil or is
// compensated by the sweep.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending';index:ix_orders_status_reserved_until"`
	ReservedUntil   time.Time           `gorm:"column:reserved_until;not null;index:ix_orders_status_reserved_until"`
	TotalPriceCents int                 `gorm:"column:total_price_cents;not null"`
	TotalCostCents  int                 `gorm:"column:total_cost_cents;not null"`
	Lines           []OrderLine         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	ConfirmedAt     *time.Time          `gorm:"column:confirmed_at"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
