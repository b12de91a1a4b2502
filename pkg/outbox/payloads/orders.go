package payloads

import (
	"time"

	"github.com/google/uuid"
)

// OrderLineRef mirrors one order line in event payloads.
type OrderLineRef struct {
	VariantID uuid.UUID `json:"variantId"`
	Size      string    `json:"size"`
	Qty       int       `json:"qty"`
}

// OrderReserved is emitted when checkout creates a pending order.
type OrderReserved struct {
	OrderID       uuid.UUID      `json:"orderId"`
	UserID        uuid.UUID      `json:"userId"`
	ReservedUntil time.Time      `json:"reservedUntil"`
	Lines         []OrderLineRef `json:"lines"`
	Rejected      []OrderLineRef `json:"rejected,omitempty"`
}

// OrderConfirmed is emitted when payment confirmation lands in time.
type OrderConfirmed struct {
	OrderID         uuid.UUID `json:"orderId"`
	UserID          uuid.UUID `json:"userId"`
	TotalPriceCents int       `json:"totalPriceCents"`
	ConfirmedAt     time.Time `json:"confirmedAt"`
}

// OrderExpired is emitted when the sweep reclaims an unpaid reservation.
type OrderExpired struct {
	OrderID   uuid.UUID      `json:"orderId"`
	UserID    uuid.UUID      `json:"userId"`
	ExpiredAt time.Time      `json:"expiredAt"`
	Lines     []OrderLineRef `json:"lines"`
}
