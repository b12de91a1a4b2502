package payloads

import (
	"time"

	"github.com/google/uuid"
)

// SaleWindow is emitted when a scheduled sale starts or ends.
type SaleWindow struct {
	VariantIDs []uuid.UUID `json:"variantIds"`
	OccurredAt time.Time   `json:"occurredAt"`
}
