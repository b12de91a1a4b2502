package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/db/models"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/enums"
)

// Repository exposes persistence operations for orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)

	// TransitionPaymentStatus applies a guarded status change. It returns
	// false when the order is no longer in the expected state.
	TransitionPaymentStatus(ctx context.Context, id uuid.UUID, from, to enums.PaymentStatus, confirmedAt *time.Time) (bool, error)

	DeleteWithLines(ctx context.Context, id uuid.UUID) error
}
