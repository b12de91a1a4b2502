package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/cart"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/schedule"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/stock"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/db/models"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/enums"
	pkgerrors "github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/errors"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/logger"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/outbox"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service finalizes or reclaims pending reservations.
type Service interface {
	// Confirm transitions a pending order to complete. Stock stays where the
	// reservation put it; units_sold is counted here and nowhere else.
	Confirm(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)

	// Expire compensates an unpaid reservation: stock returns, the order is
	// marked failed and removed. Callers pass the instant the decision is
	// evaluated against.
	Expire(ctx context.Context, orderID uuid.UUID, now time.Time) (bool, error)

	// ExpireInTx is Expire running inside an existing transaction, so the
	// sweep can mark the schedule entry and compensate atomically.
	ExpireInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, now time.Time) (bool, error)
}

type service struct {
	tx           txRunner
	repo         Repository
	cartRepo     cart.CartRepository
	scheduleRepo schedule.Repository
	outbox       outboxPublisher
	logg         *logger.Logger
	now          func() time.Time
}

// NewService builds the orders service.
func NewService(
	tx txRunner,
	repo Repository,
	cartRepo cart.CartRepository,
	scheduleRepo schedule.Repository,
	publisher outboxPublisher,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if scheduleRepo == nil {
		return nil, fmt.Errorf("schedule repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:           tx,
		repo:         repo,
		cartRepo:     cartRepo,
		scheduleRepo: scheduleRepo,
		outbox:       publisher,
		logg:         logg,
		now:          time.Now,
	}, nil
}

func (s *service) Confirm(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var confirmed *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
		}
		if order.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
		}

		now := s.now().UTC()
		if order.PaymentStatus == enums.PaymentStatusPending && now.After(order.ReservedUntil) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "reservation window elapsed").
				WithDetails(map[string]any{"reserved_until": order.ReservedUntil})
		}

		applied, err := repo.TransitionPaymentStatus(ctx, orderID, enums.PaymentStatusPending, enums.PaymentStatusComplete, &now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "confirming order")
		}
		if !applied {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not pending").
				WithDetails(map[string]any{"payment_status": order.PaymentStatus})
		}

		if err := stock.FinalizeSales(ctx, tx, order.Lines); err != nil {
			return err
		}

		cartRepo := s.cartRepo.WithTx(tx)
		record, err := cartRepo.FindActiveByUser(ctx, userID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// Nothing staged; a cart is not a confirmation precondition.
		case err != nil:
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart")
		default:
			if err := cartRepo.ClearItems(ctx, record.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clearing cart")
			}
			if err := cartRepo.MarkConverted(ctx, record.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "converting cart")
			}
		}

		// The expiry entry is now moot; removing it keeps the sweep from
		// visiting a confirmed order.
		if _, err := s.scheduleRepo.WithTx(tx).DeletePendingExpiryForOrder(ctx, orderID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "removing expiry entry")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderConfirmed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data: payloads.OrderConfirmed{
				OrderID:         orderID,
				UserID:          userID,
				TotalPriceCents: order.TotalPriceCents,
				ConfirmedAt:     now,
			},
			Version:    1,
			OccurredAt: now,
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emitting order confirmed")
		}

		order.PaymentStatus = enums.PaymentStatusComplete
		order.ConfirmedAt = &now
		confirmed = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithOrderID(ctx, orderID.String())
	s.logg.Info(logCtx, "order confirmed")
	return confirmed, nil
}

func (s *service) Expire(ctx context.Context, orderID uuid.UUID, now time.Time) (bool, error) {
	if orderID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	expired := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		expired, txErr = s.ExpireInTx(ctx, tx, orderID, now)
		return txErr
	})
	if err != nil {
		return false, err
	}
	return expired, nil
}

func (s *service) ExpireInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, now time.Time) (bool, error) {
	if orderID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	repo := s.repo.WithTx(tx)
	order, err := repo.FindByID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Already confirmed and cleaned up, or never existed. Either way
		// there is nothing to reclaim.
		return false, nil
	}
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	if order.PaymentStatus != enums.PaymentStatusPending {
		return false, nil
	}
	if order.ReservedUntil.After(now) {
		return false, nil
	}

	applied, err := repo.TransitionPaymentStatus(ctx, orderID, enums.PaymentStatusPending, enums.PaymentStatusFailed, nil)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failing order")
	}
	if !applied {
		return false, nil
	}

	releases := make([]stock.AllocationRequest, 0, len(order.Lines))
	lineRefs := make([]payloads.OrderLineRef, 0, len(order.Lines))
	variantIDs := make([]uuid.UUID, 0, len(order.Lines))
	for _, line := range order.Lines {
		releases = append(releases, stock.AllocationRequest{VariantID: line.VariantID, Size: line.Size, Qty: line.Qty})
		lineRefs = append(lineRefs, payloads.OrderLineRef{VariantID: line.VariantID, Size: line.Size, Qty: line.Qty})
		variantIDs = append(variantIDs, line.VariantID)
	}
	if err := stock.Release(ctx, tx, releases); err != nil {
		return false, err
	}
	if err := stock.RefreshStockStatus(ctx, tx, variantIDs); err != nil {
		return false, err
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventOrderExpired,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Data: payloads.OrderExpired{
			OrderID:   orderID,
			UserID:    order.UserID,
			ExpiredAt: now,
			Lines:     lineRefs,
		},
		Version:    1,
		OccurredAt: now,
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emitting order expired")
	}

	if err := repo.DeleteWithLines(ctx, orderID); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "removing expired order")
	}

	logCtx := s.logg.WithOrderID(ctx, orderID.String())
	s.logg.Info(logCtx, "expired reservation reclaimed")
	return true, nil
}
