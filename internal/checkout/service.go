package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/cart"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/orders"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/schedule"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/stock"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/db/models"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/enums"
	pkgerrors "github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/errors"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/logger"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/outbox"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/outbox/payloads"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// RejectedLine names a cart line that could not be allocated.
type RejectedLine struct {
	VariantID uuid.UUID `json:"variantId"`
	Size      string    `json:"size"`
	Qty       int       `json:"qty"`
	Reason    string    `json:"reason"`
}

// ReservationResult is the outcome of a checkout: a pending order holding the
// allocated lines, plus the lines that lost the race for stock.
type ReservationResult struct {
	Order    *models.Order
	Rejected []RejectedLine
}

// Service turns an active cart into a time-boxed reservation.
type Service interface {
	Reserve(ctx context.Context, userID uuid.UUID) (*ReservationResult, error)
}

type service struct {
	tx           txRunner
	cartRepo     cart.CartRepository
	ordersRepo   orders.Repository
	scheduleRepo schedule.Repository
	outbox       outboxPublisher
	logg         *logger.Logger
	window       time.Duration
	now          func() time.Time
}

// NewService builds the checkout service. window bounds how long a pending
// order may hold its stock.
func NewService(
	tx txRunner,
	cartRepo cart.CartRepository,
	ordersRepo orders.Repository,
	scheduleRepo schedule.Repository,
	publisher outboxPublisher,
	logg *logger.Logger,
	window time.Duration,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
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
	if window <= 0 {
		return nil, fmt.Errorf("reservation window must be positive")
	}
	return &service{
		tx:           tx,
		cartRepo:     cartRepo,
		ordersRepo:   ordersRepo,
		scheduleRepo: scheduleRepo,
		outbox:       publisher,
		logg:         logg,
		window:       window,
		now:          time.Now,
	}, nil
}

func (s *service) Reserve(ctx context.Context, userID uuid.UUID) (*ReservationResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	var result *ReservationResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		record, err := cartRepo.FindActiveByUser(ctx, userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no active cart")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart")
		}
		if len(record.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		variants, err := s.loadVariants(ctx, tx, record.Items)
		if err != nil {
			return err
		}

		requests := make([]stock.AllocationRequest, 0, len(record.Items))
		for _, item := range record.Items {
			requests = append(requests, stock.AllocationRequest{
				VariantID: item.VariantID,
				Size:      item.Size,
				Qty:       item.Qty,
			})
		}
		allocations, err := stock.Allocate(ctx, tx, requests)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		order := &models.Order{
			UserID:        userID,
			PaymentStatus: enums.PaymentStatusPending,
			ReservedUntil: now.Add(s.window),
		}
		rejected := make([]RejectedLine, 0)
		variantIDs := make([]uuid.UUID, 0, len(allocations))
		for _, allocation := range allocations {
			req := allocation.Request
			if !allocation.Allocated {
				rejected = append(rejected, RejectedLine{
					VariantID: req.VariantID,
					Size:      req.Size,
					Qty:       req.Qty,
					Reason:    allocation.Reason,
				})
				continue
			}
			variant, ok := variants[req.VariantID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeInternal, "allocated variant missing from catalog")
			}
			price, cost := effectivePrice(variant)
			order.Lines = append(order.Lines, models.OrderLine{
				VariantID:      req.VariantID,
				Size:           req.Size,
				Qty:            req.Qty,
				UnitPriceCents: price,
				UnitCostCents:  cost,
			})
			order.TotalPriceCents += price * req.Qty
			order.TotalCostCents += cost * req.Qty
			variantIDs = append(variantIDs, req.VariantID)
		}
		// Nothing allocated means nothing to reserve. The transaction rolls
		// back and the cart stays untouched for another attempt.
		if len(order.Lines) == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "no cart line could be allocated").
				WithDetails(rejected)
		}

		if _, err := s.ordersRepo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating order")
		}
		if err := stock.RefreshStockStatus(ctx, tx, variantIDs); err != nil {
			return err
		}

		expiry := &models.ScheduleEntry{
			Kind:           enums.ScheduleKindOrderExpiry,
			ActivationTime: order.ReservedUntil,
			OrderID:        &order.ID,
			VariantIDs:     types.UUIDList(variantIDs),
		}
		if err := s.scheduleRepo.WithTx(tx).Create(ctx, expiry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "scheduling expiry")
		}

		lineRefs := make([]payloads.OrderLineRef, 0, len(order.Lines))
		for _, line := range order.Lines {
			lineRefs = append(lineRefs, payloads.OrderLineRef{VariantID: line.VariantID, Size: line.Size, Qty: line.Qty})
		}
		rejectedRefs := make([]payloads.OrderLineRef, 0, len(rejected))
		for _, line := range rejected {
			rejectedRefs = append(rejectedRefs, payloads.OrderLineRef{VariantID: line.VariantID, Size: line.Size, Qty: line.Qty})
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventOrderReserved,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data: payloads.OrderReserved{
				OrderID:       order.ID,
				UserID:        userID,
				ReservedUntil: order.ReservedUntil,
				Lines:         lineRefs,
				Rejected:      rejectedRefs,
			},
			Version:    1,
			OccurredAt: now,
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emitting order reserved")
		}

		result = &ReservationResult{Order: order, Rejected: rejected}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":       result.Order.ID.String(),
		"reserved_until": result.Order.ReservedUntil,
		"rejected_lines": len(result.Rejected),
	})
	s.logg.Info(logCtx, "reservation created")
	return result, nil
}

func (s *service) loadVariants(ctx context.Context, tx *gorm.DB, items []models.CartItem) (map[uuid.UUID]*models.ProductVariant, error) {
	ids := make([]uuid.UUID, 0, len(items))
	seen := make(map[uuid.UUID]bool, len(items))
	for _, item := range items {
		if !seen[item.VariantID] {
			seen[item.VariantID] = true
			ids = append(ids, item.VariantID)
		}
	}
	var rows []models.ProductVariant
	err := tx.WithContext(ctx).
		Preload("Product").
		Where("id IN ? AND is_active = ?", ids, true).
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading variants")
	}
	variants := make(map[uuid.UUID]*models.ProductVariant, len(rows))
	for i := range rows {
		variants[rows[i].ID] = &rows[i]
	}
	for _, item := range items {
		if _, ok := variants[item.VariantID]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart references an unavailable variant").
				WithDetails(map[string]any{"variant_id": item.VariantID})
		}
	}
	return variants, nil
}

// effectivePrice picks the sale price while a sale window is open, the list
// price otherwise.
func effectivePrice(variant *models.ProductVariant) (price, cost int) {
	price = variant.Product.PriceCents
	cost = variant.Product.CostCents
	if variant.IsOnSale && variant.SaleOptions != nil && variant.SaleOptions.SalePriceCents > 0 {
		price = variant.SaleOptions.SalePriceCents
	}
	return price, cost
}
