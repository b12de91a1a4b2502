package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/schedule"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/db/models"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/enums"
	pkgerrors "github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/errors"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/logger"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/types"
)

const (
	minDiscountPercentage = 1
	maxDiscountPercentage = 90
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SaleRequest schedules one discount window over a set of variants.
type SaleRequest struct {
	VariantIDs         []uuid.UUID
	StartDate          time.Time
	EndDate            time.Time
	DiscountPercentage int
}

// Service manages scheduled discount windows.
type Service interface {
	// ScheduleSale records the window durably. Variants flip on sale when the
	// sweep reaches StartDate; a window already open flips them immediately.
	ScheduleSale(ctx context.Context, req SaleRequest) error

	// CancelSale clears a variant's sale configuration and withdraws it from
	// any pending window.
	CancelSale(ctx context.Context, variantID uuid.UUID) error
}

type service struct {
	tx           txRunner
	scheduleRepo schedule.Repository
	logg         *logger.Logger
	now          func() time.Time
}

// NewService builds the sales service.
func NewService(tx txRunner, scheduleRepo schedule.Repository, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if scheduleRepo == nil {
		return nil, fmt.Errorf("schedule repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:           tx,
		scheduleRepo: scheduleRepo,
		logg:         logg,
		now:          time.Now,
	}, nil
}

func (s *service) ScheduleSale(ctx context.Context, req SaleRequest) error {
	if len(req.VariantIDs) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one variant required")
	}
	if req.DiscountPercentage < minDiscountPercentage || req.DiscountPercentage > maxDiscountPercentage {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount percentage out of range").
			WithDetails(map[string]any{"min": minDiscountPercentage, "max": maxDiscountPercentage})
	}
	if !req.StartDate.Before(req.EndDate) {
		return pkgerrors.New(pkgerrors.CodeValidation, "start date must precede end date")
	}
	now := s.now().UTC()
	if req.EndDate.Before(now) {
		return pkgerrors.New(pkgerrors.CodeValidation, "end date already passed")
	}
	variantIDs := dedupeIDs(req.VariantIDs)

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var variants []models.ProductVariant
		err := tx.WithContext(ctx).
			Preload("Product").
			Where("id IN ? AND is_active = ?", variantIDs, true).
			Find(&variants).Error
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading variants")
		}
		if len(variants) != len(variantIDs) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "one or more variants not found")
		}

		scheduleRepo := s.scheduleRepo.WithTx(tx)
		startsNow := !req.StartDate.After(now)
		for i := range variants {
			variant := &variants[i]
			// Rescheduling replaces any window the variant was already in.
			if err := withdrawFromPendingWindows(ctx, scheduleRepo, variant.ID); err != nil {
				return err
			}
			options := types.SaleOptions{
				StartDate:          req.StartDate,
				EndDate:            req.EndDate,
				DiscountPercentage: req.DiscountPercentage,
				SalePriceCents:     salePriceCents(variant.Product.PriceCents, req.DiscountPercentage),
			}
			updates := map[string]any{
				"sale_options": &options,
				"is_on_sale":   startsNow,
			}
			if err := tx.WithContext(ctx).Model(variant).Updates(updates).Error; err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "storing sale options")
			}
		}

		if !startsNow {
			start := &models.ScheduleEntry{
				Kind:           enums.ScheduleKindSaleStart,
				ActivationTime: req.StartDate,
				VariantIDs:     types.UUIDList(variantIDs),
			}
			if err := scheduleRepo.Create(ctx, start); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "scheduling sale start")
			}
		}
		end := &models.ScheduleEntry{
			Kind:           enums.ScheduleKindSaleEnd,
			ActivationTime: req.EndDate,
			VariantIDs:     types.UUIDList(variantIDs),
		}
		if err := scheduleRepo.Create(ctx, end); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "scheduling sale end")
		}
		return nil
	})
	if err != nil {
		return err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"variants":   len(variantIDs),
		"start_date": req.StartDate,
		"end_date":   req.EndDate,
		"discount":   req.DiscountPercentage,
	})
	s.logg.Info(logCtx, "sale scheduled")
	return nil
}

func (s *service) CancelSale(ctx context.Context, variantID uuid.UUID) error {
	if variantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant id required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		res := tx.WithContext(ctx).
			Model(&models.ProductVariant{}).
			Where("id = ?", variantID).
			Updates(map[string]any{
				"is_on_sale":   false,
				"sale_options": nil,
			})
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "clearing sale options")
		}
		if res.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
		}
		return withdrawFromPendingWindows(ctx, s.scheduleRepo.WithTx(tx), variantID)
	})
	if err != nil {
		return err
	}

	logCtx := s.logg.WithField(ctx, "variant_id", variantID.String())
	s.logg.Info(logCtx, "sale cancelled")
	return nil
}

// withdrawFromPendingWindows removes the variant from every unprocessed sale
// entry. Entries left with no variants are deleted outright.
func withdrawFromPendingWindows(ctx context.Context, repo schedule.Repository, variantID uuid.UUID) error {
	entries, err := repo.FindPendingSaleEntriesForVariant(ctx, variantID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading pending sale entries")
	}
	var remove []uuid.UUID
	for _, entry := range entries {
		remaining := make(types.UUIDList, 0, len(entry.VariantIDs))
		for _, id := range entry.VariantIDs {
			if id != variantID {
				remaining = append(remaining, id)
			}
		}
		if len(remaining) == 0 {
			remove = append(remove, entry.ID)
			continue
		}
		if err := repo.UpdateVariantIDs(ctx, entry.ID, remaining); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "shrinking sale entry")
		}
	}
	if _, err := repo.DeleteByIDs(ctx, remove); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "removing empty sale entries")
	}
	return nil
}

// dedupeIDs drops repeated variant ids while keeping request order.
func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// salePriceCents applies the discount with decimal arithmetic and rounds to
// the nearest cent, away from zero on ties.
func salePriceCents(priceCents, discountPercentage int) int {
	price := decimal.NewFromInt(int64(priceCents))
	factor := decimal.NewFromInt(int64(100 - discountPercentage)).
		Div(decimal.NewFromInt(100))
	return int(price.Mul(factor).Round(0).IntPart())
}
