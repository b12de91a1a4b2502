package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/db/models"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/enums"
	pkgerrors "github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/errors"
)

// Failure reasons carried on AllocationResult for lines that could not be
// allocated. Failures are data, not errors: one unavailable line never aborts
// the surrounding transaction.
const (
	ReasonInsufficientStock = "insufficient_stock"
	ReasonUnknownSize       = "unknown_size"
)

// AllocationRequest asks for qty units of one (variant, size).
type AllocationRequest struct {
	VariantID uuid.UUID
	Size      string
	Qty       int
}

// AllocationResult reports the outcome of a single request.
type AllocationResult struct {
	Request   AllocationRequest
	Allocated bool
	Reason    string
}

// Allocate attempts a guarded decrement for every request within the caller's
// transaction. Each decrement succeeds only if quantity_left still covers the
// requested qty at execution time; there is no read-then-write window.
func Allocate(ctx context.Context, tx *gorm.DB, requests []AllocationRequest) ([]AllocationResult, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	results := make([]AllocationResult, 0, len(requests))
	for _, req := range requests {
		if err := validateRequest(req); err != nil {
			return nil, err
		}
		res := tx.WithContext(ctx).Exec(
			`UPDATE variant_sizes
			 SET quantity_left = quantity_left - ?, updated_at = ?
			 WHERE variant_id = ? AND size = ? AND quantity_left >= ?`,
			req.Qty, time.Now().UTC(), req.VariantID, req.Size, req.Qty,
		)
		if res.Error != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "allocating stock")
		}
		if res.RowsAffected > 0 {
			results = append(results, AllocationResult{Request: req, Allocated: true})
			continue
		}
		// The guard rejected the decrement. Read the row only to name why.
		reason, err := classifyFailure(ctx, tx, req)
		if err != nil {
			return nil, err
		}
		results = append(results, AllocationResult{Request: req, Allocated: false, Reason: reason})
	}
	return results, nil
}

// Release returns previously allocated units. The increment is unconditional
// but the target row must exist; a missing row means the compensation is
// addressed at the wrong (variant, size) and the transaction must abort.
func Release(ctx context.Context, tx *gorm.DB, requests []AllocationRequest) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	for _, req := range requests {
		if err := validateRequest(req); err != nil {
			return err
		}
		res := tx.WithContext(ctx).Exec(
			`UPDATE variant_sizes
			 SET quantity_left = quantity_left + ?, updated_at = ?
			 WHERE variant_id = ? AND size = ?`,
			req.Qty, time.Now().UTC(), req.VariantID, req.Size,
		)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "releasing stock")
		}
		if res.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "variant size not found").
				WithDetails(map[string]any{"variant_id": req.VariantID, "size": req.Size})
		}
	}
	return nil
}

// FinalizeSales bumps units_sold for every confirmed line. Sales are counted
// at confirmation, never at reservation.
func FinalizeSales(ctx context.Context, tx *gorm.DB, lines []models.OrderLine) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	for _, line := range lines {
		res := tx.WithContext(ctx).Exec(
			`UPDATE product_variants
			 SET units_sold = units_sold + ?, updated_at = ?
			 WHERE id = ?`,
			line.Qty, time.Now().UTC(), line.VariantID,
		)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "recording units sold")
		}
		if res.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found").
				WithDetails(map[string]any{"variant_id": line.VariantID})
		}
	}
	return nil
}

// RefreshStockStatus recomputes stock_status for the given variants from their
// size rows. Variants with no remaining units anywhere flip to out_of_stock.
func RefreshStockStatus(ctx context.Context, tx *gorm.DB, variantIDs []uuid.UUID) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	if len(variantIDs) == 0 {
		return nil
	}
	res := tx.WithContext(ctx).Exec(
		`UPDATE product_variants
		 SET stock_status = CASE
		     WHEN EXISTS (
		         SELECT 1 FROM variant_sizes
		         WHERE variant_sizes.variant_id = product_variants.id
		           AND variant_sizes.quantity_left > 0
		     ) THEN ?
		     ELSE ?
		 END,
		 updated_at = ?
		 WHERE id IN ?`,
		enums.StockStatusInStock, enums.StockStatusOutOfStock, time.Now().UTC(), variantIDs,
	)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "refreshing stock status")
	}
	return nil
}

func classifyFailure(ctx context.Context, tx *gorm.DB, req AllocationRequest) (string, error) {
	var row models.VariantSize
	err := tx.WithContext(ctx).
		Where("variant_id = ? AND size = ?", req.VariantID, req.Size).
		First(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ReasonUnknownSize, nil
	case err != nil:
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "inspecting variant size")
	default:
		return ReasonInsufficientStock, nil
	}
}

func validateRequest(req AllocationRequest) error {
	if req.VariantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant id required")
	}
	if req.Size == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "size required")
	}
	if req.Qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "qty must be positive").
			WithDetails(map[string]any{"qty": req.Qty})
	}
	return nil
}
