package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/db/models"
	pkgerrors "github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/errors"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RestockLine adds qty units to one size of a variant.
type RestockLine struct {
	Size string
	Qty  int
}

// RestockLineResult reports the outcome of a single restock line. Invalid
// lines are rejected individually; the rest still apply.
type RestockLineResult struct {
	Size    string
	Qty     int
	Applied bool
	Reason  string
}

// RestockResult summarizes a restock call.
type RestockResult struct {
	VariantID uuid.UUID
	Lines     []RestockLineResult
}

// Service owns admin stock adjustments.
type Service interface {
	Restock(ctx context.Context, variantID uuid.UUID, lines []RestockLine) (*RestockResult, error)
}

type service struct {
	tx   txRunner
	logg *logger.Logger
}

// NewService builds the stock service.
func NewService(tx txRunner, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{tx: tx, logg: logg}, nil
}

func (s *service) Restock(ctx context.Context, variantID uuid.UUID, lines []RestockLine) (*RestockResult, error) {
	if variantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant id required")
	}
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one restock line required")
	}

	result := &RestockResult{VariantID: variantID}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var variant models.ProductVariant
		err := tx.WithContext(ctx).Where("id = ?", variantID).First(&variant).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading variant")
		}

		applied := 0
		for _, line := range lines {
			lineResult := RestockLineResult{Size: line.Size, Qty: line.Qty}
			switch {
			case line.Size == "":
				lineResult.Reason = "size required"
			case line.Qty <= 0:
				lineResult.Reason = "qty must be positive"
			default:
				ok, err := s.applyLine(ctx, tx, variantID, line)
				if err != nil {
					return err
				}
				if !ok {
					lineResult.Reason = ReasonUnknownSize
					break
				}
				lineResult.Applied = true
				applied++
			}
			result.Lines = append(result.Lines, lineResult)
		}
		if applied == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "no valid restock lines").
				WithDetails(result.Lines)
		}
		return RefreshStockStatus(ctx, tx, []uuid.UUID{variantID})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"variant_id": variantID.String(),
		"lines":      len(result.Lines),
	})
	s.logg.Info(logCtx, "variant restocked")
	return result, nil
}

// applyLine tops up an existing size row. Sizes are defined with the variant;
// a miss here means the admin named a size the variant does not carry, so the
// line is rejected rather than minting a new row.
func (s *service) applyLine(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, line RestockLine) (bool, error) {
	res := tx.WithContext(ctx).
		Model(&models.VariantSize{}).
		Where("variant_id = ? AND size = ?", variantID, line.Size).
		Update("quantity_left", gorm.Expr("quantity_left + ?", line.Qty))
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "incrementing stock")
	}
	return res.RowsAffected > 0, nil
}
