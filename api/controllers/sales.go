package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/api/responses"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/api/validators"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/sales"
	pkgerrors "github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/errors"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/logger"
)

// ScheduleSale configures a discount window over one or more variants.
func ScheduleSale(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales service unavailable"))
			return
		}

		var payload saleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		err := svc.ScheduleSale(r.Context(), sales.SaleRequest{
			VariantIDs:         payload.VariantIDs,
			StartDate:          payload.StartDate,
			EndDate:            payload.EndDate,
			DiscountPercentage: payload.DiscountPercentage,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]string{"status": "scheduled"})
	}
}

// CancelSale withdraws a variant from its sale window.
func CancelSale(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales service unavailable"))
			return
		}

		variantID, err := uuid.Parse(chi.URLParam(r, "variantId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid variant id"))
			return
		}

		if err := svc.CancelSale(r.Context(), variantID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "cancelled"})
	}
}

type saleRequest struct {
	VariantIDs         []uuid.UUID `json:"variantIds" validate:"required,min=1"`
	StartDate          time.Time   `json:"startDate" validate:"required"`
	EndDate            time.Time   `json:"endDate" validate:"required"`
	DiscountPercentage int         `json:"discountPercentage" validate:"required,min=1,max=90"`
}
