package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/api/responses"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/api/validators"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/stock"
	pkgerrors "github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/errors"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/logger"
)

// RestockVariant tops up per-size quantities for a variant.
func RestockVariant(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock service unavailable"))
			return
		}

		variantID, err := uuid.Parse(chi.URLParam(r, "variantId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid variant id"))
			return
		}

		var payload restockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines := make([]stock.RestockLine, 0, len(payload.Lines))
		for _, line := range payload.Lines {
			lines = append(lines, stock.RestockLine{Size: line.Size, Qty: line.Qty})
		}
		result, err := svc.Restock(r.Context(), variantID, lines)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newRestockResponse(result))
	}
}

type restockLineRequest struct {
	Size string `json:"size" validate:"required"`
	Qty  int    `json:"qty" validate:"required"`
}

type restockRequest struct {
	Lines []restockLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type restockLineResponse struct {
	Size    string `json:"size"`
	Qty     int    `json:"qty"`
	Applied bool   `json:"applied"`
	Reason  string `json:"reason,omitempty"`
}

type restockResponse struct {
	VariantID uuid.UUID             `json:"variantId"`
	Lines     []restockLineResponse `json:"lines"`
}

func newRestockResponse(result *stock.RestockResult) restockResponse {
	resp := restockResponse{VariantID: result.VariantID}
	for _, line := range result.Lines {
		resp.Lines = append(resp.Lines, restockLineResponse{
			Size:    line.Size,
			Qty:     line.Qty,
			Applied: line.Applied,
			Reason:  line.Reason,
		})
	}
	return resp
}
