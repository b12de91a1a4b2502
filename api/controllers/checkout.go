package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/api/middleware"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/api/responses"
	checkoutsvc "github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/checkout"
	pkgerrors "github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/errors"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/logger"
)

// Checkout reserves the caller's active cart into a pending order.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}

		result, err := svc.Reserve(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newReservationResponse(result))
	}
}

type reservationLineResponse struct {
	VariantID      uuid.UUID `json:"variantId"`
	Size           string    `json:"size"`
	Qty            int       `json:"qty"`
	UnitPriceCents int       `json:"unitPriceCents"`
}

type reservationResponse struct {
	OrderID         uuid.UUID                  `json:"orderId"`
	PaymentStatus   string                     `json:"paymentStatus"`
	ReservedUntil   time.Time                  `json:"reservedUntil"`
	TotalPriceCents int                        `json:"totalPriceCents"`
	Lines           []reservationLineResponse  `json:"lines"`
	Rejected        []checkoutsvc.RejectedLine `json:"rejected,omitempty"`
}

func newReservationResponse(result *checkoutsvc.ReservationResult) reservationResponse {
	resp := reservationResponse{
		OrderID:         result.Order.ID,
		PaymentStatus:   string(result.Order.PaymentStatus),
		ReservedUntil:   result.Order.ReservedUntil,
		TotalPriceCents: result.Order.TotalPriceCents,
		Rejected:        result.Rejected,
	}
	for _, line := range result.Order.Lines {
		resp.Lines = append(resp.Lines, reservationLineResponse{
			VariantID:      line.VariantID,
			Size:           line.Size,
			Qty:            line.Qty,
			UnitPriceCents: line.UnitPriceCents,
		})
	}
	return resp
}
