package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/api/middleware"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/api/responses"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/orders"
	pkgerrors "github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/errors"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/logger"
)

// ConfirmOrder finalizes a pending reservation after payment.
func ConfirmOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}

		orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid order id"))
			return
		}

		order, err := svc.Confirm(r.Context(), userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, confirmResponse{
			OrderID:         order.ID,
			PaymentStatus:   string(order.PaymentStatus),
			TotalPriceCents: order.TotalPriceCents,
			ConfirmedAt:     *order.ConfirmedAt,
		})
	}
}

type confirmResponse struct {
	OrderID         uuid.UUID `json:"orderId"`
	PaymentStatus   string    `json:"paymentStatus"`
	TotalPriceCents int       `json:"totalPriceCents"`
	ConfirmedAt     time.Time `json:"confirmedAt"`
}
