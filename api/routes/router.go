package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/api/controllers"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/api/middleware"
	checkoutsvc "github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/checkout"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/orders"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/sales"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/stock"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/config"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/db"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/logger"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	checkoutService checkoutsvc.Service,
	ordersService orders.Service,
	stockService stock.Service,
	salesService sales.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbClient, redisClient))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireUser(logg))
		r.Post("/checkout", controllers.Checkout(checkoutService, logg))
		r.Post("/orders/{orderId}/confirm", controllers.ConfirmOrder(ordersService, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.RequireUser(logg))
		r.Route("/variants/{variantId}", func(r chi.Router) {
			r.Post("/restock", controllers.RestockVariant(stockService, logg))
			r.Delete("/sale", controllers.CancelSale(salesService, logg))
		})
		r.Post("/sales", controllers.ScheduleSale(salesService, logg))
	})

	return r
}
