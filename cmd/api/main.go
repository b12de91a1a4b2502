package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/api/routes"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/cart"
	checkoutsvc "github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/checkout"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/orders"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/sales"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/schedule"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/stock"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/config"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/db"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/logger"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/migrate"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/outbox"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	cartRepo := cart.NewRepository(dbClient.DB())
	ordersRepo := orders.NewRepository(dbClient.DB())
	scheduleRepo := schedule.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	checkoutService, err := checkoutsvc.NewService(
		dbClient, cartRepo, ordersRepo, scheduleRepo, outboxService, logg,
		cfg.Checkout.ReservationWindow,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(dbClient, ordersRepo, cartRepo, scheduleRepo, outboxService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	stockService, err := stock.NewService(dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create stock service", err)
		os.Exit(1)
	}

	salesService, err := sales.NewService(dbClient, scheduleRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create sales service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg, logg, dbClient, redisClient,
			checkoutService, ordersService, stockService, salesService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
