package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/cart"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/orders"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/schedule"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/sweeper"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/config"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/db"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/logger"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/metrics"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/migrate"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/outbox"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "sweep-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "sweep-worker"

	logg = logger.New(logger.Options{
		ServiceName: "sweep-worker",
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
	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outboxRepo, logg)

	ordersService, err := orders.NewService(dbClient, ordersRepo, cartRepo, scheduleRepo, outboxService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewSweepJobMetrics(prometheus.DefaultRegisterer)
	instanceID := os.Getenv("HOSTNAME")

	expiryJob, err := sweeper.NewExpiryJob(sweeper.ExpiryJobParams{
		Logger:       logg,
		DB:           dbClient,
		ScheduleRepo: scheduleRepo,
		Orders:       ordersService,
		Metrics:      metricsCollector,
		InstanceID:   instanceID,
		BatchSize:    cfg.Sweep.BatchSize,
		ClaimLease:   cfg.Sweep.ClaimLease,
		Retention:    cfg.Sweep.EntryRetention,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create expiry job", err)
		os.Exit(1)
	}

	saleJob, err := sweeper.NewSaleJob(sweeper.SaleJobParams{
		Logger:       logg,
		DB:           dbClient,
		ScheduleRepo: scheduleRepo,
		Outbox:       outboxService,
		Metrics:      metricsCollector,
		InstanceID:   instanceID,
		BatchSize:    cfg.Sweep.BatchSize,
		ClaimLease:   cfg.Sweep.ClaimLease,
		Retention:    cfg.Sweep.EntryRetention,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sale job", err)
		os.Exit(1)
	}

	purgeJob, err := sweeper.NewPurgeJob(sweeper.PurgeJobParams{
		Logger:          logg,
		ScheduleRepo:    scheduleRepo,
		OutboxRepo:      outboxRepo,
		Metrics:         metricsCollector,
		OutboxRetention: cfg.Sweep.OutboxRetention,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create purge job", err)
		os.Exit(1)
	}

	lock, err := sweeper.NewRedisLock(redisClient, redisClient.LockKey("sweep"), cfg.Sweep.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep lock", err)
		os.Exit(1)
	}

	service, err := sweeper.NewService(sweeper.ServiceParams{
		Logger:   logg,
		Registry: sweeper.NewRegistry(saleJob, expiryJob, purgeJob),
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Sweep.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting sweep worker")

	if metricsAddr := os.Getenv("SHOPCO_METRICS_ADDR"); metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logg.Error(ctx, "metrics endpoint stopped unexpectedly", err)
			}
		}()
	}

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "sweep worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "sweep worker shutting down gracefully")
}
