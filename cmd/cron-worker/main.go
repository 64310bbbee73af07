package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/coffeeshop-backend/internal/cart"
	"github.com/angelmondragon/coffeeshop-backend/internal/catalog"
	"github.com/angelmondragon/coffeeshop-backend/internal/cron"
	"github.com/angelmondragon/coffeeshop-backend/internal/orders"
	"github.com/angelmondragon/coffeeshop-backend/internal/reviews"
	"github.com/angelmondragon/coffeeshop-backend/internal/users"
	"github.com/angelmondragon/coffeeshop-backend/pkg/config"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db"
	"github.com/angelmondragon/coffeeshop-backend/pkg/instance"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
	"github.com/angelmondragon/coffeeshop-backend/pkg/metrics"
	"github.com/angelmondragon/coffeeshop-backend/pkg/migrate"
	"github.com/angelmondragon/coffeeshop-backend/pkg/outbox"
	"github.com/angelmondragon/coffeeshop-backend/pkg/redis"
)

const lockName = "cron-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		Fields:      map[string]any{"instance": instance.GetID()},
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, redisClient.Close())
	}()

	registry, err := buildRegistry(cfg, logg, dbClient, redisClient)
	if err != nil {
		return err
	}

	lock, err := redis.NewLock(redisClient, redisClient.LockKey(lockName), cfg.Cron.LockTTL)
	if err != nil {
		return err
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"jobs":        registry.Names(),
	})
	logg.Info(ctx, "starting cron worker")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return metrics.Serve(gctx, ":"+cfg.App.Port, prometheus.DefaultGatherer) })
	g.Go(func() error { return service.Run(gctx) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
	return nil
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (*cron.Registry, error) {
	outboxRepo := outbox.NewRepository(dbClient.DB())
	events := outbox.NewService(outboxRepo, logg)

	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()), dbClient, reviews.NewRepository(dbClient.DB()), events, logg)
	if err != nil {
		return nil, err
	}
	cartStore, cartLocker, err := cart.NewBackend(cfg.Cart, dbClient, redisClient, logg)
	if err != nil {
		return nil, err
	}
	cartService, err := cart.NewService(cart.ServiceParams{
		Store:   cartStore,
		Catalog: catalogService,
		Locker:  cartLocker,
		Logger:  logg,
	})
	if err != nil {
		return nil, err
	}
	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:   orders.NewRepository(dbClient.DB()),
		Users:  users.NewRepository(dbClient.DB()),
		Tx:     dbClient,
		Outbox: events,
		Logger: logg,
	})
	if err != nil {
		return nil, err
	}

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
		DLQ:        outbox.NewDLQRepository(dbClient.DB()),
		Retention:  cfg.Outbox.Retention,
	})
	if err != nil {
		return nil, err
	}
	syncJob, err := cron.NewOrderSyncJob(cron.OrderSyncJobParams{Logger: logg, Orders: orderService})
	if err != nil {
		return nil, err
	}
	repriceJob, err := cron.NewCartRepriceJob(cron.CartRepriceJobParams{Logger: logg, Carts: cartService})
	if err != nil {
		return nil, err
	}

	registry := cron.NewRegistry()
	for _, job := range []cron.Job{retentionJob, syncJob, repriceJob} {
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
