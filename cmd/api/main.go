package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/angelmondragon/coffeeshop-backend/api/controllers"
	"github.com/angelmondragon/coffeeshop-backend/api/routes"
	"github.com/angelmondragon/coffeeshop-backend/internal/auth"
	"github.com/angelmondragon/coffeeshop-backend/internal/cart"
	"github.com/angelmondragon/coffeeshop-backend/internal/catalog"
	"github.com/angelmondragon/coffeeshop-backend/internal/checkout"
	"github.com/angelmondragon/coffeeshop-backend/internal/favorites"
	"github.com/angelmondragon/coffeeshop-backend/internal/orders"
	"github.com/angelmondragon/coffeeshop-backend/internal/reviews"
	"github.com/angelmondragon/coffeeshop-backend/internal/users"
	"github.com/angelmondragon/coffeeshop-backend/pkg/auth/session"
	"github.com/angelmondragon/coffeeshop-backend/pkg/config"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db"
	"github.com/angelmondragon/coffeeshop-backend/pkg/instance"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
	"github.com/angelmondragon/coffeeshop-backend/pkg/metrics"
	"github.com/angelmondragon/coffeeshop-backend/pkg/migrate"
	"github.com/angelmondragon/coffeeshop-backend/pkg/outbox"
	"github.com/angelmondragon/coffeeshop-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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
		Format:      cfg.App.LogFormat,
		Fields:      map[string]any{"instance": instance.GetID()},
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	decimal.MarshalJSONWithoutQuotes = true

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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	shopMetrics := metrics.NewShopMetrics(reg)

	events := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	reviewRepo := reviews.NewRepository(dbClient.DB())
	catalogRepo := catalog.NewRepository(dbClient.DB())
	catalogService, err := catalog.NewService(catalogRepo, dbClient, reviewRepo, events, logg)
	if err != nil {
		return err
	}
	if cfg.FeatureFlags.SeedCatalog {
		seeded, err := catalogService.SeedIfEmpty(ctx)
		if err != nil {
			return err
		}
		if seeded > 0 {
			logg.Info(logg.WithField(ctx, "products", seeded), "seeded catalog")
		}
	}
	reviewService, err := reviews.NewService(reviewRepo, catalogRepo, logg)
	if err != nil {
		return err
	}

	cartStore, cartLocker, err := cart.NewBackend(cfg.Cart, dbClient, redisClient, logg)
	if err != nil {
		return err
	}
	cartService, err := cart.NewService(cart.ServiceParams{
		Store:   cartStore,
		Catalog: catalogService,
		Locker:  cartLocker,
		Metrics: shopMetrics,
		Logger:  logg,
	})
	if err != nil {
		return err
	}
	catalogService.Subscribe(cartService)

	userRepo := users.NewRepository(dbClient.DB())
	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:    orders.NewRepository(dbClient.DB()),
		Users:   userRepo,
		Tx:      dbClient,
		Outbox:  events,
		Metrics: shopMetrics,
		Logger:  logg,
	})
	if err != nil {
		return err
	}
	userService, err := users.NewService(users.ServiceParams{Repo: userRepo, Orders: orderService, Logger: logg})
	if err != nil {
		return err
	}
	favoriteService, err := favorites.NewService(favorites.ServiceParams{
		Repo:    favorites.NewRepository(dbClient.DB()),
		Catalog: catalogService,
		Logger:  logg,
	})
	if err != nil {
		return err
	}
	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Cart:           cartService,
		Orders:         orderService,
		Gateway:        checkout.NewMockGateway(cfg.Checkout.PaymentLatency, cfg.Checkout.PaymentFail),
		DefaultCountry: cfg.Checkout.Country,
		Metrics:        shopMetrics,
		Logger:         logg,
	})
	if err != nil {
		return err
	}
	authService, err := auth.NewService(auth.ServiceParams{
		Users:          userService,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		AdminConfig:    cfg.Admin,
		AuthConfig:     cfg.Auth,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: routes.NewRouter(routes.Deps{
			Config:    cfg,
			Logger:    logg,
			Sessions:  sessionManager,
			Redis:     redisClient,
			Ready:     map[string]controllers.Pinger{"db": dbClient, "redis": redisClient},
			Gatherer:  reg,
			Metrics:   metrics.NewHTTPMetrics(reg),
			Auth:      authService,
			Users:     userService,
			Catalog:   catalogService,
			Cart:      cartService,
			Checkout:  checkoutService,
			Orders:    orderService,
			Reviews:   reviewService,
			Favorites: favoriteService,
		}),
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(ctx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
