package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/coffeeshop-backend/api/controllers"
	"github.com/angelmondragon/coffeeshop-backend/api/middleware"
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
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
	"github.com/angelmondragon/coffeeshop-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/coffeeshop-backend/pkg/redis"
)

// RedisStore is the redis surface used by the HTTP middleware.
type RedisStore interface {
	pkgredis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Sessions session.AccessSessionChecker
	Redis    RedisStore
	Ready    map[string]controllers.Pinger
	Gatherer prometheus.Gatherer
	Metrics  *metrics.HTTPMetrics

	Auth      auth.Service
	Users     users.Service
	Catalog   catalog.Service
	Cart      cart.Service
	Checkout  checkout.Service
	Orders    orders.Service
	Reviews   reviews.Service
	Favorites favorites.Service
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		chimw.RealIP,
		middleware.RequestID(logg),
		middleware.CORS(cfg.CORS),
		middleware.Metrics(d.Metrics),
		middleware.Logging(logg),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)
	idempotent := middleware.Idempotency(d.Redis, middleware.IdempotencyPolicy{
		Pending: cfg.Idempotency.PendingTTL,
		Replay:  cfg.Idempotency.TTL,
	}, logg)
	idempotentCheckout := middleware.Idempotency(d.Redis, middleware.IdempotencyPolicy{
		Pending: cfg.Idempotency.PendingTTL,
		Replay:  cfg.Idempotency.CheckoutTTL,
	}, logg)
	requireAuth := middleware.Auth(cfg.JWT, d.Sessions, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.Ready))
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(loginPolicy, d.Redis, logg)).Post("/login", controllers.AuthLogin(d.Auth, logg))
			r.With(middleware.AuthRateLimit(registerPolicy, d.Redis, logg), idempotent).Post("/register", controllers.AuthRegister(d.Auth, logg))
			r.With(middleware.AuthRateLimit(loginPolicy, d.Redis, logg)).Post("/admin/login", controllers.AdminLogin(d.Auth, logg))
			r.Post("/refresh", controllers.AuthRefresh(d.Auth, logg))
			r.With(requireAuth).Post("/logout", controllers.AuthLogout(d.Auth, logg))
			r.With(requireAuth).Get("/me", controllers.AuthMe(d.Auth, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(d.Catalog, logg))
			r.Get("/{id}", controllers.GetProduct(d.Catalog, logg))
			r.Get("/{id}/reviews", controllers.ProductReviews(d.Reviews, logg))
			r.With(requireAuth, idempotent).Post("/{id}/reviews", controllers.AddReview(d.Reviews, d.Users, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, d.Sessions, logg))
			r.Use(middleware.CartOwner(logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.GetCart(d.Cart, logg))
				r.Delete("/", controllers.ClearCart(d.Cart, logg))
				r.Post("/items", controllers.AddCartItem(d.Cart, logg))
				r.Patch("/items/{index}/quantity", controllers.UpdateCartItemQuantity(d.Cart, logg))
				r.Patch("/items/{index}/customization", controllers.UpdateCartItemCustomization(d.Cart, logg))
				r.Delete("/items/{index}", controllers.RemoveCartItem(d.Cart, logg))
			})
			r.With(idempotentCheckout).Post("/checkout", controllers.Checkout(d.Checkout, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.MyOrders(d.Orders, logg))
				r.Get("/{id}", controllers.MyOrder(d.Orders, logg))
			})
			r.Route("/favorites", func(r chi.Router) {
				r.Get("/", controllers.ListFavorites(d.Favorites, logg))
				r.Get("/{productId}", controllers.FavoriteStatus(d.Favorites, logg))
				r.Post("/{productId}/toggle", controllers.ToggleFavorite(d.Favorites, logg))
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))

			r.Route("/products", func(r chi.Router) {
				r.With(idempotent).Post("/", controllers.AdminCreateProduct(d.Catalog, logg))
				r.Put("/{id}", controllers.AdminUpdateProduct(d.Catalog, logg))
				r.Delete("/{id}", controllers.AdminDeleteProduct(d.Catalog, logg))
			})
			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.AdminListOrders(d.Orders, logg))
				r.With(idempotent).Patch("/{id}/status", controllers.AdminUpdateOrderStatus(d.Orders, logg))
			})
			r.Get("/users", controllers.AdminListUsers(d.Users, logg))
			r.Get("/statistics", controllers.AdminStatistics(d.Orders, logg))
		})
	})

	return r
}
