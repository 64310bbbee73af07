package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/angelmondragon/coffeeshop-backend/pkg/config"
)

// CORS exposes the cart and request id headers so the storefront can persist
// a minted guest cart id. Credentials are only allowed for explicit origins.
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	wildcard := false
	for _, origin := range cfg.AllowedOrigins {
		if origin == "*" {
			wildcard = true
		}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", CartIDHeader, idempotencyHeader, requestIDHeader},
		ExposedHeaders:   []string{CartIDHeader, requestIDHeader, "Retry-After"},
		AllowCredentials: !wildcard,
		MaxAge:           300,
	})
}
