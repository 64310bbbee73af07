package controllers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/coffeeshop-backend/api/responses"
	"github.com/angelmondragon/coffeeshop-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
)

const envHeader = "X-Coffeeshop-Env"

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every named dependency. Nil pingers are reported as
// disabled.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		var (
			mu      sync.Mutex
			healthy = true
			checks  = make(map[string]string, len(deps))
		)
		var g errgroup.Group
		for name, dep := range deps {
			if dep == nil {
				checks[name] = "disabled"
				continue
			}
			name, dep := name, dep
			g.Go(func() error {
				status := "ok"
				if err := dep.Ping(ctx); err != nil {
					status = "down"
					if logg != nil {
						logg.Error(logg.WithField(ctx, "dependency", name), "readiness check failed", err)
					}
				}
				mu.Lock()
				defer mu.Unlock()
				checks[name] = status
				if status != "ok" {
					healthy = false
				}
				return nil
			})
		}
		_ = g.Wait()
		if !healthy {
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeDependency, "dependency unavailable").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
