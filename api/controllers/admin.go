package controllers

import (
	"net/http"

	"github.com/angelmondragon/coffeeshop-backend/api/responses"
	"github.com/angelmondragon/coffeeshop-backend/internal/orders"
	"github.com/angelmondragon/coffeeshop-backend/internal/users"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
)

// AdminListUsers lists every user with the orders currently stored for them.
func AdminListUsers(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListUsers(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func AdminStatistics(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Statistics(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}
