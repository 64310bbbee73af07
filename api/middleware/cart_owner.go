package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/coffeeshop-backend/api/responses"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
)

// CartIDHeader carries the guest cart key.
const CartIDHeader = "X-Cart-Id"

// GuestCartPrefix marks guest cart keys. User carts are keyed by the bare user
// id, so a guest key without the prefix could name a user's cart.
const GuestCartPrefix = "guest-"

var guestCartID = regexp.MustCompile(`^` + GuestCartPrefix + `[A-Za-z0-9_-]{8,64}$`)

// CartOwner resolves the cart key for the request. Authenticated users own the
// cart keyed by their id. Guests send a guest- prefixed X-Cart-Id; when it is
// missing a new id is minted and echoed back in the response header.
func CartOwner(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner := UserIDFromContext(r.Context())
			if owner == "" {
				owner = strings.TrimSpace(r.Header.Get(CartIDHeader))
				switch {
				case owner == "":
					owner = GuestCartPrefix + uuid.NewString()
				case !guestCartID.MatchString(owner):
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid cart id"))
					return
				}
				w.Header().Set(CartIDHeader, owner)
			}
			ctx := WithCartOwner(r.Context(), owner)
			if logg != nil {
				ctx = logg.WithCartOwner(ctx, owner)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
