package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
)

func serveCartOwner(req *http.Request) (*httptest.ResponseRecorder, string) {
	var owner string
	handler := CartOwner(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner = CartOwnerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, owner
}

func TestCartOwnerPrefersAuthenticatedUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set(CartIDHeader, "guest-cart-0001")
	req = req.WithContext(WithUserID(req.Context(), "user-1"))

	rec, owner := serveCartOwner(req)
	if owner != "user-1" {
		t.Fatalf("expected user owner, got %q", owner)
	}
	if rec.Header().Get(CartIDHeader) != "" {
		t.Fatal("expected no cart id header for users")
	}
}

func TestCartOwnerUsesGuestHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set(CartIDHeader, "guest-cart-0001")

	rec, owner := serveCartOwner(req)
	if owner != "guest-cart-0001" {
		t.Fatalf("expected guest owner, got %q", owner)
	}
	if rec.Header().Get(CartIDHeader) != "guest-cart-0001" {
		t.Fatal("expected cart id echoed")
	}
}

func TestCartOwnerMintsGuestID(t *testing.T) {
	rec, owner := serveCartOwner(httptest.NewRequest(http.MethodGet, "/api/cart", nil))
	if !strings.HasPrefix(owner, "guest-") {
		t.Fatalf("expected minted guest id, got %q", owner)
	}
	if rec.Header().Get(CartIDHeader) != owner {
		t.Fatal("expected minted id in response header")
	}
}

func TestCartOwnerRejectsMalformedID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set(CartIDHeader, "../../etc")
	rec, _ := serveCartOwner(req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCartOwnerRejectsUnprefixedIDs(t *testing.T) {
	for _, id := range []string{
		"3f2b6a1e-9c4d-4e7a-8b21-0d5f6c7e8a90",
		"cart-00000001",
		"guest-short",
		"guest-" + strings.Repeat("a", 65),
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
		req.Header.Set(CartIDHeader, id)
		rec, owner := serveCartOwner(req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", id, rec.Code)
		}
		if owner != "" {
			t.Fatalf("%s: handler should not run, owner %q", id, owner)
		}
	}
}

func TestCartOwnerGuestNeverResolvesToUserKey(t *testing.T) {
	const userID = "3f2b6a1e-9c4d-4e7a-8b21-0d5f6c7e8a90"
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set(CartIDHeader, GuestCartPrefix+userID)

	rec, owner := serveCartOwner(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if owner == userID || !strings.HasPrefix(owner, GuestCartPrefix) {
		t.Fatalf("guest header resolved to %q", owner)
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(nil, enums.UserRoleAdmin)(okHandler())

	anon := httptest.NewRecorder()
	handler.ServeHTTP(anon, httptest.NewRequest(http.MethodGet, "/", nil))
	if anon.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", anon.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithRole(WithUserID(req.Context(), "u1"), enums.UserRoleUser.String()))
	shopper := httptest.NewRecorder()
	handler.ServeHTTP(shopper, req)
	if shopper.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", shopper.Code)
	}

	req = req.WithContext(WithRole(req.Context(), enums.UserRoleAdmin.String()))
	admin := httptest.NewRecorder()
	handler.ServeHTTP(admin, req)
	if admin.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", admin.Code)
	}
}
