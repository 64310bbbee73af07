package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/coffeeshop-backend/api/middleware"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
)

// requireUserID returns the authenticated user id.
func requireUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}

// optionalUserID returns the authenticated user id, or nil for guests.
func optionalUserID(r *http.Request) (*uuid.UUID, error) {
	if middleware.UserIDFromContext(r.Context()) == "" {
		return nil, nil
	}
	id, err := requireUserID(r)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func requireCartOwner(r *http.Request) (string, error) {
	owner := middleware.CartOwnerFromContext(r.Context())
	if owner == "" {
		return "", pkgerrors.New(pkgerrors.CodeInternal, "cart owner not resolved")
	}
	return owner, nil
}
