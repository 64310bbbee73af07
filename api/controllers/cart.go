package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/coffeeshop-backend/api/responses"
	"github.com/angelmondragon/coffeeshop-backend/api/validators"
	"github.com/angelmondragon/coffeeshop-backend/internal/cart"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
	"github.com/angelmondragon/coffeeshop-backend/pkg/types"
)

type customizationRequest struct {
	Size     string `json:"size"`
	Sugar    int    `json:"sugar" validate:"gte=0,lte=5"`
	Parvarda int    `json:"parvarda" validate:"gte=0,lte=5"`
}

func (c customizationRequest) toCustomization() (types.Customization, error) {
	out := types.Customization{Sugar: c.Sugar, Parvarda: c.Parvarda}
	if c.Size != "" {
		size, err := enums.ParseProductSize(c.Size)
		if err != nil {
			return types.Customization{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid size")
		}
		out.Size = size
	}
	return out, nil
}

type addCartItemRequest struct {
	ProductID     string               `json:"productId" validate:"required"`
	Quantity      int                  `json:"quantity" validate:"lte=99"`
	Customization customizationRequest `json:"customization"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"lte=99"`
}

func GetCart(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := requireCartOwner(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		current, err := svc.GetCart(r.Context(), owner)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, current)
	}
}

// AddCartItem adds a product line, merging with an identical line.
func AddCartItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := requireCartOwner(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload addCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		customization, err := payload.Customization.toCustomization()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.AddToCart(r.Context(), owner, cart.AddItemInput{
			ProductID:     payload.ProductID,
			Quantity:      payload.Quantity,
			Customization: customization,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func UpdateCartItemQuantity(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, index, err := cartLineTarget(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		current, err := svc.UpdateQuantity(r.Context(), owner, index, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, current)
	}
}

func UpdateCartItemCustomization(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, index, err := cartLineTarget(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload customizationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		customization, err := payload.toCustomization()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		current, err := svc.UpdateCustomization(r.Context(), owner, index, customization)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, current)
	}
}

func RemoveCartItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, index, err := cartLineTarget(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.RemoveFromCart(r.Context(), owner, index)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func ClearCart(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := requireCartOwner(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ClearCart(r.Context(), owner)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func cartLineTarget(r *http.Request) (string, int, error) {
	owner, err := requireCartOwner(r)
	if err != nil {
		return "", 0, err
	}
	index, err := validators.ParseIndex(chi.URLParam(r, "index"), "index")
	if err != nil {
		return "", 0, err
	}
	return owner, index, nil
}
