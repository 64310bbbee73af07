package controllers

import (
	"net/http"

	"github.com/angelmondragon/coffeeshop-backend/api/responses"
	"github.com/angelmondragon/coffeeshop-backend/api/validators"
	"github.com/angelmondragon/coffeeshop-backend/internal/checkout"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
	"github.com/angelmondragon/coffeeshop-backend/pkg/types"
)

type checkoutRequest struct {
	Shipping      types.ShippingAddress `json:"shipping"`
	PaymentMethod string                `json:"paymentMethod" validate:"required"`
}

// Checkout pays for the caller's cart and returns the created order.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := requireCartOwner(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := optionalUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported payment method").
				WithDetails(map[string]any{"field": "paymentMethod"}))
			return
		}
		order, err := svc.Checkout(r.Context(), owner, userID, checkout.CheckoutInput{
			Shipping:      payload.Shipping,
			PaymentMethod: method,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, order)
	}
}
