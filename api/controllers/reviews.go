package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/coffeeshop-backend/api/responses"
	"github.com/angelmondragon/coffeeshop-backend/api/validators"
	"github.com/angelmondragon/coffeeshop-backend/internal/reviews"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
)

const maxCommentLen = 2000

type userGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type addReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment string `json:"comment" validate:"notblank"`
}

// ProductReviews lists a product's reviews with its rating aggregates.
func ProductReviews(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.GetProductReviews(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AddReview posts a review as the authenticated user.
func AddReview(svc reviews.Service, users userGetter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload addReviewRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		user, err := users.Get(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		review, err := svc.AddReview(r.Context(), reviews.Author{UserID: user.ID, Name: user.Name}, reviews.AddReviewInput{
			ProductID: chi.URLParam(r, "id"),
			Rating:    payload.Rating,
			Comment:   validators.SanitizeString(payload.Comment, maxCommentLen),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, review)
	}
}
