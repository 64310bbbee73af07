package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coffeeshop-backend/api/responses"
	"github.com/angelmondragon/coffeeshop-backend/api/validators"
	"github.com/angelmondragon/coffeeshop-backend/internal/catalog"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
	"github.com/angelmondragon/coffeeshop-backend/pkg/types"
)

const maxSearchLen = 100

// ListProducts serves the catalog with optional category, search and sort.
func ListProducts(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		query := catalog.ListQuery{Search: validators.SanitizeString(q.Get("search"), maxSearchLen)}

		category, ok, err := validators.ParseQueryEnum(r, "category", enums.ParseProductCategory, "all")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if ok {
			query.Category = &category
		}
		sort, ok, err := validators.ParseQueryEnum(r, "sort", enums.ParseProductSort)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if ok {
			query.Sort = sort
		} else {
			query.Sort = enums.ProductSortNewest
		}

		products, err := svc.ListProducts(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, products)
	}
}

func GetProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		product, err := svc.GetProduct(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// AdminCreateProduct adds a product to the catalog.
func AdminCreateProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload productRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.AddProduct(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, product)
	}
}

// AdminUpdateProduct replaces every editable field of a product.
func AdminUpdateProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload productRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.UpdateProduct(r.Context(), chi.URLParam(r, "id"), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func AdminDeleteProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type productRequest struct {
	Name             string             `json:"name" validate:"notblank,max=120"`
	ShortDescription string             `json:"shortDescription" validate:"max=300"`
	Description      string             `json:"description"`
	Price            decimal.Decimal    `json:"price" validate:"gte=0"`
	Category         string             `json:"category" validate:"required"`
	Image            string             `json:"image"`
	Tags             []string           `json:"tags"`
	Customizable     bool               `json:"customizable"`
	Ingredients      []string           `json:"ingredients"`
	Calories         types.Calories     `json:"calories"`
	InStock          *bool              `json:"inStock"`
	Variations       []variationRequest `json:"variations" validate:"dive"`
}

type variationRequest struct {
	Size  string          `json:"size" validate:"required"`
	Price decimal.Decimal `json:"price" validate:"gte=0"`
}

func (p productRequest) toInput() (catalog.ProductInput, error) {
	category, err := enums.ParseProductCategory(strings.TrimSpace(p.Category))
	if err != nil {
		return catalog.ProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category")
	}
	inStock := true
	if p.InStock != nil {
		inStock = *p.InStock
	}
	variations := make([]types.Variation, 0, len(p.Variations))
	for _, v := range p.Variations {
		size, err := enums.ParseProductSize(strings.TrimSpace(v.Size))
		if err != nil {
			return catalog.ProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid variation size")
		}
		variations = append(variations, types.Variation{Size: size, Price: v.Price})
	}
	return catalog.ProductInput{
		Name:             p.Name,
		ShortDescription: p.ShortDescription,
		Description:      p.Description,
		Price:            p.Price,
		Category:         category,
		Image:            p.Image,
		Tags:             p.Tags,
		Customizable:     p.Customizable,
		Ingredients:      p.Ingredients,
		Calories:         p.Calories,
		InStock:          inStock,
		Variations:       variations,
	}, nil
}
