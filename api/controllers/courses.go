package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/avenqor/avenqor-backend/api/middleware"
	"github.com/avenqor/avenqor-backend/api/responses"
	"github.com/avenqor/avenqor-backend/api/validators"
	"github.com/avenqor/avenqor-backend/internal/courses"
	pkgerrors "github.com/avenqor/avenqor-backend/pkg/errors"
	"github.com/avenqor/avenqor-backend/pkg/logger"
)

// CourseCatalog lists every purchasable catalog course.
func CourseCatalog(svc courses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "course service unavailable"))
			return
		}

		items := svc.Catalog()
		out := make([]catalogItemResponse, 0, len(items))
		for _, item := range items {
			out = append(out, catalogItemResponse{
				Ref:         item.Ref,
				Title:       item.Title,
				PriceTokens: item.Price,
				Languages:   item.Languages,
			})
		}
		responses.WriteSuccess(w, map[string]any{"courses": out})
	}
}

// PurchaseCourse sells a catalog course to the caller.
func PurchaseCourse(svc courses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "course service unavailable"))
			return
		}

		accountID := middleware.AccountUUIDFromContext(r.Context())
		if accountID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "account context missing"))
			return
		}

		var payload coursePurchaseRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, balance, err := svc.Purchase(r.Context(), courses.PurchaseInput{
			AccountID: accountID,
			CourseRef: payload.CourseRef,
			Language:  payload.Language,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, purchaseCreatedResponse{
			Purchase:     newPurchaseResponse(record),
			TokenBalance: balance,
		})
	}
}

type coursePurchaseRequest struct {
	CourseRef string `json:"course_ref" validate:"required"`
	Language  string `json:"language"`
}

type catalogItemResponse struct {
	Ref         string   `json:"ref"`
	Title       string   `json:"title"`
	PriceTokens int64    `json:"price_tokens"`
	Languages   []string `json:"languages"`
}
