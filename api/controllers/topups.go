package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avenqor/avenqor-backend/api/middleware"
	"github.com/avenqor/avenqor-backend/api/responses"
	"github.com/avenqor/avenqor-backend/api/validators"
	"github.com/avenqor/avenqor-backend/internal/topups"
	"github.com/avenqor/avenqor-backend/pkg/enums"
	pkgerrors "github.com/avenqor/avenqor-backend/pkg/errors"
	"github.com/avenqor/avenqor-backend/pkg/logger"
)

// CreateTopup records a settled token top-up for the caller.
func CreateTopup(svc topups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "topup service unavailable"))
			return
		}

		accountID := middleware.AccountUUIDFromContext(r.Context())
		if accountID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "account context missing"))
			return
		}

		var payload topupRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := topups.CreditInput{
			AccountID: accountID,
			Tokens:    payload.Tokens,
		}
		if payload.FiatAmount != "" {
			amount, parseErr := decimal.NewFromString(payload.FiatAmount)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid fiat amount"))
				return
			}
			input.FiatAmount = amount
		}
		if payload.FiatCurrency != "" {
			currency, parseErr := enums.ParseCurrency(payload.FiatCurrency)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid fiat currency"))
				return
			}
			input.FiatCurrency = currency
		}

		record, balance, err := svc.Credit(r.Context(), input)
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

type topupRequest struct {
	Tokens       int64  `json:"tokens" validate:"required,min=1"`
	FiatAmount   string `json:"fiat_amount"`
	FiatCurrency string `json:"fiat_currency"`
}
