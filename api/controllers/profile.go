package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/avenqor/avenqor-backend/api/middleware"
	"github.com/avenqor/avenqor-backend/api/responses"
	"github.com/avenqor/avenqor-backend/internal/accounts"
	"github.com/avenqor/avenqor-backend/internal/ledger"
	pkgerrors "github.com/avenqor/avenqor-backend/pkg/errors"
	"github.com/avenqor/avenqor-backend/pkg/logger"
)

// Profile returns the authenticated account.
func Profile(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "account service unavailable"))
			return
		}

		accountID := middleware.AccountUUIDFromContext(r.Context())
		if accountID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "account context missing"))
			return
		}

		account, err := svc.Profile(r.Context(), accountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newAccountResponse(account))
	}
}

// Balance returns the current token balance from the ledger source of truth.
func Balance(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		accountID := middleware.AccountUUIDFromContext(r.Context())
		if accountID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "account context missing"))
			return
		}

		balance, err := svc.Balance(r.Context(), accountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]int64{"token_balance": balance})
	}
}
