package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/avenqor/avenqor-backend/api/responses"
	"github.com/avenqor/avenqor-backend/api/validators"
	"github.com/avenqor/avenqor-backend/internal/accounts"
	"github.com/avenqor/avenqor-backend/pkg/db/models"
	pkgerrors "github.com/avenqor/avenqor-backend/pkg/errors"
	"github.com/avenqor/avenqor-backend/pkg/logger"
)

// Register handles account signup.
func Register(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "account service unavailable"))
			return
		}

		var payload registerRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		account, err := svc.Register(r.Context(), accounts.RegisterInput{
			Email:       payload.Email,
			Password:    payload.Password,
			DisplayName: validators.SanitizeString(payload.DisplayName, 120),
			Locale:      payload.Locale,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newAccountResponse(account))
	}
}

// Login exchanges credentials for a bearer token.
func Login(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "account service unavailable"))
			return
		}

		var payload loginRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Login(r.Context(), payload.Email, payload.Password)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, sessionResponse{
			Token:     session.Token,
			ExpiresAt: session.ExpiresAt,
			Account:   newAccountResponse(session.Account),
		})
	}
}

type registerRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"display_name" validate:"required,max=120"`
	Locale      string `json:"locale"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Account   accountResponse `json:"account"`
}

type accountResponse struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	DisplayName  string     `json:"display_name"`
	Locale       string     `json:"locale"`
	TokenBalance int64      `json:"token_balance"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func newAccountResponse(account *models.Account) accountResponse {
	if account == nil {
		return accountResponse{}
	}
	return accountResponse{
		ID:           account.ID,
		Email:        account.Email,
		DisplayName:  account.DisplayName,
		Locale:       account.Locale,
		TokenBalance: account.TokenBalance,
		LastLoginAt:  account.LastLoginAt,
		CreatedAt:    account.CreatedAt,
	}
}
