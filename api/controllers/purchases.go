package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avenqor/avenqor-backend/api/middleware"
	"github.com/avenqor/avenqor-backend/api/responses"
	"github.com/avenqor/avenqor-backend/api/validators"
	"github.com/avenqor/avenqor-backend/internal/generation"
	"github.com/avenqor/avenqor-backend/internal/pricing"
	"github.com/avenqor/avenqor-backend/internal/purchases"
	"github.com/avenqor/avenqor-backend/pkg/db/models"
	"github.com/avenqor/avenqor-backend/pkg/enums"
	pkgerrors "github.com/avenqor/avenqor-backend/pkg/errors"
	"github.com/avenqor/avenqor-backend/pkg/logger"
	"github.com/avenqor/avenqor-backend/pkg/pagination"
)

// QuoteCustomCourse prices a custom course selection without committing
// to the purchase.
func QuoteCustomCourse(svc generation.Service, logg *logger.Logger) http.HandlerFunc {
	return quote(svc, logg, func(svc generation.Service, sel pricing.Selections) int {
		return svc.QuoteCustomCourse(sel)
	})
}

// QuoteAIStrategy prices an AI strategy selection.
func QuoteAIStrategy(svc generation.Service, logg *logger.Logger) http.HandlerFunc {
	return quote(svc, logg, func(svc generation.Service, sel pricing.Selections) int {
		return svc.QuoteAIStrategy(sel)
	})
}

func quote(svc generation.Service, logg *logger.Logger, price func(generation.Service, pricing.Selections) int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "generation service unavailable"))
			return
		}

		var payload quoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, quoteResponse{PriceTokens: price(svc, payload.Selections.toSelections())})
	}
}

// CreateCustomCourse reserves tokens and queues a custom course build.
func CreateCustomCourse(svc generation.Service, logg *logger.Logger) http.HandlerFunc {
	return createGeneration(svc, logg, generation.Service.CreateCustomCourse)
}

// CreateAIStrategy reserves tokens and queues an AI strategy run.
func CreateAIStrategy(svc generation.Service, logg *logger.Logger) http.HandlerFunc {
	return createGeneration(svc, logg, generation.Service.CreateAIStrategy)
}

func createGeneration(svc generation.Service, logg *logger.Logger, create func(generation.Service, context.Context, generation.RequestInput) (*models.PurchaseRecord, int64, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "generation service unavailable"))
			return
		}

		accountID := middleware.AccountUUIDFromContext(r.Context())
		if accountID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "account context missing"))
			return
		}

		var payload generationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, balance, err := create(svc, r.Context(), generation.RequestInput{
			AccountID:  accountID,
			Selections: payload.Selections.toSelections(),
			Goals:      validators.SanitizeString(payload.Goals, 4000),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusAccepted, purchaseCreatedResponse{
			Purchase:     newPurchaseResponse(record),
			TokenBalance: balance,
		})
	}
}

// GetPurchase returns one record owned by the caller.
func GetPurchase(svc purchases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchase service unavailable"))
			return
		}

		record, err := ownedPurchase(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newPurchaseResponse(record))
	}
}

// ListPurchases returns the caller's records, optionally filtered by kind.
func ListPurchases(svc purchases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchase service unavailable"))
			return
		}

		accountID := middleware.AccountUUIDFromContext(r.Context())
		if accountID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "account context missing"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1_000_000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var kind *enums.PurchaseKind
		if raw := r.URL.Query().Get("kind"); raw != "" {
			parsed, parseErr := enums.ParsePurchaseKind(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid kind filter"))
				return
			}
			kind = &parsed
		}

		records, err := svc.ListByAccount(r.Context(), accountID, kind, pagination.Params{Limit: limit, Offset: offset})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]purchaseResponse, 0, len(records))
		for i := range records {
			out = append(out, newPurchaseResponse(&records[i]))
		}
		responses.WriteSuccess(w, purchaseListResponse{Purchases: out, Limit: limit, Offset: offset})
	}
}

// ownedPurchase loads the path record and enforces ownership. A foreign
// record reads as not found so ids cannot be probed.
func ownedPurchase(r *http.Request, svc purchases.Service) (*models.PurchaseRecord, error) {
	accountID := middleware.AccountUUIDFromContext(r.Context())
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account context missing")
	}

	recordID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid purchase id")
	}

	record, err := svc.FindByID(r.Context(), recordID)
	if err != nil {
		return nil, err
	}
	if record.AccountID != accountID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
	}
	return record, nil
}

type quoteRequest struct {
	Selections selectionsPayload `json:"selections"`
}

type quoteResponse struct {
	PriceTokens int `json:"price_tokens"`
}

type generationRequest struct {
	Goals      string            `json:"goals"`
	Selections selectionsPayload `json:"selections"`
}

type selectionsPayload struct {
	Preset          string   `json:"preset"`
	Market          string   `json:"market"`
	Timeframe       string   `json:"timeframe"`
	RiskPerTrade    string   `json:"risk_per_trade"`
	MaxTradesPerDay string   `json:"max_trades_per_day"`
	Instruments     string   `json:"instruments"`
	DetailLevel     string   `json:"detail_level"`
	Experience      string   `json:"experience"`
	DepositBracket  string   `json:"deposit_bracket"`
	RiskTolerance   string   `json:"risk_tolerance"`
	Markets         []string `json:"markets"`
	TradingStyle    string   `json:"trading_style"`
	Languages       []string `json:"languages"`
}

func (p selectionsPayload) toSelections() pricing.Selections {
	return pricing.Selections{
		Preset:          p.Preset,
		Market:          p.Market,
		Timeframe:       p.Timeframe,
		RiskPerTrade:    p.RiskPerTrade,
		MaxTradesPerDay: p.MaxTradesPerDay,
		Instruments:     p.Instruments,
		DetailLevel:     p.DetailLevel,
		Experience:      p.Experience,
		DepositBracket:  p.DepositBracket,
		RiskTolerance:   p.RiskTolerance,
		Markets:         p.Markets,
		TradingStyle:    p.TradingStyle,
		Languages:       p.Languages,
	}
}

type purchaseCreatedResponse struct {
	Purchase     purchaseResponse `json:"purchase"`
	TokenBalance int64            `json:"token_balance"`
}

type purchaseListResponse struct {
	Purchases []purchaseResponse `json:"purchases"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
}

type purchaseResponse struct {
	ID           uuid.UUID       `json:"id"`
	Kind         string          `json:"kind"`
	Status       string          `json:"status"`
	TokenDelta   int64           `json:"token_delta"`
	FiatAmount   decimal.Decimal `json:"fiat_amount"`
	FiatCurrency string          `json:"fiat_currency"`

	CourseRef *string `json:"course_ref,omitempty"`
	Language  *string `json:"language,omitempty"`

	Goals             *string  `json:"goals,omitempty"`
	Markets           []string `json:"markets,omitempty"`
	Instruments       []string `json:"instruments,omitempty"`
	Experience        *string  `json:"experience,omitempty"`
	RiskTolerance     *string  `json:"risk_tolerance,omitempty"`
	TradingStyle      *string  `json:"trading_style,omitempty"`
	DepositBracket    *string  `json:"deposit_bracket,omitempty"`
	SecondaryLanguage *string  `json:"secondary_language,omitempty"`

	EstimatedReadyAt *time.Time `json:"estimated_ready_at,omitempty"`
	ContentRef       *string    `json:"content_ref,omitempty"`
	ErrorMessage     *string    `json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newPurchaseResponse(record *models.PurchaseRecord) purchaseResponse {
	if record == nil {
		return purchaseResponse{}
	}
	return purchaseResponse{
		ID:                record.ID,
		Kind:              string(record.Kind),
		Status:            string(record.Status),
		TokenDelta:        record.TokenDelta,
		FiatAmount:        record.FiatAmount,
		FiatCurrency:      string(record.FiatCurrency),
		CourseRef:         record.CourseRef,
		Language:          record.Language,
		Goals:             record.Goals,
		Markets:           record.Markets,
		Instruments:       record.Instruments,
		Experience:        record.Experience,
		RiskTolerance:     record.RiskTolerance,
		TradingStyle:      record.TradingStyle,
		DepositBracket:    record.DepositBracket,
		SecondaryLanguage: record.SecondaryLanguage,
		EstimatedReadyAt:  record.EstimatedReadyAt,
		ContentRef:        record.ContentRef,
		ErrorMessage:      record.ErrorMessage,
		CreatedAt:         record.CreatedAt,
		UpdatedAt:         record.UpdatedAt,
	}
}
