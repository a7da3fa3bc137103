package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avenqor/avenqor-backend/pkg/db/models"
	"github.com/avenqor/avenqor-backend/pkg/enums"
	pkgerrors "github.com/avenqor/avenqor-backend/pkg/errors"
	"github.com/avenqor/avenqor-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Entry is one row of the unified transaction feed.
type Entry struct {
	ID           uuid.UUID            `json:"id"`
	Type         enums.PurchaseKind   `json:"type"`
	Status       enums.PurchaseStatus `json:"status"`
	Detail       string               `json:"detail"`
	Date         time.Time            `json:"date"`
	TokenDelta   int64                `json:"token_delta"`
	FiatAmount   decimal.Decimal      `json:"fiat_amount"`
	FiatCurrency enums.Currency       `json:"fiat_currency"`
	MetaSummary  string               `json:"meta_summary,omitempty"`
}

// Page is a window of the feed plus the account-wide total.
type Page struct {
	Entries []Entry `json:"entries"`
	Total   int64   `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Service aggregates every purchase variant into one paginated feed.
type Service interface {
	List(ctx context.Context, accountID uuid.UUID, limit, offset int) (*Page, error)
}

type service struct {
	repo Repository
}

// NewService returns a transaction history service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("history repository is required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, accountID uuid.UUID, limit, offset int) (*Page, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	params := pagination.Normalize(pagination.Params{Limit: limit, Offset: offset})

	total, err := s.repo.CountByAccount(ctx, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "counting transactions")
	}

	records, err := s.repo.ListByAccount(ctx, accountID, params.Limit, params.Offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing transactions")
	}

	entries := make([]Entry, 0, len(records))
	for _, record := range records {
		entries = append(entries, toEntry(record))
	}
	return &Page{Entries: entries, Total: total, Limit: params.Limit, Offset: params.Offset}, nil
}

func toEntry(record models.PurchaseRecord) Entry {
	return Entry{
		ID:           record.ID,
		Type:         record.Kind,
		Status:       record.Status,
		Detail:       detailFor(record),
		Date:         record.CreatedAt,
		TokenDelta:   record.TokenDelta,
		FiatAmount:   record.FiatAmount,
		FiatCurrency: record.FiatCurrency,
		MetaSummary:  summarize(record),
	}
}

// detailFor labels the row for display. Unknown kinds still render,
// historical rows must never break the feed.
func detailFor(record models.PurchaseRecord) string {
	switch record.Kind {
	case enums.PurchaseKindCoursePurchase:
		if record.CourseRef != nil && *record.CourseRef != "" {
			return "Course purchase: " + *record.CourseRef
		}
		return "Course purchase"
	case enums.PurchaseKindCustomCourse:
		return "Custom course"
	case enums.PurchaseKindAIStrategy:
		return "AI trading strategy"
	case enums.PurchaseKindTopup:
		return "Token top-up"
	default:
		return "Transaction"
	}
}

func summarize(record models.PurchaseRecord) string {
	var parts []string
	if len(record.Markets) > 0 {
		parts = append(parts, "markets: "+strings.Join(record.Markets, ", "))
	}
	if len(record.Instruments) > 0 {
		parts = append(parts, "instruments: "+strings.Join(record.Instruments, ", "))
	}
	if record.Language != nil && *record.Language != "" {
		parts = append(parts, "language: "+*record.Language)
	}
	if record.SecondaryLanguage != nil && *record.SecondaryLanguage != "" {
		parts = append(parts, "secondary language: "+*record.SecondaryLanguage)
	}
	if record.TradingStyle != nil && *record.TradingStyle != "" {
		parts = append(parts, "style: "+*record.TradingStyle)
	}
	if record.ErrorMessage != nil && *record.ErrorMessage != "" {
		parts = append(parts, "error: "+*record.ErrorMessage)
	}
	return strings.Join(parts, "; ")
}
