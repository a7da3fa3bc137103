package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avenqor/avenqor-backend/pkg/enums"
)

// PurchaseRecord is the tagged union over the four purchase variants.
// The shared core (account, kind, token delta, fiat amount, status,
// timestamps) is always populated; variant columns are nil unless the
// kind uses them. TokenDelta is fixed at creation and never revised —
// compensation for failed generations is a separate refund ledger entry.
type PurchaseRecord struct {
	ID           uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	AccountID    uuid.UUID            `gorm:"column:account_id;type:uuid;not null;index"`
	Kind         enums.PurchaseKind   `gorm:"column:kind;not null;index"`
	Status       enums.PurchaseStatus `gorm:"column:status;not null;default:'processing'"`
	TokenDelta   int64                `gorm:"column:token_delta;not null"`
	FiatAmount   decimal.Decimal      `gorm:"column:fiat_amount;type:numeric(12,2);not null;default:0"`
	FiatCurrency enums.Currency       `gorm:"column:fiat_currency;not null;default:'usd'"`

	// course_purchase
	CourseRef *string `gorm:"column:course_ref"`
	Language  *string `gorm:"column:language"`

	// custom_course / ai_strategy request payload
	Goals             *string  `gorm:"column:goals"`
	Markets           []string `gorm:"column:markets;serializer:json"`
	Instruments       []string `gorm:"column:instruments;serializer:json"`
	Experience        *string  `gorm:"column:experience"`
	RiskTolerance     *string  `gorm:"column:risk_tolerance"`
	TradingStyle      *string  `gorm:"column:trading_style"`
	DepositBracket    *string  `gorm:"column:deposit_bracket"`
	SecondaryLanguage *string  `gorm:"column:secondary_language"`

	// generation outcome
	EstimatedReadyAt *time.Time `gorm:"column:estimated_ready_at"`
	ContentRef       *string    `gorm:"column:content_ref"`
	ErrorMessage     *string    `gorm:"column:error_message"`
	ModelID          *string    `gorm:"column:model_id"`
	PromptTokens     int        `gorm:"column:prompt_tokens;not null;default:0"`
	CompletionTokens int        `gorm:"column:completion_tokens;not null;default:0"`
	TotalTokens      int        `gorm:"column:total_tokens;not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
