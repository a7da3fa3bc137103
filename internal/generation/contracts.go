package generation

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Request is the full structured input handed to the content generator.
type Request struct {
	RecordID          uuid.UUID `json:"record_id"`
	AccountID         uuid.UUID `json:"account_id"`
	Kind              string    `json:"kind"`
	Goals             string    `json:"goals,omitempty"`
	Markets           []string  `json:"markets,omitempty"`
	Instruments       []string  `json:"instruments,omitempty"`
	Experience        string    `json:"experience,omitempty"`
	RiskTolerance     string    `json:"risk_tolerance,omitempty"`
	TradingStyle      string    `json:"trading_style,omitempty"`
	DepositBracket    string    `json:"deposit_bracket,omitempty"`
	Language          string    `json:"language,omitempty"`
	SecondaryLanguage string    `json:"secondary_language,omitempty"`
}

// Usage reports model token consumption for one generation run.
type Usage struct {
	ModelID          string `json:"model_id"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

// Result is the opaque generator output the orchestrator finalizes from.
type Result struct {
	ContentRef          string   `json:"content_ref"`
	SecondaryContentRef string   `json:"secondary_content_ref,omitempty"`
	DocumentPaths       []string `json:"document_paths,omitempty"`
	Usage               Usage    `json:"usage"`
	Warnings            []string `json:"warnings,omitempty"`
}

// Generator is the single opaque, fallible content-generation collaborator.
// One call produces the primary document, optional translation, assets, and
// rendered downloads; the orchestrator never retries it.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// Receipt carries everything the receipt email needs.
type Receipt struct {
	RecipientEmail string
	RecipientName  string
	Locale         string
	InvoiceNumber  string
	TokenDelta     int64
	FiatAmount     decimal.Decimal
	AttachedPDF    []byte
}

// Delivery carries everything the content-delivery email needs.
type Delivery struct {
	RecipientEmail string
	RecipientName  string
	Locale         string
	ContentRef     string
	Attachments    []string
}

// Invoice is the structured input for receipt PDF rendering.
type Invoice struct {
	InvoiceNumber string
	RecipientName string
	TokenDelta    int64
	FiatAmount    decimal.Decimal
	Description   string
}

// ReceiptSender delivers the invoice/receipt email. Best-effort: failures
// are logged by the caller and never change the purchase record.
type ReceiptSender interface {
	SendReceipt(ctx context.Context, receipt Receipt) error
}

// DeliverySender delivers the generated content email. Same best-effort
// contract as ReceiptSender.
type DeliverySender interface {
	SendDelivery(ctx context.Context, delivery Delivery) error
}

// ReceiptRenderer renders the receipt PDF. A failure here blocks only the
// receipt email, nothing else.
type ReceiptRenderer interface {
	Render(ctx context.Context, invoice Invoice) ([]byte, error)
}
