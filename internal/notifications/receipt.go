package notifications

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/avenqor/avenqor-backend/internal/generation"
)

// TextReceiptRenderer renders a plain-text invoice document. It stands in
// for the PDF renderer until the document service is wired; the orchestrator
// only cares that Render yields attachable bytes.
type TextReceiptRenderer struct{}

// NewTextReceiptRenderer returns the plain-text renderer.
func NewTextReceiptRenderer() *TextReceiptRenderer {
	return &TextReceiptRenderer{}
}

func (r *TextReceiptRenderer) Render(_ context.Context, invoice generation.Invoice) ([]byte, error) {
	if invoice.InvoiceNumber == "" {
		return nil, fmt.Errorf("invoice number is required")
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Avenqor Invoice %s\n", invoice.InvoiceNumber)
	fmt.Fprintf(&buf, "Date: %s\n", time.Now().UTC().Format("2006-01-02"))
	fmt.Fprintf(&buf, "Billed to: %s\n", invoice.RecipientName)
	fmt.Fprintf(&buf, "Item: %s\n", invoice.Description)
	fmt.Fprintf(&buf, "Tokens: %d\n", invoice.TokenDelta)
	if !invoice.FiatAmount.IsZero() {
		fmt.Fprintf(&buf, "Amount: %s\n", invoice.FiatAmount.StringFixed(2))
	}
	return buf.Bytes(), nil
}
