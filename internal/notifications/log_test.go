package notifications

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/avenqor/avenqor-backend/internal/generation"
	"github.com/avenqor/avenqor-backend/pkg/config"
	"github.com/avenqor/avenqor-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

func TestLogSenderLogsInsteadOfSending(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	sender, err := NewLogSender(
		config.MailConfig{FromEmail: "no-reply@avenqor.net", FromName: "Avenqor"},
		logger.New(logger.Options{ServiceName: "test", Output: &buf}),
	)
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}
	ctx := context.Background()

	if err := sender.SendReceipt(ctx, generation.Receipt{
		RecipientEmail: "buyer@example.com",
		InvoiceNumber:  "AVQ-12345678",
		TokenDelta:     -3500,
	}); err != nil {
		t.Fatalf("send receipt: %v", err)
	}
	if err := sender.SendDelivery(ctx, generation.Delivery{
		RecipientEmail: "buyer@example.com",
		ContentRef:     "content/abc",
	}); err != nil {
		t.Fatalf("send delivery: %v", err)
	}

	logged := buf.String()
	for _, want := range []string{"buyer@example.com", "AVQ-12345678", "content/abc", "no-reply@avenqor.net"} {
		if !strings.Contains(logged, want) {
			t.Fatalf("log missing %q:\n%s", want, logged)
		}
	}
}

func TestTextReceiptRenderer(t *testing.T) {
	t.Parallel()
	renderer := NewTextReceiptRenderer()

	pdf, err := renderer.Render(context.Background(), generation.Invoice{
		InvoiceNumber: "AVQ-ABCD1234",
		RecipientName: "Buyer",
		TokenDelta:    -20000,
		FiatAmount:    decimal.RequireFromString("0"),
		Description:   "AI trading strategy",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	text := string(pdf)
	for _, want := range []string{"AVQ-ABCD1234", "Buyer", "AI trading strategy", "-20000"} {
		if !strings.Contains(text, want) {
			t.Fatalf("rendered receipt missing %q:\n%s", want, text)
		}
	}

	if _, err := renderer.Render(context.Background(), generation.Invoice{}); err == nil {
		t.Fatal("expected error for missing invoice number")
	}
}
