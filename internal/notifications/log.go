// Package notifications carries the outbound email adapters. The real
// provider integration lives behind the generation contracts; this logging
// adapter keeps those contracts honest in dev and in environments without
// a mail provider.
package notifications

import (
	"context"
	"fmt"

	"github.com/avenqor/avenqor-backend/internal/generation"
	"github.com/avenqor/avenqor-backend/pkg/config"
	"github.com/avenqor/avenqor-backend/pkg/logger"
)

// LogSender implements ReceiptSender and DeliverySender by logging the
// outbound message instead of sending it.
type LogSender struct {
	mail config.MailConfig
	logg *logger.Logger
}

// NewLogSender wires the logging mail adapter.
func NewLogSender(mail config.MailConfig, logg *logger.Logger) (*LogSender, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &LogSender{mail: mail, logg: logg}, nil
}

func (s *LogSender) SendReceipt(ctx context.Context, receipt generation.Receipt) error {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"from":        s.mail.FromEmail,
		"to":          receipt.RecipientEmail,
		"invoice":     receipt.InvoiceNumber,
		"token_delta": receipt.TokenDelta,
		"pdf_bytes":   len(receipt.AttachedPDF),
	})
	s.logg.Info(ctx, "receipt email (log only)")
	return nil
}

func (s *LogSender) SendDelivery(ctx context.Context, delivery generation.Delivery) error {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"from":        s.mail.FromEmail,
		"to":          delivery.RecipientEmail,
		"content_ref": delivery.ContentRef,
		"attachments": len(delivery.Attachments),
	})
	s.logg.Info(ctx, "delivery email (log only)")
	return nil
}
