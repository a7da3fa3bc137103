package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avenqor/avenqor-backend/internal/ledger"
	"github.com/avenqor/avenqor-backend/internal/purchases"
	"github.com/avenqor/avenqor-backend/pkg/db"
	"github.com/avenqor/avenqor-backend/pkg/db/models"
	"github.com/avenqor/avenqor-backend/pkg/enums"
	pkgerrors "github.com/avenqor/avenqor-backend/pkg/errors"
	"github.com/avenqor/avenqor-backend/pkg/logger"
	"github.com/avenqor/avenqor-backend/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

type accountReader interface {
	GetAccount(ctx context.Context, accountID uuid.UUID) (*models.Account, error)
}

// OrchestratorParams wires the orchestrator's collaborators.
type OrchestratorParams struct {
	DB        *db.Client
	Records   purchases.Service
	Ledger    ledger.Service
	Accounts  accountReader
	Progress  *ProgressStore
	Generator Generator
	Receipts  ReceiptSender
	Delivery  DeliverySender
	Renderer  ReceiptRenderer
	Logger    *logger.Logger
	Metrics   *metrics.GenerationMetrics
}

// Orchestrator drives one paid generation request from processing to a
// terminal state. The generator is called exactly once per run; a failed
// run refunds the reserved tokens and marks the record failed. Notification
// failures after a successful run are logged and never affect the record.
type Orchestrator struct {
	db        *db.Client
	records   purchases.Service
	ledger    ledger.Service
	accounts  accountReader
	progress  *ProgressStore
	generator Generator
	receipts  ReceiptSender
	delivery  DeliverySender
	renderer  ReceiptRenderer
	logg      *logger.Logger
	metrics   *metrics.GenerationMetrics
}

// NewOrchestrator validates and assembles the orchestrator.
func NewOrchestrator(params OrchestratorParams) (*Orchestrator, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Records == nil {
		return nil, fmt.Errorf("purchase record service required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Accounts == nil {
		return nil, fmt.Errorf("account reader required")
	}
	if params.Progress == nil {
		return nil, fmt.Errorf("progress store required")
	}
	if params.Generator == nil {
		return nil, fmt.Errorf("generator required")
	}
	if params.Receipts == nil {
		return nil, fmt.Errorf("receipt sender required")
	}
	if params.Delivery == nil {
		return nil, fmt.Errorf("delivery sender required")
	}
	if params.Renderer == nil {
		return nil, fmt.Errorf("receipt renderer required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Orchestrator{
		db:        params.DB,
		records:   params.Records,
		ledger:    params.Ledger,
		accounts:  params.Accounts,
		progress:  params.Progress,
		generator: params.Generator,
		receipts:  params.Receipts,
		delivery:  params.Delivery,
		renderer:  params.Renderer,
		logg:      params.Logger,
		metrics:   params.Metrics,
	}, nil
}

// Run executes one generation attempt for the record. It returns an error
// only for infrastructure failures worth redelivering; generator failures
// are terminal and handled inside.
func (o *Orchestrator) Run(ctx context.Context, recordID uuid.UUID) error {
	ctx = o.logg.WithRecordID(ctx, recordID.String())

	record, err := o.records.FindByID(ctx, recordID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			o.logg.Warn(ctx, "generation requested for unknown record")
			return nil
		}
		return err
	}
	ctx = o.logg.WithAccountID(ctx, record.AccountID.String())

	if record.Status != enums.PurchaseStatusProcessing {
		o.logg.Info(ctx, "record already finalized, skipping run")
		return nil
	}
	if !record.Kind.RequiresGeneration() {
		o.logg.Warn(ctx, fmt.Sprintf("record kind %s has no generation phase", record.Kind))
		return nil
	}

	started := time.Now()
	o.setProgress(ctx, recordID, enums.GenerationStageGeneratingPrimary, "generating primary document", nil)

	result, err := o.generator.Generate(ctx, buildRequest(record))
	if err != nil {
		return o.finalizeFailure(ctx, record, err)
	}

	if result.SecondaryContentRef != "" {
		o.setProgress(ctx, recordID, enums.GenerationStageGeneratingTranslation, "translation produced", result.Warnings)
	}
	o.setProgress(ctx, recordID, enums.GenerationStageRenderingDocuments, "documents rendered", result.Warnings)

	record, err = o.records.Update(ctx, purchases.UpdateInput{
		RecordID:   record.ID,
		Status:     statusPtr(enums.PurchaseStatusReady),
		ContentRef: &result.ContentRef,
		Usage: &purchases.Usage{
			ModelID:          result.Usage.ModelID,
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
			TotalTokens:      result.Usage.TotalTokens,
		},
	})
	if err != nil {
		return err
	}

	o.setProgress(ctx, recordID, enums.GenerationStageSendingNotifications, "sending notifications", result.Warnings)
	o.notify(ctx, record, result)

	record, err = o.records.Update(ctx, purchases.UpdateInput{
		RecordID: record.ID,
		Status:   statusPtr(enums.PurchaseStatusCompleted),
	})
	if err != nil {
		return err
	}

	o.setProgress(ctx, recordID, enums.GenerationStageCompleted, "generation complete", result.Warnings)
	o.metrics.ObserveDuration(record.Kind.String(), time.Since(started))
	o.metrics.IncSuccess(record.Kind.String())
	o.metrics.AddModelTokens(record.Kind.String(), "prompt", result.Usage.PromptTokens)
	o.metrics.AddModelTokens(record.Kind.String(), "completion", result.Usage.CompletionTokens)
	o.logg.Info(ctx, "generation run completed")
	return nil
}

// Abandon finalizes a record whose job exhausted its delivery attempts
// without a clean run: the record fails and the reservation is refunded.
// Already-finalized records are left alone.
func (o *Orchestrator) Abandon(ctx context.Context, recordID uuid.UUID, reason string) error {
	ctx = o.logg.WithRecordID(ctx, recordID.String())

	record, err := o.records.FindByID(ctx, recordID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			o.logg.Warn(ctx, "abandon requested for unknown record")
			return nil
		}
		return err
	}
	if record.Status != enums.PurchaseStatusProcessing {
		return nil
	}
	if reason == "" {
		reason = "generation abandoned"
	}
	return o.finalizeFailure(o.logg.WithAccountID(ctx, record.AccountID.String()), record, fmt.Errorf("%s", reason))
}

// finalizeFailure marks the record failed and refunds the reserved tokens
// in one transaction. The refund is a deliberate behavior change from the
// original flow, which forfeited tokens on generator failure.
func (o *Orchestrator) finalizeFailure(ctx context.Context, record *models.PurchaseRecord, genErr error) error {
	o.logg.Error(ctx, "generation collaborator failed", genErr)

	message := genErr.Error()
	refund := -record.TokenDelta

	err := o.db.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := o.records.WithTx(tx).Update(ctx, purchases.UpdateInput{
			RecordID:     record.ID,
			Status:       statusPtr(enums.PurchaseStatusFailed),
			ErrorMessage: &message,
		}); err != nil {
			return err
		}
		if refund > 0 {
			recordID := record.ID
			if _, err := o.ledger.WithTx(tx).Credit(ctx, ledger.MutationInput{
				AccountID: record.AccountID,
				RecordID:  &recordID,
				Type:      enums.LedgerEntryTypeRefund,
				Amount:    refund,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	o.setProgress(ctx, record.ID, enums.GenerationStageError, "generation failed", nil)
	o.metrics.IncFailure(record.Kind.String())
	return nil
}

// notify runs the two notification collaborators independently. Failures
// are combined for the log line and never bubble up.
func (o *Orchestrator) notify(ctx context.Context, record *models.PurchaseRecord, result *Result) {
	account, err := o.accounts.GetAccount(ctx, record.AccountID)
	if err != nil {
		o.logg.Error(ctx, "cannot load account for notifications", err)
		return
	}

	var errs error

	pdf, err := o.renderer.Render(ctx, Invoice{
		InvoiceNumber: invoiceNumber(record.ID),
		RecipientName: account.DisplayName,
		TokenDelta:    record.TokenDelta,
		FiatAmount:    record.FiatAmount,
		Description:   fmt.Sprintf("%s purchase", record.Kind),
	})
	if err != nil {
		// Rendering failure blocks only the receipt email.
		errs = multierr.Append(errs, fmt.Errorf("render receipt: %w", err))
	} else {
		if err := o.receipts.SendReceipt(ctx, Receipt{
			RecipientEmail: account.Email,
			RecipientName:  account.DisplayName,
			Locale:         account.Locale,
			InvoiceNumber:  invoiceNumber(record.ID),
			TokenDelta:     record.TokenDelta,
			FiatAmount:     record.FiatAmount,
			AttachedPDF:    pdf,
		}); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("send receipt: %w", err))
		}
	}

	if err := o.delivery.SendDelivery(ctx, Delivery{
		RecipientEmail: account.Email,
		RecipientName:  account.DisplayName,
		Locale:         account.Locale,
		ContentRef:     result.ContentRef,
		Attachments:    result.DocumentPaths,
	}); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("send delivery: %w", err))
	}

	if errs != nil {
		o.logg.Warn(ctx, fmt.Sprintf("best-effort notifications incomplete: %v", errs))
	}
}

func (o *Orchestrator) setProgress(ctx context.Context, recordID uuid.UUID, stage enums.GenerationStage, message string, warnings []string) {
	progress := Progress{
		RecordID: recordID,
		Stage:    stage,
		Message:  message,
		Warnings: warnings,
	}
	if err := o.progress.Set(ctx, progress); err != nil {
		o.logg.Warn(ctx, fmt.Sprintf("progress update dropped: %v", err))
	}
}

func buildRequest(record *models.PurchaseRecord) Request {
	return Request{
		RecordID:          record.ID,
		AccountID:         record.AccountID,
		Kind:              record.Kind.String(),
		Goals:             deref(record.Goals),
		Markets:           record.Markets,
		Instruments:       record.Instruments,
		Experience:        deref(record.Experience),
		RiskTolerance:     deref(record.RiskTolerance),
		TradingStyle:      deref(record.TradingStyle),
		DepositBracket:    deref(record.DepositBracket),
		Language:          deref(record.Language),
		SecondaryLanguage: deref(record.SecondaryLanguage),
	}
}

func invoiceNumber(recordID uuid.UUID) string {
	return "AVQ-" + strings.ToUpper(recordID.String()[:8])
}

func statusPtr(status enums.PurchaseStatus) *enums.PurchaseStatus {
	return &status
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
