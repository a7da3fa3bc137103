package courses

import (
	"context"
	"fmt"
	"strings"

	"github.com/avenqor/avenqor-backend/internal/generation"
	"github.com/avenqor/avenqor-backend/internal/ledger"
	"github.com/avenqor/avenqor-backend/internal/purchases"
	dbpkg "github.com/avenqor/avenqor-backend/pkg/db"
	"github.com/avenqor/avenqor-backend/pkg/db/models"
	"github.com/avenqor/avenqor-backend/pkg/enums"
	pkgerrors "github.com/avenqor/avenqor-backend/pkg/errors"
	"github.com/avenqor/avenqor-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PurchaseInput selects a catalog item.
type PurchaseInput struct {
	AccountID uuid.UUID
	CourseRef string
	Language  string
}

// Service sells fixed catalog courses. No generation phase: the spend and
// the record land in one transaction, then delivery is attempted and the
// record completes.
type Service interface {
	Catalog() []CatalogItem
	Purchase(ctx context.Context, input PurchaseInput) (*models.PurchaseRecord, int64, error)
}

type accountReader interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

type service struct {
	db       *dbpkg.Client
	catalog  *Catalog
	records  purchases.Service
	ledger   ledger.Service
	accounts accountReader
	delivery generation.DeliverySender
	logg     *logger.Logger
}

// NewService wires the course purchase service.
func NewService(
	db *dbpkg.Client,
	catalog *Catalog,
	records purchases.Service,
	ledgerSvc ledger.Service,
	accounts accountReader,
	delivery generation.DeliverySender,
	logg *logger.Logger,
) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db client is required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if records == nil {
		return nil, fmt.Errorf("purchases service is required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service is required")
	}
	if accounts == nil {
		return nil, fmt.Errorf("account reader is required")
	}
	if delivery == nil {
		return nil, fmt.Errorf("delivery sender is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{
		db:       db,
		catalog:  catalog,
		records:  records,
		ledger:   ledgerSvc,
		accounts: accounts,
		delivery: delivery,
		logg:     logg,
	}, nil
}

func (s *service) Catalog() []CatalogItem {
	return s.catalog.Items()
}

func (s *service) Purchase(ctx context.Context, input PurchaseInput) (*models.PurchaseRecord, int64, error) {
	if input.AccountID == uuid.Nil {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	ref := strings.TrimSpace(input.CourseRef)
	if ref == "" {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "course ref is required")
	}
	item, ok := s.catalog.Find(ref)
	if !ok {
		return nil, 0, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("unknown course %q", ref))
	}

	language := strings.ToLower(strings.TrimSpace(input.Language))
	if language == "" {
		language = item.Languages[0]
	}
	if !item.SupportsLanguage(language) {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("course %q is not available in %q", ref, language))
	}

	var (
		record  *models.PurchaseRecord
		balance int64
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		record, err = s.records.WithTx(tx).Create(ctx, purchases.CreateInput{
			AccountID:  input.AccountID,
			Kind:       enums.PurchaseKindCoursePurchase,
			TokenDelta: -item.Price,
			CourseRef:  &item.Ref,
			Language:   &language,
		})
		if err != nil {
			return err
		}

		balance, err = s.ledger.WithTx(tx).Reserve(ctx, ledger.MutationInput{
			AccountID: input.AccountID,
			RecordID:  &record.ID,
			Type:      enums.LedgerEntryTypeSpend,
			Amount:    item.Price,
		})
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	ctx = s.logg.WithAccountID(ctx, input.AccountID.String())
	ctx = s.logg.WithRecordID(ctx, record.ID.String())

	// The course already exists, so the record completes after one
	// delivery attempt regardless of the email outcome.
	if err := s.sendDelivery(ctx, record, item, language); err != nil {
		s.logg.Warn(ctx, "course delivery email failed: "+err.Error())
	}

	status := enums.PurchaseStatusCompleted
	record, err = s.records.Update(ctx, purchases.UpdateInput{RecordID: record.ID, Status: &status})
	if err != nil {
		return nil, 0, err
	}

	s.logg.Info(ctx, fmt.Sprintf("course %s purchased", item.Ref))
	return record, balance, nil
}

func (s *service) sendDelivery(ctx context.Context, record *models.PurchaseRecord, item CatalogItem, language string) error {
	account, err := s.accounts.GetAccount(ctx, record.AccountID)
	if err != nil {
		return err
	}
	return s.delivery.SendDelivery(ctx, generation.Delivery{
		RecipientEmail: account.Email,
		RecipientName:  account.DisplayName,
		Locale:         language,
		ContentRef:     item.Ref,
	})
}
