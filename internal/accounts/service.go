package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avenqor/avenqor-backend/internal/ledger"
	"github.com/avenqor/avenqor-backend/pkg/auth"
	"github.com/avenqor/avenqor-backend/pkg/config"
	dbpkg "github.com/avenqor/avenqor-backend/pkg/db"
	"github.com/avenqor/avenqor-backend/pkg/db/models"
	"github.com/avenqor/avenqor-backend/pkg/enums"
	pkgerrors "github.com/avenqor/avenqor-backend/pkg/errors"
	"github.com/avenqor/avenqor-backend/pkg/logger"
	"github.com/avenqor/avenqor-backend/pkg/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const minPasswordLength = 8

// RegisterInput carries a signup request.
type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
	Locale      string
}

// Session is the result of a successful login.
type Session struct {
	Account   *models.Account
	Token     string
	ExpiresAt time.Time
}

// Service owns account lifecycle: signup, login, profile reads.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.Account, error)
	Login(ctx context.Context, email, password string) (*Session, error)
	Profile(ctx context.Context, accountID uuid.UUID) (*models.Account, error)
}

// ServiceParams wires the account service dependencies.
type ServiceParams struct {
	DB       *dbpkg.Client
	Repo     Repository
	Ledger   ledger.Service
	JWT      config.JWTConfig
	Password config.PasswordConfig
	Tokens   config.TokensConfig
	Logger   *logger.Logger
}

type service struct {
	db     *dbpkg.Client
	repo   Repository
	ledger ledger.Service
	jwt    config.JWTConfig
	pass   config.PasswordConfig
	tokens config.TokensConfig
	logg   *logger.Logger
}

// NewService validates dependencies and returns an account service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db client is required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("account repository is required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{
		db:     params.DB,
		repo:   params.Repo,
		ledger: params.Ledger,
		jwt:    params.JWT,
		pass:   params.Password,
		tokens: params.Tokens,
		logg:   params.Logger,
	}, nil
}

// Register creates the account and applies the signup token grant in one
// transaction, so a failed grant never leaves a half-provisioned account.
func (s *service) Register(ctx context.Context, input RegisterInput) (*models.Account, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if err := validateRegistration(email, input.Password); err != nil {
		return nil, err
	}

	hash, err := security.HashPassword(input.Password, s.pass)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hashing password")
	}

	account := &models.Account{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(input.DisplayName),
		Locale:       normalizeLocale(input.Locale),
		IsActive:     true,
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := s.repo.WithTx(tx).Create(ctx, account); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "email already registered")
			}
			return err
		}

		if s.tokens.SignupGrant > 0 {
			balance, err := s.ledger.WithTx(tx).Credit(ctx, ledger.MutationInput{
				AccountID: account.ID,
				Type:      enums.LedgerEntryTypeGrant,
				Amount:    int64(s.tokens.SignupGrant),
			})
			if err != nil {
				return err
			}
			account.TokenBalance = balance
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithAccountID(ctx, account.ID.String()), "account registered")
	return account, nil
}

// Login verifies credentials and mints an access token. Missing accounts
// and bad passwords produce the same error, nothing leaks which failed.
func (s *service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password are required")
	}

	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, err
	}
	if !account.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	ok, err := security.VerifyPassword(password, account.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verifying password")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	now := time.Now().UTC()
	token, err := auth.MintAccessToken(s.jwt, now, auth.AccessTokenPayload{
		AccountID: account.ID,
		Email:     account.Email,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting access token")
	}

	// Advisory stamp, a failed write must not block the login.
	if err := s.repo.TouchLastLogin(ctx, account.ID); err != nil {
		s.logg.Warn(ctx, "failed to stamp last login: "+err.Error())
	}

	return &Session{
		Account:   account,
		Token:     token,
		ExpiresAt: now.Add(s.jwt.Expiration()),
	}, nil
}

func (s *service) Profile(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "account not found")
		}
		return nil, err
	}
	return account, nil
}

func validateRegistration(email, password string) error {
	if email == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "email is malformed")
	}
	if len(password) < minPasswordLength {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	return nil
}

func normalizeLocale(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if locale == "" {
		return "en"
	}
	return locale
}
