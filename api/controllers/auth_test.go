package controllers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avenqor/avenqor-backend/internal/accounts"
	"github.com/avenqor/avenqor-backend/internal/ledger"
	"github.com/avenqor/avenqor-backend/pkg/config"
	dbpkg "github.com/avenqor/avenqor-backend/pkg/db"
	"github.com/avenqor/avenqor-backend/pkg/db/dbtest"
	"github.com/avenqor/avenqor-backend/pkg/logger"
)

func newAccountsService(t *testing.T) accounts.Service {
	t.Helper()

	conn := dbtest.Open(t)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	require.NoError(t, err)

	svc, err := accounts.NewService(accounts.ServiceParams{
		DB:     dbpkg.NewWithConn(conn),
		Repo:   accounts.NewRepository(conn),
		Ledger: ledgerSvc,
		JWT:    config.JWTConfig{Secret: "test-secret", Issuer: "avenqor-test", ExpirationMinutes: 30},
		Tokens: config.TokensConfig{SignupGrant: 500},
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return svc
}

func doJSON(t *testing.T, handler http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRegisterCreatesAccountWithGrant(t *testing.T) {
	t.Parallel()
	svc := newAccountsService(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	rec := doJSON(t, Register(svc, logg), http.MethodPost, "/api/v1/auth/register",
		`{"email":"trader@example.com","password":"correct horse","display_name":"Trader"}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var envelope struct {
		Data accountResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "trader@example.com", envelope.Data.Email)
	assert.Equal(t, int64(500), envelope.Data.TokenBalance)
	assert.NotEqual(t, uuid.Nil, envelope.Data.ID)
}

func TestRegisterRejectsInvalidPayload(t *testing.T) {
	t.Parallel()
	svc := newAccountsService(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	rec := doJSON(t, Register(svc, logg), http.MethodPost, "/api/v1/auth/register",
		`{"email":"not-an-email","password":"short","display_name":""}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "VALIDATION_ERROR", envelope.Error.Code)
}

func TestLoginReturnsSessionToken(t *testing.T) {
	t.Parallel()
	svc := newAccountsService(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	rec := doJSON(t, Register(svc, logg), http.MethodPost, "/api/v1/auth/register",
		`{"email":"login@example.com","password":"correct horse","display_name":"Login"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, Login(svc, logg), http.MethodPost, "/api/v1/auth/login",
		`{"email":"login@example.com","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var envelope struct {
		Data sessionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.NotEmpty(t, envelope.Data.Token)
	assert.Equal(t, "login@example.com", envelope.Data.Account.Email)
	assert.False(t, envelope.Data.ExpiresAt.IsZero())
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	t.Parallel()
	svc := newAccountsService(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	rec := doJSON(t, Register(svc, logg), http.MethodPost, "/api/v1/auth/register",
		`{"email":"victim@example.com","password":"correct horse","display_name":"Victim"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, Login(svc, logg), http.MethodPost, "/api/v1/auth/login",
		`{"email":"victim@example.com","password":"wrong horse"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
