package middleware

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const ctxAccountID contextKey = "account_id"

// WithAccountID injects the authenticated account id into the context.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxAccountID, accountID)
}

// AccountIDFromContext returns the authenticated account id, or "".
func AccountIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxAccountID).(string); ok {
		return v
	}
	return ""
}

// AccountUUIDFromContext parses the authenticated account id. uuid.Nil
// means the request was not authenticated.
func AccountUUIDFromContext(ctx context.Context) uuid.UUID {
	id, err := uuid.Parse(AccountIDFromContext(ctx))
	if err != nil {
		return uuid.Nil
	}
	return id
}
