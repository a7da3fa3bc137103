package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/avenqor/avenqor-backend/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

const maxInboundRequestID = 64

// RequestID propagates the caller's X-Request-Id when it looks sane,
// otherwise mints a fresh one, then seeds it into the logging context
// and echoes it on the response.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := inboundRequestID(r)
			if reqID == "" {
				reqID = uuid.NewString()
			}

			w.Header().Set(requestIDHeader, reqID)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// inboundRequestID returns the caller-provided id, or empty when it is
// oversized or not printable ASCII. Request ids end up in log lines.
func inboundRequestID(r *http.Request) string {
	id := r.Header.Get(requestIDHeader)
	if id == "" || len(id) > maxInboundRequestID {
		return ""
	}
	for _, c := range id {
		if c < 0x21 || c > 0x7e {
			return ""
		}
	}
	return id
}
