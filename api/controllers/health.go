package controllers

import (
	"context"
	"net/http"

	"github.com/avenqor/avenqor-backend/api/responses"
	"github.com/avenqor/avenqor-backend/pkg/config"
)

type pinger interface {
	Ping(context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Avenqor-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports per-dependency status and degrades the overall
// status instead of failing the request.
func HealthReady(cfg *config.Config, db, cache pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Avenqor-Env", cfg.App.Env)

		checks := map[string]string{}
		status := "ready"
		for name, dep := range map[string]pinger{"postgres": db, "redis": cache} {
			if dep == nil {
				checks[name] = "not configured"
				status = "degraded"
				continue
			}
			if err := dep.Ping(r.Context()); err != nil {
				checks[name] = err.Error()
				status = "degraded"
				continue
			}
			checks[name] = "ok"
		}

		responses.WriteSuccess(w, map[string]any{"status": status, "checks": checks})
	}
}
