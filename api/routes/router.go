package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avenqor/avenqor-backend/api/controllers"
	"github.com/avenqor/avenqor-backend/api/middleware"
	"github.com/avenqor/avenqor-backend/internal/accounts"
	"github.com/avenqor/avenqor-backend/internal/courses"
	"github.com/avenqor/avenqor-backend/internal/generation"
	"github.com/avenqor/avenqor-backend/internal/history"
	"github.com/avenqor/avenqor-backend/internal/ledger"
	"github.com/avenqor/avenqor-backend/internal/purchases"
	"github.com/avenqor/avenqor-backend/internal/topups"
	"github.com/avenqor/avenqor-backend/pkg/config"
	"github.com/avenqor/avenqor-backend/pkg/db"
	"github.com/avenqor/avenqor-backend/pkg/logger"
	"github.com/avenqor/avenqor-backend/pkg/redis"
)

// Services groups everything the HTTP surface depends on.
type Services struct {
	Accounts  accounts.Service
	Ledger    ledger.Service
	Generator generation.Service
	Purchases purchases.Service
	Courses   courses.Service
	Topups    topups.Service
	History   history.Service
	Progress  *generation.ProgressStore
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	loginPolicy := middleware.RateLimitPolicy{
		Name:       "login",
		Window:     cfg.AuthRateLimit.LoginWindow,
		IPLimit:    cfg.AuthRateLimit.LoginIPLimit,
		EmailLimit: cfg.AuthRateLimit.LoginEmailLimit,
	}
	registerPolicy := middleware.RateLimitPolicy{
		Name:       "register",
		Window:     cfg.AuthRateLimit.RegisterWindow,
		IPLimit:    cfg.AuthRateLimit.RegisterIPLimit,
		EmailLimit: cfg.AuthRateLimit.RegisterEmailLimit,
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, redisClient))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.RateLimit(loginPolicy, redisClient, logg)).
				Post("/login", controllers.Login(svcs.Accounts, logg))
			r.With(
				middleware.RateLimit(registerPolicy, redisClient, logg),
				middleware.Idempotency(redisClient, logg),
			).Post("/register", controllers.Register(svcs.Accounts, logg))
		})

		// The catalog is browsable without an account.
		r.Get("/courses", controllers.CourseCatalog(svcs.Courses, logg))

		r.Group(func(r chi.Router) {
			r.Use(
				middleware.Auth(cfg.JWT, logg),
				middleware.Idempotency(redisClient, logg),
			)

			r.Get("/me", controllers.Profile(svcs.Accounts, logg))
			r.Get("/me/balance", controllers.Balance(svcs.Ledger, logg))

			r.Post("/quotes/custom-course", controllers.QuoteCustomCourse(svcs.Generator, logg))
			r.Post("/quotes/ai-strategy", controllers.QuoteAIStrategy(svcs.Generator, logg))

			r.Route("/purchases", func(r chi.Router) {
				r.Post("/custom-course", controllers.CreateCustomCourse(svcs.Generator, logg))
				r.Post("/ai-strategy", controllers.CreateAIStrategy(svcs.Generator, logg))
				r.Post("/course", controllers.PurchaseCourse(svcs.Courses, logg))
				r.Get("/", controllers.ListPurchases(svcs.Purchases, logg))
				r.Get("/{id}", controllers.GetPurchase(svcs.Purchases, logg))
				r.Get("/{id}/progress", controllers.PurchaseProgress(svcs.Progress, svcs.Purchases, logg))
			})

			r.Post("/topups", controllers.CreateTopup(svcs.Topups, logg))
			r.Get("/transactions", controllers.Transactions(svcs.History, logg))
		})
	})

	return r
}
