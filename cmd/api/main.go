package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/avenqor/avenqor-backend/api/routes"
	"github.com/avenqor/avenqor-backend/internal/accounts"
	"github.com/avenqor/avenqor-backend/internal/courses"
	"github.com/avenqor/avenqor-backend/internal/generation"
	"github.com/avenqor/avenqor-backend/internal/history"
	"github.com/avenqor/avenqor-backend/internal/jobs"
	"github.com/avenqor/avenqor-backend/internal/ledger"
	"github.com/avenqor/avenqor-backend/internal/notifications"
	"github.com/avenqor/avenqor-backend/internal/purchases"
	"github.com/avenqor/avenqor-backend/internal/topups"
	"github.com/avenqor/avenqor-backend/pkg/config"
	"github.com/avenqor/avenqor-backend/pkg/db"
	"github.com/avenqor/avenqor-backend/pkg/logger"
	"github.com/avenqor/avenqor-backend/pkg/migrate"
	"github.com/avenqor/avenqor-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	svcs, err := buildServices(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, svcs),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (routes.Services, error) {
	ledgerRepo := ledger.NewRepository(dbClient.DB())
	ledgerSvc, err := ledger.NewService(ledgerRepo)
	if err != nil {
		return routes.Services{}, err
	}

	purchaseSvc, err := purchases.NewService(purchases.NewRepository(dbClient.DB()))
	if err != nil {
		return routes.Services{}, err
	}

	accountSvc, err := accounts.NewService(accounts.ServiceParams{
		DB:       dbClient,
		Repo:     accounts.NewRepository(dbClient.DB()),
		Ledger:   ledgerSvc,
		JWT:      cfg.JWT,
		Password: cfg.Password,
		Tokens:   cfg.Tokens,
		Logger:   logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	queue, err := jobs.NewQueue(jobs.NewRepository(dbClient.DB()))
	if err != nil {
		return routes.Services{}, err
	}

	progress, err := generation.NewProgressStore(redisClient, cfg.Jobs.ProgressTTL)
	if err != nil {
		return routes.Services{}, err
	}

	generationSvc, err := generation.NewService(dbClient, purchaseSvc, ledgerSvc, queue, progress, logg)
	if err != nil {
		return routes.Services{}, err
	}

	sender, err := notifications.NewLogSender(cfg.Mail, logg)
	if err != nil {
		return routes.Services{}, err
	}

	courseSvc, err := courses.NewService(dbClient, courses.NewCatalog(), purchaseSvc, ledgerSvc, ledgerRepo, sender, logg)
	if err != nil {
		return routes.Services{}, err
	}

	topupSvc, err := topups.NewService(dbClient, purchaseSvc, ledgerSvc, logg)
	if err != nil {
		return routes.Services{}, err
	}

	historySvc, err := history.NewService(history.NewRepository(dbClient.DB()))
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Accounts:  accountSvc,
		Ledger:    ledgerSvc,
		Generator: generationSvc,
		Purchases: purchaseSvc,
		Courses:   courseSvc,
		Topups:    topupSvc,
		History:   historySvc,
		Progress:  progress,
	}, nil
}
