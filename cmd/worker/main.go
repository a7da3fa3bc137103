package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/avenqor/avenqor-backend/internal/generation"
	"github.com/avenqor/avenqor-backend/internal/jobs"
	"github.com/avenqor/avenqor-backend/internal/ledger"
	"github.com/avenqor/avenqor-backend/internal/notifications"
	"github.com/avenqor/avenqor-backend/internal/purchases"
	"github.com/avenqor/avenqor-backend/pkg/config"
	"github.com/avenqor/avenqor-backend/pkg/db"
	"github.com/avenqor/avenqor-backend/pkg/logger"
	"github.com/avenqor/avenqor-backend/pkg/metrics"
	"github.com/avenqor/avenqor-backend/pkg/migrate"
	"github.com/avenqor/avenqor-backend/pkg/pubsub"
	"github.com/avenqor/avenqor-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "worker",
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

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	orchestrator, jobRepo, err := buildOrchestrator(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire orchestrator", err)
		os.Exit(1)
	}

	publisher, err := jobs.NewPublisher(jobs.PublisherParams{
		Config:    cfg.Jobs,
		Logger:    logg,
		DB:        dbClient,
		Repo:      jobRepo,
		Publisher: jobs.NewGCPPublisher(pubsubClient.GenerationPublisher()),
		Abandoner: orchestrator,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create job publisher", err)
		os.Exit(1)
	}

	consumer, err := jobs.NewConsumer(jobs.ConsumerParams{
		Config:       cfg.Jobs,
		Logger:       logg,
		Repo:         jobRepo,
		Subscription: pubsubClient.GenerationSubscription(),
		Runner:       orchestrator,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create job consumer", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})
	logg.Info(ctx, "starting generation worker")

	errCh := make(chan error, 2)
	go func() { errCh <- publisher.Run(ctx) }()
	go func() { errCh <- consumer.Run(ctx) }()

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	stop()
	logg.Info(ctx, "worker shutting down gracefully")
}

func buildOrchestrator(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (*generation.Orchestrator, *jobs.Repository, error) {
	ledgerRepo := ledger.NewRepository(dbClient.DB())
	ledgerSvc, err := ledger.NewService(ledgerRepo)
	if err != nil {
		return nil, nil, err
	}

	purchaseSvc, err := purchases.NewService(purchases.NewRepository(dbClient.DB()))
	if err != nil {
		return nil, nil, err
	}

	progress, err := generation.NewProgressStore(redisClient, cfg.Jobs.ProgressTTL)
	if err != nil {
		return nil, nil, err
	}

	sender, err := notifications.NewLogSender(cfg.Mail, logg)
	if err != nil {
		return nil, nil, err
	}

	orchestrator, err := generation.NewOrchestrator(generation.OrchestratorParams{
		DB:        dbClient,
		Records:   purchaseSvc,
		Ledger:    ledgerSvc,
		Accounts:  ledgerRepo,
		Progress:  progress,
		Generator: newTemplateGenerator(),
		Receipts:  sender,
		Delivery:  sender,
		Renderer:  notifications.NewTextReceiptRenderer(),
		Logger:    logg,
		Metrics:   metrics.NewGenerationMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return nil, nil, err
	}

	return orchestrator, jobs.NewRepository(dbClient.DB()), nil
}
