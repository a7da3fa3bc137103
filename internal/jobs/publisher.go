package jobs

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/avenqor/avenqor-backend/pkg/config"
	"github.com/avenqor/avenqor-backend/pkg/db/models"
	"github.com/avenqor/avenqor-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 3
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// abandoner finalizes the purchase record behind a job the queue gave up on.
type abandoner interface {
	Abandon(ctx context.Context, recordID uuid.UUID, reason string) error
}

// PublisherParams wires the outbox publisher loop.
type PublisherParams struct {
	Config    config.JobsConfig
	Logger    *logger.Logger
	DB        dbClient
	Repo      *Repository
	Publisher publisher
	Abandoner abandoner
}

// Publisher relays pending job rows to the generation topic. Rows that
// exhaust their publish attempts fail terminally and their records are
// abandoned so the reservation flows back.
type Publisher struct {
	cfg          config.JobsConfig
	logg         *logger.Logger
	db           dbClient
	repo         *Repository
	pub          publisher
	abandon      abandoner
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

// NewPublisher validates dependencies and applies config defaults.
func NewPublisher(params PublisherParams) (*Publisher, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("database client is required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("job repository is required")
	}
	if params.Publisher == nil {
		return nil, fmt.Errorf("topic publisher is required")
	}
	if params.Abandoner == nil {
		return nil, fmt.Errorf("abandoner is required")
	}

	batch := params.Config.PublishBatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	interval := params.Config.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	maxAttempts := params.Config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	return &Publisher{
		cfg:          params.Config,
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repo,
		pub:          params.Publisher,
		abandon:      params.Abandoner,
		batchSize:    batch,
		maxAttempts:  maxAttempts,
		pollInterval: interval,
	}, nil
}

// Run polls for pending jobs until the context is canceled.
func (p *Publisher) Run(ctx context.Context) error {
	if err := pingDependency(ctx, p.logg, "database", p.db.Ping); err != nil {
		return err
	}

	backoff := p.pollInterval
	for {
		select {
		case <-ctx.Done():
			p.logg.Info(ctx, "job publisher context canceled")
			return ctx.Err()
		default:
		}

		processed, err := p.processBatch(ctx)
		if err != nil {
			p.logg.Error(ctx, "job publisher batch error", err)
			backoff = nextBackoff(backoff, p.pollInterval, maxBackoff)
			if err := sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}

		backoff = p.pollInterval
		if processed {
			continue
		}
		if err := sleep(ctx, withJitter(p.pollInterval)); err != nil {
			return err
		}
	}
}

// processBatch publishes one batch of pending rows. Marks happen in the
// same transaction as the fetch; abandons run after it commits so the
// refund transaction never nests inside the batch one.
func (p *Publisher) processBatch(ctx context.Context) (bool, error) {
	processed := false
	var abandoned []uuid.UUID

	err := p.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := p.repo.FetchPendingForPublish(tx, p.batchSize, p.maxAttempts)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		processed = true
		for _, job := range rows {
			logCtx := p.jobContext(ctx, job)

			if err := p.publish(ctx, job); err != nil {
				p.logg.Warn(p.logg.WithField(logCtx, "error", err.Error()), "job publish failed")

				if job.Attempts+1 >= p.maxAttempts {
					terminalErr := fmt.Errorf("max publish attempts reached: %w", err)
					if markErr := p.repo.MarkTerminalTx(tx, job.ID, terminalErr); markErr != nil {
						return fmt.Errorf("mark terminal %s: %w", job.ID, markErr)
					}
					abandoned = append(abandoned, job.RecordID)
					continue
				}
				if markErr := p.repo.MarkFailedTx(tx, job.ID, err); markErr != nil {
					return fmt.Errorf("mark failure %s: %w", job.ID, markErr)
				}
				continue
			}

			if markErr := p.repo.MarkPublishedTx(tx, job.ID); markErr != nil {
				return fmt.Errorf("mark published %s: %w", job.ID, markErr)
			}
			p.logg.Info(logCtx, "generation job published")
		}
		return nil
	})
	if err != nil {
		return processed, err
	}

	for _, recordID := range abandoned {
		if err := p.abandon.Abandon(ctx, recordID, "generation job could not be published"); err != nil {
			p.logg.Error(p.logg.WithRecordID(ctx, recordID.String()), "abandoning record failed", err)
		}
	}
	return processed, nil
}

func (p *Publisher) publish(ctx context.Context, job models.GenerationJob) error {
	msg := &gcppubsub.Message{
		Data: job.Payload,
		Attributes: map[string]string{
			"record_id":  job.RecordID.String(),
			"account_id": job.AccountID.String(),
			"kind":       job.Kind.String(),
			"created_at": job.CreatedAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()

	result := p.pub.Publish(publishCtx, msg)
	if result == nil {
		return fmt.Errorf("publisher returned nil result")
	}
	_, err := result.Get(publishCtx)
	return err
}

func (p *Publisher) jobContext(ctx context.Context, job models.GenerationJob) context.Context {
	return p.logg.WithFields(ctx, map[string]any{
		"job_id":    job.ID.String(),
		"record_id": job.RecordID.String(),
		"kind":      job.Kind.String(),
		"attempts":  job.Attempts,
	})
}

// NewGCPPublisher adapts a Pub/Sub v2 publisher to the loop's interface.
func NewGCPPublisher(p *gcppubsub.Publisher) *GCPPublisher {
	if p == nil {
		return nil
	}
	return &GCPPublisher{Publisher: p}
}

// GCPPublisher wraps *pubsub.Publisher so tests can substitute fakes.
type GCPPublisher struct {
	*gcppubsub.Publisher
}

func (p *GCPPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return p.Publisher.Publish(ctx, msg)
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(jitterSource.Int63n(int64(jitterWindow)))
}
