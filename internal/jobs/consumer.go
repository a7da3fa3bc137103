package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/avenqor/avenqor-backend/pkg/config"
	"github.com/avenqor/avenqor-backend/pkg/enums"
	"github.com/avenqor/avenqor-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type subscriber interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

// runner executes one generation attempt for a record.
type runner interface {
	Run(ctx context.Context, recordID uuid.UUID) error
	Abandon(ctx context.Context, recordID uuid.UUID, reason string) error
}

// ConsumerParams wires the generation job consumer.
type ConsumerParams struct {
	Config       config.JobsConfig
	Logger       *logger.Logger
	Repo         *Repository
	Subscription subscriber
	Runner       runner
}

// Consumer pulls published jobs and drives the orchestrator. Redelivery is
// safe: finalized jobs and records are acked without a second run, and a
// job that exhausts its attempts fails terminally with the record abandoned.
type Consumer struct {
	logg        *logger.Logger
	repo        *Repository
	sub         subscriber
	runner      runner
	maxAttempts int
}

// NewConsumer validates dependencies and applies config defaults.
func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("job repository is required")
	}
	if params.Subscription == nil {
		return nil, fmt.Errorf("subscription is required")
	}
	if params.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}

	maxAttempts := params.Config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	return &Consumer{
		logg:        params.Logger,
		repo:        params.Repo,
		sub:         params.Subscription,
		runner:      params.Runner,
		maxAttempts: maxAttempts,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.sub.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *gcppubsub.Message) processResult {
	logCtx := c.logg.WithField(ctx, "message_id", msg.ID)

	var payload Payload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to decode job payload", err)
		return processResult{ack: true}
	}
	if payload.RecordID == uuid.Nil {
		c.logg.Error(logCtx, "job payload missing record id", nil)
		return processResult{ack: true}
	}

	logCtx = c.logg.WithRecordID(logCtx, payload.RecordID.String())
	logCtx = c.logg.WithAccountID(logCtx, payload.AccountID.String())

	job, err := c.repo.FindByRecordID(ctx, payload.RecordID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.logg.Warn(logCtx, "no job row for delivered message")
			return processResult{ack: true}
		}
		c.logg.Error(logCtx, "failed to load job row", err)
		return processResult{nack: true}
	}

	switch job.Status {
	case enums.JobStatusCompleted, enums.JobStatusFailed:
		c.logg.Info(logCtx, "job already finalized, acking redelivery")
		return processResult{ack: true}
	}

	if job.Attempts >= c.maxAttempts {
		return c.finalize(logCtx, payload.RecordID, fmt.Sprintf("gave up after %d attempts", job.Attempts))
	}
	if err := c.repo.RecordAttempt(ctx, payload.RecordID); err != nil {
		c.logg.Error(logCtx, "failed to count attempt", err)
		return processResult{nack: true}
	}
	attempt := job.Attempts + 1

	if err := c.runner.Run(ctx, payload.RecordID); err != nil {
		c.logg.Error(c.logg.WithField(logCtx, "attempt", attempt), "generation run failed", err)
		if markErr := c.repo.RecordError(ctx, payload.RecordID, err.Error()); markErr != nil {
			c.logg.Error(logCtx, "failed to store run error", markErr)
		}
		if attempt >= c.maxAttempts {
			return c.finalize(logCtx, payload.RecordID, fmt.Sprintf("run failed on final attempt: %v", err))
		}
		return processResult{nack: true}
	}

	if err := c.repo.MarkCompleted(ctx, payload.RecordID); err != nil {
		// The record is finalized; redelivery will ack on its terminal status.
		c.logg.Error(logCtx, "failed to mark job completed", err)
		return processResult{ack: true}
	}
	return processResult{ack: true}
}

// finalize fails the job for good and abandons its record so the reserved
// tokens flow back.
func (c *Consumer) finalize(ctx context.Context, recordID uuid.UUID, reason string) processResult {
	if err := c.repo.MarkTerminal(ctx, recordID, reason); err != nil {
		c.logg.Error(ctx, "failed to mark job terminal", err)
		return processResult{nack: true}
	}
	if err := c.runner.Abandon(ctx, recordID, reason); err != nil {
		c.logg.Error(ctx, "failed to abandon record", err)
		// Job row is already terminal; redelivery cannot retry the abandon.
		// Surface loudly and ack.
	}
	c.logg.Warn(ctx, "generation job failed terminally: "+reason)
	return processResult{ack: true}
}
