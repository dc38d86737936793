// Package taskqueue runs the background maintenance work over asynq:
// the liveness sweep that marks silent racks offline and the retention
// prune that drops old readings.
package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"growrack/internal/logging"
)

const (
	TypeLivenessSweep  = "rack:liveness_sweep"
	TypeRetentionPrune = "reading:retention_prune"
)

// LivenessSweepPayload carries the silence threshold for one sweep.
type LivenessSweepPayload struct {
	OfflineAfterSecs int `json:"offline_after_secs"`
}

// RetentionPrunePayload carries the retention horizon for one prune.
type RetentionPrunePayload struct {
	RetentionDays int `json:"retention_days"`
}

// Client enqueues maintenance tasks.
type Client struct {
	asynq *asynq.Client
	log   zerolog.Logger
}

// NewClient connects the task producer to Redis.
func NewClient(opt asynq.RedisClientOpt) *Client {
	return &Client{
		asynq: asynq.NewClient(opt),
		log:   logging.WithComponent("taskqueue"),
	}
}

func (c *Client) Close() error {
	return c.asynq.Close()
}

// EnqueueLivenessSweep queues one pass over the rack liveness table.
func (c *Client) EnqueueLivenessSweep(ctx context.Context, offlineAfter time.Duration) error {
	payload, err := json.Marshal(LivenessSweepPayload{OfflineAfterSecs: int(offlineAfter.Seconds())})
	if err != nil {
		return fmt.Errorf("marshal sweep payload: %w", err)
	}

	task := asynq.NewTask(TypeLivenessSweep, payload)
	info, err := c.asynq.EnqueueContext(ctx, task, asynq.MaxRetry(3), asynq.Timeout(30*time.Second))
	if err != nil {
		return fmt.Errorf("enqueue liveness sweep: %w", err)
	}
	c.log.Debug().Str("task_id", info.ID).Msg("liveness sweep enqueued")
	return nil
}

// EnqueueRetentionPrune queues one reading-retention pass.
func (c *Client) EnqueueRetentionPrune(ctx context.Context, retentionDays int) error {
	payload, err := json.Marshal(RetentionPrunePayload{RetentionDays: retentionDays})
	if err != nil {
		return fmt.Errorf("marshal prune payload: %w", err)
	}

	task := asynq.NewTask(TypeRetentionPrune, payload)
	info, err := c.asynq.EnqueueContext(ctx, task, asynq.MaxRetry(3), asynq.Timeout(5*time.Minute))
	if err != nil {
		return fmt.Errorf("enqueue retention prune: %w", err)
	}
	c.log.Debug().Str("task_id", info.ID).Msg("retention prune enqueued")
	return nil
}
