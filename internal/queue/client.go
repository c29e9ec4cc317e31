package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/fiscalassistant/internal/config"
)

const (
	ocrMaxRetry = 3
	ocrTimeout  = 10 * time.Minute
)

// Client publishes document jobs to the asynq queue backed by Redis.
type Client struct {
	client *asynq.Client
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{client: asynq.NewClient(RedisOpt(cfg))}
}

func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueDocumentOCR schedules extraction for one document. The task id is
// derived from the document id, so a second enqueue while the first job is
// still queued or running is accepted without creating a duplicate.
func (c *Client) EnqueueDocumentOCR(ctx context.Context, payload DocumentOCRPayload) error {
	if payload.DocumentID == "" {
		return fmt.Errorf("enqueue %s: empty document id", TypeDocumentOCR)
	}
	err := c.enqueue(ctx, TypeDocumentOCR, payload,
		asynq.TaskID(ocrTaskID(payload.DocumentID)),
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(ocrMaxRetry),
		asynq.Timeout(ocrTimeout),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func ocrTaskID(documentID string) string {
	return TypeDocumentOCR + ":" + documentID
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload any, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", taskType, err)
	}
	if _, err := c.client.EnqueueContext(ctx, asynq.NewTask(taskType, data), opts...); err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
