package queue

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
)

const taskTimeout = time.Minute

// Enqueuer is the part of Client the API depends on.
type Enqueuer interface {
	EnqueueUpsertAttachment(ctx context.Context, payload UpsertAttachmentPayload) (*asynq.TaskInfo, error)
	EnqueueDeleteAttachment(ctx context.Context, payload DeleteAttachmentPayload) (*asynq.TaskInfo, error)
}

type Client struct {
	client   *asynq.Client
	queue    string
	maxRetry int
}

func NewClient(redisOpt asynq.RedisClientOpt, queueName string, maxRetry int) *Client {
	return &Client{
		client:   asynq.NewClient(redisOpt),
		queue:    queueName,
		maxRetry: maxRetry,
	}
}

func (c *Client) EnqueueUpsertAttachment(ctx context.Context, payload UpsertAttachmentPayload) (*asynq.TaskInfo, error) {
	task, err := NewUpsertAttachmentTask(payload)
	if err != nil {
		return nil, err
	}
	return c.enqueue(ctx, task)
}

func (c *Client) EnqueueDeleteAttachment(ctx context.Context, payload DeleteAttachmentPayload) (*asynq.TaskInfo, error) {
	task, err := NewDeleteAttachmentTask(payload)
	if err != nil {
		return nil, err
	}
	return c.enqueue(ctx, task)
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task) (*asynq.TaskInfo, error) {
	return c.client.EnqueueContext(
		ctx,
		task,
		asynq.Queue(c.queue),
		asynq.MaxRetry(c.maxRetry),
		asynq.Timeout(taskTimeout),
	)
}

func (c *Client) Close() error {
	return c.client.Close()
}
