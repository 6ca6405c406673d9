/**
 * Asynq Queue Consumer for the document scan worker
 *
 * Alternative backend to the direct Redis list queue. Tasks of type
 * extract-document carry a JSON JobPayload.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	apperrors "github.com/adverant/nexus/docscan-worker/internal/errors"
	"github.com/adverant/nexus/docscan-worker/internal/processor"
)

// Consumer handles job consumption from an asynq queue
type Consumer struct {
	inspector *asynq.Inspector
	server    *asynq.Server
	mux       *asynq.ServeMux
	handler   *jobHandler
	config    *ConsumerConfig
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	MaxRetries        int
	Processor         processor.DocumentProcessorInterface
	ProcessingTimeout time.Duration
}

// NewConsumer creates a new queue consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}

	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}

	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	inspector := asynq.NewInspector(redisOpt)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			RetryDelayFunc: retryDelay,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("Task processing error: type=%s, error=%v", task.Type(), err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	consumer := &Consumer{
		inspector: inspector,
		server:    server,
		mux:       mux,
		handler:   newJobHandler(cfg.Processor, cfg.ProcessingTimeout),
		config:    cfg,
	}

	mux.HandleFunc(TaskTypeExtractDocument, consumer.handleExtractDocument)

	return consumer, nil
}

// retryDelay is exponential backoff: 5s, 10s, 20s ... capped at 60s
func retryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	delay := time.Duration(5*(1<<uint(n))) * time.Second
	if delay > 60*time.Second || delay <= 0 {
		delay = 60 * time.Second
	}
	return delay
}

// Start starts the queue consumer
func (c *Consumer) Start(ctx context.Context) error {
	log.Printf("Starting asynq queue consumer (concurrency=%d, queue=%s)...",
		c.config.Concurrency, c.config.QueueName)

	if err := c.server.Start(c.mux); err != nil {
		return fmt.Errorf("failed to start asynq server: %w", err)
	}
	return nil
}

// Stop stops the queue consumer gracefully
func (c *Consumer) Stop(ctx context.Context) error {
	log.Printf("Stopping queue consumer...")

	c.server.Shutdown()

	if err := c.inspector.Close(); err != nil {
		return fmt.Errorf("failed to close inspector: %w", err)
	}

	log.Printf("Queue consumer stopped")
	return nil
}

// NewExtractTask builds an extract-document task
func NewExtractTask(payload *JobPayload) (*asynq.Task, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TaskTypeExtractDocument, data), nil
}

// handleExtractDocument processes a document extraction task
func (c *Consumer) handleExtractDocument(ctx context.Context, task *asynq.Task) error {
	var payload JobPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal job data: %v: %w", err, asynq.SkipRetry)
	}

	_, err := c.handler.handle(ctx, &payload)
	if err == nil {
		return nil
	}

	if !apperrors.IsRetryable(err) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if ok && retried >= maxRetry {
		c.handler.fail(ctx, payload.JobID, err)
	}
	return err
}

// GetStatistics returns consumer settings and, once the queue exists, its task counts
func (c *Consumer) GetStatistics() map[string]interface{} {
	stats := map[string]interface{}{
		"concurrency": c.config.Concurrency,
		"queue":       c.config.QueueName,
		"maxRetries":  c.config.MaxRetries,
	}

	info, err := c.inspector.GetQueueInfo(c.config.QueueName)
	if err != nil {
		// The queue is created lazily by the first enqueue
		return stats
	}
	stats["pending"] = info.Pending
	stats["active"] = info.Active
	stats["retry"] = info.Retry
	stats["archived"] = info.Archived
	stats["processed"] = info.Processed
	stats["failed"] = info.Failed
	return stats
}

// EnqueueAsynq submits one job without running a consumer
func EnqueueAsynq(ctx context.Context, redisURL, queueName string, payload *JobPayload) error {
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	task, err := NewExtractTask(payload)
	if err != nil {
		return err
	}

	client := asynq.NewClient(redisOpt)
	defer client.Close()

	if _, err := client.EnqueueContext(ctx, task,
		asynq.Queue(queueName),
		asynq.MaxRetry(defaultMaxRetries),
		asynq.TaskID(payload.JobID),
	); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", payload.JobID, err)
	}
	return nil
}
