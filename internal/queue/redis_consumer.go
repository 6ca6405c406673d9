/**
 * Direct Redis Queue Consumer for the document scan worker
 *
 * Compatible with the portal's TypeScript RedisQueue implementation.
 * Uses simple Redis LIST operations:
 *   <queue>             LIST of job IDs (LPUSH by producers, BRPOP here)
 *   <queue>:data        HASH jobID -> RedisJobData
 *   <queue>:processing  SET
 *   <queue>:completed   SET, results in <queue>:results
 *   <queue>:failed      SET, errors in <queue>:errors
 *   <queue>:events      pub/sub channel
 */

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/adverant/nexus/docscan-worker/internal/errors"
	"github.com/adverant/nexus/docscan-worker/internal/processor"
)

const defaultMaxRetries = 3

var errNoJobs = errors.New("no jobs available")

// RedisJobData represents a job from the Redis queue
type RedisJobData struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Payload    JobPayload `json:"payload"`
	CreatedAt  time.Time  `json:"createdAt"`
	Attempts   int        `json:"attempts"`
	MaxRetries int        `json:"maxRetries"`
}

// RedisConsumer handles job consumption from Redis queue
type RedisConsumer struct {
	client  *redis.Client
	handler *jobHandler
	config  *RedisConsumerConfig
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// RedisConsumerConfig holds consumer configuration
type RedisConsumerConfig struct {
	Client            *redis.Client // shared with the result cache
	QueueName         string
	Concurrency       int
	Processor         processor.DocumentProcessorInterface
	ProcessingTimeout time.Duration
}

// NewRedisConsumer creates a new Redis-based queue consumer
func NewRedisConsumer(cfg *RedisConsumerConfig) (*RedisConsumer, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("Redis client is required")
	}

	if cfg.QueueName == "" {
		cfg.QueueName = "docscan:jobs"
	}

	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	consumerCtx, cancel := context.WithCancel(context.Background())

	return &RedisConsumer{
		client:  cfg.Client,
		handler: newJobHandler(cfg.Processor, cfg.ProcessingTimeout),
		config:  cfg,
		ctx:     consumerCtx,
		cancel:  cancel,
	}, nil
}

// Start begins processing jobs from the queue
func (c *RedisConsumer) Start() error {
	log.Printf("Starting Redis queue consumer (concurrency=%d, queue=%s)...",
		c.config.Concurrency, c.config.QueueName)

	for i := 0; i < c.config.Concurrency; i++ {
		c.wg.Add(1)
		go c.worker(i)
	}

	log.Println("Queue consumer started successfully")
	return nil
}

// Stop waits for in-flight jobs to finish. The Redis client is left open for
// its owner to close.
func (c *RedisConsumer) Stop() error {
	log.Println("Stopping queue consumer...")
	c.cancel()
	c.wg.Wait()
	return nil
}

func (c *RedisConsumer) key(suffix string) string {
	return redisKey(c.config.QueueName, suffix)
}

func redisKey(queue, suffix string) string {
	return fmt.Sprintf("%s:%s", queue, suffix)
}

// worker is a goroutine that processes jobs
func (c *RedisConsumer) worker(id int) {
	defer c.wg.Done()
	log.Printf("Worker %d started", id)

	for {
		select {
		case <-c.ctx.Done():
			log.Printf("Worker %d stopping", id)
			return
		default:
			if err := c.processNextJob(); err != nil {
				if !errors.Is(err, errNoJobs) && c.ctx.Err() == nil {
					log.Printf("Worker %d error: %v", id, err)
					time.Sleep(1 * time.Second)
				}
			}
		}
	}
}

// processNextJob fetches and processes the next job from the queue
func (c *RedisConsumer) processNextJob() error {
	result, err := c.client.BRPop(c.ctx, 5*time.Second, c.config.QueueName).Result()
	if err != nil {
		if err == redis.Nil || c.ctx.Err() != nil {
			return errNoJobs
		}
		return fmt.Errorf("failed to fetch job: %w", err)
	}

	if len(result) < 2 {
		return fmt.Errorf("invalid job result")
	}

	queueID := result[1]

	jobData, err := c.client.HGet(c.ctx, c.key("data"), queueID).Result()
	if err != nil {
		return fmt.Errorf("failed to get job data: %w", err)
	}

	var job RedisJobData
	if err := json.Unmarshal([]byte(jobData), &job); err != nil {
		c.markFailed(queueID, failureSummary(err, 0))
		return fmt.Errorf("failed to unmarshal job %s: %w", queueID, err)
	}
	if job.MaxRetries <= 0 {
		job.MaxRetries = defaultMaxRetries
	}

	c.markProcessing(job.Payload.JobID)

	// Jobs run to completion on shutdown; only the fetch is interruptible.
	res, err := c.handler.handle(context.Background(), &job.Payload)
	if err != nil {
		job.Attempts++
		if apperrors.IsRetryable(err) && job.Attempts < job.MaxRetries {
			updatedData, _ := json.Marshal(job)
			c.client.HSet(c.ctx, c.key("data"), job.ID, updatedData)
			c.client.LPush(c.ctx, c.config.QueueName, job.ID)
			log.Printf("Job %s re-queued for retry (attempt %d/%d)", job.Payload.JobID, job.Attempts, job.MaxRetries)
			return nil
		}
		if apperrors.IsRetryable(err) {
			c.handler.fail(context.Background(), job.Payload.JobID, err)
		}
		c.markFailed(job.Payload.JobID, failureSummary(err, job.Attempts))
		return nil
	}

	if res.Failed() {
		c.markFailed(job.Payload.JobID, res.Envelope)
	} else {
		c.markCompleted(job.Payload.JobID, res.Envelope)
	}
	log.Printf("Job %s finished: %s", job.Payload.JobID, describe(res))
	return nil
}

func (c *RedisConsumer) markProcessing(jobID string) {
	c.client.SAdd(c.ctx, c.key("processing"), jobID)
	c.publish(jobID, StatusProcessing)
}

func (c *RedisConsumer) markCompleted(jobID string, result interface{}) {
	ctx := context.Background()
	c.client.SRem(ctx, c.key("processing"), jobID)
	c.client.SAdd(ctx, c.key("completed"), jobID)
	if data, err := json.Marshal(result); err == nil {
		c.client.HSet(ctx, c.key("results"), jobID, data)
	}
	c.publish(jobID, StatusCompleted)
}

func (c *RedisConsumer) markFailed(jobID string, detail interface{}) {
	ctx := context.Background()
	c.client.SRem(ctx, c.key("processing"), jobID)
	c.client.SAdd(ctx, c.key("failed"), jobID)
	if data, err := json.Marshal(detail); err == nil {
		c.client.HSet(ctx, c.key("errors"), jobID, data)
	}
	c.publish(jobID, StatusFailed)
}

// publish sends a status event for WebSocket streaming
func (c *RedisConsumer) publish(jobID, status string) {
	eventData, _ := json.Marshal(jobEvent(jobID, status, time.Now()))
	c.client.Publish(context.Background(), c.key("events"), eventData)
}

func jobEvent(jobID, status string, at time.Time) map[string]interface{} {
	return map[string]interface{}{
		"event":     fmt.Sprintf("job:%s", status),
		"jobId":     jobID,
		"timestamp": at.Format(time.RFC3339),
	}
}

// EnqueueRedis stores the job data and pushes its ID onto queue
func EnqueueRedis(ctx context.Context, client *redis.Client, queue string, payload *JobPayload) error {
	if err := payload.Validate(); err != nil {
		return err
	}

	job := RedisJobData{
		ID:         payload.JobID,
		Type:       TaskTypeExtractDocument,
		Payload:    *payload,
		CreatedAt:  time.Now().UTC(),
		MaxRetries: defaultMaxRetries,
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	_, err = client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, redisKey(queue, "data"), job.ID, data)
		pipe.LPush(ctx, queue, job.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}
	return nil
}

// GetStats returns queue statistics
func (c *RedisConsumer) GetStats() (map[string]int64, error) {
	ctx := context.Background()

	waiting, err := c.client.LLen(ctx, c.config.QueueName).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read queue length: %w", err)
	}
	processing, _ := c.client.SCard(ctx, c.key("processing")).Result()
	completed, _ := c.client.SCard(ctx, c.key("completed")).Result()
	failed, _ := c.client.SCard(ctx, c.key("failed")).Result()

	return map[string]int64{
		"waiting":    waiting,
		"processing": processing,
		"completed":  completed,
		"failed":     failed,
	}, nil
}
