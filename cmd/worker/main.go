/**
 * Document Scan Worker - Main Entry Point
 *
 * Go worker extracting admissions data from scanned documents:
 * - transcript of records -> general weighted average
 * - entrance exam result slip -> exam type, examinee name, score, date taken
 * - voter's ID -> city, VIN, issuing commission, holder name
 *
 * Architecture:
 * - Redis list or asynq consumer for the job queue
 * - preprocessing -> Tesseract OCR -> per-profile extractor
 * - PostgreSQL persistence for jobs and results, Redis result cache
 * - gRPC health service
 */

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/adverant/nexus/docscan-worker/internal/config"
	"github.com/adverant/nexus/docscan-worker/internal/logging"
	"github.com/adverant/nexus/docscan-worker/internal/ocr/tesseract"
	"github.com/adverant/nexus/docscan-worker/internal/processor"
	"github.com/adverant/nexus/docscan-worker/internal/queue"
	"github.com/adverant/nexus/docscan-worker/internal/server"
	"github.com/adverant/nexus/docscan-worker/internal/storage"
)

// statsInterval is how often queue and pool statistics are logged
const statsInterval = time.Minute

// consumer is what both queue backends look like to main
type consumer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	GetStatistics() map[string]interface{}
}

// redisBackend adapts RedisConsumer's context-free lifecycle
type redisBackend struct{ *queue.RedisConsumer }

func (r redisBackend) Start(context.Context) error { return r.RedisConsumer.Start() }
func (r redisBackend) Stop(context.Context) error  { return r.RedisConsumer.Stop() }

func (r redisBackend) GetStatistics() map[string]interface{} {
	counts, err := r.RedisConsumer.GetStats()
	if err != nil {
		return map[string]interface{}{"error": err.Error()}
	}
	stats := make(map[string]interface{}, len(counts))
	for k, v := range counts {
		stats[k] = v
	}
	return stats
}

// logStats reports queue and connection pool statistics until ctx is done
func logStats(ctx context.Context, logger *logging.Logger, c consumer, sm *storage.StorageManager) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			poolStats, err := sm.GetStats(ctx)
			if err != nil {
				logger.Warn("Failed to read storage stats", "error", err)
			}
			logger.Info("Worker stats", "queue", c.GetStatistics(), "storage", poolStats)
		}
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logging.SetDefaultLevel(logging.ParseLevel(cfg.LogLevel))
	logger := logging.NewLogger("Worker")

	tunables, err := config.LoadTunables(cfg.TunablesFile)
	if err != nil {
		log.Fatalf("Failed to load extraction tunables: %v", err)
	}

	logger.Info("Document scan worker starting",
		"env", cfg.AppEnv, "queue", cfg.QueueName, "backend", cfg.QueueBackend,
		"workers", cfg.WorkerConcurrency, "lang", cfg.TesseractLanguage)

	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to parse Redis URL: %v", err)
	}
	redisClient := redis.NewClient(redisOpt)
	defer redisClient.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancel()
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	cancel()

	storageManager, err := storage.NewStorageManager(cfg.DatabaseURL, redisClient, cfg.ResultCacheTTL, tunables.Fingerprint())
	if err != nil {
		log.Fatalf("Failed to initialize storage manager: %v", err)
	}
	logger.Info("Storage manager initialized", "cacheTTL", cfg.ResultCacheTTL, "tunables", tunables.Fingerprint())

	engine := tesseract.New(tesseract.Config{
		Language:       cfg.TesseractLanguage,
		TessdataPrefix: cfg.TessdataPrefix,
	})

	proc, err := processor.NewDocumentProcessor(&processor.ProcessorConfig{
		Pipeline:          processor.NewPipeline(engine, tunables),
		Store:             storageManager,
		MaxFileSize:       cfg.MaxFileSize,
		ProcessingTimeout: cfg.ProcessingTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to initialize document processor: %v", err)
	}

	var queueConsumer consumer
	switch cfg.QueueBackend {
	case config.QueueBackendAsynq:
		c, err := queue.NewConsumer(&queue.ConsumerConfig{
			RedisURL:          cfg.RedisURL,
			QueueName:         cfg.QueueName,
			Concurrency:       cfg.WorkerConcurrency,
			Processor:         proc,
			ProcessingTimeout: cfg.ProcessingTimeout,
		})
		if err != nil {
			log.Fatalf("Failed to initialize asynq consumer: %v", err)
		}
		queueConsumer = c
	default:
		c, err := queue.NewRedisConsumer(&queue.RedisConsumerConfig{
			Client:            redisClient,
			QueueName:         cfg.QueueName,
			Concurrency:       cfg.WorkerConcurrency,
			Processor:         proc,
			ProcessingTimeout: cfg.ProcessingTimeout,
		})
		if err != nil {
			log.Fatalf("Failed to initialize queue consumer: %v", err)
		}
		queueConsumer = redisBackend{c}
	}

	healthServer := server.NewHealthServer(func(ctx context.Context) error {
		if err := storageManager.Ping(ctx); err != nil {
			return err
		}
		return redisClient.Ping(ctx).Err()
	}, 15*time.Second)
	go func() {
		if err := healthServer.Serve(cfg.HealthAddr); err != nil {
			logger.Error("health server error", "error", err)
		}
	}()

	if err := queueConsumer.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start queue consumer: %v", err)
	}

	logger.Info("Worker is READY, waiting for jobs", "healthAddr", cfg.HealthAddr)

	statsCtx, stopStats := context.WithCancel(context.Background())
	go logStats(statsCtx, logger, queueConsumer, storageManager)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Initiating graceful shutdown", "signal", sig)

	stopStats()
	healthServer.Stop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ProcessingTimeout+10*time.Second)
	defer cancelShutdown()
	if err := queueConsumer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping queue consumer", "error", err)
	}

	if err := storageManager.Close(); err != nil {
		logger.Error("Error closing storage manager", "error", err)
	}

	logger.Info("Shutdown complete")
}
