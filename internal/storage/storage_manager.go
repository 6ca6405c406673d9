/**
 * Storage Manager for the document scan worker
 *
 * Coordinates PostgreSQL (job status and extraction records) and the Redis
 * result cache. Postgres is the source of truth; the cache is best effort.
 */

package storage

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adverant/nexus/docscan-worker/internal/result"
)

// StorageManager coordinates PostgreSQL and the Redis result cache
type StorageManager struct {
	postgres *PostgresClient
	cache    *ResultCache
}

// StoreInput is everything persisted for one processed document
type StoreInput struct {
	JobID         string
	ContentHash   string
	Envelope      result.Envelope
	Lines         []string
	OCREngine     string
	OCRConfidence float64
}

// NewStorageManager creates a new storage manager. redisClient may be nil to
// run without a result cache. cacheVariant is the fingerprint of the extraction
// tunables in use.
func NewStorageManager(postgresURL string, redisClient *redis.Client, cacheTTL time.Duration, cacheVariant string) (*StorageManager, error) {
	postgres, err := NewPostgresClient(postgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := postgres.EnsureSchema(ctx); err != nil {
		postgres.Close()
		return nil, err
	}

	sm := &StorageManager{postgres: postgres}
	if redisClient != nil {
		sm.cache = NewResultCache(redisClient, cacheTTL, cacheVariant)
	}
	return sm, nil
}

// StoreResult writes the extraction record, then caches successful envelopes.
// A failed extraction drops any earlier cached envelope for the same upload.
// A cache failure does not fail the store.
func (sm *StorageManager) StoreResult(ctx context.Context, input *StoreInput) (string, error) {
	if input == nil {
		return "", fmt.Errorf("input is required")
	}

	rec := &ExtractionRecord{
		JobID:         input.JobID,
		Profile:       input.Envelope.Profile,
		ContentHash:   input.ContentHash,
		Status:        input.Envelope.Status,
		Fields:        input.Envelope.Fields,
		ErrorKind:     input.Envelope.ErrorKind,
		Message:       input.Envelope.Message,
		Lines:         input.Lines,
		OCREngine:     input.OCREngine,
		OCRConfidence: input.OCRConfidence,
	}

	id, err := sm.postgres.StoreExtraction(ctx, rec)
	if err != nil {
		return "", err
	}

	if sm.cache != nil && input.ContentHash != "" {
		if input.Envelope.OK() {
			_ = sm.cache.Set(ctx, input.ContentHash, input.Envelope)
		} else {
			_ = sm.cache.Invalidate(ctx, input.Envelope.Profile, input.ContentHash)
		}
	}

	return id, nil
}

// LookupCached returns a cached envelope for an upload already seen
func (sm *StorageManager) LookupCached(ctx context.Context, profile, hash string) (*result.Envelope, bool) {
	if sm.cache == nil || hash == "" {
		return nil, false
	}
	env, ok, err := sm.cache.Get(ctx, profile, hash)
	if err != nil {
		return nil, false
	}
	return env, ok
}

// GetLatestExtraction returns the newest extraction stored for a job
func (sm *StorageManager) GetLatestExtraction(ctx context.Context, jobID string) (*ExtractionRecord, error) {
	return sm.postgres.GetLatestExtraction(ctx, jobID)
}

// UpdateJobStatus updates job status in PostgreSQL
func (sm *StorageManager) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	return sm.postgres.UpdateJobStatus(ctx, update)
}

// GetJobByID retrieves job by ID
func (sm *StorageManager) GetJobByID(ctx context.Context, jobID string) (map[string]interface{}, error) {
	return sm.postgres.GetJobByID(ctx, jobID)
}

// Ping checks PostgreSQL connectivity
func (sm *StorageManager) Ping(ctx context.Context) error {
	return sm.postgres.Ping(ctx)
}

// GetStats returns connection pool statistics
func (sm *StorageManager) GetStats(ctx context.Context) (map[string]interface{}, error) {
	pgStats := sm.postgres.GetStats()

	return map[string]interface{}{
		"postgres": map[string]interface{}{
			"max_open_connections": pgStats.MaxOpenConnections,
			"open_connections":     pgStats.OpenConnections,
			"in_use":               pgStats.InUse,
			"idle":                 pgStats.Idle,
			"wait_count":           pgStats.WaitCount,
			"wait_duration":        pgStats.WaitDuration.String(),
		},
		"cache_enabled": sm.cache != nil,
	}, nil
}

// Close closes the PostgreSQL pool. The Redis client is owned by the caller.
func (sm *StorageManager) Close() error {
	if sm.postgres != nil {
		if err := sm.postgres.Close(); err != nil {
			return fmt.Errorf("failed to close PostgreSQL: %w", err)
		}
	}
	return nil
}

var (
	nullEscapePattern    = regexp.MustCompile(`\\u0000`)
	controlEscapePattern = regexp.MustCompile(`\\u00[01][0-9a-fA-F]`)
)

// sanitizeJSONForPostgres removes escape sequences PostgreSQL JSONB rejects.
// \u0000 is dropped; other control character escapes become a space.
func sanitizeJSONForPostgres(jsonBytes []byte) []byte {
	cleaned := nullEscapePattern.ReplaceAll(jsonBytes, []byte{})
	return controlEscapePattern.ReplaceAll(cleaned, []byte(" "))
}

// stripNulls removes NUL bytes, which TEXT columns cannot hold. OCR output on
// damaged scans occasionally contains them.
func stripNulls(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.ReplaceAll(l, "\x00", "")
	}
	return out
}
