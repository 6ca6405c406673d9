/**
 * Redis result cache
 *
 * Re-uploading the same scan for the same profile returns the stored envelope
 * without running OCR again. Entries are keyed by profile, the fingerprint of the
 * extraction tunables and the content hash, so retuning never serves stale fields.
 */

package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adverant/nexus/docscan-worker/internal/result"
)

const resultKeyPrefix = "docscan:result:"

// ResultCache stores result envelopes in Redis
type ResultCache struct {
	redis   *redis.Client
	ttl     time.Duration
	variant string
}

// NewResultCache creates a new ResultCache. A zero ttl keeps entries forever.
// variant identifies the tunables the cached envelopes were extracted with.
func NewResultCache(client *redis.Client, ttl time.Duration, variant string) *ResultCache {
	return &ResultCache{redis: client, ttl: ttl, variant: variant}
}

// ContentHash returns the hex sha256 of an upload
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func resultKey(profile, variant, hash string) string {
	return resultKeyPrefix + profile + ":" + variant + ":" + hash
}

func (c *ResultCache) key(profile, hash string) string {
	return resultKey(profile, c.variant, hash)
}

// Get returns the cached envelope, or ok=false on a miss
func (c *ResultCache) Get(ctx context.Context, profile, hash string) (*result.Envelope, bool, error) {
	raw, err := c.redis.Get(ctx, c.key(profile, hash)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached result: %w", err)
	}

	var env result.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// A corrupt entry behaves like a miss and is overwritten on the next Set
		return nil, false, nil
	}
	return &env, true, nil
}

// Set caches an envelope. Only successful extractions are worth caching.
func (c *ResultCache) Set(ctx context.Context, hash string, env result.Envelope) error {
	if !env.OK() {
		return nil
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := c.redis.Set(ctx, c.key(env.Profile, hash), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache result: %w", err)
	}
	return nil
}

// Invalidate drops the cached envelope for one upload
func (c *ResultCache) Invalidate(ctx context.Context, profile, hash string) error {
	return c.redis.Del(ctx, c.key(profile, hash)).Err()
}
