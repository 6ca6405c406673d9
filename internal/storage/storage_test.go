package storage

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/docscan-worker/internal/extract"
	"github.com/adverant/nexus/docscan-worker/internal/result"
)

func TestSanitizeConfidence(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-0.2, 0},
		{0, 0},
		{0.87654, 0.8765},
		{1, 1},
		{1.7, 1},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, sanitizeConfidence(tt.in), 1e-9, "input %v", tt.in)
	}
}

func TestSanitizeJSONForPostgres(t *testing.T) {
	in := []byte(`{"name":"JUAN\u0000 DELA\u0007CRUZ"}`)
	assert.Equal(t, `{"name":"JUAN DELA CRUZ"}`, string(sanitizeJSONForPostgres(in)))

	clean := []byte(`{"gwa":"1.25"}`)
	assert.Equal(t, string(clean), string(sanitizeJSONForPostgres(clean)))
}

func TestStripNulls(t *testing.T) {
	in := []string{"REPUBLIC\x00 OF THE PHILIPPINES", "VIN 1234"}
	out := stripNulls(in)
	assert.Equal(t, []string{"REPUBLIC OF THE PHILIPPINES", "VIN 1234"}, out)
	assert.Equal(t, "REPUBLIC\x00 OF THE PHILIPPINES", in[0], "input must not be modified")
}

func TestContentHash(t *testing.T) {
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		ContentHash(nil))
	assert.Len(t, ContentHash([]byte("scan")), 64)
	assert.NotEqual(t, ContentHash([]byte("a")), ContentHash([]byte("b")))
}

func TestResultKey(t *testing.T) {
	assert.Equal(t, "docscan:result:voters_id:v1:abc", resultKey("voters_id", "v1", "abc"))
}

func TestResultCache_KeyChangesWithTunables(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	retuned := extract.DefaultTunables()
	retuned.CityCutoff = 0.6

	fitted := NewResultCache(client, 0, extract.DefaultTunables().Fingerprint())
	same := NewResultCache(client, 0, extract.DefaultTunables().Fingerprint())
	other := NewResultCache(client, 0, retuned.Fingerprint())

	assert.Equal(t, fitted.key("voters_id", "abc"), same.key("voters_id", "abc"))
	assert.NotEqual(t, fitted.key("voters_id", "abc"), other.key("voters_id", "abc"))
	assert.Contains(t, fitted.key("voters_id", "abc"), extract.DefaultTunables().Fingerprint())
}

func TestResultCache_SkipsFailures(t *testing.T) {
	// Never dialled: failures return before touching Redis.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	cache := NewResultCache(client, 0, "v1")

	err := cache.Set(context.Background(), "abc", result.Envelope{
		Status:    result.StatusError,
		Profile:   "transcript",
		ErrorKind: "INSUFFICIENT_DATA",
	})
	require.NoError(t, err)
}

func TestStorageManager_NoCache(t *testing.T) {
	sm := &StorageManager{}

	env, ok := sm.LookupCached(context.Background(), "transcript", "abc")
	assert.False(t, ok)
	assert.Nil(t, env)
}
