package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/docscan-worker/internal/extract"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/admissions")
	for _, key := range []string{"REDIS_URL", "QUEUE_BACKEND", "QUEUE_NAME", "WORKER_CONCURRENCY",
		"MAX_FILE_SIZE", "PROCESSING_TIMEOUT", "RESULT_CACHE_TTL", "APP_ENV"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, QueueBackendRedis, cfg.QueueBackend)
	assert.Equal(t, "docscan:jobs", cfg.QueueName)
	assert.Equal(t, 4, cfg.WorkerConcurrency)
	assert.Equal(t, int64(20971520), cfg.MaxFileSize)
	assert.Equal(t, 2*time.Minute, cfg.ProcessingTimeout)
	assert.Equal(t, 24*time.Hour, cfg.ResultCacheTTL)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/admissions")
	t.Setenv("QUEUE_BACKEND", "ASYNQ")
	t.Setenv("WORKER_CONCURRENCY", "8")
	t.Setenv("PROCESSING_TIMEOUT", "5000")
	t.Setenv("RESULT_CACHE_TTL", "0")
	t.Setenv("APP_ENV", "Production")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, QueueBackendAsynq, cfg.QueueBackend)
	assert.Equal(t, 8, cfg.WorkerConcurrency)
	assert.Equal(t, 5*time.Second, cfg.ProcessingTimeout)
	assert.Equal(t, time.Duration(0), cfg.ResultCacheTTL)
	assert.True(t, cfg.IsProduction())
}

func TestLoadConfig_RequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := LoadConfig()
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			RedisURL:          "redis://localhost:6379",
			DatabaseURL:       "postgres://localhost/admissions",
			QueueBackend:      QueueBackendRedis,
			QueueName:         "docscan:jobs",
			WorkerConcurrency: 4,
			MaxFileSize:       1 << 20,
			ProcessingTimeout: time.Minute,
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"backend", func(c *Config) { c.QueueBackend = "kafka" }},
		{"queue name", func(c *Config) { c.QueueName = "" }},
		{"concurrency", func(c *Config) { c.WorkerConcurrency = 0 }},
		{"file size", func(c *Config) { c.MaxFileSize = 10 }},
		{"timeout", func(c *Config) { c.ProcessingTimeout = time.Millisecond }},
		{"cache ttl", func(c *Config) { c.ResultCacheTTL = -time.Second }},
		{"redis", func(c *Config) { c.RedisURL = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadTunables_Defaults(t *testing.T) {
	tun, err := LoadTunables("")
	require.NoError(t, err)
	assert.Equal(t, extract.DefaultTunables(), tun)
}

func TestLoadTunables_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tunables.yaml")
	require.NoError(t, os.WriteFile(path, []byte("city_cutoff: 0.6\nvalue_window: 8\n"), 0o644))
	t.Setenv("DOCSCAN_VALUE_WINDOW", "12")

	tun, err := LoadTunables(path)
	require.NoError(t, err)

	assert.Equal(t, 0.6, tun.CityCutoff)
	assert.Equal(t, 12, tun.ValueWindow, "environment overrides the file")
	assert.Equal(t, 0.7, tun.SemesterCutoff)
}

func TestLoadTunables_Errors(t *testing.T) {
	_, err := LoadTunables(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("phrase_cutoff: 1.5\n"), 0o644))
	_, err = LoadTunables(path)
	assert.ErrorContains(t, err, "phrase_cutoff")
}
