package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("SERPAPI_API_KEY", "")
	t.Setenv("SEARCH_PROVIDER", "")
	t.Setenv("CACHE_BACKEND", "")
	t.Setenv("RATE_LIMIT_RPS", "")

	cfg := FromEnv()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "duckduckgo", cfg.SearchProvider)
	assert.Equal(t, 60*time.Second, cfg.OperationTimeout)
	assert.Equal(t, "none", cfg.CacheBackend)
	assert.Zero(t, cfg.RateLimitRPS)
	assert.Equal(t, DefaultPipeline(), cfg.Pipeline)
	assert.Equal(t, 8, cfg.Pipeline.MaxSeeds)
	assert.Equal(t, 14, cfg.Pipeline.PageBudget)
	assert.Equal(t, 16, cfg.Pipeline.MaxDocuments)
	assert.False(t, cfg.Pipeline.DedupeSeeds)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("SERPAPI_API_KEY", "key")
	t.Setenv("SEARCH_PROVIDER", "")
	t.Setenv("OPERATION_TIMEOUT", "5s")
	t.Setenv("CACHE_BACKEND", "Redis")
	t.Setenv("DEDUPE_SEEDS", "true")
	t.Setenv("DOCUMENT_FETCH_CONCURRENCY", "not-a-number")

	cfg := FromEnv()
	assert.Equal(t, "serpapi", cfg.SearchProvider)
	assert.Equal(t, 5*time.Second, cfg.OperationTimeout)
	assert.Equal(t, "redis", cfg.CacheBackend)
	assert.True(t, cfg.Pipeline.DedupeSeeds)
	assert.Equal(t, 16, cfg.DocumentFetchConcurrency)
}

func TestLoadConfigFileOverlaysPipeline(t *testing.T) {
	cfg := &Config{Pipeline: DefaultPipeline()}
	err := LoadConfigFile(strings.NewReader("pipeline:\n  max_documents: 4\n  dedupe_seeds: true\n"), cfg)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Pipeline.MaxDocuments)
	assert.True(t, cfg.Pipeline.DedupeSeeds)
	assert.Equal(t, 8, cfg.Pipeline.MaxSeeds)
}

func TestLoadConfigFileEmpty(t *testing.T) {
	cfg := &Config{Pipeline: DefaultPipeline()}
	require.NoError(t, LoadConfigFile(strings.NewReader(""), cfg))
	assert.Equal(t, DefaultPipeline(), cfg.Pipeline)
}

func TestAllowedOrigins(t *testing.T) {
	cfg := &Config{CORSAllowedOrigins: "http://a, http://b ,"}
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.AllowedOrigins())
}
