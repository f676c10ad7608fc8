package research

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/eternisai/agentic-research/internal/config"
	"github.com/eternisai/agentic-research/internal/logger"
	"github.com/eternisai/agentic-research/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePrefix() *Prefix {
	return &Prefix{
		Results: searchResults(2),
		Crawl:   &models.CrawlResult{Pages: crawledPages(1), Documents: documents(2)},
	}
}

func TestPrefixKey(t *testing.T) {
	a := PrefixKey("  AI   Agents like Manus ", false)
	b := PrefixKey("ai agents like manus", false)
	assert.Equal(t, a, b)
	assert.NotEqual(t, b, PrefixKey("ai agents like manus", true))
	assert.NotEqual(t, b, PrefixKey("ai agents", false))
	assert.Regexp(t, `^agentic:prefix:[0-9a-f]{64}$`, b)
}

func TestMemoryCacheTTL(t *testing.T) {
	c := NewMemoryCache(4, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set(context.Background(), "k", samplePrefix())
	got, ok := c.Get(context.Background(), "k")
	require.True(t, ok)
	assert.Len(t, got.Results, 2)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewMemoryCache(2, time.Minute)
	ctx := context.Background()

	c.Set(ctx, "a", samplePrefix())
	c.Set(ctx, "b", samplePrefix())
	_, _ = c.Get(ctx, "a")
	c.Set(ctx, "c", samplePrefix())

	_, ok := c.Get(ctx, "b")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "a")
	assert.True(t, ok)
	_, ok = c.Get(ctx, "c")
	assert.True(t, ok)
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewRedisCacheWithClient(client, time.Minute, logger.Discard())
	ctx := context.Background()

	_, ok := c.Get(ctx, "missing")
	assert.False(t, ok)

	c.Set(ctx, "k", samplePrefix())
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, samplePrefix(), got)
	assert.Equal(t, time.Minute, mr.TTL("k"))

	mr.FastForward(2 * time.Minute)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedisCacheErrorsAreMisses(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()

	c := NewRedisCacheWithClient(client, time.Minute, logger.Discard())
	mr.Close()

	c.Set(context.Background(), "k", samplePrefix())
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestNewRedisCacheFromURL(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := NewRedisCache(context.Background(), "redis://"+mr.Addr(), time.Minute, logger.Discard())
	require.NoError(t, err)
	defer c.Close()

	_, err = NewRedisCache(context.Background(), "not a url", time.Minute, logger.Discard())
	assert.Error(t, err)
}

func TestReportAndArchiveSharePrefix(t *testing.T) {
	f := newFixture(10, 5, 3)
	f.cache = NewMemoryCache(8, time.Minute)
	pipeline := f.pipeline()

	orchestrator := NewOrchestrator(pipeline, f.synthesizer, logger.Discard())
	archiver := NewArchiver(pipeline, f.fetcher, 4, logger.Discard())

	resp, err := orchestrator.Research(context.Background(), "ai agents like manus")
	require.NoError(t, err)
	archive, err := archiver.Archive(context.Background(), "AI agents  like manus")
	require.NoError(t, err)

	assert.Equal(t, int32(1), f.searcher.calls.Load())
	assert.Equal(t, int32(1), f.crawler.calls.Load())
	assert.Len(t, resp.Documents, 3)
	assert.Equal(t, 3, archive.Attempted)
	assert.Equal(t, int32(3), f.fetcher.calls.Load())
}

func TestDefaultConfigReRunsPrefixPerOperation(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "")
	cfg := config.FromEnv()

	f := newFixture(10, 5, 3)
	var err error
	f.cache, err = NewPrefixCache(context.Background(), cfg, logger.Discard())
	require.NoError(t, err)
	pipeline := f.pipeline()

	orchestrator := NewOrchestrator(pipeline, f.synthesizer, logger.Discard())
	archiver := NewArchiver(pipeline, f.fetcher, 4, logger.Discard())

	_, err = orchestrator.Research(context.Background(), "AI agents like Manus")
	require.NoError(t, err)
	_, err = archiver.Archive(context.Background(), "ai agents   like manus")
	require.NoError(t, err)

	assert.Equal(t, int32(2), f.searcher.calls.Load())
	assert.Equal(t, int32(2), f.crawler.calls.Load())
	assert.Equal(t, []string{"AI agents like Manus", "ai agents   like manus"}, f.searcher.queries)
}

func TestFailedPrefixIsNotCached(t *testing.T) {
	f := newFixture(10, 5, 3)
	f.cache = NewMemoryCache(8, time.Minute)
	f.synthesizer.err = nil
	f.crawler.err = assert.AnError
	pipeline := f.pipeline()

	_, err := pipeline.Prefix(context.Background(), "ai agents like manus", nil)
	require.Error(t, err)

	f.crawler.err = nil
	_, err = pipeline.Prefix(context.Background(), "ai agents like manus", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.searcher.calls.Load())
}

func TestNewPrefixCache(t *testing.T) {
	ctx := context.Background()

	c, err := NewPrefixCache(ctx, &config.Config{CacheBackend: "memory", CacheTTL: time.Minute}, logger.Discard())
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)

	c, err = NewPrefixCache(ctx, &config.Config{CacheBackend: "none"}, logger.Discard())
	require.NoError(t, err)
	assert.IsType(t, NoopCache{}, c)

	c, err = NewPrefixCache(ctx, &config.Config{}, logger.Discard())
	require.NoError(t, err)
	assert.IsType(t, NoopCache{}, c)

	_, err = NewPrefixCache(ctx, &config.Config{CacheBackend: "redis"}, logger.Discard())
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	c, err = NewPrefixCache(ctx, &config.Config{CacheBackend: "redis", RedisURL: "redis://" + mr.Addr(), CacheTTL: time.Minute}, logger.Discard())
	require.NoError(t, err)
	assert.IsType(t, &RedisCache{}, c)
	_ = c.(*RedisCache).Close()

	_, err = NewPrefixCache(ctx, &config.Config{CacheBackend: "memcached"}, logger.Discard())
	assert.Error(t, err)
}
