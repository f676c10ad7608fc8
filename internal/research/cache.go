package research

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/eternisai/agentic-research/internal/config"
	"github.com/eternisai/agentic-research/internal/logger"
	"github.com/eternisai/agentic-research/internal/metrics"
	"github.com/eternisai/agentic-research/models"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "agentic:prefix:"

// Prefix is the shared search+crawl output reused by report and archive operations.
type Prefix struct {
	Results []models.SearchResult `json:"results"`
	Crawl   *models.CrawlResult   `json:"crawl"`
}

// PrefixCache stores prefixes for a short time. Lookups that fail are misses.
type PrefixCache interface {
	Get(ctx context.Context, key string) (*Prefix, bool)
	Set(ctx context.Context, key string, prefix *Prefix)
}

// PrefixKey derives the cache key from the normalized prompt and the seed dedupe flag.
func PrefixKey(prompt string, dedupeSeeds bool) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(prompt)), " ")
	h := sha256.Sum256([]byte(normalized + "|" + strconv.FormatBool(dedupeSeeds)))
	return keyPrefix + hex.EncodeToString(h[:])
}

// NoopCache never stores anything.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (*Prefix, bool) { return nil, false }
func (NoopCache) Set(context.Context, string, *Prefix)        {}

// MemoryCache is an in-process LRU with TTL.
type MemoryCache struct {
	mu   sync.Mutex
	cap  int
	ttl  time.Duration
	list *list.List // front = most recent
	m    map[string]*list.Element
	now  func() time.Time
}

type memoryEntry struct {
	key    string
	prefix *Prefix
	exp    time.Time
}

func NewMemoryCache(capacity int, ttl time.Duration) *MemoryCache {
	if capacity <= 0 {
		capacity = 256
	}
	return &MemoryCache{
		cap:  capacity,
		ttl:  ttl,
		list: list.New(),
		m:    make(map[string]*list.Element, capacity),
		now:  time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*Prefix, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.m[key]; ok {
		ent := el.Value.(memoryEntry)
		if ent.exp.After(c.now()) {
			c.list.MoveToFront(el)
			return ent.prefix, true
		}
		// expired
		c.list.Remove(el)
		delete(c.m, key)
	}
	return nil, false
}

func (c *MemoryCache) Set(_ context.Context, key string, prefix *Prefix) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ent := memoryEntry{key: key, prefix: prefix, exp: c.now().Add(c.ttl)}
	if el, ok := c.m[key]; ok {
		el.Value = ent
		c.list.MoveToFront(el)
		return
	}
	c.m[key] = c.list.PushFront(ent)
	if c.list.Len() > c.cap {
		if lru := c.list.Back(); lru != nil {
			delete(c.m, lru.Value.(memoryEntry).key)
			c.list.Remove(lru)
		}
	}
}

// RedisCache stores prefixes as JSON with an expiry.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

// NewRedisCache connects to redisURL and pings it once.
func NewRedisCache(ctx context.Context, redisURL string, ttl time.Duration, logger *logger.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRedisCacheWithClient(client, ttl, logger), nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration, logger *logger.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, logger: logger.WithComponent("prefix_cache")}
}

func (r *RedisCache) Get(ctx context.Context, key string) (*Prefix, bool) {
	b, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.WithContext(ctx).Warn("prefix cache read failed", slog.String("error", err.Error()))
		}
		return nil, false
	}
	var p Prefix
	if err := json.Unmarshal(b, &p); err != nil || p.Crawl == nil {
		return nil, false
	}
	return &p, true
}

func (r *RedisCache) Set(ctx context.Context, key string, prefix *Prefix) {
	b, err := json.Marshal(prefix)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, key, b, r.ttl).Err(); err != nil {
		r.logger.WithContext(ctx).Warn("prefix cache write failed", slog.String("error", err.Error()))
	}
}

// Close releases the redis connection pool.
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// instrumentedCache counts hits and misses.
type instrumentedCache struct {
	PrefixCache
}

func (c instrumentedCache) Get(ctx context.Context, key string) (*Prefix, bool) {
	p, ok := c.PrefixCache.Get(ctx, key)
	if ok {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}
	return p, ok
}

// NewPrefixCache builds the cache selected by cfg.CacheBackend: "none" (default), "memory" or "redis".
// Without a cache every operation re-runs search and crawl.
func NewPrefixCache(ctx context.Context, cfg *config.Config, logger *logger.Logger) (PrefixCache, error) {
	switch cfg.CacheBackend {
	case "", "none":
		return NoopCache{}, nil
	case "memory":
		return NewMemoryCache(cfg.CacheMaxEntries, cfg.CacheTTL), nil
	case "redis":
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required for the redis cache backend")
		}
		return NewRedisCache(ctx, cfg.RedisURL, cfg.CacheTTL, logger)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}
