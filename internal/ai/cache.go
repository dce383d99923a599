package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/rueidis"
	"github.com/rs/zerolog"

	"bookkeeping-go/internal/metrics"
)

// Cache stores opaque values with a TTL. ok is false on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type RedisCache struct {
	client rueidis.Client
}

func NewRedisCache(ctx context.Context, addr string) (*RedisCache, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("redis: failed to create client: %w", err)
	}
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: failed to ping server: %w", err)
	}
	return &RedisCache{client: client}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	resp := r.client.Do(ctx, r.client.B().Get().Key(key).Build())
	if err := resp.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	data, err := resp.AsBytes()
	if err != nil {
		return nil, false, fmt.Errorf("redis get: failed to read response: %w", err)
	}
	return data, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := r.client.B().Set().Key(key).Value(rueidis.BinaryString(value)).Ex(ttl).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisCache) Close() {
	r.client.Close()
}

// CachedEmbedder memoizes embeddings. Cache failures are logged and bypassed;
// they never fail an Embed call.
type CachedEmbedder struct {
	next    Embedder
	cache   Cache
	prefix  string
	ttl     time.Duration
	metrics metrics.Collector
	log     zerolog.Logger
}

func NewCachedEmbedder(next Embedder, cache Cache, namespace string, ttl time.Duration, m metrics.Collector, log zerolog.Logger) *CachedEmbedder {
	if m == nil {
		m = metrics.NoOpCollector{}
	}
	return &CachedEmbedder{
		next:    next,
		cache:   cache,
		prefix:  "embed:" + namespace + ":",
		ttl:     ttl,
		metrics: m,
		log:     log.With().Str("component", "embed_cache").Logger(),
	}
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.prefix + hex.EncodeToString(sum[:])
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	data, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.log.Warn().Err(err).Msg("embedding cache read failed")
	}
	if ok {
		var vec []float32
		if err := json.Unmarshal(data, &vec); err == nil && len(vec) > 0 {
			c.metrics.RecordEmbeddingCache(true)
			return vec, nil
		}
		c.log.Warn().Str("key", key).Msg("discarding corrupt cached embedding")
	}
	c.metrics.RecordEmbeddingCache(false)

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(vec); err == nil {
		if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
			c.log.Warn().Err(err).Msg("embedding cache write failed")
		}
	}
	return vec, nil
}
