package resultcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/threatcore/analysis-core/internal/model"
)

// RedisResultCache is the distributed alternative to Cache, used when
// multiple orchestrator instances must share result-cache state. It
// satisfies the same Store interface.
type RedisResultCache struct {
	client     *redis.Client
	defaultTTL time.Duration
	keyPrefix  string
}

// RedisConfig configures a RedisResultCache.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	DefaultTTL time.Duration
	KeyPrefix  string
}

// NewRedisResultCache constructs a RedisResultCache from cfg.
func NewRedisResultCache(cfg RedisConfig) *RedisResultCache {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 60 * time.Minute
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "analysis:result:"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisResultCache{client: client, defaultTTL: cfg.DefaultTTL, keyPrefix: cfg.KeyPrefix}
}

func (r *RedisResultCache) fullKey(key string) string {
	return r.keyPrefix + key
}

// Lookup fetches and JSON-decodes the cached result for key, if present.
func (r *RedisResultCache) Lookup(ctx context.Context, key string) (*model.AnalysisResult, bool) {
	raw, err := r.client.Get(ctx, r.fullKey(key)).Bytes()
	if err != nil {
		return nil, false
	}
	var result model.AnalysisResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false
	}
	return &result, true
}

// StoreResult writes result to Redis under key with a best-effort
// highest-confidence guard via a Lua-free read-then-conditionally-write;
// this is advisory under concurrent writers racing the same key, unlike
// the in-memory Cache's mutex-guarded version.
func (r *RedisResultCache) StoreResult(ctx context.Context, key string, result model.AnalysisResult, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	if existing, ok := r.Lookup(ctx, key); ok && existing.ConsensusConfidence > result.ConsensusConfidence {
		return nil
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.fullKey(key), payload, ttl).Err()
}

// Close releases the underlying Redis connection pool.
func (r *RedisResultCache) Close() error {
	return r.client.Close()
}
