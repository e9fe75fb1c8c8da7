// Package resultcache implements the TTL-bounded fingerprint -> prior
// AnalysisResult mapping (C2). The in-memory Cache shards storage across
// an LRU per shard so the read-mostly lookup path never blocks a writer
// longer than a single entry removal (spec §5).
package resultcache

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/threatcore/analysis-core/internal/model"
)

// Store is the interface both the in-memory and Redis-backed caches
// satisfy.
type Store interface {
	Lookup(ctx context.Context, key string) (*model.AnalysisResult, bool)
	StoreResult(ctx context.Context, key string, result model.AnalysisResult, ttl time.Duration) error
}

const shardCount = 16
const sweepEvery = 100

type entry struct {
	result  model.AnalysisResult
	expires time.Time
}

type shard struct {
	mu      sync.Mutex
	lru     *lru.Cache[string, *entry]
	inserts int
}

// Cache is the default in-memory, sharded, TTL-aware result cache.
type Cache struct {
	shards    [shardCount]*shard
	ttl       time.Duration
	perShardN int
}

// Config controls cache construction.
type Config struct {
	// DefaultTTL is used when StoreResult is called with ttl <= 0.
	DefaultTTL time.Duration
	// MaxEntriesPerShard bounds each shard's LRU; 0 uses a sensible
	// default.
	MaxEntriesPerShard int
}

// New constructs a Cache.
func New(cfg Config) *Cache {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 60 * time.Minute
	}
	if cfg.MaxEntriesPerShard <= 0 {
		cfg.MaxEntriesPerShard = 2048
	}
	c := &Cache{ttl: cfg.DefaultTTL, perShardN: cfg.MaxEntriesPerShard}
	for i := range c.shards {
		l, _ := lru.New[string, *entry](cfg.MaxEntriesPerShard)
		c.shards[i] = &shard{lru: l}
	}
	return c
}

func shardFor(shards [shardCount]*shard, key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return shards[h.Sum32()%shardCount]
}

// Lookup returns the cached AnalysisResult for key if present and not
// expired; expired entries are removed on read.
func (c *Cache) Lookup(_ context.Context, key string) (*model.AnalysisResult, bool) {
	s := shardFor(c.shards, key)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lru.Get(key)
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expires) {
		s.lru.Remove(key)
		return nil, false
	}
	clone := e.result.Clone()
	return &clone, true
}

// StoreResult inserts result under key with ttl (or the cache default).
// Concurrent stores for the same key keep the entry with the highest
// ConsensusConfidence (spec §4.2/§5).
func (c *Cache) StoreResult(_ context.Context, key string, result model.AnalysisResult, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	s := shardFor(c.shards, key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.lru.Get(key); ok {
		if time.Now().Before(existing.expires) && existing.result.ConsensusConfidence > result.ConsensusConfidence {
			return nil
		}
	}

	s.lru.Add(key, &entry{result: result.Clone(), expires: time.Now().Add(ttl)})

	s.inserts++
	if s.inserts%sweepEvery == 0 {
		c.sweepShard(s)
	}
	return nil
}

// sweepShard discards expired entries; called opportunistically every
// sweepEvery inserts per shard (spec §4.2).
func (c *Cache) sweepShard(s *shard) {
	now := time.Now()
	for _, key := range s.lru.Keys() {
		if e, ok := s.lru.Peek(key); ok && now.After(e.expires) {
			s.lru.Remove(key)
		}
	}
}

// Size returns the total number of entries across all shards, including
// any not-yet-swept expired entries.
func (c *Cache) Size() int {
	total := 0
	for _, s := range c.shards {
		s.mu.Lock()
		total += s.lru.Len()
		s.mu.Unlock()
	}
	return total
}
