package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ArticleRewriter/internal/domain"
	"ArticleRewriter/internal/ports"
)

const keyPrefix = "rewriter:search:"

// Store is the subset of a key/value backend the cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisStore adapts go-redis to Store.
type RedisStore struct {
	rdb *redis.Client
}

// Connect parses url, creates the client and verifies connectivity.
func Connect(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

// Get returns ("", false, nil) for a missing key.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Set stores value with ttl.
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// SearchCache memoizes non-empty search results per query and count.
// Backend failures are logged and the call falls through to the searcher.
type SearchCache struct {
	next   ports.Searcher
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

var _ ports.Searcher = (*SearchCache)(nil)

// NewSearchCache wraps next with store.
func NewSearchCache(next ports.Searcher, store Store, ttl time.Duration, logger *zap.Logger) *SearchCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &SearchCache{
		next:   next,
		store:  store,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "search_cache")),
	}
}

// Search serves from the cache when possible.
func (c *SearchCache) Search(ctx context.Context, query string, n int) ([]domain.SearchResult, error) {
	key := cacheKey(query, n)
	if raw, ok, err := c.store.Get(ctx, key); err != nil {
		c.logger.Warn("cache read failed", zap.Error(err))
	} else if ok {
		var cached []domain.SearchResult
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			c.logger.Debug("cache hit", zap.String("query", query))
			return cached, nil
		}
	}

	results, err := c.next.Search(ctx, query, n)
	if err != nil || len(results) == 0 {
		return results, err
	}

	payload, err := json.Marshal(results)
	if err != nil {
		return results, nil
	}
	if err := c.store.Set(ctx, key, string(payload), c.ttl); err != nil {
		c.logger.Warn("cache write failed", zap.Error(err))
	}
	return results, nil
}

func cacheKey(query string, n int) string {
	sum := sha1.Sum([]byte(query + "\x00" + strconv.Itoa(n)))
	return keyPrefix + hex.EncodeToString(sum[:])
}
