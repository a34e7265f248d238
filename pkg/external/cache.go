package external

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/livercare-risk-server/internal/domain"
)

// PredictionCache stores model answers keyed by PredictionKey.
type PredictionCache interface {
	Get(ctx context.Context, key string) (*domain.ModelPrediction, bool, error)
	Set(ctx context.Context, key string, prediction *domain.ModelPrediction) error
}

// PredictionKey hashes the canonical JSON form of input.
func PredictionKey(input domain.PatientInput) string {
	data, _ := json.Marshal(input)
	hash := sha256.Sum256(data)
	return fmt.Sprintf("prediction:%x", hash[:16])
}

// RedisPredictionCache wraps a Redis client for prediction results
type RedisPredictionCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewRedisPredictionCache connects to Redis and verifies the connection.
func NewRedisPredictionCache(config domain.CacheConfig) (*RedisPredictionCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisPredictionCacheFromClient(client, config.DefaultTTL), nil
}

// NewRedisPredictionCacheFromClient uses an existing client.
func NewRedisPredictionCacheFromClient(client *redis.Client, ttl time.Duration) *RedisPredictionCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisPredictionCache{redis: client, defaultTTL: ttl}
}

type cachedPrediction struct {
	Data      *domain.ModelPrediction `json:"data"`
	CachedAt  time.Time               `json:"cached_at"`
	ExpiresAt time.Time               `json:"expires_at"`
}

// Client returns the underlying Redis client.
func (c *RedisPredictionCache) Client() *redis.Client {
	return c.redis
}

// Get retrieves a cached prediction
func (c *RedisPredictionCache) Get(ctx context.Context, key string) (*domain.ModelPrediction, bool, error) {
	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get prediction cache: %w", err)
	}

	var cached cachedPrediction
	if err := json.Unmarshal([]byte(val), &cached); err != nil || cached.Data == nil {
		// Remove corrupted cache entry
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	return cached.Data, true, nil
}

// Set caches a prediction for the default TTL
func (c *RedisPredictionCache) Set(ctx context.Context, key string, prediction *domain.ModelPrediction) error {
	now := time.Now()
	cached := cachedPrediction{
		Data:      prediction,
		CachedAt:  now,
		ExpiresAt: now.Add(c.defaultTTL),
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction cache data: %w", err)
	}

	return c.redis.Set(ctx, key, data, c.defaultTTL).Err()
}

// Ping checks if Redis connection is alive
func (c *RedisPredictionCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisPredictionCache) Close() error {
	return c.redis.Close()
}

// MemoryPredictionCache keeps predictions in an in-process LRU with expiry.
type MemoryPredictionCache struct {
	lru *expirable.LRU[string, domain.ModelPrediction]
}

// NewMemoryPredictionCache creates a cache holding at most size entries for ttl each.
func NewMemoryPredictionCache(size int, ttl time.Duration) *MemoryPredictionCache {
	if size <= 0 {
		size = 1000
	}
	return &MemoryPredictionCache{
		lru: expirable.NewLRU[string, domain.ModelPrediction](size, nil, ttl),
	}
}

// Get returns a copy of the cached prediction.
func (c *MemoryPredictionCache) Get(_ context.Context, key string) (*domain.ModelPrediction, bool, error) {
	p, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	return &p, true, nil
}

// Set stores a copy of prediction.
func (c *MemoryPredictionCache) Set(_ context.Context, key string, prediction *domain.ModelPrediction) error {
	c.lru.Add(key, *prediction)
	return nil
}

// Len returns the number of live entries.
func (c *MemoryPredictionCache) Len() int {
	return c.lru.Len()
}

// CachedPredictor serves repeated inputs from a PredictionCache.
// Cache failures never fail a prediction.
type CachedPredictor struct {
	next   domain.Predictor
	cache  PredictionCache
	logger *logrus.Logger
}

// NewCachedPredictor wraps next with cache.
func NewCachedPredictor(next domain.Predictor, cache PredictionCache, logger *logrus.Logger) *CachedPredictor {
	return &CachedPredictor{next: next, cache: cache, logger: logger}
}

// Unwrap returns the wrapped predictor.
func (c *CachedPredictor) Unwrap() domain.Predictor {
	return c.next
}

// Predict returns a cached answer or asks next and caches a usable one.
func (c *CachedPredictor) Predict(ctx context.Context, input domain.PatientInput) (*domain.ModelPrediction, error) {
	key := PredictionKey(input)

	cached, found, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.WithError(err).Warn("Prediction cache read failed")
	}
	if found {
		return cached, nil
	}

	prediction, err := c.next.Predict(ctx, input)
	if err != nil {
		return nil, err
	}

	if cacheable(prediction) {
		if err := c.cache.Set(ctx, key, prediction); err != nil {
			c.logger.WithError(err).Warn("Prediction cache write failed")
		}
	}
	return prediction, nil
}

func cacheable(p *domain.ModelPrediction) bool {
	if p == nil || math.IsNaN(p.Probability) {
		return false
	}
	return p.Probability >= 0 && p.Probability <= 100
}
