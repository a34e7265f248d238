package external

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livercare-risk-server/internal/domain"
)

func TestPredictionKey(t *testing.T) {
	a := sampleInput()
	b := sampleInput()

	assert.Equal(t, PredictionKey(a), PredictionKey(b))
	assert.Contains(t, PredictionKey(a), "prediction:")

	b.Age = 56
	assert.NotEqual(t, PredictionKey(a), PredictionKey(b))
}

func TestRedisPredictionCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cache, err := NewRedisPredictionCache(domain.CacheConfig{
		RedisURL:   "redis://" + mr.Addr(),
		DefaultTTL: time.Hour,
	})
	require.NoError(t, err)
	defer cache.Close()
	ctx := context.Background()
	key := PredictionKey(sampleInput())

	t.Run("miss", func(t *testing.T) {
		_, found, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("hit", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, key, &domain.ModelPrediction{Probability: 58.4, RiskLevel: domain.RiskMedium}))

		got, found, err := cache.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 58.4, got.Probability)
		assert.Equal(t, domain.RiskMedium, got.RiskLevel)
	})

	t.Run("expired", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, key, &domain.ModelPrediction{Probability: 10}))
		mr.FastForward(2 * time.Hour)

		_, found, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("corrupted entry is removed", func(t *testing.T) {
		require.NoError(t, mr.Set(key, "not json"))

		_, found, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, found)
		assert.False(t, mr.Exists(key))
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, cache.Ping(ctx))
	})
}

func TestNewRedisPredictionCache_BadURL(t *testing.T) {
	_, err := NewRedisPredictionCache(domain.CacheConfig{RedisURL: "://nope"})
	assert.Error(t, err)
}

func TestRedisPredictionCache_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	cache := NewRedisPredictionCacheFromClient(client, time.Minute)
	mr.Close()

	_, found, err := cache.Get(context.Background(), "prediction:x")

	assert.Error(t, err)
	assert.False(t, found)
}

func TestMemoryPredictionCache(t *testing.T) {
	cache := NewMemoryPredictionCache(2, time.Hour)
	ctx := context.Background()

	original := &domain.ModelPrediction{Probability: 20}
	require.NoError(t, cache.Set(ctx, "a", original))
	original.Probability = 99

	got, found, err := cache.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 20.0, got.Probability, "cache holds a copy")

	require.NoError(t, cache.Set(ctx, "b", &domain.ModelPrediction{Probability: 30}))
	require.NoError(t, cache.Set(ctx, "c", &domain.ModelPrediction{Probability: 40}))
	assert.Equal(t, 2, cache.Len())

	_, found, _ = cache.Get(ctx, "a")
	assert.False(t, found, "least recently used entry is evicted")
}

func TestCachedPredictor(t *testing.T) {
	ctx := context.Background()

	t.Run("repeated input served from cache", func(t *testing.T) {
		stub := &stubPredictor{prediction: &domain.ModelPrediction{Probability: 47.5, RiskLevel: domain.RiskMedium}}
		p := NewCachedPredictor(stub, NewMemoryPredictionCache(10, time.Hour), testLogger())

		first, err := p.Predict(ctx, sampleInput())
		require.NoError(t, err)
		second, err := p.Predict(ctx, sampleInput())
		require.NoError(t, err)

		assert.Equal(t, 1, stub.calls)
		assert.Equal(t, first.Probability, second.Probability)
	})

	t.Run("failures are not cached", func(t *testing.T) {
		stub := &stubPredictor{err: domain.ErrPredictionUnavailable}
		p := NewCachedPredictor(stub, NewMemoryPredictionCache(10, time.Hour), testLogger())

		for i := 0; i < 2; i++ {
			_, err := p.Predict(ctx, sampleInput())
			assert.True(t, errors.Is(err, domain.ErrPredictionUnavailable))
		}
		assert.Equal(t, 2, stub.calls)
	})

	t.Run("out of range answers are not cached", func(t *testing.T) {
		for _, probability := range []float64{150, -1, math.NaN()} {
			stub := &stubPredictor{prediction: &domain.ModelPrediction{Probability: probability}}
			cache := NewMemoryPredictionCache(10, time.Hour)
			p := NewCachedPredictor(stub, cache, testLogger())

			_, err := p.Predict(ctx, sampleInput())
			require.NoError(t, err)
			assert.Zero(t, cache.Len())
		}
	})
}
