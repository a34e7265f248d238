package external

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livercare-risk-server/internal/domain"
)

type stubPredictor struct {
	calls      int
	err        error
	prediction *domain.ModelPrediction
}

func (s *stubPredictor) Predict(_ context.Context, _ domain.PatientInput) (*domain.ModelPrediction, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.prediction, nil
}

func breakerConfig() domain.CircuitBreakerConfig {
	return domain.CircuitBreakerConfig{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  2,
		FailureRatio: 0.5,
	}
}

func TestResilientPredictor_PassesThrough(t *testing.T) {
	stub := &stubPredictor{prediction: &domain.ModelPrediction{Probability: 33.3, RiskLevel: domain.RiskMedium}}
	p := NewResilientPredictor("test", stub, breakerConfig(), testLogger())

	prediction, err := p.Predict(context.Background(), sampleInput())

	require.NoError(t, err)
	assert.Equal(t, 33.3, prediction.Probability)
	assert.Equal(t, gobreaker.StateClosed, p.State())
}

func TestResilientPredictor_OpensAfterFailures(t *testing.T) {
	stub := &stubPredictor{err: errors.New("connection refused")}
	p := NewResilientPredictor("test", stub, breakerConfig(), testLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := p.Predict(ctx, sampleInput())
		require.Error(t, err)
		assert.False(t, errors.Is(err, domain.ErrPredictionUnavailable), "underlying error is passed through")
	}

	// Act
	_, err := p.Predict(ctx, sampleInput())

	// Assert
	assert.True(t, errors.Is(err, domain.ErrPredictionUnavailable))
	assert.Equal(t, 2, stub.calls, "open breaker does not call the client")
	assert.Equal(t, gobreaker.StateOpen, p.State())
}

func TestResilientPredictor_CancellationDoesNotTrip(t *testing.T) {
	stub := &stubPredictor{err: context.Canceled}
	p := NewResilientPredictor("test", stub, breakerConfig(), testLogger())

	for i := 0; i < 5; i++ {
		_, err := p.Predict(context.Background(), sampleInput())
		require.Error(t, err)
	}

	assert.Equal(t, 5, stub.calls)
	assert.Equal(t, gobreaker.StateClosed, p.State())
}

func TestResilientPredictor_NilPrediction(t *testing.T) {
	p := NewResilientPredictor("test", &stubPredictor{}, breakerConfig(), testLogger())

	_, err := p.Predict(context.Background(), sampleInput())

	assert.True(t, errors.Is(err, domain.ErrPredictionUnavailable))
}
