package external

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/livercare-risk-server/internal/domain"
)

// Breaker defaults used when the configuration leaves a field at zero.
const (
	defaultBreakerMaxRequests  = 3
	defaultBreakerInterval     = 30 * time.Second
	defaultBreakerTimeout      = 60 * time.Second
	defaultBreakerMinRequests  = 3
	defaultBreakerFailureRatio = 0.6
)

// ResilientPredictor wraps a prediction client with a circuit breaker.
// While the breaker is open calls fail fast with ErrPredictionUnavailable.
type ResilientPredictor struct {
	next    domain.Predictor
	breaker *gobreaker.CircuitBreaker
}

// NewResilientPredictor creates a breaker named name around next.
func NewResilientPredictor(name string, next domain.Predictor, config domain.CircuitBreakerConfig, logger *logrus.Logger) *ResilientPredictor {
	if config.MaxRequests == 0 {
		config.MaxRequests = defaultBreakerMaxRequests
	}
	if config.Interval == 0 {
		config.Interval = defaultBreakerInterval
	}
	if config.Timeout == 0 {
		config.Timeout = defaultBreakerTimeout
	}
	if config.MinRequests == 0 {
		config.MinRequests = defaultBreakerMinRequests
	}
	if config.FailureRatio <= 0 {
		config.FailureRatio = defaultBreakerFailureRatio
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker changed state")
		},
		// A caller giving up is not a fault of the model.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &ResilientPredictor{next: next, breaker: breaker}
}

// Predict calls the wrapped client through the breaker.
func (r *ResilientPredictor) Predict(ctx context.Context, input domain.PatientInput) (*domain.ModelPrediction, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.next.Predict(ctx, input)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s breaker: %v", domain.ErrPredictionUnavailable, r.breaker.Name(), err)
		}
		return nil, err
	}

	prediction, ok := result.(*domain.ModelPrediction)
	if !ok || prediction == nil {
		return nil, fmt.Errorf("%w: empty prediction", domain.ErrPredictionUnavailable)
	}
	return prediction, nil
}

// State returns the current breaker state.
func (r *ResilientPredictor) State() gobreaker.State {
	return r.breaker.State()
}
