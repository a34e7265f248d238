package external

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/livercare-risk-server/internal/domain"
)

// HTTPPredictionConfig represents configuration for the HTTP model client
type HTTPPredictionConfig struct {
	BaseURL   string        `json:"base_url"`
	APIKey    string        `json:"api_key"`
	Timeout   time.Duration `json:"timeout"`
	RateLimit float64       `json:"rate_limit"` // requests per second
}

// HTTPPredictionClient calls a model served over HTTP at {base_url}/predict
type HTTPPredictionClient struct {
	client    *resty.Client
	rateLimit *rate.Limiter
	logger    *logrus.Logger
}

// NewHTTPPredictionClient creates a new HTTP prediction client
func NewHTTPPredictionClient(config HTTPPredictionConfig, logger *logrus.Logger) *HTTPPredictionClient {
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 10
	}

	// The gateway makes exactly one attempt per assessment.
	client := resty.New().
		SetBaseURL(strings.TrimRight(config.BaseURL, "/")).
		SetTimeout(config.Timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if config.APIKey != "" {
		client.SetAuthToken(config.APIKey)
	}

	return &HTTPPredictionClient{
		client:    client,
		rateLimit: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		logger:    logger,
	}
}

// Predict posts the ten patient fields and parses the model's answer.
func (c *HTTPPredictionClient) Predict(ctx context.Context, input domain.PatientInput) (*domain.ModelPrediction, error) {
	if err := c.rateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit wait failed: %w", domain.ErrPredictionUnavailable, err)
	}

	var body PredictionResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(input).
		SetResult(&body).
		SetError(&body).
		Post("/predict")
	if err != nil {
		return nil, fmt.Errorf("%w: calling prediction service: %w", domain.ErrPredictionUnavailable, err)
	}

	if resp.IsError() {
		msg := body.Error
		if msg == "" {
			msg = resp.Status()
		}
		c.logger.WithFields(logrus.Fields{
			"status_code": resp.StatusCode(),
			"error":       msg,
		}).Debug("Prediction service returned an error")
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrPredictionUnavailable, resp.StatusCode(), msg)
	}

	return body.prediction()
}
