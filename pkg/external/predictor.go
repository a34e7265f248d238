package external

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/livercare-risk-server/internal/domain"
)

// NewPredictor builds the model client chain for config.Mode:
// client, then circuit breaker, then cache when one is given.
// Mode "none" returns a nil Predictor and every assessment uses the fallback scorer.
func NewPredictor(config domain.PredictionConfig, cache PredictionCache, logger *logrus.Logger) (domain.Predictor, error) {
	var client domain.Predictor

	mode := strings.ToLower(strings.TrimSpace(config.Mode))
	switch mode {
	case "", ModeNone:
		return nil, nil
	case ModeHTTP:
		if config.BaseURL == "" {
			return nil, fmt.Errorf("prediction mode %q requires a base URL", mode)
		}
		client = NewHTTPPredictionClient(HTTPPredictionConfig{
			BaseURL:   config.BaseURL,
			APIKey:    config.APIKey,
			Timeout:   config.Timeout,
			RateLimit: config.RateLimit,
		}, logger)
	case ModeScript:
		if config.ScriptPath == "" {
			return nil, fmt.Errorf("prediction mode %q requires a script path", mode)
		}
		client = NewScriptPredictionClient(config.PythonPath, config.ScriptPath, logger)
	default:
		return nil, fmt.Errorf("unknown prediction mode %q", config.Mode)
	}

	var predictor domain.Predictor = NewResilientPredictor("prediction-"+mode, client, config.Breaker, logger)
	if cache != nil {
		predictor = NewCachedPredictor(predictor, cache, logger)
	}

	logger.WithField("mode", mode).Info("Prediction service configured")
	return predictor, nil
}

// Breaker finds the circuit breaker inside a predictor built by NewPredictor.
func Breaker(p domain.Predictor) (*ResilientPredictor, bool) {
	for p != nil {
		switch v := p.(type) {
		case *ResilientPredictor:
			return v, true
		case interface{ Unwrap() domain.Predictor }:
			p = v.Unwrap()
		default:
			return nil, false
		}
	}
	return nil, false
}
