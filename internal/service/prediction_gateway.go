package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/livercare-risk-server/internal/domain"
)

// DefaultPredictionTimeout bounds the single external attempt.
const DefaultPredictionTimeout = 5 * time.Second

// Prediction outcomes reported to the observer.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeTimeout  = "timeout"
	OutcomeInvalid  = "invalid"
	OutcomeDisabled = "disabled"
)

// AssessmentObserver receives gateway measurements
type AssessmentObserver interface {
	ObserveAssessment(source domain.PredictionSource)
	ObservePrediction(outcome string, elapsed time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveAssessment(domain.PredictionSource) {}
func (noopObserver) ObservePrediction(string, time.Duration)   {}

// PredictionGateway prefers the external model and falls back to the local scorer
type PredictionGateway struct {
	predictor   domain.Predictor
	scorer      *RiskScorer
	classifier  *RiskClassifier
	recommender *RecommendationEngine
	timeout     time.Duration
	observer    AssessmentObserver
	logger      *logrus.Logger
	now         func() time.Time
}

// GatewayOption is a functional option for PredictionGateway.
type GatewayOption func(*PredictionGateway)

// WithPredictor sets the external model. Without one every assessment uses the scorer.
func WithPredictor(p domain.Predictor) GatewayOption {
	return func(g *PredictionGateway) { g.predictor = p }
}

// WithTimeout overrides DefaultPredictionTimeout.
func WithTimeout(d time.Duration) GatewayOption {
	return func(g *PredictionGateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithObserver sets the metrics sink.
func WithObserver(o AssessmentObserver) GatewayOption {
	return func(g *PredictionGateway) {
		if o != nil {
			g.observer = o
		}
	}
}

// WithClock sets the time source for AssessedAt.
func WithClock(now func() time.Time) GatewayOption {
	return func(g *PredictionGateway) { g.now = now }
}

// NewPredictionGateway creates a gateway around scorer.
func NewPredictionGateway(logger *logrus.Logger, scorer *RiskScorer, opts ...GatewayOption) *PredictionGateway {
	g := &PredictionGateway{
		scorer:      scorer,
		classifier:  NewRiskClassifier(),
		recommender: NewRecommendationEngine(),
		timeout:     DefaultPredictionTimeout,
		observer:    noopObserver{},
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Scorer exposes the fallback scorer, e.g. for score breakdowns.
func (g *PredictionGateway) Scorer() *RiskScorer {
	return g.scorer
}

// AssessRaw validates a loosely typed body and assesses it.
func (g *PredictionGateway) AssessRaw(ctx context.Context, raw map[string]interface{}) (*domain.RiskAssessment, error) {
	input, err := domain.ParsePatientInput(raw)
	if err != nil {
		return nil, err
	}
	return g.Assess(ctx, *input)
}

// Assess makes one attempt at the external model and falls back to the scorer
// on any failure. Errors are returned only for invalid input or a cancelled ctx.
func (g *PredictionGateway) Assess(ctx context.Context, input domain.PatientInput) (*domain.RiskAssessment, error) {
	if err := domain.ValidatePatientInput(input); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		probability float64
		level       domain.RiskLevel
		source      domain.PredictionSource
	)

	prediction, err := g.ModelOnly(ctx, input)
	switch {
	case err == nil:
		probability = prediction.Probability
		level = prediction.RiskLevel
		source = domain.SourceModel
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		probability = g.scorer.Score(input)
		level = g.classifier.Classify(probability).Level
		source = domain.SourceFallback
		if g.predictor != nil {
			g.logger.WithError(err).WithFields(logrus.Fields{
				"source":      source,
				"probability": probability,
			}).Warn("Prediction service failed, using fallback scorer")
		}
	}

	g.observer.ObserveAssessment(source)

	return &domain.RiskAssessment{
		Probability:     probability,
		RiskLevel:       level,
		RiskLabel:       level.Label(),
		Source:          source,
		Recommendations: g.recommender.Recommend(probability, input),
		AssessedAt:      g.now().UTC(),
	}, nil
}

// ModelOnly asks the external model without falling back. The probability is
// rounded and a missing or unknown level is derived from it.
func (g *PredictionGateway) ModelOnly(ctx context.Context, input domain.PatientInput) (*domain.ModelPrediction, error) {
	if g.predictor == nil {
		g.observer.ObservePrediction(OutcomeDisabled, 0)
		return nil, fmt.Errorf("%w: no predictor configured", domain.ErrPredictionUnavailable)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	prediction, err := g.predictor.Predict(callCtx, input)
	elapsed := time.Since(start)

	if err != nil {
		outcome := OutcomeError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			outcome = OutcomeTimeout
		}
		g.observer.ObservePrediction(outcome, elapsed)
		return nil, err
	}

	if err := checkPrediction(prediction); err != nil {
		g.observer.ObservePrediction(OutcomeInvalid, elapsed)
		return nil, err
	}
	g.observer.ObservePrediction(OutcomeSuccess, elapsed)

	result := &domain.ModelPrediction{
		Probability: RoundProbability(prediction.Probability),
		RiskLevel:   prediction.RiskLevel,
	}
	if !result.RiskLevel.IsValid() {
		result.RiskLevel = g.classifier.Classify(result.Probability).Level
	}
	return result, nil
}

func checkPrediction(p *domain.ModelPrediction) error {
	if p == nil {
		return fmt.Errorf("%w: empty prediction", domain.ErrPredictionUnavailable)
	}
	if math.IsNaN(p.Probability) || math.IsInf(p.Probability, 0) {
		return fmt.Errorf("%w: probability is not finite", domain.ErrPredictionUnavailable)
	}
	if p.Probability < 0 || p.Probability > 100 {
		return fmt.Errorf("%w: probability %.2f out of range", domain.ErrPredictionUnavailable, p.Probability)
	}
	return nil
}
