package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livercare-risk-server/internal/domain"
	"github.com/livercare-risk-server/internal/logging"
	"github.com/livercare-risk-server/pkg/external"
)

type stubPredictor struct {
	prediction *domain.ModelPrediction
	err        error
	delay      time.Duration
	calls      int
}

func (s *stubPredictor) Predict(ctx context.Context, _ domain.PatientInput) (*domain.ModelPrediction, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", domain.ErrPredictionUnavailable, ctx.Err())
		}
	}
	return s.prediction, s.err
}

type recordingObserver struct {
	mu       sync.Mutex
	sources  []domain.PredictionSource
	outcomes []string
}

func (r *recordingObserver) ObserveAssessment(source domain.PredictionSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, source)
}

func (r *recordingObserver) ObservePrediction(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func newTestGateway(p domain.Predictor, opts ...GatewayOption) *PredictionGateway {
	opts = append([]GatewayOption{WithPredictor(p)}, opts...)
	return NewPredictionGateway(logging.Discard(), NewRiskScorer(FixedNoise(0.5)), opts...)
}

func TestPredictionGateway_ModelSuccess(t *testing.T) {
	stub := &stubPredictor{prediction: &domain.ModelPrediction{Probability: 71.26, RiskLevel: domain.RiskHigh}}
	observer := &recordingObserver{}
	gateway := newTestGateway(stub, WithObserver(observer))

	// Act
	result, err := gateway.Assess(context.Background(), lowRiskInput())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, domain.SourceModel, result.Source)
	assert.Equal(t, 71.3, result.Probability)
	assert.Equal(t, domain.RiskHigh, result.RiskLevel)
	assert.Equal(t, "High Risk", result.RiskLabel)
	assert.Equal(t, []string{RecConsultImmediately, RecComprehensiveTests}, result.Recommendations)
	assert.Equal(t, 1, stub.calls)
	assert.Equal(t, []domain.PredictionSource{domain.SourceModel}, observer.sources)
	assert.Equal(t, []string{OutcomeSuccess}, observer.outcomes)
}

func TestPredictionGateway_DerivesMissingLabel(t *testing.T) {
	tests := []struct {
		name  string
		level domain.RiskLevel
	}{
		{"missing", ""},
		{"unknown", "severe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubPredictor{prediction: &domain.ModelPrediction{Probability: 45, RiskLevel: tt.level}}
			gateway := newTestGateway(stub)

			result, err := gateway.Assess(context.Background(), lowRiskInput())

			require.NoError(t, err)
			assert.Equal(t, domain.SourceModel, result.Source)
			assert.Equal(t, domain.RiskMedium, result.RiskLevel)
			assert.Equal(t, "Medium Risk", result.RiskLabel)
		})
	}
}

func TestPredictionGateway_FallbackOnFailure(t *testing.T) {
	tests := []struct {
		name    string
		stub    *stubPredictor
		outcome string
	}{
		{"transport error", &stubPredictor{err: fmt.Errorf("%w: connection refused", domain.ErrPredictionUnavailable)}, OutcomeError},
		{"nil prediction", &stubPredictor{}, OutcomeInvalid},
		{"NaN probability", &stubPredictor{prediction: &domain.ModelPrediction{Probability: math.NaN()}}, OutcomeInvalid},
		{"infinite probability", &stubPredictor{prediction: &domain.ModelPrediction{Probability: math.Inf(1)}}, OutcomeInvalid},
		{"above range", &stubPredictor{prediction: &domain.ModelPrediction{Probability: 100.5}}, OutcomeInvalid},
		{"below range", &stubPredictor{prediction: &domain.ModelPrediction{Probability: -0.1}}, OutcomeInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			observer := &recordingObserver{}
			gateway := newTestGateway(tt.stub, WithObserver(observer))

			result, err := gateway.Assess(context.Background(), highRiskInput())

			require.NoError(t, err)
			assert.Equal(t, domain.SourceFallback, result.Source)
			assert.Equal(t, 95.0, result.Probability)
			assert.Equal(t, domain.RiskHigh, result.RiskLevel)
			assert.Len(t, result.Recommendations, 7)
			assert.Equal(t, 1, tt.stub.calls)
			assert.Equal(t, []string{tt.outcome}, observer.outcomes)
		})
	}
}

func TestPredictionGateway_TimeoutFallsBack(t *testing.T) {
	stub := &stubPredictor{
		prediction: &domain.ModelPrediction{Probability: 10},
		delay:      time.Second,
	}
	observer := &recordingObserver{}
	gateway := newTestGateway(stub, WithTimeout(20*time.Millisecond), WithObserver(observer))

	start := time.Now()
	result, err := gateway.Assess(context.Background(), lowRiskInput())

	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, domain.SourceFallback, result.Source)
	assert.Equal(t, 5.0, result.Probability)
	assert.Equal(t, []string{OutcomeTimeout}, observer.outcomes)
}

func TestPredictionGateway_HungScriptFallsBack(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not available on windows")
	}
	script := filepath.Join(t.TempDir(), "predict.sh")
	require.NoError(t, os.WriteFile(script, []byte("cat > /dev/null\nsleep 5 &\nwait\n"), 0o755))

	observer := &recordingObserver{}
	predictor := external.NewScriptPredictionClient("/bin/sh", script, logging.Discard())
	gateway := newTestGateway(predictor, WithTimeout(100*time.Millisecond), WithObserver(observer))

	start := time.Now()
	result, err := gateway.Assess(context.Background(), lowRiskInput())

	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, domain.SourceFallback, result.Source)
	assert.Equal(t, 5.0, result.Probability)
	assert.Equal(t, []string{OutcomeTimeout}, observer.outcomes)
}

func TestPredictionGateway_NoPredictor(t *testing.T) {
	gateway := NewPredictionGateway(logging.Discard(), NewRiskScorer(FixedNoise(0.5)))

	result, err := gateway.Assess(context.Background(), lowRiskInput())

	require.NoError(t, err)
	assert.Equal(t, domain.SourceFallback, result.Source)
	assert.Equal(t, domain.RiskLow, result.RiskLevel)
	assert.Equal(t, []string{RecKeepHealthy}, result.Recommendations)
}

func TestPredictionGateway_FallbackMatchesScorer(t *testing.T) {
	gateway := NewPredictionGateway(logging.Discard(), NewRiskScorer(NewNoiseSource(99)),
		WithPredictor(&stubPredictor{err: domain.ErrPredictionUnavailable}))
	input := domain.PatientInput{Age: 52, Gender: 1, BMI: 27, Alcohol: 12, PhysicalActivity: 3, LiverFunctionTest: 50}
	breakdown := gateway.Scorer().Breakdown(input)

	for i := 0; i < 50; i++ {
		result, err := gateway.Assess(context.Background(), input)
		require.NoError(t, err)
		assert.InDelta(t, float64(breakdown.Base), result.Probability, 2.5)
		assert.Equal(t, LevelFor(result.Probability), result.RiskLevel)
	}
}

func TestPredictionGateway_CancelledContext(t *testing.T) {
	stub := &stubPredictor{prediction: &domain.ModelPrediction{Probability: 10}}
	gateway := newTestGateway(stub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := gateway.Assess(ctx, lowRiskInput())

	assert.Nil(t, result)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, stub.calls)
}

func TestPredictionGateway_AssessRawRejectsBeforeScoring(t *testing.T) {
	stub := &stubPredictor{prediction: &domain.ModelPrediction{Probability: 10}}
	gateway := newTestGateway(stub)

	raw := map[string]interface{}{
		"age": 40, "gender": 1, "bmi": "abc", "alcohol": 0, "smoking": 0, "geneticRisk": 0,
		"physicalActivity": 3, "diabetes": 0, "hypertension": 0, "liverFunctionTest": 30,
	}

	result, err := gateway.AssessRaw(context.Background(), raw)

	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))
	assert.Equal(t, 0, stub.calls)
}

func TestPredictionGateway_AssessRejectsNaN(t *testing.T) {
	stub := &stubPredictor{}
	gateway := newTestGateway(stub)
	input := lowRiskInput()
	input.BMI = math.NaN()

	_, err := gateway.Assess(context.Background(), input)

	assert.True(t, domain.IsValidationError(err))
	assert.Equal(t, 0, stub.calls)
}
