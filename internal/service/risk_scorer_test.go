package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livercare-risk-server/internal/domain"
)

// highRiskInput triggers every rule at its highest tier.
func highRiskInput() domain.PatientInput {
	return domain.PatientInput{
		Age: 65, Gender: 1, BMI: 32, Alcohol: 25, Smoking: 1, GeneticRisk: 1,
		PhysicalActivity: 1, Diabetes: 1, Hypertension: 1, LiverFunctionTest: 90,
	}
}

// lowRiskInput earns only the physical activity bonus.
func lowRiskInput() domain.PatientInput {
	return domain.PatientInput{
		Age: 25, Gender: 0, BMI: 22, Alcohol: 0, Smoking: 0, GeneticRisk: 0,
		PhysicalActivity: 10, Diabetes: 0, Hypertension: 0, LiverFunctionTest: 20,
	}
}

func TestRiskScorer_HighRiskStaysInUpperRange(t *testing.T) {
	scorer := NewRiskScorer(NewNoiseSource(42))

	for i := 0; i < 200; i++ {
		score := scorer.Score(highRiskInput())
		assert.GreaterOrEqual(t, score, 92.5)
		assert.LessOrEqual(t, score, 95.0)
	}
}

func TestRiskScorer_LowRiskClampsToFloor(t *testing.T) {
	scorer := NewRiskScorer(NewNoiseSource(7))

	for i := 0; i < 200; i++ {
		assert.Equal(t, 5.0, scorer.Score(lowRiskInput()))
	}
}

func TestRiskScorer_PinnedNoise(t *testing.T) {
	tests := []struct {
		name  string
		noise FixedNoise
		input domain.PatientInput
		want  float64
	}{
		{"no noise high risk", 0.5, highRiskInput(), 95},
		{"minimum noise high risk", 0, highRiskInput(), 92.5},
		{"maximum noise clamped", 0.999, highRiskInput(), 95},
		{"no noise low risk", 0.5, lowRiskInput(), 5},
		{
			name:  "middle of the range",
			noise: 0.62,
			input: domain.PatientInput{Age: 55, BMI: 26, PhysicalActivity: 3, LiverFunctionTest: 45},
			// 10 + 10 + 5 + 5 = 30, plus 0.6
			want: 30.6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scorer := NewRiskScorer(tt.noise)
			assert.InDelta(t, tt.want, scorer.Score(tt.input), 1e-9)
		})
	}
}

func TestRiskScorer_Breakdown(t *testing.T) {
	scorer := NewRiskScorer(FixedNoise(0.5))

	// Act
	breakdown := scorer.Breakdown(highRiskInput())

	// Assert
	require.Len(t, breakdown.Contributions, len(domain.PatientFields))
	assert.Equal(t, 142, breakdown.RawSum)
	assert.Equal(t, 95, breakdown.Base)

	points := map[string]int{}
	for _, c := range breakdown.Contributions {
		points[c.Rule] = c.Points
	}
	assert.Equal(t, 15, points[domain.FieldAge])
	assert.Equal(t, 3, points[domain.FieldGender])
	assert.Equal(t, 20, points[domain.FieldBMI])
	assert.Equal(t, 25, points[domain.FieldAlcohol])
	assert.Equal(t, 10, points[domain.FieldPhysicalActivity])
	assert.Equal(t, 20, points[domain.FieldLiverFunctionTest])
}

func TestRiskScorer_RuleTiers(t *testing.T) {
	scorer := NewRiskScorer(FixedNoise(0.5))
	base := domain.PatientInput{BMI: 22, PhysicalActivity: 5}

	tests := []struct {
		name   string
		mutate func(*domain.PatientInput)
		want   int
	}{
		{"baseline", func(*domain.PatientInput) {}, -5},
		{"age 40", func(p *domain.PatientInput) { p.Age = 40 }, 0},
		{"age 50", func(p *domain.PatientInput) { p.Age = 50 }, 5},
		{"age 59.9", func(p *domain.PatientInput) { p.Age = 59.9 }, 5},
		{"underweight", func(p *domain.PatientInput) { p.BMI = 18.4 }, 0},
		{"bmi 25", func(p *domain.PatientInput) { p.BMI = 25 }, 5},
		{"alcohol 5", func(p *domain.PatientInput) { p.Alcohol = 5 }, 3},
		{"alcohol 10", func(p *domain.PatientInput) { p.Alcohol = 10 }, 10},
		{"activity 4.9", func(p *domain.PatientInput) { p.PhysicalActivity = 4.9 }, 5},
		{"activity 1.9", func(p *domain.PatientInput) { p.PhysicalActivity = 1.9 }, 10},
		{"lft 60", func(p *domain.PatientInput) { p.LiverFunctionTest = 60 }, 7},
		{"smoker with diabetes", func(p *domain.PatientInput) { p.Smoking = 1; p.Diabetes = 1 }, 19},
		{"gender other than 1 ignored", func(p *domain.PatientInput) { p.Gender = 2 }, -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mutate(&in)
			assert.Equal(t, tt.want, scorer.Breakdown(in).RawSum)
		})
	}
}

func TestRoundProbability(t *testing.T) {
	assert.Equal(t, 42.5, RoundProbability(42.45))
	assert.Equal(t, 42.4, RoundProbability(42.44))
	assert.Equal(t, 5.0, RoundProbability(4.95))
	assert.Equal(t, 73.0, RoundProbability(73))
}
