package service

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/livercare-risk-server/internal/domain"
)

const (
	// MinScore and MaxScore bound every fallback probability.
	MinScore = 5.0
	MaxScore = 95.0

	noiseSpread = 5.0
)

// NoiseSource yields uniform values in [0, 1).
type NoiseSource interface {
	Float64() float64
}

// lockedSource makes a *rand.Rand safe for concurrent scorers.
type lockedSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewNoiseSource returns a goroutine-safe source seeded with seed.
// A zero seed uses the current time.
func NewNoiseSource(seed int64) NoiseSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lockedSource{rnd: rand.New(rand.NewSource(seed))}
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()
}

// FixedNoise always returns the same value. 0.5 removes noise entirely.
type FixedNoise float64

func (f FixedNoise) Float64() float64 { return float64(f) }

// ScoreRule awards points for one input field
type ScoreRule struct {
	Name   string
	Points func(input domain.PatientInput) int
}

// RiskScorer is the local additive heuristic used when the model is unavailable
type RiskScorer struct {
	rules []ScoreRule
	noise NoiseSource
}

// NewRiskScorer creates a scorer drawing noise from source.
// A nil source is replaced with a time-seeded one.
func NewRiskScorer(source NoiseSource) *RiskScorer {
	if source == nil {
		source = NewNoiseSource(0)
	}
	s := &RiskScorer{noise: source}
	s.initializeRules()
	return s
}

// Score returns a probability in [MinScore, MaxScore] rounded to one decimal.
func (s *RiskScorer) Score(input domain.PatientInput) float64 {
	breakdown := s.Breakdown(input)

	jitter := (s.noise.Float64() - 0.5) * noiseSpread
	probability := float64(breakdown.Base) + jitter
	probability = math.Max(MinScore, math.Min(MaxScore, probability))

	return RoundProbability(probability)
}

// Breakdown reports the points each rule contributed, without noise.
func (s *RiskScorer) Breakdown(input domain.PatientInput) domain.ScoreBreakdown {
	breakdown := domain.ScoreBreakdown{
		Contributions: make([]domain.ScoreContribution, 0, len(s.rules)),
	}

	for _, rule := range s.rules {
		points := rule.Points(input)
		breakdown.RawSum += points
		breakdown.Contributions = append(breakdown.Contributions, domain.ScoreContribution{
			Rule:   rule.Name,
			Points: points,
		})
	}

	breakdown.Base = breakdown.RawSum
	if breakdown.Base > int(MaxScore) {
		breakdown.Base = int(MaxScore)
	}
	return breakdown
}

// Rules returns the rule table in evaluation order.
func (s *RiskScorer) Rules() []ScoreRule {
	rules := make([]ScoreRule, len(s.rules))
	copy(rules, s.rules)
	return rules
}

func (s *RiskScorer) initializeRules() {
	s.addRule(domain.FieldAge, func(in domain.PatientInput) int {
		switch {
		case in.Age >= 60:
			return 15
		case in.Age >= 50:
			return 10
		case in.Age >= 40:
			return 5
		}
		return 0
	})
	s.addRule(domain.FieldGender, flagPoints(domain.PatientInput.IsMale, 3))
	s.addRule(domain.FieldBMI, func(in domain.PatientInput) int {
		switch {
		case in.BMI >= 30:
			return 20
		case in.BMI >= 25:
			return 10
		case in.BMI < 18.5:
			return 5
		}
		return 0
	})
	s.addRule(domain.FieldAlcohol, func(in domain.PatientInput) int {
		switch {
		case in.Alcohol >= 20:
			return 25
		case in.Alcohol >= 10:
			return 15
		case in.Alcohol >= 5:
			return 8
		}
		return 0
	})
	s.addRule(domain.FieldSmoking, flagPoints(domain.PatientInput.Smokes, 12))
	s.addRule(domain.FieldGeneticRisk, flagPoints(domain.PatientInput.HasGeneticRisk, 15))
	s.addRule(domain.FieldPhysicalActivity, func(in domain.PatientInput) int {
		switch {
		case in.PhysicalActivity < 2:
			return 10
		case in.PhysicalActivity < 5:
			return 5
		}
		return -5
	})
	s.addRule(domain.FieldDiabetes, flagPoints(domain.PatientInput.HasDiabetes, 12))
	s.addRule(domain.FieldHypertension, flagPoints(domain.PatientInput.HasHypertension, 10))
	s.addRule(domain.FieldLiverFunctionTest, func(in domain.PatientInput) int {
		switch {
		case in.LiverFunctionTest >= 80:
			return 20
		case in.LiverFunctionTest >= 60:
			return 12
		case in.LiverFunctionTest >= 40:
			return 5
		}
		return 0
	})
}

func (s *RiskScorer) addRule(name string, points func(domain.PatientInput) int) {
	s.rules = append(s.rules, ScoreRule{Name: name, Points: points})
}

func flagPoints(set func(domain.PatientInput) bool, points int) func(domain.PatientInput) int {
	return func(in domain.PatientInput) int {
		if set(in) {
			return points
		}
		return 0
	}
}

// RoundProbability rounds to one decimal, half away from zero.
func RoundProbability(p float64) float64 {
	rounded, _ := decimal.NewFromFloat(p).Round(1).Float64()
	return rounded
}
