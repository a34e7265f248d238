package service

import "github.com/livercare-risk-server/internal/domain"

// Band thresholds; each lower bound is inclusive.
const (
	MediumRiskThreshold = 30.0
	HighRiskThreshold   = 60.0
)

// RiskClassifier maps a probability onto a risk band
type RiskClassifier struct{}

// NewRiskClassifier creates a classifier
func NewRiskClassifier() *RiskClassifier {
	return &RiskClassifier{}
}

// Classify returns the band containing probability.
func (c *RiskClassifier) Classify(probability float64) domain.RiskBand {
	level := LevelFor(probability)
	return domain.RiskBand{Level: level, Label: level.Label()}
}

// LevelFor is Classify without the label.
func LevelFor(probability float64) domain.RiskLevel {
	switch {
	case probability >= HighRiskThreshold:
		return domain.RiskHigh
	case probability >= MediumRiskThreshold:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}
