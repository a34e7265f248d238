package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/livercare-risk-server/internal/domain"
)

func TestRiskClassifier_Boundaries(t *testing.T) {
	classifier := NewRiskClassifier()

	tests := []struct {
		probability float64
		level       domain.RiskLevel
		label       string
	}{
		{0, domain.RiskLow, "Low Risk"},
		{29.9, domain.RiskLow, "Low Risk"},
		{30, domain.RiskMedium, "Medium Risk"},
		{59.9, domain.RiskMedium, "Medium Risk"},
		{60, domain.RiskHigh, "High Risk"},
		{100, domain.RiskHigh, "High Risk"},
		{-1, domain.RiskLow, "Low Risk"},
	}

	for _, tt := range tests {
		band := classifier.Classify(tt.probability)
		assert.Equal(t, tt.level, band.Level, "probability %v", tt.probability)
		assert.Equal(t, tt.label, band.Label, "probability %v", tt.probability)
	}
}
