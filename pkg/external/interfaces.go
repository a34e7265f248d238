// Package external holds the clients for the liver disease prediction model
// and the wrappers that make them safe to call from the request path.
package external

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/livercare-risk-server/internal/domain"
)

// Prediction modes accepted in configuration.
const (
	ModeNone   = "none"
	ModeHTTP   = "http"
	ModeScript = "script"
)

// PredictionResponse is the reply shared by the HTTP service and the script.
// Probability accepts a JSON number or a numeric string.
type PredictionResponse struct {
	Success     bool                `json:"success"`
	Probability decimal.NullDecimal `json:"probability"`
	RiskLevel   string              `json:"riskLevel,omitempty"`
	Error       string              `json:"error,omitempty"`
}

func (r *PredictionResponse) prediction() (*domain.ModelPrediction, error) {
	if !r.Success {
		msg := r.Error
		if msg == "" {
			msg = "Prediction failed."
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrPredictionUnavailable, msg)
	}
	if !r.Probability.Valid {
		return nil, fmt.Errorf("%w: response has no probability", domain.ErrPredictionUnavailable)
	}

	probability, _ := r.Probability.Decimal.Float64()
	return &domain.ModelPrediction{
		Probability: probability,
		RiskLevel:   domain.RiskLevel(strings.ToLower(strings.TrimSpace(r.RiskLevel))),
	}, nil
}
