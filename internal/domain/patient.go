package domain

import (
	"strings"
	"time"
)

// PatientInput is the ten-field self-reported record scored for liver disease risk.
// Binary fields (gender, smoking, geneticRisk, diabetes, hypertension) use 0/1.
type PatientInput struct {
	Age               float64 `json:"age"`
	Gender            float64 `json:"gender"`
	BMI               float64 `json:"bmi"`
	Alcohol           float64 `json:"alcohol"`
	Smoking           float64 `json:"smoking"`
	GeneticRisk       float64 `json:"geneticRisk"`
	PhysicalActivity  float64 `json:"physicalActivity"`
	Diabetes          float64 `json:"diabetes"`
	Hypertension      float64 `json:"hypertension"`
	LiverFunctionTest float64 `json:"liverFunctionTest"`
}

// Field names in the order they are validated and sent to the model.
const (
	FieldAge               = "age"
	FieldGender            = "gender"
	FieldBMI               = "bmi"
	FieldAlcohol           = "alcohol"
	FieldSmoking           = "smoking"
	FieldGeneticRisk       = "geneticRisk"
	FieldPhysicalActivity  = "physicalActivity"
	FieldDiabetes          = "diabetes"
	FieldHypertension      = "hypertension"
	FieldLiverFunctionTest = "liverFunctionTest"
)

// PatientFields lists every required PatientInput field.
var PatientFields = []string{
	FieldAge,
	FieldGender,
	FieldBMI,
	FieldAlcohol,
	FieldSmoking,
	FieldGeneticRisk,
	FieldPhysicalActivity,
	FieldDiabetes,
	FieldHypertension,
	FieldLiverFunctionTest,
}

// IsMale reports whether the gender flag marks a male patient.
func (p PatientInput) IsMale() bool { return p.Gender == 1 }

// Smokes reports whether the smoking flag is set.
func (p PatientInput) Smokes() bool { return p.Smoking == 1 }

// HasGeneticRisk reports a family history of liver disease.
func (p PatientInput) HasGeneticRisk() bool { return p.GeneticRisk == 1 }

// HasDiabetes reports whether the diabetes flag is set.
func (p PatientInput) HasDiabetes() bool { return p.Diabetes == 1 }

// HasHypertension reports whether the hypertension flag is set.
func (p PatientInput) HasHypertension() bool { return p.Hypertension == 1 }

// Values returns the fields keyed by their wire names.
func (p PatientInput) Values() map[string]float64 {
	return map[string]float64{
		FieldAge:               p.Age,
		FieldGender:            p.Gender,
		FieldBMI:               p.BMI,
		FieldAlcohol:           p.Alcohol,
		FieldSmoking:           p.Smoking,
		FieldGeneticRisk:       p.GeneticRisk,
		FieldPhysicalActivity:  p.PhysicalActivity,
		FieldDiabetes:          p.Diabetes,
		FieldHypertension:      p.Hypertension,
		FieldLiverFunctionTest: p.LiverFunctionTest,
	}
}

// RiskLevel is one of the three risk bands.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Label returns the display label of the band.
func (l RiskLevel) Label() string {
	switch l {
	case RiskLow:
		return "Low Risk"
	case RiskMedium:
		return "Medium Risk"
	case RiskHigh:
		return "High Risk"
	default:
		return ""
	}
}

// IsValid reports whether l names a known band.
func (l RiskLevel) IsValid() bool {
	return l == RiskLow || l == RiskMedium || l == RiskHigh
}

// ParseRiskLevel accepts a band name ("low") or its label ("Low Risk"), in any case.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, " risk")
	level := RiskLevel(s)
	return level, level.IsValid()
}

// RiskBand pairs a risk level with its display label.
type RiskBand struct {
	Level RiskLevel `json:"level"`
	Label string    `json:"label"`
}

// PredictionSource tags where an assessment probability came from.
type PredictionSource string

const (
	SourceModel    PredictionSource = "model"
	SourceFallback PredictionSource = "fallback"
)

// ModelPrediction is a successful answer from the external prediction service.
// RiskLevel is empty when the service did not supply one.
type ModelPrediction struct {
	Probability float64   `json:"probability"`
	RiskLevel   RiskLevel `json:"riskLevel,omitempty"`
}

// RiskAssessment is the immutable result of assessing one PatientInput.
type RiskAssessment struct {
	Probability     float64          `json:"probability"`
	RiskLevel       RiskLevel        `json:"riskLevel"`
	RiskLabel       string           `json:"riskLabel"`
	Source          PredictionSource `json:"source"`
	Recommendations []string         `json:"recommendations"`
	AssessedAt      time.Time        `json:"assessedAt"`
}

// ScoreContribution is the points one scoring rule added for an input.
type ScoreContribution struct {
	Rule   string `json:"rule"`
	Points int    `json:"points"`
}

// ScoreBreakdown explains the deterministic part of a fallback score.
type ScoreBreakdown struct {
	Contributions []ScoreContribution `json:"contributions"`
	RawSum        int                 `json:"rawSum"`
	Base          int                 `json:"base"`
}
