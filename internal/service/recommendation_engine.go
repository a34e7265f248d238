package service

import "github.com/livercare-risk-server/internal/domain"

// Recommendation texts, in the order they can appear.
const (
	RecConsultImmediately = "Consult with a healthcare professional immediately for further evaluation."
	RecComprehensiveTests = "Consider scheduling comprehensive liver function tests."
	RecScheduleConsult    = "Schedule a consultation with your healthcare provider."
	RecMonitorRegularly   = "Monitor your liver health regularly."
	RecKeepHealthy        = "Continue maintaining a healthy lifestyle."
	RecReduceAlcohol      = "Consider reducing alcohol consumption to lower your risk."
	RecHealthyWeight      = "Maintaining a healthy weight can help reduce liver disease risk."
	RecIncreaseActivity   = "Increase physical activity to at least 150 minutes per week."
	RecQuitSmoking        = "Quitting smoking can significantly improve liver health."
	RecManageConditions   = "Manage your existing conditions with proper medical care."
	RecRegularCheckups    = "Continue regular health checkups and maintain a balanced lifestyle."
)

type lifestyleRule struct {
	applies func(domain.PatientInput) bool
	text    string
}

var lifestyleRules = []lifestyleRule{
	{func(in domain.PatientInput) bool { return in.Alcohol >= 10 }, RecReduceAlcohol},
	{func(in domain.PatientInput) bool { return in.BMI >= 25 }, RecHealthyWeight},
	{func(in domain.PatientInput) bool { return in.PhysicalActivity < 5 }, RecIncreaseActivity},
	{domain.PatientInput.Smokes, RecQuitSmoking},
	{func(in domain.PatientInput) bool { return in.HasDiabetes() || in.HasHypertension() }, RecManageConditions},
}

// RecommendationEngine derives advice from a probability and the input
type RecommendationEngine struct{}

// NewRecommendationEngine creates a recommendation engine
func NewRecommendationEngine() *RecommendationEngine {
	return &RecommendationEngine{}
}

// Recommend returns the ordered, non-empty list of recommendations.
func (e *RecommendationEngine) Recommend(probability float64, input domain.PatientInput) []string {
	var recs []string

	switch LevelFor(probability) {
	case domain.RiskHigh:
		recs = append(recs, RecConsultImmediately, RecComprehensiveTests)
	case domain.RiskMedium:
		recs = append(recs, RecScheduleConsult, RecMonitorRegularly)
	default:
		recs = append(recs, RecKeepHealthy)
	}

	for _, rule := range lifestyleRules {
		if rule.applies(input) {
			recs = append(recs, rule.text)
		}
	}

	if len(recs) == 0 {
		recs = append(recs, RecRegularCheckups)
	}
	return recs
}
