package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParsePatientInput validates a loosely typed request body and builds a PatientInput.
// Every field must be present and numeric: JSON numbers and numeric strings are accepted,
// anything else (nil, empty string, booleans, NaN, Inf) is rejected with a *ValidationError
// naming the first offending field in PatientFields order.
func ParsePatientInput(raw map[string]interface{}) (*PatientInput, error) {
	values := make(map[string]float64, len(PatientFields))

	for _, field := range PatientFields {
		value, ok := raw[field]
		if !ok || value == nil {
			return nil, NewValidationError(field, fmt.Sprintf("Field %q is required", field), nil)
		}
		if s, isString := value.(string); isString && strings.TrimSpace(s) == "" {
			return nil, NewValidationError(field, fmt.Sprintf("Field %q is required", field), value)
		}

		n, err := toFloat(value)
		if err != nil {
			return nil, NewValidationError(field, fmt.Sprintf("Field %q must be a valid number", field), value)
		}
		values[field] = n
	}

	input := PatientInputFromValues(values)
	return &input, nil
}

// ParseProbability reads a probability percentage sent as a JSON number or numeric string.
func ParseProbability(value interface{}) (float64, error) {
	if value == nil {
		return 0, NewValidationError("probability", "Probability is required", nil)
	}
	n, err := toFloat(value)
	if err != nil || n < 0 || n > 100 {
		return 0, NewValidationError("probability", "Probability must be between 0 and 100", value)
	}
	return n, nil
}

// PatientInputFromValues maps wire field names onto a PatientInput.
// Missing keys read as zero, so callers validate first.
func PatientInputFromValues(values map[string]float64) PatientInput {
	return PatientInput{
		Age:               values[FieldAge],
		Gender:            values[FieldGender],
		BMI:               values[FieldBMI],
		Alcohol:           values[FieldAlcohol],
		Smoking:           values[FieldSmoking],
		GeneticRisk:       values[FieldGeneticRisk],
		PhysicalActivity:  values[FieldPhysicalActivity],
		Diabetes:          values[FieldDiabetes],
		Hypertension:      values[FieldHypertension],
		LiverFunctionTest: values[FieldLiverFunctionTest],
	}
}

// ValidatePatientInput rejects NaN and infinite values in an already typed input.
func ValidatePatientInput(p PatientInput) error {
	values := p.Values()
	for _, field := range PatientFields {
		v := values[field]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewValidationError(field, fmt.Sprintf("Field %q must be a valid number", field), v)
		}
	}
	return nil
}

func toFloat(value interface{}) (float64, error) {
	var n float64

	switch v := value.(type) {
	case float64:
		n = v
	case float32:
		n = float64(v)
	case int:
		n = float64(v)
	case int32:
		n = float64(v)
	case int64:
		n = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, err
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, err
		}
		n = f
	default:
		return 0, fmt.Errorf("unsupported type %T", value)
	}

	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("not a finite number: %v", n)
	}
	return n, nil
}
