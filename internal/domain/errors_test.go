package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAPIError(t *testing.T) {
	err := NewAPIError(ErrValidation, `Field "bmi" is required`, "bmi", "req-123")

	assert.Equal(t, `VALIDATION_ERROR: Field "bmi" is required`, err.Error())
	assert.WithinDuration(t, time.Now(), err.Timestamp, time.Minute)
	assert.Equal(t, time.UTC, err.Timestamp.Location())

	data, jerr := json.Marshal(err)
	require.NoError(t, jerr)
	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &envelope))
	assert.Equal(t, "VALIDATION_ERROR", envelope["code"])
	assert.Equal(t, "req-123", envelope["request_id"])
	assert.Equal(t, "bmi", envelope["details"])

	data, jerr = json.Marshal(NewAPIError(ErrNotFoundCode, "Post not found", "", ""))
	require.NoError(t, jerr)
	assert.NotContains(t, string(data), "details")
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name  string
		err   *ValidationError
		want  string
		value interface{}
	}{
		{
			name: "missing field",
			err:  NewValidationError(FieldAge, `Field "age" is required`, nil),
			want: `validation error for field 'age': Field "age" is required`,
		},
		{
			name:  "non-numeric field",
			err:   NewValidationError(FieldLiverFunctionTest, `Field "liverFunctionTest" must be a valid number`, "high"),
			want:  `validation error for field 'liverFunctionTest': Field "liverFunctionTest" must be a valid number`,
			value: "high",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
			assert.Equal(t, tt.value, tt.err.Value)
		})
	}
}

func TestIsValidationError(t *testing.T) {
	_, parseErr := ParsePatientInput(map[string]interface{}{})
	require.Error(t, parseErr)

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"parse failure", parseErr, true},
		{"wrapped", fmt.Errorf("assess: %w", parseErr), true},
		{"plain error", errors.New("boom"), false},
		{"not found", fmt.Errorf("lookup: %w", ErrNotFound), false},
		{"prediction unavailable", fmt.Errorf("%w: timeout", ErrPredictionUnavailable), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidationError(tt.err))
		})
	}
}

func TestSentinelErrors(t *testing.T) {
	sentinels := []error{ErrNotFound, ErrEmailTaken, ErrInvalidCredentials, ErrPredictionUnavailable}

	for i, a := range sentinels {
		wrapped := fmt.Errorf("layer: %w", a)
		for j, b := range sentinels {
			assert.Equal(t, i == j, errors.Is(wrapped, b), "%v vs %v", a, b)
		}
	}
}
