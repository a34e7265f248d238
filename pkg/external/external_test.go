package external

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livercare-risk-server/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func sampleInput() domain.PatientInput {
	return domain.PatientInput{
		Age:               55,
		Gender:            1,
		BMI:               31,
		Alcohol:           12,
		Smoking:           1,
		GeneticRisk:       0,
		PhysicalActivity:  3,
		Diabetes:          1,
		Hypertension:      0,
		LiverFunctionTest: 85,
	}
}

func TestPredictionResponse_Probability(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		expected    float64
		level       domain.RiskLevel
		expectError bool
	}{
		{name: "number", body: `{"success":true,"probability":72.5,"riskLevel":"high"}`, expected: 72.5, level: domain.RiskHigh},
		{name: "numeric string", body: `{"success":true,"probability":"41.25","riskLevel":"Medium"}`, expected: 41.25, level: domain.RiskMedium},
		{name: "no level", body: `{"success":true,"probability":12}`, expected: 12},
		{name: "missing probability", body: `{"success":true}`, expectError: true},
		{name: "null probability", body: `{"success":true,"probability":null}`, expectError: true},
		{name: "not successful", body: `{"success":false,"error":"Model file not found"}`, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp PredictionResponse
			require.NoError(t, json.Unmarshal([]byte(tt.body), &resp))

			prediction, err := resp.prediction()
			if tt.expectError {
				assert.True(t, errors.Is(err, domain.ErrPredictionUnavailable))
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, prediction.Probability, 1e-9)
			assert.Equal(t, tt.level, prediction.RiskLevel)
		})
	}
}

func TestPredictionResponse_RejectsNonNumericProbability(t *testing.T) {
	var resp PredictionResponse
	err := json.Unmarshal([]byte(`{"success":true,"probability":"high"}`), &resp)
	assert.Error(t, err)
}

func TestHTTPPredictionClient_Predict(t *testing.T) {
	var received map[string]float64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict", r.URL.Path)
		assert.Equal(t, "Bearer secret-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"probability":"67.3","riskLevel":"high"}`))
	}))
	defer server.Close()

	client := NewHTTPPredictionClient(HTTPPredictionConfig{
		BaseURL:   server.URL + "/",
		APIKey:    "secret-key",
		Timeout:   time.Second,
		RateLimit: 100,
	}, testLogger())

	// Act
	prediction, err := client.Predict(context.Background(), sampleInput())

	// Assert
	require.NoError(t, err)
	assert.InDelta(t, 67.3, prediction.Probability, 1e-9)
	assert.Equal(t, domain.RiskHigh, prediction.RiskLevel)
	assert.Len(t, received, len(domain.PatientFields))
	assert.Equal(t, 85.0, received[domain.FieldLiverFunctionTest])
}

func TestHTTPPredictionClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{name: "server error with message", status: http.StatusInternalServerError, body: `{"success":false,"error":"model missing"}`, message: "model missing"},
		{name: "server error without body", status: http.StatusBadGateway, body: `{}`, message: "502"},
		{name: "unsuccessful answer", status: http.StatusOK, body: `{"success":false,"error":"Invalid numeric value supplied"}`, message: "Invalid numeric value supplied"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewHTTPPredictionClient(HTTPPredictionConfig{BaseURL: server.URL, RateLimit: 100}, testLogger())

			_, err := client.Predict(context.Background(), sampleInput())

			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrPredictionUnavailable))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestHTTPPredictionClient_SingleAttemptOnTimeout(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(500 * time.Millisecond):
		}
	}))
	defer server.Close()

	client := NewHTTPPredictionClient(HTTPPredictionConfig{BaseURL: server.URL, RateLimit: 100}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Predict(ctx, sampleInput())

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPPredictionClient_TransportErrorsAreUnavailable(t *testing.T) {
	t.Run("connection refused", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		client := NewHTTPPredictionClient(HTTPPredictionConfig{BaseURL: url, RateLimit: 100}, testLogger())
		_, err := client.Predict(context.Background(), sampleInput())

		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrPredictionUnavailable))
		assert.Contains(t, err.Error(), "calling prediction service")
	})

	t.Run("rate limit wait cancelled", func(t *testing.T) {
		client := NewHTTPPredictionClient(HTTPPredictionConfig{BaseURL: "http://127.0.0.1:1", RateLimit: 100}, testLogger())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := client.Predict(ctx, sampleInput())

		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrPredictionUnavailable))
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not available on windows")
	}
	path := filepath.Join(t.TempDir(), "predict.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func TestScriptPredictionClient_Predict(t *testing.T) {
	script := writeScript(t, `input=$(cat)
case "$input" in
  *'"liverFunctionTest":85'*) echo '{"success": true, "probability": "61.2", "riskLevel": "high"}' ;;
  *) echo '{"success": false, "error": "unexpected input"}' ;;
esac
`)
	client := NewScriptPredictionClient("/bin/sh", script, testLogger())

	prediction, err := client.Predict(context.Background(), sampleInput())

	require.NoError(t, err)
	assert.InDelta(t, 61.2, prediction.Probability, 1e-9)
	assert.Equal(t, domain.RiskHigh, prediction.RiskLevel)
}

func TestScriptPredictionClient_Failures(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{name: "non-zero exit", script: "cat > /dev/null\necho 'Model file not found' >&2\nexit 3\n"},
		{name: "unparseable output", script: "cat > /dev/null\necho 'not json'\n"},
		{name: "empty output", script: "cat > /dev/null\n"},
		{name: "unsuccessful answer", script: "cat > /dev/null\necho '{\"success\": false, \"error\": \"Missing fields: age\"}'\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewScriptPredictionClient("/bin/sh", writeScript(t, tt.script), testLogger())

			_, err := client.Predict(context.Background(), sampleInput())

			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrPredictionUnavailable))
		})
	}
}

func TestScriptPredictionClient_KilledOnDeadline(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{name: "script sleeps", script: "sleep 5\n"},
		{name: "background child holds stdout", script: "sleep 5 &\nwait\n"},
		{name: "nested shell", script: "/bin/sh -c 'sleep 5; echo late'\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewScriptPredictionClient("/bin/sh", writeScript(t, tt.script), testLogger())

			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			start := time.Now()
			_, err := client.Predict(ctx, sampleInput())

			require.Error(t, err)
			assert.True(t, errors.Is(err, context.DeadlineExceeded))
			assert.True(t, errors.Is(err, domain.ErrPredictionUnavailable))
			assert.Less(t, time.Since(start), 2*time.Second)
		})
	}
}

func TestNewPredictor(t *testing.T) {
	logger := testLogger()

	t.Run("none disables the model", func(t *testing.T) {
		p, err := NewPredictor(domain.PredictionConfig{Mode: ModeNone}, nil, logger)
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("http requires a base URL", func(t *testing.T) {
		_, err := NewPredictor(domain.PredictionConfig{Mode: ModeHTTP}, nil, logger)
		assert.Error(t, err)
	})

	t.Run("script requires a path", func(t *testing.T) {
		_, err := NewPredictor(domain.PredictionConfig{Mode: ModeScript}, nil, logger)
		assert.Error(t, err)
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := NewPredictor(domain.PredictionConfig{Mode: "grpc"}, nil, logger)
		assert.Error(t, err)
	})

	t.Run("http with cache", func(t *testing.T) {
		p, err := NewPredictor(domain.PredictionConfig{Mode: "HTTP", BaseURL: "http://localhost:9"}, NewMemoryPredictionCache(10, time.Minute), logger)
		require.NoError(t, err)
		assert.IsType(t, &CachedPredictor{}, p)

		breaker, ok := Breaker(p)
		require.True(t, ok)
		assert.Equal(t, gobreaker.StateClosed, breaker.State())
	})

	t.Run("script without cache", func(t *testing.T) {
		p, err := NewPredictor(domain.PredictionConfig{Mode: ModeScript, ScriptPath: "ml/predict.py"}, nil, logger)
		require.NoError(t, err)
		assert.IsType(t, &ResilientPredictor{}, p)
	})

	t.Run("breaker lookup on plain predictors", func(t *testing.T) {
		_, ok := Breaker(nil)
		assert.False(t, ok)
		_, ok = Breaker(&stubPredictor{})
		assert.False(t, ok)
	})
}
