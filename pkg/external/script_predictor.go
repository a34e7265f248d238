package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/livercare-risk-server/internal/domain"
)

// scriptWaitDelay bounds how long Predict waits for the output pipes to close
// after the script has been killed.
const scriptWaitDelay = 500 * time.Millisecond

// ScriptPredictionClient runs a local model script that reads the patient
// fields as JSON on stdin and writes a PredictionResponse to stdout.
type ScriptPredictionClient struct {
	interpreter string
	script      string
	logger      *logrus.Logger
}

// NewScriptPredictionClient creates a client running `interpreter script`.
func NewScriptPredictionClient(interpreter, script string, logger *logrus.Logger) *ScriptPredictionClient {
	if interpreter == "" {
		interpreter = "python"
	}
	return &ScriptPredictionClient{
		interpreter: interpreter,
		script:      script,
		logger:      logger,
	}
}

// Predict runs the script once. The script and any processes it started are
// killed when ctx ends.
func (c *ScriptPredictionClient) Predict(ctx context.Context, input domain.PatientInput) (*domain.ModelPrediction, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encoding prediction input: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.interpreter, c.script)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = scriptWaitDelay
	killProcessGroup(cmd)

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: prediction script: %w", domain.ErrPredictionUnavailable, ctxErr)
		}
		output := stderr.String()
		if output == "" {
			output = stdout.String()
		}
		c.logger.WithFields(logrus.Fields{
			"script": c.script,
			"stderr": output,
		}).Error("Prediction script failed")
		return nil, fmt.Errorf("%w: prediction script failed: %v", domain.ErrPredictionUnavailable, err)
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 {
		out = []byte("{}")
	}

	var resp PredictionResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("%w: unable to parse prediction results: %v", domain.ErrPredictionUnavailable, err)
	}
	return resp.prediction()
}
