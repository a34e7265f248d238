// Package history stores the detection history of risk assessments per user.
// Records are append-only and read back newest first.
package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/livercare-risk-server/internal/domain"
)

// Read limits applied by every store.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Record is one saved assessment. The patient fields are flattened into the JSON object.
type Record struct {
	ID     int64 `json:"id,omitempty"`
	UserID int64 `json:"userId"`
	domain.PatientInput
	Probability float64          `json:"probability"`
	RiskLevel   domain.RiskLevel `json:"riskLevel"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// NewRecord builds a record for a completed assessment.
func NewRecord(userID int64, input domain.PatientInput, assessment *domain.RiskAssessment) *Record {
	return &Record{
		UserID:       userID,
		PatientInput: input,
		Probability:  assessment.Probability,
		RiskLevel:    assessment.RiskLevel,
		CreatedAt:    assessment.AssessedAt,
	}
}

// Validate checks a record before it is written.
func (r *Record) Validate() error {
	if r.UserID <= 0 {
		return domain.NewValidationError("userId", "User ID is required", r.UserID)
	}
	if err := domain.ValidatePatientInput(r.PatientInput); err != nil {
		return err
	}
	if math.IsNaN(r.Probability) || math.IsInf(r.Probability, 0) || r.Probability < 0 || r.Probability > 100 {
		return domain.NewValidationError("probability", "Probability must be between 0 and 100", r.Probability)
	}
	if !r.RiskLevel.IsValid() {
		return domain.NewValidationError("riskLevel", fmt.Sprintf("Unknown risk level %q", r.RiskLevel), r.RiskLevel)
	}
	return nil
}

// Store defines the interface for detection history storage operations.
type Store interface {
	// Append saves a record and assigns its ID. CreatedAt is set when zero.
	Append(ctx context.Context, record *Record) error

	// Recent returns up to limit records of a user, newest first.
	// A limit <= 0 means DefaultLimit and limits above MaxLimit are capped.
	Recent(ctx context.Context, userID int64, limit int) ([]*Record, error)

	// Count returns the number of records of a user.
	Count(ctx context.Context, userID int64) (int64, error)

	// ExportJSON writes every record of a user to writer.
	ExportJSON(ctx context.Context, userID int64, writer io.Writer) error

	// ImportJSON reads an export and appends records not already present.
	// Returns the number of imported and skipped entries.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// Export represents the JSON export format.
type Export struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Records    []*Record `json:"records"`
}

// All returns every record of a user, newest first. Unlike Recent it is not
// capped at MaxLimit.
func All(ctx context.Context, store Store, userID int64) ([]*Record, error) {
	var buf bytes.Buffer
	if err := store.ExportJSON(ctx, userID, &buf); err != nil {
		return nil, err
	}
	var export Export
	if err := json.Unmarshal(buf.Bytes(), &export); err != nil {
		return nil, fmt.Errorf("failed to decode history export: %w", err)
	}
	return export.Records, nil
}

// NormalizeLimit applies DefaultLimit and MaxLimit.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

const exportVersion = "1.0"
