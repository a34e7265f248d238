package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"

	"github.com/livercare-risk-server/internal/domain"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL history store.
// It expects the database and schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL history store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string, cfg domain.DatabaseConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(orDefault(cfg.MaxOpenConns, 25))
	db.SetMaxIdleConns(orDefault(cfg.MaxIdleConns, 5))
	lifetime := cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = 5 * time.Minute
	}
	db.SetConnMaxLifetime(lifetime)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Append saves a record and assigns its ID.
func (s *PostgresStore) Append(ctx context.Context, record *Record) error {
	if err := record.Validate(); err != nil {
		return err
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO detection_history (
			user_id, age, gender, bmi, alcohol, smoking, genetic_risk,
			physical_activity, diabetes, hypertension, liver_function_test,
			probability, risk_level, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query,
		record.UserID,
		record.Age, record.Gender, record.BMI, record.Alcohol, record.Smoking, record.GeneticRisk,
		record.PhysicalActivity, record.Diabetes, record.Hypertension, record.LiverFunctionTest,
		record.Probability, string(record.RiskLevel), record.CreatedAt,
	).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("failed to save history record: %w", err)
	}
	return nil
}

// Recent returns up to limit records of a user, newest first.
func (s *PostgresStore) Recent(ctx context.Context, userID int64, limit int) ([]*Record, error) {
	return s.list(ctx, userID, NormalizeLimit(limit))
}

func (s *PostgresStore) list(ctx context.Context, userID int64, limit int) ([]*Record, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM detection_history
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	result := make([]*Record, 0)
	for rows.Next() {
		r := &Record{}
		var level string
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.Age, &r.Gender, &r.BMI, &r.Alcohol, &r.Smoking, &r.GeneticRisk,
			&r.PhysicalActivity, &r.Diabetes, &r.Hypertension, &r.LiverFunctionTest,
			&r.Probability, &level, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		r.RiskLevel = domain.RiskLevel(level)
		r.CreatedAt = r.CreatedAt.UTC()
		result = append(result, r)
	}
	return result, rows.Err()
}

// Count returns the number of records of a user.
func (s *PostgresStore) Count(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM detection_history WHERE user_id = $1", userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return count, nil
}

// ExportJSON exports all records of a user to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, userID int64, writer io.Writer) error {
	all, err := s.list(ctx, userID, maxExportLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}
	return writeExport(writer, all)
}

// ImportJSON imports records from a JSON reader.
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	return importRecords(ctx, reader, s.exists, s.Append)
}

func (s *PostgresStore) exists(ctx context.Context, r *Record) (bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM detection_history WHERE user_id = $1 AND created_at = $2 LIMIT 1",
		r.UserID, r.CreatedAt,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
