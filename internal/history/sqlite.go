package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/livercare-risk-server/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
// Timestamps are stored as Unix nanoseconds so ordering is exact.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite history store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

const selectColumns = `id, user_id, age, gender, bmi, alcohol, smoking, genetic_risk,
	physical_activity, diabetes, hypertension, liver_function_test,
	probability, risk_level, created_at`

func scanSQLiteRecord(s scanner) (*Record, error) {
	r := &Record{}
	var level string
	var createdAt int64

	err := s.Scan(
		&r.ID, &r.UserID, &r.Age, &r.Gender, &r.BMI, &r.Alcohol, &r.Smoking, &r.GeneticRisk,
		&r.PhysicalActivity, &r.Diabetes, &r.Hypertension, &r.LiverFunctionTest,
		&r.Probability, &level, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	r.RiskLevel = domain.RiskLevel(level)
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	return r, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS detection_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		age REAL NOT NULL,
		gender REAL NOT NULL,
		bmi REAL NOT NULL,
		alcohol REAL NOT NULL,
		smoking REAL NOT NULL,
		genetic_risk REAL NOT NULL,
		physical_activity REAL NOT NULL,
		diabetes REAL NOT NULL,
		hypertension REAL NOT NULL,
		liver_function_test REAL NOT NULL,
		probability REAL NOT NULL,
		risk_level TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_user_created ON detection_history(user_id, created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Append saves a record and assigns its ID.
func (s *SQLiteStore) Append(ctx context.Context, record *Record) error {
	if err := record.Validate(); err != nil {
		return err
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO detection_history (
			user_id, age, gender, bmi, alcohol, smoking, genetic_risk,
			physical_activity, diabetes, hypertension, liver_function_test,
			probability, risk_level, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.UserID,
		record.Age, record.Gender, record.BMI, record.Alcohol, record.Smoking, record.GeneticRisk,
		record.PhysicalActivity, record.Diabetes, record.Hypertension, record.LiverFunctionTest,
		record.Probability, string(record.RiskLevel), record.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	record.ID = id
	return nil
}

// Recent returns up to limit records of a user, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, userID int64, limit int) ([]*Record, error) {
	return s.list(ctx, userID, NormalizeLimit(limit))
}

func (s *SQLiteStore) list(ctx context.Context, userID int64, limit int) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM detection_history
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	result := make([]*Record, 0)
	for rows.Next() {
		r, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// Count returns the number of records of a user.
func (s *SQLiteStore) Count(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM detection_history WHERE user_id = ?", userID).Scan(&count)
	return count, err
}

// ExportJSON exports all records of a user to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, userID int64, writer io.Writer) error {
	all, err := s.list(ctx, userID, maxExportLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}
	return writeExport(writer, all)
}

// ImportJSON imports records from a JSON reader.
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	return importRecords(ctx, reader, s.exists, s.Append)
}

func (s *SQLiteStore) exists(ctx context.Context, r *Record) (bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM detection_history WHERE user_id = ? AND created_at = ? LIMIT 1",
		r.UserID, r.CreatedAt.UnixNano(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func writeExport(writer io.Writer, records []*Record) error {
	export := &Export{
		Version:    exportVersion,
		ExportedAt: time.Now().UTC(),
		Count:      len(records),
		Records:    records,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

func importRecords(
	ctx context.Context,
	reader io.Reader,
	exists func(context.Context, *Record) (bool, error),
	appendRecord func(context.Context, *Record) error,
) (imported int, skipped int, err error) {
	var export Export
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, r := range export.Records {
		if r == nil || r.CreatedAt.IsZero() {
			skipped++
			continue
		}

		found, err := exists(ctx, r)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
		}
		if found {
			skipped++
			continue
		}

		r.ID = 0
		if err := appendRecord(ctx, r); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}
