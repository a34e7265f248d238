package history

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var historyColumns = []string{
	"id", "user_id", "age", "gender", "bmi", "alcohol", "smoking", "genetic_risk",
	"physical_activity", "diabetes", "hypertension", "liver_function_test",
	"probability", "risk_level", "created_at",
}

func setupMockPostgresStore(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresStore) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	store, err := NewPostgresStore(db)
	require.NoError(t, err)
	return db, mock, store
}

func TestNewPostgresStore_NilDB(t *testing.T) {
	_, err := NewPostgresStore(nil)
	assert.Error(t, err)
}

func TestPostgresStore_Append(t *testing.T) {
	db, mock, store := setupMockPostgresStore(t)
	defer db.Close()

	record := testRecord(5, 61.2, time.Date(2025, 2, 2, 8, 0, 0, 0, time.UTC))

	mock.ExpectQuery(`INSERT INTO detection_history`).
		WithArgs(int64(5), 45.0, 1.0, 27.5, 8.0, 0.0, 1.0, 3.0, 0.0, 1.0, 42.0, 61.2, "high", record.CreatedAt).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(17)))

	// Act
	err := store.Append(context.Background(), record)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(17), record.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendError(t *testing.T) {
	db, mock, store := setupMockPostgresStore(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO detection_history`).WillReturnError(errors.New("connection reset"))

	err := store.Append(context.Background(), testRecord(5, 10, time.Now()))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save history record")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Recent(t *testing.T) {
	db, mock, store := setupMockPostgresStore(t)
	defer db.Close()

	newer := time.Date(2025, 2, 2, 9, 0, 0, 0, time.UTC)
	older := newer.Add(-time.Hour)
	rows := sqlmock.NewRows(historyColumns).
		AddRow(int64(2), int64(5), 50.0, 0.0, 24.0, 2.0, 0.0, 0.0, 6.0, 0.0, 0.0, 30.0, 12.4, "low", newer).
		AddRow(int64(1), int64(5), 50.0, 0.0, 24.0, 2.0, 0.0, 0.0, 6.0, 0.0, 0.0, 30.0, 33.0, "medium", older)

	mock.ExpectQuery(`SELECT (.+) FROM detection_history WHERE user_id = \$1 ORDER BY created_at DESC, id DESC LIMIT \$2`).
		WithArgs(int64(5), DefaultLimit).
		WillReturnRows(rows)

	records, err := store.Recent(context.Background(), 5, 0)

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(2), records[0].ID)
	assert.Equal(t, 12.4, records[0].Probability)
	assert.Equal(t, "medium", string(records[1].RiskLevel))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecentCapsLimit(t *testing.T) {
	db, mock, store := setupMockPostgresStore(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).
		WithArgs(int64(5), MaxLimit).
		WillReturnRows(sqlmock.NewRows(historyColumns))

	records, err := store.Recent(context.Background(), 5, 9999)

	require.NoError(t, err)
	assert.Empty(t, records)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Count(t *testing.T) {
	db, mock, store := setupMockPostgresStore(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM detection_history WHERE user_id = \$1`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))

	count, err := store.Count(context.Background(), 5)

	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ImportSkipsExisting(t *testing.T) {
	db, mock, store := setupMockPostgresStore(t)
	defer db.Close()

	createdAt := time.Date(2025, 2, 2, 9, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	require.NoError(t, writeExport(&buf, []*Record{testRecord(5, 12.4, createdAt)}))

	mock.ExpectQuery(`SELECT id FROM detection_history WHERE user_id = \$1 AND created_at = \$2`).
		WithArgs(int64(5), createdAt).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	imported, skipped, err := store.ImportJSON(context.Background(), &buf)

	require.NoError(t, err)
	assert.Equal(t, 0, imported)
	assert.Equal(t, 1, skipped)
	require.NoError(t, mock.ExpectationsWereMet())
}
