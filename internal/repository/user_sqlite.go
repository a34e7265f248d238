package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/livercare-risk-server/internal/domain"
)

// SQLiteUserRepository stores accounts in the single-node SQLite database
type SQLiteUserRepository struct {
	db  *sql.DB
	log *logrus.Logger
}

// NewSQLiteUserRepository creates a user repository on a database opened with database.OpenSQLite
func NewSQLiteUserRepository(db *sql.DB, logger *logrus.Logger) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db, log: logger}
}

// Create inserts a new user and assigns its ID
func (r *SQLiteUserRepository) Create(ctx context.Context, user *domain.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO users (first_name, last_name, email, phone, password_hash, newsletter, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.FirstName, user.LastName, user.Email, user.Phone, user.PasswordHash, user.Newsletter, user.CreatedAt.UnixNano(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.ErrEmailTaken
		}
		r.log.WithFields(logrus.Fields{
			"email": user.Email,
			"error": err,
		}).Error("Failed to create user")
		return fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting user ID: %w", err)
	}
	user.ID = id
	return nil
}

// GetByEmail retrieves a user by email
func (r *SQLiteUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, "email = ?", email)
}

// GetByID retrieves a user by its ID
func (r *SQLiteUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getOne(ctx, "id = ?", id)
}

func (r *SQLiteUserRepository) getOne(ctx context.Context, where string, arg interface{}) (*domain.User, error) {
	var user domain.User
	var createdAt int64

	err := r.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, email, phone, password_hash, newsletter, created_at
		FROM users WHERE `+where, arg,
	).Scan(&user.ID, &user.FirstName, &user.LastName, &user.Email, &user.Phone, &user.PasswordHash, &user.Newsletter, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}

	user.CreatedAt = time.Unix(0, createdAt).UTC()
	return &user, nil
}
