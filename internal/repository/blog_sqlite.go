package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/livercare-risk-server/internal/domain"
)

// SQLiteBlogRepository serves blog posts from the single-node SQLite database
type SQLiteBlogRepository struct {
	db  *sql.DB
	log *logrus.Logger
}

// NewSQLiteBlogRepository creates a blog repository on a database opened with database.OpenSQLite
func NewSQLiteBlogRepository(db *sql.DB, logger *logrus.Logger) *SQLiteBlogRepository {
	return &SQLiteBlogRepository{db: db, log: logger}
}

const blogColumns = `id, title, excerpt, content, category, author, image_url, read_time, created_at`

// List returns posts newest first. An empty category or "all" lists every post.
func (r *SQLiteBlogRepository) List(ctx context.Context, category string) ([]*domain.BlogPost, error) {
	query := `SELECT ` + blogColumns + ` FROM blog_posts`
	args := []interface{}{}
	if filterCategory(category) {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing blog posts: %w", err)
	}
	defer rows.Close()

	posts := make([]*domain.BlogPost, 0)
	for rows.Next() {
		p, err := scanSQLitePost(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning blog post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// Get retrieves a post by its ID
func (r *SQLiteBlogRepository) Get(ctx context.Context, id int64) (*domain.BlogPost, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+blogColumns+` FROM blog_posts WHERE id = ?`, id)
	p, err := scanSQLitePost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("post not found: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting blog post: %w", err)
	}
	return p, nil
}

// SeedIfEmpty inserts posts when the table has none and returns how many were inserted.
func (r *SQLiteBlogRepository) SeedIfEmpty(ctx context.Context, posts []domain.BlogPost) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer tx.Rollback()

	var count int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM blog_posts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting blog posts: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	for i, p := range posts {
		createdAt := now.Add(-time.Duration(i) * time.Second)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO blog_posts (title, excerpt, content, category, author, image_url, read_time, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.Title, p.Excerpt, p.Content, p.Category, p.Author, p.ImageURL, p.ReadTime, createdAt.UnixNano(),
		); err != nil {
			return 0, fmt.Errorf("inserting blog post: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing seed: %w", err)
	}

	r.log.WithField("posts", len(posts)).Info("Seeded blog posts")
	return len(posts), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLitePost(s rowScanner) (*domain.BlogPost, error) {
	var p domain.BlogPost
	var createdAt int64
	if err := s.Scan(&p.ID, &p.Title, &p.Excerpt, &p.Content, &p.Category, &p.Author, &p.ImageURL, &p.ReadTime, &createdAt); err != nil {
		return nil, err
	}
	p.CreatedAt = time.Unix(0, createdAt).UTC()
	return &p, nil
}
