package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/livercare-risk-server/internal/domain"
)

// BlogRepository serves blog posts from PostgreSQL
type BlogRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewBlogRepository creates a new blog repository
func NewBlogRepository(db *pgxpool.Pool, logger *logrus.Logger) *BlogRepository {
	return &BlogRepository{
		db:  db,
		log: logger,
	}
}

// List returns posts newest first. An empty category or "all" lists every post.
func (r *BlogRepository) List(ctx context.Context, category string) ([]*domain.BlogPost, error) {
	query := `
		SELECT id, title, excerpt, content, category, author, image_url, read_time, created_at
		FROM blog_posts`
	args := []interface{}{}
	if filterCategory(category) {
		query += ` WHERE category = $1`
		args = append(args, category)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"category": category,
			"error":    err,
		}).Error("Failed to list blog posts")
		return nil, fmt.Errorf("listing blog posts: %w", err)
	}
	defer rows.Close()

	posts := make([]*domain.BlogPost, 0)
	for rows.Next() {
		var p domain.BlogPost
		if err := rows.Scan(&p.ID, &p.Title, &p.Excerpt, &p.Content, &p.Category, &p.Author, &p.ImageURL, &p.ReadTime, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning blog post: %w", err)
		}
		posts = append(posts, &p)
	}
	return posts, rows.Err()
}

// Get retrieves a post by its ID
func (r *BlogRepository) Get(ctx context.Context, id int64) (*domain.BlogPost, error) {
	query := `
		SELECT id, title, excerpt, content, category, author, image_url, read_time, created_at
		FROM blog_posts
		WHERE id = $1`

	var p domain.BlogPost
	err := r.db.QueryRow(ctx, query, id).Scan(&p.ID, &p.Title, &p.Excerpt, &p.Content, &p.Category, &p.Author, &p.ImageURL, &p.ReadTime, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("post not found: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting blog post: %w", err)
	}
	return &p, nil
}

// SeedIfEmpty inserts posts when the table has none and returns how many were inserted.
func (r *BlogRepository) SeedIfEmpty(ctx context.Context, posts []domain.BlogPost) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var count int64
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM blog_posts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting blog posts: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	now := time.Now().UTC()
	for i, p := range posts {
		// Later posts in the list are treated as older.
		createdAt := now.Add(-time.Duration(i) * time.Second)
		batch.Queue(`
			INSERT INTO blog_posts (title, excerpt, content, category, author, image_url, read_time, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			p.Title, p.Excerpt, p.Content, p.Category, p.Author, p.ImageURL, p.ReadTime, createdAt)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("inserting blog posts: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing seed: %w", err)
	}

	r.log.WithField("posts", len(posts)).Info("Seeded blog posts")
	return len(posts), nil
}

func filterCategory(category string) bool {
	return category != "" && category != domain.BlogCategoryAll
}
