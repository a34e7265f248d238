package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/livercare-risk-server/internal/database"
	"github.com/livercare-risk-server/internal/domain"
	"github.com/livercare-risk-server/internal/health"
	"github.com/livercare-risk-server/internal/history"
	"github.com/livercare-risk-server/internal/repository"
)

// storage bundles the repositories of one database driver
type storage struct {
	users   domain.UserRepository
	blog    domain.BlogRepository
	history history.Store
	closers []func()
}

func (s *storage) Close() {
	if s.history != nil {
		s.history.Close()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStorage opens the configured database, registers its health check and
// seeds the blog when asked to.
func openStorage(ctx context.Context, configManager domain.ConfigManager, checker *health.Checker, logger *logrus.Logger) (*storage, error) {
	cfg := configManager.GetDatabaseConfig()

	var (
		s   *storage
		err error
	)
	switch cfg.Driver {
	case "postgres":
		s, err = openPostgres(ctx, configManager, checker, logger)
	default:
		s, err = openSQLite(cfg.Path, checker, logger)
	}
	if err != nil {
		return nil, err
	}

	if cfg.SeedBlog {
		n, err := s.blog.SeedIfEmpty(ctx, domain.SampleBlogPosts)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to seed blog: %w", err)
		}
		if n > 0 {
			logger.WithField("posts", n).Info("Sample blog posts inserted")
		}
	}
	return s, nil
}

func openSQLite(path string, checker *health.Checker, logger *logrus.Logger) (*storage, error) {
	db, err := database.OpenSQLite(path)
	if err != nil {
		return nil, err
	}

	store, err := history.NewSQLiteStore(path)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}

	checker.Register(health.SQLCheck("database", db))
	logger.WithField("path", path).Info("Using SQLite database")

	return &storage{
		users:   repository.NewSQLiteUserRepository(db, logger),
		blog:    repository.NewSQLiteBlogRepository(db, logger),
		history: store,
		closers: []func(){func() { db.Close() }},
	}, nil
}

func openPostgres(ctx context.Context, configManager domain.ConfigManager, checker *health.Checker, logger *logrus.Logger) (*storage, error) {
	databaseURL := configManager.GetDatabaseURL()

	runner, err := database.NewMigrationRunner(databaseURL, logger)
	if err != nil {
		return nil, err
	}
	err = runner.Up(ctx)
	runner.Close()
	if err != nil {
		return nil, err
	}

	conn, err := database.NewConnection(ctx, database.ConfigFromDomain(*configManager.GetDatabaseConfig()), logger)
	if err != nil {
		return nil, err
	}

	store, err := history.NewPostgresStoreFromURL(databaseURL, *configManager.GetDatabaseConfig())
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}

	checker.Register(health.PoolCheck("database", conn.Pool))

	return &storage{
		users:   repository.NewUserRepository(conn.Pool, logger),
		blog:    repository.NewBlogRepository(conn.Pool, logger),
		history: store,
		closers: []func(){func() {
			stats := conn.Stats()
			logger.WithFields(logrus.Fields{
				"acquired_conns": stats.AcquiredConns(),
				"total_conns":    stats.TotalConns(),
			}).Debug("Closing database pool")
			conn.Close()
		}},
	}, nil
}
