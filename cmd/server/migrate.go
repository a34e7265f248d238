package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/livercare-risk-server/internal/database"
	"github.com/livercare-risk-server/internal/domain"
)

// runMigrate handles "migrate up|down|version" against the configured PostgreSQL database.
func runMigrate(ctx context.Context, configManager domain.ConfigManager, logger *logrus.Logger, args []string) error {
	if configManager.GetDatabaseConfig().Driver != "postgres" {
		return fmt.Errorf("migrations apply to the postgres driver only; SQLite creates its schema on open")
	}

	action := "up"
	if len(args) > 0 {
		action = args[0]
	}

	runner, err := database.NewMigrationRunner(configManager.GetDatabaseURL(), logger)
	if err != nil {
		return err
	}
	defer runner.Close()

	switch action {
	case "up":
		return runner.Up(ctx)
	case "down":
		return runner.Down(ctx)
	case "version":
		version, dirty, err := runner.Version()
		if err != nil {
			return err
		}
		logger.WithFields(logrus.Fields{"version": version, "dirty": dirty}).Info("Migration version")
		return nil
	default:
		return fmt.Errorf("unknown migrate action %q (want up, down or version)", action)
	}
}
