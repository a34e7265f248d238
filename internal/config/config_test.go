package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livercare-risk-server/internal/domain"
)

func TestNewManager_Defaults(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)

	cfg := m.GetConfig()
	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "script", cfg.Prediction.Mode)
	assert.Equal(t, 5*time.Second, cfg.Prediction.Timeout)
	assert.Equal(t, 50, cfg.History.DefaultLimit)
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, m.IsDevelopment())
	assert.False(t, m.IsProduction())
	assert.NoError(t, m.Validate())
}

func TestNewManager_EnvironmentOverrides(t *testing.T) {
	t.Setenv("LIVERCARE_SERVER_PORT", "9090")
	t.Setenv("LIVERCARE_PREDICTION_MODE", "http")
	t.Setenv("LIVERCARE_PREDICTION_BASE_URL", "http://model:8000")
	t.Setenv("LIVERCARE_PREDICTION_TIMEOUT", "2s")
	t.Setenv("LIVERCARE_DATABASE_DRIVER", "postgres")
	t.Setenv("LIVERCARE_LOGGING_LEVEL", "debug")

	m, err := NewManager()
	require.NoError(t, err)

	cfg := m.GetConfig()
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "http", m.GetPredictionConfig().Mode)
	assert.Equal(t, "http://model:8000", cfg.Prediction.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Prediction.Timeout)
	assert.Equal(t, "postgres", m.GetDatabaseConfig().Driver)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.NoError(t, m.Validate())
}

func TestManager_Validate(t *testing.T) {
	base := func() *domain.Config {
		m, err := NewManager()
		require.NoError(t, err)
		cfg := *m.GetConfig()
		return &cfg
	}

	tests := []struct {
		name    string
		mutate  func(cfg *domain.Config)
		wantErr string
	}{
		{
			name:    "invalid port",
			mutate:  func(cfg *domain.Config) { cfg.Server.Port = 70000 },
			wantErr: "invalid server port",
		},
		{
			name:    "unknown driver",
			mutate:  func(cfg *domain.Config) { cfg.Database.Driver = "mysql" },
			wantErr: "unsupported database driver",
		},
		{
			name:    "unknown prediction mode",
			mutate:  func(cfg *domain.Config) { cfg.Prediction.Mode = "grpc" },
			wantErr: "unsupported prediction mode",
		},
		{
			name: "http mode without url",
			mutate: func(cfg *domain.Config) {
				cfg.Prediction.Mode = "http"
				cfg.Prediction.BaseURL = ""
			},
			wantErr: "prediction base URL is required",
		},
		{
			name:    "zero timeout",
			mutate:  func(cfg *domain.Config) { cfg.Prediction.Timeout = 0 },
			wantErr: "prediction timeout must be positive",
		},
		{
			name:    "production without secret",
			mutate:  func(cfg *domain.Config) { cfg.Environment = "production" },
			wantErr: "auth.jwt_secret is required",
		},
		{
			name:    "bad log level",
			mutate:  func(cfg *domain.Config) { cfg.Logging.Level = "verbose" },
			wantErr: "invalid log level",
		},
		{
			name:    "history limits",
			mutate:  func(cfg *domain.Config) { cfg.History.MaxLimit = 10 },
			wantErr: "invalid history limits",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)

			err := NewManagerFromConfig(cfg).Validate()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestManager_ConnectionStrings(t *testing.T) {
	m := NewManagerFromConfig(&domain.Config{
		Database: domain.DatabaseConfig{
			Host:     "db",
			Port:     5432,
			Database: "livercare",
			Username: "app",
			Password: "p@ss",
			SSLMode:  "disable",
		},
		Cache: domain.CacheConfig{RedisURL: "redis://cache:6379/0"},
	})

	assert.Equal(t, "host=db port=5432 user=app password=p@ss dbname=livercare sslmode=disable", m.GetDatabaseConnectionString())
	assert.Equal(t, "postgres://app:p%40ss@db:5432/livercare?sslmode=disable", m.GetDatabaseURL())
	assert.Equal(t, "redis://cache:6379/0", m.GetRedisConnectionString())
}
