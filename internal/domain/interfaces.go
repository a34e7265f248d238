package domain

import (
	"context"
)

// Predictor is the external prediction collaborator. Implementations return
// ErrPredictionUnavailable (wrapped) for every kind of failure.
type Predictor interface {
	Predict(ctx context.Context, input PatientInput) (*ModelPrediction, error)
}

// UserRepository persists accounts
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
}

// BlogRepository serves blog posts
type BlogRepository interface {
	List(ctx context.Context, category string) ([]*BlogPost, error)
	Get(ctx context.Context, id int64) (*BlogPost, error)
	SeedIfEmpty(ctx context.Context, posts []BlogPost) (int, error)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetPredictionConfig() *PredictionConfig
	GetServerConfig() *ServerConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetDatabaseURL() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
