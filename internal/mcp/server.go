// Package mcp exposes liver risk assessment, detection history and the
// liver health assistant as Model Context Protocol tools over stdio.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/livercare-risk-server/internal/config"
	"github.com/livercare-risk-server/internal/domain"
	"github.com/livercare-risk-server/internal/history"
	"github.com/livercare-risk-server/internal/logging"
	"github.com/livercare-risk-server/internal/service"
	"github.com/livercare-risk-server/pkg/external"
)

const (
	serverName    = "livercare-risk-server"
	serverVersion = "v0.1.0"
)

// Server is a standalone MCP server backed by SQLite history and an
// optional external prediction model.
type Server struct {
	config    *config.LiteConfig
	mcpServer *mcp.Server
	gateway   *service.PredictionGateway
	history   history.Store
	chatbot   *service.Chatbot
	predictor domain.Predictor
	noise     service.NoiseSource
	tools     []string
	logger    *logrus.Logger
}

// Option is a functional option for Server.
type Option func(*Server) error

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// WithHistoryStore sets a custom history store instead of the SQLite file in the data dir.
func WithHistoryStore(store history.Store) Option {
	return func(s *Server) error {
		s.history = store
		return nil
	}
}

// WithPredictor sets the external model instead of building one from config.
func WithPredictor(p domain.Predictor) Option {
	return func(s *Server) error {
		s.predictor = p
		return nil
	}
}

// WithNoiseSource pins the scorer and chatbot randomness.
func WithNoiseSource(source service.NoiseSource) Option {
	return func(s *Server) error {
		s.noise = source
		return nil
	}
}

// NewLiteServer creates an MCP server that needs no external services.
func NewLiteServer(cfg *config.LiteConfig, opts ...Option) (*Server, error) {
	server := &Server{config: cfg}

	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.logger == nil {
		logger, err := logging.NewLogger(domain.LoggingConfig{
			Level:  cfg.LogLevel,
			Format: cfg.LogFormat,
			Output: "stderr",
		})
		if err != nil {
			return nil, err
		}
		server.logger = logger
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	if server.history == nil {
		store, err := history.NewSQLiteStore(cfg.HistoryDBPath())
		if err != nil {
			return nil, fmt.Errorf("failed to create history store: %w", err)
		}
		server.history = store
	}

	if server.predictor == nil {
		predictor, err := external.NewPredictor(domain.PredictionConfig{
			Mode:       cfg.PredictionMode,
			BaseURL:    cfg.PredictionURL,
			PythonPath: cfg.PythonPath,
			ScriptPath: cfg.PredictionScript,
			Timeout:    cfg.PredictionTimeout,
		}, external.NewMemoryPredictionCache(cfg.CacheMaxItems, cfg.CacheTTL), server.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create predictor: %w", err)
		}
		server.predictor = predictor
	}

	gatewayOpts := []service.GatewayOption{service.WithTimeout(cfg.PredictionTimeout)}
	if server.predictor != nil {
		gatewayOpts = append(gatewayOpts, service.WithPredictor(server.predictor))
	}
	server.gateway = service.NewPredictionGateway(server.logger, service.NewRiskScorer(server.noise), gatewayOpts...)
	server.chatbot = service.NewChatbot(server.noise)

	server.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, nil)
	server.registerTools()

	server.logger.WithFields(logrus.Fields{
		"tools":           server.tools,
		"prediction_mode": cfg.PredictionMode,
		"data_dir":        cfg.DataDir,
	}).Info("MCP server initialized")
	return server, nil
}

// Tools lists the registered tool names in registration order.
func (s *Server) Tools() []string {
	return append([]string(nil), s.tools...)
}

// Start serves MCP over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting LiverCare MCP server on stdio")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Close releases the history store.
func (s *Server) Close() error {
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close history store")
			return err
		}
	}
	return nil
}
