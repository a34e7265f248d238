package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/livercare-risk-server/internal/auth"
	"github.com/livercare-risk-server/internal/domain"
	"github.com/livercare-risk-server/internal/events"
	"github.com/livercare-risk-server/internal/health"
	"github.com/livercare-risk-server/internal/history"
	"github.com/livercare-risk-server/internal/metrics"
	"github.com/livercare-risk-server/internal/middleware"
	"github.com/livercare-risk-server/internal/service"
)

const defaultShutdownTimeout = 30 * time.Second

// Dependencies are the collaborators the HTTP handlers call into
type Dependencies struct {
	Gateway  *service.PredictionGateway
	Accounts *service.AccountService
	Tokens   *auth.TokenService
	History  history.Store
	Blog     domain.BlogRepository
	Chatbot  *service.Chatbot
	Events   events.Publisher
	Metrics  *metrics.Metrics
	Health   *health.Checker
	Logger   *logrus.Logger
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	deps          Dependencies
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, deps Dependencies) (*Server, error) {
	if deps.Gateway == nil || deps.Accounts == nil || deps.Tokens == nil || deps.History == nil {
		return nil, errors.New("api: gateway, accounts, tokens and history are required")
	}
	if deps.Blog == nil || deps.Chatbot == nil {
		return nil, errors.New("api: blog repository and chatbot are required")
	}
	if deps.Events == nil {
		deps.Events = events.NoopPublisher{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	if deps.Health == nil {
		deps.Health = health.NewChecker("", 0, deps.Logger)
	}

	cfg := configManager.GetConfig()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.CorrelationID())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(deps.Metrics.Middleware())
	router.Use(middleware.AuditLogger(deps.Logger))
	router.Use(middleware.RateLimit(cfg.Server.RequestsPerSecond, cfg.Server.Burst))

	server := &Server{
		configManager: configManager,
		deps:          deps,
		router:        router,
	}

	server.setupRoutes()

	return server, nil
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.deps.Logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.deps.Logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))

	requireAuth := auth.RequireAuth(s.deps.Tokens)
	optionalAuth := auth.OptionalAuth(s.deps.Tokens)

	api := s.router.Group("/api")
	{
		api.POST("/register", s.handleRegister)
		api.POST("/login", s.handleLogin)
		api.GET("/user/:id", s.handleGetUser)

		api.POST("/predict", s.handlePredict)
		api.POST("/assess", optionalAuth, s.handleAssess)
		api.POST("/report", s.handleReport)

		detection := api.Group("/detection", requireAuth)
		{
			detection.POST("", s.handleSaveDetection)
			detection.GET("/history/:userId", s.handleHistory)
			detection.GET("/history/:userId/export", s.handleHistoryExport)
		}

		api.GET("/blog/posts", s.handleListPosts)
		api.GET("/blog/posts/:id", s.handleGetPost)

		api.POST("/chat", s.handleChat)
		api.GET("/chat/ws", s.handleChatSocket)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	status := s.deps.Health.Run(c.Request.Context())
	code := http.StatusOK
	if !status.Healthy() {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

// respondError maps service errors onto the JSON error envelope.
func (s *Server) respondError(c *gin.Context, err error, notFoundMessage string) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		middleware.Abort(c, http.StatusBadRequest, domain.ErrValidation, ve.Message)
	case errors.Is(err, domain.ErrNotFound):
		middleware.Abort(c, http.StatusNotFound, domain.ErrNotFoundCode, notFoundMessage)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		middleware.Abort(c, http.StatusServiceUnavailable, domain.ErrInternalServer, "Request cancelled")
	default:
		s.deps.Logger.WithError(err).WithField(middleware.CorrelationIDKey, c.GetString(middleware.CorrelationIDKey)).
			Error("Request failed")
		middleware.Abort(c, http.StatusInternalServerError, domain.ErrInternalServer, "Internal server error")
	}
}
