// Package server provides the HTTP server for the auth gateway.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/payportal/authgw/internal/audit"
	"github.com/payportal/authgw/internal/auth"
	"github.com/payportal/authgw/internal/middleware"
	"github.com/payportal/authgw/internal/observability"
	"github.com/payportal/authgw/internal/ratelimit"
)

// ginModeOnce ensures gin.SetMode is only called once to avoid race conditions
var ginModeOnce sync.Once

// Config holds configuration for the HTTP server.
type Config struct {
	Address        string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int

	// MaxBodySize is the maximum allowed request body size in bytes.
	MaxBodySize int64

	// TrustedProxies lists proxy CIDRs whose forwarding headers are honored
	// for client IP extraction. Empty disables proxy trust.
	TrustedProxies []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Address:        "",
		Port:           5000,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		MaxBodySize:    middleware.DefaultMaxBodySize,
	}
}

// Server is the HTTP front end: it owns the gin engine, the middleware
// chain, and the route table, and delegates all auth semantics to the
// service layer.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	service    *auth.Service
	limiter    ratelimit.Limiter
	logger     observability.Logger
	audit      audit.Logger
	config     *Config
	mu         sync.Mutex
	running    bool
}

// Option is a functional option for the server.
type Option func(*Server)

// WithLimiter sets the rate limiter guarding the API routes.
func WithLimiter(limiter ratelimit.Limiter) Option {
	return func(s *Server) {
		if limiter != nil {
			s.limiter = limiter
		}
	}
}

// WithLogger sets the logger for the server.
func WithLogger(logger observability.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAudit sets the audit trail for throttling decisions.
func WithAudit(auditLogger audit.Logger) Option {
	return func(s *Server) {
		if auditLogger != nil {
			s.audit = auditLogger
		}
	}
}

// New creates an HTTP server serving the auth API.
func New(config *Config, service *auth.Service, opts ...Option) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	s := &Server{
		engine:  gin.New(),
		service: service,
		limiter: ratelimit.NewNoopLimiter(),
		logger:  observability.NopLogger(),
		audit:   audit.NewNoopLogger(),
		config:  config,
	}

	for _, opt := range opts {
		opt(s)
	}

	if len(config.TrustedProxies) > 0 {
		// gin falls back to trusting everything on error, so surface it.
		if err := s.engine.SetTrustedProxies(config.TrustedProxies); err != nil {
			s.logger.Warn("invalid trusted proxy list",
				observability.Error(err),
			)
		}
	} else {
		_ = s.engine.SetTrustedProxies(nil)
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware installs the middleware chain. Order matters: recovery
// outermost, then request identity and logging, then the request guards.
func (s *Server) setupMiddleware() {
	s.engine.Use(
		middleware.Recovery(s.logger),
		middleware.RequestID(),
		middleware.Logging(s.logger),
		middleware.SecurityHeaders(),
		middleware.RateLimitWithConfig(middleware.RateLimitConfig{
			Limiter: s.limiter,
			KeyFunc: ratelimit.NewClientIPExtractor(s.config.TrustedProxies).Extract,
			Logger:  s.logger,
			Audit:   s.audit,
		}),
		middleware.BodyLimit(s.config.MaxBodySize),
	)
}

// setupRoutes installs the route table.
func (s *Server) setupRoutes() {
	api := s.engine.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", s.handleRegister)
			authGroup.POST("/login", s.handleLogin)
			authGroup.GET("/me", s.handleMe)
		}

		api.GET("/health", s.handleHealth)
	}

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
	})
}

// Handler returns the engine as an http.Handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}

	addr := fmt.Sprintf("%s:%d", s.config.Address, s.config.Port)

	s.httpServer = &http.Server{
		Addr:           addr,
		Handler:        s.engine,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}

	s.running = true
	s.mu.Unlock()

	s.logger.Info("starting HTTP server",
		observability.String("address", addr),
		observability.Duration("readTimeout", s.config.ReadTimeout),
		observability.Duration("writeTimeout", s.config.WriteTimeout),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Stop stops the HTTP server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("stopping HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
