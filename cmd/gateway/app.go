package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/payportal/authgw/internal/audit"
	"github.com/payportal/authgw/internal/auth"
	"github.com/payportal/authgw/internal/config"
	"github.com/payportal/authgw/internal/observability"
	"github.com/payportal/authgw/internal/password"
	"github.com/payportal/authgw/internal/ratelimit"
	ratelimitstore "github.com/payportal/authgw/internal/ratelimit/store"
	"github.com/payportal/authgw/internal/server"
	"github.com/payportal/authgw/internal/store"
	"github.com/payportal/authgw/internal/token"
)

// shutdownTimeout bounds graceful shutdown of both listeners.
const shutdownTimeout = 30 * time.Second

// application holds the wired gateway components.
type application struct {
	cfg       *config.Config
	logger    observability.Logger
	server    *server.Server
	metrics   *http.Server
	principal store.Store
	audit     audit.Logger
}

// buildApplication wires the credential store, the rate limiter, the auth
// service, and the HTTP server from configuration.
func buildApplication(cfg *config.Config, logger observability.Logger) (*application, error) {
	principals, err := buildPrincipalStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	tokens, err := token.NewManager([]byte(cfg.Auth.SigningKey),
		token.WithTTL(cfg.Auth.TokenTTL.Duration()),
		token.WithIssuer(cfg.Auth.Issuer),
	)
	if err != nil {
		return nil, fmt.Errorf("token manager: %w", err)
	}

	limiter, err := buildLimiter(cfg, logger)
	if err != nil {
		return nil, err
	}

	auditLogger, err := audit.NewLogger(&cfg.Audit, audit.WithLoggerLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("audit logger: %w", err)
	}

	service := auth.NewService(
		principals,
		password.NewHasher(password.WithCost(cfg.Auth.BcryptCost)),
		tokens,
		auth.WithServiceLogger(logger),
		auth.WithAuditLogger(auditLogger),
	)

	srv := server.New(&server.Config{
		Address:        cfg.Server.Address,
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout.Duration(),
		WriteTimeout:   cfg.Server.WriteTimeout.Duration(),
		IdleTimeout:    cfg.Server.IdleTimeout.Duration(),
		MaxHeaderBytes: 1 << 20,
		MaxBodySize:    cfg.Server.MaxBodySize,
		TrustedProxies: cfg.Server.TrustedProxies,
	}, service,
		server.WithLimiter(limiter),
		server.WithLogger(logger),
		server.WithAudit(auditLogger),
	)

	app := &application{
		cfg:       cfg,
		logger:    logger,
		server:    srv,
		principal: principals,
		audit:     auditLogger,
	}

	if cfg.Metrics.Enabled {
		app.metrics = buildMetricsServer(cfg)
	}

	return app, nil
}

// buildPrincipalStore creates the credential store for the configured
// backend.
func buildPrincipalStore(cfg *config.Config, logger observability.Logger) (store.Store, error) {
	if cfg.Storage.Backend == config.BackendRedis {
		s, err := store.NewRedisStore(&store.RedisConfig{
			Address:     cfg.Storage.Redis.Address,
			Password:    cfg.Storage.Redis.Password,
			DB:          cfg.Storage.Redis.DB,
			DialTimeout: cfg.Storage.Redis.DialTimeout.Duration(),
			Logger:      logger,
		})
		if err != nil {
			return nil, fmt.Errorf("redis credential store: %w", err)
		}
		return s, nil
	}

	return store.NewMemoryStore(), nil
}

// buildLimiter creates the rate limiter. With the redis backend the window
// counters live in Redis so the budget holds across instances.
func buildLimiter(cfg *config.Config, logger observability.Logger) (ratelimit.Limiter, error) {
	if !cfg.RateLimit.Enabled {
		return ratelimit.NewNoopLimiter(), nil
	}

	opts := []ratelimit.FixedWindowOption{
		ratelimit.WithLogger(logger),
	}

	if cfg.Storage.Backend == config.BackendRedis {
		counters, err := ratelimitstore.NewRedisStore(&ratelimitstore.RedisConfig{
			Address:     cfg.Storage.Redis.Address,
			Password:    cfg.Storage.Redis.Password,
			DB:          cfg.Storage.Redis.DB,
			DialTimeout: cfg.Storage.Redis.DialTimeout.Duration(),
			Logger:      logger,
		})
		if err != nil {
			return nil, fmt.Errorf("redis counter store: %w", err)
		}
		opts = append(opts, ratelimit.WithStore(counters))
	}

	return ratelimit.NewFixedWindowLimiter(
		cfg.RateLimit.Requests,
		cfg.RateLimit.Window.Duration(),
		opts...,
	), nil
}

// buildMetricsServer creates the Prometheus metrics listener.
func buildMetricsServer(cfg *config.Config) *http.Server {
	path := cfg.Metrics.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Metrics.Address, cfg.Metrics.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Run starts the listeners and blocks until a termination signal arrives,
// then shuts down gracefully.
func (a *application) Run() {
	errCh := make(chan error, 2)

	go func() {
		if err := a.server.Start(context.Background()); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if a.metrics != nil {
		a.logger.Info("starting metrics server",
			observability.String("address", a.metrics.Addr),
		)
		go func() {
			if err := a.metrics.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info("received signal, shutting down",
			observability.String("signal", sig.String()),
		)
	case err := <-errCh:
		a.logger.Error("listener failed", observability.Error(err))
	}

	a.shutdown()
}

// shutdown stops the listeners and closes the stores.
func (a *application) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Stop(ctx); err != nil {
		a.logger.Error("failed to stop HTTP server", observability.Error(err))
	}

	if a.metrics != nil {
		if err := a.metrics.Shutdown(ctx); err != nil {
			a.logger.Error("failed to stop metrics server", observability.Error(err))
		}
	}

	if err := a.principal.Close(); err != nil {
		a.logger.Error("failed to close credential store", observability.Error(err))
	}

	if err := a.audit.Close(); err != nil {
		a.logger.Error("failed to close audit logger", observability.Error(err))
	}

	a.logger.Info("shutdown complete")
}
