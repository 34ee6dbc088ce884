package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	domainErrors "github.com/davidleathers/workflow-insights-backend/internal/domain/errors"
	"github.com/davidleathers/workflow-insights-backend/internal/infrastructure/auth"
	"github.com/davidleathers/workflow-insights-backend/internal/infrastructure/config"
	"github.com/davidleathers/workflow-insights-backend/internal/metrics"
	"github.com/davidleathers/workflow-insights-backend/internal/service/accounts"
	"github.com/davidleathers/workflow-insights-backend/internal/service/reporting"
)

// SocketServer upgrades a request into a live subscription for one account
type SocketServer interface {
	Serve(w http.ResponseWriter, r *http.Request, accountID uuid.UUID)
}

// Dependencies are the collaborators the API needs
type Dependencies struct {
	Accounts accounts.Service
	Reports  reporting.Service
	Tokens   auth.Service
	Hub      SocketServer

	// Optional
	Registry       *metrics.Registry
	MetricsHandler http.Handler
	HealthCheckers map[string]HealthChecker
	Logger         *slog.Logger
	// Outer middlewares wrap the built-in chain, first outermost
	Outer []Middleware
}

// Server is the HTTP API
type Server struct {
	cfg        *config.Config
	deps       Dependencies
	logger     *slog.Logger
	limiter    *rateLimiter
	mux        *http.ServeMux
	handler    http.Handler
	httpServer *http.Server
}

// NewServer wires routes and middleware
func NewServer(cfg *config.Config, deps Dependencies) (*Server, error) {
	if cfg == nil {
		return nil, domainErrors.NewConfigError("NIL_CONFIG", "config cannot be nil")
	}
	if deps.Accounts == nil || deps.Reports == nil || deps.Tokens == nil {
		return nil, domainErrors.NewConfigError("MISSING_DEPENDENCY", "accounts, reports and tokens are required")
	}
	if deps.Hub == nil {
		return nil, domainErrors.NewConfigError("MISSING_DEPENDENCY", "websocket hub is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:     cfg,
		deps:    deps,
		logger:  logger,
		limiter: newRateLimiter(
			float64(cfg.Security.RateLimit.RequestsPerSecond),
			cfg.Security.RateLimit.BurstSize,
			cfg.Server.TrustProxyHeaders,
		),
	}
	s.mux = s.setupRoutes()

	middlewares := append([]Middleware{}, deps.Outer...)
	middlewares = append(middlewares,
		recoveryMiddleware(logger),
		requestIDMiddleware,
		loggingMiddleware(logger),
		metricsMiddleware(deps.Registry, s.routeOf),
		corsMiddleware(cfg.Server.CORSOrigins),
		ConditionalMiddleware(s.limiter.middleware, isAPIEndpoint),
		ConditionalMiddleware(authMiddleware(deps.Tokens), requiresAuth),
	)
	s.handler = Chain(s.mux, middlewares...)

	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        s.handler,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    2 * cfg.Server.ReadTimeout,
		MaxHeaderBytes: 1 << 20,
	}
	return s, nil
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.deps.MetricsHandler != nil {
		mux.Handle("GET /metrics", s.deps.MetricsHandler)
	}
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	mux.HandleFunc("POST /api/v1/auth/signup", s.handleSignUp)
	mux.HandleFunc("POST /api/v1/auth/signin", s.handleSignIn)
	mux.HandleFunc("POST /api/v1/uploads", s.handleUpload)
	mux.HandleFunc("GET /api/v1/reports", s.handleGetReport)
	mux.HandleFunc("GET /api/v1/reports/{section}", s.handleGetSection)

	return mux
}

// Handler returns the fully wrapped handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting API server",
		"address", s.httpServer.Addr,
		"environment", s.cfg.Environment,
	)

	limiterCtx, stopLimiter := context.WithCancel(ctx)
	defer stopLimiter()
	go s.limiter.run(limiterCtx)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.logger.Info("shutdown requested")
		return s.Shutdown()
	}
}

// Shutdown drains in-flight requests within the configured timeout
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("failed to shutdown server", "error", err)
		return err
	}
	s.logger.Info("server shutdown complete")
	return nil
}

// routeOf labels a request by its mux pattern so metrics stay low-cardinality
func (s *Server) routeOf(r *http.Request) string {
	_, pattern := s.mux.Handler(r)
	if pattern == "" {
		return "unmatched"
	}
	return pattern
}

func requiresAuth(r *http.Request) bool {
	if r.Method == http.MethodOptions {
		return false
	}
	switch r.URL.Path {
	case "/api/v1/auth/signup", "/api/v1/auth/signin":
		return false
	case "/ws":
		return true
	}
	return isAPIEndpoint(r)
}

func isAPIEndpoint(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}

// ConditionalMiddleware applies mw only when condition holds
func ConditionalMiddleware(mw Middleware, condition func(*http.Request) bool) Middleware {
	return func(next http.Handler) http.Handler {
		wrapped := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if condition(r) {
				wrapped.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
