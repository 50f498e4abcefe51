package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/faucetdb/licensed/internal/handler"
	"github.com/faucetdb/licensed/internal/license"
	"github.com/faucetdb/licensed/internal/mcp"
	"github.com/faucetdb/licensed/internal/metrics"
	"github.com/faucetdb/licensed/internal/server/middleware"
	"github.com/faucetdb/licensed/internal/service"
	"github.com/faucetdb/licensed/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	// TokenTTL is the lifetime of admin session tokens.
	TokenTTL time.Duration
	// ValidatePerMinute limits validation requests per client IP; zero
	// disables the limit.
	ValidatePerMinute int
	// AdminPerMinute limits admin API requests per client IP.
	AdminPerMinute int
	Version        string
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:              "0.0.0.0",
		Port:              8080,
		ShutdownTimeout:   30 * time.Second,
		CORSOrigins:       []string{"*"},
		TokenTTL:          24 * time.Hour,
		ValidatePerMinute: 60,
		AdminPerMinute:    600,
		Version:           "dev",
	}
}

// Deps are the services the server routes requests to. Metrics may be nil,
// in which case /metrics is not mounted.
type Deps struct {
	Store     *store.Store
	Auth      *service.AuthService
	Generator *license.Generator
	Engine    *license.Engine
	Gateway   *license.Gateway
	Metrics   *metrics.Metrics
}

// Server is the top-level HTTP server. It owns the chi router and the
// services behind it.
type Server struct {
	cfg        Config
	deps       Deps
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	if s.deps.Metrics != nil {
		r.Use(middleware.Metrics(s.deps.Metrics))
	}
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5))

	// --- Health checks (no auth required) ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	}
	r.Get("/openapi.json", handler.NewOpenAPIHandler(s.cfg.Version).ServeSpec)

	// --- Public validation endpoint ---
	validateHandler := handler.NewValidateHandler(s.deps.Engine, s.logger)
	r.Group(func(r chi.Router) {
		r.Use(middleware.ValidateRateLimit(s.cfg.ValidatePerMinute))
		r.Post("/validate", validateHandler.Validate)
		// Path used by deployed clients of the original PHP endpoint.
		r.Post("/validate.php", validateHandler.Validate)
	})

	// --- Admin API ---
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(s.cfg.AdminPerMinute))

		r.Route("/system", func(r chi.Router) {
			sysHandler := handler.NewSystemHandler(s.deps.Store, s.deps.Auth, s.cfg.TokenTTL)

			// Session endpoints are unauthenticated (login) or self-authenticated (logout)
			r.Post("/admin/session", sysHandler.Login)
			r.Delete("/admin/session", sysHandler.Logout)

			// Account and key management needs an interactive admin session;
			// API keys cannot mint other keys.
			r.Group(func(r chi.Router) {
				r.Use(middleware.Authenticate(s.deps.Auth))
				r.Use(middleware.RequireSession())

				r.Get("/admin", sysHandler.ListAdmins)
				r.Post("/admin", sysHandler.CreateAdmin)

				r.Get("/api-key", sysHandler.ListAPIKeys)
				r.Post("/api-key", sysHandler.CreateAPIKey)
				r.Delete("/api-key/{keyId}", sysHandler.RevokeAPIKey)
			})
		})

		r.Route("/license", func(r chi.Router) {
			r.Use(middleware.Authenticate(s.deps.Auth))

			licHandler := handler.NewLicenseHandler(s.deps.Generator, s.deps.Gateway, s.deps.Engine, s.logger)

			r.Get("/codes", licHandler.ListCodes)
			r.Get("/bindings", licHandler.ListBindings)
			r.Get("/hardware/{hardwareId}", licHandler.GetHardware)
			r.Get("/stats", licHandler.Stats)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin())

				r.Post("/codes", licHandler.GenerateCodes)
				r.Delete("/codes/{codeId}", licHandler.DeleteCode)
				r.Delete("/bindings/{bindingId}", licHandler.DeleteBinding)
				r.Delete("/hardware/{hardwareId}", licHandler.DeleteHardware)
			})
		})
	})

	// --- MCP over Streamable HTTP ---
	mcpServer := mcp.NewMCPServer(s.deps.Generator, s.deps.Gateway, s.deps.Engine, s.cfg.Version, s.logger)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(s.deps.Auth))
		r.Use(middleware.RequireAdmin())
		r.Handle("/mcp", mcpServer.Handler())
	})

	s.router = r
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. Returns 200 when the license database
// answers a ping, 503 otherwise.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK
	checks := map[string]string{}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.deps.Store.Ping(ctx); err != nil {
		checks["database"] = "error: " + err.Error()
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"driver": s.deps.Store.Driver(),
		"checks": checks,
	})
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests before closing the database.
func (s *Server) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if err := s.deps.Store.Close(); err != nil {
		s.logger.Warn("closing database", "error", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
