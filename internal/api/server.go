// Package api provides the HTTP REST API for portscope. It serves the scan
// and cancel endpoints, health and version endpoints, Prometheus metrics and
// the Swagger UI.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/anstrom/portscope/docs/swagger" // Import generated swagger docs
	"github.com/anstrom/portscope/internal/api/handlers"
	"github.com/anstrom/portscope/internal/api/middleware"
	"github.com/anstrom/portscope/internal/config"
	"github.com/anstrom/portscope/internal/logging"
	"github.com/anstrom/portscope/internal/metrics"
)

// Dependencies are the collaborators the API server is wired to.
type Dependencies struct {
	// Scanner runs, cancels and lists scans. Required.
	Scanner handlers.ScanService

	// Metrics backs the /metrics endpoint and the request middleware.
	// Nil disables both.
	Metrics *metrics.PrometheusMetrics

	// Registry is pinged by the health endpoint. Nil when the in-memory
	// registry is used.
	Registry handlers.Pinger

	// Logger defaults to the logging package default.
	Logger *slog.Logger
}

// Server represents the API server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	handler    http.Handler
	config     *config.Config
	deps       Dependencies
	logger     *slog.Logger
	startTime  time.Time

	mu       sync.Mutex
	listener net.Listener
}

// New creates a new API server instance.
func New(cfg *config.Config, deps Dependencies) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Scanner == nil {
		return nil, fmt.Errorf("scanner is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.Default().Logger
	}
	logger = logger.With("component", "api")

	server := &Server{
		router:    mux.NewRouter(),
		config:    cfg,
		deps:      deps,
		logger:    logger,
		startTime: time.Now(),
	}

	server.setupRoutes()
	server.handler = server.setupMiddleware()

	server.httpServer = &http.Server{
		Addr:              cfg.GetAPIAddress(),
		Handler:           server.handler,
		ReadTimeout:       cfg.API.ReadTimeout,
		ReadHeaderTimeout: cfg.API.ReadTimeout,
		WriteTimeout:      cfg.API.WriteTimeout,
		IdleTimeout:       cfg.API.IdleTimeout,
	}

	return server, nil
}

// Start listens on the configured address and serves until ctx is done or
// the server fails. It returns nil after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.listener != nil {
		s.mu.Unlock()
		return fmt.Errorf("API server is already running on %s", s.listener.Addr())
	}
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("Starting API server",
		"address", listener.Addr().String(),
		"read_timeout", s.httpServer.ReadTimeout,
		"write_timeout", s.httpServer.WriteTimeout)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("API server failed: %w", err)
			return
		}
		errChan <- nil
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errChan:
		return err
	}
}

// Stop gracefully stops the API server. Stopping a server that is not
// running is a no-op.
func (s *Server) Stop() error {
	s.mu.Lock()
	running := s.listener != nil
	s.listener = nil
	s.mu.Unlock()

	if !running {
		return nil
	}

	s.logger.Info("Stopping API server")

	timeout := s.config.API.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("API server shutdown error", "error", err)
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("API server stopped successfully")
	return nil
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	scanHandler := handlers.NewScanHandler(s.deps.Scanner, s.logger, handlers.ScanHandlerConfig{
		MaxThreads:     s.config.Scanning.MaxThreads,
		MaxRequestSize: s.config.API.MaxRequestSize,
		DefaultTimeout: s.config.Scanning.DefaultTimeout,
		DefaultThreads: s.config.Scanning.DefaultThreads,
	})
	healthHandler := handlers.NewHealthHandler(s.deps.Registry, s.deps.Scanner, s.logger)

	// Scan endpoints
	s.router.HandleFunc("/api/scan", scanHandler.StartScan).Methods("POST")
	s.router.HandleFunc("/api/scan/cancel", scanHandler.CancelScan).Methods("POST")
	s.router.HandleFunc("/api/scan/active", scanHandler.ActiveScans).Methods("GET")

	// Health and status endpoints
	system := s.router.PathPrefix("/api/v1").Subrouter()
	system.HandleFunc("/liveness", healthHandler.Liveness).Methods("GET")
	system.HandleFunc("/health", healthHandler.Health).Methods("GET")
	system.HandleFunc("/status", healthHandler.Status).Methods("GET")
	system.HandleFunc("/version", healthHandler.Version).Methods("GET")

	if s.deps.Metrics != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.deps.Metrics.GetRegistry(), promhttp.HandlerOpts{
			ErrorLog: slog.NewLogLogger(s.logger.Handler(), slog.LevelError),
		})).Methods("GET")
	}

	// Swagger documentation endpoints
	s.router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("none"),
	))

	// Documentation aliases
	s.router.HandleFunc("/docs", s.redirectToSwagger).Methods("GET")
	s.router.HandleFunc("/docs/", s.redirectToSwagger).Methods("GET")

	s.router.HandleFunc("/", s.apiIndex).Methods("GET")
}

// setupMiddleware wraps the router in the middleware chain. CORS sits
// outside the router so preflight requests to POST-only routes are answered.
func (s *Server) setupMiddleware() http.Handler {
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Recovery(s.logger))
	if s.config.Logging.RequestLogging {
		s.router.Use(middleware.Logging(s.logger))
	}
	if s.deps.Metrics != nil {
		s.router.Use(middleware.Metrics(s.deps.Metrics))
	}
	s.router.Use(middleware.SecurityHeaders())
	s.router.Use(middleware.ContentType())
	s.router.Use(middleware.RequestTimeout(s.config.API.RequestTimeout))
	s.router.Use(middleware.Compression())

	var handler http.Handler = s.router
	if cors := s.config.API.CORS; cors.Enabled {
		handler = middleware.CORS(cors.AllowedOrigins, cors.AllowedHeaders, cors.AllowedMethods)(handler)
	}
	return handler
}

// apiIndex lists the service endpoints.
func (s *Server) apiIndex(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"service": "portscope",
		"endpoints": map[string]string{
			"scan":     "POST /api/scan",
			"cancel":   "POST /api/scan/cancel",
			"active":   "GET /api/scan/active",
			"liveness": "GET /api/v1/liveness",
			"health":   "GET /api/v1/health",
			"version":  "GET /api/v1/version",
			"docs":     "/swagger/",
		},
		"uptime":    time.Since(s.startTime).Round(time.Second).String(),
		"timestamp": time.Now().UTC(),
	}
	if s.deps.Metrics != nil {
		response["endpoints"].(map[string]string)["metrics"] = "GET /metrics"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("Failed to encode index response", "error", err)
	}
}

// redirectToSwagger redirects to the Swagger UI.
func (s *Server) redirectToSwagger(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// GetRouter returns the configured router.
func (s *Server) GetRouter() *mux.Router {
	return s.router
}

// GetAddress returns the address the server listens on, or the configured
// address before Start.
func (s *Server) GetAddress() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// IsRunning reports whether Start has bound a listener that has not been
// stopped.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener != nil
}
