// Package api exposes the shadow analysis engine over HTTP/JSON.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sunfield/sunfield/internal/auth"
	"github.com/sunfield/sunfield/internal/exposure"
	"github.com/sunfield/sunfield/internal/health"
	"github.com/sunfield/sunfield/internal/metrics"
	"github.com/sunfield/sunfield/internal/mqtt"
	"github.com/sunfield/sunfield/internal/storage"
)

// Deps holds the server's collaborators and tuning knobs.
type Deps struct {
	Engine             *exposure.Engine
	DB                 *storage.Database
	Publisher          *mqtt.Publisher
	Auth               auth.Config
	TrustProxy         bool
	SampleStep         time.Duration
	MaxConcurrentGrids int
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	engine     *exposure.Engine
	db         *storage.Database
	publisher  *mqtt.Publisher
	limiter    *gridLimiter
	trustProxy bool
	sampleStep time.Duration
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, logger *slog.Logger, deps Deps) *Server {
	maxGrids := deps.MaxConcurrentGrids
	if maxGrids < 1 {
		maxGrids = 2
	}
	s := &Server{
		logger:     logger,
		engine:     deps.Engine,
		db:         deps.DB,
		publisher:  deps.Publisher,
		limiter:    newGridLimiter(maxGrids),
		trustProxy: deps.TrustProxy,
		sampleStep: deps.SampleStep,
	}
	if s.sampleStep <= 0 {
		s.sampleStep = 10 * time.Minute
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(deps.DB.Ping))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/solar/position", s.handleSolarPosition)
	mux.HandleFunc("GET /api/v1/solar/times", s.handleSunTimes)
	mux.HandleFunc("POST /api/v1/shade/daily", s.handleDailyShade)
	mux.HandleFunc("POST /api/v1/exposure/grid", s.handleExposureGrid)

	mux.HandleFunc("POST /api/v1/zones", s.handleCreateZone)
	mux.HandleFunc("GET /api/v1/zones", s.handleListZones)
	mux.HandleFunc("GET /api/v1/zones/{id}", s.handleGetZone)
	mux.HandleFunc("DELETE /api/v1/zones/{id}", s.handleDeleteZone)
	mux.HandleFunc("POST /api/v1/zones/{id}/analyze", s.handleAnalyzeZone)
	mux.HandleFunc("GET /api/v1/zones/{id}/history", s.handleZoneHistory)

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(deps.Auth)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second, // grid computations can run long
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the server's root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
