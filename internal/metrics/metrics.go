package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sunfield_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sunfield_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	gridDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sunfield_grid_duration_seconds",
			Help:    "Exposure grid computation duration in seconds.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	gridCellsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sunfield_grid_cells_computed_total",
			Help: "Total number of grid cells sampled.",
		},
	)

	gridCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sunfield_grid_cache_hits_total",
			Help: "Exposure grid cache hits.",
		},
	)

	gridCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sunfield_grid_cache_misses_total",
			Help: "Exposure grid cache misses.",
		},
	)

	shadeAnalysesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sunfield_shade_analyses_total",
			Help: "Total number of daily shade analyses computed.",
		},
	)

	engineWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sunfield_engine_workers",
			Help: "Configured exposure engine worker count.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(gridDurationSeconds)
	prometheus.MustRegister(gridCellsTotal)
	prometheus.MustRegister(gridCacheHits)
	prometheus.MustRegister(gridCacheMisses)
	prometheus.MustRegister(shadeAnalysesTotal)
	prometheus.MustRegister(engineWorkers)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordGrid records a completed grid computation.
func RecordGrid(duration time.Duration, cells int) {
	gridDurationSeconds.Observe(duration.Seconds())
	gridCellsTotal.Add(float64(cells))
}

// IncGridCacheHit increments the grid cache hit counter.
func IncGridCacheHit() { gridCacheHits.Inc() }

// IncGridCacheMiss increments the grid cache miss counter.
func IncGridCacheMiss() { gridCacheMisses.Inc() }

// IncShadeAnalysis increments the daily shade analysis counter.
func IncShadeAnalysis() { shadeAnalysesTotal.Inc() }

// SetEngineWorkers publishes the configured worker count.
func SetEngineWorkers(n int) { engineWorkers.Set(float64(n)) }

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// knownRoutes are the fixed paths exposed by the API. Anything else is
// collapsed so scrapes and bots cannot inflate label cardinality.
var knownRoutes = map[string]bool{
	"/":                      true,
	"/healthz":               true,
	"/readyz":                true,
	"/metrics":               true,
	"/api/v1/solar/position": true,
	"/api/v1/solar/times":    true,
	"/api/v1/shade/daily":    true,
	"/api/v1/exposure/grid":  true,
	"/api/v1/zones":          true,
}

// normalizeRoute maps a request path to a bounded set of route labels.
// Per-zone paths carry a UUID segment and collapse to a parameterized
// label.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}

	if rest, ok := strings.CutPrefix(path, "/api/v1/zones/"); ok {
		switch {
		case strings.HasSuffix(rest, "/analyze"):
			return "/api/v1/zones/{id}/analyze"
		case strings.HasSuffix(rest, "/history"):
			return "/api/v1/zones/{id}/history"
		case !strings.Contains(rest, "/"):
			return "/api/v1/zones/{id}"
		}
	}

	return "other"
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
