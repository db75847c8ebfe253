package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mikelady/showcase/internal/auth"
	"github.com/mikelady/showcase/internal/handlers"
	"github.com/mikelady/showcase/internal/metrics"
)

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// RouterConfig wires the API handlers into a Router.
type RouterConfig struct {
	Publications *handlers.PublicationsHandler

	// Photos is optional; photo routes answer 503 without it.
	Photos *handlers.PhotosHandler

	Tokens auth.TokenValidator

	// Health is optional; /healthz only reports liveness without it.
	Health HealthChecker

	Logger *zap.Logger
}

// Router is the HTTP entry point of the API.
type Router struct {
	mux     *http.ServeMux
	handler http.Handler
	config  RouterConfig
	logger  *zap.Logger
}

// NewRouter builds the route table.
func NewRouter(config RouterConfig) *Router {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Router{
		mux:    http.NewServeMux(),
		config: config,
		logger: logger,
	}
	r.setupRoutes()
	r.handler = r.recoverer(r.instrument(r.mux))
	return r
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

func (r *Router) setupRoutes() {
	r.mux.HandleFunc("GET /healthz", r.handleHealth)
	r.mux.Handle("GET /metrics", promhttp.Handler())

	pub := r.config.Publications
	if pub != nil {
		r.mux.Handle("POST /api/v1/publications", r.protect(pub.Create))
		r.mux.Handle("POST /api/v1/publications/manual", r.protect(pub.CreateManual))
		r.mux.Handle("GET /api/v1/publications", r.protect(pub.List))
		r.mux.Handle("GET /api/v1/publications/credentials", r.protect(pub.Credentials))
		r.mux.Handle("GET /api/v1/publications/{id}", r.protect(pub.Get))
		r.mux.Handle("DELETE /api/v1/publications/{id}", r.protect(pub.Remove))
		r.mux.Handle("POST /api/v1/publications/{id}/confirm", r.protect(pub.Confirm))
		r.mux.Handle("POST /api/v1/publications/{id}/fail", r.protect(pub.Fail))
		r.mux.Handle("POST /api/v1/publications/{id}/takedown", r.protect(pub.Takedown))
		r.mux.Handle("POST /api/v1/publications/{id}/restore", r.protect(pub.Restore))
	}

	upload := http.HandlerFunc(photoStorageDisabled)
	if r.config.Photos != nil {
		upload = r.config.Photos.Upload
	}
	r.mux.Handle("POST /api/v1/orders/{id}/photos/{kind}", r.protect(upload))
}

// protect requires a valid bearer token.
func (r *Router) protect(h http.HandlerFunc) http.Handler {
	return auth.JWTMiddleware(r.config.Tokens)(h)
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	if r.config.Health != nil {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := r.config.Health.Ping(ctx); err != nil {
			r.logger.Warn("health check failed", zap.Error(err))
			writeEnvelope(w, http.StatusServiceUnavailable, "fail", "database unreachable", nil)
			return
		}
	}
	writeEnvelope(w, http.StatusOK, "success", "ok", nil)
}

func photoStorageDisabled(w http.ResponseWriter, _ *http.Request) {
	writeEnvelope(w, http.StatusServiceUnavailable, "fail", "photo storage is not configured", nil)
}

func writeEnvelope(w http.ResponseWriter, code int, status, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"message": message,
		"status":  status,
		"code":    code,
		"data":    data,
	})
}

// =============================================================================
// Middleware
// =============================================================================

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// instrument logs each request and records request metrics by route pattern.
func (r *Router) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, req)

		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		route := req.Pattern
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)

		metrics.HTTPRequestsTotal.WithLabelValues(req.Method, route, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPRequestDurationSeconds.WithLabelValues(req.Method, route).Observe(elapsed.Seconds())

		if route == "GET /healthz" || route == "GET /metrics" {
			return
		}
		r.logger.Info("request",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.String("route", route),
			zap.Int("status", rec.status),
			zap.Duration("duration", elapsed),
		)
	})
}

// recoverer turns handler panics into 500 responses.
func (r *Router) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				r.logger.Error("handler panic",
					zap.Any("panic", v),
					zap.String("method", req.Method),
					zap.String("path", req.URL.Path),
					zap.Stack("stack"),
				)
				writeEnvelope(w, http.StatusInternalServerError, "fail", "internal server error", nil)
			}
		}()
		next.ServeHTTP(w, req)
	})
}
