package server

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/ripta/hotscrape/internal/metrics"
)

// responseWriter records the status a handler chose, including the 503 of a
// failed scrape, for logs and request metrics.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Logging emits one line per request.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration", time.Since(start),
			"remote", r.RemoteAddr,
		)
	})
}

// Recovery turns a handler panic into a JSON 500.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("panic recovered",
					"error", err,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				http.Error(w, `{"error":"internal server error","code":"INTERNAL_ERROR"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// RequestTracking holds shutdown until each request finishes.
func RequestTracking(lc *Lifecycle) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			done := lc.TrackRequest()
			defer done()
			next.ServeHTTP(w, r)
		})
	}
}

// DrainCheck answers 503 once the lifecycle is draining with
// DrainImmediately set.
func DrainCheck(lc *Lifecycle) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if lc.ShouldRejectRequest() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				if _, err := w.Write([]byte(`{"error":"server is shutting down","code":"SHUTTING_DOWN"}`)); err != nil {
					slog.Warn("failed to write drain response", "error", err)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Metrics returns middleware that records request metrics in m. metricsPath
// is reported as its own endpoint label.
func Metrics(m *metrics.HTTP, metricsPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.InFlightRequests.Inc()
			defer m.InFlightRequests.Dec()

			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			endpoint := normalizeEndpoint(r.URL.Path, metricsPath)
			status := strconv.Itoa(rw.statusCode)

			m.RequestsTotal.WithLabelValues(endpoint, status).Inc()
			m.RequestDuration.WithLabelValues(endpoint).Observe(duration)
		})
	}
}

// normalizeEndpoint bounds the endpoint label to the routes this server
// serves; anything else is "unknown".
func normalizeEndpoint(path, metricsPath string) string {
	switch {
	case path == metricsPath:
		return metricsPath
	case path == "/healthz":
		return "/healthz"
	case path == "/readyz":
		return "/readyz"
	case strings.HasPrefix(path, "/admin/"):
		return "/admin/*"
	default:
		return "unknown"
	}
}

// Chain wraps h so the first middleware runs first.
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
