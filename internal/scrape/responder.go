// Package scrape serves the metrics endpoint: it decides whether a request is
// a scrape, negotiates the output format, collects a snapshot, and writes
// either the encoded snapshot or a 503.
package scrape

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ripta/hotscrape/internal/exposition"
	"github.com/ripta/hotscrape/internal/metrics"
	"github.com/ripta/hotscrape/internal/registry"
)

// DefaultPath is where scrapes are served unless configured otherwise.
const DefaultPath = "/metrics"

const errorContentType = "text/plain; charset=utf-8"

// MetricsSource produces the snapshot for one scrape. *registry.Registry
// satisfies it.
type MetricsSource interface {
	CollectAll(ctx context.Context) (registry.Snapshot, error)
}

// SourceFunc adapts a function to MetricsSource.
type SourceFunc func(ctx context.Context) (registry.Snapshot, error)

func (f SourceFunc) CollectAll(ctx context.Context) (registry.Snapshot, error) {
	return f(ctx)
}

// RouteMatcher reports whether a request is a scrape.
type RouteMatcher func(r *http.Request) bool

// ExactPath matches requests whose path is exactly path.
func ExactPath(path string) RouteMatcher {
	return func(r *http.Request) bool {
		return r.URL.Path == path
	}
}

// EmptyPath matches requests whose remaining path is empty or whitespace,
// which is what a responder mounted under http.StripPrefix sees for the
// prefix itself.
func EmptyPath() RouteMatcher {
	return func(r *http.Request) bool {
		return strings.TrimSpace(r.URL.Path) == ""
	}
}

// Options configures a Responder. The zero value serves DefaultPath with no
// timeout and no self-instrumentation.
type Options struct {
	// Match selects scrape requests (default: ExactPath(DefaultPath))
	Match RouteMatcher
	// Timeout bounds collection; zero leaves it to the request context
	Timeout time.Duration
	// Metrics records scrape outcomes when non-nil
	Metrics *metrics.Scrape
	// Clock measures scrape duration (default: real clock)
	Clock clockwork.Clock
}

// Responder is an http middleware that answers scrapes and forwards every
// other request untouched. It holds no per-request state and serves
// concurrent scrapes without coordination.
type Responder struct {
	src     MetricsSource
	match   RouteMatcher
	timeout time.Duration
	metrics *metrics.Scrape
	clock   clockwork.Clock
}

// New creates a Responder reading from src.
func New(src MetricsSource, opts Options) *Responder {
	s := &Responder{
		src:     src,
		match:   opts.Match,
		timeout: opts.Timeout,
		metrics: opts.Metrics,
		clock:   opts.Clock,
	}
	if s.match == nil {
		s.match = ExactPath(DefaultPath)
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	return s
}

// Middleware answers scrapes and passes everything else to next.
func (s *Responder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.match(r) {
			next.ServeHTTP(w, r)
			return
		}
		s.serveScrape(w, r)
	})
}

// ServeHTTP lets the Responder stand alone; non-scrape requests get a 404.
func (s *Responder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Middleware(http.NotFoundHandler()).ServeHTTP(w, r)
}

func (s *Responder) serveScrape(w http.ResponseWriter, r *http.Request) {
	start := s.clock.Now()

	// The format is fixed before anything is written.
	format := exposition.NegotiateHeader(r.Header)

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	snap, err := s.src.CollectAll(ctx)
	if err != nil {
		s.writeFailure(w, r, err)
		s.metrics.Observe(metrics.OutcomeFailure, s.clock.Since(start).Seconds())
		return
	}

	w.Header().Set("Content-Type", string(format))
	w.WriteHeader(http.StatusOK)
	if err := exposition.Encode(w, snap, format); err != nil {
		slog.Warn("failed to write metrics response", "error", err, "format", string(format))
	}

	s.metrics.Observe(metrics.OutcomeSuccess, s.clock.Since(start).Seconds())
}

func (s *Responder) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	msg := err.Error()
	var se *registry.ScrapeError
	if errors.As(err, &se) {
		msg = se.Message
	}

	slog.Warn("metrics collection failed", "error", err, "path", r.URL.Path)

	w.Header().Set("Content-Type", errorContentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusServiceUnavailable)
	if strings.TrimSpace(msg) == "" {
		return
	}
	if _, err := io.WriteString(w, msg); err != nil {
		slog.Warn("failed to write scrape failure response", "error", err)
	}
}
