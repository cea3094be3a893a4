package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ripta/hotscrape/internal/config"
	"github.com/ripta/hotscrape/internal/metrics"
	"github.com/ripta/hotscrape/internal/registry"
	"github.com/ripta/hotscrape/internal/scrape"
)

// Server is the main HTTP server for hotscrape.
type Server struct {
	cfg         *config.Config
	lifecycle   *Lifecycle
	httpServer  *http.Server
	mux         *http.ServeMux
	responder   *scrape.Responder
	httpMetrics *metrics.HTTP
}

// New creates a Server that serves scrapes of reg. The server's own request
// and scrape metrics, and its lifecycle gauges, are registered on reg.
func New(cfg *config.Config, reg *registry.Registry) *Server {
	lc := NewLifecycle(cfg.ShutdownDelay, cfg.ShutdownTimeout, cfg.DrainImmediately)
	reg.RegisterOnDemand(lc.Collector(cfg.Namespace))

	responder := scrape.New(reg, scrape.Options{
		Match:   scrape.ExactPath(cfg.MetricsPath),
		Timeout: cfg.ScrapeTimeout,
		Metrics: metrics.NewScrape(reg.Registerer(), cfg.Namespace),
	})

	return &Server{
		cfg:         cfg,
		lifecycle:   lc,
		mux:         http.NewServeMux(),
		responder:   responder,
		httpMetrics: metrics.NewHTTP(reg.Registerer(), cfg.Namespace),
	}
}

// Lifecycle returns the server's lifecycle manager.
func (s *Server) Lifecycle() *Lifecycle {
	return s.lifecycle
}

// Mux returns the server's ServeMux for registering routes. Requests for the
// metrics path never reach it.
func (s *Server) Mux() *http.ServeMux {
	return s.mux
}

// Handler returns the full middleware chain. The scrape responder sits
// innermost and forwards everything that is not a scrape to the mux.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.mux
	handler = Chain(handler,
		DrainCheck(s.lifecycle),
		RequestTracking(s.lifecycle),
		Metrics(s.httpMetrics, s.cfg.MetricsPath),
		Recovery,
		Logging,
		s.responder.Middleware,
	)

	if s.cfg.RequestTimeout > 0 {
		handler = http.TimeoutHandler(handler, s.cfg.RequestTimeout, `{"error":"request timeout exceeded","code":"OPERATION_TIMEOUT"}`)
	}
	return handler
}

// Run starts the server and blocks until shutdown signal is received.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", s.cfg.Port, "metrics_path", s.cfg.MetricsPath)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout+s.cfg.ShutdownDelay+5*time.Second)
	defer cancel()

	return s.shutdown(shutdownCtx)
}

// shutdown runs the lifecycle shutdown (pre-stop delay, then drain) while the
// listener is still open, so /readyz can report 503 and DrainCheck can reject
// requests during the delay. Only then is the listener closed.
func (s *Server) shutdown(ctx context.Context) error {
	if err := s.lifecycle.Shutdown(ctx); err != nil {
		slog.Warn("lifecycle shutdown interrupted", "error", err)
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	return nil
}
