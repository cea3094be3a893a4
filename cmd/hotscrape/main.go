package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jonboulle/clockwork"

	"github.com/ripta/hotscrape/internal/config"
	"github.com/ripta/hotscrape/internal/fault"
	"github.com/ripta/hotscrape/internal/handlers"
	"github.com/ripta/hotscrape/internal/registry"
	"github.com/ripta/hotscrape/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	initLogger(cfg.LogLevel)

	injector := fault.NewInjector()

	reg, err := registry.Settings{
		OnDemandCollectors: collectors(cfg, injector),
	}.Resolve()
	if err != nil {
		slog.Error("failed to resolve registry", "error", err)
		os.Exit(1)
	}

	srv := server.New(cfg, reg)

	healthHandlers := handlers.NewHealthHandlers(srv.Lifecycle())
	healthHandlers.Register(srv.Mux())

	adminHandlers := handlers.NewAdminHandlers(cfg.AdminToken, injector, cfg)
	adminHandlers.Register(srv.Mux())

	slog.Info("hotscrape starting",
		"port", cfg.Port,
		"log_level", cfg.LogLevel,
		"metrics_path", cfg.MetricsPath,
		"namespace", cfg.Namespace,
		"textfile_dir", cfg.TextfileDir,
		"collectors", reg.OnDemandCount(),
	)

	if err := srv.Run(context.Background()); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// collectors returns the on-demand collectors for the default registry. The
// slice is never nil, so the library defaults are not added on top.
func collectors(cfg *config.Config, injector *fault.Injector) []registry.OnDemandCollector {
	cs := []registry.OnDemandCollector{injector}
	if cfg.RuntimeStats {
		cs = append(cs, registry.NewRuntimeCollector(cfg.Namespace, clockwork.NewRealClock()))
	}
	if cfg.TextfileDir != "" {
		cs = append(cs, registry.NewTextfileCollector(cfg.TextfileDir))
	}
	return cs
}

func initLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}
