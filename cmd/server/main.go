package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/gradebook/internal/config"
	"github.com/JonMunkholm/gradebook/internal/core"
	"github.com/JonMunkholm/gradebook/internal/logging"
	"github.com/JonMunkholm/gradebook/internal/store"
	"github.com/JonMunkholm/gradebook/internal/watch"
	"github.com/JonMunkholm/gradebook/internal/web"
)

func main() {
	configPath := flag.String("config", os.Getenv("GRADEBOOK_CONFIG"), "optional TOML config file")
	flag.Parse()

	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"driver", cfg.Database.Driver,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"cache_list_ttl", cfg.Cache.ListTTL,
		"watch_dir", cfg.Watch.Dir,
	)

	ctx := context.Background()
	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open store", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	slog.Info("store ready", "driver", cfg.Database.Driver)

	service := core.NewService(st, cfg)
	server := web.NewServer(service, cfg)

	// Background jobs stop before the server drains.
	jobCtx, cancelJobs := context.WithCancel(ctx)
	watchDone := make(chan struct{})
	if cfg.Watch.Dir != "" {
		go func() {
			defer close(watchDone)
			if err := watch.New(cfg.Watch.Dir, cfg.Watch.Debounce, service).Run(jobCtx); err != nil {
				slog.Error("drop directory watcher stopped", "error", err)
			}
		}()
	} else {
		close(watchDone)
	}

	// Graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		select {
		case <-watchDone:
		case <-shutdownCtx.Done():
		}

		// Wait for active imports to complete (with timeout)
		if status := service.ImportLimiterStatus(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := service.WaitForImports(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		cancelJobs()
		st.Close(ctx)
		os.Exit(1)
	}

	<-stopped
	if err := st.Close(context.Background()); err != nil {
		slog.Error("close store", "error", err)
	}
	slog.Info("server stopped")
}
