package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/xiaofan33/vueuse/pkg/middleware"
	"github.com/xiaofan33/vueuse/pkg/remote"
	"github.com/xiaofan33/vueuse/pkg/storage"
)

// serveConfig is read from the environment; flags override it.
type serveConfig struct {
	Addr            string        `env:"VUEUSE_KV_ADDR" envDefault:":8575"`
	File            string        `env:"VUEUSE_KV_FILE" envDefault:"vueuse-kv.json"`
	PollInterval    time.Duration `env:"VUEUSE_KV_POLL_INTERVAL" envDefault:"1s"`
	Metrics         bool          `env:"VUEUSE_KV_METRICS" envDefault:"true"`
	ShutdownTimeout time.Duration `env:"VUEUSE_KV_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func serveCmd() *cobra.Command {
	var addr, file string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a hub sharing a file-backed store over HTTP",
		Long: `Serve runs a hub: a small HTTP server exposing a JSON file store.
Processes connect with the remote client backend and their bindings stay
synchronized through the hub's WebSocket event stream.

Configuration comes from VUEUSE_KV_* environment variables; the --addr
and --file flags take precedence.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg serveConfig
			if err := env.Parse(&cfg); err != nil {
				return fmt.Errorf("parse env: %w", err)
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if file != "" {
				cfg.File = file
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (overrides VUEUSE_KV_ADDR)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Path of the JSON store (overrides VUEUSE_KV_FILE)")
	return cmd
}

func runServe(cfg serveConfig) error {
	logger := slog.Default().With("component", "serve")

	fileStore, err := storage.NewFileStorage(cfg.File,
		storage.WithPollInterval(cfg.PollInterval))
	if err != nil {
		return err
	}
	defer fileStore.Close()

	var store storage.Storage = fileStore
	if cfg.Metrics {
		store = middleware.InstrumentStorage(store,
			middleware.WithBackendLabel("file"))
	}

	hub := remote.NewHub(store, nil)
	defer hub.Close()

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	if cfg.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}
	r.Mount("/", hub.Handler())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("hub listening", "addr", cfg.Addr, "file", cfg.File)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
