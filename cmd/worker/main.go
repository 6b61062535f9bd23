package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/minndara/site-admin/config"
	"github.com/minndara/site-admin/internal/app"
	"github.com/minndara/site-admin/internal/service/event"
	"github.com/minndara/site-admin/internal/worker"
)

const healthAddr = ":8081"

func setupHealthCheck(a *app.App, registry *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if a.DB != nil {
			if err := a.DB.PingContext(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: healthAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health check server failed")
			os.Exit(1)
		}
	}()
	return srv
}

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger := app.NewLogger(cfg)
	log.Logger = logger.ZL

	registry := prometheus.NewRegistry()
	a, err := app.New(cfg, logger, registry)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise services")
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exporter := worker.NewExportWorker(a.Public, worker.ExportConfig{
		Dir:        cfg.Public.ExportDir,
		Categories: cfg.Public.Categories,
		Schedule:   cfg.Worker.Schedule,
	}, logger, a.Metrics)

	// Change events drop the read cache first, then queue an export.
	if err := event.Subscribe(ctx, a.Broker, logger, func(ev event.ServiceChanged) {
		a.Public.Invalidate(ev)
		exporter.Notify(ev)
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe to change events")
	}

	srv := setupHealthCheck(a, registry)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("shutting down...")
		cancel()
	}()

	if err := exporter.Run(ctx, worker.TriggerStartup); err != nil {
		log.Warn().Err(err).Msg("initial export failed")
	}

	log.Info().
		Str("schedule", cfg.Worker.Schedule).
		Str("dir", cfg.Public.ExportDir).
		Msg(fmt.Sprintf("export worker started, health on %s", healthAddr))
	if err := exporter.Start(ctx); err != nil {
		log.Error().Err(err).Msg("export worker stopped")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
