// Package app assembles the document store, broker and services shared by
// the api, worker and siteadmin binaries.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/minndara/site-admin/config"
	"github.com/minndara/site-admin/internal/repository"
	"github.com/minndara/site-admin/internal/repository/memory"
	"github.com/minndara/site-admin/internal/repository/postgres"
	"github.com/minndara/site-admin/internal/service/catalog"
	"github.com/minndara/site-admin/internal/service/event"
	"github.com/minndara/site-admin/internal/service/public"
	"github.com/minndara/site-admin/internal/service/settings"
	"github.com/minndara/site-admin/pkg/logger"
	"github.com/minndara/site-admin/pkg/messaging"
	"github.com/minndara/site-admin/pkg/messaging/redis"
	"github.com/minndara/site-admin/pkg/metrics"
)

type App struct {
	Config  *config.Config
	Logger  *logger.Logger
	Metrics *metrics.Metrics

	// DB is nil when the memory store is configured.
	DB     *sqlx.DB
	Store  repository.DocumentStore
	Broker messaging.Broker
	Events *event.Service

	Catalog  *catalog.Service
	Settings *settings.Service
	Public   *public.Service
}

// NewLogger builds the process logger from the log section of cfg.
func NewLogger(cfg *config.Config) *logger.Logger {
	return logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		JSON:       cfg.Log.JSON,
	})
}

// New connects the store and the broker and builds the services on top of
// them. Metrics are registered on reg when monitoring is enabled.
func New(cfg *config.Config, log *logger.Logger, reg prometheus.Registerer) (*App, error) {
	a := &App{Config: cfg, Logger: log}

	if cfg.Monitoring.PrometheusEnabled {
		a.Metrics = metrics.NewMetrics(cfg.Monitoring.Namespace, reg)
	}

	switch cfg.Database.Driver {
	case "memory":
		log.Warn("using the in-memory document store, data is lost on restart")
		a.Store = memory.NewDocumentStore()
	default:
		db, err := postgres.NewDB(cfg.Database)
		if err != nil {
			return nil, err
		}
		a.DB = db
		a.Store = postgres.NewDocumentRepository(postgres.NewBaseRepository(db))
	}
	a.Store = repository.Instrument(a.Store, a.Metrics)

	if cfg.Redis.URL != "" {
		broker, err := redis.NewRedisBroker(cfg.Redis.ToBrokerConfig(), log.ZL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Broker = broker
	} else {
		log.Info("no redis url configured, change events stay in process")
		a.Broker = messaging.NewLocalBroker()
	}

	a.Events = event.NewService(a.Broker, log, a.Metrics)
	a.Catalog = catalog.NewService(a.Store, catalog.Config{
		DefaultCategory: cfg.Catalog.DefaultCategory,
		MigrateOrphans:  cfg.Catalog.MigrateOrphans,
		MoveRetries:     cfg.Catalog.MoveRetries,
	}, a.Events, log, a.Metrics)
	a.Settings = settings.NewService(a.Store, a.Events, log)
	a.Public = public.NewService(a.Catalog, a.Settings, public.Config{
		CacheTTL:        cfg.Public.CacheTTL,
		DefaultCategory: cfg.Catalog.DefaultCategory,
		Categories:      cfg.Public.Categories,
	}, log, a.Metrics)

	return a, nil
}

// EnsureSchema creates the postgres tables. It is a no-op for the memory store.
func (a *App) EnsureSchema(ctx context.Context) error {
	if a.DB == nil {
		return nil
	}
	return postgres.EnsureSchema(ctx, a.DB)
}

// InvalidatePublicCache keeps the public read cache in step with change
// events until ctx is done.
func (a *App) InvalidatePublicCache(ctx context.Context) error {
	if err := event.Subscribe(ctx, a.Broker, a.Logger, a.Public.Invalidate); err != nil {
		return fmt.Errorf("failed to subscribe public cache: %w", err)
	}
	return nil
}

func (a *App) Close() {
	if a.Broker != nil {
		if err := a.Broker.Close(); err != nil {
			a.Logger.Error(err, "failed to close broker")
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error(err, "failed to close database")
		}
	}
}
