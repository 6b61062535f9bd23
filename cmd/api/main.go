package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/minndara/site-admin/config"
	"github.com/minndara/site-admin/internal/app"
	authhandler "github.com/minndara/site-admin/internal/handler/auth"
	"github.com/minndara/site-admin/internal/handler/health"
	"github.com/minndara/site-admin/internal/handler/prometheus"
	publichandler "github.com/minndara/site-admin/internal/handler/public"
	serviceshandler "github.com/minndara/site-admin/internal/handler/services"
	settingshandler "github.com/minndara/site-admin/internal/handler/settings"
	"github.com/minndara/site-admin/internal/middleware"
	"github.com/minndara/site-admin/internal/repository"
	"github.com/minndara/site-admin/internal/router"
	authService "github.com/minndara/site-admin/internal/service/auth"
	"github.com/minndara/site-admin/pkg/auth"
	"github.com/minndara/site-admin/pkg/security"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := app.NewLogger(cfg)
	log.Logger = logger.ZL

	if cfg.Auth.JWTSecret == "" {
		log.Fatal().Msg("auth.jwt_secret must be set")
	}
	if len(cfg.Auth.AllowedEmails) == 0 {
		log.Warn().Msg("auth.allowed_emails is empty, nobody can sign in to the panel")
	}

	if err := middleware.RegisterValidation(middleware.ValidationConfig{}); err != nil {
		log.Fatal().Err(err).Msg("failed to register validators")
	}

	// Metrics registry shared by the HTTP middleware and the services
	var metricsH *prometheus.Handler
	if cfg.Monitoring.PrometheusEnabled {
		metricsH = prometheus.New(cfg.Monitoring.Namespace)
	}

	var a *app.App
	if metricsH != nil {
		a, err = app.New(cfg, logger, metricsH.Registry())
	} else {
		a, err = app.New(cfg, logger, nil)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise services")
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to prepare database")
	}
	if err := a.InvalidatePublicCache(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe to change events")
	}

	// Operators
	hasher := security.NewBcryptHasher(0)
	users := make([]authService.User, 0, len(cfg.Auth.Users))
	for _, u := range cfg.Auth.Users {
		users = append(users, authService.User{UID: u.UID, Email: u.Email, PasswordHash: u.PasswordHash})
	}
	authSvc := authService.NewService(
		authService.NewStaticProvider(users, hasher),
		auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry),
		cfg.Auth.AllowedEmails,
		logger,
	)

	// Handlers
	var metricsRoute, metricsMiddleware gin.HandlerFunc
	if metricsH != nil {
		metricsRoute, metricsMiddleware = metricsH.Handler(), metricsH.Middleware()
	}
	pinger, _ := a.Store.(repository.Pinger)
	handlers := router.Handlers{
		Health:   health.NewHandler(pinger, metricsRoute),
		Auth:     authhandler.NewHandler(authSvc),
		Settings: settingshandler.NewHandler(a.Settings),
		Services: serviceshandler.NewHandler(a.Catalog),
		Public:   publichandler.NewHandler(a.Public),
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.Security.AllowedOrigins
	if len(cfg.Security.AllowedMethods) > 0 {
		corsConfig.AllowMethods = cfg.Security.AllowedMethods
	}
	if len(cfg.Security.AllowedHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.Security.AllowedHeaders
	}

	routerConfig := router.RouterConfig{
		Mode:           cfg.Server.Mode,
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodyBytes:   cfg.Security.MaxBodyBytes,
		CORSConfig:     corsConfig,
		Metrics:        metricsMiddleware,
	}
	if cfg.RateLimit.Enabled {
		routerConfig.RateLimit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
		routerConfig.RateBurst = cfg.RateLimit.Burst
	}

	r := router.NewRouter(middleware.NewAuthMiddleware(authSvc), handlers, routerConfig)
	r.Setup()

	// Create server
	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r.Engine(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	// Start server
	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("store", cfg.Database.Driver).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	cancel()

	log.Info().Msg("server exited")
}
