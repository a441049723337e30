package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/timmy/jobalerts/internal/api"
	"github.com/timmy/jobalerts/internal/api/handler"
	"github.com/timmy/jobalerts/internal/api/middleware"
	"github.com/timmy/jobalerts/internal/bootstrap"
	"github.com/timmy/jobalerts/internal/config"
	"github.com/timmy/jobalerts/internal/logger"
	"github.com/timmy/jobalerts/internal/scheduler"
)

func main() {
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, cfg, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize application")
	}
	defer app.Close()

	// The admin cycle trigger and the embedded timer share one scheduler so
	// cycles never overlap inside this process.
	sched := scheduler.New(app.Alerts, cfg.Worker.Interval, appLogger)
	if cfg.Worker.Embedded {
		if err := sched.Start(ctx); err != nil {
			appLogger.WithError(err).Fatal("Failed to start embedded scheduler")
		}
		appLogger.WithField(logger.FieldRegion, app.Region).Info("Embedded alert scheduler started")
	}

	adminDeps := handler.AdminDeps{
		Cycle:         sched,
		Resender:      app.Alerts,
		Jobs:          app.Jobs,
		Subscriptions: app.Subscribers,
		Logger:        appLogger,
	}
	if app.Snapshots != nil {
		adminDeps.Snapshots = app.Snapshots
	}

	router := api.SetupRouter(api.Handlers{
		Health:        handler.NewHealthHandler(app.Ping),
		Jobs:          handler.NewJobHandler(app.Jobs, app.Stats, app.Expander),
		Subscriptions: handler.NewSubscriptionHandler(app.Subscribers),
		Admin:         handler.NewAdminHandler(adminDeps),
	}, api.RouterConfig{
		Mode:       cfg.Server.Mode,
		AdminToken: cfg.Server.AdminToken,
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
	}, appLogger)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), bootstrap.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}
	if cfg.Worker.Embedded {
		sched.Stop()
	}

	appLogger.Info("Server exited")
}
