package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/timmy/jobalerts/internal/bootstrap"
	"github.com/timmy/jobalerts/internal/config"
	"github.com/timmy/jobalerts/internal/logger"
	"github.com/timmy/jobalerts/internal/scheduler"
)

func main() {
	// Initialize logger first (from LOG_* environment)
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file")
	region := flag.String("region", "", "Worker region (uk or us); overrides config")
	once := flag.Bool("once", false, "Run a single cycle and exit")
	testMode := flag.Bool("test", false, "Use fixture jobs and log emails instead of sending")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if *region != "" {
		cfg.Worker.Region = strings.ToLower(*region)
	}
	if *testMode {
		cfg.Worker.TestMode = true
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, cfg, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize worker")
	}
	defer app.Close()

	appLogger.WithFields(logger.Fields{
		logger.FieldRegion: app.Region,
		logger.FieldSource: app.SourceName,
		"match_mode":       cfg.Worker.MatchMode,
		"interval":         cfg.Worker.Interval.String(),
		"test_mode":        cfg.Worker.TestMode,
	}).Info("Starting alert worker")

	sched := scheduler.New(app.Alerts, cfg.Worker.Interval, appLogger)

	if *once {
		stats, err := sched.RunNow(ctx)
		if err != nil {
			appLogger.WithError(err).Error("Cycle failed")
			cancel()
			app.Close()
			logger.Sync()
			os.Exit(1)
		}
		appLogger.WithFields(logger.Fields{
			"cycle_id":      stats.CycleID,
			"emails_sent":   stats.EmailsSent,
			"emails_failed": stats.EmailsFailed,
		}).Info("Single cycle finished")
		return
	}

	if err := sched.Start(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to start scheduler")
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	appLogger.Info("Received shutdown signal, waiting for running cycle...")
	sched.Stop()
	appLogger.Info("Worker exited")
}
