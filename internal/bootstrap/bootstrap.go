// Package bootstrap assembles the components shared by the worker and API binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/timmy/jobalerts/internal/cache"
	"github.com/timmy/jobalerts/internal/config"
	"github.com/timmy/jobalerts/internal/events"
	"github.com/timmy/jobalerts/internal/logger"
	"github.com/timmy/jobalerts/internal/matching"
	"github.com/timmy/jobalerts/internal/notify"
	"github.com/timmy/jobalerts/internal/repository"
	"github.com/timmy/jobalerts/internal/service"
	"github.com/timmy/jobalerts/internal/source"
	"github.com/timmy/jobalerts/internal/source/fixture"
	"github.com/timmy/jobalerts/internal/source/hiring"
	"github.com/timmy/jobalerts/internal/source/staging"
	"github.com/timmy/jobalerts/internal/storage"
	"gorm.io/gorm"
)

// App holds the wired components of one process.
type App struct {
	DB            *gorm.DB
	Jobs          *repository.JobRepository
	Subscriptions *repository.SubscriptionRepository
	Accounts      *repository.AccountRepository
	Ledger        *repository.DeliveryRepository

	Expander    *matching.Expander
	Alerts      *service.AlertService
	Subscribers *service.SubscriptionService
	Stats       *service.StatsService
	Snapshots   *storage.SnapshotArchiver
	Publisher   events.Publisher
	Cache       *cache.Cache
	Region      string
	SourceName  string
	closers     []func() error
	logger      *logger.Logger
}

// New connects every configured backend and builds the services.
// Optional backends (Redis, object storage, Kafka) that fail to start are
// logged and left out rather than aborting startup.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	region := strings.ToLower(cfg.Worker.Region)
	a := &App{Region: region, logger: log}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	a.Jobs = repository.NewJobRepository(db)
	a.Subscriptions = repository.NewSubscriptionRepository(db)
	a.Accounts = repository.NewAccountRepository(db)
	a.Ledger = repository.NewDeliveryRepository(db)

	groups, err := loadAreaGroups(cfg.Matching, region)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Expander = matching.NewExpander(groups)
	log.WithFields(logger.Fields{
		logger.FieldRegion: region,
		"area_groups":      len(groups),
	}).Info("Area groups loaded")

	if cfg.Cache.RedisURL != "" {
		c, err := cache.New(cfg.Cache.RedisURL, cfg.Cache.TTL)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, fetching without cache")
		} else {
			a.Cache = c
			a.closers = append(a.closers, c.Close)
		}
	}

	if cfg.Storage.Enabled() {
		store, err := storage.NewStorage(ctx, &cfg.Storage)
		if err == nil {
			err = store.EnsureBucket(ctx)
		}
		if err != nil {
			log.WithError(err).Warn("Object storage unavailable, snapshots disabled")
		} else {
			a.Snapshots = storage.NewSnapshotArchiver(store)
		}
	}

	a.Publisher = events.NopPublisher{}
	if len(cfg.Events.Brokers) > 0 {
		a.Publisher = events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic)
		log.WithField("topic", cfg.Events.Topic).Info("Publishing delivery events to Kafka")
	}
	a.closers = append(a.closers, a.Publisher.Close)

	src := a.buildSource(cfg, region)
	a.SourceName = src.Name()

	deps := service.AlertDeps{
		Source:        src,
		Jobs:          a.Jobs,
		Subscriptions: a.Subscriptions,
		Ledger:        a.Ledger,
		Expander:      a.Expander,
		Sender:        buildSender(cfg, log),
		Publisher:     a.Publisher,
		Logger:        log,
	}
	if a.Snapshots != nil {
		deps.Archiver = a.Snapshots
	}
	a.Alerts = service.NewAlertService(deps, service.AlertConfig{
		Region:         region,
		MatchMode:      cfg.Worker.MatchMode,
		CandidateLimit: cfg.Worker.CandidateLimit,
		FallbackURL:    cfg.Source.SearchURL(region),
		Brand:          cfg.SMTP.Brand,
	})
	a.Subscribers = service.NewSubscriptionService(a.Accounts, a.Subscriptions, a.Ledger, log)
	a.Stats = service.NewStatsService(a.Jobs, a.Subscriptions, a.Ledger)

	return a, nil
}

// Ping checks the database connection.
func (a *App) Ping(ctx context.Context) error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases every backend in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func loadAreaGroups(cfg config.MatchingConfig, region string) (matching.AreaGroups, error) {
	if cfg.AreaGroupsFile == "" {
		return matching.DefaultAreaGroups(region), nil
	}
	groups, err := matching.LoadAreaGroups(cfg.AreaGroupsFile)
	if err != nil {
		return nil, fmt.Errorf("load area groups: %w", err)
	}
	return groups, nil
}

func (a *App) buildSource(cfg *config.Config, region string) source.Source {
	if cfg.Worker.TestMode {
		a.logger.Warn("Test mode: serving fixture jobs")
		return fixture.NewAdapter(region)
	}

	var src source.Source = hiring.NewAdapter(hiring.Config{
		Region:     region,
		SearchURL:  cfg.Source.SearchURL(region),
		Timeout:    cfg.Source.Timeout,
		RetryCount: cfg.Source.RetryCount,
		UserAgent:  cfg.Source.UserAgent,
	})
	if cfg.Source.StagingDir != "" {
		replay := staging.NewAdapter(cfg.Source.StagingDir, region)
		if replay.Available() {
			src = source.NewMulti(src, replay)
		} else {
			a.logger.WithField("path", replay.ManifestPath()).Warn("Staging manifest missing, replay disabled")
		}
	}
	if a.Cache != nil {
		src = source.NewCached(src, a.Cache, region)
	}
	return src
}

func buildSender(cfg *config.Config, log *logger.Logger) notify.Sender {
	if cfg.Worker.TestMode || !cfg.SMTP.Enabled() {
		log.Warn("SMTP not configured, emails are logged instead of sent")
		return notify.NewLogSender()
	}
	s := notify.NewSMTPSender(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		FromName: fromName(cfg.SMTP.Brand),
	})
	log.WithField("relay", s.String()).Info("SMTP sender ready")
	return s
}

func fromName(brand string) string {
	if brand == "" {
		return ""
	}
	return brand + " Job Alerts"
}

// ShutdownTimeout bounds graceful shutdown of both binaries.
const ShutdownTimeout = 10 * time.Second
