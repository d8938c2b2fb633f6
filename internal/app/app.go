package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cradoe/skypay/internal/cache"
	"github.com/cradoe/skypay/internal/config"
	"github.com/cradoe/skypay/internal/errHandler"
	"github.com/cradoe/skypay/internal/file"
	"github.com/cradoe/skypay/internal/helper"
	"github.com/cradoe/skypay/internal/notify"
	"github.com/cradoe/skypay/internal/onboarding"
	"github.com/cradoe/skypay/internal/provider"
	"github.com/cradoe/skypay/internal/repository"
	seeders "github.com/cradoe/skypay/internal/seeder"
	"github.com/cradoe/skypay/internal/smtp"
	"github.com/cradoe/skypay/internal/stream"
	"github.com/joho/godotenv"
)

const defaultPingTimeout = 5 * time.Second

// Essential services and resources are exposed to the application
// this makes it possible for methods to have access to these items and when they need them
type Application struct {
	Config       config.Config
	DB           repository.Database
	Logger       *slog.Logger
	Mailer       smtp.MailerInterface
	WG           sync.WaitGroup
	errorHandler *errHandler.ErrorRepository
	helper       *helper.HelperRepository
	Kafka        *stream.KafkaStream
	Cache        *cache.Cache
	FileUploader *file.FileUploader
	Orchestrator *onboarding.Orchestrator
}

func NewApplication(logger *slog.Logger) (*Application, error) {
	if err := godotenv.Load(); err != nil {
		logger.Warn("no .env file loaded", "error", err)
	}

	return New(config.Load(), logger)
}

// New wires the application from an already loaded configuration. Optional
// backends left unconfigured fall back to in-process implementations.
func New(cfg config.Config, logger *slog.Logger) (*Application, error) {
	app := &Application{
		Config: cfg,
		Logger: logger,
	}

	if cfg.Db.Dsn == "" {
		logger.Warn("DB_DSN is not set, records are kept in memory")
		db := repository.NewMemoryDatabase()
		if err := seeders.New(db, logger).Run(app.reviewerSeed()); err != nil {
			return nil, fmt.Errorf("failed to seed memory database: %w", err)
		}
		app.DB = db
	} else {
		db, err := repository.New(cfg.Db.Dsn, cfg.Db.Automigrate)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		app.DB = db
	}

	mailer, err := smtp.NewMailer(smtp.Config{
		Host:     cfg.Smtp.Host,
		Port:     cfg.Smtp.Port,
		Username: cfg.Smtp.Username,
		Password: cfg.Smtp.Password,
		From:     cfg.Smtp.From,
		TLS:      cfg.Smtp.TLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mailer: %w", err)
	}
	app.Mailer = mailer

	app.helper = helper.New(cfg.BaseURL, &app.WG, logger)
	app.errorHandler = errHandler.New(cfg.Notifications.Email, mailer, logger, app.helper)

	var locker onboarding.Locker = onboarding.NewKeyedMutex()
	var store provider.IdempotencyStore = provider.NewMemoryStore()
	var events onboarding.EventPublisher
	var sms notify.SMSSender = notify.LogSMS{Logger: logger}

	if cfg.Redis.Addr != "" {
		app.Cache = cache.New(cfg.Redis.Addr, cfg.Redis.DB, cfg.Onboarding.LockHold(cfg.Provider.Timeout))

		ctx, cancel := context.WithTimeout(context.Background(), defaultPingTimeout)
		defer cancel()

		if err := app.Cache.Ping(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		locker, store = app.Cache, app.Cache
	} else {
		logger.Warn("REDIS_ADDR is not set, applicant locks only hold within this process")
	}

	if cfg.KafkaServers != "" {
		app.Kafka = stream.New(cfg.KafkaServers, logger)
		events = stream.NewStatusPublisher(app.Kafka)
	}

	if cfg.Sms.BaseURL != "" {
		sms = notify.NewHTTPSMS(notify.SMSConfig{
			BaseURL:  cfg.Sms.BaseURL,
			APIKey:   cfg.Sms.ApiKey,
			SenderID: cfg.Sms.SenderID,
			Timeout:  cfg.Sms.Timeout,
		})
	}

	notifier := notify.New(mailer, sms, logger)

	var client provider.Client
	if cfg.Provider.BaseURL == "" {
		logger.Warn("PROVIDER_BASE_URL is not set, using the sandbox verification provider")
		client = provider.NewSandboxClient(notifier, cfg.Provider.ConsentLinkBase)
	} else {
		client = provider.NewHTTPClient(provider.HTTPConfig{
			BaseURL: cfg.Provider.BaseURL,
			AppID:   cfg.Provider.AppID,
			APIKey:  cfg.Provider.ApiKey,
			Timeout: cfg.Provider.Timeout,
		})
	}

	app.Orchestrator = onboarding.New(onboarding.Config{
		DB:        app.DB,
		Provider:  provider.NewIdempotentClient(client, store, cfg.Provider.IdempotencyTTL),
		Notifier:  notifier,
		Publisher: events,
		Locker:    locker,
		Policy:    cfg.Onboarding,
		Logger:    logger,
	})

	app.FileUploader = file.New(cfg.FileUploader.CloudName, cfg.FileUploader.ApiKey, cfg.FileUploader.ApiSecret, logger)

	return app, nil
}

func (app *Application) reviewerSeed() seeders.ReviewerSeed {
	return seeders.ReviewerSeed{
		Email:    app.Config.Seed.ReviewerEmail,
		Name:     app.Config.Seed.ReviewerName,
		Password: app.Config.Seed.ReviewerPassword,
	}
}

// Seed loads the reference data and the first reviewer.
func (app *Application) Seed() error {
	return seeders.New(app.DB, app.Logger).Run(app.reviewerSeed())
}

func (app *Application) Close() {
	if err := app.DB.Close(); err != nil {
		app.Logger.Error("failed to close database", "error", err)
	}
	if app.Cache != nil {
		if err := app.Cache.Close(); err != nil {
			app.Logger.Error("failed to close redis", "error", err)
		}
	}
}
