// Package pipeline assembles the registration pipeline from its stores, services
// and notification providers. The HTTP server and the operator CLI share it so
// both drive the same producer, processor and repair utilities.
package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/careloop/careloop-api/internal/config"
	"github.com/careloop/careloop-api/internal/events"
	"github.com/careloop/careloop-api/internal/metrics"
	"github.com/careloop/careloop-api/internal/notify"
	"github.com/careloop/careloop-api/internal/platform/postgres"
	"github.com/careloop/careloop-api/internal/service"
	"github.com/careloop/careloop-api/internal/settings"
	"github.com/careloop/careloop-api/internal/store"
	"github.com/careloop/careloop-api/internal/task"
)

// Stores groups the persistence dependencies of the pipeline.
type Stores struct {
	Profiles  store.ProfileStore
	CareTeams store.CareTeamStore
	Chats     store.ChatStore
	Progress  store.ProgressStore
	Tasks     task.Store
}

// PostgresStores returns the Postgres implementation of every store.
func PostgresStores(db *sql.DB, logger *slog.Logger) Stores {
	return Stores{
		Profiles:  postgres.NewPostgresProfileStore(db, logger),
		CareTeams: postgres.NewPostgresCareTeamStore(db, logger),
		Chats:     postgres.NewPostgresChatStore(db, logger),
		Progress:  postgres.NewPostgresProgressStore(db, logger),
		Tasks:     postgres.NewPostgresTaskStore(db, logger),
	}
}

// Options carries the optional pieces a caller may substitute.
type Options struct {
	// Features overrides the config-file feature source.
	Features settings.Source
	// Senders overrides the notification providers built from config.
	Senders map[notify.Channel]notify.Sender
	// WorkerID is written to claimed_by by the processor.
	WorkerID string
}

// Components is the assembled pipeline.
type Components struct {
	Stores   Stores
	Settings *settings.Service
	Notifier *notify.Dispatcher
	Metrics  *metrics.Pipeline
	Emitter  *events.InMemoryEventEmitter

	CareTeams  *service.CareTeamService
	Chats      *service.ChatService
	Welcome    *service.WelcomeService
	Payments   *service.PaymentService
	Dashboards *service.DashboardService
	Tracker    *service.ProgressTracker

	Producer  *task.Producer
	Processor *task.Processor
	Repairer  *task.Repairer
}

// New builds the pipeline from configuration.
func New(ctx context.Context, cfg *config.Config, stores Stores, opts Options, logger *slog.Logger) (*Components, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	c := &Components{Stores: stores, Metrics: metrics.NewPipeline()}

	source := opts.Features
	if source == nil {
		source = config.NewFeatureSource("")
	}
	var err error
	c.Settings, err = settings.NewService(ctx, source, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load feature flags: %w", err)
	}

	senders := opts.Senders
	if senders == nil {
		senders, err = notify.NewSenders(ctx, providerConfig(cfg.Notify), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize notification providers: %w", err)
		}
	}
	c.Notifier = notify.NewDispatcher(senders, logger)

	if c.CareTeams, err = service.NewCareTeamService(stores.Profiles, stores.CareTeams, c.Settings, logger); err != nil {
		return nil, fmt.Errorf("failed to create care team service: %w", err)
	}
	if c.Chats, err = service.NewChatService(stores.Profiles, stores.CareTeams, stores.Chats, logger); err != nil {
		return nil, fmt.Errorf("failed to create chat service: %w", err)
	}
	if c.Welcome, err = service.NewWelcomeService(stores.Profiles, c.Notifier, c.Settings, logger); err != nil {
		return nil, fmt.Errorf("failed to create welcome service: %w", err)
	}
	if c.Tracker, err = service.NewProgressTracker(stores.Progress, stores.Profiles, logger); err != nil {
		return nil, fmt.Errorf("failed to create progress tracker: %w", err)
	}
	c.Dashboards, err = service.NewDashboardService(
		stores.Profiles, stores.Progress, stores.CareTeams, stores.Chats, stores.Tasks, c.Settings, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create dashboard service: %w", err)
	}

	registry := task.NewRegistry()
	if err := service.RegisterExecutors(registry, c.CareTeams, c.Chats, c.Welcome); err != nil {
		return nil, fmt.Errorf("failed to register executors: %w", err)
	}

	if c.Producer, err = task.NewProducer(stores.Tasks, stores.Profiles, stores.Progress, logger); err != nil {
		return nil, fmt.Errorf("failed to create task producer: %w", err)
	}
	c.Producer.SetObserver(c.Metrics)

	c.Processor, err = task.NewProcessor(stores.Tasks, registry, c.Tracker, processorConfig(cfg.Pipeline, opts.WorkerID), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create task processor: %w", err)
	}
	c.Processor.SetObserver(c.Metrics)

	if c.Repairer, err = task.NewRepairer(stores.Tasks, stores.Profiles, c.Producer, c.Processor, logger); err != nil {
		return nil, fmt.Errorf("failed to create repairer: %w", err)
	}

	c.Emitter = events.NewInMemoryEventEmitter(logger)
	c.Emitter.RegisterHandler(service.NewRegistrationEventHandler(c.Producer, logger), events.TypePaymentCompleted)
	if c.Payments, err = service.NewPaymentService(stores.Profiles, c.Emitter, logger); err != nil {
		return nil, fmt.Errorf("failed to create payment service: %w", err)
	}

	return c, nil
}

// NewScheduler returns the in-process scheduler configured for c.
func (c *Components) NewScheduler(cfg config.PipelineConfig, logger *slog.Logger) (*task.Scheduler, error) {
	return task.NewScheduler(c.Processor, task.SchedulerConfig{
		Interval: cfg.SchedulerEvery,
		ClaimTTL: cfg.ClaimTTL,
	}, logger)
}

func processorConfig(cfg config.PipelineConfig, workerID string) task.ProcessorConfig {
	pc := task.DefaultProcessorConfig()
	if cfg.BatchSize > 0 {
		pc.BatchSize = cfg.BatchSize
	}
	pc.Policy.MaxRetries = cfg.MaxRetries
	if cfg.RetryBaseDelay > 0 {
		pc.Policy.BaseDelay = cfg.RetryBaseDelay
	}
	if cfg.RetryMaxDelay > 0 {
		pc.Policy.MaxDelay = cfg.RetryMaxDelay
	}
	if cfg.TaskTimeout > 0 {
		pc.TaskTimeout = cfg.TaskTimeout
	}
	pc.WorkerID = workerID
	return pc
}

func providerConfig(cfg config.NotifyConfig) notify.ProviderConfig {
	return notify.ProviderConfig{
		AWSRegion:   cfg.AWSRegion,
		EmailFrom:   cfg.EmailFrom,
		SMSEnabled:  cfg.SMSEnabled,
		SMSSenderID: cfg.SMSSenderID,
		WhatsApp: notify.WhatsAppConfig{
			BaseURL:    cfg.WhatsApp.BaseURL,
			AccountSID: cfg.WhatsApp.AccountSID,
			AuthToken:  cfg.WhatsApp.AuthToken,
			From:       cfg.WhatsApp.From,
		},
	}
}
