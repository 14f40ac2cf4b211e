package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sous-os/sous-core/config"
	"github.com/sous-os/sous-core/internal/adapters/realtime"
	"github.com/sous-os/sous-core/internal/core"
	"github.com/sous-os/sous-core/internal/data"
	domainjob "github.com/sous-os/sous-core/internal/domain/job"
	"github.com/sous-os/sous-core/internal/domain/model"
	"github.com/sous-os/sous-core/internal/drivers"
	"github.com/sous-os/sous-core/internal/observability/notify/pagerduty"
	"github.com/sous-os/sous-core/internal/observability/notify/slack"
	"github.com/sous-os/sous-core/internal/observability/statsd"
	"github.com/sous-os/sous-core/internal/service"
	"github.com/sous-os/sous-core/internal/service/failurenotifier"
)

const (
	// defaultJobLease bounds how long a reserved job stays invisible before
	// the queue re-offers it.
	defaultJobLease = 30 * time.Second

	// notifierRetryLimit is how many times a notification sink retries a
	// failed delivery before giving up.
	notifierRetryLimit = 2
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Jobs          *service.JobService
	Costing       *service.CostingService
	Commission    *service.CommissionService
	Ingestion     *service.IngestionService
	Support       *service.SupportService
	Orchestrator  *service.Orchestrator
	Hub           *realtime.Hub
	Bridge        *realtime.Bridge // nil when the Redis bridge is disabled
	Publisher     core.Publisher
	Drivers       *drivers.Registry
	JobsRepo      *data.JobRepo
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink     *statsd.Client
	MetricsConfig   config.ObservabilityMetricsConfig
	FailureNotifier *failurenotifier.Service
	NotifierConfig  config.ObservabilityNotificationsConfig
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	DB              *sql.DB
	Redis           redis.UniversalClient
	JobRepo         *data.JobRepo
	RecipeRepo      *data.RecipeRepo
	SnapshotRepo    *data.SnapshotRepo
	LedgerRepo      *data.LedgerRepo
	AttributionRepo *data.AttributionRepo
	CatalogRepo     *data.CatalogRepo
	DisplayRepo     *data.DisplayRepo
	TicketRepo      *data.TicketRepo
}

// buildObservability configures metrics and notification adapters.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  "sous",
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	failureNotifier := buildFailureNotifier(obsLogger, cfg.Notifications)

	return ObservabilityContainer{
		MetricsSink:     metricsSink,
		MetricsConfig:   cfg.Metrics,
		FailureNotifier: failureNotifier,
		NotifierConfig:  cfg.Notifications,
	}
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(
	db *sql.DB,
	redisClient redis.UniversalClient,
	queues config.QueuesConfig,
	logger *slog.Logger,
	notifier *failurenotifier.Service,
) (*serviceRepositories, error) {
	backoff, err := domainjob.NewBackoffPolicy(queues.BackoffBase, queues.BackoffCap)
	if err != nil {
		return nil, fmt.Errorf("create backoff policy: %w", err)
	}

	return &serviceRepositories{
		DB:    db,
		Redis: redisClient,
		JobRepo: data.NewJobRepo(db, data.RepoConfig{
			DefaultMaxAttempts:      queues.DefaultMaxAttempts,
			Backoff:                 backoff,
			Logger:                  logger,
			OnLeaseExpiryDeadLetter: notifier.LeaseExpiryHook(),
		}),
		RecipeRepo:      data.NewRecipeRepo(db),
		SnapshotRepo:    data.NewSnapshotRepo(db),
		LedgerRepo:      data.NewLedgerRepo(db),
		AttributionRepo: data.NewAttributionRepo(db),
		CatalogRepo:     data.NewCatalogRepo(db),
		DisplayRepo:     data.NewDisplayRepo(db),
		TicketRepo:      data.NewTicketRepo(db),
	}, nil
}

// defaultVendorMappings declares where canonical order and catalog fields
// live in each supported vendor's raw records, as JMESPath expressions.
var defaultVendorMappings = map[string]drivers.RecordMapping{
	"square": {
		OrderExternalID:   "id",
		Total:             "total_money.amount",
		PaymentRef:        "tenders[0].payment_id",
		PlacedAt:          "created_at",
		CatalogExternalID: "id",
		Name:              "item_data.name",
		Price:             "item_data.variations[0].item_variation_data.price_money.amount",
		SKU:               "item_data.variations[0].item_variation_data.sku",
	},
	"toast": {
		OrderExternalID:   "guid",
		Total:             "totalAmount",
		PaymentRef:        "payments[0].guid",
		PlacedAt:          "openedDate",
		CatalogExternalID: "guid",
		Name:              "name",
		Price:             "price",
		SKU:               "sku",
	},
}

// buildVendorIntegrations assembles the driver registry and per-vendor
// normalizers. Development mode registers in-memory drivers so syncs work
// without vendor credentials; production deployments register real drivers.
func buildVendorIntegrations(
	cfg *config.AppConfig,
	logger *slog.Logger,
) (*drivers.Registry, map[string]*drivers.Normalizer, error) {
	registry := drivers.NewRegistry()
	normalizers := make(map[string]*drivers.Normalizer, len(defaultVendorMappings))

	for vendor, mapping := range defaultVendorMappings {
		normalizer, err := drivers.NewNormalizer(vendor, mapping)
		if err != nil {
			return nil, nil, fmt.Errorf("build %s normalizer: %w", vendor, err)
		}
		normalizers[vendor] = normalizer

		if cfg != nil && cfg.IsDev {
			registry.RegisterPOS(drivers.NewStaticPOSDriver(vendor))
			registry.RegisterPayment(drivers.NewStaticPaymentDriver(vendor))
		}
	}

	if cfg != nil && cfg.IsDev && logger != nil {
		logger.Info("registered in-memory vendor drivers", "reason", "development mode")
	}

	return registry, normalizers, nil
}

// buildRealtime assembles the local hub plus the optional Redis bridge. The
// returned publisher is what engines fan events out through: the bridge when
// cross-process delivery is on, the bare hub otherwise.
func buildRealtime(
	repos *serviceRepositories,
	cfg config.RealtimeConfig,
	logger *slog.Logger,
) (*realtime.Hub, *realtime.Bridge, core.Publisher, error) {
	hub, err := realtime.NewHub(realtime.HubOptions{
		Displays:    repos.DisplayRepo,
		Logger:      logger,
		ShardCount:  cfg.ShardCount,
		EventBuffer: cfg.EventBuffer,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create realtime hub: %w", err)
	}

	if !cfg.BridgeEnabled || repos.Redis == nil {
		return hub, nil, hub, nil
	}

	bridge, err := realtime.NewBridge(realtime.BridgeOptions{
		Client: repos.Redis,
		Hub:    hub,
		Logger: logger,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create realtime bridge: %w", err)
	}

	return hub, bridge, bridge, nil
}

// DomainServicesOptions groups inputs for domain service wiring.
type DomainServicesOptions struct {
	Repos         *serviceRepositories
	Observability ObservabilityContainer
	Config        *config.AppConfig
	Logger        *slog.Logger
}

// buildDomainServices wires business services using repositories and observability adapters.
func buildDomainServices(opts *DomainServicesOptions) (ServiceContainer, error) {
	if opts == nil {
		return ServiceContainer{}, errors.New("domain service options are required")
	}
	svcLogger := opts.Logger
	if svcLogger == nil {
		svcLogger = slog.Default()
	}

	appCfg := opts.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	jobService := service.MustNewJobService(service.JobServiceOptions{
		Repo:            opts.Repos.JobRepo,
		DefaultLease:    defaultJobLease,
		MaxQueueDepth:   appCfg.Queues.MaxDepth,
		Logger:          svcLogger,
		FailureNotifier: opts.Observability.FailureNotifier,
	})

	hub, bridge, publisher, err := buildRealtime(opts.Repos, appCfg.Realtime, svcLogger)
	if err != nil {
		return ServiceContainer{}, err
	}

	costing, err := service.NewCostingService(service.CostingServiceOptions{
		Recipes:   opts.Repos.RecipeRepo,
		Snapshots: opts.Repos.SnapshotRepo,
		Displays:  opts.Repos.DisplayRepo,
		Publisher: publisher,
		Logger:    svcLogger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create costing service: %w", err)
	}

	commission, err := service.NewCommissionService(service.CommissionServiceOptions{
		Ledger:       opts.Repos.LedgerRepo,
		Attributions: opts.Repos.AttributionRepo,
		Logger:       svcLogger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create commission service: %w", err)
	}

	registry, normalizers, err := buildVendorIntegrations(appCfg, svcLogger)
	if err != nil {
		return ServiceContainer{}, err
	}

	ingestion, err := service.NewIngestionService(service.IngestionServiceOptions{
		Drivers:     registry,
		Normalizers: normalizers,
		Catalog:     opts.Repos.CatalogRepo,
		Enqueuer:    jobService,
		Logger:      svcLogger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create ingestion service: %w", err)
	}

	support := service.NewSupportService(service.SupportServiceOptions{
		Tickets:  opts.Repos.TicketRepo,
		Notifier: opts.Observability.FailureNotifier,
		Logger:   svcLogger,
	})

	orchestrator, err := service.NewOrchestrator(service.OrchestratorOptions{
		Jobs:      jobService,
		Publisher: publisher,
		Logger:    svcLogger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create orchestrator: %w", err)
	}

	return ServiceContainer{
		Jobs:          jobService,
		Costing:       costing,
		Commission:    commission,
		Ingestion:     ingestion,
		Support:       support,
		Orchestrator:  orchestrator,
		Hub:           hub,
		Bridge:        bridge,
		Publisher:     publisher,
		Drivers:       registry,
		JobsRepo:      opts.Repos.JobRepo,
		Observability: opts.Observability,
	}, nil
}

// NewServices builds the full service graph from shared infrastructure.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil {
		return ServiceContainer{}, errors.New("service deps are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var cfg config.AppConfig
	if deps.Config != nil {
		cfg = *deps.Config
	}

	observability := buildObservability(logger, cfg.Observability)
	repos, err := buildRepositories(deps.DB, deps.RedisClient, cfg.Queues, logger, observability.FailureNotifier)
	if err != nil {
		return ServiceContainer{}, err
	}

	return buildDomainServices(&DomainServicesOptions{
		Repos:         repos,
		Observability: observability,
		Config:        deps.Config,
		Logger:        logger,
	})
}

func buildFailureNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *failurenotifier.Service {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = slog.Default()
	}

	if !cfg.Enabled {
		return failurenotifier.NewService(failurenotifier.Options{
			Logger: baseLogger.With("component", "failure_notifier"),
		})
	}

	sinks := make([]failurenotifier.SinkRegistration, 0, 2)

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL: cfg.Slack.WebhookURL,
			Channel:    cfg.Slack.Channel,
			Username:   cfg.Slack.Username,
			Timeout:    cfg.Timeout,
			RetryLimit: notifierRetryLimit,
		})
		if err != nil {
			baseLogger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{
				Name: "slack",
				Sink: client,
			})
		}
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: notifierRetryLimit,
		})
		if err != nil {
			baseLogger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{
				Name: "pagerduty",
				Sink: client,
			})
		}
	}

	return failurenotifier.NewService(failurenotifier.Options{
		Logger:         baseLogger.With("component", "failure_notifier"),
		Sinks:          sinks,
		DeadLetterOnly: cfg.DeadLetterOnly,
	})
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

const (
	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
)

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || !deps.enabledServices[descriptor.mode] {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				if deps.logger != nil {
					deps.logger.WarnContext(
						ctx,
						"dropping background service error",
						"service",
						descriptor.name,
						"error",
						errMsg,
					)
				} else {
					slog.Default().WarnContext(ctx, "dropping background service error", "service", descriptor.name, "error", errMsg)
				}
			}
		}
	}()

	if deps.logger != nil {
		deps.logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	} else {
		slog.Default().InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	}

	return done
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))

	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}

		handles = append(handles, backgroundServiceHandle{
			mode: svc.mode,
			name: svc.name,
			done: done,
		})
	}

	return handles
}

// queueWorkerSpec binds a service mode to the queue it drains and the
// engines that handle its kinds.
type queueWorkerSpec struct {
	mode    config.ServiceMode
	name    string
	queue   model.QueueName
	worker  config.WorkerConfig
	engines EngineSet
}

func newWorkerBackgroundService(deps *serviceStartupDeps, spec queueWorkerSpec) backgroundService {
	return backgroundService{
		mode: spec.mode,
		name: spec.name,
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			return RunWorker(ctx, WorkerRunnerConfig{
				DB:              deps.cfg.DB,
				Logger:          deps.logger,
				Queue:           spec.queue,
				Lease:           spec.worker.JobLease,
				Concurrency:     spec.worker.Concurrency,
				Engines:         spec.engines,
				JobsRepo:        deps.cfg.Services.JobsRepo,
				Metrics:         deps.cfg.Services.Observability.MetricsSink,
				FailureNotifier: deps.cfg.Services.Observability.FailureNotifier,
			})
		},
	}
}

func newRealtimeBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeRealtime,
		name: "realtime broadcaster",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			return RunRealtimeBridge(ctx, RealtimeBridgeConfig{
				Bridge: deps.cfg.Services.Bridge,
				Logger: deps.logger,
			})
		},
	}
}

func newReaperBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeReaper,
		name: "reaper",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			var reaperCfg config.ReaperConfig
			if deps.cfg.Config != nil {
				reaperCfg = deps.cfg.Config.Reaper
			}
			return RunReaper(ctx, ReaperRunnerConfig{
				DB:      deps.cfg.DB,
				Logger:  deps.logger,
				Config:  reaperCfg,
				Metrics: deps.cfg.Services.Observability.MetricsSink,
			})
		},
	}
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil || deps.cfg == nil {
		return nil
	}

	var queues config.QueuesConfig
	if deps.cfg.Config != nil {
		queues = deps.cfg.Config.Queues
	}
	services := deps.cfg.Services

	specs := []queueWorkerSpec{
		{
			mode:    config.ServiceModeIngestionWorker,
			name:    "ingestion worker",
			queue:   model.QueueIngestion,
			worker:  queues.Ingestion,
			engines: EngineSet{Ingestion: services.Ingestion},
		},
		{
			mode:    config.ServiceModeIntelligenceWorker,
			name:    "intelligence worker",
			queue:   model.QueueIntelligence,
			worker:  queues.Intelligence,
			engines: EngineSet{Costing: services.Costing},
		},
		{
			mode:    config.ServiceModeSalesWorker,
			name:    "sales worker",
			queue:   model.QueueSales,
			worker:  queues.Sales,
			engines: EngineSet{Commission: services.Commission},
		},
		{
			mode:    config.ServiceModeSupportWorker,
			name:    "support worker",
			queue:   model.QueueSupport,
			worker:  queues.Support,
			engines: EngineSet{Support: services.Support},
		},
	}

	background := make([]backgroundService, 0, len(specs)+2)
	for _, spec := range specs {
		background = append(background, newWorkerBackgroundService(deps, spec))
	}
	background = append(background,
		newRealtimeBackgroundService(deps),
		newReaperBackgroundService(deps),
	)
	return background
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	ctx := context.Background()
	serviceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	// Determine which services are enabled
	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	deps := &serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	}
	handles := startBackgroundServices(deps, buildBackgroundServices(deps))

	// Wait for shutdown signal or error
	return waitForShutdown(shutdownConfig{
		ctx:         serviceCtx,
		cancel:      cancel,
		errCh:       errCh,
		services:    cfg.Services,
		logger:      logger,
		backgrounds: handles,
	})
}

func errorChannelCapacity(enabled map[config.ServiceMode]bool) int {
	count := 0
	for _, mode := range config.ValidServiceModes() {
		if enabled[mode] {
			count++
		}
	}
	return count
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	size := errorChannelCapacity(enabled) + 1
	if size < 1 {
		return 1
	}
	return size
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       <-chan error
	services    ServiceContainer
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel() // Cancel service context before waiting
		gracefulStop(cfg)
		return nil
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel() // Cancel service context before waiting
		gracefulStop(cfg)
		return err
	}
}

// gracefulStop drains subscriptions and waits for background services.
func gracefulStop(cfg shutdownConfig) {
	if cfg.services.Hub != nil {
		cfg.services.Hub.Shutdown()
	}
	if cfg.services.Jobs != nil {
		cfg.services.Jobs.StopAllListeners()
	}

	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
