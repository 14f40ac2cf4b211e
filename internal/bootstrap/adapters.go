package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/sous-os/sous-core/config"
	"github.com/sous-os/sous-core/internal/adapters/jobrunner"
	"github.com/sous-os/sous-core/internal/adapters/reaper"
	"github.com/sous-os/sous-core/internal/adapters/realtime"
	"github.com/sous-os/sous-core/internal/core"
	"github.com/sous-os/sous-core/internal/domain/model"
	"github.com/sous-os/sous-core/internal/observability/statsd"
	"github.com/sous-os/sous-core/internal/service"
	"github.com/sous-os/sous-core/internal/service/failurenotifier"
)

// EngineSet groups the domain engines a queue worker can dispatch to. Only
// the engines owning the worker's queue need to be set.
type EngineSet struct {
	Costing    *service.CostingService
	Commission *service.CommissionService
	Ingestion  *service.IngestionService
	Support    *service.SupportService
}

// WorkerRunnerConfig contains configuration for one queue worker.
type WorkerRunnerConfig struct {
	DB              *sql.DB
	Logger          *slog.Logger
	Queue           model.QueueName
	Lease           time.Duration
	Concurrency     int
	Engines         EngineSet
	JobsRepo        core.JobRepository
	Metrics         statsd.Sink
	FailureNotifier *failurenotifier.Service
}

// RunWorker starts a worker pulling jobs from a single queue.
func RunWorker(ctx context.Context, cfg WorkerRunnerConfig) error {
	runner, err := jobrunner.NewRunner(jobrunner.RunnerOptions{
		DB:              cfg.DB,
		Logger:          cfg.Logger,
		Lease:           cfg.Lease,
		Concurrency:     cfg.Concurrency,
		Queue:           cfg.Queue,
		Costing:         cfg.Engines.Costing,
		Commission:      cfg.Engines.Commission,
		Ingestion:       cfg.Engines.Ingestion,
		Support:         cfg.Engines.Support,
		JobsRepo:        cfg.JobsRepo,
		Metrics:         cfg.Metrics,
		FailureNotifier: cfg.FailureNotifier,
	})
	if err != nil {
		return fmt.Errorf("create %s worker: %w", cfg.Queue, err)
	}

	if runErr := runner.Run(ctx); runErr != nil {
		return fmt.Errorf("run %s worker: %w", cfg.Queue, runErr)
	}
	return nil
}

// ReaperRunnerConfig contains configuration for the reaper.
type ReaperRunnerConfig struct {
	DB      *sql.DB
	Logger  *slog.Logger
	Config  config.ReaperConfig
	Metrics statsd.Sink
}

// RunReaper starts the reaper service.
func RunReaper(ctx context.Context, cfg ReaperRunnerConfig) error {
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		DB:      cfg.DB,
		Config:  cfg.Config,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}

	return runner.Run(ctx)
}

// RealtimeBridgeConfig contains configuration for the cross-process
// realtime bridge.
type RealtimeBridgeConfig struct {
	Bridge *realtime.Bridge
	Logger *slog.Logger
}

// RunRealtimeBridge subscribes the local hub to remote hardware channels.
// Without a bridge the hub still serves local subscribers; this blocks until
// the context is done so the service stays registered.
func RunRealtimeBridge(ctx context.Context, cfg RealtimeBridgeConfig) error {
	if cfg.Bridge == nil {
		if cfg.Logger != nil {
			cfg.Logger.InfoContext(ctx, "realtime bridge disabled, serving local subscribers only")
		}
		<-ctx.Done()
		return nil
	}

	return cfg.Bridge.Run(ctx)
}
