// Package jobrunner provides job execution and worker management for the
// sous-core queues.
package jobrunner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sous-os/sous-core/internal/core"
	"github.com/sous-os/sous-core/internal/data"
	"github.com/sous-os/sous-core/internal/domain/model"
	"github.com/sous-os/sous-core/internal/drivers"
	apperrors "github.com/sous-os/sous-core/internal/errors"
	obserrors "github.com/sous-os/sous-core/internal/observability/errors"
	"github.com/sous-os/sous-core/internal/observability/metrics"
	"github.com/sous-os/sous-core/internal/observability/statsd"
	"github.com/sous-os/sous-core/internal/service"
	"github.com/sous-os/sous-core/internal/service/failurenotifier"
)

// HandlerFunc processes a job and returns error to indicate failure (which
// will be retried per the queue's backoff policy unless permanent).
type HandlerFunc func(ctx context.Context, job *model.Job) error

// RunnerOptions configures the job runner adapter.
type RunnerOptions struct {
	DB     *sql.DB
	Logger *slog.Logger

	// Job processing settings
	Lease       time.Duration   // per-job lease duration; defaults to 30s
	Concurrency int             // number of worker goroutines; defaults to 1
	Queue       model.QueueName // which queue to process; required

	// Engines. Only the engines owning the queue's kinds need to be set;
	// kinds with no wired engine dead-letter as unsupported.
	Costing    *service.CostingService
	Commission *service.CommissionService
	Ingestion  *service.IngestionService
	Support    *service.SupportService

	// Optional dependency injections (useful for tests/decoupling)
	JobsRepo        core.JobRepository
	JobService      *service.JobService
	Metrics         statsd.Sink
	FailureNotifier *failurenotifier.Service
}

// Runner pulls jobs from one queue and executes them using registered handlers.
type Runner struct {
	jobs       *service.JobService
	costing    *service.CostingService
	commission *service.CommissionService
	ingestion  *service.IngestionService
	support    *service.SupportService
	logger     *slog.Logger
	lease      time.Duration
	queue      model.QueueName
	workers    int
	handlers   map[model.JobKind]HandlerFunc
	metrics    statsd.Sink
}

func resolveLogger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

// NewRunner wires repositories/services and constructs a job runner for a single queue.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.DB == nil && opts.JobsRepo == nil && opts.JobService == nil {
		return nil, errors.New("one of DB, JobsRepo, or JobService must be provided")
	}
	if !opts.Queue.Valid() {
		return nil, fmt.Errorf("invalid queue: %s", opts.Queue)
	}

	logger := resolveLogger(opts.Logger)

	lease := opts.Lease
	if lease <= 0 {
		lease = 30 * time.Second
	}
	workers := opts.Concurrency
	if workers <= 0 {
		workers = 1
	}

	jobSvc := opts.JobService
	if jobSvc == nil {
		jobsRepo := opts.JobsRepo
		if jobsRepo == nil {
			jobsRepo = data.NewJobRepo(opts.DB, data.RepoConfig{
				Logger:                  opts.Logger,
				OnLeaseExpiryDeadLetter: opts.FailureNotifier.LeaseExpiryHook(),
			})
		}
		jobSvc = service.MustNewJobService(service.JobServiceOptions{
			Repo:            jobsRepo,
			DefaultLease:    lease,
			Logger:          opts.Logger,
			FailureNotifier: opts.FailureNotifier,
		})
	}

	r := &Runner{
		jobs:       jobSvc,
		costing:    opts.Costing,
		commission: opts.Commission,
		ingestion:  opts.Ingestion,
		support:    opts.Support,
		logger:     logger,
		lease:      lease,
		queue:      opts.Queue,
		workers:    workers,
		handlers:   make(map[model.JobKind]HandlerFunc),
		metrics:    opts.Metrics,
	}
	r.registerBuiltinHandlers()
	return r, nil
}

func (r *Runner) registerBuiltinHandlers() {
	if r.costing != nil {
		r.handlers[model.KindCalculateRecipeCost] = r.handleRecipeCostJob
	}
	if r.commission != nil {
		r.handlers[model.KindCalculateCommission] = r.handleCommissionJob
	}
	if r.ingestion != nil {
		r.handlers[model.KindSyncSales] = r.handleSalesSyncJob
		r.handlers[model.KindSyncCatalog] = r.handleCatalogSyncJob
	}
	if r.support != nil {
		r.handlers[model.KindTriageTicket] = r.handleTicketJob
	}
}

// RegisterHandler overrides or adds the handler for a job kind. Must be
// called before Run.
func (r *Runner) RegisterHandler(kind model.JobKind, h HandlerFunc) {
	r.handlers[kind] = h
}

// Run starts worker goroutines and processes jobs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting job runner",
		"queue", r.queue, "workers", r.workers, "lease", r.lease)

	// Subscribe for notifications for the queue we process
	unsub, ch := r.jobs.Subscribe(r.queue)
	defer unsub()

	group, gctx := errgroup.WithContext(ctx)
	for range r.workers {
		group.Go(func() error { return r.workerLoop(gctx, ch) })
	}
	return group.Wait()
}

func (r *Runner) workerLoop(ctx context.Context, notify <-chan struct{}) error {
	for ctx.Err() == nil {
		job, err := r.jobs.ReserveNext(ctx, r.queue, r.lease)
		switch {
		case err == nil:
			if job != nil {
				r.processJob(ctx, job)
			}
		case errors.Is(err, model.ErrNoJobsAvailable):
			if !r.waitForNotify(ctx, notify) {
				return nil
			}
		default:
			return fmt.Errorf("reserve next: %w", err)
		}
	}
	return ctx.Err()
}

func (r *Runner) waitForNotify(ctx context.Context, notify <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return false
	case <-notify:
		return true
	}
}

func (r *Runner) processJob(ctx context.Context, job *model.Job) {
	start := time.Now()
	emit := func(transition, result string, err error) {
		metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{
			Queue:      string(job.Queue),
			Kind:       string(job.Kind),
			Transition: transition,
			Result:     result,
			Duration:   time.Since(start),
			Err:        err,
		})
	}

	h, ok := r.handlers[job.Kind]
	if !ok {
		err := apperrors.UnsupportedJobKind(
			fmt.Sprintf("no handler registered for kind %s on queue %s", job.Kind, job.Queue))
		r.fail(ctx, job.ID, err.Error(), service.JobFailureDetails{
			Permanent:  true,
			ErrorClass: obserrors.Classify(err),
			Metadata:   map[string]string{"component": r.componentLabel()},
		})
		emit("failed", metrics.ResultError, err)
		return
	}

	if err := r.runHandler(ctx, h, job); err != nil {
		r.fail(ctx, job.ID, err.Error(), service.JobFailureDetails{
			Permanent:  apperrors.IsPermanent(err),
			ErrorClass: obserrors.Classify(err),
			Metadata:   map[string]string{"component": r.componentLabel()},
		})
		emit("failed", metrics.ResultError, err)
		return
	}

	if completed, err := r.jobs.Complete(ctx, job.ID); err != nil {
		r.logger.ErrorContext(ctx, "complete job error", "job_id", job.ID, "error", err)
		emit("completed", metrics.ResultError, err)
	} else {
		result := metrics.ResultNoop
		if completed {
			result = metrics.ResultSuccess
		}
		emit("completed", result, nil)
	}
}

// runHandler calls h and converts a panic into a retryable error so a buggy
// handler cannot take a worker down while holding a lease.
func (r *Runner) runHandler(ctx context.Context, h HandlerFunc, job *model.Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
			r.logger.ErrorContext(ctx, "job handler panicked",
				"job_id", job.ID, "kind", job.Kind, "panic", rec)
		}
	}()
	return h(ctx, job)
}

func (r *Runner) fail(ctx context.Context, id, msg string, details service.JobFailureDetails) {
	if _, err := r.jobs.FailWithDetails(ctx, id, msg, details); err != nil {
		r.logger.ErrorContext(ctx, "fail job error", "job_id", id, "error", err)
	}
}

func (r *Runner) componentLabel() string {
	switch r.queue {
	case model.QueueIngestion:
		return "ingestion_runner"
	case model.QueueIntelligence:
		return "intelligence_runner"
	case model.QueueSales:
		return "sales_runner"
	case model.QueueSupport:
		return "support_runner"
	default:
		return "job_runner"
	}
}

func (r *Runner) handleRecipeCostJob(ctx context.Context, job *model.Job) error {
	payload, err := service.DecodeRecipeCostPayload(job.Payload)
	if err != nil {
		return err
	}
	_, err = r.costing.CalculateRecipeCost(ctx, job.OrganizationID, payload.RecipeID)
	return err
}

func (r *Runner) handleCommissionJob(ctx context.Context, job *model.Job) error {
	payload, err := service.DecodeCommissionPayload(job.Payload)
	if err != nil {
		return err
	}
	_, err = r.commission.CalculateCommission(
		ctx, job.OrganizationID, payload.PaymentRef, payload.Amount)
	return err
}

func (r *Runner) handleSalesSyncJob(ctx context.Context, job *model.Job) error {
	payload, err := service.DecodeSalesSyncPayload(job.Payload)
	if err != nil {
		return err
	}
	_, err = r.ingestion.SyncSales(ctx, job.OrganizationID, payload.Vendor, drivers.DateRange{
		Start: payload.Start,
		End:   payload.End,
	})
	return err
}

func (r *Runner) handleCatalogSyncJob(ctx context.Context, job *model.Job) error {
	payload, err := service.DecodeCatalogSyncPayload(job.Payload)
	if err != nil {
		return err
	}
	_, err = r.ingestion.SyncCatalog(ctx, job.OrganizationID, payload.Vendor)
	return err
}

func (r *Runner) handleTicketJob(ctx context.Context, job *model.Job) error {
	payload, err := service.DecodeTicketPayload(job.Payload)
	if err != nil {
		return err
	}
	result, err := r.support.TriageTicket(ctx, job.OrganizationID, payload.Subject, payload.Body)
	if err != nil {
		return err
	}
	r.logger.InfoContext(ctx, "ticket triaged",
		"job_id", job.ID,
		"organization_id", job.OrganizationID,
		"ticket_id", result.TicketID,
		"severity", result.Severity,
		"team", result.Team,
	)
	return nil
}
