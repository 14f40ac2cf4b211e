package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sous-os/sous-core/internal/core"
	"github.com/sous-os/sous-core/internal/domain/model"
)

// OrchestratorOptions configures the orchestration facade.
type OrchestratorOptions struct {
	Jobs      *JobService    // Required: job queue service
	Publisher core.Publisher // Optional: realtime presentation fan-out
	Logger    *slog.Logger   // Optional: structured logger
}

// Orchestrator is the single entry surface callers use to schedule work and
// inspect its fate. It marshals typed payloads, routes each kind to its owning
// queue, and hands presentation events to the broadcaster. It never executes
// jobs itself; the per-queue runners do that.
type Orchestrator struct {
	jobs      *JobService
	publisher core.Publisher
	logger    *slog.Logger
}

// NewOrchestrator constructs a new orchestration facade.
func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	if opts.Jobs == nil {
		return nil, errors.New("JobService is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "orchestrator")
	}

	return &Orchestrator{
		jobs:      opts.Jobs,
		publisher: opts.Publisher,
		logger:    logger,
	}, nil
}

// EnqueueRecipeCost schedules a cost recomputation for one recipe.
func (o *Orchestrator) EnqueueRecipeCost(
	ctx context.Context,
	organizationID, recipeID string,
) (*model.Job, error) {
	return o.enqueueKind(ctx, model.KindCalculateRecipeCost, organizationID,
		RecipeCostPayload{RecipeID: recipeID})
}

// EnqueueCommission schedules a commission posting for one payment.
func (o *Orchestrator) EnqueueCommission(
	ctx context.Context,
	organizationID string,
	payload CommissionPayload,
) (*model.Job, error) {
	return o.enqueueKind(ctx, model.KindCalculateCommission, organizationID, payload)
}

// EnqueueSalesSync schedules a pull of sales records from a POS vendor for
// the given window.
func (o *Orchestrator) EnqueueSalesSync(
	ctx context.Context,
	organizationID string,
	payload SalesSyncPayload,
) (*model.Job, error) {
	return o.enqueueKind(ctx, model.KindSyncSales, organizationID, payload)
}

// EnqueueCatalogSync schedules a pull of the product catalog from a POS vendor.
func (o *Orchestrator) EnqueueCatalogSync(
	ctx context.Context,
	organizationID, vendor string,
) (*model.Job, error) {
	return o.enqueueKind(ctx, model.KindSyncCatalog, organizationID,
		CatalogSyncPayload{Vendor: vendor})
}

// EnqueueTicket schedules triage of an inbound support report.
func (o *Orchestrator) EnqueueTicket(
	ctx context.Context,
	organizationID string,
	payload TicketPayload,
) (*model.Job, error) {
	return o.enqueueKind(ctx, model.KindTriageTicket, organizationID, payload)
}

// Schedule enqueues a job of the given kind with a raw payload at a specific
// time. Used by callers that build payloads themselves.
func (o *Orchestrator) Schedule(
	ctx context.Context,
	kind model.JobKind,
	organizationID string,
	payload json.RawMessage,
	at time.Time,
) (*model.Job, error) {
	queue, ok := QueueForKind(kind)
	if !ok {
		return nil, fmt.Errorf("no queue registered for kind %q", kind)
	}

	req := &model.EnqueueRequest{
		Queue:          queue,
		Kind:           kind,
		Payload:        payload,
		OrganizationID: organizationID,
	}
	if !at.IsZero() {
		req.ScheduledAt = &at
	}

	return o.jobs.Enqueue(ctx, req)
}

func (o *Orchestrator) enqueueKind(
	ctx context.Context,
	kind model.JobKind,
	organizationID string,
	payload any,
) (*model.Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", kind, err)
	}

	job, err := o.Schedule(ctx, kind, organizationID, raw, time.Time{})
	if err != nil {
		return nil, err
	}

	if o.logger != nil {
		o.logger.DebugContext(ctx, "work scheduled",
			"job_id", job.ID,
			"queue", job.Queue,
			"kind", job.Kind,
			"organization_id", organizationID,
		)
	}

	return job, nil
}

// JobStatus returns the externally visible status of a previously enqueued job.
func (o *Orchestrator) JobStatus(ctx context.Context, id string) (*model.JobStatusResponse, error) {
	return o.jobs.GetStatus(ctx, id)
}

// QueueStats returns per-state job counts for a queue.
func (o *Orchestrator) QueueStats(
	ctx context.Context,
	queue model.QueueName,
) (*model.QueueStats, error) {
	return o.jobs.Stats(ctx, queue)
}

// ListDeadLettered returns the most recently dead-lettered jobs on a queue.
func (o *Orchestrator) ListDeadLettered(
	ctx context.Context,
	queue model.QueueName,
	limit int,
) ([]*model.Job, error) {
	return o.jobs.ListDeadLettered(ctx, queue, limit)
}

// Requeue returns a dead-lettered job to its queue with a fresh attempt budget.
func (o *Orchestrator) Requeue(ctx context.Context, id string) (*model.Job, error) {
	return o.jobs.Requeue(ctx, id)
}

// Publish hands a presentation event to the broadcaster. Delivery is
// fire-and-forget; a nil publisher makes this a no-op.
func (o *Orchestrator) Publish(ctx context.Context, event model.PresentationEvent) error {
	if o.publisher == nil {
		return nil
	}
	return o.publisher.Publish(ctx, event)
}
