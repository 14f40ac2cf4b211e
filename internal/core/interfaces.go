package core

import (
	"context"
	"time"

	"github.com/sous-os/sous-core/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// FailJobParams groups parameters for JobRepository.Fail to keep param count ≤3.
type FailJobParams struct {
	ID     string
	ErrMsg string
	// Permanent routes the job straight to the dead-letter surface without
	// consuming remaining attempts.
	Permanent bool
}

// JobRepository defines the interface for durable job queue operations. The
// backing store is the single source of truth for lease ownership: no
// in-memory lock may substitute for its atomic lease transition.
type JobRepository interface {
	Enqueue(ctx context.Context, req *model.EnqueueRequest) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	ReserveNext(ctx context.Context, queue model.QueueName, leaseSeconds int) (*model.Job, error)
	WaitForNotification(ctx context.Context, queue model.QueueName) error
	Heartbeat(ctx context.Context, jobID string, leaseSeconds int) (bool, error)
	Complete(ctx context.Context, id string) (bool, error)
	Fail(ctx context.Context, params FailJobParams) (*model.Job, error)
	Stats(ctx context.Context, queue model.QueueName) (*model.QueueStats, error)
	PendingDepth(ctx context.Context, queue model.QueueName) (int, error)
	ListDeadLettered(ctx context.Context, queue model.QueueName, limit int) ([]*model.Job, error)
	Requeue(ctx context.Context, id string) (*model.Job, error)
}

// LedgerRepository defines the interface for append-only ledger postings.
type LedgerRepository interface {
	Create(ctx context.Context, entry *model.LedgerEntry) (*model.LedgerEntry, error)
	GetByReference(ctx context.Context, organizationID, referenceID string) (*model.LedgerEntry, error)
	ListByOrganization(ctx context.Context, organizationID string, limit int) ([]*model.LedgerEntry, error)
}

// AttributionRepository resolves an organization's commission attribution.
type AttributionRepository interface {
	GetByOrganization(ctx context.Context, organizationID string) (*model.CommissionAttribution, error)
}

// RecipeRepository defines read access to the recipe bill-of-materials graph.
type RecipeRepository interface {
	GetByID(ctx context.Context, recipeID, organizationID string) (*model.Recipe, error)
	GetIngredient(ctx context.Context, ingredientID, organizationID string) (*model.Ingredient, error)
}

// CostSnapshotRepository persists immutable recipe cost snapshots.
type CostSnapshotRepository interface {
	Create(ctx context.Context, result *model.RecipeCostResult) error
	Latest(ctx context.Context, recipeID, organizationID string) (*model.RecipeCostResult, error)
}

// DisplayRepository resolves physical displays by hardware identity. The
// broadcaster uses it for cross-tenant authorization; the costing engine uses
// it to find displays rendering a recipe's cost.
type DisplayRepository interface {
	GetByHardwareID(ctx context.Context, hardwareID string) (*model.Display, error)
	ListByRecipe(ctx context.Context, recipeID, organizationID string) ([]*model.Display, error)
}

// CatalogRepository persists normalized catalog items handed over by the
// ingestion engine.
type CatalogRepository interface {
	Upsert(ctx context.Context, item *model.CatalogItem) error
}

// TicketRepository persists triaged support reports.
type TicketRepository interface {
	Create(ctx context.Context, ticket *model.Ticket) (*model.Ticket, error)
	ListByOrganization(ctx context.Context, organizationID string, limit int) ([]*model.Ticket, error)
}

// Publisher fans a presentation event out to live subscribers. Delivery is
// fire-and-forget: no acknowledgment, no persistence, no replay.
type Publisher interface {
	Publish(ctx context.Context, event model.PresentationEvent) error
}

// Enqueuer is the narrow enqueue surface engines use to schedule downstream
// work. Callers must not assume synchronous completion.
type Enqueuer interface {
	Enqueue(ctx context.Context, req *model.EnqueueRequest) (*model.Job, error)
}

// DeleteOldJobsParams groups parameters for ReaperRepository.DeleteOldJobs.
type DeleteOldJobsParams struct {
	Status    model.JobStatus
	MaxAge    time.Duration
	BatchSize int
}

// ReaperRepository defines the interface for job retention cleanup.
type ReaperRepository interface {
	// DeleteOldJobs deletes jobs with the given terminal status older than
	// MaxAge, up to BatchSize rows per call to keep locks short. Returns the
	// number of jobs deleted.
	DeleteOldJobs(ctx context.Context, params DeleteOldJobsParams) (int64, error)
}
