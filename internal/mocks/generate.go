// Package mocks provides mock implementations for testing the sous-core job system.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our repository interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRepo := mocks.NewMockJobRepository(ctrl)
//	mockRepo.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(job, nil)
package mocks

// Generate mock for JobRepository interface from internal/core package.
// This creates MockJobRepository with methods for all JobRepository interface methods:
// Enqueue, GetByID, ReserveNext, WaitForNotification, Heartbeat, Complete, Fail,
// Stats, PendingDepth, ListDeadLettered, Requeue
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_repository_mock.go github.com/sous-os/sous-core/internal/core JobRepository

// Generate mock for LedgerRepository interface from internal/core package.
// This creates MockLedgerRepository with methods for all LedgerRepository interface methods:
// Create, GetByReference, ListByOrganization
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=ledger_repository_mock.go github.com/sous-os/sous-core/internal/core LedgerRepository

// Generate mock for AttributionRepository interface from internal/core package.
// This creates MockAttributionRepository with methods for all AttributionRepository interface methods:
// GetByOrganization
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=attribution_repository_mock.go github.com/sous-os/sous-core/internal/core AttributionRepository

// Generate mock for RecipeRepository interface from internal/core package.
// This creates MockRecipeRepository with methods for all RecipeRepository interface methods:
// GetByID, GetIngredient
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=recipe_repository_mock.go github.com/sous-os/sous-core/internal/core RecipeRepository

// Generate mock for CostSnapshotRepository interface from internal/core package.
// This creates MockCostSnapshotRepository with methods for all CostSnapshotRepository interface methods:
// Create, Latest
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=cost_snapshot_repository_mock.go github.com/sous-os/sous-core/internal/core CostSnapshotRepository

// Generate mock for DisplayRepository interface from internal/core package.
// This creates MockDisplayRepository with methods for all DisplayRepository interface methods:
// GetByHardwareID, ListByRecipe
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=display_repository_mock.go github.com/sous-os/sous-core/internal/core DisplayRepository

// Generate mock for CatalogRepository interface from internal/core package.
// This creates MockCatalogRepository with methods for all CatalogRepository interface methods:
// Upsert
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=catalog_repository_mock.go github.com/sous-os/sous-core/internal/core CatalogRepository

// Generate mock for Publisher interface from internal/core package.
// This creates MockPublisher with methods for all Publisher interface methods:
// Publish
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=publisher_mock.go github.com/sous-os/sous-core/internal/core Publisher

// Generate mock for Enqueuer interface from internal/core package.
// This creates MockEnqueuer with methods for all Enqueuer interface methods:
// Enqueue
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=enqueuer_mock.go github.com/sous-os/sous-core/internal/core Enqueuer

// Generate mock for TicketRepository interface from internal/core package.
// This creates MockTicketRepository with methods for all TicketRepository interface methods:
// Create, ListByOrganization
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=ticket_repository_mock.go github.com/sous-os/sous-core/internal/core TicketRepository

// Generate mock for ReaperRepository interface from internal/core package.
// This creates MockReaperRepository with methods for all ReaperRepository interface methods:
// DeleteOldJobs
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=reaper_repository_mock.go github.com/sous-os/sous-core/internal/core ReaperRepository
