package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// Job repository sentinels.
	ErrJobNotFound       = errors.New("job not found")
	ErrJobNotLeased      = errors.New("job is not leased")
	ErrJobNotRequeueable = errors.New("job cannot be requeued (must be in dead_lettered status)")

	// Ledger repository sentinels.
	ErrLedgerEntryNotFound = errors.New("ledger entry not found")
	ErrLedgerEntryExists   = errors.New("ledger entry already exists for reference")

	// Recipe repository sentinels.
	ErrRecipeNotFound     = errors.New("recipe not found")
	ErrIngredientNotFound = errors.New("ingredient not found")

	// Display repository sentinels.
	ErrDisplayNotFound = errors.New("display not found")

	// Snapshot repository sentinels.
	ErrSnapshotNotFound = errors.New("cost snapshot not found")

	// Attribution repository sentinels.
	ErrAttributionNotFound = errors.New("commission attribution not found")
)
