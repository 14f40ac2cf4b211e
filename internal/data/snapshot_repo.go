package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sous-os/sous-core/internal/domain/model"
)

// SnapshotRepo persists immutable recipe cost snapshots. A newer snapshot for
// the same recipe supersedes older ones; rows are never updated in place.
type SnapshotRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewSnapshotRepo creates a new SnapshotRepo.
func NewSnapshotRepo(db *sql.DB) *SnapshotRepo {
	return &SnapshotRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// Create inserts a new cost snapshot.
func (r *SnapshotRepo) Create(ctx context.Context, result *model.RecipeCostResult) error {
	if result == nil {
		return errors.New("cost result is required")
	}

	components, err := json.Marshal(result.Components)
	if err != nil {
		return fmt.Errorf("marshal cost components: %w", err)
	}

	computedAt := result.ComputedAt
	if computedAt.IsZero() {
		computedAt = r.timeProvider.Now()
	}

	if _, err := r.DB.ExecContext(ctx, `
		INSERT INTO cost_snapshots(recipe_id, organization_id, total_cost, components, computed_at)
		VALUES ($1,$2,$3,$4,$5)
	`, result.RecipeID, result.OrganizationID, result.TotalCost, components, computedAt.UTC()); err != nil {
		return fmt.Errorf("create cost snapshot: %w", err)
	}
	return nil
}

// Latest returns the most recent snapshot for a recipe, scoped to the owning
// organization.
func (r *SnapshotRepo) Latest(ctx context.Context, recipeID, organizationID string) (*model.RecipeCostResult, error) {
	var result model.RecipeCostResult
	var components []byte
	err := r.DB.QueryRowContext(ctx, `
		SELECT recipe_id, organization_id, total_cost, components, computed_at
		FROM cost_snapshots
		WHERE recipe_id = $1 AND organization_id = $2
		ORDER BY computed_at DESC
		LIMIT 1
	`, recipeID, organizationID).Scan(
		&result.RecipeID, &result.OrganizationID, &result.TotalCost, &components, &result.ComputedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest cost snapshot: %w", err)
	}

	if unmarshalErr := json.Unmarshal(components, &result.Components); unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal cost components: %w", unmarshalErr)
	}
	result.ComputedAt = result.ComputedAt.UTC()
	return &result, nil
}
