package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sous-os/sous-core/internal/domain/model"
)

// DisplayRepo resolves physical displays by hardware identity.
type DisplayRepo struct {
	DB *sql.DB
}

// NewDisplayRepo creates a new DisplayRepo.
func NewDisplayRepo(db *sql.DB) *DisplayRepo {
	return &DisplayRepo{DB: db}
}

const displayColumns = `id, organization_id, hardware_id, name, recipe_id, created_at`

// GetByHardwareID retrieves the display registered for a hardware identity.
func (r *DisplayRepo) GetByHardwareID(ctx context.Context, hardwareID string) (*model.Display, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+displayColumns+`
		FROM displays
		WHERE hardware_id = $1
	`, hardwareID)

	display, err := scanDisplay(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDisplayNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get display: %w", err)
	}
	return display, nil
}

// ListByRecipe returns the displays currently rendering a recipe, scoped to
// the owning organization.
func (r *DisplayRepo) ListByRecipe(ctx context.Context, recipeID, organizationID string) ([]*model.Display, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+displayColumns+`
		FROM displays
		WHERE recipe_id = $1 AND organization_id = $2
		ORDER BY created_at
	`, recipeID, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list displays by recipe: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var displays []*model.Display
	for rows.Next() {
		display, scanErr := scanDisplay(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan display: %w", scanErr)
		}
		displays = append(displays, display)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate displays: %w", rowsErr)
	}
	return displays, nil
}

func scanDisplay(scanner jobRowScanner) (*model.Display, error) {
	var display model.Display
	var recipeID sql.NullString
	if err := scanner.Scan(
		&display.ID,
		&display.OrganizationID,
		&display.HardwareID,
		&display.Name,
		&recipeID,
		&display.CreatedAt,
	); err != nil {
		return nil, err
	}
	display.RecipeID = cloneNullableString(recipeID)
	display.CreatedAt = display.CreatedAt.UTC()
	return &display, nil
}
