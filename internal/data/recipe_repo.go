package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sous-os/sous-core/internal/domain/model"
)

// RecipeRepo provides read access to the recipe bill-of-materials graph.
type RecipeRepo struct {
	DB *sql.DB
}

// NewRecipeRepo creates a new RecipeRepo.
func NewRecipeRepo(db *sql.DB) *RecipeRepo {
	return &RecipeRepo{DB: db}
}

// GetByID retrieves a recipe with its component lines, scoped to the owning
// organization.
func (r *RecipeRepo) GetByID(ctx context.Context, recipeID, organizationID string) (*model.Recipe, error) {
	var recipe model.Recipe
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, organization_id, name
		FROM recipes
		WHERE id = $1 AND organization_id = $2
	`, recipeID, organizationID).Scan(&recipe.ID, &recipe.OrganizationID, &recipe.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecipeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recipe: %w", err)
	}

	lines, err := r.linesForRecipe(ctx, recipe.ID)
	if err != nil {
		return nil, err
	}
	recipe.Lines = lines
	return &recipe, nil
}

func (r *RecipeRepo) linesForRecipe(ctx context.Context, recipeID string) ([]model.RecipeLine, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT ingredient_id, sub_recipe_id, quantity, unit
		FROM recipe_lines
		WHERE recipe_id = $1
		ORDER BY position
	`, recipeID)
	if err != nil {
		return nil, fmt.Errorf("list recipe lines: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var lines []model.RecipeLine
	for rows.Next() {
		var line model.RecipeLine
		var ingredientID, subRecipeID sql.NullString
		if scanErr := rows.Scan(&ingredientID, &subRecipeID, &line.Quantity, &line.Unit); scanErr != nil {
			return nil, fmt.Errorf("scan recipe line: %w", scanErr)
		}
		line.IngredientID = cloneNullableString(ingredientID)
		line.SubRecipeID = cloneNullableString(subRecipeID)
		lines = append(lines, line)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate recipe lines: %w", rowsErr)
	}
	return lines, nil
}

// GetIngredient retrieves a priced leaf ingredient scoped to the owning
// organization.
func (r *RecipeRepo) GetIngredient(ctx context.Context, ingredientID, organizationID string) (*model.Ingredient, error) {
	var ing model.Ingredient
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, organization_id, name, base_unit, unit_cost, has_price
		FROM ingredients
		WHERE id = $1 AND organization_id = $2
	`, ingredientID, organizationID).Scan(
		&ing.ID, &ing.OrganizationID, &ing.Name, &ing.BaseUnit, &ing.UnitCost, &ing.HasPrice,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrIngredientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ingredient: %w", err)
	}
	return &ing, nil
}
