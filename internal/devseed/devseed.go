// Package devseed populates a development database with a small restaurant
// fixture: one organization with priced ingredients, a recipe graph that
// includes a sub-recipe, displays bound to recipes, and a commission
// attribution. Seeding is idempotent; fixed identifiers upsert in place.
package devseed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// DefaultOrganizationID is the organization all fixture rows belong to.
const DefaultOrganizationID = "org-dev"

// Fixed identifiers so repeated seeding updates rather than duplicates.
const (
	ingredientFlourID  = "11111111-1111-1111-1111-111111111101"
	ingredientButterID = "11111111-1111-1111-1111-111111111102"
	ingredientTomatoID = "11111111-1111-1111-1111-111111111103"
	ingredientBasilID  = "11111111-1111-1111-1111-111111111104"

	recipeDoughID     = "22222222-2222-2222-2222-222222222201"
	recipeMargheritaID = "22222222-2222-2222-2222-222222222202"

	displayKitchenID = "33333333-3333-3333-3333-333333333301"
	displayPassID    = "33333333-3333-3333-3333-333333333302"
)

type seedIngredient struct {
	id       string
	name     string
	baseUnit string
	unitCost int64
	hasPrice bool
}

type seedRecipeLine struct {
	ingredientID string
	subRecipeID  string
	quantity     float64
	unit         string
}

type seedRecipe struct {
	id    string
	name  string
	lines []seedRecipeLine
}

type seedDisplay struct {
	id         string
	hardwareID string
	name       string
	recipeID   string
}

type seedCatalogItem struct {
	externalID string
	name       string
	price      int64
	sku        string
}

// Run seeds the development fixture into db.
func Run(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if err := seedAttribution(ctx, db); err != nil {
		return fmt.Errorf("seed commission attribution: %w", err)
	}
	if err := seedIngredients(ctx, db); err != nil {
		return fmt.Errorf("seed ingredients: %w", err)
	}
	if err := seedRecipes(ctx, db); err != nil {
		return fmt.Errorf("seed recipes: %w", err)
	}
	if err := seedDisplays(ctx, db); err != nil {
		return fmt.Errorf("seed displays: %w", err)
	}
	if err := seedCatalog(ctx, db); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}

	if logger != nil {
		logger.InfoContext(ctx, "development data seeded", "organization_id", DefaultOrganizationID)
	}
	return nil
}

func seedAttribution(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO commission_attributions (organization_id, salesman_id, bps)
		VALUES ($1, $2, $3)
		ON CONFLICT (organization_id) DO UPDATE SET
			salesman_id = EXCLUDED.salesman_id,
			bps = EXCLUDED.bps`,
		DefaultOrganizationID, "rep-dev", 250)
	return err
}

func seedIngredients(ctx context.Context, db *sql.DB) error {
	ingredients := []seedIngredient{
		{id: ingredientFlourID, name: "Flour", baseUnit: "g", unitCost: 2, hasPrice: true},
		{id: ingredientButterID, name: "Butter", baseUnit: "g", unitCost: 9, hasPrice: true},
		{id: ingredientTomatoID, name: "Tomato", baseUnit: "g", unitCost: 4, hasPrice: true},
		// No supplier price on record yet; costing reports it unpriced.
		{id: ingredientBasilID, name: "Basil", baseUnit: "g", unitCost: 0, hasPrice: false},
	}

	for _, ing := range ingredients {
		_, err := db.ExecContext(ctx, `
			INSERT INTO ingredients (id, organization_id, name, base_unit, unit_cost, has_price)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				base_unit = EXCLUDED.base_unit,
				unit_cost = EXCLUDED.unit_cost,
				has_price = EXCLUDED.has_price`,
			ing.id, DefaultOrganizationID, ing.name, ing.baseUnit, ing.unitCost, ing.hasPrice)
		if err != nil {
			return fmt.Errorf("upsert ingredient %s: %w", ing.name, err)
		}
	}
	return nil
}

func seedRecipes(ctx context.Context, db *sql.DB) error {
	recipes := []seedRecipe{
		{
			id:   recipeDoughID,
			name: "Pizza Dough",
			lines: []seedRecipeLine{
				{ingredientID: ingredientFlourID, quantity: 0.5, unit: "kg"},
				{ingredientID: ingredientButterID, quantity: 30, unit: "g"},
			},
		},
		{
			id:   recipeMargheritaID,
			name: "Margherita",
			lines: []seedRecipeLine{
				{subRecipeID: recipeDoughID, quantity: 1, unit: "g"},
				{ingredientID: ingredientTomatoID, quantity: 120, unit: "g"},
				{ingredientID: ingredientBasilID, quantity: 10, unit: "g"},
			},
		},
	}

	for _, recipe := range recipes {
		_, err := db.ExecContext(ctx, `
			INSERT INTO recipes (id, organization_id, name)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
			recipe.id, DefaultOrganizationID, recipe.name)
		if err != nil {
			return fmt.Errorf("upsert recipe %s: %w", recipe.name, err)
		}

		// Replace lines wholesale; position encodes the authored order.
		if _, err = db.ExecContext(ctx,
			`DELETE FROM recipe_lines WHERE recipe_id = $1`, recipe.id); err != nil {
			return fmt.Errorf("clear lines for recipe %s: %w", recipe.name, err)
		}

		for position, line := range recipe.lines {
			var ingredientID, subRecipeID any
			if line.ingredientID != "" {
				ingredientID = line.ingredientID
			}
			if line.subRecipeID != "" {
				subRecipeID = line.subRecipeID
			}
			_, err = db.ExecContext(ctx, `
				INSERT INTO recipe_lines (recipe_id, ingredient_id, sub_recipe_id, quantity, unit, position)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				recipe.id, ingredientID, subRecipeID, line.quantity, line.unit, position)
			if err != nil {
				return fmt.Errorf("insert line %d for recipe %s: %w", position, recipe.name, err)
			}
		}
	}
	return nil
}

func seedDisplays(ctx context.Context, db *sql.DB) error {
	displays := []seedDisplay{
		{id: displayKitchenID, hardwareID: "hw-kitchen-01", name: "Kitchen Display", recipeID: recipeMargheritaID},
		{id: displayPassID, hardwareID: "hw-pass-01", name: "Pass Display", recipeID: recipeDoughID},
	}

	for _, display := range displays {
		_, err := db.ExecContext(ctx, `
			INSERT INTO displays (id, organization_id, hardware_id, name, recipe_id)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (hardware_id) DO UPDATE SET
				name = EXCLUDED.name,
				recipe_id = EXCLUDED.recipe_id`,
			display.id, DefaultOrganizationID, display.hardwareID, display.name, display.recipeID)
		if err != nil {
			return fmt.Errorf("upsert display %s: %w", display.hardwareID, err)
		}
	}
	return nil
}

func seedCatalog(ctx context.Context, db *sql.DB) error {
	items := []seedCatalogItem{
		{externalID: "sq-margherita", name: "Margherita", price: 1200, sku: "PZ-001"},
		{externalID: "sq-espresso", name: "Espresso", price: 300, sku: "DR-001"},
	}

	for _, item := range items {
		_, err := db.ExecContext(ctx, `
			INSERT INTO catalog_items (organization_id, external_id, name, price, sku, updated_at)
			VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT (organization_id, external_id) DO UPDATE SET
				name = EXCLUDED.name,
				price = EXCLUDED.price,
				sku = EXCLUDED.sku,
				updated_at = now()`,
			DefaultOrganizationID, item.externalID, item.name, item.price, item.sku)
		if err != nil {
			return fmt.Errorf("upsert catalog item %s: %w", item.externalID, err)
		}
	}
	return nil
}
