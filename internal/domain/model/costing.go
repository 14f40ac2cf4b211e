package model

import "time"

// Ingredient is a leaf node in a recipe's bill of materials. UnitCost is in
// minor currency units per BaseUnit; HasPrice is false when no price has been
// recorded yet.
type Ingredient struct {
	ID             string `json:"id"              db:"id"`
	OrganizationID string `json:"organization_id" db:"organization_id"`
	Name           string `json:"name"            db:"name"`
	BaseUnit       string `json:"base_unit"       db:"base_unit"`
	UnitCost       int64  `json:"unit_cost"       db:"unit_cost"`
	HasPrice       bool   `json:"has_price"       db:"has_price"`
}

// RecipeLine is one component of a recipe: either a leaf ingredient or a
// nested sub-recipe, never both.
type RecipeLine struct {
	IngredientID *string `json:"ingredient_id,omitempty" db:"ingredient_id"`
	SubRecipeID  *string `json:"sub_recipe_id,omitempty" db:"sub_recipe_id"`
	Quantity     float64 `json:"quantity"                db:"quantity"`
	Unit         string  `json:"unit"                    db:"unit"`
}

// Recipe is a named bill of materials owned by one organization.
type Recipe struct {
	ID             string       `json:"id"              db:"id"`
	OrganizationID string       `json:"organization_id" db:"organization_id"`
	Name           string       `json:"name"            db:"name"`
	Lines          []RecipeLine `json:"lines"`
}

// ComponentCost is one line of a cost breakdown. Costs are minor currency
// units; Unpriced flags lines costed at zero because the ingredient has no
// recorded price.
type ComponentCost struct {
	IngredientID string  `json:"ingredient_id"`
	Quantity     float64 `json:"quantity"`
	UnitCost     int64   `json:"unit_cost"`
	LineCost     int64   `json:"line_cost"`
	Unpriced     bool    `json:"unpriced"`
}

// RecipeCostResult is an immutable costing snapshot. A newer computation for
// the same recipe supersedes it; snapshots are never mutated.
type RecipeCostResult struct {
	RecipeID       string          `json:"recipe_id"`
	OrganizationID string          `json:"organization_id"`
	TotalCost      int64           `json:"total_cost"`
	Components     []ComponentCost `json:"components"`
	ComputedAt     time.Time       `json:"computed_at"`
}
