package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/sous-os/sous-core/internal/core"
	"github.com/sous-os/sous-core/internal/domain/model"
	"github.com/sous-os/sous-core/internal/domain/units"
	apperrors "github.com/sous-os/sous-core/internal/errors"
)

// CostingServiceOptions groups dependencies for CostingService.
type CostingServiceOptions struct {
	Recipes   core.RecipeRepository       // Required
	Snapshots core.CostSnapshotRepository // Required
	Displays  core.DisplayRepository      // Optional: enables fan-out of fresh costs
	Publisher core.Publisher              // Optional: realtime fan-out target
	Logger    *slog.Logger
}

// CostingService computes recipe costs from the bill-of-materials graph and
// persists immutable snapshots. Sub-recipes are costed recursively; a cycle
// in the graph is a permanent failure.
type CostingService struct {
	recipes   core.RecipeRepository
	snapshots core.CostSnapshotRepository
	displays  core.DisplayRepository
	publisher core.Publisher
	logger    *slog.Logger
}

// NewCostingService constructs a new CostingService.
func NewCostingService(opts CostingServiceOptions) (*CostingService, error) {
	if opts.Recipes == nil {
		return nil, errors.New("RecipeRepository is required")
	}
	if opts.Snapshots == nil {
		return nil, errors.New("CostSnapshotRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "costing_service")
	}

	return &CostingService{
		recipes:   opts.Recipes,
		snapshots: opts.Snapshots,
		displays:  opts.Displays,
		publisher: opts.Publisher,
		logger:    logger,
	}, nil
}

// CalculateRecipeCost walks the recipe's component graph, prices every leaf,
// records a snapshot, and pushes the fresh total to any displays rendering
// the recipe.
func (s *CostingService) CalculateRecipeCost(
	ctx context.Context,
	organizationID, recipeID string,
) (*model.RecipeCostResult, error) {
	visited := make(map[string]bool)
	components, total, err := s.costRecipe(ctx, organizationID, recipeID, visited)
	if err != nil {
		return nil, err
	}

	if len(components) == 0 {
		return nil, apperrors.NoPricingData(
			"recipe " + recipeID + " has no components to price")
	}

	result := &model.RecipeCostResult{
		RecipeID:       recipeID,
		OrganizationID: organizationID,
		TotalCost:      total,
		Components:     components,
		ComputedAt:     time.Now().UTC(),
	}

	if err := s.snapshots.Create(ctx, result); err != nil {
		return nil, fmt.Errorf("persist cost snapshot: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "recipe cost computed",
			"recipe_id", recipeID,
			"organization_id", organizationID,
			"total_cost", total,
			"components", len(components),
		)
	}

	s.publishCostUpdate(ctx, result)

	return result, nil
}

// costRecipe returns the priced component lines and total for one recipe,
// recursing into sub-recipes. The visited set spans the whole walk, so any
// recipe reachable twice along a path reports a cycle.
func (s *CostingService) costRecipe(
	ctx context.Context,
	organizationID, recipeID string,
	visited map[string]bool,
) ([]model.ComponentCost, int64, error) {
	if visited[recipeID] {
		return nil, 0, apperrors.CircularRecipeReference(
			"recipe " + recipeID + " references itself through its components")
	}
	visited[recipeID] = true
	defer delete(visited, recipeID)

	recipe, err := s.recipes.GetByID(ctx, recipeID, organizationID)
	if err != nil {
		return nil, 0, fmt.Errorf("load recipe %s: %w", recipeID, err)
	}

	var components []model.ComponentCost
	var total int64
	for _, line := range recipe.Lines {
		switch {
		case line.IngredientID != nil:
			component, lineErr := s.costIngredientLine(ctx, organizationID, line)
			if lineErr != nil {
				return nil, 0, lineErr
			}
			components = append(components, *component)
			total += component.LineCost
		case line.SubRecipeID != nil:
			subComponents, subTotal, subErr := s.costRecipe(ctx, organizationID, *line.SubRecipeID, visited)
			if subErr != nil {
				return nil, 0, subErr
			}
			scaled := scaleComponents(subComponents, line.Quantity)
			components = append(components, scaled...)
			total += scaleCost(subTotal, line.Quantity)
		default:
			return nil, 0, apperrors.Validationf(
				"recipe %s has a line with neither ingredient nor sub-recipe", recipeID)
		}
	}

	return components, total, nil
}

// costIngredientLine prices one leaf line. An ingredient without a recorded
// price contributes a zero-cost component flagged Unpriced rather than
// failing the computation.
func (s *CostingService) costIngredientLine(
	ctx context.Context,
	organizationID string,
	line model.RecipeLine,
) (*model.ComponentCost, error) {
	ingredient, err := s.recipes.GetIngredient(ctx, *line.IngredientID, organizationID)
	if err != nil {
		return nil, fmt.Errorf("load ingredient %s: %w", *line.IngredientID, err)
	}

	if !ingredient.HasPrice {
		return &model.ComponentCost{
			IngredientID: ingredient.ID,
			Quantity:     line.Quantity,
			Unpriced:     true,
		}, nil
	}

	quantityInBase, err := units.Convert(line.Quantity, line.Unit, ingredient.BaseUnit)
	if err != nil {
		// Unknown or mismatched unit pairs fall back to 1:1 rather than
		// failing the whole recipe.
		quantityInBase = line.Quantity
		if s.logger != nil {
			s.logger.WarnContext(ctx, "unit conversion unavailable, assuming 1:1",
				"ingredient_id", ingredient.ID,
				"from_unit", line.Unit,
				"to_unit", ingredient.BaseUnit,
				"error", err,
			)
		}
	}

	lineCost := int64(math.Round(quantityInBase * float64(ingredient.UnitCost)))
	return &model.ComponentCost{
		IngredientID: ingredient.ID,
		Quantity:     line.Quantity,
		UnitCost:     ingredient.UnitCost,
		LineCost:     lineCost,
	}, nil
}

func scaleComponents(components []model.ComponentCost, factor float64) []model.ComponentCost {
	out := make([]model.ComponentCost, len(components))
	for i, c := range components {
		c.Quantity *= factor
		c.LineCost = scaleCost(c.LineCost, factor)
		out[i] = c
	}
	return out
}

func scaleCost(cost int64, factor float64) int64 {
	return int64(math.Round(float64(cost) * factor))
}

// costUpdatePayload is the wire shape pushed to displays after a recompute.
type costUpdatePayload struct {
	RecipeID   string    `json:"recipe_id"`
	TotalCost  int64     `json:"total_cost"`
	ComputedAt time.Time `json:"computed_at"`
}

// publishCostUpdate is best-effort: a display that misses the push pulls
// current state on its next connect.
func (s *CostingService) publishCostUpdate(ctx context.Context, result *model.RecipeCostResult) {
	if s.publisher == nil || s.displays == nil {
		return
	}

	displays, err := s.displays.ListByRecipe(ctx, result.RecipeID, result.OrganizationID)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "list displays for cost fan-out failed",
				"recipe_id", result.RecipeID, "error", err)
		}
		return
	}

	payload, err := json.Marshal(costUpdatePayload{
		RecipeID:   result.RecipeID,
		TotalCost:  result.TotalCost,
		ComputedAt: result.ComputedAt,
	})
	if err != nil {
		return
	}

	for _, display := range displays {
		event := model.PresentationEvent{
			HardwareID:     display.HardwareID,
			OrganizationID: display.OrganizationID,
			Kind:           model.PresentationContentUpdated,
			Payload:        payload,
		}
		if pubErr := s.publisher.Publish(ctx, event); pubErr != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "publish cost update failed",
				"hardware_id", display.HardwareID, "error", pubErr)
		}
	}
}
