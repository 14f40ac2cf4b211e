package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sous-os/sous-core/internal/domain/model"
	apperrors "github.com/sous-os/sous-core/internal/errors"
	"github.com/sous-os/sous-core/internal/mocks"
)

func strPtr(s string) *string { return &s }

type costingFixture struct {
	recipes   *mocks.MockRecipeRepository
	snapshots *mocks.MockCostSnapshotRepository
	displays  *mocks.MockDisplayRepository
	publisher *mocks.MockPublisher
	svc       *CostingService
}

func newCostingFixture(t *testing.T, ctrl *gomock.Controller, withFanOut bool) *costingFixture {
	t.Helper()
	f := &costingFixture{
		recipes:   mocks.NewMockRecipeRepository(ctrl),
		snapshots: mocks.NewMockCostSnapshotRepository(ctrl),
	}
	opts := CostingServiceOptions{
		Recipes:   f.recipes,
		Snapshots: f.snapshots,
	}
	if withFanOut {
		f.displays = mocks.NewMockDisplayRepository(ctrl)
		f.publisher = mocks.NewMockPublisher(ctrl)
		opts.Displays = f.displays
		opts.Publisher = f.publisher
	}
	svc, err := NewCostingService(opts)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestNewCostingService(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	t.Run("missing recipes", func(t *testing.T) {
		_, err := NewCostingService(CostingServiceOptions{
			Snapshots: mocks.NewMockCostSnapshotRepository(ctrl),
		})
		require.Error(t, err)
	})

	t.Run("missing snapshots", func(t *testing.T) {
		_, err := NewCostingService(CostingServiceOptions{
			Recipes: mocks.NewMockRecipeRepository(ctrl),
		})
		require.Error(t, err)
	})
}

func TestCalculateRecipeCostFlat(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newCostingFixture(t, ctrl, false)

	// 0.5 kg of flour at 2 per gram plus 30 g of butter at 9 per gram:
	// 500*2 + 30*9 = 1270.
	f.recipes.EXPECT().GetByID(ctx, "dough", "org-1").Return(&model.Recipe{
		ID:             "dough",
		OrganizationID: "org-1",
		Lines: []model.RecipeLine{
			{IngredientID: strPtr("flour"), Quantity: 0.5, Unit: "kg"},
			{IngredientID: strPtr("butter"), Quantity: 30, Unit: "g"},
		},
	}, nil)
	f.recipes.EXPECT().GetIngredient(ctx, "flour", "org-1").Return(&model.Ingredient{
		ID: "flour", BaseUnit: "g", UnitCost: 2, HasPrice: true,
	}, nil)
	f.recipes.EXPECT().GetIngredient(ctx, "butter", "org-1").Return(&model.Ingredient{
		ID: "butter", BaseUnit: "g", UnitCost: 9, HasPrice: true,
	}, nil)
	f.snapshots.EXPECT().Create(ctx, gomock.Any()).Return(nil)

	result, err := f.svc.CalculateRecipeCost(ctx, "org-1", "dough")
	require.NoError(t, err)
	assert.Equal(t, int64(1270), result.TotalCost)
	assert.Len(t, result.Components, 2)
	assert.False(t, result.ComputedAt.IsZero())
}

func TestCalculateRecipeCostNestedSubRecipe(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newCostingFixture(t, ctrl, false)

	// Margherita uses half a dough (1000) plus 120 g tomato at 2 each:
	// 1000*0.5 + 240 = 740.
	f.recipes.EXPECT().GetByID(ctx, "margherita", "org-1").Return(&model.Recipe{
		ID: "margherita",
		Lines: []model.RecipeLine{
			{SubRecipeID: strPtr("dough"), Quantity: 0.5, Unit: "each"},
			{IngredientID: strPtr("tomato"), Quantity: 120, Unit: "g"},
		},
	}, nil)
	f.recipes.EXPECT().GetByID(ctx, "dough", "org-1").Return(&model.Recipe{
		ID: "dough",
		Lines: []model.RecipeLine{
			{IngredientID: strPtr("flour"), Quantity: 500, Unit: "g"},
		},
	}, nil)
	f.recipes.EXPECT().GetIngredient(ctx, "flour", "org-1").Return(&model.Ingredient{
		ID: "flour", BaseUnit: "g", UnitCost: 2, HasPrice: true,
	}, nil)
	f.recipes.EXPECT().GetIngredient(ctx, "tomato", "org-1").Return(&model.Ingredient{
		ID: "tomato", BaseUnit: "g", UnitCost: 2, HasPrice: true,
	}, nil)
	f.snapshots.EXPECT().Create(ctx, gomock.Any()).Return(nil)

	result, err := f.svc.CalculateRecipeCost(ctx, "org-1", "margherita")
	require.NoError(t, err)
	assert.Equal(t, int64(740), result.TotalCost)
}

func TestCalculateRecipeCostUnpricedIngredient(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newCostingFixture(t, ctrl, false)

	f.recipes.EXPECT().GetByID(ctx, "r-1", "org-1").Return(&model.Recipe{
		ID: "r-1",
		Lines: []model.RecipeLine{
			{IngredientID: strPtr("flour"), Quantity: 100, Unit: "g"},
			{IngredientID: strPtr("basil"), Quantity: 10, Unit: "g"},
		},
	}, nil)
	f.recipes.EXPECT().GetIngredient(ctx, "flour", "org-1").Return(&model.Ingredient{
		ID: "flour", BaseUnit: "g", UnitCost: 2, HasPrice: true,
	}, nil)
	f.recipes.EXPECT().GetIngredient(ctx, "basil", "org-1").Return(&model.Ingredient{
		ID: "basil", BaseUnit: "g", HasPrice: false,
	}, nil)
	f.snapshots.EXPECT().Create(ctx, gomock.Any()).Return(nil)

	result, err := f.svc.CalculateRecipeCost(ctx, "org-1", "r-1")
	require.NoError(t, err)
	assert.Equal(t, int64(200), result.TotalCost)

	var unpriced int
	for _, c := range result.Components {
		if c.Unpriced {
			unpriced++
			assert.Zero(t, c.LineCost)
		}
	}
	assert.Equal(t, 1, unpriced)
}

func TestCalculateRecipeCostAllUnpriced(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newCostingFixture(t, ctrl, false)

	// A recipe whose every line lacks pricing still costs out at zero;
	// the gaps are flagged on the components rather than failing the run.
	f.recipes.EXPECT().GetByID(ctx, "r-1", "org-1").Return(&model.Recipe{
		ID: "r-1",
		Lines: []model.RecipeLine{
			{IngredientID: strPtr("basil"), Quantity: 10, Unit: "g"},
		},
	}, nil)
	f.recipes.EXPECT().GetIngredient(ctx, "basil", "org-1").Return(&model.Ingredient{
		ID: "basil", BaseUnit: "g", HasPrice: false,
	}, nil)
	f.snapshots.EXPECT().Create(ctx, gomock.Any()).Return(nil)

	result, err := f.svc.CalculateRecipeCost(ctx, "org-1", "r-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.TotalCost)
	require.Len(t, result.Components, 1)
	assert.True(t, result.Components[0].Unpriced)
	assert.Zero(t, result.Components[0].LineCost)
}

func TestCalculateRecipeCostEmptyRecipe(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newCostingFixture(t, ctrl, false)

	f.recipes.EXPECT().GetByID(ctx, "r-1", "org-1").Return(&model.Recipe{
		ID:    "r-1",
		Lines: nil,
	}, nil)

	_, err := f.svc.CalculateRecipeCost(ctx, "org-1", "r-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNoPricingData, apperrors.GetCode(err))
	assert.True(t, apperrors.IsPermanent(err))
}

func TestCalculateRecipeCostTwoIngredientTotal(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newCostingFixture(t, ctrl, false)

	// 2 units at 200 plus 1 unit at 350 = 750 minor units.
	f.recipes.EXPECT().GetByID(ctx, "burger", "org-1").Return(&model.Recipe{
		ID: "burger",
		Lines: []model.RecipeLine{
			{IngredientID: strPtr("patty"), Quantity: 2, Unit: "each"},
			{IngredientID: strPtr("bun"), Quantity: 1, Unit: "each"},
		},
	}, nil)
	f.recipes.EXPECT().GetIngredient(ctx, "patty", "org-1").Return(&model.Ingredient{
		ID: "patty", BaseUnit: "each", UnitCost: 200, HasPrice: true,
	}, nil)
	f.recipes.EXPECT().GetIngredient(ctx, "bun", "org-1").Return(&model.Ingredient{
		ID: "bun", BaseUnit: "each", UnitCost: 350, HasPrice: true,
	}, nil)
	f.snapshots.EXPECT().Create(ctx, gomock.Any()).Return(nil)

	result, err := f.svc.CalculateRecipeCost(ctx, "org-1", "burger")
	require.NoError(t, err)
	assert.Equal(t, int64(750), result.TotalCost)
}

func TestCalculateRecipeCostCycle(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newCostingFixture(t, ctrl, false)

	f.recipes.EXPECT().GetByID(ctx, "a", "org-1").Return(&model.Recipe{
		ID: "a",
		Lines: []model.RecipeLine{
			{SubRecipeID: strPtr("b"), Quantity: 1, Unit: "each"},
		},
	}, nil)
	f.recipes.EXPECT().GetByID(ctx, "b", "org-1").Return(&model.Recipe{
		ID: "b",
		Lines: []model.RecipeLine{
			{SubRecipeID: strPtr("a"), Quantity: 1, Unit: "each"},
		},
	}, nil)

	_, err := f.svc.CalculateRecipeCost(ctx, "org-1", "a")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeCircularRecipeReference, apperrors.GetCode(err))
	assert.True(t, apperrors.IsPermanent(err))
}

func TestCalculateRecipeCostDiamondIsNotACycle(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newCostingFixture(t, ctrl, false)

	// Both branches share the sauce sub-recipe; reachable twice on separate
	// paths is fine, only a cycle on one path fails.
	f.recipes.EXPECT().GetByID(ctx, "combo", "org-1").Return(&model.Recipe{
		ID: "combo",
		Lines: []model.RecipeLine{
			{SubRecipeID: strPtr("sauce"), Quantity: 1, Unit: "each"},
			{SubRecipeID: strPtr("sauce"), Quantity: 1, Unit: "each"},
		},
	}, nil)
	f.recipes.EXPECT().GetByID(ctx, "sauce", "org-1").Return(&model.Recipe{
		ID: "sauce",
		Lines: []model.RecipeLine{
			{IngredientID: strPtr("tomato"), Quantity: 50, Unit: "g"},
		},
	}, nil).Times(2)
	f.recipes.EXPECT().GetIngredient(ctx, "tomato", "org-1").Return(&model.Ingredient{
		ID: "tomato", BaseUnit: "g", UnitCost: 2, HasPrice: true,
	}, nil).Times(2)
	f.snapshots.EXPECT().Create(ctx, gomock.Any()).Return(nil)

	result, err := f.svc.CalculateRecipeCost(ctx, "org-1", "combo")
	require.NoError(t, err)
	assert.Equal(t, int64(200), result.TotalCost)
}

func TestCalculateRecipeCostPublishesToDisplays(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newCostingFixture(t, ctrl, true)

	f.recipes.EXPECT().GetByID(ctx, "dough", "org-1").Return(&model.Recipe{
		ID: "dough",
		Lines: []model.RecipeLine{
			{IngredientID: strPtr("flour"), Quantity: 100, Unit: "g"},
		},
	}, nil)
	f.recipes.EXPECT().GetIngredient(ctx, "flour", "org-1").Return(&model.Ingredient{
		ID: "flour", BaseUnit: "g", UnitCost: 2, HasPrice: true,
	}, nil)
	f.snapshots.EXPECT().Create(ctx, gomock.Any()).Return(nil)
	f.displays.EXPECT().ListByRecipe(ctx, "dough", "org-1").Return([]*model.Display{
		{HardwareID: "hw-kitchen-01", OrganizationID: "org-1"},
		{HardwareID: "hw-pass-01", OrganizationID: "org-1"},
	}, nil)

	var published []model.PresentationEvent
	f.publisher.EXPECT().Publish(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, event model.PresentationEvent) error {
			published = append(published, event)
			return nil
		}).Times(2)

	_, err := f.svc.CalculateRecipeCost(ctx, "org-1", "dough")
	require.NoError(t, err)
	require.Len(t, published, 2)
	assert.Equal(t, "hw-kitchen-01", published[0].HardwareID)
	assert.Equal(t, model.PresentationContentUpdated, published[0].Kind)

	var payload costUpdatePayload
	require.NoError(t, json.Unmarshal(published[0].Payload, &payload))
	assert.Equal(t, "dough", payload.RecipeID)
	assert.Equal(t, int64(200), payload.TotalCost)
}
