package service

import (
	"errors"
	"testing"

	"household-inventory-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pancakes = model.Recipe{
	ID:       "recipe-pancakes",
	Name:     "Pancakes",
	Servings: 2,
	Ingredients: []model.Ingredient{
		{FoodID: "food-flour", Name: "Flour", Quantity: 60, Unit: "g"},
		{FoodID: "food-milk", Name: "Milk", Quantity: 120, Unit: "ml"},
		{FoodID: "food-eggs", Name: "Eggs", Quantity: 1, Unit: "pcs"},
		{FoodID: "food-butter", Name: "Butter", Quantity: 10, Unit: "g", Optional: true},
	},
}

var omelette = model.Recipe{
	ID:       "recipe-omelette",
	Name:     "Spinach Omelette",
	Servings: 1,
	Ingredients: []model.Ingredient{
		{FoodID: "food-eggs", Name: "Eggs", Quantity: 2, Unit: "pcs"},
		{FoodID: "food-spinach", Name: "Spinach", Quantity: 30, Unit: "g"},
	},
}

var asparagusToast = model.Recipe{
	ID:       "recipe-asparagus",
	Name:     "Asparagus Toast",
	Servings: 1,
	Ingredients: []model.Ingredient{
		{FoodID: "food-asparagus", Name: "Asparagus", Quantity: 100, Unit: "g"},
	},
}

var garnish = model.Recipe{
	ID:          "recipe-garnish",
	Name:        "Butter Garnish",
	Servings:    1,
	Ingredients: []model.Ingredient{{FoodID: "food-butter", Name: "Butter", Quantity: 5, Unit: "g", Optional: true}},
}

func addRecipes(f *fixture) {
	for _, r := range []model.Recipe{pancakes, omelette, asparagusToast, garnish} {
		f.store.AddRecipe(r)
	}
}

func TestMatchScoreIsMonotonic(t *testing.T) {
	f := newFixture(t)
	addRecipes(f)

	m, err := f.recipes.Match(f.ctx, "m1", pancakes.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, m.MatchScore)
	assert.False(t, m.CanCook)

	f.create(t, "m1", CreateItemInput{FoodID: "food-flour", Quantity: 500, Unit: "g"})
	m, err = f.recipes.Match(f.ctx, "m1", pancakes.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 33, m.MatchScore)

	f.create(t, "m1", CreateItemInput{FoodID: "food-milk", Quantity: 50, Unit: "ml"})
	m, err = f.recipes.Match(f.ctx, "m1", pancakes.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 33, m.MatchScore, "insufficient milk does not count")
	assert.Equal(t, CoverageInsufficient, m.Ingredients[1].Coverage)
	assert.Equal(t, 70.0, m.Ingredients[1].Shortage)

	f.create(t, "m1", CreateItemInput{FoodID: "food-milk", Quantity: 100, Unit: "ml"})
	f.create(t, "m1", CreateItemInput{FoodID: "food-eggs", Quantity: 6})
	m, err = f.recipes.Match(f.ctx, "m1", pancakes.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 100, m.MatchScore)
	assert.True(t, m.CanCook)
	assert.Equal(t, CoverageOutOfStock, m.Ingredients[3].Coverage, "optional butter is reported but not scored")

	m, err = f.recipes.Match(f.ctx, "m1", pancakes.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 67, m.MatchScore, "two servings need 240 ml of milk")
}

func TestMatchIgnoresExpiredStock(t *testing.T) {
	f := newFixture(t)
	addRecipes(f)
	f.create(t, "m1", CreateItemInput{FoodID: "food-eggs", Quantity: 12, ExpiryDate: inDays(-1)})
	f.create(t, "m1", CreateItemInput{FoodID: "food-spinach", Quantity: 100, Unit: "g"})

	m, err := f.recipes.Match(f.ctx, "m1", omelette.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 50, m.MatchScore)
	assert.Equal(t, 0.0, m.Ingredients[0].Available)

	_, err = f.recipes.Match(f.ctx, "m1", "recipe-missing", 1)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestRecommendPartitionsAreExclusive(t *testing.T) {
	f := newFixture(t)
	addRecipes(f)
	f.create(t, "m1", CreateItemInput{FoodID: "food-eggs", Quantity: 6})
	f.create(t, "m1", CreateItemInput{FoodID: "food-spinach", Quantity: 100, Unit: "g"})

	recs, err := f.recipes.Recommend(f.ctx, "m1")
	require.NoError(t, err)

	require.Len(t, recs.CanCook, 1)
	assert.Equal(t, omelette.ID, recs.CanCook[0].RecipeID)
	require.Len(t, recs.PartiallyAvailable, 1)
	assert.Equal(t, pancakes.ID, recs.PartiallyAvailable[0].RecipeID)
	require.Len(t, recs.Unavailable, 2)
	assert.Equal(t, asparagusToast.ID, recs.Unavailable[0].RecipeID)
	assert.Equal(t, garnish.ID, recs.Unavailable[1].RecipeID)

	assert.Equal(t, RecommendationStats{Total: 4, CanCook: 1, Partial: 1, Unavailable: 2}, recs.Stats)
}

func TestCookReportsEveryShortage(t *testing.T) {
	f := newFixture(t)
	addRecipes(f)
	flour := f.create(t, "m1", CreateItemInput{FoodID: "food-flour", Quantity: 500, Unit: "g"})
	f.create(t, "m1", CreateItemInput{FoodID: "food-milk", Quantity: 100, Unit: "ml"})

	_, err := f.recipes.Cook(f.ctx, "m1", pancakes.ID, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInsufficientStock))

	var shortage *model.ShortageError
	require.True(t, errors.As(err, &shortage))
	require.Len(t, shortage.Shortages, 2)
	assert.Equal(t, "food-milk", shortage.Shortages[0].FoodID)
	assert.Equal(t, 240.0, shortage.Shortages[0].Required)
	assert.Equal(t, 100.0, shortage.Shortages[0].Available)
	assert.Equal(t, "food-eggs", shortage.Shortages[1].FoodID)

	got, err := f.store.GetItem(f.ctx, flour.ID)
	require.NoError(t, err)
	assert.Equal(t, 500.0, got.Quantity, "nothing is debited when any ingredient is short")

	_, err = f.recipes.Cook(f.ctx, "m1", pancakes.ID, 0)
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestCookDebitsAcrossBatchesFEFO(t *testing.T) {
	f := newFixture(t)
	addRecipes(f)
	soon := f.create(t, "m1", CreateItemInput{FoodID: "food-milk", Quantity: 100, Unit: "ml", ExpiryDate: inDays(2)})
	later := f.create(t, "m1", CreateItemInput{FoodID: "food-milk", Quantity: 500, Unit: "ml", ExpiryDate: inDays(10)})
	f.create(t, "m1", CreateItemInput{FoodID: "food-flour", Quantity: 500, Unit: "g"})
	f.create(t, "m1", CreateItemInput{FoodID: "food-eggs", Quantity: 6})

	res, err := f.recipes.Cook(f.ctx, "m1", pancakes.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Record.Servings)
	require.Len(t, res.Record.Usages, 4)
	assert.Len(t, res.Warnings, 1, "the soon-expiring milk batch is flagged")

	got, err := f.store.GetItem(f.ctx, soon.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Quantity)
	assert.Equal(t, model.StatusOutOfStock, got.Status)
	got, err = f.store.GetItem(f.ctx, later.ID)
	require.NoError(t, err)
	assert.Equal(t, 360.0, got.Quantity)

	history, err := f.recipes.CookHistory(f.ctx, "m1", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, pancakes.ID, history[0].RecipeID)
}

func TestForExpiringRanksByExpiringFoods(t *testing.T) {
	f := newFixture(t)
	addRecipes(f)
	f.create(t, "m1", CreateItemInput{FoodID: "food-eggs", Quantity: 6, ExpiryDate: inDays(2)})
	f.create(t, "m1", CreateItemInput{FoodID: "food-spinach", Quantity: 100, Unit: "g", ExpiryDate: inDays(1)})
	f.create(t, "m1", CreateItemInput{FoodID: "food-asparagus", Quantity: 300, Unit: "g", ExpiryDate: inDays(20)})

	out, err := f.recipes.ForExpiring(f.ctx, "m1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, omelette.ID, out[0].RecipeID)
	assert.Equal(t, []string{"Eggs", "Spinach"}, out[0].ExpiringFoods)
	assert.Equal(t, pancakes.ID, out[1].RecipeID)
}

var scramble = model.Recipe{
	ID:       "recipe-scramble",
	Name:     "Double Scramble",
	Servings: 1,
	Ingredients: []model.Ingredient{
		{FoodID: "food-eggs", Name: "Eggs", Quantity: 2, Unit: "pcs"},
		{FoodID: "food-eggs", Name: "Eggs", Quantity: 3, Unit: "pcs"},
	},
}

func TestCookCombinesRepeatedIngredients(t *testing.T) {
	f := newFixture(t)
	f.store.AddRecipe(scramble)
	first := f.create(t, "m1", CreateItemInput{FoodID: "food-eggs", Quantity: 4})

	_, err := f.recipes.Cook(f.ctx, "m1", scramble.ID, 1)
	var shortage *model.ShortageError
	require.True(t, errors.As(err, &shortage))
	require.Len(t, shortage.Shortages, 1)
	assert.Equal(t, 5.0, shortage.Shortages[0].Required)
	assert.Equal(t, 4.0, shortage.Shortages[0].Available)

	second := f.create(t, "m1", CreateItemInput{FoodID: "food-eggs", Quantity: 2})
	res, err := f.recipes.Cook(f.ctx, "m1", scramble.ID, 1)
	require.NoError(t, err)

	var debited float64
	for _, u := range res.Record.Usages {
		debited += u.Quantity
	}
	assert.Equal(t, 5.0, debited)

	a, err := f.store.GetItem(f.ctx, first.ID)
	require.NoError(t, err)
	b, err := f.store.GetItem(f.ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, a.Quantity+b.Quantity)
}
