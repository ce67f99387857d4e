package repository

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaultSeedCatalogReferencesKnownFoods(t *testing.T) {
	cat, err := DefaultSeedCatalog()
	require.NoError(t, err)
	require.NotEmpty(t, cat.Foods)
	require.NotEmpty(t, cat.Recipes)

	foods := make(map[string]bool)
	for _, f := range cat.Foods {
		assert.NotEmpty(t, f.DefaultUnit, f.ID)
		foods[f.ID] = true
	}
	for _, r := range cat.Recipes {
		for _, ing := range r.Ingredients {
			assert.True(t, foods[ing.FoodID], "recipe %s uses unknown food %s", r.ID, ing.FoodID)
			assert.Equal(t, r.ID, ing.RecipeID)
		}
	}
}

func TestSeedPopulatesMemoryStore(t *testing.T) {
	ctx := context.Background()
	cat, err := DefaultSeedCatalog()
	require.NoError(t, err)

	s := NewMemoryStore()
	require.NoError(t, Seed(ctx, cat, s, s, zap.NewNop()))

	ok, err := s.MemberExists(ctx, "demo-member")
	require.NoError(t, err)
	assert.True(t, ok)

	milk, err := s.FindFoodByName(ctx, "milk")
	require.NoError(t, err)
	assert.Equal(t, "food-milk", milk.ID)

	recipes, err := s.ListRecipes(ctx)
	require.NoError(t, err)
	assert.Len(t, recipes, len(cat.Recipes))
}

func TestSchemaForRendersEveryPlaceholder(t *testing.T) {
	for dialect := range dialectTypes {
		for _, stmt := range schemaFor(dialect) {
			assert.False(t, strings.Contains(stmt, "{"), "%s: %s", dialect, stmt)
		}
	}
	for _, stmt := range schemaFor(DialectPostgres) {
		assert.NotContains(t, stmt, "BOOLEAN NOT NULL DEFAULT 0")
	}
}
