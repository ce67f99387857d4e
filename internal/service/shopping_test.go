package service

import (
	"errors"
	"testing"
	"time"

	"household-inventory-api/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjustListItem(t *testing.T) {
	reduced := AdjustListItem(5, 4, 2)
	assert.Equal(t, "reduced", reduced.Action)
	assert.Equal(t, 3.0, reduced.NewAmount)

	removed := AdjustListItem(2, 10, 2)
	assert.Equal(t, "removed", removed.Action)
	assert.Zero(t, removed.NewAmount)

	exact := AdjustListItem(3, 5, 2)
	assert.Equal(t, "removed", exact.Action, "a surplus equal to the amount covers it")

	kept := AdjustListItem(5, 1, 2)
	assert.Equal(t, "kept", kept.Action)
	assert.Equal(t, 5.0, kept.NewAmount)
}

func TestMergeSuggestionsKeepsHighestPriority(t *testing.T) {
	low := []model.PurchaseSuggestion{{FoodID: "eggs", Priority: model.PriorityHigh, Source: model.SourceLowStock}}
	frequent := []model.PurchaseSuggestion{
		{FoodID: "milk", Priority: model.PriorityMedium, Source: model.SourceFrequent},
		{FoodID: "eggs", Priority: model.PriorityMedium, Source: model.SourceFrequent},
	}
	seasonal := []model.PurchaseSuggestion{
		{FoodID: "apples", Priority: model.PriorityLow, Source: model.SourceSeasonal},
		{FoodID: "milk", Priority: model.PriorityLow, Source: model.SourceSeasonal},
	}

	merged := MergeSuggestions(seasonal, frequent, low)
	require.Len(t, merged, 3)
	assert.Equal(t, "eggs", merged[0].FoodID)
	assert.Equal(t, model.SourceLowStock, merged[0].Source)
	assert.Equal(t, "milk", merged[1].FoodID)
	assert.Equal(t, model.SourceFrequent, merged[1].Source)
	assert.Equal(t, "apples", merged[2].FoodID)

	tie := MergeSuggestions(
		[]model.PurchaseSuggestion{{FoodID: "x", Priority: model.PriorityLow, Reason: "first"}},
		[]model.PurchaseSuggestion{{FoodID: "x", Priority: model.PriorityLow, Reason: "second"}},
	)
	require.Len(t, tie, 1)
	assert.Equal(t, "first", tie[0].Reason)

	assert.NotNil(t, MergeSuggestions())
}

func TestSuggestionsFromEverySource(t *testing.T) {
	f := newFixture(t)
	f.create(t, "m1", CreateItemInput{FoodID: "food-eggs", Quantity: 1, MinStockThreshold: ptr(6.0)})
	milk := f.create(t, "m1", CreateItemInput{FoodID: "food-milk", Quantity: 1000, Unit: "ml"})
	for i := 0; i < 4; i++ {
		_, err := f.tracker.Use(f.ctx, "m1", milk.ID, UseInput{Amount: 100})
		require.NoError(t, err)
	}

	suggestions, err := f.shopping.Suggestions(f.ctx, "m1")
	require.NoError(t, err)
	require.Len(t, suggestions, 4)

	eggs := suggestions[0]
	assert.Equal(t, "food-eggs", eggs.FoodID)
	assert.Equal(t, model.PriorityHigh, eggs.Priority)
	assert.Equal(t, 11.0, eggs.Quantity)

	frequent := suggestions[1]
	assert.Equal(t, "food-milk", frequent.FoodID)
	assert.Equal(t, model.SourceFrequent, frequent.Source)
	assert.Equal(t, 1400.0, frequent.Quantity)
	assert.Equal(t, 600.0, frequent.CurrentQuantity)

	assert.Equal(t, "food-asparagus", suggestions[2].FoodID)
	assert.Equal(t, model.SourceSeasonal, suggestions[2].Source)
	assert.Equal(t, "food-strawberry", suggestions[3].FoodID)
}

func TestSuggestionsSkipSeasonalWhenStocked(t *testing.T) {
	f := newFixture(t)
	f.create(t, "m1", CreateItemInput{FoodID: "food-asparagus", Quantity: 300, Unit: "g"})
	f.create(t, "m1", CreateItemInput{FoodID: "food-strawberry", Quantity: 100, Unit: "g"})

	suggestions, err := f.shopping.Suggestions(f.ctx, "m1")
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "food-strawberry", suggestions[0].FoodID)
	assert.Equal(t, 100.0, suggestions[0].CurrentQuantity)
}

func TestOptimizeList(t *testing.T) {
	f := newFixture(t)
	f.create(t, "m1", CreateItemInput{FoodID: "food-flour", Quantity: 4, MinStockThreshold: ptr(2.0)})
	f.create(t, "m1", CreateItemInput{FoodID: "food-spinach", Quantity: 10})

	res, err := f.shopping.OptimizeList(f.ctx, "m1", []model.ShoppingListItem{
		{FoodID: "food-flour", Name: "Flour", Amount: 5, Unit: "pcs", UnitPrice: decimal.NewFromInt(1)},
		{FoodID: "food-spinach", Name: "Spinach", Amount: 1, Unit: "pcs", UnitPrice: decimal.NewFromInt(2)},
		{FoodID: "food-eggs", Name: "Eggs", Amount: 6, Unit: "pcs", UnitPrice: decimal.RequireFromString("0.25")},
	})
	require.NoError(t, err)

	require.Len(t, res.Items, 2)
	assert.Equal(t, "food-flour", res.Items[0].FoodID)
	assert.Equal(t, 3.0, res.Items[0].Amount)
	assert.Equal(t, "food-eggs", res.Items[1].FoodID)
	assert.Equal(t, 6.0, res.Items[1].Amount)

	require.Len(t, res.Adjustments, 3)
	assert.Equal(t, "reduced", res.Adjustments[0].Action)
	assert.Equal(t, "removed", res.Adjustments[1].Action)
	assert.Equal(t, "kept", res.Adjustments[2].Action)

	assert.Equal(t, "8.5", res.OriginalCost.String())
	assert.Equal(t, "4.5", res.OptimizedCost.String())
	assert.Equal(t, "4", res.Savings.String())

	require.Len(t, res.Additions, 2)
	assert.Equal(t, "food-asparagus", res.Additions[0].FoodID)

	_, err = f.shopping.OptimizeList(f.ctx, "m1", []model.ShoppingListItem{{FoodID: "food-eggs", Amount: 0}})
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestRecordPurchase(t *testing.T) {
	f := newFixture(t)
	expiry := baseTime.Add(5 * 24 * time.Hour)

	res, err := f.shopping.RecordPurchase(f.ctx, "m1", []model.Purchase{
		{FoodID: "food-milk", Quantity: 1000, ExpiryDate: &expiry, StorageLocation: model.LocationRefrigerator, Price: price("1.29")},
		{FoodID: "food-unknown", Quantity: 1, Unit: "pcs"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Report.Succeeded)
	assert.Equal(t, 1, res.Report.Failed)
	require.Len(t, res.Items, 1)

	item := res.Items[0]
	assert.Equal(t, model.SourceShoppingList, item.PurchaseSource)
	assert.Equal(t, "ml", item.Unit)
	assert.Equal(t, model.StatusFresh, item.Status)

	_, err = f.shopping.RecordPurchase(f.ctx, "m1", nil)
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestSeasonalTable(t *testing.T) {
	table, err := DefaultSeasonalTable()
	require.NoError(t, err)
	assert.Len(t, table, 12)
	assert.NotEmpty(t, table.For(baseTime))

	_, err = LoadSeasonalTable([]byte("smarch:\n  - {food: Apples, quantity: 1, unit: pcs}\n"))
	assert.Error(t, err)
	_, err = LoadSeasonalTable([]byte("may:\n  - {food: Apples, quantity: 0, unit: pcs}\n"))
	assert.Error(t, err)
}

func TestLowStockSuggestionIsPerBatch(t *testing.T) {
	f := newFixture(t)
	f.create(t, "m1", CreateItemInput{FoodID: "food-eggs", Quantity: 2, MinStockThreshold: ptr(6.0)})
	f.create(t, "m1", CreateItemInput{FoodID: "food-eggs", Quantity: 30})

	suggestions, err := f.shopping.Suggestions(f.ctx, "m1")
	require.NoError(t, err)

	var eggs *model.PurchaseSuggestion
	for i := range suggestions {
		if suggestions[i].FoodID == "food-eggs" {
			eggs = &suggestions[i]
		}
	}
	require.NotNil(t, eggs)
	assert.Equal(t, model.SourceLowStock, eggs.Source)
	assert.Equal(t, 10.0, eggs.Quantity)
	assert.Equal(t, 2.0, eggs.CurrentQuantity)
}
