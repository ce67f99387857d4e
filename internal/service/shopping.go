package service

import (
	"context"
	"fmt"
	"sort"

	"household-inventory-api/internal/model"
	"household-inventory-api/internal/repository"
	"household-inventory-api/pkg/clock"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	frequentWindowDays = 30
	frequentTopN       = 20
	maxListAdditions   = 5
)

// PurchaseResult reports the items created from a purchase and the lines that failed.
type PurchaseResult struct {
	Items  []model.InventoryItem `json:"items"`
	Report model.BatchReport     `json:"report"`
}

// ShoppingService derives purchase suggestions and optimizes shopping lists.
type ShoppingService struct {
	store    repository.Store
	foods    repository.FoodCatalog
	tracker  *InventoryTracker
	seasonal SeasonalTable
	clock    clock.Clock
	logger   *zap.Logger
}

// NewShoppingService creates a ShoppingService. foods may be a cached catalog view.
func NewShoppingService(
	store repository.Store,
	foods repository.FoodCatalog,
	tracker *InventoryTracker,
	seasonal SeasonalTable,
	clk clock.Clock,
	logger *zap.Logger,
) *ShoppingService {
	if foods == nil {
		foods = store
	}
	return &ShoppingService{
		store:    store,
		foods:    foods,
		tracker:  tracker,
		seasonal: seasonal,
		clock:    clk,
		logger:   logger,
	}
}

// foodStock sums active quantities and the highest configured minimum per food.
type foodStock struct {
	quantity float64
	minimum  float64
	unit     string
	name     string
	category string
}

func (s *ShoppingService) stockByFood(ctx context.Context, memberID string) (map[string]*foodStock, error) {
	items, err := activeItems(ctx, s.store, memberID)
	if err != nil {
		return nil, err
	}
	out := map[string]*foodStock{}
	for _, it := range items {
		fs, ok := out[it.FoodID]
		if !ok {
			fs = &foodStock{unit: it.Unit, name: it.FoodName()}
			if it.Food != nil {
				fs.category = it.Food.Category
			}
			out[it.FoodID] = fs
		}
		fs.quantity += it.Quantity
		if it.MinStockThreshold != nil && *it.MinStockThreshold > fs.minimum {
			fs.minimum = *it.MinStockThreshold
		}
	}
	return out, nil
}

// Suggestions merges low-stock, frequent-usage and seasonal suggestions, keeping
// the highest priority per food, ordered by priority.
func (s *ShoppingService) Suggestions(ctx context.Context, memberID string) ([]model.PurchaseSuggestion, error) {
	stock, err := s.stockByFood(ctx, memberID)
	if err != nil {
		return nil, err
	}

	low, err := s.lowStockSuggestions(ctx, memberID)
	if err != nil {
		return nil, err
	}
	frequent, err := s.frequentSuggestions(ctx, memberID, stock)
	if err != nil {
		return nil, err
	}
	seasonal := s.seasonalSuggestions(ctx, stock)

	return MergeSuggestions(low, frequent, seasonal), nil
}

// lowStockSuggestions restocks each low batch to twice its threshold.
func (s *ShoppingService) lowStockSuggestions(ctx context.Context, memberID string) ([]model.PurchaseSuggestion, error) {
	items, err := s.store.ListLowStock(ctx, memberID)
	if err != nil {
		return nil, model.Dependency("list low stock", err)
	}

	out := make([]model.PurchaseSuggestion, 0, len(items))
	for _, it := range items {
		if it.MinStockThreshold == nil {
			continue
		}
		threshold := *it.MinStockThreshold
		current := it.Quantity
		qty := 2*threshold - current
		if qty <= 0 {
			continue
		}
		sg := model.PurchaseSuggestion{
			FoodID:          it.FoodID,
			Name:            it.FoodName(),
			Quantity:        qty,
			Unit:            it.Unit,
			CurrentQuantity: current,
			Priority:        model.PriorityHigh,
			Source:          model.SourceLowStock,
			Reason:          fmt.Sprintf("stock %g %s is at or below the minimum of %g", current, it.Unit, threshold),
		}
		if it.Food != nil {
			sg.Category = it.Food.Category
		}
		out = append(out, sg)
	}
	return out, nil
}

func (s *ShoppingService) frequentSuggestions(ctx context.Context, memberID string, stock map[string]*foodStock) ([]model.PurchaseSuggestion, error) {
	now := s.clock.Now()
	since := now.Add(-frequentWindowDays * day)
	usages, err := s.store.ListUsage(ctx, model.UsageFilter{MemberID: memberID, Since: &since})
	if err != nil {
		return nil, model.Dependency("list usage", err)
	}

	type usageStat struct {
		foodID string
		count  int
		total  float64
	}
	byFood := map[string]*usageStat{}
	for _, u := range usages {
		st, ok := byFood[u.FoodID]
		if !ok {
			st = &usageStat{foodID: u.FoodID}
			byFood[u.FoodID] = st
		}
		st.count++
		st.total += u.Quantity
	}

	stats := make([]*usageStat, 0, len(byFood))
	for _, st := range byFood {
		stats = append(stats, st)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].count != stats[j].count {
			return stats[i].count > stats[j].count
		}
		return stats[i].foodID < stats[j].foodID
	})
	if len(stats) > frequentTopN {
		stats = stats[:frequentTopN]
	}

	ids := make([]string, len(stats))
	for i, st := range stats {
		ids[i] = st.foodID
	}
	foods, err := s.foods.GetFoods(ctx, ids)
	if err != nil {
		return nil, err
	}

	var out []model.PurchaseSuggestion
	for _, st := range stats {
		weekly := st.total / float64(st.count) * 7
		var current float64
		unit, name, category := "", st.foodID, ""
		if fs, ok := stock[st.foodID]; ok {
			current, unit, name, category = fs.quantity, fs.unit, fs.name, fs.category
		}
		if f, ok := foods[st.foodID]; ok {
			name, category = f.Name, f.Category
			if unit == "" {
				unit = f.DefaultUnit
			}
		}
		if weekly <= current {
			continue
		}
		out = append(out, model.PurchaseSuggestion{
			FoodID:          st.foodID,
			Name:            name,
			Category:        category,
			Quantity:        2 * weekly,
			Unit:            unit,
			CurrentQuantity: current,
			Priority:        model.PriorityMedium,
			Source:          model.SourceFrequent,
			Reason:          fmt.Sprintf("used %d times in %d days, about %g %s a week", st.count, frequentWindowDays, weekly, unit),
		})
	}
	return out, nil
}

func (s *ShoppingService) seasonalSuggestions(ctx context.Context, stock map[string]*foodStock) []model.PurchaseSuggestion {
	now := s.clock.Now()
	var out []model.PurchaseSuggestion
	for _, entry := range s.seasonal.For(now) {
		food, err := s.foods.FindFoodByName(ctx, entry.Food)
		if err != nil {
			s.logger.Debug("seasonal food not in catalog", zap.String("food", entry.Food), zap.Error(err))
			continue
		}
		var current float64
		if fs, ok := stock[food.ID]; ok {
			current = fs.quantity
		}
		if current >= entry.Quantity {
			continue
		}
		out = append(out, model.PurchaseSuggestion{
			FoodID:          food.ID,
			Name:            food.Name,
			Category:        food.Category,
			Quantity:        entry.Quantity,
			Unit:            entry.Unit,
			CurrentQuantity: current,
			Priority:        model.PriorityLow,
			Source:          model.SourceSeasonal,
			Reason:          fmt.Sprintf("%s is in season in %s", food.Name, now.Month()),
		})
	}
	return out
}

// MergeSuggestions keeps one suggestion per food with the highest priority. Ties keep
// the earliest source; the result is ordered by priority, then source order.
func MergeSuggestions(sources ...[]model.PurchaseSuggestion) []model.PurchaseSuggestion {
	index := map[string]int{}
	var merged []model.PurchaseSuggestion
	for _, src := range sources {
		for _, sg := range src {
			i, ok := index[sg.FoodID]
			if !ok {
				index[sg.FoodID] = len(merged)
				merged = append(merged, sg)
				continue
			}
			if sg.Priority.Rank() > merged[i].Priority.Rank() {
				merged[i] = sg
			}
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Priority.Rank() > merged[j].Priority.Rank()
	})
	if merged == nil {
		merged = []model.PurchaseSuggestion{}
	}
	return merged
}

// OptimizeList trims a shopping list against current stock and appends up to five
// suggestions not already listed.
func (s *ShoppingService) OptimizeList(ctx context.Context, memberID string, list []model.ShoppingListItem) (*model.OptimizedList, error) {
	for _, li := range list {
		switch {
		case li.FoodID == "":
			return nil, model.Invalid("items.food_id", "is required")
		case li.Amount <= 0:
			return nil, model.Invalid("items.amount", "must be positive")
		case li.UnitPrice.IsNegative():
			return nil, model.Invalid("items.unit_price", "must not be negative")
		}
	}

	stock, err := s.stockByFood(ctx, memberID)
	if err != nil {
		return nil, err
	}

	result := &model.OptimizedList{
		Items:         []model.ShoppingListItem{},
		Adjustments:   make([]model.ListAdjustment, 0, len(list)),
		Additions:     []model.PurchaseSuggestion{},
		OriginalCost:  decimal.Zero,
		OptimizedCost: decimal.Zero,
	}

	listed := map[string]bool{}
	for _, li := range list {
		listed[li.FoodID] = true
		result.OriginalCost = result.OriginalCost.Add(li.Cost())

		var current, minimum float64
		if fs, ok := stock[li.FoodID]; ok {
			current, minimum = fs.quantity, fs.minimum
		}
		adj := AdjustListItem(li.Amount, current, minimum)
		adj.FoodID, adj.Name = li.FoodID, li.Name
		result.Adjustments = append(result.Adjustments, adj)

		if adj.NewAmount > 0 {
			kept := li
			kept.Amount = adj.NewAmount
			result.Items = append(result.Items, kept)
			result.OptimizedCost = result.OptimizedCost.Add(kept.Cost())
		}
	}
	result.OriginalCost = result.OriginalCost.Round(2)
	result.OptimizedCost = result.OptimizedCost.Round(2)
	result.Savings = result.OriginalCost.Sub(result.OptimizedCost)

	suggestions, err := s.Suggestions(ctx, memberID)
	if err != nil {
		return nil, err
	}
	for _, sg := range suggestions {
		if len(result.Additions) == maxListAdditions {
			break
		}
		if !listed[sg.FoodID] {
			result.Additions = append(result.Additions, sg)
		}
	}
	return result, nil
}

// AdjustListItem applies the surplus rule to one listed amount: drop it when the
// surplus above the minimum covers it, reduce it by a partial surplus, else keep it.
func AdjustListItem(amount, stock, minimum float64) model.ListAdjustment {
	adj := model.ListAdjustment{
		Action:         "kept",
		OriginalAmount: amount,
		NewAmount:      amount,
		Stock:          stock,
		Minimum:        minimum,
	}
	surplus := stock - minimum
	switch {
	case surplus >= amount:
		adj.Action = "removed"
		adj.NewAmount = 0
	case surplus > 0:
		adj.Action = "reduced"
		adj.NewAmount = amount - surplus
	}
	return adj
}

// RecordPurchase turns bought lines into inventory items sourced from the shopping list.
// Each line is created independently; failures are reported per line.
func (s *ShoppingService) RecordPurchase(ctx context.Context, memberID string, purchases []model.Purchase) (*PurchaseResult, error) {
	if len(purchases) == 0 {
		return nil, model.Invalid("purchases", "at least one purchase is required")
	}

	result := &PurchaseResult{Items: []model.InventoryItem{}}
	for i, p := range purchases {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		unit := p.Unit
		if unit == "" {
			if food, err := s.foods.GetFood(ctx, p.FoodID); err == nil {
				unit = food.DefaultUnit
			}
		}
		item, err := s.tracker.Create(ctx, memberID, CreateItemInput{
			FoodID:            p.FoodID,
			Quantity:          p.Quantity,
			Unit:              unit,
			ExpiryDate:        p.ExpiryDate,
			MinStockThreshold: p.MinStockThreshold,
			StorageLocation:   p.StorageLocation,
			PurchasePrice:     p.Price,
			PurchaseSource:    model.SourceShoppingList,
		})
		if err != nil {
			result.Report.Fail(fmt.Sprintf("%d:%s", i, p.FoodID), err)
			continue
		}
		result.Report.Success()
		result.Items = append(result.Items, *item)
	}
	return result, nil
}
