package service

import (
	"context"
	"fmt"
	"math"
	"sort"

	"household-inventory-api/internal/metrics"
	"household-inventory-api/internal/model"
	"household-inventory-api/internal/repository"
	"household-inventory-api/internal/status"
	"household-inventory-api/pkg/clock"
	"household-inventory-api/pkg/uid"

	"go.uber.org/zap"
)

// Coverage classifies how well stock covers one ingredient.
type Coverage string

const (
	CoverageSufficient   Coverage = "SUFFICIENT"
	CoverageInsufficient Coverage = "INSUFFICIENT"
	CoverageOutOfStock   Coverage = "OUT_OF_STOCK"
)

// IngredientCoverage is the match result of one ingredient.
type IngredientCoverage struct {
	FoodID    string   `json:"food_id"`
	Name      string   `json:"name"`
	Required  float64  `json:"required"`
	Available float64  `json:"available"`
	Shortage  float64  `json:"shortage"`
	Unit      string   `json:"unit"`
	Optional  bool     `json:"optional"`
	Coverage  Coverage `json:"coverage"`
}

// RecipeMatch scores one recipe against a member's stock.
type RecipeMatch struct {
	RecipeID    string               `json:"recipe_id"`
	Name        string               `json:"name"`
	Servings    int                  `json:"servings"`
	Ingredients []IngredientCoverage `json:"ingredients"`
	MatchScore  int                  `json:"match_score"`
	CanCook     bool                 `json:"can_cook"`
}

// RecommendationStats counts the partitions of a recommendation run.
type RecommendationStats struct {
	Total       int `json:"total"`
	CanCook     int `json:"can_cook"`
	Partial     int `json:"partially_available"`
	Unavailable int `json:"unavailable"`
}

// RecipeRecommendations partitions recipes by how cookable they are.
// The three sets are mutually exclusive.
type RecipeRecommendations struct {
	CanCook            []RecipeMatch       `json:"can_cook"`
	PartiallyAvailable []RecipeMatch       `json:"partially_available"`
	Unavailable        []RecipeMatch       `json:"unavailable"`
	Stats              RecommendationStats `json:"stats"`
}

// ExpiringRecipe is a recipe that uses up food close to expiry.
type ExpiringRecipe struct {
	RecipeMatch
	ExpiringFoods []string `json:"expiring_foods"`
}

// CookResult is the outcome of cooking a recipe.
type CookResult struct {
	Record   model.CookRecord `json:"record"`
	Warnings []string         `json:"warnings"`
}

// RecipeService matches recipes against stock and debits stock when cooking.
type RecipeService struct {
	store   repository.Store
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewRecipeService creates a RecipeService.
func NewRecipeService(store repository.Store, clk clock.Clock, m *metrics.Metrics, logger *zap.Logger) *RecipeService {
	return &RecipeService{store: store, clock: clk, metrics: m, logger: logger}
}

// stock is a snapshot of a member's usable items grouped by food.
type stock struct {
	items map[string][]model.InventoryItem
}

func (st stock) available(foodID string) float64 {
	var total float64
	for _, it := range st.items[foodID] {
		total += it.Quantity
	}
	return total
}

// snapshot loads the member's items that are neither expired nor empty, FEFO ordered per food.
func (r *RecipeService) snapshot(ctx context.Context, memberID string) (stock, error) {
	items, err := activeItems(ctx, r.store, memberID)
	if err != nil {
		return stock{}, err
	}
	now := r.clock.Now()
	st := stock{items: map[string][]model.InventoryItem{}}
	for _, it := range items {
		if it.Quantity <= 0 || status.IsExpired(&it, now) {
			continue
		}
		status.Apply(&it, now)
		st.items[it.FoodID] = append(st.items[it.FoodID], it)
	}
	for food := range st.items {
		SortFEFO(st.items[food])
	}
	return st, nil
}

// Score matches recipe against a stock snapshot for the given servings.
func score(recipe model.Recipe, servings int, st stock) RecipeMatch {
	m := RecipeMatch{
		RecipeID:    recipe.ID,
		Name:        recipe.Name,
		Servings:    servings,
		Ingredients: make([]IngredientCoverage, 0, len(recipe.Ingredients)),
	}

	scored, sufficient := 0, 0
	for _, ing := range recipe.Ingredients {
		required := ing.Quantity * float64(servings)
		available := st.available(ing.FoodID)
		c := IngredientCoverage{
			FoodID:    ing.FoodID,
			Name:      ing.Name,
			Required:  required,
			Available: available,
			Unit:      ing.Unit,
			Optional:  ing.Optional,
		}
		switch {
		case available >= required:
			c.Coverage = CoverageSufficient
		case available > 0:
			c.Coverage = CoverageInsufficient
			c.Shortage = required - available
		default:
			c.Coverage = CoverageOutOfStock
			c.Shortage = required
		}
		m.Ingredients = append(m.Ingredients, c)

		if ing.Optional {
			continue
		}
		scored++
		if c.Coverage == CoverageSufficient {
			sufficient++
		}
	}

	if scored > 0 {
		m.MatchScore = int(math.Round(100 * float64(sufficient) / float64(scored)))
		m.CanCook = sufficient == scored
	}
	return m
}

// Match scores one recipe for the member. servings below 1 means one serving.
func (r *RecipeService) Match(ctx context.Context, memberID, recipeID string, servings int) (*RecipeMatch, error) {
	if servings < 1 {
		servings = 1
	}
	recipe, err := r.store.GetRecipe(ctx, recipeID)
	if err != nil {
		return nil, model.Dependency("get recipe", err)
	}
	st, err := r.snapshot(ctx, memberID)
	if err != nil {
		return nil, err
	}
	m := score(*recipe, servings, st)
	return &m, nil
}

// Recommend scores every catalog recipe and partitions the results.
func (r *RecipeService) Recommend(ctx context.Context, memberID string) (*RecipeRecommendations, error) {
	recipes, err := r.store.ListRecipes(ctx)
	if err != nil {
		return nil, model.Dependency("list recipes", err)
	}
	st, err := r.snapshot(ctx, memberID)
	if err != nil {
		return nil, err
	}

	recs := &RecipeRecommendations{
		CanCook:            []RecipeMatch{},
		PartiallyAvailable: []RecipeMatch{},
		Unavailable:        []RecipeMatch{},
	}
	for _, recipe := range recipes {
		m := score(recipe, 1, st)
		switch {
		case m.CanCook:
			recs.CanCook = append(recs.CanCook, m)
		case m.MatchScore > 0:
			recs.PartiallyAvailable = append(recs.PartiallyAvailable, m)
		default:
			recs.Unavailable = append(recs.Unavailable, m)
		}
	}
	sortMatches(recs.CanCook)
	sortMatches(recs.PartiallyAvailable)
	sortMatches(recs.Unavailable)

	recs.Stats = RecommendationStats{
		Total:       len(recipes),
		CanCook:     len(recs.CanCook),
		Partial:     len(recs.PartiallyAvailable),
		Unavailable: len(recs.Unavailable),
	}
	return recs, nil
}

func sortMatches(ms []RecipeMatch) {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].MatchScore != ms[j].MatchScore {
			return ms[i].MatchScore > ms[j].MatchScore
		}
		return ms[i].Name < ms[j].Name
	})
}

// ForExpiring ranks recipes that use at least one food expiring within the status horizon.
func (r *RecipeService) ForExpiring(ctx context.Context, memberID string) ([]ExpiringRecipe, error) {
	recipes, err := r.store.ListRecipes(ctx)
	if err != nil {
		return nil, model.Dependency("list recipes", err)
	}
	st, err := r.snapshot(ctx, memberID)
	if err != nil {
		return nil, err
	}

	now := r.clock.Now()
	expiring := map[string]bool{}
	for food, items := range st.items {
		for i := range items {
			if status.IsExpiringWithin(&items[i], status.ExpiringHorizonDays, now) {
				expiring[food] = true
				break
			}
		}
	}

	out := []ExpiringRecipe{}
	for _, recipe := range recipes {
		var foods []string
		for _, ing := range recipe.Ingredients {
			if expiring[ing.FoodID] {
				foods = append(foods, ing.Name)
			}
		}
		if len(foods) == 0 {
			continue
		}
		out = append(out, ExpiringRecipe{RecipeMatch: score(recipe, 1, st), ExpiringFoods: foods})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].ExpiringFoods) != len(out[j].ExpiringFoods) {
			return len(out[i].ExpiringFoods) > len(out[j].ExpiringFoods)
		}
		if out[i].MatchScore != out[j].MatchScore {
			return out[i].MatchScore > out[j].MatchScore
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Cook debits stock for servings of a recipe. Every ingredient is checked first
// and all shortages are reported together; nothing is debited unless all pass.
func (r *RecipeService) Cook(ctx context.Context, memberID, recipeID string, servings int) (*CookResult, error) {
	if servings < 1 {
		return nil, model.Invalid("servings", "must be at least 1")
	}
	recipe, err := r.store.GetRecipe(ctx, recipeID)
	if err != nil {
		return nil, model.Dependency("get recipe", err)
	}
	st, err := r.snapshot(ctx, memberID)
	if err != nil {
		return nil, err
	}

	// A food listed on several lines is checked against its combined requirement.
	var order []model.Ingredient
	required := map[string]float64{}
	for _, ing := range recipe.Ingredients {
		if ing.Optional {
			continue
		}
		if _, seen := required[ing.FoodID]; !seen {
			order = append(order, ing)
		}
		required[ing.FoodID] += ing.Quantity * float64(servings)
	}

	var shortages []model.Shortage
	for _, ing := range order {
		need := required[ing.FoodID]
		if available := st.available(ing.FoodID); available < need {
			shortages = append(shortages, model.Shortage{
				FoodID:    ing.FoodID,
				Name:      ing.Name,
				Required:  need,
				Available: available,
				Unit:      ing.Unit,
			})
		}
	}
	if len(shortages) > 0 {
		return nil, &model.ShortageError{RecipeID: recipe.ID, Shortages: shortages}
	}

	now := r.clock.Now()
	recipeRef := recipe.ID
	var events []model.UsageEvent
	var warnings []string
	taken := map[string]float64{}
	takenByFood := map[string]float64{}
	for _, ing := range recipe.Ingredients {
		remaining := ing.Quantity * float64(servings)
		if ing.Optional && st.available(ing.FoodID)-takenByFood[ing.FoodID] < remaining {
			continue
		}
		for _, it := range st.items[ing.FoodID] {
			if remaining <= 0 {
				break
			}
			left := it.Quantity - taken[it.ID]
			if left <= 0 {
				continue
			}
			take := math.Min(left, remaining)
			remaining -= take
			taken[it.ID] += take
			takenByFood[ing.FoodID] += take
			events = append(events, model.UsageEvent{
				ID:       uid.New(),
				ItemID:   it.ID,
				MemberID: memberID,
				FoodID:   it.FoodID,
				Quantity: take,
				Reason:   model.UsageRecipe,
				RecipeID: &recipeRef,
				Note:     recipe.Name,
				UsedAt:   now,
			})
			if w := consumeWarning(it); w != "" {
				warnings = append(warnings, w)
			}
		}
	}

	if len(events) > 0 {
		if _, err := r.store.RecordUsage(ctx, events, status.Reclassifier(now)); err != nil {
			return nil, model.Dependency("record recipe usage", err)
		}
		r.metrics.UsageRecorded(string(model.UsageRecipe))
	}

	record := model.CookRecord{
		ID:         uid.New(),
		MemberID:   memberID,
		RecipeID:   recipe.ID,
		RecipeName: recipe.Name,
		Servings:   servings,
		Usages:     events,
		CookedAt:   now,
	}
	if err := r.store.RecordCook(ctx, &record); err != nil {
		r.logger.Error("failed to record cook history",
			zap.String("recipe_id", recipe.ID),
			zap.String("member_id", memberID),
			zap.Error(err),
		)
		warnings = append(warnings, "stock was used but the cook history could not be saved")
	}

	if warnings == nil {
		warnings = []string{}
	}
	return &CookResult{Record: record, Warnings: warnings}, nil
}

func consumeWarning(it model.InventoryItem) string {
	switch it.Status {
	case model.StatusExpired:
		return fmt.Sprintf("%s (item %s) is marked expired", it.FoodName(), it.ID)
	case model.StatusExpiring:
		return fmt.Sprintf("%s (item %s) expires soon", it.FoodName(), it.ID)
	}
	return ""
}

// CookHistory returns the member's cook records, newest first.
func (r *RecipeService) CookHistory(ctx context.Context, memberID string, limit int) ([]model.CookRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	records, err := r.store.ListCooks(ctx, memberID, limit)
	if err != nil {
		return nil, model.Dependency("list cooks", err)
	}
	return records, nil
}
