package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"household-inventory-api/internal/metrics"
	"household-inventory-api/internal/model"
	"household-inventory-api/internal/repository"
	"household-inventory-api/internal/status"
	"household-inventory-api/pkg/clock"
	"household-inventory-api/pkg/uid"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// knownUnits is the closed set of quantity units accepted on items.
var knownUnits = map[string]bool{
	"g": true, "kg": true, "mg": true,
	"ml": true, "l": true,
	"pcs": true, "pack": true, "bottle": true, "can": true, "box": true, "bag": true,
	"dozen": true, "cup": true, "tbsp": true, "tsp": true, "slice": true, "bunch": true,
}

// IsKnownUnit reports whether unit is accepted on inventory items.
func IsKnownUnit(unit string) bool {
	return knownUnits[strings.ToLower(unit)]
}

// TrackerConfig tunes InventoryTracker behaviour.
type TrackerConfig struct {
	// DeleteDepleted soft-deletes an item once usage drives it to zero.
	// When false the item stays visible as OUT_OF_STOCK so it can be restocked.
	DeleteDepleted bool
}

// CreateItemInput is the payload for InventoryTracker.Create.
type CreateItemInput struct {
	FoodID            string                `json:"food_id"`
	Quantity          float64               `json:"quantity"`
	Unit              string                `json:"unit"`
	ExpiryDate        *time.Time            `json:"expiry_date"`
	ProductionDate    *time.Time            `json:"production_date"`
	MinStockThreshold *float64              `json:"min_stock_threshold"`
	StorageLocation   model.StorageLocation `json:"storage_location"`
	PurchasePrice     decimal.NullDecimal   `json:"purchase_price"`
	PurchaseSource    model.PurchaseSource  `json:"purchase_source"`
	Notes             string                `json:"notes"`
}

// UpdateItemInput is a partial patch; nil fields are left unchanged.
type UpdateItemInput struct {
	Quantity          *float64               `json:"quantity"`
	Unit              *string                `json:"unit"`
	ExpiryDate        *time.Time             `json:"expiry_date"`
	ClearExpiryDate   bool                   `json:"clear_expiry_date"`
	MinStockThreshold *float64               `json:"min_stock_threshold"`
	ClearThreshold    bool                   `json:"clear_min_stock_threshold"`
	StorageLocation   *model.StorageLocation `json:"storage_location"`
	PurchasePrice     *decimal.Decimal       `json:"purchase_price"`
	Notes             *string                `json:"notes"`
}

// UseInput is the payload for InventoryTracker.Use.
type UseInput struct {
	Amount   float64           `json:"amount"`
	Reason   model.UsageReason `json:"reason"`
	MealID   *string           `json:"meal_id"`
	RecipeID *string           `json:"recipe_id"`
	Note     string            `json:"note"`
}

// WasteInput is the payload for InventoryTracker.Waste.
type WasteInput struct {
	Amount float64           `json:"amount"`
	Reason model.WasteReason `json:"reason"`
}

// IngredientUse is one line of a recipe usage request.
type IngredientUse struct {
	FoodID   string  `json:"food_id"`
	Quantity float64 `json:"quantity"`
}

// RecipeUsageInput is the payload for InventoryTracker.UseForRecipe.
type RecipeUsageInput struct {
	RecipeID    *string         `json:"recipe_id"`
	RecipeName  string          `json:"recipe_name"`
	Ingredients []IngredientUse `json:"ingredients"`
}

// SkippedIngredient reports an ingredient no single batch could cover.
type SkippedIngredient struct {
	FoodID   string  `json:"food_id"`
	Required float64 `json:"required"`
	Reason   string  `json:"reason"`
}

// RecipeUsageResult lists applied usages and skipped ingredients.
type RecipeUsageResult struct {
	Used    []model.UsageEvent  `json:"used"`
	Skipped []SkippedIngredient `json:"skipped"`
}

// ItemPage is one page of a listing.
type ItemPage struct {
	Items    []model.InventoryItem `json:"items"`
	Total    int                   `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
}

// InventoryTracker orchestrates item mutations and keeps derived status current.
type InventoryTracker struct {
	store   repository.Store
	foods   repository.FoodCatalog
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *zap.Logger
	config  TrackerConfig
}

// NewInventoryTracker creates a tracker. foods may be a cached view of store's catalog.
func NewInventoryTracker(
	store repository.Store,
	foods repository.FoodCatalog,
	clk clock.Clock,
	m *metrics.Metrics,
	logger *zap.Logger,
	config TrackerConfig,
) *InventoryTracker {
	if foods == nil {
		foods = store
	}
	return &InventoryTracker{
		store:   store,
		foods:   foods,
		clock:   clk,
		metrics: m,
		logger:  logger,
		config:  config,
	}
}

// Create validates input and inserts a new classified item.
func (t *InventoryTracker) Create(ctx context.Context, memberID string, in CreateItemInput) (*model.InventoryItem, error) {
	if err := validateCreate(memberID, in); err != nil {
		return nil, err
	}

	exists, err := t.store.MemberExists(ctx, memberID)
	if err != nil {
		return nil, model.Dependency("check member", err)
	}
	if !exists {
		return nil, model.NotFound("member", memberID)
	}
	if _, err := t.foods.GetFood(ctx, in.FoodID); err != nil {
		return nil, err
	}

	now := t.clock.Now()
	item := &model.InventoryItem{
		ID:                uid.New(),
		MemberID:          memberID,
		FoodID:            in.FoodID,
		Quantity:          in.Quantity,
		OriginalQuantity:  in.Quantity,
		Unit:              strings.ToLower(in.Unit),
		ExpiryDate:        in.ExpiryDate,
		ProductionDate:    in.ProductionDate,
		MinStockThreshold: in.MinStockThreshold,
		StorageLocation:   in.StorageLocation,
		PurchasePrice:     in.PurchasePrice,
		PurchaseSource:    in.PurchaseSource,
		Notes:             in.Notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if item.StorageLocation == "" {
		item.StorageLocation = model.LocationOther
	}
	if item.PurchaseSource == "" {
		item.PurchaseSource = model.SourceManual
	}
	status.Apply(item, now)

	if err := t.store.CreateItem(ctx, item); err != nil {
		return nil, err
	}
	return t.store.GetItem(ctx, item.ID)
}

func validateCreate(memberID string, in CreateItemInput) error {
	switch {
	case memberID == "":
		return model.Invalid("member_id", "is required")
	case in.FoodID == "":
		return model.Invalid("food_id", "is required")
	case in.Quantity <= 0:
		return model.Invalid("quantity", "must be positive")
	case in.Unit == "":
		return model.Invalid("unit", "is required")
	case !IsKnownUnit(in.Unit):
		return model.Invalid("unit", "unknown unit "+in.Unit)
	case in.MinStockThreshold != nil && *in.MinStockThreshold < 0:
		return model.Invalid("min_stock_threshold", "must not be negative")
	case in.StorageLocation != "" && !in.StorageLocation.Valid():
		return model.Invalid("storage_location", "unknown location")
	case in.PurchasePrice.Valid && in.PurchasePrice.Decimal.IsNegative():
		return model.Invalid("purchase_price", "must not be negative")
	}
	return nil
}

// owned loads an active item and checks it belongs to memberID.
func (t *InventoryTracker) owned(ctx context.Context, memberID, itemID string) (*model.InventoryItem, error) {
	item, err := t.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, model.Dependency("get item", err)
	}
	if item.MemberID != memberID {
		return nil, &model.PermissionError{MemberID: memberID, Resource: "inventory item", ID: itemID}
	}
	return item, nil
}

// Get returns an owned item with associations and freshly evaluated status.
func (t *InventoryTracker) Get(ctx context.Context, memberID, itemID string) (*model.InventoryItem, error) {
	item, err := t.owned(ctx, memberID, itemID)
	if err != nil {
		return nil, err
	}
	status.Apply(item, t.clock.Now())
	return item, nil
}

// List returns a page of the member's active items.
func (t *InventoryTracker) List(ctx context.Context, memberID string, filter model.ItemFilter) (*ItemPage, error) {
	filter.MemberID = memberID
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	now := t.clock.Now()
	if filter.Status == "" && !filter.Expiring && !filter.Expired {
		items, total, err := t.store.ListItems(ctx, filter)
		if err != nil {
			return nil, model.Dependency("list items", err)
		}
		for i := range items {
			status.Apply(&items[i], now)
		}
		return &ItemPage{Items: items, Total: total, Page: filter.Page, PageSize: filter.PageSize}, nil
	}

	// Stored status lags the clock between sweeps, so status filters run on
	// freshly classified items and pagination follows.
	storeFilter := filter
	storeFilter.Status, storeFilter.Expiring, storeFilter.Expired = "", false, false
	storeFilter.Page, storeFilter.PageSize = 0, 0
	candidates, _, err := t.store.ListItems(ctx, storeFilter)
	if err != nil {
		return nil, model.Dependency("list items", err)
	}

	matched := make([]model.InventoryItem, 0, len(candidates))
	for i := range candidates {
		it := &candidates[i]
		status.Apply(it, now)
		if matchStatus(it, filter) {
			matched = append(matched, *it)
		}
	}

	total := len(matched)
	lo := (filter.Page - 1) * filter.PageSize
	if lo > total {
		lo = total
	}
	hi := lo + filter.PageSize
	if hi > total {
		hi = total
	}
	return &ItemPage{Items: matched[lo:hi], Total: total, Page: filter.Page, PageSize: filter.PageSize}, nil
}

func matchStatus(it *model.InventoryItem, f model.ItemFilter) bool {
	if f.Status != "" && it.Status != f.Status {
		return false
	}
	if f.Expiring && it.Status != model.StatusExpiring {
		return false
	}
	if f.Expired && it.Status != model.StatusExpired {
		return false
	}
	return true
}

// Update applies a partial patch and reclassifies before persisting.
func (t *InventoryTracker) Update(ctx context.Context, memberID, itemID string, in UpdateItemInput) (*model.InventoryItem, error) {
	item, err := t.owned(ctx, memberID, itemID)
	if err != nil {
		return nil, err
	}

	if in.Quantity != nil {
		if *in.Quantity < 0 {
			return nil, model.Invalid("quantity", "must not be negative")
		}
		item.Quantity = *in.Quantity
	}
	if in.Unit != nil {
		if !IsKnownUnit(*in.Unit) {
			return nil, model.Invalid("unit", "unknown unit "+*in.Unit)
		}
		item.Unit = strings.ToLower(*in.Unit)
	}
	if in.ClearExpiryDate {
		item.ExpiryDate = nil
	} else if in.ExpiryDate != nil {
		item.ExpiryDate = in.ExpiryDate
	}
	if in.ClearThreshold {
		item.MinStockThreshold = nil
	} else if in.MinStockThreshold != nil {
		if *in.MinStockThreshold < 0 {
			return nil, model.Invalid("min_stock_threshold", "must not be negative")
		}
		item.MinStockThreshold = in.MinStockThreshold
	}
	if in.StorageLocation != nil {
		if !in.StorageLocation.Valid() {
			return nil, model.Invalid("storage_location", "unknown location")
		}
		item.StorageLocation = *in.StorageLocation
	}
	if in.PurchasePrice != nil {
		if in.PurchasePrice.IsNegative() {
			return nil, model.Invalid("purchase_price", "must not be negative")
		}
		item.PurchasePrice = decimal.NewNullDecimal(*in.PurchasePrice)
	}
	if in.Notes != nil {
		item.Notes = *in.Notes
	}

	now := t.clock.Now()
	item.UpdatedAt = now
	status.Apply(item, now)

	if err := t.store.UpdateItem(ctx, item); err != nil {
		return nil, model.Dependency("update item", err)
	}
	return t.store.GetItem(ctx, itemID)
}

// Delete soft-deletes an owned item.
func (t *InventoryTracker) Delete(ctx context.Context, memberID, itemID string) error {
	if _, err := t.owned(ctx, memberID, itemID); err != nil {
		return err
	}
	return model.Dependency("delete item", t.store.SoftDeleteItem(ctx, itemID, t.clock.Now()))
}

// Use records consumption of one item. The decrement, reclassification and
// usage event are applied by the store as a single unit.
func (t *InventoryTracker) Use(ctx context.Context, memberID, itemID string, in UseInput) (*model.InventoryItem, error) {
	if in.Amount <= 0 {
		return nil, model.Invalid("amount", "must be positive")
	}
	if in.Reason == "" {
		in.Reason = model.UsageOther
	}
	if !in.Reason.Valid() {
		return nil, model.Invalid("reason", "unknown usage reason "+string(in.Reason))
	}

	item, err := t.owned(ctx, memberID, itemID)
	if err != nil {
		return nil, err
	}

	now := t.clock.Now()
	ev := model.UsageEvent{
		ID:       uid.New(),
		ItemID:   item.ID,
		MemberID: memberID,
		FoodID:   item.FoodID,
		Quantity: in.Amount,
		Reason:   in.Reason,
		MealID:   in.MealID,
		RecipeID: in.RecipeID,
		Note:     in.Note,
		UsedAt:   now,
	}

	updated, err := t.store.RecordUsage(ctx, []model.UsageEvent{ev}, status.Reclassifier(now))
	if err != nil {
		if errors.Is(err, model.ErrInsufficientStock) {
			t.metrics.InsufficientStock()
		}
		return nil, model.Dependency("record usage", err)
	}
	t.metrics.UsageRecorded(string(in.Reason))

	result := updated[0]
	t.deleteIfDepleted(ctx, &result, now)
	return &result, nil
}

func (t *InventoryTracker) deleteIfDepleted(ctx context.Context, item *model.InventoryItem, now time.Time) {
	if !t.config.DeleteDepleted || item.Quantity > 0 {
		return
	}
	if err := t.store.SoftDeleteItem(ctx, item.ID, now); err != nil {
		t.logger.Warn("failed to remove depleted item", zap.String("item_id", item.ID), zap.Error(err))
		return
	}
	item.DeletedAt = &now
}

// UseForRecipe consumes each ingredient from the single earliest-expiring batch
// that can cover it. Ingredients without such a batch are skipped and reported.
func (t *InventoryTracker) UseForRecipe(ctx context.Context, memberID string, in RecipeUsageInput) (*RecipeUsageResult, error) {
	if len(in.Ingredients) == 0 {
		return nil, model.Invalid("ingredients", "at least one ingredient is required")
	}
	for _, ing := range in.Ingredients {
		if ing.FoodID == "" {
			return nil, model.Invalid("ingredients.food_id", "is required")
		}
		if ing.Quantity <= 0 {
			return nil, model.Invalid("ingredients.quantity", "must be positive")
		}
	}

	result := &RecipeUsageResult{Used: []model.UsageEvent{}, Skipped: []SkippedIngredient{}}
	for _, ing := range in.Ingredients {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		items, _, err := t.store.ListItems(ctx, model.ItemFilter{MemberID: memberID, FoodID: ing.FoodID})
		if err != nil {
			return nil, model.Dependency("list items", err)
		}
		SortFEFO(items)

		var candidate *model.InventoryItem
		for i := range items {
			if items[i].Quantity >= ing.Quantity {
				candidate = &items[i]
				break
			}
		}
		if candidate == nil {
			result.Skipped = append(result.Skipped, SkippedIngredient{
				FoodID: ing.FoodID, Required: ing.Quantity, Reason: "no single item with sufficient quantity",
			})
			continue
		}

		now := t.clock.Now()
		ev := model.UsageEvent{
			ID:       uid.New(),
			ItemID:   candidate.ID,
			MemberID: memberID,
			FoodID:   ing.FoodID,
			Quantity: ing.Quantity,
			Reason:   model.UsageRecipe,
			RecipeID: in.RecipeID,
			Note:     in.RecipeName,
			UsedAt:   now,
		}
		updated, err := t.store.RecordUsage(ctx, []model.UsageEvent{ev}, status.Reclassifier(now))
		if err != nil {
			if errors.Is(err, model.ErrInsufficientStock) || errors.Is(err, model.ErrNotFound) {
				// Lost a race with a concurrent usage; report rather than fail the batch.
				t.metrics.InsufficientStock()
				result.Skipped = append(result.Skipped, SkippedIngredient{
					FoodID: ing.FoodID, Required: ing.Quantity, Reason: err.Error(),
				})
				continue
			}
			return nil, model.Dependency("record usage", err)
		}
		t.metrics.UsageRecorded(string(model.UsageRecipe))
		t.deleteIfDepleted(ctx, &updated[0], now)
		result.Used = append(result.Used, ev)
	}
	return result, nil
}

// Stats aggregates the member's active inventory.
func (t *InventoryTracker) Stats(ctx context.Context, memberID string) (*model.InventoryStats, error) {
	stats, err := t.store.GetStats(ctx, memberID)
	if err != nil {
		return nil, model.Dependency("inventory stats", err)
	}

	items, _, err := t.store.ListItems(ctx, model.ItemFilter{MemberID: memberID})
	if err != nil {
		return nil, model.Dependency("list items", err)
	}
	now := t.clock.Now()
	stats.ByStatus = make(map[model.ItemStatus]int)
	stats.LowStockCount = 0
	for i := range items {
		status.Apply(&items[i], now)
		stats.ByStatus[items[i].Status]++
		if items[i].IsLowStock {
			stats.LowStockCount++
		}
	}
	return stats, nil
}

// Restock increments an owned item's quantity; the original quantity is untouched.
func (t *InventoryTracker) Restock(ctx context.Context, memberID, itemID string, amount float64) (*model.InventoryItem, error) {
	if amount <= 0 {
		return nil, model.Invalid("amount", "must be positive")
	}
	if _, err := t.owned(ctx, memberID, itemID); err != nil {
		return nil, err
	}
	now := t.clock.Now()
	item, err := t.store.Restock(ctx, itemID, amount, now, status.Reclassifier(now))
	if err != nil {
		return nil, model.Dependency("restock item", err)
	}
	return item, nil
}

// Waste discards part of an owned item and records its pro-rated cost.
func (t *InventoryTracker) Waste(ctx context.Context, memberID, itemID string, in WasteInput) (*model.WasteEvent, error) {
	if in.Amount <= 0 {
		return nil, model.Invalid("amount", "must be positive")
	}
	if in.Reason == "" {
		in.Reason = model.WasteOther
	}
	if !in.Reason.Valid() {
		return nil, model.Invalid("reason", "unknown waste reason "+string(in.Reason))
	}

	item, err := t.owned(ctx, memberID, itemID)
	if err != nil {
		return nil, err
	}

	now := t.clock.Now()
	ev := &model.WasteEvent{
		ID:            uid.New(),
		ItemID:        item.ID,
		MemberID:      memberID,
		FoodID:        item.FoodID,
		Quantity:      in.Amount,
		Reason:        in.Reason,
		EstimatedCost: item.ValueOf(in.Amount),
		PreventionTip: PreventionTip(item.StorageLocation),
		WastedAt:      now,
	}
	if _, err := t.store.RecordWaste(ctx, ev, status.Reclassifier(now)); err != nil {
		if errors.Is(err, model.ErrInsufficientStock) {
			t.metrics.InsufficientStock()
		}
		return nil, model.Dependency("record waste", err)
	}
	t.metrics.WasteRecorded(string(in.Reason))
	return ev, nil
}

// UsageHistory lists usage events of an owned item, newest first.
func (t *InventoryTracker) UsageHistory(ctx context.Context, memberID, itemID string) ([]model.UsageEvent, error) {
	if _, err := t.owned(ctx, memberID, itemID); err != nil {
		return nil, err
	}
	events, err := t.store.ListUsage(ctx, model.UsageFilter{MemberID: memberID, ItemID: itemID})
	if err != nil {
		return nil, model.Dependency("list usage", err)
	}
	return events, nil
}

// SortFEFO orders items first-expiry-first-out: expiry ascending with no-expiry
// items last, then creation time ascending.
func SortFEFO(items []model.InventoryItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch {
		case a.ExpiryDate != nil && b.ExpiryDate == nil:
			return true
		case a.ExpiryDate == nil && b.ExpiryDate != nil:
			return false
		case a.ExpiryDate != nil && b.ExpiryDate != nil && !a.ExpiryDate.Equal(*b.ExpiryDate):
			return a.ExpiryDate.Before(*b.ExpiryDate)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}
