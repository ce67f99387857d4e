package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemStatus is the derived freshness/stock state of an inventory item.
type ItemStatus string

const (
	StatusFresh      ItemStatus = "FRESH"
	StatusExpiring   ItemStatus = "EXPIRING"
	StatusExpired    ItemStatus = "EXPIRED"
	StatusLowStock   ItemStatus = "LOW_STOCK"
	StatusOutOfStock ItemStatus = "OUT_OF_STOCK"
)

// Valid reports whether s is one of the known statuses.
func (s ItemStatus) Valid() bool {
	switch s {
	case StatusFresh, StatusExpiring, StatusExpired, StatusLowStock, StatusOutOfStock:
		return true
	}
	return false
}

// StorageLocation is where an item is kept in the household.
type StorageLocation string

const (
	LocationRefrigerator StorageLocation = "refrigerator"
	LocationFreezer      StorageLocation = "freezer"
	LocationPantry       StorageLocation = "pantry"
	LocationCounter      StorageLocation = "counter"
	LocationOther        StorageLocation = "other"
)

// Valid reports whether l is a known storage location.
func (l StorageLocation) Valid() bool {
	switch l {
	case LocationRefrigerator, LocationFreezer, LocationPantry, LocationCounter, LocationOther:
		return true
	}
	return false
}

// PurchaseSource records how an item entered the inventory.
type PurchaseSource string

const (
	SourceManual       PurchaseSource = "manual"
	SourceOrderSync    PurchaseSource = "order_sync"
	SourceShoppingList PurchaseSource = "shopping_list"
)

// InventoryItem is one procured batch of a food owned by one member.
type InventoryItem struct {
	ID                string              `json:"id" db:"id"`
	MemberID          string              `json:"member_id" db:"member_id"`
	FoodID            string              `json:"food_id" db:"food_id"`
	Quantity          float64             `json:"quantity" db:"quantity"`
	OriginalQuantity  float64             `json:"original_quantity" db:"original_quantity"`
	Unit              string              `json:"unit" db:"unit"`
	ExpiryDate        *time.Time          `json:"expiry_date,omitempty" db:"expiry_date"`
	ProductionDate    *time.Time          `json:"production_date,omitempty" db:"production_date"`
	Status            ItemStatus          `json:"status" db:"status"`
	DaysToExpiry      *int                `json:"days_to_expiry,omitempty" db:"days_to_expiry"`
	IsLowStock        bool                `json:"is_low_stock" db:"is_low_stock"`
	MinStockThreshold *float64            `json:"min_stock_threshold,omitempty" db:"min_stock_threshold"`
	StorageLocation   StorageLocation     `json:"storage_location" db:"storage_location"`
	PurchasePrice     decimal.NullDecimal `json:"purchase_price" db:"purchase_price"`
	PurchaseSource    PurchaseSource      `json:"purchase_source" db:"purchase_source"`
	Notes             string              `json:"notes,omitempty" db:"notes"`
	CreatedAt         time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at" db:"updated_at"`
	DeletedAt         *time.Time          `json:"-" db:"deleted_at"`

	// Eager-loaded associations, populated by get-by-id.
	Food   *Food        `json:"food,omitempty" db:"-"`
	Usages []UsageEvent `json:"usages,omitempty" db:"-"`
	Wastes []WasteEvent `json:"wastes,omitempty" db:"-"`
}

// IsActive reports whether the item is visible to active-inventory queries.
func (i *InventoryItem) IsActive() bool {
	return i.DeletedAt == nil
}

// UnitPrice returns the purchase price per unit of the original quantity.
func (i *InventoryItem) UnitPrice() decimal.Decimal {
	if !i.PurchasePrice.Valid || i.OriginalQuantity <= 0 {
		return decimal.Zero
	}
	return i.PurchasePrice.Decimal.Div(decimal.NewFromFloat(i.OriginalQuantity))
}

// ValueOf pro-rates the purchase price to qty units.
func (i *InventoryItem) ValueOf(qty float64) decimal.Decimal {
	return i.UnitPrice().Mul(decimal.NewFromFloat(qty)).Round(2)
}

// FoodName returns the catalog name, or the food ID when the food is not loaded.
func (i *InventoryItem) FoodName() string {
	if i.Food != nil && i.Food.Name != "" {
		return i.Food.Name
	}
	return i.FoodID
}

// Reclassify recomputes derived status fields on an item in place.
// Stores call it inside the same unit of work as a quantity change.
type Reclassify func(item *InventoryItem)

// UsageReason is the closed set of reasons for consuming stock.
type UsageReason string

const (
	UsageCooking UsageReason = "cooking"
	UsageEating  UsageReason = "eating"
	UsageRecipe  UsageReason = "recipe"
	UsageExpired UsageReason = "expired"
	UsageDamaged UsageReason = "damaged"
	UsageOther   UsageReason = "other"
)

// Valid reports whether r is a known usage reason.
func (r UsageReason) Valid() bool {
	switch r {
	case UsageCooking, UsageEating, UsageRecipe, UsageExpired, UsageDamaged, UsageOther:
		return true
	}
	return false
}

// UsageEvent is an immutable record of quantity removed from an item.
type UsageEvent struct {
	ID       string      `json:"id" db:"id"`
	ItemID   string      `json:"item_id" db:"item_id"`
	MemberID string      `json:"member_id" db:"member_id"`
	FoodID   string      `json:"food_id" db:"food_id"`
	Quantity float64     `json:"quantity" db:"quantity"`
	Reason   UsageReason `json:"reason" db:"reason"`
	MealID   *string     `json:"meal_id,omitempty" db:"meal_id"`
	RecipeID *string     `json:"recipe_id,omitempty" db:"recipe_id"`
	Note     string      `json:"note,omitempty" db:"note"`
	UsedAt   time.Time   `json:"used_at" db:"used_at"`
}

// WasteReason is the closed set of reasons for discarding stock.
type WasteReason string

const (
	WasteExpired WasteReason = "expired"
	WasteSpoiled WasteReason = "spoiled"
	WasteDamaged WasteReason = "damaged"
	WasteExcess  WasteReason = "excess"
	WasteOther   WasteReason = "other"
)

// Valid reports whether r is a known waste reason.
func (r WasteReason) Valid() bool {
	switch r {
	case WasteExpired, WasteSpoiled, WasteDamaged, WasteExcess, WasteOther:
		return true
	}
	return false
}

// WasteEvent is an immutable record of quantity discarded.
type WasteEvent struct {
	ID            string          `json:"id" db:"id"`
	ItemID        string          `json:"item_id" db:"item_id"`
	MemberID      string          `json:"member_id" db:"member_id"`
	FoodID        string          `json:"food_id" db:"food_id"`
	Quantity      float64         `json:"quantity" db:"quantity"`
	Reason        WasteReason     `json:"reason" db:"reason"`
	EstimatedCost decimal.Decimal `json:"estimated_cost" db:"estimated_cost"`
	PreventionTip string          `json:"prevention_tip,omitempty" db:"prevention_tip"`
	WastedAt      time.Time       `json:"wasted_at" db:"wasted_at"`
}

// ItemFilter narrows active-inventory listings.
type ItemFilter struct {
	MemberID string
	FoodID   string
	Status   ItemStatus
	Location StorageLocation
	Category string
	Expiring bool // status EXPIRING
	Expired  bool // status EXPIRED
	LowStock bool
	Page     int
	PageSize int
}

// UsageFilter narrows usage history queries.
type UsageFilter struct {
	MemberID string
	ItemID   string
	Since    *time.Time
	Until    *time.Time
}

// WasteFilter narrows waste history queries.
type WasteFilter struct {
	MemberID string
	ItemID   string
	Since    *time.Time
	Until    *time.Time
}

// InventoryStats aggregates a member's active inventory.
type InventoryStats struct {
	TotalItems     int                `json:"total_items"`
	ByStatus       map[ItemStatus]int `json:"by_status"`
	LowStockCount  int                `json:"low_stock_count"`
	Categories     int                `json:"categories"`
	EstimatedValue decimal.Decimal    `json:"estimated_value"`
}
