package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SuggestionSource names the rule that produced a purchase suggestion.
type SuggestionSource string

const (
	SourceLowStock SuggestionSource = "low_stock"
	SourceFrequent SuggestionSource = "frequent_usage"
	SourceSeasonal SuggestionSource = "seasonal"
)

// PurchaseSuggestion is one recommended restock.
type PurchaseSuggestion struct {
	FoodID          string           `json:"food_id"`
	Name            string           `json:"name"`
	Category        string           `json:"category,omitempty"`
	Quantity        float64          `json:"quantity"`
	Unit            string           `json:"unit"`
	CurrentQuantity float64          `json:"current_quantity"`
	Priority        Priority         `json:"priority"`
	Source          SuggestionSource `json:"source"`
	Reason          string           `json:"reason"`
}

// ShoppingListItem is one line of a member's shopping list.
type ShoppingListItem struct {
	FoodID    string          `json:"food_id"`
	Name      string          `json:"name"`
	Amount    float64         `json:"amount"`
	Unit      string          `json:"unit"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Cost is the estimated price of the line.
func (s ShoppingListItem) Cost() decimal.Decimal {
	return s.UnitPrice.Mul(decimal.NewFromFloat(s.Amount))
}

// ListAdjustment describes what optimization did to one listed item.
type ListAdjustment struct {
	FoodID         string  `json:"food_id"`
	Name           string  `json:"name"`
	Action         string  `json:"action"` // kept, reduced, removed
	OriginalAmount float64 `json:"original_amount"`
	NewAmount      float64 `json:"new_amount"`
	Stock          float64 `json:"stock"`
	Minimum        float64 `json:"minimum"`
}

// OptimizedList is the result of optimizing a shopping list against stock.
type OptimizedList struct {
	Items         []ShoppingListItem   `json:"items"`
	Adjustments   []ListAdjustment     `json:"adjustments"`
	Additions     []PurchaseSuggestion `json:"additions"`
	OriginalCost  decimal.Decimal      `json:"original_cost"`
	OptimizedCost decimal.Decimal      `json:"optimized_cost"`
	Savings       decimal.Decimal      `json:"savings"`
}

// Purchase is one bought line recorded into inventory.
type Purchase struct {
	FoodID            string              `json:"food_id"`
	Quantity          float64             `json:"quantity"`
	Unit              string              `json:"unit"`
	ExpiryDate        *time.Time          `json:"expiry_date,omitempty"`
	StorageLocation   StorageLocation     `json:"storage_location"`
	Price             decimal.NullDecimal `json:"price"`
	MinStockThreshold *float64            `json:"min_stock_threshold,omitempty"`
}
