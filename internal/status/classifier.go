// Package status derives an inventory item's freshness and stock state.
//
// Everything here is a pure function of (quantity, expiry date, threshold, now).
// Callers re-evaluate on every read and write path; nothing is cached.
package status

import (
	"math"
	"time"

	"household-inventory-api/internal/model"
)

// ExpiringHorizonDays is the number of days ahead at which an item counts as expiring.
const ExpiringHorizonDays = 3

const day = 24 * time.Hour

// Input is the triple a classification depends on.
type Input struct {
	Quantity          float64
	ExpiryDate        *time.Time
	MinStockThreshold *float64
}

// Result is the derived state of one item.
type Result struct {
	Status       model.ItemStatus
	DaysToExpiry *int
	IsLowStock   bool
}

// DaysToExpiry returns ceil((expiry - now) / 1 day), or nil when there is no expiry date.
func DaysToExpiry(expiry *time.Time, now time.Time) *int {
	if expiry == nil {
		return nil
	}
	d := int(math.Ceil(float64(expiry.Sub(now)) / float64(day)))
	return &d
}

// IsLowStock reports whether quantity is at or below a configured threshold.
func IsLowStock(quantity float64, threshold *float64) bool {
	return threshold != nil && quantity <= *threshold
}

// Classify applies the status precedence: out of stock, low stock, expired, expiring, fresh.
// An item at zero quantity is OUT_OF_STOCK even when its batch has already expired.
func Classify(in Input, now time.Time) Result {
	days := DaysToExpiry(in.ExpiryDate, now)
	res := Result{
		DaysToExpiry: days,
		IsLowStock:   IsLowStock(in.Quantity, in.MinStockThreshold),
	}

	switch {
	case in.Quantity <= 0:
		res.Status = model.StatusOutOfStock
	case res.IsLowStock:
		res.Status = model.StatusLowStock
	case days != nil && *days < 0:
		res.Status = model.StatusExpired
	case days != nil && *days <= ExpiringHorizonDays:
		res.Status = model.StatusExpiring
	default:
		res.Status = model.StatusFresh
	}
	return res
}

// Apply recomputes the derived fields of item in place and reports whether any changed.
func Apply(item *model.InventoryItem, now time.Time) bool {
	res := Classify(Input{
		Quantity:          item.Quantity,
		ExpiryDate:        item.ExpiryDate,
		MinStockThreshold: item.MinStockThreshold,
	}, now)

	changed := item.Status != res.Status ||
		item.IsLowStock != res.IsLowStock ||
		!sameDays(item.DaysToExpiry, res.DaysToExpiry)

	item.Status = res.Status
	item.DaysToExpiry = res.DaysToExpiry
	item.IsLowStock = res.IsLowStock
	return changed
}

// Reclassifier returns a model.Reclassify bound to a fixed instant, for stores to apply
// inside the same transaction as a quantity change.
func Reclassifier(now time.Time) model.Reclassify {
	return func(item *model.InventoryItem) {
		Apply(item, now)
	}
}

// IsExpiringWithin reports whether an item expires in [0, days] days from now.
func IsExpiringWithin(item *model.InventoryItem, days int, now time.Time) bool {
	d := DaysToExpiry(item.ExpiryDate, now)
	return d != nil && *d >= 0 && *d <= days
}

// IsExpired reports whether the item's expiry date has passed, ignoring quantity.
func IsExpired(item *model.InventoryItem, now time.Time) bool {
	d := DaysToExpiry(item.ExpiryDate, now)
	return d != nil && *d < 0
}

func sameDays(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
