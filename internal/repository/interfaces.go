package repository

import (
	"context"
	"time"

	"household-inventory-api/internal/model"
)

// InventoryRepository defines inventory item, usage and restock data access.
// Every mutating method that changes quantity applies reclassify to the item
// inside the same unit of work before persisting.
type InventoryRepository interface {
	// CreateItem inserts a new item.
	CreateItem(ctx context.Context, item *model.InventoryItem) error

	// UpdateItem persists the mutable fields of an active item.
	UpdateItem(ctx context.Context, item *model.InventoryItem) error

	// SoftDeleteItem marks an item inactive.
	SoftDeleteItem(ctx context.Context, id string, at time.Time) error

	// GetItem returns an active item with food, usages and wastes loaded.
	GetItem(ctx context.Context, id string) (*model.InventoryItem, error)

	// ListItems returns active items matching filter and the total match count.
	ListItems(ctx context.Context, filter model.ItemFilter) ([]model.InventoryItem, int, error)

	// ListLowStock returns a member's active items at or below their threshold.
	ListLowStock(ctx context.Context, memberID string) ([]model.InventoryItem, error)

	// ListItemsWithExpiry pages through all active items that have an expiry date,
	// ordered by ID, starting after afterID.
	ListItemsWithExpiry(ctx context.Context, afterID string, limit int) ([]model.InventoryItem, error)

	// RecordUsage atomically decrements every referenced item by its event quantity
	// ("where quantity >= amount"), reclassifies it and appends the events.
	// Either all events apply or none do.
	RecordUsage(ctx context.Context, events []model.UsageEvent, reclassify model.Reclassify) ([]model.InventoryItem, error)

	// Restock atomically increments an item's quantity and reclassifies it.
	Restock(ctx context.Context, itemID string, amount float64, at time.Time, reclassify model.Reclassify) (*model.InventoryItem, error)

	// ListUsage returns usage events matching filter, newest first.
	ListUsage(ctx context.Context, filter model.UsageFilter) ([]model.UsageEvent, error)

	// GetStats aggregates a member's active inventory.
	GetStats(ctx context.Context, memberID string) (*model.InventoryStats, error)
}

// WasteRepository defines waste event data access.
type WasteRepository interface {
	// RecordWaste atomically decrements the item by the wasted quantity,
	// reclassifies it and appends the waste event.
	RecordWaste(ctx context.Context, event *model.WasteEvent, reclassify model.Reclassify) (*model.InventoryItem, error)

	// ListWaste returns waste events matching filter, newest first.
	ListWaste(ctx context.Context, filter model.WasteFilter) ([]model.WasteEvent, error)
}

// NotificationRepository defines notification data access.
type NotificationRepository interface {
	CreateNotifications(ctx context.Context, notifications []model.Notification) error
	ListNotifications(ctx context.Context, filter model.NotificationFilter) ([]model.Notification, int, error)

	// FindUnreadByDedupKey returns an unread notification with the same condition, or nil.
	FindUnreadByDedupKey(ctx context.Context, memberID string, ntype model.NotificationType, key string) (*model.Notification, error)

	// LatestNotification returns the most recent notification of a type, or nil.
	LatestNotification(ctx context.Context, memberID string, ntype model.NotificationType) (*model.Notification, error)

	CountUnread(ctx context.Context, memberID string) (*model.UnreadCount, error)
	MarkRead(ctx context.Context, memberID, id string, at time.Time) error
	MarkAllRead(ctx context.Context, memberID string, at time.Time) (int64, error)
	DeleteNotification(ctx context.Context, memberID, id string) error

	// DeleteReadOlderThan removes read notifications created before cutoff.
	DeleteReadOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotificationConfigRepository defines notification settings data access.
type NotificationConfigRepository interface {
	// GetConfig returns nil, nil when the member has no configuration yet.
	GetConfig(ctx context.Context, memberID string) (*model.NotificationConfig, error)
	UpsertConfig(ctx context.Context, cfg *model.NotificationConfig) error
	ListConfiguredMembers(ctx context.Context) ([]string, error)
}

// FoodCatalog is the read-only food lookup consumed by the engine.
type FoodCatalog interface {
	GetFood(ctx context.Context, id string) (*model.Food, error)
	GetFoods(ctx context.Context, ids []string) (map[string]model.Food, error)
	FindFoodByName(ctx context.Context, name string) (*model.Food, error)
}

// RecipeCatalog is the read-only recipe lookup consumed by the engine.
type RecipeCatalog interface {
	GetRecipe(ctx context.Context, id string) (*model.Recipe, error)
	ListRecipes(ctx context.Context) ([]model.Recipe, error)
}

// CookHistoryRepository stores cook records.
type CookHistoryRepository interface {
	RecordCook(ctx context.Context, record *model.CookRecord) error
	ListCooks(ctx context.Context, memberID string, limit int) ([]model.CookRecord, error)
}

// MemberDirectory answers existence checks only.
type MemberDirectory interface {
	MemberExists(ctx context.Context, memberID string) (bool, error)
}

// Store is the full repository contract a single backend provides.
type Store interface {
	InventoryRepository
	WasteRepository
	NotificationRepository
	NotificationConfigRepository
	FoodCatalog
	RecipeCatalog
	CookHistoryRepository
	MemberDirectory

	// GetStoreStats returns backend statistics for the admin endpoint.
	GetStoreStats(ctx context.Context) (map[string]interface{}, error)

	Close() error
}
