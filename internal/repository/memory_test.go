package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"household-inventory-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newItem(id, member string, qty float64) *model.InventoryItem {
	return &model.InventoryItem{
		ID:               id,
		MemberID:         member,
		FoodID:           "food-milk",
		Quantity:         qty,
		OriginalQuantity: qty,
		Unit:             "ml",
		Status:           model.StatusFresh,
		StorageLocation:  model.LocationRefrigerator,
		PurchaseSource:   model.SourceManual,
		CreatedAt:        t0,
		UpdatedAt:        t0,
	}
}

func usage(id, itemID string, qty float64) model.UsageEvent {
	return model.UsageEvent{ID: id, ItemID: itemID, MemberID: "m1", FoodID: "food-milk", Quantity: qty, Reason: model.UsageCooking, UsedAt: t0}
}

func TestMemoryStoreRecordUsageIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateItem(ctx, newItem("a", "m1", 10)))
	require.NoError(t, s.CreateItem(ctx, newItem("b", "m1", 1)))

	_, err := s.RecordUsage(ctx, []model.UsageEvent{usage("u1", "a", 4), usage("u2", "b", 2)}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInsufficientStock))

	var stockErr *model.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, "b", stockErr.ItemID)
	assert.Equal(t, 1.0, stockErr.Shortfall())

	a, err := s.GetItem(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 10.0, a.Quantity, "first event must not apply when the batch fails")
	assert.Empty(t, a.Usages)
}

func TestMemoryStoreRecordUsageSameItemTwice(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateItem(ctx, newItem("a", "m1", 5)))

	_, err := s.RecordUsage(ctx, []model.UsageEvent{usage("u1", "a", 3), usage("u2", "a", 3)}, nil)
	assert.True(t, errors.Is(err, model.ErrInsufficientStock))

	updated, err := s.RecordUsage(ctx, []model.UsageEvent{usage("u1", "a", 3), usage("u2", "a", 2)}, func(it *model.InventoryItem) {
		if it.Quantity == 0 {
			it.Status = model.StatusOutOfStock
		}
	})
	require.NoError(t, err)
	require.Len(t, updated, 2)
	assert.Equal(t, 0.0, updated[1].Quantity)
	assert.Equal(t, model.StatusOutOfStock, updated[1].Status)
}

func TestMemoryStoreConcurrentUsageNeverOversells(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateItem(ctx, newItem("a", "m1", 10)))

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.RecordUsage(ctx, []model.UsageEvent{usage(fmt.Sprintf("u%d", i), "a", 1)}, nil)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	item, err := s.GetItem(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 0.0, item.Quantity)
	assert.Len(t, item.Usages, 10)
}

func TestMemoryStoreSoftDeleteHidesItem(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateItem(ctx, newItem("a", "m1", 1)))
	require.NoError(t, s.SoftDeleteItem(ctx, "a", t0))

	_, err := s.GetItem(ctx, "a")
	assert.True(t, errors.Is(err, model.ErrNotFound))

	items, total, err := s.ListItems(ctx, model.ItemFilter{MemberID: "m1"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)

	assert.True(t, errors.Is(s.SoftDeleteItem(ctx, "a", t0), model.ErrNotFound))
}

func TestMemoryStoreListItemsFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.AddFood(model.Food{ID: "food-milk", Name: "Milk", Category: "dairy"})

	for i := 0; i < 5; i++ {
		it := newItem(fmt.Sprintf("i%d", i), "m1", float64(i+1))
		it.CreatedAt = t0.Add(time.Duration(i) * time.Minute)
		if i%2 == 0 {
			it.Status = model.StatusExpiring
		}
		require.NoError(t, s.CreateItem(ctx, it))
	}
	require.NoError(t, s.CreateItem(ctx, newItem("other", "m2", 1)))

	items, total, err := s.ListItems(ctx, model.ItemFilter{MemberID: "m1", Expiring: true})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, items, 3)

	items, total, err = s.ListItems(ctx, model.ItemFilter{MemberID: "m1", Category: "DAIRY", Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, items, 2)
	assert.Equal(t, "i2", items[0].ID)
	require.NotNil(t, items[0].Food)
	assert.Equal(t, "Milk", items[0].Food.Name)
}

func TestMemoryStoreRecordWaste(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateItem(ctx, newItem("a", "m1", 2)))

	_, err := s.RecordWaste(ctx, &model.WasteEvent{ID: "w1", ItemID: "a", MemberID: "m1", Quantity: 3, WastedAt: t0}, nil)
	assert.True(t, errors.Is(err, model.ErrInsufficientStock))

	item, err := s.RecordWaste(ctx, &model.WasteEvent{ID: "w1", ItemID: "a", MemberID: "m1", Quantity: 2, WastedAt: t0}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, item.Quantity)

	wastes, err := s.ListWaste(ctx, model.WasteFilter{MemberID: "m1"})
	require.NoError(t, err)
	assert.Len(t, wastes, 1)
}

func TestMemoryStoreNotificationLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	notes := []model.Notification{
		{ID: "n1", MemberID: "m1", Type: model.NotificationExpiryWarning, Priority: model.PriorityHigh, DedupKey: "k1", CreatedAt: t0.Add(-40 * 24 * time.Hour)},
		{ID: "n2", MemberID: "m1", Type: model.NotificationLowStock, Priority: model.PriorityMedium, DedupKey: "k2", CreatedAt: t0},
		{ID: "n3", MemberID: "m2", Type: model.NotificationLowStock, Priority: model.PriorityMedium, DedupKey: "k2", CreatedAt: t0},
	}
	require.NoError(t, s.CreateNotifications(ctx, notes))

	found, err := s.FindUnreadByDedupKey(ctx, "m1", model.NotificationExpiryWarning, "k1")
	require.NoError(t, err)
	require.NotNil(t, found)

	count, err := s.CountUnread(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 2, count.Total)
	assert.Equal(t, 1, count.ByPriority[model.PriorityHigh])

	require.NoError(t, s.MarkRead(ctx, "m1", "n1", t0))
	assert.True(t, errors.Is(s.MarkRead(ctx, "m2", "n1", t0), model.ErrNotFound))

	found, err = s.FindUnreadByDedupKey(ctx, "m1", model.NotificationExpiryWarning, "k1")
	require.NoError(t, err)
	assert.Nil(t, found, "read notifications do not block re-alerting")

	latest, err := s.LatestNotification(ctx, "m1", model.NotificationLowStock)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "n2", latest.ID)

	deleted, err := s.DeleteReadOlderThan(ctx, t0.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	n, err := s.MarkAllRead(ctx, "m1", t0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	list, total, err := s.ListNotifications(ctx, model.NotificationFilter{MemberID: "m1"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.True(t, list[0].IsRead)
}

func TestMemoryStoreConfigUpsertKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	cfg, err := s.GetConfig(ctx, "m1")
	require.NoError(t, err)
	assert.Nil(t, cfg)

	c := model.DefaultNotificationConfig("m1", t0)
	require.NoError(t, s.UpsertConfig(ctx, c))

	c2 := *c
	c2.ExpiryAdvanceDays = 5
	c2.CreatedAt = t0.Add(time.Hour)
	require.NoError(t, s.UpsertConfig(ctx, &c2))

	got, err := s.GetConfig(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 5, got.ExpiryAdvanceDays)
	assert.Equal(t, t0, got.CreatedAt)

	members, err := s.ListConfiguredMembers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, members)
}

func TestMemoryStoreListItemsWithExpiryPagesByID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	exp := t0.Add(48 * time.Hour)
	for _, id := range []string{"c", "a", "b", "d"} {
		it := newItem(id, "m1", 1)
		if id != "d" {
			it.ExpiryDate = &exp
		}
		require.NoError(t, s.CreateItem(ctx, it))
	}

	page, err := s.ListItemsWithExpiry(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "a", page[0].ID)
	assert.Equal(t, "b", page[1].ID)

	page, err = s.ListItemsWithExpiry(ctx, "b", 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "c", page[0].ID)
}
