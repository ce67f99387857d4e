package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"household-inventory-api/internal/model"
	"household-inventory-api/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func unread(t *testing.T, f *fixture, member string, ntype model.NotificationType) []model.Notification {
	t.Helper()
	isRead := false
	list, _, err := f.store.ListNotifications(f.ctx, model.NotificationFilter{MemberID: member, Type: ntype, IsRead: &isRead})
	require.NoError(t, err)
	return list
}

func TestConfigIsCreatedLazily(t *testing.T) {
	f := newFixture(t)

	stored, err := f.store.GetConfig(f.ctx, "m1")
	require.NoError(t, err)
	assert.Nil(t, stored)

	cfg, err := f.notifier.Config(f.ctx, "m1")
	require.NoError(t, err)
	assert.True(t, cfg.ExpiryEnabled)
	assert.Equal(t, 3, cfg.ExpiryAdvanceDays)
	assert.False(t, cfg.UsageReminderEnabled)
	assert.Equal(t, model.FrequencyWeekly, cfg.WasteReportFrequency)

	members, err := f.store.ListConfiguredMembers(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, members)
}

func TestUpdateConfig(t *testing.T) {
	f := newFixture(t)

	cfg, err := f.notifier.UpdateConfig(f.ctx, "m1", NotificationConfigInput{
		ExpiryAdvanceDays:    ptr(5),
		LowStockEnabled:      ptr(false),
		WasteReportFrequency: ptr(model.FrequencyMonthly),
	})
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.ExpiryAdvanceDays)
	assert.False(t, cfg.LowStockEnabled)
	assert.True(t, cfg.ExpiryEnabled)
	assert.Equal(t, model.FrequencyMonthly, cfg.WasteReportFrequency)

	_, err = f.notifier.UpdateConfig(f.ctx, "m1", NotificationConfigInput{ExpiryAdvanceDays: ptr(0)})
	assert.True(t, errors.Is(err, model.ErrValidation))
	_, err = f.notifier.UpdateConfig(f.ctx, "m1", NotificationConfigInput{UsageReminderFrequency: ptr(model.Frequency("hourly"))})
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestGenerateExpiryIsDeduplicated(t *testing.T) {
	f := newFixture(t)
	f.create(t, "m1", CreateItemInput{FoodID: "food-milk", Quantity: 500, Unit: "ml", ExpiryDate: inDays(2)})
	f.create(t, "m1", CreateItemInput{FoodID: "food-eggs", Quantity: 6, ExpiryDate: inDays(-1)})

	first, err := f.notifier.GenerateExpiry(f.ctx, "m1")
	require.NoError(t, err)
	require.Len(t, first, 2)
	for _, n := range first {
		assert.Equal(t, model.PriorityHigh, n.Priority)
	}

	second, err := f.notifier.GenerateExpiry(f.ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, second)

	assert.Len(t, unread(t, f, "m1", model.NotificationExpiryWarning), 1)
	assert.Len(t, unread(t, f, "m1", model.NotificationExpiredAlert), 1)
}

func TestGenerateExpiryRealertsAfterRead(t *testing.T) {
	f := newFixture(t)
	f.create(t, "m1", CreateItemInput{FoodID: "food-milk", Quantity: 500, Unit: "ml", ExpiryDate: inDays(2)})

	first, err := f.notifier.GenerateExpiry(f.ctx, "m1")
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.NoError(t, f.notifier.MarkRead(f.ctx, "m1", first[0].ID))

	again, err := f.notifier.GenerateExpiry(f.ctx, "m1")
	require.NoError(t, err)
	assert.Len(t, again, 1)
}

func TestGenerateExpiryNewConditionIsNotDeduplicated(t *testing.T) {
	f := newFixture(t)
	f.create(t, "m1", CreateItemInput{FoodID: "food-milk", Quantity: 500, Unit: "ml", ExpiryDate: inDays(2)})

	_, err := f.notifier.GenerateExpiry(f.ctx, "m1")
	require.NoError(t, err)

	f.create(t, "m1", CreateItemInput{FoodID: "food-spinach", Quantity: 200, Unit: "g", ExpiryDate: inDays(1)})
	created, err := f.notifier.GenerateExpiry(f.ctx, "m1")
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Contains(t, created[0].Message, "Spinach")
	assert.Contains(t, created[0].Message, "Milk")
}

func TestExpiryPayloadCarriesItemsAndValue(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 7; i++ {
		f.create(t, "m1", CreateItemInput{FoodID: "food-eggs", Quantity: 2, ExpiryDate: inDays(1), PurchasePrice: price("1.00")})
	}

	created, err := f.notifier.GenerateExpiry(f.ctx, "m1")
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Contains(t, created[0].Message, "and 2 more")

	var payload struct {
		Items      []json.RawMessage `json:"items"`
		Count      int               `json:"count"`
		TotalValue string            `json:"total_value"`
	}
	require.NoError(t, json.Unmarshal(created[0].Payload, &payload))
	assert.Len(t, payload.Items, 7)
	assert.Equal(t, 7, payload.Count)
	assert.Equal(t, "7", payload.TotalValue)
}

func TestGenerateExpiryRespectsConfig(t *testing.T) {
	f := newFixture(t)
	f.create(t, "m1", CreateItemInput{FoodID: "food-milk", Quantity: 500, Unit: "ml", ExpiryDate: inDays(5)})

	created, err := f.notifier.GenerateExpiry(f.ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, created, "five days out is beyond the default advance window")

	_, err = f.notifier.UpdateConfig(f.ctx, "m1", NotificationConfigInput{ExpiryAdvanceDays: ptr(7)})
	require.NoError(t, err)
	created, err = f.notifier.GenerateExpiry(f.ctx, "m1")
	require.NoError(t, err)
	assert.Len(t, created, 1)

	_, err = f.notifier.UpdateConfig(f.ctx, "m2", NotificationConfigInput{ExpiryEnabled: ptr(false)})
	require.NoError(t, err)
	f.create(t, "m2", CreateItemInput{FoodID: "food-milk", Quantity: 500, Unit: "ml", ExpiryDate: inDays(1)})
	created, err = f.notifier.GenerateExpiry(f.ctx, "m2")
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestGenerateLowStock(t *testing.T) {
	f := newFixture(t)

	created, err := f.notifier.GenerateLowStock(f.ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, created)

	f.create(t, "m1", CreateItemInput{FoodID: "food-eggs", Quantity: 2, MinStockThreshold: ptr(4.0)})
	created, err = f.notifier.GenerateLowStock(f.ctx, "m1")
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, model.PriorityMedium, created[0].Priority)
	assert.Equal(t, "Eggs is running low.", created[0].Message)
}

func TestGenerateWasteReportTopThreeAndCadence(t *testing.T) {
	f := newFixture(t)
	for food, qty := range map[string]float64{"food-milk": 400, "food-flour": 300, "food-spinach": 200, "food-butter": 100} {
		item := f.create(t, "m1", CreateItemInput{FoodID: food, Quantity: 1000, Unit: "g", PurchasePrice: price("10.00")})
		_, err := f.tracker.Waste(f.ctx, "m1", item.ID, WasteInput{Amount: qty, Reason: model.WasteSpoiled})
		require.NoError(t, err)
	}

	created, err := f.notifier.GenerateWasteReport(f.ctx, "m1")
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Contains(t, created[0].Message, "estimated cost 10.00")
	assert.Contains(t, created[0].Message, "Most wasted: Milk, Flour, Spinach.")

	f.clock.Advance(24 * time.Hour)
	created, err = f.notifier.GenerateWasteReport(f.ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, created, "weekly cadence blocks a second report the next day")

	f.clock.Advance(7 * 24 * time.Hour)
	created, err = f.notifier.GenerateWasteReport(f.ctx, "m1")
	require.NoError(t, err)
	assert.Len(t, created, 1)
}

func TestGeneratePurchaseSuggestions(t *testing.T) {
	f := newFixture(t)
	f.create(t, "m1", CreateItemInput{FoodID: "food-eggs", Quantity: 1, MinStockThreshold: ptr(6.0)})

	created, err := f.notifier.GeneratePurchaseSuggestions(f.ctx, "m1")
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, model.PriorityLow, created[0].Priority)
	assert.Contains(t, created[0].Message, "Eggs")
}

func TestUsageReminderIsOptIn(t *testing.T) {
	f := newFixture(t)
	idle := f.create(t, "m1", CreateItemInput{FoodID: "food-flour", Quantity: 1000, Unit: "g"})
	busy := f.create(t, "m1", CreateItemInput{FoodID: "food-eggs", Quantity: 12})
	f.clock.Advance(8 * 24 * time.Hour)
	_, err := f.tracker.Use(f.ctx, "m1", busy.ID, UseInput{Amount: 2})
	require.NoError(t, err)

	created, err := f.notifier.GenerateUsageReminder(f.ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, created)

	_, err = f.notifier.UpdateConfig(f.ctx, "m1", NotificationConfigInput{UsageReminderEnabled: ptr(true)})
	require.NoError(t, err)
	created, err = f.notifier.GenerateUsageReminder(f.ctx, "m1")
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, DedupKey(model.NotificationUsageReminder, []string{idle.ID}), created[0].DedupKey)
}

func TestDedupKeyIgnoresOrder(t *testing.T) {
	a := DedupKey(model.NotificationLowStock, []string{"x", "y"})
	b := DedupKey(model.NotificationLowStock, []string{"y", "x"})
	c := DedupKey(model.NotificationExpiryWarning, []string{"x", "y"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestGenerateAllPersistsOneBatch(t *testing.T) {
	f := newFixture(t)
	f.create(t, "m1", CreateItemInput{FoodID: "food-milk", Quantity: 500, Unit: "ml", ExpiryDate: inDays(1)})
	f.create(t, "m1", CreateItemInput{FoodID: "food-eggs", Quantity: 1, MinStockThreshold: ptr(4.0)})

	created, err := f.notifier.GenerateAll(f.ctx, "m1")
	require.NoError(t, err)

	types := map[model.NotificationType]int{}
	for _, n := range created {
		types[n.Type]++
	}
	assert.Equal(t, 1, types[model.NotificationExpiryWarning])
	assert.Equal(t, 1, types[model.NotificationLowStock])
	assert.Equal(t, 1, types[model.NotificationPurchaseSuggestion])
	assert.Zero(t, types[model.NotificationWasteReport], "no waste in the window")

	again, err := f.notifier.GenerateAll(f.ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, again)
}

// flakyConfigs fails every store call that needs member m2's configuration.
type flakyConfigs struct {
	repository.Store
}

func (s flakyConfigs) GetConfig(ctx context.Context, memberID string) (*model.NotificationConfig, error) {
	if memberID == "m2" {
		return nil, errors.New("connection reset")
	}
	return s.Store.GetConfig(ctx, memberID)
}

func TestRunBatchIsolatesMembers(t *testing.T) {
	f := newFixture(t)
	for _, m := range []string{"m1", "m2"} {
		_, err := f.notifier.Config(f.ctx, m)
		require.NoError(t, err)
		f.create(t, m, CreateItemInput{FoodID: "food-milk", Quantity: 500, Unit: "ml", ExpiryDate: inDays(1)})
	}

	svc := NewNotificationService(flakyConfigs{f.store}, nil, f.clock, f.metrics, zap.NewNop(), NotificationConfig{})
	report, err := svc.RunBatch(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, "m2", report.Errors[0].ID)
	assert.Equal(t, 1, report.Created)

	assert.Len(t, unread(t, f, "m1", model.NotificationExpiryWarning), 1)
	assert.Empty(t, unread(t, f, "m2", model.NotificationExpiryWarning))
}

func TestNotificationLifecycle(t *testing.T) {
	f := newFixture(t)
	f.create(t, "m1", CreateItemInput{FoodID: "food-milk", Quantity: 500, Unit: "ml", ExpiryDate: inDays(1)})
	f.create(t, "m1", CreateItemInput{FoodID: "food-eggs", Quantity: 6, ExpiryDate: inDays(-3)})

	created, err := f.notifier.GenerateExpiry(f.ctx, "m1")
	require.NoError(t, err)
	require.Len(t, created, 2)

	count, err := f.notifier.CountUnread(f.ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 2, count.Total)
	assert.Equal(t, 2, count.ByPriority[model.PriorityHigh])

	assert.True(t, errors.Is(f.notifier.MarkRead(f.ctx, "m2", created[0].ID), model.ErrNotFound))
	require.NoError(t, f.notifier.MarkRead(f.ctx, "m1", created[0].ID))

	n, err := f.notifier.MarkAllRead(f.ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	page, err := f.notifier.List(f.ctx, "m1", model.NotificationFilter{PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Len(t, page.Notifications, 1)

	_, err = f.notifier.List(f.ctx, "m1", model.NotificationFilter{Type: "SPAM"})
	assert.True(t, errors.Is(err, model.ErrValidation))

	f.clock.Advance(31 * 24 * time.Hour)
	deleted, err := f.notifier.PurgeRead(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	require.NoError(t, f.store.CreateNotifications(f.ctx, []model.Notification{{
		ID: "old-unread", MemberID: "m1", Type: model.NotificationLowStock, Priority: model.PriorityMedium,
		CreatedAt: baseTime.Add(-90 * 24 * time.Hour),
	}}))
	deleted, err = f.notifier.PurgeRead(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted, "unread notifications are retained regardless of age")

	require.NoError(t, f.notifier.Delete(f.ctx, "m1", "old-unread"))
	assert.True(t, errors.Is(f.notifier.Delete(f.ctx, "m1", "old-unread"), model.ErrNotFound))
}
