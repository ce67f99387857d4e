package service

import (
	"context"
	"testing"
	"time"

	"household-inventory-api/internal/metrics"
	"household-inventory-api/internal/model"
	"household-inventory-api/internal/repository"
	"household-inventory-api/pkg/clock"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var baseTime = time.Date(2026, 5, 12, 10, 0, 0, 0, time.UTC)

// testClock is a clock the test can move.
type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

var _ clock.Clock = (*testClock)(nil)

type fixture struct {
	ctx      context.Context
	store    *repository.MemoryStore
	clock    *testClock
	metrics  *metrics.Metrics
	tracker  *InventoryTracker
	notifier *NotificationService
	monitor  *ExpiryMonitor
	recipes  *RecipeService
	shopping *ShoppingService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := repository.NewMemoryStore()
	store.AddMember("m1")
	store.AddMember("m2")
	for _, f := range []model.Food{
		{ID: "food-milk", Name: "Milk", Category: "dairy", DefaultUnit: "ml"},
		{ID: "food-eggs", Name: "Eggs", Category: "dairy", DefaultUnit: "pcs"},
		{ID: "food-flour", Name: "Flour", Category: "grains", DefaultUnit: "g"},
		{ID: "food-spinach", Name: "Spinach", Category: "vegetables", DefaultUnit: "g"},
		{ID: "food-butter", Name: "Butter", Category: "dairy", DefaultUnit: "g"},
		{ID: "food-asparagus", Name: "Asparagus", Category: "vegetables", DefaultUnit: "g"},
		{ID: "food-strawberry", Name: "Strawberries", Category: "fruit", DefaultUnit: "g"},
	} {
		store.AddFood(f)
	}

	seasonal, err := DefaultSeasonalTable()
	require.NoError(t, err)

	clk := &testClock{now: baseTime}
	m := metrics.New()
	logger := zap.NewNop()

	tracker := NewInventoryTracker(store, nil, clk, m, logger, TrackerConfig{})
	shopping := NewShoppingService(store, nil, tracker, seasonal, clk, logger)
	notifier := NewNotificationService(store, shopping, clk, m, logger, NotificationConfig{})

	return &fixture{
		ctx:      context.Background(),
		store:    store,
		clock:    clk,
		metrics:  m,
		tracker:  tracker,
		notifier: notifier,
		monitor:  NewExpiryMonitor(store, notifier, clk, m, logger, MonitorConfig{}),
		recipes:  NewRecipeService(store, clk, m, logger),
		shopping: shopping,
	}
}

// inDays returns a pointer to baseTime shifted by n days.
func inDays(n int) *time.Time {
	t := baseTime.Add(time.Duration(n) * 24 * time.Hour)
	return &t
}

func ptr[T any](v T) *T { return &v }

func (f *fixture) create(t *testing.T, member string, in CreateItemInput) *model.InventoryItem {
	t.Helper()
	if in.Unit == "" {
		in.Unit = "pcs"
	}
	item, err := f.tracker.Create(f.ctx, member, in)
	require.NoError(t, err)
	return item
}

func price(v string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(v))
}
