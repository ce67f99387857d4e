package service

import (
	"context"
	"math"
	"sort"
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

const day = 24 * time.Hour

// Recommendation texts produced by the expiry summary rule table.
const (
	RecommendDispose      = "Dispose of expired items and check their storage conditions."
	RecommendUseFirst     = "Use expiring items first, or batch them into a recipe."
	RecommendFridgeTemp   = "Verify the refrigerator temperature is at or below 4°C."
	RecommendInspectShelf = "Periodically inspect shelf-stable goods in the pantry."
)

var preventionTips = map[model.StorageLocation]string{
	model.LocationRefrigerator: "Keep the refrigerator at 1-4°C and move older items to the front.",
	model.LocationFreezer:      "Label frozen items with the freezing date and use them within three months.",
	model.LocationPantry:       "Store dry goods in airtight containers and rotate stock on every purchase.",
	model.LocationCounter:      "Keep counter produce away from direct sunlight and eat ripe items first.",
}

// PreventionTip returns the waste prevention hint for a storage location.
func PreventionTip(loc model.StorageLocation) string {
	if tip, ok := preventionTips[loc]; ok {
		return tip
	}
	return "Buy smaller quantities and plan meals around what is already in stock."
}

// MonitorConfig tunes ExpiryMonitor.
type MonitorConfig struct {
	// ExpiringDays is the look-ahead used by Summary. Default: the status horizon.
	ExpiringDays int
	// TrendDays is the default trend window. Default: 30.
	TrendDays int
	// SweepPageSize is the keyset page size of RefreshStatuses. Default: 200.
	SweepPageSize int
}

// SweepReport is the outcome of a bulk status refresh or disposal.
type SweepReport struct {
	model.BatchReport
	Updated  int           `json:"updated"`
	Duration time.Duration `json:"duration_ns"`
}

// ExpirySummary groups a member's expired and expiring stock.
type ExpirySummary struct {
	MemberID        string                `json:"member_id"`
	Expired         []model.InventoryItem `json:"expired"`
	Expiring        []model.InventoryItem `json:"expiring"`
	ExpiredValue    decimal.Decimal       `json:"expired_value"`
	ExpiringValue   decimal.Decimal       `json:"expiring_value"`
	Recommendations []string              `json:"recommendations"`
	GeneratedAt     time.Time             `json:"generated_at"`
}

// TrendBucket aggregates one calendar day.
type TrendBucket struct {
	Date          string          `json:"date"`
	UsageCount    int             `json:"usage_count"`
	UsageQuantity float64         `json:"usage_quantity"`
	WasteCount    int             `json:"waste_count"`
	WasteQuantity float64         `json:"waste_quantity"`
	WasteCost     decimal.Decimal `json:"waste_cost"`
	ExpiredCount  int             `json:"expired_count"`
}

// TrendReport is a rolling window of daily buckets.
type TrendReport struct {
	MemberID    string          `json:"member_id"`
	Days        int             `json:"days"`
	Since       time.Time       `json:"since"`
	Until       time.Time       `json:"until"`
	Buckets     []TrendBucket   `json:"buckets"`
	UsageEvents int             `json:"usage_events"`
	WasteEvents int             `json:"waste_events"`
	WasteCost   decimal.Decimal `json:"waste_cost"`
	ActiveItems int             `json:"active_items"`
	WasteRate   float64         `json:"waste_rate"`
}

// ExpiryMonitor refreshes statuses in bulk and reports on expiring stock.
type ExpiryMonitor struct {
	store    repository.Store
	notifier *NotificationService
	clock    clock.Clock
	metrics  *metrics.Metrics
	logger   *zap.Logger
	config   MonitorConfig
}

// NewExpiryMonitor creates a monitor. notifier may be nil when NotifyExpiry is unused.
func NewExpiryMonitor(
	store repository.Store,
	notifier *NotificationService,
	clk clock.Clock,
	m *metrics.Metrics,
	logger *zap.Logger,
	config MonitorConfig,
) *ExpiryMonitor {
	if config.ExpiringDays <= 0 {
		config.ExpiringDays = status.ExpiringHorizonDays
	}
	if config.TrendDays <= 0 {
		config.TrendDays = 30
	}
	if config.SweepPageSize <= 0 {
		config.SweepPageSize = 200
	}
	return &ExpiryMonitor{
		store:    store,
		notifier: notifier,
		clock:    clk,
		metrics:  m,
		logger:   logger,
		config:   config,
	}
}

// RefreshStatuses reclassifies every active item with an expiry date and persists
// the ones whose derived fields changed. A failing item is recorded and skipped.
func (e *ExpiryMonitor) RefreshStatuses(ctx context.Context) (*SweepReport, error) {
	start := e.clock.Now()
	defer e.metrics.ObserveBatch("status_refresh", time.Now())

	report := &SweepReport{}
	afterID := ""
	for {
		if err := ctx.Err(); err != nil {
			return e.finish(report, start), err
		}

		page, err := e.store.ListItemsWithExpiry(ctx, afterID, e.config.SweepPageSize)
		if err != nil {
			return e.finish(report, start), model.Dependency("list items with expiry", err)
		}
		if len(page) == 0 {
			break
		}

		for i := range page {
			if ctx.Err() != nil {
				break
			}
			item := &page[i]
			if !status.Apply(item, start) {
				report.Success()
				e.metrics.SweepItem("status_refresh", "unchanged")
				continue
			}
			item.UpdatedAt = start
			if err := e.store.UpdateItem(ctx, item); err != nil {
				e.logger.Warn("status refresh failed",
					zap.String("item_id", item.ID),
					zap.Error(err),
				)
				report.Fail(item.ID, err)
				e.metrics.SweepItem("status_refresh", "failed")
				continue
			}
			report.Success()
			report.Updated++
			e.metrics.SweepItem("status_refresh", "updated")
		}
		afterID = page[len(page)-1].ID
		if len(page) < e.config.SweepPageSize {
			break
		}
	}

	e.logger.Info("status refresh finished",
		zap.Int("processed", report.Processed),
		zap.Int("updated", report.Updated),
		zap.Int("failed", report.Failed),
	)
	return e.finish(report, start), ctx.Err()
}

func (e *ExpiryMonitor) finish(report *SweepReport, start time.Time) *SweepReport {
	report.Duration = e.clock.Now().Sub(start)
	return report
}

// Summary builds the member's expiry summary with recommendations.
func (e *ExpiryMonitor) Summary(ctx context.Context, memberID string) (*ExpirySummary, error) {
	items, err := activeItems(ctx, e.store, memberID)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	expired, expiring := partitionExpiry(items, e.config.ExpiringDays, now)

	return &ExpirySummary{
		MemberID:        memberID,
		Expired:         expired,
		Expiring:        expiring,
		ExpiredValue:    remainingValue(expired),
		ExpiringValue:   remainingValue(expiring),
		Recommendations: Recommendations(expired, expiring),
		GeneratedAt:     now,
	}, nil
}

// Recommendations applies the additive rule table to the expired and expiring sets.
func Recommendations(expired, expiring []model.InventoryItem) []string {
	recs := []string{}
	if len(expired) > 0 {
		recs = append(recs, RecommendDispose)
	}
	if len(expiring) > 0 {
		recs = append(recs, RecommendUseFirst)
	}

	var fridge, pantry bool
	for _, set := range [][]model.InventoryItem{expired, expiring} {
		for _, it := range set {
			switch it.StorageLocation {
			case model.LocationRefrigerator:
				fridge = true
			case model.LocationPantry:
				pantry = true
			}
		}
	}
	if fridge {
		recs = append(recs, RecommendFridgeTemp)
	}
	if pantry {
		recs = append(recs, RecommendInspectShelf)
	}
	return recs
}

// Trends buckets usage and waste by day over the trailing window ending today.
func (e *ExpiryMonitor) Trends(ctx context.Context, memberID string, days int) (*TrendReport, error) {
	if days <= 0 {
		days = e.config.TrendDays
	}
	if days > 365 {
		return nil, model.Invalid("days", "must be at most 365")
	}

	now := e.clock.Now()
	today := now.Truncate(day)
	since := today.Add(-time.Duration(days-1) * day)
	until := today.Add(day)

	usages, err := e.store.ListUsage(ctx, model.UsageFilter{MemberID: memberID, Since: &since, Until: &until})
	if err != nil {
		return nil, model.Dependency("list usage", err)
	}
	wastes, err := e.store.ListWaste(ctx, model.WasteFilter{MemberID: memberID, Since: &since, Until: &until})
	if err != nil {
		return nil, model.Dependency("list waste", err)
	}
	items, err := activeItems(ctx, e.store, memberID)
	if err != nil {
		return nil, err
	}

	report := &TrendReport{
		MemberID:    memberID,
		Days:        days,
		Since:       since,
		Until:       until,
		Buckets:     make([]TrendBucket, days),
		UsageEvents: len(usages),
		WasteEvents: len(wastes),
		WasteCost:   decimal.Zero,
		ActiveItems: len(items),
	}
	for i := range report.Buckets {
		report.Buckets[i] = TrendBucket{
			Date:      since.Add(time.Duration(i) * day).Format("2006-01-02"),
			WasteCost: decimal.Zero,
		}
	}

	bucket := func(t time.Time) *TrendBucket {
		if t.Before(since) || !t.Before(until) {
			return nil
		}
		return &report.Buckets[int(t.Sub(since)/day)]
	}

	for _, u := range usages {
		if b := bucket(u.UsedAt); b != nil {
			b.UsageCount++
			b.UsageQuantity += u.Quantity
		}
	}
	for _, w := range wastes {
		if b := bucket(w.WastedAt); b != nil {
			b.WasteCount++
			b.WasteQuantity += w.Quantity
			b.WasteCost = b.WasteCost.Add(w.EstimatedCost)
		}
		report.WasteCost = report.WasteCost.Add(w.EstimatedCost)
	}
	for _, it := range items {
		if it.ExpiryDate == nil {
			continue
		}
		if b := bucket(*it.ExpiryDate); b != nil {
			b.ExpiredCount++
		}
	}

	report.WasteRate = WasteRate(len(wastes), len(items))
	return report, nil
}

// WasteRate is waste events per current active item, as a percentage rounded to two places.
func WasteRate(wasteEvents, activeItems int) float64 {
	if activeItems == 0 {
		return 0
	}
	return math.Round(float64(wasteEvents)/float64(activeItems)*100*100) / 100
}

// DisposeExpired zeroes the given expired items, or all of the member's expired
// items when ids is empty, writing one waste event per item.
func (e *ExpiryMonitor) DisposeExpired(ctx context.Context, memberID string, ids []string) (*SweepReport, error) {
	start := e.clock.Now()
	defer e.metrics.ObserveBatch("dispose_expired", time.Now())

	var targets []model.InventoryItem
	report := &SweepReport{}

	if len(ids) == 0 {
		items, err := activeItems(ctx, e.store, memberID)
		if err != nil {
			return nil, err
		}
		expired, _ := partitionExpiry(items, 0, start)
		targets = expired
	} else {
		for _, id := range ids {
			item, err := e.store.GetItem(ctx, id)
			switch {
			case err != nil:
				report.Fail(id, model.Dependency("get item", err))
				continue
			case item.MemberID != memberID:
				report.Fail(id, &model.PermissionError{MemberID: memberID, Resource: "inventory item", ID: id})
				continue
			case !status.IsExpired(item, start):
				report.Fail(id, model.Invalid("item_id", "item "+id+" has not expired"))
				continue
			case item.Quantity <= 0:
				report.Success()
				continue
			}
			targets = append(targets, *item)
		}
	}

	for _, item := range targets {
		if ctx.Err() != nil {
			break
		}
		ev := &model.WasteEvent{
			ID:            uid.New(),
			ItemID:        item.ID,
			MemberID:      memberID,
			FoodID:        item.FoodID,
			Quantity:      item.Quantity,
			Reason:        model.WasteExpired,
			EstimatedCost: item.ValueOf(item.Quantity),
			PreventionTip: PreventionTip(item.StorageLocation),
			WastedAt:      start,
		}
		if _, err := e.store.RecordWaste(ctx, ev, status.Reclassifier(start)); err != nil {
			e.logger.Warn("dispose expired item failed", zap.String("item_id", item.ID), zap.Error(err))
			report.Fail(item.ID, err)
			e.metrics.SweepItem("dispose_expired", "failed")
			continue
		}
		report.Success()
		report.Updated++
		e.metrics.SweepItem("dispose_expired", "disposed")
		e.metrics.WasteRecorded(string(model.WasteExpired))
	}

	return e.finish(report, start), ctx.Err()
}

// NotifyExpiry generates the member's expiry notifications.
func (e *ExpiryMonitor) NotifyExpiry(ctx context.Context, memberID string) ([]model.Notification, error) {
	if e.notifier == nil {
		return nil, model.Dependency("notify expiry", errNoNotifier)
	}
	return e.notifier.GenerateExpiry(ctx, memberID)
}

// activeItems loads every active item of a member in one unpaged query.
func activeItems(ctx context.Context, store repository.InventoryRepository, memberID string) ([]model.InventoryItem, error) {
	items, _, err := store.ListItems(ctx, model.ItemFilter{MemberID: memberID})
	if err != nil {
		return nil, model.Dependency("list items", err)
	}
	return items, nil
}

// partitionExpiry splits items with stock into expired and expiring within days.
// Both slices are ordered soonest expiry first.
func partitionExpiry(items []model.InventoryItem, days int, now time.Time) (expired, expiring []model.InventoryItem) {
	expired = []model.InventoryItem{}
	expiring = []model.InventoryItem{}
	for _, it := range items {
		if it.Quantity <= 0 || it.ExpiryDate == nil {
			continue
		}
		status.Apply(&it, now)
		switch {
		case status.IsExpired(&it, now):
			expired = append(expired, it)
		case status.IsExpiringWithin(&it, days, now):
			expiring = append(expiring, it)
		}
	}
	SortFEFO(expired)
	SortFEFO(expiring)
	return expired, expiring
}

func remainingValue(items []model.InventoryItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.ValueOf(it.Quantity))
	}
	return total
}

func itemIDs(items []model.InventoryItem) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	sort.Strings(ids)
	return ids
}
