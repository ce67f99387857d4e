package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
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

var errNoNotifier = errors.New("notification service not configured")

// Suggester produces purchase suggestions for a member.
type Suggester interface {
	Suggestions(ctx context.Context, memberID string) ([]model.PurchaseSuggestion, error)
}

// NotificationConfigInput is a partial patch of a member's notification settings.
type NotificationConfigInput struct {
	ExpiryEnabled               *bool            `json:"expiry_enabled"`
	ExpiryAdvanceDays           *int             `json:"expiry_advance_days"`
	LowStockEnabled             *bool            `json:"low_stock_enabled"`
	WasteReportEnabled          *bool            `json:"waste_report_enabled"`
	WasteReportFrequency        *model.Frequency `json:"waste_report_frequency"`
	UsageReminderEnabled        *bool            `json:"usage_reminder_enabled"`
	UsageReminderFrequency      *model.Frequency `json:"usage_reminder_frequency"`
	PurchaseSuggestionEnabled   *bool            `json:"purchase_suggestion_enabled"`
	PurchaseSuggestionFrequency *model.Frequency `json:"purchase_suggestion_frequency"`
}

// NotificationConfig tunes NotificationService.
type NotificationConfig struct {
	// RetentionDays is how long read notifications are kept. Default: 30.
	RetentionDays int
	// WasteWindowDays is the trailing window of the waste report. Default: 30.
	WasteWindowDays int
}

// NotificationPage is one page of notifications.
type NotificationPage struct {
	Notifications []model.Notification `json:"notifications"`
	Total         int                  `json:"total"`
	Page          int                  `json:"page"`
	PageSize      int                  `json:"page_size"`
}

// NotificationBatchReport is the outcome of a multi-member generation run.
type NotificationBatchReport struct {
	model.BatchReport
	Created int `json:"created"`
}

// NotificationService generates, deduplicates and manages member notifications.
type NotificationService struct {
	store     repository.Store
	suggester Suggester
	clock     clock.Clock
	metrics   *metrics.Metrics
	logger    *zap.Logger
	config    NotificationConfig
}

// NewNotificationService creates the service. suggester may be nil, which
// disables the purchase-suggestion family.
func NewNotificationService(
	store repository.Store,
	suggester Suggester,
	clk clock.Clock,
	m *metrics.Metrics,
	logger *zap.Logger,
	config NotificationConfig,
) *NotificationService {
	if config.RetentionDays <= 0 {
		config.RetentionDays = 30
	}
	if config.WasteWindowDays <= 0 {
		config.WasteWindowDays = 30
	}
	return &NotificationService{
		store:     store,
		suggester: suggester,
		clock:     clk,
		metrics:   m,
		logger:    logger,
		config:    config,
	}
}

// Config returns the member's settings, creating the defaults on first access.
func (s *NotificationService) Config(ctx context.Context, memberID string) (*model.NotificationConfig, error) {
	cfg, err := s.store.GetConfig(ctx, memberID)
	if err != nil {
		return nil, model.Dependency("get notification config", err)
	}
	if cfg != nil {
		return cfg, nil
	}

	cfg = model.DefaultNotificationConfig(memberID, s.clock.Now())
	if err := s.store.UpsertConfig(ctx, cfg); err != nil {
		return nil, model.Dependency("create notification config", err)
	}
	return cfg, nil
}

// UpdateConfig applies a partial patch to the member's settings.
func (s *NotificationService) UpdateConfig(ctx context.Context, memberID string, in NotificationConfigInput) (*model.NotificationConfig, error) {
	if in.ExpiryAdvanceDays != nil && (*in.ExpiryAdvanceDays < 1 || *in.ExpiryAdvanceDays > 30) {
		return nil, model.Invalid("expiry_advance_days", "must be between 1 and 30")
	}
	for field, f := range map[string]*model.Frequency{
		"waste_report_frequency":        in.WasteReportFrequency,
		"usage_reminder_frequency":      in.UsageReminderFrequency,
		"purchase_suggestion_frequency": in.PurchaseSuggestionFrequency,
	} {
		if f != nil && !f.Valid() {
			return nil, model.Invalid(field, "unknown frequency "+string(*f))
		}
	}

	cfg, err := s.Config(ctx, memberID)
	if err != nil {
		return nil, err
	}

	setBool(&cfg.ExpiryEnabled, in.ExpiryEnabled)
	setBool(&cfg.LowStockEnabled, in.LowStockEnabled)
	setBool(&cfg.WasteReportEnabled, in.WasteReportEnabled)
	setBool(&cfg.UsageReminderEnabled, in.UsageReminderEnabled)
	setBool(&cfg.PurchaseSuggestionEnabled, in.PurchaseSuggestionEnabled)
	if in.ExpiryAdvanceDays != nil {
		cfg.ExpiryAdvanceDays = *in.ExpiryAdvanceDays
	}
	if in.WasteReportFrequency != nil {
		cfg.WasteReportFrequency = *in.WasteReportFrequency
	}
	if in.UsageReminderFrequency != nil {
		cfg.UsageReminderFrequency = *in.UsageReminderFrequency
	}
	if in.PurchaseSuggestionFrequency != nil {
		cfg.PurchaseSuggestionFrequency = *in.PurchaseSuggestionFrequency
	}
	cfg.UpdatedAt = s.clock.Now()

	if err := s.store.UpsertConfig(ctx, cfg); err != nil {
		return nil, model.Dependency("update notification config", err)
	}
	return cfg, nil
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

// GenerateExpiry creates the expiring and expired notifications for a member.
func (s *NotificationService) GenerateExpiry(ctx context.Context, memberID string) ([]model.Notification, error) {
	return s.generate(ctx, memberID, s.expiryCandidates)
}

// GenerateLowStock creates the low-stock notification for a member.
func (s *NotificationService) GenerateLowStock(ctx context.Context, memberID string) ([]model.Notification, error) {
	return s.generate(ctx, memberID, s.lowStockCandidates)
}

// GenerateWasteReport creates the trailing-window waste report for a member.
func (s *NotificationService) GenerateWasteReport(ctx context.Context, memberID string) ([]model.Notification, error) {
	return s.generate(ctx, memberID, s.wasteReportCandidates)
}

// GeneratePurchaseSuggestions creates the purchase-suggestion notification for a member.
func (s *NotificationService) GeneratePurchaseSuggestions(ctx context.Context, memberID string) ([]model.Notification, error) {
	return s.generate(ctx, memberID, s.purchaseCandidates)
}

// GenerateUsageReminder reminds a member of stocked items nobody has touched lately.
func (s *NotificationService) GenerateUsageReminder(ctx context.Context, memberID string) ([]model.Notification, error) {
	return s.generate(ctx, memberID, s.usageReminderCandidates)
}

// GenerateAll evaluates every family for a member and persists the survivors in one batch.
func (s *NotificationService) GenerateAll(ctx context.Context, memberID string) ([]model.Notification, error) {
	return s.generate(ctx, memberID,
		s.expiryCandidates,
		s.lowStockCandidates,
		s.wasteReportCandidates,
		s.purchaseCandidates,
		s.usageReminderCandidates,
	)
}

type candidateFunc func(ctx context.Context, cfg *model.NotificationConfig, now time.Time) ([]model.Notification, error)

func (s *NotificationService) generate(ctx context.Context, memberID string, families ...candidateFunc) ([]model.Notification, error) {
	cfg, err := s.Config(ctx, memberID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var created []model.Notification
	for _, family := range families {
		candidates, err := family(ctx, cfg, now)
		if err != nil {
			return nil, err
		}
		for _, n := range candidates {
			keep, err := s.isNew(ctx, n)
			if err != nil {
				return nil, err
			}
			if keep {
				created = append(created, n)
			}
		}
	}

	if len(created) == 0 {
		return []model.Notification{}, nil
	}
	if err := s.store.CreateNotifications(ctx, created); err != nil {
		return nil, model.Dependency("create notifications", err)
	}
	for _, n := range created {
		s.metrics.NotificationCreated(string(n.Type))
	}
	return created, nil
}

// isNew drops a candidate when an unread notification for the same condition exists.
func (s *NotificationService) isNew(ctx context.Context, n model.Notification) (bool, error) {
	existing, err := s.store.FindUnreadByDedupKey(ctx, n.MemberID, n.Type, n.DedupKey)
	if err != nil {
		return false, model.Dependency("find notification", err)
	}
	if existing != nil {
		s.metrics.NotificationDeduplicated(string(n.Type))
		return false, nil
	}
	return true, nil
}

// due reports whether a cadence-gated family may fire again.
func (s *NotificationService) due(ctx context.Context, memberID string, ntype model.NotificationType, freq model.Frequency, now time.Time) (bool, error) {
	window := freq.Window()
	if window == 0 {
		return true, nil
	}
	latest, err := s.store.LatestNotification(ctx, memberID, ntype)
	if err != nil {
		return false, model.Dependency("latest notification", err)
	}
	return latest == nil || now.Sub(latest.CreatedAt) >= window, nil
}

// DedupKey fingerprints a condition as the notification type plus its sorted identifiers.
func DedupKey(ntype model.NotificationType, ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(string(ntype) + "|" + strings.Join(sorted, ",")))
	return hex.EncodeToString(sum[:])
}

type itemRef struct {
	ItemID       string          `json:"item_id"`
	FoodID       string          `json:"food_id"`
	Name         string          `json:"name"`
	Quantity     float64         `json:"quantity"`
	Unit         string          `json:"unit"`
	ExpiryDate   *time.Time      `json:"expiry_date,omitempty"`
	DaysToExpiry *int            `json:"days_to_expiry,omitempty"`
	Value        decimal.Decimal `json:"value"`
}

type itemsPayload struct {
	Items      []itemRef       `json:"items"`
	Count      int             `json:"count"`
	TotalValue decimal.Decimal `json:"total_value"`
}

func refsOf(items []model.InventoryItem) itemsPayload {
	p := itemsPayload{Items: make([]itemRef, len(items)), Count: len(items), TotalValue: decimal.Zero}
	for i, it := range items {
		v := it.ValueOf(it.Quantity)
		p.Items[i] = itemRef{
			ItemID:       it.ID,
			FoodID:       it.FoodID,
			Name:         it.FoodName(),
			Quantity:     it.Quantity,
			Unit:         it.Unit,
			ExpiryDate:   it.ExpiryDate,
			DaysToExpiry: it.DaysToExpiry,
			Value:        v,
		}
		p.TotalValue = p.TotalValue.Add(v)
	}
	return p
}

func (s *NotificationService) newNotification(
	memberID string,
	ntype model.NotificationType,
	priority model.Priority,
	title, message string,
	payload interface{},
	keyIDs []string,
	now time.Time,
) (model.Notification, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return model.Notification{}, fmt.Errorf("encode %s payload: %w", ntype, err)
	}
	return model.Notification{
		ID:        uid.New(),
		MemberID:  memberID,
		Type:      ntype,
		Title:     title,
		Message:   message,
		Priority:  priority,
		Payload:   model.RawJSON(raw),
		DedupKey:  DedupKey(ntype, keyIDs),
		CreatedAt: now,
	}, nil
}

func (s *NotificationService) expiryCandidates(ctx context.Context, cfg *model.NotificationConfig, now time.Time) ([]model.Notification, error) {
	if !cfg.ExpiryEnabled {
		return nil, nil
	}
	items, err := activeItems(ctx, s.store, cfg.MemberID)
	if err != nil {
		return nil, err
	}
	expired, expiring := partitionExpiry(items, cfg.ExpiryAdvanceDays, now)

	var out []model.Notification
	if len(expiring) > 0 {
		n, err := s.newNotification(cfg.MemberID, model.NotificationExpiryWarning, model.PriorityHigh,
			"Food expiring soon",
			fmt.Sprintf("%s will expire within %d days.", nameList(expiring, 5), cfg.ExpiryAdvanceDays),
			refsOf(expiring), itemIDs(expiring), now)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if len(expired) > 0 {
		n, err := s.newNotification(cfg.MemberID, model.NotificationExpiredAlert, model.PriorityHigh,
			"Food has expired",
			fmt.Sprintf("%s %s expired and should be disposed of.", nameList(expired, 5), pluralVerb(len(expired))),
			refsOf(expired), itemIDs(expired), now)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *NotificationService) lowStockCandidates(ctx context.Context, cfg *model.NotificationConfig, now time.Time) ([]model.Notification, error) {
	if !cfg.LowStockEnabled {
		return nil, nil
	}
	items, err := s.store.ListLowStock(ctx, cfg.MemberID)
	if err != nil {
		return nil, model.Dependency("list low stock", err)
	}

	low := items[:0:0]
	for _, it := range items {
		if status.IsLowStock(it.Quantity, it.MinStockThreshold) {
			low = append(low, it)
		}
	}
	if len(low) == 0 {
		return nil, nil
	}
	SortFEFO(low)

	n, err := s.newNotification(cfg.MemberID, model.NotificationLowStock, model.PriorityMedium,
		"Running low on food",
		fmt.Sprintf("%s %s running low.", nameList(low, 5), pluralVerb(len(low))),
		refsOf(low), itemIDs(low), now)
	if err != nil {
		return nil, err
	}
	return []model.Notification{n}, nil
}

type wasteLine struct {
	FoodID   string          `json:"food_id"`
	Name     string          `json:"name"`
	Quantity float64         `json:"quantity"`
	Cost     decimal.Decimal `json:"cost"`
}

type wastePayload struct {
	Since     time.Time       `json:"since"`
	Until     time.Time       `json:"until"`
	Events    int             `json:"events"`
	TopWasted []wasteLine     `json:"top_wasted"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

func (s *NotificationService) wasteReportCandidates(ctx context.Context, cfg *model.NotificationConfig, now time.Time) ([]model.Notification, error) {
	if !cfg.WasteReportEnabled {
		return nil, nil
	}
	due, err := s.due(ctx, cfg.MemberID, model.NotificationWasteReport, cfg.WasteReportFrequency, now)
	if err != nil || !due {
		return nil, err
	}

	since := now.Add(-time.Duration(s.config.WasteWindowDays) * day)
	wastes, err := s.store.ListWaste(ctx, model.WasteFilter{MemberID: cfg.MemberID, Since: &since})
	if err != nil {
		return nil, model.Dependency("list waste", err)
	}
	if len(wastes) == 0 {
		return nil, nil
	}

	byFood := map[string]*wasteLine{}
	var order []string
	total := decimal.Zero
	for _, w := range wastes {
		line, ok := byFood[w.FoodID]
		if !ok {
			line = &wasteLine{FoodID: w.FoodID, Name: w.FoodID, Cost: decimal.Zero}
			byFood[w.FoodID] = line
			order = append(order, w.FoodID)
		}
		line.Quantity += w.Quantity
		line.Cost = line.Cost.Add(w.EstimatedCost)
		total = total.Add(w.EstimatedCost)
	}

	foods, err := s.store.GetFoods(ctx, order)
	if err != nil {
		return nil, model.Dependency("get foods", err)
	}
	lines := make([]wasteLine, 0, len(order))
	for _, id := range order {
		line := byFood[id]
		if f, ok := foods[id]; ok {
			line.Name = f.Name
		}
		lines = append(lines, *line)
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Quantity > lines[j].Quantity })
	if len(lines) > 3 {
		lines = lines[:3]
	}

	names := make([]string, len(lines))
	for i, l := range lines {
		names[i] = l.Name
	}

	n, err := s.newNotification(cfg.MemberID, model.NotificationWasteReport, model.PriorityMedium,
		fmt.Sprintf("Waste report for the last %d days", s.config.WasteWindowDays),
		fmt.Sprintf("%d items wasted, estimated cost %s. Most wasted: %s.",
			len(wastes), total.StringFixed(2), strings.Join(names, ", ")),
		wastePayload{Since: since, Until: now, Events: len(wastes), TopWasted: lines, TotalCost: total},
		[]string{since.Format("2006-01-02")}, now)
	if err != nil {
		return nil, err
	}
	return []model.Notification{n}, nil
}

func (s *NotificationService) purchaseCandidates(ctx context.Context, cfg *model.NotificationConfig, now time.Time) ([]model.Notification, error) {
	if !cfg.PurchaseSuggestionEnabled || s.suggester == nil {
		return nil, nil
	}
	due, err := s.due(ctx, cfg.MemberID, model.NotificationPurchaseSuggestion, cfg.PurchaseSuggestionFrequency, now)
	if err != nil || !due {
		return nil, err
	}

	suggestions, err := s.suggester.Suggestions(ctx, cfg.MemberID)
	if err != nil {
		return nil, err
	}
	var urgent []model.PurchaseSuggestion
	for _, sg := range suggestions {
		if sg.Priority == model.PriorityHigh {
			urgent = append(urgent, sg)
		}
		if len(urgent) == 3 {
			break
		}
	}
	if len(urgent) == 0 {
		return nil, nil
	}

	names := make([]string, len(urgent))
	ids := make([]string, len(urgent))
	for i, sg := range urgent {
		names[i] = sg.Name
		ids[i] = sg.FoodID
	}

	n, err := s.newNotification(cfg.MemberID, model.NotificationPurchaseSuggestion, model.PriorityLow,
		"Shopping suggestions",
		"Consider buying "+strings.Join(names, ", ")+".",
		map[string]interface{}{"suggestions": urgent}, ids, now)
	if err != nil {
		return nil, err
	}
	return []model.Notification{n}, nil
}

// usageReminderCandidates lists stocked items with no usage inside the cadence window.
func (s *NotificationService) usageReminderCandidates(ctx context.Context, cfg *model.NotificationConfig, now time.Time) ([]model.Notification, error) {
	if !cfg.UsageReminderEnabled {
		return nil, nil
	}
	due, err := s.due(ctx, cfg.MemberID, model.NotificationUsageReminder, cfg.UsageReminderFrequency, now)
	if err != nil || !due {
		return nil, err
	}

	window := cfg.UsageReminderFrequency.Window()
	if window == 0 {
		window = 7 * day
	}
	since := now.Add(-window)

	items, err := activeItems(ctx, s.store, cfg.MemberID)
	if err != nil {
		return nil, err
	}
	usages, err := s.store.ListUsage(ctx, model.UsageFilter{MemberID: cfg.MemberID, Since: &since})
	if err != nil {
		return nil, model.Dependency("list usage", err)
	}
	used := make(map[string]bool, len(usages))
	for _, u := range usages {
		used[u.ItemID] = true
	}

	var idle []model.InventoryItem
	for _, it := range items {
		if it.Quantity > 0 && it.CreatedAt.Before(since) && !used[it.ID] && !status.IsExpired(&it, now) {
			idle = append(idle, it)
		}
	}
	if len(idle) == 0 {
		return nil, nil
	}
	SortFEFO(idle)

	n, err := s.newNotification(cfg.MemberID, model.NotificationUsageReminder, model.PriorityLow,
		"Don't forget what's in stock",
		fmt.Sprintf("%s %s not been used recently.", nameList(idle, 5), pluralHave(len(idle))),
		refsOf(idle), itemIDs(idle), now)
	if err != nil {
		return nil, err
	}
	return []model.Notification{n}, nil
}

// RunBatch generates every family for each configured member. One member's
// failure is recorded and does not stop the others.
func (s *NotificationService) RunBatch(ctx context.Context) (*NotificationBatchReport, error) {
	defer s.metrics.ObserveBatch("notifications", time.Now())

	members, err := s.store.ListConfiguredMembers(ctx)
	if err != nil {
		return nil, model.Dependency("list configured members", err)
	}

	report := &NotificationBatchReport{}
	for _, memberID := range members {
		if ctx.Err() != nil {
			break
		}
		created, err := s.GenerateAll(ctx, memberID)
		if err != nil {
			s.logger.Warn("notification generation failed",
				zap.String("member_id", memberID),
				zap.Error(err),
			)
			report.Fail(memberID, err)
			continue
		}
		report.Success()
		report.Created += len(created)
	}

	s.logger.Info("notification batch finished",
		zap.Int("members", report.Processed),
		zap.Int("failed", report.Failed),
		zap.Int("created", report.Created),
	)
	return report, ctx.Err()
}

// List returns a page of the member's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, memberID string, filter model.NotificationFilter) (*NotificationPage, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, model.Invalid("type", "unknown notification type "+string(filter.Type))
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		return nil, model.Invalid("priority", "unknown priority "+string(filter.Priority))
	}
	filter.MemberID = memberID
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	list, total, err := s.store.ListNotifications(ctx, filter)
	if err != nil {
		return nil, model.Dependency("list notifications", err)
	}
	return &NotificationPage{Notifications: list, Total: total, Page: filter.Page, PageSize: filter.PageSize}, nil
}

// CountUnread counts unread notifications overall and per priority.
func (s *NotificationService) CountUnread(ctx context.Context, memberID string) (*model.UnreadCount, error) {
	count, err := s.store.CountUnread(ctx, memberID)
	if err != nil {
		return nil, model.Dependency("count unread", err)
	}
	return count, nil
}

// MarkRead marks one of the member's notifications read.
func (s *NotificationService) MarkRead(ctx context.Context, memberID, id string) error {
	return model.Dependency("mark read", s.store.MarkRead(ctx, memberID, id, s.clock.Now()))
}

// MarkAllRead marks every unread notification of the member read.
func (s *NotificationService) MarkAllRead(ctx context.Context, memberID string) (int64, error) {
	n, err := s.store.MarkAllRead(ctx, memberID, s.clock.Now())
	if err != nil {
		return 0, model.Dependency("mark all read", err)
	}
	return n, nil
}

// Delete removes one of the member's notifications.
func (s *NotificationService) Delete(ctx context.Context, memberID, id string) error {
	return model.Dependency("delete notification", s.store.DeleteNotification(ctx, memberID, id))
}

// PurgeRead removes read notifications past the retention period. Unread ones are kept.
func (s *NotificationService) PurgeRead(ctx context.Context) (int64, error) {
	cutoff := s.clock.Now().Add(-time.Duration(s.config.RetentionDays) * day)
	n, err := s.store.DeleteReadOlderThan(ctx, cutoff)
	if err != nil {
		return 0, model.Dependency("purge read notifications", err)
	}
	if n > 0 {
		s.logger.Info("purged read notifications", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}

// nameList names up to max items and summarizes the rest.
func nameList(items []model.InventoryItem, max int) string {
	names := make([]string, 0, max)
	for i, it := range items {
		if i == max {
			break
		}
		names = append(names, it.FoodName())
	}
	list := strings.Join(names, ", ")
	if extra := len(items) - len(names); extra > 0 {
		list += fmt.Sprintf(" and %d more", extra)
	}
	return list
}

func pluralVerb(n int) string {
	if n == 1 {
		return "is"
	}
	return "are"
}

func pluralHave(n int) string {
	if n == 1 {
		return "has"
	}
	return "have"
}
