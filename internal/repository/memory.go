package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"household-inventory-api/internal/model"

	"github.com/shopspring/decimal"
)

// MemoryStore implements Store in process memory.
// Use this for development/testing or single-instance demos; nothing survives a restart.
type MemoryStore struct {
	mu sync.RWMutex

	items         map[string]*model.InventoryItem
	usages        []model.UsageEvent
	wastes        []model.WasteEvent
	notifications map[string]*model.Notification
	configs       map[string]*model.NotificationConfig
	foods         map[string]model.Food
	recipes       map[string]model.Recipe
	cooks         []model.CookRecord
	members       map[string]bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:         make(map[string]*model.InventoryItem),
		notifications: make(map[string]*model.Notification),
		configs:       make(map[string]*model.NotificationConfig),
		foods:         make(map[string]model.Food),
		recipes:       make(map[string]model.Recipe),
		members:       make(map[string]bool),
	}
}

// AddMember registers a member in the directory.
func (s *MemoryStore) AddMember(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[id] = true
}

// AddFood registers a food catalog entry.
func (s *MemoryStore) AddFood(f model.Food) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.foods[f.ID] = f
}

// AddRecipe registers a recipe catalog entry.
func (s *MemoryStore) AddRecipe(r model.Recipe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recipes[r.ID] = r
}

// SaveMember implements Seeder.
func (s *MemoryStore) SaveMember(ctx context.Context, id string) error {
	s.AddMember(id)
	return nil
}

// SaveFood implements Seeder.
func (s *MemoryStore) SaveFood(ctx context.Context, f model.Food) error {
	s.AddFood(f)
	return nil
}

// SaveRecipe implements Seeder.
func (s *MemoryStore) SaveRecipe(ctx context.Context, r model.Recipe) error {
	s.AddRecipe(r)
	return nil
}

// ---- inventory ----

// CreateItem inserts a new item.
func (s *MemoryStore) CreateItem(ctx context.Context, item *model.InventoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[item.ID]; exists {
		return model.Invalid("id", "duplicate item id")
	}
	c := cloneItem(item)
	c.Food, c.Usages, c.Wastes = nil, nil, nil
	s.items[item.ID] = c
	return nil
}

// UpdateItem persists the mutable fields of an active item.
func (s *MemoryStore) UpdateItem(ctx context.Context, item *model.InventoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.items[item.ID]
	if !ok || !cur.IsActive() {
		return model.NotFound("inventory item", item.ID)
	}
	c := cloneItem(item)
	c.Food, c.Usages, c.Wastes = nil, nil, nil
	c.CreatedAt = cur.CreatedAt
	c.DeletedAt = cur.DeletedAt
	s.items[item.ID] = c
	return nil
}

// SoftDeleteItem marks an item inactive.
func (s *MemoryStore) SoftDeleteItem(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.items[id]
	if !ok || !cur.IsActive() {
		return model.NotFound("inventory item", id)
	}
	cur.DeletedAt = &at
	cur.UpdatedAt = at
	return nil
}

// GetItem returns an active item with its associations populated.
func (s *MemoryStore) GetItem(ctx context.Context, id string) (*model.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cur, ok := s.items[id]
	if !ok || !cur.IsActive() {
		return nil, model.NotFound("inventory item", id)
	}
	item := cloneItem(cur)
	if f, ok := s.foods[item.FoodID]; ok {
		item.Food = &f
	}
	for i := len(s.usages) - 1; i >= 0; i-- {
		if s.usages[i].ItemID == id {
			item.Usages = append(item.Usages, s.usages[i])
		}
	}
	for i := len(s.wastes) - 1; i >= 0; i-- {
		if s.wastes[i].ItemID == id {
			item.Wastes = append(item.Wastes, s.wastes[i])
		}
	}
	return item, nil
}

// ListItems returns active items matching filter.
func (s *MemoryStore) ListItems(ctx context.Context, filter model.ItemFilter) ([]model.InventoryItem, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []model.InventoryItem
	for _, it := range s.items {
		if !it.IsActive() || !s.matchItem(it, filter) {
			continue
		}
		c := cloneItem(it)
		if f, ok := s.foods[c.FoodID]; ok {
			c.Food = &f
		}
		matched = append(matched, *c)
	}
	sortItems(matched)

	total := len(matched)
	lo, hi := pageBounds(total, filter.Page, filter.PageSize)
	return matched[lo:hi], total, nil
}

func (s *MemoryStore) matchItem(it *model.InventoryItem, f model.ItemFilter) bool {
	if f.MemberID != "" && it.MemberID != f.MemberID {
		return false
	}
	if f.FoodID != "" && it.FoodID != f.FoodID {
		return false
	}
	if f.Status != "" && it.Status != f.Status {
		return false
	}
	if f.Location != "" && it.StorageLocation != f.Location {
		return false
	}
	if f.Category != "" && !strings.EqualFold(s.foods[it.FoodID].Category, f.Category) {
		return false
	}
	if f.Expiring && it.Status != model.StatusExpiring {
		return false
	}
	if f.Expired && it.Status != model.StatusExpired {
		return false
	}
	if f.LowStock && !it.IsLowStock {
		return false
	}
	return true
}

// ListLowStock returns a member's active items at or below threshold.
func (s *MemoryStore) ListLowStock(ctx context.Context, memberID string) ([]model.InventoryItem, error) {
	items, _, err := s.ListItems(ctx, model.ItemFilter{MemberID: memberID, LowStock: true})
	return items, err
}

// ListItemsWithExpiry pages through active items with an expiry date, ordered by ID.
func (s *MemoryStore) ListItemsWithExpiry(ctx context.Context, afterID string, limit int) ([]model.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.InventoryItem
	for _, it := range s.items {
		if it.IsActive() && it.ExpiryDate != nil && it.ID > afterID {
			out = append(out, *cloneItem(it))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RecordUsage applies all events or none.
func (s *MemoryStore) RecordUsage(ctx context.Context, events []model.UsageEvent, reclassify model.Reclassify) ([]model.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check every decrement against live stock before touching anything.
	remaining := make(map[string]float64)
	for _, ev := range events {
		it, ok := s.items[ev.ItemID]
		if !ok || !it.IsActive() {
			return nil, model.NotFound("inventory item", ev.ItemID)
		}
		qty, seen := remaining[ev.ItemID]
		if !seen {
			qty = it.Quantity
		}
		if ev.Quantity > qty {
			return nil, &model.InsufficientStockError{ItemID: ev.ItemID, Requested: ev.Quantity, Available: qty}
		}
		remaining[ev.ItemID] = qty - ev.Quantity
	}

	var updated []model.InventoryItem
	for _, ev := range events {
		it := s.items[ev.ItemID]
		it.Quantity -= ev.Quantity
		it.UpdatedAt = ev.UsedAt
		if reclassify != nil {
			reclassify(it)
		}
		s.usages = append(s.usages, ev)
		updated = append(updated, *cloneItem(it))
	}
	return updated, nil
}

// Restock increments an item's quantity.
func (s *MemoryStore) Restock(ctx context.Context, itemID string, amount float64, at time.Time, reclassify model.Reclassify) (*model.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[itemID]
	if !ok || !it.IsActive() {
		return nil, model.NotFound("inventory item", itemID)
	}
	it.Quantity += amount
	it.UpdatedAt = at
	if reclassify != nil {
		reclassify(it)
	}
	return cloneItem(it), nil
}

// ListUsage returns usage events matching filter, newest first.
func (s *MemoryStore) ListUsage(ctx context.Context, filter model.UsageFilter) ([]model.UsageEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.UsageEvent
	for _, ev := range s.usages {
		if filter.MemberID != "" && ev.MemberID != filter.MemberID {
			continue
		}
		if filter.ItemID != "" && ev.ItemID != filter.ItemID {
			continue
		}
		if !inWindow(ev.UsedAt, filter.Since, filter.Until) {
			continue
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UsedAt.After(out[j].UsedAt) })
	return out, nil
}

// GetStats aggregates a member's active inventory.
func (s *MemoryStore) GetStats(ctx context.Context, memberID string) (*model.InventoryStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &model.InventoryStats{ByStatus: make(map[model.ItemStatus]int), EstimatedValue: decimal.Zero}
	categories := make(map[string]bool)
	for _, it := range s.items {
		if !it.IsActive() || it.MemberID != memberID {
			continue
		}
		stats.TotalItems++
		stats.ByStatus[it.Status]++
		if it.IsLowStock {
			stats.LowStockCount++
		}
		if f, ok := s.foods[it.FoodID]; ok && f.Category != "" {
			categories[f.Category] = true
		}
		if it.PurchasePrice.Valid {
			stats.EstimatedValue = stats.EstimatedValue.Add(it.PurchasePrice.Decimal)
		}
	}
	stats.Categories = len(categories)
	return stats, nil
}

// ---- waste ----

// RecordWaste decrements the item and appends the waste event.
func (s *MemoryStore) RecordWaste(ctx context.Context, event *model.WasteEvent, reclassify model.Reclassify) (*model.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[event.ItemID]
	if !ok || !it.IsActive() {
		return nil, model.NotFound("inventory item", event.ItemID)
	}
	if event.Quantity > it.Quantity {
		return nil, &model.InsufficientStockError{ItemID: it.ID, Requested: event.Quantity, Available: it.Quantity}
	}
	it.Quantity -= event.Quantity
	it.UpdatedAt = event.WastedAt
	if reclassify != nil {
		reclassify(it)
	}
	s.wastes = append(s.wastes, *event)
	return cloneItem(it), nil
}

// ListWaste returns waste events matching filter, newest first.
func (s *MemoryStore) ListWaste(ctx context.Context, filter model.WasteFilter) ([]model.WasteEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.WasteEvent
	for _, ev := range s.wastes {
		if filter.MemberID != "" && ev.MemberID != filter.MemberID {
			continue
		}
		if filter.ItemID != "" && ev.ItemID != filter.ItemID {
			continue
		}
		if !inWindow(ev.WastedAt, filter.Since, filter.Until) {
			continue
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].WastedAt.After(out[j].WastedAt) })
	return out, nil
}

// ---- notifications ----

// CreateNotifications inserts a batch of notifications.
func (s *MemoryStore) CreateNotifications(ctx context.Context, notifications []model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range notifications {
		n := notifications[i]
		s.notifications[n.ID] = &n
	}
	return nil
}

// ListNotifications returns notifications matching filter, newest first.
func (s *MemoryStore) ListNotifications(ctx context.Context, filter model.NotificationFilter) ([]model.Notification, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Notification
	for _, n := range s.notifications {
		if filter.MemberID != "" && n.MemberID != filter.MemberID {
			continue
		}
		if filter.Type != "" && n.Type != filter.Type {
			continue
		}
		if filter.Priority != "" && n.Priority != filter.Priority {
			continue
		}
		if filter.IsRead != nil && n.IsRead != *filter.IsRead {
			continue
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	total := len(out)
	lo, hi := pageBounds(total, filter.Page, filter.PageSize)
	return out[lo:hi], total, nil
}

// FindUnreadByDedupKey returns an unread notification with the same condition, or nil.
func (s *MemoryStore) FindUnreadByDedupKey(ctx context.Context, memberID string, ntype model.NotificationType, key string) (*model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, n := range s.notifications {
		if n.MemberID == memberID && n.Type == ntype && n.DedupKey == key && !n.IsRead {
			c := *n
			return &c, nil
		}
	}
	return nil, nil
}

// LatestNotification returns the newest notification of a type, or nil.
func (s *MemoryStore) LatestNotification(ctx context.Context, memberID string, ntype model.NotificationType) (*model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *model.Notification
	for _, n := range s.notifications {
		if n.MemberID != memberID || n.Type != ntype {
			continue
		}
		if latest == nil || n.CreatedAt.After(latest.CreatedAt) {
			latest = n
		}
	}
	if latest == nil {
		return nil, nil
	}
	c := *latest
	return &c, nil
}

// CountUnread counts a member's unread notifications overall and per priority.
func (s *MemoryStore) CountUnread(ctx context.Context, memberID string) (*model.UnreadCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := &model.UnreadCount{ByPriority: make(map[model.Priority]int)}
	for _, n := range s.notifications {
		if n.MemberID == memberID && !n.IsRead {
			count.Total++
			count.ByPriority[n.Priority]++
		}
	}
	return count, nil
}

// MarkRead marks one notification read.
func (s *MemoryStore) MarkRead(ctx context.Context, memberID, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok || n.MemberID != memberID {
		return model.NotFound("notification", id)
	}
	if !n.IsRead {
		n.IsRead = true
		n.ReadAt = &at
	}
	return nil
}

// MarkAllRead marks every unread notification of a member read.
func (s *MemoryStore) MarkAllRead(ctx context.Context, memberID string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, note := range s.notifications {
		if note.MemberID == memberID && !note.IsRead {
			note.IsRead = true
			readAt := at
			note.ReadAt = &readAt
			n++
		}
	}
	return n, nil
}

// DeleteNotification removes one notification.
func (s *MemoryStore) DeleteNotification(ctx context.Context, memberID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok || n.MemberID != memberID {
		return model.NotFound("notification", id)
	}
	delete(s.notifications, id)
	return nil
}

// DeleteReadOlderThan removes read notifications created before cutoff.
func (s *MemoryStore) DeleteReadOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, n := range s.notifications {
		if n.IsRead && n.CreatedAt.Before(cutoff) {
			delete(s.notifications, id)
			deleted++
		}
	}
	return deleted, nil
}

// ---- notification config ----

// GetConfig returns a member's configuration, or nil when absent.
func (s *MemoryStore) GetConfig(ctx context.Context, memberID string) (*model.NotificationConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.configs[memberID]
	if !ok {
		return nil, nil
	}
	c := *cfg
	return &c, nil
}

// UpsertConfig creates or replaces a member's configuration.
func (s *MemoryStore) UpsertConfig(ctx context.Context, cfg *model.NotificationConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *cfg
	if prev, ok := s.configs[cfg.MemberID]; ok {
		c.CreatedAt = prev.CreatedAt
	}
	s.configs[cfg.MemberID] = &c
	return nil
}

// ListConfiguredMembers returns every member with a configuration, sorted.
func (s *MemoryStore) ListConfiguredMembers(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.configs))
	for id := range s.configs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// ---- catalogs ----

// GetFood returns a food by ID.
func (s *MemoryStore) GetFood(ctx context.Context, id string) (*model.Food, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.foods[id]
	if !ok {
		return nil, model.NotFound("food", id)
	}
	return &f, nil
}

// GetFoods returns the known foods among ids.
func (s *MemoryStore) GetFoods(ctx context.Context, ids []string) (map[string]model.Food, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]model.Food, len(ids))
	for _, id := range ids {
		if f, ok := s.foods[id]; ok {
			out[id] = f
		}
	}
	return out, nil
}

// FindFoodByName returns the food whose name matches case-insensitively.
func (s *MemoryStore) FindFoodByName(ctx context.Context, name string) (*model.Food, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, f := range s.foods {
		if strings.EqualFold(f.Name, name) {
			c := f
			return &c, nil
		}
	}
	return nil, model.NotFound("food", name)
}

// GetRecipe returns a recipe by ID.
func (s *MemoryStore) GetRecipe(ctx context.Context, id string) (*model.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.recipes[id]
	if !ok {
		return nil, model.NotFound("recipe", id)
	}
	r.Ingredients = append([]model.Ingredient(nil), r.Ingredients...)
	return &r, nil
}

// ListRecipes returns every recipe sorted by name.
func (s *MemoryStore) ListRecipes(ctx context.Context) ([]model.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Recipe, 0, len(s.recipes))
	for _, r := range s.recipes {
		r.Ingredients = append([]model.Ingredient(nil), r.Ingredients...)
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// RecordCook appends a cook record.
func (s *MemoryStore) RecordCook(ctx context.Context, record *model.CookRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cooks = append(s.cooks, *record)
	return nil
}

// ListCooks returns a member's cook records, newest first.
func (s *MemoryStore) ListCooks(ctx context.Context, memberID string, limit int) ([]model.CookRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.CookRecord
	for i := len(s.cooks) - 1; i >= 0; i-- {
		if s.cooks[i].MemberID != memberID {
			continue
		}
		out = append(out, s.cooks[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// MemberExists reports whether the member is registered.
func (s *MemoryStore) MemberExists(ctx context.Context, memberID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.members[memberID], nil
}

// GetStoreStats returns counts for the admin endpoint.
func (s *MemoryStore) GetStoreStats(ctx context.Context) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := 0
	for _, it := range s.items {
		if it.IsActive() {
			active++
		}
	}
	return map[string]interface{}{
		"active_items":  active,
		"usage_events":  len(s.usages),
		"waste_events":  len(s.wastes),
		"notifications": len(s.notifications),
		"members":       len(s.members),
	}, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}

func cloneItem(it *model.InventoryItem) *model.InventoryItem {
	c := *it
	if it.ExpiryDate != nil {
		t := *it.ExpiryDate
		c.ExpiryDate = &t
	}
	if it.ProductionDate != nil {
		t := *it.ProductionDate
		c.ProductionDate = &t
	}
	if it.DaysToExpiry != nil {
		d := *it.DaysToExpiry
		c.DaysToExpiry = &d
	}
	if it.MinStockThreshold != nil {
		v := *it.MinStockThreshold
		c.MinStockThreshold = &v
	}
	if it.DeletedAt != nil {
		t := *it.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}

// sortItems orders by creation time, then ID.
func sortItems(items []model.InventoryItem) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
}

func pageBounds(total, page, pageSize int) (int, int) {
	if pageSize <= 0 {
		return 0, total
	}
	if page < 1 {
		page = 1
	}
	lo := (page - 1) * pageSize
	if lo > total {
		lo = total
	}
	hi := lo + pageSize
	if hi > total {
		hi = total
	}
	return lo, hi
}

func inWindow(t time.Time, since, until *time.Time) bool {
	if since != nil && t.Before(*since) {
		return false
	}
	if until != nil && !t.Before(*until) {
		return false
	}
	return true
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
