package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"household-inventory-api/internal/model"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLConfig selects the dialect and pool settings of a SQLStore.
type SQLConfig struct {
	Dialect         string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SQLStore implements Store on a relational database through sqlx.
// The same queries serve sqlite, postgres and mysql; placeholders are rebound per driver.
type SQLStore struct {
	db      *sqlx.DB
	dialect string
	logger  *zap.Logger
}

// SQLiteDSN builds a file DSN with WAL and a busy timeout, creating the parent directory.
func SQLiteDSN(path string) string {
	if dir := filepath.Dir(path); dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", path)
}

// NewSQLStore opens the database, applies the schema and returns the store.
func NewSQLStore(cfg SQLConfig, logger *zap.Logger) (*SQLStore, error) {
	if _, ok := dialectTypes[cfg.Dialect]; !ok {
		return nil, fmt.Errorf("unsupported sql dialect %q", cfg.Dialect)
	}

	db, err := sqlx.Open(cfg.Dialect, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cfg.Dialect, err)
	}

	if cfg.Dialect == DialectSQLite {
		db.SetMaxOpenConns(1) // SQLite only supports 1 writer
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", cfg.Dialect, err)
	}

	return NewSQLStoreFromDB(db, cfg.Dialect, logger)
}

// NewSQLStoreFromDB wraps an open connection and applies the schema.
func NewSQLStoreFromDB(db *sqlx.DB, dialect string, logger *zap.Logger) (*SQLStore, error) {
	if err := createTables(db, dialect); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	logger.Info("sql store initialized", zap.String("dialect", dialect))
	return &SQLStore{db: db, dialect: dialect, logger: logger}, nil
}

// DB exposes the underlying pool for components sharing the connection.
func (s *SQLStore) DB() *sqlx.DB {
	return s.db
}

func (s *SQLStore) q(query string) string {
	return s.db.Rebind(query)
}

func (s *SQLStore) withTx(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Dependency(op+": begin", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return model.Dependency(op, err)
	}
	if err := tx.Commit(); err != nil {
		return model.Dependency(op+": commit", err)
	}
	return nil
}

// ---- inventory ----

const insertItemSQL = `
	INSERT INTO inventory_items (
		id, member_id, food_id, quantity, original_quantity, unit,
		expiry_date, production_date, status, days_to_expiry, is_low_stock,
		min_stock_threshold, storage_location, purchase_price, purchase_source,
		notes, created_at, updated_at, deleted_at
	) VALUES (
		:id, :member_id, :food_id, :quantity, :original_quantity, :unit,
		:expiry_date, :production_date, :status, :days_to_expiry, :is_low_stock,
		:min_stock_threshold, :storage_location, :purchase_price, :purchase_source,
		:notes, :created_at, :updated_at, :deleted_at
	)`

// CreateItem inserts a new item.
func (s *SQLStore) CreateItem(ctx context.Context, item *model.InventoryItem) error {
	if _, err := s.db.NamedExecContext(ctx, insertItemSQL, item); err != nil {
		return model.Dependency("create item", err)
	}
	return nil
}

// UpdateItem persists the mutable fields of an active item.
func (s *SQLStore) UpdateItem(ctx context.Context, item *model.InventoryItem) error {
	query := `
		UPDATE inventory_items SET
			quantity = :quantity, unit = :unit, expiry_date = :expiry_date,
			production_date = :production_date, status = :status,
			days_to_expiry = :days_to_expiry, is_low_stock = :is_low_stock,
			min_stock_threshold = :min_stock_threshold, storage_location = :storage_location,
			purchase_price = :purchase_price, notes = :notes, updated_at = :updated_at
		WHERE id = :id AND deleted_at IS NULL`

	res, err := s.db.NamedExecContext(ctx, query, item)
	if err != nil {
		return model.Dependency("update item", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.existsOrNotFound(ctx, item.ID)
	}
	return nil
}

// existsOrNotFound distinguishes "no change" from "no row" after an UPDATE;
// MySQL reports changed rows rather than matched rows.
func (s *SQLStore) existsOrNotFound(ctx context.Context, id string) error {
	var n int
	err := s.db.GetContext(ctx, &n, s.q(`SELECT COUNT(*) FROM inventory_items WHERE id = ? AND deleted_at IS NULL`), id)
	if err != nil {
		return model.Dependency("get item", err)
	}
	if n == 0 {
		return model.NotFound("inventory item", id)
	}
	return nil
}

// SoftDeleteItem marks an item inactive.
func (s *SQLStore) SoftDeleteItem(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE inventory_items SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`),
		at, at, id)
	if err != nil {
		return model.Dependency("delete item", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.NotFound("inventory item", id)
	}
	return nil
}

// GetItem returns an active item with food, usages and wastes loaded.
func (s *SQLStore) GetItem(ctx context.Context, id string) (*model.InventoryItem, error) {
	var item model.InventoryItem
	err := s.db.GetContext(ctx, &item, s.q(`SELECT * FROM inventory_items WHERE id = ? AND deleted_at IS NULL`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFound("inventory item", id)
	}
	if err != nil {
		return nil, model.Dependency("get item", err)
	}

	food, err := s.GetFood(ctx, item.FoodID)
	if err == nil {
		item.Food = food
	} else if !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}

	if err := s.db.SelectContext(ctx, &item.Usages,
		s.q(`SELECT * FROM usage_events WHERE item_id = ? ORDER BY used_at DESC`), id); err != nil {
		return nil, model.Dependency("list item usages", err)
	}
	if err := s.db.SelectContext(ctx, &item.Wastes,
		s.q(`SELECT * FROM waste_events WHERE item_id = ? ORDER BY wasted_at DESC`), id); err != nil {
		return nil, model.Dependency("list item wastes", err)
	}
	return &item, nil
}

func itemWhere(f model.ItemFilter) (string, []interface{}) {
	conditions := []string{"i.deleted_at IS NULL"}
	var args []interface{}

	if f.MemberID != "" {
		conditions = append(conditions, "i.member_id = ?")
		args = append(args, f.MemberID)
	}
	if f.FoodID != "" {
		conditions = append(conditions, "i.food_id = ?")
		args = append(args, f.FoodID)
	}
	if f.Status != "" {
		conditions = append(conditions, "i.status = ?")
		args = append(args, f.Status)
	}
	if f.Location != "" {
		conditions = append(conditions, "i.storage_location = ?")
		args = append(args, f.Location)
	}
	if f.Category != "" {
		conditions = append(conditions, "LOWER(f.category) = LOWER(?)")
		args = append(args, f.Category)
	}
	if f.Expiring {
		conditions = append(conditions, "i.status = ?")
		args = append(args, model.StatusExpiring)
	}
	if f.Expired {
		conditions = append(conditions, "i.status = ?")
		args = append(args, model.StatusExpired)
	}
	if f.LowStock {
		conditions = append(conditions, "i.is_low_stock = ?")
		args = append(args, true)
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// ListItems returns active items matching filter and the total match count.
func (s *SQLStore) ListItems(ctx context.Context, filter model.ItemFilter) ([]model.InventoryItem, int, error) {
	where, args := itemWhere(filter)
	from := " FROM inventory_items i LEFT JOIN foods f ON f.id = i.food_id"

	var total int
	if err := s.db.GetContext(ctx, &total, s.q("SELECT COUNT(*)"+from+where), args...); err != nil {
		return nil, 0, model.Dependency("count items", err)
	}

	query := "SELECT i.*" + from + where + " ORDER BY i.created_at, i.id"
	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.PageSize, (page-1)*filter.PageSize)
	}

	items := []model.InventoryItem{}
	if err := s.db.SelectContext(ctx, &items, s.q(query), args...); err != nil {
		return nil, 0, model.Dependency("list items", err)
	}
	if err := s.attachFoods(ctx, items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *SQLStore) attachFoods(ctx context.Context, items []model.InventoryItem) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.FoodID)
	}
	foods, err := s.GetFoods(ctx, ids)
	if err != nil {
		return err
	}
	for i := range items {
		if f, ok := foods[items[i].FoodID]; ok {
			f := f
			items[i].Food = &f
		}
	}
	return nil
}

// ListLowStock returns a member's active items at or below their threshold.
func (s *SQLStore) ListLowStock(ctx context.Context, memberID string) ([]model.InventoryItem, error) {
	items, _, err := s.ListItems(ctx, model.ItemFilter{MemberID: memberID, LowStock: true})
	return items, err
}

// ListItemsWithExpiry pages through active items with an expiry date, ordered by ID.
func (s *SQLStore) ListItemsWithExpiry(ctx context.Context, afterID string, limit int) ([]model.InventoryItem, error) {
	query := `SELECT * FROM inventory_items
		WHERE deleted_at IS NULL AND expiry_date IS NOT NULL AND id > ?
		ORDER BY id`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	items := []model.InventoryItem{}
	if err := s.db.SelectContext(ctx, &items, s.q(query), afterID); err != nil {
		return nil, model.Dependency("list items with expiry", err)
	}
	return items, nil
}

// decrement removes qty from an item only when enough stock remains.
func (s *SQLStore) decrement(ctx context.Context, tx *sqlx.Tx, itemID string, qty float64, at time.Time) error {
	res, err := tx.ExecContext(ctx, s.q(`
		UPDATE inventory_items SET quantity = quantity - ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL AND quantity >= ?`),
		qty, at, itemID, qty)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var available float64
	err = tx.GetContext(ctx, &available,
		s.q(`SELECT quantity FROM inventory_items WHERE id = ? AND deleted_at IS NULL`), itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.NotFound("inventory item", itemID)
	}
	if err != nil {
		return err
	}
	return &model.InsufficientStockError{ItemID: itemID, Requested: qty, Available: available}
}

// reclassifyTx reloads an item inside tx, applies reclassify and persists the derived fields.
func (s *SQLStore) reclassifyTx(ctx context.Context, tx *sqlx.Tx, itemID string, reclassify model.Reclassify) (*model.InventoryItem, error) {
	var item model.InventoryItem
	if err := tx.GetContext(ctx, &item, s.q(`SELECT * FROM inventory_items WHERE id = ?`), itemID); err != nil {
		return nil, err
	}
	if reclassify == nil {
		return &item, nil
	}
	reclassify(&item)

	_, err := tx.ExecContext(ctx, s.q(`
		UPDATE inventory_items SET status = ?, days_to_expiry = ?, is_low_stock = ?
		WHERE id = ?`),
		item.Status, item.DaysToExpiry, item.IsLowStock, item.ID)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

const insertUsageSQL = `
	INSERT INTO usage_events (id, item_id, member_id, food_id, quantity, reason, meal_id, recipe_id, note, used_at)
	VALUES (:id, :item_id, :member_id, :food_id, :quantity, :reason, :meal_id, :recipe_id, :note, :used_at)`

// RecordUsage applies all events or none.
func (s *SQLStore) RecordUsage(ctx context.Context, events []model.UsageEvent, reclassify model.Reclassify) ([]model.InventoryItem, error) {
	var updated []model.InventoryItem
	err := s.withTx(ctx, "record usage", func(tx *sqlx.Tx) error {
		for _, ev := range events {
			if err := s.decrement(ctx, tx, ev.ItemID, ev.Quantity, ev.UsedAt); err != nil {
				return err
			}
			item, err := s.reclassifyTx(ctx, tx, ev.ItemID, reclassify)
			if err != nil {
				return err
			}
			if _, err := tx.NamedExecContext(ctx, insertUsageSQL, ev); err != nil {
				return err
			}
			updated = append(updated, *item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Restock increments an item's quantity.
func (s *SQLStore) Restock(ctx context.Context, itemID string, amount float64, at time.Time, reclassify model.Reclassify) (*model.InventoryItem, error) {
	var item *model.InventoryItem
	err := s.withTx(ctx, "restock item", func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			s.q(`UPDATE inventory_items SET quantity = quantity + ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`),
			amount, at, itemID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return model.NotFound("inventory item", itemID)
		}
		item, err = s.reclassifyTx(ctx, tx, itemID, reclassify)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func eventWhere(memberID, itemID string, since, until *time.Time, tsColumn string) (string, []interface{}) {
	conditions := []string{"1 = 1"}
	var args []interface{}
	if memberID != "" {
		conditions = append(conditions, "member_id = ?")
		args = append(args, memberID)
	}
	if itemID != "" {
		conditions = append(conditions, "item_id = ?")
		args = append(args, itemID)
	}
	if since != nil {
		conditions = append(conditions, tsColumn+" >= ?")
		args = append(args, *since)
	}
	if until != nil {
		conditions = append(conditions, tsColumn+" < ?")
		args = append(args, *until)
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// ListUsage returns usage events matching filter, newest first.
func (s *SQLStore) ListUsage(ctx context.Context, filter model.UsageFilter) ([]model.UsageEvent, error) {
	where, args := eventWhere(filter.MemberID, filter.ItemID, filter.Since, filter.Until, "used_at")
	events := []model.UsageEvent{}
	if err := s.db.SelectContext(ctx, &events, s.q("SELECT * FROM usage_events"+where+" ORDER BY used_at DESC"), args...); err != nil {
		return nil, model.Dependency("list usage", err)
	}
	return events, nil
}

type statsRow struct {
	Status        model.ItemStatus    `db:"status"`
	IsLowStock    bool                `db:"is_low_stock"`
	PurchasePrice decimal.NullDecimal `db:"purchase_price"`
	Category      string              `db:"category"`
}

// GetStats aggregates a member's active inventory.
func (s *SQLStore) GetStats(ctx context.Context, memberID string) (*model.InventoryStats, error) {
	var rows []statsRow
	err := s.db.SelectContext(ctx, &rows, s.q(`
		SELECT i.status, i.is_low_stock, i.purchase_price, COALESCE(f.category, '') AS category
		FROM inventory_items i LEFT JOIN foods f ON f.id = i.food_id
		WHERE i.member_id = ? AND i.deleted_at IS NULL`), memberID)
	if err != nil {
		return nil, model.Dependency("inventory stats", err)
	}

	stats := &model.InventoryStats{ByStatus: make(map[model.ItemStatus]int), EstimatedValue: decimal.Zero}
	categories := make(map[string]bool)
	for _, r := range rows {
		stats.TotalItems++
		stats.ByStatus[r.Status]++
		if r.IsLowStock {
			stats.LowStockCount++
		}
		if r.Category != "" {
			categories[r.Category] = true
		}
		if r.PurchasePrice.Valid {
			stats.EstimatedValue = stats.EstimatedValue.Add(r.PurchasePrice.Decimal)
		}
	}
	stats.Categories = len(categories)
	return stats, nil
}

// ---- waste ----

const insertWasteSQL = `
	INSERT INTO waste_events (id, item_id, member_id, food_id, quantity, reason, estimated_cost, prevention_tip, wasted_at)
	VALUES (:id, :item_id, :member_id, :food_id, :quantity, :reason, :estimated_cost, :prevention_tip, :wasted_at)`

// RecordWaste decrements the item and appends the waste event.
func (s *SQLStore) RecordWaste(ctx context.Context, event *model.WasteEvent, reclassify model.Reclassify) (*model.InventoryItem, error) {
	var item *model.InventoryItem
	err := s.withTx(ctx, "record waste", func(tx *sqlx.Tx) error {
		if err := s.decrement(ctx, tx, event.ItemID, event.Quantity, event.WastedAt); err != nil {
			return err
		}
		var err error
		if item, err = s.reclassifyTx(ctx, tx, event.ItemID, reclassify); err != nil {
			return err
		}
		_, err = tx.NamedExecContext(ctx, insertWasteSQL, event)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ListWaste returns waste events matching filter, newest first.
func (s *SQLStore) ListWaste(ctx context.Context, filter model.WasteFilter) ([]model.WasteEvent, error) {
	where, args := eventWhere(filter.MemberID, filter.ItemID, filter.Since, filter.Until, "wasted_at")
	events := []model.WasteEvent{}
	if err := s.db.SelectContext(ctx, &events, s.q("SELECT * FROM waste_events"+where+" ORDER BY wasted_at DESC"), args...); err != nil {
		return nil, model.Dependency("list waste", err)
	}
	return events, nil
}

// ---- notifications ----

const insertNotificationSQL = `
	INSERT INTO notifications (
		id, member_id, type, title, message, priority, payload, dedup_key,
		is_read, created_at, read_at, scheduled_for, expires_at
	) VALUES (
		:id, :member_id, :type, :title, :message, :priority, :payload, :dedup_key,
		:is_read, :created_at, :read_at, :scheduled_for, :expires_at
	)`

// CreateNotifications inserts a batch in one transaction.
func (s *SQLStore) CreateNotifications(ctx context.Context, notifications []model.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	return s.withTx(ctx, "create notifications", func(tx *sqlx.Tx) error {
		for i := range notifications {
			if _, err := tx.NamedExecContext(ctx, insertNotificationSQL, &notifications[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListNotifications returns notifications matching filter, newest first.
func (s *SQLStore) ListNotifications(ctx context.Context, filter model.NotificationFilter) ([]model.Notification, int, error) {
	conditions := []string{"member_id = ?"}
	args := []interface{}{filter.MemberID}
	if filter.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, filter.Type)
	}
	if filter.Priority != "" {
		conditions = append(conditions, "priority = ?")
		args = append(args, filter.Priority)
	}
	if filter.IsRead != nil {
		conditions = append(conditions, "is_read = ?")
		args = append(args, *filter.IsRead)
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := s.db.GetContext(ctx, &total, s.q("SELECT COUNT(*) FROM notifications"+where), args...); err != nil {
		return nil, 0, model.Dependency("count notifications", err)
	}

	query := "SELECT * FROM notifications" + where + " ORDER BY created_at DESC, id"
	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.PageSize, (page-1)*filter.PageSize)
	}

	out := []model.Notification{}
	if err := s.db.SelectContext(ctx, &out, s.q(query), args...); err != nil {
		return nil, 0, model.Dependency("list notifications", err)
	}
	return out, total, nil
}

func (s *SQLStore) getNotification(ctx context.Context, query string, args ...interface{}) (*model.Notification, error) {
	var n model.Notification
	err := s.db.GetContext(ctx, &n, s.q(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, model.Dependency("get notification", err)
	}
	return &n, nil
}

// FindUnreadByDedupKey returns an unread notification with the same condition, or nil.
func (s *SQLStore) FindUnreadByDedupKey(ctx context.Context, memberID string, ntype model.NotificationType, key string) (*model.Notification, error) {
	return s.getNotification(ctx, `
		SELECT * FROM notifications
		WHERE member_id = ? AND type = ? AND dedup_key = ? AND is_read = ?
		LIMIT 1`, memberID, ntype, key, false)
}

// LatestNotification returns the newest notification of a type, or nil.
func (s *SQLStore) LatestNotification(ctx context.Context, memberID string, ntype model.NotificationType) (*model.Notification, error) {
	return s.getNotification(ctx, `
		SELECT * FROM notifications
		WHERE member_id = ? AND type = ?
		ORDER BY created_at DESC LIMIT 1`, memberID, ntype)
}

// CountUnread counts a member's unread notifications overall and per priority.
func (s *SQLStore) CountUnread(ctx context.Context, memberID string) (*model.UnreadCount, error) {
	var rows []struct {
		Priority model.Priority `db:"priority"`
		Count    int            `db:"n"`
	}
	err := s.db.SelectContext(ctx, &rows, s.q(`
		SELECT priority, COUNT(*) AS n FROM notifications
		WHERE member_id = ? AND is_read = ?
		GROUP BY priority`), memberID, false)
	if err != nil {
		return nil, model.Dependency("count unread", err)
	}

	count := &model.UnreadCount{ByPriority: make(map[model.Priority]int)}
	for _, r := range rows {
		count.ByPriority[r.Priority] = r.Count
		count.Total += r.Count
	}
	return count, nil
}

// MarkRead marks one notification read; an already-read notification keeps its read time.
func (s *SQLStore) MarkRead(ctx context.Context, memberID, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE notifications SET is_read = ?, read_at = ? WHERE id = ? AND member_id = ? AND is_read = ?`),
		true, at, id, memberID, false)
	if err != nil {
		return model.Dependency("mark read", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var exists int
	if err := s.db.GetContext(ctx, &exists,
		s.q(`SELECT COUNT(*) FROM notifications WHERE id = ? AND member_id = ?`), id, memberID); err != nil {
		return model.Dependency("mark read", err)
	}
	if exists == 0 {
		return model.NotFound("notification", id)
	}
	return nil
}

// MarkAllRead marks every unread notification of a member read.
func (s *SQLStore) MarkAllRead(ctx context.Context, memberID string, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE notifications SET is_read = ?, read_at = ? WHERE member_id = ? AND is_read = ?`),
		true, at, memberID, false)
	if err != nil {
		return 0, model.Dependency("mark all read", err)
	}
	return res.RowsAffected()
}

// DeleteNotification removes one notification.
func (s *SQLStore) DeleteNotification(ctx context.Context, memberID, id string) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM notifications WHERE id = ? AND member_id = ?`), id, memberID)
	if err != nil {
		return model.Dependency("delete notification", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.NotFound("notification", id)
	}
	return nil
}

// DeleteReadOlderThan removes read notifications created before cutoff.
func (s *SQLStore) DeleteReadOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM notifications WHERE is_read = ? AND created_at < ?`), true, cutoff)
	if err != nil {
		return 0, model.Dependency("purge notifications", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, model.Dependency("purge notifications", err)
	}
	if deleted > 0 {
		s.logger.Info("purged read notifications", zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	}
	return deleted, nil
}

// ---- notification config ----

// GetConfig returns a member's configuration, or nil when absent.
func (s *SQLStore) GetConfig(ctx context.Context, memberID string) (*model.NotificationConfig, error) {
	var cfg model.NotificationConfig
	err := s.db.GetContext(ctx, &cfg, s.q(`SELECT * FROM notification_configs WHERE member_id = ?`), memberID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, model.Dependency("get notification config", err)
	}
	return &cfg, nil
}

// UpsertConfig creates or replaces a member's configuration.
func (s *SQLStore) UpsertConfig(ctx context.Context, cfg *model.NotificationConfig) error {
	return s.withTx(ctx, "upsert notification config", func(tx *sqlx.Tx) error {
		var n int
		if err := tx.GetContext(ctx, &n, s.q(`SELECT COUNT(*) FROM notification_configs WHERE member_id = ?`), cfg.MemberID); err != nil {
			return err
		}
		query := `
			INSERT INTO notification_configs (
				member_id, expiry_enabled, expiry_advance_days, low_stock_enabled,
				waste_report_enabled, waste_report_frequency, usage_reminder_enabled,
				usage_reminder_frequency, purchase_suggestion_enabled,
				purchase_suggestion_frequency, created_at, updated_at
			) VALUES (
				:member_id, :expiry_enabled, :expiry_advance_days, :low_stock_enabled,
				:waste_report_enabled, :waste_report_frequency, :usage_reminder_enabled,
				:usage_reminder_frequency, :purchase_suggestion_enabled,
				:purchase_suggestion_frequency, :created_at, :updated_at
			)`
		if n > 0 {
			query = `
				UPDATE notification_configs SET
					expiry_enabled = :expiry_enabled, expiry_advance_days = :expiry_advance_days,
					low_stock_enabled = :low_stock_enabled, waste_report_enabled = :waste_report_enabled,
					waste_report_frequency = :waste_report_frequency,
					usage_reminder_enabled = :usage_reminder_enabled,
					usage_reminder_frequency = :usage_reminder_frequency,
					purchase_suggestion_enabled = :purchase_suggestion_enabled,
					purchase_suggestion_frequency = :purchase_suggestion_frequency,
					updated_at = :updated_at
				WHERE member_id = :member_id`
		}
		_, err := tx.NamedExecContext(ctx, query, cfg)
		return err
	})
}

// ListConfiguredMembers returns every member with a configuration, sorted.
func (s *SQLStore) ListConfiguredMembers(ctx context.Context) ([]string, error) {
	ids := []string{}
	if err := s.db.SelectContext(ctx, &ids, `SELECT member_id FROM notification_configs ORDER BY member_id`); err != nil {
		return nil, model.Dependency("list configured members", err)
	}
	return ids, nil
}

// ---- catalogs ----

// GetFood returns a food by ID.
func (s *SQLStore) GetFood(ctx context.Context, id string) (*model.Food, error) {
	var f model.Food
	err := s.db.GetContext(ctx, &f, s.q(`SELECT * FROM foods WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFound("food", id)
	}
	if err != nil {
		return nil, model.Dependency("get food", err)
	}
	return &f, nil
}

// GetFoods returns the known foods among ids.
func (s *SQLStore) GetFoods(ctx context.Context, ids []string) (map[string]model.Food, error) {
	out := make(map[string]model.Food, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In(`SELECT * FROM foods WHERE id IN (?)`, ids)
	if err != nil {
		return nil, model.Dependency("get foods", err)
	}
	var foods []model.Food
	if err := s.db.SelectContext(ctx, &foods, s.q(query), args...); err != nil {
		return nil, model.Dependency("get foods", err)
	}
	for _, f := range foods {
		out[f.ID] = f
	}
	return out, nil
}

// FindFoodByName returns the food whose name matches case-insensitively.
func (s *SQLStore) FindFoodByName(ctx context.Context, name string) (*model.Food, error) {
	var f model.Food
	err := s.db.GetContext(ctx, &f, s.q(`SELECT * FROM foods WHERE LOWER(name) = LOWER(?) ORDER BY id LIMIT 1`), name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFound("food", name)
	}
	if err != nil {
		return nil, model.Dependency("find food", err)
	}
	return &f, nil
}

// GetRecipe returns a recipe with its ingredients.
func (s *SQLStore) GetRecipe(ctx context.Context, id string) (*model.Recipe, error) {
	var r model.Recipe
	err := s.db.GetContext(ctx, &r, s.q(`SELECT * FROM recipes WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFound("recipe", id)
	}
	if err != nil {
		return nil, model.Dependency("get recipe", err)
	}
	if err := s.db.SelectContext(ctx, &r.Ingredients,
		s.q(`SELECT * FROM recipe_ingredients WHERE recipe_id = ?`), id); err != nil {
		return nil, model.Dependency("get recipe ingredients", err)
	}
	return &r, nil
}

// ListRecipes returns every recipe with ingredients, sorted by name.
func (s *SQLStore) ListRecipes(ctx context.Context) ([]model.Recipe, error) {
	recipes := []model.Recipe{}
	if err := s.db.SelectContext(ctx, &recipes, `SELECT * FROM recipes ORDER BY name, id`); err != nil {
		return nil, model.Dependency("list recipes", err)
	}
	var ingredients []model.Ingredient
	if err := s.db.SelectContext(ctx, &ingredients, `SELECT * FROM recipe_ingredients`); err != nil {
		return nil, model.Dependency("list recipe ingredients", err)
	}

	byRecipe := make(map[string][]model.Ingredient)
	for _, ing := range ingredients {
		byRecipe[ing.RecipeID] = append(byRecipe[ing.RecipeID], ing)
	}
	for i := range recipes {
		recipes[i].Ingredients = byRecipe[recipes[i].ID]
	}
	return recipes, nil
}

// RecordCook appends a cook record.
func (s *SQLStore) RecordCook(ctx context.Context, record *model.CookRecord) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO cook_history (id, member_id, recipe_id, recipe_name, servings, cooked_at)
		VALUES (:id, :member_id, :recipe_id, :recipe_name, :servings, :cooked_at)`, record)
	if err != nil {
		return model.Dependency("record cook", err)
	}
	return nil
}

// ListCooks returns a member's cook records, newest first.
func (s *SQLStore) ListCooks(ctx context.Context, memberID string, limit int) ([]model.CookRecord, error) {
	query := `SELECT * FROM cook_history WHERE member_id = ? ORDER BY cooked_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	records := []model.CookRecord{}
	if err := s.db.SelectContext(ctx, &records, s.q(query), memberID); err != nil {
		return nil, model.Dependency("list cooks", err)
	}
	return records, nil
}

// MemberExists reports whether the member is registered.
func (s *SQLStore) MemberExists(ctx context.Context, memberID string) (bool, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, s.q(`SELECT COUNT(*) FROM members WHERE id = ?`), memberID); err != nil {
		return false, model.Dependency("member exists", err)
	}
	return n > 0, nil
}

// ---- seeding ----

// SaveMember registers a member if absent.
func (s *SQLStore) SaveMember(ctx context.Context, id string) error {
	return s.withTx(ctx, "save member", func(tx *sqlx.Tx) error {
		var n int
		if err := tx.GetContext(ctx, &n, s.q(`SELECT COUNT(*) FROM members WHERE id = ?`), id); err != nil || n > 0 {
			return err
		}
		_, err := tx.ExecContext(ctx, s.q(`INSERT INTO members (id, created_at) VALUES (?, ?)`), id, time.Now().UTC())
		return err
	})
}

// SaveFood creates or replaces a catalog food.
func (s *SQLStore) SaveFood(ctx context.Context, f model.Food) error {
	return s.withTx(ctx, "save food", func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM foods WHERE id = ?`), f.ID); err != nil {
			return err
		}
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO foods (id, name, category, default_unit, calories, protein, fat, carbs)
			VALUES (:id, :name, :category, :default_unit, :calories, :protein, :fat, :carbs)`, f)
		return err
	})
}

// SaveRecipe creates or replaces a recipe and its ingredient list.
func (s *SQLStore) SaveRecipe(ctx context.Context, r model.Recipe) error {
	return s.withTx(ctx, "save recipe", func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM recipe_ingredients WHERE recipe_id = ?`), r.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM recipes WHERE id = ?`), r.ID); err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO recipes (id, name, servings) VALUES (:id, :name, :servings)`, r); err != nil {
			return err
		}
		for _, ing := range r.Ingredients {
			ing.RecipeID = r.ID
			if _, err := tx.NamedExecContext(ctx, `
				INSERT INTO recipe_ingredients (recipe_id, food_id, name, quantity, unit, optional)
				VALUES (:recipe_id, :food_id, :name, :quantity, :unit, :optional)`, ing); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetStoreStats returns row counts for the admin endpoint.
func (s *SQLStore) GetStoreStats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{"dialect": s.dialect}

	counts := map[string]string{
		"active_items":  `SELECT COUNT(*) FROM inventory_items WHERE deleted_at IS NULL`,
		"usage_events":  `SELECT COUNT(*) FROM usage_events`,
		"waste_events":  `SELECT COUNT(*) FROM waste_events`,
		"notifications": `SELECT COUNT(*) FROM notifications`,
		"members":       `SELECT COUNT(*) FROM members`,
	}
	for key, query := range counts {
		var n int64
		if err := s.db.GetContext(ctx, &n, query); err != nil {
			return nil, model.Dependency("store stats", err)
		}
		stats[key] = n
	}

	if s.dialect == DialectSQLite {
		var pageCount, pageSize int64
		s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
		s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		stats["db_size_bytes"] = pageCount * pageSize
	}
	return stats, nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Ensure SQLStore implements Store
var _ Store = (*SQLStore)(nil)
