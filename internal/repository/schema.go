package repository

import (
	"strings"

	"github.com/jmoiron/sqlx"
)

// Dialect names accepted by NewSQLStore. They double as database/sql driver names.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
)

// column types per dialect, substituted into schemaTemplate.
var dialectTypes = map[string]map[string]string{
	DialectSQLite: {
		"{key}":   "TEXT",
		"{text}":  "TEXT",
		"{ts}":    "DATETIME",
		"{bool}":  "INTEGER",
		"{num}":   "REAL",
		"{money}": "TEXT",
		"{int}":   "INTEGER",
	},
	DialectPostgres: {
		"{key}":   "TEXT",
		"{text}":  "TEXT",
		"{ts}":    "TIMESTAMPTZ",
		"{bool}":  "BOOLEAN",
		"{num}":   "DOUBLE PRECISION",
		"{money}": "NUMERIC(12,2)",
		"{int}":   "INTEGER",
	},
	DialectMySQL: {
		"{key}":   "VARCHAR(64)",
		"{text}":  "TEXT",
		"{ts}":    "DATETIME(6)",
		"{bool}":  "TINYINT(1)",
		"{num}":   "DOUBLE",
		"{money}": "DECIMAL(12,2)",
		"{int}":   "INT",
	},
}

// schemaTemplate is one statement per entry; MySQL rejects multi-statement Exec by default.
var schemaTemplate = []string{
	`CREATE TABLE IF NOT EXISTS members (
		id {key} PRIMARY KEY,
		created_at {ts} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS foods (
		id {key} PRIMARY KEY,
		name {key} NOT NULL,
		category {key} NOT NULL DEFAULT '',
		default_unit {key} NOT NULL DEFAULT '',
		calories {num} NOT NULL DEFAULT 0,
		protein {num} NOT NULL DEFAULT 0,
		fat {num} NOT NULL DEFAULT 0,
		carbs {num} NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS recipes (
		id {key} PRIMARY KEY,
		name {key} NOT NULL,
		servings {int} NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS recipe_ingredients (
		recipe_id {key} NOT NULL,
		food_id {key} NOT NULL,
		name {key} NOT NULL DEFAULT '',
		quantity {num} NOT NULL,
		unit {key} NOT NULL DEFAULT '',
		optional {bool} NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS inventory_items (
		id {key} PRIMARY KEY,
		member_id {key} NOT NULL,
		food_id {key} NOT NULL,
		quantity {num} NOT NULL,
		original_quantity {num} NOT NULL,
		unit {key} NOT NULL,
		expiry_date {ts} NULL,
		production_date {ts} NULL,
		status {key} NOT NULL,
		days_to_expiry {int} NULL,
		is_low_stock {bool} NOT NULL DEFAULT 0,
		min_stock_threshold {num} NULL,
		storage_location {key} NOT NULL,
		purchase_price {money} NULL,
		purchase_source {key} NOT NULL,
		notes {text} NULL,
		created_at {ts} NOT NULL,
		updated_at {ts} NOT NULL,
		deleted_at {ts} NULL
	)`,
	`CREATE INDEX idx_items_member ON inventory_items(member_id, food_id)`,
	`CREATE TABLE IF NOT EXISTS usage_events (
		id {key} PRIMARY KEY,
		item_id {key} NOT NULL,
		member_id {key} NOT NULL,
		food_id {key} NOT NULL,
		quantity {num} NOT NULL,
		reason {key} NOT NULL,
		meal_id {key} NULL,
		recipe_id {key} NULL,
		note {text} NULL,
		used_at {ts} NOT NULL
	)`,
	`CREATE INDEX idx_usage_member ON usage_events(member_id, used_at)`,
	`CREATE TABLE IF NOT EXISTS waste_events (
		id {key} PRIMARY KEY,
		item_id {key} NOT NULL,
		member_id {key} NOT NULL,
		food_id {key} NOT NULL,
		quantity {num} NOT NULL,
		reason {key} NOT NULL,
		estimated_cost {money} NOT NULL,
		prevention_tip {text} NULL,
		wasted_at {ts} NOT NULL
	)`,
	`CREATE INDEX idx_waste_member ON waste_events(member_id, wasted_at)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id {key} PRIMARY KEY,
		member_id {key} NOT NULL,
		type {key} NOT NULL,
		title {text} NOT NULL,
		message {text} NOT NULL,
		priority {key} NOT NULL,
		payload {text} NULL,
		dedup_key {key} NOT NULL,
		is_read {bool} NOT NULL DEFAULT 0,
		created_at {ts} NOT NULL,
		read_at {ts} NULL,
		scheduled_for {ts} NULL,
		expires_at {ts} NULL
	)`,
	`CREATE INDEX idx_notifications_dedup ON notifications(member_id, type, dedup_key)`,
	`CREATE TABLE IF NOT EXISTS notification_configs (
		member_id {key} PRIMARY KEY,
		expiry_enabled {bool} NOT NULL,
		expiry_advance_days {int} NOT NULL,
		low_stock_enabled {bool} NOT NULL,
		waste_report_enabled {bool} NOT NULL,
		waste_report_frequency {key} NOT NULL,
		usage_reminder_enabled {bool} NOT NULL,
		usage_reminder_frequency {key} NOT NULL,
		purchase_suggestion_enabled {bool} NOT NULL,
		purchase_suggestion_frequency {key} NOT NULL,
		created_at {ts} NOT NULL,
		updated_at {ts} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS cook_history (
		id {key} PRIMARY KEY,
		member_id {key} NOT NULL,
		recipe_id {key} NOT NULL,
		recipe_name {key} NOT NULL,
		servings {int} NOT NULL,
		cooked_at {ts} NOT NULL
	)`,
}

// schemaFor renders the DDL for a dialect.
func schemaFor(dialect string) []string {
	types := dialectTypes[dialect]
	stmts := make([]string, 0, len(schemaTemplate))
	for _, tmpl := range schemaTemplate {
		stmt := tmpl
		for placeholder, typ := range types {
			stmt = strings.ReplaceAll(stmt, placeholder, typ)
		}
		if dialect == DialectPostgres {
			// BOOLEAN columns take FALSE, not 0.
			stmt = strings.ReplaceAll(stmt, "BOOLEAN NOT NULL DEFAULT 0", "BOOLEAN NOT NULL DEFAULT FALSE")
		}
		stmts = append(stmts, stmt)
	}
	return stmts
}

// createTables applies the schema. Index creation is tolerated to fail when the index exists,
// since MySQL has no CREATE INDEX IF NOT EXISTS.
func createTables(db *sqlx.DB, dialect string) error {
	for _, stmt := range schemaFor(dialect) {
		if strings.HasPrefix(stmt, "CREATE INDEX") {
			if dialect != DialectMySQL {
				stmt = strings.Replace(stmt, "CREATE INDEX", "CREATE INDEX IF NOT EXISTS", 1)
			}
			if _, err := db.Exec(stmt); err != nil && dialect != DialectMySQL {
				return err
			}
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
