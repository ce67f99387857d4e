package repository

import (
	"context"
	"fmt"

	"household-inventory-api/internal/model"

	"github.com/jmoiron/sqlx"
)

// MySQLMemberDirectory answers member existence from the household account database.
type MySQLMemberDirectory struct {
	db    *sqlx.DB
	table string
}

// NewMySQLMemberDirectory creates a directory over an existing MySQL pool.
// table is the accounts table holding id and is_active columns.
func NewMySQLMemberDirectory(db *sqlx.DB, table string) *MySQLMemberDirectory {
	if table == "" {
		table = "members"
	}
	return &MySQLMemberDirectory{db: db, table: table}
}

// MemberExists checks the member exists and is active.
func (r *MySQLMemberDirectory) MemberExists(ctx context.Context, memberID string) (bool, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM `%s` WHERE id = ? AND is_active = 1", r.table)

	var count int
	if err := r.db.GetContext(ctx, &count, query, memberID); err != nil {
		return false, model.Dependency("validate member", err)
	}
	return count > 0, nil
}

// Close closes the MySQL connection.
func (r *MySQLMemberDirectory) Close() error {
	return r.db.Close()
}

// Ensure MySQLMemberDirectory implements MemberDirectory
var _ MemberDirectory = (*MySQLMemberDirectory)(nil)
