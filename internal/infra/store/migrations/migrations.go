package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/migrate"
)

var Migrations = migrate.NewMigrations()

// statements picks the DDL matching the connected dialect.
func statements(db *bun.DB, pg, sqlite []string) ([]string, error) {
	switch db.Dialect().Name() {
	case dialect.PG:
		return pg, nil
	case dialect.SQLite:
		return sqlite, nil
	default:
		return nil, fmt.Errorf("unsupported dialect %s", db.Dialect().Name())
	}
}

func execAll(ctx context.Context, db *bun.DB, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}
	return nil
}
