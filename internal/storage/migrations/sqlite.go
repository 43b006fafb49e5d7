package migrations

import (
	"context"
	"database/sql"
)

// RunSQLiteMigrations applies the embedded SQLite files statement by statement.
func RunSQLiteMigrations(ctx context.Context, db *sql.DB) error {
	return applyEach(ctx, SQLiteFS, "sqlite", func(ctx context.Context, stmt string) error {
		_, err := db.ExecContext(ctx, stmt)
		return err
	})
}
