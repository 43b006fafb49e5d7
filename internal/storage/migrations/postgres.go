package migrations

import (
	"context"
	"fmt"
	"strings"

	"solana-vault-ledger/internal/storage/postgres"
)

// RunPostgresMigrations applies all embedded SQL files in lexical order.
// Migrations are expected to be idempotent.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, contents, err := sqlFiles(PostgresFS, "postgres")
	if err != nil {
		return err
	}

	for _, file := range files {
		data := contents[file]
		if strings.TrimSpace(data) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, data); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}

	return nil
}
