// Package sqlite is an embedded storage.EventStore on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"solana-vault-ledger/internal/domain"
	"solana-vault-ledger/internal/observability"
	"solana-vault-ledger/internal/storage"
	"solana-vault-ledger/internal/storage/migrations"
)

// EventStore implements storage.EventStore using SQLite.
type EventStore struct {
	db *sql.DB
}

// Compile-time interface check.
var (
	_ storage.EventStore = (*EventStore)(nil)
	_ storage.FlowReader = (*EventStore)(nil)
)

// Open opens or creates the database at path and applies migrations.
func Open(ctx context.Context, path string) (*EventStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; readers share the connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrations.RunSQLiteMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &EventStore{db: db}, nil
}

// Close closes the database.
func (s *EventStore) Close() error {
	return s.db.Close()
}

const eventColumns = `
	event_id, type, vault, strategy, actor, timestamp,
	amount, shares, gain, loss, fee, delta,
	total_idle, total_debt, total_shares, current_debt`

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate event_id.
func (s *EventStore) InsertBulk(ctx context.Context, events []*domain.Event) (err error) {
	if len(events) == 0 {
		return nil
	}
	for _, e := range events {
		if e == nil || e.EventID == "" || e.Vault == "" {
			return storage.ErrInvalidInput
		}
	}
	defer observe("insert_bulk", time.Now(), &err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO ledger_events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		delta, err := json.Marshal(e.Delta)
		if err != nil {
			return fmt.Errorf("encode delta: %w", err)
		}
		_, err = stmt.ExecContext(ctx,
			e.EventID, string(e.Type), e.Vault, e.Strategy, e.Actor, e.Timestamp,
			u64(e.Amount), u64(e.Shares), u64(e.Gain), u64(e.Loss), u64(e.Fee), string(delta),
			u64(e.TotalIdle), u64(e.TotalDebt), u64(e.TotalShares), u64(e.CurrentDebt),
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByVault retrieves all events for a vault, ordered by timestamp ASC, event_id ASC.
func (s *EventStore) GetByVault(ctx context.Context, vaultKey string) (_ []*domain.Event, err error) {
	defer observe("get_by_vault", time.Now(), &err)

	return s.query(ctx, `SELECT `+eventColumns+`
		FROM ledger_events
		WHERE vault = ?
		ORDER BY timestamp ASC, event_id ASC`, vaultKey)
}

// GetByTimeRange retrieves events for a vault within [start, end] (inclusive, Unix ms).
func (s *EventStore) GetByTimeRange(ctx context.Context, vaultKey string, start, end int64) (_ []*domain.Event, err error) {
	defer observe("get_by_time_range", time.Now(), &err)

	return s.query(ctx, `SELECT `+eventColumns+`
		FROM ledger_events
		WHERE vault = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC, event_id ASC`, vaultKey, start, end)
}

// DailyFlows rolls a vault's events up into per-day totals. Amounts are
// stored as text, so the rollup runs in Go rather than in SQL.
func (s *EventStore) DailyFlows(ctx context.Context, vaultKey string) ([]domain.DailyFlow, error) {
	events, err := s.GetByVault(ctx, vaultKey)
	if err != nil {
		return nil, err
	}
	return domain.RollupDailyFlows(events), nil
}

func (s *EventStore) query(ctx context.Context, query string, args ...any) ([]*domain.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []*domain.Event
	for rows.Next() {
		var (
			e                               domain.Event
			evtType, delta                  string
			amount, shares, gain, loss, fee string
			idle, debt, totalShares, cur    string
		)
		err := rows.Scan(
			&e.EventID, &evtType, &e.Vault, &e.Strategy, &e.Actor, &e.Timestamp,
			&amount, &shares, &gain, &loss, &fee, &delta,
			&idle, &debt, &totalShares, &cur,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Type = domain.EventType(evtType)
		if err := json.Unmarshal([]byte(delta), &e.Delta); err != nil {
			return nil, fmt.Errorf("decode delta: %w", err)
		}
		err = parseAll(
			field{amount, &e.Amount}, field{shares, &e.Shares}, field{gain, &e.Gain}, field{loss, &e.Loss}, field{fee, &e.Fee},
			field{idle, &e.TotalIdle}, field{debt, &e.TotalDebt}, field{totalShares, &e.TotalShares}, field{cur, &e.CurrentDebt},
		)
		if err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

// isDuplicateKeyError checks if error is a primary key or unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type field struct {
	text string
	dst  *uint64
}

func parseAll(fields ...field) error {
	for _, f := range fields {
		n, err := strconv.ParseUint(f.text, 10, 64)
		if err != nil {
			return fmt.Errorf("parse amount %q: %w", f.text, err)
		}
		*f.dst = n
	}
	return nil
}

func u64(n uint64) string {
	return strconv.FormatUint(n, 10)
}

func observe(operation string, start time.Time, err *error) {
	observability.RecordDBQuery("sqlite", operation, time.Since(start).Seconds(), *err)
}
