package clickhouse

import (
	"context"
	"fmt"
	"time"

	"solana-vault-ledger/internal/domain"
	"solana-vault-ledger/internal/observability"
	"solana-vault-ledger/internal/storage"
)

// EventStore implements storage.EventStore using ClickHouse.
type EventStore struct {
	conn *Conn
}

// NewEventStore creates a new EventStore.
func NewEventStore(conn *Conn) *EventStore {
	return &EventStore{conn: conn}
}

// Compile-time interface check.
var (
	_ storage.EventStore = (*EventStore)(nil)
	_ storage.FlowReader = (*EventStore)(nil)
)

const eventColumns = `
	event_id, type, vault, strategy, actor, timestamp,
	amount, shares, gain, loss, fee,
	idle_in, idle_out, debt_in, debt_out, shares_minted, shares_burned,
	total_idle, total_debt, total_shares, current_debt`

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate event_id.
func (s *EventStore) InsertBulk(ctx context.Context, events []*domain.Event) (err error) {
	if len(events) == 0 {
		return nil
	}
	defer observe("insert_bulk", time.Now(), &err)

	// ReplacingMergeTree would silently collapse duplicates, so reject them first.
	ids := make([]string, 0, len(events))
	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.EventID == "" || e.Vault == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[e.EventID] = struct{}{}
		ids = append(ids, e.EventID)
	}

	var existing uint64
	if err := s.conn.QueryRow(ctx, `SELECT count() FROM ledger_events WHERE has(?, event_id)`, ids).Scan(&existing); err != nil {
		return fmt.Errorf("check existing events: %w", err)
	}
	if existing > 0 {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO ledger_events (`+eventColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		err = batch.Append(
			e.EventID, string(e.Type), e.Vault, e.Strategy, e.Actor, e.Timestamp,
			e.Amount, e.Shares, e.Gain, e.Loss, e.Fee,
			e.Delta.IdleIn, e.Delta.IdleOut, e.Delta.DebtIn, e.Delta.DebtOut, e.Delta.SharesMinted, e.Delta.SharesBurned,
			e.TotalIdle, e.TotalDebt, e.TotalShares, e.CurrentDebt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByVault retrieves all events for a vault, ordered by timestamp ASC, event_id ASC.
func (s *EventStore) GetByVault(ctx context.Context, vaultKey string) (_ []*domain.Event, err error) {
	defer observe("get_by_vault", time.Now(), &err)

	query := `SELECT` + eventColumns + `
		FROM ledger_events FINAL
		WHERE vault = ?
		ORDER BY timestamp ASC, event_id ASC`
	return s.query(ctx, query, vaultKey)
}

// GetByTimeRange retrieves events for a vault within [start, end] (inclusive, Unix ms).
func (s *EventStore) GetByTimeRange(ctx context.Context, vaultKey string, start, end int64) (_ []*domain.Event, err error) {
	defer observe("get_by_time_range", time.Now(), &err)

	query := `SELECT` + eventColumns + `
		FROM ledger_events FINAL
		WHERE vault = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC, event_id ASC`
	return s.query(ctx, query, vaultKey, start, end)
}

// DailyFlows returns the daily flow rollup of a vault ordered by day.
func (s *EventStore) DailyFlows(ctx context.Context, vaultKey string) (_ []domain.DailyFlow, err error) {
	defer observe("daily_flows", time.Now(), &err)

	rows, err := s.conn.Query(ctx, `
		SELECT day, sum(deposited), sum(withdrawn), sum(gains), sum(losses), sum(fees)
		FROM vault_daily_flows
		WHERE vault = ?
		GROUP BY day
		ORDER BY day ASC`, vaultKey)
	if err != nil {
		return nil, fmt.Errorf("query daily flows: %w", err)
	}
	defer rows.Close()

	var out []domain.DailyFlow
	for rows.Next() {
		var f domain.DailyFlow
		if err := rows.Scan(&f.Day, &f.Deposited, &f.Withdrawn, &f.Gains, &f.Losses, &f.Fees); err != nil {
			return nil, fmt.Errorf("scan daily flow: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *EventStore) query(ctx context.Context, query string, args ...any) ([]*domain.Event, error) {
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []*domain.Event
	for rows.Next() {
		var (
			e       domain.Event
			evtType string
		)
		err := rows.Scan(
			&e.EventID, &evtType, &e.Vault, &e.Strategy, &e.Actor, &e.Timestamp,
			&e.Amount, &e.Shares, &e.Gain, &e.Loss, &e.Fee,
			&e.Delta.IdleIn, &e.Delta.IdleOut, &e.Delta.DebtIn, &e.Delta.DebtOut, &e.Delta.SharesMinted, &e.Delta.SharesBurned,
			&e.TotalIdle, &e.TotalDebt, &e.TotalShares, &e.CurrentDebt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Type = domain.EventType(evtType)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

func observe(operation string, start time.Time, err *error) {
	observability.RecordDBQuery("clickhouse", operation, time.Since(start).Seconds(), *err)
}
