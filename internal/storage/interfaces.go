package storage

import (
	"context"

	"solana-vault-ledger/internal/domain"
)

// LedgerStore provides access to vault, strategy debt and position state.
// All writes go through Commit so one operation's changes land together.
type LedgerStore interface {
	// GetVault retrieves a vault by key. Returns ErrNotFound if not exists.
	GetVault(ctx context.Context, vaultKey string) (*domain.Vault, error)

	// ListVaults retrieves all vaults ordered by key.
	ListVaults(ctx context.Context) ([]*domain.Vault, error)

	// GetStrategies retrieves the strategy records of a vault ordered by index.
	GetStrategies(ctx context.Context, vaultKey string) ([]*domain.StrategyDebtRecord, error)

	// GetPosition retrieves a user position. Returns ErrNotFound if not exists.
	GetPosition(ctx context.Context, vaultKey, owner string) (*domain.UserPosition, error)

	// ListPositions retrieves every position of a vault ordered by owner.
	ListPositions(ctx context.Context, vaultKey string) ([]*domain.UserPosition, error)

	// Commit applies a changeset atomically. Returns ErrDuplicateKey when
	// creating a vault that exists and ErrNotFound when updating one that does not.
	Commit(ctx context.Context, cs *Changeset) error
}

// EventStore provides access to the append-only ledger event history.
type EventStore interface {
	// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate event_id.
	InsertBulk(ctx context.Context, events []*domain.Event) error

	// GetByVault retrieves all events for a vault, ordered by timestamp ASC, event_id ASC.
	GetByVault(ctx context.Context, vaultKey string) ([]*domain.Event, error)

	// GetByTimeRange retrieves events for a vault within [start, end] (inclusive, Unix ms).
	GetByTimeRange(ctx context.Context, vaultKey string, start, end int64) ([]*domain.Event, error)
}

// FlowReader is implemented by event stores that can roll up daily flows.
type FlowReader interface {
	// DailyFlows returns a vault's per-day flow totals ordered by day.
	DailyFlows(ctx context.Context, vaultKey string) ([]domain.DailyFlow, error)
}
