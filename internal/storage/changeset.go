package storage

import "solana-vault-ledger/internal/domain"

// ChangeKind selects how a changeset treats its vault.
type ChangeKind int

const (
	// ChangeUpdate overwrites an existing vault.
	ChangeUpdate ChangeKind = iota
	// ChangeCreate inserts a new vault.
	ChangeCreate
	// ChangeDelete removes the vault together with its strategies and positions.
	ChangeDelete
)

// Changeset is everything one ledger operation writes.
type Changeset struct {
	Kind  ChangeKind
	Vault *domain.Vault

	// Strategies are upserted.
	Strategies []*domain.StrategyDebtRecord
	// RemovedStrategies are deleted by key.
	RemovedStrategies []string
	// Positions are upserted.
	Positions []*domain.UserPosition
}

// Validate checks the changeset is self-consistent.
func (cs *Changeset) Validate() error {
	if cs == nil || cs.Vault == nil || cs.Vault.Key == "" {
		return ErrInvalidInput
	}
	for _, s := range cs.Strategies {
		if s == nil || s.Key == "" || s.Vault != cs.Vault.Key {
			return ErrInvalidInput
		}
	}
	for _, p := range cs.Positions {
		if p == nil || p.Owner == "" || p.Vault != cs.Vault.Key {
			return ErrInvalidInput
		}
	}
	return nil
}
