package memory

import (
	"context"
	"sort"
	"sync"

	"solana-vault-ledger/internal/domain"
	"solana-vault-ledger/internal/storage"
)

// LedgerStore is an in-memory implementation of storage.LedgerStore.
type LedgerStore struct {
	mu         sync.RWMutex
	vaults     map[string]*domain.Vault                          // keyed by vault key
	strategies map[string]map[string]*domain.StrategyDebtRecord // vault -> strategy
	positions  map[string]map[string]*domain.UserPosition       // vault -> owner
}

// NewLedgerStore creates a new in-memory ledger store.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		vaults:     make(map[string]*domain.Vault),
		strategies: make(map[string]map[string]*domain.StrategyDebtRecord),
		positions:  make(map[string]map[string]*domain.UserPosition),
	}
}

// Compile-time interface check.
var _ storage.LedgerStore = (*LedgerStore)(nil)

// GetVault retrieves a vault by key. Returns ErrNotFound if not exists.
func (s *LedgerStore) GetVault(_ context.Context, vaultKey string) (*domain.Vault, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vaults[vaultKey]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return v.Clone(), nil
}

// ListVaults retrieves all vaults ordered by key.
func (s *LedgerStore) ListVaults(_ context.Context) ([]*domain.Vault, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Vault, 0, len(s.vaults))
	for _, v := range s.vaults {
		out = append(out, v.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// GetStrategies retrieves the strategy records of a vault ordered by index.
func (s *LedgerStore) GetStrategies(_ context.Context, vaultKey string) ([]*domain.StrategyDebtRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.StrategyDebtRecord, 0, len(s.strategies[vaultKey]))
	for _, r := range s.strategies[vaultKey] {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Index != out[j].Index {
			return out[i].Index < out[j].Index
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

// GetPosition retrieves a user position. Returns ErrNotFound if not exists.
func (s *LedgerStore) GetPosition(_ context.Context, vaultKey, owner string) (*domain.UserPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[vaultKey][owner]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return p.Clone(), nil
}

// ListPositions retrieves every position of a vault ordered by owner.
func (s *LedgerStore) ListPositions(_ context.Context, vaultKey string) ([]*domain.UserPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.UserPosition, 0, len(s.positions[vaultKey]))
	for _, p := range s.positions[vaultKey] {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Owner < out[j].Owner })
	return out, nil
}

// Commit applies a changeset atomically.
func (s *LedgerStore) Commit(_ context.Context, cs *storage.Changeset) error {
	if err := cs.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := cs.Vault.Key
	_, exists := s.vaults[key]

	// First pass: validate against current state
	switch cs.Kind {
	case storage.ChangeCreate:
		if exists {
			return storage.ErrDuplicateKey
		}
	case storage.ChangeUpdate, storage.ChangeDelete:
		if !exists {
			return storage.ErrNotFound
		}
	default:
		return storage.ErrInvalidInput
	}

	if cs.Kind == storage.ChangeDelete {
		delete(s.vaults, key)
		delete(s.strategies, key)
		delete(s.positions, key)
		return nil
	}

	// Second pass: apply
	s.vaults[key] = cs.Vault.Clone()

	if _, ok := s.strategies[key]; !ok {
		s.strategies[key] = make(map[string]*domain.StrategyDebtRecord)
	}
	for _, removed := range cs.RemovedStrategies {
		delete(s.strategies[key], removed)
	}
	for _, r := range cs.Strategies {
		s.strategies[key][r.Key] = r.Clone()
	}

	if _, ok := s.positions[key]; !ok {
		s.positions[key] = make(map[string]*domain.UserPosition)
	}
	for _, p := range cs.Positions {
		s.positions[key][p.Owner] = p.Clone()
	}

	return nil
}
