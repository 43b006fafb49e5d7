// Package registry holds the strategy debt records attached to one vault.
package registry

import (
	"sort"

	"solana-vault-ledger/internal/domain"
	"solana-vault-ledger/internal/shares"
)

// DefaultMaxStrategies is the number of strategies a vault may carry unless
// configured otherwise.
const DefaultMaxStrategies = 10

// Registry is a working set of strategy debt records keyed by strategy
// address. It owns copies of the records it was built from; callers persist
// the result through Records and Removed.
type Registry struct {
	capacity int
	records  map[string]*domain.StrategyDebtRecord
	removed  []string
}

// New builds a registry from stored records. capacity <= 0 selects
// DefaultMaxStrategies.
func New(capacity int, records []*domain.StrategyDebtRecord) *Registry {
	if capacity <= 0 {
		capacity = DefaultMaxStrategies
	}
	r := &Registry{
		capacity: capacity,
		records:  make(map[string]*domain.StrategyDebtRecord, len(records)),
	}
	for _, rec := range records {
		r.records[rec.Key] = rec.Clone()
	}
	return r
}

// Capacity returns the maximum number of records.
func (r *Registry) Capacity() int { return r.capacity }

// Len returns the number of attached strategies.
func (r *Registry) Len() int { return len(r.records) }

// Add attaches a new strategy with zero debt.
// Returns ErrStrategyAlreadyExists if the key is present and
// ErrMaxStrategiesReached when the registry is full.
func (r *Registry) Add(rec *domain.StrategyDebtRecord) error {
	if _, exists := r.records[rec.Key]; exists {
		return domain.ErrStrategyAlreadyExists
	}
	if len(r.records) >= r.capacity {
		return domain.ErrMaxStrategiesReached
	}
	c := rec.Clone()
	c.CurrentDebt = 0
	c.IsActive = true
	r.records[c.Key] = c
	r.unremove(c.Key)
	return nil
}

// Remove detaches a strategy and returns the debt realized as a loss.
// Without force a strategy holding debt cannot be removed. With force the
// outstanding debt is written off the vault's total debt first.
func (r *Registry) Remove(v *domain.Vault, key string, force bool) (uint64, error) {
	rec, ok := r.records[key]
	if !ok {
		return 0, domain.ErrStrategyNotFound
	}
	loss := rec.CurrentDebt
	if loss > 0 {
		if !force {
			return 0, domain.ErrStrategyHasDebt
		}
		debt, err := shares.Sub(v.TotalDebt, loss)
		if err != nil {
			return 0, err
		}
		v.TotalDebt = debt
		rec.CurrentDebt = 0
	}
	delete(r.records, key)
	r.removed = append(r.removed, key)
	return loss, nil
}

// Get returns the live record for key.
func (r *Registry) Get(key string) (*domain.StrategyDebtRecord, error) {
	rec, ok := r.records[key]
	if !ok {
		return nil, domain.ErrStrategyNotFound
	}
	return rec, nil
}

// GetActive returns the live record for key, failing for inactive strategies.
func (r *Registry) GetActive(key string) (*domain.StrategyDebtRecord, error) {
	rec, err := r.Get(key)
	if err != nil {
		return nil, err
	}
	if !rec.IsActive {
		return nil, domain.ErrInactiveStrategy
	}
	return rec, nil
}

// Records returns the live records ordered by index.
func (r *Registry) Records() []*domain.StrategyDebtRecord {
	out := make([]*domain.StrategyDebtRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Index != out[j].Index {
			return out[i].Index < out[j].Index
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Removed returns the keys removed since the registry was built.
func (r *Registry) Removed() []string {
	return append([]string(nil), r.removed...)
}

// TotalDebt sums the current debt of all records.
func (r *Registry) TotalDebt() (uint64, error) {
	var total uint64
	for _, rec := range r.records {
		sum, err := shares.Add(total, rec.CurrentDebt)
		if err != nil {
			return 0, err
		}
		total = sum
	}
	return total, nil
}

func (r *Registry) unremove(key string) {
	for i, k := range r.removed {
		if k == key {
			r.removed = append(r.removed[:i], r.removed[i+1:]...)
			return
		}
	}
}
