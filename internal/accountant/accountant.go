// Package accountant assesses vault fees and tracks what has accrued.
package accountant

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"solana-vault-ledger/internal/domain"
	"solana-vault-ledger/internal/shares"
)

// Accountant errors
var (
	ErrAccountantNotFound = errors.New("accountant not found")
	ErrInvalidFee         = errors.New("fee must be below 10000 bps")
	ErrMissingRecipient   = errors.New("fee recipient required")
)

// Accountant converts gross inflows and profits into fees.
type Accountant interface {
	// AssessEntryFee returns the fee charged on a deposit of amount.
	AssessEntryFee(ctx context.Context, amount uint64) (uint64, error)
	// AssessPerformanceFee returns the fee charged on gain and accrues it.
	AssessPerformanceFee(ctx context.Context, gain uint64) (uint64, error)
	// FeeRecipient returns the account that receives fee shares.
	FeeRecipient() string
}

// Generic charges flat basis-point fees.
type Generic struct {
	mu    sync.Mutex
	state domain.FeeAccrual
}

var _ Accountant = (*Generic)(nil)

// NewGeneric creates a Generic accountant.
func NewGeneric(key, recipient string, entryFeeBps, performanceFeeBps uint16) (*Generic, error) {
	if recipient == "" {
		return nil, ErrMissingRecipient
	}
	if entryFeeBps >= domain.MaxBps || performanceFeeBps >= domain.MaxBps {
		return nil, ErrInvalidFee
	}
	return &Generic{state: domain.FeeAccrual{
		Accountant:        key,
		Recipient:         recipient,
		EntryFeeBps:       entryFeeBps,
		PerformanceFeeBps: performanceFeeBps,
	}}, nil
}

// AssessEntryFee returns amount * EntryFeeBps / 10000.
func (g *Generic) AssessEntryFee(_ context.Context, amount uint64) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return shares.Bps(amount, g.state.EntryFeeBps), nil
}

// AssessPerformanceFee returns gain * PerformanceFeeBps / 10000 and adds it to
// the accrued balance.
func (g *Generic) AssessPerformanceFee(_ context.Context, gain uint64) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	fee := shares.Bps(gain, g.state.PerformanceFeeBps)
	accrued, err := shares.Add(g.state.AccruedFees, fee)
	if err != nil {
		return 0, err
	}
	g.state.AccruedFees = accrued
	return fee, nil
}

// FeeRecipient returns the configured recipient.
func (g *Generic) FeeRecipient() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.Recipient
}

// SetFees updates both fee rates.
func (g *Generic) SetFees(entryFeeBps, performanceFeeBps uint16) error {
	if entryFeeBps >= domain.MaxBps || performanceFeeBps >= domain.MaxBps {
		return ErrInvalidFee
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state.EntryFeeBps = entryFeeBps
	g.state.PerformanceFeeBps = performanceFeeBps
	return nil
}

// Accrual returns a copy of the fee state.
func (g *Generic) Accrual() domain.FeeAccrual {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Snapshot captures the fee state.
func (g *Generic) Snapshot() func() {
	g.mu.Lock()
	saved := g.state
	g.mu.Unlock()
	return func() {
		g.mu.Lock()
		g.state = saved
		g.mu.Unlock()
	}
}

// Registry resolves accountants by key.
type Registry struct {
	mu          sync.RWMutex
	accountants map[string]*Generic
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{accountants: make(map[string]*Generic)}
}

// Register adds or replaces an accountant.
func (r *Registry) Register(key string, g *Generic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accountants[key] = g
}

// Get returns the accountant registered under key.
func (r *Registry) Get(key string) (*Generic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.accountants[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountantNotFound, key)
	}
	return g, nil
}

// Lookup returns the accountant registered under key.
func (r *Registry) Lookup(key string) (Accountant, error) {
	g, err := r.Get(key)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Accruals returns the fee state of every accountant ordered by key.
func (r *Registry) Accruals() []domain.FeeAccrual {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.FeeAccrual, 0, len(r.accountants))
	for _, g := range r.accountants {
		out = append(out, g.Accrual())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Accountant < out[j].Accountant })
	return out
}
