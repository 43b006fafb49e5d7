package strategy

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"solana-vault-ledger/internal/domain"
)

// Factory errors
var (
	ErrUnknownStrategyType = errors.New("unknown strategy type")
	ErrMissingLockPeriod   = errors.New("TIME_LOCKED requires LockPeriodMs")
	ErrInvalidLockPeriod   = errors.New("TIME_LOCKED LockPeriodMs must be positive")
	ErrMissingSlippageBps  = errors.New("AMM requires SlippageBps")
	ErrInvalidSlippageBps  = errors.New("AMM SlippageBps must be below 10000")
	ErrMissingBinding      = errors.New("adapter binding requires key, mint and token accounts")
)

// Validate checks the parameters required by the config's strategy type.
func Validate(cfg domain.StrategyConfig) error {
	switch cfg.StrategyType {
	case domain.StrategyTypeSimple:
		return nil
	case domain.StrategyTypeTimeLocked:
		if cfg.LockPeriodMs == nil {
			return ErrMissingLockPeriod
		}
		if *cfg.LockPeriodMs <= 0 {
			return ErrInvalidLockPeriod
		}
		return nil
	case domain.StrategyTypeAMM:
		if cfg.SlippageBps == nil {
			return ErrMissingSlippageBps
		}
		if *cfg.SlippageBps >= domain.MaxBps {
			return ErrInvalidSlippageBps
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStrategyType, cfg.StrategyType)
	}
}

// FromConfig decodes an adapter from the type tag stored with a record.
func FromConfig(cfg domain.StrategyConfig, b Binding, deps Deps) (Adapter, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	if b.Key == "" || b.Mint == "" || b.TokenAccount == "" || b.VaultTokenAccount == "" {
		return nil, ErrMissingBinding
	}

	switch cfg.StrategyType {
	case domain.StrategyTypeTimeLocked:
		lock := time.Duration(*cfg.LockPeriodMs) * time.Millisecond
		return NewTimeLockedStrategy(b, deps, cfg.DepositCap, lock), nil
	case domain.StrategyTypeAMM:
		return NewAMMStrategy(b, deps, cfg.DepositCap, *cfg.SlippageBps), nil
	default:
		return NewSimpleStrategy(b, deps, cfg.DepositCap), nil
	}
}

// Set keeps one live adapter per attached strategy.
type Set struct {
	mu       sync.RWMutex
	deps     Deps
	adapters map[string]Adapter
}

// NewSet creates an empty adapter set.
func NewSet(deps Deps) *Set {
	return &Set{deps: deps, adapters: make(map[string]Adapter)}
}

// Resolve returns the adapter for rec, decoding it from its config on first
// use.
func (s *Set) Resolve(v *domain.Vault, rec *domain.StrategyDebtRecord) (Adapter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.adapters[rec.Key]; ok {
		return a, nil
	}
	a, err := FromConfig(rec.Config, BindingFor(v, rec), s.deps)
	if err != nil {
		return nil, fmt.Errorf("decode strategy %s: %w", rec.Key, err)
	}
	s.adapters[rec.Key] = a
	return a, nil
}

// Put registers an adapter built elsewhere, replacing any existing one.
func (s *Set) Put(a Adapter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adapters[a.Key()] = a
}

// Get returns the live adapter for key.
func (s *Set) Get(key string) (Adapter, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.adapters[key]
	return a, ok
}

// Remove drops the adapter for key.
func (s *Set) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.adapters, key)
}

// BindingFor builds the account binding of a strategy attached to v.
func BindingFor(v *domain.Vault, rec *domain.StrategyDebtRecord) Binding {
	return Binding{
		Key:               rec.Key,
		Mint:              v.UnderlyingMint,
		TokenAccount:      rec.TokenAccount,
		VaultTokenAccount: v.TokenAccount,
	}
}
