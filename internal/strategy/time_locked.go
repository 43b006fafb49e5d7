package strategy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"solana-vault-ledger/internal/domain"
)

// tranche is one deposit and the time it unlocks.
type tranche struct {
	amount   uint64
	unlockAt time.Time
}

// TimeLockedStrategy locks every deposit for a fixed period. Only unlocked
// principal (and any gain above principal) can be withdrawn.
type TimeLockedStrategy struct {
	holdings
	LockPeriod time.Duration

	mu       sync.Mutex
	tranches []tranche
}

// NewTimeLockedStrategy creates a TimeLockedStrategy.
func NewTimeLockedStrategy(b Binding, deps Deps, depositCap *uint64, lockPeriod time.Duration) *TimeLockedStrategy {
	return &TimeLockedStrategy{
		holdings:   holdings{bind: b, deps: deps, depositCap: depositCap},
		LockPeriod: lockPeriod,
	}
}

// Type returns TIME_LOCKED.
func (s *TimeLockedStrategy) Type() string { return domain.StrategyTypeTimeLocked }

// Deposit moves amount in and locks it until now + LockPeriod.
func (s *TimeLockedStrategy) Deposit(ctx context.Context, amount uint64) (uint64, error) {
	if err := s.pull(ctx, amount); err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.tranches = append(s.tranches, tranche{amount: amount, unlockAt: s.deps.now().Add(s.LockPeriod)})
	s.mu.Unlock()
	return amount, nil
}

// AvailableWithdraw returns holdings not covered by a locked tranche.
func (s *TimeLockedStrategy) AvailableWithdraw(ctx context.Context) (uint64, error) {
	total, err := s.TotalAssets(ctx)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	locked := s.lockedAmount()
	s.mu.Unlock()
	if locked >= total {
		return 0, nil
	}
	return total - locked, nil
}

// Withdraw releases amount if enough is unlocked, consuming the oldest
// unlocked tranches first.
func (s *TimeLockedStrategy) Withdraw(ctx context.Context, amount uint64) (uint64, error) {
	available, err := s.AvailableWithdraw(ctx)
	if err != nil {
		return 0, err
	}
	if amount > available {
		return 0, fmt.Errorf("%w: requested %d, unlocked %d", ErrLocked, amount, available)
	}
	if err := s.push(ctx, amount); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.deps.now()
	remaining := amount
	kept := s.tranches[:0]
	for _, t := range s.tranches {
		if remaining > 0 && !t.unlockAt.After(now) {
			if t.amount <= remaining {
				remaining -= t.amount
				continue
			}
			t.amount -= remaining
			remaining = 0
		}
		kept = append(kept, t)
	}
	s.tranches = kept
	return amount, nil
}

// Locked returns the principal still under lock.
func (s *TimeLockedStrategy) Locked() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lockedAmount()
}

// lockedAmount requires s.mu.
func (s *TimeLockedStrategy) lockedAmount() uint64 {
	now := s.deps.now()
	var locked uint64
	for _, t := range s.tranches {
		if t.unlockAt.After(now) {
			locked += t.amount
		}
	}
	return locked
}

// Snapshot captures the tranche schedule.
func (s *TimeLockedStrategy) Snapshot() func() {
	s.mu.Lock()
	saved := append([]tranche(nil), s.tranches...)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.tranches = saved
		s.mu.Unlock()
	}
}
