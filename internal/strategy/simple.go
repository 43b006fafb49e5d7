package strategy

import (
	"context"

	"solana-vault-ledger/internal/domain"
)

// SimpleStrategy holds deposits 1:1 and releases them on demand.
type SimpleStrategy struct {
	holdings
}

// NewSimpleStrategy creates a SimpleStrategy. A nil depositCap means no cap.
func NewSimpleStrategy(b Binding, deps Deps, depositCap *uint64) *SimpleStrategy {
	return &SimpleStrategy{holdings{bind: b, deps: deps, depositCap: depositCap}}
}

// Type returns SIMPLE.
func (s *SimpleStrategy) Type() string { return domain.StrategyTypeSimple }

// Deposit moves amount into the strategy.
func (s *SimpleStrategy) Deposit(ctx context.Context, amount uint64) (uint64, error) {
	if err := s.pull(ctx, amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// Withdraw returns amount to the vault.
func (s *SimpleStrategy) Withdraw(ctx context.Context, amount uint64) (uint64, error) {
	if err := s.push(ctx, amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// AvailableWithdraw is the full holdings.
func (s *SimpleStrategy) AvailableWithdraw(ctx context.Context) (uint64, error) {
	return s.TotalAssets(ctx)
}
