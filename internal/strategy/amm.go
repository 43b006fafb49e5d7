package strategy

import (
	"context"

	"solana-vault-ledger/internal/domain"
	"solana-vault-ledger/internal/shares"
)

// AMMStrategy models liquidity parked in a pool: withdrawals swap out through
// the pool and lose SlippageBps of the requested amount on the way.
type AMMStrategy struct {
	holdings
	SlippageBps uint16
}

// NewAMMStrategy creates an AMMStrategy.
func NewAMMStrategy(b Binding, deps Deps, depositCap *uint64, slippageBps uint16) *AMMStrategy {
	return &AMMStrategy{
		holdings:    holdings{bind: b, deps: deps, depositCap: depositCap},
		SlippageBps: slippageBps,
	}
}

// Type returns AMM.
func (s *AMMStrategy) Type() string { return domain.StrategyTypeAMM }

// Deposit moves amount into the pool.
func (s *AMMStrategy) Deposit(ctx context.Context, amount uint64) (uint64, error) {
	if err := s.pull(ctx, amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// Withdraw removes amount from the pool and delivers it net of slippage.
// The slippage leaves the system.
func (s *AMMStrategy) Withdraw(ctx context.Context, amount uint64) (uint64, error) {
	total, err := s.TotalAssets(ctx)
	if err != nil {
		return 0, err
	}
	if amount > total {
		return 0, ErrInsufficientHoldings
	}

	slippage := shares.Bps(amount, s.SlippageBps)
	delivered := amount - slippage
	if err := s.push(ctx, delivered); err != nil {
		return 0, err
	}
	if err := s.deps.Custody.Burn(ctx, s.bind.Mint, s.bind.TokenAccount, slippage); err != nil {
		return 0, err
	}
	return delivered, nil
}

// AvailableWithdraw is the full pool position.
func (s *AMMStrategy) AvailableWithdraw(ctx context.Context) (uint64, error) {
	return s.TotalAssets(ctx)
}
