package vault

import (
	"context"
	"fmt"

	"solana-vault-ledger/internal/address"
	"solana-vault-ledger/internal/strategy"
)

// Faucet mints amount of mint into owner's token account. It only touches
// custody and exists to fund simulated depositors.
func (s *Service) Faucet(ctx context.Context, owner, mint string, amount uint64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ownerAddr, err := address.Parse(owner)
	if err != nil {
		return "", fmt.Errorf("owner %q: %w", owner, err)
	}
	acct, err := s.TokenAccount(owner, mint)
	if err != nil {
		return "", err
	}
	if err := s.bank.Open(acct, mint, ownerAddr.String()); err != nil {
		return "", err
	}
	if err := s.bank.MintTo(ctx, mint, acct, amount); err != nil {
		return "", err
	}
	return acct, nil
}

// SimulatePnL moves a strategy's holdings by gain or loss without touching
// the ledger. The next report picks the change up.
func (s *Service) SimulatePnL(ctx context.Context, vaultKey, strategyKey string, gain, loss uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.loadVault(ctx, vaultKey)
	if err != nil {
		return err
	}
	rec, err := s.strategyRecord(ctx, vaultKey, strategyKey)
	if err != nil {
		return err
	}
	a, err := s.adapters.Resolve(v, rec)
	if err != nil {
		return err
	}
	sim, ok := a.(strategy.Simulator)
	if !ok {
		return fmt.Errorf("strategy %s (%s) cannot simulate pnl", strategyKey, a.Type())
	}
	if gain > 0 {
		if err := sim.Harvest(ctx, gain); err != nil {
			return err
		}
	}
	if loss > 0 {
		if err := sim.Slash(ctx, loss); err != nil {
			return err
		}
	}
	return nil
}
