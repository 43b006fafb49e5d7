package vault

import (
	"context"
	"fmt"

	"solana-vault-ledger/internal/domain"
	"solana-vault-ledger/internal/roles"
	"solana-vault-ledger/internal/shares"
	"solana-vault-ledger/internal/strategy"
)

// UpdateDebt moves capital between idle and a strategy until the strategy's
// debt approaches newDebt. The amount actually moved is bounded by the
// strategy's liquidity and the vault's minimum idle.
func (s *Service) UpdateDebt(ctx context.Context, actor, vaultKey, strategyKey string, newDebt uint64) (*domain.Event, error) {
	return s.mutate(ctx, "update_debt", actor, vaultKey, func(o *op) error {
		if err := o.require(ctx, roles.StrategiesManager); err != nil {
			return err
		}
		rec, err := o.reg.Get(strategyKey)
		if err != nil {
			return err
		}
		if newDebt == rec.CurrentDebt {
			return domain.ErrSameDebt
		}
		a, err := o.adapter(rec)
		if err != nil {
			return err
		}

		var moved uint64
		if newDebt < rec.CurrentDebt {
			moved, err = o.decreaseDebt(ctx, rec, a, rec.CurrentDebt-newDebt)
		} else {
			moved, err = o.increaseDebt(ctx, rec, a, newDebt)
		}
		if err != nil {
			return err
		}
		rec.LastUpdate = o.now

		o.event.Type = domain.EventDebtUpdated
		o.event.Strategy = rec.Key
		o.event.Amount = moved
		return nil
	})
}

func (o *op) decreaseDebt(ctx context.Context, rec *domain.StrategyDebtRecord, a strategy.Adapter, target uint64) (uint64, error) {
	v := o.vault

	// Pull extra to refill the minimum idle.
	idleAfter, err := shares.Add(v.TotalIdle, target)
	if err != nil {
		return 0, err
	}
	if idleAfter < v.MinimumTotalIdle {
		target = min(v.MinimumTotalIdle-v.TotalIdle, rec.CurrentDebt)
	}

	total, err := a.TotalAssets(ctx)
	if err != nil {
		return 0, fmt.Errorf("strategy assets: %w", err)
	}
	if total < rec.CurrentDebt {
		return 0, fmt.Errorf("%w: assets %d < debt %d", domain.ErrUnrealisedLosses, total, rec.CurrentDebt)
	}
	avail, err := a.AvailableWithdraw(ctx)
	if err != nil {
		return 0, fmt.Errorf("available withdraw: %w", err)
	}
	if avail == 0 {
		return 0, domain.ErrCannotWithdraw
	}
	target = min(target, avail)

	pre, err := o.vaultBalance(ctx)
	if err != nil {
		return 0, err
	}
	if _, err := a.Withdraw(ctx, target); err != nil {
		return 0, fmt.Errorf("strategy withdraw: %w", err)
	}
	post, err := o.vaultBalance(ctx)
	if err != nil {
		return 0, err
	}
	if post < pre {
		return 0, fmt.Errorf("%w: vault balance fell during withdraw", domain.ErrMathOverflow)
	}
	actual := post - pre
	if actual == 0 {
		return 0, domain.ErrCannotWithdraw
	}

	if v.TotalIdle, err = shares.Add(v.TotalIdle, actual); err != nil {
		return 0, err
	}
	cut := min(actual, rec.CurrentDebt)
	if v.TotalDebt, err = shares.Sub(v.TotalDebt, cut); err != nil {
		return 0, err
	}
	rec.CurrentDebt -= cut
	return actual, nil
}

func (o *op) increaseDebt(ctx context.Context, rec *domain.StrategyDebtRecord, a strategy.Adapter, newDebt uint64) (uint64, error) {
	v := o.vault

	if !rec.IsActive {
		return 0, domain.ErrInactiveStrategy
	}
	if v.IsShutdown {
		return 0, domain.ErrVaultShutdown
	}
	if newDebt > rec.MaxDebt {
		return 0, fmt.Errorf("%w: %d > %d", domain.ErrDebtHigherThanMaxDebt, newDebt, rec.MaxDebt)
	}
	target := newDebt - rec.CurrentDebt

	avail, err := a.AvailableDeposit(ctx)
	if err != nil {
		return 0, fmt.Errorf("available deposit: %w", err)
	}
	if avail == 0 {
		return 0, domain.ErrCannotDeposit
	}
	target = min(target, avail)

	if v.TotalIdle <= v.MinimumTotalIdle {
		return 0, fmt.Errorf("%w: idle %d at minimum %d", domain.ErrInsufficientFunds, v.TotalIdle, v.MinimumTotalIdle)
	}
	target = min(target, v.TotalIdle-v.MinimumTotalIdle)

	pre, err := o.vaultBalance(ctx)
	if err != nil {
		return 0, err
	}
	if _, err := a.Deposit(ctx, target); err != nil {
		return 0, fmt.Errorf("strategy deposit: %w", err)
	}
	post, err := o.vaultBalance(ctx)
	if err != nil {
		return 0, err
	}
	if post > pre {
		return 0, fmt.Errorf("%w: vault balance rose during deposit", domain.ErrMathOverflow)
	}
	moved := pre - post
	if moved == 0 {
		return 0, domain.ErrCannotDeposit
	}

	if v.TotalIdle, err = shares.Sub(v.TotalIdle, moved); err != nil {
		return 0, err
	}
	if v.TotalDebt, err = shares.Add(v.TotalDebt, moved); err != nil {
		return 0, err
	}
	if rec.CurrentDebt, err = shares.Add(rec.CurrentDebt, moved); err != nil {
		return 0, err
	}
	return moved, nil
}
