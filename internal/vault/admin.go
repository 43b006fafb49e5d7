package vault

import (
	"context"
	"errors"
	"fmt"

	"solana-vault-ledger/internal/address"
	"solana-vault-ledger/internal/domain"
	"solana-vault-ledger/internal/observability"
	"solana-vault-ledger/internal/roles"
	"solana-vault-ledger/internal/storage"
	"solana-vault-ledger/internal/strategy"
)

// InitVaultParams describe a new vault.
type InitVaultParams struct {
	UnderlyingMint     string
	UnderlyingDecimals uint8
	Index              uint64
	Accountant         string

	DepositLimit     uint64
	MinUserDeposit   uint64
	MinimumTotalIdle uint64

	KYCVerifiedOnly      bool
	WhitelistedOnly      bool
	DirectDepositEnabled bool
}

// InitVault creates a vault over an underlying mint. The vault, its share
// mint and its token account are derived from (mint, index).
func (s *Service) InitVault(ctx context.Context, actor string, p InitVaultParams) (*domain.Vault, error) {
	e, err := s.mutate(ctx, "init_vault", actor, "", func(o *op) error {
		if err := o.require(ctx, roles.VaultsAdmin); err != nil {
			return err
		}
		mint, err := address.Parse(p.UnderlyingMint)
		if err != nil {
			return fmt.Errorf("underlying mint: %w", err)
		}
		key, err := address.Vault(s.program, mint, p.Index)
		if err != nil {
			return err
		}
		_, err = s.store.GetVault(ctx, key.String())
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s", domain.ErrVaultAlreadyExists, key)
		case !errors.Is(err, storage.ErrNotFound):
			return fmt.Errorf("load vault: %w", err)
		}
		if p.Accountant != "" {
			if s.accountants == nil {
				return fmt.Errorf("accountant %s: no accountants configured", p.Accountant)
			}
			if _, err := s.accountants.Lookup(p.Accountant); err != nil {
				return err
			}
		}
		sharesMint, err := address.SharesMint(s.program, key)
		if err != nil {
			return err
		}
		tokenAcct, err := address.TokenAccount(s.program, key, mint)
		if err != nil {
			return err
		}
		if err := s.bank.Open(tokenAcct.String(), mint.String(), key.String()); err != nil {
			return fmt.Errorf("open vault account: %w", err)
		}

		o.create(&domain.Vault{
			Key:                  key.String(),
			Index:                p.Index,
			UnderlyingMint:       mint.String(),
			UnderlyingDecimals:   p.UnderlyingDecimals,
			SharesMint:           sharesMint.String(),
			TokenAccount:         tokenAcct.String(),
			Accountant:           p.Accountant,
			DepositLimit:         p.DepositLimit,
			MinUserDeposit:       p.MinUserDeposit,
			MinimumTotalIdle:     p.MinimumTotalIdle,
			KYCVerifiedOnly:      p.KYCVerifiedOnly,
			WhitelistedOnly:      p.WhitelistedOnly,
			DirectDepositEnabled: p.DirectDepositEnabled,
			CreatedAt:            o.now,
		})
		o.event.Type = domain.EventVaultInitialized
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetVault(ctx, e.Vault)
}

// AddStrategyParams describe a strategy to attach.
type AddStrategyParams struct {
	Config  domain.StrategyConfig
	MaxDebt uint64
}

// AddStrategy attaches a new strategy with zero debt. Its address is derived
// from the vault and the vault's next strategy index.
func (s *Service) AddStrategy(ctx context.Context, actor, vaultKey string, p AddStrategyParams) (*domain.StrategyDebtRecord, error) {
	e, err := s.mutate(ctx, "add_strategy", actor, vaultKey, func(o *op) error {
		if err := o.require(ctx, roles.VaultsAdmin); err != nil {
			return err
		}
		v := o.vault
		if v.IsShutdown {
			return domain.ErrVaultShutdown
		}
		if err := strategy.Validate(p.Config); err != nil {
			return err
		}
		vaultAddr, err := address.Parse(v.Key)
		if err != nil {
			return err
		}
		mint, err := address.Parse(v.UnderlyingMint)
		if err != nil {
			return err
		}
		key, err := address.Strategy(s.program, vaultAddr, v.NextStrategyIndex)
		if err != nil {
			return err
		}
		tokenAcct, err := address.TokenAccount(s.program, key, mint)
		if err != nil {
			return err
		}
		rec := &domain.StrategyDebtRecord{
			Key:          key.String(),
			Vault:        v.Key,
			Index:        v.NextStrategyIndex,
			Config:       p.Config.Clone(),
			TokenAccount: tokenAcct.String(),
			MaxDebt:      p.MaxDebt,
			LastUpdate:   o.now,
		}
		if err := o.reg.Add(rec); err != nil {
			return err
		}
		if err := s.bank.Open(rec.TokenAccount, v.UnderlyingMint, rec.Key); err != nil {
			return fmt.Errorf("open strategy account: %w", err)
		}
		v.NextStrategyIndex++

		o.event.Type = domain.EventStrategyAdded
		o.event.Strategy = rec.Key
		o.event.Amount = p.MaxDebt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.strategyRecord(ctx, vaultKey, e.Strategy)
}

// RemoveStrategy detaches a strategy. A strategy holding debt is only
// removed with force, which realizes the debt as a loss.
func (s *Service) RemoveStrategy(ctx context.Context, actor, vaultKey, strategyKey string, force bool) (*domain.Event, error) {
	return s.mutate(ctx, "remove_strategy", actor, vaultKey, func(o *op) error {
		if err := o.require(ctx, roles.VaultsAdmin); err != nil {
			return err
		}
		loss, err := o.reg.Remove(o.vault, strategyKey, force)
		if err != nil {
			return err
		}
		o.event.Type = domain.EventStrategyRemoved
		o.event.Strategy = strategyKey
		o.event.Loss = loss
		o.onCommit = append(o.onCommit, func() {
			s.adapters.Remove(strategyKey)
			observability.RecordLoss(vaultKey, "forced_removal", loss)
		})
		return nil
	})
}

// UpdateMaxDebt changes a strategy's debt ceiling. Existing debt above the
// new ceiling stays until rebalanced.
func (s *Service) UpdateMaxDebt(ctx context.Context, actor, vaultKey, strategyKey string, maxDebt uint64) (*domain.Event, error) {
	return s.mutate(ctx, "update_max_debt", actor, vaultKey, func(o *op) error {
		if err := o.require(ctx, roles.VaultsAdmin); err != nil {
			return err
		}
		rec, err := o.reg.Get(strategyKey)
		if err != nil {
			return err
		}
		rec.MaxDebt = maxDebt
		rec.LastUpdate = o.now
		o.event.Type = domain.EventMaxDebtUpdated
		o.event.Strategy = strategyKey
		o.event.Amount = maxDebt
		return nil
	})
}

// SetStrategyStatus activates or deactivates a strategy. Inactive strategies
// take no new debt and are skipped by withdrawals.
func (s *Service) SetStrategyStatus(ctx context.Context, actor, vaultKey, strategyKey string, active bool) (*domain.Event, error) {
	return s.mutate(ctx, "set_strategy_status", actor, vaultKey, func(o *op) error {
		if err := o.require(ctx, roles.VaultsAdmin); err != nil {
			return err
		}
		rec, err := o.reg.Get(strategyKey)
		if err != nil {
			return err
		}
		rec.IsActive = active
		rec.LastUpdate = o.now
		o.event.Type = domain.EventStrategyStatusUpdated
		o.event.Strategy = strategyKey
		return nil
	})
}

// SetDepositLimit changes the cap on total assets accepted by deposits.
func (s *Service) SetDepositLimit(ctx context.Context, actor, vaultKey string, limit uint64) (*domain.Event, error) {
	return s.mutate(ctx, "set_deposit_limit", actor, vaultKey, func(o *op) error {
		if err := o.require(ctx, roles.VaultsAdmin); err != nil {
			return err
		}
		if o.vault.IsShutdown {
			return domain.ErrVaultShutdown
		}
		o.vault.DepositLimit = limit
		o.event.Type = domain.EventDepositLimitUpdated
		o.event.Amount = limit
		return nil
	})
}

// SetMinTotalIdle changes the idle floor kept out of strategies.
func (s *Service) SetMinTotalIdle(ctx context.Context, actor, vaultKey string, minIdle uint64) (*domain.Event, error) {
	return s.mutate(ctx, "set_min_total_idle", actor, vaultKey, func(o *op) error {
		if err := o.require(ctx, roles.VaultsAdmin); err != nil {
			return err
		}
		o.vault.MinimumTotalIdle = minIdle
		o.event.Type = domain.EventMinTotalIdleUpdated
		o.event.Amount = minIdle
		return nil
	})
}

// SetMinUserDeposit changes the smallest accepted deposit.
func (s *Service) SetMinUserDeposit(ctx context.Context, actor, vaultKey string, minDeposit uint64) (*domain.Event, error) {
	return s.mutate(ctx, "set_min_user_deposit", actor, vaultKey, func(o *op) error {
		if err := o.require(ctx, roles.VaultsAdmin); err != nil {
			return err
		}
		o.vault.MinUserDeposit = minDeposit
		o.event.Type = domain.EventMinUserDepositUpdated
		o.event.Amount = minDeposit
		return nil
	})
}

// SetWhitelist grants or revokes owner's permission to deposit into a
// whitelisted-only vault.
func (s *Service) SetWhitelist(ctx context.Context, actor, vaultKey, owner string, whitelisted bool) (*domain.Event, error) {
	return s.mutate(ctx, "set_whitelist", actor, vaultKey, func(o *op) error {
		if err := o.require(ctx, roles.KYCProvider, roles.VaultsAdmin); err != nil {
			return err
		}
		if _, err := address.Parse(owner); err != nil {
			return fmt.Errorf("owner %q: %w", owner, err)
		}
		pos, err := o.position(ctx, owner)
		if err != nil {
			return err
		}
		pos.Whitelisted = whitelisted
		o.event.Type = domain.EventWhitelistUpdated
		return nil
	})
}

// Shutdown stops deposits and debt increases for good. Withdrawals keep
// working.
func (s *Service) Shutdown(ctx context.Context, actor, vaultKey string) (*domain.Event, error) {
	return s.mutate(ctx, "shutdown", actor, vaultKey, func(o *op) error {
		if err := o.require(ctx, roles.VaultsAdmin); err != nil {
			return err
		}
		if o.vault.IsShutdown {
			return domain.ErrVaultShutdown
		}
		o.vault.IsShutdown = true
		o.vault.DepositLimit = 0
		o.event.Type = domain.EventVaultShutdown
		return nil
	})
}

// Close deletes a shut-down vault that has no debt and no strategies.
func (s *Service) Close(ctx context.Context, actor, vaultKey string) (*domain.Event, error) {
	return s.mutate(ctx, "close", actor, vaultKey, func(o *op) error {
		if err := o.require(ctx, roles.VaultsAdmin); err != nil {
			return err
		}
		v := o.vault
		if !v.IsShutdown {
			return domain.ErrVaultNotShutdown
		}
		if v.TotalDebt > 0 {
			return fmt.Errorf("%w: %d", domain.ErrVaultHasDebt, v.TotalDebt)
		}
		if n := o.reg.Len(); n > 0 {
			return fmt.Errorf("%w: %d attached", domain.ErrVaultHasStrategies, n)
		}
		o.kind = storage.ChangeDelete
		o.event.Type = domain.EventVaultClosed
		return nil
	})
}
