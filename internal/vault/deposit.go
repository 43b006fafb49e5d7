package vault

import (
	"context"
	"fmt"

	"solana-vault-ledger/internal/domain"
	"solana-vault-ledger/internal/observability"
	"solana-vault-ledger/internal/roles"
	"solana-vault-ledger/internal/shares"
)

// Deposit moves amount of the underlying from user into the vault's idle
// balance and mints shares to user.
func (s *Service) Deposit(ctx context.Context, vaultKey, user string, amount uint64) (*domain.Event, error) {
	return s.mutate(ctx, "deposit", user, vaultKey, func(o *op) error {
		return o.deposit(ctx, user, amount, "")
	})
}

// DirectDeposit forwards amount from user straight to an active strategy and
// mints shares to user.
func (s *Service) DirectDeposit(ctx context.Context, vaultKey, strategyKey, user string, amount uint64) (*domain.Event, error) {
	return s.mutate(ctx, "direct_deposit", user, vaultKey, func(o *op) error {
		return o.deposit(ctx, user, amount, strategyKey)
	})
}

func (o *op) deposit(ctx context.Context, user string, amount uint64, strategyKey string) error {
	v := o.vault

	if v.IsShutdown {
		return domain.ErrVaultShutdown
	}
	if amount == 0 {
		return domain.ErrZeroValue
	}
	if amount < v.MinUserDeposit {
		return fmt.Errorf("%w: %d < %d", domain.ErrMinDepositNotReached, amount, v.MinUserDeposit)
	}
	if amount > maxDeposit(v) {
		return fmt.Errorf("%w: %d", domain.ErrExceedDepositLimit, amount)
	}
	if v.KYCVerifiedOnly {
		ok, err := o.s.roles.HasRole(ctx, user, roles.KYCVerified)
		if err != nil {
			return fmt.Errorf("role check: %w", err)
		}
		if !ok {
			return domain.ErrKYCRequired
		}
	}
	pos, err := o.position(ctx, user)
	if err != nil {
		return err
	}
	if v.WhitelistedOnly && !pos.Whitelisted {
		return domain.ErrNotWhitelisted
	}

	// Shares are priced on the pre-deposit state.
	supply, err := shares.SupplyOf(v)
	if err != nil {
		return err
	}
	fee, recipient, err := o.entryFee(ctx, amount)
	if err != nil {
		return err
	}
	userShares, err := shares.ToShares(supply, amount-fee)
	if err != nil {
		return err
	}
	if userShares == 0 {
		return fmt.Errorf("%w: deposit mints no shares", domain.ErrZeroValue)
	}
	feeShares, err := shares.ToShares(supply, fee)
	if err != nil {
		return err
	}

	userAcct, err := o.s.TokenAccount(user, v.UnderlyingMint)
	if err != nil {
		return err
	}

	if strategyKey == "" {
		if err := o.s.bank.Transfer(ctx, userAcct, v.TokenAccount, amount); err != nil {
			return fmt.Errorf("transfer in: %w", err)
		}
		if v.TotalIdle, err = shares.Add(v.TotalIdle, amount); err != nil {
			return err
		}
		o.event.Type = domain.EventDeposit
	} else {
		if err := o.forward(ctx, userAcct, strategyKey, amount); err != nil {
			return err
		}
		o.event.Type = domain.EventDirectDeposit
		o.event.Strategy = strategyKey
	}

	if err := o.mintShares(ctx, user, userShares); err != nil {
		return err
	}
	if feeShares > 0 {
		if err := o.mintShares(ctx, recipient, feeShares); err != nil {
			return err
		}
	}

	if pos.Deposited, err = shares.Add(pos.Deposited, amount); err != nil {
		return err
	}

	o.event.Amount = amount
	o.event.Shares = userShares
	o.event.Fee = fee
	o.onCommit = append(o.onCommit, func() {
		observability.RecordDeposit(v.Key, amount)
		observability.RecordFee(v.Key, "entry", fee)
	})
	return nil
}

// forward moves a direct deposit through the vault account into the strategy.
func (o *op) forward(ctx context.Context, userAcct, strategyKey string, amount uint64) error {
	v := o.vault
	if !v.DirectDepositEnabled {
		return domain.ErrDirectDepositDisabled
	}
	rec, err := o.reg.GetActive(strategyKey)
	if err != nil {
		return err
	}
	newDebt, err := shares.Add(rec.CurrentDebt, amount)
	if err != nil {
		return err
	}
	if newDebt > rec.MaxDebt {
		return fmt.Errorf("%w: %d > %d", domain.ErrDebtHigherThanMaxDebt, newDebt, rec.MaxDebt)
	}
	a, err := o.adapter(rec)
	if err != nil {
		return err
	}
	avail, err := a.AvailableDeposit(ctx)
	if err != nil {
		return fmt.Errorf("available deposit: %w", err)
	}
	if amount > avail {
		return fmt.Errorf("%w: %d > %d", domain.ErrCannotDeposit, amount, avail)
	}

	if err := o.s.bank.Transfer(ctx, userAcct, v.TokenAccount, amount); err != nil {
		return fmt.Errorf("transfer in: %w", err)
	}
	pre, err := o.vaultBalance(ctx)
	if err != nil {
		return err
	}
	if _, err := a.Deposit(ctx, amount); err != nil {
		return fmt.Errorf("strategy deposit: %w", err)
	}
	post, err := o.vaultBalance(ctx)
	if err != nil {
		return err
	}
	if pre-post != amount {
		return fmt.Errorf("%w: strategy accepted %d of %d", domain.ErrCannotDeposit, pre-post, amount)
	}

	if v.TotalDebt, err = shares.Add(v.TotalDebt, amount); err != nil {
		return err
	}
	rec.CurrentDebt = newDebt
	rec.LastUpdate = o.now
	return nil
}

// entryFee assesses the accountant's entry fee on amount.
func (o *op) entryFee(ctx context.Context, amount uint64) (uint64, string, error) {
	acc, err := o.accountant()
	if err != nil || acc == nil {
		return 0, "", err
	}
	fee, err := acc.AssessEntryFee(ctx, amount)
	if err != nil {
		return 0, "", fmt.Errorf("entry fee: %w", err)
	}
	if fee > amount {
		return 0, "", domain.ErrMathOverflow
	}
	return fee, acc.FeeRecipient(), nil
}

// mintShares mints n shares to owner and grows the supply.
func (o *op) mintShares(ctx context.Context, owner string, n uint64) error {
	v := o.vault
	acct, err := o.s.TokenAccount(owner, v.SharesMint)
	if err != nil {
		return err
	}
	if err := o.s.bank.MintTo(ctx, v.SharesMint, acct, n); err != nil {
		return fmt.Errorf("mint shares: %w", err)
	}
	v.TotalShares, err = shares.Add(v.TotalShares, n)
	return err
}

// burnShares burns n shares held by owner and shrinks the supply.
func (o *op) burnShares(ctx context.Context, owner string, n uint64) error {
	v := o.vault
	acct, err := o.s.TokenAccount(owner, v.SharesMint)
	if err != nil {
		return err
	}
	if err := o.s.bank.Burn(ctx, v.SharesMint, acct, n); err != nil {
		return fmt.Errorf("burn shares: %w", err)
	}
	v.TotalShares, err = shares.Sub(v.TotalShares, n)
	return err
}

// maxDeposit is the room left under the deposit limit.
func maxDeposit(v *domain.Vault) uint64 {
	if v.IsShutdown {
		return 0
	}
	assets, ok := v.TotalAssets()
	if !ok || assets >= v.DepositLimit {
		return 0
	}
	return v.DepositLimit - assets
}
