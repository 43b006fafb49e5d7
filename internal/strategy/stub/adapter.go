// Package stub provides a scriptable strategy adapter for tests.
package stub

import (
	"context"

	"solana-vault-ledger/internal/strategy"
)

// Adapter implements strategy.Adapter over a custody ledger with knobs for
// failure and under-delivery.
type Adapter struct {
	Bind    strategy.Binding
	Custody strategy.Custody

	// Limits override the computed availability when non-nil.
	DepositLimit  *uint64
	WithdrawLimit *uint64
	// ReportedAssets overrides the custody balance when non-nil.
	ReportedAssets *uint64
	// Shortfall is withheld from every withdrawal and burned.
	Shortfall uint64
	// Surplus is minted to the vault on every withdrawal on top of the
	// requested amount.
	Surplus uint64

	DepositErr  error
	WithdrawErr error
	AssetsErr   error

	Deposits  int
	Withdraws int
}

var _ strategy.Adapter = (*Adapter)(nil)

// New creates a stub adapter.
func New(b strategy.Binding, custody strategy.Custody) *Adapter {
	return &Adapter{Bind: b, Custody: custody}
}

// Key returns the bound strategy key.
func (a *Adapter) Key() string { return a.Bind.Key }

// Type returns STUB.
func (a *Adapter) Type() string { return "STUB" }

// TokenAccount returns the bound token account.
func (a *Adapter) TokenAccount() string { return a.Bind.TokenAccount }

// Deposit moves amount from the vault into the stub.
func (a *Adapter) Deposit(ctx context.Context, amount uint64) (uint64, error) {
	a.Deposits++
	if a.DepositErr != nil {
		return 0, a.DepositErr
	}
	if err := a.Custody.Transfer(ctx, a.Bind.VaultTokenAccount, a.Bind.TokenAccount, amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// Withdraw delivers amount minus Shortfall plus Surplus to the vault.
func (a *Adapter) Withdraw(ctx context.Context, amount uint64) (uint64, error) {
	a.Withdraws++
	if a.WithdrawErr != nil {
		return 0, a.WithdrawErr
	}
	short := a.Shortfall
	if short > amount {
		short = amount
	}
	if err := a.Custody.Transfer(ctx, a.Bind.TokenAccount, a.Bind.VaultTokenAccount, amount-short); err != nil {
		return 0, err
	}
	if err := a.Custody.Burn(ctx, a.Bind.Mint, a.Bind.TokenAccount, short); err != nil {
		return 0, err
	}
	if a.Surplus > 0 {
		if err := a.Custody.MintTo(ctx, a.Bind.Mint, a.Bind.VaultTokenAccount, a.Surplus); err != nil {
			return 0, err
		}
	}
	return amount - short + a.Surplus, nil
}

// AvailableDeposit returns DepositLimit or unbounded.
func (a *Adapter) AvailableDeposit(context.Context) (uint64, error) {
	if a.DepositLimit != nil {
		return *a.DepositLimit, nil
	}
	return ^uint64(0), nil
}

// AvailableWithdraw returns WithdrawLimit or the custody balance.
func (a *Adapter) AvailableWithdraw(ctx context.Context) (uint64, error) {
	if a.WithdrawLimit != nil {
		return *a.WithdrawLimit, nil
	}
	return a.Custody.Balance(ctx, a.Bind.TokenAccount)
}

// TotalAssets returns ReportedAssets or the custody balance.
func (a *Adapter) TotalAssets(ctx context.Context) (uint64, error) {
	if a.AssetsErr != nil {
		return 0, a.AssetsErr
	}
	if a.ReportedAssets != nil {
		return *a.ReportedAssets, nil
	}
	return a.Custody.Balance(ctx, a.Bind.TokenAccount)
}
