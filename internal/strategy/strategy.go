// Package strategy implements the capability every yield strategy exposes to
// a vault, and the closed set of strategy variants the ledger can attach.
package strategy

import (
	"context"
	"errors"
	"time"
)

// Adapter errors
var (
	ErrInsufficientHoldings = errors.New("strategy holdings too low")
	ErrLocked               = errors.New("strategy funds are locked")
)

// Adapter is the uniform capability a vault uses to move capital into and
// out of a strategy. Calls are synchronous and may fail.
type Adapter interface {
	// Key returns the strategy address.
	Key() string

	// Type returns the strategy type tag.
	Type() string

	// TokenAccount returns the token account that holds the strategy's assets.
	TokenAccount() string

	// Deposit pulls amount from the vault token account and returns the
	// amount the strategy actually accepted.
	Deposit(ctx context.Context, amount uint64) (uint64, error)

	// Withdraw pushes up to amount back to the vault token account and
	// returns the amount actually delivered.
	Withdraw(ctx context.Context, amount uint64) (uint64, error)

	// AvailableDeposit returns how much the strategy can accept right now.
	AvailableDeposit(ctx context.Context) (uint64, error)

	// AvailableWithdraw returns how much the strategy can release right now.
	AvailableWithdraw(ctx context.Context) (uint64, error)

	// TotalAssets returns the strategy's own valuation of its holdings.
	TotalAssets(ctx context.Context) (uint64, error)
}

// Simulator is implemented by adapters whose yield can be driven by hand.
type Simulator interface {
	// Harvest credits gain to the strategy holdings.
	Harvest(ctx context.Context, gain uint64) error
	// Slash removes loss from the strategy holdings.
	Slash(ctx context.Context, loss uint64) error
}

// Snapshotter is implemented by adapters that keep state outside custody.
type Snapshotter interface {
	Snapshot() func()
}

// Custody is the token-account capability adapters move funds through.
type Custody interface {
	Transfer(ctx context.Context, from, to string, amount uint64) error
	MintTo(ctx context.Context, mint, account string, amount uint64) error
	Burn(ctx context.Context, mint, account string, amount uint64) error
	Balance(ctx context.Context, account string) (uint64, error)
}

// Binding ties an adapter to its vault and accounts.
type Binding struct {
	Key               string // strategy address
	Mint              string // underlying mint
	TokenAccount      string // strategy holdings
	VaultTokenAccount string // vault idle account
}

// Deps are the shared collaborators adapters are built with.
type Deps struct {
	Custody Custody
	Now     func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// holdings is the state every variant shares: a binding and a balance kept in
// custody.
type holdings struct {
	bind       Binding
	deps       Deps
	depositCap *uint64
}

func (h *holdings) Key() string          { return h.bind.Key }
func (h *holdings) TokenAccount() string { return h.bind.TokenAccount }

func (h *holdings) TotalAssets(ctx context.Context) (uint64, error) {
	return h.deps.Custody.Balance(ctx, h.bind.TokenAccount)
}

// AvailableDeposit is unbounded unless a deposit cap is configured.
func (h *holdings) AvailableDeposit(ctx context.Context) (uint64, error) {
	if h.depositCap == nil {
		return ^uint64(0), nil
	}
	total, err := h.TotalAssets(ctx)
	if err != nil {
		return 0, err
	}
	if total >= *h.depositCap {
		return 0, nil
	}
	return *h.depositCap - total, nil
}

func (h *holdings) pull(ctx context.Context, amount uint64) error {
	return h.deps.Custody.Transfer(ctx, h.bind.VaultTokenAccount, h.bind.TokenAccount, amount)
}

func (h *holdings) push(ctx context.Context, amount uint64) error {
	total, err := h.TotalAssets(ctx)
	if err != nil {
		return err
	}
	if amount > total {
		return ErrInsufficientHoldings
	}
	return h.deps.Custody.Transfer(ctx, h.bind.TokenAccount, h.bind.VaultTokenAccount, amount)
}

func (h *holdings) Harvest(ctx context.Context, gain uint64) error {
	return h.deps.Custody.MintTo(ctx, h.bind.Mint, h.bind.TokenAccount, gain)
}

func (h *holdings) Slash(ctx context.Context, loss uint64) error {
	return h.deps.Custody.Burn(ctx, h.bind.Mint, h.bind.TokenAccount, loss)
}
