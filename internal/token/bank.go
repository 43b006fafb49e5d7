// Package token is an in-memory custody ledger for token accounts.
//
// It plays the part of the asset-transfer capability: moving underlying
// assets between accounts and minting or burning vault shares. Accounts are
// bound to a single mint on first use.
package token

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Bank errors
var (
	ErrInsufficientBalance = errors.New("insufficient token balance")
	ErrMintMismatch        = errors.New("token account mint mismatch")
	ErrAccountNotFound     = errors.New("token account not found")
	ErrSupplyOverflow      = errors.New("token supply overflow")
)

// Account is a snapshot of one token account.
type Account struct {
	Address string `json:"address"`
	Mint    string `json:"mint"`
	Owner   string `json:"owner"`
	Amount  uint64 `json:"amount"`
}

// Bank holds token accounts and mint supplies.
type Bank struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	supply   map[string]uint64
}

// NewBank creates an empty bank.
func NewBank() *Bank {
	return &Bank{
		accounts: make(map[string]*Account),
		supply:   make(map[string]uint64),
	}
}

// Open creates a token account for mint owned by owner. Opening an existing
// account with the same mint is a no-op.
func (b *Bank) Open(account, mint, owner string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := b.open(account, mint, owner)
	return err
}

func (b *Bank) open(account, mint, owner string) (*Account, error) {
	if acc, ok := b.accounts[account]; ok {
		if acc.Mint != mint {
			return nil, fmt.Errorf("%w: %s holds %s, not %s", ErrMintMismatch, account, acc.Mint, mint)
		}
		if acc.Owner == "" {
			acc.Owner = owner
		}
		return acc, nil
	}
	acc := &Account{Address: account, Mint: mint, Owner: owner}
	b.accounts[account] = acc
	return acc, nil
}

// Transfer moves amount between two accounts of the same mint. The
// destination is opened on demand.
func (b *Bank) Transfer(_ context.Context, from, to string, amount uint64) error {
	if amount == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	src, ok := b.accounts[from]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, from)
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientBalance, from, src.Amount, amount)
	}
	dst, err := b.open(to, src.Mint, "")
	if err != nil {
		return err
	}
	if dst.Amount+amount < dst.Amount {
		return ErrSupplyOverflow
	}

	src.Amount -= amount
	dst.Amount += amount
	return nil
}

// MintTo creates amount new tokens of mint in account.
func (b *Bank) MintTo(_ context.Context, mint, account string, amount uint64) error {
	if amount == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	dst, err := b.open(account, mint, "")
	if err != nil {
		return err
	}
	supply := b.supply[mint]
	if supply+amount < supply || dst.Amount+amount < dst.Amount {
		return ErrSupplyOverflow
	}
	b.supply[mint] = supply + amount
	dst.Amount += amount
	return nil
}

// Burn destroys amount tokens of mint held in account.
func (b *Bank) Burn(_ context.Context, mint, account string, amount uint64) error {
	if amount == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	src, ok := b.accounts[account]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, account)
	}
	if src.Mint != mint {
		return fmt.Errorf("%w: %s holds %s, not %s", ErrMintMismatch, account, src.Mint, mint)
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientBalance, account, src.Amount, amount)
	}
	src.Amount -= amount
	b.supply[mint] -= amount
	return nil
}

// Balance returns the amount held in account. Unknown accounts hold zero.
func (b *Bank) Balance(_ context.Context, account string) (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if acc, ok := b.accounts[account]; ok {
		return acc.Amount, nil
	}
	return 0, nil
}

// Supply returns the circulating supply of mint.
func (b *Bank) Supply(mint string) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.supply[mint]
}

// Accounts returns all accounts owned by owner, ordered by address.
// An empty owner returns every account.
func (b *Bank) Accounts(owner string) []Account {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Account
	for _, acc := range b.accounts {
		if owner == "" || acc.Owner == owner {
			out = append(out, *acc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// Snapshot captures every balance and returns a func that restores them.
func (b *Bank) Snapshot() func() {
	b.mu.RLock()
	accounts := make(map[string]Account, len(b.accounts))
	for k, v := range b.accounts {
		accounts[k] = *v
	}
	supply := make(map[string]uint64, len(b.supply))
	for k, v := range b.supply {
		supply[k] = v
	}
	b.mu.RUnlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.accounts = make(map[string]*Account, len(accounts))
		for k, v := range accounts {
			acc := v
			b.accounts[k] = &acc
		}
		b.supply = make(map[string]uint64, len(supply))
		for k, v := range supply {
			b.supply[k] = v
		}
	}
}
