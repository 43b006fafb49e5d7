package token

import (
	"context"
	"errors"
	"testing"
)

func TestBank_MintTransferBurn(t *testing.T) {
	ctx := context.Background()
	b := NewBank()

	if err := b.MintTo(ctx, "usdc", "alice", 1000); err != nil {
		t.Fatalf("MintTo failed: %v", err)
	}
	if err := b.Transfer(ctx, "alice", "vault", 400); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	alice, _ := b.Balance(ctx, "alice")
	vault, _ := b.Balance(ctx, "vault")
	if alice != 600 || vault != 400 {
		t.Errorf("expected 600/400, got %d/%d", alice, vault)
	}

	if err := b.Burn(ctx, "usdc", "vault", 100); err != nil {
		t.Fatalf("Burn failed: %v", err)
	}
	if s := b.Supply("usdc"); s != 900 {
		t.Errorf("expected supply 900, got %d", s)
	}
}

func TestBank_Errors(t *testing.T) {
	ctx := context.Background()
	b := NewBank()
	_ = b.MintTo(ctx, "usdc", "alice", 10)
	_ = b.MintTo(ctx, "shares", "alice-shares", 10)

	if err := b.Transfer(ctx, "alice", "bob", 11); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := b.Transfer(ctx, "nobody", "bob", 1); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
	if err := b.Transfer(ctx, "alice", "alice-shares", 1); !errors.Is(err, ErrMintMismatch) {
		t.Errorf("expected ErrMintMismatch, got %v", err)
	}
	if err := b.Burn(ctx, "usdc", "alice-shares", 1); !errors.Is(err, ErrMintMismatch) {
		t.Errorf("expected ErrMintMismatch, got %v", err)
	}
	if err := b.Open("alice", "shares", "alice"); !errors.Is(err, ErrMintMismatch) {
		t.Errorf("expected ErrMintMismatch, got %v", err)
	}
}

func TestBank_SnapshotRestore(t *testing.T) {
	ctx := context.Background()
	b := NewBank()
	_ = b.MintTo(ctx, "usdc", "alice", 1000)

	restore := b.Snapshot()

	_ = b.Transfer(ctx, "alice", "vault", 300)
	_ = b.MintTo(ctx, "usdc", "bob", 50)

	restore()

	alice, _ := b.Balance(ctx, "alice")
	vault, _ := b.Balance(ctx, "vault")
	bob, _ := b.Balance(ctx, "bob")
	if alice != 1000 || vault != 0 || bob != 0 {
		t.Errorf("restore failed: alice=%d vault=%d bob=%d", alice, vault, bob)
	}
	if s := b.Supply("usdc"); s != 1000 {
		t.Errorf("expected supply 1000 after restore, got %d", s)
	}
	if len(b.Accounts("")) != 1 {
		t.Errorf("expected accounts opened after snapshot to be dropped")
	}
}
