package memory

import (
	"context"
	"errors"
	"testing"

	"solana-vault-ledger/internal/domain"
	"solana-vault-ledger/internal/storage"
)

func testVault(key string) *domain.Vault {
	return &domain.Vault{
		Key:            key,
		UnderlyingMint: "usdc",
		SharesMint:     key + "-shares",
		TokenAccount:   key + "-tokens",
		TotalIdle:      1000,
		TotalShares:    1000,
		DepositLimit:   1_000_000,
	}
}

func testStrategy(vaultKey, key string, index uint64) *domain.StrategyDebtRecord {
	return &domain.StrategyDebtRecord{
		Key:          key,
		Vault:        vaultKey,
		Index:        index,
		Config:       domain.StrategyConfig{StrategyType: domain.StrategyTypeSimple},
		TokenAccount: key + "-tokens",
		MaxDebt:      5000,
		IsActive:     true,
	}
}

func TestLedgerStore_CreateAndGet(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()

	cs := &storage.Changeset{
		Kind:       storage.ChangeCreate,
		Vault:      testVault("v1"),
		Strategies: []*domain.StrategyDebtRecord{testStrategy("v1", "s1", 0)},
		Positions:  []*domain.UserPosition{{Vault: "v1", Owner: "alice", Deposited: 1000}},
	}
	if err := store.Commit(ctx, cs); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	v, err := store.GetVault(ctx, "v1")
	if err != nil {
		t.Fatalf("GetVault failed: %v", err)
	}
	if v.TotalIdle != 1000 {
		t.Errorf("expected idle 1000, got %d", v.TotalIdle)
	}

	// Returned copies must not alias stored state
	v.TotalIdle = 0
	again, _ := store.GetVault(ctx, "v1")
	if again.TotalIdle != 1000 {
		t.Error("GetVault returned an aliased vault")
	}

	strategies, err := store.GetStrategies(ctx, "v1")
	if err != nil {
		t.Fatalf("GetStrategies failed: %v", err)
	}
	if len(strategies) != 1 || strategies[0].Key != "s1" {
		t.Errorf("unexpected strategies: %+v", strategies)
	}

	p, err := store.GetPosition(ctx, "v1", "alice")
	if err != nil {
		t.Fatalf("GetPosition failed: %v", err)
	}
	if p.Deposited != 1000 {
		t.Errorf("expected deposited 1000, got %d", p.Deposited)
	}
}

func TestLedgerStore_CreateDuplicate(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()

	cs := &storage.Changeset{Kind: storage.ChangeCreate, Vault: testVault("v1")}
	if err := store.Commit(ctx, cs); err != nil {
		t.Fatalf("first Commit failed: %v", err)
	}
	if err := store.Commit(ctx, cs); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestLedgerStore_UpdateMissing(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()

	cs := &storage.Changeset{Kind: storage.ChangeUpdate, Vault: testVault("v1")}
	if err := store.Commit(ctx, cs); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetVault(ctx, "v1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLedgerStore_RemoveStrategyAndDelete(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()

	_ = store.Commit(ctx, &storage.Changeset{
		Kind:  storage.ChangeCreate,
		Vault: testVault("v1"),
		Strategies: []*domain.StrategyDebtRecord{
			testStrategy("v1", "s1", 0),
			testStrategy("v1", "s2", 1),
		},
	})

	err := store.Commit(ctx, &storage.Changeset{
		Kind:              storage.ChangeUpdate,
		Vault:             testVault("v1"),
		RemovedStrategies: []string{"s1"},
	})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	strategies, _ := store.GetStrategies(ctx, "v1")
	if len(strategies) != 1 || strategies[0].Key != "s2" {
		t.Errorf("expected only s2 left, got %+v", strategies)
	}

	if err := store.Commit(ctx, &storage.Changeset{Kind: storage.ChangeDelete, Vault: testVault("v1")}); err != nil {
		t.Fatalf("delete Commit failed: %v", err)
	}
	vaults, _ := store.ListVaults(ctx)
	if len(vaults) != 0 {
		t.Errorf("expected no vaults, got %d", len(vaults))
	}
	strategies, _ = store.GetStrategies(ctx, "v1")
	if len(strategies) != 0 {
		t.Errorf("expected strategies deleted with vault, got %d", len(strategies))
	}
}

func TestLedgerStore_InvalidChangeset(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()

	cs := &storage.Changeset{
		Kind:       storage.ChangeCreate,
		Vault:      testVault("v1"),
		Strategies: []*domain.StrategyDebtRecord{testStrategy("other", "s1", 0)},
	}
	if err := store.Commit(ctx, cs); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := store.GetVault(ctx, "v1"); !errors.Is(err, storage.ErrNotFound) {
		t.Error("invalid changeset must not be applied")
	}
}
