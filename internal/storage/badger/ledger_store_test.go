package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-vault-ledger/internal/domain"
	"solana-vault-ledger/internal/storage"
)

func openTestStore(t *testing.T) *LedgerStore {
	t.Helper()
	s, err := Open(OpenOptions{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testVault(key string) *domain.Vault {
	return &domain.Vault{
		Key:          key,
		SharesMint:   key + "-shares",
		TokenAccount: key + "-tokens",
		TotalIdle:    1000,
		TotalShares:  1000,
		CreatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func testStrategy(vault, key string, index uint64) *domain.StrategyDebtRecord {
	slippage := uint16(30)
	return &domain.StrategyDebtRecord{
		Key:      key,
		Vault:    vault,
		Index:    index,
		Config:   domain.StrategyConfig{StrategyType: domain.StrategyTypeAMM, SlippageBps: &slippage},
		MaxDebt:  5000,
		IsActive: true,
	}
}

func TestLedgerStore_CommitAndRead(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.Commit(ctx, &storage.Changeset{
		Kind:  storage.ChangeCreate,
		Vault: testVault("v1"),
		Strategies: []*domain.StrategyDebtRecord{
			testStrategy("v1", "b", 1),
			testStrategy("v1", "a", 0),
		},
		Positions: []*domain.UserPosition{
			{Vault: "v1", Owner: "bob", Deposited: 5},
			{Vault: "v1", Owner: "alice", Deposited: 1000},
		},
	})
	require.NoError(t, err)
	require.NoError(t, s.Commit(ctx, &storage.Changeset{Kind: storage.ChangeCreate, Vault: testVault("v0")}))

	v, err := s.GetVault(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), v.TotalIdle)
	assert.True(t, v.CreatedAt.Equal(testVault("v1").CreatedAt))

	vaults, err := s.ListVaults(ctx)
	require.NoError(t, err)
	require.Len(t, vaults, 2)
	assert.Equal(t, "v0", vaults[0].Key)

	strategies, err := s.GetStrategies(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, strategies, 2)
	assert.Equal(t, "a", strategies[0].Key)
	assert.Equal(t, uint16(30), *strategies[0].Config.SlippageBps)

	positions, err := s.ListPositions(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, "alice", positions[0].Owner)

	// No cross-talk between vaults sharing a key prefix.
	strategies, err = s.GetStrategies(ctx, "v")
	require.NoError(t, err)
	assert.Empty(t, strategies)
}

func TestLedgerStore_UpdateRemoveDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Commit(ctx, &storage.Changeset{
		Kind:       storage.ChangeCreate,
		Vault:      testVault("v1"),
		Strategies: []*domain.StrategyDebtRecord{testStrategy("v1", "a", 0), testStrategy("v1", "b", 1)},
		Positions:  []*domain.UserPosition{{Vault: "v1", Owner: "alice"}},
	}))

	v := testVault("v1")
	v.TotalIdle = 10
	require.NoError(t, s.Commit(ctx, &storage.Changeset{
		Kind:              storage.ChangeUpdate,
		Vault:             v,
		RemovedStrategies: []string{"a"},
	}))

	got, err := s.GetVault(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), got.TotalIdle)
	strategies, err := s.GetStrategies(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, strategies, 1)
	assert.Equal(t, "b", strategies[0].Key)

	require.NoError(t, s.Commit(ctx, &storage.Changeset{Kind: storage.ChangeDelete, Vault: v}))
	_, err = s.GetVault(ctx, "v1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.GetPosition(ctx, "v1", "alice")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	strategies, err = s.GetStrategies(ctx, "v1")
	require.NoError(t, err)
	assert.Empty(t, strategies)
}

func TestLedgerStore_KindChecks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.Commit(ctx, &storage.Changeset{Kind: storage.ChangeUpdate, Vault: testVault("v1")})
	assert.ErrorIs(t, err, storage.ErrNotFound)
	err = s.Commit(ctx, &storage.Changeset{Kind: storage.ChangeDelete, Vault: testVault("v1")})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Commit(ctx, &storage.Changeset{Kind: storage.ChangeCreate, Vault: testVault("v1")}))
	err = s.Commit(ctx, &storage.Changeset{Kind: storage.ChangeCreate, Vault: testVault("v1")})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	err = s.Commit(ctx, &storage.Changeset{
		Kind:      storage.ChangeUpdate,
		Vault:     testVault("v1"),
		Positions: []*domain.UserPosition{{Vault: "v2", Owner: "alice"}},
	})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(OpenOptions{})
	assert.Error(t, err)

	s, err := Open(OpenOptions{Path: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, s.Close())
}
