package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-vault-ledger/internal/domain"
)

func TestUpdateDebt_Rejections(t *testing.T) {
	h := newHarness(t)
	v := h.initVault(defaultVault())
	h.deposit(v, alice, 1000)
	s1 := h.addStrategy(v, simple(), 500)

	_, err := h.svc.UpdateDebt(h.ctx, manager, v.Key, s1.Key, 0)
	assert.ErrorIs(t, err, domain.ErrSameDebt)

	_, err = h.svc.UpdateDebt(h.ctx, manager, v.Key, s1.Key, 501)
	assert.ErrorIs(t, err, domain.ErrDebtHigherThanMaxDebt)

	_, err = h.svc.UpdateDebt(h.ctx, alice, v.Key, s1.Key, 100)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = h.svc.UpdateDebt(h.ctx, manager, v.Key, alice, 100)
	assert.ErrorIs(t, err, domain.ErrStrategyNotFound)

	_, err = h.svc.SetStrategyStatus(h.ctx, admin, v.Key, s1.Key, false)
	require.NoError(t, err)
	_, err = h.svc.UpdateDebt(h.ctx, manager, v.Key, s1.Key, 100)
	assert.ErrorIs(t, err, domain.ErrInactiveStrategy)
}

func TestUpdateDebt_IncreaseClampsToIdleFloorAndCapacity(t *testing.T) {
	h := newHarness(t)
	p := defaultVault()
	p.MinimumTotalIdle = 300
	v := h.initVault(p)
	h.deposit(v, alice, 1000)
	rec, a := h.addStub(v, 5000)

	// Only 700 sits above the floor.
	e := h.updateDebt(v, rec, 5000)
	assert.Equal(t, uint64(700), e.Amount)
	v = h.vault(v.Key)
	assert.Equal(t, uint64(300), v.TotalIdle)
	assert.Equal(t, uint64(700), v.TotalDebt)

	_, err := h.svc.UpdateDebt(h.ctx, manager, v.Key, rec.Key, 5000)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// The strategy's own capacity also bounds the move.
	h.deposit(v, bob, 1000)
	a.DepositLimit = ptr(uint64(250))
	e = h.updateDebt(v, rec, 5000)
	assert.Equal(t, uint64(250), e.Amount)
	assert.Equal(t, uint64(950), h.strategy(v, rec.Key).CurrentDebt)

	a.DepositLimit = ptr(uint64(0))
	_, err = h.svc.UpdateDebt(h.ctx, manager, v.Key, rec.Key, 5000)
	assert.ErrorIs(t, err, domain.ErrCannotDeposit)
}

func TestUpdateDebt_DecreaseRefillsMinimumIdle(t *testing.T) {
	h := newHarness(t)
	v := h.initVault(defaultVault())
	h.deposit(v, alice, 1000)
	s1 := h.addStrategy(v, simple(), 5000)
	h.updateDebt(v, s1, 800)

	_, err := h.svc.SetMinTotalIdle(h.ctx, admin, v.Key, 500)
	require.NoError(t, err)

	// Asking for 700 pulls 300 so idle returns to the floor.
	e := h.updateDebt(v, s1, 700)
	assert.Equal(t, uint64(300), e.Amount)
	v = h.vault(v.Key)
	assert.Equal(t, uint64(500), v.TotalIdle)
	assert.Equal(t, uint64(500), v.TotalDebt)
	assert.Equal(t, uint64(500), h.strategy(v, s1.Key).CurrentDebt)
	assert.Equal(t, uint64(500), h.balance(s1.TokenAccount))
}

func TestUpdateDebt_DecreaseGuards(t *testing.T) {
	h := newHarness(t)
	v := h.initVault(defaultVault())
	h.deposit(v, alice, 1000)
	rec, a := h.addStub(v, 5000)
	h.updateDebt(v, rec, 800)

	a.ReportedAssets = ptr(uint64(799))
	_, err := h.svc.UpdateDebt(h.ctx, manager, v.Key, rec.Key, 0)
	assert.ErrorIs(t, err, domain.ErrUnrealisedLosses)
	a.ReportedAssets = nil

	a.WithdrawLimit = ptr(uint64(0))
	_, err = h.svc.UpdateDebt(h.ctx, manager, v.Key, rec.Key, 0)
	assert.ErrorIs(t, err, domain.ErrCannotWithdraw)

	a.WithdrawLimit = ptr(uint64(100))
	e := h.updateDebt(v, rec, 0)
	assert.Equal(t, uint64(100), e.Amount)
	assert.Equal(t, uint64(700), h.strategy(v, rec.Key).CurrentDebt)
	a.WithdrawLimit = nil

	// Under-delivery applies only what actually arrived.
	a.Shortfall = 50
	e = h.updateDebt(v, rec, 500)
	assert.Equal(t, uint64(150), e.Amount)
	v = h.vault(v.Key)
	assert.Equal(t, uint64(550), h.strategy(v, rec.Key).CurrentDebt)
	assert.Equal(t, uint64(450), v.TotalIdle)
	assert.Equal(t, uint64(550), v.TotalDebt)
}

func TestUpdateDebt_AdapterFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	v := h.initVault(defaultVault())
	h.deposit(v, alice, 1000)
	rec, a := h.addStub(v, 5000)
	h.updateDebt(v, rec, 400)

	a.WithdrawErr = assert.AnError
	before := h.snapshot(v)
	_, err := h.svc.UpdateDebt(h.ctx, manager, v.Key, rec.Key, 100)
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, before, h.snapshot(v))
}

func TestUpdateDebt_ShutdownBlocksIncreaseOnly(t *testing.T) {
	h := newHarness(t)
	v := h.initVault(defaultVault())
	h.deposit(v, alice, 1000)
	s1 := h.addStrategy(v, simple(), 5000)
	h.updateDebt(v, s1, 500)

	_, err := h.svc.Shutdown(h.ctx, admin, v.Key)
	require.NoError(t, err)

	_, err = h.svc.UpdateDebt(h.ctx, manager, v.Key, s1.Key, 600)
	assert.ErrorIs(t, err, domain.ErrVaultShutdown)

	h.updateDebt(v, s1, 0)
	v = h.vault(v.Key)
	assert.Equal(t, uint64(1000), v.TotalIdle)
	assert.Equal(t, uint64(0), v.TotalDebt)
}
