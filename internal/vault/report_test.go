package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-vault-ledger/internal/accountant"
	"solana-vault-ledger/internal/domain"
)

func TestProcessReport_GainPaysPerformanceFee(t *testing.T) {
	h := newHarness(t)
	fees, err := accountant.NewGeneric("fees", treasury, 0, 1000)
	require.NoError(t, err)
	h.accountants.Register("fees", fees)

	p := defaultVault()
	p.Accountant = "fees"
	v := h.initVault(p)
	h.deposit(v, alice, 1000)
	s1 := h.addStrategy(v, simple(), 5000)
	h.updateDebt(v, s1, 1000)
	require.NoError(t, h.svc.SimulatePnL(h.ctx, v.Key, s1.Key, 200, 0))

	e, err := h.svc.ProcessReport(h.ctx, reporter, v.Key, s1.Key)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), e.Gain)
	assert.Equal(t, uint64(20), e.Fee)
	assert.Equal(t, uint64(1200), e.CurrentDebt)

	// Fee shares are priced after the gain: 20 * 1000 / 1200.
	v = h.vault(v.Key)
	assert.Equal(t, uint64(1200), v.TotalDebt)
	assert.Equal(t, uint64(1016), v.TotalShares)
	assert.Equal(t, uint64(16), h.sharesOf(v, treasury))
	assert.Equal(t, uint64(20), fees.Accrual().AccruedFees)
}

func TestProcessReport_FailureRestoresAccrual(t *testing.T) {
	h := newHarness(t)
	fees, err := accountant.NewGeneric("fees", treasury, 0, 1000)
	require.NoError(t, err)
	h.accountants.Register("fees", fees)

	p := defaultVault()
	p.Accountant = "fees"
	v := h.initVault(p)
	h.deposit(v, alice, 1000)
	rec, a := h.addStub(v, 5000)
	h.updateDebt(v, rec, 1000)

	// A gain whose fee shares land on an unparseable recipient fails after
	// the fee accrued.
	bad, err := accountant.NewGeneric("fees", "not-an-address", 0, 1000)
	require.NoError(t, err)
	h.accountants.Register("fees", bad)
	a.ReportedAssets = ptr(uint64(1100))

	before := h.snapshot(v)
	_, err = h.svc.ProcessReport(h.ctx, reporter, v.Key, rec.Key)
	require.Error(t, err)
	assert.Equal(t, before, h.snapshot(v))
	assert.Equal(t, uint64(0), bad.Accrual().AccruedFees)
}

func TestProcessReport_LossAndNoChange(t *testing.T) {
	h := newHarness(t)
	v := h.initVault(defaultVault())
	h.deposit(v, alice, 1000)
	s1 := h.addStrategy(v, simple(), 5000)
	h.updateDebt(v, s1, 800)

	_, err := h.svc.ProcessReport(h.ctx, manager, v.Key, s1.Key)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	e, err := h.svc.ProcessReport(h.ctx, reporter, v.Key, s1.Key)
	require.NoError(t, err)
	assert.Zero(t, e.Gain)
	assert.Zero(t, e.Loss)
	assert.Equal(t, domain.LedgerDelta{}, e.Delta)

	require.NoError(t, h.svc.SimulatePnL(h.ctx, v.Key, s1.Key, 0, 300))
	e, err = h.svc.ProcessReport(h.ctx, reporter, v.Key, s1.Key)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), e.Loss)
	assert.Equal(t, uint64(300), e.Delta.DebtOut)

	v = h.vault(v.Key)
	assert.Equal(t, uint64(500), v.TotalDebt)
	assert.Equal(t, uint64(1000), v.TotalShares)

	// Shares now redeem at 700 / 1000.
	pos, err := h.svc.GetPosition(h.ctx, v.Key, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(700), pos.MaxWithdraw)
}
