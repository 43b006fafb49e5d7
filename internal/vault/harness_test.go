package vault

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"solana-vault-ledger/internal/accountant"
	"solana-vault-ledger/internal/address"
	"solana-vault-ledger/internal/domain"
	"solana-vault-ledger/internal/roles"
	"solana-vault-ledger/internal/storage/memory"
	"solana-vault-ledger/internal/strategy"
	"solana-vault-ledger/internal/strategy/stub"
	"solana-vault-ledger/internal/token"
)

var (
	admin    = address.FromSeed("admin").String()
	manager  = address.FromSeed("manager").String()
	reporter = address.FromSeed("reporter").String()
	kyc      = address.FromSeed("kyc-provider").String()
	alice    = address.FromSeed("alice").String()
	bob      = address.FromSeed("bob").String()
	treasury = address.FromSeed("treasury").String()
	usdc     = address.FromSeed("usdc").String()
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	t           *testing.T
	ctx         context.Context
	svc         *Service
	store       *memory.LedgerStore
	events      *memory.EventStore
	bank        *token.Bank
	roles       *roles.Registry
	accountants *accountant.Registry
	adapters    *strategy.Set
	clock       *clock
}

type harnessOption func(*Options)

func withMaxStrategies(n int) harnessOption {
	return func(o *Options) { o.MaxStrategies = n }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		t:           t,
		ctx:         context.Background(),
		store:       memory.NewLedgerStore(),
		events:      memory.NewEventStore(),
		bank:        token.NewBank(),
		roles:       roles.NewRegistry(),
		accountants: accountant.NewRegistry(),
		clock:       &clock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
	}
	h.roles.Grant(admin, roles.VaultsAdmin)
	h.roles.Grant(manager, roles.StrategiesManager)
	h.roles.Grant(reporter, roles.ReportingManager)
	h.roles.Grant(kyc, roles.KYCProvider)
	h.adapters = strategy.NewSet(strategy.Deps{Custody: h.bank, Now: h.clock.Now})

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	o := Options{
		Events: h.events,
		Now:    h.clock.Now,
		Logger: logrus.NewEntry(logger),
	}
	for _, opt := range opts {
		opt(&o)
	}
	h.svc = New(h.store, h.bank, h.roles, h.accountants, h.adapters, o)
	return h
}

func defaultVault() InitVaultParams {
	return InitVaultParams{
		UnderlyingMint:     usdc,
		UnderlyingDecimals: 6,
		DepositLimit:       1_000_000,
	}
}

func (h *harness) initVault(p InitVaultParams) *domain.Vault {
	h.t.Helper()
	v, err := h.svc.InitVault(h.ctx, admin, p)
	require.NoError(h.t, err)
	return v
}

func (h *harness) fund(owner string, amount uint64) {
	h.t.Helper()
	_, err := h.svc.Faucet(h.ctx, owner, usdc, amount)
	require.NoError(h.t, err)
}

func (h *harness) deposit(v *domain.Vault, owner string, amount uint64) *domain.Event {
	h.t.Helper()
	h.fund(owner, amount)
	e, err := h.svc.Deposit(h.ctx, v.Key, owner, amount)
	require.NoError(h.t, err)
	return e
}

func (h *harness) addStrategy(v *domain.Vault, cfg domain.StrategyConfig, maxDebt uint64) *domain.StrategyDebtRecord {
	h.t.Helper()
	rec, err := h.svc.AddStrategy(h.ctx, admin, v.Key, AddStrategyParams{Config: cfg, MaxDebt: maxDebt})
	require.NoError(h.t, err)
	return rec
}

// addStub attaches a strategy served by a scriptable adapter.
func (h *harness) addStub(v *domain.Vault, maxDebt uint64) (*domain.StrategyDebtRecord, *stub.Adapter) {
	h.t.Helper()
	rec := h.addStrategy(v, simple(), maxDebt)
	a := stub.New(strategy.BindingFor(v, rec), h.bank)
	h.adapters.Put(a)
	return rec, a
}

func (h *harness) updateDebt(v *domain.Vault, rec *domain.StrategyDebtRecord, debt uint64) *domain.Event {
	h.t.Helper()
	e, err := h.svc.UpdateDebt(h.ctx, manager, v.Key, rec.Key, debt)
	require.NoError(h.t, err)
	return e
}

func (h *harness) vault(key string) *domain.Vault {
	h.t.Helper()
	v, err := h.svc.GetVault(h.ctx, key)
	require.NoError(h.t, err)
	return v
}

func (h *harness) strategy(v *domain.Vault, key string) *domain.StrategyDebtRecord {
	h.t.Helper()
	rec, err := h.svc.strategyRecord(h.ctx, v.Key, key)
	require.NoError(h.t, err)
	return rec
}

func (h *harness) balance(account string) uint64 {
	h.t.Helper()
	b, err := h.bank.Balance(h.ctx, account)
	require.NoError(h.t, err)
	return b
}

func (h *harness) underlyingOf(owner string) uint64 {
	h.t.Helper()
	acct, err := h.svc.TokenAccount(owner, usdc)
	require.NoError(h.t, err)
	return h.balance(acct)
}

func (h *harness) sharesOf(v *domain.Vault, owner string) uint64 {
	h.t.Helper()
	acct, err := h.svc.TokenAccount(owner, v.SharesMint)
	require.NoError(h.t, err)
	return h.balance(acct)
}

// snapshot captures everything an aborted operation must leave untouched.
type ledgerSnapshot struct {
	Vault      *domain.Vault
	Strategies []*domain.StrategyDebtRecord
	Positions  []*domain.UserPosition
	Accounts   []token.Account
}

func (h *harness) snapshot(v *domain.Vault) ledgerSnapshot {
	h.t.Helper()
	vault, err := h.store.GetVault(h.ctx, v.Key)
	require.NoError(h.t, err)
	strategies, err := h.store.GetStrategies(h.ctx, v.Key)
	require.NoError(h.t, err)
	positions, err := h.store.ListPositions(h.ctx, v.Key)
	require.NoError(h.t, err)
	return ledgerSnapshot{
		Vault:      vault,
		Strategies: strategies,
		Positions:  positions,
		Accounts:   h.bank.Accounts(""),
	}
}

func simple() domain.StrategyConfig {
	return domain.StrategyConfig{StrategyType: domain.StrategyTypeSimple}
}

func timeLocked(lock time.Duration) domain.StrategyConfig {
	ms := lock.Milliseconds()
	return domain.StrategyConfig{StrategyType: domain.StrategyTypeTimeLocked, LockPeriodMs: &ms}
}

func amm(bps uint16) domain.StrategyConfig {
	return domain.StrategyConfig{StrategyType: domain.StrategyTypeAMM, SlippageBps: &bps}
}

func ptr[T any](v T) *T { return &v }
