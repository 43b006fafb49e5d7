package keeper

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-vault-ledger/internal/api"
	"solana-vault-ledger/internal/client"
	"solana-vault-ledger/internal/config"
	"solana-vault-ledger/internal/domain"
)

type fakeLedger struct {
	mu         sync.Mutex
	vaults     []api.VaultResponse
	strategies map[string][]api.StrategyResponse
	reportErr  map[string]error
	debtErr    map[string]error
	reported   []string
	debts      map[string]uint64
}

func (f *fakeLedger) ListVaults(context.Context) ([]api.VaultResponse, error) {
	return f.vaults, nil
}

func (f *fakeLedger) ListStrategies(_ context.Context, vault string) ([]api.StrategyResponse, error) {
	return f.strategies[vault], nil
}

func (f *fakeLedger) ProcessReport(_ context.Context, vault, strategy string) (*domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.reportErr[strategy]; err != nil {
		return nil, err
	}
	f.reported = append(f.reported, vault+"/"+strategy)
	return &domain.Event{Type: domain.EventStrategyReported, Vault: vault, Strategy: strategy, Gain: 5}, nil
}

func (f *fakeLedger) UpdateDebt(_ context.Context, vault, strategy string, newDebt uint64) (*domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.debtErr[strategy]; err != nil {
		return nil, err
	}
	if f.debts == nil {
		f.debts = make(map[string]uint64)
	}
	f.debts[strategy] = newDebt
	return &domain.Event{Type: domain.EventDebtUpdated, Vault: vault, Strategy: strategy, CurrentDebt: newDebt}, nil
}

func quiet() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestReportAll(t *testing.T) {
	ledger := &fakeLedger{
		vaults: []api.VaultResponse{{Key: "v1"}, {Key: "v2", IsShutdown: true}},
		strategies: map[string][]api.StrategyResponse{
			"v1": {{Key: "s1", IsActive: true}, {Key: "s2"}, {Key: "s3", IsActive: true}},
			"v2": {{Key: "s4", IsActive: true}},
		},
		reportErr: map[string]error{"s3": errors.New("boom")},
	}
	k := New(ledger, config.KeeperConfig{}, quiet())

	res, err := k.ReportAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "v1/s3")
	assert.Equal(t, Result{Done: 1, Skipped: 2, Failed: 1}, res)
	assert.Equal(t, []string{"v1/s1"}, ledger.reported)
}

func TestRebalance(t *testing.T) {
	sameDebt := pkgerrors.WithStack(&client.Error{Status: 422, Kind: "same_debt"})
	ledger := &fakeLedger{
		debtErr: map[string]error{
			"s2": sameDebt,
			"s3": &client.Error{Status: 403, Kind: "unauthorized"},
		},
	}
	k := New(ledger, config.KeeperConfig{Targets: []config.DebtTarget{
		{Vault: "v1", Strategy: "s1", Debt: 100},
		{Vault: "v1", Strategy: "s2", Debt: 200},
		{Vault: "v1", Strategy: "s3", Debt: 300},
	}}, quiet())

	res, err := k.Rebalance(context.Background())
	require.Error(t, err)
	var apiErr *client.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "unauthorized", apiErr.Kind)
	assert.Equal(t, Result{Done: 1, Skipped: 1, Failed: 1}, res)
	assert.Equal(t, map[string]uint64{"s1": 100}, ledger.debts)
}

func TestRegister(t *testing.T) {
	k := New(&fakeLedger{}, config.KeeperConfig{ReportSchedule: "not a schedule"}, quiet())
	assert.Error(t, k.Register(context.Background()))

	k = New(&fakeLedger{}, config.KeeperConfig{ReportSchedule: "@every 1h", RebalanceSchedule: "*/5 * * * *"}, quiet())
	require.NoError(t, k.Register(context.Background()))
	assert.Len(t, k.cron.Entries(), 2)
	k.Start()
	k.Stop()
}
