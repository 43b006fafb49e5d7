package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-vault-ledger/internal/accountant"
	"solana-vault-ledger/internal/address"
	"solana-vault-ledger/internal/domain"
	"solana-vault-ledger/internal/roles"
	"solana-vault-ledger/internal/storage/memory"
	"solana-vault-ledger/internal/strategy"
	"solana-vault-ledger/internal/token"
	"solana-vault-ledger/internal/vault"
)

var (
	admin   = address.FromSeed("admin").String()
	manager = address.FromSeed("manager").String()
	alice   = address.FromSeed("alice").String()
	usdc    = address.FromSeed("usdc").String()
)

type fixture struct {
	t       *testing.T
	svc     *vault.Service
	hub     *Hub
	handler http.Handler
}

func newFixture(t *testing.T, simulation bool) *fixture {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	entry := logrus.NewEntry(logger)

	bank := token.NewBank()
	reg := roles.NewRegistry()
	reg.Grant(admin, roles.VaultsAdmin)
	reg.Grant(manager, roles.StrategiesManager)

	hub := NewHub(entry)
	svc := vault.New(
		memory.NewLedgerStore(),
		bank,
		reg,
		accountant.NewRegistry(),
		strategy.NewSet(strategy.Deps{Custody: bank}),
		vault.Options{Events: memory.NewEventStore(), Publisher: hub, Logger: entry},
	)
	srv := New(svc, hub, entry, Options{Simulation: simulation})
	return &fixture{t: t, svc: svc, hub: hub, handler: srv.Router()}
}

func (f *fixture) do(method, path, who string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(f.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if who != "" {
		req.Header.Set(ActorHeader, who)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (f *fixture) initVault() VaultResponse {
	f.t.Helper()
	w := f.do(http.MethodPost, "/v1/vaults", admin, InitVaultRequest{
		UnderlyingMint:     usdc,
		UnderlyingDecimals: 6,
		DepositLimit:       1_000_000,
	})
	require.Equal(f.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[VaultResponse](f.t, w)
}

func TestHealthAndRequestID(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	w = f.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestVaultLifecycle(t *testing.T) {
	f := newFixture(t, true)
	v := f.initVault()
	assert.Equal(t, usdc, v.UnderlyingMint)

	w := f.do(http.MethodPost, "/v1/sim/faucet", "", FaucetRequest{Owner: alice, Mint: usdc, Amount: 1000})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(http.MethodPost, "/v1/vaults/"+v.Key+"/deposit", alice, AmountRequest{Amount: 1000})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	e := decode[domain.Event](t, w)
	assert.Equal(t, domain.EventDeposit, e.Type)
	assert.Equal(t, uint64(1000), e.Shares)

	w = f.do(http.MethodPost, "/v1/vaults/"+v.Key+"/strategies", admin, AddStrategyRequest{
		Config:  domain.StrategyConfig{StrategyType: domain.StrategyTypeSimple},
		MaxDebt: 800,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	s := decode[StrategyResponse](t, w)

	w = f.do(http.MethodPost, "/v1/vaults/"+v.Key+"/strategies/"+s.Key+"/debt", manager, DebtRequest{NewDebt: 600})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(http.MethodPost, "/v1/vaults/"+v.Key+"/withdraw", alice, WithdrawRequest{
		Assets:     700,
		Strategies: []string{s.Key},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(http.MethodGet, "/v1/vaults/"+v.Key+"/positions/"+alice, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	pos := decode[PositionResponse](t, w)
	assert.Equal(t, uint64(300), pos.Shares)
	assert.Equal(t, uint64(300), pos.MaxWithdraw)

	w = f.do(http.MethodGet, "/v1/vaults/"+v.Key+"/preview?assets=100&shares=100", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	q := decode[QuoteResponse](t, w)
	assert.Equal(t, uint64(100), q.SharesForAsset)
	assert.Equal(t, uint64(300), q.TotalAssets)

	w = f.do(http.MethodGet, "/v1/vaults/"+v.Key, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[VaultResponse](t, w)
	assert.Equal(t, uint64(0), got.TotalIdle)
	assert.Equal(t, uint64(300), got.TotalDebt)

	w = f.do(http.MethodGet, "/v1/vaults/"+v.Key+"/events", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	events := decode[[]domain.Event](t, w)
	assert.Len(t, events, 5)

	w = f.do(http.MethodGet, "/v1/vaults/"+v.Key+"/flows", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	flows := decode[[]domain.DailyFlow](t, w)
	require.Len(t, flows, 1)
	assert.Equal(t, uint64(1000), flows[0].Deposited)
	assert.Equal(t, uint64(700), flows[0].Withdrawn)
}

func TestErrorMapping(t *testing.T) {
	f := newFixture(t, false)
	v := f.initVault()

	tests := []struct {
		name   string
		method string
		path   string
		who    string
		body   any
		status int
		kind   string
	}{
		{"missing actor", http.MethodPost, "/v1/vaults/" + v.Key + "/deposit", "", AmountRequest{Amount: 1}, http.StatusBadRequest, "bad_request"},
		{"unknown vault", http.MethodGet, "/v1/vaults/" + alice, "", nil, http.StatusNotFound, "vault_not_found"},
		{"not admin", http.MethodPost, "/v1/vaults/" + v.Key + "/shutdown", alice, nil, http.StatusForbidden, "unauthorized"},
		{"duplicate vault", http.MethodPost, "/v1/vaults", admin, InitVaultRequest{UnderlyingMint: usdc}, http.StatusConflict, "vault_already_exists"},
		{"zero deposit", http.MethodPost, "/v1/vaults/" + v.Key + "/deposit", alice, AmountRequest{}, http.StatusBadRequest, "zero_value"},
		{"bad mint", http.MethodPost, "/v1/vaults", admin, InitVaultRequest{UnderlyingMint: "0OIl"}, http.StatusBadRequest, "invalid_address"},
		{"bad strategy", http.MethodPost, "/v1/vaults/" + v.Key + "/strategies", admin, AddStrategyRequest{
			Config: domain.StrategyConfig{StrategyType: domain.StrategyTypeAMM},
		}, http.StatusBadRequest, "invalid_strategy_config"},
		{"close live vault", http.MethodDelete, "/v1/vaults/" + v.Key, admin, nil, http.StatusUnprocessableEntity, "vault_not_shutdown"},
		{"bad query", http.MethodGet, "/v1/vaults/" + v.Key + "/preview?assets=x", "", nil, http.StatusBadRequest, "bad_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(tt.method, tt.path, tt.who, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			resp := decode[errorResponse](t, w)
			assert.Equal(t, tt.kind, resp.Kind)
			assert.NotEmpty(t, resp.RequestID)
		})
	}
}

func TestSimulationRoutesDisabled(t *testing.T) {
	f := newFixture(t, false)
	w := f.do(http.MethodPost, "/v1/sim/faucet", "", FaucetRequest{Owner: alice, Mint: usdc, Amount: 1})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// The service itself still works for in-process callers.
	_, err := f.svc.Faucet(context.Background(), alice, usdc, 1)
	require.NoError(t, err)
}
