package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-vault-ledger/internal/address"
	"solana-vault-ledger/internal/api"
	"solana-vault-ledger/internal/config"
	"solana-vault-ledger/internal/vault"
)

func quiet() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestOpenStores(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		cfg     config.StorageConfig
		wantErr bool
	}{
		{"memory", config.StorageConfig{Ledger: config.BackendMemory, Events: config.BackendMemory}, false},
		{"badger and sqlite", config.StorageConfig{
			Ledger:     config.BackendBadger,
			Events:     config.BackendSQLite,
			BadgerPath: filepath.Join(dir, "ledger"),
			SQLitePath: filepath.Join(dir, "events.db"),
		}, false},
		{"unknown ledger", config.StorageConfig{Ledger: "etcd", Events: config.BackendMemory}, true},
		{"unknown events", config.StorageConfig{Ledger: config.BackendMemory, Events: "kafka"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := openStores(context.Background(), tt.cfg, quiet())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer st.Close()
			assert.NotNil(t, st.ledger)
			assert.NotNil(t, st.events)
		})
	}
}

func TestBuildService(t *testing.T) {
	admin := address.FromSeed("admin").String()
	cfg := config.Default()
	cfg.Roles = map[string][]string{admin: {"vaults_admin"}}
	cfg.Accountants = []config.AccountantConfig{{
		Key:               "fees",
		Recipient:         address.FromSeed("treasury").String(),
		PerformanceFeeBps: 1000,
	}}

	st, err := openStores(context.Background(), cfg.Storage, quiet())
	require.NoError(t, err)
	defer st.Close()

	svc, hub, err := buildService(cfg, st, quiet())
	require.NoError(t, err)
	defer hub.Close()

	v, err := svc.InitVault(context.Background(), admin, vault.InitVaultParams{
		UnderlyingMint: address.FromSeed("usdc").String(),
		Accountant:     "fees",
	})
	require.NoError(t, err)

	h := api.New(svc, hub, quiet(), api.Options{}).Router()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/vaults/"+v.Key, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	cfg.Ledger.ProgramID = "bad"
	_, _, err = buildService(cfg, st, quiet())
	assert.Error(t, err)
}
