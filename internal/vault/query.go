package vault

import (
	"context"
	"errors"
	"fmt"
	"math"

	"solana-vault-ledger/internal/domain"
	"solana-vault-ledger/internal/shares"
	"solana-vault-ledger/internal/storage"
)

// GetVault returns a vault by key.
func (s *Service) GetVault(ctx context.Context, key string) (*domain.Vault, error) {
	return s.loadVault(ctx, key)
}

// ListVaults returns every vault ordered by key.
func (s *Service) ListVaults(ctx context.Context) ([]*domain.Vault, error) {
	return s.store.ListVaults(ctx)
}

// ListStrategies returns the strategies attached to a vault ordered by index.
func (s *Service) ListStrategies(ctx context.Context, vaultKey string) ([]*domain.StrategyDebtRecord, error) {
	if _, err := s.loadVault(ctx, vaultKey); err != nil {
		return nil, err
	}
	return s.store.GetStrategies(ctx, vaultKey)
}

func (s *Service) strategyRecord(ctx context.Context, vaultKey, strategyKey string) (*domain.StrategyDebtRecord, error) {
	records, err := s.ListStrategies(ctx, vaultKey)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.Key == strategyKey {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrStrategyNotFound, strategyKey)
}

// Position is a depositor's bookkeeping together with their share balance.
type Position struct {
	domain.UserPosition
	Shares      uint64
	MaxWithdraw uint64 // Shares valued at the current rate
}

// GetPosition returns owner's position in a vault. An owner that never
// deposited gets an empty position.
func (s *Service) GetPosition(ctx context.Context, vaultKey, owner string) (*Position, error) {
	v, err := s.loadVault(ctx, vaultKey)
	if err != nil {
		return nil, err
	}
	p, err := s.store.GetPosition(ctx, vaultKey, owner)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		p = &domain.UserPosition{Vault: vaultKey, Owner: owner}
	case err != nil:
		return nil, err
	}

	acct, err := s.TokenAccount(owner, v.SharesMint)
	if err != nil {
		return nil, err
	}
	held, err := s.bank.Balance(ctx, acct)
	if err != nil {
		return nil, err
	}
	supply, err := shares.SupplyOf(v)
	if err != nil {
		return nil, err
	}
	value, err := shares.ToUnderlying(supply, held)
	if err != nil {
		return nil, err
	}
	return &Position{UserPosition: *p, Shares: held, MaxWithdraw: value}, nil
}

// Quote prices assets and shares at a vault's current exchange rate.
type Quote struct {
	Assets         uint64 // input
	Shares         uint64 // input
	SharesForAsset uint64 // Assets converted to shares, rounded down
	BurnForAssets  uint64 // shares a withdrawal of Assets burns, rounded up
	AssetsForShare uint64 // Shares converted to assets, rounded down
	MaxDeposit     uint64
	TotalAssets    uint64
}

// Preview converts assets and shares without changing anything.
func (s *Service) Preview(ctx context.Context, vaultKey string, assets, sharesIn uint64) (*Quote, error) {
	v, err := s.loadVault(ctx, vaultKey)
	if err != nil {
		return nil, err
	}
	supply, err := shares.SupplyOf(v)
	if err != nil {
		return nil, err
	}
	q := &Quote{Assets: assets, Shares: sharesIn, MaxDeposit: maxDeposit(v), TotalAssets: supply.TotalAssets}
	if q.SharesForAsset, err = shares.ToShares(supply, assets); err != nil {
		return nil, err
	}
	if q.BurnForAssets, err = shares.ToSharesUp(supply, assets); err != nil {
		return nil, err
	}
	if q.AssetsForShare, err = shares.ToUnderlying(supply, sharesIn); err != nil {
		return nil, err
	}
	return q, nil
}

// Events returns a vault's event history. A zero range returns everything
// and a zero end leaves the range open.
func (s *Service) Events(ctx context.Context, vaultKey string, start, end int64) ([]*domain.Event, error) {
	if s.events == nil {
		return nil, nil
	}
	if start == 0 && end == 0 {
		return s.events.GetByVault(ctx, vaultKey)
	}
	if end == 0 {
		end = math.MaxInt64
	}
	return s.events.GetByTimeRange(ctx, vaultKey, start, end)
}

// Flows returns a vault's per-day flow totals. Event stores that keep their
// own rollup answer directly; others are rolled up from the event history.
func (s *Service) Flows(ctx context.Context, vaultKey string) ([]domain.DailyFlow, error) {
	if _, err := s.loadVault(ctx, vaultKey); err != nil {
		return nil, err
	}
	if s.events == nil {
		return nil, nil
	}
	if fr, ok := s.events.(storage.FlowReader); ok {
		return fr.DailyFlows(ctx, vaultKey)
	}
	events, err := s.events.GetByVault(ctx, vaultKey)
	if err != nil {
		return nil, err
	}
	return domain.RollupDailyFlows(events), nil
}
