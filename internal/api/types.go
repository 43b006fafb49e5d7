package api

import (
	"time"

	"solana-vault-ledger/internal/domain"
	"solana-vault-ledger/internal/vault"
)

// VaultResponse is the wire form of a vault.
type VaultResponse struct {
	Key                  string    `json:"key"`
	Index                uint64    `json:"index"`
	UnderlyingMint       string    `json:"underlying_mint"`
	UnderlyingDecimals   uint8     `json:"underlying_decimals"`
	SharesMint           string    `json:"shares_mint"`
	TokenAccount         string    `json:"token_account"`
	Accountant           string    `json:"accountant,omitempty"`
	TotalIdle            uint64    `json:"total_idle"`
	TotalDebt            uint64    `json:"total_debt"`
	TotalShares          uint64    `json:"total_shares"`
	DepositLimit         uint64    `json:"deposit_limit"`
	MinUserDeposit       uint64    `json:"min_user_deposit"`
	MinimumTotalIdle     uint64    `json:"minimum_total_idle"`
	IsShutdown           bool      `json:"is_shutdown"`
	KYCVerifiedOnly      bool      `json:"kyc_verified_only"`
	WhitelistedOnly      bool      `json:"whitelisted_only"`
	DirectDepositEnabled bool      `json:"direct_deposit_enabled"`
	NextStrategyIndex    uint64    `json:"next_strategy_index"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func vaultResponse(v *domain.Vault) VaultResponse {
	return VaultResponse{
		Key:                  v.Key,
		Index:                v.Index,
		UnderlyingMint:       v.UnderlyingMint,
		UnderlyingDecimals:   v.UnderlyingDecimals,
		SharesMint:           v.SharesMint,
		TokenAccount:         v.TokenAccount,
		Accountant:           v.Accountant,
		TotalIdle:            v.TotalIdle,
		TotalDebt:            v.TotalDebt,
		TotalShares:          v.TotalShares,
		DepositLimit:         v.DepositLimit,
		MinUserDeposit:       v.MinUserDeposit,
		MinimumTotalIdle:     v.MinimumTotalIdle,
		IsShutdown:           v.IsShutdown,
		KYCVerifiedOnly:      v.KYCVerifiedOnly,
		WhitelistedOnly:      v.WhitelistedOnly,
		DirectDepositEnabled: v.DirectDepositEnabled,
		NextStrategyIndex:    v.NextStrategyIndex,
		CreatedAt:            v.CreatedAt,
		UpdatedAt:            v.UpdatedAt,
	}
}

// StrategyResponse is the wire form of a strategy debt record.
type StrategyResponse struct {
	Key          string                `json:"key"`
	Vault        string                `json:"vault"`
	Index        uint64                `json:"index"`
	Config       domain.StrategyConfig `json:"config"`
	TokenAccount string                `json:"token_account"`
	CurrentDebt  uint64                `json:"current_debt"`
	MaxDebt      uint64                `json:"max_debt"`
	LastUpdate   time.Time             `json:"last_update"`
	IsActive     bool                  `json:"is_active"`
}

func strategyResponse(r *domain.StrategyDebtRecord) StrategyResponse {
	return StrategyResponse{
		Key:          r.Key,
		Vault:        r.Vault,
		Index:        r.Index,
		Config:       r.Config,
		TokenAccount: r.TokenAccount,
		CurrentDebt:  r.CurrentDebt,
		MaxDebt:      r.MaxDebt,
		LastUpdate:   r.LastUpdate,
		IsActive:     r.IsActive,
	}
}

// PositionResponse is a depositor's position.
type PositionResponse struct {
	Vault       string    `json:"vault"`
	Owner       string    `json:"owner"`
	Deposited   uint64    `json:"deposited"`
	Whitelisted bool      `json:"whitelisted"`
	Shares      uint64    `json:"shares"`
	MaxWithdraw uint64    `json:"max_withdraw"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func positionResponse(p *vault.Position) PositionResponse {
	return PositionResponse{
		Vault:       p.Vault,
		Owner:       p.Owner,
		Deposited:   p.Deposited,
		Whitelisted: p.Whitelisted,
		Shares:      p.Shares,
		MaxWithdraw: p.MaxWithdraw,
		UpdatedAt:   p.UpdatedAt,
	}
}

// QuoteResponse prices assets and shares at the current rate.
type QuoteResponse struct {
	Assets         uint64 `json:"assets"`
	Shares         uint64 `json:"shares"`
	SharesForAsset uint64 `json:"shares_for_assets"`
	BurnForAssets  uint64 `json:"burn_for_assets"`
	AssetsForShare uint64 `json:"assets_for_shares"`
	MaxDeposit     uint64 `json:"max_deposit"`
	TotalAssets    uint64 `json:"total_assets"`
}

// InitVaultRequest creates a vault.
type InitVaultRequest struct {
	UnderlyingMint       string `json:"underlying_mint" binding:"required"`
	UnderlyingDecimals   uint8  `json:"underlying_decimals"`
	Index                uint64 `json:"index"`
	Accountant           string `json:"accountant"`
	DepositLimit         uint64 `json:"deposit_limit"`
	MinUserDeposit       uint64 `json:"min_user_deposit"`
	MinimumTotalIdle     uint64 `json:"minimum_total_idle"`
	KYCVerifiedOnly      bool   `json:"kyc_verified_only"`
	WhitelistedOnly      bool   `json:"whitelisted_only"`
	DirectDepositEnabled bool   `json:"direct_deposit_enabled"`
}

// AddStrategyRequest attaches a strategy.
type AddStrategyRequest struct {
	Config  domain.StrategyConfig `json:"config"`
	MaxDebt uint64                `json:"max_debt"`
}

// AmountRequest carries a single amount.
type AmountRequest struct {
	Amount uint64 `json:"amount"`
}

// WithdrawRequest withdraws assets or redeems shares.
type WithdrawRequest struct {
	Assets     uint64   `json:"assets,omitempty"`
	Shares     uint64   `json:"shares,omitempty"`
	MaxLossBps uint16   `json:"max_loss_bps"`
	Strategies []string `json:"strategies"`
}

// DebtRequest sets a strategy's target debt.
type DebtRequest struct {
	NewDebt uint64 `json:"new_debt"`
}

// StatusRequest activates or deactivates a strategy.
type StatusRequest struct {
	Active bool `json:"active"`
}

// WhitelistRequest adds or removes an owner from a vault's whitelist.
type WhitelistRequest struct {
	Whitelisted bool `json:"whitelisted"`
}

// PnLRequest moves a simulated strategy's holdings.
type PnLRequest struct {
	Gain uint64 `json:"gain"`
	Loss uint64 `json:"loss"`
}

// FaucetRequest funds an owner in simulation mode.
type FaucetRequest struct {
	Owner  string `json:"owner" binding:"required"`
	Mint   string `json:"mint" binding:"required"`
	Amount uint64 `json:"amount"`
}

// FaucetResponse names the funded token account.
type FaucetResponse struct {
	TokenAccount string `json:"token_account"`
}
