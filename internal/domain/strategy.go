package domain

import "time"

// StrategyDebtRecord tracks the capital a vault has allocated to one strategy.
type StrategyDebtRecord struct {
	Key          string // program-derived strategy address
	Vault        string
	Index        uint64
	Config       StrategyConfig
	TokenAccount string // strategy-owned underlying token account

	CurrentDebt uint64
	MaxDebt     uint64
	LastUpdate  time.Time
	IsActive    bool
}

// Clone returns a detached copy of the record.
func (r *StrategyDebtRecord) Clone() *StrategyDebtRecord {
	c := *r
	c.Config = r.Config.Clone()
	return &c
}

// StrategyConfig is the type tag plus parameters an adapter is decoded from.
type StrategyConfig struct {
	StrategyType string `json:"strategy_type"` // "SIMPLE" | "TIME_LOCKED" | "AMM"

	// SIMPLE parameters; nil means no cap.
	DepositCap *uint64 `json:"deposit_cap,omitempty"`

	// TIME_LOCKED parameters
	LockPeriodMs *int64 `json:"lock_period_ms,omitempty"`

	// AMM parameters
	SlippageBps *uint16 `json:"slippage_bps,omitempty"`
}

// Clone deep-copies the optional parameters.
func (c StrategyConfig) Clone() StrategyConfig {
	out := StrategyConfig{StrategyType: c.StrategyType}
	if c.DepositCap != nil {
		v := *c.DepositCap
		out.DepositCap = &v
	}
	if c.LockPeriodMs != nil {
		v := *c.LockPeriodMs
		out.LockPeriodMs = &v
	}
	if c.SlippageBps != nil {
		v := *c.SlippageBps
		out.SlippageBps = &v
	}
	return out
}

// Strategy type constants
const (
	StrategyTypeSimple     = "SIMPLE"
	StrategyTypeTimeLocked = "TIME_LOCKED"
	StrategyTypeAMM        = "AMM"
)
