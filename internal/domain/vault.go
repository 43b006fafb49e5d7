package domain

import "time"

// MaxBps is the basis-point denominator used for fees and loss tolerance.
const MaxBps = 10_000

// Vault is the fund aggregate: pooled idle capital, capital allocated to
// strategies, and the share supply that claims both.
type Vault struct {
	Key                string // program-derived vault address
	Index              uint64 // disambiguates vaults over the same underlying mint
	UnderlyingMint     string
	UnderlyingDecimals uint8
	SharesMint         string
	TokenAccount       string // vault-owned underlying token account
	Accountant         string // fee accountant key

	TotalIdle   uint64
	TotalDebt   uint64
	TotalShares uint64

	DepositLimit     uint64
	MinUserDeposit   uint64
	MinimumTotalIdle uint64

	IsShutdown           bool
	KYCVerifiedOnly      bool
	WhitelistedOnly      bool
	DirectDepositEnabled bool

	NextStrategyIndex uint64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a detached copy of the vault.
func (v *Vault) Clone() *Vault {
	c := *v
	return &c
}

// TotalAssets returns TotalIdle + TotalDebt. ok is false on overflow.
func (v *Vault) TotalAssets() (uint64, bool) {
	sum := v.TotalIdle + v.TotalDebt
	if sum < v.TotalIdle {
		return 0, false
	}
	return sum, true
}

// UserPosition is per-depositor bookkeeping. It does not take part in
// share conversion.
type UserPosition struct {
	Vault       string
	Owner       string
	Deposited   uint64 // cumulative deposited assets, reduced by withdrawals
	Whitelisted bool
	UpdatedAt   time.Time
}

// Clone returns a detached copy of the position.
func (p *UserPosition) Clone() *UserPosition {
	c := *p
	return &c
}

// FeeAccrual is the accountant-side fee state referenced by a vault.
type FeeAccrual struct {
	Accountant        string
	Recipient         string
	EntryFeeBps       uint16
	PerformanceFeeBps uint16
	AccruedFees       uint64
}
