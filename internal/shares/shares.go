// Package shares converts between underlying assets and vault shares.
//
// Conversions use the vault's total assets (idle + debt) as the asset side of
// the exchange rate and round down, so a deposit never mints more than its
// proportional claim and a redemption never pays out more than its claim.
// Products are computed in 256 bits.
package shares

import (
	"github.com/holiman/uint256"

	"solana-vault-ledger/internal/domain"
)

// Supply is the part of the vault state the exchange rate depends on.
type Supply struct {
	TotalShares uint64
	TotalAssets uint64
}

// SupplyOf reads the exchange-rate inputs from a vault.
func SupplyOf(v *domain.Vault) (Supply, error) {
	assets, ok := v.TotalAssets()
	if !ok {
		return Supply{}, domain.ErrMathOverflow
	}
	return Supply{TotalShares: v.TotalShares, TotalAssets: assets}, nil
}

// ToShares converts assets to shares, rounding down.
// An empty vault converts 1:1. A vault with outstanding shares but no assets
// converts to zero.
func ToShares(s Supply, assets uint64) (uint64, error) {
	if s.TotalShares == 0 {
		return assets, nil
	}
	if s.TotalAssets == 0 {
		return 0, nil
	}
	return MulDiv(assets, s.TotalShares, s.TotalAssets)
}

// ToSharesUp converts assets to shares, rounding up. It sizes the burn of an
// asset-denominated withdrawal.
func ToSharesUp(s Supply, assets uint64) (uint64, error) {
	if s.TotalShares == 0 {
		return assets, nil
	}
	if s.TotalAssets == 0 {
		return 0, nil
	}
	return MulDivUp(assets, s.TotalShares, s.TotalAssets)
}

// ToUnderlying converts shares to assets, rounding down.
func ToUnderlying(s Supply, shares uint64) (uint64, error) {
	if s.TotalShares == 0 {
		return shares, nil
	}
	return MulDiv(shares, s.TotalAssets, s.TotalShares)
}

// MulDiv returns floor(a*b/d).
func MulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, domain.ErrMathOverflow
	}
	q := product(a, b)
	q.Div(q, uint256.NewInt(d))
	if !q.IsUint64() {
		return 0, domain.ErrMathOverflow
	}
	return q.Uint64(), nil
}

// MulDivUp returns ceil(a*b/d).
func MulDivUp(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, domain.ErrMathOverflow
	}
	p := product(a, b)
	den := uint256.NewInt(d)
	rem := new(uint256.Int).Mod(p, den)
	q := new(uint256.Int).Div(p, den)
	if !rem.IsZero() {
		q.AddUint64(q, 1)
	}
	if !q.IsUint64() {
		return 0, domain.ErrMathOverflow
	}
	return q.Uint64(), nil
}

func product(a, b uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
}

// Add returns a+b or ErrMathOverflow.
func Add(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, domain.ErrMathOverflow
	}
	return sum, nil
}

// Sub returns a-b or ErrMathOverflow when b > a.
func Sub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, domain.ErrMathOverflow
	}
	return a - b, nil
}

// Bps returns floor(amount*bps/10000).
func Bps(amount uint64, bps uint16) uint64 {
	fee, _ := MulDiv(amount, uint64(bps), domain.MaxBps)
	return fee
}
