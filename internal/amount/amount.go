// Package amount converts between base-unit token amounts and their decimal
// display form using the mint's decimals.
package amount

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Parse errors
var (
	ErrNegative  = errors.New("amount must not be negative")
	ErrPrecision = errors.New("amount has more fractional digits than the mint allows")
	ErrOverflow  = errors.New("amount exceeds uint64")
)

var maxUint64 = decimal.NewFromUint64(math.MaxUint64)

// Format renders base units with decimals fractional digits, trimming
// trailing zeros.
func Format(units uint64, decimals uint8) string {
	return decimal.NewFromUint64(units).Shift(-int32(decimals)).String()
}

// FormatFixed renders base units with exactly decimals fractional digits.
func FormatFixed(units uint64, decimals uint8) string {
	return decimal.NewFromUint64(units).Shift(-int32(decimals)).StringFixed(int32(decimals))
}

// Parse converts a display amount such as "12.5" into base units.
func Parse(s string, decimals uint8) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return FromDecimal(d, decimals)
}

// FromDecimal converts a display amount into base units.
func FromDecimal(d decimal.Decimal, decimals uint8) (uint64, error) {
	if d.IsNegative() {
		return 0, ErrNegative
	}
	units := d.Shift(int32(decimals))
	if !units.Equal(units.Truncate(0)) {
		return 0, ErrPrecision
	}
	if units.GreaterThan(maxUint64) {
		return 0, ErrOverflow
	}
	return units.BigInt().Uint64(), nil
}

// Bps renders basis points as a percentage, e.g. 125 -> "1.25%".
func Bps(bps uint16) string {
	return decimal.NewFromInt(int64(bps)).Shift(-2).String() + "%"
}
