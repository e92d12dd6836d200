// Package money converts between boundary decimal amounts and the integer
// minor units (cents) used for all internal arithmetic.
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// minorPlaces is the number of decimal places carried by balances (cents).
const minorPlaces = 2

// ErrAmountTooLarge is returned when a decimal amount does not fit into
// 64-bit integer minor units.
var ErrAmountTooLarge = errors.New("money: amount does not fit in 64-bit minor units")

// Normalize maps a currency code to its canonical uppercase form. Codes are
// case-insensitive at the service boundary and uppercase everywhere inside.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ToMinor converts a decimal currency value to integer minor units, rounding
// half away from zero at two decimal places. The conversion happens exactly
// once, at the service boundary; everything past it is int64 arithmetic, so
// repeated additions cannot accumulate floating-point drift.
func ToMinor(d decimal.Decimal) (int64, error) {
	shifted := d.Round(minorPlaces).Shift(minorPlaces)
	if !shifted.BigInt().IsInt64() {
		return 0, ErrAmountTooLarge
	}

	return shifted.IntPart(), nil
}

// FromMinor renders integer minor units as a decimal with two places.
func FromMinor(m int64) decimal.Decimal {
	return decimal.New(m, -minorPlaces)
}
