// Package units converts between user-facing decimal amounts and the integer
// smallest-unit amounts that chains and routers work with.
package units

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxDecimals bounds the exponent accepted for a token.
const MaxDecimals = 36

var (
	ErrEmptyAmount        = errors.New("amount is empty")
	ErrNonPositiveAmount  = errors.New("amount must be greater than zero")
	ErrBelowSmallestUnit  = errors.New("amount is smaller than one unit of the token")
	ErrDecimalsOutOfRange = fmt.Errorf("decimals must be between 0 and %d", MaxDecimals)
)

// ParseDecimal parses a strictly positive decimal string.
func ParseDecimal(amount string) (decimal.Decimal, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return decimal.Zero, ErrEmptyAmount
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrNonPositiveAmount
	}
	return d, nil
}

// Scale shifts d by decimals and truncates toward zero.
func Scale(d decimal.Decimal, decimals int) (*big.Int, error) {
	if decimals < 0 || decimals > MaxDecimals {
		return nil, ErrDecimalsOutOfRange
	}
	scaled := d.Shift(int32(decimals)).Truncate(0)
	if !scaled.IsPositive() {
		return nil, ErrBelowSmallestUnit
	}
	return scaled.BigInt(), nil
}

// ToSmallestUnit converts "1.5" with 6 decimals to 1500000.
func ToSmallestUnit(amount string, decimals int) (*big.Int, error) {
	d, err := ParseDecimal(amount)
	if err != nil {
		return nil, err
	}
	return Scale(d, decimals)
}

// FromSmallestUnit renders an integer amount as a decimal string.
func FromSmallestUnit(amount *big.Int, decimals int) string {
	return decimal.NewFromBigInt(amount, int32(-decimals)).String()
}

// ParseInteger parses a base-10 integer string, as returned by routers and
// chain APIs.
func ParseInteger(s string) (*big.Int, bool) {
	return new(big.Int).SetString(strings.TrimSpace(s), 10)
}
