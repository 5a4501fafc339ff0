// Package money provides fixed-precision amounts, per-currency rounding and
// exchange-rate conversion for the debt ledger.
//
// All amounts are decimal.Decimal values carried in their original currency;
// conversion happens only at aggregation points, via a RateProvider. Rounding
// always goes through the Currency so that split shares tie out exactly to the
// expense total instead of drifting in binary floating point.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrUnknownCurrency is returned when a currency code is not registered or no
// exchange rate between two currencies can be resolved.
var ErrUnknownCurrency = errors.New("unknown currency")

// Epsilon is the tolerance under which an amount is considered zero.
// Balances and transfers below this threshold are treated as settled.
var Epsilon = decimal.New(1, -3) // 0.001

// Currency identifies a currency and its rounding granularity.
type Currency struct {
	// Code is the ISO 4217 code, e.g. "JPY".
	Code string

	// Exponent is the number of minor-unit digits: 0 for JPY, 2 for USD.
	Exponent int32
}

// registry holds the currencies the ledger understands. Kept small on purpose;
// adding a currency is a one-line change.
var registry = map[string]Currency{
	"JPY": {Code: "JPY", Exponent: 0},
	"KRW": {Code: "KRW", Exponent: 0},
	"USD": {Code: "USD", Exponent: 2},
	"EUR": {Code: "EUR", Exponent: 2},
	"GBP": {Code: "GBP", Exponent: 2},
	"AUD": {Code: "AUD", Exponent: 2},
	"CAD": {Code: "CAD", Exponent: 2},
	"CNY": {Code: "CNY", Exponent: 2},
	"TWD": {Code: "TWD", Exponent: 2},
	"THB": {Code: "THB", Exponent: 2},
	"VND": {Code: "VND", Exponent: 0},
	"SGD": {Code: "SGD", Exponent: 2},
	"INR": {Code: "INR", Exponent: 2},
	"CHF": {Code: "CHF", Exponent: 2},
}

// Lookup resolves a currency code against the registry.
func Lookup(code string) (Currency, error) {
	c, ok := registry[code]
	if !ok {
		return Currency{}, fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
	}
	return c, nil
}

// MustLookup is Lookup for codes known at compile time (tests, defaults).
// It panics on an unregistered code.
func MustLookup(code string) Currency {
	c, err := Lookup(code)
	if err != nil {
		panic(err)
	}
	return c
}

// Unit returns the smallest representable amount in this currency
// (1 for JPY, 0.01 for USD).
func (c Currency) Unit() decimal.Decimal {
	return decimal.New(1, -c.Exponent)
}

// Round rounds half away from zero to the currency's granularity.
func (c Currency) Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(c.Exponent)
}

// Ceil rounds up to the currency's granularity. This is the rounding used for
// per-person shares so the payer absorbs the slack rather than losing it.
func (c Currency) Ceil(d decimal.Decimal) decimal.Decimal {
	return d.RoundCeil(c.Exponent)
}

// IsZeroish reports whether d is within Epsilon of zero.
func IsZeroish(d decimal.Decimal) bool {
	return d.Abs().LessThanOrEqual(Epsilon)
}

// NonNegative clamps sub-zero noise to exactly zero while leaving material
// negative values untouched for the caller to reject.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
