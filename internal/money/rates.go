package money

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// RateProvider supplies exchange rates for converting between currencies.
// Rate must return a positive scalar such that amount(from) * rate = amount(to),
// and 1 when from == to. Implementations must not block the ledger: live
// fetching belongs behind CachedRates, never inline in a netting computation.
type RateProvider interface {
	Rate(from, to Currency) (decimal.Decimal, error)
}

// Convert converts an amount between currencies using the given provider.
// The result is not rounded; rounding is the caller's decision at display or
// aggregation time.
func Convert(amount decimal.Decimal, from, to Currency, rates RateProvider) (decimal.Decimal, error) {
	if from.Code == to.Code {
		return amount, nil
	}
	rate, err := rates.Rate(from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate), nil
}

// StaticRates is a RateProvider backed by a fixed table, typically loaded from
// configuration as manual fallback rates. The inverse of a configured rate is
// derived automatically.
type StaticRates struct {
	table map[string]decimal.Decimal // key: "FROM/TO"
}

// NewStaticRates builds a provider from a FROM/TO -> rate table.
func NewStaticRates(rates map[string]float64) *StaticRates {
	table := make(map[string]decimal.Decimal, len(rates))
	for pair, rate := range rates {
		table[pair] = decimal.NewFromFloat(rate)
	}
	return &StaticRates{table: table}
}

func rateKey(from, to Currency) string {
	return from.Code + "/" + to.Code
}

// Rate resolves a rate from the table, trying the inverse direction if the
// direct one is not configured.
func (s *StaticRates) Rate(from, to Currency) (decimal.Decimal, error) {
	if from.Code == to.Code {
		return decimal.NewFromInt(1), nil
	}
	if rate, ok := s.table[rateKey(from, to)]; ok && rate.IsPositive() {
		return rate, nil
	}
	if inverse, ok := s.table[rateKey(to, from)]; ok && inverse.IsPositive() {
		return decimal.NewFromInt(1).Div(inverse), nil
	}
	return decimal.Zero, fmt.Errorf("%w: no rate for %s/%s", ErrUnknownCurrency, from.Code, to.Code)
}

type cachedRate struct {
	rate  decimal.Decimal
	stale bool
}

// CachedRates wraps a RateProvider with a last-known-good cache. When the
// underlying provider fails, the most recent successful rate is served and
// flagged stale instead of failing the computation. Only a pair that has never
// resolved returns an error.
type CachedRates struct {
	src RateProvider

	mu    sync.RWMutex
	cache map[string]cachedRate
}

// NewCachedRates wraps src with a last-known-good cache.
func NewCachedRates(src RateProvider) *CachedRates {
	return &CachedRates{src: src, cache: make(map[string]cachedRate)}
}

// Rate implements RateProvider.
func (c *CachedRates) Rate(from, to Currency) (decimal.Decimal, error) {
	rate, _, err := c.RateWithStaleness(from, to)
	return rate, err
}

// RateWithStaleness resolves a rate and reports whether it came from the cache
// after a provider failure. Surfacing staleness to users is the UI's concern.
func (c *CachedRates) RateWithStaleness(from, to Currency) (decimal.Decimal, bool, error) {
	if from.Code == to.Code {
		return decimal.NewFromInt(1), false, nil
	}
	key := rateKey(from, to)

	rate, err := c.src.Rate(from, to)
	if err == nil && rate.IsPositive() {
		c.mu.Lock()
		c.cache[key] = cachedRate{rate: rate}
		c.mu.Unlock()
		return rate, false, nil
	}

	c.mu.RLock()
	cached, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return cached.rate, true, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	return decimal.Zero, false, fmt.Errorf("%w: no rate for %s/%s", ErrUnknownCurrency, from.Code, to.Code)
}
