package domain

import "fmt"

// Currency is a closed enumeration of the currencies the platform settles in.
type Currency string

const (
	BTC  Currency = "BTC"
	USDT Currency = "USDT"
	KES  Currency = "KES"
	USD  Currency = "USD"
)

// decimals maps each currency to its canonical decimal precision. Every
// stored amount is validated against this scale; there is no per-call
// rounding anywhere downstream.
//
// KES is carried with 2 decimals. Cents are rarely used in practice, but the
// settlement rails report amounts as NUMERIC(20,2).
var decimals = map[Currency]int32{
	BTC:  8,
	USDT: 6,
	KES:  2,
	USD:  2,
}

// ParseCurrency converts a wire string into a Currency.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(s)
	if _, ok := decimals[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCurrency, s)
	}
	return c, nil
}

// Decimals returns the canonical number of decimal places for the currency.
func (c Currency) Decimals() int32 {
	return decimals[c]
}

// Valid reports whether the currency is part of the supported set.
func (c Currency) Valid() bool {
	_, ok := decimals[c]
	return ok
}

func (c Currency) String() string {
	return string(c)
}
