package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an immutable amount in a single currency. All arithmetic is exact
// decimal arithmetic; the constructor rejects amounts that cannot be
// represented at the currency's canonical precision instead of rounding.
//
// Zero and negative amounts are representable on purpose: positivity is a
// business rule enforced by the validator, not by the type.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney builds a Money, failing if the currency is unknown or the amount
// carries more decimal places than the currency allows.
func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if !currency.Valid() {
		return Money{}, fmt.Errorf("%w: %q", ErrUnknownCurrency, currency)
	}
	if !amount.Equal(amount.Truncate(currency.Decimals())) {
		return Money{}, fmt.Errorf("%w: %s has more than %d decimal places for %s",
			ErrPrecision, amount.String(), currency.Decimals(), currency)
	}
	return Money{amount: amount, currency: currency}, nil
}

// MustMoney is a convenience for static tables and tests where the literal is
// known to be valid. It panics on invalid input.
func MustMoney(s string, currency Currency) Money {
	m, err := NewMoney(decimal.RequireFromString(s), currency)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Currency() Currency      { return m.currency }

func (m Money) IsZero() bool     { return m.amount.IsZero() }
func (m Money) IsPositive() bool { return m.amount.IsPositive() }
func (m Money) IsNegative() bool { return m.amount.IsNegative() }

// Add returns a new Money holding the sum. Both operands must share a
// currency; cross-currency math requires an explicit ConvertTo.
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("%w: %s + %s", ErrCurrencyMismatch, m.currency, other.currency)
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Sub returns a new Money holding the difference.
func (m Money) Sub(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("%w: %s - %s", ErrCurrencyMismatch, m.currency, other.currency)
	}
	return Money{amount: m.amount.Sub(other.amount), currency: m.currency}, nil
}

// Mul scales the amount by a dimensionless factor, rounding half-to-even at
// the currency's canonical precision.
func (m Money) Mul(factor decimal.Decimal) Money {
	return Money{
		amount:   m.amount.Mul(factor).RoundBank(m.currency.Decimals()),
		currency: m.currency,
	}
}

// ConvertTo produces a new Money in the target currency at the given rate,
// rounded half-to-even (banker's rounding) at the target's canonical
// precision. The rate itself is not recorded here; callers that need an audit
// trail store it on the TransactionRecord.
func (m Money) ConvertTo(target Currency, rate decimal.Decimal) (Money, error) {
	if !target.Valid() {
		return Money{}, fmt.Errorf("%w: %q", ErrUnknownCurrency, target)
	}
	if rate.Sign() <= 0 {
		return Money{}, fmt.Errorf("%w: exchange rate must be positive, got %s", ErrInvalidRate, rate)
	}
	converted := m.amount.Mul(rate).RoundBank(target.Decimals())
	return Money{amount: converted, currency: target}, nil
}

// Cmp compares two amounts of the same currency: -1 if m < other, 0 if equal,
// +1 if m > other.
func (m Money) Cmp(other Money) (int, error) {
	if m.currency != other.currency {
		return 0, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.currency, other.currency)
	}
	return m.amount.Cmp(other.amount), nil
}

// Equal reports amount and currency equality. Trailing zeros do not matter:
// 1.5 USDT equals 1.500000 USDT.
func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// String renders the amount at canonical precision, e.g. "100.000000 USDT".
func (m Money) String() string {
	return m.amount.StringFixed(m.currency.Decimals()) + " " + string(m.currency)
}
