package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney_AcceptsTrailingZeros(t *testing.T) {
	// 100.000000 has six decimal places but equals a whole number; USDT's
	// six-decimal precision must accept it.
	m, err := NewMoney(decimal.RequireFromString("100.000000"), USDT)

	require.NoError(t, err)
	assert.True(t, m.Equal(MustMoney("100", USDT)))
}

func TestNewMoney_RejectsExcessPrecision(t *testing.T) {
	_, err := NewMoney(decimal.RequireFromString("10.123456789"), USDT)

	assert.ErrorIs(t, err, ErrPrecision)
}

func TestNewMoney_RejectsUnknownCurrency(t *testing.T) {
	_, err := NewMoney(decimal.NewFromInt(1), Currency("EUR"))

	assert.ErrorIs(t, err, ErrUnknownCurrency)
}

func TestNewMoney_AllowsZeroAndNegative(t *testing.T) {
	zero, err := NewMoney(decimal.Zero, USD)
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	neg, err := NewMoney(decimal.RequireFromString("-5.000000"), USDT)
	require.NoError(t, err)
	assert.True(t, neg.IsNegative())
}

func TestMoney_AddSub(t *testing.T) {
	a := MustMoney("10.50", USD)
	b := MustMoney("0.25", USD)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.True(t, sum.Equal(MustMoney("10.75", USD)))

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.True(t, diff.Equal(MustMoney("10.25", USD)))
}

func TestMoney_Add_CurrencyMismatch(t *testing.T) {
	_, err := MustMoney("1.00", USD).Add(MustMoney("1.00", KES))

	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestMoney_Mul_RoundsHalfToEven(t *testing.T) {
	// 10.01 * 0.5 = 5.005; banker's rounding at two decimals gives 5.00.
	half := MustMoney("10.01", USD).Mul(decimal.RequireFromString("0.5"))
	assert.True(t, half.Equal(MustMoney("5.00", USD)), "got %s", half)

	// 10.03 * 0.5 = 5.015 rounds to 5.02 (2 is even).
	other := MustMoney("10.03", USD).Mul(decimal.RequireFromString("0.5"))
	assert.True(t, other.Equal(MustMoney("5.02", USD)), "got %s", other)
}

func TestMoney_ConvertTo(t *testing.T) {
	// 0.5 BTC at 6,000,000 KES/BTC.
	kes, err := MustMoney("0.50000000", BTC).ConvertTo(KES, decimal.RequireFromString("6000000"))

	require.NoError(t, err)
	assert.True(t, kes.Equal(MustMoney("3000000.00", KES)), "got %s", kes)
	assert.Equal(t, KES, kes.Currency())
}

func TestMoney_ConvertTo_RoundsAtTargetPrecision(t *testing.T) {
	// 1 USDT at 129.005 KES lands on a half; banker's rounding gives 129.00.
	kes, err := MustMoney("1.000000", USDT).ConvertTo(KES, decimal.RequireFromString("129.005"))

	require.NoError(t, err)
	assert.True(t, kes.Equal(MustMoney("129.00", KES)), "got %s", kes)
}

func TestMoney_ConvertTo_SameCurrencyUnitRateIsLossless(t *testing.T) {
	// Converting to the same currency at rate 1 must reproduce the amount
	// exactly, including at the precision boundary.
	for _, raw := range []string{"0.000001", "123.456789", "99999.999999"} {
		m := MustMoney(raw, USDT)

		back, err := m.ConvertTo(USDT, decimal.NewFromInt(1))

		require.NoError(t, err, raw)
		assert.True(t, back.Equal(m), raw)
		assert.True(t, back.Amount().Equal(m.Amount()), raw)
	}
}

func TestMoney_ConvertTo_RejectsNonPositiveRate(t *testing.T) {
	_, err := MustMoney("1.00", USD).ConvertTo(KES, decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidRate)

	_, err = MustMoney("1.00", USD).ConvertTo(KES, decimal.RequireFromString("-1"))
	assert.ErrorIs(t, err, ErrInvalidRate)
}

func TestMoney_Cmp(t *testing.T) {
	got, err := MustMoney("2.00", USD).Cmp(MustMoney("1.00", USD))
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	_, err = MustMoney("2.00", USD).Cmp(MustMoney("1.00", KES))
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestMoney_String_CanonicalPrecision(t *testing.T) {
	assert.Equal(t, "1.500000 USDT", MustMoney("1.5", USDT).String())
	assert.Equal(t, "0.00000010 BTC", MustMoney("0.0000001", BTC).String())
}
