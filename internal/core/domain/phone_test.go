package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPhoneNumber_NormalizesAllInputShapes(t *testing.T) {
	inputs := []string{
		"0712345678",
		"+254712345678",
		"254712345678",
		"712345678",
		"0712 345 678",
		"+254 712-345-678",
	}
	for _, raw := range inputs {
		p, err := NewPhoneNumber(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, "+254712345678", p.E164(), raw)
	}
}

func TestNewPhoneNumber_AcceptsAirtelPrefix(t *testing.T) {
	p, err := NewPhoneNumber("0112345678")

	require.NoError(t, err)
	assert.Equal(t, "+254112345678", p.E164())
}

func TestNewPhoneNumber_Rejects(t *testing.T) {
	for _, raw := range []string{
		"0812345678",    // not a mobile prefix
		"071234567",     // too short
		"07123456789",   // too long
		"+255712345678", // wrong country
		"",
		"not a number",
	} {
		_, err := NewPhoneNumber(raw)
		assert.ErrorIs(t, err, ErrInvalidPhone, raw)
	}
}

func TestPhoneNumber_Local(t *testing.T) {
	p, err := NewPhoneNumber("+254712345678")

	require.NoError(t, err)
	assert.Equal(t, "0712345678", p.Local())
}
