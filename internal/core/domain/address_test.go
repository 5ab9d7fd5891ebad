package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAddress_EthereumChecksum(t *testing.T) {
	// Reference checksummed addresses from the EIP-55 test vectors.
	valid := []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
	}
	for _, addr := range valid {
		_, err := NewAddress(addr, NetworkEthereum)
		assert.NoError(t, err, addr)
	}
}

func TestNewAddress_EthereumBadChecksum(t *testing.T) {
	// One flipped-case letter breaks the checksum.
	_, err := NewAddress("0x5aaeb6053F3E94C9b9A09f33669435E7Ef1BeAed", NetworkEthereum)

	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestNewAddress_EthereumUniformCaseSkipsChecksum(t *testing.T) {
	lower := "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
	_, err := NewAddress(lower, NetworkEthereum)
	assert.NoError(t, err)

	upper := "0x" + strings.ToUpper(lower[2:])
	_, err = NewAddress(upper, NetworkEthereum)
	assert.NoError(t, err)
}

func TestNewAddress_EthereumMalformed(t *testing.T) {
	for _, addr := range []string{
		"5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", // missing 0x
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeA",  // too short
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAedff", // too long
		"0xZZZeb6053F3E94C9b9A09f33669435E7Ef1BeAed",   // non-hex
	} {
		_, err := NewAddress(addr, NetworkEthereum)
		assert.ErrorIs(t, err, ErrInvalidAddress, addr)
	}
}

func TestNewAddress_Tron(t *testing.T) {
	addr, err := NewAddress("TLsV52sRDL79HXGGm9yzwKibb6BeruhUzy", NetworkTron)
	require.NoError(t, err)
	assert.Equal(t, NetworkTron, addr.Network())

	// Base58 forbids 0, O, I, l.
	_, err = NewAddress("TLsV52sRDL79HXGGm9yzwKibb6Beruh0zy", NetworkTron)
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = NewAddress("XLsV52sRDL79HXGGm9yzwKibb6BeruhUzy", NetworkTron)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestNewAddress_Bitcoin(t *testing.T) {
	for _, addr := range []string{
		"1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",         // P2PKH
		"3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy",         // P2SH
		"bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", // bech32
	} {
		_, err := NewAddress(addr, NetworkBitcoin)
		assert.NoError(t, err, addr)
	}

	_, err := NewAddress("2A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", NetworkBitcoin)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestNewAddress_BitcoinChecksumFailure(t *testing.T) {
	// One character off an otherwise well-formed legacy address breaks the
	// base58check checksum.
	for _, addr := range []string{
		"1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNb", // P2PKH, last char flipped
		"3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLz", // P2SH, last char flipped
	} {
		_, err := NewAddress(addr, NetworkBitcoin)
		assert.ErrorIs(t, err, ErrInvalidAddress, addr)
	}
}

func TestNewAddress_UnknownNetwork(t *testing.T) {
	_, err := NewAddress("whatever", Network("solana"))

	assert.ErrorIs(t, err, ErrUnsupportedNetwork)
}

func TestAddress_Short(t *testing.T) {
	addr, err := NewAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", NetworkEthereum)
	require.NoError(t, err)

	assert.Equal(t, "0x5aAe...eAed", addr.Short())
}

func TestParseNetwork(t *testing.T) {
	n, err := ParseNetwork("Ethereum")
	require.NoError(t, err)
	assert.Equal(t, NetworkEthereum, n)

	_, err = ParseNetwork("dogecoin")
	assert.ErrorIs(t, err, ErrUnsupportedNetwork)
}
