package domain

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Network identifies the settlement network an Address belongs to.
type Network string

const (
	NetworkEthereum Network = "ethereum"
	NetworkTron     Network = "tron"
	NetworkBitcoin  Network = "bitcoin"
)

// ParseNetwork converts a wire string into a Network.
func ParseNetwork(s string) (Network, error) {
	switch n := Network(strings.ToLower(s)); n {
	case NetworkEthereum, NetworkTron, NetworkBitcoin:
		return n, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedNetwork, s)
	}
}

func (n Network) String() string { return string(n) }

var (
	ethereumRe  = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	tronRe      = regexp.MustCompile(`^T[1-9A-HJ-NP-Za-km-z]{33}$`)
	btcBase58Re = regexp.MustCompile(`^[13][1-9A-HJ-NP-Za-km-z]{25,34}$`)
	btcBech32Re = regexp.MustCompile(`^bc1[02-9ac-hj-np-z]{11,71}$`)
)

// Address is an immutable, structurally valid destination address. Validation
// happens exactly once, at construction; any Address a caller holds is known
// to be well-formed for its network.
type Address struct {
	value   string
	network Network
}

// NewAddress validates value against the network's format rules. For Ethereum
// a mixed-case address must additionally carry a correct EIP-55 checksum
// (all-lowercase and all-uppercase hex are accepted without one); legacy
// bitcoin addresses must pass their base58check checksum.
func NewAddress(value string, network Network) (Address, error) {
	var ok bool
	switch network {
	case NetworkEthereum:
		ok = validEthereum(value)
	case NetworkTron:
		ok = tronRe.MatchString(value)
	case NetworkBitcoin:
		ok = validBitcoin(value)
	default:
		return Address{}, fmt.Errorf("%w: %q", ErrUnsupportedNetwork, network)
	}
	if !ok {
		return Address{}, fmt.Errorf("%w: not a valid %s address", ErrInvalidAddress, network)
	}
	return Address{value: value, network: network}, nil
}

func (a Address) Value() string    { return a.value }
func (a Address) Network() Network { return a.network }

// Short renders the address for logs and display: first 6 + last 4 chars.
// Full addresses never appear in error messages.
func (a Address) Short() string {
	if len(a.value) <= 10 {
		return a.value
	}
	return a.value[:6] + "..." + a.value[len(a.value)-4:]
}

func (a Address) String() string { return a.value }

func validBitcoin(value string) bool {
	if btcBase58Re.MatchString(value) {
		return validBase58Check(value)
	}
	return btcBech32Re.MatchString(value)
}

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

var base58Radix = big.NewInt(58)

// validBase58Check verifies the 4-byte double-SHA256 checksum legacy bitcoin
// addresses carry, so a single mistyped character cannot yield an Address.
func validBase58Check(value string) bool {
	n := new(big.Int)
	for i := 0; i < len(value); i++ {
		idx := strings.IndexByte(base58Alphabet, value[i])
		if idx < 0 {
			return false
		}
		n.Mul(n, base58Radix)
		n.Add(n, big.NewInt(int64(idx)))
	}

	// Leading '1' characters encode leading zero bytes that big.Int drops.
	zeros := 0
	for zeros < len(value) && value[zeros] == '1' {
		zeros++
	}
	body := n.Bytes()
	decoded := make([]byte, zeros+len(body))
	copy(decoded[zeros:], body)

	if len(decoded) != 25 {
		return false
	}
	first := sha256.Sum256(decoded[:21])
	second := sha256.Sum256(first[:])
	return bytes.Equal(decoded[21:], second[:4])
}

func validEthereum(value string) bool {
	if !ethereumRe.MatchString(value) {
		return false
	}
	hexPart := value[2:]
	lower := strings.ToLower(hexPart)
	if hexPart == lower || hexPart == strings.ToUpper(hexPart) {
		return true
	}
	return checksumEthereum(lower) == hexPart
}

// checksumEthereum computes the EIP-55 mixed-case form of an all-lowercase
// hex address (without the 0x prefix).
func checksumEthereum(lowerHex string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lowerHex))
	hash := h.Sum(nil)

	out := []byte(lowerHex)
	for i, c := range out {
		if c < 'a' || c > 'f' {
			continue
		}
		nibble := hash[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if nibble&0x0f >= 8 {
			out[i] = c - ('a' - 'A')
		}
	}
	return string(out)
}
