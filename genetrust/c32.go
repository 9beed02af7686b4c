package genetrust

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

const c32Alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// Stacks address versions.
const (
	VersionMainnetSingleSig byte = 22 // SP
	VersionMainnetMultiSig  byte = 20 // SM
	VersionTestnetSingleSig byte = 26 // ST
	VersionTestnetMultiSig  byte = 21 // SN
)

// Address is a decoded standard principal.
type Address struct {
	Version byte
	Hash160 [20]byte
}

func (a Address) String() string {
	return "S" + c32CheckEncode(a.Version, a.Hash160[:])
}

// Mainnet reports whether the version byte belongs to mainnet.
func (a Address) Mainnet() bool {
	return a.Version == VersionMainnetSingleSig || a.Version == VersionMainnetMultiSig
}

// ParseAddress decodes a c32check Stacks address (SP.., ST.., SM.., SN..).
func ParseAddress(s string) (Address, error) {
	var addr Address
	if len(s) < 5 || (s[0] != 'S' && s[0] != 's') {
		return addr, fmt.Errorf("invalid stacks address %q: must start with S", s)
	}
	version, data, err := c32CheckDecode(s[1:])
	if err != nil {
		return addr, fmt.Errorf("invalid stacks address %q: %w", s, err)
	}
	if len(data) != 20 {
		return addr, fmt.Errorf("invalid stacks address %q: hash160 has %d bytes", s, len(data))
	}
	switch version {
	case VersionMainnetSingleSig, VersionMainnetMultiSig, VersionTestnetSingleSig, VersionTestnetMultiSig:
	default:
		return addr, fmt.Errorf("invalid stacks address %q: unknown version %d", s, version)
	}
	addr.Version = version
	copy(addr.Hash160[:], data)
	return addr, nil
}

// MustParseAddress is for constants and tests.
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

func c32Checksum(version byte, data []byte) []byte {
	first := sha256.Sum256(append([]byte{version}, data...))
	second := sha256.Sum256(first[:])
	return second[:4]
}

func c32CheckEncode(version byte, data []byte) string {
	payload := append(append([]byte{}, data...), c32Checksum(version, data)...)
	return string(c32Alphabet[version]) + c32Encode(payload)
}

func c32CheckDecode(s string) (byte, []byte, error) {
	s = c32Normalize(s)
	if len(s) < 2 {
		return 0, nil, fmt.Errorf("c32check string too short")
	}
	version := strings.IndexByte(c32Alphabet, s[0])
	if version < 0 {
		return 0, nil, fmt.Errorf("invalid c32 character %q", s[0])
	}
	payload, err := c32Decode(s[1:])
	if err != nil {
		return 0, nil, err
	}
	if len(payload) < 4 {
		return 0, nil, fmt.Errorf("c32check payload too short")
	}
	data, sum := payload[:len(payload)-4], payload[len(payload)-4:]
	if !bytes.Equal(sum, c32Checksum(byte(version), data)) {
		return 0, nil, fmt.Errorf("checksum mismatch")
	}
	return byte(version), data, nil
}

// c32Encode writes the big-endian integer in base 32 with one '0' per leading zero byte.
func c32Encode(data []byte) string {
	zeros := 0
	for zeros < len(data) && data[zeros] == 0 {
		zeros++
	}
	n := new(big.Int).SetBytes(data)
	base := big.NewInt(32)
	mod := new(big.Int)
	var out []byte
	for n.Sign() > 0 {
		n.DivMod(n, base, mod)
		out = append(out, c32Alphabet[mod.Int64()])
	}
	for i := 0; i < zeros; i++ {
		out = append(out, '0')
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

func c32Decode(s string) ([]byte, error) {
	zeros := 0
	for zeros < len(s) && s[zeros] == '0' {
		zeros++
	}
	n := new(big.Int)
	base := big.NewInt(32)
	for i := zeros; i < len(s); i++ {
		d := strings.IndexByte(c32Alphabet, s[i])
		if d < 0 {
			return nil, fmt.Errorf("invalid c32 character %q", s[i])
		}
		n.Mul(n, base)
		n.Add(n, big.NewInt(int64(d)))
	}
	return append(make([]byte, zeros), n.Bytes()...), nil
}

func c32Normalize(s string) string {
	s = strings.ToUpper(s)
	s = strings.NewReplacer("O", "0", "L", "1", "I", "1").Replace(s)
	return s
}

// HashHex is the hash160 of the address in hex, handy for logs.
func (a Address) HashHex() string {
	return hex.EncodeToString(a.Hash160[:])
}
