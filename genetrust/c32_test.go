package genetrust

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	t.Run("burn addresses", func(t *testing.T) {
		for _, s := range []string{"SP000000000000000000002Q6VF78", "ST000000000000000000002AMW42H"} {
			addr, err := ParseAddress(s)
			require.NoError(t, err)
			require.Equal(t, [20]byte{}, addr.Hash160)
			require.Equal(t, s, addr.String())
		}
	})

	t.Run("versions", func(t *testing.T) {
		cases := map[string]struct {
			version byte
			mainnet bool
		}{
			"SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7": {VersionMainnetSingleSig, true},
			"SM2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKQVX8X0G": {VersionMainnetMultiSig, true},
			"ST2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKQYAC0RQ": {VersionTestnetSingleSig, false},
			"SN2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKP6D2ZK9": {VersionTestnetMultiSig, false},
		}
		for s, want := range cases {
			addr, err := ParseAddress(s)
			require.NoError(t, err, s)
			require.Equal(t, want.version, addr.Version, s)
			require.Equal(t, want.mainnet, addr.Mainnet(), s)
			require.Equal(t, "a46ff88886c2ef9762d970b4d2c63678835bd39d", addr.HashHex(), s)
		}
	})

	t.Run("lower case", func(t *testing.T) {
		addr, err := ParseAddress(strings.ToLower("ST2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKQYAC0RQ"))
		require.NoError(t, err)
		require.Equal(t, "ST2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKQYAC0RQ", addr.String())
	})

	t.Run("invalid", func(t *testing.T) {
		for _, s := range []string{
			"",
			"0x1234",
			"ST3M31VTN8R1X4X6T2TMHBYMBXF08D7C1ZSJBJB2Z", // bad checksum
			"ST2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKQYAC0RU", // U is not c32
			"SX2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKQYAC0RQ",
		} {
			_, err := ParseAddress(s)
			require.Error(t, err, s)
		}
	})
}

func TestAddressRoundTrip(t *testing.T) {
	var hash [20]byte
	for i := range hash {
		hash[i] = byte(i + 1)
	}
	addr := Address{Version: VersionTestnetSingleSig, Hash160: hash}
	require.Equal(t, "STG40R40M30E209185GR38E1W8124GK2HKSRMTB", addr.String())

	parsed, err := ParseAddress(addr.String())
	require.NoError(t, err)
	require.Equal(t, addr, parsed)
}
