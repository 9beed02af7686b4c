// stm: #unit
package validator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/genetrust/genetrust-gateway/apperr"
)

var testArgs = []struct {
	addr      string
	testnetOk bool
	mainnetOk bool
}{
	{"ST2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKQYAC0RQ", true, false},
	{"SN2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKP6D2ZK9", true, false},
	{"SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7", false, true},
	{"SM2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKQVX8X0G", false, true},
	// checksum mismatch
	{"ST2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKQYAC0RR", false, false},
	{"", false, false},
	{"0xdeadbeef", false, false},
}

func TestAddressValidator_Validate(t *testing.T) {
	ctx := context.Background()
	testnet, err := NewAddressValidator("testnet")
	require.NoError(t, err)
	mainnet, err := NewAddressValidator("mainnet")
	require.NoError(t, err)

	for _, arg := range testArgs {
		addr := arg.addr
		if arg.testnetOk {
			require.NoError(t, testnet.Validate(ctx, addr), addr)
		} else {
			err := testnet.Validate(ctx, addr)
			require.ErrorIs(t, err, apperr.ErrInvalidInput, addr)
		}
		if arg.mainnetOk {
			require.NoError(t, mainnet.Validate(ctx, addr), addr)
		} else {
			require.ErrorIs(t, mainnet.Validate(ctx, addr), apperr.ErrInvalidInput, addr)
		}
	}

	_, err = NewAddressValidator("devnet")
	require.Error(t, err)
}

func TestMockAddressValidator(t *testing.T) {
	ctx := context.Background()
	v := MockAddressValidator{Rejected: []string{"bad"}}
	require.NoError(t, v.Validate(ctx, "anything"))
	require.Error(t, v.Validate(ctx, "bad"))
	require.Error(t, v.Validate(ctx, ""))
}
