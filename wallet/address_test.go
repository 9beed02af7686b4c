package wallet

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/genetrust/genetrust-gateway/testhelper"
)

func TestSelectAddress(t *testing.T) {
	st := testhelper.TestnetAddress(1)
	sp := testhelper.MainnetAddress(1)

	cases := []struct {
		name     string
		accounts []string
		network  string
		want     string
	}{
		{"testnet preferred", []string{sp, st}, "testnet", st},
		{"mainnet preferred", []string{st, sp}, "mainnet", sp},
		{"fallback to mainnet", []string{sp}, "testnet", sp},
		{"fallback to testnet", []string{st}, "mainnet", st},
		{"caip testnet", []string{"stacks:1:" + sp, "stacks:2147483648:" + st}, "testnet", st},
		{"caip mainnet", []string{"stacks:1:" + sp, "stacks:2147483648:" + st}, "mainnet", sp},
		{"skip foreign chains", []string{"eip155:1:0xabc", "stacks:2147483648:" + st}, "testnet", st},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := selectAddress(c.accounts, c.network)
			require.NoError(t, err)
			require.Equal(t, c.want, got)
		})
	}

	_, err := selectAddress(nil, "testnet")
	require.Error(t, err)
	_, err = selectAddress([]string{"eip155:1:0xabc", "stacks:5:" + st}, "testnet")
	require.Error(t, err)
}
