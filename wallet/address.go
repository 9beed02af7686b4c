package wallet

import (
	"fmt"
	"strings"

	"github.com/genetrust/genetrust-gateway/genetrust"
)

// CAIP-2 chain ids of the Stacks networks.
const (
	caipMainnet = "1"
	caipTestnet = "2147483648"
)

type account struct {
	address string
	mainnet bool
}

// parseAccount reads either a bare address or a CAIP-10 "stacks:<chain>:<address>" id.
func parseAccount(raw string) (account, bool) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "stacks:") {
		parts := strings.Split(raw, ":")
		if len(parts) != 3 {
			return account{}, false
		}
		switch parts[1] {
		case caipMainnet:
			return account{address: parts[2], mainnet: true}, true
		case caipTestnet:
			return account{address: parts[2], mainnet: false}, true
		}
		return account{}, false
	}
	switch {
	case strings.HasPrefix(raw, "SP"), strings.HasPrefix(raw, "SM"):
		return account{address: raw, mainnet: true}, true
	case strings.HasPrefix(raw, "ST"), strings.HasPrefix(raw, "SN"):
		return account{address: raw, mainnet: false}, true
	}
	return account{}, false
}

// selectAddress picks the first account of the preferred network and falls back to the
// first account of the other one.
func selectAddress(accounts []string, network string) (string, error) {
	wantMainnet := network == genetrust.NetworkMainnet
	var fallback string
	for _, raw := range accounts {
		acc, ok := parseAccount(raw)
		if !ok {
			continue
		}
		if acc.mainnet == wantMainnet {
			return acc.address, nil
		}
		if fallback == "" {
			fallback = acc.address
		}
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", fmt.Errorf("no stacks account among %d accounts", len(accounts))
}
