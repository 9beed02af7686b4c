package testhelper

import (
	"github.com/genetrust/genetrust-gateway/genetrust"
)

// TestnetAddress returns a checksum valid ST address derived from seed.
func TestnetAddress(seed byte) string {
	return address(genetrust.VersionTestnetSingleSig, seed)
}

// MainnetAddress returns the SP address sharing TestnetAddress(seed)'s hash.
func MainnetAddress(seed byte) string {
	return address(genetrust.VersionMainnetSingleSig, seed)
}

func address(version, seed byte) string {
	var hash [20]byte
	for i := range hash {
		hash[i] = seed + byte(i)
	}
	return genetrust.Address{Version: version, Hash160: hash}.String()
}
