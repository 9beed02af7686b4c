package walletevent

import (
	"github.com/genetrust/genetrust-gateway/types"
)

// Methods a wallet app receives over its request channel.
const (
	MethodInitConnect           = "InitConnect"
	MethodWalletSession         = "WalletSession"
	MethodWalletConnect         = "WalletConnect"
	MethodWalletDisconnect      = "WalletDisconnect"
	MethodWalletSignMessage     = "WalletSignMessage"
	MethodWalletSendTransaction = "WalletSendTransaction"
)

// WalletRegisterPolicy is sent by a wallet app when it attaches to the gateway.
type WalletRegisterPolicy struct {
	Provider types.ProviderID `json:"provider"`
	// Name identifies the app instance in logs and listings, e.g. "leather-bridge".
	Name string `json:"name"`
}
