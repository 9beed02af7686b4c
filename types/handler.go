package types

import (
	"context"
	"errors"
)

// IWalletHandler is served by a wallet app: the browser bridge of a Hiro or Reown wallet.
type IWalletHandler interface {
	WalletSession(ctx context.Context) (*WalletSession, error)
	WalletConnect(ctx context.Context, opts *ConnectOptions) (*WalletSession, error)
	WalletDisconnect(ctx context.Context) error
	WalletSignMessage(ctx context.Context, req *SignMessageRequest) (*Signature, error)
	WalletSendTransaction(ctx context.Context, tx *TxRequest) (*TxResult, error)
}

// WalletSDK is the external wallet SDK a provider adapter wraps.
type WalletSDK interface {
	IWalletHandler
	// Subscribe registers for SDK level events and returns the detach func.
	Subscribe(handler func(*WalletEvent)) func()
}

// Wallet apps report these messages for the outcomes the adapters distinguish.
const (
	ErrMsgUserCancelled = "user cancelled the request"
	ErrMsgNotSignedIn   = "user did not sign in"
)

// ErrWalletAppUnavailable is returned when no wallet app of a provider is attached.
var ErrWalletAppUnavailable = errors.New("no wallet app connected")
