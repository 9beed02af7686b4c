package walletevent

import (
	"context"

	"github.com/genetrust/genetrust-gateway/types"
)

var _ types.WalletSDK = (*RemoteSDK)(nil)

// RemoteSDK is the wallet SDK of one provider as seen through the apps attached to the stream.
type RemoteSDK struct {
	provider types.ProviderID
	stream   *WalletEventStream
}

func NewRemoteSDK(stream *WalletEventStream, provider types.ProviderID) *RemoteSDK {
	return &RemoteSDK{provider: provider, stream: stream}
}

func (r *RemoteSDK) WalletSession(ctx context.Context) (*types.WalletSession, error) {
	var session types.WalletSession
	if err := r.stream.sendRequest(ctx, r.provider, MethodWalletSession, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *RemoteSDK) WalletConnect(ctx context.Context, opts *types.ConnectOptions) (*types.WalletSession, error) {
	var session types.WalletSession
	if err := r.stream.sendRequest(ctx, r.provider, MethodWalletConnect, opts, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *RemoteSDK) WalletDisconnect(ctx context.Context) error {
	return r.stream.sendRequest(ctx, r.provider, MethodWalletDisconnect, nil, nil)
}

func (r *RemoteSDK) WalletSignMessage(ctx context.Context, req *types.SignMessageRequest) (*types.Signature, error) {
	var sig types.Signature
	if err := r.stream.sendRequest(ctx, r.provider, MethodWalletSignMessage, req, &sig); err != nil {
		return nil, err
	}
	return &sig, nil
}

func (r *RemoteSDK) WalletSendTransaction(ctx context.Context, tx *types.TxRequest) (*types.TxResult, error) {
	var result types.TxResult
	if err := r.stream.sendRequest(ctx, r.provider, MethodWalletSendTransaction, tx, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *RemoteSDK) Subscribe(handler func(*types.WalletEvent)) func() {
	return r.stream.Subscribe(r.provider, handler)
}
