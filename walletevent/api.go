package walletevent

import (
	"context"
	"net/http"

	"github.com/filecoin-project/go-jsonrpc"
	"github.com/google/uuid"

	"github.com/genetrust/genetrust-gateway/types"
)

// IWalletEventAPI is the part of the gateway API a wallet app talks to.
type IWalletEventAPI interface {
	ListenWalletEvent(ctx context.Context, policy *WalletRegisterPolicy) (<-chan *types.RequestEvent, error)
	ResponseWalletEvent(ctx context.Context, resp *types.ResponseEvent) error
	PushWalletEvent(ctx context.Context, channelID uuid.UUID, event *types.WalletEvent) error
}

var _ IWalletEventAPI = (*WalletEventAPI)(nil)

type WalletEventAPI struct {
	walletEvent *WalletEventStream
}

func NewWalletEventAPI(walletEvent *WalletEventStream) *WalletEventAPI {
	return &WalletEventAPI{walletEvent: walletEvent}
}

func (w *WalletEventAPI) ListenWalletEvent(ctx context.Context, policy *WalletRegisterPolicy) (<-chan *types.RequestEvent, error) {
	return w.walletEvent.ListenWalletEvent(ctx, policy)
}

func (w *WalletEventAPI) ResponseWalletEvent(ctx context.Context, resp *types.ResponseEvent) error {
	return w.walletEvent.ResponseWalletEvent(ctx, resp)
}

func (w *WalletEventAPI) PushWalletEvent(ctx context.Context, channelID uuid.UUID, event *types.WalletEvent) error {
	return w.walletEvent.PushWalletEvent(ctx, channelID, event)
}

// WalletEventAPIStruct is the go-jsonrpc client side of IWalletEventAPI.
type WalletEventAPIStruct struct {
	Internal struct {
		ListenWalletEvent   func(ctx context.Context, policy *WalletRegisterPolicy) (<-chan *types.RequestEvent, error) `perm:"write"`
		ResponseWalletEvent func(ctx context.Context, resp *types.ResponseEvent) error                                  `perm:"write"`
		PushWalletEvent     func(ctx context.Context, channelID uuid.UUID, event *types.WalletEvent) error              `perm:"write"`
	}
}

var _ IWalletEventAPI = (*WalletEventAPIStruct)(nil)

func (s *WalletEventAPIStruct) ListenWalletEvent(ctx context.Context, policy *WalletRegisterPolicy) (<-chan *types.RequestEvent, error) {
	return s.Internal.ListenWalletEvent(ctx, policy)
}

func (s *WalletEventAPIStruct) ResponseWalletEvent(ctx context.Context, resp *types.ResponseEvent) error {
	return s.Internal.ResponseWalletEvent(ctx, resp)
}

func (s *WalletEventAPIStruct) PushWalletEvent(ctx context.Context, channelID uuid.UUID, event *types.WalletEvent) error {
	return s.Internal.PushWalletEvent(ctx, channelID, event)
}

// NewWalletRegisterClient dials the gateway websocket endpoint, e.g. ws://127.0.0.1:45132/rpc/v0.
func NewWalletRegisterClient(ctx context.Context, url, token string) (IWalletEventAPI, jsonrpc.ClientCloser, error) {
	headers := http.Header{}
	if token != "" {
		headers.Add("Authorization", "Bearer "+token)
	}
	var res WalletEventAPIStruct
	closer, err := jsonrpc.NewMergeClient(ctx, url, "GeneTrust", []interface{}{&res.Internal}, headers)
	if err != nil {
		return nil, nil, err
	}
	return &res, closer, nil
}
