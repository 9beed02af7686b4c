package walletevent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/genetrust/genetrust-gateway/types"
)

// WalletEventClient runs inside a wallet app. It serves gateway requests from processor and, when
// processor is a full SDK, forwards the SDK events back to the gateway.
type WalletEventClient struct {
	processor types.IWalletHandler
	client    IWalletEventAPI
	policy    *WalletRegisterPolicy
	log       *zap.SugaredLogger

	lk      sync.Mutex
	channel uuid.UUID
	readyCh chan struct{}
}

func NewWalletEventClient(ctx context.Context, process types.IWalletHandler, client IWalletEventAPI, log *zap.SugaredLogger, policy *WalletRegisterPolicy) *WalletEventClient {
	return &WalletEventClient{
		processor: process,
		client:    client,
		policy:    policy,
		log:       log,
		readyCh:   make(chan struct{}, 1),
	}
}

func (e *WalletEventClient) ChannelID() uuid.UUID {
	e.lk.Lock()
	defer e.lk.Unlock()
	return e.channel
}

func (e *WalletEventClient) ListenWalletRequest(ctx context.Context) {
	for {
		if err := e.listenWalletRequestOnce(ctx); err != nil {
			e.log.Errorf("listen wallet event errored: %s", err)
		} else {
			e.log.Warn("listenWalletRequestOnce quit, try again")
		}
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			e.log.Warnf("not restarting listenWalletRequestOnce: context error: %s", ctx.Err())
			return
		}
		e.log.Info("restarting listenWalletRequestOnce")
		// try clear ready channel
		select {
		case <-e.readyCh:
		default:
		}
	}
}

func (e *WalletEventClient) WaitReady(ctx context.Context) {
	select {
	case <-e.readyCh:
	case <-ctx.Done():
	}
}

func (e *WalletEventClient) listenWalletRequestOnce(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.log.Infow("register wallet app", "provider", e.policy.Provider, "name", e.policy.Name)
	walletEventCh, err := e.client.ListenWalletEvent(ctx, e.policy)
	if err != nil {
		// Retry is handled by caller
		return fmt.Errorf("listenWalletRequestOnce listenWalletRequestOnce call failed: %w", err)
	}

	for event := range walletEventCh {
		switch event.Method {
		case MethodInitConnect:
			req := types.ConnectedCompleted{}
			err := json.Unmarshal(event.Payload, &req)
			if err != nil {
				e.log.Errorf("init connect error %s", err)
			}
			e.lk.Lock()
			e.channel = req.ChannelId
			e.lk.Unlock()
			if sdk, ok := e.processor.(types.WalletSDK); ok {
				unsubscribe := sdk.Subscribe(func(ev *types.WalletEvent) {
					e.pushEvent(ctx, req.ChannelId, ev)
				})
				defer unsubscribe()
			}
			e.log.Infof("connect to server success %v", req.ChannelId)
			e.readyCh <- struct{}{}
			// do not response
		case MethodWalletSession:
			go e.walletSession(ctx, event.ID)
		case MethodWalletConnect:
			go e.walletConnect(ctx, event)
		case MethodWalletDisconnect:
			go e.walletDisconnect(ctx, event.ID)
		case MethodWalletSignMessage:
			go e.walletSignMessage(ctx, event)
		case MethodWalletSendTransaction:
			go e.walletSendTransaction(ctx, event)
		default:
			e.log.Errorf("unexpect wallet event type %s", event.Method)
		}
	}

	return nil
}

func (e *WalletEventClient) pushEvent(ctx context.Context, channel uuid.UUID, ev *types.WalletEvent) {
	if err := e.client.PushWalletEvent(ctx, channel, ev); err != nil {
		e.log.Errorf("push wallet event %s error %s", ev.Type, err)
	}
}

func (e *WalletEventClient) walletSession(ctx context.Context, id uuid.UUID) {
	session, err := e.processor.WalletSession(ctx)
	if err != nil {
		e.log.Errorf("WalletSession error %s", err)
		e.error(ctx, id, err)
		return
	}
	e.value(ctx, id, session)
}

func (e *WalletEventClient) walletConnect(ctx context.Context, event *types.RequestEvent) {
	req := types.ConnectOptions{}
	if err := json.Unmarshal(event.Payload, &req); err != nil {
		e.log.Errorf("unmarshal ConnectOptions error %s", err)
		e.error(ctx, event.ID, err)
		return
	}
	session, err := e.processor.WalletConnect(ctx, &req)
	if err != nil {
		e.log.Errorf("WalletConnect error %s", err)
		e.error(ctx, event.ID, err)
		return
	}
	e.value(ctx, event.ID, session)
}

func (e *WalletEventClient) walletDisconnect(ctx context.Context, id uuid.UUID) {
	if err := e.processor.WalletDisconnect(ctx); err != nil {
		e.log.Errorf("WalletDisconnect error %s", err)
		e.error(ctx, id, err)
		return
	}
	e.value(ctx, id, nil)
}

func (e *WalletEventClient) walletSignMessage(ctx context.Context, event *types.RequestEvent) {
	e.log.Debug("receive WalletSignMessage event")
	req := types.SignMessageRequest{}
	if err := json.Unmarshal(event.Payload, &req); err != nil {
		e.log.Errorf("unmarshal SignMessageRequest error %s", err)
		e.error(ctx, event.ID, err)
		return
	}
	sig, err := e.processor.WalletSignMessage(ctx, &req)
	if err != nil {
		e.log.Errorf("WalletSignMessage error %s", err)
		e.error(ctx, event.ID, err)
		return
	}
	e.value(ctx, event.ID, sig)
}

func (e *WalletEventClient) walletSendTransaction(ctx context.Context, event *types.RequestEvent) {
	req := types.TxRequest{}
	if err := json.Unmarshal(event.Payload, &req); err != nil {
		e.log.Errorf("unmarshal TxRequest error %s", err)
		e.error(ctx, event.ID, err)
		return
	}
	result, err := e.processor.WalletSendTransaction(ctx, &req)
	if err != nil {
		e.log.Errorf("WalletSendTransaction error %s", err)
		e.error(ctx, event.ID, err)
		return
	}
	e.value(ctx, event.ID, result)
}

func (e *WalletEventClient) value(ctx context.Context, id uuid.UUID, val interface{}) {
	var respBytes []byte
	if val != nil {
		var err error
		respBytes, err = json.Marshal(val)
		if err != nil {
			e.log.Errorf("marshal response error %s", err)
			e.error(ctx, id, err)
			return
		}
	}
	err := e.client.ResponseWalletEvent(ctx, &types.ResponseEvent{
		ID:      id,
		Payload: respBytes,
		Error:   "",
	})
	if err != nil {
		e.log.Errorf("response error %v", err)
	}
}

func (e *WalletEventClient) error(ctx context.Context, id uuid.UUID, err error) {
	err = e.client.ResponseWalletEvent(ctx, &types.ResponseEvent{
		ID:      id,
		Payload: nil,
		Error:   err.Error(),
	})
	if err != nil {
		e.log.Errorf("response error %v", err)
	}
}
