package walletevent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"

	"github.com/genetrust/genetrust-gateway/metrics"
	"github.com/genetrust/genetrust-gateway/types"
)

var log = logging.Logger("event_stream")

// WalletEventStream holds the request channels of every attached wallet app and fans SDK events
// pushed by the apps out to the in-process subscribers of each provider.
type WalletEventStream struct {
	walletConnMgr *walletConnMgr
	cfg           *types.RequestConfig
	*types.BaseEventStream

	subLk       sync.Mutex
	nextSub     uint64
	subscribers map[types.ProviderID]map[uint64]func(*types.WalletEvent)
}

func NewWalletEventStream(ctx context.Context, cfg *types.RequestConfig) *WalletEventStream {
	return &WalletEventStream{
		walletConnMgr:   newWalletConnMgr(),
		BaseEventStream: types.NewBaseEventStream(ctx, cfg),
		cfg:             cfg,
		subscribers:     make(map[types.ProviderID]map[uint64]func(*types.WalletEvent)),
	}
}

func (w *WalletEventStream) ListenWalletEvent(ctx context.Context, policy *WalletRegisterPolicy) (<-chan *types.RequestEvent, error) {
	if policy == nil {
		return nil, errors.New("register policy is required")
	}
	provider, err := types.ParseProviderID(string(policy.Provider))
	if err != nil {
		return nil, err
	}
	policy = &WalletRegisterPolicy{Provider: provider, Name: policy.Name}

	ip, _ := types.CtxGetIP(ctx)
	out := make(chan *types.RequestEvent, w.cfg.RequestQueueSize)
	walletLog := log.With("provider", policy.Provider).With("name", policy.Name).With("ip", ip)
	ctx, _ = tag.New(ctx, tag.Upsert(metrics.ProviderKey, string(policy.Provider)), tag.Upsert(metrics.IPKey, ip))

	go func() {
		channel := types.NewChannelInfo(ctx, ip, out)
		defer close(out)

		walletChannelInfo := newWalletChannelInfo(channel, policy)
		w.walletConnMgr.addNewConn(walletChannelInfo)
		walletLog.Infof("add new connections %s", walletChannelInfo.ChannelId)
		stats.Record(ctx, metrics.WalletAppRegister.M(1))

		connectBytes, err := json.Marshal(types.ConnectedCompleted{
			ChannelId: walletChannelInfo.ChannelId,
		})
		if err != nil {
			walletLog.Errorf("marshal failed %v", err)
			return
		}

		out <- &types.RequestEvent{
			ID:         uuid.New(),
			Method:     MethodInitConnect,
			CreateTime: time.Now(),
			Payload:    connectBytes,
			Result:     nil,
		} // not response

		<-ctx.Done()
		stats.Record(ctx, metrics.WalletAppLeave.M(1))
		if w.walletConnMgr.removeConn(walletChannelInfo) {
			// the wallet behind the provider is gone, treat it like an SDK disconnect
			walletLog.Infof("last %s wallet app left", policy.Provider)
			w.emit(policy.Provider, &types.WalletEvent{Type: types.EventDisconnect})
		}
	}()
	return out, nil
}

func (w *WalletEventStream) ResponseWalletEvent(ctx context.Context, resp *types.ResponseEvent) error {
	return w.ResponseEvent(ctx, resp)
}

// PushWalletEvent is called by a wallet app when its SDK reports an account, chain or session change.
func (w *WalletEventStream) PushWalletEvent(ctx context.Context, channelID uuid.UUID, event *types.WalletEvent) error {
	if event == nil {
		return errors.New("wallet event is required")
	}
	switch event.Type {
	case types.EventAccountsChanged, types.EventDisconnect, types.EventChainChanged:
	default:
		return fmt.Errorf("unknown wallet event type %q", event.Type)
	}

	conn, err := w.walletConnMgr.getConn(channelID)
	if err != nil {
		return err
	}
	_ = stats.RecordWithTags(ctx, []tag.Mutator{
		tag.Upsert(metrics.ProviderKey, string(conn.provider)),
		tag.Upsert(metrics.MethodKey, string(event.Type)),
	}, metrics.WalletEvent.M(1))
	log.Infow("receive wallet event", "provider", conn.provider, "channel", channelID, "type", event.Type)

	w.emit(conn.provider, event)
	return nil
}

// Subscribe registers handler for the events of one provider and returns the detach func.
func (w *WalletEventStream) Subscribe(provider types.ProviderID, handler func(*types.WalletEvent)) func() {
	w.subLk.Lock()
	defer w.subLk.Unlock()

	id := w.nextSub
	w.nextSub++
	if _, ok := w.subscribers[provider]; !ok {
		w.subscribers[provider] = make(map[uint64]func(*types.WalletEvent))
	}
	w.subscribers[provider][id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			w.subLk.Lock()
			defer w.subLk.Unlock()
			delete(w.subscribers[provider], id)
		})
	}
}

func (w *WalletEventStream) emit(provider types.ProviderID, event *types.WalletEvent) {
	w.subLk.Lock()
	handlers := make([]func(*types.WalletEvent), 0, len(w.subscribers[provider]))
	for _, h := range w.subscribers[provider] {
		handlers = append(handlers, h)
	}
	w.subLk.Unlock()

	for _, h := range handlers {
		cp := *event
		h(&cp)
	}
}

func (w *WalletEventStream) ListWalletConnections(ctx context.Context) ([]*types.WalletAppDetail, error) {
	return w.walletConnMgr.listWalletInfo(), nil
}

// ConnCount is the number of apps attached for provider.
func (w *WalletEventStream) ConnCount(provider types.ProviderID) int {
	return w.walletConnMgr.connCount(provider)
}

func (w *WalletEventStream) sendRequest(ctx context.Context, provider types.ProviderID, method string, params interface{}, result interface{}) error {
	channels, err := w.walletConnMgr.getChannels(provider)
	if err != nil {
		return err
	}

	var payload []byte
	if params != nil {
		payload, err = json.Marshal(params)
		if err != nil {
			return err
		}
	}
	return w.SendRequest(ctx, channels, method, payload, result)
}
