// Package wallet keeps the connection state of the Stacks wallet providers in sync and
// exposes one surface for signing through whichever provider is active.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
	"go.uber.org/zap"

	"github.com/genetrust/genetrust-gateway/apperr"
	"github.com/genetrust/genetrust-gateway/metrics"
	"github.com/genetrust/genetrust-gateway/store"
	"github.com/genetrust/genetrust-gateway/types"
)

var log = logging.Logger("wallet")

const reloadTimeout = time.Minute

// Service is the capability set of a provider adapter.
type Service interface {
	Provider() types.ProviderID
	Init(ctx context.Context) error
	Connect(ctx context.Context) (string, error)
	Disconnect(ctx context.Context) error
	SignMessage(ctx context.Context, message string) (*types.Signature, error)
	SendTransaction(ctx context.Context, tx *types.TxRequest) (*types.TxResult, error)
	GetState() types.WalletState
	Subscribe(cb func(types.WalletState)) (func(), error)
	Watch(ctx context.Context) <-chan types.WalletState
	Destroy()
}

type Options struct {
	Network string
	AppName string
	AppIcon string
}

// providerHooks is what an adapter adds on top of baseService.
type providerHooks interface {
	// accept checks an SDK session and picks the address to use.
	accept(session *types.WalletSession) (string, error)
	persist(ctx context.Context, session *types.WalletSession, address string)
	forget(ctx context.Context)
}

// baseService holds the state machine shared by the adapters. It has no Connect or Init
// of its own, adapters provide them.
type baseService struct {
	provider types.ProviderID
	opts     Options
	sdk      types.WalletSDK
	hooks    providerHooks
	log      *zap.SugaredLogger

	lk    sync.Mutex
	state types.WalletState
	// gen changes whenever a disconnect supersedes in-flight work
	gen        uint64
	subscribed bool
	sdkUnsub   func()
	destroyed  bool
	// canAdopt, when set, decides whether a restored session may become active
	canAdopt func() bool

	listeners *listenerSet[types.WalletState]
}

func newBaseService(provider types.ProviderID, sdk types.WalletSDK, opts Options, hooks providerHooks) *baseService {
	if _, err := types.ParseProviderID(string(provider)); err != nil {
		panic(fmt.Sprintf("wallet adapter for %v", err))
	}
	if sdk == nil || hooks == nil {
		panic("wallet adapter needs an sdk and provider hooks")
	}
	logger := log.With("provider", provider)
	return &baseService{
		provider:  provider,
		opts:      opts,
		sdk:       sdk,
		hooks:     hooks,
		log:       logger,
		state:     types.DisconnectedState(provider),
		listeners: newListenerSet[types.WalletState](logger),
	}
}

func (b *baseService) Provider() types.ProviderID {
	return b.provider
}

func (b *baseService) GetState() types.WalletState {
	b.lk.Lock()
	defer b.lk.Unlock()
	return b.state
}

func (b *baseService) Subscribe(cb func(types.WalletState)) (func(), error) {
	return b.listeners.add(cb)
}

func (b *baseService) Watch(ctx context.Context) <-chan types.WalletState {
	return b.listeners.watch(ctx, b.GetState)
}

func (b *baseService) emitState() {
	b.listeners.emit(b.GetState())
}

func (b *baseService) tagged(ctx context.Context, extra ...tag.Mutator) context.Context {
	mutators := append([]tag.Mutator{tag.Upsert(metrics.ProviderKey, string(b.provider))}, extra...)
	tctx, _ := tag.New(ctx, mutators...)
	return tctx
}

func (b *baseService) init(ctx context.Context) error {
	b.lk.Lock()
	if b.destroyed {
		b.lk.Unlock()
		return apperr.ErrProviderUnavailable.WithContext("provider", b.provider)
	}
	first := !b.subscribed
	b.subscribed = true
	b.lk.Unlock()

	if first {
		unsub := b.sdk.Subscribe(b.handleEvent)
		b.lk.Lock()
		b.sdkUnsub = unsub
		b.lk.Unlock()
	}
	return b.restore(ctx)
}

func (b *baseService) setAdoptGate(gate func() bool) {
	b.lk.Lock()
	defer b.lk.Unlock()
	b.canAdopt = gate
}

// restore adopts an already authorized SDK session without prompting.
func (b *baseService) restore(ctx context.Context) error {
	b.lk.Lock()
	gen := b.gen
	b.lk.Unlock()

	session, err := b.sdk.WalletSession(ctx)
	if err != nil {
		return classifyError(err, apperr.ErrConnectionFailed)
	}
	if session == nil || len(session.Accounts) == 0 {
		return nil
	}
	address, err := b.hooks.accept(session)
	if err != nil {
		b.log.Debugw("existing session not usable", "err", err)
		return nil
	}

	b.lk.Lock()
	gate := b.canAdopt
	b.lk.Unlock()
	if gate != nil && !gate() {
		b.log.Infow("another provider is active, not adopting session", "address", address)
		return nil
	}

	b.lk.Lock()
	if gen != b.gen || b.state.Status != types.StatusDisconnected {
		b.lk.Unlock()
		return nil
	}
	b.setConnectedLocked(address, session.Network)
	b.lk.Unlock()

	b.hooks.persist(ctx, session, address)
	b.log.Infow("restored wallet session", "address", address)
	b.emitState()
	return nil
}

func (b *baseService) setConnectedLocked(address, network string) {
	if network == "" {
		network = b.opts.Network
	}
	b.state = types.WalletState{
		Address:     address,
		IsConnected: true,
		Network:     network,
		Provider:    b.provider,
		Status:      types.StatusConnected,
	}
}

func (b *baseService) connect(ctx context.Context) (string, error) {
	b.lk.Lock()
	switch b.state.Status {
	case types.StatusConnected:
		address := b.state.Address
		b.lk.Unlock()
		return address, nil
	case types.StatusConnecting, types.StatusDisconnecting:
		status := b.state.Status
		b.lk.Unlock()
		return "", apperr.ErrWalletBusy.WithContext("provider", b.provider).WithContext("status", status)
	}
	if b.destroyed {
		b.lk.Unlock()
		return "", apperr.ErrProviderUnavailable.WithContext("provider", b.provider)
	}
	b.gen++
	gen := b.gen
	b.state.Status = types.StatusConnecting
	b.lk.Unlock()
	b.emitState()

	start := time.Now()
	session, address, err := b.prompt(ctx)
	result := "ok"
	if err != nil {
		result = "failed"
	}
	stats.Record(b.tagged(ctx, tag.Upsert(metrics.ResultKey, result)), metrics.WalletConnect.M(metrics.SinceInMilliseconds(start)))

	b.lk.Lock()
	if gen != b.gen {
		b.lk.Unlock()
		b.log.Infow("connect superseded by disconnect", "err", err)
		return "", apperr.ErrConnectAborted.WithContext("provider", b.provider)
	}
	if err != nil {
		b.state = types.DisconnectedState(b.provider)
		b.lk.Unlock()
		b.emitState()
		return "", err
	}
	b.setConnectedLocked(address, session.Network)
	b.lk.Unlock()

	b.hooks.persist(ctx, session, address)
	b.log.Infow("wallet connected", "address", address)
	b.emitState()
	return address, nil
}

func (b *baseService) prompt(ctx context.Context) (*types.WalletSession, string, error) {
	session, err := b.sdk.WalletConnect(ctx, &types.ConnectOptions{
		AppName: b.opts.AppName,
		AppIcon: b.opts.AppIcon,
		Network: b.opts.Network,
	})
	if err != nil {
		return nil, "", classifyError(err, apperr.ErrConnectionFailed)
	}
	if session == nil {
		return nil, "", apperr.ErrConnectionFailed.WithContext("reason", "empty session")
	}
	address, err := b.hooks.accept(session)
	if err != nil {
		return nil, "", err
	}
	return session, address, nil
}

// Disconnect always ends in the disconnected state. SDK failures are logged only.
// The session is cleared before the SDK is told, so an overlapping call already
// sees a disconnected wallet.
func (b *baseService) Disconnect(ctx context.Context) error {
	b.lk.Lock()
	switch b.state.Status {
	case types.StatusDisconnected, types.StatusDisconnecting:
		b.lk.Unlock()
		return nil
	}
	b.gen++
	gen := b.gen
	b.state = types.DisconnectedState(b.provider)
	b.state.Status = types.StatusDisconnecting
	b.lk.Unlock()
	b.emitState()

	if err := b.sdk.WalletDisconnect(ctx); err != nil {
		apperr.Report(apperr.ErrDisconnectFailed.WithCause(err).WithContext("provider", b.provider))
	}
	stats.Record(b.tagged(ctx), metrics.WalletDisconnect.M(1))

	b.lk.Lock()
	if gen == b.gen {
		b.state.Status = types.StatusDisconnected
	}
	b.lk.Unlock()

	b.hooks.forget(ctx)
	b.log.Infow("wallet disconnected")
	b.emitState()
	return nil
}

// dropSession clears local state after the wallet side ended the session.
func (b *baseService) dropSession(ctx context.Context) bool {
	b.lk.Lock()
	if b.state.Status == types.StatusDisconnected {
		b.lk.Unlock()
		return false
	}
	b.gen++
	b.state = types.DisconnectedState(b.provider)
	b.lk.Unlock()

	b.hooks.forget(ctx)
	b.emitState()
	return true
}

func (b *baseService) handleEvent(ev *types.WalletEvent) {
	if ev == nil {
		return
	}
	ctx := context.Background()
	stats.Record(b.tagged(ctx, tag.Upsert(metrics.MethodKey, string(ev.Type))), metrics.WalletEvent.M(1))

	switch ev.Type {
	case types.EventAccountsChanged:
		if len(ev.Accounts) == 0 {
			if b.dropSession(ctx) {
				b.log.Infow("wallet removed all accounts")
			}
			return
		}
		address, err := selectAddress(ev.Accounts, b.opts.Network)
		if err != nil {
			b.log.Warnw("ignore accounts change", "err", err)
			return
		}
		b.lk.Lock()
		if b.state.Status != types.StatusConnected || b.state.Address == address {
			b.lk.Unlock()
			return
		}
		b.state.Address = address
		b.lk.Unlock()

		b.hooks.persist(ctx, nil, address)
		b.log.Infow("wallet account changed", "address", address)
		b.emitState()
	case types.EventDisconnect:
		if b.dropSession(ctx) {
			b.log.Infow("wallet ended the session")
		}
	case types.EventChainChanged:
		b.log.Warnw("wallet changed chain, reloading session", "network", ev.Network)
		b.dropSession(ctx)
		go func() {
			rctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
			defer cancel()
			if err := b.restore(rctx); err != nil {
				b.log.Warnw("reload session after chain change", "err", err)
			}
		}()
	default:
		b.log.Debugw("unknown wallet event", "type", ev.Type)
	}
}

func (b *baseService) SignMessage(ctx context.Context, message string) (*types.Signature, error) {
	state := b.GetState()
	if state.Status != types.StatusConnected {
		return nil, apperr.ErrNotConnected.WithContext("provider", b.provider)
	}
	start := time.Now()
	sig, err := b.sdk.WalletSignMessage(ctx, &types.SignMessageRequest{Address: state.Address, Message: message})
	stats.Record(b.tagged(ctx), metrics.WalletSign.M(metrics.SinceInMilliseconds(start)))
	if err != nil {
		return nil, classifyError(err, apperr.ErrUnknown)
	}
	return sig, nil
}

func (b *baseService) SendTransaction(ctx context.Context, tx *types.TxRequest) (*types.TxResult, error) {
	if tx == nil {
		return nil, apperr.InvalidInput("transaction is required")
	}
	state := b.GetState()
	if state.Status != types.StatusConnected {
		return nil, apperr.ErrNotConnected.WithContext("provider", b.provider)
	}
	req := *tx
	if req.Sender == "" {
		req.Sender = state.Address
	} else if req.Sender != state.Address {
		return nil, apperr.InvalidInput("sender %s is not the connected address %s", req.Sender, state.Address)
	}
	if req.Network == "" {
		req.Network = state.Network
	}
	if req.PostConditionMode == "" {
		req.PostConditionMode = types.PostConditionDeny
	}

	start := time.Now()
	res, err := b.sdk.WalletSendTransaction(ctx, &req)
	stats.Record(b.tagged(ctx), metrics.WalletSendTx.M(metrics.SinceInMilliseconds(start)))
	if err != nil {
		return nil, classifyError(err, apperr.ErrCallFailed)
	}
	return res, nil
}

func (b *baseService) Destroy() {
	b.lk.Lock()
	unsub := b.sdkUnsub
	b.sdkUnsub = nil
	b.subscribed = false
	b.destroyed = true
	b.lk.Unlock()

	if unsub != nil {
		unsub()
	}
	b.listeners.clear()
}

// classifyError turns SDK and transport failures into the wallet error taxonomy.
func classifyError(err error, fallback *apperr.AppError) error {
	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		return err
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, types.ErrMsgUserCancelled):
		return apperr.ErrUserCancelled.WithCause(err)
	case strings.Contains(msg, types.ErrMsgNotSignedIn):
		return apperr.ErrDidNotSignIn.WithCause(err)
	case errors.Is(err, types.ErrWalletAppUnavailable):
		return apperr.ErrProviderUnavailable.WithCause(err)
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, types.ErrCloseChannel),
		strings.Contains(msg, types.ErrRequestTimeout.Error()),
		strings.Contains(msg, "all request failed"):
		return apperr.ErrNetwork.WithCause(err)
	}
	return fallback.WithCause(err)
}

// forgetWallet clears the persisted wallet unless another provider owns it.
func forgetWallet(ctx context.Context, sessions *store.SessionStore, provider types.ProviderID, logger *zap.SugaredLogger) {
	if sessions == nil {
		return
	}
	saved, err := sessions.LoadWallet(ctx)
	if err == nil && saved.Provider != "" && saved.Provider != provider {
		return
	}
	if err := sessions.ClearWallet(ctx); err != nil {
		logger.Warnw("clear persisted wallet", "err", err)
	}
}
