package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/genetrust/genetrust-gateway/apperr"
	"github.com/genetrust/genetrust-gateway/store"
	"github.com/genetrust/genetrust-gateway/testhelper"
	"github.com/genetrust/genetrust-gateway/types"
)

var testOpts = Options{Network: "testnet", AppName: "GeneTrust"}

type stateRecorder struct {
	lk     sync.Mutex
	states []types.WalletState
}

func (r *stateRecorder) record(s types.WalletState) {
	r.lk.Lock()
	defer r.lk.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) all() []types.WalletState {
	r.lk.Lock()
	defer r.lk.Unlock()
	return append([]types.WalletState(nil), r.states...)
}

func (r *stateRecorder) last() types.WalletState {
	r.lk.Lock()
	defer r.lk.Unlock()
	if len(r.states) == 0 {
		return types.WalletState{}
	}
	return r.states[len(r.states)-1]
}

func newHiro(t *testing.T, accounts ...string) (*HiroService, *testhelper.MemWallet, *store.SessionStore) {
	sdk := testhelper.NewMemWallet("testnet", accounts...)
	sessions := store.NewSessionStore(store.NewMemStore())
	h := NewHiroService(sdk, sessions, testOpts)
	t.Cleanup(h.Destroy)
	return h, sdk, sessions
}

func newReown(t *testing.T, accounts ...string) (*ReownService, *testhelper.MemWallet) {
	sdk := testhelper.NewMemWallet("testnet", accounts...)
	r := NewReownService(sdk, store.NewSessionStore(store.NewMemStore()), testOpts)
	t.Cleanup(r.Destroy)
	return r, sdk
}

func TestNewBaseServiceUnknownProvider(t *testing.T) {
	sdk := testhelper.NewMemWallet("testnet")
	require.Panics(t, func() {
		newBaseService("metamask", sdk, testOpts, &ReownService{})
	})
	require.Panics(t, func() {
		newBaseService(types.ProviderHiro, nil, testOpts, &HiroService{})
	})
}

func TestConnectDisconnect(t *testing.T) {
	ctx := context.Background()
	st := testhelper.TestnetAddress(1)
	h, sdk, sessions := newHiro(t, testhelper.MainnetAddress(1), st)
	require.NoError(t, h.Init(ctx))
	require.Equal(t, types.DisconnectedState(types.ProviderHiro), h.GetState())

	addr, err := h.Connect(ctx)
	require.NoError(t, err)
	require.Equal(t, st, addr)
	require.Equal(t, types.WalletState{
		Address:     st,
		IsConnected: true,
		Network:     "testnet",
		Provider:    types.ProviderHiro,
		Status:      types.StatusConnected,
	}, h.GetState())

	// no second prompt
	addr, err = h.Connect(ctx)
	require.NoError(t, err)
	require.Equal(t, st, addr)
	require.Equal(t, 1, sdk.ConnectCalls())

	saved, err := sessions.LoadWallet(ctx)
	require.NoError(t, err)
	require.Equal(t, &store.SavedWallet{Connected: true, Address: st, Provider: types.ProviderHiro}, saved)
	_, ok, err := sessions.LoadBlockstackSession(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, h.Disconnect(ctx))
	state := h.GetState()
	require.False(t, state.IsConnected)
	require.Empty(t, state.Address)
	require.Equal(t, types.StatusDisconnected, state.Status)

	saved, err = sessions.LoadWallet(ctx)
	require.NoError(t, err)
	require.False(t, saved.Connected)

	// disconnecting twice is harmless
	require.NoError(t, h.Disconnect(ctx))
	require.Equal(t, 1, sdk.DisconnectCalls())
}

func TestDisconnectResetsWhenSDKFails(t *testing.T) {
	ctx := context.Background()
	for _, failing := range []bool{false, true} {
		t.Run(fmt.Sprintf("sdk fails %v", failing), func(t *testing.T) {
			h, sdk, _ := newHiro(t, testhelper.TestnetAddress(1))
			rec := &stateRecorder{}
			_, err := h.Subscribe(rec.record)
			require.NoError(t, err)

			_, err = h.Connect(ctx)
			require.NoError(t, err)

			sdk.SetFailDisconnect(failing)
			require.NoError(t, h.Disconnect(ctx))
			require.False(t, h.GetState().IsConnected)
			require.Empty(t, h.GetState().Address)
			require.Equal(t, types.DisconnectedState(types.ProviderHiro), rec.last())
		})
	}
}

func TestOverlappingDisconnect(t *testing.T) {
	ctx := context.Background()
	h, sdk, _ := newHiro(t, testhelper.TestnetAddress(1))
	_, err := h.Connect(ctx)
	require.NoError(t, err)

	release := sdk.BlockDisconnect()
	defer release()
	errCh := make(chan error, 1)
	go func() {
		errCh <- h.Disconnect(ctx)
	}()
	require.Eventually(t, func() bool {
		return h.GetState().Status == types.StatusDisconnecting
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, h.Disconnect(ctx))
	state := h.GetState()
	require.False(t, state.IsConnected)
	require.Empty(t, state.Address)

	_, err = h.Connect(ctx)
	require.ErrorIs(t, err, apperr.ErrWalletBusy)

	release()
	require.NoError(t, <-errCh)
	require.Equal(t, types.DisconnectedState(types.ProviderHiro), h.GetState())
	require.Equal(t, 1, sdk.DisconnectCalls())
}

func TestDisconnectFromListener(t *testing.T) {
	ctx := context.Background()
	h, _, _ := newHiro(t, testhelper.TestnetAddress(1))
	_, err := h.Connect(ctx)
	require.NoError(t, err)

	var seen []types.WalletState
	_, err = h.Subscribe(func(s types.WalletState) {
		if s.Status != types.StatusDisconnecting {
			return
		}
		require.NoError(t, h.Disconnect(ctx))
		seen = append(seen, h.GetState())
	})
	require.NoError(t, err)

	require.NoError(t, h.Disconnect(ctx))
	require.Len(t, seen, 1)
	require.False(t, seen[0].IsConnected)
	require.Empty(t, seen[0].Address)
}

func TestConnectErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("user cancelled", func(t *testing.T) {
		h, sdk, _ := newHiro(t, testhelper.TestnetAddress(1))
		sdk.SetCancel(true)
		_, err := h.Connect(ctx)
		require.ErrorIs(t, err, apperr.ErrUserCancelled)
		require.Equal(t, types.StatusDisconnected, h.GetState().Status)

		// recoverable: the user may try again
		sdk.SetCancel(false)
		_, err = h.Connect(ctx)
		require.NoError(t, err)
	})

	t.Run("hiro did not sign in", func(t *testing.T) {
		h, sdk, _ := newHiro(t, testhelper.TestnetAddress(1))
		sdk.SetSignedIn(false)
		_, err := h.Connect(ctx)
		require.ErrorIs(t, err, apperr.ErrDidNotSignIn)
		require.False(t, h.GetState().IsConnected)
	})

	t.Run("reown has no sign in step", func(t *testing.T) {
		r, sdk := newReown(t, "stacks:2147483648:"+testhelper.TestnetAddress(1))
		sdk.SetSignedIn(false)
		addr, err := r.Connect(ctx)
		require.NoError(t, err)
		require.Equal(t, testhelper.TestnetAddress(1), addr)
	})

	t.Run("no stacks account", func(t *testing.T) {
		r, _ := newReown(t, "eip155:1:0xabc")
		_, err := r.Connect(ctx)
		require.ErrorIs(t, err, apperr.ErrConnectionFailed)
	})

	t.Run("sdk failure", func(t *testing.T) {
		r, sdk := newReown(t, testhelper.TestnetAddress(1))
		sdk.SetFail(ctx, true)
		_, err := r.Connect(ctx)
		require.ErrorIs(t, err, apperr.ErrConnectionFailed)
	})
}

func TestInitRestoresSession(t *testing.T) {
	ctx := context.Background()
	st := testhelper.TestnetAddress(3)
	h, sdk, _ := newHiro(t, st)
	sdk.Authorize()

	require.NoError(t, h.Init(ctx))
	require.NoError(t, h.Init(ctx))
	require.Equal(t, st, h.GetState().Address)
	require.Equal(t, 0, sdk.ConnectCalls())
	require.Equal(t, 1, sdk.Subscribers())

	// a session that is not signed in is not adopted
	h2, sdk2, _ := newHiro(t, st)
	sdk2.SetSignedIn(false)
	sdk2.Authorize()
	require.NoError(t, h2.Init(ctx))
	require.False(t, h2.GetState().IsConnected)

	h3, sdk3, _ := newHiro(t, st)
	sdk3.SetFail(ctx, true)
	require.Error(t, h3.Init(ctx))
}

func TestListenerIsolation(t *testing.T) {
	ctx := context.Background()
	h, _, _ := newHiro(t, testhelper.TestnetAddress(1))

	_, err := h.Subscribe(nil)
	require.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = h.Subscribe(func(types.WalletState) { panic("listener bug") })
	require.NoError(t, err)
	rec := &stateRecorder{}
	unsubscribe, err := h.Subscribe(rec.record)
	require.NoError(t, err)

	_, err = h.Connect(ctx)
	require.NoError(t, err)
	require.True(t, rec.last().IsConnected)

	got := rec.all()
	require.Equal(t, types.StatusConnecting, got[0].Status)

	unsubscribe()
	unsubscribe()
	require.NoError(t, h.Disconnect(ctx))
	require.True(t, rec.last().IsConnected)
}

func TestWalletEvents(t *testing.T) {
	ctx := context.Background()
	st1, st2 := testhelper.TestnetAddress(1), testhelper.TestnetAddress(2)

	t.Run("accounts changed", func(t *testing.T) {
		h, sdk, sessions := newHiro(t, st1)
		require.NoError(t, h.Init(ctx))
		_, err := h.Connect(ctx)
		require.NoError(t, err)

		sdk.Emit(&types.WalletEvent{Type: types.EventAccountsChanged, Accounts: []string{st2}})
		require.Equal(t, st2, h.GetState().Address)
		saved, err := sessions.LoadWallet(ctx)
		require.NoError(t, err)
		require.Equal(t, st2, saved.Address)

		sdk.Emit(&types.WalletEvent{Type: types.EventAccountsChanged})
		require.False(t, h.GetState().IsConnected)
	})

	t.Run("accounts changed while disconnected", func(t *testing.T) {
		h, sdk, _ := newHiro(t, st1)
		require.NoError(t, h.Init(ctx))
		sdk.Emit(&types.WalletEvent{Type: types.EventAccountsChanged, Accounts: []string{st2}})
		require.False(t, h.GetState().IsConnected)
	})

	t.Run("disconnect", func(t *testing.T) {
		r, sdk := newReown(t, st1)
		require.NoError(t, r.Init(ctx))
		_, err := r.Connect(ctx)
		require.NoError(t, err)

		sdk.Emit(&types.WalletEvent{Type: types.EventDisconnect})
		require.Equal(t, types.DisconnectedState(types.ProviderReown), r.GetState())
	})

	t.Run("chain changed reloads", func(t *testing.T) {
		h, sdk, _ := newHiro(t, st1)
		require.NoError(t, h.Init(ctx))
		_, err := h.Connect(ctx)
		require.NoError(t, err)
		rec := &stateRecorder{}
		_, err = h.Subscribe(rec.record)
		require.NoError(t, err)

		sdk.Emit(&types.WalletEvent{Type: types.EventChainChanged, Network: "testnet"})
		require.Eventually(t, func() bool {
			return h.GetState().IsConnected
		}, 5*time.Second, 10*time.Millisecond)
		require.False(t, rec.all()[0].IsConnected)
		require.Equal(t, 1, sdk.ConnectCalls())
	})
}

func TestConcurrentConnect(t *testing.T) {
	ctx := context.Background()
	h, sdk, _ := newHiro(t, testhelper.TestnetAddress(1))
	release := sdk.BlockConnect()
	defer release()

	errCh := make(chan error, 1)
	go func() {
		_, err := h.Connect(ctx)
		errCh <- err
	}()
	require.Eventually(t, func() bool {
		return h.GetState().Status == types.StatusConnecting
	}, 5*time.Second, 10*time.Millisecond)

	_, err := h.Connect(ctx)
	require.ErrorIs(t, err, apperr.ErrWalletBusy)

	require.NoError(t, h.Disconnect(ctx))
	release()
	require.ErrorIs(t, <-errCh, apperr.ErrConnectAborted)
	require.Equal(t, types.DisconnectedState(types.ProviderHiro), h.GetState())
}

func TestSignAndSend(t *testing.T) {
	ctx := context.Background()
	st := testhelper.TestnetAddress(4)
	h, sdk, _ := newHiro(t, st)

	_, err := h.SignMessage(ctx, "hello")
	require.ErrorIs(t, err, apperr.ErrNotConnected)
	_, err = h.SendTransaction(ctx, &types.TxRequest{FunctionName: "f"})
	require.ErrorIs(t, err, apperr.ErrNotConnected)

	_, err = h.Connect(ctx)
	require.NoError(t, err)

	sig, err := h.SignMessage(ctx, "hello")
	require.NoError(t, err)
	require.Equal(t, st, sig.Address)
	require.NotEmpty(t, sig.Signature)

	res, err := h.SendTransaction(ctx, &types.TxRequest{ContractName: "exchange", FunctionName: "purchase-listing-direct"})
	require.NoError(t, err)
	require.NotEmpty(t, res.TxID)
	txs := sdk.Transactions()
	require.Len(t, txs, 1)
	require.Equal(t, st, txs[0].Sender)
	require.Equal(t, "testnet", txs[0].Network)

	_, err = h.SendTransaction(ctx, &types.TxRequest{Sender: testhelper.TestnetAddress(9)})
	require.ErrorIs(t, err, apperr.ErrInvalidInput)

	sdk.SetCancel(true)
	_, err = h.SignMessage(ctx, "hello")
	require.ErrorIs(t, err, apperr.ErrUserCancelled)

	sdk.SetCancel(false)
	sdk.SetFail(ctx, true)
	_, err = h.SendTransaction(ctx, &types.TxRequest{FunctionName: "f"})
	require.ErrorIs(t, err, apperr.ErrCallFailed)
}

func TestWatch(t *testing.T) {
	h, _, _ := newHiro(t, testhelper.TestnetAddress(1))
	ctx, cancel := context.WithCancel(context.Background())
	ch := h.Watch(ctx)

	first := <-ch
	require.Equal(t, types.StatusDisconnected, first.Status)

	_, err := h.Connect(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		select {
		case s := <-ch:
			return s.IsConnected
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}

func TestDestroy(t *testing.T) {
	ctx := context.Background()
	h, sdk, _ := newHiro(t, testhelper.TestnetAddress(1))
	require.NoError(t, h.Init(ctx))
	require.Equal(t, 1, sdk.Subscribers())

	h.Destroy()
	require.Equal(t, 0, sdk.Subscribers())
	require.ErrorIs(t, h.Init(ctx), apperr.ErrProviderUnavailable)
	_, err := h.Connect(ctx)
	require.ErrorIs(t, err, apperr.ErrProviderUnavailable)
}

func TestClassifyError(t *testing.T) {
	cases := []struct {
		err  error
		want *apperr.AppError
	}{
		{errors.New(types.ErrMsgUserCancelled), apperr.ErrUserCancelled},
		{errors.New(types.ErrMsgNotSignedIn), apperr.ErrDidNotSignIn},
		{fmt.Errorf("send: %w", types.ErrWalletAppUnavailable), apperr.ErrProviderUnavailable},
		{context.DeadlineExceeded, apperr.ErrNetwork},
		{types.ErrCloseChannel, apperr.ErrNetwork},
		{fmt.Errorf("%s, create time", types.ErrRequestTimeout), apperr.ErrNetwork},
		{errors.New("boom"), apperr.ErrUnknown},
		{apperr.ErrWalletBusy, apperr.ErrWalletBusy},
	}
	for _, c := range cases {
		require.ErrorIs(t, classifyError(c.err, apperr.ErrUnknown), c.want, c.err.Error())
	}
}
