package walletevent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genetrust/genetrust-gateway/store"
	"github.com/genetrust/genetrust-gateway/testhelper"
	"github.com/genetrust/genetrust-gateway/types"
	"github.com/genetrust/genetrust-gateway/wallet"
)

func TestListenWalletEvent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	walletEvent := setupWalletEvent(ctx)
	mem := testhelper.NewMemWallet("testnet", testhelper.TestnetAddress(1))
	client := setupClient(ctx, t, walletEvent, mem, types.ProviderHiro)

	conns, err := walletEvent.ListWalletConnections(ctx)
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, types.ProviderHiro, conns[0].Provider)
	assert.Equal(t, "test-app", conns[0].Name)
	assert.Equal(t, client.ChannelID().String(), conns[0].ChannelID)
	assert.Equal(t, 1, walletEvent.ConnCount(types.ProviderHiro))
	assert.Equal(t, 0, walletEvent.ConnCount(types.ProviderReown))

	_, err = walletEvent.ListenWalletEvent(ctx, &WalletRegisterPolicy{Provider: "metamask"})
	require.Error(t, err)
	_, err = walletEvent.ListenWalletEvent(ctx, nil)
	require.Error(t, err)
}

func TestRemoteSDK(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr := testhelper.TestnetAddress(1)
	walletEvent := setupWalletEvent(ctx)
	mem := testhelper.NewMemWallet("testnet", addr)
	setupClient(ctx, t, walletEvent, mem, types.ProviderHiro)
	sdk := NewRemoteSDK(walletEvent, types.ProviderHiro)

	session, err := sdk.WalletSession(ctx)
	require.NoError(t, err)
	assert.Empty(t, session.Accounts)

	session, err = sdk.WalletConnect(ctx, &types.ConnectOptions{AppName: "GeneTrust", Network: "testnet"})
	require.NoError(t, err)
	assert.Equal(t, []string{addr}, session.Accounts)
	assert.True(t, session.SignedIn)
	assert.Equal(t, 1, mem.ConnectCalls())

	sig, err := sdk.WalletSignMessage(ctx, &types.SignMessageRequest{Address: addr, Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, addr, sig.Address)
	assert.NotEmpty(t, sig.Signature)

	result, err := sdk.WalletSendTransaction(ctx, &types.TxRequest{
		Sender:          addr,
		ContractAddress: addr,
		ContractName:    "genetic-data",
		FunctionName:    "register-genetic-data",
		FunctionArgs:    []string{"0x0100000000000000000000000000000001"},
		Network:         "testnet",
	})
	require.NoError(t, err)
	assert.Contains(t, result.TxID, "0x")
	txs := mem.Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, "register-genetic-data", txs[0].FunctionName)

	require.NoError(t, sdk.WalletDisconnect(ctx))
	assert.Equal(t, 1, mem.DisconnectCalls())
}

func TestRemoteSDKErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	walletEvent := setupWalletEvent(ctx)
	reown := NewRemoteSDK(walletEvent, types.ProviderReown)
	_, err := reown.WalletSession(ctx)
	require.True(t, errors.Is(err, types.ErrWalletAppUnavailable))

	mem := testhelper.NewMemWallet("testnet", testhelper.TestnetAddress(1))
	setupClient(ctx, t, walletEvent, mem, types.ProviderHiro)
	hiro := NewRemoteSDK(walletEvent, types.ProviderHiro)

	mem.SetCancel(true)
	_, err = hiro.WalletConnect(ctx, &types.ConnectOptions{Network: "testnet"})
	require.EqualError(t, err, types.ErrMsgUserCancelled)

	mem.SetCancel(false)
	mem.SetFailDisconnect(true)
	require.EqualError(t, hiro.WalletDisconnect(ctx), "mock error")

	sendCtx, sendCancel := context.WithCancel(ctx)
	sendCancel()
	_, err = hiro.WalletSession(sendCtx)
	require.Error(t, err)
}

func TestPushWalletEvent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	walletEvent := setupWalletEvent(ctx)
	mem := testhelper.NewMemWallet("testnet", testhelper.TestnetAddress(1))
	client := setupClient(ctx, t, walletEvent, mem, types.ProviderReown)

	rec := &eventRecorder{}
	unsubscribe := NewRemoteSDK(walletEvent, types.ProviderReown).Subscribe(rec.add)
	hiroRec := &eventRecorder{}
	defer NewRemoteSDK(walletEvent, types.ProviderHiro).Subscribe(hiroRec.add)()

	// the bridge forwards what its sdk reports
	mem.Emit(&types.WalletEvent{Type: types.EventAccountsChanged, Accounts: []string{testhelper.TestnetAddress(2)}})
	require.Eventually(t, func() bool { return rec.len() == 1 }, time.Second*5, time.Millisecond*20)
	assert.Equal(t, types.EventAccountsChanged, rec.get(0).Type)
	assert.Equal(t, []string{testhelper.TestnetAddress(2)}, rec.get(0).Accounts)
	assert.Equal(t, 0, hiroRec.len())

	err := walletEvent.PushWalletEvent(ctx, client.ChannelID(), &types.WalletEvent{Type: types.EventChainChanged, Network: "mainnet"})
	require.NoError(t, err)
	require.Equal(t, 2, rec.len())
	assert.Equal(t, "mainnet", rec.get(1).Network)

	err = walletEvent.PushWalletEvent(ctx, uuid.New(), &types.WalletEvent{Type: types.EventDisconnect})
	require.Error(t, err)
	err = walletEvent.PushWalletEvent(ctx, client.ChannelID(), &types.WalletEvent{Type: "reload"})
	require.Error(t, err)
	err = walletEvent.PushWalletEvent(ctx, client.ChannelID(), nil)
	require.Error(t, err)

	unsubscribe()
	unsubscribe()
	err = walletEvent.PushWalletEvent(ctx, client.ChannelID(), &types.WalletEvent{Type: types.EventDisconnect})
	require.NoError(t, err)
	assert.Equal(t, 2, rec.len())
}

func TestLastAppLeaves(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	walletEvent := setupWalletEvent(ctx)
	rec := &eventRecorder{}
	defer NewRemoteSDK(walletEvent, types.ProviderHiro).Subscribe(rec.add)()

	ctx1, cancel1 := context.WithCancel(ctx)
	setupClient(ctx1, t, walletEvent, testhelper.NewMemWallet("testnet"), types.ProviderHiro)
	ctx2, cancel2 := context.WithCancel(ctx)
	setupClient(ctx2, t, walletEvent, testhelper.NewMemWallet("testnet"), types.ProviderHiro)
	require.Equal(t, 2, walletEvent.ConnCount(types.ProviderHiro))

	cancel1()
	require.Eventually(t, func() bool { return walletEvent.ConnCount(types.ProviderHiro) == 1 }, time.Second*5, time.Millisecond*20)
	assert.Equal(t, 0, rec.len())

	cancel2()
	require.Eventually(t, func() bool { return rec.len() == 1 }, time.Second*5, time.Millisecond*20)
	assert.Equal(t, types.EventDisconnect, rec.get(0).Type)
	conns, err := walletEvent.ListWalletConnections(ctx)
	require.NoError(t, err)
	assert.Empty(t, conns)
}

func TestHiroOverRemoteSDK(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr := testhelper.TestnetAddress(3)
	walletEvent := setupWalletEvent(ctx)
	mem := testhelper.NewMemWallet("testnet", testhelper.MainnetAddress(3), addr)
	appCtx, appCancel := context.WithCancel(ctx)
	setupClient(appCtx, t, walletEvent, mem, types.ProviderHiro)

	hiro := wallet.NewHiroService(NewRemoteSDK(walletEvent, types.ProviderHiro),
		store.NewSessionStore(store.NewMemStore()), wallet.Options{Network: "testnet", AppName: "GeneTrust"})
	defer hiro.Destroy()
	require.NoError(t, hiro.Init(ctx))

	got, err := hiro.Connect(ctx)
	require.NoError(t, err)
	assert.Equal(t, addr, got)
	assert.True(t, hiro.GetState().IsConnected)

	// closing the bridge looks like a wallet side disconnect
	appCancel()
	require.Eventually(t, func() bool { return !hiro.GetState().IsConnected }, time.Second*5, time.Millisecond*20)
	assert.Empty(t, hiro.GetState().Address)
}

func setupWalletEvent(ctx context.Context) *WalletEventStream {
	return NewWalletEventStream(ctx, types.DefaultConfig())
}

// setupClient attaches a bridge serving mem and waits until the gateway acknowledged it.
func setupClient(ctx context.Context, t *testing.T, event *WalletEventStream, mem *testhelper.MemWallet, provider types.ProviderID) *WalletEventClient {
	policy := &WalletRegisterPolicy{Provider: provider, Name: "test-app"}
	client := NewWalletEventClient(ctx, mem, NewWalletEventAPI(event), log.With("test", t.Name()), policy)
	go client.ListenWalletRequest(ctx)

	readyCtx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()
	client.WaitReady(readyCtx)
	require.NoError(t, readyCtx.Err(), "unable to wait for InitConnect within 10s")
	return client
}

type eventRecorder struct {
	lk     sync.Mutex
	events []*types.WalletEvent
}

func (r *eventRecorder) add(ev *types.WalletEvent) {
	r.lk.Lock()
	defer r.lk.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) len() int {
	r.lk.Lock()
	defer r.lk.Unlock()
	return len(r.events)
}

func (r *eventRecorder) get(i int) *types.WalletEvent {
	r.lk.Lock()
	defer r.lk.Unlock()
	return r.events[i]
}
