package integrate

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genetrust/genetrust-gateway/api"
	"github.com/genetrust/genetrust-gateway/config"
	"github.com/genetrust/genetrust-gateway/genetrust"
	"github.com/genetrust/genetrust-gateway/testhelper"
	"github.com/genetrust/genetrust-gateway/types"
	"github.com/genetrust/genetrust-gateway/walletevent"
)

func TestWalletAPI(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	daemon := setupDaemon(ctx, t, config.DefaultConfig())
	rpc := setupRPC(ctx, t, daemon.wsURL, "")

	addr := testhelper.TestnetAddress(1)
	mem := testhelper.NewMemWallet("testnet", addr)
	setupWalletApp(ctx, t, daemon.wsURL, mem, types.ProviderHiro)

	apps, err := rpc.ListWalletConnections(ctx)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, types.ProviderHiro, apps[0].Provider)
	assert.Equal(t, "integrate-app", apps[0].Name)

	updates, err := rpc.WalletStateUpdates(ctx)
	require.NoError(t, err)
	waitState(t, updates, func(s types.ManagerState) bool { return !s.IsConnected })

	// nobody serves reown
	_, err = rpc.WalletConnect(ctx, types.ProviderReown)
	require.Error(t, err)

	got, err := rpc.WalletConnect(ctx, types.ProviderHiro)
	require.NoError(t, err)
	assert.Equal(t, addr, got)
	waitState(t, updates, func(s types.ManagerState) bool {
		return s.IsConnected && s.Address == addr && s.Provider == types.ProviderHiro
	})

	saved, err := daemon.sessions.LoadWallet(ctx)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, addr, saved.Address)

	sig, err := rpc.WalletSignMessage(ctx, "GeneTrust login")
	require.NoError(t, err)
	assert.Equal(t, addr, sig.Address)

	// the wallet app reports a disconnect on its own
	mem.Emit(&types.WalletEvent{Type: types.EventDisconnect})
	waitState(t, updates, func(s types.ManagerState) bool { return !s.IsConnected })

	_, err = rpc.WalletSignMessage(ctx, "again")
	require.Error(t, err)
}

func TestRealContractFlow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	node := stacksNode()
	defer node.Close()

	cfg := config.DefaultConfig()
	cfg.Contract.UseRealSDK = true
	cfg.Network.StacksNode = node.URL
	daemon := setupDaemon(ctx, t, cfg)
	rpc := setupRPC(ctx, t, daemon.wsURL, "")

	addr := testhelper.TestnetAddress(3)
	mem := testhelper.NewMemWallet("testnet", addr)
	setupWalletApp(ctx, t, daemon.wsURL, mem, types.ProviderHiro)

	_, err := rpc.CreateVaultDataset(ctx, &types.CreateDatasetParams{Description: "exome"})
	require.Error(t, err, "not initialized")

	_, err = rpc.WalletConnect(ctx, types.ProviderHiro)
	require.NoError(t, err)
	require.NoError(t, rpc.ContractInitialize(ctx, &types.InitParams{WalletAddress: addr}))

	dataset, err := rpc.CreateVaultDataset(ctx, &types.CreateDatasetParams{
		Description: "exome",
		StorageURL:  "ipfs://bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi",
		Records: []string{
			"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO",
			"1\t100\t.\tA\tG\t.\tPASS\tGENE=BRCA1",
			"1\t200\t.\tC\tT\t.\tPASS\tGENE=BRCA2",
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, dataset.TxID)
	assert.Equal(t, types.DatasetStats{Variants: 2, Genes: 2}, dataset.Stats)

	txs := mem.Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, genetrust.FnRegisterGeneticData, txs[0].FunctionName)
	assert.Equal(t, addr, txs[0].Sender)
	assert.Equal(t, config.DefaultDeployer, txs[0].ContractAddress)

	status, err := rpc.ContractStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.ModeReal, status.Mode)
	assert.Equal(t, 1, status.DatasetCount)

	// wallet apps reach the node through the gateway
	resp, err := http.Get(daemon.url + "/v2/info")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"stacks_tip_height":100}`, string(body))

	// the user closes the wallet popup
	mem.SetCancel(true)
	_, err = rpc.CreateListing(ctx, &types.CreateListingParams{DataID: dataset.ID})
	require.Error(t, err)
	assert.Len(t, mem.Transactions(), 1)
}

func TestAuthToken(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.DefaultConfig()
	cfg.API.Token = "s3cret"
	daemon := setupDaemon(ctx, t, cfg)

	_, _, err := api.NewGeneTrustRPC(ctx, daemon.wsURL, "wrong")
	require.Error(t, err)

	rpc := setupRPC(ctx, t, daemon.wsURL, "s3cret")
	v, err := rpc.Version(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, v)

	// loopback callers may omit the token
	rpc = setupRPC(ctx, t, daemon.wsURL, "")
	_, err = rpc.ContractStatus(ctx)
	require.NoError(t, err)
}

func setupDaemon(ctx context.Context, t *testing.T, cfg *config.Config) *mockDaemon {
	daemon, err := MockMain(ctx, cfg, defaultTestConfig())
	require.NoError(t, err)
	return daemon
}

func setupRPC(ctx context.Context, t *testing.T, wsURL, token string) api.GeneTrust {
	rpc, closer, err := api.NewGeneTrustRPC(ctx, wsURL, token)
	require.NoError(t, err)
	t.Cleanup(closer)
	return rpc
}

func setupWalletApp(ctx context.Context, t *testing.T, wsURL string, mem *testhelper.MemWallet, provider types.ProviderID) *walletevent.WalletEventClient {
	client, closer, err := walletevent.NewWalletRegisterClient(ctx, wsURL, "")
	require.NoError(t, err)
	t.Cleanup(closer)

	policy := &walletevent.WalletRegisterPolicy{Provider: provider, Name: "integrate-app"}
	app := walletevent.NewWalletEventClient(ctx, mem, client, logging.Logger("test").With(), policy)
	go app.ListenWalletRequest(ctx)

	readyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	app.WaitReady(readyCtx)
	require.NoError(t, readyCtx.Err(), "wallet app not registered within 10s")
	return app
}

func waitState(t *testing.T, updates <-chan types.ManagerState, match func(types.ManagerState) bool) types.ManagerState {
	timeout := time.After(10 * time.Second)
	for {
		select {
		case s, ok := <-updates:
			require.True(t, ok, "state updates closed")
			if match(s) {
				return s
			}
		case <-timeout:
			t.Fatal("wallet state did not reach the expected value")
			return types.ManagerState{}
		}
	}
}
