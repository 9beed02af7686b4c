package integrate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/filecoin-project/go-jsonrpc"
	"github.com/gorilla/mux"
	logging "github.com/ipfs/go-log/v2"

	"github.com/genetrust/genetrust-gateway/api"
	"github.com/genetrust/genetrust-gateway/config"
	"github.com/genetrust/genetrust-gateway/contract"
	"github.com/genetrust/genetrust-gateway/genetrust"
	"github.com/genetrust/genetrust-gateway/processing"
	"github.com/genetrust/genetrust-gateway/proxy"
	"github.com/genetrust/genetrust-gateway/store"
	"github.com/genetrust/genetrust-gateway/types"
	"github.com/genetrust/genetrust-gateway/validator"
	"github.com/genetrust/genetrust-gateway/version"
	"github.com/genetrust/genetrust-gateway/wallet"
	"github.com/genetrust/genetrust-gateway/walletevent"
)

var log = logging.Logger("mock main")

type testConfig struct {
	requestTimeout time.Duration
	clearInterval  time.Duration
}

func defaultTestConfig() testConfig {
	return testConfig{
		requestTimeout: time.Minute,
		clearInterval:  time.Minute,
	}
}

type mockDaemon struct {
	url      string
	wsURL    string
	manager  *wallet.Manager
	sessions *store.SessionStore
}

// MockMain assembles the gateway the way RunMain does, behind an httptest server.
func MockMain(ctx context.Context, cfg *config.Config, tcfg testConfig) (*mockDaemon, error) {
	requestCfg := &types.RequestConfig{
		RequestQueueSize: 30,
		RequestTimeout:   tcfg.requestTimeout,
		ClearInterval:    tcfg.clearInterval,
	}

	sessions := store.NewSessionStore(store.NewMemStore())
	walletStream := walletevent.NewWalletEventStream(ctx, requestCfg)

	providers, err := cfg.EnabledProviders()
	if err != nil {
		return nil, err
	}
	opts := wallet.Options{Network: cfg.Network.Network, AppName: cfg.Wallet.AppName}
	manager := wallet.NewManager(wallet.ManagerConfig{EnabledProviders: providers},
		wallet.NewReownService(walletevent.NewRemoteSDK(walletStream, types.ProviderReown), sessions, opts),
		wallet.NewHiroService(walletevent.NewRemoteSDK(walletStream, types.ProviderHiro), sessions, opts),
	)
	if err := manager.Init(ctx); err != nil {
		return nil, err
	}

	client := genetrust.NewClient(cfg.GenetrustConfig(), manager)
	addrValidator, err := validator.NewAddressValidator(cfg.Network.Network)
	if err != nil {
		return nil, err
	}
	contracts := contract.NewService(
		contract.NewBackend(cfg.Contract.UseRealSDK, cfg.Network.Network, client),
		addrValidator,
		processing.NewOptimizer(cfg.Contract.ChunkSize, cfg.Contract.Workers),
	)

	geneTrustAPIImpl := api.NewGeneTrustAPIImpl(walletStream, manager, contracts, sessions)

	log.Infof("genetrust-gateway current version %s", version.UserVersion)

	var fullNode api.GeneTrustStruct
	api.PermissionProxy(geneTrustAPIImpl, &fullNode)

	rpcServer := jsonrpc.NewServer()
	rpcServer.Register(api.Namespace, &fullNode)

	router := mux.NewRouter()
	router.Handle("/rpc/v0", rpcServer)

	nodeProxy := proxy.NewProxy()
	if cfg.Network.ProxyNode {
		if err := nodeProxy.RegisterReverseByAddr(proxy.UpstreamStacksAPI, cfg.Network.StacksNode); err != nil {
			return nil, err
		}
	}

	srv := httptest.NewServer(&api.AuthHandler{Token: cfg.API.Token, Next: nodeProxy.ProxyMiddleware(router)})
	go func() {
		<-ctx.Done()
		manager.Destroy()
		srv.Close()
	}()

	return &mockDaemon{
		url:      srv.URL,
		wsURL:    "ws://" + strings.TrimPrefix(srv.URL, "http://") + "/rpc/v0",
		manager:  manager,
		sessions: sessions,
	}, nil
}

// stacksNode only answers the info probe.
func stacksNode() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v2/info" {
			_, _ = w.Write([]byte(`{"stacks_tip_height":100}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
}
