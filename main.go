package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/etherlabsio/healthcheck/v2"
	"github.com/filecoin-project/go-jsonrpc"
	"github.com/gorilla/mux"
	"github.com/ipfs-force-community/metrics"
	logging "github.com/ipfs/go-log/v2"
	"github.com/mitchellh/go-homedir"
	"github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
	"github.com/urfave/cli/v2"
	"go.opencensus.io/plugin/ochttp"

	"github.com/genetrust/genetrust-gateway/api"
	"github.com/genetrust/genetrust-gateway/cmds"
	"github.com/genetrust/genetrust-gateway/config"
	"github.com/genetrust/genetrust-gateway/contract"
	"github.com/genetrust/genetrust-gateway/genetrust"
	gtmetrics "github.com/genetrust/genetrust-gateway/metrics"
	"github.com/genetrust/genetrust-gateway/processing"
	"github.com/genetrust/genetrust-gateway/proxy"
	"github.com/genetrust/genetrust-gateway/store"
	"github.com/genetrust/genetrust-gateway/types"
	"github.com/genetrust/genetrust-gateway/utils"
	"github.com/genetrust/genetrust-gateway/validator"
	"github.com/genetrust/genetrust-gateway/version"
	"github.com/genetrust/genetrust-gateway/wallet"
	"github.com/genetrust/genetrust-gateway/walletevent"
)

var log = logging.Logger("main")

func main() {
	_ = logging.SetLogLevel("*", "INFO")

	app := &cli.App{
		Name:  "genetrust-gateway",
		Usage: "genetrust-gateway connects stacks wallet apps to the GeneTrust marketplace",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "host address and port the api will listen on",
				Value: "/ip4/127.0.0.1/tcp/45132",
			},
			cmds.TokenFlag,
			cmds.RepoFlag,
		},
		Commands: []*cli.Command{
			runCmd, cmds.WalletCmds, cmds.ContractCmds, cmds.DatasetCmds, cmds.ListingCmds, cmds.ConsentCmds,
		},
	}
	app.Version = version.UserVersion
	if err := app.Run(os.Args); err != nil {
		log.Warn(err)
		os.Exit(1)
	}
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "start genetrust-gateway daemon",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "use-real-sdk", Usage: "send contract calls to the stacks node instead of the in-memory mock"},
		&cli.StringFlag{Name: "redis", Usage: "redis url for wallet sessions, memory when empty"},
	},
	Action: func(cctx *cli.Context) error {
		repoPath, err := homedir.Expand(cctx.String("repo"))
		if err != nil {
			return err
		}
		cfg, err := loadConfig(repoPath)
		if err != nil {
			return err
		}
		if err := config.ApplyEnv(cfg); err != nil {
			return fmt.Errorf("read environment: %w", err)
		}
		if cctx.IsSet("listen") {
			cfg.API.ListenAddress = cctx.String("listen")
		}
		if cctx.IsSet("use-real-sdk") {
			cfg.Contract.UseRealSDK = cctx.Bool("use-real-sdk")
		}
		if cctx.IsSet("redis") {
			cfg.Store.Redis = cctx.String("redis")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return RunMain(cctx.Context, repoPath, cfg)
	},
}

// loadConfig reads <repo>/config.toml, writing the defaults on first start.
func loadConfig(repoPath string) (*config.Config, error) {
	cfgPath := filepath.Join(repoPath, config.ConfigFile)
	cfg, err := config.ReadConfig(cfgPath)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config %s: %w", cfgPath, err)
	}

	cfg = config.DefaultConfig()
	if err := os.MkdirAll(repoPath, 0755); err != nil {
		return nil, err
	}
	if err := config.WriteConfig(cfgPath, cfg); err != nil {
		return nil, err
	}
	log.Infof("write default config to %s", cfgPath)
	return cfg, nil
}

func RunMain(ctx context.Context, repoPath string, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.Infof("genetrust-gateway current version %s, listen %s, network %s, real sdk %v",
		version.UserVersion, cfg.API.ListenAddress, cfg.Network.Network, cfg.Contract.UseRealSDK)

	kv, err := store.Open(ctx, cfg.Store.Redis, cfg.Store.Prefix)
	if err != nil {
		return err
	}
	defer kv.Close() //nolint:errcheck
	sessions := store.NewSessionStore(kv)

	walletStream := walletevent.NewWalletEventStream(ctx, cfg.RequestConfig())

	providers, err := cfg.EnabledProviders()
	if err != nil {
		return err
	}
	opts := wallet.Options{Network: cfg.Network.Network, AppName: cfg.Wallet.AppName, AppIcon: cfg.Wallet.AppIcon}
	manager := wallet.NewManager(wallet.ManagerConfig{EnabledProviders: providers},
		wallet.NewReownService(walletevent.NewRemoteSDK(walletStream, types.ProviderReown), sessions, opts),
		wallet.NewHiroService(walletevent.NewRemoteSDK(walletStream, types.ProviderHiro), sessions, opts),
	)
	defer manager.Destroy()
	// no wallet app is connected yet, a restore only succeeds for apps that reconnect quickly
	go func() {
		_ = manager.Init(ctx)
	}()

	client := genetrust.NewClient(cfg.GenetrustConfig(), manager)
	addrValidator, err := validator.NewAddressValidator(cfg.Network.Network)
	if err != nil {
		return err
	}
	contracts := contract.NewService(
		contract.NewBackend(cfg.Contract.UseRealSDK, cfg.Network.Network, client),
		addrValidator,
		processing.NewOptimizer(cfg.Contract.ChunkSize, cfg.Contract.Workers),
	)

	geneTrustAPIImpl := api.NewGeneTrustAPIImpl(walletStream, manager, contracts, sessions)

	if err := gtmetrics.SetupMetrics(ctx, cfg.Metrics, geneTrustAPIImpl); err != nil {
		return err
	}

	log.Info("Setting up control endpoint at " + cfg.API.ListenAddress)

	var fullNode api.GeneTrustStruct
	api.PermissionProxy(geneTrustAPIImpl, &fullNode)

	rpcServer := jsonrpc.NewServer()
	rpcServer.Register(api.Namespace, &fullNode)

	rpcMux := mux.NewRouter()
	rpcMux.Handle("/rpc/v0", rpcServer)
	rpcMux.PathPrefix("/").Handler(http.DefaultServeMux)

	nodeProxy := proxy.NewProxy()
	if cfg.Network.ProxyNode {
		if err := nodeProxy.RegisterReverseByAddr(proxy.UpstreamStacksAPI, cfg.Network.StacksNode); err != nil {
			return err
		}
	}

	localJwt, err := utils.NewLocalJwtClient(repoPath)
	if err != nil {
		return fmt.Errorf("init local token: %w", err)
	}
	if err := localJwt.SaveToken(); err != nil {
		return fmt.Errorf("save local token: %w", err)
	}

	router := mux.NewRouter()
	router.Handle("/healthcheck", healthcheck.Handler(
		healthcheck.WithTimeout(5*time.Second),
		healthcheck.WithChecker("stacks-node", healthcheck.CheckerFunc(func(ctx context.Context) error {
			if !cfg.Contract.UseRealSDK {
				return nil
			}
			_, err := client.Ping(ctx)
			return err
		})),
	))
	router.PathPrefix("/").Handler(&api.AuthHandler{
		Token:    cfg.API.Token,
		Verifier: localJwt,
		Next:     nodeProxy.ProxyMiddleware(rpcMux),
	})
	handler := (http.Handler)(router)

	log.Infof("trace config %v", cfg.Trace)
	repoter, err := metrics.RegisterJaeger(cfg.Trace.ServerName, cfg.Trace)
	if err != nil {
		return fmt.Errorf("register %s JaegerRepoter to %s failed: %w", cfg.Trace.ServerName, cfg.Trace.JaegerEndpoint, err)
	}
	if repoter != nil {
		log.Infof("register jaeger-tracing exporter to %s, with node-name:%s", cfg.Trace.JaegerEndpoint, cfg.Trace.ServerName)
		defer metrics.UnregisterJaeger(repoter)
		handler = &ochttp.Handler{Handler: handler}
	}

	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 30 * time.Second}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			log.Warnw("received shutdown", "signal", sig)
		case <-ctx.Done():
			log.Warn("received shutdown")
		}

		log.Info("Shutting down...")
		gtmetrics.ApiState.Set(context.Background(), 0)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("shutting down RPC server failed: %s", err)
		}
	}()

	addr, err := multiaddr.NewMultiaddr(cfg.API.ListenAddress)
	if err != nil {
		return err
	}
	nl, err := manet.Listen(addr)
	if err != nil {
		return err
	}

	gtmetrics.ApiState.Set(ctx, 1)
	log.Infof("start to rpc listen %s", nl.Addr())
	if err = srv.Serve(manet.NetListener(nl)); err != nil && err != http.ErrServerClosed {
		return err
	}

	log.Info("Graceful shutdown successful")
	return nil
}
