package cmds

import (
	"fmt"

	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"

	"github.com/genetrust/genetrust-gateway/testhelper"
	"github.com/genetrust/genetrust-gateway/types"
	"github.com/genetrust/genetrust-gateway/walletevent"
)

var WalletCmds = &cli.Command{
	Name:  "wallet",
	Usage: "wallet cmds",
	Subcommands: []*cli.Command{
		walletProvidersCmd,
		walletStateCmd,
		walletConnectCmd,
		walletDisconnectCmd,
		walletSignCmd,
		walletWatchCmd,
		walletAppsCmd,
		walletBridgeCmd,
	},
}

var walletProvidersCmd = &cli.Command{
	Name:  "providers",
	Usage: "list wallet providers",
	Action: func(cctx *cli.Context) error {
		api, closer, err := NewGeneTrustClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		providers, err := api.WalletProviders(cctx.Context)
		if err != nil {
			return err
		}
		return printJSON(providers)
	},
}

var walletStateCmd = &cli.Command{
	Name:  "state",
	Usage: "show the wallet connection state",
	Action: func(cctx *cli.Context) error {
		api, closer, err := NewGeneTrustClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		state, err := api.WalletState(cctx.Context)
		if err != nil {
			return err
		}
		return printJSON(state)
	},
}

var walletConnectCmd = &cli.Command{
	Name:      "connect",
	Usage:     "connect a wallet provider",
	ArgsUsage: "<reown|hiro>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return fmt.Errorf("expect one provider argument")
		}
		provider, err := types.ParseProviderID(cctx.Args().First())
		if err != nil {
			return err
		}

		api, closer, err := NewGeneTrustClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		address, err := api.WalletConnect(cctx.Context, provider)
		if err != nil {
			return err
		}
		fmt.Println(address)
		return nil
	},
}

var walletDisconnectCmd = &cli.Command{
	Name:  "disconnect",
	Usage: "disconnect the current wallet",
	Action: func(cctx *cli.Context) error {
		api, closer, err := NewGeneTrustClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		return api.WalletDisconnect(cctx.Context)
	},
}

var walletSignCmd = &cli.Command{
	Name:      "sign",
	Usage:     "sign a message with the current wallet",
	ArgsUsage: "<message>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return fmt.Errorf("expect one message argument")
		}
		api, closer, err := NewGeneTrustClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		sig, err := api.WalletSignMessage(cctx.Context, cctx.Args().First())
		if err != nil {
			return err
		}
		return printJSON(sig)
	},
}

var walletWatchCmd = &cli.Command{
	Name:  "watch",
	Usage: "print every wallet state change",
	Action: func(cctx *cli.Context) error {
		api, closer, err := NewGeneTrustClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		updates, err := api.WalletStateUpdates(cctx.Context)
		if err != nil {
			return err
		}
		for {
			select {
			case state, ok := <-updates:
				if !ok {
					return nil
				}
				if err := printJSON(state); err != nil {
					return err
				}
			case <-cctx.Context.Done():
				return nil
			}
		}
	},
}

var walletAppsCmd = &cli.Command{
	Name:  "apps",
	Usage: "list the wallet apps connected to the gateway",
	Action: func(cctx *cli.Context) error {
		api, closer, err := NewGeneTrustClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		apps, err := api.ListWalletConnections(cctx.Context)
		if err != nil {
			return err
		}
		return printJSON(apps)
	},
}

var walletBridgeCmd = &cli.Command{
	Name:  "bridge",
	Usage: "serve an in-memory wallet to the gateway, for local development",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "provider", Value: string(types.ProviderHiro)},
		&cli.StringFlag{Name: "network", Value: "testnet"},
		&cli.StringSliceFlag{Name: "account", Usage: "stacks address or CAIP-10 account id", Required: true},
	},
	Action: func(cctx *cli.Context) error {
		provider, err := types.ParseProviderID(cctx.String("provider"))
		if err != nil {
			return err
		}
		addr, err := DialArgs(cctx.String("listen"))
		if err != nil {
			return err
		}
		client, closer, err := walletevent.NewWalletRegisterClient(cctx.Context, addr, clientToken(cctx))
		if err != nil {
			return err
		}
		defer closer()

		memWallet := testhelper.NewMemWallet(cctx.String("network"), cctx.StringSlice("account")...)
		logger := logging.Logger("wallet_bridge").With("provider", provider)
		policy := &walletevent.WalletRegisterPolicy{Provider: provider, Name: "dev-bridge"}
		bridge := walletevent.NewWalletEventClient(cctx.Context, memWallet, client, logger, policy)
		logger.Infof("serving %d accounts", len(cctx.StringSlice("account")))
		bridge.ListenWalletRequest(cctx.Context)
		return nil
	},
}
