package cmds

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/genetrust/genetrust-gateway/types"
)

var ContractCmds = &cli.Command{
	Name:        "contract",
	Usage:       "contract service cmds",
	Subcommands: []*cli.Command{contractInitCmd, contractStatusCmd},
}

var contractInitCmd = &cli.Command{
	Name:      "init",
	Usage:     "initialize the contract service, defaults to the connected wallet",
	ArgsUsage: "[wallet-address]",
	Action: func(cctx *cli.Context) error {
		api, closer, err := NewGeneTrustClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		address := cctx.Args().First()
		if address == "" {
			state, err := api.WalletState(cctx.Context)
			if err != nil {
				return err
			}
			if !state.IsConnected {
				return fmt.Errorf("no wallet connected, connect one or pass an address")
			}
			address = state.Address
		}
		if err := api.ContractInitialize(cctx.Context, &types.InitParams{WalletAddress: address}); err != nil {
			return err
		}
		fmt.Println("initialized for", address)
		return nil
	},
}

var contractStatusCmd = &cli.Command{
	Name:  "status",
	Usage: "show mode, network and counters of the contract service",
	Action: func(cctx *cli.Context) error {
		api, closer, err := NewGeneTrustClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		status, err := api.ContractStatus(cctx.Context)
		if err != nil {
			return err
		}
		return printJSON(status)
	},
}

var DatasetCmds = &cli.Command{
	Name:        "dataset",
	Usage:       "genomic dataset cmds",
	Subcommands: []*cli.Command{datasetCreateCmd, datasetListCmd, datasetGetCmd},
}

var datasetCreateCmd = &cli.Command{
	Name:  "create",
	Usage: "register a dataset in the vault",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "description", Required: true},
		&cli.StringFlag{Name: "storage-url", Usage: "ipfs://<cid> or https url of the encrypted data"},
		&cli.IntSliceFlag{Name: "access-level", Usage: "access levels offered, defaults to 1,2,3"},
		&cli.Uint64Flag{Name: "price", Usage: "micro-STX, defaults to 1000000"},
		&cli.StringFlag{Name: "records", Usage: "vcf file to derive variant and gene counts from"},
	},
	Action: func(cctx *cli.Context) error {
		params := &types.CreateDatasetParams{
			Description:  cctx.String("description"),
			StorageURL:   cctx.String("storage-url"),
			AccessLevels: cctx.IntSlice("access-level"),
			Price:        cctx.Uint64("price"),
		}
		if path := cctx.String("records"); path != "" {
			records, err := readLines(path)
			if err != nil {
				return err
			}
			params.Records = records
		}

		api, closer, err := NewGeneTrustClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		dataset, err := api.CreateVaultDataset(cctx.Context, params)
		if err != nil {
			return err
		}
		return printJSON(dataset)
	},
}

var datasetListCmd = &cli.Command{
	Name:  "list",
	Usage: "list datasets of the initialized wallet",
	Action: func(cctx *cli.Context) error {
		api, closer, err := NewGeneTrustClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		datasets, err := api.ListMyDatasets(cctx.Context)
		if err != nil {
			return err
		}
		return printJSON(datasets)
	},
}

var datasetGetCmd = &cli.Command{
	Name:      "get",
	ArgsUsage: "<data-id>",
	Action: func(cctx *cli.Context) error {
		id, err := uintArg(cctx, 0, "data-id")
		if err != nil {
			return err
		}
		api, closer, err := NewGeneTrustClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		dataset, err := api.GetDataset(cctx.Context, id)
		if err != nil {
			return err
		}
		return printJSON(dataset)
	},
}

var ListingCmds = &cli.Command{
	Name:  "listing",
	Usage: "marketplace listing cmds",
	Subcommands: []*cli.Command{
		listingCreateCmd,
		listingListCmd,
		listingGetCmd,
		listingBuyCmd,
		listingCancelCmd,
	},
}

var listingCreateCmd = &cli.Command{
	Name:      "create",
	Usage:     "list a dataset on the marketplace",
	ArgsUsage: "<data-id>",
	Flags: []cli.Flag{
		&cli.Uint64Flag{Name: "price", Usage: "micro-STX, defaults to 1000000"},
		&cli.IntFlag{Name: "access-level", Usage: "defaults to 3"},
		&cli.StringFlag{Name: "description"},
	},
	Action: func(cctx *cli.Context) error {
		dataID, err := uintArg(cctx, 0, "data-id")
		if err != nil {
			return err
		}
		api, closer, err := NewGeneTrustClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		listing, err := api.CreateListing(cctx.Context, &types.CreateListingParams{
			DataID:      dataID,
			Price:       cctx.Uint64("price"),
			AccessLevel: cctx.Int("access-level"),
			Description: cctx.String("description"),
		})
		if err != nil {
			return err
		}
		return printJSON(listing)
	},
}

var listingListCmd = &cli.Command{
	Name:  "list",
	Usage: "list marketplace listings",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "mine", Usage: "only listings of the initialized wallet"},
	},
	Action: func(cctx *cli.Context) error {
		api, closer, err := NewGeneTrustClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		listings, err := api.ListMarketplace(cctx.Context, &types.ListMarketplaceParams{OwnerOnly: cctx.Bool("mine")})
		if err != nil {
			return err
		}
		return printJSON(listings)
	},
}

var listingGetCmd = &cli.Command{
	Name:      "get",
	ArgsUsage: "<listing-id>",
	Action: func(cctx *cli.Context) error {
		id, err := uintArg(cctx, 0, "listing-id")
		if err != nil {
			return err
		}
		api, closer, err := NewGeneTrustClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		listing, err := api.GetListing(cctx.Context, id)
		if err != nil {
			return err
		}
		return printJSON(listing)
	},
}

var listingBuyCmd = &cli.Command{
	Name:      "buy",
	Usage:     "purchase access to a listing",
	ArgsUsage: "<listing-id> <access-level>",
	Action: func(cctx *cli.Context) error {
		id, err := uintArg(cctx, 0, "listing-id")
		if err != nil {
			return err
		}
		level, err := uintArg(cctx, 1, "access-level")
		if err != nil {
			return err
		}
		api, closer, err := NewGeneTrustClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		receipt, err := api.PurchaseListing(cctx.Context, &types.PurchaseParams{ListingID: id, DesiredAccessLevel: int(level)})
		if err != nil {
			return err
		}
		return printJSON(receipt)
	},
}

var listingCancelCmd = &cli.Command{
	Name:      "cancel",
	ArgsUsage: "<listing-id>",
	Action: func(cctx *cli.Context) error {
		id, err := uintArg(cctx, 0, "listing-id")
		if err != nil {
			return err
		}
		api, closer, err := NewGeneTrustClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		return api.CancelListing(cctx.Context, id)
	},
}

func uintArg(cctx *cli.Context, i int, name string) (uint64, error) {
	if cctx.NArg() <= i {
		return 0, fmt.Errorf("missing %s argument", name)
	}
	v, err := strconv.ParseUint(cctx.Args().Get(i), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
