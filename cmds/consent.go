package cmds

import (
	"github.com/urfave/cli/v2"

	"github.com/genetrust/genetrust-gateway/types"
)

var ConsentCmds = &cli.Command{
	Name:        "consent",
	Usage:       "analytics consent cmds",
	Subcommands: []*cli.Command{consentGetCmd, consentSetCmd},
}

var consentGetCmd = &cli.Command{
	Name: "get",
	Action: func(cctx *cli.Context) error {
		api, closer, err := NewGeneTrustClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		consent, err := api.ConsentGet(cctx.Context)
		if err != nil {
			return err
		}
		return printJSON(consent)
	},
}

var consentSetCmd = &cli.Command{
	Name:  "set",
	Usage: "store the consent categories, necessary is always granted",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "analytics"},
		&cli.BoolFlag{Name: "marketing"},
	},
	Action: func(cctx *cli.Context) error {
		api, closer, err := NewGeneTrustClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		return api.ConsentSet(cctx.Context, &types.AnalyticsConsent{
			Necessary: true,
			Analytics: cctx.Bool("analytics"),
			Marketing: cctx.Bool("marketing"),
		})
	},
}
