package cmds

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/filecoin-project/go-jsonrpc"
	"github.com/mitchellh/go-homedir"
	"github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
	"github.com/urfave/cli/v2"

	"github.com/genetrust/genetrust-gateway/api"
	"github.com/genetrust/genetrust-gateway/utils"
)

var RepoFlag = &cli.StringFlag{
	Name:    "repo",
	Value:   "~/.genetrust",
	Usage:   "directory holding config.toml and the local token",
	EnvVars: []string{"GENETRUST_REPO"},
}

// TokenFlag is shared by every client command.
var TokenFlag = &cli.StringFlag{
	Name:    "token",
	Usage:   "api token, defaults to the token the daemon wrote into the repo",
	EnvVars: []string{"GENETRUST_API_TOKEN"},
}

func NewGeneTrustClient(cctx *cli.Context) (api.GeneTrust, jsonrpc.ClientCloser, error) {
	addr, err := DialArgs(cctx.String("listen"))
	if err != nil {
		return nil, nil, err
	}
	return api.NewGeneTrustRPC(cctx.Context, addr, clientToken(cctx))
}

func clientToken(cctx *cli.Context) string {
	if token := cctx.String("token"); token != "" {
		return token
	}
	return repoToken(cctx.String("repo"))
}

// repoToken reads the local token of a daemon on this host, empty when there is none.
func repoToken(repo string) string {
	repoPath, err := homedir.Expand(repo)
	if err != nil {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(repoPath, utils.TokenFile))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func DialArgs(addr string) (string, error) {
	ma, err := multiaddr.NewMultiaddr(addr)
	if err == nil {
		_, addr, err := manet.DialArgs(ma)
		if err != nil {
			return "", err
		}

		return "ws://" + addr + "/rpc/v0", nil
	}

	_, err = url.Parse(addr)
	if err != nil {
		return "", err
	}
	return addr + "/rpc/v0", nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, " ", "\t")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
