package api

import (
	"context"
	"net/http"

	"github.com/filecoin-project/go-jsonrpc"
)

// NewGeneTrustRPC dials a gateway endpoint such as ws://127.0.0.1:45132/rpc/v0.
func NewGeneTrustRPC(ctx context.Context, addr, token string) (GeneTrust, jsonrpc.ClientCloser, error) {
	headers := http.Header{}
	if token != "" {
		headers.Add("Authorization", "Bearer "+token)
	}

	var res GeneTrustStruct
	closer, err := jsonrpc.NewMergeClient(ctx, addr, Namespace, []interface{}{&res.Internal}, headers)
	if err != nil {
		return nil, nil, err
	}
	return &res, closer, nil
}
