// Package genetrust is the boundary toward the Stacks chain: wallet signed calls of the
// GeneTrust contracts and read-only queries against a node.
package genetrust

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
	"golang.org/x/time/rate"

	"github.com/genetrust/genetrust-gateway/metrics"
	"github.com/genetrust/genetrust-gateway/types"
)

var log = logging.Logger("genetrust")

// Contract functions, positional arguments documented on each call.
const (
	FnRegisterGeneticData = "register-genetic-data"
	FnCreateListing       = "create-listing"
	FnPurchaseListing     = "purchase-listing-direct"
	FnGetListing          = "get-listing"
	FnGetDatasetDetails   = "get-dataset-details"
)

const (
	NetworkTestnet = "testnet"
	NetworkMainnet = "mainnet"
)

var ErrNodeUnavailable = errors.New("stacks node unavailable")

type Config struct {
	Network          string
	NodeURL          string
	ContractAddress  string
	DataContract     string
	MarketContract   string
	RequestPerSecond float64
	RequestBurst     int
	Timeout          time.Duration
}

// Signer signs and broadcasts a contract call, normally the wallet manager.
type Signer interface {
	SendTransaction(ctx context.Context, tx *types.TxRequest) (*types.TxResult, error)
}

// CallError is a contract level failure: an (err uN) result, a rejected call or a node
// that could not serve it.
type CallError struct {
	Function string
	Code     int
	Cause    string
	Err      error
}

func (e *CallError) Error() string {
	if e.Cause != "" {
		return fmt.Sprintf("contract call %s failed: %s", e.Function, e.Cause)
	}
	return fmt.Sprintf("contract call %s failed with code u%d", e.Function, e.Code)
}

func (e *CallError) ErrorCode() int {
	return e.Code
}

func (e *CallError) Unwrap() error {
	return e.Err
}

func nodeUnavailable(url string, err error) *CallError {
	return &CallError{Function: url, Code: 503, Cause: fmt.Sprintf("%v: %v", ErrNodeUnavailable, err), Err: ErrNodeUnavailable}
}

type Client struct {
	cfg     Config
	signer  Signer
	http    *http.Client
	limiter *rate.Limiter
}

func NewClient(cfg Config, signer Signer) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestPerSecond > 0 {
		limit = rate.Limit(cfg.RequestPerSecond)
	}
	burst := cfg.RequestBurst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		cfg:     cfg,
		signer:  signer,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (c *Client) Network() string {
	return c.cfg.Network
}

// Contracts returns the fully qualified ids of the contracts in use.
func (c *Client) Contracts() []string {
	return []string{
		c.cfg.ContractAddress + "." + c.cfg.DataContract,
		c.cfg.ContractAddress + "." + c.cfg.MarketContract,
	}
}

// MetadataHash is the buff 32 stored next to a dataset or listing.
func MetadataHash(parts ...string) [32]byte {
	return sha256.Sum256([]byte(strings.Join(parts, "\x00")))
}

type RegisterDatasetParams struct {
	DataID       uint64
	Price        uint64
	AccessLevel  int
	MetadataHash [32]byte
	StorageURL   string
	Description  string
}

// RegisterDataset calls register-genetic-data
// (data-id uint) (price uint) (access-level uint) (metadata-hash (buff 32)) (storage-url (string-utf8 256)) (description (string-utf8 256)).
func (c *Client) RegisterDataset(ctx context.Context, sender string, p RegisterDatasetParams) (*types.TxResult, error) {
	level, err := accessLevel(p.AccessLevel)
	if err != nil {
		return nil, err
	}
	return c.call(ctx, sender, c.cfg.DataContract, FnRegisterGeneticData,
		UInt(p.DataID),
		UInt(p.Price),
		level,
		Buffer(p.MetadataHash[:]),
		StringUTF8(p.StorageURL),
		StringUTF8(p.Description),
	)
}

type ListingParams struct {
	ListingID            uint64
	Price                uint64
	DataID               uint64
	AccessLevel          int
	MetadataHash         [32]byte
	RequiresVerification bool
}

// CreateMarketplaceListing calls create-listing
// (listing-id uint) (price uint) (data-contract principal) (data-id uint) (access-level uint) (metadata-hash (buff 32)) (requires-verification bool).
func (c *Client) CreateMarketplaceListing(ctx context.Context, sender string, p ListingParams) (*types.TxResult, error) {
	level, err := accessLevel(p.AccessLevel)
	if err != nil {
		return nil, err
	}
	dataContract, err := Principal(c.cfg.ContractAddress + "." + c.cfg.DataContract)
	if err != nil {
		return nil, errors.Wrap(err, "data contract principal")
	}
	return c.call(ctx, sender, c.cfg.MarketContract, FnCreateListing,
		UInt(p.ListingID),
		UInt(p.Price),
		dataContract,
		UInt(p.DataID),
		level,
		Buffer(p.MetadataHash[:]),
		Bool(p.RequiresVerification),
	)
}

// PurchaseGeneticData calls purchase-listing-direct (listing-id uint) (desired-access-level uint).
func (c *Client) PurchaseGeneticData(ctx context.Context, sender string, listingID uint64, desired int) (*types.TxResult, error) {
	level, err := accessLevel(desired)
	if err != nil {
		return nil, err
	}
	return c.call(ctx, sender, c.cfg.MarketContract, FnPurchaseListing,
		UInt(listingID),
		level,
	)
}

// accessLevel encodes a level as uint, refusing values that would wrap.
func accessLevel(level int) (*Value, error) {
	if level < 0 {
		return nil, &CallError{Function: "access-level", Code: 400, Cause: fmt.Sprintf("negative access level %d", level)}
	}
	return UInt(uint64(level)), nil
}

func (c *Client) call(ctx context.Context, sender, contract, fn string, args ...*Value) (*types.TxResult, error) {
	if c.signer == nil {
		return nil, fmt.Errorf("no signer configured for %s", fn)
	}
	hexArgs, err := encodeArgs(args)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s arguments", fn)
	}
	tx := &types.TxRequest{
		Sender:            sender,
		ContractAddress:   c.cfg.ContractAddress,
		ContractName:      contract,
		FunctionName:      fn,
		FunctionArgs:      hexArgs,
		Network:           c.cfg.Network,
		PostConditionMode: types.PostConditionAllow,
	}
	res, err := c.signer.SendTransaction(ctx, tx)
	if err != nil {
		return nil, err
	}
	log.Infow("contract call broadcast", "function", fn, "contract", contract, "txid", res.TxID)
	return res, nil
}

func encodeArgs(args []*Value) ([]string, error) {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		h, err := arg.Hex()
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

// GetListing calls get-listing (listing-id uint). A missing listing returns nil, nil.
func (c *Client) GetListing(ctx context.Context, sender string, listingID uint64) (*types.Listing, error) {
	v, err := c.readOnly(ctx, sender, c.cfg.MarketContract, FnGetListing, UInt(listingID))
	if err != nil || v == nil {
		return nil, err
	}
	listing := &types.Listing{ListingID: listingID}
	if f := v.Field("owner"); f != nil {
		listing.Owner = f.Str
	}
	if f := v.Field("price"); f != nil {
		listing.Price, _ = f.Uint64()
	}
	if f := v.Field("data-id"); f != nil {
		listing.DataID, _ = f.Uint64()
	}
	if f := v.Field("access-level"); f != nil {
		level, _ := f.Uint64()
		listing.AccessLevel = int(level)
	}
	if f := v.Field("active"); f != nil {
		listing.Active, _ = f.BoolValue()
	}
	if f := v.Field("description"); f != nil {
		listing.Description = f.Str
	}
	return listing, nil
}

// GetDataset calls get-dataset-details (data-id uint). A missing dataset returns nil, nil.
func (c *Client) GetDataset(ctx context.Context, sender string, dataID uint64) (*types.Dataset, error) {
	v, err := c.readOnly(ctx, sender, c.cfg.DataContract, FnGetDatasetDetails, UInt(dataID))
	if err != nil || v == nil {
		return nil, err
	}
	dataset := &types.Dataset{ID: dataID}
	if f := v.Field("owner"); f != nil {
		dataset.Owner = f.Str
	}
	if f := v.Field("description"); f != nil {
		dataset.Description = f.Str
	}
	if f := v.Field("storage-url"); f != nil {
		dataset.StorageURL = f.Str
	}
	if f := v.Field("access-level"); f != nil {
		level, _ := f.Uint64()
		for i := 1; i <= int(level); i++ {
			dataset.AccessLevels = append(dataset.AccessLevels, i)
		}
	}
	return dataset, nil
}

// readOnly returns the value inside the optional/response layers, nil for none.
func (c *Client) readOnly(ctx context.Context, sender, contract, fn string, args ...*Value) (*Value, error) {
	start := time.Now()
	defer func() {
		mctx, _ := tag.New(ctx, tag.Upsert(metrics.MethodKey, fn))
		stats.Record(mctx, metrics.NodeReadOnly.M(metrics.SinceInMilliseconds(start)))
	}()

	if sender == "" {
		sender = c.cfg.ContractAddress
	}
	hexArgs, err := encodeArgs(args)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s arguments", fn)
	}
	body, err := json.Marshal(map[string]interface{}{
		"sender":    sender,
		"arguments": hexArgs,
	})
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/v2/contracts/call-read/%s/%s/%s",
		strings.TrimRight(c.cfg.NodeURL, "/"), c.cfg.ContractAddress, contract, fn)
	resp, err := c.do(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}

	parsed := gjson.ParseBytes(resp)
	if !parsed.Get("okay").Bool() {
		return nil, &CallError{Function: fn, Code: 500, Cause: parsed.Get("cause").String()}
	}
	v, err := DecodeHex(parsed.Get("result").String())
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s result", fn)
	}
	for {
		switch v.Type {
		case TypeResponseErr:
			code, _ := v.Inner.Uint64()
			return nil, &CallError{Function: fn, Code: int(code)}
		case TypeOptionalNone:
			return nil, nil
		case TypeOptionalSome, TypeResponseOk:
			v = v.Inner
			continue
		}
		return v, nil
	}
}

// Ping checks the node is reachable and returns its tip height.
func (c *Client) Ping(ctx context.Context) (int64, error) {
	resp, err := c.do(ctx, http.MethodGet, strings.TrimRight(c.cfg.NodeURL, "/")+"/v2/info", nil)
	if err != nil {
		return 0, err
	}
	tip := gjson.GetBytes(resp, "stacks_tip_height")
	if !tip.Exists() {
		return 0, nodeUnavailable("/v2/info", errors.New("unexpected response"))
	}
	return tip.Int(), nil
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, nodeUnavailable(url, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &CallError{Function: url, Code: 429, Cause: "node rate limited"}
	case resp.StatusCode >= 500:
		return nil, &CallError{Function: url, Code: 503, Cause: fmt.Sprintf("node returned %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		return nil, &CallError{Function: url, Code: resp.StatusCode, Cause: fmt.Sprintf("node returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))}
	case resp.StatusCode != http.StatusOK:
		return nil, &CallError{Function: url, Code: 500, Cause: fmt.Sprintf("node returned %d", resp.StatusCode)}
	}
	return data, nil
}
