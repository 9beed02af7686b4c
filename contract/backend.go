package contract

import (
	"context"
	"sync"
	"time"

	"github.com/genetrust/genetrust-gateway/genetrust"
	"github.com/genetrust/genetrust-gateway/types"
)

// Backend is one way of reaching the marketplace. The Service picks one at construction and
// never branches on the mode afterwards.
type Backend interface {
	Mode() types.ContractMode
	Network() string
	Contracts() []string

	// Initialize runs once per wallet address, after the address was validated.
	Initialize(ctx context.Context, wallet string) error
	CreateVaultDataset(ctx context.Context, owner string, params *types.CreateDatasetParams) (*types.Dataset, error)
	CreateListing(ctx context.Context, owner string, params *types.CreateListingParams) (*types.Listing, error)
	PurchaseListing(ctx context.Context, buyer string, params *types.PurchaseParams) (*types.PurchaseReceipt, error)
	CancelListing(ctx context.Context, owner string, listingID uint64) error
	GetListing(ctx context.Context, caller string, listingID uint64) (*types.Listing, error)
	GetDataset(ctx context.Context, caller string, dataID uint64) (*types.Dataset, error)

	// Datasets and Listings return what the session knows about, newest dataset first.
	Datasets() []*types.Dataset
	Listings() []*types.Listing
}

// NewBackend selects the backend for the configured mode. client is only used in real mode.
func NewBackend(useRealSDK bool, network string, client *genetrust.Client) Backend {
	if useRealSDK {
		return NewRealBackend(client)
	}
	return NewMockBackend(network)
}

// idGen hands out millisecond timestamps, bumped so that two ids never collide.
type idGen struct {
	lk   sync.Mutex
	last uint64
}

func (g *idGen) next() uint64 {
	g.lk.Lock()
	defer g.lk.Unlock()
	id := uint64(time.Now().UnixMilli())
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return id
}

func cloneDataset(d *types.Dataset) *types.Dataset {
	cp := *d
	cp.AccessLevels = append([]int(nil), d.AccessLevels...)
	return &cp
}

func cloneListing(l *types.Listing) *types.Listing {
	cp := *l
	return &cp
}

func maxLevel(levels []int) int {
	level := 0
	for _, l := range levels {
		if l > level {
			level = l
		}
	}
	return level
}
