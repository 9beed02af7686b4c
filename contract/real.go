package contract

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/genetrust/genetrust-gateway/apperr"
	"github.com/genetrust/genetrust-gateway/genetrust"
	"github.com/genetrust/genetrust-gateway/types"
)

var _ Backend = (*RealBackend)(nil)

// RealBackend sends wallet signed calls through the genetrust client. The chain cannot be
// enumerated cheaply, so the lists only hold what this session created.
type RealBackend struct {
	client *genetrust.Client
	ids    idGen
	// read-only queries are idempotent, node outages on them are retried
	readRetry apperr.RetryPolicy

	lk       sync.Mutex
	datasets []*types.Dataset
	listings []*types.Listing
	metaHash map[uint64][32]byte
}

func NewRealBackend(client *genetrust.Client) *RealBackend {
	if client == nil {
		panic("real contract backend requires a genetrust client")
	}
	return &RealBackend{
		client:    client,
		readRetry: apperr.DefaultRetryPolicy(),
		metaHash:  make(map[uint64][32]byte),
	}
}

func (r *RealBackend) Mode() types.ContractMode {
	return types.ModeReal
}

func (r *RealBackend) Network() string {
	return r.client.Network()
}

func (r *RealBackend) Contracts() []string {
	return r.client.Contracts()
}

// Initialize only probes the node. An unreachable node is logged, calls may still succeed later.
func (r *RealBackend) Initialize(ctx context.Context, wallet string) error {
	tip, err := r.client.Ping(ctx)
	if err != nil {
		log.Warnw("stacks node not reachable", "err", err)
		return nil
	}
	log.Infow("connected to stacks node", "tip", tip, "wallet", wallet)
	return nil
}

func (r *RealBackend) CreateVaultDataset(ctx context.Context, owner string, params *types.CreateDatasetParams) (*types.Dataset, error) {
	id := r.ids.next()
	hash := genetrust.MetadataHash(strconv.FormatUint(id, 10), params.Description, params.StorageURL)
	res, err := r.client.RegisterDataset(ctx, owner, genetrust.RegisterDatasetParams{
		DataID:       id,
		Price:        params.Price,
		AccessLevel:  maxLevel(params.AccessLevels),
		MetadataHash: hash,
		StorageURL:   params.StorageURL,
		Description:  params.Description,
	})
	if err != nil {
		return nil, err
	}

	dataset := &types.Dataset{
		ID:           id,
		Owner:        owner,
		Description:  params.Description,
		AccessLevels: append([]int(nil), params.AccessLevels...),
		StorageURL:   params.StorageURL,
		Stats:        params.Stats,
		CreatedAt:    time.Now(),
		TxID:         res.TxID,
	}
	r.lk.Lock()
	r.datasets = append([]*types.Dataset{dataset}, r.datasets...)
	r.metaHash[id] = hash
	r.lk.Unlock()
	return cloneDataset(dataset), nil
}

func (r *RealBackend) CreateListing(ctx context.Context, owner string, params *types.CreateListingParams) (*types.Listing, error) {
	id := r.ids.next()
	r.lk.Lock()
	hash, ok := r.metaHash[params.DataID]
	r.lk.Unlock()
	if !ok {
		hash = genetrust.MetadataHash(strconv.FormatUint(params.DataID, 10))
	}

	res, err := r.client.CreateMarketplaceListing(ctx, owner, genetrust.ListingParams{
		ListingID:    id,
		Price:        params.Price,
		DataID:       params.DataID,
		AccessLevel:  params.AccessLevel,
		MetadataHash: hash,
	})
	if err != nil {
		return nil, err
	}

	listing := &types.Listing{
		ListingID:   id,
		DataID:      params.DataID,
		Owner:       owner,
		Price:       params.Price,
		AccessLevel: params.AccessLevel,
		Description: params.Description,
		Active:      true,
		CreatedAt:   time.Now(),
		TxID:        res.TxID,
	}
	r.lk.Lock()
	r.listings = append(r.listings, listing)
	r.lk.Unlock()
	return cloneListing(listing), nil
}

// PurchaseListing leaves every check to the contract.
func (r *RealBackend) PurchaseListing(ctx context.Context, buyer string, params *types.PurchaseParams) (*types.PurchaseReceipt, error) {
	res, err := r.client.PurchaseGeneticData(ctx, buyer, params.ListingID, params.DesiredAccessLevel)
	if err != nil {
		return nil, err
	}

	receipt := &types.PurchaseReceipt{
		ListingID:   params.ListingID,
		Buyer:       buyer,
		AccessLevel: params.DesiredAccessLevel,
		TxID:        res.TxID,
		Success:     true,
		PurchasedAt: time.Now(),
	}
	r.lk.Lock()
	for _, l := range r.listings {
		if l.ListingID == params.ListingID {
			receipt.Price = l.Price
		}
	}
	r.lk.Unlock()
	return receipt, nil
}

func (r *RealBackend) CancelListing(ctx context.Context, owner string, listingID uint64) error {
	return apperr.NewContractError(400, "the marketplace contract has no cancel call").WithContext("listingId", listingID)
}

func (r *RealBackend) GetListing(ctx context.Context, caller string, listingID uint64) (listing *types.Listing, err error) {
	err = r.read(ctx, func(ctx context.Context) error {
		listing, err = r.client.GetListing(ctx, caller, listingID)
		return err
	})
	return listing, err
}

func (r *RealBackend) GetDataset(ctx context.Context, caller string, dataID uint64) (dataset *types.Dataset, err error) {
	err = r.read(ctx, func(ctx context.Context) error {
		dataset, err = r.client.GetDataset(ctx, caller, dataID)
		return err
	})
	return dataset, err
}

func (r *RealBackend) read(ctx context.Context, query func(ctx context.Context) error) error {
	return apperr.Retry(ctx, r.readRetry, func(ctx context.Context) error {
		return apperr.WrapContractError(query(ctx))
	})
}

func (r *RealBackend) Datasets() []*types.Dataset {
	r.lk.Lock()
	defer r.lk.Unlock()
	out := make([]*types.Dataset, 0, len(r.datasets))
	for _, d := range r.datasets {
		out = append(out, cloneDataset(d))
	}
	return out
}

func (r *RealBackend) Listings() []*types.Listing {
	r.lk.Lock()
	defer r.lk.Unlock()
	out := make([]*types.Listing, 0, len(r.listings))
	for _, l := range r.listings {
		out = append(out, cloneListing(l))
	}
	return out
}
