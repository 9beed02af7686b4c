package contract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/genetrust/genetrust-gateway/apperr"
	"github.com/genetrust/genetrust-gateway/types"
)

var _ Backend = (*MockBackend)(nil)

// Demo records seeded by the first Initialize of a mock backend.
const (
	SeedDatasetBasic    uint64 = 1001
	SeedDatasetClinical uint64 = 1002
	SeedListingFull     uint64 = 2001
	SeedListingBasic    uint64 = 2002
)

// MockBackend keeps datasets and listings in memory.
type MockBackend struct {
	network string
	ids     idGen

	lk       sync.Mutex
	seeded   bool
	datasets []*types.Dataset
	listings []*types.Listing
}

func NewMockBackend(network string) *MockBackend {
	return &MockBackend{network: network}
}

func (m *MockBackend) Mode() types.ContractMode {
	return types.ModeMock
}

func (m *MockBackend) Network() string {
	return m.network
}

func (m *MockBackend) Contracts() []string {
	return []string{}
}

// Initialize seeds the demo data once; later calls leave the store untouched.
func (m *MockBackend) Initialize(ctx context.Context, wallet string) error {
	m.lk.Lock()
	defer m.lk.Unlock()
	if m.seeded {
		return nil
	}
	m.seeded = true

	now := time.Now()
	m.datasets = append([]*types.Dataset{
		{
			ID:           SeedDatasetBasic,
			Owner:        wallet,
			Description:  "Whole genome sequencing, 30x coverage",
			AccessLevels: []int{types.AccessLevelBasic, types.AccessLevelDetailed, types.AccessLevelFull},
			StorageURL:   "ipfs://bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi",
			Stats:        types.DatasetStats{Variants: 4_500_000, Genes: 20_000},
			CreatedAt:    now.Add(-48 * time.Hour),
		},
		{
			ID:           SeedDatasetClinical,
			Owner:        wallet,
			Description:  "Clinical exome panel",
			AccessLevels: []int{types.AccessLevelBasic},
			Stats:        types.DatasetStats{Variants: 25_000, Genes: 4_800},
			CreatedAt:    now.Add(-24 * time.Hour),
		},
	}, m.datasets...)
	m.listings = append(m.listings,
		&types.Listing{
			ListingID:   SeedListingFull,
			DataID:      SeedDatasetBasic,
			Owner:       wallet,
			Price:       types.DefaultListingPrice,
			AccessLevel: types.AccessLevelFull,
			Description: "Full access to whole genome data",
			Active:      true,
			CreatedAt:   now.Add(-48 * time.Hour),
		},
		&types.Listing{
			ListingID:   SeedListingBasic,
			DataID:      SeedDatasetClinical,
			Owner:       wallet,
			Price:       250_000,
			AccessLevel: types.AccessLevelBasic,
			Description: "Summary statistics of the exome panel",
			Active:      true,
			CreatedAt:   now.Add(-24 * time.Hour),
		},
	)
	log.Infow("seeded mock marketplace", "datasets", len(m.datasets), "listings", len(m.listings))
	return nil
}

func (m *MockBackend) CreateVaultDataset(ctx context.Context, owner string, params *types.CreateDatasetParams) (*types.Dataset, error) {
	dataset := &types.Dataset{
		ID:           m.ids.next(),
		Owner:        owner,
		Description:  params.Description,
		AccessLevels: append([]int(nil), params.AccessLevels...),
		StorageURL:   params.StorageURL,
		Stats:        params.Stats,
		CreatedAt:    time.Now(),
	}

	m.lk.Lock()
	m.datasets = append([]*types.Dataset{dataset}, m.datasets...)
	m.lk.Unlock()
	return cloneDataset(dataset), nil
}

func (m *MockBackend) CreateListing(ctx context.Context, owner string, params *types.CreateListingParams) (*types.Listing, error) {
	listing := &types.Listing{
		ListingID:   m.ids.next(),
		DataID:      params.DataID,
		Owner:       owner,
		Price:       params.Price,
		AccessLevel: params.AccessLevel,
		Description: params.Description,
		Active:      true,
		CreatedAt:   time.Now(),
	}

	m.lk.Lock()
	m.listings = append(m.listings, listing)
	m.lk.Unlock()
	return cloneListing(listing), nil
}

// PurchaseListing checks existence, then activity, then the access level. A purchase leaves the
// listing active.
func (m *MockBackend) PurchaseListing(ctx context.Context, buyer string, params *types.PurchaseParams) (*types.PurchaseReceipt, error) {
	m.lk.Lock()
	listing := m.findListingLocked(params.ListingID)
	var cp types.Listing
	if listing != nil {
		cp = *listing
	}
	m.lk.Unlock()

	switch {
	case listing == nil:
		return nil, apperr.NewContractError(404, "Listing not found").WithContext("listingId", params.ListingID)
	case !cp.Active:
		return nil, apperr.NewContractError(409, "Listing not active").WithContext("listingId", params.ListingID)
	case params.DesiredAccessLevel > cp.AccessLevel:
		return nil, apperr.NewContractError(403, "Access level not available").
			WithContext("listingId", params.ListingID).
			WithContext("accessLevel", cp.AccessLevel)
	}

	now := time.Now()
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d/%s/%d", params.ListingID, buyer, now.UnixNano())))
	return &types.PurchaseReceipt{
		ListingID:   params.ListingID,
		Buyer:       buyer,
		AccessLevel: params.DesiredAccessLevel,
		Price:       cp.Price,
		TxID:        "0x" + hex.EncodeToString(sum[:]),
		Success:     true,
		PurchasedAt: now,
	}, nil
}

func (m *MockBackend) CancelListing(ctx context.Context, owner string, listingID uint64) error {
	m.lk.Lock()
	defer m.lk.Unlock()

	listing := m.findListingLocked(listingID)
	if listing == nil {
		return apperr.NewContractError(404, "Listing not found").WithContext("listingId", listingID)
	}
	if listing.Owner != owner {
		return apperr.NewContractError(401, "Only the owner can cancel a listing").WithContext("listingId", listingID)
	}
	listing.Active = false
	return nil
}

func (m *MockBackend) GetListing(ctx context.Context, caller string, listingID uint64) (*types.Listing, error) {
	m.lk.Lock()
	defer m.lk.Unlock()
	if listing := m.findListingLocked(listingID); listing != nil {
		return cloneListing(listing), nil
	}
	return nil, nil
}

func (m *MockBackend) GetDataset(ctx context.Context, caller string, dataID uint64) (*types.Dataset, error) {
	m.lk.Lock()
	defer m.lk.Unlock()
	for _, d := range m.datasets {
		if d.ID == dataID {
			return cloneDataset(d), nil
		}
	}
	return nil, nil
}

func (m *MockBackend) Datasets() []*types.Dataset {
	m.lk.Lock()
	defer m.lk.Unlock()
	out := make([]*types.Dataset, 0, len(m.datasets))
	for _, d := range m.datasets {
		out = append(out, cloneDataset(d))
	}
	return out
}

func (m *MockBackend) Listings() []*types.Listing {
	m.lk.Lock()
	defer m.lk.Unlock()
	out := make([]*types.Listing, 0, len(m.listings))
	for _, l := range m.listings {
		out = append(out, cloneListing(l))
	}
	return out
}

func (m *MockBackend) findListingLocked(id uint64) *types.Listing {
	for _, l := range m.listings {
		if l.ListingID == id {
			return l
		}
	}
	return nil
}
