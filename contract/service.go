// Package contract is the marketplace facade: dataset registration, listings and purchases
// against either an in-memory store or the deployed contracts.
package contract

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"

	"github.com/genetrust/genetrust-gateway/apperr"
	"github.com/genetrust/genetrust-gateway/metrics"
	"github.com/genetrust/genetrust-gateway/processing"
	"github.com/genetrust/genetrust-gateway/types"
	"github.com/genetrust/genetrust-gateway/validator"
)

var log = logging.Logger("contract")

// string-utf8 256 on chain
const maxTextLength = 256

type Service struct {
	backend   Backend
	validator validator.IAddressValidator
	optimizer *processing.Optimizer

	lk          sync.RWMutex
	initialized bool
	wallet      string
}

func NewService(backend Backend, addrValidator validator.IAddressValidator, optimizer *processing.Optimizer) *Service {
	if optimizer == nil {
		optimizer = processing.NewOptimizer(0, 0)
	}
	return &Service{backend: backend, validator: addrValidator, optimizer: optimizer}
}

func (s *Service) Mode() types.ContractMode {
	return s.backend.Mode()
}

// Initialize must run before any other call. Calling it again switches the wallet; the
// backend's one time setup is not repeated, so in mock mode the seed datasets stay owned by
// the first wallet initialized.
func (s *Service) Initialize(ctx context.Context, params *types.InitParams) (err error) {
	defer s.record(ctx, "initialize", time.Now(), &err)

	if params == nil {
		return apperr.InvalidInput("init params are required")
	}
	if err := s.validator.Validate(ctx, params.WalletAddress); err != nil {
		return err
	}
	if err := s.backend.Initialize(ctx, params.WalletAddress); err != nil {
		return apperr.WrapContractError(err)
	}

	s.lk.Lock()
	s.initialized = true
	s.wallet = params.WalletAddress
	s.lk.Unlock()
	log.Infow("contract service initialized", "mode", s.backend.Mode(), "wallet", params.WalletAddress)
	return nil
}

func (s *Service) walletAddress() (string, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	if !s.initialized {
		return "", apperr.ErrNotInitialized
	}
	return s.wallet, nil
}

func (s *Service) CreateVaultDataset(ctx context.Context, params *types.CreateDatasetParams) (dataset *types.Dataset, err error) {
	defer s.record(ctx, "create_vault_dataset", time.Now(), &err)

	owner, err := s.walletAddress()
	if err != nil {
		return nil, err
	}
	if params == nil {
		return nil, apperr.InvalidInput("dataset params are required")
	}
	p := *params
	if utf8.RuneCountInString(p.Description) > maxTextLength {
		return nil, apperr.InvalidInput("description exceeds %d characters", maxTextLength)
	}
	if err := validateStorageURL(p.StorageURL); err != nil {
		return nil, err
	}
	if len(p.AccessLevels) == 0 {
		p.AccessLevels = []int{types.AccessLevelBasic, types.AccessLevelDetailed, types.AccessLevelFull}
	}
	for _, level := range p.AccessLevels {
		if err := checkAccessLevel(level); err != nil {
			return nil, err
		}
	}
	if p.Price == 0 {
		p.Price = types.DefaultListingPrice
	}
	if p.Stats == (types.DatasetStats{}) && len(p.Records) > 0 {
		p.Stats, err = processing.ComputeGenomicStats(ctx, s.optimizer, p.Records)
		if err != nil {
			return nil, err
		}
	}
	p.Records = nil

	dataset, err = s.backend.CreateVaultDataset(ctx, owner, &p)
	if err != nil {
		return nil, apperr.WrapContractError(err)
	}
	log.Infow("dataset created", "id", dataset.ID, "owner", owner, "tx", dataset.TxID)
	return dataset, nil
}

// CreateListing fills in the default price and access level for zero values. Other levels
// must be within 1..3.
func (s *Service) CreateListing(ctx context.Context, params *types.CreateListingParams) (listing *types.Listing, err error) {
	defer s.record(ctx, "create_listing", time.Now(), &err)

	owner, err := s.walletAddress()
	if err != nil {
		return nil, err
	}
	if params == nil {
		return nil, apperr.InvalidInput("listing params are required")
	}
	p := *params
	if p.Price == 0 {
		p.Price = types.DefaultListingPrice
	}
	if p.AccessLevel == 0 {
		p.AccessLevel = types.AccessLevelFull
	}
	if err := checkAccessLevel(p.AccessLevel); err != nil {
		return nil, err
	}

	listing, err = s.backend.CreateListing(ctx, owner, &p)
	if err != nil {
		return nil, apperr.WrapContractError(err)
	}
	log.Infow("listing created", "id", listing.ListingID, "data", listing.DataID, "price", listing.Price, "tx", listing.TxID)
	return listing, nil
}

// PurchaseListing buys the basic level when no level is given.
func (s *Service) PurchaseListing(ctx context.Context, params *types.PurchaseParams) (receipt *types.PurchaseReceipt, err error) {
	defer s.record(ctx, "purchase_listing", time.Now(), &err)

	buyer, err := s.walletAddress()
	if err != nil {
		return nil, err
	}
	if params == nil {
		return nil, apperr.InvalidInput("purchase params are required")
	}
	p := *params
	if p.DesiredAccessLevel == 0 {
		p.DesiredAccessLevel = types.AccessLevelBasic
	}
	if err := checkAccessLevel(p.DesiredAccessLevel); err != nil {
		return nil, err
	}
	params = &p

	receipt, err = s.backend.PurchaseListing(ctx, buyer, params)
	if err != nil {
		return nil, apperr.WrapContractError(err)
	}
	log.Infow("listing purchased", "id", params.ListingID, "buyer", buyer, "level", params.DesiredAccessLevel, "tx", receipt.TxID)
	return receipt, nil
}

// CancelListing deactivates a listing of the wallet.
func (s *Service) CancelListing(ctx context.Context, listingID uint64) (err error) {
	defer s.record(ctx, "cancel_listing", time.Now(), &err)

	owner, err := s.walletAddress()
	if err != nil {
		return err
	}
	return apperr.WrapContractError(s.backend.CancelListing(ctx, owner, listingID))
}

// ListMyDatasets returns the datasets owned by the initialized wallet, newest first.
func (s *Service) ListMyDatasets(ctx context.Context) ([]*types.Dataset, error) {
	owner, err := s.walletAddress()
	if err != nil {
		return nil, err
	}
	out := []*types.Dataset{}
	for _, d := range s.backend.Datasets() {
		if d.Owner == owner {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Service) ListMarketplace(ctx context.Context, params *types.ListMarketplaceParams) ([]*types.Listing, error) {
	owner, err := s.walletAddress()
	if err != nil {
		return nil, err
	}
	listings := s.backend.Listings()
	if params == nil || !params.OwnerOnly {
		return listings, nil
	}
	out := []*types.Listing{}
	for _, l := range listings {
		if l.Owner == owner {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *Service) GetListing(ctx context.Context, listingID uint64) (listing *types.Listing, err error) {
	defer s.record(ctx, "get_listing", time.Now(), &err)

	caller, err := s.walletAddress()
	if err != nil {
		return nil, err
	}
	listing, err = s.backend.GetListing(ctx, caller, listingID)
	if err != nil {
		return nil, apperr.WrapContractError(err)
	}
	if listing == nil {
		return nil, apperr.NewContractError(404, "Listing not found").WithContext("listingId", listingID)
	}
	return listing, nil
}

func (s *Service) GetDataset(ctx context.Context, dataID uint64) (dataset *types.Dataset, err error) {
	defer s.record(ctx, "get_dataset", time.Now(), &err)

	caller, err := s.walletAddress()
	if err != nil {
		return nil, err
	}
	dataset, err = s.backend.GetDataset(ctx, caller, dataID)
	if err != nil {
		return nil, apperr.WrapContractError(err)
	}
	if dataset == nil {
		return nil, apperr.NewContractError(404, "Dataset not found").WithContext("dataId", dataID)
	}
	return dataset, nil
}

func checkAccessLevel(level int) error {
	if level < types.AccessLevelBasic || level > types.AccessLevelFull {
		return apperr.InvalidInput("access level %d is not within %d..%d", level, types.AccessLevelBasic, types.AccessLevelFull)
	}
	return nil
}

// GetStatus works before Initialize too.
func (s *Service) GetStatus(ctx context.Context) (*types.ContractStatus, error) {
	s.lk.RLock()
	initialized, wallet := s.initialized, s.wallet
	s.lk.RUnlock()

	return &types.ContractStatus{
		Mode:          s.backend.Mode(),
		Initialized:   initialized,
		WalletAddress: wallet,
		Network:       s.backend.Network(),
		Contracts:     s.backend.Contracts(),
		DatasetCount:  len(s.backend.Datasets()),
		ListingCount:  len(s.backend.Listings()),
	}, nil
}

func (s *Service) record(ctx context.Context, method string, start time.Time, err *error) {
	ctx, _ = tag.New(ctx, tag.Upsert(metrics.MethodKey, method), tag.Upsert(metrics.ModeKey, string(s.backend.Mode())))
	stats.Record(ctx, metrics.ContractCall.M(metrics.SinceInMilliseconds(start)))
	if *err != nil {
		stats.Record(ctx, metrics.ContractFailed.M(1))
		apperr.Report(*err)
	}
}

// validateStorageURL accepts empty, http(s) and ipfs://<cid>[/path] urls.
func validateStorageURL(raw string) error {
	switch {
	case raw == "":
		return nil
	case utf8.RuneCountInString(raw) > maxTextLength:
		return apperr.InvalidInput("storage url exceeds %d characters", maxTextLength)
	case strings.HasPrefix(raw, "ipfs://"):
		c, _, _ := strings.Cut(strings.TrimPrefix(raw, "ipfs://"), "/")
		if _, err := cid.Decode(c); err != nil {
			return apperr.InvalidInput("invalid ipfs cid %q", c).WithCause(err)
		}
		return nil
	case strings.HasPrefix(raw, "https://"), strings.HasPrefix(raw, "http://"):
		return nil
	}
	return apperr.InvalidInput("unsupported storage url %q", raw)
}
