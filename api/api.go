package api

import (
	"context"

	"github.com/google/uuid"

	"github.com/genetrust/genetrust-gateway/types"
	"github.com/genetrust/genetrust-gateway/walletevent"
)

// Namespace of every method on the gateway endpoint.
const Namespace = "GeneTrust"

type IWalletAPI interface {
	WalletProviders(ctx context.Context) ([]types.ProviderInfo, error)
	WalletState(ctx context.Context) (*types.ManagerState, error)
	WalletConnect(ctx context.Context, provider types.ProviderID) (string, error)
	WalletDisconnect(ctx context.Context) error
	WalletSignMessage(ctx context.Context, message string) (*types.Signature, error)
	WalletSendTransaction(ctx context.Context, tx *types.TxRequest) (*types.TxResult, error)
	// WalletStateUpdates streams the composite state, starting with the current one.
	WalletStateUpdates(ctx context.Context) (<-chan types.ManagerState, error)
	ListWalletConnections(ctx context.Context) ([]*types.WalletAppDetail, error)
}

type IContractAPI interface {
	ContractInitialize(ctx context.Context, params *types.InitParams) error
	ContractStatus(ctx context.Context) (*types.ContractStatus, error)
	CreateVaultDataset(ctx context.Context, params *types.CreateDatasetParams) (*types.Dataset, error)
	ListMyDatasets(ctx context.Context) ([]*types.Dataset, error)
	GetDataset(ctx context.Context, dataID uint64) (*types.Dataset, error)
	CreateListing(ctx context.Context, params *types.CreateListingParams) (*types.Listing, error)
	ListMarketplace(ctx context.Context, params *types.ListMarketplaceParams) ([]*types.Listing, error)
	GetListing(ctx context.Context, listingID uint64) (*types.Listing, error)
	PurchaseListing(ctx context.Context, params *types.PurchaseParams) (*types.PurchaseReceipt, error)
	CancelListing(ctx context.Context, listingID uint64) error
}

type IConsentAPI interface {
	ConsentGet(ctx context.Context) (*types.AnalyticsConsent, error)
	ConsentSet(ctx context.Context, consent *types.AnalyticsConsent) error
}

type GeneTrust interface {
	walletevent.IWalletEventAPI
	IWalletAPI
	IContractAPI
	IConsentAPI

	Version(ctx context.Context) (string, error)
}

// GeneTrustStruct is both the permission checked server wrapper and the rpc client.
type GeneTrustStruct struct {
	Internal struct {
		ListenWalletEvent   func(ctx context.Context, policy *walletevent.WalletRegisterPolicy) (<-chan *types.RequestEvent, error) `perm:"write"`
		ResponseWalletEvent func(ctx context.Context, resp *types.ResponseEvent) error                                             `perm:"write"`
		PushWalletEvent     func(ctx context.Context, channelID uuid.UUID, event *types.WalletEvent) error                         `perm:"write"`

		WalletProviders       func(ctx context.Context) ([]types.ProviderInfo, error)                     `perm:"read"`
		WalletState           func(ctx context.Context) (*types.ManagerState, error)                      `perm:"read"`
		WalletConnect         func(ctx context.Context, provider types.ProviderID) (string, error)        `perm:"write"`
		WalletDisconnect      func(ctx context.Context) error                                             `perm:"write"`
		WalletSignMessage     func(ctx context.Context, message string) (*types.Signature, error)         `perm:"sign"`
		WalletSendTransaction func(ctx context.Context, tx *types.TxRequest) (*types.TxResult, error)     `perm:"sign"`
		WalletStateUpdates    func(ctx context.Context) (<-chan types.ManagerState, error)                `perm:"read"`
		ListWalletConnections func(ctx context.Context) ([]*types.WalletAppDetail, error)                 `perm:"admin"`

		ContractInitialize func(ctx context.Context, params *types.InitParams) error                                     `perm:"write"`
		ContractStatus     func(ctx context.Context) (*types.ContractStatus, error)                                     `perm:"read"`
		CreateVaultDataset func(ctx context.Context, params *types.CreateDatasetParams) (*types.Dataset, error)          `perm:"sign"`
		ListMyDatasets     func(ctx context.Context) ([]*types.Dataset, error)                                          `perm:"read"`
		GetDataset         func(ctx context.Context, dataID uint64) (*types.Dataset, error)                             `perm:"read"`
		CreateListing      func(ctx context.Context, params *types.CreateListingParams) (*types.Listing, error)         `perm:"sign"`
		ListMarketplace    func(ctx context.Context, params *types.ListMarketplaceParams) ([]*types.Listing, error)     `perm:"read"`
		GetListing         func(ctx context.Context, listingID uint64) (*types.Listing, error)                          `perm:"read"`
		PurchaseListing    func(ctx context.Context, params *types.PurchaseParams) (*types.PurchaseReceipt, error)      `perm:"sign"`
		CancelListing      func(ctx context.Context, listingID uint64) error                                            `perm:"sign"`

		ConsentGet func(ctx context.Context) (*types.AnalyticsConsent, error)     `perm:"read"`
		ConsentSet func(ctx context.Context, consent *types.AnalyticsConsent) error `perm:"write"`

		Version func(ctx context.Context) (string, error) `perm:"read"`
	}
}

var _ GeneTrust = (*GeneTrustStruct)(nil)

func (s *GeneTrustStruct) ListenWalletEvent(ctx context.Context, policy *walletevent.WalletRegisterPolicy) (<-chan *types.RequestEvent, error) {
	return s.Internal.ListenWalletEvent(ctx, policy)
}

func (s *GeneTrustStruct) ResponseWalletEvent(ctx context.Context, resp *types.ResponseEvent) error {
	return s.Internal.ResponseWalletEvent(ctx, resp)
}

func (s *GeneTrustStruct) PushWalletEvent(ctx context.Context, channelID uuid.UUID, event *types.WalletEvent) error {
	return s.Internal.PushWalletEvent(ctx, channelID, event)
}

func (s *GeneTrustStruct) WalletProviders(ctx context.Context) ([]types.ProviderInfo, error) {
	return s.Internal.WalletProviders(ctx)
}

func (s *GeneTrustStruct) WalletState(ctx context.Context) (*types.ManagerState, error) {
	return s.Internal.WalletState(ctx)
}

func (s *GeneTrustStruct) WalletConnect(ctx context.Context, provider types.ProviderID) (string, error) {
	return s.Internal.WalletConnect(ctx, provider)
}

func (s *GeneTrustStruct) WalletDisconnect(ctx context.Context) error {
	return s.Internal.WalletDisconnect(ctx)
}

func (s *GeneTrustStruct) WalletSignMessage(ctx context.Context, message string) (*types.Signature, error) {
	return s.Internal.WalletSignMessage(ctx, message)
}

func (s *GeneTrustStruct) WalletSendTransaction(ctx context.Context, tx *types.TxRequest) (*types.TxResult, error) {
	return s.Internal.WalletSendTransaction(ctx, tx)
}

func (s *GeneTrustStruct) WalletStateUpdates(ctx context.Context) (<-chan types.ManagerState, error) {
	return s.Internal.WalletStateUpdates(ctx)
}

func (s *GeneTrustStruct) ListWalletConnections(ctx context.Context) ([]*types.WalletAppDetail, error) {
	return s.Internal.ListWalletConnections(ctx)
}

func (s *GeneTrustStruct) ContractInitialize(ctx context.Context, params *types.InitParams) error {
	return s.Internal.ContractInitialize(ctx, params)
}

func (s *GeneTrustStruct) ContractStatus(ctx context.Context) (*types.ContractStatus, error) {
	return s.Internal.ContractStatus(ctx)
}

func (s *GeneTrustStruct) CreateVaultDataset(ctx context.Context, params *types.CreateDatasetParams) (*types.Dataset, error) {
	return s.Internal.CreateVaultDataset(ctx, params)
}

func (s *GeneTrustStruct) ListMyDatasets(ctx context.Context) ([]*types.Dataset, error) {
	return s.Internal.ListMyDatasets(ctx)
}

func (s *GeneTrustStruct) GetDataset(ctx context.Context, dataID uint64) (*types.Dataset, error) {
	return s.Internal.GetDataset(ctx, dataID)
}

func (s *GeneTrustStruct) CreateListing(ctx context.Context, params *types.CreateListingParams) (*types.Listing, error) {
	return s.Internal.CreateListing(ctx, params)
}

func (s *GeneTrustStruct) ListMarketplace(ctx context.Context, params *types.ListMarketplaceParams) ([]*types.Listing, error) {
	return s.Internal.ListMarketplace(ctx, params)
}

func (s *GeneTrustStruct) GetListing(ctx context.Context, listingID uint64) (*types.Listing, error) {
	return s.Internal.GetListing(ctx, listingID)
}

func (s *GeneTrustStruct) PurchaseListing(ctx context.Context, params *types.PurchaseParams) (*types.PurchaseReceipt, error) {
	return s.Internal.PurchaseListing(ctx, params)
}

func (s *GeneTrustStruct) CancelListing(ctx context.Context, listingID uint64) error {
	return s.Internal.CancelListing(ctx, listingID)
}

func (s *GeneTrustStruct) ConsentGet(ctx context.Context) (*types.AnalyticsConsent, error) {
	return s.Internal.ConsentGet(ctx)
}

func (s *GeneTrustStruct) ConsentSet(ctx context.Context, consent *types.AnalyticsConsent) error {
	return s.Internal.ConsentSet(ctx, consent)
}

func (s *GeneTrustStruct) Version(ctx context.Context) (string, error) {
	return s.Internal.Version(ctx)
}
