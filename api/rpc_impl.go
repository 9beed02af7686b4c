package api

import (
	"context"
	"time"

	"github.com/genetrust/genetrust-gateway/apperr"
	"github.com/genetrust/genetrust-gateway/contract"
	"github.com/genetrust/genetrust-gateway/store"
	"github.com/genetrust/genetrust-gateway/types"
	"github.com/genetrust/genetrust-gateway/version"
	"github.com/genetrust/genetrust-gateway/wallet"
	"github.com/genetrust/genetrust-gateway/walletevent"
)

var _ GeneTrust = (*GeneTrustAPIImpl)(nil)

type GeneTrustAPIImpl struct {
	walletevent.IWalletEventAPI
	we *walletevent.WalletEventStream

	manager   *wallet.Manager
	contracts *contract.Service
	sessions  *store.SessionStore
}

func NewGeneTrustAPIImpl(we *walletevent.WalletEventStream, manager *wallet.Manager, contracts *contract.Service, sessions *store.SessionStore) *GeneTrustAPIImpl {
	return &GeneTrustAPIImpl{
		IWalletEventAPI: walletevent.NewWalletEventAPI(we),
		we:              we,
		manager:         manager,
		contracts:       contracts,
		sessions:        sessions,
	}
}

func (g *GeneTrustAPIImpl) WalletProviders(ctx context.Context) ([]types.ProviderInfo, error) {
	return g.manager.Providers(), nil
}

func (g *GeneTrustAPIImpl) WalletState(ctx context.Context) (*types.ManagerState, error) {
	state := g.manager.GetState()
	return &state, nil
}

func (g *GeneTrustAPIImpl) WalletConnect(ctx context.Context, provider types.ProviderID) (string, error) {
	id, err := types.ParseProviderID(string(provider))
	if err != nil {
		return "", err
	}
	return g.manager.Connect(ctx, id)
}

func (g *GeneTrustAPIImpl) WalletDisconnect(ctx context.Context) error {
	return g.manager.Disconnect(ctx)
}

func (g *GeneTrustAPIImpl) WalletSignMessage(ctx context.Context, message string) (*types.Signature, error) {
	return g.manager.SignMessage(ctx, message)
}

func (g *GeneTrustAPIImpl) WalletSendTransaction(ctx context.Context, tx *types.TxRequest) (*types.TxResult, error) {
	return g.manager.SendTransaction(ctx, tx)
}

// WalletStateUpdates lives until the caller's connection goes away.
func (g *GeneTrustAPIImpl) WalletStateUpdates(ctx context.Context) (<-chan types.ManagerState, error) {
	return g.manager.Watch(ctx), nil
}

func (g *GeneTrustAPIImpl) ListWalletConnections(ctx context.Context) ([]*types.WalletAppDetail, error) {
	return g.we.ListWalletConnections(ctx)
}

func (g *GeneTrustAPIImpl) ContractInitialize(ctx context.Context, params *types.InitParams) error {
	return g.contracts.Initialize(ctx, params)
}

func (g *GeneTrustAPIImpl) ContractStatus(ctx context.Context) (*types.ContractStatus, error) {
	return g.contracts.GetStatus(ctx)
}

func (g *GeneTrustAPIImpl) CreateVaultDataset(ctx context.Context, params *types.CreateDatasetParams) (*types.Dataset, error) {
	return g.contracts.CreateVaultDataset(ctx, params)
}

func (g *GeneTrustAPIImpl) ListMyDatasets(ctx context.Context) ([]*types.Dataset, error) {
	return g.contracts.ListMyDatasets(ctx)
}

func (g *GeneTrustAPIImpl) GetDataset(ctx context.Context, dataID uint64) (*types.Dataset, error) {
	return g.contracts.GetDataset(ctx, dataID)
}

func (g *GeneTrustAPIImpl) CreateListing(ctx context.Context, params *types.CreateListingParams) (*types.Listing, error) {
	return g.contracts.CreateListing(ctx, params)
}

func (g *GeneTrustAPIImpl) ListMarketplace(ctx context.Context, params *types.ListMarketplaceParams) ([]*types.Listing, error) {
	return g.contracts.ListMarketplace(ctx, params)
}

func (g *GeneTrustAPIImpl) GetListing(ctx context.Context, listingID uint64) (*types.Listing, error) {
	return g.contracts.GetListing(ctx, listingID)
}

func (g *GeneTrustAPIImpl) PurchaseListing(ctx context.Context, params *types.PurchaseParams) (*types.PurchaseReceipt, error) {
	return g.contracts.PurchaseListing(ctx, params)
}

func (g *GeneTrustAPIImpl) CancelListing(ctx context.Context, listingID uint64) error {
	return g.contracts.CancelListing(ctx, listingID)
}

// ConsentGet returns nil until consent was given once.
func (g *GeneTrustAPIImpl) ConsentGet(ctx context.Context) (*types.AnalyticsConsent, error) {
	return g.sessions.LoadConsent(ctx)
}

func (g *GeneTrustAPIImpl) ConsentSet(ctx context.Context, consent *types.AnalyticsConsent) error {
	if consent == nil {
		return apperr.InvalidInput("consent is required")
	}
	c := *consent
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now()
	}
	return g.sessions.SaveConsent(ctx, &c)
}

func (g *GeneTrustAPIImpl) Version(ctx context.Context) (string, error) {
	return version.UserVersion, nil
}
