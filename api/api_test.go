package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/filecoin-project/go-jsonrpc/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genetrust/genetrust-gateway/contract"
	"github.com/genetrust/genetrust-gateway/store"
	"github.com/genetrust/genetrust-gateway/testhelper"
	"github.com/genetrust/genetrust-gateway/types"
	"github.com/genetrust/genetrust-gateway/validator"
	"github.com/genetrust/genetrust-gateway/wallet"
	"github.com/genetrust/genetrust-gateway/walletevent"
)

func setupAPI(t *testing.T) (*GeneTrustAPIImpl, *testhelper.MemWallet) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	sessions := store.NewSessionStore(store.NewMemStore())
	sdk := testhelper.NewMemWallet("testnet", testhelper.TestnetAddress(1))
	opts := wallet.Options{Network: "testnet", AppName: "GeneTrust"}
	manager := wallet.NewManager(wallet.ManagerConfig{}, wallet.NewHiroService(sdk, sessions, opts))
	t.Cleanup(manager.Destroy)
	require.NoError(t, manager.Init(ctx))

	v, err := validator.NewAddressValidator("testnet")
	require.NoError(t, err)
	contracts := contract.NewService(contract.NewBackend(false, "testnet", nil), v, nil)
	stream := walletevent.NewWalletEventStream(ctx, types.DefaultConfig())

	return NewGeneTrustAPIImpl(stream, manager, contracts, sessions), sdk
}

func TestPermissionProxy(t *testing.T) {
	impl, _ := setupAPI(t)
	var full GeneTrustStruct
	PermissionProxy(impl, &full)

	readCtx := auth.WithPerm(context.Background(), []auth.Permission{PermRead})
	state, err := full.WalletState(readCtx)
	require.NoError(t, err)
	assert.False(t, state.IsConnected)
	assert.Equal(t, []types.ProviderID{types.ProviderHiro}, state.AvailableProviders)

	_, err = full.WalletConnect(readCtx, types.ProviderHiro)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "need 'write'")

	err = full.CancelListing(readCtx, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "need 'sign'")

	_, err = full.ListWalletConnections(readCtx)
	require.Error(t, err)

	// read is the default
	status, err := full.ContractStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.ModeMock, status.Mode)

	allCtx := auth.WithPerm(context.Background(), AllPermissions)
	addr, err := full.WalletConnect(allCtx, "HIRO")
	require.NoError(t, err)
	assert.Equal(t, testhelper.TestnetAddress(1), addr)

	conns, err := full.ListWalletConnections(allCtx)
	require.NoError(t, err)
	assert.Empty(t, conns)
}

func TestContractFlow(t *testing.T) {
	ctx := context.Background()
	impl, sdk := setupAPI(t)

	addr, err := impl.WalletConnect(ctx, types.ProviderHiro)
	require.NoError(t, err)
	require.NoError(t, impl.ContractInitialize(ctx, &types.InitParams{WalletAddress: addr}))

	dataset, err := impl.CreateVaultDataset(ctx, &types.CreateDatasetParams{Description: "whole genome"})
	require.NoError(t, err)
	got, err := impl.GetDataset(ctx, dataset.ID)
	require.NoError(t, err)
	assert.Equal(t, "whole genome", got.Description)

	listing, err := impl.CreateListing(ctx, &types.CreateListingParams{DataID: dataset.ID})
	require.NoError(t, err)
	receipt, err := impl.PurchaseListing(ctx, &types.PurchaseParams{ListingID: listing.ListingID, DesiredAccessLevel: 2})
	require.NoError(t, err)
	assert.True(t, receipt.Success)

	// mock mode never reaches the wallet
	assert.Empty(t, sdk.Transactions())

	sig, err := impl.WalletSignMessage(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, addr, sig.Address)

	require.NoError(t, impl.WalletDisconnect(ctx))
	state, err := impl.WalletState(ctx)
	require.NoError(t, err)
	assert.False(t, state.IsConnected)
}

func TestConsent(t *testing.T) {
	ctx := context.Background()
	impl, _ := setupAPI(t)

	consent, err := impl.ConsentGet(ctx)
	require.NoError(t, err)
	assert.Nil(t, consent)

	require.Error(t, impl.ConsentSet(ctx, nil))
	require.NoError(t, impl.ConsentSet(ctx, &types.AnalyticsConsent{Analytics: true}))

	consent, err = impl.ConsentGet(ctx)
	require.NoError(t, err)
	require.NotNil(t, consent)
	assert.True(t, consent.Necessary)
	assert.True(t, consent.Analytics)
	assert.False(t, consent.Marketing)
	assert.False(t, consent.UpdatedAt.IsZero())
}

func TestAuthHandler(t *testing.T) {
	var gotPerms []auth.Permission
	var gotIP string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPerms = nil
		for _, p := range AllPermissions {
			if auth.HasPerm(r.Context(), nil, p) {
				gotPerms = append(gotPerms, p)
			}
		}
		gotIP, _ = types.CtxGetIP(r.Context())
	})

	serve := func(h *AuthHandler, remote, header string) int {
		req := httptest.NewRequest(http.MethodPost, "/rpc/v0", nil)
		req.RemoteAddr = remote
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	open := &AuthHandler{Next: next}
	assert.Equal(t, http.StatusOK, serve(open, "10.0.0.8:5555", ""))
	assert.Equal(t, AllPermissions, gotPerms)
	assert.Equal(t, "10.0.0.8", gotIP)

	locked := &AuthHandler{Token: "s3cret", Next: next}
	assert.Equal(t, http.StatusUnauthorized, serve(locked, "10.0.0.8:5555", ""))
	assert.Equal(t, http.StatusUnauthorized, serve(locked, "10.0.0.8:5555", "Bearer wrong"))
	assert.Equal(t, http.StatusUnauthorized, serve(locked, "10.0.0.8:5555", "s3cret"))
	assert.Equal(t, http.StatusOK, serve(locked, "10.0.0.8:5555", "Bearer s3cret"))
	assert.Equal(t, http.StatusOK, serve(locked, "127.0.0.1:5555", ""))
	assert.Equal(t, AllPermissions, gotPerms)

	verified := &AuthHandler{Verifier: readOnlyVerifier("viewer"), Next: next}
	assert.Equal(t, http.StatusUnauthorized, serve(verified, "10.0.0.8:5555", ""))
	assert.Equal(t, http.StatusUnauthorized, serve(verified, "10.0.0.8:5555", "Bearer editor"))
	assert.Equal(t, http.StatusOK, serve(verified, "10.0.0.8:5555", "Bearer viewer"))
	assert.Equal(t, []auth.Permission{PermRead}, gotPerms)
}

type readOnlyVerifier string

func (v readOnlyVerifier) Verify(_ context.Context, token string) ([]auth.Permission, error) {
	if token != string(v) {
		return nil, fmt.Errorf("unknown token")
	}
	return []auth.Permission{PermRead}, nil
}
