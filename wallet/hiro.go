package wallet

import (
	"context"

	"github.com/genetrust/genetrust-gateway/apperr"
	"github.com/genetrust/genetrust-gateway/store"
	"github.com/genetrust/genetrust-gateway/types"
)

var _ Service = (*HiroService)(nil)

// HiroService adapts the Hiro/Leather connect SDK. Its sessions carry a sign-in flag and
// an opaque blockstack session blob.
type HiroService struct {
	*baseService
	sessions *store.SessionStore
}

func NewHiroService(sdk types.WalletSDK, sessions *store.SessionStore, opts Options) *HiroService {
	h := &HiroService{sessions: sessions}
	h.baseService = newBaseService(types.ProviderHiro, sdk, opts, h)
	return h
}

func (h *HiroService) Init(ctx context.Context) error {
	return h.init(ctx)
}

func (h *HiroService) Connect(ctx context.Context) (string, error) {
	return h.connect(ctx)
}

func (h *HiroService) accept(session *types.WalletSession) (string, error) {
	if !session.SignedIn {
		return "", apperr.ErrDidNotSignIn.WithContext("provider", types.ProviderHiro)
	}
	address, err := selectAddress(session.Accounts, h.opts.Network)
	if err != nil {
		return "", apperr.ErrConnectionFailed.WithCause(err)
	}
	return address, nil
}

func (h *HiroService) persist(ctx context.Context, session *types.WalletSession, address string) {
	if h.sessions == nil {
		return
	}
	if err := h.sessions.SaveWallet(ctx, types.ProviderHiro, address); err != nil {
		h.log.Warnw("persist wallet", "err", err)
	}
	if session != nil && session.Raw != "" {
		if err := h.sessions.SaveBlockstackSession(ctx, session.Raw); err != nil {
			h.log.Warnw("persist blockstack session", "err", err)
		}
	}
}

func (h *HiroService) forget(ctx context.Context) {
	forgetWallet(ctx, h.sessions, types.ProviderHiro, h.log)
}
