package wallet

import (
	"context"

	"github.com/genetrust/genetrust-gateway/apperr"
	"github.com/genetrust/genetrust-gateway/store"
	"github.com/genetrust/genetrust-gateway/types"
)

var _ Service = (*ReownService)(nil)

// ReownService adapts the Reown (WalletConnect) AppKit. Accounts arrive as CAIP-10 ids.
type ReownService struct {
	*baseService
	sessions *store.SessionStore
}

func NewReownService(sdk types.WalletSDK, sessions *store.SessionStore, opts Options) *ReownService {
	r := &ReownService{sessions: sessions}
	r.baseService = newBaseService(types.ProviderReown, sdk, opts, r)
	return r
}

func (r *ReownService) Init(ctx context.Context) error {
	return r.init(ctx)
}

func (r *ReownService) Connect(ctx context.Context) (string, error) {
	return r.connect(ctx)
}

func (r *ReownService) accept(session *types.WalletSession) (string, error) {
	address, err := selectAddress(session.Accounts, r.opts.Network)
	if err != nil {
		return "", apperr.ErrConnectionFailed.WithCause(err)
	}
	return address, nil
}

func (r *ReownService) persist(ctx context.Context, _ *types.WalletSession, address string) {
	if r.sessions == nil {
		return
	}
	if err := r.sessions.SaveWallet(ctx, types.ProviderReown, address); err != nil {
		r.log.Warnw("persist wallet", "err", err)
	}
}

func (r *ReownService) forget(ctx context.Context) {
	forgetWallet(ctx, r.sessions, types.ProviderReown, r.log)
}
