package store

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/genetrust/genetrust-gateway/types"
)

// Keys shared with the browser app, kept verbatim so sessions stay portable.
const (
	KeyWalletConnected  = "walletConnected"
	KeyWalletAddress    = "walletAddress"
	KeyWalletProvider   = "walletProvider"
	KeyBlockstack       = "blockstack-session"
	KeyAnalyticsConsent = "analytics_consent"
)

type SessionStore struct {
	kv KVStore
}

func NewSessionStore(kv KVStore) *SessionStore {
	return &SessionStore{kv: kv}
}

type SavedWallet struct {
	Connected bool
	Address   string
	Provider  types.ProviderID
}

func (s *SessionStore) SaveWallet(ctx context.Context, provider types.ProviderID, address string) error {
	if err := s.kv.Set(ctx, KeyWalletConnected, strconv.FormatBool(true)); err != nil {
		return err
	}
	if err := s.kv.Set(ctx, KeyWalletAddress, address); err != nil {
		return err
	}
	return s.kv.Set(ctx, KeyWalletProvider, string(provider))
}

func (s *SessionStore) LoadWallet(ctx context.Context) (*SavedWallet, error) {
	saved := &SavedWallet{}
	connected, ok, err := s.kv.Get(ctx, KeyWalletConnected)
	if err != nil {
		return nil, err
	}
	if ok {
		saved.Connected, _ = strconv.ParseBool(connected)
	}
	if saved.Address, _, err = s.kv.Get(ctx, KeyWalletAddress); err != nil {
		return nil, err
	}
	provider, _, err := s.kv.Get(ctx, KeyWalletProvider)
	if err != nil {
		return nil, err
	}
	saved.Provider = types.ProviderID(provider)
	if saved.Address == "" {
		saved.Connected = false
	}
	return saved, nil
}

// ClearWallet removes every wallet key; it keeps going after a failed delete.
func (s *SessionStore) ClearWallet(ctx context.Context) error {
	var firstErr error
	for _, key := range []string{KeyWalletConnected, KeyWalletAddress, KeyWalletProvider, KeyBlockstack} {
		if err := s.kv.Delete(ctx, key); err != nil {
			log.Warnf("delete session key %s: %v", key, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *SessionStore) SaveBlockstackSession(ctx context.Context, raw string) error {
	return s.kv.Set(ctx, KeyBlockstack, raw)
}

func (s *SessionStore) LoadBlockstackSession(ctx context.Context) (string, bool, error) {
	return s.kv.Get(ctx, KeyBlockstack)
}

func (s *SessionStore) SaveConsent(ctx context.Context, consent *types.AnalyticsConsent) error {
	// necessary cookies cannot be refused
	c := *consent
	c.Necessary = true
	data, err := json.Marshal(&c)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, KeyAnalyticsConsent, string(data))
}

// LoadConsent returns nil when the user never answered the banner.
func (s *SessionStore) LoadConsent(ctx context.Context) (*types.AnalyticsConsent, error) {
	raw, ok, err := s.kv.Get(ctx, KeyAnalyticsConsent)
	if err != nil || !ok {
		return nil, err
	}
	var consent types.AnalyticsConsent
	if err := json.Unmarshal([]byte(raw), &consent); err != nil {
		return nil, err
	}
	return &consent, nil
}
