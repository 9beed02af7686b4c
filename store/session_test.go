package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/genetrust/genetrust-gateway/types"
)

func TestSessionStore(t *testing.T) {
	ctx := context.Background()

	t.Run("wallet round trip", func(t *testing.T) {
		sessions := NewSessionStore(NewMemStore())

		saved, err := sessions.LoadWallet(ctx)
		require.NoError(t, err)
		require.False(t, saved.Connected)

		require.NoError(t, sessions.SaveWallet(ctx, types.ProviderHiro, "ST3M31VTN8R1X4X6T2TMHBYMBXF08D7C1ZSMAQNMG"))
		require.NoError(t, sessions.SaveBlockstackSession(ctx, `{"userData":{}}`))
		saved, err = sessions.LoadWallet(ctx)
		require.NoError(t, err)
		require.True(t, saved.Connected)
		require.Equal(t, types.ProviderHiro, saved.Provider)
		require.Equal(t, "ST3M31VTN8R1X4X6T2TMHBYMBXF08D7C1ZSMAQNMG", saved.Address)

		require.NoError(t, sessions.ClearWallet(ctx))
		saved, err = sessions.LoadWallet(ctx)
		require.NoError(t, err)
		require.False(t, saved.Connected)
		require.Empty(t, saved.Address)
		_, ok, err := sessions.LoadBlockstackSession(ctx)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("consent", func(t *testing.T) {
		sessions := NewSessionStore(NewMemStore())
		consent, err := sessions.LoadConsent(ctx)
		require.NoError(t, err)
		require.Nil(t, consent)

		require.NoError(t, sessions.SaveConsent(ctx, &types.AnalyticsConsent{Analytics: true, UpdatedAt: time.Unix(1700000000, 0).UTC()}))
		consent, err = sessions.LoadConsent(ctx)
		require.NoError(t, err)
		require.True(t, consent.Necessary)
		require.True(t, consent.Analytics)
		require.False(t, consent.Marketing)
	})
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("GENETRUST_TEST_REDIS")
	if url == "" {
		t.Skip("GENETRUST_TEST_REDIS not set")
	}
	ctx := context.Background()
	kv, err := NewRedisStore(ctx, url, "genetrust-test:")
	require.NoError(t, err)
	defer kv.Close() //nolint:errcheck

	require.NoError(t, kv.Set(ctx, "k", "v"))
	v, ok, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)
	require.NoError(t, kv.Delete(ctx, "k"))
	_, ok, err = kv.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}
