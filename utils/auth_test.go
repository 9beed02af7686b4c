package utils

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/filecoin-project/go-jsonrpc/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalJwtCreateAndVerify(t *testing.T) {
	ctx := context.Background()
	jwt, err := NewLocalJwtClient(t.TempDir())
	require.NoError(t, err)
	perm, err := jwt.Verify(ctx, string(jwt.Token))
	require.NoError(t, err)
	require.Equal(t, []auth.Permission{"read", "write", "sign", "admin"}, perm)

	readToken, err := jwt.NewToken("dashboard", "read")
	require.NoError(t, err)
	perm, err = jwt.Verify(ctx, string(readToken))
	require.NoError(t, err)
	assert.Equal(t, []auth.Permission{"read"}, perm)

	_, err = jwt.NewToken("nobody", "root")
	require.Error(t, err)

	_, err = jwt.Verify(ctx, "not-a-jwt")
	require.Error(t, err)
}

func TestLocalJwtPersistSecret(t *testing.T) {
	ctx := context.Background()
	repo := t.TempDir()

	first, err := NewLocalJwtClient(repo)
	require.NoError(t, err)
	require.NoError(t, first.SaveToken())

	saved, err := os.ReadFile(filepath.Join(repo, TokenFile))
	require.NoError(t, err)
	assert.Equal(t, first.Token, saved)

	// a restarted gateway still accepts the saved token
	second, err := NewLocalJwtClient(repo)
	require.NoError(t, err)
	assert.Equal(t, first.Seckey, second.Seckey)
	_, err = second.Verify(ctx, string(saved))
	require.NoError(t, err)

	other, err := NewLocalJwtClient(t.TempDir())
	require.NoError(t, err)
	_, err = other.Verify(ctx, string(saved))
	require.Error(t, err)
}
