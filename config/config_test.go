package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genetrust/genetrust-gateway/types"
)

func TestConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfgPath := filepath.Join(t.TempDir(), ConfigFile)
	assert.NoError(t, WriteConfig(cfgPath, cfg))

	res, err := ReadConfig(cfgPath)
	assert.NoError(t, err)
	assert.Equal(t, cfg, res)

	providers, err := res.EnabledProviders()
	require.NoError(t, err)
	assert.Equal(t, []types.ProviderID{types.ProviderReown, types.ProviderHiro}, providers)
}

func TestApplyEnv(t *testing.T) {
	t.Run("unset keeps defaults", func(t *testing.T) {
		cfg := DefaultConfig()
		require.NoError(t, ApplyEnv(cfg))
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("GENETRUST_NETWORK", "mainnet")
		t.Setenv("GENETRUST_DATASET_REGISTRY_ADDRESS", "SP000000000000000000002Q6VF78")
		t.Setenv("GENETRUST_USE_REAL_SDK", "true")
		t.Setenv("GENETRUST_REDIS", "redis://127.0.0.1:6379/1")
		t.Setenv("GENETRUST_API_TOKEN", "secret")

		cfg := DefaultConfig()
		require.NoError(t, ApplyEnv(cfg))
		assert.Equal(t, "mainnet", cfg.Network.Network)
		assert.Equal(t, MainnetNode, cfg.Network.StacksNode)
		assert.Equal(t, "SP000000000000000000002Q6VF78", cfg.Contract.ContractAddress)
		assert.True(t, cfg.Contract.UseRealSDK)
		assert.Equal(t, "redis://127.0.0.1:6379/1", cfg.Store.Redis)
		assert.Equal(t, "secret", cfg.API.Token)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("explicit node wins", func(t *testing.T) {
		t.Setenv("GENETRUST_NETWORK", "mainnet")
		t.Setenv("GENETRUST_STACKS_NODE", "http://127.0.0.1:3999")

		cfg := DefaultConfig()
		require.NoError(t, ApplyEnv(cfg))
		assert.Equal(t, "http://127.0.0.1:3999", cfg.Network.StacksNode)
	})

	t.Run("bad bool", func(t *testing.T) {
		t.Setenv("GENETRUST_USE_REAL_SDK", "maybe")
		assert.Error(t, ApplyEnv(DefaultConfig()))
	})
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Network.Network = "devnet"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Contract.ContractAddress = "not-an-address"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Wallet.EnabledProviders = []string{"metamask"}
	assert.Error(t, cfg.Validate())
}
