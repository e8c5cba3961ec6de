package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, uint16(3474), cfg.APIPort)
	assert.Equal(t, "http://127.0.0.1:5001/api/v0/", cfg.IPFSEndpoint)
	assert.Equal(t, "nftrout.sqlite", cfg.DBPath)
	assert.Equal(t, uint64(60), cfg.ReindexInterval)
	assert.Equal(t, "sapphire-mainnet", cfg.Chain)
}

func TestLoadEnvOverridesDefault(t *testing.T) {
	t.Setenv("NFT_API_PORT", "8080")
	t.Setenv("NFT_CHAIN", "local")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, uint16(8080), cfg.APIPort)
	assert.Equal(t, "local", cfg.Chain)
}

func TestLoadFileOverridesEnv(t *testing.T) {
	t.Setenv("NFT_API_PORT", "8080")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_port: 9090\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint16(9090), cfg.APIPort)
}

func TestLoadRejectsUnknownChain(t *testing.T) {
	t.Setenv("NFT_CHAIN", "mainnet")
	_, err := Load("")
	assert.Error(t, err)
}

func TestIpfsEndpointTrailingSlashEnforced(t *testing.T) {
	t.Setenv("NFT_IPFS_ENDPOINT", "http://127.0.0.1:5001/api/v0")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:5001/api/v0/", cfg.IPFSEndpoint)
}
