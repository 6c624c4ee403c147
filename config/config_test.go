package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"subspace-client/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultNetwork, cfg.Network)
	assert.Equal(t, int32(config.DefaultTokenDecimals), cfg.TokenDecimals)
	assert.Equal(t, 3, cfg.Retry.Attempts)
	assert.Equal(t, config.DefaultMaxAge, cfg.Cache.ModulesMaxAge)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subspace.yaml")
	content := `
network: test
networks:
  test: ws://10.0.0.1:9944
  main: ws://10.0.0.2:9944
defaultNetuid: 3
retry:
  attempts: 5
  delay: 100ms
cache:
  modulesMaxAge: -1s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Network)
	assert.Equal(t, "ws://10.0.0.1:9944", cfg.Networks["test"])
	assert.Equal(t, uint16(3), cfg.DefaultNetuid)
	assert.Equal(t, 5, cfg.Retry.Attempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Retry.Delay)
	assert.Equal(t, -time.Second, cfg.Cache.ModulesMaxAge)
	assert.Equal(t, config.DefaultMaxAge, cfg.Cache.StateMaxAge)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := config.Default()
	cfg.Network = "nowhere"
	assert.Error(t, cfg.Validate())

	cfg = config.Default()
	cfg.AddressType = "Raw"
	assert.Error(t, cfg.Validate())

	cfg = config.Default()
	cfg.Retry.Attempts = 0
	assert.Error(t, cfg.Validate())
}
