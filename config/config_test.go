package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranoksenfeld/PolyBot-Pro/internal/domain"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
mirror:
  target: "0x56687bf447db6ffa42ef4d1201d9e56b3fa8dc34"
  simulate: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, domain.ModeHybrid, cfg.Mode())
	assert.Equal(t, 2*time.Second, cfg.TickInterval())
	assert.Equal(t, 30*time.Second, cfg.PollGrace())
	assert.Equal(t, 1.0, cfg.Mirror.CopyMultiplier)
	assert.Equal(t, "https://clob.polymarket.com", cfg.API.CLOBBase)
	assert.Equal(t, "https://data-api.polymarket.com", cfg.API.DataBase)
	assert.Equal(t, "mirror.db", cfg.Storage.DSN)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadRejectsMissingTarget(t *testing.T) {
	path := writeConfig(t, `
mirror:
  simulate: true
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target")
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	path := writeConfig(t, `
mirror:
  target: "0xabc"
  monitoring_mode: websocket
  simulate: true
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring_mode")
}

func TestLoadLiveModeNeedsKey(t *testing.T) {
	t.Setenv("POLY_PRIVATE_KEY", "")
	path := writeConfig(t, `
mirror:
  target: "0xabc"
  monitoring_mode: polling
  simulate: false
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POLY_PRIVATE_KEY")
}

func TestLoadMempoolNeedsRPC(t *testing.T) {
	t.Setenv("POLYGON_RPC_URL", "")
	path := writeConfig(t, `
mirror:
  target: "0xabc"
  monitoring_mode: mempool
  simulate: true
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc_url")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MIRROR_TARGET", "0xfromenv")
	t.Setenv("MIRROR_MODE", "polling")
	t.Setenv("LOG_LEVEL", "debug")

	path := writeConfig(t, `
mirror:
  target: "0xfromyaml"
  monitoring_mode: hybrid
  simulate: true
api:
  rpc_url: "https://polygon-rpc.com"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0xfromenv", cfg.Mirror.Target)
	assert.Equal(t, domain.ModePolling, cfg.Mode())
	assert.Equal(t, "debug", cfg.Log.Level)
}
