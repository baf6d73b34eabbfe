package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "android", cfg.Store.Platform)
	assert.Equal(t, []string{"rniapt_699_1m"}, cfg.Store.ProductIDs())
	assert.Equal(t, "2", cfg.Store.CancelResponseCode)
	require.Len(t, cfg.Store.Catalog, 1)
	assert.Equal(t, 720*time.Hour, cfg.Store.Catalog[0].Period)
	assert.Equal(t, 15*time.Second, cfg.Validator.Timeout)
	assert.Equal(t, 200*time.Millisecond, cfg.Validator.InitialBackoff)
	assert.Equal(t, "optimistic", cfg.Flow.UnlockPolicy)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "127.0.0.1:8090", cfg.Server.GetAddr())
	assert.Same(t, cfg, Get())
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	path := writeConfig(t, `
store:
  platform: ios
  products:
    ios: [com.example.monthly]
validator:
  endpoint: https://validator.example.com/validate
  max_retries: 5
`)
	t.Setenv("IAPGATE_FLOW_UNLOCK_POLICY", "confirm")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"com.example.monthly"}, cfg.Store.ProductIDs())
	assert.Equal(t, "https://validator.example.com/validate", cfg.Validator.Endpoint)
	assert.Equal(t, 5, cfg.Validator.MaxRetries)
	assert.Equal(t, "confirm", cfg.Flow.UnlockPolicy)
	assert.Equal(t, 5*time.Second, cfg.Validator.AttemptTimeout)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown policy":   "flow:\n  unlock_policy: eventually\n",
		"unknown platform": "store:\n  platform: windows\n",
		"bad endpoint":     "validator:\n  endpoint: not a url\n",
		"backoff order":    "validator:\n  initial_backoff: 5s\n  max_backoff: 1s\n",
		"zero timeout":     "validator:\n  timeout: 0s\n",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
