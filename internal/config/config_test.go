package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"FKS_API_TIMEOUT", "FKS_DEFAULT_RPS", "FKS_API_MAX_RETRIES",
		"FKS_API_BACKOFF_BASE", "FKS_API_BACKOFF_JITTER",
		"FKS_BINANCE_TIMEOUT", "FKS_BINANCE_RPS",
		"DATABASE_URL", "FKS_DB_URL", "REDIS_URL", "DATA_KEYS_SECRET",
		"FKS_DATA_ADMIN_TOKEN", "FKS_SKIP_MIGRATIONS",
		"BINANCE_WEBHOOK_SECRET", "POLYGON_WEBHOOK_SECRET",
		"FKS_HTTP_HOST", "FKS_HTTP_PORT",
	}
	for _, k := range keys {
		os.Unsetenv(k)
	}
}

func TestLoadReturnsDefaultsWithNoFileOrEnv(t *testing.T) {
	clearEnv(t)
	rt, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 10*time.Second, rt.DefaultTimeout)
	require.Equal(t, 2, rt.Retry.MaxRetries)
	require.Equal(t, "0.0.0.0", rt.HTTPHost)
	require.Equal(t, 8080, rt.HTTPPort)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	clearEnv(t)
	_, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("FKS_API_TIMEOUT", "5")
	t.Setenv("FKS_DEFAULT_RPS", "3.5")
	t.Setenv("FKS_BINANCE_RPS", "20")
	t.Setenv("DATA_KEYS_SECRET", "topsecret")
	t.Setenv("FKS_SKIP_MIGRATIONS", "true")

	rt, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, rt.DefaultTimeout)
	require.Equal(t, 3.5, rt.DefaultRPS)
	require.Equal(t, 20.0, rt.Overrides["binance"].RPS)
	require.Equal(t, "topsecret", rt.KeysSecret)
	require.True(t, rt.SkipMigrations)
}

func TestLoadFromYAMLFileSetsProviderOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := dir + "/providers.yaml"
	require.NoError(t, os.WriteFile(path, []byte(`
default_timeout_ms: 8000
default_rps: 4
providers:
  kraken:
    rps: 15
    timeout_ms: 6000
`), 0o644))

	rt, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 8*time.Second, rt.DefaultTimeout)
	require.Equal(t, 4.0, rt.DefaultRPS)
	require.Equal(t, 15.0, rt.Overrides["kraken"].RPS)
	require.Equal(t, 6*time.Second, rt.Overrides["kraken"].Timeout)
}

func TestLoadEnvOverridesFileValues(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := dir + "/providers.yaml"
	require.NoError(t, os.WriteFile(path, []byte(`default_rps: 4`), 0o644))
	t.Setenv("FKS_DEFAULT_RPS", "9")

	rt, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9.0, rt.DefaultRPS)
}
