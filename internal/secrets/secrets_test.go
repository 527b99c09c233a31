package secrets

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvProviderCanonicalKey(t *testing.T) {
	t.Setenv("BINANCE_API_KEY", "abc123")
	p := NewEnvProvider(nil)
	v, ok := p.GetAPIKey("binance")
	require.True(t, ok)
	require.Equal(t, "abc123", v)
}

func TestEnvProviderAlias(t *testing.T) {
	t.Setenv("LEGACY_POLY_KEY", "xyz")
	p := NewEnvProvider(map[string][]string{"polygon": {"LEGACY_POLY_KEY"}})
	v, ok := p.GetAPIKey("polygon")
	require.True(t, ok)
	require.Equal(t, "xyz", v)
}

func TestChainProviderFallsThrough(t *testing.T) {
	empty := NewEnvProvider(nil)
	t.Setenv("OKX_API_KEY", "fallback-value")
	chain := NewChain(NewFileStore(filepath.Join(t.TempDir(), "absent.json"), ""), empty)
	v, ok := chain.GetAPIKey("okx")
	require.True(t, ok)
	require.Equal(t, "fallback-value", v)
}

func TestMask(t *testing.T) {
	require.Equal(t, "***", Mask("short"))
	require.Equal(t, "abcd***wxyz", Mask("abcdefghijklmnopqrstuvwxyz"))
}

func TestFileStoreRoundTripUnencrypted(t *testing.T) {
	dir := t.TempDir()
	fs := NewFileStore(filepath.Join(dir, "keys.json"), "")
	require.NoError(t, fs.SetAPIKey("binance", "plainkey"))
	v, ok := fs.GetAPIKey("binance")
	require.True(t, ok)
	require.Equal(t, "plainkey", v)
}

func TestFileStoreRoundTripEncrypted(t *testing.T) {
	dir := t.TempDir()
	fs := NewFileStore(filepath.Join(dir, "keys.json"), "process-secret")
	require.NoError(t, fs.SetAPIKey("polygon", "supersecretkey"))

	v, ok := fs.GetAPIKey("polygon")
	require.True(t, ok)
	require.Equal(t, "supersecretkey", v)

	reopened := NewFileStore(filepath.Join(dir, "keys.json"), "process-secret")
	v2, ok2 := reopened.GetAPIKey("polygon")
	require.True(t, ok2)
	require.Equal(t, "supersecretkey", v2)
}

func TestFileStoreWrongSecretFailsDecrypt(t *testing.T) {
	dir := t.TempDir()
	fs := NewFileStore(filepath.Join(dir, "keys.json"), "right-secret")
	require.NoError(t, fs.SetAPIKey("eodhd", "k"))

	wrong := NewFileStore(filepath.Join(dir, "keys.json"), "wrong-secret")
	_, ok := wrong.GetAPIKey("eodhd")
	require.False(t, ok)
}
