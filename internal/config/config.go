// Package config resolves the runtime settings described in spec.md
// §6's environment-variables list, layered built-in default → optional
// YAML file → environment variable, grounded on the teacher's
// yaml.v3-backed config loaders generalized away from CryptoRun's
// scan-specific shape.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ProviderOverride holds a per-provider rate-limit/timeout override.
type ProviderOverride struct {
	RPS     float64
	Timeout time.Duration
}

// WebhookSecrets are the HMAC signing secrets for the Binance/Polygon
// webhook receivers (internal/httpapi.WebhookSecrets).
type WebhookSecrets struct {
	Binance string
	Polygon string
}

// Retry mirrors adapter.RetryPolicy without importing internal/adapter,
// keeping config dependency-free of the fetch lifecycle package.
type Retry struct {
	MaxRetries int
	Base       time.Duration
	Jitter     time.Duration
}

// Runtime is the fully-resolved configuration for one process.
type Runtime struct {
	DefaultTimeout time.Duration
	DefaultRPS     float64
	Overrides      map[string]ProviderOverride
	Retry          Retry

	DatabaseURL    string
	RedisURL       string
	KeysSecret     string
	AdminToken     string
	SkipMigrations bool
	Webhooks       WebhookSecrets

	HTTPHost string
	HTTPPort int
}

// fileShape is the optional on-disk layer, e.g.:
//
//	default_timeout_ms: 10000
//	default_rps: 5
//	providers:
//	  binance: {rps: 10, timeout_ms: 8000}
type fileShape struct {
	DefaultTimeoutMS int                  `yaml:"default_timeout_ms"`
	DefaultRPS       float64              `yaml:"default_rps"`
	Providers        map[string]fileEntry `yaml:"providers"`
}

type fileEntry struct {
	RPS       float64 `yaml:"rps"`
	TimeoutMS int     `yaml:"timeout_ms"`
}

// Default returns the built-in defaults per spec.md §4.1/§5: 10s
// per-provider timeout, max_retries=2, base=0.3s, jitter=0.25s.
func Default() Runtime {
	return Runtime{
		DefaultTimeout: 10 * time.Second,
		Overrides:      map[string]ProviderOverride{},
		Retry:          Retry{MaxRetries: 2, Base: 300 * time.Millisecond, Jitter: 250 * time.Millisecond},
		HTTPHost:       "0.0.0.0",
		HTTPPort:       8080,
	}
}

// Load resolves Runtime from built-in defaults, an optional YAML file
// at path (skipped entirely if it doesn't exist), then environment
// variables, in that increasing-precedence order.
func Load(path string) (Runtime, error) {
	rt := Default()

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			var f fileShape
			if err := yaml.Unmarshal(data, &f); err != nil {
				return rt, fmt.Errorf("config: parse %s: %w", path, err)
			}
			applyFile(&rt, f)
		} else if !os.IsNotExist(err) {
			return rt, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	applyEnv(&rt)
	return rt, nil
}

func applyFile(rt *Runtime, f fileShape) {
	if f.DefaultTimeoutMS > 0 {
		rt.DefaultTimeout = time.Duration(f.DefaultTimeoutMS) * time.Millisecond
	}
	if f.DefaultRPS > 0 {
		rt.DefaultRPS = f.DefaultRPS
	}
	for name, entry := range f.Providers {
		rt.Overrides[name] = ProviderOverride{
			RPS:     entry.RPS,
			Timeout: time.Duration(entry.TimeoutMS) * time.Millisecond,
		}
	}
}

func applyEnv(rt *Runtime) {
	if v, ok := envSeconds("FKS_API_TIMEOUT"); ok {
		rt.DefaultTimeout = v
	}
	if v, ok := envFloat("FKS_DEFAULT_RPS"); ok {
		rt.DefaultRPS = v
	}
	if v, ok := envInt("FKS_API_MAX_RETRIES"); ok {
		rt.Retry.MaxRetries = v
	}
	if v, ok := envMillis("FKS_API_BACKOFF_BASE"); ok {
		rt.Retry.Base = v
	}
	if v, ok := envMillis("FKS_API_BACKOFF_JITTER"); ok {
		rt.Retry.Jitter = v
	}

	for _, name := range knownProviderNames {
		override := rt.Overrides[name]
		changed := false
		if v, ok := envSeconds(fmt.Sprintf("FKS_%s_TIMEOUT", upper(name))); ok {
			override.Timeout = v
			changed = true
		}
		if v, ok := envFloat(fmt.Sprintf("FKS_%s_RPS", upper(name))); ok {
			override.RPS = v
			changed = true
		}
		if changed {
			rt.Overrides[name] = override
		}
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		rt.DatabaseURL = v
	}
	if v := os.Getenv("FKS_DB_URL"); v != "" {
		rt.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		rt.RedisURL = v
	}
	if v := os.Getenv("DATA_KEYS_SECRET"); v != "" {
		rt.KeysSecret = v
	}
	if v := os.Getenv("FKS_DATA_ADMIN_TOKEN"); v != "" {
		rt.AdminToken = v
	}
	if v := os.Getenv("FKS_SKIP_MIGRATIONS"); v != "" {
		rt.SkipMigrations = v == "1" || v == "true"
	}
	if v := os.Getenv("BINANCE_WEBHOOK_SECRET"); v != "" {
		rt.Webhooks.Binance = v
	}
	if v := os.Getenv("POLYGON_WEBHOOK_SECRET"); v != "" {
		rt.Webhooks.Polygon = v
	}
	if v := os.Getenv("FKS_HTTP_HOST"); v != "" {
		rt.HTTPHost = v
	}
	if v, ok := envInt("FKS_HTTP_PORT"); ok {
		rt.HTTPPort = v
	}
}

// knownProviderNames lists the `<NAME>` spellings spec.md §6 uses for
// `FKS_<NAME>_TIMEOUT`/`FKS_<NAME>_RPS`, matching
// internal/providers/registry.go's registered factories.
var knownProviderNames = []string{"binance", "coinbase", "okx", "kraken", "coingecko", "polygon", "eodhd", "newsapi"}

func upper(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c >= 'a' && c <= 'z' {
			out[i] = c - ('a' - 'A')
		}
	}
	return string(out)
}

func envSeconds(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

func envMillis(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	ms, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(ms * float64(time.Millisecond)), true
}

func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
