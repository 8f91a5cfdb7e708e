package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so the host environment cannot leak in
func clearEnv(t *testing.T) {
	t.Helper()
	for k := range defaults {
		t.Setenv(EnvPrefix+"_"+upperKey(k), "")
	}
	for _, names := range legacyEnv {
		for _, n := range names {
			t.Setenv(n, "")
		}
	}
	for _, n := range []string{"XBRIDGE_CONFIG", "MAINNET_RPC_URL", "POLYGON_RPC_URL", "ARBITRUM_RPC_URL",
		"MAINNET_LIFI_ADAPTER_ADDRESS", "MAINNET_FEE_COLLECTOR_ADDRESS", "MAINNET_TOKEN_REGISTRY_ADDRESS"} {
		t.Setenv(n, "")
	}
}

func upperKey(k string) string {
	out := []byte(k)
	for i, c := range out {
		switch {
		case c == '.':
			out[i] = '_'
		case c >= 'a' && c <= 'z':
			out[i] = c - 'a' + 'A'
		}
	}
	return string(out)
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "*", cfg.CORSOrigin)
	assert.Equal(t, "https://li.quest/v1", cfg.LiFi.APIURL)
	assert.Equal(t, "xbridge", cfg.LiFi.Integrator)
	assert.Equal(t, 15*time.Second, cfg.LiFi.Timeout)
	assert.Equal(t, 2, cfg.LiFi.RetryMax)
	assert.Equal(t, 30*time.Second, cfg.QuoteCacheTTL)
	assert.Equal(t, BackendMemory, cfg.QuoteCacheBackend)
	assert.Equal(t, 512, cfg.TokenCacheSize)
	assert.Equal(t, 5*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, 10.0, cfg.RateLimitRPS)
	assert.Equal(t, 20, cfg.RateLimitBurst)
	assert.Equal(t, 5, cfg.BreakerFailures)
	assert.Equal(t, 1, cfg.BreakerSuccesses)
	assert.Equal(t, 30*time.Second, cfg.BreakerCooldown)
	assert.Equal(t, uint64(3000000), cfg.GasLimit)
	assert.Empty(t, cfg.OtelEndpoint)

	assert.Equal(t, []string{"1", "137", "42161"}, cfg.Chains.IDs())
	eth := cfg.Chains["1"]
	assert.Equal(t, "1", eth.ID)
	assert.Equal(t, "Ethereum", eth.Name)
	assert.Equal(t, []string{"https://eth-mainnet.g.alchemy.com/v2/demo", "https://cloudflare-eth.com"}, eth.RPCURLs,
		"blank env URL is dropped")
	assert.Equal(t, DefaultDiamondAddress, eth.Contracts.LiFiDiamond)
	assert.Empty(t, eth.Contracts.LiFiAdapter)
	assert.Equal(t, "MATIC", cfg.Chains["137"].NativeCurrency.Symbol)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("XBRIDGE_PORT", "9090")
	t.Setenv("PORT", "7070")
	t.Setenv("LIFI_API_KEY", "legacy-key")
	t.Setenv("XBRIDGE_LIFI_TIMEOUT", "4s")
	t.Setenv("XBRIDGE_RATE_LIMIT_RPS", "2.5")
	t.Setenv("XBRIDGE_GAS_LIMIT", "500000")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("MAINNET_RPC_URL", "https://private.example/eth")
	t.Setenv("MAINNET_LIFI_ADAPTER_ADDRESS", "0x00000000000000000000000000000000000000aa")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port, "prefixed variable wins over the legacy name")
	assert.Equal(t, "legacy-key", cfg.LiFi.APIKey)
	assert.Equal(t, 4*time.Second, cfg.LiFi.Timeout)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Equal(t, uint64(500000), cfg.GasLimit)
	assert.Equal(t, "collector:4318", cfg.OtelEndpoint)

	eth := cfg.Chains["1"]
	require.NotEmpty(t, eth.RPCURLs)
	assert.Equal(t, "https://private.example/eth", eth.RPCURLs[0])
	assert.Len(t, eth.RPCURLs, 3)
	assert.Equal(t, "0x00000000000000000000000000000000000000aa", eth.Contracts.LiFiAdapter)
}

func TestLoad_LegacyPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "7070")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
}

func TestLoad_FileChainsReplaceDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "xbridge.yaml")
	body := `
port: "8081"
quote_cache_ttl: 10s
lifi:
  integrator: acme
chains:
  "10":
    name: Optimism
    rpc_urls:
      - ""
      - https://mainnet.optimism.io
    native_currency:
      name: Ether
      symbol: ETH
      decimals: 18
    contracts:
      fee_collector: "0x00000000000000000000000000000000000000fe"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.QuoteCacheTTL)
	assert.Equal(t, "acme", cfg.LiFi.Integrator)
	assert.Equal(t, "https://li.quest/v1", cfg.LiFi.APIURL, "unset keys keep defaults")

	require.Equal(t, []string{"10"}, cfg.Chains.IDs())
	op := cfg.Chains["10"]
	assert.Equal(t, "10", op.ID)
	assert.Equal(t, "Optimism", op.Name)
	assert.Equal(t, []string{"https://mainnet.optimism.io"}, op.RPCURLs)
	assert.Equal(t, uint8(18), op.NativeCurrency.Decimals)
	assert.Equal(t, "0x00000000000000000000000000000000000000fe", op.Contracts.FeeCollector)
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"redis without url", func(c *Config) { c.QuoteCacheBackend = BackendRedis }, "redis_url"},
		{"unknown backend", func(c *Config) { c.QuoteCacheBackend = "memcached" }, "memcached"},
		{"zero ttl", func(c *Config) { c.QuoteCacheTTL = 0 }, "quote_cache_ttl"},
		{"zero token cache", func(c *Config) { c.TokenCacheSize = 0 }, "token_cache_size"},
		{"no rate", func(c *Config) { c.RateLimitRPS = 0 }, "rate limit"},
		{"no chains", func(c *Config) { c.Chains = nil }, "no chains"},
		{"no port", func(c *Config) { c.Port = "" }, "port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("redis with url", func(t *testing.T) {
		cfg := base
		cfg.QuoteCacheBackend = BackendRedis
		cfg.RedisURL = "redis://localhost:6379/0"
		assert.NoError(t, cfg.Validate())
	})
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("XB_TEST_DURATION", "250ms")
	t.Setenv("XB_TEST_BAD_DURATION", "soon")
	t.Setenv("XB_TEST_EMPTY", "")

	assert.Equal(t, 250*time.Millisecond, GetEnvAsDuration("XB_TEST_DURATION", time.Second))
	assert.Equal(t, time.Second, GetEnvAsDuration("XB_TEST_BAD_DURATION", time.Second))
	assert.Equal(t, "fallback", GetEnvOrDefault("XB_TEST_EMPTY", "fallback"))
	assert.Equal(t, "fallback", GetEnvOrDefault("XB_TEST_UNSET_VARIABLE", "fallback"))
}
