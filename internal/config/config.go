// Package config provides configuration loading and management for the application.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/yourorg/xbridge-api/internal/types"
)

// EnvPrefix namespaces the service's environment variables
const EnvPrefix = "XBRIDGE"

// DefaultDiamondAddress is the LI.FI diamond deployed at the same address on every supported chain
const DefaultDiamondAddress = "0x1231DEB6f5749EF6cE6943a275A1D3E7486F4EaE"

// LiFi holds the routing API settings
type LiFi struct {
	APIURL     string        `mapstructure:"api_url"`
	APIKey     string        `mapstructure:"api_key"`
	Integrator string        `mapstructure:"integrator"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RetryMax   int           `mapstructure:"retry_max"`
}

// Config holds all application configuration
type Config struct {
	// HTTP server
	Port       string `mapstructure:"port"`
	CORSOrigin string `mapstructure:"cors_origin"`
	Version    string `mapstructure:"version"`

	LiFi LiFi `mapstructure:"lifi"`

	// Caching
	QuoteCacheTTL     time.Duration `mapstructure:"quote_cache_ttl"`
	QuoteCacheBackend string        `mapstructure:"quote_cache_backend"`
	RedisURL          string        `mapstructure:"redis_url"`
	TokenCacheSize    int           `mapstructure:"token_cache_size"`

	// Limits and upstream protection
	ProbeTimeout     time.Duration `mapstructure:"probe_timeout"`
	RateLimitRPS     float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst   int           `mapstructure:"rate_limit_burst"`
	BreakerFailures  int           `mapstructure:"breaker_failures"`
	BreakerSuccesses int           `mapstructure:"breaker_successes"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
	GasLimit         uint64        `mapstructure:"gas_limit"`

	// OpenTelemetry endpoint for observability
	OtelEndpoint string `mapstructure:"otel_endpoint"`

	Chains types.ChainTable `mapstructure:"chains"`
}

// Cache backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

var defaults = map[string]interface{}{
	"port":                "3000",
	"cors_origin":         "*",
	"version":             "1.0.0",
	"lifi.api_url":        "https://li.quest/v1",
	"lifi.api_key":        "",
	"lifi.integrator":     "xbridge",
	"lifi.timeout":        "15s",
	"lifi.retry_max":      2,
	"quote_cache_ttl":     "30s",
	"quote_cache_backend": BackendMemory,
	"redis_url":           "",
	"token_cache_size":    512,
	"probe_timeout":       "5s",
	"rate_limit_rps":      10.0,
	"rate_limit_burst":    20,
	"breaker_failures":    5,
	"breaker_successes":   1,
	"breaker_cooldown":    "30s",
	"gas_limit":           3000000,
	"otel_endpoint":       "",
}

// legacyEnv lists unprefixed variable names still honoured for a key
var legacyEnv = map[string][]string{
	"port":          {"PORT"},
	"cors_origin":   {"CORS_ORIGIN"},
	"lifi.api_key":  {"LIFI_API_KEY"},
	"otel_endpoint": {"OTEL_EXPORTER_OTLP_ENDPOINT"},
}

// Load reads configuration from an optional .env file, the environment and an
// optional config file at path (yaml, json or toml). An empty path falls back
// to XBRIDGE_CONFIG. A chains section in the file replaces the default table.
func Load(path string) (Config, error) {
	// the .env file is optional; the environment may come from the process manager
	_ = godotenv.Load()

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if path == "" {
		path = GetEnvOrDefault(EnvPrefix+"_CONFIG", "")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if len(cfg.Chains) == 0 {
		cfg.Chains = DefaultChains()
	}
	cfg.Chains = normalizeChains(cfg.Chains)
	cfg.QuoteCacheBackend = strings.ToLower(strings.TrimSpace(cfg.QuoteCacheBackend))

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("failed to verify config: %w", err)
	}
	return cfg, nil
}

// bindEnvKeys binds every key to its prefixed variable, followed by any
// legacy names, so Unmarshal sees environment values.
func bindEnvKeys(v *viper.Viper) {
	for k := range defaults {
		env := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(k, ".", "_"))
		_ = v.BindEnv(append([]string{k, env}, legacyEnv[k]...)...)
	}
}

// Validate reports every invalid setting
func (c Config) Validate() error {
	var problems []error
	if c.Port == "" {
		problems = append(problems, errors.New("port is required"))
	}
	switch c.QuoteCacheBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			problems = append(problems, errors.New("redis_url is required for the redis quote cache"))
		}
	default:
		problems = append(problems, fmt.Errorf("unknown quote_cache_backend %q", c.QuoteCacheBackend))
	}
	if c.QuoteCacheTTL <= 0 {
		problems = append(problems, errors.New("quote_cache_ttl must be positive"))
	}
	if c.TokenCacheSize <= 0 {
		problems = append(problems, errors.New("token_cache_size must be positive"))
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		problems = append(problems, errors.New("rate limit must be positive"))
	}
	if c.LiFi.Integrator == "" {
		problems = append(problems, errors.New("lifi.integrator is required"))
	}
	if len(c.Chains) == 0 {
		problems = append(problems, errors.New("no chains configured"))
	}
	return errors.Join(problems...)
}

// DefaultChains builds the Ethereum, Polygon and Arbitrum table. An env RPC
// URL is tried before the public endpoints.
func DefaultChains() types.ChainTable {
	return types.ChainTable{
		"1": {
			Name:           "Ethereum",
			RPCURLs:        []string{os.Getenv("MAINNET_RPC_URL"), "https://eth-mainnet.g.alchemy.com/v2/demo", "https://cloudflare-eth.com"},
			BlockExplorer:  "https://etherscan.io",
			NativeCurrency: types.NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18},
			Contracts:      contractsFromEnv("MAINNET"),
		},
		"137": {
			Name:           "Polygon",
			RPCURLs:        []string{os.Getenv("POLYGON_RPC_URL"), "https://polygon-rpc.com"},
			BlockExplorer:  "https://polygonscan.com",
			NativeCurrency: types.NativeCurrency{Name: "MATIC", Symbol: "MATIC", Decimals: 18},
			Contracts:      contractsFromEnv("POLYGON"),
		},
		"42161": {
			Name:           "Arbitrum",
			RPCURLs:        []string{os.Getenv("ARBITRUM_RPC_URL"), "https://arb1.arbitrum.io/rpc"},
			BlockExplorer:  "https://arbiscan.io",
			NativeCurrency: types.NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18},
			Contracts:      contractsFromEnv("ARBITRUM"),
		},
	}
}

func contractsFromEnv(prefix string) types.ContractAddresses {
	return types.ContractAddresses{
		LiFiDiamond:   GetEnvOrDefault(prefix+"_LIFI_DIAMOND_ADDRESS", DefaultDiamondAddress),
		LiFiAdapter:   GetEnvOrDefault(prefix+"_LIFI_ADAPTER_ADDRESS", ""),
		FeeCollector:  GetEnvOrDefault(prefix+"_FEE_COLLECTOR_ADDRESS", ""),
		TokenRegistry: GetEnvOrDefault(prefix+"_TOKEN_REGISTRY_ADDRESS", ""),
	}
}

// normalizeChains sets each chain's ID from its key and drops blank RPC URLs
func normalizeChains(in types.ChainTable) types.ChainTable {
	out := make(types.ChainTable, len(in))
	for id, c := range in {
		c.ID = id
		urls := make([]string, 0, len(c.RPCURLs))
		for _, u := range c.RPCURLs {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
		c.RPCURLs = urls
		out[id] = c
	}
	return out
}

// GetEnv retrieves an environment variable and whether it exists
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
