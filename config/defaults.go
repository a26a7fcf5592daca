package config

import (
	"time"

	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/cache"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/oracle"
)

// Default values shared by every network.
const (
	DefaultServerPort    = 8645
	DefaultMaxRetries    = 3
	DefaultRetryDelay    = time.Second
	DefaultTimeout       = 10 * time.Second
	DefaultCacheTTL      = 60 * time.Second
	DefaultFeeFallback   = 10
	DefaultRedisURL      = "redis://127.0.0.1:6379/0"
	DefaultMainnetRawTxs = "https://blockchain.info"
)

// DefaultMainnet returns the default configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		Node: NodeConfig{
			FallbackURL: DefaultMainnetRawTxs,
			MaxRetries:  DefaultMaxRetries,
			RetryDelay:  DefaultRetryDelay,
			Timeout:     DefaultTimeout,
		},
		Oracle: OracleConfig{
			PriceProviders: []string{oracle.SourceCoinGecko, oracle.SourceBinance, oracle.SourceKraken},
			FeeProviders:   []string{oracle.SourceMempool, oracle.SourceBlockstream, oracle.SourceNode},
			Rotation:       true,
			CacheTTL:       DefaultCacheTTL,
			FeeFallback:    DefaultFeeFallback,
		},
		Cache: CacheConfig{
			Backend:  cache.BackendMemory,
			RedisURL: DefaultRedisURL,
		},
		Server: ServerConfig{
			Enabled:    true,
			Addr:       "127.0.0.1",
			Port:       DefaultServerPort,
			AllowedIPs: []string{"127.0.0.1"},
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// Default returns the default configuration for the given network. The
// raw transaction fallback only serves mainnet, so other networks start
// without one.
func Default(network NetworkType) *Config {
	cfg := DefaultMainnet()
	if network != Mainnet && network != "" {
		cfg.Network = network
		cfg.Node.FallbackURL = ""
	}
	return cfg
}
