// Package config handles application configuration.
//
// Settings are layered: built-in defaults, then the key = value config
// file in the data directory, then command-line flags. The result is
// checked by Validate before any component is built.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/stampchain-io/BTCStampsExplorer-sub010/pkg/script"
)

// NetworkType identifies the Bitcoin network addresses are decoded for.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
	Signet  NetworkType = "signet"
	Regtest NetworkType = "regtest"
)

// Config holds the runtime configuration of the fee planner.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Upstream Bitcoin node
	Node NodeConfig

	// Proxy is a SOCKS5 proxy (host:port) for all outbound HTTP.
	Proxy string `conf:"proxy"`

	// Price and fee-rate oracles
	Oracle OracleConfig

	// Quote cache
	Cache CacheConfig

	// Local JSON-RPC server
	Server ServerConfig

	// Prometheus listener
	Metrics MetricsConfig

	// Logging
	Log LogConfig
}

// NodeConfig holds the upstream JSON-RPC node settings.
type NodeConfig struct {
	Endpoint    string        `conf:"rpc.endpoint"`
	Credential  string        `conf:"rpc.credential"` // user:pass or bearer token
	FallbackURL string        `conf:"rpc.fallback"`   // read-only raw transaction API
	MaxRetries  uint          `conf:"rpc.maxretries"` // attempts per call
	RetryDelay  time.Duration `conf:"rpc.retrydelay"` // milliseconds in the file
	Timeout     time.Duration `conf:"rpc.timeout"`    // milliseconds in the file
}

// OracleConfig holds provider lists and caching for the oracles.
type OracleConfig struct {
	PriceProviders []string      `conf:"oracle.price.providers"`
	FeeProviders   []string      `conf:"oracle.fee.providers"`
	Rotation       bool          `conf:"oracle.rotation"`
	CacheTTL       time.Duration `conf:"oracle.cachettl"` // seconds in the file
	PriceFallback  float64       `conf:"oracle.price.fallback"`
	FeeFallback    float64       `conf:"oracle.fee.fallback"` // sat/vB
}

// CacheConfig selects the quote cache backend.
type CacheConfig struct {
	Backend  string `conf:"cache.backend"` // memory, badger or redis
	RedisURL string `conf:"cache.redis"`
}

// ServerConfig holds local JSON-RPC server settings.
type ServerConfig struct {
	Enabled     bool     `conf:"server.enabled"`
	Addr        string   `conf:"server.addr"`
	Port        int      `conf:"server.port"`
	AllowedIPs  []string `conf:"server.allowed"`
	CORSOrigins []string `conf:"server.cors"` // Allowed CORS origins ("*" = all).
}

// MetricsConfig holds the Prometheus listener settings.
type MetricsConfig struct {
	Addr string `conf:"metrics.addr"` // empty disables the listener
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// Params returns the chain parameters for the configured network.
func (c *Config) Params() (*chaincfg.Params, error) {
	return script.NetParams(string(c.Network))
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.feeplanner
//	macOS:   ~/Library/Application Support/FeePlanner
//	Windows: %APPDATA%\FeePlanner
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".feeplanner"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "FeePlanner")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "FeePlanner")
		}
		return filepath.Join(home, "AppData", "Roaming", "FeePlanner")
	default:
		return filepath.Join(home, ".feeplanner")
	}
}

// NetworkDataDir returns the network-specific data directory.
func (c *Config) NetworkDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// CacheDir returns the badger cache directory.
func (c *Config) CacheDir() string {
	return filepath.Join(c.NetworkDataDir(), "cache")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "feeplanner.conf")
}
