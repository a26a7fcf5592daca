package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// LoadFile loads configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key = value
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a config value by key.
func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	// Core
	case "network":
		cfg.Network = NetworkType(strings.ToLower(value))
	case "datadir":
		cfg.DataDir = value
	case "proxy":
		cfg.Proxy = value

	// Upstream node
	case "rpc.endpoint":
		cfg.Node.Endpoint = value
	case "rpc.credential":
		cfg.Node.Credential = value
	case "rpc.fallback":
		cfg.Node.FallbackURL = value
	case "rpc.maxretries":
		n, err := cast.ToUintE(value)
		if err != nil {
			return err
		}
		cfg.Node.MaxRetries = n
	case "rpc.retrydelay":
		d, err := parseMillis(value)
		if err != nil {
			return err
		}
		cfg.Node.RetryDelay = d
	case "rpc.timeout":
		d, err := parseMillis(value)
		if err != nil {
			return err
		}
		cfg.Node.Timeout = d

	// Oracles
	case "oracle.price.providers":
		cfg.Oracle.PriceProviders = parseStringList(value)
	case "oracle.fee.providers":
		cfg.Oracle.FeeProviders = parseStringList(value)
	case "oracle.rotation":
		cfg.Oracle.Rotation = parseBool(value)
	case "oracle.cachettl":
		n, err := cast.ToInt64E(value)
		if err != nil {
			return err
		}
		cfg.Oracle.CacheTTL = time.Duration(n) * time.Second
	case "oracle.price.fallback":
		f, err := cast.ToFloat64E(value)
		if err != nil {
			return err
		}
		cfg.Oracle.PriceFallback = f
	case "oracle.fee.fallback":
		f, err := cast.ToFloat64E(value)
		if err != nil {
			return err
		}
		cfg.Oracle.FeeFallback = f

	// Cache
	case "cache.backend", "cache":
		cfg.Cache.Backend = strings.ToLower(value)
	case "cache.redis":
		cfg.Cache.RedisURL = value

	// Server
	case "server.enabled", "server":
		cfg.Server.Enabled = parseBool(value)
	case "server.addr":
		cfg.Server.Addr = value
	case "server.port":
		port, err := cast.ToIntE(value)
		if err != nil {
			return err
		}
		cfg.Server.Port = port
	case "server.allowed":
		cfg.Server.AllowedIPs = parseStringList(value)
	case "server.cors":
		cfg.Server.CORSOrigins = parseStringList(value)

	// Metrics
	case "metrics.addr":
		cfg.Metrics.Addr = value

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored
	}
	return nil
}

// parseMillis parses a whole number of milliseconds.
func parseMillis(s string) (time.Duration, error) {
	n, err := cast.ToInt64E(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative duration %d", n)
	}
	return time.Duration(n) * time.Millisecond, nil
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// parseStringList parses a comma-separated list.
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// WriteDefaultConfig writes a default configuration file.
func WriteDefaultConfig(path string, network NetworkType) error {
	cfg := Default(network)
	content := `# Fee Planner Configuration

# Network: mainnet, testnet, signet or regtest
network = ` + string(cfg.Network) + `

# Data directory (default: ~/.feeplanner)
# datadir = ~/.feeplanner

# SOCKS5 proxy for all outbound HTTP (host:port)
# proxy = 127.0.0.1:9050

# ============================================================================
# Bitcoin Node
# ============================================================================

# JSON-RPC endpoint (required for UTXO lookups)
# rpc.endpoint = http://127.0.0.1:8332
# rpc.credential = user:pass

# Read-only raw transaction API used when the node fails
rpc.fallback = ` + cfg.Node.FallbackURL + `

rpc.maxretries = ` + fmt.Sprint(cfg.Node.MaxRetries) + `
# Delay between attempts and per-attempt timeout, in milliseconds
rpc.retrydelay = ` + fmt.Sprint(cfg.Node.RetryDelay.Milliseconds()) + `
rpc.timeout = ` + fmt.Sprint(cfg.Node.Timeout.Milliseconds()) + `

# ============================================================================
# Oracles
# ============================================================================

oracle.price.providers = ` + strings.Join(cfg.Oracle.PriceProviders, ",") + `
oracle.fee.providers = ` + strings.Join(cfg.Oracle.FeeProviders, ",") + `
oracle.rotation = true
# Cached quote lifetime in seconds
oracle.cachettl = ` + fmt.Sprint(int64(cfg.Oracle.CacheTTL/time.Second)) + `
# Values reported when every provider fails
oracle.price.fallback = 0
oracle.fee.fallback = ` + fmt.Sprint(cfg.Oracle.FeeFallback) + `

# ============================================================================
# Cache
# ============================================================================

# Backend: memory, badger or redis
cache.backend = ` + cfg.Cache.Backend + `
# cache.redis = ` + DefaultRedisURL + `

# ============================================================================
# JSON-RPC Server
# ============================================================================

server.enabled = true
server.addr = 127.0.0.1
server.port = ` + fmt.Sprint(cfg.Server.Port) + `
server.allowed = 127.0.0.1
# CORS allowed origins ("*" for all)
# server.cors = http://localhost:3000

# ============================================================================
# Metrics
# ============================================================================

# Prometheus listener (empty disables)
# metrics.addr = 127.0.0.1:9645

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}
