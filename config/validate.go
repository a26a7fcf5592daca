package config

import (
	"fmt"
	"strings"

	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/cache"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/oracle"
)

var (
	knownPriceProviders = []string{oracle.SourceCoinGecko, oracle.SourceBinance, oracle.SourceKraken}
	knownFeeProviders   = []string{oracle.SourceMempool, oracle.SourceBlockstream, oracle.SourceNode}
)

// Validate checks the configuration for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	switch cfg.Network {
	case Mainnet, Testnet, Signet, Regtest:
	default:
		return fmt.Errorf("network must be one of %q, %q, %q or %q", Mainnet, Testnet, Signet, Regtest)
	}
	if cfg.Node.MaxRetries == 0 {
		return fmt.Errorf("rpc.maxretries must be at least 1")
	}
	if cfg.Node.Endpoint != "" && !isHTTPURL(cfg.Node.Endpoint) {
		return fmt.Errorf("rpc.endpoint must be an http(s) URL")
	}
	if cfg.Node.FallbackURL != "" && !isHTTPURL(cfg.Node.FallbackURL) {
		return fmt.Errorf("rpc.fallback must be an http(s) URL")
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in range [0, 65535]")
	}

	if err := validateProviders(cfg.Oracle.PriceProviders, knownPriceProviders, "oracle.price.providers"); err != nil {
		return err
	}
	if err := validateProviders(cfg.Oracle.FeeProviders, knownFeeProviders, "oracle.fee.providers"); err != nil {
		return err
	}
	if cfg.Oracle.PriceFallback < 0 {
		return fmt.Errorf("oracle.price.fallback must not be negative")
	}
	if cfg.Oracle.FeeFallback < 0 {
		return fmt.Errorf("oracle.fee.fallback must not be negative")
	}
	if cfg.Oracle.CacheTTL < 0 {
		return fmt.Errorf("oracle.cachettl must not be negative")
	}

	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = cache.BackendMemory
	}
	switch cfg.Cache.Backend {
	case cache.BackendMemory, cache.BackendBadger:
	case cache.BackendRedis:
		if cfg.Cache.RedisURL == "" {
			return fmt.Errorf("cache.backend=redis requires cache.redis")
		}
	default:
		return fmt.Errorf("cache.backend must be %s, %s or %s", cache.BackendMemory, cache.BackendBadger, cache.BackendRedis)
	}

	return nil
}

// validateProviders normalizes names in place and rejects unknown,
// duplicate or missing entries.
func validateProviders(names, known []string, field string) error {
	if len(names) == 0 {
		return fmt.Errorf("%s must list at least one provider", field)
	}
	seen := make(map[string]struct{}, len(names))
	for i, name := range names {
		s := strings.ToLower(strings.TrimSpace(name))
		if !contains(known, s) {
			return fmt.Errorf("%s[%d]: unknown provider %q (known: %s)", field, i, name, strings.Join(known, ", "))
		}
		if _, ok := seen[s]; ok {
			return fmt.Errorf("%s has duplicate provider %q", field, s)
		}
		seen[s] = struct{}{}
		names[i] = s
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
