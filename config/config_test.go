package config

import (
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default(Mainnet)
	if err := Validate(cfg); err != nil {
		t.Fatalf("default mainnet config invalid: %v", err)
	}
	if cfg.Server.Port != 8645 {
		t.Errorf("server port = %d, want 8645", cfg.Server.Port)
	}
	if cfg.Node.MaxRetries != 3 || cfg.Node.RetryDelay != time.Second || cfg.Node.Timeout != 10*time.Second {
		t.Errorf("node defaults = %+v", cfg.Node)
	}
	if cfg.Node.FallbackURL != DefaultMainnetRawTxs {
		t.Errorf("mainnet fallback = %q", cfg.Node.FallbackURL)
	}
	if !cfg.Oracle.Rotation || cfg.Oracle.CacheTTL != time.Minute {
		t.Errorf("oracle defaults = %+v", cfg.Oracle)
	}
	if cfg.Oracle.PriceFallback != 0 || cfg.Oracle.FeeFallback != 10 {
		t.Errorf("fallback values = %v / %v", cfg.Oracle.PriceFallback, cfg.Oracle.FeeFallback)
	}

	test := Default(Testnet)
	if test.Network != Testnet {
		t.Errorf("network = %s, want testnet", test.Network)
	}
	if test.Node.FallbackURL != "" {
		t.Errorf("testnet fallback = %q, want none", test.Node.FallbackURL)
	}
	if err := Validate(test); err != nil {
		t.Errorf("default testnet config invalid: %v", err)
	}
}

func TestDefault_SharedSlicesNotAliased(t *testing.T) {
	a := Default(Mainnet)
	a.Oracle.PriceProviders[0] = "changed"
	if b := Default(Mainnet); b.Oracle.PriceProviders[0] == "changed" {
		t.Error("defaults share provider slices between calls")
	}
}

func TestParams(t *testing.T) {
	for _, n := range []NetworkType{Mainnet, Testnet, Signet, Regtest} {
		cfg := Default(n)
		params, err := cfg.Params()
		if err != nil {
			t.Fatalf("Params(%s): %v", n, err)
		}
		if params == nil {
			t.Fatalf("Params(%s) = nil", n)
		}
	}
	cfg := Default(Mainnet)
	cfg.Network = "litecoin"
	if _, err := cfg.Params(); err == nil {
		t.Error("expected error for unknown network")
	}
}

func TestDirectories(t *testing.T) {
	cfg := Default(Signet)
	cfg.DataDir = "/data"
	if got := cfg.NetworkDataDir(); got != filepath.Join("/data", "signet") {
		t.Errorf("NetworkDataDir = %q", got)
	}
	if got := cfg.CacheDir(); got != filepath.Join("/data", "signet", "cache") {
		t.Errorf("CacheDir = %q", got)
	}
	if got := cfg.ConfigFile(); got != filepath.Join("/data", "feeplanner.conf") {
		t.Errorf("ConfigFile = %q", got)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feeplanner.conf")
	content := `# comment
network = testnet

rpc.endpoint = "http://127.0.0.1:18332"
rpc.credential = 'user:pass'
rpc.maxretries = 5
rpc.retrydelay = 250
rpc.timeout = 3000
oracle.price.providers = kraken, binance
oracle.rotation = off
oracle.cachettl = 30
oracle.fee.fallback = 2.5
cache.backend = Badger
server.port = 9000
server.allowed = 10.0.0.0/8,127.0.0.1
metrics.addr = :9645
log.json = yes
unknown.key = ignored
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	values, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if values["rpc.endpoint"] != "http://127.0.0.1:18332" {
		t.Errorf("quotes not stripped: %q", values["rpc.endpoint"])
	}

	cfg := Default(Mainnet)
	if err := ApplyFileConfig(cfg, values); err != nil {
		t.Fatalf("ApplyFileConfig: %v", err)
	}

	if cfg.Network != Testnet {
		t.Errorf("network = %s", cfg.Network)
	}
	if cfg.Node.Credential != "user:pass" || cfg.Node.MaxRetries != 5 {
		t.Errorf("node = %+v", cfg.Node)
	}
	if cfg.Node.RetryDelay != 250*time.Millisecond || cfg.Node.Timeout != 3*time.Second {
		t.Errorf("node durations = %v / %v", cfg.Node.RetryDelay, cfg.Node.Timeout)
	}
	if !reflect.DeepEqual(cfg.Oracle.PriceProviders, []string{"kraken", "binance"}) {
		t.Errorf("price providers = %v", cfg.Oracle.PriceProviders)
	}
	if cfg.Oracle.Rotation {
		t.Error("rotation should be off")
	}
	if cfg.Oracle.CacheTTL != 30*time.Second || cfg.Oracle.FeeFallback != 2.5 {
		t.Errorf("oracle = %+v", cfg.Oracle)
	}
	if cfg.Cache.Backend != "badger" {
		t.Errorf("cache backend = %q", cfg.Cache.Backend)
	}
	if cfg.Server.Port != 9000 || len(cfg.Server.AllowedIPs) != 2 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Metrics.Addr != ":9645" || !cfg.Log.JSON {
		t.Errorf("metrics/log = %+v / %+v", cfg.Metrics, cfg.Log)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	values, err := LoadFile(filepath.Join(t.TempDir(), "nope.conf"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("values = %v, want empty", values)
	}
}

func TestLoadFile_BadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.conf")
	os.WriteFile(path, []byte("network = mainnet\njust-a-word\n"), 0644)
	if _, err := LoadFile(path); err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error = %v, want line 2 failure", err)
	}
}

func TestApplyFileConfig_BadNumbers(t *testing.T) {
	for _, kv := range [][2]string{
		{"rpc.maxretries", "-1"},
		{"rpc.maxretries", "lots"},
		{"rpc.retrydelay", "-5"},
		{"rpc.timeout", "soon"},
		{"oracle.cachettl", "1m"},
		{"oracle.price.fallback", "free"},
		{"server.port", "http"},
	} {
		cfg := Default(Mainnet)
		if err := ApplyFileConfig(cfg, map[string]string{kv[0]: kv[1]}); err == nil {
			t.Errorf("%s = %q: expected error", kv[0], kv[1])
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"unknown network", func(c *Config) { c.Network = "litecoin" }, "network"},
		{"zero retries", func(c *Config) { c.Node.MaxRetries = 0 }, "rpc.maxretries"},
		{"bad endpoint", func(c *Config) { c.Node.Endpoint = "127.0.0.1:8332" }, "rpc.endpoint"},
		{"bad fallback", func(c *Config) { c.Node.FallbackURL = "ftp://x" }, "rpc.fallback"},
		{"port range", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"empty price providers", func(c *Config) { c.Oracle.PriceProviders = nil }, "oracle.price.providers"},
		{"unknown price provider", func(c *Config) { c.Oracle.PriceProviders = []string{"bitstamp"} }, "bitstamp"},
		{"duplicate fee provider", func(c *Config) { c.Oracle.FeeProviders = []string{"mempool", "Mempool"} }, "duplicate"},
		{"price provider in fee list", func(c *Config) { c.Oracle.FeeProviders = []string{"kraken"} }, "oracle.fee.providers"},
		{"negative price fallback", func(c *Config) { c.Oracle.PriceFallback = -1 }, "oracle.price.fallback"},
		{"negative fee fallback", func(c *Config) { c.Oracle.FeeFallback = -0.5 }, "oracle.fee.fallback"},
		{"unknown cache", func(c *Config) { c.Cache.Backend = "memcached" }, "cache.backend"},
		{"redis without url", func(c *Config) { c.Cache.Backend = "redis"; c.Cache.RedisURL = "" }, "cache.redis"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(Mainnet)
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.errSub) {
				t.Errorf("error %q does not mention %q", err, tt.errSub)
			}
		})
	}
}

func TestValidate_NormalizesProviders(t *testing.T) {
	cfg := Default(Mainnet)
	cfg.Oracle.PriceProviders = []string{" Kraken ", "COINGECKO"}
	cfg.Cache.Backend = ""
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !reflect.DeepEqual(cfg.Oracle.PriceProviders, []string{"kraken", "coingecko"}) {
		t.Errorf("providers = %v", cfg.Oracle.PriceProviders)
	}
	if cfg.Cache.Backend != "memory" {
		t.Errorf("empty backend = %q, want memory", cfg.Cache.Backend)
	}
}

func TestValidate_Nil(t *testing.T) {
	if err := Validate(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestFlags(t *testing.T) {
	f, err := parseFlags([]string{
		"--network=regtest",
		"--rpc-endpoint=http://127.0.0.1:18443",
		"--rpc-max-retries=7",
		"--rpc-retry-delay=5",
		"--price-providers=binance",
		"--oracle-rotation=false",
		"--fee-fallback=0",
		"--cache=redis",
		"--server=false",
		"--server-cors=*",
		"--log-json",
	}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}

	cfg := Default(Mainnet)
	ApplyFlags(cfg, f)

	if cfg.Network != Regtest {
		t.Errorf("network = %s", cfg.Network)
	}
	if cfg.Node.Endpoint != "http://127.0.0.1:18443" || cfg.Node.MaxRetries != 7 {
		t.Errorf("node = %+v", cfg.Node)
	}
	if cfg.Node.RetryDelay != 5*time.Millisecond {
		t.Errorf("retry delay = %v", cfg.Node.RetryDelay)
	}
	if cfg.Node.Timeout != DefaultTimeout {
		t.Errorf("unset timeout flag changed timeout to %v", cfg.Node.Timeout)
	}
	if !reflect.DeepEqual(cfg.Oracle.PriceProviders, []string{"binance"}) {
		t.Errorf("price providers = %v", cfg.Oracle.PriceProviders)
	}
	if cfg.Oracle.Rotation {
		t.Error("rotation should be disabled by flag")
	}
	if cfg.Oracle.FeeFallback != 0 {
		t.Errorf("explicit zero fee fallback ignored: %v", cfg.Oracle.FeeFallback)
	}
	if cfg.Cache.Backend != "redis" || cfg.Server.Enabled {
		t.Errorf("cache/server = %+v / %+v", cfg.Cache, cfg.Server)
	}
	if !reflect.DeepEqual(cfg.Server.CORSOrigins, []string{"*"}) || !cfg.Log.JSON {
		t.Errorf("cors/log = %v / %+v", cfg.Server.CORSOrigins, cfg.Log)
	}
}

func TestFlags_UnsetBoolsKeepConfig(t *testing.T) {
	f, err := parseFlags(nil, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	cfg := Default(Mainnet)
	cfg.Server.Enabled = false
	cfg.Oracle.Rotation = false
	cfg.Log.JSON = true
	ApplyFlags(cfg, f)
	if cfg.Server.Enabled || cfg.Oracle.Rotation || !cfg.Log.JSON {
		t.Errorf("unset flags overrode config: server=%v rotation=%v json=%v",
			cfg.Server.Enabled, cfg.Oracle.Rotation, cfg.Log.JSON)
	}
}

func TestFlags_Errors(t *testing.T) {
	if _, err := parseFlags([]string{"--no-such-flag"}, io.Discard); err == nil {
		t.Error("expected error for unknown flag")
	}
	if _, err := parseFlags([]string{"--log-json", "extra", "--server=false"}, io.Discard); err == nil {
		t.Error("expected error for flag after positional argument")
	}
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()

	// First start writes the default config.
	cfg, err := load(&Flags{DataDir: dir})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "feeplanner.conf")); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if cfg.Server.Port != DefaultServerPort {
		t.Errorf("port = %d", cfg.Server.Port)
	}

	// The file overrides defaults and flags override the file.
	conf := filepath.Join(dir, "custom.conf")
	os.WriteFile(conf, []byte("server.port = 9100\nlog.level = debug\n"), 0644)
	cfg, err = load(&Flags{DataDir: dir, Config: conf, LogLevel: "warn"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("file port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log level = %q, want flag value warn", cfg.Log.Level)
	}
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	conf := filepath.Join(dir, "bad.conf")
	os.WriteFile(conf, []byte("cache.backend = floppy\n"), 0644)
	if _, err := load(&Flags{DataDir: dir, Config: conf}); err == nil {
		t.Error("expected validation error")
	}
}

func TestWriteDefaultConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feeplanner.conf")
	if err := WriteDefaultConfig(path, Mainnet); err != nil {
		t.Fatalf("WriteDefaultConfig: %v", err)
	}
	values, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	cfg := Default(Mainnet)
	if err := ApplyFileConfig(cfg, values); err != nil {
		t.Fatalf("ApplyFileConfig: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default(Mainnet)) {
		t.Errorf("written defaults do not round-trip:\n got %+v\nwant %+v", cfg, Default(Mainnet))
	}
}
