package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Version is reported by --version.
const Version = "0.1.0"

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	Network string
	DataDir string
	Config  string
	Proxy   string

	// Upstream node
	RPCEndpoint   string
	RPCCredential string
	RPCFallback   string
	RPCMaxRetries uint
	RPCRetryDelay int // milliseconds
	RPCTimeout    int // milliseconds

	// Oracles
	PriceProviders string
	FeeProviders   string
	OracleRotation bool
	OracleCacheTTL int // seconds
	PriceFallback  float64
	FeeFallback    float64

	// Cache
	Cache      string
	CacheRedis string

	// Server
	Server        bool
	ServerAddr    string
	ServerPort    int
	ServerAllowed string
	ServerCORS    string

	// Metrics
	MetricsAddr string

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args
	Args []string

	// Explicitly-set flags whose zero value is meaningful.
	SetServer         bool
	SetOracleRotation bool
	SetPriceFallback  bool
	SetFeeFallback    bool
	SetLogJSON        bool
}

// ParseFlags parses the process command line. It exits on parse errors.
func ParseFlags() *Flags {
	f, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return f
}

// parseFlags parses args into Flags. Errors are reported on errOut.
func parseFlags(args []string, errOut io.Writer) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("feeplannerd", flag.ContinueOnError)
	fs.SetOutput(errOut)

	// Commands
	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")
	fs.BoolVar(&f.Version, "v", false, "Show version (shorthand)")

	// Core
	fs.StringVar(&f.Network, "network", "", "Network type (mainnet, testnet, signet, regtest)")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")
	fs.StringVar(&f.Proxy, "proxy", "", "SOCKS5 proxy for outbound HTTP (host:port)")

	// Upstream node
	fs.StringVar(&f.RPCEndpoint, "rpc-endpoint", "", "Bitcoin node JSON-RPC URL")
	fs.StringVar(&f.RPCCredential, "rpc-credential", "", "Node credential (user:pass or bearer token)")
	fs.StringVar(&f.RPCFallback, "rpc-fallback", "", "Raw transaction fallback API base URL")
	fs.UintVar(&f.RPCMaxRetries, "rpc-max-retries", 0, "Attempts per node call")
	fs.IntVar(&f.RPCRetryDelay, "rpc-retry-delay", 0, "Delay between node attempts in milliseconds")
	fs.IntVar(&f.RPCTimeout, "rpc-timeout", 0, "Per-attempt node timeout in milliseconds")

	// Oracles
	fs.StringVar(&f.PriceProviders, "price-providers", "", "Ordered price providers (comma-separated)")
	fs.StringVar(&f.FeeProviders, "fee-providers", "", "Ordered fee-rate providers (comma-separated)")
	fs.BoolVar(&f.OracleRotation, "oracle-rotation", true, "Rotate the starting provider")
	fs.IntVar(&f.OracleCacheTTL, "oracle-cache-ttl", 0, "Cached quote lifetime in seconds")
	fs.Float64Var(&f.PriceFallback, "price-fallback", 0, "Static price when every provider fails")
	fs.Float64Var(&f.FeeFallback, "fee-fallback", 0, "Static fee rate (sat/vB) when every provider fails")

	// Cache
	fs.StringVar(&f.Cache, "cache", "", "Cache backend (memory, badger, redis)")
	fs.StringVar(&f.CacheRedis, "cache-redis", "", "Redis URL for the redis backend")

	// Server
	fs.BoolVar(&f.Server, "server", true, "Enable the JSON-RPC server")
	fs.StringVar(&f.ServerAddr, "server-addr", "", "JSON-RPC listen address")
	fs.IntVar(&f.ServerPort, "server-port", 0, "JSON-RPC listen port")
	fs.StringVar(&f.ServerAllowed, "server-allowed", "", "Allowed IPs for JSON-RPC (comma-separated)")
	fs.StringVar(&f.ServerCORS, "server-cors", "", "Allowed CORS origins (comma-separated)")

	// Metrics
	fs.StringVar(&f.MetricsAddr, "metrics-addr", "", "Prometheus listen address (empty disables)")

	// Logging
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	// Custom usage
	fs.Usage = func() {
		printUsage(errOut)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	f.SetServer = isFlagSet(fs, "server")
	f.SetOracleRotation = isFlagSet(fs, "oracle-rotation")
	f.SetPriceFallback = isFlagSet(fs, "price-fallback")
	f.SetFeeFallback = isFlagSet(fs, "fee-fallback")
	f.SetLogJSON = isFlagSet(fs, "log-json")

	f.Args = fs.Args()

	// Detect unparsed flags caused by positional arguments stopping the parser.
	for _, arg := range f.Args {
		if strings.HasPrefix(arg, "-") {
			return nil, fmt.Errorf("flag %q was not parsed (positional argument stopped parsing)", arg)
		}
	}

	return f, nil
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) {
	// Core
	if f.Network != "" {
		cfg.Network = NetworkType(strings.ToLower(f.Network))
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}
	if f.Proxy != "" {
		cfg.Proxy = f.Proxy
	}

	// Upstream node
	if f.RPCEndpoint != "" {
		cfg.Node.Endpoint = f.RPCEndpoint
	}
	if f.RPCCredential != "" {
		cfg.Node.Credential = f.RPCCredential
	}
	if f.RPCFallback != "" {
		cfg.Node.FallbackURL = f.RPCFallback
	}
	if f.RPCMaxRetries != 0 {
		cfg.Node.MaxRetries = f.RPCMaxRetries
	}
	if f.RPCRetryDelay > 0 {
		cfg.Node.RetryDelay = time.Duration(f.RPCRetryDelay) * time.Millisecond
	}
	if f.RPCTimeout > 0 {
		cfg.Node.Timeout = time.Duration(f.RPCTimeout) * time.Millisecond
	}

	// Oracles
	if f.PriceProviders != "" {
		cfg.Oracle.PriceProviders = parseStringList(f.PriceProviders)
	}
	if f.FeeProviders != "" {
		cfg.Oracle.FeeProviders = parseStringList(f.FeeProviders)
	}
	if f.SetOracleRotation {
		cfg.Oracle.Rotation = f.OracleRotation
	}
	if f.OracleCacheTTL > 0 {
		cfg.Oracle.CacheTTL = time.Duration(f.OracleCacheTTL) * time.Second
	}
	if f.SetPriceFallback {
		cfg.Oracle.PriceFallback = f.PriceFallback
	}
	if f.SetFeeFallback {
		cfg.Oracle.FeeFallback = f.FeeFallback
	}

	// Cache
	if f.Cache != "" {
		cfg.Cache.Backend = strings.ToLower(f.Cache)
	}
	if f.CacheRedis != "" {
		cfg.Cache.RedisURL = f.CacheRedis
	}

	// Server
	if f.SetServer {
		cfg.Server.Enabled = f.Server
	}
	if f.ServerAddr != "" {
		cfg.Server.Addr = f.ServerAddr
	}
	if f.ServerPort != 0 {
		cfg.Server.Port = f.ServerPort
	}
	if f.ServerAllowed != "" {
		cfg.Server.AllowedIPs = parseStringList(f.ServerAllowed)
	}
	if f.ServerCORS != "" {
		cfg.Server.CORSOrigins = parseStringList(f.ServerCORS)
	}

	// Metrics
	if f.MetricsAddr != "" {
		cfg.Metrics.Addr = f.MetricsAddr
	}

	// Logging
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func printUsage(w io.Writer) {
	usage := `Fee Planner - Bitcoin fee estimation, UTXO resolution and price oracle

Usage:
  feeplannerd [options]
  feeplannerd --help

Commands:
  --help, -h      Show this help message
  --version, -v   Show version information

Core Options:
  --network       Network: mainnet (default), testnet, signet or regtest
  --datadir       Data directory (default: ~/.feeplanner)
  --config, -c    Config file path (default: <datadir>/feeplanner.conf)
  --proxy         SOCKS5 proxy for all outbound HTTP (host:port)

Node Options:
  --rpc-endpoint      Bitcoin node JSON-RPC URL
  --rpc-credential    user:pass for basic auth, or a bearer token
  --rpc-fallback      Raw transaction API (mainnet: https://blockchain.info)
  --rpc-max-retries   Attempts per call (default: 3)
  --rpc-retry-delay   Delay between attempts in ms (default: 1000)
  --rpc-timeout       Per-attempt timeout in ms (default: 10000)

Oracle Options:
  --price-providers   Ordered price providers (default: coingecko,binance,kraken)
  --fee-providers     Ordered fee providers (default: mempool,blockstream,node)
  --oracle-rotation   Rotate the starting provider (default: true)
  --oracle-cache-ttl  Cached quote lifetime in seconds (default: 60)
  --price-fallback    Static price when every provider fails (default: 0)
  --fee-fallback      Static fee rate when every provider fails (default: 10)

Cache Options:
  --cache         Backend: memory (default), badger or redis
  --cache-redis   Redis URL (default: redis://127.0.0.1:6379/0)

Server Options:
  --server          Enable the JSON-RPC server (default: true)
  --server-addr     Listen address (default: 127.0.0.1)
  --server-port     Listen port (default: 8645)
  --server-allowed  Allowed IPs or CIDRs (comma-separated)
  --server-cors     Allowed CORS origins (comma-separated)

Metrics Options:
  --metrics-addr  Prometheus listen address (default: disabled)

Logging Options:
  --log-level     Log level: debug, info, warn, error (default: info)
  --log-file      Log file path (default: stdout)
  --log-json      Output logs as JSON

Examples:
  # Serve fee math and oracles only
  feeplannerd

  # Resolve UTXOs through a local node
  feeplannerd --rpc-endpoint=http://127.0.0.1:8332 --rpc-credential=user:pass

  # Share cached quotes between processes
  feeplannerd --cache=redis --cache-redis=redis://cache:6379/0
`
	fmt.Fprint(w, usage)
}

// Load loads configuration with the following precedence:
// 1. Default values
// 2. Auto-create data dirs + default config (idempotent)
// 3. Config file
// 4. Command-line flags
func Load() (*Config, *Flags, error) {
	flags := ParseFlags()

	// Handle help/version
	if flags.Help {
		printUsage(os.Stdout)
		os.Exit(0)
	}
	if flags.Version {
		fmt.Println("feeplannerd version " + Version)
		os.Exit(0)
	}

	cfg, err := load(flags)
	if err != nil {
		return nil, nil, err
	}
	return cfg, flags, nil
}

// load builds a Config from defaults, the config file and flags.
func load(flags *Flags) (*Config, error) {
	// Determine network first (needed for defaults)
	cfg := Default(NetworkType(strings.ToLower(flags.Network)))

	// Override datadir if specified
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	// Auto-create data directories and default config on first start.
	if err := EnsureDataDirs(cfg); err != nil {
		return nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	// Determine config file path
	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}

	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, fmt.Errorf("applying config file: %w", err)
	}

	// Apply flags (highest precedence)
	ApplyFlags(cfg, flags)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// EnsureDataDirs creates the data directory structure and a default config
// file if they don't already exist. Safe to call on every startup.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.NetworkDataDir(),
		cfg.LogsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	// Create default config if it doesn't exist.
	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath, cfg.Network); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}

	return nil
}
