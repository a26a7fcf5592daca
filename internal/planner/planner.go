// Package planner wires the fee planner's components together so they can
// be embedded in any binary.
package planner

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/rs/zerolog"

	"github.com/stampchain-io/BTCStampsExplorer-sub010/config"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/cache"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/httpx"
	klog "github.com/stampchain-io/BTCStampsExplorer-sub010/internal/log"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/metrics"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/oracle"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/retry"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/rpc"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/rpcclient"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/utxo"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/pkg/tx"
)

const (
	// providerTimeout bounds a single price or fee API request.
	providerTimeout = 10 * time.Second
	// providerAttempts is the number of tries per provider before moving on.
	providerAttempts = 2
	providerDelay    = 500 * time.Millisecond
)

// Planner is a fully-initialized fee planner.
type Planner struct {
	cfg    *config.Config
	logger zerolog.Logger
	params *chaincfg.Params

	// Upstream node, nil when no endpoint is configured.
	node     *rpcclient.Client
	resolver *utxo.Resolver

	// Oracles
	store  cache.Service
	loader *cache.Loader
	prices *oracle.Oracle
	fees   *oracle.FeeRates

	// Servers
	rpcServer     *rpc.Server
	metricsServer *http.Server
	metricsLn     net.Listener
}

// New creates and initializes a Planner. It builds every component but
// does not bind any listener. Call Start for that.
func New(cfg *config.Config) (*Planner, error) {
	// ── 1. Init logger ──────────────────────────────────────────────
	logFile := expandHome(cfg.Log.File)
	if logFile == "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return nil, fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = filepath.Join(logsDir, "feeplanner.log")
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := klog.WithComponent("planner")
	tx.SetLogger(klog.Fee)

	// ── 2. Network ──────────────────────────────────────────────────
	params, err := cfg.Params()
	if err != nil {
		return nil, err
	}
	logger.Info().
		Str("network", string(cfg.Network)).
		Str("params", params.Name).
		Msg("Starting fee planner")

	p := &Planner{
		cfg:    cfg,
		logger: logger,
		params: params,
	}

	// ── 3. Outbound HTTP ────────────────────────────────────────────
	// Node calls carry their own per-attempt deadline, so only the
	// provider client gets a client-level timeout.
	proxy := cfg.Proxy
	nodeHTTP := httpx.NewClient(httpx.Options{Proxy: proxy})
	providerHTTP := httpx.NewClient(httpx.Options{Timeout: providerTimeout, Proxy: proxy})
	if proxy != "" {
		logger.Info().Str("proxy", proxy).Msg("Routing outbound HTTP through SOCKS proxy")
	}

	// ── 4. Node client and UTXO resolver ────────────────────────────
	if cfg.Node.Endpoint != "" {
		p.node = rpcclient.New(rpcclient.Config{
			Endpoint:       cfg.Node.Endpoint,
			Credential:     cfg.Node.Credential,
			FallbackURL:    cfg.Node.FallbackURL,
			MaxRetries:     cfg.Node.MaxRetries,
			RetryDelay:     cfg.Node.RetryDelay,
			RequestTimeout: cfg.Node.Timeout,
		}, nodeHTTP)
		p.resolver = utxo.NewResolver(p.node, params)
		logger.Info().
			Str("endpoint", p.node.Endpoint()).
			Bool("fallback", cfg.Node.FallbackURL != "").
			Uint("max_retries", cfg.Node.MaxRetries).
			Msg("Node RPC configured")
	} else {
		logger.Warn().Msg("No rpc.endpoint configured, UTXO lookups disabled")
	}

	// ── 5. Cache ────────────────────────────────────────────────────
	store, err := cache.Open(cache.Options{
		Backend:  cfg.Cache.Backend,
		Dir:      cfg.CacheDir(),
		RedisURL: cfg.Cache.RedisURL,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", cfg.Cache.Backend, err)
	}
	p.store = store
	p.loader = cache.NewLoader(store)
	logger.Info().Str("backend", cfg.Cache.Backend).Dur("ttl", cfg.Oracle.CacheTTL).Msg("Quote cache opened")

	// ── 6. Oracles ──────────────────────────────────────────────────
	providerRetry := retry.Policy{MaxAttempts: providerAttempts, Delay: providerDelay}

	priceProviders, err := oracle.PriceProviders(cfg.Oracle.PriceProviders, providerHTTP)
	if err != nil {
		store.Close()
		return nil, err
	}
	p.prices = oracle.New(oracle.Config{
		Name:           "price",
		Providers:      priceProviders,
		Rotation:       cfg.Oracle.Rotation,
		StaticFallback: cfg.Oracle.PriceFallback,
		Cache:          p.loader,
		CacheTTL:       cfg.Oracle.CacheTTL,
		Retry:          providerRetry,
	})

	var estimator oracle.SmartFeeEstimator
	if p.node != nil {
		estimator = p.node
	}
	feeSources, err := oracle.FeeSources(cfg.Oracle.FeeProviders, providerHTTP, estimator)
	if err != nil {
		store.Close()
		return nil, err
	}
	if len(feeSources) == 0 {
		logger.Warn().
			Float64("fallback", cfg.Oracle.FeeFallback).
			Msg("No usable fee providers, fee_rate will report the static fallback")
	}
	p.fees = oracle.NewFeeRates(oracle.FeeRatesConfig{
		Sources:        feeSources,
		Rotation:       cfg.Oracle.Rotation,
		StaticFallback: cfg.Oracle.FeeFallback,
		Cache:          p.loader,
		CacheTTL:       cfg.Oracle.CacheTTL,
		Retry:          providerRetry,
	})
	logger.Info().
		Strs("price", p.prices.Sources()).
		Int("fee_sources", len(feeSources)).
		Bool("rotation", cfg.Oracle.Rotation).
		Msg("Oracles ready")

	// ── 7. JSON-RPC server ──────────────────────────────────────────
	if cfg.Server.Enabled {
		svc := rpc.Services{
			Prices: p.prices,
			Fees:   p.fees,
			Params: params,
		}
		if p.resolver != nil {
			svc.UTXOs = p.resolver
		}
		addr := net.JoinHostPort(cfg.Server.Addr, strconv.Itoa(cfg.Server.Port))
		p.rpcServer = rpc.New(addr, svc, cfg.Server)
	}

	// ── 8. Metrics listener ─────────────────────────────────────────
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		p.metricsServer = &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	return p, nil
}

// Start binds the RPC and metrics listeners.
func (p *Planner) Start() error {
	if p.rpcServer != nil {
		if err := p.rpcServer.Start(); err != nil {
			return err
		}
		p.logger.Info().Str("addr", p.rpcServer.Addr()).Msg("JSON-RPC server started")
	}

	if p.metricsServer != nil {
		ln, err := net.Listen("tcp", p.cfg.Metrics.Addr)
		if err != nil {
			return fmt.Errorf("metrics listen: %w", err)
		}
		p.metricsLn = ln
		go func() {
			if err := p.metricsServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				p.logger.Error().Err(err).Msg("Metrics server error")
			}
		}()
		p.logger.Info().Str("addr", ln.Addr().String()).Msg("Metrics server started")
	}
	return nil
}

// Stop shuts down listeners and closes the cache.
func (p *Planner) Stop() {
	if p.rpcServer != nil {
		if err := p.rpcServer.Stop(); err != nil {
			p.logger.Warn().Err(err).Msg("JSON-RPC server shutdown")
		}
	}
	if p.metricsServer != nil && p.metricsLn != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := p.metricsServer.Shutdown(ctx); err != nil {
			p.logger.Warn().Err(err).Msg("Metrics server shutdown")
		}
		cancel()
	}
	if p.store != nil {
		if err := p.store.Close(); err != nil {
			p.logger.Warn().Err(err).Msg("Cache close")
		}
	}

	p.logger.Info().Msg("Goodbye!")
}

// RPCAddr returns the address the JSON-RPC server is listening on.
func (p *Planner) RPCAddr() string {
	if p.rpcServer == nil {
		return ""
	}
	return p.rpcServer.Addr()
}

// MetricsAddr returns the address the metrics server is listening on.
func (p *Planner) MetricsAddr() string {
	if p.metricsLn == nil {
		return ""
	}
	return p.metricsLn.Addr().String()
}

// Params returns the configured chain parameters.
func (p *Planner) Params() *chaincfg.Params { return p.params }

// Prices returns the price oracle.
func (p *Planner) Prices() *oracle.Oracle { return p.prices }

// Fees returns the fee-rate service.
func (p *Planner) Fees() *oracle.FeeRates { return p.fees }

// Resolver returns the UTXO resolver, or nil without a node endpoint.
func (p *Planner) Resolver() *utxo.Resolver { return p.resolver }
