package oracle

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/spf13/cast"

	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/cache"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/httpx"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/retry"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/pkg/types"
)

// Default fee API base URLs.
const (
	MempoolURL     = "https://mempool.space/api"
	BlockstreamURL = "https://blockstream.info/api"
)

// Fee source names.
const (
	SourceMempool     = "mempool"
	SourceBlockstream = "blockstream"
	SourceNode        = "node"
)

// DefaultBlocks is the confirmation target used when none is given.
const DefaultBlocks = 6

// MaxBlocks is the longest target estimatesmartfee accepts.
const MaxBlocks = 1008

// satsPerVBPerBTCPerKvB converts BTC/kvB to sat/vB.
const satsPerVBPerBTCPerKvB = 1e5

// FeeSource reports a fee rate in sat/vB for a confirmation target.
type FeeSource interface {
	Name() string
	FeeRate(ctx context.Context, blocks int) (Result, error)
}

// Mempool reads mempool.space recommended fees.
type Mempool struct {
	BaseURL string
	Doer    httpx.Doer
}

func (s *Mempool) Name() string { return SourceMempool }

func (s *Mempool) FeeRate(ctx context.Context, blocks int) (Result, error) {
	var body map[string]any
	if err := httpx.GetJSON(ctx, s.Doer, baseURL(s.BaseURL, MempoolURL)+"/v1/fees/recommended", &body); err != nil {
		return Result{}, err
	}

	field := "economyFee"
	switch {
	case blocks <= 1:
		field = "fastestFee"
	case blocks <= 3:
		field = "halfHourFee"
	case blocks <= 6:
		field = "hourFee"
	}
	raw, ok := body[field]
	if !ok {
		return Result{}, fmt.Errorf("missing %s", field)
	}
	rate, err := cast.ToFloat64E(raw)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", field, err)
	}
	return Result{
		Value:      rate,
		Confidence: types.ConfidenceHigh,
		Details:    map[string]any{"field": field},
	}, nil
}

// Blockstream reads Esplora fee estimates, keyed by confirmation target.
type Blockstream struct {
	BaseURL string
	Doer    httpx.Doer
}

func (s *Blockstream) Name() string { return SourceBlockstream }

func (s *Blockstream) FeeRate(ctx context.Context, blocks int) (Result, error) {
	var body map[string]any
	if err := httpx.GetJSON(ctx, s.Doer, baseURL(s.BaseURL, BlockstreamURL)+"/fee-estimates", &body); err != nil {
		return Result{}, err
	}

	targets := make([]int, 0, len(body))
	for k := range body {
		if n, err := strconv.Atoi(k); err == nil {
			targets = append(targets, n)
		}
	}
	if len(targets) == 0 {
		return Result{}, fmt.Errorf("no fee estimates")
	}
	sort.Ints(targets)

	// Nearest target at or above the requested one, else the slowest.
	target := targets[len(targets)-1]
	for _, n := range targets {
		if n >= blocks {
			target = n
			break
		}
	}
	rate, err := cast.ToFloat64E(body[strconv.Itoa(target)])
	if err != nil {
		return Result{}, fmt.Errorf("target %d: %w", target, err)
	}
	confidence := types.ConfidenceHigh
	if target != blocks {
		confidence = types.ConfidenceMedium
	}
	return Result{
		Value:      rate,
		Confidence: confidence,
		Details:    map[string]any{"target": target},
	}, nil
}

// SmartFeeEstimator is satisfied by *rpcclient.Client.
type SmartFeeEstimator interface {
	EstimateSmartFee(ctx context.Context, blocks int64) (*btcjson.EstimateSmartFeeResult, error)
}

// Node asks the connected node's estimatesmartfee.
type Node struct {
	RPC SmartFeeEstimator
}

func (s *Node) Name() string { return SourceNode }

func (s *Node) FeeRate(ctx context.Context, blocks int) (Result, error) {
	res, err := s.RPC.EstimateSmartFee(ctx, int64(blocks))
	if err != nil {
		return Result{}, err
	}
	if res.FeeRate == nil {
		if len(res.Errors) > 0 {
			return Result{}, fmt.Errorf("estimatesmartfee: %s", strings.Join(res.Errors, "; "))
		}
		return Result{}, fmt.Errorf("estimatesmartfee: no estimate")
	}
	confidence := types.ConfidenceHigh
	if res.Blocks != int64(blocks) {
		confidence = types.ConfidenceMedium
	}
	return Result{
		Value:      *res.FeeRate * satsPerVBPerBTCPerKvB,
		Confidence: confidence,
		Details:    map[string]any{"blocks": res.Blocks},
	}, nil
}

// FeeSources builds the named fee sources in order. The node source is
// skipped when rpc is nil.
func FeeSources(names []string, doer httpx.Doer, rpc SmartFeeEstimator) ([]FeeSource, error) {
	if doer == nil {
		doer = httpx.NewClient(httpx.Options{Timeout: defaultHTTPTimeout})
	}
	sources := make([]FeeSource, 0, len(names))
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case SourceMempool:
			sources = append(sources, &Mempool{Doer: doer})
		case SourceBlockstream:
			sources = append(sources, &Blockstream{Doer: doer})
		case SourceNode:
			if rpc != nil {
				sources = append(sources, &Node{RPC: rpc})
			}
		case "":
		default:
			return nil, fmt.Errorf("unknown fee provider %q", name)
		}
	}
	return sources, nil
}

// feeProvider binds a FeeSource to one confirmation target.
type feeProvider struct {
	src    FeeSource
	blocks int
}

func (p feeProvider) Name() string { return p.src.Name() }

func (p feeProvider) Fetch(ctx context.Context) (Result, error) {
	return p.src.FeeRate(ctx, p.blocks)
}

// FeeRatesConfig configures FeeRates.
type FeeRatesConfig struct {
	Sources        []FeeSource
	Rotation       bool
	StaticFallback float64
	Cache          *cache.Loader
	CacheTTL       time.Duration
	Retry          retry.Policy
}

// FeeRates serves fee-rate estimates through one Oracle per confirmation
// target.
type FeeRates struct {
	cfg     FeeRatesConfig
	mu      sync.Mutex
	oracles map[int]*Oracle
}

// NewFeeRates creates a fee-rate service.
func NewFeeRates(cfg FeeRatesConfig) *FeeRates {
	return &FeeRates{cfg: cfg, oracles: make(map[int]*Oracle)}
}

// Estimate returns the fee rate for a confirmation target. blocks < 1 uses
// DefaultBlocks; targets beyond MaxBlocks are clamped.
func (f *FeeRates) Estimate(ctx context.Context, blocks int, preferred string) types.FeeEstimate {
	if blocks < 1 {
		blocks = DefaultBlocks
	}
	if blocks > MaxBlocks {
		blocks = MaxBlocks
	}
	q := f.oracle(blocks).Quote(ctx, QuoteOptions{PreferredSource: preferred})
	return types.FeeEstimate{
		FeeRateSatsPerVB: q.Price,
		Blocks:           blocks,
		Source:           q.Source,
		Confidence:       q.Confidence,
		FallbackUsed:     q.FallbackUsed,
		TimestampMs:      q.TimestampMs,
	}
}

// Invalidate drops every cached fee rate.
func (f *FeeRates) Invalidate(ctx context.Context) error {
	f.mu.Lock()
	oracles := make([]*Oracle, 0, len(f.oracles))
	for _, o := range f.oracles {
		oracles = append(oracles, o)
	}
	f.mu.Unlock()

	for _, o := range oracles {
		if err := o.Invalidate(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (f *FeeRates) oracle(blocks int) *Oracle {
	f.mu.Lock()
	defer f.mu.Unlock()

	if o, ok := f.oracles[blocks]; ok {
		return o
	}
	providers := make([]Provider, len(f.cfg.Sources))
	for i, s := range f.cfg.Sources {
		providers[i] = feeProvider{src: s, blocks: blocks}
	}
	name := fmt.Sprintf("fee:%d", blocks)
	o := New(Config{
		Name:           name,
		Providers:      providers,
		Rotation:       f.cfg.Rotation,
		StaticFallback: f.cfg.StaticFallback,
		Cache:          f.cfg.Cache,
		CacheKey:       cache.Key("oracle", "fee", strconv.Itoa(blocks)),
		CacheTTL:       f.cfg.CacheTTL,
		Retry:          f.cfg.Retry,
	})
	f.oracles[blocks] = o
	return o
}
