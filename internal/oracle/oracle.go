// Package oracle produces price and fee-rate quotes from an ordered list
// of providers with rotation, fallback and caching.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/cache"
	klog "github.com/stampchain-io/BTCStampsExplorer-sub010/internal/log"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/metrics"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/retry"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/pkg/types"
)

// Result is one provider's answer.
type Result struct {
	Value      float64
	Confidence types.Confidence
	Details    map[string]any
}

// Provider fetches a numeric figure from one source.
type Provider interface {
	Name() string
	Fetch(ctx context.Context) (Result, error)
}

// Config configures an Oracle.
type Config struct {
	// Name labels logs and metrics, e.g. "price".
	Name      string
	Providers []Provider
	// Rotation cycles the starting provider on every cache miss.
	Rotation bool
	// StaticFallback is the value reported when every provider fails.
	StaticFallback float64
	// Cache is optional. Without it every call queries providers.
	Cache    *cache.Loader
	CacheKey string
	CacheTTL time.Duration
	// Retry applies to each provider fetch. The zero value makes one attempt.
	Retry retry.Policy
}

// QuoteOptions are per-call options.
type QuoteOptions struct {
	// PreferredSource names a provider to query first, bypassing rotation.
	PreferredSource string
}

// Oracle queries providers in order until one yields a positive value.
// It never returns an error: provider exhaustion yields a low-confidence
// static quote.
type Oracle struct {
	cfg    Config
	rot    rotation
	now    func() time.Time
	logger zerolog.Logger
}

// New creates an oracle.
func New(cfg Config) *Oracle {
	if cfg.Name == "" {
		cfg.Name = "oracle"
	}
	if cfg.CacheKey == "" {
		cfg.CacheKey = cache.Key("oracle", cfg.Name)
	}
	return &Oracle{
		cfg:    cfg,
		now:    time.Now,
		logger: klog.Oracle.With().Str("oracle", cfg.Name).Logger(),
	}
}

// Name returns the oracle's label.
func (o *Oracle) Name() string { return o.cfg.Name }

// Sources returns the provider names in declared order.
func (o *Oracle) Sources() []string {
	names := make([]string, len(o.cfg.Providers))
	for i, p := range o.cfg.Providers {
		names[i] = p.Name()
	}
	return names
}

// Quote returns a quote, served from cache when a fresh one exists. Static
// fallback quotes are never cached.
func (o *Oracle) Quote(ctx context.Context, opts QuoteOptions) types.PriceQuote {
	q := o.quote(ctx, opts)
	metrics.OracleQuote(o.cfg.Name, q.Source, q.FallbackUsed)
	return q
}

func (o *Oracle) quote(ctx context.Context, opts QuoteOptions) types.PriceQuote {
	preferred := o.knownSource(opts.PreferredSource)
	if o.cfg.Cache == nil {
		return o.fetch(ctx, preferred)
	}

	key := o.cacheKey(preferred)
	data, err := o.cfg.Cache.GetOrLoad(ctx, key, o.cfg.CacheTTL,
		func(ctx context.Context) ([]byte, bool, error) {
			q := o.fetch(ctx, preferred)
			data, err := json.Marshal(q)
			if err != nil {
				return nil, false, err
			}
			return data, !q.IsStaticFallback(), nil
		})
	if err != nil {
		return o.static([]string{err.Error()})
	}

	var q types.PriceQuote
	if err := json.Unmarshal(data, &q); err != nil {
		o.logger.Warn().Err(err).Msg("Discarding undecodable cached quote")
		_ = o.cfg.Cache.Invalidate(ctx, key)
		return o.fetch(ctx, preferred)
	}
	return q
}

// knownSource returns the configured provider name matching name
// case-insensitively, or "" when no provider matches.
func (o *Oracle) knownSource(name string) string {
	if name == "" {
		return ""
	}
	for _, p := range o.cfg.Providers {
		if strings.EqualFold(p.Name(), name) {
			return p.Name()
		}
	}
	return ""
}

// Invalidate drops the cached quote for every source preference.
func (o *Oracle) Invalidate(ctx context.Context) error {
	if o.cfg.Cache == nil {
		return nil
	}
	keys := append([]string{""}, o.Sources()...)
	for _, src := range keys {
		if err := o.cfg.Cache.Invalidate(ctx, o.cacheKey(src)); err != nil {
			return fmt.Errorf("invalidate %s: %w", o.cfg.Name, err)
		}
	}
	return nil
}

func (o *Oracle) cacheKey(preferred string) string {
	if preferred == "" {
		return o.cfg.CacheKey
	}
	return cache.Key(o.cfg.CacheKey, preferred)
}

// fetch walks the providers once and returns the first valid answer.
func (o *Oracle) fetch(ctx context.Context, preferred string) types.PriceQuote {
	var errs []string
	for _, idx := range o.order(preferred) {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err.Error())
			break
		}
		p := o.cfg.Providers[idx]
		res, err := o.fetchOne(ctx, p)
		if err != nil {
			metrics.OracleProviderError(o.cfg.Name, p.Name())
			o.logger.Debug().Str("provider", p.Name()).Err(err).Msg("Provider failed")
			errs = append(errs, fmt.Sprintf("%s: %v", p.Name(), err))
			continue
		}

		confidence := res.Confidence
		if confidence == "" {
			confidence = types.ConfidenceHigh
		}
		q := types.PriceQuote{
			Price:        res.Value,
			Source:       p.Name(),
			Confidence:   confidence,
			TimestampMs:  o.now().UnixMilli(),
			FallbackUsed: len(errs) > 0,
			Errors:       errs,
			Details:      res.Details,
		}
		if q.FallbackUsed {
			o.logger.Info().
				Str("source", q.Source).
				Strs("errors", errs).
				Msg("Quote served by fallback provider")
		}
		return q
	}

	o.logger.Warn().Strs("errors", errs).Float64("value", o.cfg.StaticFallback).Msg("All providers failed, using static fallback")
	return o.static(errs)
}

func (o *Oracle) fetchOne(ctx context.Context, p Provider) (Result, error) {
	var res Result
	err := retry.Do(ctx, o.cfg.Retry, retry.Always, func(ctx context.Context, attempt int) error {
		r, err := p.Fetch(ctx)
		if err != nil {
			return err
		}
		if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) || r.Value <= 0 {
			return fmt.Errorf("invalid value %v", r.Value)
		}
		res = r
		return nil
	}, nil)
	return res, err
}

// order returns provider indexes in the order they are tried. A known
// preferred source goes first and the rest follow in declared order;
// otherwise the walk starts at the rotation index (or 0) and wraps.
func (o *Oracle) order(preferred string) []int {
	n := len(o.cfg.Providers)
	order := make([]int, 0, n)
	if preferred != "" {
		for i, p := range o.cfg.Providers {
			if p.Name() == preferred {
				order = append(order, i)
				break
			}
		}
		if len(order) == 1 {
			for i := 0; i < n; i++ {
				if i != order[0] {
					order = append(order, i)
				}
			}
			return order
		}
	}

	start := 0
	if o.cfg.Rotation {
		start = o.rot.start(n)
	}
	for i := 0; i < n; i++ {
		order = append(order, (start+i)%n)
	}
	return order
}

func (o *Oracle) static(errs []string) types.PriceQuote {
	return types.PriceQuote{
		Price:        o.cfg.StaticFallback,
		Source:       types.DefaultSource,
		Confidence:   types.ConfidenceLow,
		TimestampMs:  o.now().UnixMilli(),
		FallbackUsed: true,
		Errors:       errs,
	}
}
