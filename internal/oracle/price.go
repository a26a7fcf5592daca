package oracle

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/httpx"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/pkg/types"
)

// Default price API base URLs.
const (
	CoinGeckoURL = "https://api.coingecko.com/api/v3"
	BinanceURL   = "https://api.binance.com/api/v3"
	KrakenURL    = "https://api.kraken.com/0/public"
)

// defaultHTTPTimeout bounds provider requests when no client is supplied.
const defaultHTTPTimeout = 10 * time.Second

// Price provider names.
const (
	SourceCoinGecko = "coingecko"
	SourceBinance   = "binance"
	SourceKraken    = "kraken"
)

// CoinGecko reads the BTC/USD spot price from CoinGecko's simple price API.
type CoinGecko struct {
	BaseURL string
	Doer    httpx.Doer
}

func (p *CoinGecko) Name() string { return SourceCoinGecko }

func (p *CoinGecko) Fetch(ctx context.Context) (Result, error) {
	u := baseURL(p.BaseURL, CoinGeckoURL) + "/simple/price?" + url.Values{
		"ids":           {"bitcoin"},
		"vs_currencies": {"usd"},
	}.Encode()

	var body map[string]map[string]any
	if err := httpx.GetJSON(ctx, p.Doer, u, &body); err != nil {
		return Result{}, err
	}
	raw, ok := body["bitcoin"]["usd"]
	if !ok {
		return Result{}, fmt.Errorf("missing bitcoin.usd")
	}
	price, err := cast.ToFloat64E(raw)
	if err != nil {
		return Result{}, fmt.Errorf("bitcoin.usd: %w", err)
	}
	return Result{
		Value:      price,
		Confidence: types.ConfidenceHigh,
		Details:    map[string]any{"pair": "bitcoin/usd"},
	}, nil
}

// Binance reads the last BTCUSDT trade price.
type Binance struct {
	BaseURL string
	Doer    httpx.Doer
}

func (p *Binance) Name() string { return SourceBinance }

func (p *Binance) Fetch(ctx context.Context) (Result, error) {
	u := baseURL(p.BaseURL, BinanceURL) + "/ticker/price?symbol=BTCUSDT"

	var body struct {
		Symbol string `json:"symbol"`
		Price  any    `json:"price"`
	}
	if err := httpx.GetJSON(ctx, p.Doer, u, &body); err != nil {
		return Result{}, err
	}
	price, err := cast.ToFloat64E(body.Price)
	if err != nil {
		return Result{}, fmt.Errorf("price: %w", err)
	}
	return Result{
		Value:      price,
		Confidence: types.ConfidenceHigh,
		Details:    map[string]any{"symbol": body.Symbol},
	}, nil
}

// Kraken reads the last XBT/USD trade from Kraken's ticker.
type Kraken struct {
	BaseURL string
	Doer    httpx.Doer
}

func (p *Kraken) Name() string { return SourceKraken }

func (p *Kraken) Fetch(ctx context.Context) (Result, error) {
	u := baseURL(p.BaseURL, KrakenURL) + "/Ticker?pair=XBTUSD"

	var body struct {
		Error  []string `json:"error"`
		Result map[string]struct {
			// c is [price, lot volume] of the last trade.
			C []any `json:"c"`
		} `json:"result"`
	}
	if err := httpx.GetJSON(ctx, p.Doer, u, &body); err != nil {
		return Result{}, err
	}
	if len(body.Error) > 0 {
		return Result{}, fmt.Errorf("kraken: %s", strings.Join(body.Error, "; "))
	}
	for pair, t := range body.Result {
		if len(t.C) == 0 {
			continue
		}
		price, err := cast.ToFloat64E(t.C[0])
		if err != nil {
			return Result{}, fmt.Errorf("%s last trade: %w", pair, err)
		}
		return Result{
			Value:      price,
			Confidence: types.ConfidenceMedium,
			Details:    map[string]any{"pair": pair},
		}, nil
	}
	return Result{}, fmt.Errorf("missing ticker")
}

// PriceProviders builds the named price providers in order. Unknown names
// are an error.
func PriceProviders(names []string, doer httpx.Doer) ([]Provider, error) {
	if doer == nil {
		doer = httpx.NewClient(httpx.Options{Timeout: defaultHTTPTimeout})
	}
	providers := make([]Provider, 0, len(names))
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case SourceCoinGecko:
			providers = append(providers, &CoinGecko{Doer: doer})
		case SourceBinance:
			providers = append(providers, &Binance{Doer: doer})
		case SourceKraken:
			providers = append(providers, &Kraken{Doer: doer})
		case "":
		default:
			return nil, fmt.Errorf("unknown price provider %q", name)
		}
	}
	return providers, nil
}

func baseURL(configured, def string) string {
	if configured == "" {
		return def
	}
	return strings.TrimRight(configured, "/")
}
