package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const defaultDexScreenerURL = "https://api.dexscreener.com/latest/dex"

// DexScreenerOptions parameterise the DexScreener client.
type DexScreenerOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// RatePerSecond caps outbound requests; zero disables pacing.
	RatePerSecond float64
	Burst         int
}

// DexScreener talks to the public DexScreener REST API.
type DexScreener struct {
	opts    DexScreenerOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
	now     func() time.Time
}

// NewDexScreener constructs a DexScreener client.
func NewDexScreener(opts DexScreenerOptions, logger zerolog.Logger) *DexScreener {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultDexScreenerURL
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}

	return &DexScreener{
		opts:    opts,
		logger:  logger.With().Str("component", "dexscreener").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		limiter: limiter,
		now:     time.Now,
	}
}

// Token is a pair leg.
type Token struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// Pair mirrors the DexScreener pair schema.
type Pair struct {
	ChainID       string                    `json:"chainId"`
	DexID         string                    `json:"dexId"`
	URL           string                    `json:"url"`
	PairAddress   string                    `json:"pairAddress"`
	BaseToken     Token                     `json:"baseToken"`
	QuoteToken    Token                     `json:"quoteToken"`
	PriceNative   string                    `json:"priceNative"`
	PriceUSD      string                    `json:"priceUsd"`
	Txns          map[string]map[string]int `json:"txns"`
	Volume        map[string]float64        `json:"volume"`
	PriceChange   map[string]float64        `json:"priceChange"`
	Liquidity     *Liquidity                `json:"liquidity"`
	FDV           float64                   `json:"fdv"`
	PairCreatedAt int64                     `json:"pairCreatedAt"`
}

// Liquidity is the pooled depth reported for a pair.
type Liquidity struct {
	USD   float64 `json:"usd"`
	Base  float64 `json:"base"`
	Quote float64 `json:"quote"`
}

// Ref converts the pair into the reference the monitor tracks.
func (p Pair) Ref() PairRef {
	return PairRef{
		ChainID:     p.ChainID,
		DexID:       p.DexID,
		PairAddress: p.PairAddress,
		BaseSymbol:  p.BaseToken.Symbol,
		QuoteSymbol: p.QuoteToken.Symbol,
		URL:         p.URL,
	}
}

type pairsResponse struct {
	SchemaVersion string `json:"schemaVersion"`
	Pairs         []Pair `json:"pairs"`
	Pair          *Pair  `json:"pair"`
}

// SearchPairs queries /search and returns pairs in provider order.
func (d *DexScreener) SearchPairs(ctx context.Context, query string) ([]Pair, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", ErrNotFound)
	}

	var res pairsResponse
	if err := d.get(ctx, "/search?q="+url.QueryEscape(query), &res); err != nil {
		return nil, fmt.Errorf("search pairs %q: %w", query, err)
	}
	return res.Pairs, nil
}

// Tokens lists the pairs trading any of the given token addresses.
func (d *DexScreener) Tokens(ctx context.Context, addresses ...string) ([]Pair, error) {
	if len(addresses) == 0 {
		return nil, fmt.Errorf("%w: no token addresses", ErrNotFound)
	}

	escaped := make([]string, len(addresses))
	for i, a := range addresses {
		escaped[i] = url.PathEscape(strings.TrimSpace(a))
	}

	var res pairsResponse
	if err := d.get(ctx, "/tokens/"+strings.Join(escaped, ","), &res); err != nil {
		return nil, fmt.Errorf("tokens: %w", err)
	}
	return res.Pairs, nil
}

// FetchPrice retrieves the current USD price for pair.
func (d *DexScreener) FetchPrice(ctx context.Context, pair PairRef) (PriceSample, error) {
	if pair.ChainID == "" || pair.PairAddress == "" {
		return PriceSample{}, fmt.Errorf("%w: pair reference incomplete", ErrNotFound)
	}

	path := fmt.Sprintf("/pairs/%s/%s", url.PathEscape(pair.ChainID), url.PathEscape(pair.PairAddress))
	var res pairsResponse
	if err := d.get(ctx, path, &res); err != nil {
		return PriceSample{}, fmt.Errorf("fetch pair %s: %w", pair.PairAddress, err)
	}

	pairs := res.Pairs
	if len(pairs) == 0 && res.Pair != nil {
		pairs = []Pair{*res.Pair}
	}
	if len(pairs) == 0 {
		return PriceSample{}, fmt.Errorf("fetch pair %s: %w", pair.PairAddress, ErrNotFound)
	}

	found := pairs[0]
	for _, p := range pairs {
		if strings.EqualFold(p.PairAddress, pair.PairAddress) {
			found = p
			break
		}
	}

	if strings.TrimSpace(found.PriceUSD) == "" {
		return PriceSample{}, fmt.Errorf("fetch pair %s: %w: priceUsd missing", pair.PairAddress, ErrMalformedResponse)
	}
	price, err := decimal.NewFromString(found.PriceUSD)
	if err != nil {
		return PriceSample{}, fmt.Errorf("fetch pair %s: %w: priceUsd %q", pair.PairAddress, ErrMalformedResponse, found.PriceUSD)
	}
	if price.IsNegative() {
		return PriceSample{}, fmt.Errorf("fetch pair %s: %w: negative priceUsd %s", pair.PairAddress, ErrMalformedResponse, price)
	}

	dashboard := found.URL
	if dashboard == "" {
		dashboard = pair.URL
	}

	return PriceSample{
		Pair:         pair,
		PriceUSD:     price,
		FetchedAt:    d.now().UTC(),
		DashboardURL: dashboard,
	}, nil
}

func (d *DexScreener) get(ctx context.Context, path string, out any) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %w", ErrUnreachable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	if ua := strings.TrimSpace(d.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %w", ErrUnreachable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: dexscreener status 404", ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: dexscreener status %d", ErrUnreachable, resp.StatusCode)
	default:
		return fmt.Errorf("%w: dexscreener status %d: %s", ErrMalformedResponse, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return nil
}

var _ PriceSource = (*DexScreener)(nil)
var _ PairSearcher = (*DexScreener)(nil)
