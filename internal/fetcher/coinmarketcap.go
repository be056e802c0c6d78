package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const defaultCoinMarketCapURL = "https://pro-api.coinmarketcap.com"

var (
	// ErrSymbolAddressMismatch means no listing with the symbol carries the token address.
	ErrSymbolAddressMismatch = errors.New("token address does not match any listing for symbol")
	// ErrQuoteNotFound means the quote endpoint returned nothing for the id.
	ErrQuoteNotFound = errors.New("quote not found")
)

// CoinMarketCapOptions parameterise the CoinMarketCap client.
type CoinMarketCapOptions struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	RatePerSecond float64
}

// CoinMarketCap queries the CoinMarketCap Pro API.
type CoinMarketCap struct {
	opts    CoinMarketCapOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
}

// NewCoinMarketCap constructs a CoinMarketCap client.
func NewCoinMarketCap(opts CoinMarketCapOptions, logger zerolog.Logger) *CoinMarketCap {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultCoinMarketCapURL
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	}

	return &CoinMarketCap{
		opts:    opts,
		logger:  logger.With().Str("component", "coinmarketcap").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		limiter: limiter,
	}
}

// Quote is a normalised USD quote for a listing.
type Quote struct {
	ID                int
	Name              string
	Symbol            string
	Slug              string
	Rank              int
	PriceUSD          decimal.Decimal
	MarketCapUSD      decimal.Decimal
	Volume24hUSD      decimal.Decimal
	PercentChange1h   decimal.Decimal
	PercentChange24h  decimal.Decimal
	PercentChange7d   decimal.Decimal
	SelfReportedMcap  decimal.Decimal
	LastUpdated       time.Time
	PlatformTokenAddr string
}

type cmcStatus struct {
	ErrorCode    int     `json:"error_code"`
	ErrorMessage *string `json:"error_message"`
}

type cmcPlatform struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Symbol       string `json:"symbol"`
	Slug         string `json:"slug"`
	TokenAddress string `json:"token_address"`
}

type cmcMapEntry struct {
	ID       int          `json:"id"`
	Name     string       `json:"name"`
	Symbol   string       `json:"symbol"`
	Slug     string       `json:"slug"`
	Platform *cmcPlatform `json:"platform"`
}

type cmcMapResponse struct {
	Status cmcStatus     `json:"status"`
	Data   []cmcMapEntry `json:"data"`
}

type cmcQuoteDetail struct {
	Price            decimal.Decimal `json:"price"`
	Volume24h        decimal.Decimal `json:"volume_24h"`
	PercentChange1h  decimal.Decimal `json:"percent_change_1h"`
	PercentChange24h decimal.Decimal `json:"percent_change_24h"`
	PercentChange7d  decimal.Decimal `json:"percent_change_7d"`
	MarketCap        decimal.Decimal `json:"market_cap"`
	LastUpdated      time.Time       `json:"last_updated"`
}

type cmcListing struct {
	ID                    int                       `json:"id"`
	Name                  string                    `json:"name"`
	Symbol                string                    `json:"symbol"`
	Slug                  string                    `json:"slug"`
	CMCRank               int                       `json:"cmc_rank"`
	SelfReportedMarketCap decimal.Decimal           `json:"self_reported_market_cap"`
	Platform              *cmcPlatform              `json:"platform"`
	Quote                 map[string]cmcQuoteDetail `json:"quote"`
}

type cmcQuoteResponse struct {
	Status cmcStatus             `json:"status"`
	Data   map[string]cmcListing `json:"data"`
}

// MapToID finds the CoinMarketCap id of the listing for symbol whose platform token matches tokenAddress.
func (c *CoinMarketCap) MapToID(ctx context.Context, tokenAddress, symbol string) (int, error) {
	params := url.Values{}
	params.Set("start", "1")
	params.Set("limit", "100")
	params.Set("sort", "id")
	params.Set("symbol", strings.ToUpper(strings.TrimSpace(symbol)))

	var res cmcMapResponse
	if err := c.get(ctx, "/v1/cryptocurrency/map", params, &res); err != nil {
		return 0, fmt.Errorf("map %s: %w", symbol, err)
	}

	for _, entry := range res.Data {
		if entry.Platform == nil {
			continue
		}
		if SameTokenAddress(entry.Platform.TokenAddress, tokenAddress) {
			c.logger.Debug().Str("symbol", symbol).Int("id", entry.ID).Msg("listing mapped")
			return entry.ID, nil
		}
	}
	return 0, fmt.Errorf("map %s: %w", symbol, ErrSymbolAddressMismatch)
}

// Quote fetches the latest USD quote for a listing id.
func (c *CoinMarketCap) Quote(ctx context.Context, id int) (Quote, error) {
	params := url.Values{}
	params.Set("id", strconv.Itoa(id))
	params.Set("convert", "USD")

	var res cmcQuoteResponse
	if err := c.get(ctx, "/v2/cryptocurrency/quotes/latest", params, &res); err != nil {
		return Quote{}, fmt.Errorf("quote %d: %w", id, err)
	}

	listing, ok := res.Data[strconv.Itoa(id)]
	if !ok || listing.ID != id {
		return Quote{}, fmt.Errorf("quote %d: %w", id, ErrQuoteNotFound)
	}
	usd, ok := listing.Quote["USD"]
	if !ok {
		return Quote{}, fmt.Errorf("quote %d: %w: USD conversion missing", id, ErrQuoteNotFound)
	}

	q := Quote{
		ID:               listing.ID,
		Name:             listing.Name,
		Symbol:           listing.Symbol,
		Slug:             listing.Slug,
		Rank:             listing.CMCRank,
		PriceUSD:         usd.Price,
		MarketCapUSD:     usd.MarketCap,
		Volume24hUSD:     usd.Volume24h,
		PercentChange1h:  usd.PercentChange1h,
		PercentChange24h: usd.PercentChange24h,
		PercentChange7d:  usd.PercentChange7d,
		SelfReportedMcap: listing.SelfReportedMarketCap,
		LastUpdated:      usd.LastUpdated,
	}
	if listing.Platform != nil {
		q.PlatformTokenAddr = listing.Platform.TokenAddress
	}
	return q, nil
}

// QuoteBySymbol maps symbol and token address to an id and fetches its quote.
func (c *CoinMarketCap) QuoteBySymbol(ctx context.Context, tokenAddress, symbol string) (Quote, error) {
	id, err := c.MapToID(ctx, tokenAddress, symbol)
	if err != nil {
		return Quote{}, err
	}
	return c.Quote(ctx, id)
}

// SameTokenAddress compares token addresses; EVM hex addresses compare case-insensitively.
func SameTokenAddress(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	if common.IsHexAddress(a) && common.IsHexAddress(b) {
		return common.HexToAddress(a) == common.HexToAddress(b)
	}
	return a == b
}

func (c *CoinMarketCap) get(ctx context.Context, path string, params url.Values, out any) error {
	if c.opts.APIKey == "" {
		return errors.New("coinmarketcap api key not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %w", ErrUnreachable, err)
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-CMC_PRO_API_KEY", c.opts.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %w", ErrUnreachable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return parseCMCError(resp.StatusCode, payload)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return nil
}

func parseCMCError(status int, payload []byte) error {
	kind := ErrMalformedResponse
	if status == http.StatusTooManyRequests || status >= 500 {
		kind = ErrUnreachable
	}

	var body struct {
		Status cmcStatus `json:"status"`
	}
	if err := json.Unmarshal(payload, &body); err == nil && body.Status.ErrorMessage != nil {
		return fmt.Errorf("%w: coinmarketcap error (%d): %s", kind, status, *body.Status.ErrorMessage)
	}
	return fmt.Errorf("%w: coinmarketcap error (%d)", kind, status)
}
