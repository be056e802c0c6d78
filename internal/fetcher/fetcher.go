package fetcher

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnreachable covers transport failures, timeouts and upstream 429/5xx.
	ErrUnreachable = errors.New("market data unreachable")
	// ErrMalformedResponse means the upstream payload did not match the expected schema.
	ErrMalformedResponse = errors.New("malformed market data response")
	// ErrNotFound means the requested pair or token is no longer known upstream.
	ErrNotFound = errors.New("market data not found")
	// ErrSymbolNotResolved is returned when no tradable pair can be selected for a symbol.
	ErrSymbolNotResolved = errors.New("symbol not resolved")
)

// PairRef identifies an upstream trading pair.
type PairRef struct {
	ChainID     string `json:"chain_id"`
	DexID       string `json:"dex_id"`
	PairAddress string `json:"pair_address"`
	BaseSymbol  string `json:"base_symbol"`
	QuoteSymbol string `json:"quote_symbol"`
	URL         string `json:"url"`
}

// Label renders the pair as BASE/QUOTE.
func (p PairRef) Label() string {
	if p.QuoteSymbol == "" {
		return p.BaseSymbol
	}
	return p.BaseSymbol + "/" + p.QuoteSymbol
}

// PriceSample is a point-in-time USD quote for a pair.
type PriceSample struct {
	Pair         PairRef
	PriceUSD     decimal.Decimal
	FetchedAt    time.Time
	DashboardURL string
}

// PriceSource fetches the current price of a resolved pair.
type PriceSource interface {
	FetchPrice(ctx context.Context, pair PairRef) (PriceSample, error)
}

// PairSearcher lists candidate pairs for a free-text query in provider order.
type PairSearcher interface {
	SearchPairs(ctx context.Context, query string) ([]Pair, error)
}
