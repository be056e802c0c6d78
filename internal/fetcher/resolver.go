package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ResolverOptions tune symbol resolution.
type ResolverOptions struct {
	// AllowedDexes lists dexId values a pair must trade on to be selected.
	AllowedDexes []string
	// Attempts bounds retries of unreachable upstream searches.
	Attempts   int
	RetryDelay time.Duration
}

// Resolver maps a human symbol to the pair the monitor should track.
type Resolver struct {
	searcher PairSearcher
	allowed  map[string]struct{}
	opts     ResolverOptions
	logger   zerolog.Logger
}

// NewResolver builds a Resolver on top of a pair searcher.
func NewResolver(searcher PairSearcher, opts ResolverOptions, logger zerolog.Logger) *Resolver {
	allowed := make(map[string]struct{}, len(opts.AllowedDexes))
	for _, dex := range opts.AllowedDexes {
		dex = strings.ToLower(strings.TrimSpace(dex))
		if dex != "" {
			allowed[dex] = struct{}{}
		}
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}
	return &Resolver{
		searcher: searcher,
		allowed:  allowed,
		opts:     opts,
		logger:   logger.With().Str("component", "resolver").Logger(),
	}
}

// Resolve selects the first upstream candidate that trades on an allowed dex.
func (r *Resolver) Resolve(ctx context.Context, symbol string) (PairRef, error) {
	pairs, err := r.search(ctx, symbol)
	if err != nil {
		return PairRef{}, fmt.Errorf("%w: %s: %w", ErrSymbolNotResolved, symbol, err)
	}

	pair, ok := r.Select(pairs)
	if !ok {
		return PairRef{}, fmt.Errorf("%w: %s: none of %d candidates trade on an allowed dex", ErrSymbolNotResolved, symbol, len(pairs))
	}

	ref := pair.Ref()
	r.logger.Info().
		Str("symbol", symbol).
		Str("chain", ref.ChainID).
		Str("dex", ref.DexID).
		Str("pair", ref.PairAddress).
		Msg("symbol resolved")
	return ref, nil
}

// Select returns the first pair whose dexId is allow-listed, keeping upstream order.
func (r *Resolver) Select(pairs []Pair) (Pair, bool) {
	for _, p := range pairs {
		if _, ok := r.allowed[strings.ToLower(p.DexID)]; ok {
			return p, true
		}
	}
	return Pair{}, false
}

func (r *Resolver) search(ctx context.Context, symbol string) ([]Pair, error) {
	var lastErr error
	for attempt := 1; attempt <= r.opts.Attempts; attempt++ {
		pairs, err := r.searcher.SearchPairs(ctx, symbol)
		if err == nil {
			return pairs, nil
		}
		lastErr = err
		if !errors.Is(err, ErrUnreachable) || attempt == r.opts.Attempts {
			break
		}

		r.logger.Warn().Err(err).Int("attempt", attempt).Str("symbol", symbol).Msg("pair search failed, retrying")
		if r.opts.RetryDelay > 0 {
			timer := time.NewTimer(r.opts.RetryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}
	return nil, lastErr
}
