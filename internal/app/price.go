package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"dexalerts/internal/alerting"
	"dexalerts/internal/fetcher"
)

// Price fetches a one-shot CoinMarketCap quote, prints it and optionally reports it to every sink.
// Without a token address the address is taken from the pair the symbol resolves to.
func (a *App) Price(ctx context.Context, opts PriceOptions) error {
	symbol := strings.TrimSpace(opts.Symbol)
	if symbol == "" {
		symbol = strings.TrimSpace(a.Config.Monitor.Symbol)
	}
	if symbol == "" {
		return errors.New("a symbol is required")
	}

	tokenAddress := strings.TrimSpace(opts.TokenAddress)
	if tokenAddress == "" {
		dex := a.newDexScreener()
		pairs, err := dex.SearchPairs(ctx, symbol)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", fetcher.ErrSymbolNotResolved, symbol, err)
		}
		pair, ok := a.newResolver(dex).Select(pairs)
		if !ok {
			return fmt.Errorf("%w: %s: no allowed pair to take the token address from", fetcher.ErrSymbolNotResolved, symbol)
		}
		tokenAddress = pair.BaseToken.Address
	}

	quote, err := a.newCoinMarketCap().QuoteBySymbol(ctx, tokenAddress, symbol)
	if err != nil {
		return err
	}

	report := alerting.QuoteReport{
		Name:         quote.Name,
		Symbol:       quote.Symbol,
		PriceUSD:     quote.PriceUSD,
		MarketCapUSD: quote.MarketCapUSD,
		Change1hPct:  quote.PercentChange1h,
		Change24hPct: quote.PercentChange24h,
		At:           quote.LastUpdated,
	}
	if report.At.IsZero() {
		report.At = time.Now().UTC()
	}
	// listings without a circulating supply only carry a self-reported cap
	if report.MarketCapUSD.IsZero() && !quote.SelfReportedMcap.IsZero() {
		report.MarketCapUSD = quote.SelfReportedMcap
	}

	fmt.Fprintf(os.Stdout, "%s (%s) rank %d\n", quote.Name, quote.Symbol, quote.Rank)
	fmt.Fprintf(os.Stdout, "  price       $%s\n", quote.PriceUSD.StringFixed(8))
	fmt.Fprintf(os.Stdout, "  market cap  $%s\n", report.MarketCapUSD.StringFixed(0))
	fmt.Fprintf(os.Stdout, "  volume 24h  $%s\n", quote.Volume24hUSD.StringFixed(0))
	fmt.Fprintf(os.Stdout, "  change      1h %s%%  24h %s%%  7d %s%%\n",
		quote.PercentChange1h.StringFixed(2),
		quote.PercentChange24h.StringFixed(2),
		quote.PercentChange7d.StringFixed(2),
	)

	if !opts.Report {
		return nil
	}

	sinks := a.newSinks()
	if len(sinks) == 0 {
		return errors.New("no alert channel configured")
	}
	var failed int
	for _, s := range sinks {
		if err := s.Report(ctx, report); err != nil {
			failed++
			a.Logger.Error().Err(err).Str("sink", s.Name()).Msg("failed to deliver price report")
		}
	}
	if failed == len(sinks) {
		return fmt.Errorf("%w: price report not delivered to any channel", alerting.ErrDelivery)
	}
	return nil
}
