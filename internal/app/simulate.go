package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dexalerts/internal/alerting"
	"dexalerts/internal/fetcher"
	"dexalerts/internal/monitor"
)

// SimulateAlert feeds a fixed price sequence through a monitor, one tick per price,
// and prints every alert it raises. With Deliver the alerts also go to the configured sinks.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if len(opts.Prices) < 2 {
		return errors.New("at least two prices are required (baseline plus one move)")
	}

	symbol, set, err := a.monitorInputs(RunOptions{Symbol: opts.Symbol, Above: opts.Above, Below: opts.Below})
	if err != nil {
		return err
	}

	source, err := newStaticPriceSource(symbol, opts.Prices)
	if err != nil {
		return err
	}

	var sinks []alerting.Notifier
	if opts.Deliver {
		sinks = a.newNotifiers()
		if len(sinks) == 0 {
			return errors.New("no alert channel configured")
		}
	}

	mon := monitor.New(monitor.Options{
		Symbol:     symbol,
		Pair:       source.pair,
		Thresholds: set,
		Refire:     monitor.RefirePolicy(a.Config.Monitor.Refire),
	}, source, sinks, nil, a.Logger)

	return simulate(ctx, os.Stdout, mon, len(opts.Prices))
}

func simulate(ctx context.Context, out io.Writer, mon *monitor.Monitor, ticks int) error {
	start := time.Now().UTC()
	fired := 0
	for i := 0; i < ticks; i++ {
		alert, err := mon.Tick(ctx, start.Add(time.Duration(i)*time.Second))
		if err != nil {
			return err
		}
		if alert == nil {
			continue
		}
		fired++
		fmt.Fprintf(out, "tick %d: %s %g%% crossed (change %.2f%%, price %s)\n",
			i, alert.Direction, alert.ThresholdPct, alert.ChangePct, alert.PriceUSD.String())
	}
	fmt.Fprintf(out, "%d alert(s) over %d tick(s)\n", fired, ticks)
	return nil
}

type staticPriceSource struct {
	pair   fetcher.PairRef
	prices []decimal.Decimal
	next   int
}

func newStaticPriceSource(symbol string, raw []string) (*staticPriceSource, error) {
	prices := make([]decimal.Decimal, 0, len(raw))
	for _, r := range raw {
		p, err := decimal.NewFromString(strings.TrimSpace(r))
		if err != nil {
			return nil, fmt.Errorf("invalid price %q: %w", r, err)
		}
		if p.IsNegative() {
			return nil, fmt.Errorf("invalid price %q: negative", r)
		}
		prices = append(prices, p)
	}
	return &staticPriceSource{
		pair: fetcher.PairRef{
			ChainID:     "simulated",
			DexID:       "simulated",
			PairAddress: "simulated",
			BaseSymbol:  strings.ToUpper(symbol),
			QuoteSymbol: "USD",
		},
		prices: prices,
	}, nil
}

func (s *staticPriceSource) FetchPrice(ctx context.Context, pair fetcher.PairRef) (fetcher.PriceSample, error) {
	if s.next >= len(s.prices) {
		return fetcher.PriceSample{}, fmt.Errorf("%w: price sequence exhausted", fetcher.ErrNotFound)
	}
	price := s.prices[s.next]
	s.next++
	return fetcher.PriceSample{
		Pair:      pair,
		PriceUSD:  price,
		FetchedAt: time.Now().UTC(),
	}, nil
}

var _ fetcher.PriceSource = (*staticPriceSource)(nil)
