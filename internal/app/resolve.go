package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"dexalerts/internal/fetcher"
)

// Resolve prints the candidates for a symbol and marks the pair the monitor would track.
// With token addresses it lists the pairs of those tokens instead.
func (a *App) Resolve(ctx context.Context, opts ResolveOptions) error {
	dex := a.newDexScreener()

	if len(opts.Tokens) > 0 {
		pairs, err := dex.Tokens(ctx, opts.Tokens...)
		if err != nil {
			return err
		}
		if len(pairs) == 0 {
			fmt.Fprintln(os.Stdout, "no pairs found for tokens")
			return nil
		}
		return writePairs(os.Stdout, pairs, -1)
	}

	symbol := strings.TrimSpace(opts.Symbol)
	if symbol == "" {
		symbol = strings.TrimSpace(a.Config.Monitor.Symbol)
	}
	if symbol == "" {
		return errors.New("a symbol is required")
	}

	resolver := a.newResolver(dex)
	pairs, err := dex.SearchPairs(ctx, symbol)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", fetcher.ErrSymbolNotResolved, symbol, err)
	}

	selected := -1
	if chosen, ok := resolver.Select(pairs); ok {
		for i := range pairs {
			if pairs[i].PairAddress == chosen.PairAddress && pairs[i].ChainID == chosen.ChainID {
				selected = i
				break
			}
		}
	}

	if len(pairs) > 0 {
		if err := writePairs(os.Stdout, pairs, selected); err != nil {
			return err
		}
	}
	if selected < 0 {
		return fmt.Errorf("%w: %s: none of %d candidates trade on %s", fetcher.ErrSymbolNotResolved, symbol, len(pairs), strings.Join(a.Config.Resolver.AllowedDexes, ","))
	}
	return nil
}

func writePairs(out io.Writer, pairs []fetcher.Pair, selected int) error {
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "\tChain\tDex\tPair\tAddress\tPrice USD\tLiquidity USD")
	for i, p := range pairs {
		marker := ""
		if i == selected {
			marker = "*"
		}
		liquidity := "-"
		if p.Liquidity != nil {
			liquidity = fmt.Sprintf("%.0f", p.Liquidity.USD)
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			marker,
			p.ChainID,
			p.DexID,
			p.Ref().Label(),
			p.PairAddress,
			p.PriceUSD,
			liquidity,
		)
	}
	return writer.Flush()
}
