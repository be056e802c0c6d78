package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"dexalerts/internal/storage"
)

// Show prints recent alerts.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show alerts")
	}
	if closeStore != nil {
		defer closeStore()
	}

	alerts, err := store.ListRecentAlerts(ctx, strings.ToUpper(strings.TrimSpace(opts.Symbol)), opts.Limit)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(os.Stdout, "no alerts found")
		return nil
	}
	return writeAlertTable(os.Stdout, alerts)
}

func writeAlertTable(out io.Writer, alerts []storage.AlertRecord) error {
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tSymbol\tPair\tDirection\tThreshold%\tChange%\tPrice USD\tID")

	for _, alert := range alerts {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%g\t%s\t%s\t%s\n",
			alert.FiredAt.UTC().Format(time.RFC3339),
			alert.Symbol,
			sanitizeInline(alert.Pair),
			alert.Direction,
			alert.ThresholdPct,
			formatPct(alert.ChangePct),
			alert.PriceUSD.String(),
			alert.EventID.String(),
		)
	}

	return writer.Flush()
}

func formatPct(v float64) string {
	if v >= math.MaxFloat64 {
		return "+inf"
	}
	return fmt.Sprintf("%.2f", v)
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
