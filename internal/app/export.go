package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"dexalerts/internal/storage"
)

const defaultExportWindow = 30 * 24 * time.Hour

// Export renders alert history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-defaultExportWindow)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	alerts, err := store.ListAlertsBetween(ctx, strings.ToUpper(strings.TrimSpace(opts.Symbol)), from, to)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		a.Logger.Info().Msg("no alerts found for export window")
		return nil
	}

	downsampled := downsampleAlerts(alerts, opts.MaxPoints)
	a.Logger.Info().Int("total", len(alerts)).Int("exported", len(downsampled)).Msg("exporting alerts")

	if opts.CSVPath != "" {
		if err := writeAlertsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeAlertsPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleAlerts(alerts []storage.AlertRecord, max int) []storage.AlertRecord {
	if max <= 0 || len(alerts) <= max {
		return alerts
	}
	if max == 1 {
		return alerts[len(alerts)-1:]
	}

	result := make([]storage.AlertRecord, 0, max)
	step := float64(len(alerts)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(alerts) {
			idx = len(alerts) - 1
		}
		result = append(result, alerts[idx])
	}
	return result
}

func writeAlertsCSV(path string, alerts []storage.AlertRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"fired_at", "event_id", "symbol", "pair", "chain_id", "pair_address", "direction", "threshold_pct", "change_pct", "price_usd", "dashboard_url"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, alert := range alerts {
		record := []string{
			alert.FiredAt.UTC().Format(time.RFC3339),
			alert.EventID.String(),
			alert.Symbol,
			alert.Pair,
			alert.ChainID,
			alert.PairAddress,
			alert.Direction,
			strconv.FormatFloat(alert.ThresholdPct, 'f', -1, 64),
			formatPct(alert.ChangePct),
			alert.PriceUSD.String(),
			alert.DashboardURL,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeAlertsPNG(path string, alerts []storage.AlertRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	var aboveX, belowX, priceX []time.Time
	var aboveY, belowY, priceY []float64
	for _, alert := range alerts {
		change := alert.ChangePct
		if change >= math.MaxFloat64 {
			continue
		}
		if alert.Direction == "above" {
			aboveX = append(aboveX, alert.FiredAt)
			aboveY = append(aboveY, change)
		} else {
			belowX = append(belowX, alert.FiredAt)
			belowY = append(belowY, change)
		}
		priceX = append(priceX, alert.FiredAt)
		priceY = append(priceY, alert.PriceUSD.InexactFloat64())
	}
	if len(priceX) < 2 {
		return errors.New("need at least two finite alerts to draw a chart")
	}

	pctFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	dots := func(color drawing.Color) chart.Style {
		return chart.Style{
			StrokeWidth: chart.Disabled,
			DotWidth:    4,
			DotColor:    color,
		}
	}

	series := []chart.Series{
		chart.TimeSeries{
			Name:    "Price USD",
			XValues: priceX,
			YValues: priceY,
		},
	}
	if len(aboveX) > 0 {
		series = append(series, chart.TimeSeries{
			Name:    "Above %",
			Style:   dots(drawing.ColorFromHex("3498DB")),
			XValues: aboveX,
			YValues: aboveY,
			YAxis:   chart.YAxisSecondary,
		})
	}
	if len(belowX) > 0 {
		series = append(series, chart.TimeSeries{
			Name:    "Below %",
			Style:   dots(drawing.ColorFromHex("E74C3C")),
			XValues: belowX,
			YValues: belowY,
			YAxis:   chart.YAxisSecondary,
		})
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Price (USD)",
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Change from baseline (%)",
			ValueFormatter: pctFormatter,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
