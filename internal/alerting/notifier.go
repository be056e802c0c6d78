package alerting

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"dexalerts/internal/threshold"
)

// ErrDelivery wraps every failure to hand an alert to its channel.
var ErrDelivery = errors.New("alert delivery failed")

// Alert describes one detected threshold crossing.
type Alert struct {
	ID           uuid.UUID
	Symbol       string
	Pair         string
	Direction    threshold.Direction
	ThresholdPct float64
	ChangePct    float64
	PriceUSD     decimal.Decimal
	DashboardURL string
	At           time.Time
}

// QuoteReport is a one-shot price report for a listing.
type QuoteReport struct {
	Name         string
	Symbol       string
	PriceUSD     decimal.Decimal
	MarketCapUSD decimal.Decimal
	Change1hPct  decimal.Decimal
	Change24hPct decimal.Decimal
	At           time.Time
}

// Notifier delivers alerts to an external channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, alert Alert) error
}

// Reporter delivers price reports to an external channel.
type Reporter interface {
	Report(ctx context.Context, report QuoteReport) error
}

func deliveryErr(channel string, err error) error {
	return fmt.Errorf("%w (%s): %w", ErrDelivery, channel, err)
}

func directionGlyph(d threshold.Direction) string {
	if d == threshold.Above {
		return "📈"
	}
	return "📉"
}

func directionLabel(d threshold.Direction) string {
	if d == threshold.Above {
		return "Greater than"
	}
	return "Less than"
}

func formatChange(change float64) string {
	if math.IsInf(change, 1) {
		return "+inf%"
	}
	if change >= 0 {
		return fmt.Sprintf("📈 %.2f%%", change)
	}
	return fmt.Sprintf("📉 %.2f%%", change)
}

func renderAlert(alert Alert) string {
	builder := strings.Builder{}
	builder.WriteString("[Price Alert]\n")
	builder.WriteString(fmt.Sprintf("Pair: %s\n", pairLabel(alert)))
	builder.WriteString(fmt.Sprintf("Threshold: %s %.4f%% %s\n", directionLabel(alert.Direction), alert.ThresholdPct, directionGlyph(alert.Direction)))
	builder.WriteString(fmt.Sprintf("Current change: %s\n", formatChange(alert.ChangePct)))
	builder.WriteString(fmt.Sprintf("Price: $%s\n", alert.PriceUSD.String()))
	if alert.DashboardURL != "" {
		builder.WriteString(fmt.Sprintf("Dashboard: %s\n", alert.DashboardURL))
	}
	return builder.String()
}

func renderReport(report QuoteReport) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("[%s price]\n", report.Name))
	builder.WriteString(fmt.Sprintf("Price: %s USD\n", report.PriceUSD.String()))
	if !report.MarketCapUSD.IsZero() {
		builder.WriteString(fmt.Sprintf("Market cap: %s USD\n", report.MarketCapUSD.StringFixed(0)))
	}
	builder.WriteString(fmt.Sprintf("1h: %s%%  24h: %s%%\n", report.Change1hPct.StringFixed(4), report.Change24hPct.StringFixed(4)))
	return builder.String()
}

func pairLabel(alert Alert) string {
	if alert.Pair != "" {
		return alert.Pair
	}
	return alert.Symbol
}
