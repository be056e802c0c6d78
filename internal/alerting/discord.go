package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"dexalerts/internal/threshold"
)

const (
	discordBlue   = 0x3498DB
	discordRed    = 0xE74C3C
	discordPurple = 0x5865F2
)

// DiscordNotifier posts embeds to a Discord webhook.
type DiscordNotifier struct {
	webhookURL string
	username   string
	client     *http.Client
	logger     zerolog.Logger
}

// NewDiscordNotifier constructs a Discord webhook notifier.
func NewDiscordNotifier(webhookURL, username string, timeout time.Duration, logger zerolog.Logger) *DiscordNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DiscordNotifier{
		webhookURL: webhookURL,
		username:   username,
		client:     &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "alert_discord").Logger(),
	}
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields"`
	Timestamp   string         `json:"timestamp,omitempty"`
}

type discordPayload struct {
	Username string         `json:"username,omitempty"`
	Embeds   []discordEmbed `json:"embeds"`
}

func (d *DiscordNotifier) Name() string { return "discord" }

// Notify posts a "Price Alert" embed.
func (d *DiscordNotifier) Notify(ctx context.Context, alert Alert) error {
	color := discordRed
	if alert.Direction == threshold.Above {
		color = discordBlue
	}

	fields := []discordField{
		{Name: "Pair", Value: pairLabel(alert), Inline: true},
		{Name: "Threshold", Value: fmt.Sprintf("%s %.4f%%", directionLabel(alert.Direction), alert.ThresholdPct), Inline: true},
		{Name: "Change", Value: directionGlyph(alert.Direction), Inline: true},
		{Name: "Current Change", Value: formatChange(alert.ChangePct)},
		{Name: "Price", Value: "$" + alert.PriceUSD.String()},
	}
	if alert.DashboardURL != "" {
		fields = append(fields, discordField{Name: "DexScreener Dashboard", Value: alert.DashboardURL})
	}

	embed := discordEmbed{
		Title:     "Price Alert",
		Color:     color,
		Fields:    fields,
		Timestamp: alert.At.UTC().Format(time.RFC3339),
	}
	if err := d.post(ctx, embed); err != nil {
		return deliveryErr(d.Name(), err)
	}

	d.logger.Info().Str("symbol", alert.Symbol).
		Str("direction", string(alert.Direction)).
		Float64("threshold_pct", alert.ThresholdPct).
		Msg("alert sent (discord)")
	return nil
}

// Report posts a coin price embed.
func (d *DiscordNotifier) Report(ctx context.Context, report QuoteReport) error {
	embed := discordEmbed{
		Title:       fmt.Sprintf("%s coin info and price", report.Name),
		Description: "Here's your info!",
		Color:       discordPurple,
		Fields: []discordField{
			{Name: "Coin price", Value: fmt.Sprintf("`%s USD`", report.PriceUSD.String())},
			{Name: "Market Cap", Value: fmt.Sprintf("`%s USD`", report.MarketCapUSD.StringFixed(0)), Inline: true},
			{Name: "% Change in 1h", Value: fmt.Sprintf("`%s%%`", report.Change1hPct.StringFixed(4)), Inline: true},
			{Name: "% Change in 24h", Value: fmt.Sprintf("`%s%%`", report.Change24hPct.StringFixed(4)), Inline: true},
		},
		Timestamp: report.At.UTC().Format(time.RFC3339),
	}
	if err := d.post(ctx, embed); err != nil {
		return deliveryErr(d.Name(), err)
	}
	return nil
}

func (d *DiscordNotifier) post(ctx context.Context, embed discordEmbed) error {
	if d.webhookURL == "" {
		return errors.New("discord webhook url not configured")
	}

	body, err := json.Marshal(discordPayload{Username: d.username, Embeds: []discordEmbed{embed}})
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send discord request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("discord status %d", resp.StatusCode)
	}
	return nil
}

var _ Notifier = (*DiscordNotifier)(nil)
var _ Reporter = (*DiscordNotifier)(nil)
