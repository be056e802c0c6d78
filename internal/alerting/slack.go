package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// SlackNotifier posts plain text to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
	logger     zerolog.Logger
}

func NewSlackNotifier(webhookURL string, timeout time.Duration, logger zerolog.Logger) *SlackNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SlackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "alert_slack").Logger(),
	}
}

func (s *SlackNotifier) Name() string { return "slack" }

func (s *SlackNotifier) Notify(ctx context.Context, alert Alert) error {
	if err := s.send(ctx, renderAlert(alert)); err != nil {
		return deliveryErr(s.Name(), err)
	}
	s.logger.Info().Str("symbol", alert.Symbol).Msg("alert sent (slack)")
	return nil
}

func (s *SlackNotifier) Report(ctx context.Context, report QuoteReport) error {
	if err := s.send(ctx, renderReport(report)); err != nil {
		return deliveryErr(s.Name(), err)
	}
	return nil
}

func (s *SlackNotifier) send(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack status %d", resp.StatusCode)
	}
	return nil
}

var _ Notifier = (*SlackNotifier)(nil)
var _ Reporter = (*SlackNotifier)(nil)
