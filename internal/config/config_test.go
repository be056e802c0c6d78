package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Monitor.PollInterval != time.Second {
		t.Fatalf("expected 1s poll interval, got %v", cfg.Monitor.PollInterval)
	}
	if cfg.Monitor.ErrorBackoff != 60*time.Second {
		t.Fatalf("expected 60s backoff, got %v", cfg.Monitor.ErrorBackoff)
	}
	if cfg.Monitor.Refire != RefireLatch {
		t.Fatalf("expected latch refire, got %q", cfg.Monitor.Refire)
	}
	if strings.Join(cfg.Resolver.AllowedDexes, ",") != "raydium,orca" {
		t.Fatalf("unexpected allow-list %v", cfg.Resolver.AllowedDexes)
	}
	if cfg.CoinMarketCap.BaseURL != "https://pro-api.coinmarketcap.com" {
		t.Fatalf("unexpected cmc url %q", cfg.CoinMarketCap.BaseURL)
	}
}

func TestLoadLegacyEnvironment(t *testing.T) {
	t.Setenv("SYMBOL", "BONK")
	t.Setenv("ALERT_GREATER_THAN", "5,10")
	t.Setenv("ALERT_LESS_THAN", "-5")
	t.Setenv("DISCORD_WEBHOOK", "https://discord.example/webhook")
	t.Setenv("COINMARKETCAP_TOKEN", "cmc-key")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Monitor.Symbol != "BONK" {
		t.Fatalf("expected symbol from SYMBOL, got %q", cfg.Monitor.Symbol)
	}
	if cfg.Monitor.AboveThresholds != "5,10" || cfg.Monitor.BelowThresholds != "-5" {
		t.Fatalf("unexpected thresholds %q / %q", cfg.Monitor.AboveThresholds, cfg.Monitor.BelowThresholds)
	}
	if cfg.Alerting.Discord.WebhookURL != "https://discord.example/webhook" {
		t.Fatalf("unexpected webhook %q", cfg.Alerting.Discord.WebhookURL)
	}
	if cfg.CoinMarketCap.APIKey != "cmc-key" {
		t.Fatalf("unexpected api key %q", cfg.CoinMarketCap.APIKey)
	}
}

func TestPrefixedEnvironmentWins(t *testing.T) {
	t.Setenv("SYMBOL", "BONK")
	t.Setenv("DEXALERTS_MONITOR_SYMBOL", "WIF")
	t.Setenv("DEXALERTS_MONITOR_POLL_INTERVAL", "250ms")
	t.Setenv("DEXALERTS_RESOLVER_ALLOWED_DEXES", "raydium,meteora")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Monitor.Symbol != "WIF" {
		t.Fatalf("expected prefixed variable to win, got %q", cfg.Monitor.Symbol)
	}
	if cfg.Monitor.PollInterval != 250*time.Millisecond {
		t.Fatalf("unexpected poll interval %v", cfg.Monitor.PollInterval)
	}
	if strings.Join(cfg.Resolver.AllowedDexes, ",") != "raydium,meteora" {
		t.Fatalf("unexpected allow-list %v", cfg.Resolver.AllowedDexes)
	}
}

func TestLoadFileAndValidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "monitor:\n  symbol: SOL\n  refire: sometimes\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "monitor.refire") {
		t.Fatalf("expected refire validation error, got %v", err)
	}
}

func TestValidateSinkTargets(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	cfg.Alerting.Telegram.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected telegram bot token error")
	}
	cfg.Alerting.Telegram.Enabled = false

	cfg.Alerting.Slack.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected slack webhook error")
	}
	cfg.Alerting.Slack.WebhookURL = "https://hooks.slack.example/x"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := cfg.ResolveMaxPoints(0); got != cfg.Export.MaxDataPoints {
		t.Fatalf("expected config default, got %d", got)
	}
	if got := cfg.ResolveMaxPoints(5); got != 5 {
		t.Fatalf("expected override, got %d", got)
	}
}
