package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dexalerts/internal/threshold"
)

func testAlert() Alert {
	return Alert{
		ID:           uuid.New(),
		Symbol:       "BONK",
		Pair:         "BONK/SOL",
		Direction:    threshold.Above,
		ThresholdPct: 10,
		ChangePct:    12,
		PriceUSD:     decimal.RequireFromString("1.12"),
		DashboardURL: "https://dexscreener.com/solana/abc",
		At:           time.Now(),
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("path should contain sendMessage, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), testAlert()); err != nil {
		t.Fatalf("telegram notify should succeed: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("chat_id mismatch: %#v", received)
	}
	if !strings.Contains(received["text"], "Greater than 10.0000%") {
		t.Fatalf("text should describe the threshold: %q", received["text"])
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	err := notifier.Notify(context.Background(), testAlert())
	if !errors.Is(err, ErrDelivery) {
		t.Fatalf("ok=false should be a delivery error, got %v", err)
	}
}

func TestDiscordNotifierEmbed(t *testing.T) {
	var payload discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	alert := testAlert()
	alert.Direction = threshold.Below
	alert.ThresholdPct = -5
	alert.ChangePct = -7.5

	notifier := NewDiscordNotifier(srv.URL, "GIGABOT", time.Second, testLogger())
	if err := notifier.Notify(context.Background(), alert); err != nil {
		t.Fatalf("discord notify should succeed: %v", err)
	}

	if payload.Username != "GIGABOT" || len(payload.Embeds) != 1 {
		t.Fatalf("unexpected payload %+v", payload)
	}
	embed := payload.Embeds[0]
	if embed.Title != "Price Alert" || embed.Color != discordRed {
		t.Fatalf("below alerts are red 'Price Alert' embeds: %+v", embed)
	}

	values := map[string]string{}
	for _, f := range embed.Fields {
		values[f.Name] = f.Value
	}
	if values["Threshold"] != "Less than -5.0000%" {
		t.Fatalf("unexpected threshold field %q", values["Threshold"])
	}
	if values["Current Change"] != "📉 -7.50%" {
		t.Fatalf("unexpected change field %q", values["Current Change"])
	}
	if values["DexScreener Dashboard"] != alert.DashboardURL {
		t.Fatalf("dashboard link missing: %v", values)
	}
}

func TestDiscordNotifierRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	notifier := NewDiscordNotifier(srv.URL, "", time.Second, testLogger())
	if err := notifier.Notify(context.Background(), testAlert()); !errors.Is(err, ErrDelivery) {
		t.Fatalf("400 should be a delivery error, got %v", err)
	}

	empty := NewDiscordNotifier("", "", time.Second, testLogger())
	if err := empty.Notify(context.Background(), testAlert()); !errors.Is(err, ErrDelivery) {
		t.Fatalf("missing webhook should be a delivery error, got %v", err)
	}
}

func TestSlackReport(t *testing.T) {
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}))
	defer srv.Close()

	notifier := NewSlackNotifier(srv.URL, time.Second, testLogger())
	report := QuoteReport{
		Name:         "Pepe",
		Symbol:       "PEPE",
		PriceUSD:     decimal.RequireFromString("0.00001234"),
		Change1hPct:  decimal.RequireFromString("0.5"),
		Change24hPct: decimal.RequireFromString("-2.25"),
	}
	if err := notifier.Report(context.Background(), report); err != nil {
		t.Fatalf("slack report should succeed: %v", err)
	}
	if !strings.Contains(body["text"], "0.00001234 USD") || !strings.Contains(body["text"], "-2.2500%") {
		t.Fatalf("unexpected report text %q", body["text"])
	}
}

func TestFormatChangeInfinite(t *testing.T) {
	if got := formatChange(math.Inf(1)); got != "+inf%" {
		t.Fatalf("unexpected rendering %q", got)
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
