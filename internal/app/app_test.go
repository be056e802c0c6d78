package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dexalerts/internal/config"
	"dexalerts/internal/monitor"
	"dexalerts/internal/storage"
	"dexalerts/internal/threshold"
)

func testApp(mutate func(*config.Config)) *App {
	cfg := &config.Config{
		Monitor: config.MonitorConfig{
			Symbol:          "bonk",
			AboveThresholds: "10",
			BelowThresholds: "-10",
			PollInterval:    time.Second,
			ErrorBackoff:    time.Minute,
			Refire:          config.RefireLatch,
		},
		Resolver: config.ResolverConfig{AllowedDexes: []string{"raydium", "orca"}},
		Export:   config.ExportConfig{MaxDataPoints: 100},
	}
	if mutate != nil {
		mutate(cfg)
	}
	return NewApp(cfg, zerolog.Nop())
}

func TestMonitorInputs(t *testing.T) {
	app := testApp(nil)

	symbol, set, err := app.monitorInputs(RunOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if symbol != "BONK" {
		t.Fatalf("expected upper-cased symbol, got %q", symbol)
	}
	if got := set.Above(); len(got) != 1 || got[0] != 10 {
		t.Fatalf("unexpected above thresholds %v", got)
	}

	override := "5,1"
	_, set, err = app.monitorInputs(RunOptions{Symbol: "wif", Above: &override})
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if got := set.Above(); len(got) != 2 || got[0] != 1 {
		t.Fatalf("expected sorted override, got %v", got)
	}

	bad := "1,x"
	if _, _, err := app.monitorInputs(RunOptions{Above: &bad}); !errors.Is(err, threshold.ErrInvalidThreshold) {
		t.Fatalf("expected ErrInvalidThreshold, got %v", err)
	}

	empty := testApp(func(c *config.Config) { c.Monitor.Symbol = " " })
	if _, _, err := empty.monitorInputs(RunOptions{}); err == nil {
		t.Fatal("expected missing symbol error")
	}
}

func TestLockKeyPerSymbol(t *testing.T) {
	if lockKey(42, "bonk") != lockKey(42, "BONK") {
		t.Fatal("lock key must ignore symbol case")
	}
	if lockKey(42, "BONK") == lockKey(42, "WIF") {
		t.Fatal("different symbols must not share a lock")
	}
	if lockKey(42, "BONK") == lockKey(43, "BONK") {
		t.Fatal("base key must change the lock")
	}
}

type lockStub struct {
	results []bool
	calls   int
}

func (l *lockStub) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	ok := l.results[l.calls]
	l.calls++
	return func() {}, ok, nil
}

func TestAwaitLockStandsBy(t *testing.T) {
	app := testApp(func(c *config.Config) {
		c.Monitor.LockKey = 7
		c.Monitor.ErrorBackoff = time.Millisecond
	})
	locker := &lockStub{results: []bool{false, false, true}}

	unlock, err := app.awaitLock(context.Background(), locker, "BONK")
	if err != nil || unlock == nil {
		t.Fatalf("expected lock, got err=%v", err)
	}
	if locker.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", locker.calls)
	}

	slow := testApp(func(c *config.Config) { c.Monitor.LockKey = 7 })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := slow.awaitLock(ctx, &lockStub{results: []bool{false}}, "BONK"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	disabled := testApp(nil)
	unlock, err = disabled.awaitLock(context.Background(), &lockStub{}, "BONK")
	if err != nil || unlock != nil {
		t.Fatalf("lock key 0 disables locking, got unlock=%v err=%v", unlock != nil, err)
	}
}

func TestSimulatePrintsAlerts(t *testing.T) {
	source, err := newStaticPriceSource("bonk", []string{"1.00", "1.00", "1.12", "1.12", "0.85"})
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	mon := monitor.New(monitor.Options{
		Symbol:     "BONK",
		Pair:       source.pair,
		Thresholds: threshold.New([]float64{10}, []float64{-10}),
	}, source, nil, nil, zerolog.Nop())

	var out bytes.Buffer
	if err := simulate(context.Background(), &out, mon, 5); err != nil {
		t.Fatalf("simulate: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "tick 2: above 10% crossed") {
		t.Fatalf("missing above alert in %q", text)
	}
	if !strings.Contains(text, "tick 4: below -10% crossed") {
		t.Fatalf("missing below alert in %q", text)
	}
	if !strings.Contains(text, "2 alert(s) over 5 tick(s)") {
		t.Fatalf("unexpected summary in %q", text)
	}
}

func TestStaticPriceSourceRejectsGarbage(t *testing.T) {
	if _, err := newStaticPriceSource("x", []string{"1", "abc"}); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := newStaticPriceSource("x", []string{"1", "-2"}); err == nil {
		t.Fatal("expected negative price error")
	}
}

func sampleAlerts(n int) []storage.AlertRecord {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	out := make([]storage.AlertRecord, n)
	for i := range out {
		dir := "above"
		change := float64(10 + i)
		if i%2 == 1 {
			dir = "below"
			change = -change
		}
		out[i] = storage.AlertRecord{
			EventID:      uuid.New(),
			Symbol:       "BONK",
			Pair:         "BONK/SOL",
			Direction:    dir,
			ThresholdPct: 10,
			ChangePct:    change,
			PriceUSD:     decimal.NewFromFloat(0.00002),
			FiredAt:      base.Add(time.Duration(i) * time.Minute),
		}
	}
	return out
}

func TestDownsampleAlertsKeepsEnds(t *testing.T) {
	alerts := sampleAlerts(10)
	got := downsampleAlerts(alerts, 4)
	if len(got) != 4 {
		t.Fatalf("expected 4, got %d", len(got))
	}
	if got[0].EventID != alerts[0].EventID || got[3].EventID != alerts[9].EventID {
		t.Fatal("downsampling must keep first and last alert")
	}
	if len(downsampleAlerts(alerts, 20)) != 10 {
		t.Fatal("short series must be returned untouched")
	}
}

func TestWriteAlertsCSV(t *testing.T) {
	alerts := sampleAlerts(2)
	alerts[1].ChangePct = math.MaxFloat64
	path := filepath.Join(t.TempDir(), "nested", "alerts.csv")

	if err := writeAlertsCSV(path, alerts); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if rows[1][6] != "above" || rows[1][8] != "10.00" {
		t.Fatalf("unexpected first row %v", rows[1])
	}
	if rows[2][8] != "+inf" {
		t.Fatalf("expected +inf change, got %q", rows[2][8])
	}
}

func TestWriteAlertTable(t *testing.T) {
	var out bytes.Buffer
	if err := writeAlertTable(&out, sampleAlerts(1)); err != nil {
		t.Fatalf("table: %v", err)
	}
	if !strings.Contains(out.String(), "2024-03-01T12:00:00Z") || !strings.Contains(out.String(), "BONK/SOL") {
		t.Fatalf("unexpected table %q", out.String())
	}
}
