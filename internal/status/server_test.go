package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dexalerts/internal/monitor"
)

type fixedSource struct {
	snap monitor.Snapshot
}

func (f fixedSource) Snapshot() monitor.Snapshot { return f.snap }

func TestReadyzReflectsState(t *testing.T) {
	cases := map[string]int{
		"anchoring": http.StatusServiceUnavailable,
		"tracking":  http.StatusOK,
		"stopped":   http.StatusServiceUnavailable,
	}
	for state, want := range cases {
		srv := NewServer(Options{}, fixedSource{snap: monitor.Snapshot{State: state}}, zerolog.Nop())
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		if rec.Code != want {
			t.Fatalf("%s: expected %d, got %d", state, want, rec.Code)
		}
	}
}

func TestStateEndpoint(t *testing.T) {
	baseline := decimal.RequireFromString("1.5")
	srv := NewServer(Options{}, fixedSource{snap: monitor.Snapshot{
		Symbol:      "BONK",
		State:       "tracking",
		Baseline:    &baseline,
		LastChange:  "+Inf",
		AlertsFired: 2,
	}}, zerolog.Nop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["symbol"] != "BONK" || body["baseline_usd"] != "1.5" || body["last_change_pct"] != "+Inf" {
		t.Fatalf("unexpected body %v", body)
	}
	if body["alerts_fired"].(float64) != 2 {
		t.Fatalf("unexpected alerts_fired %v", body["alerts_fired"])
	}
}

func TestHealthzAndMethods(t *testing.T) {
	srv := NewServer(Options{CORSOrigins: []string{"https://example.org"}}, fixedSource{}, zerolog.Nop())
	handler := srv.Handler()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://example.org")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://example.org" {
		t.Fatalf("expected CORS header, got %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
