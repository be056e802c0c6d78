package monitor

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dexalerts/internal/alerting"
	"dexalerts/internal/fetcher"
	"dexalerts/internal/scheduler"
	"dexalerts/internal/storage"
	"dexalerts/internal/threshold"
)

const (
	DefaultPollInterval = time.Second
	DefaultErrorBackoff = 60 * time.Second
)

// State is the lifecycle phase of a Monitor.
type State int

const (
	Uninitialized State = iota
	Anchoring
	Tracking
	Stopped
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Anchoring:
		return "anchoring"
	case Tracking:
		return "tracking"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// RefirePolicy decides whether an already announced threshold may alert again.
type RefirePolicy string

const (
	// RefireLatch suppresses a threshold until the change retreats past it.
	RefireLatch RefirePolicy = "latch"
	// RefireEveryTick alerts on every non-idle tick that matches.
	RefireEveryTick RefirePolicy = "every_tick"
)

// Options configure a Monitor.
type Options struct {
	Symbol       string
	Pair         fetcher.PairRef
	Thresholds   *threshold.Set
	Refire       RefirePolicy
	PollInterval time.Duration
	ErrorBackoff time.Duration
	StartupDelay time.Duration
}

// Snapshot is a read-only copy of monitor state published after every tick.
type Snapshot struct {
	Symbol        string           `json:"symbol"`
	Pair          fetcher.PairRef  `json:"pair"`
	State         string           `json:"state"`
	Baseline      *decimal.Decimal `json:"baseline_usd,omitempty"`
	Previous      *decimal.Decimal `json:"previous_usd,omitempty"`
	LastChangePct float64          `json:"-"`
	LastChange    string           `json:"last_change_pct,omitempty"`
	LastTick      time.Time        `json:"last_tick,omitempty"`
	LastError     string           `json:"last_error,omitempty"`
	AlertsFired   int64            `json:"alerts_fired"`
	Latched       []string         `json:"latched,omitempty"`
}

// Monitor tracks one pair against a fixed baseline and raises threshold alerts.
// A Monitor is driven by a single goroutine; only Snapshot is safe to call concurrently.
type Monitor struct {
	opts   Options
	source fetcher.PriceSource
	sinks  []alerting.Notifier
	store  storage.AlertStore
	logger zerolog.Logger
	newID  func() uuid.UUID

	state       State
	baseline    *fetcher.PriceSample
	previous    *fetcher.PriceSample
	lastChange  float64
	lastTick    time.Time
	lastErr     error
	alertsFired int64
	latched     map[threshold.Key]struct{}

	snapshot atomic.Pointer[Snapshot]
}

// New constructs a Monitor. store may be nil.
func New(opts Options, source fetcher.PriceSource, sinks []alerting.Notifier, store storage.AlertStore, logger zerolog.Logger) *Monitor {
	if opts.Thresholds == nil {
		opts.Thresholds = threshold.New(nil, nil)
	}
	if opts.Refire == "" {
		opts.Refire = RefireLatch
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = DefaultErrorBackoff
	}

	m := &Monitor{
		opts:    opts,
		source:  source,
		sinks:   sinks,
		store:   store,
		logger:  logger.With().Str("component", "monitor").Str("symbol", opts.Symbol).Logger(),
		newID:   uuid.New,
		latched: make(map[threshold.Key]struct{}),
	}
	m.publish()
	return m
}

// Run polls until ctx is cancelled. The first tick runs immediately; a failed
// fetch delays the next tick by ErrorBackoff instead of PollInterval.
func (m *Monitor) Run(ctx context.Context) error {
	sched := scheduler.New(scheduler.Options{
		Interval:     m.opts.PollInterval,
		ErrorBackoff: m.opts.ErrorBackoff,
		Immediate:    true,
		StartupDelay: m.opts.StartupDelay,
	}, m.logger)

	m.logger.Info().
		Str("pair", m.opts.Pair.Label()).
		Str("thresholds", m.opts.Thresholds.String()).
		Str("refire", string(m.opts.Refire)).
		Msg("monitor started")

	err := sched.Run(ctx, func(ctx context.Context, at time.Time) error {
		_, tickErr := m.Tick(ctx, at)
		return tickErr
	})

	m.state = Stopped
	m.publish()
	m.logger.Info().Int64("alerts_fired", m.alertsFired).Msg("monitor stopped")
	return err
}

// Tick performs one fetch/evaluate cycle and returns the alert it raised, if any.
// A fetch error leaves the tracked prices untouched and is returned to the caller.
func (m *Monitor) Tick(ctx context.Context, at time.Time) (*alerting.Alert, error) {
	defer m.publish()

	if m.state == Uninitialized {
		m.state = Anchoring
	}
	m.lastTick = at

	sample, err := m.source.FetchPrice(ctx, m.opts.Pair)
	if err != nil {
		m.lastErr = err
		return nil, fmt.Errorf("fetch %s: %w", m.opts.Pair.Label(), err)
	}
	m.lastErr = nil

	if m.baseline == nil {
		m.baseline = &sample
		m.previous = &sample
		m.state = Tracking
		m.logger.Info().Str("baseline_usd", sample.PriceUSD.String()).Msg("baseline anchored")
		return nil, nil
	}

	changeFromBaseline := PercentChange(m.baseline.PriceUSD, sample.PriceUSD)
	changeFromPrevious := PercentChange(m.previous.PriceUSD, sample.PriceUSD)
	m.lastChange = changeFromBaseline

	var alert *alerting.Alert
	if changeFromPrevious != 0 {
		alert = m.evaluate(ctx, sample, changeFromBaseline)
	}

	m.logger.Debug().
		Str("price_usd", sample.PriceUSD.String()).
		Float64("change_pct", changeFromBaseline).
		Float64("change_from_previous_pct", changeFromPrevious).
		Bool("alert", alert != nil).
		Msg("tick evaluated")

	m.previous = &sample
	return alert, nil
}

func (m *Monitor) evaluate(ctx context.Context, sample fetcher.PriceSample, change float64) *alerting.Alert {
	if m.opts.Refire == RefireLatch {
		for key := range m.latched {
			if !key.Holds(change) {
				delete(m.latched, key)
			}
		}
	}

	key, ok := m.opts.Thresholds.Match(change)
	if !ok {
		return nil
	}

	if m.opts.Refire == RefireLatch {
		if _, seen := m.latched[key]; seen {
			return nil
		}
		for _, k := range m.opts.Thresholds.Satisfied(key.Direction, change) {
			m.latched[k] = struct{}{}
		}
	}

	alert := alerting.Alert{
		ID:           m.newID(),
		Symbol:       m.opts.Symbol,
		Pair:         sample.Pair.Label(),
		Direction:    key.Direction,
		ThresholdPct: key.Value,
		ChangePct:    change,
		PriceUSD:     sample.PriceUSD,
		DashboardURL: sample.DashboardURL,
		At:           sample.FetchedAt,
	}
	if alert.At.IsZero() {
		alert.At = time.Now().UTC()
	}
	m.alertsFired++
	m.logger.Info().
		Str("alert_id", alert.ID.String()).
		Str("direction", string(alert.Direction)).
		Float64("threshold_pct", alert.ThresholdPct).
		Float64("change_pct", change).
		Str("price_usd", alert.PriceUSD.String()).
		Msg("threshold crossed")

	m.record(ctx, alert, sample.Pair)
	m.deliver(ctx, alert)
	return &alert
}

func (m *Monitor) record(ctx context.Context, alert alerting.Alert, pair fetcher.PairRef) {
	if m.store == nil {
		return
	}
	rec := storage.AlertRecord{
		EventID:      alert.ID,
		Symbol:       alert.Symbol,
		Pair:         alert.Pair,
		ChainID:      pair.ChainID,
		PairAddress:  pair.PairAddress,
		Direction:    string(alert.Direction),
		ThresholdPct: alert.ThresholdPct,
		ChangePct:    clampInf(alert.ChangePct),
		PriceUSD:     alert.PriceUSD,
		DashboardURL: alert.DashboardURL,
		FiredAt:      alert.At,
	}
	if _, err := m.store.InsertAlert(ctx, rec); err != nil {
		m.logger.Error().Err(err).Str("alert_id", alert.ID.String()).Msg("failed to persist alert record")
	}
}

func (m *Monitor) deliver(ctx context.Context, alert alerting.Alert) {
	for _, sink := range m.sinks {
		if err := sink.Notify(ctx, alert); err != nil {
			m.logger.Error().Err(err).Str("sink", sink.Name()).Str("alert_id", alert.ID.String()).Msg("failed to dispatch alert")
		}
	}
}

// Snapshot returns the state published after the last tick.
func (m *Monitor) Snapshot() Snapshot {
	return *m.snapshot.Load()
}

func (m *Monitor) publish() {
	snap := &Snapshot{
		Symbol:        m.opts.Symbol,
		Pair:          m.opts.Pair,
		State:         m.state.String(),
		LastChangePct: m.lastChange,
		LastTick:      m.lastTick,
		AlertsFired:   m.alertsFired,
	}
	if m.baseline != nil {
		price := m.baseline.PriceUSD
		snap.Baseline = &price
		snap.LastChange = strconv.FormatFloat(m.lastChange, 'f', 4, 64)
	}
	if m.previous != nil {
		price := m.previous.PriceUSD
		snap.Previous = &price
	}
	if m.lastErr != nil {
		snap.LastError = m.lastErr.Error()
	}
	for key := range m.latched {
		snap.Latched = append(snap.Latched, fmt.Sprintf("%s %g", key.Direction, key.Value))
	}
	sort.Strings(snap.Latched)
	m.snapshot.Store(snap)
}

// PercentChange returns ((to-from)/from)*100, or +Inf when from is zero.
func PercentChange(from, to decimal.Decimal) float64 {
	if from.IsZero() {
		return math.Inf(1)
	}
	return to.Sub(from).Div(from).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

// clampInf stores an infinite change as the largest finite value.
func clampInf(v float64) float64 {
	switch {
	case math.IsInf(v, 1):
		return math.MaxFloat64
	case math.IsInf(v, -1):
		return -math.MaxFloat64
	default:
		return v
	}
}
