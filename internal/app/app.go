package app

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"dexalerts/internal/alerting"
	"dexalerts/internal/config"
	"dexalerts/internal/fetcher"
	"dexalerts/internal/monitor"
	"dexalerts/internal/status"
	"dexalerts/internal/storage"
	"dexalerts/internal/threshold"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newDexScreener() *fetcher.DexScreener {
	cfg := a.Config.DexScreener
	return fetcher.NewDexScreener(fetcher.DexScreenerOptions{
		BaseURL:       cfg.BaseURL,
		Timeout:       cfg.RequestTimeout,
		UserAgent:     cfg.UserAgent,
		RatePerSecond: cfg.RatePerSecond,
		Burst:         cfg.Burst,
	}, a.Logger)
}

func (a *App) newResolver(searcher fetcher.PairSearcher) *fetcher.Resolver {
	cfg := a.Config.Resolver
	return fetcher.NewResolver(searcher, fetcher.ResolverOptions{
		AllowedDexes: cfg.AllowedDexes,
		Attempts:     cfg.Attempts,
		RetryDelay:   cfg.RetryDelay,
	}, a.Logger)
}

func (a *App) newCoinMarketCap() *fetcher.CoinMarketCap {
	cfg := a.Config.CoinMarketCap
	return fetcher.NewCoinMarketCap(fetcher.CoinMarketCapOptions{
		BaseURL:       cfg.BaseURL,
		APIKey:        cfg.APIKey,
		Timeout:       cfg.RequestTimeout,
		RatePerSecond: cfg.RatePerSecond,
	}, a.Logger)
}

type sink interface {
	alerting.Notifier
	alerting.Reporter
}

// newSinks returns every enabled, fully configured channel.
func (a *App) newSinks() []sink {
	cfg := a.Config.Alerting
	if !cfg.Enabled {
		return nil
	}

	var sinks []sink
	if cfg.Discord.Enabled {
		if cfg.Discord.WebhookURL == "" {
			a.Logger.Warn().Msg("discord enabled but webhook_url empty; skipping")
		} else {
			sinks = append(sinks, alerting.NewDiscordNotifier(cfg.Discord.WebhookURL, cfg.Discord.Username, cfg.RequestTimeout, a.Logger))
		}
	}
	if cfg.Telegram.Enabled {
		sinks = append(sinks, alerting.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.APIBase, cfg.RequestTimeout, a.Logger))
	}
	if cfg.Slack.Enabled {
		sinks = append(sinks, alerting.NewSlackNotifier(cfg.Slack.WebhookURL, cfg.RequestTimeout, a.Logger))
	}
	return sinks
}

func (a *App) newNotifiers() []alerting.Notifier {
	sinks := a.newSinks()
	out := make([]alerting.Notifier, 0, len(sinks))
	for _, s := range sinks {
		out = append(out, s)
	}
	return out
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// RunOptions override monitor configuration from the command line.
type RunOptions struct {
	Symbol string
	Above  *string
	Below  *string
}

func (a *App) monitorInputs(opts RunOptions) (string, *threshold.Set, error) {
	symbol := strings.TrimSpace(a.Config.Monitor.Symbol)
	if opts.Symbol != "" {
		symbol = strings.TrimSpace(opts.Symbol)
	}
	if symbol == "" {
		return "", nil, errors.New("monitor.symbol is required (SYMBOL or --symbol)")
	}
	symbol = strings.ToUpper(symbol)

	above, below := a.Config.Monitor.AboveThresholds, a.Config.Monitor.BelowThresholds
	if opts.Above != nil {
		above = *opts.Above
	}
	if opts.Below != nil {
		below = *opts.Below
	}

	set, err := threshold.Parse(above, below)
	if err != nil {
		return "", nil, err
	}
	for _, w := range set.Warnings() {
		a.Logger.Warn().Str("symbol", symbol).Msg(w)
	}
	if set.Empty() {
		a.Logger.Warn().Str("symbol", symbol).Msg("no thresholds configured; monitor will never alert")
	}
	return symbol, set, nil
}

// Run executes the long-running monitor for one symbol.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	symbol, set, err := a.monitorInputs(opts)
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	var alertStore storage.AlertStore
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; alert audit and single-instance lock disabled")
	} else {
		alertStore = store
		unlock, err := a.awaitLock(ctx, store, symbol)
		if err != nil {
			return err
		}
		if unlock != nil {
			defer unlock()
		}
	}

	dex := a.newDexScreener()
	pair, err := a.newResolver(dex).Resolve(ctx, symbol)
	if err != nil {
		return err
	}

	mon := monitor.New(monitor.Options{
		Symbol:       symbol,
		Pair:         pair,
		Thresholds:   set,
		Refire:       monitor.RefirePolicy(a.Config.Monitor.Refire),
		PollInterval: a.Config.Monitor.PollInterval,
		ErrorBackoff: a.Config.Monitor.ErrorBackoff,
		StartupDelay: a.Config.Monitor.StartupDelay,
	}, dex, a.newNotifiers(), alertStore, a.Logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return mon.Run(gctx)
	})
	if a.Config.Status.Enabled {
		srv := status.NewServer(status.Options{
			Addr:        a.Config.Status.Addr,
			CORSOrigins: a.Config.Status.CORSOrigins,
		}, mon, a.Logger)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	a.Logger.Info().Str("symbol", symbol).Str("pair", pair.Label()).Str("dex", pair.DexID).Msg("starting price monitor")
	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("monitor terminated with error")
		return err
	}

	a.Logger.Info().Msg("price monitor stopped")
	return nil
}

// awaitLock blocks until this process owns the advisory lock for symbol.
// Replicas that lose the race stay on standby and retry after the error backoff.
func (a *App) awaitLock(ctx context.Context, locker storage.AdvisoryLocker, symbol string) (func(), error) {
	base := a.Config.Monitor.LockKey
	if base == 0 {
		return nil, nil
	}
	key := lockKey(base, symbol)

	for {
		unlock, acquired, err := locker.TryAdvisoryLock(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("acquire advisory lock: %w", err)
		}
		if acquired {
			a.Logger.Info().Int64("lock_key", key).Msg("advisory lock acquired")
			return unlock, nil
		}

		a.Logger.Info().Int64("lock_key", key).Dur("retry_in", a.Config.Monitor.ErrorBackoff).Msg("another instance monitors this symbol; standing by")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(a.Config.Monitor.ErrorBackoff):
		}
	}
}

func lockKey(base int64, symbol string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToUpper(symbol)))
	return base ^ int64(h.Sum64())
}

// ResolveOptions configure the resolve command.
type ResolveOptions struct {
	Symbol string
	Tokens []string
}

// ExportOptions hold parameters for exporting alert history.
type ExportOptions struct {
	Symbol    string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Symbol string
	Limit  int
}

// PriceOptions configure the one-shot price report.
type PriceOptions struct {
	Symbol       string
	TokenAddress string
	Report       bool
}

// SimulateOptions configure a simulated price sequence.
type SimulateOptions struct {
	Symbol  string
	Prices  []string
	Above   *string
	Below   *string
	Deliver bool
}

// PruneOptions configure alert retention.
type PruneOptions struct {
	OlderThan time.Duration
	DryRun    bool
}
