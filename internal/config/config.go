package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"dexalerts/internal/logging"
	"dexalerts/internal/version"
)

const (
	RefireLatch     = "latch"
	RefireEveryTick = "every_tick"
)

// Config materialises application configuration.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Logging       logging.Config      `mapstructure:"logging"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Monitor       MonitorConfig       `mapstructure:"monitor"`
	Resolver      ResolverConfig      `mapstructure:"resolver"`
	DexScreener   DexScreenerConfig   `mapstructure:"dexscreener"`
	CoinMarketCap CoinMarketCapConfig `mapstructure:"coinmarketcap"`
	Alerting      AlertingConfig      `mapstructure:"alerting"`
	Status        StatusConfig        `mapstructure:"status"`
	Export        ExportConfig        `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity for the alert audit log.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	PingOnStart     bool          `mapstructure:"ping_on_start"`
}

// MonitorConfig drives the price-change monitor.
type MonitorConfig struct {
	Symbol          string        `mapstructure:"symbol"`
	AboveThresholds string        `mapstructure:"above_thresholds"`
	BelowThresholds string        `mapstructure:"below_thresholds"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	ErrorBackoff    time.Duration `mapstructure:"error_backoff"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	Refire          string        `mapstructure:"refire"`
	// LockKey enables a postgres advisory lock (key xor symbol hash) so only one replica monitors a symbol.
	LockKey int64 `mapstructure:"lock_key"`
}

// ResolverConfig governs symbol to pair resolution.
type ResolverConfig struct {
	AllowedDexes []string      `mapstructure:"allowed_dexes"`
	Attempts     int           `mapstructure:"attempts"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
}

// DexScreenerConfig captures DexScreener connectivity.
type DexScreenerConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	RatePerSecond  float64       `mapstructure:"rate_per_second"`
	Burst          int           `mapstructure:"burst"`
}

// CoinMarketCapConfig captures CoinMarketCap connectivity.
type CoinMarketCapConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RatePerSecond  float64       `mapstructure:"rate_per_second"`
}

// AlertingConfig defines alert routing.
type AlertingConfig struct {
	Enabled        bool           `mapstructure:"enabled"`
	RequestTimeout time.Duration  `mapstructure:"request_timeout"`
	Discord        DiscordConfig  `mapstructure:"discord"`
	Telegram       TelegramConfig `mapstructure:"telegram"`
	Slack          SlackConfig    `mapstructure:"slack"`
}

// DiscordConfig describes the Discord webhook sink.
type DiscordConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url"`
	Username   string `mapstructure:"username"`
}

// TelegramConfig describes the Telegram sink.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// SlackConfig describes the Slack webhook sink.
type SlackConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url"`
}

// StatusConfig controls the liveness/state HTTP endpoint.
type StatusConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// legacyEnv maps keys to the environment names used by existing deployments.
var legacyEnv = map[string]string{
	"monitor.symbol":               "SYMBOL",
	"monitor.above_thresholds":     "ALERT_GREATER_THAN",
	"monitor.below_thresholds":     "ALERT_LESS_THAN",
	"alerting.discord.webhook_url": "DISCORD_WEBHOOK",
	"coinmarketcap.api_key":        "COINMARKETCAP_TOKEN",
	"coinmarketcap.base_url":       "COINMARKETCAP_URL",
	"alerting.telegram.bot_token":  "TELEGRAM_BOT_TOKEN",
	"alerting.telegram.chat_id":    "TELEGRAM_CHAT_ID",
	"database.dsn":                 "DATABASE_URL",
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("DEXALERTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadDotEnv() error {
	// existing environment variables win over .env entries
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func bindLegacyEnv(v *viper.Viper) error {
	for key, legacy := range legacyEnv {
		prefixed := "DEXALERTS_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "dexalerts")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.ping_on_start", true)

	v.SetDefault("monitor.above_thresholds", "")
	v.SetDefault("monitor.below_thresholds", "")
	v.SetDefault("monitor.poll_interval", "1s")
	v.SetDefault("monitor.error_backoff", "60s")
	v.SetDefault("monitor.startup_delay", "0s")
	v.SetDefault("monitor.refire", RefireLatch)
	v.SetDefault("monitor.lock_key", int64(0x64657861))

	v.SetDefault("resolver.allowed_dexes", []string{"raydium", "orca"})
	v.SetDefault("resolver.attempts", 3)
	v.SetDefault("resolver.retry_delay", "2s")

	v.SetDefault("dexscreener.base_url", "https://api.dexscreener.com/latest/dex")
	v.SetDefault("dexscreener.request_timeout", "10s")
	v.SetDefault("dexscreener.user_agent", version.UserAgent())
	v.SetDefault("dexscreener.rate_per_second", 4.0)
	v.SetDefault("dexscreener.burst", 2)

	v.SetDefault("coinmarketcap.base_url", "https://pro-api.coinmarketcap.com")
	v.SetDefault("coinmarketcap.request_timeout", "10s")
	v.SetDefault("coinmarketcap.rate_per_second", 0.5)

	v.SetDefault("alerting.enabled", true)
	v.SetDefault("alerting.request_timeout", "10s")
	v.SetDefault("alerting.discord.enabled", true)
	v.SetDefault("alerting.discord.username", "GIGABOT")
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.slack.enabled", false)

	v.SetDefault("status.enabled", false)
	v.SetDefault("status.addr", ":8080")

	v.SetDefault("export.max_data_points", 10000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Monitor.PollInterval <= 0 {
		return fmt.Errorf("monitor.poll_interval must be greater than zero")
	}
	if c.Monitor.ErrorBackoff <= 0 {
		return fmt.Errorf("monitor.error_backoff must be greater than zero")
	}
	switch c.Monitor.Refire {
	case RefireLatch, RefireEveryTick:
	default:
		return fmt.Errorf("monitor.refire must be %q or %q, got %q", RefireLatch, RefireEveryTick, c.Monitor.Refire)
	}
	if len(c.Resolver.AllowedDexes) == 0 {
		return fmt.Errorf("resolver.allowed_dexes must list at least one dex")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	if c.Alerting.Slack.Enabled && c.Alerting.Slack.WebhookURL == "" {
		return fmt.Errorf("alerting.slack.webhook_url is required")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
