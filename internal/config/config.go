// Package config provides configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App         AppConfig          `mapstructure:"app"`
	Scan        ScanConfig         `mapstructure:"scan"`
	Dedup       DedupConfig        `mapstructure:"dedup"`
	Redis       RedisConfig        `mapstructure:"redis"`
	Notify      NotifyConfig       `mapstructure:"notify"`
	CEX         CEXConfig          `mapstructure:"cex"`
	ZeroEx      ZeroExConfig       `mapstructure:"zeroex"`
	Uniswap     UniswapConfig      `mapstructure:"uniswap"`
	Instruments []InstrumentConfig `mapstructure:"instruments"`
	Telemetry   TelemetryConfig    `mapstructure:"telemetry"`
	Health      HealthConfig       `mapstructure:"health"`

	// TUIMode is set from the command line, not from config.
	TUIMode bool `mapstructure:"-"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// ScanConfig drives the scan loop and detection.
type ScanConfig struct {
	Interval           time.Duration `mapstructure:"interval"`
	ThresholdPercent   float64       `mapstructure:"threshold_percent"`
	FatalBackoffFactor float64       `mapstructure:"fatal_backoff_factor"`
	SourceTimeout      time.Duration `mapstructure:"source_timeout"`
	MaxConcurrency     int           `mapstructure:"max_concurrency"`
}

// ThresholdDecimal returns the alert threshold as a decimal percentage.
func (c ScanConfig) ThresholdDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.ThresholdPercent)
}

// DedupConfig controls alert suppression.
type DedupConfig struct {
	Cooldown           time.Duration `mapstructure:"cooldown"`
	BucketWidthPercent float64       `mapstructure:"bucket_width_percent"`
	// Store is "memory" or "redis".
	Store     string `mapstructure:"store"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// BucketWidthDecimal returns the bucket width as a decimal percentage.
func (c DedupConfig) BucketWidthDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.BucketWidthPercent)
}

// RedisConfig holds connection parameters for the shared alert store.
type RedisConfig struct {
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	PoolSize   int    `mapstructure:"pool_size"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
}

// NotifyConfig holds notification channel settings.
type NotifyConfig struct {
	DryRun         bool           `mapstructure:"dry_run"`
	MaxRetries     int            `mapstructure:"max_retries"`
	InitialBackoff time.Duration  `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration  `mapstructure:"max_backoff"`
	SendTimeout    time.Duration  `mapstructure:"send_timeout"`
	Telegram       TelegramConfig `mapstructure:"telegram"`
	Discord        DiscordConfig  `mapstructure:"discord"`
}

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	BotToken string   `mapstructure:"bot_token"`
	ChatIDs  []string `mapstructure:"chat_ids"`
	APIURL   string   `mapstructure:"api_url"`
}

// DiscordConfig holds Discord webhook settings.
type DiscordConfig struct {
	WebhookURLs []string `mapstructure:"webhook_urls"`
}

// HasChannel reports whether at least one real channel is configured.
func (c NotifyConfig) HasChannel() bool {
	return (c.Telegram.BotToken != "" && len(c.Telegram.ChatIDs) > 0) || len(c.Discord.WebhookURLs) > 0
}

// CEXConfig holds centralized exchange settings.
type CEXConfig struct {
	// Exchanges are venue names in priority order.
	Exchanges         []string          `mapstructure:"exchanges"`
	RequestsPerMinute int               `mapstructure:"requests_per_minute"`
	BinanceStream     StreamConfig      `mapstructure:"binance_stream"`
	BaseURLs          map[string]string `mapstructure:"base_urls"`
}

// StreamConfig holds the optional Binance bookTicker stream settings.
type StreamConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	WebSocketURL string        `mapstructure:"websocket_url"`
	StaleTimeout time.Duration `mapstructure:"stale_timeout"`
}

// ZeroExConfig holds the DEX aggregator settings.
type ZeroExConfig struct {
	Enabled           bool     `mapstructure:"enabled"`
	APIKey            string   `mapstructure:"api_key"`
	BaseURL           string   `mapstructure:"base_url"`
	Networks          []string `mapstructure:"networks"`
	RequestsPerMinute int      `mapstructure:"requests_per_minute"`
}

// UniswapConfig holds on-chain QuoterV2 settings per network.
type UniswapConfig struct {
	Enabled  bool                   `mapstructure:"enabled"`
	FeeTiers []int                  `mapstructure:"fee_tiers"`
	Networks []UniswapNetworkConfig `mapstructure:"networks"`
}

// UniswapNetworkConfig is one network's RPC endpoint and quoter.
type UniswapNetworkConfig struct {
	Name          string `mapstructure:"name"`
	RPCURL        string `mapstructure:"rpc_url"`
	QuoterAddress string `mapstructure:"quoter_address"`
}

// QuoterAddressHex returns the quoter address as common.Address.
func (c UniswapNetworkConfig) QuoterAddressHex() common.Address {
	return common.HexToAddress(c.QuoterAddress)
}

// InstrumentConfig describes one monitored asset.
type InstrumentConfig struct {
	Symbol string `mapstructure:"symbol"`
	// Contracts maps network name to token contract address.
	Contracts map[string]string `mapstructure:"contracts"`
	// Decimals maps network name to token decimals; missing means 18.
	Decimals map[string]uint8 `mapstructure:"decimals"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	TraceProvider  string `mapstructure:"trace_provider"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// HealthConfig holds the health server settings.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// KnownVenues lists the centralized exchanges with a REST adapter.
var KnownVenues = map[string]bool{
	"binance": true, "bybit": true, "bitget": true, "gate": true,
	"okx": true, "mexc": true, "huobi": true, "kucoin": true,
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("ARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "ARB_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "ARB_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "ARB_LOG_LEVEL", "LOG_LEVEL")

	// Scan
	v.BindEnv("scan.interval", "ARB_SCAN_INTERVAL")
	v.BindEnv("scan.threshold_percent", "ARB_THRESHOLD_PERCENT", "THRESHOLD_PERCENT")

	// Dedup / Redis
	v.BindEnv("dedup.store", "ARB_DEDUP_STORE")
	v.BindEnv("redis.addr", "ARB_REDIS_ADDR", "REDIS_ADDR")
	v.BindEnv("redis.password", "ARB_REDIS_PASSWORD", "REDIS_PASSWORD")

	// Notify
	v.BindEnv("notify.dry_run", "ARB_NOTIFY_DRY_RUN")
	v.BindEnv("notify.telegram.bot_token", "ARB_TELEGRAM_BOT_TOKEN", "TELEGRAM_BOT_TOKEN")
	v.BindEnv("notify.telegram.chat_ids", "ARB_TELEGRAM_CHAT_IDS", "TELEGRAM_CHAT_ID")
	v.BindEnv("notify.discord.webhook_urls", "ARB_DISCORD_WEBHOOK_URLS", "DISCORD_WEBHOOK_URL")

	// Sources
	v.BindEnv("cex.exchanges", "ARB_CEX_EXCHANGES")
	v.BindEnv("zeroex.api_key", "ARB_ZEROEX_API_KEY", "ZEROEX_API_KEY")

	// Telemetry
	v.BindEnv("telemetry.enabled", "ARB_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "ARB_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "ARB_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.otlp_headers", "ARB_OTEL_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "spread-monitor")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Scan defaults
	v.SetDefault("scan.interval", "10s")
	v.SetDefault("scan.threshold_percent", 1.0)
	v.SetDefault("scan.fatal_backoff_factor", 1.5)
	v.SetDefault("scan.source_timeout", "5s")
	v.SetDefault("scan.max_concurrency", 16)

	// Dedup defaults
	v.SetDefault("dedup.cooldown", "5m")
	v.SetDefault("dedup.bucket_width_percent", 1.0)
	v.SetDefault("dedup.store", "memory")
	v.SetDefault("dedup.key_prefix", "spread-monitor:alert:")

	v.SetDefault("redis.pool_size", 10)

	// Notify defaults
	v.SetDefault("notify.max_retries", 3)
	v.SetDefault("notify.initial_backoff", "500ms")
	v.SetDefault("notify.max_backoff", "5s")
	v.SetDefault("notify.send_timeout", "10s")
	v.SetDefault("notify.telegram.api_url", "https://api.telegram.org")

	// Source defaults
	v.SetDefault("cex.exchanges", []string{"binance", "bybit", "bitget", "gate", "okx", "mexc", "huobi", "kucoin"})
	v.SetDefault("cex.requests_per_minute", 600)
	v.SetDefault("cex.binance_stream.enabled", false)
	v.SetDefault("cex.binance_stream.websocket_url", "wss://stream.binance.com:9443")
	v.SetDefault("cex.binance_stream.stale_timeout", "5s")

	v.SetDefault("zeroex.enabled", true)
	v.SetDefault("zeroex.base_url", "https://api.0x.org")
	v.SetDefault("zeroex.networks", []string{"ethereum", "bsc", "polygon"})
	v.SetDefault("zeroex.requests_per_minute", 120)

	v.SetDefault("uniswap.enabled", false)
	v.SetDefault("uniswap.fee_tiers", []int{500, 3000, 10000})

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "spread-monitor")
	v.SetDefault("telemetry.trace_provider", "zipkin")
	v.SetDefault("telemetry.prometheus_port", 9090)

	v.SetDefault("health.enabled", true)
	v.SetDefault("health.port", 8081)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.Instruments) == 0 {
		return fmt.Errorf("instruments cannot be empty")
	}
	seen := make(map[string]bool, len(c.Instruments))
	for i, inst := range c.Instruments {
		if !strings.Contains(inst.Symbol, "/") {
			return fmt.Errorf("instruments[%d].symbol must look like BASE/QUOTE, got %q", i, inst.Symbol)
		}
		if seen[inst.Symbol] {
			return fmt.Errorf("duplicate instrument %s", inst.Symbol)
		}
		seen[inst.Symbol] = true
		for network, addr := range inst.Contracts {
			if !common.IsHexAddress(addr) {
				return fmt.Errorf("invalid contract for %s on %s: %s", inst.Symbol, network, addr)
			}
		}
	}

	if c.Scan.Interval <= 0 {
		return fmt.Errorf("scan.interval must be positive")
	}
	if c.Scan.ThresholdPercent <= 0 {
		return fmt.Errorf("scan.threshold_percent must be positive")
	}
	if c.Scan.FatalBackoffFactor < 1 {
		return fmt.Errorf("scan.fatal_backoff_factor must be >= 1")
	}
	if c.Scan.SourceTimeout <= 0 {
		return fmt.Errorf("scan.source_timeout must be positive")
	}
	if c.Scan.MaxConcurrency <= 0 {
		return fmt.Errorf("scan.max_concurrency must be positive")
	}

	if c.Dedup.Cooldown <= 0 {
		return fmt.Errorf("dedup.cooldown must be positive")
	}
	if c.Dedup.BucketWidthPercent <= 0 {
		return fmt.Errorf("dedup.bucket_width_percent must be positive")
	}
	switch c.Dedup.Store {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required when dedup.store is redis")
		}
	default:
		return fmt.Errorf("unknown dedup.store %q", c.Dedup.Store)
	}

	if !c.Notify.DryRun && !c.Notify.HasChannel() {
		return fmt.Errorf("no notification channel configured (set telegram bot_token and chat_ids, a discord webhook, or notify.dry_run)")
	}
	if c.Notify.MaxRetries < 0 {
		return fmt.Errorf("notify.max_retries cannot be negative")
	}

	if len(c.CEX.Exchanges) == 0 && !c.ZeroEx.Enabled && !c.Uniswap.Enabled {
		return fmt.Errorf("no quote sources configured")
	}
	for _, ex := range c.CEX.Exchanges {
		if !KnownVenues[strings.ToLower(ex)] {
			return fmt.Errorf("unknown cex venue %q", ex)
		}
	}

	for _, n := range c.Uniswap.Networks {
		if n.RPCURL == "" {
			return fmt.Errorf("uniswap network %s: rpc_url is required", n.Name)
		}
		if !common.IsHexAddress(n.QuoterAddress) {
			return fmt.Errorf("invalid uniswap quoter_address for %s: %s", n.Name, n.QuoterAddress)
		}
	}

	return nil
}
