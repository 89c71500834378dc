package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Host            string        `yaml:"host"`
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Log struct {
		Level       string        `yaml:"level"`
		Format      string        `yaml:"format"`
		Output      string        `yaml:"output"`
		ErrorsTopic string        `yaml:"errors_topic"`
		FlushEvery  time.Duration `yaml:"flush_every"`
	} `yaml:"log"`
	Bybit struct {
		BaseURL     string        `yaml:"base_url"`
		Category    string        `yaml:"category"`
		KlineLimit  int           `yaml:"kline_limit"`
		MaxSymbols  int           `yaml:"max_symbols"`
		QuoteSuffix string        `yaml:"quote_suffix"`
		Timeout     time.Duration `yaml:"timeout"`
		RatePerSec  float64       `yaml:"rate_per_sec"`
		Burst       float64       `yaml:"burst"`
		CacheTTL    struct {
			Universe time.Duration `yaml:"universe"`
			Candles  time.Duration `yaml:"candles"`
		} `yaml:"cache_ttl"`
	} `yaml:"bybit"`
	Strategy struct {
		Timeframes     []string `yaml:"timeframes"`
		Reference      string   `yaml:"reference"`
		MinCandles     int      `yaml:"min_candles"`
		MinVolume      float64  `yaml:"min_volume"`
		MinATRPct      float64  `yaml:"min_atr_pct"`
		RSILow         float64  `yaml:"rsi_low"`
		RSIHigh        float64  `yaml:"rsi_high"`
		TargetBand     float64  `yaml:"target_band"`
		TrailBuffer    float64  `yaml:"trail_buffer"`
		Leverage       float64  `yaml:"leverage"`
		AccountBalance float64  `yaml:"account_balance"`
		RiskPct        float64  `yaml:"risk_pct"`
		ExtremeLow     float64  `yaml:"extreme_low"`
		ExtremeHigh    float64  `yaml:"extreme_high"`
		Weights        struct {
			MACD     float64 `yaml:"macd"`
			Extended float64 `yaml:"extended"`
			Breakout float64 `yaml:"breakout"`
			Inside   float64 `yaml:"inside"`
			Trend    float64 `yaml:"trend"`
			Other    float64 `yaml:"other"`
		} `yaml:"weights"`
	} `yaml:"strategy"`
	Scorer struct {
		DefaultScore      float64       `yaml:"default_score"`
		DefaultConfidence float64       `yaml:"default_confidence"`
		JitterMax         float64       `yaml:"jitter_max"`
		Seed              int64         `yaml:"seed"`
		ModelStore        string        `yaml:"model_store"` // file | redis | http
		ModelPath         string        `yaml:"model_path"`
		ModelKey          string        `yaml:"model_key"`
		RemoteURL         string        `yaml:"remote_url"`
		RemoteTimeout     time.Duration `yaml:"remote_timeout"`
		MinSamples        int           `yaml:"min_samples"`
		HistoryLimit      int           `yaml:"history_limit"`
	} `yaml:"scorer"`
	Scheduler struct {
		Interval     time.Duration `yaml:"interval"`
		TopN         int           `yaml:"top_n"`
		CheckEvery   time.Duration `yaml:"check_every"`
		RiskCooldown time.Duration `yaml:"risk_cooldown"`
		ErrorBackoff time.Duration `yaml:"error_backoff"`
		AutoStart    bool          `yaml:"auto_start"`
	} `yaml:"scheduler"`
	Risk struct {
		InitialCapital float64 `yaml:"initial_capital"`
		MaxDrawdownPct float64 `yaml:"max_drawdown_pct"`
		MaxDailyTrades int     `yaml:"max_daily_trades"`
	} `yaml:"risk"`
	Storage struct {
		// Mode "direct" writes signals to ClickHouse inline; "kafka" publishes and
		// lets the archive consumer persist them.
		Mode string `yaml:"mode"`
	} `yaml:"storage"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
			DLQTopic   string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Postgres struct {
		Enabled         bool          `yaml:"enabled"`
		URL             string        `yaml:"url"`
		MaxConns        int32         `yaml:"max_conns"`
		MinConns        int32         `yaml:"min_conns"`
		MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
		MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	} `yaml:"postgres"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Notify struct {
		Timeout  time.Duration `yaml:"timeout"`
		Discord  struct {
			WebhookURL string `yaml:"webhook_url"`
		} `yaml:"discord"`
		Telegram struct {
			BaseURL  string `yaml:"base_url"`
			BotToken string `yaml:"bot_token"`
			ChatID   string `yaml:"chat_id"`
		} `yaml:"telegram"`
		FCM struct {
			CredentialsPath string `yaml:"credentials_path"`
			Topic           string `yaml:"topic"`
		} `yaml:"fcm"`
		Queue struct {
			Enabled    bool          `yaml:"enabled"`
			Workers    int           `yaml:"workers"`
			RetryLimit int           `yaml:"retry_limit"`
			RetryDelay time.Duration `yaml:"retry_delay"`
		} `yaml:"queue"`
	} `yaml:"notify"`
	Report struct {
		Dir string `yaml:"dir"`
	} `yaml:"report"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads .env (when present), the YAML file, and then applies
// environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("BYBIT_BASE_URL"); v != "" {
		c.Bybit.BaseURL = v
	}
	if v := os.Getenv("SCAN_INTERVAL"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SCAN_INTERVAL: %w", err)
		}
		c.Scheduler.Interval = time.Duration(secs) * time.Second
	}
	if v := os.Getenv("TOP_N_SIGNALS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TOP_N_SIGNALS: %w", err)
		}
		c.Scheduler.TopN = n
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		c.Notify.Discord.WebhookURL = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Notify.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Notify.Telegram.ChatID = v
	}
	if v := os.Getenv("FIREBASE_CREDENTIALS_PATH"); v != "" {
		c.Notify.FCM.CredentialsPath = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("POSTGRES_URL"); v != "" {
		c.Postgres.URL = v
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Strategy.Timeframes) == 0 {
		return fmt.Errorf("strategy.timeframes cannot be empty")
	}
	found := false
	for _, tf := range c.Strategy.Timeframes {
		if tf == c.Strategy.Reference {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("strategy.reference %q must be one of strategy.timeframes", c.Strategy.Reference)
	}
	if c.Strategy.Leverage <= 1 {
		return fmt.Errorf("strategy.leverage must be > 1, got %v", c.Strategy.Leverage)
	}
	if c.Strategy.RSILow >= c.Strategy.RSIHigh {
		return fmt.Errorf("strategy.rsi_low must be below strategy.rsi_high")
	}
	if c.Strategy.MinCandles < 1 {
		return fmt.Errorf("strategy.min_candles must be positive")
	}
	if c.Strategy.TargetBand <= 0 || c.Strategy.TargetBand >= 1 {
		return fmt.Errorf("strategy.target_band must be in (0,1), got %v", c.Strategy.TargetBand)
	}
	w := c.Strategy.Weights
	if w.MACD+w.Extended+max(w.Breakout, w.Inside)+max(w.Trend, w.Other) > 1+1e-9 {
		return fmt.Errorf("strategy.weights can sum above 1")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive")
	}
	if c.Scheduler.TopN < 0 {
		return fmt.Errorf("scheduler.top_n cannot be negative")
	}
	switch c.Scorer.ModelStore {
	case "file", "redis", "http":
	default:
		return fmt.Errorf("scorer.model_store must be 'file', 'redis' or 'http', got '%s'", c.Scorer.ModelStore)
	}
	if c.Scorer.ModelStore == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("scorer.model_store 'redis' requires redis.enabled")
	}
	if c.Scorer.ModelStore == "http" && c.Scorer.RemoteURL == "" {
		return fmt.Errorf("scorer.remote_url is required for model_store 'http'")
	}
	switch c.Storage.Mode {
	case "direct":
	case "kafka":
		if !c.Kafka.Enabled || !c.ClickHouse.Enabled {
			return fmt.Errorf("storage.mode 'kafka' requires kafka.enabled and clickhouse.enabled")
		}
	default:
		return fmt.Errorf("storage.mode must be 'direct' or 'kafka', got '%s'", c.Storage.Mode)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Notify.Queue.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("notify.queue requires redis.enabled")
	}
	if c.Postgres.Enabled && c.Postgres.URL == "" {
		return fmt.Errorf("postgres.url is required when postgres is enabled")
	}
	return nil
}
