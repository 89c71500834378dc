package config

import "time"

// Default returns a config populated with the production defaults. YAML
// values loaded on top override individual fields.
func Default() *Config {
	c := &Config{Environment: "development"}

	c.Server.Host = "0.0.0.0"
	c.Server.Port = 8080
	c.Server.ReadTimeout = 10 * time.Second
	c.Server.WriteTimeout = 30 * time.Second
	c.Server.ShutdownTimeout = 10 * time.Second
	c.Metrics.Enabled = true
	c.Metrics.Path = "/metrics"

	c.Log.Level = "info"
	c.Log.Format = "console"
	c.Log.Output = "stdout"
	c.Log.ErrorsTopic = "logs.errors"
	c.Log.FlushEvery = 30 * time.Second

	c.Bybit.BaseURL = "https://api.bybit.com"
	c.Bybit.Category = "linear"
	c.Bybit.KlineLimit = 200
	c.Bybit.MaxSymbols = 100
	c.Bybit.QuoteSuffix = "USDT"
	c.Bybit.Timeout = 10 * time.Second
	c.Bybit.RatePerSec = 5
	c.Bybit.Burst = 5
	c.Bybit.CacheTTL.Universe = 10 * time.Minute
	c.Bybit.CacheTTL.Candles = time.Minute

	c.Strategy.Timeframes = []string{"15m", "1h", "4h"}
	c.Strategy.Reference = "1h"
	c.Strategy.MinCandles = 30
	c.Strategy.MinVolume = 1000
	c.Strategy.MinATRPct = 0.001
	c.Strategy.RSILow = 20
	c.Strategy.RSIHigh = 80
	c.Strategy.TargetBand = 0.015
	c.Strategy.TrailBuffer = 0.002
	c.Strategy.Leverage = 20
	c.Strategy.AccountBalance = 100
	c.Strategy.RiskPct = 0.15
	c.Strategy.ExtremeLow = 30
	c.Strategy.ExtremeHigh = 70
	c.Strategy.Weights.MACD = 0.3
	c.Strategy.Weights.Extended = 0.2
	c.Strategy.Weights.Breakout = 0.3
	c.Strategy.Weights.Inside = 0.1
	c.Strategy.Weights.Trend = 0.2
	c.Strategy.Weights.Other = 0.1

	c.Scorer.DefaultScore = 60
	c.Scorer.DefaultConfidence = 70
	c.Scorer.JitterMax = 10
	c.Scorer.ModelStore = "file"
	c.Scorer.ModelPath = "ml_models/confidence_model.json"
	c.Scorer.ModelKey = "model:confidence"
	c.Scorer.RemoteTimeout = 3 * time.Second
	c.Scorer.MinSamples = 30
	c.Scorer.HistoryLimit = 5000

	c.Scheduler.Interval = 900 * time.Second
	c.Scheduler.TopN = 5
	c.Scheduler.CheckEvery = 30 * time.Second
	c.Scheduler.RiskCooldown = 60 * time.Second
	c.Scheduler.ErrorBackoff = 90 * time.Second

	c.Risk.InitialCapital = 100
	c.Risk.MaxDrawdownPct = 20
	c.Risk.MaxDailyTrades = 50

	c.Storage.Mode = "direct"

	c.Kafka.Topic = "signals.enhanced"
	c.Kafka.RequiredAcks = -1
	c.Kafka.Compression = "gzip"
	c.Kafka.Producer.MaxAttempts = 3
	c.Kafka.Producer.Linger = 50 * time.Millisecond
	c.Kafka.Producer.BatchSize = 100
	c.Kafka.Producer.WriteTimeout = 10 * time.Second
	c.Kafka.Consumer.GroupID = "coinpull-archive"
	c.Kafka.Consumer.RetryMax = 3
	c.Kafka.Consumer.BackoffMin = 100 * time.Millisecond
	c.Kafka.Consumer.BackoffMax = 2 * time.Second
	c.Kafka.Consumer.MinBytes = 1
	c.Kafka.Consumer.MaxBytes = 10 << 20
	c.Kafka.Consumer.DLQTopic = "signals.enhanced.dlq"

	c.ClickHouse.Host = "localhost"
	c.ClickHouse.Port = 9000
	c.ClickHouse.Database = "coinpull"
	c.ClickHouse.User = "default"
	c.ClickHouse.DialTimeout = 5 * time.Second
	c.ClickHouse.ReadTimeout = 10 * time.Second

	c.Postgres.MaxConns = 10
	c.Postgres.MinConns = 2
	c.Postgres.MaxConnLifetime = 30 * time.Minute
	c.Postgres.MaxConnIdleTime = 5 * time.Minute

	c.Redis.Host = "localhost"
	c.Redis.Port = 6379
	c.Redis.Prefix = "coinpull"

	c.Notify.Timeout = 10 * time.Second
	c.Notify.Telegram.BaseURL = "https://api.telegram.org"
	c.Notify.FCM.Topic = "signals"
	c.Notify.Queue.Workers = 2
	c.Notify.Queue.RetryLimit = 5
	c.Notify.Queue.RetryDelay = 10 * time.Second

	c.Report.Dir = "reports"
	return c
}
