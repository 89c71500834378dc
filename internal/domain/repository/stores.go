package repository

import (
	"context"
	"time"

	"CoinPull/internal/domain/models"
)

// MarketData provides candles and the tradable symbol universe.
type MarketData interface {
	// GetCandles returns up to limit candles ordered ascending.
	GetCandles(ctx context.Context, symbol string, tf Timeframe, limit int) ([]models.Candle, error)
	// Universe returns symbols ordered by 24h turnover, descending.
	Universe(ctx context.Context) ([]string, error)
}

// SignalStore is the append-only signal history.
type SignalStore interface {
	Save(ctx context.Context, s models.EnhancedSignal) error
	SaveBatch(ctx context.Context, ss []models.EnhancedSignal) error
	Recent(ctx context.Context, symbol string, limit int) ([]models.EnhancedSignal, error)
	// Since returns the newest limit signals at or after from, in generation
	// order.
	Since(ctx context.Context, from time.Time, limit int) ([]models.EnhancedSignal, error)
}

// TradeStore persists executed trades.
type TradeStore interface {
	Open(ctx context.Context, t models.Trade) error
	Close(ctx context.Context, id string, pnl float64, at time.Time) error
	CountOpenedSince(ctx context.Context, from time.Time) (int, error)
	// Closed returns closed trades ordered by close time ascending.
	Closed(ctx context.Context, limit int) ([]models.Trade, error)
}

// SettingsStore is a small key/value store for operator settings and stats.
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// ModelStore persists the serialized classifier. Load returns
// models.ErrModelUnavailable when nothing has been saved.
type ModelStore interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, artifact []byte) error
}

// SignalPublisher emits enhanced signals to downstream subscribers.
type SignalPublisher interface {
	Publish(ctx context.Context, s models.EnhancedSignal) error
	Close() error
}

// Executor turns a ranked signal into an order.
type Executor interface {
	Execute(ctx context.Context, s models.EnhancedSignal) (models.Trade, error)
}

// Metrics records pipeline telemetry.
type Metrics interface {
	RecordScan(d time.Duration, scanned, signals int)
	RecordRejection(reason string)
	RecordSignal(side, trend string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
