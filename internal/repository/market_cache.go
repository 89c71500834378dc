package repository

import (
	"context"
	"errors"
	"time"

	"CoinPull/internal/domain/models"
	domrepo "CoinPull/internal/domain/repository"
	"CoinPull/pkg/cache"
	applogger "CoinPull/pkg/logger"
)

const marketKeyPrefix = "market"

// CachedMarketData decorates a MarketData provider with cache-aside reads.
// Cache failures fall through to the provider.
type CachedMarketData struct {
	inner       domrepo.MarketData
	cache       cache.Service
	universeTTL time.Duration
	candleTTL   time.Duration
	l           *applogger.Logger
}

func NewCachedMarketData(inner domrepo.MarketData, c cache.Service, universeTTL, candleTTL time.Duration) *CachedMarketData {
	return &CachedMarketData{inner: inner, cache: c, universeTTL: universeTTL, candleTTL: candleTTL}
}

func (m *CachedMarketData) SetLogger(l *applogger.Logger) { m.l = l }

func (m *CachedMarketData) GetCandles(ctx context.Context, symbol string, tf domrepo.Timeframe, limit int) ([]models.Candle, error) {
	key := cache.GenerateKeyWithParams(marketKeyPrefix, "candles", symbol, tf, limit)
	var cached []models.Candle
	if m.candleTTL > 0 && m.read(ctx, key, &cached) {
		return cached, nil
	}
	cs, err := m.inner.GetCandles(ctx, symbol, tf, limit)
	if err != nil {
		return nil, err
	}
	// Bars close on their timeframe boundary, so a shorter timeframe bounds the TTL.
	ttl := m.candleTTL
	if d := tf.Duration(); d > 0 && d < ttl {
		ttl = d
	}
	if len(cs) > 0 && ttl > 0 {
		m.write(ctx, key, cs, ttl)
	}
	return cs, nil
}

func (m *CachedMarketData) Universe(ctx context.Context) ([]string, error) {
	key := cache.GenerateKey(marketKeyPrefix, "universe")
	var cached []string
	if m.universeTTL > 0 && m.read(ctx, key, &cached) {
		return cached, nil
	}
	syms, err := m.inner.Universe(ctx)
	if err != nil {
		return nil, err
	}
	if len(syms) > 0 && m.universeTTL > 0 {
		m.write(ctx, key, syms, m.universeTTL)
	}
	return syms, nil
}

func (m *CachedMarketData) read(ctx context.Context, key string, dest interface{}) bool {
	err := m.cache.Get(ctx, key, dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, cache.ErrCacheMiss) && m.l != nil {
		m.l.Warn("market cache read failed", applogger.String("key", key), applogger.Error(err))
	}
	return false
}

func (m *CachedMarketData) write(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	if err := m.cache.Set(ctx, key, v, ttl); err != nil && m.l != nil {
		m.l.Warn("market cache write failed", applogger.String("key", key), applogger.Error(err))
	}
}

var _ domrepo.MarketData = (*CachedMarketData)(nil)
