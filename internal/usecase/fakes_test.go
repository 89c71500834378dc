package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"CoinPull/internal/domain/models"
	domrepo "CoinPull/internal/domain/repository"
)

// fakeMarket serves fixed candles per symbol and timeframe.
type fakeMarket struct {
	mu       sync.Mutex
	candles  map[string]map[domrepo.Timeframe][]models.Candle
	universe []string
	failTF   domrepo.Timeframe
	calls    int
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{candles: make(map[string]map[domrepo.Timeframe][]models.Candle)}
}

func (m *fakeMarket) set(symbol string, tf domrepo.Timeframe, cs []models.Candle) {
	if m.candles[symbol] == nil {
		m.candles[symbol] = make(map[domrepo.Timeframe][]models.Candle)
	}
	m.candles[symbol][tf] = cs
}

func (m *fakeMarket) setAll(symbol string, cs []models.Candle) {
	for _, tf := range []domrepo.Timeframe{domrepo.TF15m, domrepo.TF1h, domrepo.TF4h} {
		m.set(symbol, tf, cs)
	}
}

func (m *fakeMarket) GetCandles(_ context.Context, symbol string, tf domrepo.Timeframe, limit int) ([]models.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if tf == m.failTF {
		return nil, errors.New("upstream timeout")
	}
	cs := m.candles[symbol][tf]
	if limit > 0 && len(cs) > limit {
		cs = cs[len(cs)-limit:]
	}
	return cs, nil
}

func (m *fakeMarket) Universe(context.Context) ([]string, error) { return m.universe, nil }

// trendCandles returns n candles whose first 15 closes alternate (RSI 50)
// followed by a steady drift of step per bar.
func trendCandles(n int, step, volume float64) []models.Candle {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	c := 100.0
	for i := 0; i < n; i++ {
		switch {
		case i < 15:
			c = 100 + float64(i%2)
		default:
			c += step
		}
		out[i] = models.Candle{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    volume,
		}
	}
	return out
}

type fakeMetrics struct {
	mu         sync.Mutex
	rejections map[string]int
	signals    int
	errors     map[string]int
	scans      int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{rejections: map[string]int{}, errors: map[string]int{}}
}

func (f *fakeMetrics) RecordScan(time.Duration, int, int) {
	f.mu.Lock()
	f.scans++
	f.mu.Unlock()
}

func (f *fakeMetrics) RecordRejection(reason string) {
	f.mu.Lock()
	f.rejections[reason]++
	f.mu.Unlock()
}

func (f *fakeMetrics) RecordSignal(string, string) {
	f.mu.Lock()
	f.signals++
	f.mu.Unlock()
}

func (f *fakeMetrics) RecordError(kind string) {
	f.mu.Lock()
	f.errors[kind]++
	f.mu.Unlock()
}

func (f *fakeMetrics) RecordLatency(string, float64) {}

type stubClassifier struct {
	p   float64
	err error
}

func (s stubClassifier) PredictProba(context.Context, []float64) (float64, error) { return s.p, s.err }
