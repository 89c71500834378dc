package repository

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"CoinPull/internal/domain/models"
	domrepo "CoinPull/internal/domain/repository"
	"CoinPull/pkg/cache"
)

type countingMarket struct {
	candleCalls, universeCalls int
}

func (m *countingMarket) GetCandles(_ context.Context, symbol string, _ domrepo.Timeframe, limit int) ([]models.Candle, error) {
	m.candleCalls++
	return []models.Candle{{Timestamp: time.Unix(0, 0).UTC(), Close: 1}, {Timestamp: time.Unix(60, 0).UTC(), Close: 2}}, nil
}

func (m *countingMarket) Universe(context.Context) ([]string, error) {
	m.universeCalls++
	return []string{"BTCUSDT", "ETHUSDT"}, nil
}

func TestCachedMarketDataServesFromCache(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	inner := &countingMarket{}
	md := NewCachedMarketData(inner, mc, time.Minute, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cs, err := md.GetCandles(ctx, "BTCUSDT", domrepo.TF1h, 200)
		if err != nil || len(cs) != 2 || cs[1].Close != 2 {
			t.Fatalf("GetCandles = %v, %v", cs, err)
		}
		syms, err := md.Universe(ctx)
		if err != nil || len(syms) != 2 {
			t.Fatalf("Universe = %v, %v", syms, err)
		}
	}
	if inner.candleCalls != 1 || inner.universeCalls != 1 {
		t.Fatalf("expected one upstream call each, got candles=%d universe=%d", inner.candleCalls, inner.universeCalls)
	}
	if _, err := md.GetCandles(ctx, "BTCUSDT", domrepo.TF4h, 200); err != nil || inner.candleCalls != 2 {
		t.Fatalf("different timeframe must miss the cache")
	}
}

func TestFileModelStore(t *testing.T) {
	s := NewFileModelStore(filepath.Join(t.TempDir(), "models", "m.json"))
	ctx := context.Background()
	if _, err := s.Load(ctx); !errors.Is(err, models.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
	if err := s.Save(ctx, []byte(`{"kind":"x"}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	b, err := s.Load(ctx)
	if err != nil || string(b) != `{"kind":"x"}` {
		t.Fatalf("Load = %s, %v", b, err)
	}
}

func TestCacheModelStore(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	s := NewCacheModelStore(mc, "model:confidence")
	ctx := context.Background()
	if _, err := s.Load(ctx); !errors.Is(err, models.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
	if err := s.Save(ctx, []byte("artifact")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if b, err := s.Load(ctx); err != nil || string(b) != "artifact" {
		t.Fatalf("Load = %s, %v", b, err)
	}
}

func TestPaperExecutor(t *testing.T) {
	trades := NewMemoryTradeStore()
	ex := NewPaperExecutor(trades)
	sig := models.EnhancedSignal{RawSignal: models.RawSignal{
		ID: "sig-1", Symbol: "BTCUSDT", Side: models.SideLong, Entry: 50,
		TakeProfit: 50.75, StopLoss: 49.25, Margin: 0.75, Leverage: 20,
	}, Score: 90}

	tr, err := ex.Execute(context.Background(), sig)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.HasPrefix(tr.OrderID, "virtual_") || !tr.Virtual || tr.Status != models.TradeOpen {
		t.Fatalf("unexpected trade %+v", tr)
	}
	if math.Abs(tr.Qty-0.3) > 1e-12 {
		t.Fatalf("qty = %v, want 0.3", tr.Qty)
	}
	n, _ := trades.CountOpenedSince(context.Background(), time.Now().Add(-time.Minute))
	if n != 1 {
		t.Fatalf("trade not stored")
	}

	if _, err := ex.Execute(context.Background(), models.EnhancedSignal{}); !errors.Is(err, models.ErrInvalidSignal) {
		t.Fatalf("expected ErrInvalidSignal, got %v", err)
	}
}

func TestMemoryTradeStoreClosedOrder(t *testing.T) {
	s := NewMemoryTradeStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, id := range []string{"a", "b", "c"} {
		if err := s.Open(ctx, models.Trade{ID: id, Status: models.TradeOpen, OpenedAt: base}); err != nil {
			t.Fatalf("Open: %v", err)
		}
	}
	_ = s.Close(ctx, "c", 3, base.Add(time.Hour))
	_ = s.Close(ctx, "a", 1, base.Add(2*time.Hour))
	if err := s.Close(ctx, "a", 1, base); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("closing twice should fail, got %v", err)
	}

	closed, _ := s.Closed(ctx, 0)
	if len(closed) != 2 || closed[0].ID != "c" || closed[1].ID != "a" {
		t.Fatalf("closed order wrong: %+v", closed)
	}
	last, _ := s.Closed(ctx, 1)
	if len(last) != 1 || last[0].ID != "a" {
		t.Fatalf("limit should keep the latest: %+v", last)
	}
}

func TestMemorySignalStore(t *testing.T) {
	s := NewMemorySignalStore(3)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, sym := range []string{"A", "B", "A", "C"} {
		_ = s.Save(ctx, models.EnhancedSignal{RawSignal: models.RawSignal{Symbol: sym, GeneratedAt: base.Add(time.Duration(i) * time.Minute)}})
	}
	all, _ := s.Recent(ctx, "", 10)
	if len(all) != 3 || all[0].Symbol != "C" {
		t.Fatalf("Recent should hold the newest 3, newest first: %+v", all)
	}
	as, _ := s.Recent(ctx, "A", 10)
	if len(as) != 1 {
		t.Fatalf("expected one A after eviction, got %d", len(as))
	}
	since, _ := s.Since(ctx, base.Add(2*time.Minute), 0)
	if len(since) != 2 || since[0].Symbol != "A" {
		t.Fatalf("Since = %+v", since)
	}
	latest, _ := s.Since(ctx, time.Time{}, 2)
	if len(latest) != 2 || latest[0].Symbol != "A" || latest[1].Symbol != "C" {
		t.Fatalf("Since with limit should keep the newest in order: %+v", latest)
	}
}

type fakeProducer struct {
	topic string
	key   []byte
	value interface{}
}

func (f *fakeProducer) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	f.topic, f.key, f.value = topic, key, value
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func TestKafkaSignalPublisherKeysBySymbol(t *testing.T) {
	fp := &fakeProducer{}
	p := NewKafkaSignalPublisher(fp, "signals.enhanced")
	sig := models.EnhancedSignal{RawSignal: models.RawSignal{Symbol: "SOLUSDT"}}
	if err := p.Publish(context.Background(), sig); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if fp.topic != "signals.enhanced" || string(fp.key) != "SOLUSDT" {
		t.Fatalf("unexpected publish %s %s", fp.topic, fp.key)
	}
	if _, ok := fp.value.(models.EnhancedSignal); !ok {
		t.Fatalf("value should be the signal, got %T", fp.value)
	}
}
