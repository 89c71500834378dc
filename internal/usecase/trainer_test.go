package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"CoinPull/internal/domain/models"
	"CoinPull/internal/repository"
)

func seedSignals(t *testing.T, store *repository.MemorySignalStore, n int) {
	t.Helper()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		sig := scored("BTCUSDT", 50)
		sig.RawSignal = rawSignal(50)
		sig.GeneratedAt = base.Add(time.Duration(i) * time.Minute)
		sig.Score = 50
		if i%2 == 0 {
			sig.Score = 90
		}
		if err := store.Save(context.Background(), sig); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
}

func TestTrainInsufficientSamples(t *testing.T) {
	signals := repository.NewMemorySignalStore(100)
	seedSignals(t, signals, 5)
	scorer := NewScorer(nil)
	tr := NewTrainer(signals, repository.NewMemoryTradeStore(), nil, scorer)

	rep, err := tr.Train(context.Background())
	if !errors.Is(err, models.ErrInsufficientSamples) {
		t.Fatalf("expected ErrInsufficientSamples, got %v", err)
	}
	if rep.Samples != 5 || scorer.HasModel() {
		t.Fatalf("report %+v, model %v", rep, scorer.HasModel())
	}
}

func TestTrainFitsAndSwaps(t *testing.T) {
	ctx := context.Background()
	signals := repository.NewMemorySignalStore(100)
	seedSignals(t, signals, 40)
	bad := scored("BAD", 90)
	bad.Side = models.SideLong
	if err := signals.Save(ctx, bad); err != nil { // no entry or targets
		t.Fatalf("Save: %v", err)
	}

	trades := repository.NewMemoryTradeStore()
	now := time.Now()
	for i, pnl := range []float64{5, -3} {
		id := string(rune('a' + i))
		if err := trades.Open(ctx, models.Trade{ID: id, Symbol: "ETHUSDT", Side: models.SideShort, EntryPrice: 10, TakeProfit: 9.85, StopLoss: 10.15, Status: models.TradeOpen, OpenedAt: now}); err != nil {
			t.Fatalf("Open: %v", err)
		}
		if err := trades.Close(ctx, id, pnl, now); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}

	store := repository.NewFileModelStore(filepath.Join(t.TempDir(), "m.json"))
	scorer := NewScorer(store)
	rep, err := NewTrainer(signals, trades, store, scorer).Train(ctx)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if rep.Samples != 42 || rep.Signals != 40 || rep.Trades != 2 || rep.Skipped != 1 {
		t.Fatalf("unexpected report %+v", rep)
	}
	if rep.TrainSize+rep.TestSize != rep.Samples || rep.TestSize != 8 {
		t.Fatalf("split %d/%d", rep.TrainSize, rep.TestSize)
	}
	if rep.Accuracy < 0.5 {
		t.Fatalf("accuracy %v on a score-determined label", rep.Accuracy)
	}
	if !scorer.HasModel() {
		t.Fatalf("trained model not swapped in")
	}
	if _, err := store.Load(ctx); err != nil {
		t.Fatalf("artifact not persisted: %v", err)
	}

	fresh := NewScorer(store)
	if err := fresh.Reload(ctx); err != nil || !fresh.HasModel() {
		t.Fatalf("persisted artifact did not reload: %v", err)
	}
	if got := fresh.Enhance(ctx, rawSignal(50)); got.ScoredBy != models.ScoredByModel {
		t.Fatalf("reloaded model not used")
	}
}

func TestTrainUsesNewestHistory(t *testing.T) {
	ctx := context.Background()
	signals := repository.NewMemorySignalStore(100)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		old := scored("OLD", 50) // no levels, unusable
		old.GeneratedAt = base.Add(time.Duration(i) * time.Minute)
		if err := signals.Save(ctx, old); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	for i := 30; i < 60; i++ {
		sig := scored("BTCUSDT", 50)
		sig.RawSignal = rawSignal(50)
		sig.GeneratedAt = base.Add(time.Duration(i) * time.Minute)
		if i%2 == 0 {
			sig.Score = 90
		}
		if err := signals.Save(ctx, sig); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	scorer := NewScorer(nil)
	rep, err := NewTrainer(signals, repository.NewMemoryTradeStore(), nil, scorer, WithHistoryLimit(30)).Train(ctx)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if rep.Signals != 30 || rep.Skipped != 0 {
		t.Fatalf("expected the newest 30 signals, got %+v", rep)
	}
	if !scorer.HasModel() {
		t.Fatalf("model not swapped in")
	}
}
