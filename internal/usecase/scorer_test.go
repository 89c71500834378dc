package usecase

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"testing"

	"CoinPull/internal/domain/models"
	"CoinPull/internal/repository"
	"CoinPull/internal/services/model"
)

func rawSignal(rule float64) models.RawSignal {
	return models.RawSignal{
		Symbol: "BTCUSDT", Side: models.SideLong, Trend: models.TrendSwing,
		Entry: 100, TakeProfit: 101.5, StopLoss: 98.5, TrailingStop: 99.8,
		Margin: 0.75, Leverage: 20, BandDirection: models.BandUp, RuleScore: rule,
	}
}

func TestEnhanceFallback(t *testing.T) {
	s := NewScorer(nil)
	got := s.Enhance(context.Background(), rawSignal(55))
	if got.Score != 55 || got.Confidence != 70 || got.ScoredBy != models.ScoredByFallback {
		t.Fatalf("fallback = %v/%v/%s", got.Score, got.Confidence, got.ScoredBy)
	}
	if got := s.Enhance(context.Background(), rawSignal(0)); got.Score != 60 {
		t.Fatalf("zero rule score should use the default, got %v", got.Score)
	}
}

func TestEnhanceWithClassifier(t *testing.T) {
	s := NewScorer(nil, WithClassifier(stubClassifier{p: 0.8}), WithRand(rand.New(rand.NewSource(1))))
	for i := 0; i < 20; i++ {
		got := s.Enhance(context.Background(), rawSignal(55))
		if got.Score != 80 || got.ScoredBy != models.ScoredByModel {
			t.Fatalf("score = %v via %s", got.Score, got.ScoredBy)
		}
		if got.Confidence < 80 || got.Confidence > 90 {
			t.Fatalf("confidence %v outside [80,90]", got.Confidence)
		}
	}

	s.Swap(stubClassifier{p: 0.97})
	for i := 0; i < 20; i++ {
		if got := s.Enhance(context.Background(), rawSignal(55)); got.Confidence > 100 {
			t.Fatalf("confidence %v above 100", got.Confidence)
		}
	}
}

func TestEnhanceSeededJitterIsReproducible(t *testing.T) {
	a := NewScorer(nil, WithClassifier(stubClassifier{p: 0.5}), WithRand(rand.New(rand.NewSource(7))))
	b := NewScorer(nil, WithClassifier(stubClassifier{p: 0.5}), WithRand(rand.New(rand.NewSource(7))))
	for i := 0; i < 5; i++ {
		x := a.Enhance(context.Background(), rawSignal(0))
		y := b.Enhance(context.Background(), rawSignal(0))
		if x.Confidence != y.Confidence {
			t.Fatalf("same seed diverged: %v vs %v", x.Confidence, y.Confidence)
		}
	}
}

func TestEnhanceClassifierErrorFallsBack(t *testing.T) {
	metrics := newFakeMetrics()
	s := NewScorer(nil, WithClassifier(stubClassifier{err: errors.New("boom")}))
	s.SetMetrics(metrics)
	got := s.Enhance(context.Background(), rawSignal(42))
	if got.ScoredBy != models.ScoredByFallback || got.Score != 42 {
		t.Fatalf("expected fallback, got %+v", got)
	}
	if metrics.errors["classifier"] != 1 {
		t.Fatalf("classifier error not recorded: %v", metrics.errors)
	}
}

func TestScorerReload(t *testing.T) {
	ctx := context.Background()
	store := repository.NewFileModelStore(filepath.Join(t.TempDir(), "model.json"))
	s := NewScorer(store)
	if err := s.Reload(ctx); err != nil {
		t.Fatalf("missing artifact must not fail: %v", err)
	}
	if s.HasModel() {
		t.Fatalf("no model expected")
	}

	X := [][]float64{{0}, {1}, {0}, {1}}
	clf, err := model.Fit(X, []int{0, 1, 0, 1}, model.FitOptions{})
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	// single-feature model loads but fails on 9-feature input, which falls back
	b, _ := clf.Marshal()
	if err := store.Save(ctx, b); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if !s.HasModel() {
		t.Fatalf("model should be loaded")
	}
	if got := s.Enhance(ctx, rawSignal(33)); got.ScoredBy != models.ScoredByFallback {
		t.Fatalf("dimension mismatch should fall back, got %s", got.ScoredBy)
	}

	if err := store.Save(ctx, []byte(`{"kind":"other"}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Reload(ctx); err == nil {
		t.Fatalf("corrupt artifact should fail")
	}
	if !s.HasModel() {
		t.Fatalf("failed reload must keep the previous model")
	}
}

func TestExtractFeaturesDeterministic(t *testing.T) {
	s := NewScorer(nil)
	in := models.FeatureInputFor(rawSignal(50))
	a, b := s.ExtractFeatures(in), s.ExtractFeatures(in)
	if len(a) != models.FeatureCount {
		t.Fatalf("len = %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("position %d differs", i)
		}
	}
}
