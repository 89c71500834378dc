package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"CoinPull/internal/domain/models"
	"CoinPull/internal/repository"
)

func TestSignalArchiveHandler(t *testing.T) {
	store := repository.NewMemorySignalStore(10)
	metrics := newFakeMetrics()
	h := NewSignalArchiveHandler("signals.enhanced", store, metrics)
	ctx := context.Background()

	if h.Topic() != "signals.enhanced" {
		t.Fatalf("topic = %s", h.Topic())
	}
	sig := models.EnhancedSignal{RawSignal: rawSignal(60), Score: 60, Confidence: 70, ScoredBy: models.ScoredByFallback}
	b, _ := json.Marshal(sig)
	if err := h.Handle(ctx, b); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	got, _ := store.Recent(ctx, "BTCUSDT", 5)
	if len(got) != 1 || got[0].Score != 60 {
		t.Fatalf("stored = %+v", got)
	}

	if err := h.Handle(ctx, []byte("{not json")); err == nil {
		t.Fatalf("malformed payload must fail")
	}
	bad := sig
	bad.TakeProfit = 90
	b, _ = json.Marshal(bad)
	if err := h.Handle(ctx, b); !errors.Is(err, models.ErrInvalidSignal) {
		t.Fatalf("expected ErrInvalidSignal, got %v", err)
	}
	if metrics.errors["consumer_unmarshal"] != 1 || metrics.errors["consumer_invalid"] != 1 {
		t.Fatalf("errors = %v", metrics.errors)
	}
}
