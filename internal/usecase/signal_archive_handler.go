package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"CoinPull/internal/domain/models"
	domrepo "CoinPull/internal/domain/repository"
	pkgkafka "CoinPull/pkg/kafka"
)

// SignalArchiveHandler consumes published signals and writes them to the
// signal store.
type SignalArchiveHandler struct {
	topic   string
	store   domrepo.SignalStore
	metrics domrepo.Metrics
}

func NewSignalArchiveHandler(topic string, store domrepo.SignalStore, metrics domrepo.Metrics) *SignalArchiveHandler {
	return &SignalArchiveHandler{topic: topic, store: store, metrics: metrics}
}

func (h *SignalArchiveHandler) Topic() string { return h.topic }

// Handle stores one JSON-encoded EnhancedSignal. Malformed payloads are
// returned as errors so the consumer can park them.
func (h *SignalArchiveHandler) Handle(ctx context.Context, b []byte) error {
	var sig models.EnhancedSignal
	if err := json.Unmarshal(b, &sig); err != nil {
		h.recordError("consumer_unmarshal")
		return fmt.Errorf("archive: decode: %w", err)
	}
	if _, err := models.NewRawSignal(sig.RawSignal); err != nil {
		h.recordError("consumer_invalid")
		return fmt.Errorf("archive: %w", err)
	}
	if h.metrics != nil && !sig.GeneratedAt.IsZero() {
		h.metrics.RecordLatency("archive_e2e", time.Since(sig.GeneratedAt).Seconds())
	}

	start := time.Now()
	err := h.store.Save(ctx, sig)
	if h.metrics != nil {
		h.metrics.RecordLatency("archive_insert", time.Since(start).Seconds())
	}
	if err != nil {
		h.recordError("consumer_store")
		return fmt.Errorf("archive %s: %w", sig.Symbol, err)
	}
	return nil
}

func (h *SignalArchiveHandler) recordError(kind string) {
	if h.metrics != nil {
		h.metrics.RecordError(kind)
	}
}

var _ pkgkafka.MessageHandler = (*SignalArchiveHandler)(nil)
