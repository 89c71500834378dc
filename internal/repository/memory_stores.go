package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"CoinPull/internal/domain/models"
	domrepo "CoinPull/internal/domain/repository"
)

// MemorySignalStore keeps the most recent signals in process. It backs the
// API when ClickHouse is disabled.
type MemorySignalStore struct {
	mu   sync.RWMutex
	max  int
	sigs []models.EnhancedSignal
}

func NewMemorySignalStore(max int) *MemorySignalStore {
	if max <= 0 {
		max = 5000
	}
	return &MemorySignalStore{max: max}
}

func (s *MemorySignalStore) Save(ctx context.Context, sig models.EnhancedSignal) error {
	return s.SaveBatch(ctx, []models.EnhancedSignal{sig})
}

func (s *MemorySignalStore) SaveBatch(_ context.Context, sigs []models.EnhancedSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sigs = append(s.sigs, sigs...)
	if over := len(s.sigs) - s.max; over > 0 {
		s.sigs = append([]models.EnhancedSignal(nil), s.sigs[over:]...)
	}
	return nil
}

func (s *MemorySignalStore) Recent(_ context.Context, symbol string, limit int) ([]models.EnhancedSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.EnhancedSignal
	for i := len(s.sigs) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if symbol == "" || s.sigs[i].Symbol == symbol {
			out = append(out, s.sigs[i])
		}
	}
	return out, nil
}

func (s *MemorySignalStore) Since(_ context.Context, from time.Time, limit int) ([]models.EnhancedSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.EnhancedSignal
	for _, sig := range s.sigs {
		if sig.GeneratedAt.Before(from) {
			continue
		}
		out = append(out, sig)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// MemoryTradeStore is the in-process TradeStore used without Postgres.
type MemoryTradeStore struct {
	mu     sync.RWMutex
	trades map[string]*models.Trade
	order  []string
}

func NewMemoryTradeStore() *MemoryTradeStore {
	return &MemoryTradeStore{trades: make(map[string]*models.Trade)}
}

func (s *MemoryTradeStore) Open(_ context.Context, t models.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trades[t.ID]; ok {
		return fmt.Errorf("trade %s already exists", t.ID)
	}
	s.trades[t.ID] = &t
	s.order = append(s.order, t.ID)
	return nil
}

func (s *MemoryTradeStore) Close(_ context.Context, id string, pnl float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trades[id]
	if !ok || t.Status != models.TradeOpen {
		return fmt.Errorf("close trade %s: %w", id, models.ErrNotFound)
	}
	closed := at
	t.Status = models.TradeClosed
	t.PnL = pnl
	t.ClosedAt = &closed
	return nil
}

func (s *MemoryTradeStore) CountOpenedSince(_ context.Context, from time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, t := range s.trades {
		if !t.OpenedAt.Before(from) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryTradeStore) Closed(_ context.Context, limit int) ([]models.Trade, error) {
	s.mu.RLock()
	var out []models.Trade
	for _, id := range s.order {
		if t := s.trades[id]; t.Status == models.TradeClosed {
			out = append(out, *t)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].ClosedAt.Before(*out[j].ClosedAt) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// MemorySettingsStore is a map-backed SettingsStore.
type MemorySettingsStore struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewMemorySettingsStore() *MemorySettingsStore {
	return &MemorySettingsStore{m: make(map[string]string)}
}

func (s *MemorySettingsStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *MemorySettingsStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

var (
	_ domrepo.SignalStore   = (*MemorySignalStore)(nil)
	_ domrepo.TradeStore    = (*MemoryTradeStore)(nil)
	_ domrepo.SettingsStore = (*MemorySettingsStore)(nil)
)
