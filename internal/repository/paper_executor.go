package repository

import (
	"context"
	"fmt"
	"time"

	"CoinPull/internal/domain/models"
	domrepo "CoinPull/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaperExecutor fills every signal virtually at its entry price.
type PaperExecutor struct {
	trades domrepo.TradeStore
	now    func() time.Time
}

func NewPaperExecutor(trades domrepo.TradeStore) *PaperExecutor {
	return &PaperExecutor{trades: trades, now: time.Now}
}

func (e *PaperExecutor) Execute(ctx context.Context, s models.EnhancedSignal) (models.Trade, error) {
	if s.Entry <= 0 {
		return models.Trade{}, fmt.Errorf("execute %s: %w: entry %v", s.Symbol, models.ErrInvalidSignal, s.Entry)
	}
	qty := decimal.NewFromFloat(s.Margin).
		Mul(decimal.NewFromFloat(s.Leverage)).
		Div(decimal.NewFromFloat(s.Entry)).
		Round(6).
		InexactFloat64()

	t := models.Trade{
		ID:         uuid.NewString(),
		OrderID:    "virtual_" + uuid.NewString(),
		SignalID:   s.ID,
		Symbol:     s.Symbol,
		Side:       s.Side,
		Qty:        qty,
		EntryPrice: s.Entry,
		StopLoss:   s.StopLoss,
		TakeProfit: s.TakeProfit,
		Trail:      s.TrailingStop,
		Leverage:   s.Leverage,
		Margin:     s.Margin,
		Score:      s.Score,
		Confidence: s.Confidence,
		Status:     models.TradeOpen,
		Virtual:    true,
		OpenedAt:   e.now().UTC(),
	}
	if err := e.trades.Open(ctx, t); err != nil {
		return models.Trade{}, fmt.Errorf("execute %s: %w", s.Symbol, err)
	}
	return t, nil
}

var _ domrepo.Executor = (*PaperExecutor)(nil)
