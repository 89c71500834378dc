package usecase

import (
	"context"
	"fmt"
	"time"

	"CoinPull/internal/domain/models"
	domrepo "CoinPull/internal/domain/repository"
	"CoinPull/internal/services/features"
	"CoinPull/pkg/util"
)

// RiskGuard blocks automated cycles on drawdown or daily trade count.
type RiskGuard struct {
	trades       domrepo.TradeStore
	limits       models.RiskLimits
	historyLimit int
	now          func() time.Time
}

func NewRiskGuard(trades domrepo.TradeStore, limits models.RiskLimits) *RiskGuard {
	return &RiskGuard{trades: trades, limits: limits, historyLimit: 5000, now: time.Now}
}

func (g *RiskGuard) Limits() models.RiskLimits { return g.limits }

// Allow reports whether a new cycle may trade. The string names the limit
// that blocked it.
func (g *RiskGuard) Allow(ctx context.Context) (bool, string, error) {
	if g.limits.MaxDrawdownPct > 0 {
		dd, err := g.Drawdown(ctx)
		if err != nil {
			return false, "", err
		}
		if dd >= g.limits.MaxDrawdownPct {
			return false, fmt.Sprintf("drawdown %.2f%% reached limit %.2f%%", dd, g.limits.MaxDrawdownPct), nil
		}
	}
	if g.limits.MaxDailyTrades > 0 {
		n, err := g.trades.CountOpenedSince(ctx, util.StartOfDay(g.now()))
		if err != nil {
			return false, "", fmt.Errorf("risk: count trades: %w", err)
		}
		if n >= g.limits.MaxDailyTrades {
			return false, fmt.Sprintf("daily trade limit %d reached", g.limits.MaxDailyTrades), nil
		}
	}
	return true, "", nil
}

// Drawdown is the current max drawdown of the closed-trade equity curve.
func (g *RiskGuard) Drawdown(ctx context.Context) (float64, error) {
	closed, err := g.trades.Closed(ctx, g.historyLimit)
	if err != nil {
		return 0, fmt.Errorf("risk: load closed trades: %w", err)
	}
	pnls := make([]float64, len(closed))
	for i, t := range closed {
		pnls[i] = t.PnL
	}
	return features.MaxDrawdown(features.EquityCurve(g.limits.InitialCapital, pnls)), nil
}
