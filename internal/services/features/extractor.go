package features

import (
	"math"

	"CoinPull/internal/domain/models"
)

// Extract encodes in as a fixed-order vector of models.FeatureCount values:
// entry, tp, sl, trail, score, confidence, side (LONG=1), trend (Up=1,
// Down=-1), regime (Breakout=1). It is pure; unknown labels encode as 0.
func Extract(in models.FeatureInput) []float64 {
	side := 0.0
	if in.Side == models.SideLong {
		side = 1
	}
	trend := 0.0
	switch in.Trend {
	case string(models.BandUp):
		trend = 1
	case string(models.BandDown):
		trend = -1
	}
	regime := 0.0
	if in.Regime == models.RegimeBreakout {
		regime = 1
	}
	return []float64{
		in.Entry,
		in.TakeProfit,
		in.StopLoss,
		in.Trail,
		in.Score,
		in.Confidence,
		side,
		trend,
		regime,
	}
}

// EquityCurve accumulates pnls onto initial capital. The first point is the
// starting capital.
func EquityCurve(initial float64, pnls []float64) []float64 {
	curve := make([]float64, 0, len(pnls)+1)
	eq := initial
	curve = append(curve, eq)
	for _, p := range pnls {
		eq += p
		curve = append(curve, eq)
	}
	return curve
}

// MaxDrawdown returns the largest peak-to-trough decline of curve in percent,
// as a non-negative number.
func MaxDrawdown(curve []float64) float64 {
	var peak, worst float64
	for i, v := range curve {
		if i == 0 || v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - v) / peak * 100
		if dd > worst {
			worst = dd
		}
	}
	if math.IsNaN(worst) {
		return 0
	}
	return worst
}
