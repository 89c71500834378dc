package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"CoinPull/internal/domain/models"
	domrepo "CoinPull/internal/domain/repository"
	"CoinPull/internal/services/indicators"
	"CoinPull/pkg/config"
	applogger "CoinPull/pkg/logger"

	"github.com/google/uuid"
)

// ScoreWeights weight the four rule-score conditions.
type ScoreWeights struct {
	MACD     float64 // MACD above zero
	Extended float64 // RSI outside the extreme band
	Breakout float64 // close outside the Bollinger envelope
	Inside   float64 // close inside it
	Trend    float64 // trend class Trend
	Other    float64 // any other trend class
}

// AnalyzerConfig holds the strategy thresholds.
type AnalyzerConfig struct {
	Timeframes     []domrepo.Timeframe
	Reference      domrepo.Timeframe
	MinCandles     int
	CandleLimit    int
	MinVolume      float64
	MinATRPct      float64
	RSILow         float64
	RSIHigh        float64
	ExtremeLow     float64
	ExtremeHigh    float64
	TargetBand     float64
	TrailBuffer    float64
	Leverage       float64
	AccountBalance float64
	RiskPct        float64
	Weights        ScoreWeights
}

// DefaultAnalyzerConfig returns the stock 15m/1h/4h strategy.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		Timeframes:     []domrepo.Timeframe{domrepo.TF15m, domrepo.TF1h, domrepo.TF4h},
		Reference:      domrepo.TF1h,
		MinCandles:     30,
		CandleLimit:    200,
		MinVolume:      1000,
		MinATRPct:      0.001,
		RSILow:         20,
		RSIHigh:        80,
		ExtremeLow:     30,
		ExtremeHigh:    70,
		TargetBand:     0.015,
		TrailBuffer:    0.002,
		Leverage:       20,
		AccountBalance: 100,
		RiskPct:        0.15,
		Weights:        ScoreWeights{MACD: 0.3, Extended: 0.2, Breakout: 0.3, Inside: 0.1, Trend: 0.2, Other: 0.1},
	}
}

// AnalyzerConfigFrom maps the strategy section of the app config.
func AnalyzerConfigFrom(cfg *config.Config) (AnalyzerConfig, error) {
	tfs, err := domrepo.ParseTimeframes(cfg.Strategy.Timeframes)
	if err != nil {
		return AnalyzerConfig{}, fmt.Errorf("%w: %v", models.ErrInvalidConfig, err)
	}
	st := cfg.Strategy
	return AnalyzerConfig{
		Timeframes:     tfs,
		Reference:      domrepo.Timeframe(st.Reference),
		MinCandles:     st.MinCandles,
		CandleLimit:    cfg.Bybit.KlineLimit,
		MinVolume:      st.MinVolume,
		MinATRPct:      st.MinATRPct,
		RSILow:         st.RSILow,
		RSIHigh:        st.RSIHigh,
		ExtremeLow:     st.ExtremeLow,
		ExtremeHigh:    st.ExtremeHigh,
		TargetBand:     st.TargetBand,
		TrailBuffer:    st.TrailBuffer,
		Leverage:       st.Leverage,
		AccountBalance: st.AccountBalance,
		RiskPct:        st.RiskPct,
		Weights: ScoreWeights{
			MACD:     st.Weights.MACD,
			Extended: st.Weights.Extended,
			Breakout: st.Weights.Breakout,
			Inside:   st.Weights.Inside,
			Trend:    st.Weights.Trend,
			Other:    st.Weights.Other,
		},
	}, nil
}

func (c AnalyzerConfig) validate() error {
	if len(c.Timeframes) == 0 {
		return models.ErrNoTimeframes
	}
	found := false
	for _, tf := range c.Timeframes {
		if !domrepo.IsValidTimeframe(tf) {
			return fmt.Errorf("%w: timeframe %q", models.ErrInvalidConfig, tf)
		}
		found = found || tf == c.Reference
	}
	if !found {
		return fmt.Errorf("%w: reference timeframe %q not configured", models.ErrInvalidConfig, c.Reference)
	}
	if c.MinCandles < 1 || c.Leverage <= 1 || c.TargetBand <= 0 || c.TargetBand >= 1 {
		return fmt.Errorf("%w: min candles, leverage or target band out of range", models.ErrInvalidConfig)
	}
	return nil
}

// Analysis is the trace of one Analyze call. Reason is set when no signal
// was produced.
type Analysis struct {
	Symbol    string                              `json:"symbol"`
	Snapshots map[domrepo.Timeframe]models.Snapshot `json:"snapshots,omitempty"`
	Votes     map[domrepo.Timeframe]models.Side     `json:"votes,omitempty"`
	Signal    *models.RawSignal                   `json:"signal,omitempty"`
	Reason    error                               `json:"-"`
}

// ReasonText is the rejection reason as a metric label, or "" on success.
func (a Analysis) ReasonText() string {
	if a.Reason == nil {
		return ""
	}
	return models.ReasonOf(a.Reason)
}

// Analyzer turns multi-timeframe candles for one symbol into a RawSignal.
type Analyzer struct {
	market  domrepo.MarketData
	cfg     AnalyzerConfig
	metrics domrepo.Metrics
	log     *applogger.Logger
	now     func() time.Time
}

func NewAnalyzer(market domrepo.MarketData, cfg AnalyzerConfig) (*Analyzer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.CandleLimit < cfg.MinCandles {
		cfg.CandleLimit = cfg.MinCandles
	}
	return &Analyzer{market: market, cfg: cfg, now: time.Now}, nil
}

func (a *Analyzer) SetLogger(l *applogger.Logger) { a.log = l }

func (a *Analyzer) SetMetrics(m domrepo.Metrics) { a.metrics = m }

// Analyze returns the signal for symbol, or nil when the symbol does not
// qualify. Errors are reserved for caller defects.
func (a *Analyzer) Analyze(ctx context.Context, symbol string) (*models.RawSignal, error) {
	res, err := a.Inspect(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return res.Signal, nil
}

// Inspect runs the analysis and returns the full trace.
func (a *Analyzer) Inspect(ctx context.Context, symbol string) (Analysis, error) {
	if symbol == "" {
		return Analysis{}, fmt.Errorf("analyze: %w: empty symbol", models.ErrInvalidConfig)
	}
	start := time.Now()
	res := Analysis{Symbol: symbol, Snapshots: make(map[domrepo.Timeframe]models.Snapshot, len(a.cfg.Timeframes))}

	for _, tf := range a.cfg.Timeframes {
		cs, err := a.market.GetCandles(ctx, symbol, tf, a.cfg.CandleLimit)
		if err != nil {
			a.debug("candle fetch failed", applogger.String("symbol", symbol), applogger.String("tf", string(tf)), applogger.Error(err))
			cs = nil
		}
		if len(cs) < a.cfg.MinCandles {
			res.Reason = fmt.Errorf("%w: %s has %d candles", models.ErrInsufficientData, tf, len(cs))
			return a.finish(res, start), nil
		}
		res.Snapshots[tf] = BuildSnapshot(tf, cs)
	}

	sig, votes, reason := a.decide(symbol, res.Snapshots)
	res.Votes = votes
	res.Signal = sig
	res.Reason = reason
	return a.finish(res, start), nil
}

func (a *Analyzer) finish(res Analysis, start time.Time) Analysis {
	if a.metrics != nil {
		a.metrics.RecordLatency("analyze", time.Since(start).Seconds())
		if res.Reason != nil {
			a.metrics.RecordRejection(models.ReasonOf(res.Reason))
		} else if res.Signal != nil {
			a.metrics.RecordSignal(string(res.Signal.Side), string(res.Signal.Trend))
		}
	}
	if res.Reason != nil {
		a.debug("symbol rejected", applogger.String("symbol", res.Symbol), applogger.String("reason", res.Reason.Error()))
	}
	return res
}

// BuildSnapshot computes the indicator set at the last candle of cs.
func BuildSnapshot(tf domrepo.Timeframe, cs []models.Candle) models.Snapshot {
	highs, lows, closes, volumes := models.Series(cs)
	snap := models.Snapshot{Timeframe: string(tf)}
	if len(cs) == 0 {
		return snap
	}
	snap.Close = closes[len(closes)-1]
	snap.Volume = volumes[len(volumes)-1]
	snap.EMAFast = models.Ind(indicators.EMA(closes, 9))
	snap.EMASlow = models.Ind(indicators.EMA(closes, 21))
	snap.SMAMid = models.Ind(indicators.SMA(closes, 20))
	snap.RSI = models.Ind(indicators.RSI(closes, 14))
	snap.MACD = models.Ind(indicators.MACD(closes))
	snap.ATR = models.Ind(indicators.ATR(highs, lows, closes, 14))
	if bb, ok := indicators.Bollinger(closes, 20, 2); ok {
		snap.BBUpper = models.Ind(bb.Upper, true)
		snap.BBMid = models.Ind(bb.Mid, true)
		snap.BBLower = models.Ind(bb.Lower, true)
	}
	return snap
}

// decide applies the admission filter, the consensus vote and the level
// derivation to a complete set of snapshots.
func (a *Analyzer) decide(symbol string, snaps map[domrepo.Timeframe]models.Snapshot) (*models.RawSignal, map[domrepo.Timeframe]models.Side, error) {
	ref, ok := snaps[a.cfg.Reference]
	if !ok {
		return nil, nil, fmt.Errorf("%w: no %s snapshot", models.ErrInsufficientData, a.cfg.Reference)
	}
	if err := a.admit(ref); err != nil {
		return nil, nil, err
	}

	votes := make(map[domrepo.Timeframe]models.Side, len(a.cfg.Timeframes))
	sides := make(map[models.Side]struct{}, 2)
	for _, tf := range a.cfg.Timeframes {
		snap, ok := snaps[tf]
		if !ok {
			return nil, votes, fmt.Errorf("%w: no %s snapshot", models.ErrInsufficientData, tf)
		}
		side, voted, err := vote(snap)
		if err != nil {
			return nil, votes, err
		}
		if voted {
			votes[tf] = side
			sides[side] = struct{}{}
		}
	}
	if len(sides) != 1 {
		return nil, votes, fmt.Errorf("%w: %d distinct votes", models.ErrNoConsensus, len(sides))
	}
	var side models.Side
	for s := range sides {
		side = s
	}

	sig, err := models.NewRawSignal(a.levels(symbol, side, ref))
	if err != nil {
		return nil, votes, err
	}
	return sig, votes, nil
}

// admit is the liquidity, volatility and RSI-zone filter on the reference
// snapshot. Every indicator must be available.
func (a *Analyzer) admit(s models.Snapshot) error {
	for name, ind := range map[string]models.Indicator{
		"ema_fast": s.EMAFast, "ema_slow": s.EMASlow, "sma_mid": s.SMAMid, "rsi": s.RSI,
		"macd": s.MACD, "atr": s.ATR, "bb_upper": s.BBUpper, "bb_mid": s.BBMid, "bb_lower": s.BBLower,
	} {
		if !ind.Valid {
			return fmt.Errorf("%w: %s unavailable on %s", models.ErrInsufficientData, name, s.Timeframe)
		}
	}
	if !(s.Close > 0) {
		return fmt.Errorf("%w: close %v", models.ErrInsufficientData, s.Close)
	}
	switch {
	case s.Volume < a.cfg.MinVolume:
		return fmt.Errorf("%w: volume %v below %v", models.ErrFilterRejected, s.Volume, a.cfg.MinVolume)
	case s.ATR.Value/s.Close < a.cfg.MinATRPct:
		return fmt.Errorf("%w: atr/close %v below %v", models.ErrFilterRejected, s.ATR.Value/s.Close, a.cfg.MinATRPct)
	case !(s.RSI.Value > a.cfg.RSILow && s.RSI.Value < a.cfg.RSIHigh):
		return fmt.Errorf("%w: rsi %v outside (%v,%v)", models.ErrFilterRejected, s.RSI.Value, a.cfg.RSILow, a.cfg.RSIHigh)
	}
	return nil
}

// vote returns the snapshot's direction. A close exactly on the slow EMA
// inside the bands casts no vote.
func vote(s models.Snapshot) (models.Side, bool, error) {
	if !s.EMASlow.Valid || !s.BBUpper.Valid || !s.BBLower.Valid {
		return "", false, fmt.Errorf("%w: %s lacks ema_slow or bands", models.ErrInsufficientData, s.Timeframe)
	}
	switch {
	case s.Close > s.BBUpper.Value:
		return models.SideLong, true, nil
	case s.Close < s.BBLower.Value:
		return models.SideShort, true, nil
	case s.Close > s.EMASlow.Value:
		return models.SideLong, true, nil
	case s.Close < s.EMASlow.Value:
		return models.SideShort, true, nil
	}
	return "", false, nil
}

func classifyTrend(emaFast, emaSlow, smaMid float64) models.TrendClass {
	switch {
	case emaFast > emaSlow && emaSlow > smaMid:
		return models.TrendTrend
	case emaFast > emaSlow:
		return models.TrendSwing
	default:
		return models.TrendScalp
	}
}

func bandDirection(price float64, s models.Snapshot) models.BandDirection {
	switch {
	case price > s.BBUpper.Value:
		return models.BandUp
	case price < s.BBLower.Value:
		return models.BandDown
	default:
		return models.BandNone
	}
}

// closestTo picks the candidate nearest to price; the first wins ties.
func closestTo(price float64, candidates ...float64) float64 {
	best, bestDist := candidates[0], math.Abs(candidates[0]-price)
	for _, c := range candidates[1:] {
		if d := math.Abs(c - price); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func (a *Analyzer) levels(symbol string, side models.Side, ref models.Snapshot) models.RawSignal {
	price := ref.Close
	trend := classifyTrend(ref.EMAFast.Value, ref.EMASlow.Value, ref.SMAMid.Value)
	band := bandDirection(price, ref)
	entry := closestTo(price, ref.SMAMid.Value, ref.EMAFast.Value, ref.EMASlow.Value)

	dir := 1.0
	if side == models.SideShort {
		dir = -1
	}
	cfg := a.cfg
	return models.RawSignal{
		ID:               uuid.NewString(),
		Symbol:           symbol,
		Side:             side,
		Trend:            trend,
		Entry:            round6(entry),
		TakeProfit:       scale6(entry, 1+dir*cfg.TargetBand),
		StopLoss:         scale6(entry, 1-dir*cfg.TargetBand),
		TrailingStop:     scale6(entry, 1-dir*cfg.TrailBuffer),
		LiquidationPrice: scale6(entry, 1-dir/cfg.Leverage),
		Margin:           round6(cfg.AccountBalance * cfg.RiskPct / cfg.Leverage),
		Leverage:         cfg.Leverage,
		MarketPrice:      price,
		BandDirection:    band,
		RuleScore:        a.ruleScore(ref, band, trend),
		GeneratedAt:      a.now().UTC(),
	}
}

func (a *Analyzer) ruleScore(ref models.Snapshot, band models.BandDirection, trend models.TrendClass) float64 {
	w := a.cfg.Weights
	var score float64
	if ref.MACD.Value > 0 {
		score += w.MACD
	}
	if ref.RSI.Value < a.cfg.ExtremeLow || ref.RSI.Value > a.cfg.ExtremeHigh {
		score += w.Extended
	}
	if band != models.BandNone {
		score += w.Breakout
	} else {
		score += w.Inside
	}
	if trend == models.TrendTrend {
		score += w.Trend
	} else {
		score += w.Other
	}
	return math.Min(math.Max(round1(score*100), 0), 100)
}

func (a *Analyzer) debug(msg string, fields ...applogger.Field) {
	if a.log != nil {
		a.log.Debug(msg, fields...)
	}
}

