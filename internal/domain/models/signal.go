package models

import (
	"fmt"
	"math"
	"time"
)

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

func (s Side) Valid() bool { return s == SideLong || s == SideShort }

// TrendClass labels how strongly the moving averages are stacked.
type TrendClass string

const (
	TrendScalp TrendClass = "Scalp"
	TrendSwing TrendClass = "Swing"
	TrendTrend TrendClass = "Trend"
)

// BandDirection tells whether price broke out of the Bollinger envelope.
type BandDirection string

const (
	BandUp   BandDirection = "Up"
	BandDown BandDirection = "Down"
	BandNone BandDirection = "No"
)

type ScoredBy string

const (
	ScoredByModel    ScoredBy = "model"
	ScoredByFallback ScoredBy = "fallback"
)

// RawSignal is the analyzer output for one symbol. Build it with NewRawSignal.
type RawSignal struct {
	ID               string        `json:"id"`
	Symbol           string        `json:"symbol"`
	Side             Side          `json:"side"`
	Trend            TrendClass    `json:"trend"`
	Entry            float64       `json:"entry"`
	TakeProfit       float64       `json:"take_profit"`
	StopLoss         float64       `json:"stop_loss"`
	TrailingStop     float64       `json:"trailing_stop"`
	LiquidationPrice float64       `json:"liquidation_price"`
	Margin           float64       `json:"margin"`
	Leverage         float64       `json:"leverage"`
	MarketPrice      float64       `json:"market_price"`
	BandDirection    BandDirection `json:"band_direction"`
	RuleScore        float64       `json:"rule_score"`
	GeneratedAt      time.Time     `json:"generated_at"`
}

// NewRawSignal validates s and returns a copy. TP and SL must sit on the
// correct side of entry for the signal's direction.
func NewRawSignal(s RawSignal) (*RawSignal, error) {
	if s.Symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrInvalidSignal)
	}
	if !s.Side.Valid() {
		return nil, fmt.Errorf("%w: side %q", ErrInvalidSignal, s.Side)
	}
	for name, v := range map[string]float64{
		"entry":       s.Entry,
		"take_profit": s.TakeProfit,
		"stop_loss":   s.StopLoss,
	} {
		if !(v > 0) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %s=%v", ErrInvalidSignal, name, v)
		}
	}
	switch s.Side {
	case SideLong:
		if !(s.TakeProfit > s.Entry && s.Entry > s.StopLoss) {
			return nil, fmt.Errorf("%w: LONG needs tp > entry > sl", ErrInvalidSignal)
		}
	case SideShort:
		if !(s.TakeProfit < s.Entry && s.Entry < s.StopLoss) {
			return nil, fmt.Errorf("%w: SHORT needs tp < entry < sl", ErrInvalidSignal)
		}
	}
	if s.RuleScore < 0 || s.RuleScore > 100 {
		return nil, fmt.Errorf("%w: rule score %v", ErrInvalidSignal, s.RuleScore)
	}
	out := s
	return &out, nil
}

// EnhancedSignal is a RawSignal with its final score and confidence.
type EnhancedSignal struct {
	RawSignal
	Score      float64  `json:"score"`
	Confidence float64  `json:"confidence"`
	ScoredBy   ScoredBy `json:"scored_by"`
}

// FeatureInput names the fields a feature vector is built from. Missing
// fields stay zero.
type FeatureInput struct {
	Entry      float64 `json:"entry"`
	TakeProfit float64 `json:"take_profit"`
	StopLoss   float64 `json:"stop_loss"`
	Trail      float64 `json:"trail"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Side       Side    `json:"side"`
	Trend      string  `json:"trend"`  // Up | Down
	Regime     string  `json:"regime"` // Breakout | Mean
}

const RegimeBreakout = "Breakout"

// FeatureCount is the length of every feature vector.
const FeatureCount = 9

// FeatureNames lists vector positions in order.
var FeatureNames = [FeatureCount]string{
	"entry", "take_profit", "stop_loss", "trail", "score", "confidence", "side", "trend", "regime",
}

// FeatureInputFor maps a raw signal to feature input. The band direction
// stands in for the Up/Down trend and the regime defaults to Breakout.
func FeatureInputFor(s RawSignal) FeatureInput {
	return FeatureInput{
		Entry:      s.Entry,
		TakeProfit: s.TakeProfit,
		StopLoss:   s.StopLoss,
		Trail:      s.TrailingStop,
		Score:      s.RuleScore,
		Side:       s.Side,
		Trend:      string(s.BandDirection),
		Regime:     RegimeBreakout,
	}
}
