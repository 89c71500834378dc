package models

import "time"

// Candle is one OHLCV bar. Slices of candles are ordered by Timestamp ascending.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Series splits candles into the parallel slices the indicators consume.
func Series(cs []Candle) (highs, lows, closes, volumes []float64) {
	highs = make([]float64, len(cs))
	lows = make([]float64, len(cs))
	closes = make([]float64, len(cs))
	volumes = make([]float64, len(cs))
	for i, c := range cs {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
		volumes[i] = c.Volume
	}
	return
}

// Indicator is a computed value that may be unavailable for lack of data.
type Indicator struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// Ind wraps the (value, ok) pair returned by the indicator functions.
func Ind(v float64, ok bool) Indicator { return Indicator{Value: v, Valid: ok} }

// Snapshot holds indicator values for one symbol and timeframe at the latest candle.
type Snapshot struct {
	Timeframe string    `json:"timeframe"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	EMAFast   Indicator `json:"ema_fast"` // 9
	EMASlow   Indicator `json:"ema_slow"` // 21
	SMAMid    Indicator `json:"sma_mid"`  // 20
	RSI       Indicator `json:"rsi"`      // 14
	MACD      Indicator `json:"macd"`
	ATR       Indicator `json:"atr"` // 14
	BBUpper   Indicator `json:"bb_upper"`
	BBMid     Indicator `json:"bb_mid"`
	BBLower   Indicator `json:"bb_lower"`
}
