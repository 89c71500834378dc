// Package indicators implements the technical indicators used by the
// analyzer. Every function returns ok=false instead of an approximation when
// the input is too short.
package indicators

import "math"

// Bands is a Bollinger envelope.
type Bands struct {
	Upper, Mid, Lower float64
}

// EMA seeds with the SMA of the first period samples, then smooths the rest
// with multiplier 2/(period+1).
func EMA(series []float64, period int) (float64, bool) {
	if period <= 0 || len(series) < period {
		return 0, false
	}
	val := mean(series[:period])
	k := 2.0 / float64(period+1)
	for _, p := range series[period:] {
		val = (p-val)*k + val
	}
	return val, true
}

// SMA is the mean of the last period samples.
func SMA(series []float64, period int) (float64, bool) {
	if period <= 0 || len(series) < period {
		return 0, false
	}
	return mean(series[len(series)-period:]), true
}

// RSI averages gains and losses over the first period deltas. The average
// loss is floored at 1e-10 so a loss-free window saturates near 100.
func RSI(series []float64, period int) (float64, bool) {
	if period <= 0 || len(series) < period+1 {
		return 0, false
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := series[i] - series[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	ag := gain / float64(period)
	al := loss / float64(period)
	rs := ag / (al + 1e-10)
	return 100 - 100/(1+rs), true
}

// Bollinger uses the population standard deviation of the last period samples.
func Bollinger(series []float64, period int, k float64) (Bands, bool) {
	mid, ok := SMA(series, period)
	if !ok {
		return Bands{}, false
	}
	var ss float64
	for _, p := range series[len(series)-period:] {
		ss += (p - mid) * (p - mid)
	}
	sd := math.Sqrt(ss / float64(period))
	return Bands{Upper: mid + k*sd, Mid: mid, Lower: mid - k*sd}, true
}

// ATR computes true ranges against the previous close, seeds with their
// first-period mean and applies Wilder smoothing to the remainder.
func ATR(highs, lows, closes []float64, period int) (float64, bool) {
	n := len(highs)
	if period <= 0 || n != len(lows) || n != len(closes) || n < period+1 {
		return 0, false
	}
	trs := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		h, l, pc := highs[i], lows[i], closes[i-1]
		trs = append(trs, math.Max(h-l, math.Max(math.Abs(h-pc), math.Abs(l-pc))))
	}
	val := mean(trs[:period])
	p := float64(period)
	for _, tr := range trs[period:] {
		val = (val*(p-1) + tr) / p
	}
	return val, true
}

// MACD is EMA(12) - EMA(26).
func MACD(series []float64) (float64, bool) {
	fast, ok := EMA(series, 12)
	if !ok {
		return 0, false
	}
	slow, ok := EMA(series, 26)
	if !ok {
		return 0, false
	}
	return fast - slow, true
}

func mean(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}
