package repository

import (
	"fmt"
	"time"
)

// Timeframe represents candle resolution buckets.
type Timeframe string

const (
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
)

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TF15m, TF1h, TF4h:
		return true
	default:
		return false
	}
}

// ParseTimeframes validates a configured list of timeframes.
func ParseTimeframes(raw []string) ([]Timeframe, error) {
	out := make([]Timeframe, 0, len(raw))
	for _, s := range raw {
		tf := Timeframe(s)
		if !IsValidTimeframe(tf) {
			return nil, fmt.Errorf("unsupported timeframe %q", s)
		}
		out = append(out, tf)
	}
	return out, nil
}

// Duration is the bar length of tf.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF15m:
		return 15 * time.Minute
	case TF1h:
		return time.Hour
	case TF4h:
		return 4 * time.Hour
	default:
		return 0
	}
}

// BybitInterval maps tf to the kline interval parameter (minutes).
func (tf Timeframe) BybitInterval() (string, bool) {
	switch tf {
	case TF15m:
		return "15", true
	case TF1h:
		return "60", true
	case TF4h:
		return "240", true
	default:
		return "", false
	}
}
