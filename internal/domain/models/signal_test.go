package models

import (
	"errors"
	"math"
	"testing"
)

func TestNewRawSignalOrientation(t *testing.T) {
	tests := []struct {
		name    string
		sig     RawSignal
		wantErr bool
	}{
		{"long ok", RawSignal{Symbol: "BTCUSDT", Side: SideLong, Entry: 100, TakeProfit: 101.5, StopLoss: 98.5}, false},
		{"short ok", RawSignal{Symbol: "BTCUSDT", Side: SideShort, Entry: 100, TakeProfit: 98.5, StopLoss: 101.5}, false},
		{"long inverted", RawSignal{Symbol: "BTCUSDT", Side: SideLong, Entry: 100, TakeProfit: 98.5, StopLoss: 101.5}, true},
		{"short inverted", RawSignal{Symbol: "BTCUSDT", Side: SideShort, Entry: 100, TakeProfit: 101.5, StopLoss: 98.5}, true},
		{"zero entry", RawSignal{Symbol: "BTCUSDT", Side: SideLong, Entry: 0, TakeProfit: 1, StopLoss: 0.5}, true},
		{"nan tp", RawSignal{Symbol: "BTCUSDT", Side: SideLong, Entry: 1, TakeProfit: math.NaN(), StopLoss: 0.5}, true},
		{"inf tp", RawSignal{Symbol: "BTCUSDT", Side: SideLong, Entry: 1, TakeProfit: math.Inf(1), StopLoss: 0.5}, true},
		{"bad side", RawSignal{Symbol: "BTCUSDT", Side: "FLAT", Entry: 100, TakeProfit: 101, StopLoss: 99}, true},
		{"no symbol", RawSignal{Side: SideLong, Entry: 100, TakeProfit: 101, StopLoss: 99}, true},
		{"score range", RawSignal{Symbol: "X", Side: SideLong, Entry: 100, TakeProfit: 101, StopLoss: 99, RuleScore: 101}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewRawSignal(tt.sig)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSignal) {
					t.Fatalf("expected ErrInvalidSignal, got %v", err)
				}
				return
			}
			if err != nil || got == nil {
				t.Fatalf("unexpected error %v", err)
			}
		})
	}
}

func TestFeatureInputFor(t *testing.T) {
	in := FeatureInputFor(RawSignal{
		Entry: 10, TakeProfit: 10.15, StopLoss: 9.85, TrailingStop: 9.98,
		Side: SideShort, BandDirection: BandDown, RuleScore: 55,
	})
	if in.Trend != "Down" || in.Regime != RegimeBreakout || in.Score != 55 || in.Confidence != 0 {
		t.Fatalf("unexpected input %+v", in)
	}
}
