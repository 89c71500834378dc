package usecase

import "github.com/shopspring/decimal"

func roundTo(x float64, places int32) float64 {
	return decimal.NewFromFloat(x).Round(places).InexactFloat64()
}

func round1(x float64) float64 { return roundTo(x, 1) }

func round2(x float64) float64 { return roundTo(x, 2) }

func round6(x float64) float64 { return roundTo(x, 6) }

// scale6 returns x*f rounded to 6 places without the float product error.
func scale6(x, f float64) float64 {
	return decimal.NewFromFloat(x).Mul(decimal.NewFromFloat(f)).Round(6).InexactFloat64()
}
