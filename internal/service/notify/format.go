package notify

import (
	"fmt"
	"strings"

	"CoinPull/internal/domain/models"
)

// message is the channel-neutral body handed to each notifier.
type message struct {
	Title string
	Lines []string
}

func (m message) text() string { return strings.Join(m.Lines, "\n") }

func signalMessage(s models.EnhancedSignal) message {
	return message{
		Title: fmt.Sprintf("Signal %s %s", s.Symbol, s.Side),
		Lines: []string{
			fmt.Sprintf("Side: %s | Type: %s", s.Side, s.Trend),
			fmt.Sprintf("Entry: %s | TP: %s | SL: %s", num(s.Entry), num(s.TakeProfit), num(s.StopLoss)),
			fmt.Sprintf("Trail: %s | Liq: %s", num(s.TrailingStop), num(s.LiquidationPrice)),
			fmt.Sprintf("Score: %.2f%% | Confidence: %.2f%% (%s)", s.Score, s.Confidence, s.ScoredBy),
			fmt.Sprintf("Margin: %s USDT x%s | BB: %s", num(s.Margin), num(s.Leverage), s.BandDirection),
			fmt.Sprintf("Time: %s", s.GeneratedAt.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}
}

func topMessage(top []models.EnhancedSignal) message {
	m := message{Title: fmt.Sprintf("Top %d signals", len(top))}
	for i, s := range top {
		m.Lines = append(m.Lines, fmt.Sprintf("%d. %s %s %s score %.2f%% entry %s tp %s sl %s",
			i+1, s.Symbol, s.Side, s.Trend, s.Score, num(s.Entry), num(s.TakeProfit), num(s.StopLoss)))
	}
	return m
}

func tradeMessage(t models.Trade) message {
	mode := "REAL"
	if t.Virtual {
		mode = "VIRTUAL"
	}
	return message{
		Title: fmt.Sprintf("Trade executed %s", t.Symbol),
		Lines: []string{
			fmt.Sprintf("Side: %s | Entry: %s", t.Side, num(t.EntryPrice)),
			fmt.Sprintf("Qty: %s | Order: %s", num(t.Qty), t.OrderID),
			fmt.Sprintf("Mode: %s", mode),
		},
	}
}

func num(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.6f", v), "0"), ".")
}
