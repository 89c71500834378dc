package models

import "time"

type TradeStatus string

const (
	TradeOpen   TradeStatus = "open"
	TradeClosed TradeStatus = "closed"
)

// Trade is an order opened from a ranked signal. Virtual trades are paper fills.
type Trade struct {
	ID         string      `json:"id"`
	OrderID    string      `json:"order_id"`
	SignalID   string      `json:"signal_id"`
	Symbol     string      `json:"symbol"`
	Side       Side        `json:"side"`
	Qty        float64     `json:"qty"`
	EntryPrice float64     `json:"entry_price"`
	StopLoss   float64     `json:"stop_loss"`
	TakeProfit float64     `json:"take_profit"`
	Trail      float64     `json:"trail"`
	Leverage   float64     `json:"leverage"`
	Margin     float64     `json:"margin"`
	Score      float64     `json:"score"`
	Confidence float64     `json:"confidence"`
	Status     TradeStatus `json:"status"`
	Virtual    bool        `json:"virtual"`
	PnL        float64     `json:"pnl"`
	OpenedAt   time.Time   `json:"opened_at"`
	ClosedAt   *time.Time  `json:"closed_at,omitempty"`
}

// TrainingSample is one labelled feature row.
type TrainingSample struct {
	Input FeatureInput
	Label int
}

// TrainReport summarises a training run.
type TrainReport struct {
	Samples   int       `json:"samples"`
	Trades    int       `json:"trades"`
	Signals   int       `json:"signals"`
	Skipped   int       `json:"skipped"`
	TrainSize int       `json:"train_size"`
	TestSize  int       `json:"test_size"`
	Accuracy  float64   `json:"accuracy"`
	TrainedAt time.Time `json:"trained_at"`
}
