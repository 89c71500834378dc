package service

import (
	"context"

	"CoinPull/internal/domain/models"
)

// Classifier returns the positive-class probability for a feature vector.
type Classifier interface {
	PredictProba(ctx context.Context, features []float64) (float64, error)
}

// Notifier delivers signals and trades to one channel.
type Notifier interface {
	Name() string
	IsEnabled() bool
	NotifySignal(ctx context.Context, s models.EnhancedSignal) error
	NotifyTop(ctx context.Context, top []models.EnhancedSignal) error
	NotifyTrade(ctx context.Context, t models.Trade) error
}
