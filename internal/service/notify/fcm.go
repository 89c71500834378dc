package notify

import (
	"context"
	"fmt"
	"strconv"

	"CoinPull/internal/domain/models"
	domsvc "CoinPull/internal/domain/service"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

type fcmSender interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
}

// FCM pushes signals to a Firebase Cloud Messaging topic.
type FCM struct {
	topic  string
	sender fcmSender
}

// NewFCM initialises the messaging client from a service account file. An
// empty path returns a disabled notifier.
func NewFCM(ctx context.Context, credentialsPath, topic string) (*FCM, error) {
	if credentialsPath == "" {
		return &FCM{topic: topic}, nil
	}
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init messaging client: %w", err)
	}
	return &FCM{topic: topic, sender: client}, nil
}

func (f *FCM) Name() string { return "fcm" }

func (f *FCM) IsEnabled() bool { return f.sender != nil && f.topic != "" }

func (f *FCM) NotifySignal(ctx context.Context, s models.EnhancedSignal) error {
	m := signalMessage(s)
	return f.send(ctx, m, map[string]string{
		"type":        "signal",
		"symbol":      s.Symbol,
		"side":        string(s.Side),
		"entry":       num(s.Entry),
		"take_profit": num(s.TakeProfit),
		"stop_loss":   num(s.StopLoss),
		"score":       strconv.FormatFloat(s.Score, 'f', 2, 64),
	})
}

func (f *FCM) NotifyTop(ctx context.Context, top []models.EnhancedSignal) error {
	return f.send(ctx, topMessage(top), map[string]string{"type": "top", "count": strconv.Itoa(len(top))})
}

func (f *FCM) NotifyTrade(ctx context.Context, t models.Trade) error {
	return f.send(ctx, tradeMessage(t), map[string]string{
		"type":     "trade",
		"symbol":   t.Symbol,
		"side":     string(t.Side),
		"order_id": t.OrderID,
	})
}

func (f *FCM) send(ctx context.Context, m message, data map[string]string) error {
	if !f.IsEnabled() {
		return nil
	}
	_, err := f.sender.Send(ctx, &messaging.Message{
		Topic:        f.topic,
		Notification: &messaging.Notification{Title: m.Title, Body: m.text()},
		Data:         data,
		Android: &messaging.AndroidConfig{
			Priority:     "high",
			Notification: &messaging.AndroidNotification{Priority: messaging.PriorityHigh},
		},
	})
	if err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	return nil
}

var _ domsvc.Notifier = (*FCM)(nil)
