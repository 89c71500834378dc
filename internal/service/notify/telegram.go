package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"CoinPull/internal/domain/models"
	domsvc "CoinPull/internal/domain/service"
	xhttp "CoinPull/pkg/http"
)

// Telegram posts Markdown messages through the Bot API.
type Telegram struct {
	baseURL  string
	botToken string
	chatID   string
	client   *xhttp.Client
}

func NewTelegram(baseURL, botToken, chatID string, timeout time.Duration) *Telegram {
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &Telegram{
		baseURL:  strings.TrimRight(baseURL, "/"),
		botToken: botToken,
		chatID:   chatID,
		client:   xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) IsEnabled() bool { return t.botToken != "" && t.chatID != "" }

func (t *Telegram) NotifySignal(ctx context.Context, s models.EnhancedSignal) error {
	return t.send(ctx, signalMessage(s))
}

func (t *Telegram) NotifyTop(ctx context.Context, top []models.EnhancedSignal) error {
	return t.send(ctx, topMessage(top))
}

func (t *Telegram) NotifyTrade(ctx context.Context, tr models.Trade) error {
	return t.send(ctx, tradeMessage(tr))
}

func (t *Telegram) send(ctx context.Context, m message) error {
	if !t.IsEnabled() {
		return nil
	}
	err := t.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken),
		Body: map[string]interface{}{
			"chat_id":    t.chatID,
			"text":       fmt.Sprintf("*%s*\n\n%s", m.Title, m.text()),
			"parse_mode": "Markdown",
		},
	}, nil)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

var _ domsvc.Notifier = (*Telegram)(nil)
