package notify

import (
	"context"
	"fmt"
	"time"

	"CoinPull/internal/domain/models"
	domsvc "CoinPull/internal/domain/service"
	xhttp "CoinPull/pkg/http"
)

// Discord posts plain content to a webhook.
type Discord struct {
	webhookURL string
	client     *xhttp.Client
}

func NewDiscord(webhookURL string, timeout time.Duration) *Discord {
	return &Discord{webhookURL: webhookURL, client: xhttp.NewClient(xhttp.WithTimeout(timeout))}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) IsEnabled() bool { return d.webhookURL != "" }

func (d *Discord) NotifySignal(ctx context.Context, s models.EnhancedSignal) error {
	return d.send(ctx, signalMessage(s))
}

func (d *Discord) NotifyTop(ctx context.Context, top []models.EnhancedSignal) error {
	return d.send(ctx, topMessage(top))
}

func (d *Discord) NotifyTrade(ctx context.Context, t models.Trade) error {
	return d.send(ctx, tradeMessage(t))
}

func (d *Discord) send(ctx context.Context, m message) error {
	if !d.IsEnabled() {
		return nil
	}
	err := d.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    d.webhookURL,
		Body:   map[string]string{"content": fmt.Sprintf("**%s**\n%s", m.Title, m.text())},
	}, nil)
	if err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	return nil
}

var _ domsvc.Notifier = (*Discord)(nil)
