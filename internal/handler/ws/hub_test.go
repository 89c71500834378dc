package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"CoinPull/internal/domain/models"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

func TestHubBroadcastsSignals(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	e := echo.New()
	hub.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/signals"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	sig := models.EnhancedSignal{RawSignal: models.RawSignal{Symbol: "BTCUSDT", Side: models.SideLong}, Score: 81}
	if err := hub.NotifySignal(context.Background(), sig); err != nil {
		t.Fatalf("NotifySignal: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev struct {
		Type string                `json:"type"`
		Data models.EnhancedSignal `json:"data"`
	}
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Type != "signal" || ev.Data.Symbol != "BTCUSDT" || ev.Data.Score != 81 {
		t.Fatalf("unexpected event %s", msg)
	}

	conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client not removed after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubPublishWithoutClients(t *testing.T) {
	hub := NewHub()
	for i := 0; i < 300; i++ {
		if err := hub.NotifyTrade(context.Background(), models.Trade{Symbol: "X"}); err != nil {
			t.Fatalf("publish must not fail when the buffer is full: %v", err)
		}
	}
	if hub.Name() != "websocket" || !hub.IsEnabled() {
		t.Fatalf("unexpected notifier identity")
	}
}
