package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"CoinPull/internal/domain/models"
	domsvc "CoinPull/internal/domain/service"
	xhttp "CoinPull/pkg/http"
	applogger "CoinPull/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Event is the frame pushed to dashboard clients.
type Event struct {
	Type string      `json:"type"` // signal | top | trade
	Data interface{} `json:"data"`
	At   time.Time   `json:"at"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub streams signals and trades to connected websocket clients. It is a
// notifier so the scan engine can publish through it.
type Hub struct {
	mu        sync.RWMutex
	clients   map[*client]struct{}
	broadcast chan []byte
	log       *applogger.Logger
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*client]struct{}),
		broadcast: make(chan []byte, 256),
	}
}

func (h *Hub) SetLogger(l *applogger.Logger) { h.log = l }

func (h *Hub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/signals", h.Serve)
}

// Run fans broadcast frames out until ctx is done. Slow clients are dropped.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				h.dropLocked(c)
			}
			h.mu.Unlock()
			return
		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.dropLocked(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Serve upgrades the request and registers the client.
func (h *Hub) Serve(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.debug("websocket upgrade failed", applogger.Error(err))
		return nil
	}
	cl := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()
	h.debug("websocket client connected", applogger.String("remote", c.RealIP()))

	go h.writePump(cl)
	h.readPump(cl)
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Name() string { return "websocket" }

func (h *Hub) IsEnabled() bool { return true }

func (h *Hub) NotifySignal(_ context.Context, s models.EnhancedSignal) error {
	return h.publish("signal", s)
}

func (h *Hub) NotifyTop(_ context.Context, top []models.EnhancedSignal) error {
	return h.publish("top", top)
}

func (h *Hub) NotifyTrade(_ context.Context, t models.Trade) error {
	return h.publish("trade", t)
}

func (h *Hub) publish(kind string, data interface{}) error {
	b, err := json.Marshal(Event{Type: kind, Data: data, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- b:
	default:
		h.debug("websocket broadcast buffer full, dropping frame", applogger.String("type", kind))
	}
	return nil
}

// readPump discards client frames and unregisters on disconnect.
func (h *Hub) readPump(cl *client) {
	defer func() {
		h.mu.Lock()
		h.dropLocked(cl)
		h.mu.Unlock()
	}()
	cl.conn.SetReadLimit(512)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dropLocked removes cl and closes its send channel. Caller holds h.mu.
func (h *Hub) dropLocked(cl *client) {
	if _, ok := h.clients[cl]; !ok {
		return
	}
	delete(h.clients, cl)
	close(cl.send)
}

func (h *Hub) debug(msg string, fields ...applogger.Field) {
	if h.log != nil {
		h.log.Debug(msg, fields...)
	}
}

var (
	_ domsvc.Notifier = (*Hub)(nil)
	_ xhttp.Handler   = (*Hub)(nil)
)
