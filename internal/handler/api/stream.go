package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/OSINTfan/sso-1/internal/domain/models"
	applogger "github.com/OSINTfan/sso-1/pkg/logger"
)

// StreamHandler pushes committed-state events to WebSocket subscribers. It
// implements the event sink interface, so it hangs off the same fanout as
// the Kafka sink. Slow clients are dropped rather than allowed to block the
// broadcast loop.
type StreamHandler struct {
	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  map[*wsClient]struct{}
	l        *applogger.Logger
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

const (
	wsSendBuffer   = 64
	wsWriteTimeout = 5 * time.Second
	wsPingInterval = 30 * time.Second
)

func NewStreamHandler() *StreamHandler {
	return &StreamHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
}

// SetLogger injects a structured logger.
func (h *StreamHandler) SetLogger(l *applogger.Logger) { h.l = l }

func (h *StreamHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/stream", h.Stream)
}

// Stream upgrades the connection and keeps it until the peer goes away.
func (h *StreamHandler) Stream(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	cl := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	if h.l != nil {
		h.l.Debug("stream client connected", applogger.Int("clients", n))
	}

	go h.writeLoop(cl)
	h.readLoop(cl)
	return nil
}

func (h *StreamHandler) writeLoop(cl *wsClient) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-cl.send:
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			_ = cl.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.drop(cl)
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.drop(cl)
				return
			}
		}
	}
}

// readLoop discards inbound frames; the stream is one-way. Returning closes
// the connection.
func (h *StreamHandler) readLoop(cl *wsClient) {
	defer h.drop(cl)
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *StreamHandler) drop(cl *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
	h.mu.Unlock()
	_ = cl.conn.Close()
}

func (h *StreamHandler) broadcast(eventType string, payload any) {
	msg, err := json.Marshal(map[string]any{"type": eventType, "payload": payload})
	if err != nil {
		return
	}
	h.mu.Lock()
	var stale []*wsClient
	for cl := range h.clients {
		select {
		case cl.send <- msg:
		default:
			stale = append(stale, cl)
		}
	}
	h.mu.Unlock()
	for _, cl := range stale {
		h.drop(cl)
	}
}

func (h *StreamHandler) SignalUpdated(_ context.Context, ev models.SignalUpdated) {
	h.broadcast("signal_updated", ev)
}

func (h *StreamHandler) SignalRevoked(_ context.Context, ev models.SignalRevoked) {
	h.broadcast("signal_revoked", ev)
}

func (h *StreamHandler) AccountInitialized(_ context.Context, ev models.AccountInitialized) {
	h.broadcast("account_initialized", ev)
}

func (h *StreamHandler) ProviderRegistered(_ context.Context, ev models.ProviderRegistered) {
	h.broadcast("provider_registered", ev)
}

func (h *StreamHandler) ProviderRevoked(_ context.Context, ev models.ProviderRevoked) {
	h.broadcast("provider_revoked", ev)
}

// Close disconnects every subscriber.
func (h *StreamHandler) Close() error {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for cl := range h.clients {
		clients = append(clients, cl)
	}
	h.mu.Unlock()
	for _, cl := range clients {
		h.drop(cl)
	}
	return nil
}
