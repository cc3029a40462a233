package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"OppScan/internal/domain/models"
	applogger "OppScan/pkg/logger"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPingPeriod = 30 * time.Second
	streamSendBuffer = 32
)

type streamClient struct {
	conn *websocket.Conn
	send chan *models.ScanEvent
	once sync.Once
}

func (c *streamClient) close() {
	c.once.Do(func() {
		close(c.send)
		_ = c.conn.Close()
	})
}

// StreamHub pushes scan events to connected WebSocket dashboards. It is a
// Notifier sink: the event pipeline feeds it, clients only read.
type StreamHub struct {
	upgrader websocket.Upgrader
	logger   *applogger.Logger

	mu      sync.Mutex
	clients map[*streamClient]struct{}
}

func NewStreamHub(logger *applogger.Logger) *StreamHub {
	return &StreamHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[*streamClient]struct{}),
	}
}

// Serve upgrades the request and registers the connection.
func (h *StreamHub) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", applogger.Error(err))
		return err
	}

	client := &streamClient{
		conn: conn,
		send: make(chan *models.ScanEvent, streamSendBuffer),
	}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("stream client connected", applogger.Int("clients", n))

	go h.writeLoop(client)
	go h.readLoop(client)
	return nil
}

// Notify fans the event out to every client. Slow consumers lose events
// rather than backing up the pipeline.
func (h *StreamHub) Notify(_ context.Context, ev *models.ScanEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- ev:
		default:
		}
	}
}

// Close disconnects all clients.
func (h *StreamHub) Close() error {
	h.mu.Lock()
	clients := make([]*streamClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[*streamClient]struct{})
	h.mu.Unlock()

	for _, client := range clients {
		client.close()
	}
	return nil
}

func (h *StreamHub) remove(client *streamClient) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
	client.close()
}

func (h *StreamHub) writeLoop(client *streamClient) {
	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()
	defer h.remove(client)

	for {
		select {
		case ev, ok := <-client.send:
			if !ok {
				return
			}
			_ = client.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := client.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop discards inbound frames; its job is noticing the disconnect.
func (h *StreamHub) readLoop(client *streamClient) {
	defer h.remove(client)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}
