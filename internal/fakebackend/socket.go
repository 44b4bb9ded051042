package fakebackend

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/wavesbyte/cibtron-tool/internal/push"
)

// peer is one websocket client. Writes are serialised by mu.
type peer struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (p *peer) write(msg string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return p.conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

// hub speaks just enough Engine.IO v4 / Socket.IO v5 over websocket to
// push events to the console.
type hub struct {
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	logger       *zap.Logger

	mu    sync.Mutex
	peers map[*peer]struct{}
}

func newHub(pingInterval time.Duration, logger *zap.Logger) *hub {
	return &hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		pingInterval: pingInterval,
		logger:       logger,
		peers:        map[*peer]struct{}{},
	}
}

func (h *hub) handle(c echo.Context) error {
	if c.QueryParam("transport") != "websocket" || c.QueryParam("EIO") != "4" {
		return echo.NewHTTPError(http.StatusBadRequest, "only EIO=4 websocket transport is supported")
	}
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	p := &peer{conn: ws}
	defer func() {
		h.mu.Lock()
		delete(h.peers, p)
		h.mu.Unlock()
		_ = ws.Close()
	}()

	open, err := push.EncodeOpen(push.Handshake{
		SID:          uuid.NewString(),
		Upgrades:     []string{},
		PingInterval: int(h.pingInterval / time.Millisecond),
		PingTimeout:  20000,
	})
	if err != nil {
		return err
	}
	if err := p.write(open); err != nil {
		return nil
	}

	done := make(chan struct{})
	defer close(done)
	go h.pinger(p, done)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("push client dropped", zap.Error(err))
			}
			return nil
		}
		switch string(data) {
		case "40":
			h.mu.Lock()
			h.peers[p] = struct{}{}
			h.mu.Unlock()
			if err := p.write(`40{"sid":"` + uuid.NewString() + `"}`); err != nil {
				return nil
			}
		case "41", "1":
			return nil
		case "3":
			// pong
		}
	}
}

func (h *hub) pinger(p *peer, done <-chan struct{}) {
	t := time.NewTicker(h.pingInterval)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			if err := p.write("2"); err != nil {
				return
			}
		}
	}
}

func (h *hub) broadcast(event string, payload any) {
	msg, err := push.EncodeEvent(event, payload)
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("event", event), zap.Error(err))
		return
	}
	h.mu.Lock()
	peers := make([]*peer, 0, len(h.peers))
	for p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()

	for _, p := range peers {
		if err := p.write(msg); err != nil {
			h.logger.Debug("failed to push event", zap.Error(err))
		}
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for p := range h.peers {
		_ = p.conn.Close()
	}
}
