package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wavesbyte/cibtron-tool/internal/api"
	"github.com/wavesbyte/cibtron-tool/internal/jobsync"
)

// Kind tells what a Message carries.
type Kind int

const (
	KindConnected Kind = iota
	KindDisconnected
	KindError
	KindEvent
)

// Message is one item delivered by Run, in arrival order.
type Message struct {
	Kind  Kind
	Event jobsync.Event
	Err   error
}

// Text renders lifecycle messages for the job log.
func (m Message) Text() string {
	switch m.Kind {
	case KindConnected:
		return "Connected to the notification server."
	case KindDisconnected:
		return "Disconnected from the notification server."
	case KindError:
		return fmt.Sprintf("Error connecting to the notification server: %v", m.Err)
	default:
		return ""
	}
}

// Client subscribes to the backend's Socket.IO job status events.
type Client struct {
	url        string
	header     http.Header
	dialer     *websocket.Dialer
	minBackoff time.Duration
	maxBackoff time.Duration
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBackoff sets the reconnect delay bounds.
func WithBackoff(lo, hi time.Duration) Option {
	return func(c *Client) {
		c.minBackoff = lo
		c.maxBackoff = hi
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the backend at base. idToken is sent as the
// session cookie when non-empty.
func New(base *url.URL, idToken string, opts ...Option) *Client {
	header := http.Header{}
	if idToken != "" {
		header.Add("Cookie", (&http.Cookie{Name: api.SessionCookie, Value: idToken}).String())
	}
	c := &Client{
		url:    SocketURL(base),
		header: header,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 10 * time.Second,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the websocket endpoint.
func (c *Client) URL() string {
	return c.url
}

// Run keeps a connection open until ctx is done, reconnecting with a
// capped exponential backoff. Messages are delivered on out in the order
// the backend sent them. Run returns ctx.Err().
func (c *Client) Run(ctx context.Context, out chan<- Message) error {
	backoff := c.minBackoff
	for {
		connected, err := c.session(ctx, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			backoff = c.minBackoff
			deliver(ctx, out, Message{Kind: KindDisconnected, Err: err})
		} else {
			deliver(ctx, out, Message{Kind: KindError, Err: err})
		}
		c.logger.Debug("push channel closed", zap.Error(err), zap.Duration("retry_in", backoff))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}
}

func deliver(ctx context.Context, out chan<- Message, m Message) {
	select {
	case out <- m:
	case <-ctx.Done():
	}
}

// session runs one connection. connected reports whether the Socket.IO
// handshake completed before it ended.
func (c *Client) session(ctx context.Context, out chan<- Message) (connected bool, err error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", c.url, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	hs, err := readOpen(conn)
	if err != nil {
		return false, err
	}
	c.logger.Debug("engine.io open", zap.String("sid", hs.SID), zap.Int("ping_interval", hs.PingInterval))

	if err := conn.WriteMessage(websocket.TextMessage, []byte{eioMessage, sioConnect}); err != nil {
		return false, fmt.Errorf("socket.io connect: %w", err)
	}

	for {
		_ = conn.SetReadDeadline(time.Now().Add(hs.Deadline()))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return connected, err
		}
		if len(data) == 0 {
			continue
		}

		switch data[0] {
		case eioPing:
			pong := append([]byte{eioPong}, data[1:]...)
			if err := conn.WriteMessage(websocket.TextMessage, pong); err != nil {
				return connected, err
			}
		case eioClose:
			return connected, fmt.Errorf("server closed the session")
		case eioMessage:
			if len(data) < 2 {
				continue
			}
			body := string(data[2:])
			switch data[1] {
			case sioConnect:
				connected = true
				deliver(ctx, out, Message{Kind: KindConnected})
			case sioConnectError:
				return connected, fmt.Errorf("socket.io connect refused: %s", body)
			case sioDisconnect:
				return connected, fmt.Errorf("server disconnected the namespace")
			case sioEvent:
				c.dispatch(ctx, out, body)
			}
		}
	}
}

func (c *Client) dispatch(ctx context.Context, out chan<- Message, body string) {
	name, payload, err := decodeEvent(body)
	if err != nil {
		c.logger.Warn("dropping malformed push event", zap.Error(err))
		return
	}
	ev, ok, err := ToJobEvent(name, payload)
	if err != nil {
		c.logger.Warn("dropping push event", zap.String("event", name), zap.Error(err))
		return
	}
	if !ok {
		c.logger.Debug("ignoring push event", zap.String("event", name))
		return
	}
	deliver(ctx, out, Message{Kind: KindEvent, Event: ev})
}

func readOpen(conn *websocket.Conn) (Handshake, error) {
	var hs Handshake
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return hs, fmt.Errorf("engine.io open: %w", err)
	}
	if len(data) == 0 || data[0] != eioOpen {
		return hs, fmt.Errorf("engine.io open: unexpected packet %q", data)
	}
	if err := json.Unmarshal(data[1:], &hs); err != nil {
		return hs, fmt.Errorf("engine.io open: %w", err)
	}
	return hs, nil
}
