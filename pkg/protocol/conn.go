// ABOUTME: WebSocket connection to a Lavalink node
// ABOUTME: Handles the authenticated dial, serialized writes and the read loop
package protocol

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	DefaultHandshakeTimeout = 10 * time.Second
	writeTimeout            = 10 * time.Second
)

// DialConfig holds what a node needs to accept a connection.
type DialConfig struct {
	URL        string
	Node       string // label used in errors and logs
	Password   string
	UserID     string
	ClientName string
	SessionID  string // sent to resume a previous session

	HandshakeTimeout time.Duration
	Logger           zerolog.Logger
}

// Header builds the handshake headers. Both v3 and v4 spellings of the
// resume key are sent.
func (c DialConfig) Header() http.Header {
	h := http.Header{}
	h.Set("Authorization", c.Password)
	h.Set("User-Id", c.UserID)
	h.Set("Client-Name", c.ClientName)
	if c.SessionID != "" {
		h.Set("Session-Id", c.SessionID)
		h.Set("Resume-Key", c.SessionID)
	}
	return h
}

// Conn is one live WebSocket session with a node. Writes may come from any
// goroutine; reads happen only inside Listen.
type Conn struct {
	ws      *websocket.Conn
	node    string
	resumed bool
	log     zerolog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// Dial opens the WebSocket and authenticates. A rejected handshake comes back
// as a *TransportError carrying the HTTP status; 401 also wraps ErrUnauthorized.
func Dial(ctx context.Context, config DialConfig) (*Conn, error) {
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = DefaultHandshakeTimeout
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: config.HandshakeTimeout,
	}

	config.Logger.Debug().Str("url", config.URL).Bool("resume", config.SessionID != "").Msg("dialing node")

	ws, resp, err := dialer.DialContext(ctx, config.URL, config.Header())
	if err != nil {
		terr := &TransportError{Node: config.Node, Op: "dial", Err: err}
		if resp != nil {
			terr.Status = resp.StatusCode
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				terr.Err = fmt.Errorf("%w: %v", ErrUnauthorized, err)
			}
		}
		return nil, terr
	}

	return &Conn{
		ws:      ws,
		node:    config.Node,
		resumed: resp != nil && resp.Header.Get("Session-Resumed") == "true",
		log:     config.Logger,
		closed:  make(chan struct{}),
	}, nil
}

// Resumed reports whether a v3 node accepted the resume key during the
// handshake. v4 nodes say so in the ready frame instead.
func (c *Conn) Resumed() bool { return c.resumed }

// Send writes v as one JSON text frame. It does not wait for any reply.
func (c *Conn) Send(v any) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteJSON(v); err != nil {
		return &TransportError{Node: c.node, Op: "write", Err: err}
	}
	return nil
}

// Listen reads text frames and hands each to handle until the connection
// fails, Close is called or ctx ends. It returns ErrClosed after a local
// close and a *TransportError otherwise.
func (c *Conn) Listen(ctx context.Context, handle func(data []byte)) error {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
				return ErrClosed
			default:
			}
			c.shutdown()
			return &TransportError{Node: c.node, Op: "read", Err: err}
		}

		if messageType != websocket.TextMessage {
			c.log.Debug().Int("type", messageType).Msg("ignoring non-text frame")
			continue
		}
		handle(data)
	}
}

// Close sends a normal closure and tears the socket down. Safe to call more
// than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

// shutdown releases the socket after a remote failure without writing.
func (c *Conn) shutdown() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.ws.Close()
	})
}

// CloseCode extracts the WebSocket close code from a Listen error, or -1.
func CloseCode(err error) int {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return -1
}
