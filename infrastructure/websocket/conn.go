package websocket

import (
	"chat-realtime/errors"
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultWriteWait    = 10 * time.Second
	defaultPongWait     = 60 * time.Second
	defaultMaxFrameSize = 64 * 1024
	defaultBufferSize   = 256
)

type Options struct {
	WriteWait    time.Duration
	PongWait     time.Duration
	MaxFrameSize int64
	BufferSize   int
}

func (o Options) withDefaults() Options {
	if o.WriteWait <= 0 {
		o.WriteWait = defaultWriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = defaultPongWait
	}
	if o.MaxFrameSize <= 0 {
		o.MaxFrameSize = defaultMaxFrameSize
	}
	if o.BufferSize <= 0 {
		o.BufferSize = defaultBufferSize
	}
	return o
}

// Conn adapts a gorilla connection to contract.Connection.
// Outbound frames go through a FIFO queue drained by a single writer
// goroutine; Receive must only be called from one goroutine.
type Conn struct {
	id     string
	log    *slog.Logger
	ws     *websocket.Conn
	opts   Options
	send   chan []byte
	quit   chan struct{}
	done   chan struct{}
	once   sync.Once
	code   int
	reason string
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Upgrade switches an HTTP request to the WebSocket protocol and starts the writer.
func Upgrade(log *slog.Logger, w http.ResponseWriter, r *http.Request, opts Options) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrade: %w", err)
	}
	return NewConn(log, ws, opts), nil
}

func NewConn(log *slog.Logger, ws *websocket.Conn, opts Options) *Conn {
	opts = opts.withDefaults()
	c := &Conn{
		id:   uuid.NewString(),
		log:  log,
		ws:   ws,
		opts: opts,
		send: make(chan []byte, opts.BufferSize),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}

	c.ws.SetReadLimit(opts.MaxFrameSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(opts.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(opts.PongWait))
	})

	go c.writePump()
	return c
}

func (c *Conn) ID() string { return c.id }

// Send queues data for the writer. It waits at most until ctx is done when
// the queue is full.
func (c *Conn) Send(ctx context.Context, data []byte) error {
	select {
	case <-c.quit:
		return errors.ErrConnectionClosed
	case <-c.done:
		return errors.ErrConnectionClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.quit:
		return errors.ErrConnectionClosed
	case <-c.done:
		return errors.ErrConnectionClosed
	case <-ctx.Done():
		return fmt.Errorf("send queue full: %w", ctx.Err())
	}
}

// Receive reads the next data frame.
func (c *Conn) Receive() ([]byte, error) {
	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, c.readError(err)
		}
		if messageType == websocket.TextMessage || messageType == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *Conn) readError(err error) error {
	select {
	case <-c.quit:
		return errors.ErrConnectionClosed
	default:
	}

	var netErr net.Error
	var closeErr *websocket.CloseError
	switch {
	case goerrors.As(err, &closeErr):
		if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
			c.log.Debug("Unexpected close", "connection_id", c.id, "code", closeErr.Code)
		}
		return fmt.Errorf("%w: %v", errors.ErrConnectionClosed, err)
	case goerrors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %v", errors.ErrIdleTimeout, err)
	case goerrors.Is(err, websocket.ErrReadLimit):
		return fmt.Errorf("%w: frame too large", errors.ErrProtocol)
	default:
		return fmt.Errorf("read: %w", err)
	}
}

// Close flushes queued frames, sends a close frame with code and reason,
// and releases the socket. Later calls are no-ops.
func (c *Conn) Close(code int, reason string) error {
	c.once.Do(func() {
		c.code, c.reason = code, reason
		close(c.quit)
	})
	return nil
}

// Done is closed once the socket has been released.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.opts.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
		close(c.done)
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				c.log.Debug("Write failed", "connection_id", c.id, "error", err)
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.quit:
			c.flush()
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(c.code, c.reason))
			return
		}
	}
}

// flush writes what is still queued so a final notice precedes the close frame.
func (c *Conn) flush() {
	for {
		select {
		case message := <-c.send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Conn) write(messageType int, data []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
	return c.ws.WriteMessage(messageType, data)
}
