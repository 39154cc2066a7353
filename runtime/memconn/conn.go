// Package memconn provides an in-memory contract.Connection.
// It records every outbound frame and lets a caller push inbound frames,
// which makes it the transport of choice for exercising the realtime core
// without sockets.
package memconn

import (
	"chat-realtime/domain"
	"chat-realtime/errors"
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

type Conn struct {
	id       string
	inbound  chan []byte
	closed   chan struct{}
	once     sync.Once
	mu       sync.Mutex
	sent     [][]byte
	code     int
	reason   string
	sendFail error
}

func New() *Conn {
	return &Conn{
		id:      uuid.NewString(),
		inbound: make(chan []byte, 64),
		closed:  make(chan struct{}),
	}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Send(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sendFail != nil {
		return c.sendFail
	}
	select {
	case <-c.closed:
		return errors.ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	c.sent = append(c.sent, data)
	return nil
}

// Receive blocks until a frame is pushed or the connection is closed.
func (c *Conn) Receive() ([]byte, error) {
	select {
	case data := <-c.inbound:
		return data, nil
	case <-c.closed:
		return nil, errors.ErrConnectionClosed
	}
}

func (c *Conn) Close(code int, reason string) error {
	c.once.Do(func() {
		c.mu.Lock()
		c.code, c.reason = code, reason
		c.mu.Unlock()
		close(c.closed)
	})
	return nil
}

// Push queues an inbound frame as if the peer had written it.
func (c *Conn) Push(data []byte) {
	c.inbound <- data
}

// PushFrame marshals v and queues it as an inbound frame.
func (c *Conn) PushFrame(frameType domain.FrameType, data any) {
	bytes, _ := json.Marshal(map[string]any{"type": frameType, "data": data})
	c.Push(bytes)
}

// FailSends makes every following Send return err.
func (c *Conn) FailSends(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendFail = err
}

// Sent returns a copy of every outbound payload in delivery order.
func (c *Conn) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

// Frames decodes the outbound payloads. Data is kept raw for inspection.
func (c *Conn) Frames() []Frame {
	var frames []Frame
	for _, payload := range c.Sent() {
		var frame Frame
		if err := json.Unmarshal(payload, &frame); err == nil {
			frames = append(frames, frame)
		}
	}
	return frames
}

// Types lists the type of every outbound frame in delivery order.
func (c *Conn) Types() []domain.FrameType {
	var types []domain.FrameType
	for _, frame := range c.Frames() {
		types = append(types, frame.Type)
	}
	return types
}

// Reset forgets the outbound history.
func (c *Conn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = nil
}

func (c *Conn) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// CloseStatus returns the code and reason given to Close.
func (c *Conn) CloseStatus() (int, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code, c.reason
}

type Frame struct {
	Type domain.FrameType `json:"type"`
	Data json.RawMessage  `json:"data"`
}
