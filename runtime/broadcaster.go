package runtime

import (
	"chat-realtime/contract"
	"chat-realtime/domain"
	"chat-realtime/errors"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// FailureHandler is told about a session whose connection refused a frame.
type FailureHandler func(session *Session, err error)

// Broadcaster delivers frames to live sessions.
// Frames are marshalled once and delivered outside the registry lock; a slow
// or dead peer is bounded by the delivery timeout and its failure never
// reaches the caller.
type Broadcaster struct {
	log             *slog.Logger
	registry        *Registry
	deliveryTimeout time.Duration
	onFailure       FailureHandler
}

func NewBroadcaster(log *slog.Logger, registry *Registry, deliveryTimeout time.Duration) *Broadcaster {
	return &Broadcaster{
		log:             log,
		registry:        registry,
		deliveryTimeout: deliveryTimeout,
		onFailure:       func(*Session, error) {},
	}
}

// OnFailure installs the hook called after a failed delivery.
// It must be set before the broadcaster is shared between goroutines.
func (b *Broadcaster) OnFailure(handler FailureHandler) {
	b.onFailure = handler
}

// BroadcastToRoom implements contract.RoomBroadcaster.
func (b *Broadcaster) BroadcastToRoom(ctx context.Context, roomID domain.RoomID, frame domain.Frame, exclude ...domain.UserID) {
	payload, err := json.Marshal(frame)
	if err != nil {
		b.log.Error("Unable to marshal frame", "type", frame.Type, "room_id", roomID, "error", err)
		return
	}
	subscribers := b.registry.Subscribers(roomID, exclude...)
	for _, session := range subscribers {
		_ = b.deliver(ctx, session, payload)
	}
	b.log.Debug("Frame broadcast", "type", frame.Type, "room_id", roomID, "recipients", len(subscribers))
}

// DeliverToSession sends frame to a single session.
func (b *Broadcaster) DeliverToSession(ctx context.Context, session *Session, frame domain.Frame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", frame.Type, err)
	}
	return b.deliver(ctx, session, payload)
}

// DeliverToIdentity sends frame to the live session of userID, if any.
func (b *Broadcaster) DeliverToIdentity(ctx context.Context, userID domain.UserID, frame domain.Frame) bool {
	session, ok := b.registry.Session(userID)
	if !ok {
		return false
	}
	return b.DeliverToSession(ctx, session, frame) == nil
}

// DeliverToAll sends frame to every live session.
func (b *Broadcaster) DeliverToAll(ctx context.Context, frame domain.Frame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		b.log.Error("Unable to marshal frame", "type", frame.Type, "error", err)
		return
	}
	for _, session := range b.registry.Sessions() {
		_ = b.deliver(ctx, session, payload)
	}
}

// DeliverToConn sends frame to a connection that has no session, such as one
// refused at admission. A failure is returned and nobody is evicted.
func (b *Broadcaster) DeliverToConn(ctx context.Context, conn contract.Connection, frame domain.Frame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", frame.Type, err)
	}
	if err := b.send(ctx, conn, payload); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrDeliveryFailure, err)
	}
	return nil
}

func (b *Broadcaster) send(ctx context.Context, conn contract.Connection, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, b.deliveryTimeout)
	defer cancel()
	return conn.Send(ctx, payload)
}

func (b *Broadcaster) deliver(ctx context.Context, session *Session, payload []byte) error {
	if err := b.send(ctx, session.conn, payload); err != nil {
		err = fmt.Errorf("%w: %v", errors.ErrDeliveryFailure, err)
		b.log.Warn("Delivery failed", "user_id", session.UserID(), "session_id", session.ID(), "error", err)
		b.onFailure(session, err)
		return err
	}
	return nil
}
