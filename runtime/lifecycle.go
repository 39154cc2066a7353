package runtime

import (
	"chat-realtime/contract"
	"chat-realtime/domain"
	"chat-realtime/errors"
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"time"
)

// WebSocket close codes used by the manager.
const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	ClosePolicyViolation = 1008
	CloseInternalError   = 1011
	CloseTryAgainLater   = 1013
)

type DisconnectReason string

const (
	ReasonClosed      DisconnectReason = "closed"
	ReasonError       DisconnectReason = "error"
	ReasonEvicted     DisconnectReason = "evicted"
	ReasonIdleTimeout DisconnectReason = "idle timeout"
	ReasonReplaced    DisconnectReason = "session replaced"
	ReasonShutdown    DisconnectReason = "server shutdown"
	ReasonLogout      DisconnectReason = "logout"
)

func (r DisconnectReason) closeCode() int {
	switch r {
	case ReasonShutdown, ReasonIdleTimeout:
		return CloseGoingAway
	case ReasonError, ReasonEvicted:
		return CloseInternalError
	default:
		return CloseNormal
	}
}

// announced reports whether the rooms of a session torn down for this reason
// are told the user left. A replaced identity is still online, and a shutdown
// has nobody left to tell.
func (r DisconnectReason) announced() bool {
	return r != ReasonReplaced && r != ReasonShutdown
}

// Outcome is the result of handling one inbound frame.
type Outcome int

const (
	OutcomeHandled Outcome = iota
	OutcomeRejected
	OutcomeIgnored
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHandled:
		return "handled"
	case OutcomeRejected:
		return "rejected"
	case OutcomeIgnored:
		return "ignored"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// FrameHandler reacts to one inbound frame of an admitted session.
type FrameHandler interface {
	Handle(ctx context.Context, session *Session, raw []byte) Outcome
}

// Manager owns the lifecycle of realtime connections: admission, the read
// loop and teardown.
type Manager struct {
	log          *slog.Logger
	registry     *Registry
	broadcaster  *Broadcaster
	users        contract.UserStore
	tokens       contract.TokenVerifier
	handler      FrameHandler
	presence     *presenceLocks
	storeTimeout time.Duration
}

func NewManager(
	log *slog.Logger,
	registry *Registry,
	broadcaster *Broadcaster,
	users contract.UserStore,
	tokens contract.TokenVerifier,
	handler FrameHandler,
) *Manager {
	m := &Manager{
		log:          log,
		registry:     registry,
		broadcaster:  broadcaster,
		users:        users,
		tokens:       tokens,
		handler:      handler,
		presence:     newPresenceLocks(),
		storeTimeout: 5 * time.Second,
	}
	broadcaster.OnFailure(func(session *Session, err error) {
		m.Evict(session, ReasonEvicted)
	})
	return m
}

// Admit authenticates a new connection and registers its session.
// A previous session of the same identity is told it was replaced, then closed.
func (m *Manager) Admit(ctx context.Context, conn contract.Connection, credential string) (*Session, error) {
	if credential == "" {
		return nil, fmt.Errorf("%w: missing credential", errors.ErrUnauthorized)
	}
	userID, err := m.tokens.Verify(credential)
	if err != nil {
		if goerrors.Is(err, errors.ErrUnauthorized) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", errors.ErrUnauthorized, err)
	}
	user, err := m.users.GetUserByID(ctx, userID)
	if err != nil {
		if goerrors.Is(err, errors.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown user", errors.ErrUnauthorized)
		}
		return nil, fmt.Errorf("lookup user %s: %w", userID, err)
	}

	session := NewSession(conn, user.Profile())
	unlock := m.presence.lock(userID)
	replaced, err := m.registry.Register(session)
	if err != nil {
		unlock()
		return nil, err
	}
	if err := m.users.SetUserOnlineStatus(ctx, userID, true); err != nil {
		m.log.Warn("Unable to mark user online", "user_id", userID, "error", err)
	}
	unlock()

	if replaced != nil {
		_ = m.broadcaster.DeliverToSession(ctx, replaced, domain.SessionReplacedFrame())
		m.Teardown(replaced, ReasonReplaced)
	}
	_ = m.broadcaster.DeliverToSession(ctx, session, domain.ConnectedFrame(session.Profile()))

	m.log.Info("Session admitted", "user_id", userID, "session_id", session.ID(), "replaced", replaced != nil)
	return session, nil
}

// Serve admits conn and runs its read loop until the connection ends.
// Every exit path after admission goes through Teardown.
func (m *Manager) Serve(ctx context.Context, conn contract.Connection, credential string) error {
	session, err := m.Admit(ctx, conn, credential)
	if err != nil {
		m.reject(ctx, conn, err)
		return err
	}

	reason := m.readLoop(ctx, session)
	m.Teardown(session, reason)
	return nil
}

func (m *Manager) reject(ctx context.Context, conn contract.Connection, err error) {
	m.log.Info("Connection rejected", "connection_id", conn.ID(), "error", err)

	switch {
	case goerrors.Is(err, errors.ErrCapacityReached):
		_ = m.broadcaster.DeliverToConn(ctx, conn, domain.ErrorFrame(errors.PublicMessage(err)))
		_ = conn.Close(CloseTryAgainLater, errors.PublicMessage(err))
	case goerrors.Is(err, errors.ErrUnauthorized):
		_ = conn.Close(ClosePolicyViolation, errors.PublicMessage(err))
	default:
		_ = conn.Close(CloseInternalError, errors.PublicMessage(err))
	}
}

func (m *Manager) readLoop(ctx context.Context, session *Session) DisconnectReason {
	for {
		raw, err := session.conn.Receive()
		if err != nil {
			switch {
			case goerrors.Is(err, errors.ErrIdleTimeout):
				return ReasonIdleTimeout
			case goerrors.Is(err, errors.ErrConnectionClosed):
				return ReasonClosed
			default:
				m.log.Warn("Read failed", "user_id", session.UserID(), "error", err)
				return ReasonError
			}
		}
		outcome := m.handler.Handle(ctx, session, raw)
		m.log.Debug("Frame handled", "user_id", session.UserID(), "outcome", outcome.String())
	}
}

// Teardown removes session from the registry and every room, marks the
// identity offline if it was still the live session, announces the departure
// and closes the connection. Only the first call has an effect.
func (m *Manager) Teardown(session *Session, reason DisconnectReason) {
	session.teardown.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.storeTimeout)
		defer cancel()

		unlock := m.presence.lock(session.UserID())
		rooms, current := m.registry.Remove(session)
		if current {
			if err := m.users.SetUserOnlineStatus(ctx, session.UserID(), false); err != nil {
				m.log.Warn("Unable to mark user offline", "user_id", session.UserID(), "error", err)
			}
		}
		unlock()

		if current && reason.announced() {
			for _, roomID := range rooms {
				m.broadcaster.BroadcastToRoom(ctx, roomID, domain.UserLeftFrame(session.Profile(), roomID))
			}
		}
		if err := session.conn.Close(reason.closeCode(), string(reason)); err != nil {
			m.log.Debug("Close failed", "user_id", session.UserID(), "error", err)
		}
		m.log.Info("Session closed",
			"user_id", session.UserID(),
			"session_id", session.ID(),
			"reason", string(reason),
			"rooms", len(rooms),
			"duration", time.Since(session.ConnectedAt()).String())
	})
}

// Evict schedules the teardown of session without blocking the caller.
func (m *Manager) Evict(session *Session, reason DisconnectReason) {
	go m.Teardown(session, reason)
}

// Disconnect tears down the live session of userID, if any.
func (m *Manager) Disconnect(userID domain.UserID) bool {
	session, ok := m.registry.Session(userID)
	if !ok {
		return false
	}
	m.Teardown(session, ReasonLogout)
	return true
}

// Shutdown closes every live session with a going-away code.
func (m *Manager) Shutdown(ctx context.Context) error {
	sessions := m.registry.Sessions()
	for _, session := range sessions {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("shutdown interrupted: %w", err)
		}
		m.Teardown(session, ReasonShutdown)
	}
	m.log.Info("All sessions closed", "count", len(sessions))
	return nil
}
