package protocol

import (
	"chat-realtime/contract"
	"chat-realtime/domain"
	"chat-realtime/errors"
	"chat-realtime/runtime"
	"context"
	goerrors "errors"
	"log/slog"
	"unicode/utf8"
)

// Short texts sent back in error frames.
const (
	msgInvalidFrame   = "invalid frame"
	msgNotMember      = "not a member of this room"
	msgNotInRoom      = "not in room"
	msgJoinFailed     = "could not join room"
	msgSendFailed     = "could not send message"
	msgContentTooLong = "message too long"
)

// Router applies inbound commands to the room index and fans out the
// resulting notices.
type Router struct {
	log              *slog.Logger
	registry         *runtime.Registry
	broadcaster      *runtime.Broadcaster
	authorizer       contract.MembershipAuthorizer
	messages         contract.MessageCreator
	maxContentLength int
}

func NewRouter(
	log *slog.Logger,
	registry *runtime.Registry,
	broadcaster *runtime.Broadcaster,
	authorizer contract.MembershipAuthorizer,
	messages contract.MessageCreator,
	maxContentLength int,
) *Router {
	return &Router{
		log:              log,
		registry:         registry,
		broadcaster:      broadcaster,
		authorizer:       authorizer,
		messages:         messages,
		maxContentLength: maxContentLength,
	}
}

// Handle implements runtime.FrameHandler.
func (r *Router) Handle(ctx context.Context, session *runtime.Session, raw []byte) runtime.Outcome {
	cmd, err := Decode(raw)
	if err != nil {
		r.log.Debug("Malformed frame", "user_id", session.UserID(), "error", err)
		return r.reject(ctx, session, msgInvalidFrame)
	}

	switch c := cmd.(type) {
	case JoinRoom:
		return r.joinRoom(ctx, session, c)
	case LeaveRoom:
		return r.leaveRoom(ctx, session, c)
	case SendMessage:
		return r.sendMessage(ctx, session, c)
	case TypingStart:
		return r.typing(ctx, session, c.RoomID, true)
	case TypingStop:
		return r.typing(ctx, session, c.RoomID, false)
	case Ping:
		r.reply(ctx, session, domain.PongFrame())
		return runtime.OutcomeHandled
	case Unknown:
		r.log.Warn("Unknown frame type", "user_id", session.UserID(), "type", c.Type)
		return runtime.OutcomeIgnored
	default:
		r.log.Error("Unhandled command", "user_id", session.UserID())
		return runtime.OutcomeIgnored
	}
}

func (r *Router) joinRoom(ctx context.Context, session *runtime.Session, c JoinRoom) runtime.Outcome {
	if r.registry.IsJoined(session, c.RoomID) {
		r.reply(ctx, session, domain.RoomJoinedFrame(c.RoomID))
		return runtime.OutcomeHandled
	}

	member, err := r.authorizer.IsRoomMember(ctx, c.RoomID, session.UserID())
	if err != nil {
		r.log.Error("Membership check failed", "user_id", session.UserID(), "room_id", c.RoomID, "error", err)
		return r.reject(ctx, session, msgJoinFailed)
	}
	if !member {
		return r.reject(ctx, session, msgNotMember)
	}

	joined, err := r.registry.Join(session, c.RoomID)
	if err != nil {
		// the session was torn down while the membership check ran
		return runtime.OutcomeIgnored
	}
	if joined {
		r.broadcaster.BroadcastToRoom(ctx, c.RoomID, domain.UserJoinedFrame(session.Profile(), c.RoomID), session.UserID())
		r.log.Debug("Room joined", "user_id", session.UserID(), "room_id", c.RoomID)
	}
	r.reply(ctx, session, domain.RoomJoinedFrame(c.RoomID))
	return runtime.OutcomeHandled
}

func (r *Router) leaveRoom(ctx context.Context, session *runtime.Session, c LeaveRoom) runtime.Outcome {
	left, remaining := r.registry.Leave(session, c.RoomID)
	if left && remaining > 0 {
		r.broadcaster.BroadcastToRoom(ctx, c.RoomID, domain.UserLeftFrame(session.Profile(), c.RoomID))
	}
	r.reply(ctx, session, domain.RoomLeftFrame(c.RoomID))
	return runtime.OutcomeHandled
}

func (r *Router) sendMessage(ctx context.Context, session *runtime.Session, c SendMessage) runtime.Outcome {
	if !r.registry.IsJoined(session, c.RoomID) {
		return r.reject(ctx, session, msgNotInRoom)
	}
	if r.maxContentLength > 0 && utf8.RuneCountInString(c.Content) > r.maxContentLength {
		return r.reject(ctx, session, msgContentTooLong)
	}

	messageType := c.MessageType
	if messageType == "" {
		messageType = domain.MessageText
	}
	message, err := r.messages.CreateMessage(ctx, domain.NewMessage{
		RoomID:      c.RoomID,
		SenderID:    session.UserID(),
		Content:     c.Content,
		MessageType: messageType,
		ReplyToID:   c.ReplyToID,
	})
	if err != nil {
		r.log.Warn("Message not created", "user_id", session.UserID(), "room_id", c.RoomID, "error", err)
		return r.reject(ctx, session, sendFailure(err))
	}

	r.broadcaster.BroadcastToRoom(ctx, c.RoomID, domain.NewMessageFrame(message))
	return runtime.OutcomeHandled
}

func (r *Router) typing(ctx context.Context, session *runtime.Session, roomID domain.RoomID, typing bool) runtime.Outcome {
	if !r.registry.IsJoined(session, roomID) {
		return runtime.OutcomeIgnored
	}
	r.broadcaster.BroadcastToRoom(ctx, roomID, domain.TypingFrame(session.Profile(), roomID, typing), session.UserID())
	return runtime.OutcomeHandled
}

func (r *Router) reply(ctx context.Context, session *runtime.Session, frame domain.Frame) {
	_ = r.broadcaster.DeliverToSession(ctx, session, frame)
}

func (r *Router) reject(ctx context.Context, session *runtime.Session, message string) runtime.Outcome {
	r.reply(ctx, session, domain.ErrorFrame(message))
	return runtime.OutcomeRejected
}

// sendFailure keeps store internals away from the client.
func sendFailure(err error) string {
	switch {
	case goerrors.Is(err, errors.ErrForbidden):
		return msgNotMember
	case goerrors.Is(err, errors.ErrInvalidInput), goerrors.Is(err, errors.ErrNotFound):
		return errors.PublicMessage(err)
	default:
		return msgSendFailed
	}
}
