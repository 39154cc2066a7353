package protocol

import (
	"chat-realtime/domain"
	"chat-realtime/errors"
	"chat-realtime/mocks"
	"chat-realtime/runtime"
	"chat-realtime/runtime/memconn"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type routerFixture struct {
	router     *Router
	registry   *runtime.Registry
	authorizer *mocks.MockMembershipAuthorizer
	messages   *mocks.MockMessageCreator
}

func newRouterFixture(t *testing.T) routerFixture {
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := runtime.NewRegistry(0)
	broadcaster := runtime.NewBroadcaster(log, registry, time.Second)
	authorizer := mocks.NewMockMembershipAuthorizer(ctrl)
	messages := mocks.NewMockMessageCreator(ctrl)
	return routerFixture{
		router:     NewRouter(log, registry, broadcaster, authorizer, messages, 20),
		registry:   registry,
		authorizer: authorizer,
		messages:   messages,
	}
}

func (f routerFixture) connect(t *testing.T, userID domain.UserID) (*runtime.Session, *memconn.Conn) {
	t.Helper()
	conn := memconn.New()
	session := runtime.NewSession(conn, domain.Profile{ID: userID, Username: "user-" + string(userID)})
	_, err := f.registry.Register(session)
	require.NoError(t, err)
	return session, conn
}

// join subscribes session to roomID through the router.
func (f routerFixture) join(t *testing.T, session *runtime.Session, roomID domain.RoomID) {
	t.Helper()
	f.authorizer.EXPECT().IsRoomMember(gomock.Any(), roomID, session.UserID()).Return(true, nil)
	raw := fmt.Sprintf(`{"type":"join_room","data":{"roomId":%q}}`, roomID)
	require.Equal(t, runtime.OutcomeHandled, f.router.Handle(context.Background(), session, []byte(raw)))
}

func TestRouter_Join_Alone_Only_Confirms(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)
	u1, conn1 := f.connect(t, "U1")

	// When U1 joins R1 with no other subscriber
	f.join(t, u1, "R1")

	// Then U1 only receives room_joined
	frames := conn1.Frames()
	req.Len(frames, 1)
	req.Equal(domain.FrameRoomJoined, frames[0].Type)
	req.JSONEq(`{"roomId":"R1"}`, string(frames[0].Data))
}

func TestRouter_Join_Notifies_Others_And_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)
	u1, conn1 := f.connect(t, "U1")
	u2, conn2 := f.connect(t, "U2")
	f.join(t, u1, "R1")
	conn1.Reset()

	// When U2 joins R1
	f.join(t, u2, "R1")

	// Then U1 sees user_joined and U2 gets room_joined
	req.Equal([]domain.FrameType{domain.FrameUserJoined}, conn1.Types())
	req.Equal([]domain.FrameType{domain.FrameRoomJoined}, conn2.Types())

	// When U2 joins again, the authorizer is not consulted and nobody else hears about it
	outcome := f.router.Handle(context.Background(), u2, []byte(`{"type":"join_room","data":{"roomId":"R1"}}`))
	req.Equal(runtime.OutcomeHandled, outcome)
	req.Equal([]domain.FrameType{domain.FrameRoomJoined, domain.FrameRoomJoined}, conn2.Types())
	req.Len(conn1.Sent(), 1)
	req.Len(f.registry.Subscribers("R1"), 2)
}

func TestRouter_Join_Refused_Without_Membership(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)
	u1, conn1 := f.connect(t, "U1")

	f.authorizer.EXPECT().IsRoomMember(gomock.Any(), domain.RoomID("R9"), domain.UserID("U1")).Return(false, nil)
	outcome := f.router.Handle(context.Background(), u1, []byte(`{"type":"join_room","data":{"roomId":"R9"}}`))

	req.Equal(runtime.OutcomeRejected, outcome)
	frames := conn1.Frames()
	req.Len(frames, 1)
	req.Equal(domain.FrameError, frames[0].Type)
	req.JSONEq(`{"message":"not a member of this room"}`, string(frames[0].Data))
	req.False(f.registry.IsJoined(u1, "R9"))
}

func TestRouter_SendMessage_Reaches_Every_Subscriber(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)
	u1, conn1 := f.connect(t, "U1")
	u2, conn2 := f.connect(t, "U2")
	f.join(t, u1, "R1")
	f.join(t, u2, "R1")
	conn1.Reset()
	conn2.Reset()

	// Given the store accepts the message
	f.messages.EXPECT().CreateMessage(gomock.Any(), domain.NewMessage{
		RoomID:      "R1",
		SenderID:    "U1",
		Content:     "hi",
		MessageType: domain.MessageText,
	}).Return(domain.Message{
		ID:          "m1",
		RoomID:      "R1",
		Sender:      u1.Profile(),
		Content:     "hi",
		MessageType: domain.MessageText,
	}, nil)

	// When U1 sends hi to R1
	outcome := f.router.Handle(context.Background(), u1, []byte(`{"type":"send_message","data":{"roomId":"R1","content":"hi"}}`))

	// Then both U1 and U2 receive the new message
	req.Equal(runtime.OutcomeHandled, outcome)
	for _, conn := range []*memconn.Conn{conn1, conn2} {
		frames := conn.Frames()
		req.Len(frames, 1)
		req.Equal(domain.FrameNewMessage, frames[0].Type)
		req.Contains(string(frames[0].Data), `"content":"hi"`)
		req.Contains(string(frames[0].Data), `"roomId":"R1"`)
	}
}

func TestRouter_SendMessage_To_Unjoined_Room_Writes_Nothing(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)
	u1, conn1 := f.connect(t, "U1")
	f.join(t, u1, "R1")
	conn1.Reset()

	// When U1 sends to R2 it never joined, CreateMessage must not be called
	outcome := f.router.Handle(context.Background(), u1, []byte(`{"type":"send_message","data":{"roomId":"R2","content":"hi"}}`))

	// Then U1 receives a single error
	req.Equal(runtime.OutcomeRejected, outcome)
	frames := conn1.Frames()
	req.Len(frames, 1)
	req.Equal(domain.FrameError, frames[0].Type)
	req.JSONEq(`{"message":"not in room"}`, string(frames[0].Data))
}

func TestRouter_SendMessage_Rejections(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)
	u1, conn1 := f.connect(t, "U1")
	f.join(t, u1, "R1")
	conn1.Reset()
	ctx := context.Background()

	// Content above the limit never reaches the store
	outcome := f.router.Handle(ctx, u1, []byte(`{"type":"send_message","data":{"roomId":"R1","content":"this content is far too long"}}`))
	req.Equal(runtime.OutcomeRejected, outcome)

	// A store failure is reported without details
	f.messages.EXPECT().CreateMessage(gomock.Any(), gomock.Any()).
		Return(domain.Message{}, fmt.Errorf("badger: txn conflict"))
	outcome = f.router.Handle(ctx, u1, []byte(`{"type":"send_message","data":{"roomId":"R1","content":"hi"}}`))
	req.Equal(runtime.OutcomeRejected, outcome)

	// A durable membership revoked mid-session is reported as such
	f.messages.EXPECT().CreateMessage(gomock.Any(), gomock.Any()).
		Return(domain.Message{}, fmt.Errorf("room R1: %w", errors.ErrForbidden))
	outcome = f.router.Handle(ctx, u1, []byte(`{"type":"send_message","data":{"roomId":"R1","content":"hi"}}`))
	req.Equal(runtime.OutcomeRejected, outcome)

	frames := conn1.Frames()
	req.Len(frames, 3)
	req.JSONEq(`{"message":"message too long"}`, string(frames[0].Data))
	req.JSONEq(`{"message":"could not send message"}`, string(frames[1].Data))
	req.JSONEq(`{"message":"not a member of this room"}`, string(frames[2].Data))
}

func TestRouter_Typing_Excludes_Sender(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)
	u1, conn1 := f.connect(t, "U1")
	u2, conn2 := f.connect(t, "U2")
	f.join(t, u1, "R1")
	f.join(t, u2, "R1")
	conn1.Reset()
	conn2.Reset()
	ctx := context.Background()

	// When U2 starts then stops typing in R1
	req.Equal(runtime.OutcomeHandled, f.router.Handle(ctx, u2, []byte(`{"type":"typing_start","data":{"roomId":"R1"}}`)))
	req.Equal(runtime.OutcomeHandled, f.router.Handle(ctx, u2, []byte(`{"type":"typing_stop","data":{"roomId":"R1"}}`)))

	// Then only U1 hears about it
	req.Equal([]domain.FrameType{domain.FrameUserTyping, domain.FrameUserStoppedTyping}, conn1.Types())
	req.JSONEq(`{"user":{"id":"U2","username":"user-U2"},"roomId":"R1"}`, string(conn1.Frames()[0].Data))
	req.Empty(conn2.Sent())

	// Typing in a room not joined is ignored silently
	req.Equal(runtime.OutcomeIgnored, f.router.Handle(ctx, u2, []byte(`{"type":"typing_start","data":{"roomId":"R2"}}`)))
	req.Empty(conn2.Sent())
}

func TestRouter_Leave(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)
	u1, conn1 := f.connect(t, "U1")
	u2, conn2 := f.connect(t, "U2")
	f.join(t, u1, "R1")
	f.join(t, u2, "R1")
	conn1.Reset()
	conn2.Reset()
	ctx := context.Background()

	// When U2 leaves, U1 is told
	req.Equal(runtime.OutcomeHandled, f.router.Handle(ctx, u2, []byte(`{"type":"leave_room","data":{"roomId":"R1"}}`)))
	req.Equal([]domain.FrameType{domain.FrameUserLeft}, conn1.Types())
	req.Equal([]domain.FrameType{domain.FrameRoomLeft}, conn2.Types())

	// When U1 leaves last, nobody is told and the room disappears
	req.Equal(runtime.OutcomeHandled, f.router.Handle(ctx, u1, []byte(`{"type":"leave_room","data":{"roomId":"R1"}}`)))
	req.Equal([]domain.FrameType{domain.FrameUserLeft, domain.FrameRoomLeft}, conn1.Types())
	req.Zero(f.registry.Stats().Rooms)

	// Leaving again still confirms
	req.Equal(runtime.OutcomeHandled, f.router.Handle(ctx, u1, []byte(`{"type":"leave_room","data":{"roomId":"R1"}}`)))
	req.Equal(domain.FrameRoomLeft, conn1.Types()[2])
}

func TestRouter_Ping_Unknown_And_Malformed(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)
	u1, conn1 := f.connect(t, "U1")
	ctx := context.Background()

	req.Equal(runtime.OutcomeHandled, f.router.Handle(ctx, u1, []byte(`{"type":"ping","data":{}}`)))
	req.Equal(runtime.OutcomeIgnored, f.router.Handle(ctx, u1, []byte(`{"type":"moonwalk","data":{}}`)))
	req.Equal(runtime.OutcomeRejected, f.router.Handle(ctx, u1, []byte(`{not json`)))

	frames := conn1.Frames()
	req.Len(frames, 2)
	req.Equal(domain.FramePong, frames[0].Type)
	req.JSONEq(`{}`, string(frames[0].Data))
	req.Equal(domain.FrameError, frames[1].Type)
	req.JSONEq(`{"message":"invalid frame"}`, string(frames[1].Data))
}
