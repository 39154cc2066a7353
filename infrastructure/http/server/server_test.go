package server

import (
	"bytes"
	"chat-realtime/auth"
	"chat-realtime/domain"
	"chat-realtime/infrastructure/websocket"
	"chat-realtime/moderation"
	"chat-realtime/observability"
	"chat-realtime/protocol"
	"chat-realtime/repositories"
	"chat-realtime/runtime"
	"chat-realtime/services"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	gorilla "github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type response struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type wireFrame struct {
	Type domain.FrameType `json:"type"`
	Data json.RawMessage  `json:"data"`
}

type account struct {
	ID    domain.UserID
	Token string
}

type testServer struct {
	t   *testing.T
	url string
}

// newTestServer wires the full stack on a real Badger store and Bluge index.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	dir := t.TempDir()

	db, err := badger.Open(badger.DefaultOptions(filepath.Join(dir, "badger")).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(filepath.Join(dir, "bluge")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })

	censor, err := moderation.NewModerator([]string{"scam"}, '*', log)
	require.NoError(t, err)

	users := repositories.NewUserRepository(db)
	rooms := repositories.NewRoomRepository(db)
	messages := repositories.NewMessageRepository(db, log)
	index := repositories.NewMessageIndex(writer, log)
	tokens := auth.NewTokenManager("integration-secret-0123456789abcdef", auth.DefaultIssuer, time.Hour)

	roomService := services.NewRoomService(log, rooms, users, messages)
	messageService := services.NewMessageService(log, messages, users, roomService, index, censor, 200, services.DefaultHistoryLimit)

	registry := runtime.NewRegistry(0)
	broadcaster := runtime.NewBroadcaster(log, registry, time.Second)
	router := protocol.NewRouter(log, registry, broadcaster, roomService, messageService, 200)
	manager := runtime.NewManager(log, registry, broadcaster, users, tokens, router)

	srv := NewServer(log, Deps{
		Auth:        services.NewAuthService(users, tokens),
		Rooms:       roomService,
		Messages:    messageService,
		Tokens:      tokens,
		Realtime:    manager,
		Presence:    registry,
		Broadcaster: broadcaster,
		Monitoring:  observability.NewMonitoringManager(log, registry),
		WSOptions:   websocket.Options{PongWait: 5 * time.Second},
	})
	httpServer := httptest.NewServer(srv.Routes())
	t.Cleanup(httpServer.Close)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = manager.Shutdown(ctx)
	})
	return &testServer{t: t, url: httpServer.URL}
}

func (s *testServer) do(method, path, token string, body any) (int, response) {
	s.t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&payload).Encode(body))
	}
	request, err := http.NewRequest(method, s.url+path, &payload)
	require.NoError(s.t, err)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(request)
	require.NoError(s.t, err)
	defer res.Body.Close()

	var decoded response
	require.NoError(s.t, json.NewDecoder(res.Body).Decode(&decoded))
	return res.StatusCode, decoded
}

func (s *testServer) register(username string) account {
	s.t.Helper()
	status, res := s.do(http.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "ComplexPass123!",
	})
	require.Equal(s.t, http.StatusCreated, status, res.Message)

	var result services.AuthResult
	require.NoError(s.t, json.Unmarshal(res.Data, &result))
	return account{ID: result.User.ID, Token: result.Token}
}

func (s *testServer) dial(token string) *gorilla.Conn {
	s.t.Helper()
	wsURL := "ws" + strings.TrimPrefix(s.url, "http") + "/ws?token=" + url.QueryEscape(token)
	ws, _, err := gorilla.DefaultDialer.Dial(wsURL, nil)
	require.NoError(s.t, err)
	s.t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readFrame(t *testing.T, ws *gorilla.Conn) wireFrame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	var frame wireFrame
	require.NoError(t, ws.ReadJSON(&frame))
	return frame
}

func sendFrame(t *testing.T, ws *gorilla.Conn, frameType domain.FrameType, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(wireFrame{Type: frameType, Data: raw}))
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t)

	status, res := s.do(http.MethodGet, "/health", "", nil)

	require.Equal(t, http.StatusOK, status)
	require.True(t, res.Success)
}

func TestServer_ProtectedRoutesRequireToken(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)

	status, res := s.do(http.MethodGet, "/rooms/my-rooms", "", nil)
	req.Equal(http.StatusUnauthorized, status)
	req.False(res.Success)

	status, _ = s.do(http.MethodGet, "/rooms/my-rooms", "not-a-jwt", nil)
	req.Equal(http.StatusUnauthorized, status)
}

func TestServer_LoginHidesWhichFieldWasWrong(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)
	s.register("alice")

	status, res := s.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "alice@example.com", "password": "WrongPass123!"})

	req.Equal(http.StatusUnauthorized, status)
	req.Equal("invalid credentials", res.Message)
}

func TestServer_WebSocketRejectsBadToken(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)

	// Given a socket opened with a forged credential
	ws := s.dial("forged")

	// Then the server closes it with a policy violation
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := ws.ReadMessage()
	req.True(gorilla.IsCloseError(err, gorilla.ClosePolicyViolation), "got %v", err)
}

func TestServer_RealtimeFanOutFromRest(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)

	// Given alice owns a room bob has durably joined
	alice := s.register("alice")
	bob := s.register("bob")
	status, res := s.do(http.MethodPost, "/rooms", alice.Token, map[string]any{"name": "general"})
	req.Equal(http.StatusCreated, status, res.Message)
	var room domain.Room
	req.NoError(json.Unmarshal(res.Data, &room))
	status, res = s.do(http.MethodPost, "/rooms/"+string(room.ID)+"/join", bob.Token, nil)
	req.Equal(http.StatusOK, status, res.Message)

	// And both are connected and subscribed
	aliceWS := s.dial(alice.Token)
	req.Equal(domain.FrameConnected, readFrame(t, aliceWS).Type)
	bobWS := s.dial(bob.Token)
	req.Equal(domain.FrameConnected, readFrame(t, bobWS).Type)

	sendFrame(t, aliceWS, domain.FrameJoinRoom, map[string]string{"roomId": string(room.ID)})
	req.Equal(domain.FrameRoomJoined, readFrame(t, aliceWS).Type)
	sendFrame(t, bobWS, domain.FrameJoinRoom, map[string]string{"roomId": string(room.ID)})
	req.Equal(domain.FrameRoomJoined, readFrame(t, bobWS).Type)
	joined := readFrame(t, aliceWS)
	req.Equal(domain.FrameUserJoined, joined.Type)
	req.Contains(string(joined.Data), `"username":"bob"`)

	// When bob posts over REST
	status, res = s.do(http.MethodPost, "/messages", bob.Token, map[string]any{"roomId": room.ID, "content": "hello, no scam"})
	req.Equal(http.StatusCreated, status, res.Message)

	// Then both sockets receive the censored message
	for _, ws := range []*gorilla.Conn{aliceWS, bobWS} {
		frame := readFrame(t, ws)
		req.Equal(domain.FrameNewMessage, frame.Type)
		var data domain.MessageData
		req.NoError(json.Unmarshal(frame.Data, &data))
		req.Equal("hello, no ****", data.Message.Content)
		req.Equal("bob", data.Message.Sender.Username)
		req.Equal(room.ID, data.RoomID)
	}

	// And the live subscribers, history and search agree
	status, res = s.do(http.MethodGet, "/rooms/"+string(room.ID)+"/online", alice.Token, nil)
	req.Equal(http.StatusOK, status)
	var online []domain.Profile
	req.NoError(json.Unmarshal(res.Data, &online))
	req.Len(online, 2)

	status, res = s.do(http.MethodGet, "/rooms/"+string(room.ID)+"/messages/search?q=hello", alice.Token, nil)
	req.Equal(http.StatusOK, status, res.Message)
	var found []domain.Message
	req.NoError(json.Unmarshal(res.Data, &found))
	req.Len(found, 1)

	status, res = s.do(http.MethodGet, "/stats", "", nil)
	req.Equal(http.StatusOK, status)
	var stats observability.MonitoringStats
	req.NoError(json.Unmarshal(res.Data, &stats))
	req.Equal(2, stats.Sessions)
	req.Equal(1, stats.Rooms)
}

func TestServer_DeleteRoomNotifiesAndEvicts(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)
	alice := s.register("alice")
	_, res := s.do(http.MethodPost, "/rooms", alice.Token, map[string]any{"name": "temp"})
	var room domain.Room
	req.NoError(json.Unmarshal(res.Data, &room))

	ws := s.dial(alice.Token)
	readFrame(t, ws)
	sendFrame(t, ws, domain.FrameJoinRoom, map[string]string{"roomId": string(room.ID)})
	req.Equal(domain.FrameRoomJoined, readFrame(t, ws).Type)

	// When the creator deletes the room
	status, res := s.do(http.MethodDelete, "/rooms/"+string(room.ID), alice.Token, nil)
	req.Equal(http.StatusOK, status, res.Message)

	// Then the subscriber is told and the room is gone from the index
	req.Equal(domain.FrameRoomDeleted, readFrame(t, ws).Type)
	sendFrame(t, ws, domain.FrameSendMessage, map[string]string{"roomId": string(room.ID), "content": "anyone?"})
	frame := readFrame(t, ws)
	req.Equal(domain.FrameError, frame.Type)
	req.Contains(string(frame.Data), "not in room")
}

func TestServer_LogoutClosesLiveSession(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)
	alice := s.register("alice")
	ws := s.dial(alice.Token)
	readFrame(t, ws)

	status, res := s.do(http.MethodPost, "/auth/logout", alice.Token, nil)
	req.Equal(http.StatusOK, status)
	req.JSONEq(`{"disconnected":true}`, string(res.Data))

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := ws.ReadMessage()
	req.True(gorilla.IsCloseError(err, gorilla.CloseNormalClosure), "got %v", err)
}

func TestServer_RoomHistoryUnderMessagesPath(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)

	// Given a room with two messages
	alice := s.register("alice")
	_, res := s.do(http.MethodPost, "/rooms", alice.Token, map[string]any{"name": "general"})
	var room domain.Room
	req.NoError(json.Unmarshal(res.Data, &room))
	for _, content := range []string{"hello there", "second note"} {
		status, res := s.do(http.MethodPost, "/messages", alice.Token, map[string]any{"roomId": room.ID, "content": content})
		req.Equal(http.StatusCreated, status, res.Message)
	}

	// When history is read through /messages/room/{roomId}
	status, res := s.do(http.MethodGet, "/messages/room/"+string(room.ID)+"?limit=10", alice.Token, nil)

	// Then it matches the room history
	req.Equal(http.StatusOK, status, res.Message)
	var history []domain.Message
	req.NoError(json.Unmarshal(res.Data, &history))
	req.Len(history, 2)

	// And search works under the same prefix
	status, res = s.do(http.MethodGet, "/messages/room/"+string(room.ID)+"/search?q=hello", alice.Token, nil)
	req.Equal(http.StatusOK, status, res.Message)
	var found []domain.Message
	req.NoError(json.Unmarshal(res.Data, &found))
	req.Len(found, 1)
	req.Equal("hello there", found[0].Content)

	// And a stranger is still refused
	bob := s.register("bob")
	status, _ = s.do(http.MethodGet, "/messages/room/"+string(room.ID), bob.Token, nil)
	req.Equal(http.StatusForbidden, status)
}
