package server

import (
	"chat-realtime/auth"
	"chat-realtime/contract"
	"chat-realtime/domain"
	"chat-realtime/errors"
	"chat-realtime/infrastructure/websocket"
	"chat-realtime/observability"
	"chat-realtime/services"
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

// Realtime is the part of the lifecycle manager the HTTP surface drives.
type Realtime interface {
	contract.Disconnector
	Serve(ctx context.Context, conn contract.Connection, credential string) error
}

type Server struct {
	log         *slog.Logger
	auth        services.IAuthService
	rooms       services.IRoomService
	messages    services.IMessageService
	tokens      contract.TokenVerifier
	realtime    Realtime
	presence    contract.Presence
	broadcaster contract.RoomBroadcaster
	monitoring  *observability.MonitoringManager
	wsOptions   websocket.Options
}

type Deps struct {
	Auth        services.IAuthService
	Rooms       services.IRoomService
	Messages    services.IMessageService
	Tokens      contract.TokenVerifier
	Realtime    Realtime
	Presence    contract.Presence
	Broadcaster contract.RoomBroadcaster
	Monitoring  *observability.MonitoringManager
	WSOptions   websocket.Options
}

func NewServer(log *slog.Logger, deps Deps) *Server {
	return &Server{
		log:         log,
		auth:        deps.Auth,
		rooms:       deps.Rooms,
		messages:    deps.Messages,
		tokens:      deps.Tokens,
		realtime:    deps.Realtime,
		presence:    deps.Presence,
		broadcaster: deps.Broadcaster,
		monitoring:  deps.Monitoring,
		wsOptions:   deps.WSOptions,
	}
}

// Routes builds the REST and WebSocket router.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.stats).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.serveWS).Methods(http.MethodGet)

	public := r.PathPrefix("/auth").Subrouter()
	public.HandleFunc("/register", s.register).Methods(http.MethodPost)
	public.HandleFunc("/login", s.login).Methods(http.MethodPost)

	protected := r.NewRoute().Subrouter()
	protected.Use(auth.RequireAuth(s.tokens))

	protected.HandleFunc("/auth/profile", s.profile).Methods(http.MethodGet)
	protected.HandleFunc("/auth/profile", s.updateProfile).Methods(http.MethodPut)
	protected.HandleFunc("/auth/logout", s.logout).Methods(http.MethodPost)
	protected.HandleFunc("/auth/verify", s.verify).Methods(http.MethodGet)

	protected.HandleFunc("/rooms", s.createRoom).Methods(http.MethodPost)
	protected.HandleFunc("/rooms/my-rooms", s.myRooms).Methods(http.MethodGet)
	protected.HandleFunc("/rooms/{roomId}", s.getRoom).Methods(http.MethodGet)
	protected.HandleFunc("/rooms/{roomId}", s.updateRoom).Methods(http.MethodPut)
	protected.HandleFunc("/rooms/{roomId}", s.deleteRoom).Methods(http.MethodDelete)
	protected.HandleFunc("/rooms/{roomId}/members", s.roomMembers).Methods(http.MethodGet)
	protected.HandleFunc("/rooms/{roomId}/online", s.roomOnline).Methods(http.MethodGet)
	protected.HandleFunc("/rooms/{roomId}/join", s.joinRoom).Methods(http.MethodPost)
	protected.HandleFunc("/rooms/{roomId}/leave", s.leaveRoom).Methods(http.MethodPost)
	protected.HandleFunc("/rooms/{roomId}/messages", s.roomMessages).Methods(http.MethodGet)
	protected.HandleFunc("/rooms/{roomId}/messages/search", s.searchMessages).Methods(http.MethodGet)

	protected.HandleFunc("/messages", s.createMessage).Methods(http.MethodPost)
	protected.HandleFunc("/messages/room/{roomId}", s.roomMessages).Methods(http.MethodGet)
	protected.HandleFunc("/messages/room/{roomId}/search", s.searchMessages).Methods(http.MethodGet)
	protected.HandleFunc("/messages/{messageId}", s.getMessage).Methods(http.MethodGet)
	protected.HandleFunc("/messages/{messageId}", s.editMessage).Methods(http.MethodPut)
	protected.HandleFunc("/messages/{messageId}", s.deleteMessage).Methods(http.MethodDelete)
	protected.HandleFunc("/messages/{messageId}/replies", s.replies).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, envelope{Success: false, Message: "route not found"})
	})
	return r
}

// caller returns the identity injected by auth.RequireAuth.
func caller(r *http.Request) (domain.UserID, error) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return "", errors.ErrUnauthorized
	}
	return userID, nil
}

func roomID(r *http.Request) domain.RoomID {
	return domain.RoomID(mux.Vars(r)["roomId"])
}

func messageID(r *http.Request) string {
	return mux.Vars(r)["messageId"]
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	ok(w, http.StatusOK, "", map[string]string{"status": "ok"})
}

func (s *Server) stats(w http.ResponseWriter, _ *http.Request) {
	ok(w, http.StatusOK, "", s.monitoring.GetLatest())
}

// serveWS upgrades the request and hands the connection to the lifecycle manager
// until it closes. Admission happens after the upgrade so that a refusal
// can be reported with a close code.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Upgrade(s.log, w, r, s.wsOptions)
	if err != nil {
		s.log.Debug("Upgrade failed", "error", err)
		return
	}
	if err := s.realtime.Serve(r.Context(), conn, auth.ExtractToken(r)); err != nil {
		s.monitoring.IncrRejected()
		return
	}
	s.monitoring.IncrServed()
}
