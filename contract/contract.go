//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-realtime/domain"
	"context"
	"reflect"
	"time"
)

// Connection is one live duplex transport owned by a session.
// Send must preserve the order in which frames are handed to it.
type Connection interface {
	ID() string
	Send(ctx context.Context, data []byte) error
	Receive() ([]byte, error)
	Close(code int, reason string) error
}

// TokenVerifier checks signature and expiry of a bearer credential
// and returns the identity it was issued for.
type TokenVerifier interface {
	Verify(token string) (domain.UserID, error)
}

// UserStore is the part of the durable store the realtime core needs.
type UserStore interface {
	GetUserByID(ctx context.Context, id domain.UserID) (domain.User, error)
	SetUserOnlineStatus(ctx context.Context, id domain.UserID, online bool) error
}

// MembershipAuthorizer answers whether an identity durably belongs to a room.
type MembershipAuthorizer interface {
	IsRoomMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error)
}

// MessageCreator persists a message posted from a realtime connection.
type MessageCreator interface {
	CreateMessage(ctx context.Context, message domain.NewMessage) (domain.Message, error)
}

// RoomBroadcaster fans a frame out to the live subscribers of a room.
// It is the only entry point the CRUD layer uses to reach connections.
type RoomBroadcaster interface {
	BroadcastToRoom(ctx context.Context, roomID domain.RoomID, frame domain.Frame, exclude ...domain.UserID)
}

// Presence exposes read-only views of the live room index.
type Presence interface {
	RoomUsers(roomID domain.RoomID) []domain.Profile
	IsOnline(userID domain.UserID) bool
	EvictRoom(roomID domain.RoomID) []domain.UserID
}

// Disconnector force-closes the live session of an identity.
type Disconnector interface {
	Disconnect(userID domain.UserID) bool
}

type UserRepository interface {
	CreateUser(ctx context.Context, user domain.User) error
	GetUserByID(ctx context.Context, id domain.UserID) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	UpdateUser(ctx context.Context, user domain.User) error
	SetUserOnlineStatus(ctx context.Context, id domain.UserID, online bool) error
}

type RoomRepository interface {
	CreateRoom(ctx context.Context, room domain.Room, owner domain.Membership) error
	GetRoom(ctx context.Context, id domain.RoomID) (domain.Room, error)
	UpdateRoom(ctx context.Context, room domain.Room) error
	DeleteRoom(ctx context.Context, id domain.RoomID) error
	AddMember(ctx context.Context, membership domain.Membership) error
	RemoveMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error)
	GetMembership(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (domain.Membership, error)
	ListMembers(ctx context.Context, roomID domain.RoomID) ([]domain.Membership, error)
	ListUserMemberships(ctx context.Context, userID domain.UserID) ([]domain.Membership, error)
}

type MessageRepository interface {
	StoreMessage(ctx context.Context, message domain.Message) error
	GetMessage(ctx context.Context, id string) (domain.Message, error)
	UpdateMessage(ctx context.Context, message domain.Message) error
	GetRoomMessages(ctx context.Context, roomID domain.RoomID, before *time.Time, limit int) ([]domain.Message, error)
	GetReplies(ctx context.Context, messageID string) ([]domain.Message, error)
	DeleteRoomMessages(ctx context.Context, roomID domain.RoomID) error
}

// MessageIndex is the full-text index over message contents.
type MessageIndex interface {
	Index(ctx context.Context, message domain.Message) error
	Remove(ctx context.Context, messageID string) error
	Search(ctx context.Context, roomID domain.RoomID, query string, limit int) ([]string, error)
}

// Censor masks forbidden words and reports which ones were found.
type Censor interface {
	Censor(content string) (string, []string)
}

// ISupervisor runs workers and restarts them when they crash.
type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker is a background loop run under supervision until ctx is done.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName returns the type name of a worker for supervision logs.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
