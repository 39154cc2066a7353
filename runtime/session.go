package runtime

import (
	"chat-realtime/contract"
	"chat-realtime/domain"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the server-side state of one live connection.
// The joined-room set is owned by the Registry and only read or written
// under its lock.
type Session struct {
	id          string
	conn        contract.Connection
	profile     domain.Profile
	connectedAt time.Time
	rooms       map[domain.RoomID]struct{}
	teardown    sync.Once
}

func NewSession(conn contract.Connection, profile domain.Profile) *Session {
	return &Session{
		id:          uuid.NewString(),
		conn:        conn,
		profile:     profile,
		connectedAt: time.Now(),
		rooms:       make(map[domain.RoomID]struct{}),
	}
}

func (s *Session) ID() string { return s.id }
func (s *Session) UserID() domain.UserID { return s.profile.ID }
func (s *Session) Profile() domain.Profile { return s.profile }
func (s *Session) Conn() contract.Connection { return s.conn }
func (s *Session) ConnectedAt() time.Time { return s.connectedAt }
