package runtime

import (
	"chat-realtime/domain"
	"chat-realtime/errors"
	"sort"
	"sync"

	"github.com/samber/lo"
)

type Set map[domain.UserID]struct{}

type Stats struct {
	Sessions      int `json:"sessions"`
	Rooms         int `json:"rooms"`
	Subscriptions int `json:"subscriptions"`
}

// Registry is the session directory and the room index.
// A single lock guards both maps so that a session's joined set and the
// subscriber set of every room always agree.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[domain.UserID]*Session // map identity -> live session
	roomMembers map[domain.RoomID]Set      // map room to subscribed identities
	capacity    int
}

// NewRegistry returns an empty registry. A capacity of zero means unlimited.
func NewRegistry(capacity int) *Registry {
	return &Registry{
		sessions:    make(map[domain.UserID]*Session),
		roomMembers: make(map[domain.RoomID]Set),
		capacity:    capacity,
	}
}

// Register makes session the live session of its identity.
// A previous session of the same identity is returned so the caller can notify
// and close it; its subscriptions are dropped from the room index immediately.
// The capacity ceiling only applies to identities that are not connected yet.
func (r *Registry) Register(session *Session) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID := session.UserID()
	previous, exists := r.sessions[userID]
	if !exists && r.capacity > 0 && len(r.sessions) >= r.capacity {
		return nil, errors.ErrCapacityReached
	}
	if exists {
		r.detach(previous)
	}
	r.sessions[userID] = session
	return previous, nil
}

// Remove deletes session from the directory and from every room it joined.
// current is false when session had already been replaced or removed,
// in which case rooms is empty.
func (r *Registry) Remove(session *Session) (rooms []domain.RoomID, current bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions[session.UserID()] != session {
		return nil, false
	}
	rooms = r.detach(session)
	delete(r.sessions, session.UserID())
	return rooms, true
}

// detach drops every subscription of session. Caller holds the write lock.
func (r *Registry) detach(session *Session) []domain.RoomID {
	rooms := lo.Keys(session.rooms)
	for _, roomID := range rooms {
		r.unsubscribe(roomID, session.UserID())
	}
	session.rooms = make(map[domain.RoomID]struct{})
	return rooms
}

func (r *Registry) unsubscribe(roomID domain.RoomID, userID domain.UserID) int {
	members, ok := r.roomMembers[roomID]
	if !ok {
		return 0
	}
	delete(members, userID)

	// If no one is left in the room, remove the room entry entirely
	if len(members) == 0 {
		delete(r.roomMembers, roomID)
	}
	return len(members)
}

// Join subscribes session to roomID. joined is false when it was already subscribed.
// A session that is no longer live gets errors.ErrSessionClosed so that a
// disconnect racing a join never leaves a dangling subscription.
func (r *Registry) Join(session *Session, roomID domain.RoomID) (joined bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions[session.UserID()] != session {
		return false, errors.ErrSessionClosed
	}
	if _, ok := session.rooms[roomID]; ok {
		return false, nil
	}
	if _, ok := r.roomMembers[roomID]; !ok {
		r.roomMembers[roomID] = make(Set)
	}
	r.roomMembers[roomID][session.UserID()] = struct{}{}
	session.rooms[roomID] = struct{}{}
	return true, nil
}

// Leave unsubscribes session from roomID and reports how many subscribers remain.
func (r *Registry) Leave(session *Session, roomID domain.RoomID) (left bool, remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := session.rooms[roomID]; !ok {
		return false, len(r.roomMembers[roomID])
	}
	delete(session.rooms, roomID)
	return true, r.unsubscribe(roomID, session.UserID())
}

func (r *Registry) IsJoined(session *Session, roomID domain.RoomID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := session.rooms[roomID]
	return ok && r.sessions[session.UserID()] == session
}

// Subscribers returns a snapshot of the live sessions subscribed to roomID.
// The snapshot is safe to iterate without holding the lock.
func (r *Registry) Subscribers(roomID domain.RoomID, exclude ...domain.UserID) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.roomMembers[roomID]
	if !ok {
		return nil
	}
	subscribers := make([]*Session, 0, len(members))
	for userID := range members {
		if lo.Contains(exclude, userID) {
			continue
		}
		if session, exists := r.sessions[userID]; exists {
			subscribers = append(subscribers, session)
		}
	}
	return subscribers
}

func (r *Registry) Session(userID domain.UserID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[userID]
	return session, ok
}

func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Values(r.sessions)
}

func (r *Registry) IsOnline(userID domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.sessions[userID]
	return ok
}

// OnlineUsers returns the profiles of every connected identity, sorted by username.
func (r *Registry) OnlineUsers() []domain.Profile {
	r.mu.RLock()
	profiles := lo.MapToSlice(r.sessions, func(_ domain.UserID, s *Session) domain.Profile {
		return s.Profile()
	})
	r.mu.RUnlock()

	sortProfiles(profiles)
	return profiles
}

// RoomUsers returns the profiles subscribed to roomID, sorted by username.
func (r *Registry) RoomUsers(roomID domain.RoomID) []domain.Profile {
	profiles := lo.Map(r.Subscribers(roomID), func(s *Session, _ int) domain.Profile {
		return s.Profile()
	})
	sortProfiles(profiles)
	return profiles
}

// UserRooms returns the rooms joined by the live session of userID.
func (r *Registry) UserRooms(userID domain.UserID) []domain.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[userID]
	if !ok {
		return nil
	}
	rooms := lo.Keys(session.rooms)
	sort.Slice(rooms, func(i, j int) bool { return rooms[i] < rooms[j] })
	return rooms
}

// EvictRoom drops roomID from the index and from every joined set.
// It returns the identities that were subscribed.
func (r *Registry) EvictRoom(roomID domain.RoomID) []domain.UserID {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.roomMembers[roomID]
	if !ok {
		return nil
	}
	delete(r.roomMembers, roomID)

	evicted := lo.Keys(members)
	for _, userID := range evicted {
		if session, exists := r.sessions[userID]; exists {
			delete(session.rooms, roomID)
		}
	}
	return evicted
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{Sessions: len(r.sessions), Rooms: len(r.roomMembers)}
	for _, members := range r.roomMembers {
		stats.Subscriptions += len(members)
	}
	return stats
}

func sortProfiles(profiles []domain.Profile) {
	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].Username == profiles[j].Username {
			return profiles[i].ID < profiles[j].ID
		}
		return profiles[i].Username < profiles[j].Username
	})
}
