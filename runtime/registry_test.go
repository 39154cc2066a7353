package runtime

import (
	"chat-realtime/domain"
	"chat-realtime/errors"
	"chat-realtime/runtime/memconn"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestSession(userID domain.UserID) *Session {
	return NewSession(memconn.New(), domain.Profile{ID: userID, Username: string(userID)})
}

// requireConsistent checks that every session's joined set and the room
// index describe exactly the same subscriptions.
func requireConsistent(t *testing.T, r *Registry) {
	t.Helper()
	r.mu.RLock()
	defer r.mu.RUnlock()

	for roomID, members := range r.roomMembers {
		require.NotEmpty(t, members, "empty room %s kept in index", roomID)
		for userID := range members {
			session, ok := r.sessions[userID]
			require.True(t, ok, "room %s references offline user %s", roomID, userID)
			require.Contains(t, session.rooms, roomID)
		}
	}
	for userID, session := range r.sessions {
		for roomID := range session.rooms {
			require.Contains(t, r.roomMembers[roomID], userID)
		}
	}
}

func TestRegistry_Join_One_Room_Multiple_Participants(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(0)
	alice := newTestSession("alice")
	bob := newTestSession("bob")

	// Given two connected users
	_, err := registry.Register(alice)
	req.NoError(err)
	_, err = registry.Register(bob)
	req.NoError(err)

	// When both join the same room
	joined, err := registry.Join(alice, "R1")
	req.NoError(err)
	req.True(joined)
	joined, err = registry.Join(bob, "R1")
	req.NoError(err)
	req.True(joined)

	// Then the room lists both and the index is consistent
	req.Len(registry.Subscribers("R1"), 2)
	req.Equal([]domain.Profile{alice.Profile(), bob.Profile()}, registry.RoomUsers("R1"))
	req.Len(registry.Subscribers("R1", "alice"), 1)
	req.Equal(bob, registry.Subscribers("R1", "alice")[0])
	req.True(registry.IsJoined(alice, "R1"))
	requireConsistent(t, registry)
}

func TestRegistry_Join_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(0)
	alice := newTestSession("alice")
	_, _ = registry.Register(alice)

	// Given alice already joined R1
	_, err := registry.Join(alice, "R1")
	req.NoError(err)

	// When she joins again
	joined, err := registry.Join(alice, "R1")

	// Then nothing changes
	req.NoError(err)
	req.False(joined)
	req.Len(registry.Subscribers("R1"), 1)
	req.Equal([]domain.RoomID{"R1"}, registry.UserRooms("alice"))
}

func TestRegistry_Leave_Last_Participant_Drops_Room(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(0)
	alice := newTestSession("alice")
	bob := newTestSession("bob")
	_, _ = registry.Register(alice)
	_, _ = registry.Register(bob)
	_, _ = registry.Join(alice, "R1")
	_, _ = registry.Join(bob, "R1")

	// When alice leaves, one subscriber remains
	left, remaining := registry.Leave(alice, "R1")
	req.True(left)
	req.Equal(1, remaining)

	// When bob leaves, the room is gone
	left, remaining = registry.Leave(bob, "R1")
	req.True(left)
	req.Zero(remaining)
	req.Equal(Stats{Sessions: 2}, registry.Stats())

	// Leaving a room never joined is a no-op
	left, _ = registry.Leave(bob, "R1")
	req.False(left)
	requireConsistent(t, registry)
}

func TestRegistry_Register_Replaces_Previous_Session(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(0)
	first := newTestSession("alice")
	second := newTestSession("alice")

	// Given alice is connected and joined two rooms
	_, _ = registry.Register(first)
	_, _ = registry.Join(first, "R1")
	_, _ = registry.Join(first, "R2")

	// When she connects again
	replaced, err := registry.Register(second)

	// Then the first session is handed back and no longer subscribed anywhere
	req.NoError(err)
	req.Equal(first, replaced)
	current, ok := registry.Session("alice")
	req.True(ok)
	req.Equal(second, current)
	req.Empty(registry.Subscribers("R1"))
	req.Empty(registry.UserRooms("alice"))

	// And removing the stale session does not touch the live one
	rooms, wasCurrent := registry.Remove(first)
	req.False(wasCurrent)
	req.Empty(rooms)
	req.True(registry.IsOnline("alice"))
	requireConsistent(t, registry)
}

func TestRegistry_Join_After_Remove_Fails(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(0)
	alice := newTestSession("alice")
	_, _ = registry.Register(alice)
	_, _ = registry.Join(alice, "R1")

	// Given the session was removed
	rooms, current := registry.Remove(alice)
	req.True(current)
	req.Equal([]domain.RoomID{"R1"}, rooms)

	// When a late join arrives
	joined, err := registry.Join(alice, "R2")

	// Then it is refused and nothing dangles
	req.ErrorIs(err, errors.ErrSessionClosed)
	req.False(joined)
	req.Equal(Stats{}, registry.Stats())
	req.False(registry.IsOnline("alice"))
}

func TestRegistry_Capacity_Only_Limits_New_Identities(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(1)

	_, err := registry.Register(newTestSession("alice"))
	req.NoError(err)

	// A new identity is refused
	_, err = registry.Register(newTestSession("bob"))
	req.ErrorIs(err, errors.ErrCapacityReached)

	// A reconnecting identity is accepted
	replaced, err := registry.Register(newTestSession("alice"))
	req.NoError(err)
	req.NotNil(replaced)
}

func TestRegistry_EvictRoom(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(0)
	alice := newTestSession("alice")
	bob := newTestSession("bob")
	_, _ = registry.Register(alice)
	_, _ = registry.Register(bob)
	_, _ = registry.Join(alice, "R1")
	_, _ = registry.Join(bob, "R1")
	_, _ = registry.Join(bob, "R2")

	// When R1 is evicted
	evicted := registry.EvictRoom("R1")

	// Then both users lose R1 only
	req.ElementsMatch([]domain.UserID{"alice", "bob"}, evicted)
	req.Empty(registry.UserRooms("alice"))
	req.Equal([]domain.RoomID{"R2"}, registry.UserRooms("bob"))
	req.Nil(registry.EvictRoom("R1"))
	requireConsistent(t, registry)
}

func TestRegistry_Stays_Consistent_Under_Concurrency(t *testing.T) {
	registry := NewRegistry(0)
	rooms := []domain.RoomID{"R1", "R2", "R3"}

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := domain.UserID(fmt.Sprintf("user-%d", i%10))
			for round := range 50 {
				session := newTestSession(userID)
				if _, err := registry.Register(session); err != nil {
					continue
				}
				for _, roomID := range rooms {
					_, _ = registry.Join(session, roomID)
				}
				registry.Leave(session, rooms[round%len(rooms)])
				_ = registry.Subscribers(rooms[(round+1)%len(rooms)])
				if round%3 == 0 {
					registry.Remove(session)
				}
				if round%7 == 0 {
					registry.EvictRoom(rooms[round%len(rooms)])
				}
			}
		}(i)
	}
	wg.Wait()

	requireConsistent(t, registry)
}
