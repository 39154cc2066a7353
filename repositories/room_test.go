package repositories

import (
	"chat-realtime/domain"
	"chat-realtime/errors"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRoomRepository_Lifecycle(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	// Given a room created by U1
	room := domain.Room{ID: "R1", Name: "general", CreatedBy: "U1", CreatedAt: now, UpdatedAt: now}
	owner := domain.Membership{RoomID: "R1", UserID: "U1", Role: domain.RoleAdmin, JoinedAt: now}
	req.NoError(repository.CreateRoom(ctx, room, owner))

	// When U2 joins
	req.NoError(repository.AddMember(ctx, domain.Membership{RoomID: "R1", UserID: "U2", Role: domain.RoleMember, JoinedAt: now.Add(time.Second)}))

	// Then both memberships are visible from the room, oldest first
	members, err := repository.ListMembers(ctx, "R1")
	req.NoError(err)
	req.Len(members, 2)
	req.Equal(domain.UserID("U1"), members[0].UserID)
	req.Equal(domain.RoleAdmin, members[0].Role)

	// And from the user
	memberships, err := repository.ListUserMemberships(ctx, "U2")
	req.NoError(err)
	req.Equal([]domain.RoomID{"R1"}, []domain.RoomID{memberships[0].RoomID})

	// And joining twice or joining a missing room fails
	req.ErrorIs(repository.AddMember(ctx, domain.Membership{RoomID: "R1", UserID: "U2"}), errors.ErrAlreadyMember)
	req.ErrorIs(repository.AddMember(ctx, domain.Membership{RoomID: "R404", UserID: "U2"}), errors.ErrNotFound)

	// When U2 leaves
	removed, err := repository.RemoveMember(ctx, "R1", "U2")
	req.NoError(err)
	req.True(removed)
	removed, err = repository.RemoveMember(ctx, "R1", "U2")
	req.NoError(err)
	req.False(removed)
	_, err = repository.GetMembership(ctx, "R1", "U2")
	req.ErrorIs(err, errors.ErrNotFound)
	memberships, err = repository.ListUserMemberships(ctx, "U2")
	req.NoError(err)
	req.Empty(memberships)
}

func TestRoomRepository_Update_Keeps_Creator(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()
	req.NoError(repository.CreateRoom(ctx,
		domain.Room{ID: "R1", Name: "general", CreatedBy: "U1", CreatedAt: now, UpdatedAt: now},
		domain.Membership{RoomID: "R1", UserID: "U1", Role: domain.RoleAdmin, JoinedAt: now}))

	req.NoError(repository.UpdateRoom(ctx, domain.Room{ID: "R1", Name: "random", CreatedBy: "U9", UpdatedAt: now}))

	room, err := repository.GetRoom(ctx, "R1")
	req.NoError(err)
	req.Equal("random", room.Name)
	req.Equal(domain.UserID("U1"), room.CreatedBy)
	req.ErrorIs(repository.UpdateRoom(ctx, domain.Room{ID: "R404"}), errors.ErrNotFound)
}

func TestRoomRepository_Delete_Cascades_Memberships(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()
	req.NoError(repository.CreateRoom(ctx,
		domain.Room{ID: "R1", Name: "general", CreatedBy: "U1", CreatedAt: now},
		domain.Membership{RoomID: "R1", UserID: "U1", Role: domain.RoleAdmin, JoinedAt: now}))
	req.NoError(repository.AddMember(ctx, domain.Membership{RoomID: "R1", UserID: "U2", Role: domain.RoleMember, JoinedAt: now}))

	req.NoError(repository.DeleteRoom(ctx, "R1"))

	_, err := repository.GetRoom(ctx, "R1")
	req.ErrorIs(err, errors.ErrNotFound)
	for _, userID := range []domain.UserID{"U1", "U2"} {
		memberships, err := repository.ListUserMemberships(ctx, userID)
		req.NoError(err)
		req.Empty(memberships)
	}
	req.ErrorIs(repository.DeleteRoom(ctx, "R1"), errors.ErrNotFound)
}
