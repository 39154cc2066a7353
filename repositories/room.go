package repositories

import (
	"chat-realtime/contract"
	"chat-realtime/domain"
	"chat-realtime/errors"
	"context"
	"sort"

	"github.com/dgraph-io/badger/v4"
)

// RoomRepository stores rooms and memberships.
// A membership is written twice, under "member:{room}:{user}" and
// "user_room:{user}:{room}", so that both directions are a prefix scan.
type RoomRepository struct {
	db *badger.DB
}

func NewRoomRepository(db *badger.DB) contract.RoomRepository {
	return &RoomRepository{db: db}
}

func roomKey(id domain.RoomID) string {
	return roomPrefix + string(id)
}

func memberKey(roomID domain.RoomID, userID domain.UserID) string {
	return memberPrefix + string(roomID) + ":" + string(userID)
}

func userRoomKey(userID domain.UserID, roomID domain.RoomID) string {
	return userRoomPrefix + string(userID) + ":" + string(roomID)
}

// CreateRoom stores room together with the membership of its owner.
func (r RoomRepository) CreateRoom(ctx context.Context, room domain.Room, owner domain.Membership) error {
	return update(ctx, r.db, func(txn *badger.Txn) error {
		if err := setJSON(txn, roomKey(room.ID), room); err != nil {
			return err
		}
		return putMembership(txn, owner)
	})
}

func (r RoomRepository) GetRoom(ctx context.Context, id domain.RoomID) (domain.Room, error) {
	var room domain.Room
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		return getJSON(txn, roomKey(id), &room)
	})
	return room, err
}

func (r RoomRepository) UpdateRoom(ctx context.Context, room domain.Room) error {
	return update(ctx, r.db, func(txn *badger.Txn) error {
		var previous domain.Room
		if err := getJSON(txn, roomKey(room.ID), &previous); err != nil {
			return err
		}
		room.CreatedBy = previous.CreatedBy
		room.CreatedAt = previous.CreatedAt
		return setJSON(txn, roomKey(room.ID), room)
	})
}

// DeleteRoom removes the room and every membership in both directions.
// Messages are removed separately by the message repository.
func (r RoomRepository) DeleteRoom(ctx context.Context, id domain.RoomID) error {
	return update(ctx, r.db, func(txn *badger.Txn) error {
		found, err := exists(txn, roomKey(id))
		if err != nil {
			return err
		}
		if !found {
			return errors.ErrNotFound
		}
		members, err := scanPrefix[domain.Membership](txn, memberPrefix+string(id)+":")
		if err != nil {
			return err
		}
		for _, membership := range members {
			if err := deleteMembership(txn, membership.RoomID, membership.UserID); err != nil {
				return err
			}
		}
		return txn.Delete([]byte(roomKey(id)))
	})
}

// AddMember fails with errors.ErrNotFound when the room does not exist
// and errors.ErrAlreadyMember when the user already belongs to it.
func (r RoomRepository) AddMember(ctx context.Context, membership domain.Membership) error {
	return update(ctx, r.db, func(txn *badger.Txn) error {
		found, err := exists(txn, roomKey(membership.RoomID))
		if err != nil {
			return err
		}
		if !found {
			return errors.ErrNotFound
		}
		member, err := exists(txn, memberKey(membership.RoomID, membership.UserID))
		if err != nil {
			return err
		}
		if member {
			return errors.ErrAlreadyMember
		}
		return putMembership(txn, membership)
	})
}

func (r RoomRepository) RemoveMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error) {
	var removed bool
	err := update(ctx, r.db, func(txn *badger.Txn) error {
		member, err := exists(txn, memberKey(roomID, userID))
		if err != nil || !member {
			return err
		}
		removed = true
		return deleteMembership(txn, roomID, userID)
	})
	return removed, err
}

func (r RoomRepository) GetMembership(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (domain.Membership, error) {
	var membership domain.Membership
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		return getJSON(txn, memberKey(roomID, userID), &membership)
	})
	return membership, err
}

// ListMembers returns the memberships of a room, oldest first.
func (r RoomRepository) ListMembers(ctx context.Context, roomID domain.RoomID) ([]domain.Membership, error) {
	var members []domain.Membership
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		var err error
		members, err = scanPrefix[domain.Membership](txn, memberPrefix+string(roomID)+":")
		return err
	})
	sortByJoinedAt(members)
	return members, err
}

// ListUserMemberships returns the memberships of a user, oldest first.
func (r RoomRepository) ListUserMemberships(ctx context.Context, userID domain.UserID) ([]domain.Membership, error) {
	var memberships []domain.Membership
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		var err error
		memberships, err = scanPrefix[domain.Membership](txn, userRoomPrefix+string(userID)+":")
		return err
	})
	sortByJoinedAt(memberships)
	return memberships, err
}

func putMembership(txn *badger.Txn, membership domain.Membership) error {
	if err := setJSON(txn, memberKey(membership.RoomID, membership.UserID), membership); err != nil {
		return err
	}
	return setJSON(txn, userRoomKey(membership.UserID, membership.RoomID), membership)
}

func deleteMembership(txn *badger.Txn, roomID domain.RoomID, userID domain.UserID) error {
	if err := txn.Delete([]byte(memberKey(roomID, userID))); err != nil {
		return err
	}
	return txn.Delete([]byte(userRoomKey(userID, roomID)))
}

func sortByJoinedAt(memberships []domain.Membership) {
	sort.SliceStable(memberships, func(i, j int) bool {
		return memberships[i].JoinedAt.Before(memberships[j].JoinedAt)
	})
}
