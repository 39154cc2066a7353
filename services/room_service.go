package services

import (
	"chat-realtime/auth"
	"chat-realtime/contract"
	"chat-realtime/domain"
	"chat-realtime/errors"
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IRoomService interface {
	CreateRoom(ctx context.Context, userID domain.UserID, request CreateRoomRequest) (domain.Room, error)
	UserRooms(ctx context.Context, userID domain.UserID) ([]domain.UserRoom, error)
	GetRoom(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (RoomDetails, error)
	Members(ctx context.Context, roomID domain.RoomID, userID domain.UserID) ([]domain.Member, error)
	JoinRoom(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error
	LeaveRoom(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error
	UpdateRoom(ctx context.Context, roomID domain.RoomID, userID domain.UserID, request UpdateRoomRequest) (domain.Room, error)
	DeleteRoom(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error
	IsRoomMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error)
}

type CreateRoomRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=100"`
	Description string `json:"description" validate:"max=500"`
	IsPrivate   bool   `json:"isPrivate"`
}

type UpdateRoomRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	IsPrivate   *bool   `json:"isPrivate"`
}

type RoomDetails struct {
	Room    domain.Room     `json:"room"`
	Members []domain.Member `json:"members"`
}

type RoomService struct {
	log      *slog.Logger
	rooms    contract.RoomRepository
	users    contract.UserRepository
	messages contract.MessageRepository
}

func NewRoomService(log *slog.Logger, rooms contract.RoomRepository, users contract.UserRepository, messages contract.MessageRepository) *RoomService {
	return &RoomService{log: log, rooms: rooms, users: users, messages: messages}
}

// CreateRoom stores a room whose creator is its first admin.
func (s *RoomService) CreateRoom(ctx context.Context, userID domain.UserID, request CreateRoomRequest) (domain.Room, error) {
	if err := auth.Validate(request); err != nil {
		return domain.Room{}, err
	}
	now := time.Now().UTC()
	room := domain.Room{
		ID:          domain.RoomID(uuid.NewString()),
		Name:        request.Name,
		Description: request.Description,
		IsPrivate:   request.IsPrivate,
		CreatedBy:   userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	owner := domain.Membership{RoomID: room.ID, UserID: userID, Role: domain.RoleAdmin, JoinedAt: now}
	if err := s.rooms.CreateRoom(ctx, room, owner); err != nil {
		return domain.Room{}, fmt.Errorf("create room: %w", err)
	}
	s.log.Info("Room created", "room_id", room.ID, "user_id", userID)
	return room, nil
}

// UserRooms lists the rooms of a user, most recently joined first.
func (s *RoomService) UserRooms(ctx context.Context, userID domain.UserID) ([]domain.UserRoom, error) {
	memberships, err := s.rooms.ListUserMemberships(ctx, userID)
	if err != nil {
		return nil, err
	}
	rooms := make([]domain.UserRoom, 0, len(memberships))
	for _, membership := range lo.Reverse(memberships) {
		room, err := s.rooms.GetRoom(ctx, membership.RoomID)
		if goerrors.Is(err, errors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, domain.UserRoom{Room: room, Role: membership.Role, JoinedAt: membership.JoinedAt})
	}
	return rooms, nil
}

func (s *RoomService) GetRoom(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (RoomDetails, error) {
	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return RoomDetails{}, err
	}
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return RoomDetails{}, err
	}
	members, err := s.members(ctx, roomID)
	if err != nil {
		return RoomDetails{}, err
	}
	return RoomDetails{Room: room, Members: members}, nil
}

func (s *RoomService) Members(ctx context.Context, roomID domain.RoomID, userID domain.UserID) ([]domain.Member, error) {
	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}
	return s.members(ctx, roomID)
}

func (s *RoomService) members(ctx context.Context, roomID domain.RoomID) ([]domain.Member, error) {
	memberships, err := s.rooms.ListMembers(ctx, roomID)
	if err != nil {
		return nil, err
	}
	members := make([]domain.Member, 0, len(memberships))
	for _, membership := range memberships {
		user, err := s.users.GetUserByID(ctx, membership.UserID)
		if goerrors.Is(err, errors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		members = append(members, domain.Member{
			User:     user.Profile(),
			IsOnline: user.IsOnline,
			Role:     membership.Role,
			JoinedAt: membership.JoinedAt,
		})
	}
	return members, nil
}

func (s *RoomService) JoinRoom(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	membership := domain.Membership{RoomID: roomID, UserID: userID, Role: domain.RoleMember, JoinedAt: time.Now().UTC()}
	if err := s.rooms.AddMember(ctx, membership); err != nil {
		return err
	}
	s.log.Debug("Member added", "room_id", roomID, "user_id", userID)
	return nil
}

// LeaveRoom drops the durable membership. The creator cannot leave its own room.
func (s *RoomService) LeaveRoom(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.CreatedBy == userID {
		return fmt.Errorf("%w: the creator cannot leave the room", errors.ErrForbidden)
	}
	removed, err := s.rooms.RemoveMember(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: not a member of this room", errors.ErrInvalidInput)
	}
	return nil
}

// UpdateRoom applies the non-nil fields of request. Only admins may update.
func (s *RoomService) UpdateRoom(ctx context.Context, roomID domain.RoomID, userID domain.UserID, request UpdateRoomRequest) (domain.Room, error) {
	if err := auth.Validate(request); err != nil {
		return domain.Room{}, err
	}
	membership, err := s.rooms.GetMembership(ctx, roomID, userID)
	if goerrors.Is(err, errors.ErrNotFound) || (err == nil && membership.Role != domain.RoleAdmin) {
		return domain.Room{}, fmt.Errorf("%w: only admins can update the room", errors.ErrForbidden)
	}
	if err != nil {
		return domain.Room{}, err
	}

	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	if request.Name != nil {
		room.Name = *request.Name
	}
	if request.Description != nil {
		room.Description = *request.Description
	}
	if request.IsPrivate != nil {
		room.IsPrivate = *request.IsPrivate
	}
	room.UpdatedAt = time.Now().UTC()
	if err := s.rooms.UpdateRoom(ctx, room); err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

// DeleteRoom removes a room with its memberships and messages. Only the creator may delete.
func (s *RoomService) DeleteRoom(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.CreatedBy != userID {
		return fmt.Errorf("%w: only the creator can delete the room", errors.ErrForbidden)
	}
	if err := s.messages.DeleteRoomMessages(ctx, roomID); err != nil {
		return fmt.Errorf("delete messages of room %s: %w", roomID, err)
	}
	if err := s.rooms.DeleteRoom(ctx, roomID); err != nil {
		return err
	}
	s.log.Info("Room deleted", "room_id", roomID, "user_id", userID)
	return nil
}

// IsRoomMember implements contract.MembershipAuthorizer.
func (s *RoomService) IsRoomMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error) {
	_, err := s.rooms.GetMembership(ctx, roomID, userID)
	switch {
	case err == nil:
		return true, nil
	case goerrors.Is(err, errors.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (s *RoomService) requireMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	member, err := s.IsRoomMember(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if !member {
		return fmt.Errorf("%w: no access to this room", errors.ErrForbidden)
	}
	return nil
}
