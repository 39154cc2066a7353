// Package domain contains core concepts of the chat system.
// This file defines rooms and durable memberships.
package domain

import "time"

type RoomID string

type Room struct {
	ID          RoomID    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsPrivate   bool      `json:"isPrivate"`
	CreatedBy   UserID    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleMember    Role = "member"
)

// Membership is the authoritative record that a user belongs to a room.
// The realtime room index is only a cache of it.
type Membership struct {
	RoomID   RoomID    `json:"roomId"`
	UserID   UserID    `json:"userId"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Member is a membership hydrated with the member's profile.
type Member struct {
	User     Profile   `json:"user"`
	IsOnline bool      `json:"isOnline"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// UserRoom is a room as seen from one of its members.
type UserRoom struct {
	Room     Room      `json:"room"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}
