// Package domain contains core concepts of the chat system.
// This file defines identities and the profile snapshot carried by presence frames.
package domain

import "time"

type UserID string

// Profile is the denormalized identity snapshot captured at connect time.
// It is what other participants see in presence and message frames.
type Profile struct {
	ID       UserID  `json:"id"`
	Username string  `json:"username"`
	Avatar   *string `json:"avatar,omitempty"`
}

// User is the durable account record owned by the store.
type User struct {
	ID           UserID     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Avatar       *string    `json:"avatar,omitempty"`
	IsOnline     bool       `json:"isOnline"`
	LastSeen     *time.Time `json:"lastSeen,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func (u User) Profile() Profile {
	return Profile{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
}
