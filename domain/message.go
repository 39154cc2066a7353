// Package domain contains core concepts of the chat system.
// This file defines Message records and related rules.
package domain

import "time"

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageFile  MessageType = "file"
)

// DeletedContent replaces the content of a soft-deleted message.
const DeletedContent = "[message deleted]"

type Message struct {
	ID          string      `json:"id"`
	RoomID      RoomID      `json:"roomId"`
	Sender      Profile     `json:"sender"`
	Content     string      `json:"content"`
	MessageType MessageType `json:"messageType"`
	ReplyToID   *string     `json:"replyToId,omitempty"`
	IsEdited    bool        `json:"isEdited"`
	IsDeleted   bool        `json:"isDeleted"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// NewMessage is the intent to post a message, before it gets an id and timestamps.
type NewMessage struct {
	RoomID      RoomID
	SenderID    UserID
	Content     string
	MessageType MessageType
	ReplyToID   *string
}
