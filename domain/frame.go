// Package domain contains core concepts of the chat system.
// This file defines the frames exchanged over a realtime connection.
// Outbound frames are only built through the constructors below so that
// every frame handed to the broadcaster is complete.
package domain

type FrameType string

// Client to server.
const (
	FrameJoinRoom    FrameType = "join_room"
	FrameLeaveRoom   FrameType = "leave_room"
	FrameSendMessage FrameType = "send_message"
	FrameTypingStart FrameType = "typing_start"
	FrameTypingStop  FrameType = "typing_stop"
	FramePing        FrameType = "ping"
)

// Server to client.
const (
	FrameConnected         FrameType = "connected"
	FrameRoomJoined        FrameType = "room_joined"
	FrameRoomLeft          FrameType = "room_left"
	FrameUserJoined        FrameType = "user_joined"
	FrameUserLeft          FrameType = "user_left"
	FrameUserTyping        FrameType = "user_typing"
	FrameUserStoppedTyping FrameType = "user_stopped_typing"
	FrameNewMessage        FrameType = "new_message"
	FrameMessageEdited     FrameType = "message_edited"
	FrameMessageDeleted    FrameType = "message_deleted"
	FrameRoomUpdated       FrameType = "room_updated"
	FrameRoomDeleted       FrameType = "room_deleted"
	FrameError             FrameType = "error"
	FrameSessionReplaced   FrameType = "session_replaced"
	FramePong              FrameType = "pong"
)

type Frame struct {
	Type FrameType `json:"type"`
	Data any       `json:"data"`
}

type UserData struct {
	User Profile `json:"user"`
}

type RoomData struct {
	RoomID RoomID `json:"roomId"`
}

type PresenceData struct {
	User   Profile `json:"user"`
	RoomID RoomID  `json:"roomId"`
}

type MessageData struct {
	Message Message `json:"message"`
	RoomID  RoomID  `json:"roomId"`
}

type RoomUpdatedData struct {
	Room Room `json:"room"`
}

type ErrorData struct {
	Message string `json:"message"`
}

// EmptyData serializes as {}.
type EmptyData struct{}

func ConnectedFrame(user Profile) Frame {
	return Frame{Type: FrameConnected, Data: UserData{User: user}}
}

func RoomJoinedFrame(roomID RoomID) Frame {
	return Frame{Type: FrameRoomJoined, Data: RoomData{RoomID: roomID}}
}

func RoomLeftFrame(roomID RoomID) Frame {
	return Frame{Type: FrameRoomLeft, Data: RoomData{RoomID: roomID}}
}

func UserJoinedFrame(user Profile, roomID RoomID) Frame {
	return Frame{Type: FrameUserJoined, Data: PresenceData{User: user, RoomID: roomID}}
}

func UserLeftFrame(user Profile, roomID RoomID) Frame {
	return Frame{Type: FrameUserLeft, Data: PresenceData{User: user, RoomID: roomID}}
}

// TypingFrame returns user_typing when typing is true, user_stopped_typing otherwise.
func TypingFrame(user Profile, roomID RoomID, typing bool) Frame {
	frameType := FrameUserStoppedTyping
	if typing {
		frameType = FrameUserTyping
	}
	return Frame{Type: frameType, Data: PresenceData{User: user, RoomID: roomID}}
}

func NewMessageFrame(message Message) Frame {
	return Frame{Type: FrameNewMessage, Data: MessageData{Message: message, RoomID: message.RoomID}}
}

func MessageEditedFrame(message Message) Frame {
	return Frame{Type: FrameMessageEdited, Data: MessageData{Message: message, RoomID: message.RoomID}}
}

func MessageDeletedFrame(message Message) Frame {
	return Frame{Type: FrameMessageDeleted, Data: MessageData{Message: message, RoomID: message.RoomID}}
}

func RoomUpdatedFrame(room Room) Frame {
	return Frame{Type: FrameRoomUpdated, Data: RoomUpdatedData{Room: room}}
}

func RoomDeletedFrame(roomID RoomID) Frame {
	return Frame{Type: FrameRoomDeleted, Data: RoomData{RoomID: roomID}}
}

func ErrorFrame(message string) Frame {
	return Frame{Type: FrameError, Data: ErrorData{Message: message}}
}

func SessionReplacedFrame() Frame {
	return Frame{Type: FrameSessionReplaced, Data: EmptyData{}}
}

func PongFrame() Frame {
	return Frame{Type: FramePong, Data: EmptyData{}}
}
