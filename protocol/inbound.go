// Package protocol decodes inbound realtime frames and routes them.
package protocol

import (
	"chat-realtime/domain"
	"chat-realtime/errors"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type inbound struct {
	Type domain.FrameType `json:"type"`
	Data json.RawMessage  `json:"data"`
}

// Command is one decoded inbound frame. The set of variants is closed.
type Command interface {
	command()
}

type JoinRoom struct {
	RoomID domain.RoomID `json:"roomId" validate:"required,max=128"`
}

type LeaveRoom struct {
	RoomID domain.RoomID `json:"roomId" validate:"required,max=128"`
}

type SendMessage struct {
	RoomID      domain.RoomID      `json:"roomId" validate:"required,max=128"`
	Content     string             `json:"content" validate:"required"`
	MessageType domain.MessageType `json:"messageType" validate:"omitempty,oneof=text image file"`
	ReplyToID   *string            `json:"replyToId" validate:"omitempty,max=128"`
}

type TypingStart struct {
	RoomID domain.RoomID `json:"roomId" validate:"required,max=128"`
}

type TypingStop struct {
	RoomID domain.RoomID `json:"roomId" validate:"required,max=128"`
}

type Ping struct{}

// Unknown carries a frame type the server does not handle.
type Unknown struct {
	Type domain.FrameType
}

func (JoinRoom) command()    {}
func (LeaveRoom) command()   {}
func (SendMessage) command() {}
func (TypingStart) command() {}
func (TypingStop) command()  {}
func (Ping) command()        {}
func (Unknown) command()     {}

// Decode parses and validates raw into a Command.
// Any failure wraps errors.ErrProtocol.
func Decode(raw []byte) (Command, error) {
	var frame inbound
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrProtocol, err)
	}

	switch frame.Type {
	case domain.FrameJoinRoom:
		return decodeAs[JoinRoom](frame.Data)
	case domain.FrameLeaveRoom:
		return decodeAs[LeaveRoom](frame.Data)
	case domain.FrameSendMessage:
		return decodeAs[SendMessage](frame.Data)
	case domain.FrameTypingStart:
		return decodeAs[TypingStart](frame.Data)
	case domain.FrameTypingStop:
		return decodeAs[TypingStop](frame.Data)
	case domain.FramePing:
		return Ping{}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", errors.ErrProtocol)
	default:
		return Unknown{Type: frame.Type}, nil
	}
}

func decodeAs[T Command](data json.RawMessage) (Command, error) {
	var payload T
	if len(data) == 0 || string(data) == "null" {
		return nil, fmt.Errorf("%w: missing data", errors.ErrProtocol)
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrProtocol, err)
	}
	if err := validate.Struct(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrProtocol, err)
	}
	return payload, nil
}
