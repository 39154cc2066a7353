package server

import (
	"chat-realtime/domain"
	"net/http"
)

type createMessageBody struct {
	RoomID      domain.RoomID      `json:"roomId"`
	Content     string             `json:"content"`
	MessageType domain.MessageType `json:"messageType"`
	ReplyToID   *string            `json:"replyToId"`
}

type editMessageBody struct {
	Content string `json:"content"`
}

// createMessage is the REST twin of the send_message frame. The message reaches
// the live subscribers of its room like one posted over a socket.
func (s *Server) createMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	var body createMessageBody
	if err := decode(w, r, &body); err != nil {
		fail(s.log, w, r, err)
		return
	}
	message, err := s.messages.CreateMessage(r.Context(), domain.NewMessage{
		RoomID:      body.RoomID,
		SenderID:    userID,
		Content:     body.Content,
		MessageType: body.MessageType,
		ReplyToID:   body.ReplyToID,
	})
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	s.broadcaster.BroadcastToRoom(r.Context(), message.RoomID, domain.NewMessageFrame(message))
	ok(w, http.StatusCreated, "message sent", message)
}

func (s *Server) getMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	message, err := s.messages.GetMessage(r.Context(), messageID(r), userID)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	ok(w, http.StatusOK, "", message)
}

func (s *Server) editMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	var body editMessageBody
	if err := decode(w, r, &body); err != nil {
		fail(s.log, w, r, err)
		return
	}
	message, err := s.messages.EditMessage(r.Context(), messageID(r), userID, body.Content)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	s.broadcaster.BroadcastToRoom(r.Context(), message.RoomID, domain.MessageEditedFrame(message))
	ok(w, http.StatusOK, "message updated", message)
}

func (s *Server) deleteMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	message, err := s.messages.DeleteMessage(r.Context(), messageID(r), userID)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	s.broadcaster.BroadcastToRoom(r.Context(), message.RoomID, domain.MessageDeletedFrame(message))
	ok(w, http.StatusOK, "message deleted", message)
}

func (s *Server) replies(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	replies, err := s.messages.Replies(r.Context(), messageID(r), userID)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	ok(w, http.StatusOK, "", replies)
}
