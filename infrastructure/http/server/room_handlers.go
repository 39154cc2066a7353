package server

import (
	"chat-realtime/domain"
	"chat-realtime/errors"
	"chat-realtime/services"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

func (s *Server) createRoom(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	var request services.CreateRoomRequest
	if err := decode(w, r, &request); err != nil {
		fail(s.log, w, r, err)
		return
	}
	room, err := s.rooms.CreateRoom(r.Context(), userID, request)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	ok(w, http.StatusCreated, "room created", room)
}

func (s *Server) myRooms(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	rooms, err := s.rooms.UserRooms(r.Context(), userID)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	ok(w, http.StatusOK, "", rooms)
}

func (s *Server) getRoom(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	details, err := s.rooms.GetRoom(r.Context(), roomID(r), userID)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	ok(w, http.StatusOK, "", details)
}

func (s *Server) roomMembers(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	members, err := s.rooms.Members(r.Context(), roomID(r), userID)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	ok(w, http.StatusOK, "", members)
}

// roomOnline lists the live subscribers of a room, as opposed to its durable members.
func (s *Server) roomOnline(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	id := roomID(r)
	member, err := s.rooms.IsRoomMember(r.Context(), id, userID)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	if !member {
		fail(s.log, w, r, fmt.Errorf("%w: no access to this room", errors.ErrForbidden))
		return
	}
	ok(w, http.StatusOK, "", s.presence.RoomUsers(id))
}

func (s *Server) joinRoom(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	if err := s.rooms.JoinRoom(r.Context(), roomID(r), userID); err != nil {
		fail(s.log, w, r, err)
		return
	}
	ok(w, http.StatusOK, "joined room", nil)
}

func (s *Server) leaveRoom(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	if err := s.rooms.LeaveRoom(r.Context(), roomID(r), userID); err != nil {
		fail(s.log, w, r, err)
		return
	}
	ok(w, http.StatusOK, "left room", nil)
}

func (s *Server) updateRoom(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	var request services.UpdateRoomRequest
	if err := decode(w, r, &request); err != nil {
		fail(s.log, w, r, err)
		return
	}
	room, err := s.rooms.UpdateRoom(r.Context(), roomID(r), userID, request)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	s.broadcaster.BroadcastToRoom(r.Context(), room.ID, domain.RoomUpdatedFrame(room))
	ok(w, http.StatusOK, "room updated", room)
}

// deleteRoom notifies the live subscribers before dropping the room from the index.
func (s *Server) deleteRoom(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	id := roomID(r)
	if err := s.rooms.DeleteRoom(r.Context(), id, userID); err != nil {
		fail(s.log, w, r, err)
		return
	}
	s.broadcaster.BroadcastToRoom(r.Context(), id, domain.RoomDeletedFrame(id))
	evicted := s.presence.EvictRoom(id)
	s.log.Debug("Room evicted from index", "room_id", id, "subscribers", len(evicted))
	ok(w, http.StatusOK, "room deleted", nil)
}

func (s *Server) roomMessages(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	before, err := queryTime(r, "before")
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	messages, err := s.messages.RoomMessages(r.Context(), roomID(r), userID, before, limit)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	ok(w, http.StatusOK, "", messages)
}

func (s *Server) searchMessages(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	messages, err := s.messages.Search(r.Context(), roomID(r), userID, r.URL.Query().Get("q"), limit)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	ok(w, http.StatusOK, "", messages)
}

// queryInt returns 0 when the parameter is absent.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", errors.ErrInvalidInput, name)
	}
	return value, nil
}

// queryTime parses an RFC 3339 timestamp, nil when the parameter is absent.
func queryTime(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	value, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an RFC 3339 timestamp", errors.ErrInvalidInput, name)
	}
	return &value, nil
}
