package server

import (
	"chat-realtime/services"
	"net/http"
)

type registerBody struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	if err := decode(w, r, &body); err != nil {
		fail(s.log, w, r, err)
		return
	}
	result, err := s.auth.Register(r.Context(), body.Username, body.Email, body.Password)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	s.log.Info("User registered", "user_id", result.User.ID)
	ok(w, http.StatusCreated, "user registered", result)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if err := decode(w, r, &body); err != nil {
		fail(s.log, w, r, err)
		return
	}
	result, err := s.auth.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	ok(w, http.StatusOK, "login successful", result)
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	user, err := s.auth.Profile(r.Context(), userID)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	ok(w, http.StatusOK, "", user)
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	var update services.ProfileUpdate
	if err := decode(w, r, &update); err != nil {
		fail(s.log, w, r, err)
		return
	}
	user, err := s.auth.UpdateProfile(r.Context(), userID, update)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	ok(w, http.StatusOK, "profile updated", user)
}

// logout closes the live session of the caller. Tokens are stateless and
// stay valid until they expire.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	disconnected := s.realtime.Disconnect(userID)
	ok(w, http.StatusOK, "logged out", map[string]bool{"disconnected": disconnected})
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	user, err := s.auth.Profile(r.Context(), userID)
	if err != nil {
		fail(s.log, w, r, err)
		return
	}
	ok(w, http.StatusOK, "token is valid", user.Profile())
}
