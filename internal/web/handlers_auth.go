package web

import (
	"net/http"

	"github.com/JonMunkholm/sheetgate/internal/auth"
	"github.com/JonMunkholm/sheetgate/internal/core"
)

const (
	msgSignupOK   = "Account created successfully."
	msgLoginOK    = "Login successful."
	msgLogoutOK   = "Logged out successfully."
	msgAdminGrant = "Admin access granted."
)

type sessionResponse struct {
	Message string             `json:"message"`
	User    auth.PublicAccount `json:"user"`
	Token   string             `json:"token"`
}

type userResponse struct {
	User auth.PublicAccount `json:"user"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in auth.SignupInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}

	sess, err := s.auth.Signup(r.Context(), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse{
		Message: msgSignupOK,
		User:    sess.User,
		Token:   sess.Token,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in auth.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}

	sess, err := s.auth.Login(r.Context(), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		Message: msgLoginOK,
		User:    sess.User,
		Token:   sess.Token,
	})
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		s.respondError(w, r, core.Unauthenticated(auth.MsgNotAuthenticated))
		return
	}

	user, err := s.auth.CurrentUser(r.Context(), id.SubjectID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		s.respondError(w, r, core.Unauthenticated(auth.MsgNotAuthenticated))
		return
	}

	if err := s.auth.Logout(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}

	writeMessage(w, http.StatusOK, msgLogoutOK)
}

func (s *Server) handleAdminOnly(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, http.StatusOK, msgAdminGrant)
}
