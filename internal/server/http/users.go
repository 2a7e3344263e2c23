package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/seqsubmit/internal/common"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, reply, err := s.svc.Users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.logger.Error(r.Context(), "login", "error", err)
		writeInternalError(w)
		return
	}
	if !reply.OK() {
		writeMessage(w, reply.Code, reply.Message)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	reply, err := s.svc.Users.Register(r.Context(), req.Email, req.Password, false)
	if err != nil {
		s.logger.Error(r.Context(), "signup", "error", err)
		writeInternalError(w)
		return
	}
	writeReply(w, reply)
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	reply, err := s.svc.Users.Activate(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		s.logger.Error(r.Context(), "activate", "error", err)
		writeInternalError(w)
		return
	}
	writeReply(w, reply)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	who, _ := identityFromContext(r.Context())

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.CurrentPassword == "" {
		writeMessage(w, http.StatusUnauthorized, "Current password missing")
		return
	}
	if req.NewPassword == "" {
		writeMessage(w, http.StatusUnauthorized, "New password missing")
		return
	}

	changed, err := s.svc.Users.SetPassword(r.Context(), who.Email, req.CurrentPassword, req.NewPassword)
	if err != nil {
		s.logger.Error(r.Context(), "change password", "error", err)
		writeInternalError(w)
		return
	}
	if !changed {
		writeMessage(w, http.StatusUnauthorized, "Failed to change password: current password incorrect.")
		return
	}
	writeMessage(w, http.StatusOK, "Password changed.")
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.Users.List(r.Context())
	if err != nil {
		s.logger.Error(r.Context(), "list users", "error", err)
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) handleAdminToken(w http.ResponseWriter, r *http.Request) {
	who, _ := identityFromContext(r.Context())

	token, err := s.svc.Users.AdminToken(r.Context(), who)
	if errors.Is(err, common.ErrorUnauthorized) {
		writeMessage(w, http.StatusUnauthorized, "Admin account required")
		return
	}
	if err != nil {
		s.logger.Error(r.Context(), "admin token", "error", err)
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token})
}
