package handler

import (
	"net/http"

	"github.com/qr-nexus/internal/application/session"
	"github.com/qr-nexus/internal/application/user"
	"github.com/qr-nexus/internal/domain"
	"github.com/qr-nexus/internal/transport/http/middleware"
)

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

// UserHandler handles registration and the caller's own profile.
type UserHandler struct {
	svc      user.Service
	sessions session.Service
}

func NewUserHandler(svc user.Service, sessions session.Service) *UserHandler {
	return &UserHandler{svc: svc, sessions: sessions}
}

// Register creates the account and opens a first session for it.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateUserRequest
	if !decodeValid(w, r, &req) {
		return
	}
	u, err := h.svc.Register(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	result, err := h.sessions.Login(r.Context(), session.LoginRequest{Username: req.Username, Password: req.Password})
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, AuthEnvelope{
		AccessToken:  result.Bearer,
		RefreshToken: result.RefreshToken,
		Session:      result.Session,
		User:         u,
	})
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Get(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateUserRequest
	if !decodeValid(w, r, &req) {
		return
	}
	u, err := h.svc.Update(r.Context(), middleware.UserID(r.Context()), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !decodeValid(w, r, &req) {
		return
	}
	if err := h.svc.ChangePassword(r.Context(), middleware.UserID(r.Context()), req.CurrentPassword, req.NewPassword); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "password updated"})
}
