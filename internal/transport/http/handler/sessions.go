package handler

import (
	"net/http"

	"github.com/qr-nexus/internal/application/session"
	"github.com/qr-nexus/internal/transport/http/middleware"
)

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// SessionHandler handles session endpoints.
type SessionHandler struct {
	svc session.Service
}

func NewSessionHandler(svc session.Service) *SessionHandler {
	return &SessionHandler{svc: svc}
}

func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req session.LoginRequest
	if !decodeValid(w, r, &req) {
		return
	}
	result, err := h.svc.Login(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{
		AccessToken:  result.Bearer,
		RefreshToken: result.RefreshToken,
		Session:      result.Session,
		User:         result.Session.User,
	})
}

func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeValid(w, r, &req) {
		return
	}
	bearer, newToken, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{AccessToken: bearer, RefreshToken: newToken})
}

func (h *SessionHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	sess, err := h.svc.GetCurrent(r.Context(), claims.SessionID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionEnvelope{Session: sess, User: sess.User})
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.Logout(r.Context(), claims.SessionID); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "logged out"})
}
