package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/qr-nexus/internal/application/admin"
	"github.com/qr-nexus/internal/domain"
	"github.com/qr-nexus/internal/transport/http/middleware"
)

// AdminHandler handles the audited admin endpoints, mounted behind
// RequireRole(domain.RoleAdmin), and the public platform totals.
type AdminHandler struct {
	svc admin.Service
}

func NewAdminHandler(svc admin.Service) *AdminHandler { return &AdminHandler{svc: svc} }

func actorFrom(r *http.Request) admin.Actor {
	return admin.Actor{
		AdminID:   middleware.UserID(r.Context()),
		IPAddress: middleware.ClientIP(r),
	}
}

func (h *AdminHandler) AdjustPoints(w http.ResponseWriter, r *http.Request) {
	var req domain.AdjustPointsRequest
	if !decodeValid(w, r, &req) {
		return
	}
	entry, err := h.svc.AdjustPoints(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *AdminHandler) SetUserStatus(w http.ResponseWriter, r *http.Request) {
	var req domain.SetUserStatusRequest
	if !decodeValid(w, r, &req) {
		return
	}
	entry, err := h.svc.SetUserStatus(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *AdminHandler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, cursor := parsePage(r)
	entries, next, err := h.svc.ListAuditLogs(r.Context(), r.URL.Query().Get("admin_id"), limit, cursor)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuditLogsEnvelope{Data: entries, NextCursor: next})
}

func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	limit, cursor := parsePage(r)
	users, next, err := h.svc.ListUsers(r.Context(), actorFrom(r), limit, cursor)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AdminUsersEnvelope{Data: users, NextCursor: next})
}

func (h *AdminHandler) Identities(w http.ResponseWriter, r *http.Request) {
	limit, cursor := parsePage(r)
	idents, next, err := h.svc.ListIdentities(r.Context(), actorFrom(r), limit, cursor)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AdminIdentitiesEnvelope{Data: idents, NextCursor: next})
}

// PlatformStats is served without authentication.
func (h *AdminHandler) PlatformStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.PlatformStats(r.Context())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *AdminHandler) Overview(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Overview(r.Context(), actorFrom(r))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
