package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/qr-nexus/internal/application/identity"
	"github.com/qr-nexus/internal/application/vault"
	"github.com/qr-nexus/internal/domain"
	"github.com/qr-nexus/internal/transport/http/middleware"
)

// IdentityHandler handles the caller's identity, the discovery hub and vault reads.
type IdentityHandler struct {
	svc    identity.Service
	vaults vault.Service
}

func NewIdentityHandler(svc identity.Service, vaults vault.Service) *IdentityHandler {
	return &IdentityHandler{svc: svc, vaults: vaults}
}

func (h *IdentityHandler) Claim(w http.ResponseWriter, r *http.Request) {
	var req domain.ClaimIdentityRequest
	if !decodeValid(w, r, &req) {
		return
	}
	ident, err := h.svc.Claim(r.Context(), middleware.UserID(r.Context()), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ident)
}

func (h *IdentityHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	ident, err := h.svc.GetMine(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ident)
}

func (h *IdentityHandler) UpdateMine(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateIdentityRequest
	if !decodeValid(w, r, &req) {
		return
	}
	ident, err := h.svc.Update(r.Context(), middleware.UserID(r.Context()), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ident)
}

func (h *IdentityHandler) DeleteMine(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), middleware.UserID(r.Context())); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "identity deleted"})
}

func (h *IdentityHandler) Hub(w http.ResponseWriter, r *http.Request) {
	limit, cursor := parsePage(r)
	idents, next, err := h.svc.Hub(r.Context(), limit, cursor)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, HubEnvelope{Data: idents, NextCursor: next})
}

// Vault is public; an authenticated owner sees raw values, everyone else masked ones.
func (h *IdentityHandler) Vault(w http.ResponseWriter, r *http.Request) {
	v, err := h.vaults.Resolve(r.Context(), chi.URLParam(r, "identityId"), middleware.UserID(r.Context()))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// parsePage reads ?limit= and ?cursor=. Out-of-range limits are left to the
// service defaults.
func parsePage(r *http.Request) (limit int, cursor string) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	return limit, r.URL.Query().Get("cursor")
}
