package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/qr-nexus/internal/application/code"
	"github.com/qr-nexus/internal/application/engagement"
	"github.com/qr-nexus/internal/application/qr"
	"github.com/qr-nexus/internal/domain"
	"github.com/qr-nexus/internal/transport/http/middleware"
)

// CodeHandler handles code CRUD plus the owner-only stats and QR endpoints.
type CodeHandler struct {
	svc        code.Service
	engagement engagement.Service
	qr         qr.Service
}

func NewCodeHandler(svc code.Service, engagementSvc engagement.Service, qrSvc qr.Service) *CodeHandler {
	return &CodeHandler{svc: svc, engagement: engagementSvc, qr: qrSvc}
}

func (h *CodeHandler) Catalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Catalog())
}

func (h *CodeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateCodeRequest
	if !decodeValid(w, r, &req) {
		return
	}
	c, err := h.svc.Create(r.Context(), middleware.UserID(r.Context()), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *CodeHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateCodeRequest
	if !decodeValid(w, r, &req) {
		return
	}
	c, err := h.svc.Update(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CodeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "code deleted"})
}

func (h *CodeHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engagement.Stats(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *CodeHandler) QR(w http.ResponseWriter, r *http.Request) {
	img, err := h.qr.Render(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, img)
}
