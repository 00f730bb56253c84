package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/qr-nexus/internal/application/ledger"
	"github.com/qr-nexus/internal/domain"
	"github.com/qr-nexus/internal/transport/http/middleware"
)

// PointsHandler handles balances, share awards and referrals.
type PointsHandler struct {
	svc ledger.Service
}

func NewPointsHandler(svc ledger.Service) *PointsHandler { return &PointsHandler{svc: svc} }

func (h *PointsHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Points(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Share accepts an empty body; the channel then defaults to web_app.
func (h *PointsHandler) Share(w http.ResponseWriter, r *http.Request) {
	var req domain.ShareRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	res, err := h.svc.AwardSharePoints(r.Context(), middleware.UserID(r.Context()), req.Channel)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *PointsHandler) ReferralLink(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.ReferralLink(middleware.UserID(r.Context())))
}

// Refer records a conversion and answers with the outcome instead of redirecting.
func (h *PointsHandler) Refer(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.RecordReferralConversion(r.Context(), chi.URLParam(r, "referrerId"), visitorFrom(r))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
