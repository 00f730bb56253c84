package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/qr-nexus/internal/application/engagement"
	"github.com/qr-nexus/internal/application/ledger"
	"github.com/qr-nexus/internal/domain"
	"github.com/qr-nexus/internal/pkg/fingerprint"
	"github.com/qr-nexus/internal/transport/http/middleware"
)

const (
	sourceQR     = "qr"
	sourceWeb    = "web"
	maxUserAgent = 256
)

type trackRequest struct {
	Kind   domain.EngagementKind `json:"kind" validate:"omitempty,oneof=scan view"`
	Source string                `json:"source" validate:"max=40"`
}

// EngagementHandler serves the tracking endpoint and the two public
// redirects: printed QR codes and referral links.
type EngagementHandler struct {
	engagement  engagement.Service
	ledger      ledger.Service
	fallbackURL string
	landingURL  string
}

func NewEngagementHandler(engagementSvc engagement.Service, ledgerSvc ledger.Service, fallbackURL, landingURL string) *EngagementHandler {
	return &EngagementHandler{
		engagement:  engagementSvc,
		ledger:      ledgerSvc,
		fallbackURL: fallbackURL,
		landingURL:  landingURL,
	}
}

// Track acknowledges every well-formed request, including one with no body;
// the counter write happens in the background and unknown targets are
// dropped there.
func (h *EngagementHandler) Track(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	if req.Kind == "" {
		req.Kind = domain.EngagementScan
	}
	if req.Source == "" {
		req.Source = sourceWeb
	}
	h.engagement.TrackAsync(r.Context(), chi.URLParam(r, "id"), hitFrom(r, req.Kind, req.Source))
	writeJSON(w, http.StatusAccepted, MessageEnvelope{Message: "tracked"})
}

// ResolveQR redirects a scanned QR code to its destination. The scan is
// counted afterwards and can never delay or fail the redirect.
func (h *EngagementHandler) ResolveQR(w http.ResponseWriter, r *http.Request) {
	codeID := chi.URLParam(r, "codeId")
	dest, ok := h.engagement.Destination(r.Context(), codeID)
	if !ok {
		http.Redirect(w, r, h.fallbackURL, http.StatusFound)
		return
	}
	http.Redirect(w, r, dest, http.StatusFound)
	h.engagement.TrackAsync(r.Context(), codeID, hitFrom(r, domain.EngagementScan, sourceQR))
}

// FollowReferral records the visit and sends the visitor to the landing page.
// Only a store failure stops the redirect.
func (h *EngagementHandler) FollowReferral(w http.ResponseWriter, r *http.Request) {
	referrerID := chi.URLParam(r, "referrerId")
	_, err := h.ledger.RecordReferralConversion(r.Context(), referrerID, visitorFrom(r))
	if errors.Is(err, domain.ErrStoreUnavailable) {
		httpError(w, err)
		return
	}
	if err != nil {
		slog.Info("referral visit not recorded", "referrer_id", referrerID, "err", err)
	}
	http.Redirect(w, r, landingWithRef(h.landingURL, referrerID), http.StatusFound)
}

func hitFrom(r *http.Request, kind domain.EngagementKind, source string) domain.EngagementHit {
	ua := r.UserAgent()
	if len(ua) > maxUserAgent {
		ua = ua[:maxUserAgent]
	}
	return domain.EngagementHit{
		Kind:      kind,
		Source:    source,
		IPHash:    fingerprint.IP(middleware.ClientIP(r)),
		UserAgent: ua,
	}
}

// visitorFrom prefers the authenticated user and falls back to a request
// fingerprint for anonymous visitors.
func visitorFrom(r *http.Request) domain.Visitor {
	if uid := middleware.UserID(r.Context()); uid != "" {
		return domain.Visitor{UserID: uid}
	}
	return domain.Visitor{Fingerprint: fingerprint.Visitor(middleware.ClientIP(r), r.UserAgent())}
}

func landingWithRef(landing, referrerID string) string {
	u, err := url.Parse(landing)
	if err != nil {
		return landing
	}
	q := u.Query()
	q.Set("ref", referrerID)
	u.RawQuery = q.Encode()
	return u.String()
}
