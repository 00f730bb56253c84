package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/qr-nexus/internal/domain"
	"github.com/qr-nexus/internal/pkg/fingerprint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

const (
	fallbackURL = "https://qr.example.com/404"
	landingURL  = "https://qr.example.com/welcome"
)

func TestResolveQR_RedirectsThenTracks(t *testing.T) {
	eng := new(mockEngagementSvc)
	eng.On("Destination", mock.Anything, "c1").Return("tel:+15550100", true)
	eng.On("TrackAsync", mock.Anything, "c1", mock.MatchedBy(func(h domain.EngagementHit) bool {
		return h.Kind == domain.EngagementScan && h.Source == sourceQR && h.IPHash == fingerprint.IP("1.2.3.4")
	})).Return()

	h := NewEngagementHandler(eng, new(mockLedgerSvc), fallbackURL, landingURL)
	req := httptest.NewRequest(http.MethodGet, "/q/c1", nil)
	req.RemoteAddr = "1.2.3.4:50000"
	rr := serve(http.MethodGet, "/q/{codeId}", h.ResolveQR, req)

	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "tel:+15550100", rr.Header().Get("Location"))
	eng.AssertExpectations(t)
}

func TestResolveQR_UnknownCodeGoesToFallback(t *testing.T) {
	eng := new(mockEngagementSvc)
	eng.On("Destination", mock.Anything, "nope").Return("", false)

	h := NewEngagementHandler(eng, new(mockLedgerSvc), fallbackURL, landingURL)
	req := httptest.NewRequest(http.MethodGet, "/q/nope", nil)
	rr := serve(http.MethodGet, "/q/{codeId}", h.ResolveQR, req)

	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, fallbackURL, rr.Header().Get("Location"))
	eng.AssertNotCalled(t, "TrackAsync", mock.Anything, mock.Anything, mock.Anything)
}

func TestTrack_AcknowledgesWithDefaults(t *testing.T) {
	eng := new(mockEngagementSvc)
	eng.On("TrackAsync", mock.Anything, "nx-abc123", mock.MatchedBy(func(h domain.EngagementHit) bool {
		return h.Kind == domain.EngagementScan && h.Source == sourceWeb
	})).Return()

	h := NewEngagementHandler(eng, new(mockLedgerSvc), fallbackURL, landingURL)
	req := httptest.NewRequest(http.MethodPost, "/v1/track/nx-abc123", bytes.NewReader([]byte(`{}`)))
	rr := serve(http.MethodPost, "/v1/track/{id}", h.Track, req)

	assert.Equal(t, http.StatusAccepted, rr.Code)
	eng.AssertExpectations(t)
}

func TestTrack_EmptyBodyIsCounted(t *testing.T) {
	eng := new(mockEngagementSvc)
	eng.On("TrackAsync", mock.Anything, "c1", mock.MatchedBy(func(h domain.EngagementHit) bool {
		return h.Kind == domain.EngagementScan && h.Source == sourceWeb
	})).Return()

	h := NewEngagementHandler(eng, new(mockLedgerSvc), fallbackURL, landingURL)
	req := httptest.NewRequest(http.MethodPost, "/v1/track/c1", nil)
	rr := serve(http.MethodPost, "/v1/track/{id}", h.Track, req)

	assert.Equal(t, http.StatusAccepted, rr.Code)
	eng.AssertNumberOfCalls(t, "TrackAsync", 1)
}

func TestTrack_MalformedBodyIsRejected(t *testing.T) {
	eng := new(mockEngagementSvc)
	h := NewEngagementHandler(eng, new(mockLedgerSvc), fallbackURL, landingURL)
	req := httptest.NewRequest(http.MethodPost, "/v1/track/c1", bytes.NewReader([]byte(`{"kind":`)))
	rr := serve(http.MethodPost, "/v1/track/{id}", h.Track, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	eng.AssertNotCalled(t, "TrackAsync", mock.Anything, mock.Anything, mock.Anything)
}

func TestTrack_RejectsUnknownKind(t *testing.T) {
	h := NewEngagementHandler(new(mockEngagementSvc), new(mockLedgerSvc), fallbackURL, landingURL)
	req := httptest.NewRequest(http.MethodPost, "/v1/track/c1", bytes.NewReader([]byte(`{"kind":"click"}`)))
	rr := serve(http.MethodPost, "/v1/track/{id}", h.Track, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestFollowReferral_AnonymousVisitorIsFingerprinted(t *testing.T) {
	led := new(mockLedgerSvc)
	want := domain.Visitor{Fingerprint: fingerprint.Visitor("9.9.9.9", "test-agent")}
	led.On("RecordReferralConversion", mock.Anything, "u1", want).Return(&domain.ReferralResult{Awarded: true}, nil)

	h := NewEngagementHandler(new(mockEngagementSvc), led, fallbackURL, landingURL)
	req := httptest.NewRequest(http.MethodGet, "/r/u1", nil)
	req.RemoteAddr = "9.9.9.9:50000"
	req.Header.Set("User-Agent", "test-agent")
	rr := serve(http.MethodGet, "/r/{referrerId}", h.FollowReferral, req)

	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, landingURL+"?ref=u1", rr.Header().Get("Location"))
	led.AssertExpectations(t)
}

func TestFollowReferral_SelfReferralStillRedirects(t *testing.T) {
	led := new(mockLedgerSvc)
	led.On("RecordReferralConversion", mock.Anything, "u1", domain.Visitor{UserID: "u1"}).
		Return(nil, fmt.Errorf("cannot refer yourself: %w", domain.ErrSelfReferral))

	h := NewEngagementHandler(new(mockEngagementSvc), led, fallbackURL, landingURL)
	req := withClaims(httptest.NewRequest(http.MethodGet, "/r/u1", nil), "u1", domain.RoleUser)
	rr := serve(http.MethodGet, "/r/{referrerId}", h.FollowReferral, req)

	assert.Equal(t, http.StatusFound, rr.Code)
}

func TestFollowReferral_StoreFailureIs503(t *testing.T) {
	led := new(mockLedgerSvc)
	led.On("RecordReferralConversion", mock.Anything, "u1", mock.Anything).
		Return(nil, fmt.Errorf("convert: %w", domain.ErrStoreUnavailable))

	h := NewEngagementHandler(new(mockEngagementSvc), led, fallbackURL, landingURL)
	req := httptest.NewRequest(http.MethodGet, "/r/u1", nil)
	rr := serve(http.MethodGet, "/r/{referrerId}", h.FollowReferral, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestLandingWithRef_KeepsExistingQuery(t *testing.T) {
	assert.Equal(t, "https://x.test/land?a=1&ref=u9", landingWithRef("https://x.test/land?a=1", "u9"))
}
