package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngagementWrite_Counts(t *testing.T) {
	before := testutil.ToFloat64(engagementWrites.WithLabelValues("scan", ResultOK))
	EngagementWrite("scan", ResultOK)
	EngagementWrite("scan", ResultOK)
	assert.Equal(t, before+2, testutil.ToFloat64(engagementWrites.WithLabelValues("scan", ResultOK)))
}

func TestLedgerAward_Counts(t *testing.T) {
	before := testutil.ToFloat64(ledgerAwards.WithLabelValues("share", ResultCooldown))
	LedgerAward("share", ResultCooldown)
	assert.Equal(t, before+1, testutil.ToFloat64(ledgerAwards.WithLabelValues("share", ResultCooldown)))
}

func TestInstrument_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Instrument)
	r.Get("/q/{codeId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/q/{codeId}", "302"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/q/01ABC", nil))
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/q/{codeId}", "302")))
}

func TestHandler_ExposesCollectors(t *testing.T) {
	EngagementWrite("view", ResultFailed)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "qr_nexus_engagement_writes_total"))
}
