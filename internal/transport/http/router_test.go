package http

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/qr-nexus/internal/config"
	"github.com/qr-nexus/internal/domain"
	jwtinfra "github.com/qr-nexus/internal/infrastructure/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T) *jwtinfra.Provider {
	t.Helper()
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privKey)})
	require.NoError(t, os.WriteFile(privPath, privPEM, 0600))
	pubBytes, err := x509.MarshalPKIXPublicKey(&privKey.PublicKey)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(pubPath, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes}), 0600))

	p, err := jwtinfra.NewProvider(&config.Config{JWTPrivateKeyPath: privPath, JWTPublicKeyPath: pubPath, JWTExpiry: time.Hour})
	require.NoError(t, err)
	return p
}

// newTestRouter serves routes whose handlers are never reached in these
// tests, so the services can stay empty.
func newTestRouter(t *testing.T) (http.Handler, *jwtinfra.Provider) {
	p := newTestProvider(t)
	cfg := &config.Config{
		AllowedOrigins: []string{"*"},
		FallbackURL:    "https://qr.example.com/",
		LandingURL:     "https://qr.example.com/",
	}
	return NewRouter(cfg, p, &Services{}), p
}

func TestRouter_Health(t *testing.T) {
	r, _ := newTestRouter(t)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_MetricsExposed(t *testing.T) {
	r, _ := newTestRouter(t)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "qr_nexus_http_requests_total")
}

func TestRouter_AuthenticatedRouteRequiresToken(t *testing.T) {
	r, _ := newTestRouter(t)
	for _, path := range []string{"/v1/users/me", "/v1/points", "/v1/identities/me", "/v1/referrals/link"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code, path)
	}
}

func TestRouter_AdminRoutesRejectUsers(t *testing.T) {
	r, p := newTestRouter(t)
	token, err := p.Sign("u1", domain.RoleUser, "s1")
	require.NoError(t, err)

	for _, path := range []string{"/v1/admin/overview", "/v1/admin/users", "/v1/admin/identities", "/v1/admin/audit-logs"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusForbidden, rr.Code, path)
	}
}
