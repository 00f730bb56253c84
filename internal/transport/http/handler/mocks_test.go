package handler

import (
	"bytes"
	"context"
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

	"github.com/go-chi/chi/v5"
	"github.com/qr-nexus/internal/application/admin"
	"github.com/qr-nexus/internal/application/qr"
	"github.com/qr-nexus/internal/application/session"
	"github.com/qr-nexus/internal/config"
	"github.com/qr-nexus/internal/domain"
	jwtinfra "github.com/qr-nexus/internal/infrastructure/jwt"
	"github.com/qr-nexus/internal/transport/http/middleware"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockUserSvc struct{ mock.Mock }

func (m *mockUserSvc) Register(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	args := m.Called(ctx, req)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

func (m *mockUserSvc) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

func (m *mockUserSvc) Update(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.User, error) {
	args := m.Called(ctx, userID, req)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

func (m *mockUserSvc) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	return m.Called(ctx, userID, currentPassword, newPassword).Error(0)
}

type mockSessionSvc struct{ mock.Mock }

func (m *mockSessionSvc) Login(ctx context.Context, req session.LoginRequest) (*session.LoginResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*session.LoginResult)
	return res, args.Error(1)
}

func (m *mockSessionSvc) Logout(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

func (m *mockSessionSvc) GetCurrent(ctx context.Context, sessionID string) (*domain.Session, error) {
	args := m.Called(ctx, sessionID)
	s, _ := args.Get(0).(*domain.Session)
	return s, args.Error(1)
}

func (m *mockSessionSvc) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	args := m.Called(ctx, refreshToken)
	return args.String(0), args.String(1), args.Error(2)
}

type mockIdentitySvc struct{ mock.Mock }

func (m *mockIdentitySvc) Claim(ctx context.Context, userID string, req domain.ClaimIdentityRequest) (*domain.Identity, error) {
	args := m.Called(ctx, userID, req)
	i, _ := args.Get(0).(*domain.Identity)
	return i, args.Error(1)
}

func (m *mockIdentitySvc) GetMine(ctx context.Context, userID string) (*domain.Identity, error) {
	args := m.Called(ctx, userID)
	i, _ := args.Get(0).(*domain.Identity)
	return i, args.Error(1)
}

func (m *mockIdentitySvc) Update(ctx context.Context, userID string, req domain.UpdateIdentityRequest) (*domain.Identity, error) {
	args := m.Called(ctx, userID, req)
	i, _ := args.Get(0).(*domain.Identity)
	return i, args.Error(1)
}

func (m *mockIdentitySvc) Delete(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockIdentitySvc) Hub(ctx context.Context, limit int, cursor string) ([]domain.PublicIdentity, string, error) {
	args := m.Called(ctx, limit, cursor)
	out, _ := args.Get(0).([]domain.PublicIdentity)
	return out, args.String(1), args.Error(2)
}

type mockVaultSvc struct{ mock.Mock }

func (m *mockVaultSvc) Resolve(ctx context.Context, identityID, requesterID string) (*domain.Vault, error) {
	args := m.Called(ctx, identityID, requesterID)
	v, _ := args.Get(0).(*domain.Vault)
	return v, args.Error(1)
}

type mockCodeSvc struct{ mock.Mock }

func (m *mockCodeSvc) Create(ctx context.Context, userID string, req domain.CreateCodeRequest) (*domain.Code, error) {
	args := m.Called(ctx, userID, req)
	c, _ := args.Get(0).(*domain.Code)
	return c, args.Error(1)
}

func (m *mockCodeSvc) Update(ctx context.Context, userID, codeID string, req domain.UpdateCodeRequest) (*domain.Code, error) {
	args := m.Called(ctx, userID, codeID, req)
	c, _ := args.Get(0).(*domain.Code)
	return c, args.Error(1)
}

func (m *mockCodeSvc) Delete(ctx context.Context, userID, codeID string) error {
	return m.Called(ctx, userID, codeID).Error(0)
}

func (m *mockCodeSvc) Owned(ctx context.Context, userID, codeID string) (*domain.Code, error) {
	args := m.Called(ctx, userID, codeID)
	c, _ := args.Get(0).(*domain.Code)
	return c, args.Error(1)
}

func (m *mockCodeSvc) Catalog() []domain.ServiceKind { return domain.ServiceCatalog }

type mockEngagementSvc struct{ mock.Mock }

func (m *mockEngagementSvc) Track(ctx context.Context, targetID string, hit domain.EngagementHit) {
	m.Called(ctx, targetID, hit)
}

func (m *mockEngagementSvc) TrackAsync(ctx context.Context, targetID string, hit domain.EngagementHit) {
	m.Called(ctx, targetID, hit)
}

func (m *mockEngagementSvc) Wait() {}

func (m *mockEngagementSvc) Destination(ctx context.Context, codeID string) (string, bool) {
	args := m.Called(ctx, codeID)
	return args.String(0), args.Bool(1)
}

func (m *mockEngagementSvc) Stats(ctx context.Context, userID, codeID string) (*domain.CodeStats, error) {
	args := m.Called(ctx, userID, codeID)
	s, _ := args.Get(0).(*domain.CodeStats)
	return s, args.Error(1)
}

type mockLedgerSvc struct{ mock.Mock }

func (m *mockLedgerSvc) AwardSharePoints(ctx context.Context, userID, channel string) (*domain.ShareResult, error) {
	args := m.Called(ctx, userID, channel)
	r, _ := args.Get(0).(*domain.ShareResult)
	return r, args.Error(1)
}

func (m *mockLedgerSvc) RecordReferralConversion(ctx context.Context, referrerID string, visitor domain.Visitor) (*domain.ReferralResult, error) {
	args := m.Called(ctx, referrerID, visitor)
	r, _ := args.Get(0).(*domain.ReferralResult)
	return r, args.Error(1)
}

func (m *mockLedgerSvc) Points(ctx context.Context, userID string) (*domain.UserPoints, error) {
	args := m.Called(ctx, userID)
	p, _ := args.Get(0).(*domain.UserPoints)
	return p, args.Error(1)
}

func (m *mockLedgerSvc) ReferralLink(userID string) domain.ReferralLink {
	return m.Called(userID).Get(0).(domain.ReferralLink)
}

type mockAdminSvc struct{ mock.Mock }

func (m *mockAdminSvc) AdjustPoints(ctx context.Context, actor admin.Actor, userID string, req domain.AdjustPointsRequest) (*domain.AuditLogEntry, error) {
	args := m.Called(ctx, actor, userID, req)
	e, _ := args.Get(0).(*domain.AuditLogEntry)
	return e, args.Error(1)
}

func (m *mockAdminSvc) SetUserStatus(ctx context.Context, actor admin.Actor, userID string, req domain.SetUserStatusRequest) (*domain.AuditLogEntry, error) {
	args := m.Called(ctx, actor, userID, req)
	e, _ := args.Get(0).(*domain.AuditLogEntry)
	return e, args.Error(1)
}

func (m *mockAdminSvc) ListAuditLogs(ctx context.Context, adminID string, limit int, cursor string) ([]domain.AuditLogEntry, string, error) {
	args := m.Called(ctx, adminID, limit, cursor)
	out, _ := args.Get(0).([]domain.AuditLogEntry)
	return out, args.String(1), args.Error(2)
}

func (m *mockAdminSvc) ListUsers(ctx context.Context, actor admin.Actor, limit int, cursor string) ([]domain.AdminUserView, string, error) {
	args := m.Called(ctx, actor, limit, cursor)
	v, _ := args.Get(0).([]domain.AdminUserView)
	return v, args.String(1), args.Error(2)
}

func (m *mockAdminSvc) ListIdentities(ctx context.Context, actor admin.Actor, limit int, cursor string) ([]domain.AdminIdentityView, string, error) {
	args := m.Called(ctx, actor, limit, cursor)
	v, _ := args.Get(0).([]domain.AdminIdentityView)
	return v, args.String(1), args.Error(2)
}

func (m *mockAdminSvc) Overview(ctx context.Context, actor admin.Actor) (*domain.Overview, error) {
	args := m.Called(ctx, actor)
	o, _ := args.Get(0).(*domain.Overview)
	return o, args.Error(1)
}

func (m *mockAdminSvc) PlatformStats(ctx context.Context) (*domain.PlatformStats, error) {
	args := m.Called(ctx)
	st, _ := args.Get(0).(*domain.PlatformStats)
	return st, args.Error(1)
}

type mockQRSvc struct{ mock.Mock }

func (m *mockQRSvc) Render(ctx context.Context, userID, codeID string) (*qr.Image, error) {
	args := m.Called(ctx, userID, codeID)
	img, _ := args.Get(0).(*qr.Image)
	return img, args.Error(1)
}

// --- helpers ---

// newTestJWTProvider generates a fresh RSA key pair and returns a *jwtinfra.Provider.
func newTestJWTProvider(t *testing.T) *jwtinfra.Provider {
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
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0600))

	p, err := jwtinfra.NewProvider(&config.Config{
		JWTPrivateKeyPath: privPath,
		JWTPublicKeyPath:  pubPath,
		JWTExpiry:         24 * time.Hour,
	})
	require.NoError(t, err)
	return p
}

// bearerReq builds a request with a signed Bearer token for the given userID and role.
func bearerReq(t *testing.T, p *jwtinfra.Provider, method, target, userID, role string, body []byte) *http.Request {
	t.Helper()
	token, err := p.Sign(userID, role, "sess1")
	require.NoError(t, err)
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

// serveAuthed mounts h at pattern behind the Auth middleware and serves req.
func serveAuthed(p *jwtinfra.Provider, method, pattern string, h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.With(middleware.Auth(p)).Method(method, pattern, h)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

// serve mounts h at pattern without authentication and serves req.
func serve(method, pattern string, h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Method(method, pattern, h)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

// withClaims returns req carrying claims for userID, as the Auth middleware would.
func withClaims(req *http.Request, userID, role string) *http.Request {
	return req.WithContext(middleware.WithClaims(req.Context(), &jwtinfra.Claims{UserID: userID, Role: role, SessionID: "sess1"}))
}
