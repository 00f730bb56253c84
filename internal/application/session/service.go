package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/qr-nexus/internal/domain"
	"github.com/qr-nexus/internal/pkg/id"
	pkgtoken "github.com/qr-nexus/internal/pkg/token"
	"golang.org/x/crypto/bcrypt"
)

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResult struct {
	Bearer       string
	RefreshToken string
	Session      *domain.Session
}

type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Logout(ctx context.Context, sessionID string) error
	GetCurrent(ctx context.Context, sessionID string) (*domain.Session, error)
	Refresh(ctx context.Context, refreshToken string) (bearer, newRefreshToken string, err error)
}

type userStore interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type sessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	GetByRefreshToken(ctx context.Context, token string) (*domain.Session, error)
	RotateRefreshToken(ctx context.Context, sessionID, newToken string, newExpiry int64) error
	Disable(ctx context.Context, sessionID string) error
}

type jwtSigner interface {
	Sign(userID, role, sessionID string) (string, error)
}

type service struct {
	userRepo        userStore
	sessionRepo     sessionStore
	jwtProvider     jwtSigner
	refreshTokenDur time.Duration
}

type ServiceDeps struct {
	UserRepo        userStore
	SessionRepo     sessionStore
	JWTProvider     jwtSigner
	RefreshTokenDur time.Duration
}

func NewService(deps ServiceDeps) Service {
	return &service{
		userRepo:        deps.UserRepo,
		sessionRepo:     deps.SessionRepo,
		jwtProvider:     deps.JWTProvider,
		refreshTokenDur: deps.RefreshTokenDur,
	}
}

var errInvalidCredentials = fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	u, err := s.lookup(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errInvalidCredentials
	}
	if !u.IsActive() {
		return nil, fmt.Errorf("account %s: %w", u.Status, domain.ErrForbidden)
	}
	refreshToken, err := pkgtoken.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess := &domain.Session{
		SessionID:        id.New(),
		UserID:           u.UserID,
		Enable:           true,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: now.Add(s.refreshTokenDur).Unix(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.sessionRepo.Put(ctx, sess); err != nil {
		return nil, err
	}
	bearer, err := s.jwtProvider.Sign(u.UserID, u.Role, sess.SessionID)
	if err != nil {
		return nil, err
	}
	sess.User = u
	return &LoginResult{Bearer: bearer, RefreshToken: refreshToken, Session: sess}, nil
}

// lookup accepts a username or an email. Only a definite miss becomes
// invalid credentials; store failures pass through.
func (s *service) lookup(ctx context.Context, login string) (*domain.User, error) {
	u, err := s.userRepo.GetByUsername(ctx, login)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	u, err = s.userRepo.GetByEmail(ctx, login)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, errInvalidCredentials
	}
	return u, err
}

func (s *service) Logout(ctx context.Context, sessionID string) error {
	return s.sessionRepo.Disable(ctx, sessionID)
}

func (s *service) GetCurrent(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := s.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Enable {
		return nil, fmt.Errorf("session expired: %w", domain.ErrUnauthorized)
	}
	u, err := s.userRepo.Get(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	sess.User = u
	return sess, nil
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	sess, err := s.sessionRepo.GetByRefreshToken(ctx, refreshToken)
	if errors.Is(err, domain.ErrNotFound) {
		return "", "", fmt.Errorf("invalid refresh token: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return "", "", err
	}
	if sess.RefreshExpiresAt < time.Now().Unix() {
		return "", "", fmt.Errorf("refresh token expired: %w", domain.ErrUnauthorized)
	}
	u, err := s.userRepo.Get(ctx, sess.UserID)
	if err != nil {
		return "", "", err
	}
	if !u.IsActive() {
		return "", "", fmt.Errorf("account %s: %w", u.Status, domain.ErrForbidden)
	}
	newToken, err := pkgtoken.NewRefreshToken()
	if err != nil {
		return "", "", err
	}
	newExpiry := time.Now().Add(s.refreshTokenDur).Unix()
	if err := s.sessionRepo.RotateRefreshToken(ctx, sess.SessionID, newToken, newExpiry); err != nil {
		return "", "", err
	}
	bearer, err := s.jwtProvider.Sign(u.UserID, u.Role, sess.SessionID)
	if err != nil {
		return "", "", err
	}
	return bearer, newToken, nil
}
