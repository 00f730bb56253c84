package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/qr-nexus/internal/domain"
	"github.com/qr-nexus/internal/pkg/id"
	"golang.org/x/crypto/bcrypt"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldEmail        = "email"
	fieldFullName     = "full_name"
	fieldPasswordHash = "password_hash"
)

type Service interface {
	Register(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.User, error)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
}

type userStore interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type service struct {
	repo userStore
}

func NewService(repo userStore) Service {
	return &service{repo: repo}
}

func (s *service) Register(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	if err := s.ensureFree(ctx, s.repo.GetByUsername, req.Username, "username already taken"); err != nil {
		return nil, err
	}
	if err := s.ensureFree(ctx, s.repo.GetByEmail, req.Email, "email already registered"); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         domain.RoleUser,
		Status:       domain.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Put(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ensureFree returns ErrConflict when lookup finds a row, and passes store
// failures through rather than treating them as "free".
func (s *service) ensureFree(ctx context.Context, lookup func(context.Context, string) (*domain.User, error), value, msg string) error {
	_, err := lookup(ctx, value)
	switch {
	case err == nil:
		return fmt.Errorf("%s: %w", msg, domain.ErrConflict)
	case errors.Is(err, domain.ErrNotFound):
		return nil
	default:
		return err
	}
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.Get(ctx, userID)
}

func (s *service) Update(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.User, error) {
	updates := map[string]interface{}{}
	if req.Email != nil {
		existing, err := s.repo.GetByEmail(ctx, *req.Email)
		switch {
		case err == nil && existing.UserID != userID:
			return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
		updates[fieldEmail] = *req.Email
	}
	if req.FullName != nil {
		updates[fieldFullName] = *req.FullName
	}
	if len(updates) == 0 {
		return s.repo.Get(ctx, userID)
	}
	if err := s.repo.Update(ctx, userID, updates); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, userID)
}

func (s *service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(currentPassword)); err != nil {
		return fmt.Errorf("current password is incorrect: %w", domain.ErrUnauthorized)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.Update(ctx, userID, map[string]interface{}{fieldPasswordHash: string(hash)})
}
