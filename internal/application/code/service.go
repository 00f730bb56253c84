package code

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/qr-nexus/internal/domain"
	"github.com/qr-nexus/internal/pkg/id"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldLabel    = "label"
	fieldRawValue = "raw_value"
	fieldIsPublic = "is_public"
)

// errNotOwner is returned for every failed ownership check. Missing codes and
// codes owned by someone else are indistinguishable to the caller.
var errNotOwner = fmt.Errorf("unauthorized: %w", domain.ErrForbidden)

type Service interface {
	Create(ctx context.Context, userID string, req domain.CreateCodeRequest) (*domain.Code, error)
	Update(ctx context.Context, userID, codeID string, req domain.UpdateCodeRequest) (*domain.Code, error)
	Delete(ctx context.Context, userID, codeID string) error
	// Owned returns the code when userID owns its identity. The identity is
	// re-read on every call.
	Owned(ctx context.Context, userID, codeID string) (*domain.Code, error)
	Catalog() []domain.ServiceKind
}

type codeStore interface {
	Create(ctx context.Context, c *domain.Code, ownerID string) error
	Get(ctx context.Context, codeID string) (*domain.Code, error)
	Update(ctx context.Context, codeID, identityID string, updates map[string]interface{}) (*domain.Code, error)
	Delete(ctx context.Context, c *domain.Code, ownerID string) error
}

type identityStore interface {
	Get(ctx context.Context, identityID string) (*domain.Identity, error)
}

type statStore interface {
	DeleteMany(ctx context.Context, targetIDs []string) error
}

type objectStore interface {
	Delete(ctx context.Context, key string) error
}

type service struct {
	codes      codeStore
	identities identityStore
	stats      statStore
	images     objectStore
}

type ServiceDeps struct {
	CodeRepo     codeStore
	IdentityRepo identityStore
	StatRepo     statStore
	// Images is optional; when set, a deleted code's QR image is removed too.
	Images objectStore
}

func NewService(deps ServiceDeps) Service {
	return &service{
		codes:      deps.CodeRepo,
		identities: deps.IdentityRepo,
		stats:      deps.StatRepo,
		images:     deps.Images,
	}
}

func (s *service) Create(ctx context.Context, userID string, req domain.CreateCodeRequest) (*domain.Code, error) {
	ident, err := s.identities.Get(ctx, req.IdentityID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, errNotOwner
		}
		return nil, err
	}
	if !ident.OwnedBy(userID) {
		return nil, errNotOwner
	}
	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}
	now := time.Now().UTC()
	c := &domain.Code{
		CodeID:      id.New(),
		IdentityID:  ident.IdentityID,
		ServiceKind: req.ServiceKind,
		Label:       strings.TrimSpace(req.Label),
		RawValue:    strings.TrimSpace(req.Value),
		IsPublic:    isPublic,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.codes.Create(ctx, c, userID); err != nil {
		if errors.Is(err, domain.ErrForbidden) {
			return nil, errNotOwner
		}
		return nil, err
	}
	return c, nil
}

func (s *service) Update(ctx context.Context, userID, codeID string, req domain.UpdateCodeRequest) (*domain.Code, error) {
	c, err := s.Owned(ctx, userID, codeID)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if req.Label != nil {
		updates[fieldLabel] = strings.TrimSpace(*req.Label)
	}
	if req.Value != nil {
		v := strings.TrimSpace(*req.Value)
		if v == "" {
			return nil, fmt.Errorf("value must not be blank: %w", domain.ErrBadRequest)
		}
		updates[fieldRawValue] = v
	}
	if req.IsPublic != nil {
		updates[fieldIsPublic] = *req.IsPublic
	}
	if len(updates) == 0 {
		return c, nil
	}
	updated, err := s.codes.Update(ctx, codeID, c.IdentityID, updates)
	if errors.Is(err, domain.ErrForbidden) {
		return nil, errNotOwner
	}
	return updated, err
}

func (s *service) Delete(ctx context.Context, userID, codeID string) error {
	c, err := s.Owned(ctx, userID, codeID)
	if err != nil {
		return err
	}
	if err := s.codes.Delete(ctx, c, userID); err != nil {
		if errors.Is(err, domain.ErrForbidden) {
			return errNotOwner
		}
		return err
	}
	if err := s.stats.DeleteMany(ctx, []string{codeID}); err != nil {
		slog.Warn("failed to delete code stats", "code_id", codeID, "err", err)
	}
	if s.images != nil {
		if err := s.images.Delete(ctx, domain.QRObjectKey(codeID)); err != nil {
			slog.Warn("failed to delete qr image", "code_id", codeID, "err", err)
		}
	}
	return nil
}

func (s *service) Owned(ctx context.Context, userID, codeID string) (*domain.Code, error) {
	c, err := s.codes.Get(ctx, codeID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, errNotOwner
		}
		return nil, err
	}
	ident, err := s.identities.Get(ctx, c.IdentityID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, errNotOwner
		}
		return nil, err
	}
	if !ident.OwnedBy(userID) {
		return nil, errNotOwner
	}
	return c, nil
}

func (s *service) Catalog() []domain.ServiceKind {
	out := make([]domain.ServiceKind, len(domain.ServiceCatalog))
	copy(out, domain.ServiceCatalog)
	return out
}
