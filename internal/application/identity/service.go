package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/qr-nexus/internal/domain"
	"github.com/qr-nexus/internal/pkg/handle"
)

const (
	fieldDisplayName = "display_name"
	fieldBio         = "bio"

	// claimAttempts bounds handle regeneration on collision.
	claimAttempts = 5
)

type Service interface {
	Claim(ctx context.Context, userID string, req domain.ClaimIdentityRequest) (*domain.Identity, error)
	GetMine(ctx context.Context, userID string) (*domain.Identity, error)
	Update(ctx context.Context, userID string, req domain.UpdateIdentityRequest) (*domain.Identity, error)
	Delete(ctx context.Context, userID string) error
	Hub(ctx context.Context, limit int, cursor string) ([]domain.PublicIdentity, string, error)
}

type identityStore interface {
	Claim(ctx context.Context, ident *domain.Identity) error
	GetByOwner(ctx context.Context, userID string) (*domain.Identity, error)
	Update(ctx context.Context, identityID string, updates map[string]interface{}) (*domain.Identity, error)
	Delete(ctx context.Context, identityID, ownerID string) error
	ScanPage(ctx context.Context, limit int32, cursor string) ([]domain.Identity, string, error)
}

type codeStore interface {
	ListByIdentity(ctx context.Context, identityID string) ([]domain.Code, error)
	DeleteMany(ctx context.Context, codeIDs []string) error
}

type statStore interface {
	DeleteMany(ctx context.Context, targetIDs []string) error
}

type objectStore interface {
	Delete(ctx context.Context, key string) error
}

type service struct {
	identities identityStore
	codes      codeStore
	stats      statStore
	images     objectStore
	newHandle  func() (string, error)
}

type ServiceDeps struct {
	IdentityRepo identityStore
	CodeRepo     codeStore
	StatRepo     statStore
	Images       objectStore // optional
	// NewHandle overrides handle generation; defaults to handle.New.
	NewHandle func() (string, error)
}

func NewService(deps ServiceDeps) Service {
	gen := deps.NewHandle
	if gen == nil {
		gen = handle.New
	}
	return &service{
		identities: deps.IdentityRepo,
		codes:      deps.CodeRepo,
		stats:      deps.StatRepo,
		images:     deps.Images,
		newHandle:  gen,
	}
}

func (s *service) Claim(ctx context.Context, userID string, req domain.ClaimIdentityRequest) (*domain.Identity, error) {
	now := time.Now().UTC()
	for attempt := 0; attempt < claimAttempts; attempt++ {
		h, err := s.newHandle()
		if err != nil {
			return nil, fmt.Errorf("generate handle: %w", err)
		}
		ident := &domain.Identity{
			IdentityID:  h,
			OwnerUserID: userID,
			DisplayName: strings.TrimSpace(req.DisplayName),
			Bio:         strings.TrimSpace(req.Bio),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		err = s.identities.Claim(ctx, ident)
		if err == nil {
			return ident, nil
		}
		if !errors.Is(err, domain.ErrHandleTaken) {
			return nil, err
		}
		slog.Info("identity handle collision, retrying", "handle", h, "attempt", attempt+1)
	}
	return nil, fmt.Errorf("no free handle after %d attempts: %w", claimAttempts, domain.ErrConflict)
}

func (s *service) GetMine(ctx context.Context, userID string) (*domain.Identity, error) {
	return s.identities.GetByOwner(ctx, userID)
}

func (s *service) Update(ctx context.Context, userID string, req domain.UpdateIdentityRequest) (*domain.Identity, error) {
	ident, err := s.identities.GetByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if req.DisplayName != nil {
		updates[fieldDisplayName] = strings.TrimSpace(*req.DisplayName)
	}
	if req.Bio != nil {
		updates[fieldBio] = strings.TrimSpace(*req.Bio)
	}
	if len(updates) == 0 {
		return ident, nil
	}
	return s.identities.Update(ctx, ident.IdentityID, updates)
}

// Delete removes the caller's identity together with its codes and their
// stats. Children go first so a failed run can simply be retried: the
// identity stays reachable until everything under it is gone.
func (s *service) Delete(ctx context.Context, userID string) error {
	ident, err := s.identities.GetByOwner(ctx, userID)
	if err != nil {
		return err
	}
	codes, err := s.codes.ListByIdentity(ctx, ident.IdentityID)
	if err != nil {
		return err
	}
	codeIDs := make([]string, 0, len(codes))
	for _, c := range codes {
		codeIDs = append(codeIDs, c.CodeID)
	}
	if err := s.stats.DeleteMany(ctx, append(codeIDs, ident.IdentityID)); err != nil {
		return err
	}
	if err := s.codes.DeleteMany(ctx, codeIDs); err != nil {
		return err
	}
	if err := s.identities.Delete(ctx, ident.IdentityID, userID); err != nil {
		return err
	}
	if s.images != nil {
		for _, id := range codeIDs {
			if err := s.images.Delete(ctx, domain.QRObjectKey(id)); err != nil {
				slog.Warn("failed to delete qr image", "code_id", id, "err", err)
			}
		}
	}
	slog.Info("identity deleted", "identity_id", ident.IdentityID, "codes", len(codeIDs))
	return nil
}

func (s *service) Hub(ctx context.Context, limit int, cursor string) ([]domain.PublicIdentity, string, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	idents, next, err := s.identities.ScanPage(ctx, int32(limit), cursor)
	if err != nil {
		return nil, "", err
	}
	out := make([]domain.PublicIdentity, 0, len(idents))
	for _, i := range idents {
		out = append(out, domain.PublicIdentity{
			IdentityID:  i.IdentityID,
			DisplayName: i.DisplayName,
			Bio:         i.Bio,
			CodesCount:  i.CodesCount,
		})
	}
	return out, next, nil
}
