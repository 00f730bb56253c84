package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/qr-nexus/internal/domain"
	"github.com/qr-nexus/internal/pkg/validate"
)

// Service resolves the read view of an identity's codes.
type Service interface {
	// Resolve returns the vault of identityID as seen by requesterID, which is
	// empty for anonymous callers. It has no side effects.
	Resolve(ctx context.Context, identityID, requesterID string) (*domain.Vault, error)
}

type identityStore interface {
	Get(ctx context.Context, identityID string) (*domain.Identity, error)
}

type codeStore interface {
	ListByIdentity(ctx context.Context, identityID string) ([]domain.Code, error)
}

type statStore interface {
	BatchGet(ctx context.Context, targetIDs []string) (map[string]domain.ScanStat, error)
}

type service struct {
	identities identityStore
	codes      codeStore
	stats      statStore
}

func NewService(identities identityStore, codes codeStore, stats statStore) Service {
	return &service{identities: identities, codes: codes, stats: stats}
}

func (s *service) Resolve(ctx context.Context, identityID, requesterID string) (*domain.Vault, error) {
	if !validate.NexusID(identityID) {
		return nil, fmt.Errorf("malformed identity id %q: %w", identityID, domain.ErrBadRequest)
	}
	v := &domain.Vault{IdentityID: identityID, Codes: []domain.CodeView{}}

	ident, err := s.identities.Get(ctx, identityID)
	if errors.Is(err, domain.ErrNotFound) {
		return v, nil
	}
	if err != nil {
		return nil, err
	}
	codes, err := s.codes.ListByIdentity(ctx, identityID)
	if err != nil {
		return nil, err
	}

	isOwner := ident.OwnedBy(requesterID)
	ids := make([]string, 0, len(codes))
	for _, c := range codes {
		ids = append(ids, c.CodeID)
		if !isOwner && !c.IsPublic {
			continue
		}
		v.Codes = append(v.Codes, project(c, isOwner))
	}

	if len(ids) > 0 {
		stats, err := s.stats.BatchGet(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, st := range stats {
			v.TotalReach += st.Reach()
		}
	}
	return v, nil
}

// project builds the view of one code. Only an owner ever sees RawValue.
func project(c domain.Code, isOwner bool) domain.CodeView {
	view := domain.CodeView{
		CodeID:       c.CodeID,
		ServiceKind:  c.ServiceKind,
		ServiceName:  c.ServiceKind,
		Label:        c.Label,
		DisplayValue: domain.MaskedValue,
		IsOwner:      isOwner,
	}
	if kind, ok := domain.LookupServiceKind(c.ServiceKind); ok {
		view.ServiceName = kind.Name
		view.ServiceIcon = kind.Icon
		view.ServiceColor = kind.Color
	}
	if isOwner {
		view.DisplayValue = c.RawValue
	}
	return view
}
