package engagement

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/qr-nexus/internal/domain"
	"github.com/qr-nexus/internal/infrastructure/metrics"
	"github.com/qr-nexus/internal/pkg/id"
	"github.com/qr-nexus/internal/pkg/validate"
)

type Service interface {
	// Track counts one engagement event against a code or identity. It never
	// fails the caller: unknown targets are acknowledged without a write and
	// store failures are retried once, then logged.
	Track(ctx context.Context, targetID string, hit domain.EngagementHit)
	// TrackAsync runs Track on a goroutine detached from ctx's cancellation.
	TrackAsync(ctx context.Context, targetID string, hit domain.EngagementHit)
	// Wait blocks until every TrackAsync call has finished.
	Wait()
	// Destination resolves the redirect target of a printed QR code. ok is
	// false when the code is unknown or the store failed.
	Destination(ctx context.Context, codeID string) (dest string, ok bool)
	Stats(ctx context.Context, userID, codeID string) (*domain.CodeStats, error)
}

type codeStore interface {
	Get(ctx context.Context, codeID string) (*domain.Code, error)
}

type identityStore interface {
	Get(ctx context.Context, identityID string) (*domain.Identity, error)
}

type statStore interface {
	IncrementStat(ctx context.Context, t domain.StatTarget, kind domain.EngagementKind, at time.Time) error
	Get(ctx context.Context, targetID string) (*domain.ScanStat, error)
}

type eventStore interface {
	Append(ctx context.Context, ev *domain.EngagementEvent) error
}

type codeOwnership interface {
	Owned(ctx context.Context, userID, codeID string) (*domain.Code, error)
}

type service struct {
	codes      codeStore
	identities identityStore
	stats      statStore
	events     eventStore
	ownership  codeOwnership
	timeout    time.Duration
	eventTTL   time.Duration
	now        func() time.Time
	wg         sync.WaitGroup
}

type ServiceDeps struct {
	CodeRepo     codeStore
	IdentityRepo identityStore
	StatRepo     statStore
	EventRepo    eventStore // optional
	Ownership    codeOwnership
	// Timeout bounds one detached tracking run.
	Timeout  time.Duration
	EventTTL time.Duration
	Now      func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		codes:      deps.CodeRepo,
		identities: deps.IdentityRepo,
		stats:      deps.StatRepo,
		events:     deps.EventRepo,
		ownership:  deps.Ownership,
		timeout:    deps.Timeout,
		eventTTL:   deps.EventTTL,
		now:        deps.Now,
	}
	if s.timeout <= 0 {
		s.timeout = 5 * time.Second
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) Track(ctx context.Context, targetID string, hit domain.EngagementHit) {
	if !hit.Kind.Valid() {
		hit.Kind = domain.EngagementScan
	}
	kind := string(hit.Kind)
	target, ok := s.resolveTarget(ctx, targetID)
	if !ok {
		metrics.EngagementWrite(kind, metrics.ResultSkipped)
		return
	}

	at := s.now().UTC()
	err := s.stats.IncrementStat(ctx, target, hit.Kind, at)
	result := metrics.ResultOK
	if err != nil {
		slog.Warn("engagement write failed, retrying", "target_id", targetID, "kind", kind, "err", err)
		err = s.stats.IncrementStat(ctx, target, hit.Kind, at)
		result = metrics.ResultRetried
	}
	if err != nil {
		slog.Error("engagement write dropped", "target_id", targetID, "kind", kind, "err", err)
		metrics.EngagementWrite(kind, metrics.ResultFailed)
		return
	}
	metrics.EngagementWrite(kind, result)
	s.appendEvent(ctx, target, hit, at)
}

// resolveTarget looks the id up as a code first, then as an identity handle.
func (s *service) resolveTarget(ctx context.Context, targetID string) (domain.StatTarget, bool) {
	c, err := s.codes.Get(ctx, targetID)
	if err == nil {
		return domain.StatTarget{TargetID: c.CodeID, TargetType: domain.TargetCode, IdentityID: c.IdentityID}, true
	}
	if !errors.Is(err, domain.ErrNotFound) {
		slog.Warn("engagement target lookup failed", "target_id", targetID, "err", err)
		return domain.StatTarget{}, false
	}
	if !validate.NexusID(targetID) {
		return domain.StatTarget{}, false
	}
	ident, err := s.identities.Get(ctx, targetID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Warn("engagement target lookup failed", "target_id", targetID, "err", err)
		}
		return domain.StatTarget{}, false
	}
	return domain.StatTarget{TargetID: ident.IdentityID, TargetType: domain.TargetIdentity, IdentityID: ident.IdentityID}, true
}

func (s *service) appendEvent(ctx context.Context, t domain.StatTarget, hit domain.EngagementHit, at time.Time) {
	if s.events == nil {
		return
	}
	ev := &domain.EngagementEvent{
		TargetID:  t.TargetID,
		EventID:   id.New(),
		Kind:      hit.Kind,
		Source:    hit.Source,
		IPHash:    hit.IPHash,
		UserAgent: hit.UserAgent,
		CreatedAt: at,
		ExpiresAt: at.Add(s.eventTTL).Unix(),
	}
	if err := s.events.Append(ctx, ev); err != nil {
		slog.Warn("engagement event not recorded", "target_id", t.TargetID, "err", err)
	}
}

func (s *service) TrackAsync(ctx context.Context, targetID string, hit domain.EngagementHit) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		s.Track(tctx, targetID, hit)
	}()
}

func (s *service) Wait() { s.wg.Wait() }

func (s *service) Destination(ctx context.Context, codeID string) (string, bool) {
	c, err := s.codes.Get(ctx, codeID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Warn("qr lookup failed", "code_id", codeID, "err", err)
		}
		return "", false
	}
	return destination(c), true
}

// destination turns a stored value into something a browser can follow.
// Values that already carry a scheme pass through untouched.
func destination(c *domain.Code) string {
	v := strings.TrimSpace(c.RawValue)
	if u, err := url.Parse(v); err == nil && u.Scheme != "" && (u.Host != "" || u.Opaque != "") {
		return v
	}
	switch c.ServiceKind {
	case "phone":
		return "tel:" + v
	case "email":
		return "mailto:" + v
	case "whatsapp":
		return "https://wa.me/" + strings.TrimLeft(digitsOnly(v), "0")
	case "website", "store":
		return "https://" + v
	}
	return v
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (s *service) Stats(ctx context.Context, userID, codeID string) (*domain.CodeStats, error) {
	c, err := s.ownership.Owned(ctx, userID, codeID)
	if err != nil {
		return nil, err
	}
	st, err := s.stats.Get(ctx, codeID)
	if err != nil {
		return nil, err
	}
	return &domain.CodeStats{
		CodeID:     c.CodeID,
		Label:      c.Label,
		TotalScans: st.TotalScans,
		TotalViews: st.TotalViews,
		LastScanAt: st.LastScanAt,
		LastViewAt: st.LastViewAt,
		CreatedAt:  c.CreatedAt,
	}, nil
}
