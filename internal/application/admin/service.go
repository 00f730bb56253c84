package admin

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/qr-nexus/internal/domain"
	"github.com/qr-nexus/internal/pkg/id"
)

// Actor identifies the admin performing a privileged operation.
type Actor struct {
	AdminID   string
	IPAddress string
}

type Service interface {
	AdjustPoints(ctx context.Context, actor Actor, userID string, req domain.AdjustPointsRequest) (*domain.AuditLogEntry, error)
	SetUserStatus(ctx context.Context, actor Actor, userID string, req domain.SetUserStatusRequest) (*domain.AuditLogEntry, error)
	ListAuditLogs(ctx context.Context, adminID string, limit int, cursor string) ([]domain.AuditLogEntry, string, error)
	ListUsers(ctx context.Context, actor Actor, limit int, cursor string) ([]domain.AdminUserView, string, error)
	ListIdentities(ctx context.Context, actor Actor, limit int, cursor string) ([]domain.AdminIdentityView, string, error)
	Overview(ctx context.Context, actor Actor) (*domain.Overview, error)
	PlatformStats(ctx context.Context) (*domain.PlatformStats, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	SetStatus(ctx context.Context, userID, status, reason string) (string, error)
	ScanPage(ctx context.Context, limit int32, cursor string) ([]domain.User, string, error)
	Count(ctx context.Context) (int64, error)
}

type pointsStore interface {
	SetTotal(ctx context.Context, userID string, total int64) (int64, error)
	BatchGet(ctx context.Context, userIDs []string) (map[string]domain.UserPoints, error)
}

type auditStore interface {
	Put(ctx context.Context, e *domain.AuditLogEntry) error
	ListPage(ctx context.Context, adminID string, limit int32, cursor string) ([]domain.AuditLogEntry, string, error)
}

type sessionStore interface {
	DisableByUser(ctx context.Context, userID string) error
}

type identityStore interface {
	ScanAllPage(ctx context.Context, limit int32, cursor string) ([]domain.Identity, string, error)
	Count(ctx context.Context) (int64, error)
}

type codeStore interface {
	ListByIdentity(ctx context.Context, identityID string) ([]domain.Code, error)
	Count(ctx context.Context) (int64, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}

type service struct {
	users      userStore
	points     pointsStore
	audits     auditStore
	sessions   sessionStore
	identities identityStore
	codes      codeStore
	events     eventPublisher
	now        func() time.Time
}

type ServiceDeps struct {
	UserRepo     userStore
	PointsRepo   pointsStore
	AuditRepo    auditStore
	SessionRepo  sessionStore
	IdentityRepo identityStore
	CodeRepo     codeStore
	Events       eventPublisher // optional
	Now          func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		users:      deps.UserRepo,
		points:     deps.PointsRepo,
		audits:     deps.AuditRepo,
		sessions:   deps.SessionRepo,
		identities: deps.IdentityRepo,
		codes:      deps.CodeRepo,
		events:     deps.Events,
		now:        deps.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// AdjustPoints overwrites a user's balance. The audit entry is written only
// after the overwrite succeeded; if it cannot be written the error is
// returned so the caller retries the (idempotent) overwrite.
func (s *service) AdjustPoints(ctx context.Context, actor Actor, userID string, req domain.AdjustPointsRequest) (*domain.AuditLogEntry, error) {
	if req.NewTotal == nil || *req.NewTotal < 0 {
		return nil, fmt.Errorf("new_total must be a non-negative integer: %w", domain.ErrBadRequest)
	}
	if _, err := s.users.Get(ctx, userID); err != nil {
		return nil, err
	}
	before, err := s.points.SetTotal(ctx, userID, *req.NewTotal)
	if err != nil {
		return nil, err
	}
	entry := s.entry(actor, domain.AuditActionAdjustPoints, domain.AuditTargetUser, userID, req.Reason,
		strconv.FormatInt(before, 10), strconv.FormatInt(*req.NewTotal, 10))
	if err := s.audits.Put(ctx, entry); err != nil {
		slog.Error("points adjusted but audit entry not written", "admin_id", actor.AdminID, "user_id", userID, "err", err)
		return nil, fmt.Errorf("write audit entry: %w", err)
	}
	slog.Info("admin adjusted points", "admin_id", actor.AdminID, "user_id", userID, "before", before, "after", *req.NewTotal)
	s.publish(ctx, domain.EventAdminPointsAdjusted, entry)
	return entry, nil
}

func (s *service) SetUserStatus(ctx context.Context, actor Actor, userID string, req domain.SetUserStatusRequest) (*domain.AuditLogEntry, error) {
	switch req.Status {
	case domain.UserStatusActive, domain.UserStatusSuspended, domain.UserStatusBanned:
	default:
		return nil, fmt.Errorf("invalid status %q: %w", req.Status, domain.ErrBadRequest)
	}
	if userID == actor.AdminID {
		return nil, fmt.Errorf("admins cannot change their own status: %w", domain.ErrBadRequest)
	}
	before, err := s.users.SetStatus(ctx, userID, req.Status, req.Reason)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.UserStatusActive {
		if err := s.sessions.DisableByUser(ctx, userID); err != nil {
			slog.Warn("sessions not revoked after status change", "user_id", userID, "err", err)
		}
	}
	entry := s.entry(actor, domain.AuditActionSetStatus, domain.AuditTargetUser, userID, req.Reason, before, req.Status)
	if err := s.audits.Put(ctx, entry); err != nil {
		slog.Error("status changed but audit entry not written", "admin_id", actor.AdminID, "user_id", userID, "err", err)
		return nil, fmt.Errorf("write audit entry: %w", err)
	}
	slog.Info("admin changed user status", "admin_id", actor.AdminID, "user_id", userID, "before", before, "after", req.Status)
	s.publish(ctx, domain.EventAdminStatusChanged, entry)
	return entry, nil
}

func (s *service) ListAuditLogs(ctx context.Context, adminID string, limit int, cursor string) ([]domain.AuditLogEntry, string, error) {
	return s.audits.ListPage(ctx, adminID, pageLimit(limit), cursor)
}

// ListUsers returns a page of users with their balances.
func (s *service) ListUsers(ctx context.Context, actor Actor, limit int, cursor string) ([]domain.AdminUserView, string, error) {
	users, next, err := s.users.ScanPage(ctx, pageLimit(limit), cursor)
	if err != nil {
		return nil, "", err
	}
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.UserID
	}
	balances, err := s.points.BatchGet(ctx, ids)
	if err != nil {
		return nil, "", err
	}
	views := make([]domain.AdminUserView, 0, len(users))
	for _, u := range users {
		views = append(views, domain.AdminUserView{User: u, TotalPoints: balances[u.UserID].TotalPoints})
	}
	s.auditRead(ctx, actor, domain.AuditActionViewUsers, "users")
	return views, next, nil
}

// ListIdentities returns a page of identities, orphans included, each with
// its codes.
func (s *service) ListIdentities(ctx context.Context, actor Actor, limit int, cursor string) ([]domain.AdminIdentityView, string, error) {
	idents, next, err := s.identities.ScanAllPage(ctx, pageLimit(limit), cursor)
	if err != nil {
		return nil, "", err
	}
	views := make([]domain.AdminIdentityView, 0, len(idents))
	for _, ident := range idents {
		codes, err := s.codes.ListByIdentity(ctx, ident.IdentityID)
		if err != nil {
			return nil, "", err
		}
		if codes == nil {
			codes = []domain.Code{}
		}
		views = append(views, domain.AdminIdentityView{
			IdentityID:  ident.IdentityID,
			OwnerUserID: ident.OwnerUserID,
			DisplayName: ident.DisplayName,
			Bio:         ident.Bio,
			CodesCount:  ident.CodesCount,
			CreatedAt:   ident.CreatedAt,
			Codes:       codes,
		})
	}
	s.auditRead(ctx, actor, domain.AuditActionViewIdentities, "identities")
	return views, next, nil
}

func (s *service) Overview(ctx context.Context, actor Actor) (*domain.Overview, error) {
	users, err := s.users.Count(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := s.PlatformStats(ctx)
	if err != nil {
		return nil, err
	}
	s.auditRead(ctx, actor, domain.AuditActionViewOverview, "overview")
	return &domain.Overview{TotalUsers: users, TotalIdentities: stats.TotalIdentities, TotalCodes: stats.TotalCodes}, nil
}

// PlatformStats is public and therefore not audited.
func (s *service) PlatformStats(ctx context.Context) (*domain.PlatformStats, error) {
	identities, err := s.identities.Count(ctx)
	if err != nil {
		return nil, err
	}
	codes, err := s.codes.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.PlatformStats{TotalIdentities: identities, TotalCodes: codes}, nil
}

// auditRead records an admin read. Nothing changed, so a failed write is
// logged and the read still succeeds.
func (s *service) auditRead(ctx context.Context, actor Actor, action, target string) {
	e := s.entry(actor, action, domain.AuditTargetSystem, target, "", "", "")
	if err := s.audits.Put(ctx, e); err != nil {
		slog.Warn("audit entry for admin read not written", "admin_id", actor.AdminID, "action", action, "err", err)
	}
}

func pageLimit(limit int) int32 {
	if limit < 1 || limit > 100 {
		return 50
	}
	return int32(limit)
}

func (s *service) entry(actor Actor, action, targetType, targetID, reason, before, after string) *domain.AuditLogEntry {
	return &domain.AuditLogEntry{
		EntryID:    id.New(),
		AdminID:    actor.AdminID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Reason:     reason,
		Before:     before,
		After:      after,
		IPAddress:  actor.IPAddress,
		CreatedAt:  s.now().UTC(),
	}
}

func (s *service) publish(ctx context.Context, eventType string, e *domain.AuditLogEntry) {
	if s.events == nil {
		return
	}
	ev := domain.Event{
		Type:      eventType,
		SubjectID: e.TargetID,
		Data: map[string]string{
			"admin_id": e.AdminID,
			"before":   e.Before,
			"after":    e.After,
		},
		OccurredAt: e.CreatedAt,
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		slog.Warn("event not published", "type", eventType, "subject_id", e.TargetID, "err", err)
	}
}
