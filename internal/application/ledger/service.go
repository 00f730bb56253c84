package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/qr-nexus/internal/domain"
	"github.com/qr-nexus/internal/infrastructure/metrics"
)

const (
	kindShare    = "share"
	kindReferral = "referral"
)

// Policy holds the award amounts and the share cooldown.
type Policy struct {
	ShareCooldown  time.Duration
	SharePoints    int64
	ReferralPoints int64
}

type Service interface {
	AwardSharePoints(ctx context.Context, userID, channel string) (*domain.ShareResult, error)
	RecordReferralConversion(ctx context.Context, referrerID string, visitor domain.Visitor) (*domain.ReferralResult, error)
	Points(ctx context.Context, userID string) (*domain.UserPoints, error)
	ReferralLink(userID string) domain.ReferralLink
}

type pointsStore interface {
	Get(ctx context.Context, userID string) (*domain.UserPoints, error)
	AwardShare(ctx context.Context, a domain.ShareAward) (*domain.UserPoints, error)
}

type referralStore interface {
	Convert(ctx context.Context, conv *domain.ReferralConversion, award int64) (bool, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}

type service struct {
	points    pointsStore
	referrals referralStore
	users     userStore
	events    eventPublisher
	policy    Policy
	baseURL   string
	now       func() time.Time
}

type ServiceDeps struct {
	PointsRepo   pointsStore
	ReferralRepo referralStore
	UserRepo     userStore
	Events       eventPublisher // optional
	Policy       Policy
	// PublicBaseURL prefixes referral links.
	PublicBaseURL string
	Now           func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		points:    deps.PointsRepo,
		referrals: deps.ReferralRepo,
		users:     deps.UserRepo,
		events:    deps.Events,
		policy:    deps.Policy,
		baseURL:   strings.TrimRight(deps.PublicBaseURL, "/"),
		now:       deps.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// AwardSharePoints credits the share award at most once per cooldown window.
// The window check and the credit are one conditional store write, so
// concurrent requests cannot both pass.
func (s *service) AwardSharePoints(ctx context.Context, userID, channel string) (*domain.ShareResult, error) {
	if channel == "" {
		channel = domain.DefaultShareChannel
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive() {
		metrics.LedgerAward(kindShare, metrics.ResultSkipped)
		return nil, fmt.Errorf("account %s cannot earn points: %w", u.Status, domain.ErrForbidden)
	}

	now := s.now()
	p, err := s.points.AwardShare(ctx, domain.ShareAward{
		UserID:   userID,
		Channel:  channel,
		Points:   s.policy.SharePoints,
		Now:      now,
		Cooldown: s.policy.ShareCooldown,
	})
	if err != nil {
		var cd *domain.CooldownError
		if errors.As(err, &cd) {
			metrics.LedgerAward(kindShare, metrics.ResultCooldown)
		} else {
			metrics.LedgerAward(kindShare, metrics.ResultFailed)
		}
		return nil, err
	}
	metrics.LedgerAward(kindShare, metrics.ResultOK)
	slog.Info("share points awarded", "user_id", userID, "channel", channel, "total", p.TotalPoints)
	s.publish(ctx, domain.Event{
		Type:      domain.EventShareAwarded,
		SubjectID: userID,
		Data: map[string]string{
			"channel": channel,
			"points":  strconv.FormatInt(s.policy.SharePoints, 10),
			"total":   strconv.FormatInt(p.TotalPoints, 10),
		},
		OccurredAt: now.UTC(),
	})
	return &domain.ShareResult{
		PointsAwarded: s.policy.SharePoints,
		PointsTotal:   p.TotalPoints,
		TotalShares:   p.TotalShares,
	}, nil
}

// RecordReferralConversion credits referrerID once per distinct visitor.
// Repeats and unknown referrers are normal outcomes, not errors.
func (s *service) RecordReferralConversion(ctx context.Context, referrerID string, visitor domain.Visitor) (*domain.ReferralResult, error) {
	if visitor.UserID == "" && visitor.Fingerprint == "" {
		return nil, fmt.Errorf("visitor is unidentified: %w", domain.ErrBadRequest)
	}
	if visitor.UserID != "" && visitor.UserID == referrerID {
		metrics.LedgerAward(kindReferral, metrics.ResultSkipped)
		return nil, fmt.Errorf("cannot refer yourself: %w", domain.ErrSelfReferral)
	}

	referrer, err := s.users.Get(ctx, referrerID)
	if errors.Is(err, domain.ErrNotFound) {
		metrics.LedgerAward(kindReferral, metrics.ResultSkipped)
		return &domain.ReferralResult{Awarded: false, Reason: domain.ReferralUnknownReferrer}, nil
	}
	if err != nil {
		return nil, err
	}
	if !referrer.IsActive() {
		metrics.LedgerAward(kindReferral, metrics.ResultSkipped)
		return &domain.ReferralResult{Awarded: false, Reason: domain.ReferralInactiveReferrer}, nil
	}

	now := s.now().UTC()
	conv := &domain.ReferralConversion{
		ReferrerID:         referrerID,
		VisitorKey:         visitor.Key(),
		ReferredUserID:     visitor.UserID,
		VisitorFingerprint: visitor.Fingerprint,
		CreatedAt:          now,
	}
	awarded, err := s.referrals.Convert(ctx, conv, s.policy.ReferralPoints)
	if err != nil {
		metrics.LedgerAward(kindReferral, metrics.ResultFailed)
		return nil, err
	}
	if !awarded {
		metrics.LedgerAward(kindReferral, metrics.ResultDup)
		return &domain.ReferralResult{Awarded: false, Reason: domain.ReferralAlreadyConverted}, nil
	}
	metrics.LedgerAward(kindReferral, metrics.ResultOK)
	slog.Info("referral converted", "referrer_id", referrerID, "visitor_key", conv.VisitorKey)
	s.publish(ctx, domain.Event{
		Type:      domain.EventReferralConverted,
		SubjectID: referrerID,
		Data: map[string]string{
			"points":           strconv.FormatInt(s.policy.ReferralPoints, 10),
			"referred_user_id": visitor.UserID,
		},
		OccurredAt: now,
	})
	return &domain.ReferralResult{Awarded: true}, nil
}

func (s *service) Points(ctx context.Context, userID string) (*domain.UserPoints, error) {
	return s.points.Get(ctx, userID)
}

func (s *service) ReferralLink(userID string) domain.ReferralLink {
	return domain.ReferralLink{
		ReferralCode: userID,
		ReferralLink: s.baseURL + "/r/" + userID,
	}
}

func (s *service) publish(ctx context.Context, ev domain.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		slog.Warn("event not published", "type", ev.Type, "subject_id", ev.SubjectID, "err", err)
	}
}
