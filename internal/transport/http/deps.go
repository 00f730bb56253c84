package http

import (
	"github.com/qr-nexus/internal/application/admin"
	"github.com/qr-nexus/internal/application/code"
	"github.com/qr-nexus/internal/application/engagement"
	"github.com/qr-nexus/internal/application/identity"
	"github.com/qr-nexus/internal/application/ledger"
	"github.com/qr-nexus/internal/application/qr"
	"github.com/qr-nexus/internal/application/session"
	"github.com/qr-nexus/internal/application/user"
	"github.com/qr-nexus/internal/application/vault"
	"github.com/qr-nexus/internal/config"
	"github.com/qr-nexus/internal/infrastructure/dynamo"
	jwtinfra "github.com/qr-nexus/internal/infrastructure/jwt"
	s3infra "github.com/qr-nexus/internal/infrastructure/s3"
	"github.com/qr-nexus/internal/infrastructure/sns"
)

// Deps holds the infrastructure adapters the application services are built from.
type Deps struct {
	UserRepo     *dynamo.UserRepo
	SessionRepo  *dynamo.SessionRepo
	IdentityRepo *dynamo.IdentityRepo
	CodeRepo     *dynamo.CodeRepo
	StatRepo     *dynamo.ScanStatRepo
	EventRepo    *dynamo.EventRepo
	PointsRepo   *dynamo.PointsRepo
	ReferralRepo *dynamo.ReferralRepo
	AuditRepo    *dynamo.AuditRepo
	Images       *s3infra.Store
	Events       sns.Publisher
	JWTProvider  *jwtinfra.Provider
}

// Services is the full set of application services the router serves.
type Services struct {
	Users      user.Service
	Sessions   session.Service
	Identities identity.Service
	Vaults     vault.Service
	Codes      code.Service
	Engagement engagement.Service
	Ledger     ledger.Service
	Admin      admin.Service
	QR         qr.Service
}

// NewServices wires every application service to its stores.
func NewServices(cfg *config.Config, d *Deps) *Services {
	codeSvc := code.NewService(code.ServiceDeps{
		CodeRepo:     d.CodeRepo,
		IdentityRepo: d.IdentityRepo,
		StatRepo:     d.StatRepo,
		Images:       d.Images,
	})
	return &Services{
		Users: user.NewService(d.UserRepo),
		Sessions: session.NewService(session.ServiceDeps{
			UserRepo:        d.UserRepo,
			SessionRepo:     d.SessionRepo,
			JWTProvider:     d.JWTProvider,
			RefreshTokenDur: cfg.RefreshTokenExpiry,
		}),
		Identities: identity.NewService(identity.ServiceDeps{
			IdentityRepo: d.IdentityRepo,
			CodeRepo:     d.CodeRepo,
			StatRepo:     d.StatRepo,
			Images:       d.Images,
		}),
		Vaults: vault.NewService(d.IdentityRepo, d.CodeRepo, d.StatRepo),
		Codes:  codeSvc,
		Engagement: engagement.NewService(engagement.ServiceDeps{
			CodeRepo:     d.CodeRepo,
			IdentityRepo: d.IdentityRepo,
			StatRepo:     d.StatRepo,
			EventRepo:    d.EventRepo,
			Ownership:    codeSvc,
			Timeout:      cfg.StoreTimeout,
			EventTTL:     cfg.EngagementEventTTL,
		}),
		Ledger: ledger.NewService(ledger.ServiceDeps{
			PointsRepo:   d.PointsRepo,
			ReferralRepo: d.ReferralRepo,
			UserRepo:     d.UserRepo,
			Events:       d.Events,
			Policy: ledger.Policy{
				ShareCooldown:  cfg.Ledger.ShareCooldown,
				SharePoints:    cfg.Ledger.SharePoints,
				ReferralPoints: cfg.Ledger.ReferralPoints,
			},
			PublicBaseURL: cfg.PublicBaseURL,
		}),
		Admin: admin.NewService(admin.ServiceDeps{
			UserRepo:     d.UserRepo,
			PointsRepo:   d.PointsRepo,
			AuditRepo:    d.AuditRepo,
			SessionRepo:  d.SessionRepo,
			IdentityRepo: d.IdentityRepo,
			CodeRepo:     d.CodeRepo,
			Events:       d.Events,
		}),
		QR: qr.NewService(codeSvc, d.Images, cfg.PublicBaseURL),
	}
}
