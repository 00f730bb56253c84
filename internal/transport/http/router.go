package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/qr-nexus/internal/config"
	"github.com/qr-nexus/internal/domain"
	"github.com/qr-nexus/internal/infrastructure/metrics"
	"github.com/qr-nexus/internal/transport/http/handler"
	appmiddleware "github.com/qr-nexus/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, verifier appmiddleware.TokenVerifier, svcs *Services) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	trusted, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		slog.Warn("ignoring invalid trusted proxy entries", "err", err)
	}
	r.Use(appmiddleware.RealIP(trusted))
	r.Use(metrics.Instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(verifier)
	optionalAuth := appmiddleware.OptionalAuth(verifier)
	adminOnly := appmiddleware.RequireRole(domain.RoleAdmin)

	// Credential endpoints and anonymous counter writes share a strict
	// per-IP bucket; the redirects get a looser one.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)
	publicRL := appmiddleware.NewRateLimiter(rate.Limit(20), 40)

	healthH := handler.NewHealthHandler()
	userH := handler.NewUserHandler(svcs.Users, svcs.Sessions)
	sessionH := handler.NewSessionHandler(svcs.Sessions)
	identityH := handler.NewIdentityHandler(svcs.Identities, svcs.Vaults)
	codeH := handler.NewCodeHandler(svcs.Codes, svcs.Engagement, svcs.QR)
	engagementH := handler.NewEngagementHandler(svcs.Engagement, svcs.Ledger, cfg.FallbackURL, cfg.LandingURL)
	pointsH := handler.NewPointsHandler(svcs.Ledger)
	adminH := handler.NewAdminHandler(svcs.Admin)

	r.Get("/health", healthH.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(publicRL.Limit)
		r.Get("/q/{codeId}", engagementH.ResolveQR)
		r.With(optionalAuth).Get("/r/{referrerId}", engagementH.FollowReferral)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health/{action}", healthH.Ping)

		// Public
		r.With(sensitiveRL.Limit).Post("/users", userH.Register)
		r.With(sensitiveRL.Limit).Post("/sessions/login", sessionH.Login)
		r.With(sensitiveRL.Limit).Post("/sessions/refresh", sessionH.Refresh)
		r.With(sensitiveRL.Limit).Post("/track/{id}", engagementH.Track)
		r.Get("/codes/metadata", codeH.Catalog)
		r.Get("/discovery/hub", identityH.Hub)
		r.With(publicRL.Limit).Get("/discovery/stats", adminH.PlatformStats)
		r.With(optionalAuth).Get("/vault/{identityId}", identityH.Vault)
		r.With(sensitiveRL.Limit, optionalAuth).Post("/referrals/{referrerId}", pointsH.Refer)

		// Authenticated
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/users/me", userH.Me)
			r.Put("/users/me", userH.UpdateMe)
			r.Put("/users/me/password", userH.ChangePassword)

			r.Get("/sessions/current", sessionH.GetCurrent)
			r.Post("/sessions/logout", sessionH.Logout)

			r.Post("/identities", identityH.Claim)
			r.Get("/identities/me", identityH.GetMine)
			r.Put("/identities/me", identityH.UpdateMine)
			r.Delete("/identities/me", identityH.DeleteMine)

			r.Post("/codes", codeH.Create)
			r.Put("/codes/{id}", codeH.Update)
			r.Delete("/codes/{id}", codeH.Delete)
			r.Get("/codes/{id}/stats", codeH.Stats)
			r.Get("/codes/{id}/qr", codeH.QR)

			r.Get("/points", pointsH.Get)
			r.Post("/points/share", pointsH.Share)
			r.Get("/referrals/link", pointsH.ReferralLink)

			r.Group(func(r chi.Router) {
				r.Use(adminOnly)
				r.Get("/admin/overview", adminH.Overview)
				r.Get("/admin/audit-logs", adminH.AuditLogs)
				r.Get("/admin/users", adminH.Users)
				r.Get("/admin/identities", adminH.Identities)
				r.Post("/admin/users/{id}/points", adminH.AdjustPoints)
				r.Put("/admin/users/{id}/status", adminH.SetUserStatus)
			})
		})
	})

	return r
}
