package http

import (
	"context"
	"net/http"
	"time"

	"github.com/civic-alerts/internal/application/issue"
	"github.com/civic-alerts/internal/application/notification"
	"github.com/civic-alerts/internal/application/otp"
	"github.com/civic-alerts/internal/application/stream"
	"github.com/civic-alerts/internal/config"
	"github.com/civic-alerts/internal/domain"
	jwtinfra "github.com/civic-alerts/internal/infrastructure/jwt"
	"github.com/civic-alerts/internal/transport/http/handler"
	appmiddleware "github.com/civic-alerts/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo         UserRepository
	IssueRepo        IssueRepository
	NotificationRepo NotificationRepository
	PhoneLimiter     Limiter
	EmailLimiter     Limiter
	PhoneCodes       CodeStore
	EmailCodes       CodeStore
	Mailer           Mailer
	SMSSender        SMSSender
	Dispatcher       Notifier
	IssueFeed        *stream.IssueFeed
	NotificationFeed *stream.NotificationFeed
	JWTProvider      *jwtinfra.Provider
}

// NewRouter builds and returns the application router. ctx bounds the
// lifetime of background helpers such as the rate limiter sweeper.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Last-Event-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.JWTProvider)
	streamAuthMw := appmiddleware.AuthQuery(deps.JWTProvider)

	// Per-IP guard in front of the ledger-backed OTP throttles.
	otpRL := appmiddleware.NewRateLimiter(ctx, rate.Every(200*time.Millisecond), 10)

	otpSvc := otp.NewService(otp.ServiceDeps{
		UserRepo:     deps.UserRepo,
		PhoneLimiter: deps.PhoneLimiter,
		EmailLimiter: deps.EmailLimiter,
		PhoneCodes:   deps.PhoneCodes,
		EmailCodes:   deps.EmailCodes,
		Mailer:       deps.Mailer,
		SMSSender:    deps.SMSSender,
	})
	issueSvc := issue.NewService(issue.ServiceDeps{
		IssueRepo:  deps.IssueRepo,
		Dispatcher: deps.Dispatcher,
		Feed:       deps.IssueFeed,
	})
	inboxSvc := notification.NewService(deps.NotificationRepo)

	healthH := handler.NewHealthHandler()
	otpH := handler.NewOTPHandler(otpSvc)
	issueH := handler.NewIssueHandler(issueSvc)
	notifH := handler.NewNotificationHandler(inboxSvc)
	notifyH := handler.NewNotifyHandler(deps.Dispatcher)
	streamH := handler.NewStreamHandler(deps.IssueFeed, deps.NotificationFeed, cfg.StreamIdleTimeout)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Route("/otp", func(r chi.Router) {
			r.Use(otpRL.Limit)
			r.Post("/phone/request", otpH.RequestPhone)
			r.Post("/phone/verify", otpH.VerifyPhone)
			r.Post("/email/request", otpH.RequestEmail)
			r.Post("/email/verify", otpH.VerifyEmail)
		})
		r.Get("/issues/{id}/stream", streamH.IssueStream)

		// EventSource cannot set headers, so the token may come in the query.
		r.With(streamAuthMw).Get("/notifications/stream", streamH.NotificationStream)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/notifications", notifH.List)
			r.Get("/notifications/unread-count", notifH.UnreadCount)
			r.Post("/notifications/mark-read", notifH.MarkRead)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Put("/admin/issues/{id}/status", issueH.UpdateStatus)
				r.Post("/admin/issues/{id}/comments", issueH.PublishComment)
				r.Post("/admin/issues/{id}/votes", issueH.RecordVote)
				r.Post("/notify/test", notifyH.Test)
				r.Get("/notify/status", notifyH.Status)
			})
		})
	})

	return r
}
