package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wolfman30/love-auditor/internal/checkout"
	"github.com/wolfman30/love-auditor/internal/entitlements"
	"github.com/wolfman30/love-auditor/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/love-auditor/internal/http/middleware"
	"github.com/wolfman30/love-auditor/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	AuditHandler   *handlers.AuditHandler
	ChatHandler    *handlers.ChatHandler
	HealthHandler  http.Handler
	Checkout       *checkout.Handler
	Referrals      checkout.ReferralStore
	Webhook        *entitlements.LemonSqueezyWebhookHandler
	MetricsHandler http.Handler

	CORSAllowedOrigins []string
	UserAuthSecret     string
	SecureCookies      bool
	RateLimitRPS       float64
	RateLimitBurst     int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		health := cfg.HealthHandler
		if health == nil {
			health = handlers.NewHealthHandler(nil, cfg.Logger)
		}
		public.Method(http.MethodGet, "/health", health)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.Webhook != nil {
			public.Post("/webhooks/lemonsqueezy", cfg.Webhook.Handle)
		}
	})

	// Visitor-facing endpoints carry optional user identity and referral capture.
	r.Group(func(app chi.Router) {
		app.Use(httpmiddleware.UserAuth(cfg.UserAuthSecret))
		app.Use(checkout.CaptureReferral(cfg.Referrals, cfg.SecureCookies, cfg.Logger))

		if cfg.Checkout != nil {
			app.Get("/checkout", cfg.Checkout.Redirect)
		}

		app.Route("/api", func(api chi.Router) {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
			if cfg.AuditHandler != nil {
				api.Post("/roast", cfg.AuditHandler.Roast)
				api.Get("/session/{sessionID}", cfg.AuditHandler.GetSession)
				api.Delete("/session/{sessionID}", cfg.AuditHandler.ResetSession)
			}
			if cfg.ChatHandler != nil {
				api.With(httpmiddleware.RequireUser).Post("/chat", cfg.ChatHandler.Chat)
			}
		})
	})

	return r
}
