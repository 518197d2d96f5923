package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/baharkarakas/paycore/internal/api/handlers"
	"github.com/baharkarakas/paycore/internal/auth"
	"github.com/baharkarakas/paycore/internal/config"
	"github.com/baharkarakas/paycore/internal/idempotency"
	"github.com/baharkarakas/paycore/internal/metrics"
	"github.com/baharkarakas/paycore/internal/middleware"
	"github.com/baharkarakas/paycore/internal/ratelimit"
	"github.com/baharkarakas/paycore/internal/services"
)

type RouterDeps struct {
	Cfg            config.Config
	Log            *slog.Logger
	Tokens         *auth.TokenManager
	Idempotency    *idempotency.Cache
	WebhookLimiter *ratelimit.Limiter
	MerchantSvc    *services.MerchantService
	TxnSvc         *services.TransactionService
	SettlementSvc  *services.SettlementService
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	if d.Cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestID, middleware.Recover, middleware.Logger(d.Log), middleware.HTTPMetrics)
	r.Use(middleware.RateLimit(d.Cfg.RateRPS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id", "Idempotent-Replayed", "Retry-After"},
	}))

	// health & metrics
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())

	mh := handlers.NewMerchantHandler(d.MerchantSvc, d.Log)
	th := handlers.NewTransactionHandler(d.TxnSvc, d.Log)
	sh := handlers.NewSettlementHandler(d.SettlementSvc, d.Log)
	authMW := middleware.NewAuthMiddleware(d.Tokens)
	idem := middleware.Idempotency(d.Idempotency, d.Log)

	r.Route("/api/v1", func(r chi.Router) {
		// ---------- onboarding & auth ----------
		r.Post("/merchants", mh.Create)
		r.Post("/auth/token", mh.Token)
		r.Post("/auth/refresh", mh.Refresh)

		// ---------- processor callbacks ----------
		r.With(middleware.WebhookRateLimit(d.WebhookLimiter, d.Log)).
			Post("/webhooks/settlements", sh.Webhook)

		// ---------- operator ----------
		r.With(middleware.AdminToken(d.Cfg.AdminToken)).Get("/admin/merchants", mh.List)

		// ---------- merchant scoped ----------
		r.Group(func(r chi.Router) {
			r.Use(authMW.Auth)

			r.Get("/merchants/me", mh.Me)

			r.With(idem).Post("/transactions", th.Initiate)
			r.With(idem).Post("/transactions/{id}/authorize", th.Authorize)
			r.Get("/transactions", th.List)
			r.Get("/transactions/{id}", th.Get)

			r.Get("/settlements", sh.List)
			r.Get("/settlements/{id}", sh.Get)
		})
	})

	return r
}
