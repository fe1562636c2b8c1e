package controller

import (
	"time"

	appCheckout "github.com/aulaviva/checkout/internal/application/checkout"
	"github.com/aulaviva/checkout/internal/application/entitlement"
	"github.com/aulaviva/checkout/internal/application/reconcile"
	"github.com/aulaviva/checkout/internal/gateway"
	"github.com/aulaviva/checkout/internal/infrastructure/config"
	"github.com/aulaviva/checkout/internal/infrastructure/observability"
	customMW "github.com/aulaviva/checkout/internal/middleware"
	"github.com/aulaviva/checkout/internal/repository/postgres"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type RouterDeps struct {
	Pool            *pgxpool.Pool
	RedisClient     *redis.Client
	IdempotencyRepo *postgres.IdempotencyRepository
	IdempotencyTTL  time.Duration
	Metrics         *observability.Metrics
	CORSConfig      config.CORSConfig
	JWTSecret       string

	Gateways             *gateway.Factory
	StripePublishableKey string

	CheckAccess  *entitlement.CheckAccessUseCase
	GrantFree    *entitlement.GrantFreeUseCase
	Start        *appCheckout.StartCheckoutUseCase
	GetSession   *appCheckout.GetSessionUseCase
	ListSessions *appCheckout.ListSessionsUseCase
	SelectMethod *appCheckout.SelectMethodUseCase
	Pay          *appCheckout.ProcessPaymentUseCase
	GetInvoice   *appCheckout.GetInvoiceUseCase
	Resend       *appCheckout.ResendConfirmationUseCase
	Reconciler   *reconcile.Reconciler
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSConfig.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: deps.CORSConfig.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.Metrics(deps.Metrics))

	healthH := NewHealthController(deps.Pool, deps.RedisClient)
	entitlementH := NewEntitlementController(deps.CheckAccess, deps.GrantFree)
	checkoutH := NewCheckoutController(deps.Start, deps.GetSession, deps.ListSessions, deps.SelectMethod, deps.Pay)
	paymentH := NewPaymentController(deps.Start, deps.SelectMethod, deps.Pay, deps.GetInvoice, deps.Resend, deps.Reconciler, deps.Gateways, deps.StripePublishableKey)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		idempotencyMW := customMW.Idempotency(deps.IdempotencyRepo, deps.IdempotencyTTL)
		requireAuth := customMW.RequireAuth(deps.JWTSecret)
		optionalAuth := customMW.OptionalAuth(deps.JWTSecret)

		// The client bootstrap config carries only public material.
		r.Get("/payments/config", paymentH.Config)

		// Entitlement: the access check works for anonymous visitors too.
		r.With(optionalAuth).Get("/content/{contentType}/{id}/access-status", entitlementH.AccessStatus)
		r.With(requireAuth).Post("/content/{contentType}/{id}/access", entitlementH.GrantAccess)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			// Checkout sessions
			r.With(idempotencyMW).Post("/checkout/sessions", checkoutH.Start)
			r.Get("/checkout/sessions", checkoutH.List)
			r.Get("/checkout/sessions/{id}", checkoutH.Get)
			r.Post("/checkout/sessions/{id}/method", checkoutH.SelectMethod)
			r.Post("/checkout/sessions/{id}/pay", checkoutH.Pay)

			// Payments
			r.Post("/payments/tokenize", paymentH.Tokenize)
			r.With(idempotencyMW).Post("/payments/process", paymentH.Process)
			r.Get("/payments/verify-session/{sessionID}", paymentH.VerifySession)
			r.Get("/payments/verify-intent/{paymentIntentID}", paymentH.VerifyIntent)
			r.Get("/payments/latest-payment", paymentH.LatestPayment)
			r.Get("/payments/latest-payment/{contentType}/{contentID}", paymentH.LatestPayment)
			r.Get("/payments/confirmation", paymentH.Confirmation)
			r.Post("/payments/resend-confirmation", paymentH.ResendConfirmation)

			// Invoices
			r.Get("/invoices/{invoiceID}/download", paymentH.DownloadInvoice)
		})
	})

	return r
}
