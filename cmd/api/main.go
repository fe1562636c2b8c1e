package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	appCheckout "github.com/aulaviva/checkout/internal/application/checkout"
	"github.com/aulaviva/checkout/internal/application/entitlement"
	"github.com/aulaviva/checkout/internal/application/reconcile"
	"github.com/aulaviva/checkout/internal/bootstrap"
	"github.com/aulaviva/checkout/internal/controller"
	"github.com/aulaviva/checkout/internal/domain/checkout"
	"github.com/aulaviva/checkout/internal/gateway"
	infraRedis "github.com/aulaviva/checkout/internal/infrastructure/redis"
	"github.com/aulaviva/checkout/internal/repository/postgres"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.New(ctx, "checkout-api", "checkout")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Repositories ---
	sessionRepo := postgres.NewSessionRepository(app.Pool)
	transactionRepo := postgres.NewTransactionRepository(app.Pool)
	grantRepo := postgres.NewGrantRepository(app.Pool)
	outboxRepo := postgres.NewOutboxRepository(app.Pool)
	idempotencyRepo := postgres.NewIdempotencyRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)

	// --- Gateways ---
	gateways := gateway.NewFactory()
	if key := app.Config.Gateways.Stripe.SecretKey; key != "" {
		gateways.Register(gateway.NewStripeGateway(key))
	}
	if p := app.Config.Gateways.Paytek; p.BaseURL != "" {
		gateways.Register(gateway.NewPaytekGateway(p.BaseURL, p.APIKey))
	}
	if app.Config.Gateways.Stripe.SecretKey == "" && app.Config.Gateways.Paytek.BaseURL == "" {
		app.Logger.Warn().Msg("No payment gateway configured, using simulated gateways")
		gateways.Register(gateway.NewMockGateway(checkout.GatewayStripe))
		gateways.Register(gateway.NewMockGateway(checkout.GatewayPaytek))
	}

	locker := infraRedis.NewLockManager(app.Redis, app.Config.Checkout.LockTTL)

	// --- Use cases ---
	checkAccessUC := entitlement.NewCheckAccessUseCase(grantRepo)
	grantFreeUC := entitlement.NewGrantFreeUseCase(grantRepo, outboxRepo, txManager)
	startUC := appCheckout.NewStartCheckoutUseCase(sessionRepo, grantRepo, outboxRepo, txManager)
	getSessionUC := appCheckout.NewGetSessionUseCase(sessionRepo)
	listSessionsUC := appCheckout.NewListSessionsUseCase(sessionRepo)
	selectMethodUC := appCheckout.NewSelectMethodUseCase(sessionRepo)
	payUC := appCheckout.NewProcessPaymentUseCase(sessionRepo, transactionRepo, grantRepo, gateways, outboxRepo, txManager)
	getInvoiceUC := appCheckout.NewGetInvoiceUseCase(sessionRepo, transactionRepo)
	resendUC := appCheckout.NewResendConfirmationUseCase(sessionRepo, transactionRepo, outboxRepo)
	reconciler := reconcile.New(sessionRepo, transactionRepo, grantRepo, gateways, outboxRepo, txManager, locker)

	// --- Build router ---
	router := controller.NewRouter(controller.RouterDeps{
		Pool:            app.Pool,
		RedisClient:     app.Redis,
		IdempotencyRepo: idempotencyRepo,
		IdempotencyTTL:  app.Config.Worker.IdempotencyTTL,
		Metrics:         app.Metrics,
		CORSConfig:      app.Config.Server.CORS,
		JWTSecret:       app.Config.Auth.JWTSecret,

		Gateways:             gateways,
		StripePublishableKey: app.Config.Gateways.Stripe.PublishableKey,
		CheckAccess:     checkAccessUC,
		GrantFree:       grantFreeUC,
		Start:           startUC,
		GetSession:      getSessionUC,
		ListSessions:    listSessionsUC,
		SelectMethod:    selectMethodUC,
		Pay:             payUC,
		GetInvoice:      getInvoiceUC,
		Resend:          resendUC,
		Reconciler:      reconciler,
	})

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	app.Logger.Info().Msg("Server exited")
}
