package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aulaviva/checkout/internal/application/reconcile"
	"github.com/aulaviva/checkout/internal/bootstrap"
	"github.com/aulaviva/checkout/internal/domain/checkout"
	domainErrors "github.com/aulaviva/checkout/internal/domain/errors"
	"github.com/aulaviva/checkout/internal/gateway"
	infraRedis "github.com/aulaviva/checkout/internal/infrastructure/redis"
	"github.com/aulaviva/checkout/internal/repository/postgres"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "checkout-worker", "checkout_worker")
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
	streamProducer := infraRedis.NewStreamProducer(app.Redis)

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
	reconciler := reconcile.New(sessionRepo, transactionRepo, grantRepo, gateways, outboxRepo, txManager, locker)
	sweeper := reconcile.NewSweeper(
		reconciler,
		sessionRepo,
		app.Config.Checkout.PendingExpiry,
		int(app.Config.Worker.BatchSize),
		app.Logger,
	)

	// --- Confirmation stream consumer ---
	workerCfg := app.Config.Worker
	consumer := infraRedis.NewStreamConsumer(
		app.Redis,
		infraRedis.ConfirmationStream,
		workerCfg.ConsumerGroup,
		app.Config.InstanceID,
		workerCfg.BatchSize,
		workerCfg.BlockDuration,
	)
	if err := consumer.CreateGroup(ctx); err != nil {
		app.Logger.Error().Err(err).Msg("Failed to create consumer group (may already exist)")
	}

	app.Logger.Info().
		Str("stream", infraRedis.ConfirmationStream).
		Str("group", workerCfg.ConsumerGroup).
		Str("consumer", app.Config.InstanceID).
		Msg("Worker started, listening for confirmations...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Confirmation processor (reads gateway confirmations from Redis Streams).
	g.Go(func() error {
		return runConfirmationProcessor(gCtx, app, consumer, streamProducer, reconciler)
	})

	// 2. Outbox processor (polls outbox table and publishes to Redis Streams).
	g.Go(func() error {
		return runOutboxProcessor(gCtx, app.Logger, txManager, outboxRepo, streamProducer, workerCfg.OutboxPollInterval)
	})

	// 3. Awaiting-session sweep (re-verifies parked sessions, expires stale ones).
	g.Go(func() error {
		return runSweep(gCtx, app.Logger, sweeper, workerCfg.SweepInterval)
	})

	// 4. Idempotency key cleanup.
	g.Go(func() error {
		return runIdempotencyCleanup(gCtx, app.Logger, idempotencyRepo)
	})

	// 5. Wait for shutdown signal.
	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down worker...")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}

// runConfirmationProcessor consumes confirmation messages and resolves each
// through the reconciler. Messages carry a session id, a gateway reference,
// or both; the reconciler's locking makes duplicate deliveries harmless.
func runConfirmationProcessor(
	ctx context.Context,
	app *bootstrap.App,
	consumer *infraRedis.StreamConsumer,
	producer *infraRedis.StreamProducer,
	reconciler *reconcile.Reconciler,
) error {
	logger := app.Logger
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		streams, err := consumer.Read(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to read from stream")
			time.Sleep(1 * time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				sessionIDStr, _ := msg.Values["session_id"].(string)
				reference, _ := msg.Values["gateway_reference"].(string)

				var reconcileErr error
				switch {
				case reference != "":
					_, reconcileErr = reconciler.ByGatewayReference(ctx, "", reference)
				case sessionIDStr != "":
					sessionID, err := uuid.Parse(sessionIDStr)
					if err != nil {
						logger.Error().Str("raw", sessionIDStr).Msg("Invalid session ID in stream message")
						consumer.Ack(ctx, msg.ID)
						continue
					}
					_, reconcileErr = reconciler.BySession(ctx, "", sessionID)
				default:
					logger.Error().Str("message_id", msg.ID).Msg("Confirmation message without identifier")
					consumer.Ack(ctx, msg.ID)
					continue
				}

				switch {
				case reconcileErr == nil:
					app.Metrics.WorkerMessagesProcessed.WithLabelValues(infraRedis.ConfirmationStream, "success").Inc()
				case errors.Is(reconcileErr, domainErrors.ErrReconciliationFailed):
					// transient verify failure, leave the message pending for a retry
					logger.Warn().Err(reconcileErr).Str("reference", reference).Msg("Verify failed, will retry")
					continue
				default:
					logger.Error().Err(reconcileErr).
						Str("reference", reference).
						Str("session_id", sessionIDStr).
						Msg("Failed to reconcile confirmation")
					if err := producer.PublishToDLQ(ctx, msg.ID, reconcileErr.Error(), msg.Values); err != nil {
						logger.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to publish to DLQ")
					}
					app.Metrics.WorkerMessagesProcessed.WithLabelValues(infraRedis.ConfirmationStream, "error").Inc()
				}

				consumer.Ack(ctx, msg.ID)
			}
		}
	}
}

func runOutboxProcessor(
	ctx context.Context,
	logger zerolog.Logger,
	txManager *postgres.TxManager,
	outboxRepo *postgres.OutboxRepository,
	streamProducer *infraRedis.StreamProducer,
	pollInterval time.Duration,
) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		err := txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			entries, err := outboxRepo.GetPending(txCtx, 10)
			if err != nil {
				return err
			}
			for _, entry := range entries {
				if err := streamProducer.PublishEvent(
					ctx, entry.EventType, entry.AggregateID, entry.Payload,
				); err != nil {
					logger.Error().Err(err).Str("outbox_id", entry.ID.String()).Msg("Failed to publish outbox event")
					outboxRepo.MarkFailed(txCtx, entry.ID)
					continue
				}
				// A pending charge also feeds the confirmations stream so the
				// consumer starts polling the gateway for it.
				if sessionID, ref, ok := entry.PendingConfirmation(); ok {
					if err := streamProducer.PublishConfirmation(ctx, sessionID, ref); err != nil {
						logger.Error().Err(err).Str("outbox_id", entry.ID.String()).Msg("Failed to enqueue confirmation")
					}
				}
				outboxRepo.MarkPublished(txCtx, entry.ID)
			}
			return nil
		})
		if err != nil {
			logger.Error().Err(err).Msg("Outbox processor error")
		}
	}
}

func runSweep(
	ctx context.Context,
	logger zerolog.Logger,
	sweeper *reconcile.Sweeper,
	interval time.Duration,
) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if err := sweeper.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("Sweep error")
		}
	}
}

func runIdempotencyCleanup(
	ctx context.Context,
	logger zerolog.Logger,
	repo *postgres.IdempotencyRepository,
) error {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		deleted, err := repo.Cleanup(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Idempotency cleanup error")
			continue
		}
		if deleted > 0 {
			logger.Info().Int64("deleted", deleted).Msg("Cleaned up expired idempotency keys")
		}
	}
}
