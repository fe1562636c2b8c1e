package reconcile

import (
	"context"
	"errors"
	"time"

	domainCheckout "github.com/aulaviva/checkout/internal/domain/checkout"
	domainErrors "github.com/aulaviva/checkout/internal/domain/errors"
	"github.com/rs/zerolog"
)

// Sweeper re-verifies sessions parked awaiting external confirmation and
// expires the ones past the pending window. Runs only in the worker, never
// inside a request path.
type Sweeper struct {
	reconciler *Reconciler
	sessions   domainCheckout.Repository
	// pendingExpiry is how long an awaiting session may stay unresolved
	// before the sweep marks it expired. A later succeeded verification
	// still wins and issues the grant.
	pendingExpiry time.Duration
	batchSize     int
	logger        zerolog.Logger
}

// NewSweeper creates a Sweeper.
func NewSweeper(reconciler *Reconciler, sessions domainCheckout.Repository, pendingExpiry time.Duration, batchSize int, logger zerolog.Logger) *Sweeper {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Sweeper{
		reconciler:    reconciler,
		sessions:      sessions,
		pendingExpiry: pendingExpiry,
		batchSize:     batchSize,
		logger:        logger,
	}
}

// Run performs one sweep pass. Errors on individual sessions are logged and
// skipped so one bad charge cannot stall the rest of the batch.
func (s *Sweeper) Run(ctx context.Context) error {
	sessions, err := s.sessions.ListAwaitingSince(ctx, time.Now(), s.batchSize)
	if err != nil {
		return err
	}

	for _, session := range sessions {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		result, err := s.reconciler.BySession(ctx, "", session.ID)
		if err != nil {
			if errors.Is(err, domainErrors.ErrReconciliationFailed) {
				s.logger.Warn().
					Str("session_id", session.ID.String()).
					Err(err).
					Msg("verification unavailable, will retry next sweep")
				continue
			}
			s.logger.Error().
				Str("session_id", session.ID.String()).
				Err(err).
				Msg("sweep reconciliation failed")
			continue
		}

		if result.Settled {
			s.logger.Info().
				Str("session_id", session.ID.String()).
				Str("gateway_reference", result.Transaction.GatewayReference).
				Msg("late settlement confirmed")
			continue
		}

		if s.pendingExpiry > 0 &&
			result.Session.Status == domainCheckout.StatusAwaitingExternal &&
			time.Since(result.Session.CreatedAt) > s.pendingExpiry {
			if err := s.expire(ctx, result.Session); err != nil {
				s.logger.Error().
					Str("session_id", session.ID.String()).
					Err(err).
					Msg("expiring session failed")
			}
		}
	}
	return nil
}

func (s *Sweeper) expire(ctx context.Context, session *domainCheckout.Session) error {
	if err := session.MarkExpired(); err != nil {
		return err
	}
	if err := s.sessions.Update(ctx, session); err != nil {
		return err
	}
	s.logger.Info().
		Str("session_id", session.ID.String()).
		Dur("pending_for", time.Since(session.CreatedAt)).
		Msg("session expired after pending window")
	return nil
}
