package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ricirt/ping-queue/internal/domain"
)

// OutcomePolicy decides the fate of a single queue entry after one delivery
// attempt and applies it to the store.
type OutcomePolicy struct {
	store     Store
	transport Transport
	logger    *zap.Logger
}

func NewOutcomePolicy(store Store, transport Transport, logger *zap.Logger) *OutcomePolicy {
	return &OutcomePolicy{store: store, transport: transport, logger: logger}
}

// Process attempts delivery of e under policy and then removes or requeues it.
//
//	delivered  → RemoveEntry
//	retryable failure, attempts < MaxAttempts → attempts+1, SaveEntry
//	anything else → attempts+1, RemoveEntry (abandoned)
//
// A returned error means the store could not be updated; the entry is then
// left as it was before the pass.
func (p *OutcomePolicy) Process(ctx context.Context, policy domain.Policy, e *domain.QueueEntry) (domain.Outcome, error) {
	log := p.logger.With(
		zap.String("entry_id", e.ID),
		zap.String("target", e.Target.Name),
		zap.String("weblog", e.Weblog.Handle),
	)
	subject := domain.Subject{Name: e.Weblog.Name, URL: e.Weblog.AbsoluteURL(policy.BaseURL)}

	if policy.LogOnly {
		log.Info("log-only mode, ping not sent",
			zap.String("ping_url", e.Target.PingURL),
			zap.String("subject_url", subject.URL),
		)
	} else {
		res, err := p.transport.Send(ctx, e.Target, subject)
		if err != nil {
			return p.handleFailure(ctx, log, policy, e, err)
		}
		if res != nil {
			log.Debug("ping sent",
				zap.Int("status", res.StatusCode),
				zap.Bool("flerror", res.FlError),
				zap.String("message", res.Message),
			)
		}
	}

	// Removal stays out of handleFailure so a store error here is never
	// counted as a failed delivery.
	if err := p.store.RemoveEntry(ctx, e); err != nil {
		return domain.OutcomeDelivered, fmt.Errorf("remove delivered %s: %w", e, err)
	}
	return domain.OutcomeDelivered, nil
}

func (p *OutcomePolicy) handleFailure(
	ctx context.Context,
	log *zap.Logger,
	policy domain.Policy,
	e *domain.QueueEntry,
	sendErr error,
) (domain.Outcome, error) {
	attempts := e.IncrementAttempts()

	if attempts < policy.MaxAttempts && p.transport.IsRetryable(sendErr) {
		if err := p.store.SaveEntry(ctx, e); err != nil {
			return domain.OutcomeRequeued, fmt.Errorf("requeue %s: %w", e, err)
		}
		log.Debug("ping failed, requeued",
			zap.Int("attempts", attempts),
			zap.Int("max_attempts", policy.MaxAttempts),
			zap.Error(sendErr),
		)
		return domain.OutcomeRequeued, nil
	}

	log.Warn("ping abandoned",
		zap.Int("attempts", attempts),
		zap.Int("max_attempts", policy.MaxAttempts),
		zap.Error(sendErr),
	)
	if err := p.store.RemoveEntry(ctx, e); err != nil {
		return domain.OutcomeAbandoned, fmt.Errorf("remove abandoned %s: %w", e, err)
	}
	return domain.OutcomeAbandoned, nil
}
