package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ricirt/ping-queue/internal/domain"
	"github.com/ricirt/ping-queue/internal/pinger"
)

// Store persists pending queue entries.
type Store interface {
	ListEntries(ctx context.Context) ([]*domain.QueueEntry, error)
	SaveEntry(ctx context.Context, e *domain.QueueEntry) error
	RemoveEntry(ctx context.Context, e *domain.QueueEntry) error
}

// Transport delivers one ping and classifies its failures.
type Transport interface {
	Send(ctx context.Context, target domain.PingTarget, subject domain.Subject) (*pinger.Result, error)
	IsRetryable(err error) bool
}

// PolicySource returns the processing policy currently in force.
type PolicySource interface {
	Policy(ctx context.Context) (domain.Policy, error)
}

// Pass results reported to MetricHooks.OnPass and PassSummary.Result.
const (
	PassCompleted   = "completed"
	PassSuspended   = "suspended"
	PassNoBaseURL   = "no_base_url"
	PassPolicyError = "policy_error"
	PassListError   = "list_error"
	PassAborted     = "aborted"
)

// MetricHooks carries the metric callback functions injected by main.
// Nil fields are no-ops.
type MetricHooks struct {
	OnPass  func(result string, duration time.Duration, snapshot int)
	OnEntry func(outcome domain.Outcome)
}

// PassSummary describes the most recent pass. It lives in memory only.
type PassSummary struct {
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Result     string    `json:"result"`
	Snapshot   int       `json:"snapshot"`
	Delivered  int       `json:"delivered"`
	Requeued   int       `json:"requeued"`
	Abandoned  int       `json:"abandoned"`
	Errors     int       `json:"errors"`
}

// ErrAlreadyInitialized is returned by Init when the process-wide drainer exists.
var ErrAlreadyInitialized = errors.New("drainer already initialized")

var (
	instanceMu sync.Mutex
	instance   *Drainer
)

// Init builds the process-wide drainer. It may be called once.
func Init(store Store, transport Transport, policy PolicySource, logger *zap.Logger, hooks MetricHooks) (*Drainer, error) {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instance != nil {
		return nil, ErrAlreadyInitialized
	}
	instance = NewDrainer(store, transport, policy, logger, hooks)
	return instance, nil
}

// Instance returns the drainer built by Init, or nil.
func Instance() *Drainer {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	return instance
}

// Drainer runs passes over the ping queue. At most one pass runs at a time.
type Drainer struct {
	mu      sync.Mutex
	store   Store
	outcome *OutcomePolicy
	policy  PolicySource
	logger  *zap.Logger
	hooks   MetricHooks

	lastMu sync.RWMutex
	last   *PassSummary
}

// NewDrainer builds a drainer that is not registered as the process-wide instance.
func NewDrainer(store Store, transport Transport, policy PolicySource, logger *zap.Logger, hooks MetricHooks) *Drainer {
	if hooks.OnPass == nil {
		hooks.OnPass = func(string, time.Duration, int) {}
	}
	if hooks.OnEntry == nil {
		hooks.OnEntry = func(domain.Outcome) {}
	}
	return &Drainer{
		store:   store,
		outcome: NewOutcomePolicy(store, transport, logger),
		policy:  policy,
		logger:  logger,
		hooks:   hooks,
	}
}

// RunPass drains every entry of one store snapshot. It never returns an
// error; failures are logged. Concurrent calls are serialized and a started
// pass ignores cancellation of ctx.
func (d *Drainer) RunPass(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	summary := PassSummary{StartedAt: start.UTC()}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("ping queue pass panicked", zap.Any("panic", r))
			summary.Result = PassAborted
			summary.Errors++
		}
		elapsed := time.Since(start)
		summary.DurationMS = elapsed.Milliseconds()
		d.hooks.OnPass(summary.Result, elapsed, summary.Snapshot)
		d.setLast(summary)
	}()

	policy, err := d.policy.Policy(ctx)
	if err != nil {
		summary.Result = PassPolicyError
		d.logger.Error("could not read ping policy, skipping pass", zap.Error(err))
		return
	}

	if policy.Suspended {
		summary.Result = PassSuspended
		d.logger.Info("ping processing suspended, skipping pass")
		return
	}

	if policy.BaseURL == "" {
		summary.Result = PassNoBaseURL
		d.logger.Warn("site absolute URL unknown, skipping ping pass")
		return
	}

	d.logger.Debug("ping queue pass started",
		zap.Bool("log_only", policy.LogOnly),
		zap.Int("max_attempts", policy.MaxAttempts),
	)

	entries, err := d.store.ListEntries(ctx)
	if err != nil {
		summary.Result = PassListError
		d.logger.Error("could not list ping queue, pass aborted", zap.Error(err))
		return
	}
	summary.Snapshot = len(entries)

	for _, e := range entries {
		outcome, err := d.processEntry(ctx, policy, e)
		if err != nil {
			summary.Errors++
			d.logger.Error("error processing ping queue entry",
				zap.String("entry_id", e.ID), zap.Error(err))
			continue
		}
		switch outcome {
		case domain.OutcomeDelivered:
			summary.Delivered++
		case domain.OutcomeRequeued:
			summary.Requeued++
		case domain.OutcomeAbandoned:
			summary.Abandoned++
		}
		d.hooks.OnEntry(outcome)
	}

	summary.Result = PassCompleted
	d.logger.Debug("ping queue pass finished",
		zap.Int("entries", summary.Snapshot),
		zap.Int("delivered", summary.Delivered),
		zap.Int("requeued", summary.Requeued),
		zap.Int("abandoned", summary.Abandoned),
		zap.Int("errors", summary.Errors),
		zap.Duration("duration", time.Since(start)),
	)
}

// processEntry turns a panic in one entry into an error so the pass continues.
func (d *Drainer) processEntry(ctx context.Context, policy domain.Policy, e *domain.QueueEntry) (outcome domain.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return d.outcome.Process(ctx, policy, e)
}

// LastPass returns a copy of the most recent pass summary, or nil before the first pass.
func (d *Drainer) LastPass() *PassSummary {
	d.lastMu.RLock()
	defer d.lastMu.RUnlock()
	if d.last == nil {
		return nil
	}
	s := *d.last
	return &s
}

func (d *Drainer) setLast(s PassSummary) {
	d.lastMu.Lock()
	d.last = &s
	d.lastMu.Unlock()
}
