package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ricirt/ping-queue/internal/config"
	"github.com/ricirt/ping-queue/internal/domain"
	"github.com/ricirt/ping-queue/internal/repository"
)

// PingService owns targets, weblogs and the creation of queue entries.
// HTTP handlers depend on this service; draining the queue is the worker's job.
type PingService struct {
	repo     repository.PingRepository
	validate *validator.Validate
	logger   *zap.Logger
}

func NewPingService(repo repository.PingRepository, logger *zap.Logger) *PingService {
	return &PingService{repo: repo, validate: validator.New(), logger: logger}
}

// CreateTarget validates and persists a new ping target.
func (s *PingService) CreateTarget(ctx context.Context, req domain.CreatePingTargetRequest) (*domain.PingTarget, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	t := &domain.PingTarget{
		ID:          uuid.New().String(),
		Name:        req.Name,
		PingURL:     req.PingURL,
		AutoEnabled: req.AutoEnabled,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.CreateTarget(ctx, t); err != nil {
		return nil, fmt.Errorf("persist ping target: %w", err)
	}

	s.logger.Info("ping target created", zap.String("id", t.ID), zap.String("ping_url", t.PingURL))
	return t, nil
}

func (s *PingService) ListTargets(ctx context.Context) ([]*domain.PingTarget, error) {
	return s.repo.ListTargets(ctx)
}

// BootstrapTargets creates the configured targets when none exist yet.
// It returns the number of targets created.
func (s *PingService) BootstrapTargets(ctx context.Context, initial []config.TargetConfig) (int, error) {
	existing, err := s.repo.ListTargets(ctx)
	if err != nil {
		return 0, fmt.Errorf("list ping targets: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	created := 0
	for _, tc := range initial {
		_, err := s.CreateTarget(ctx, domain.CreatePingTargetRequest{Name: tc.Name, PingURL: tc.URL, AutoEnabled: true})
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("create initial target %q: %w", tc.Name, err)
		}
		created++
	}
	return created, nil
}

// CreateWeblog persists a weblog and subscribes it to every auto-enabled target.
func (s *PingService) CreateWeblog(ctx context.Context, req domain.CreateWeblogRequest) (*domain.Weblog, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	w := &domain.Weblog{
		ID:        uuid.New().String(),
		Handle:    req.Handle,
		Name:      req.Name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateWeblog(ctx, w); err != nil {
		return nil, fmt.Errorf("persist weblog: %w", err)
	}

	targets, err := s.repo.ListTargets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ping targets: %w", err)
	}
	for _, t := range targets {
		if !t.AutoEnabled {
			continue
		}
		if err := s.repo.AddAutoPing(ctx, w.ID, t.ID); err != nil {
			return nil, fmt.Errorf("attach auto ping %s: %w", t.Name, err)
		}
	}

	return w, nil
}

// AddAutoPing subscribes a weblog to a target. Adding an existing pair is a no-op.
func (s *PingService) AddAutoPing(ctx context.Context, weblogID string, req domain.AddAutoPingRequest) error {
	if err := s.check(req); err != nil {
		return err
	}
	if _, err := s.repo.GetWeblog(ctx, weblogID); err != nil {
		return err
	}
	if _, err := s.repo.GetTarget(ctx, req.TargetID); err != nil {
		return err
	}
	return s.repo.AddAutoPing(ctx, weblogID, req.TargetID)
}

// QueueWeblogPings queues one entry per auto-ping target of the weblog and
// returns the entries actually added. Pairs already waiting in the queue
// are skipped.
func (s *PingService) QueueWeblogPings(ctx context.Context, weblogID string) ([]*domain.QueueEntry, error) {
	w, err := s.repo.GetWeblog(ctx, weblogID)
	if err != nil {
		return nil, err
	}
	targets, err := s.repo.ListAutoPingTargets(ctx, weblogID)
	if err != nil {
		return nil, fmt.Errorf("list auto ping targets: %w", err)
	}

	queued := make([]*domain.QueueEntry, 0, len(targets))
	for _, t := range targets {
		e := newEntry(*t, *w)
		created, err := s.repo.AddEntry(ctx, e)
		if err != nil {
			return queued, fmt.Errorf("queue ping to %s: %w", t.Name, err)
		}
		if created {
			queued = append(queued, e)
		}
	}

	s.logger.Debug("weblog pings queued",
		zap.String("weblog", w.Handle),
		zap.Int("targets", len(targets)),
		zap.Int("queued", len(queued)),
	)
	return queued, nil
}

// QueuePing queues a single (target, weblog) ping. It returns
// domain.ErrAlreadyQueued when that pair is already pending.
func (s *PingService) QueuePing(ctx context.Context, req domain.QueuePingRequest) (*domain.QueueEntry, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	t, err := s.repo.GetTarget(ctx, req.TargetID)
	if err != nil {
		return nil, err
	}
	w, err := s.repo.GetWeblog(ctx, req.WeblogID)
	if err != nil {
		return nil, err
	}

	e := newEntry(*t, *w)
	created, err := s.repo.AddEntry(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("queue ping: %w", err)
	}
	if !created {
		return nil, domain.ErrAlreadyQueued
	}
	return e, nil
}

func (s *PingService) ListQueue(ctx context.Context) ([]*domain.QueueEntry, error) {
	return s.repo.ListEntries(ctx)
}

func (s *PingService) check(req any) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrValidation, err.Error())
	}
	return nil
}

func newEntry(t domain.PingTarget, w domain.Weblog) *domain.QueueEntry {
	return &domain.QueueEntry{
		ID:        uuid.New().String(),
		Target:    t,
		Weblog:    w,
		EntryTime: time.Now().UTC(),
	}
}
