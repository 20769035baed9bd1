package repository

import (
	"context"

	"github.com/ricirt/ping-queue/internal/domain"
)

// PingRepository defines all persistence operations for ping targets,
// weblogs and the ping queue.
// The pgx implementation is in pg_ping_repo.go.
// Tests use a hand-written mock (mock_ping_repo.go).
type PingRepository interface {
	// Queue entries. ListEntries returns entries with Target and Weblog populated.
	ListEntries(ctx context.Context) ([]*domain.QueueEntry, error)
	// SaveEntry upserts e and persists its attempt counter. The counter never decreases.
	SaveEntry(ctx context.Context, e *domain.QueueEntry) error
	RemoveEntry(ctx context.Context, e *domain.QueueEntry) error
	// AddEntry inserts e unless an entry for the same target and weblog exists.
	// The boolean reports whether a row was created.
	AddEntry(ctx context.Context, e *domain.QueueEntry) (bool, error)

	CreateTarget(ctx context.Context, t *domain.PingTarget) error
	GetTarget(ctx context.Context, id string) (*domain.PingTarget, error)
	ListTargets(ctx context.Context) ([]*domain.PingTarget, error)

	CreateWeblog(ctx context.Context, w *domain.Weblog) error
	GetWeblog(ctx context.Context, id string) (*domain.Weblog, error)
	AddAutoPing(ctx context.Context, weblogID, targetID string) error
	ListAutoPingTargets(ctx context.Context, weblogID string) ([]*domain.PingTarget, error)
}
