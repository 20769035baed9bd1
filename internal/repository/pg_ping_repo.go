package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ricirt/ping-queue/internal/domain"
)

type pgPingRepository struct {
	pool *pgxpool.Pool
}

// NewPgPingRepository returns a PingRepository backed by PostgreSQL.
func NewPgPingRepository(pool *pgxpool.Pool) PingRepository {
	return &pgPingRepository{pool: pool}
}

const entryColumns = `
	e.id, e.attempts, e.entry_time,
	t.id, t.name, t.ping_url, t.auto_enabled, t.created_at,
	w.id, w.handle, w.name, w.created_at`

func (r *pgPingRepository) ListEntries(ctx context.Context) ([]*domain.QueueEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+entryColumns+`
		FROM ping_queue_entries e
		JOIN ping_targets t ON t.id = e.target_id
		JOIN weblogs w ON w.id = e.weblog_id
		ORDER BY e.entry_time ASC, e.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list queue entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.QueueEntry
	for rows.Next() {
		var e domain.QueueEntry
		if err := rows.Scan(
			&e.ID, &e.Attempts, &e.EntryTime,
			&e.Target.ID, &e.Target.Name, &e.Target.PingURL, &e.Target.AutoEnabled, &e.Target.CreatedAt,
			&e.Weblog.ID, &e.Weblog.Handle, &e.Weblog.Name, &e.Weblog.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (r *pgPingRepository) SaveEntry(ctx context.Context, e *domain.QueueEntry) error {
	// The WHERE clause keeps the attempt counter monotonic even if a stale
	// copy of the entry is saved.
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO ping_queue_entries (id, target_id, weblog_id, attempts, entry_time)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET attempts = EXCLUDED.attempts
		WHERE ping_queue_entries.attempts <= EXCLUDED.attempts`,
		e.ID, e.Target.ID, e.Weblog.ID, e.Attempts, e.EntryTime,
	)
	if err != nil {
		return fmt.Errorf("save queue entry %s: %w", e.ID, mapPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("save queue entry %s: attempts would decrease: %w", e.ID, domain.ErrConflict)
	}
	return nil
}

func (r *pgPingRepository) RemoveEntry(ctx context.Context, e *domain.QueueEntry) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM ping_queue_entries WHERE id = $1`, e.ID); err != nil {
		return fmt.Errorf("remove queue entry %s: %w", e.ID, err)
	}
	return nil
}

func (r *pgPingRepository) AddEntry(ctx context.Context, e *domain.QueueEntry) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO ping_queue_entries (id, target_id, weblog_id, attempts, entry_time)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (target_id, weblog_id) DO NOTHING`,
		e.ID, e.Target.ID, e.Weblog.ID, e.Attempts, e.EntryTime,
	)
	if err != nil {
		return false, fmt.Errorf("add queue entry: %w", mapPgError(err))
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgPingRepository) CreateTarget(ctx context.Context, t *domain.PingTarget) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO ping_targets (id, name, ping_url, auto_enabled, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.Name, t.PingURL, t.AutoEnabled, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ping target: %w", mapPgError(err))
	}
	return nil
}

func (r *pgPingRepository) GetTarget(ctx context.Context, id string) (*domain.PingTarget, error) {
	var t domain.PingTarget
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, ping_url, auto_enabled, created_at
		FROM ping_targets WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.PingURL, &t.AutoEnabled, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ping target: %w", err)
	}
	return &t, nil
}

func (r *pgPingRepository) ListTargets(ctx context.Context) ([]*domain.PingTarget, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, ping_url, auto_enabled, created_at
		FROM ping_targets ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list ping targets: %w", err)
	}
	defer rows.Close()
	return scanTargets(rows)
}

func (r *pgPingRepository) CreateWeblog(ctx context.Context, w *domain.Weblog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO weblogs (id, handle, name, created_at) VALUES ($1, $2, $3, $4)`,
		w.ID, w.Handle, w.Name, w.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert weblog: %w", mapPgError(err))
	}
	return nil
}

func (r *pgPingRepository) GetWeblog(ctx context.Context, id string) (*domain.Weblog, error) {
	var w domain.Weblog
	err := r.pool.QueryRow(ctx, `
		SELECT id, handle, name, created_at FROM weblogs WHERE id = $1`, id).
		Scan(&w.ID, &w.Handle, &w.Name, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get weblog: %w", err)
	}
	return &w, nil
}

func (r *pgPingRepository) AddAutoPing(ctx context.Context, weblogID, targetID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO auto_pings (weblog_id, target_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, weblogID, targetID)
	if err != nil {
		return fmt.Errorf("insert auto ping: %w", mapPgError(err))
	}
	return nil
}

func (r *pgPingRepository) ListAutoPingTargets(ctx context.Context, weblogID string) ([]*domain.PingTarget, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT t.id, t.name, t.ping_url, t.auto_enabled, t.created_at
		FROM auto_pings a
		JOIN ping_targets t ON t.id = a.target_id
		WHERE a.weblog_id = $1
		ORDER BY t.name ASC`, weblogID)
	if err != nil {
		return nil, fmt.Errorf("list auto ping targets: %w", err)
	}
	defer rows.Close()
	return scanTargets(rows)
}

// ---- helpers ----

func scanTargets(rows pgx.Rows) ([]*domain.PingTarget, error) {
	var result []*domain.PingTarget
	for rows.Next() {
		var t domain.PingTarget
		if err := rows.Scan(&t.ID, &t.Name, &t.PingURL, &t.AutoEnabled, &t.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &t)
	}
	return result, rows.Err()
}

// mapPgError translates constraint violations into domain sentinels.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return fmt.Errorf("%w: %s", domain.ErrConflict, pgErr.ConstraintName)
	case pgerrcode.ForeignKeyViolation:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, pgErr.ConstraintName)
	}
	return err
}
