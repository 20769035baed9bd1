//go:build integration

package repository_test

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ricirt/ping-queue/internal/config"
	"github.com/ricirt/ping-queue/internal/db"
	"github.com/ricirt/ping-queue/internal/domain"
	"github.com/ricirt/ping-queue/internal/repository"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("pingqueue"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("connection string: %v", err)
	}
	if err := db.Migrate(connStr); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	testPool, err = db.Connect(ctx, config.DatabaseConfig{URL: connStr, MaxConns: 4, MinConns: 1})
	if err != nil {
		log.Fatalf("connect: %v", err)
	}

	code := m.Run()

	testPool.Close()
	if err := container.Terminate(ctx); err != nil {
		log.Printf("terminate postgres: %v", err)
	}
	os.Exit(code)
}

func seed(t *testing.T, repo repository.PingRepository) (*domain.PingTarget, *domain.Weblog) {
	t.Helper()
	ctx := context.Background()
	target := &domain.PingTarget{
		ID:        uuid.NewString(),
		Name:      "target-" + uuid.NewString()[:8],
		PingURL:   "http://rpc.example.com/" + uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.CreateTarget(ctx, target))
	weblog := &domain.Weblog{
		ID:        uuid.NewString(),
		Handle:    "blog" + uuid.NewString()[:8],
		Name:      "Blog",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.CreateWeblog(ctx, weblog))
	return target, weblog
}

func TestPgPingRepository_EntryLifecycle(t *testing.T) {
	repo := repository.NewPgPingRepository(testPool)
	ctx := context.Background()
	target, weblog := seed(t, repo)

	e := &domain.QueueEntry{ID: uuid.NewString(), Target: *target, Weblog: *weblog, EntryTime: time.Now().UTC()}
	created, err := repo.AddEntry(ctx, e)
	require.NoError(t, err)
	assert.True(t, created)

	dup := &domain.QueueEntry{ID: uuid.NewString(), Target: *target, Weblog: *weblog, EntryTime: time.Now().UTC()}
	created, err = repo.AddEntry(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created, "one pending entry per (target, weblog)")

	e.IncrementAttempts()
	require.NoError(t, repo.SaveEntry(ctx, e))

	entries, err := repo.ListEntries(ctx)
	require.NoError(t, err)
	var found *domain.QueueEntry
	for _, got := range entries {
		if got.ID == e.ID {
			found = got
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, 1, found.Attempts)
	assert.Equal(t, target.PingURL, found.Target.PingURL)
	assert.Equal(t, weblog.Handle, found.Weblog.Handle)

	stale := *e
	stale.Attempts = 0
	assert.ErrorIs(t, repo.SaveEntry(ctx, &stale), domain.ErrConflict)

	require.NoError(t, repo.RemoveEntry(ctx, e))
	entries, err = repo.ListEntries(ctx)
	require.NoError(t, err)
	for _, got := range entries {
		assert.NotEqual(t, e.ID, got.ID)
	}
}

func TestPgPingRepository_Constraints(t *testing.T) {
	repo := repository.NewPgPingRepository(testPool)
	ctx := context.Background()
	target, weblog := seed(t, repo)

	again := *target
	again.ID = uuid.NewString()
	assert.ErrorIs(t, repo.CreateTarget(ctx, &again), domain.ErrConflict)

	assert.ErrorIs(t, repo.AddAutoPing(ctx, weblog.ID, uuid.NewString()), domain.ErrNotFound)

	_, err := repo.GetTarget(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, repo.AddAutoPing(ctx, weblog.ID, target.ID))
	require.NoError(t, repo.AddAutoPing(ctx, weblog.ID, target.ID))
	targets, err := repo.ListAutoPingTargets(ctx, weblog.ID)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, target.ID, targets[0].ID)
}
