package service_test

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/ricirt/ping-queue/internal/config"
	"github.com/ricirt/ping-queue/internal/domain"
	"github.com/ricirt/ping-queue/internal/repository"
	"github.com/ricirt/ping-queue/internal/service"
)

func newService() (*service.PingService, *repository.MockPingRepository) {
	repo := repository.NewMockPingRepository()
	return service.NewPingService(repo, zap.NewNop()), repo
}

func mustTarget(t *testing.T, svc *service.PingService, name, url string, auto bool) *domain.PingTarget {
	t.Helper()
	target, err := svc.CreateTarget(context.Background(), domain.CreatePingTargetRequest{Name: name, PingURL: url, AutoEnabled: auto})
	if err != nil {
		t.Fatalf("create target %s: %v", name, err)
	}
	return target
}

func mustWeblog(t *testing.T, svc *service.PingService, handle string) *domain.Weblog {
	t.Helper()
	w, err := svc.CreateWeblog(context.Background(), domain.CreateWeblogRequest{Handle: handle, Name: "Blog " + handle})
	if err != nil {
		t.Fatalf("create weblog %s: %v", handle, err)
	}
	return w
}

func TestPingService_CreateTarget(t *testing.T) {
	svc, _ := newService()

	target := mustTarget(t, svc, "Ping-o-Matic", "http://rpc.pingomatic.com/", true)
	if target.ID == "" {
		t.Fatal("expected a non-empty ID")
	}
	if target.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be set")
	}
}

func TestPingService_CreateTarget_Invalid(t *testing.T) {
	svc, _ := newService()

	cases := []domain.CreatePingTargetRequest{
		{Name: "", PingURL: "http://rpc.example.com/"},
		{Name: "bad url", PingURL: "not a url"},
	}
	for _, req := range cases {
		_, err := svc.CreateTarget(context.Background(), req)
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("%+v: expected ErrValidation, got %v", req, err)
		}
	}
}

func TestPingService_CreateTarget_DuplicateURL(t *testing.T) {
	svc, _ := newService()
	mustTarget(t, svc, "one", "http://rpc.example.com/", false)

	_, err := svc.CreateTarget(context.Background(), domain.CreatePingTargetRequest{Name: "two", PingURL: "http://rpc.example.com/"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestPingService_CreateWeblog_AttachesAutoEnabledTargets(t *testing.T) {
	svc, repo := newService()
	auto := mustTarget(t, svc, "auto", "http://auto.example.com/", true)
	mustTarget(t, svc, "manual", "http://manual.example.com/", false)

	w := mustWeblog(t, svc, "myblog")

	targets, err := repo.ListAutoPingTargets(context.Background(), w.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(targets) != 1 || targets[0].ID != auto.ID {
		t.Fatalf("expected only the auto-enabled target, got %+v", targets)
	}
}

func TestPingService_CreateWeblog_InvalidHandle(t *testing.T) {
	svc, _ := newService()

	_, err := svc.CreateWeblog(context.Background(), domain.CreateWeblogRequest{Handle: "my blog!", Name: "x"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestPingService_QueueWeblogPings_DoesNotDuplicate(t *testing.T) {
	svc, repo := newService()
	mustTarget(t, svc, "a", "http://a.example.com/", true)
	mustTarget(t, svc, "b", "http://b.example.com/", true)
	w := mustWeblog(t, svc, "myblog")
	ctx := context.Background()

	queued, err := svc.QueueWeblogPings(ctx, w.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(queued) != 2 {
		t.Fatalf("expected 2 entries queued, got %d", len(queued))
	}
	for _, e := range queued {
		if e.Attempts != 0 {
			t.Fatalf("new entry must start with 0 attempts, got %d", e.Attempts)
		}
	}

	again, err := svc.QueueWeblogPings(ctx, w.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected no new entries, got %d", len(again))
	}
	if repo.Len() != 2 {
		t.Fatalf("expected 2 pending entries, got %d", repo.Len())
	}
}

func TestPingService_QueueWeblogPings_UnknownWeblog(t *testing.T) {
	svc, _ := newService()

	_, err := svc.QueueWeblogPings(context.Background(), "00000000-0000-0000-0000-000000000000")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPingService_QueuePing(t *testing.T) {
	svc, _ := newService()
	target := mustTarget(t, svc, "manual", "http://manual.example.com/", false)
	w := mustWeblog(t, svc, "myblog")
	ctx := context.Background()
	req := domain.QueuePingRequest{TargetID: target.ID, WeblogID: w.ID}

	e, err := svc.QueuePing(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Target.ID != target.ID || e.Weblog.ID != w.ID {
		t.Fatalf("entry points at the wrong pair: %s", e)
	}

	if _, err := svc.QueuePing(ctx, req); !errors.Is(err, domain.ErrAlreadyQueued) {
		t.Fatalf("expected ErrAlreadyQueued, got %v", err)
	}

	entries, err := svc.ListQueue(ctx)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d (err=%v)", len(entries), err)
	}
}

func TestPingService_AddAutoPing_UnknownTarget(t *testing.T) {
	svc, _ := newService()
	w := mustWeblog(t, svc, "myblog")

	err := svc.AddAutoPing(context.Background(), w.ID, domain.AddAutoPingRequest{TargetID: "00000000-0000-0000-0000-000000000000"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPingService_BootstrapTargets(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	initial := []config.TargetConfig{
		{Name: "Ping-o-Matic", URL: "http://rpc.pingomatic.com/"},
		{Name: "Weblogs.com", URL: "http://rpc.weblogs.com/RPC2"},
	}

	n, err := svc.BootstrapTargets(ctx, initial)
	if err != nil || n != 2 {
		t.Fatalf("first bootstrap: n=%d err=%v", n, err)
	}

	n, err = svc.BootstrapTargets(ctx, initial)
	if err != nil || n != 0 {
		t.Fatalf("second bootstrap must be a no-op: n=%d err=%v", n, err)
	}

	targets, _ := svc.ListTargets(ctx)
	for _, target := range targets {
		if !target.AutoEnabled {
			t.Fatalf("initial target %s should be auto-enabled", target.Name)
		}
	}
}
