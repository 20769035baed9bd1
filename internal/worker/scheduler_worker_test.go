package worker_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/ricirt/ping-queue/internal/worker"
)

type countingRunner struct {
	passes atomic.Int32
}

func (c *countingRunner) RunPass(context.Context) {
	c.passes.Add(1)
}

func TestSchedulerWorker_RunsPassesUntilCancelled(t *testing.T) {
	runner := &countingRunner{}
	sw := worker.NewSchedulerWorker(runner, 10*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return runner.passes.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
