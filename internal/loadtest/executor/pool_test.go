package executor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/rokkincat/trackload/internal/loadtest"
	"github.com/rokkincat/trackload/internal/loadtest/metrics"
)

func TestVUPool_RunOnce(t *testing.T) {
	engine := metrics.NewEngine()
	defer engine.Stop()

	var calls atomic.Int64
	scenario := loadtest.ScenarioFunc(func(ctx context.Context, vu *loadtest.VirtualUser) error {
		calls.Add(1)
		return errors.New("point rejected")
	})
	scheduler := loadtest.NewVUScheduler(scenario, engine, loadtest.DefaultHTTPClientConfig(), nil)
	pool := newVUPool(context.Background(), scheduler, nil)
	defer pool.iterCancel()

	vu := scheduler.SpawnVU()

	// A failed iteration still counts.
	if !pool.runOnce(vu) {
		t.Fatal("runOnce() = false for a failed but completed iteration")
	}
	if got := pool.iterations.Load(); got != 1 {
		t.Fatalf("iterations = %d, want 1", got)
	}

	// A stop landing between the loop check and the iteration must not count.
	vu.RequestStop()
	if pool.runOnce(vu) {
		t.Error("runOnce() = true for a stopped VU")
	}
	if got := pool.iterations.Load(); got != 1 {
		t.Errorf("iterations = %d after stopped VU, want 1", got)
	}
	if calls.Load() != 1 {
		t.Errorf("scenario ran %d times, want 1", calls.Load())
	}

	// An iteration cut short by the interrupt is not counted either.
	other := scheduler.SpawnVU()
	pool.iterCancel()
	if pool.runOnce(other) {
		t.Error("runOnce() = true after iterations were interrupted")
	}
	if got := pool.iterations.Load(); got != 1 {
		t.Errorf("iterations = %d after interrupt, want 1", got)
	}
}
