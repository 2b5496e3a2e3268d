package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rokkincat/trackload/internal/loadtest"
	"github.com/rokkincat/trackload/internal/loadtest/metrics"
)

// ConstantVUs runs a fixed number of VUs for a specified duration.
//
// Each VU runs iterations back to back (closed model), optionally with
// pacing between them.
type ConstantVUs struct {
	config *Config
	pool   *vuPool

	startTime time.Time
	running   atomic.Bool

	cancelFunc context.CancelFunc
	done       chan struct{}

	mu sync.RWMutex
}

// NewConstantVUs creates a new constant VUs executor.
func NewConstantVUs() *ConstantVUs {
	return &ConstantVUs{}
}

// Type returns the executor type.
func (e *ConstantVUs) Type() Type {
	return TypeConstantVUs
}

// Init initializes the executor with configuration.
func (e *ConstantVUs) Init(ctx context.Context, config *Config) error {
	if config.Type != TypeConstantVUs {
		return fmt.Errorf("invalid config type: expected %s, got %s", TypeConstantVUs, config.Type)
	}

	if err := config.Validate(); err != nil {
		return err
	}

	e.config = config
	e.done = make(chan struct{})
	return nil
}

// Run starts the executor and blocks until completion.
func (e *ConstantVUs) Run(ctx context.Context, scheduler *loadtest.VUScheduler, metricsEngine *metrics.Engine) error {
	defer close(e.done)

	runCtx, cancel := context.WithTimeout(ctx, e.config.Duration)
	defer cancel()

	e.mu.Lock()
	e.pool = newVUPool(ctx, scheduler, e.config.Pacing)
	e.startTime = time.Now()
	e.cancelFunc = cancel
	e.mu.Unlock()
	e.running.Store(true)

	logger := scheduler.Logger()
	logger.Info("starting constant load",
		zap.Int("vus", e.config.VUs),
		zap.Duration("duration", e.config.Duration))

	// constant VUs have no ramp
	metricsEngine.SetPhase(metrics.PhaseSteady)

	for i := 0; i < e.config.VUs; i++ {
		e.pool.start(runCtx, scheduler.SpawnVU())
	}
	metricsEngine.SetActiveVUs(e.config.VUs)

	<-runCtx.Done()

	e.pool.shutdown(e.config.gracefulStop(), logger)

	metricsEngine.SetActiveVUs(0)
	metricsEngine.SetPhase(metrics.PhaseDone)
	e.running.Store(false)

	return nil
}

// GetProgress returns current progress (0.0 to 1.0).
func (e *ConstantVUs) GetProgress() float64 {
	e.mu.RLock()
	start := e.startTime
	e.mu.RUnlock()

	if !e.running.Load() {
		if start.IsZero() {
			return 0.0
		}
		return 1.0
	}

	progress := float64(time.Since(start)) / float64(e.config.Duration)
	if progress > 1.0 {
		progress = 1.0
	}
	return progress
}

// GetActiveVUs returns current active VU count.
func (e *ConstantVUs) GetActiveVUs() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.pool == nil {
		return 0
	}
	return int(e.pool.active.Load())
}

// GetStats returns executor statistics.
func (e *ConstantVUs) GetStats() *Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var elapsed time.Duration
	if !e.startTime.IsZero() {
		elapsed = time.Since(e.startTime)
	}

	stats := &Stats{
		StartTime:     e.startTime,
		CurrentTime:   time.Now(),
		Elapsed:       elapsed,
		TotalDuration: e.config.Duration,
		TargetVUs:     e.config.VUs,
	}
	if e.pool != nil {
		stats.ActiveVUs = int(e.pool.active.Load())
		stats.Iterations = e.pool.iterations.Load()
	}
	return stats
}

// Stop ends the run early and waits for Run to return or ctx to end.
func (e *ConstantVUs) Stop(ctx context.Context) error {
	e.mu.RLock()
	cancel := e.cancelFunc
	e.mu.RUnlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ensure ConstantVUs implements Executor
var _ Executor = (*ConstantVUs)(nil)
