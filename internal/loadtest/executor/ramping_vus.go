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

// rampInterval is how often the VU target is recomputed.
const rampInterval = 100 * time.Millisecond

// RampingVUs ramps VU count up and down according to stages.
//
// The target is linearly interpolated between the previous stage's target
// and the current one, so VU changes are smooth rather than step-wise.
//
// Example stages:
//
//	stages:
//	  - duration: 30s
//	    target: 10     # Ramp from 0 to 10 VUs over 30s
//	  - duration: 5m
//	    target: 10     # Stay at 10 VUs for 5 minutes
type RampingVUs struct {
	config    *Config
	scheduler *loadtest.VUScheduler
	metrics   *metrics.Engine
	logger    *zap.Logger
	pool      *vuPool

	startTime    time.Time
	targetVUs    atomic.Int32
	currentStage atomic.Int32
	running      atomic.Bool

	cancelFunc context.CancelFunc
	done       chan struct{}

	vus   []*loadtest.VirtualUser
	vusMu sync.Mutex

	mu sync.RWMutex
}

// NewRampingVUs creates a new ramping VUs executor.
func NewRampingVUs() *RampingVUs {
	return &RampingVUs{}
}

// Type returns the executor type.
func (e *RampingVUs) Type() Type {
	return TypeRampingVUs
}

// Init initializes the executor with configuration.
func (e *RampingVUs) Init(ctx context.Context, config *Config) error {
	if config.Type != TypeRampingVUs {
		return fmt.Errorf("invalid config type: expected %s, got %s", TypeRampingVUs, config.Type)
	}

	if err := config.Validate(); err != nil {
		return err
	}

	e.config = config
	e.done = make(chan struct{})
	return nil
}

// Run starts the executor and blocks until completion.
func (e *RampingVUs) Run(ctx context.Context, scheduler *loadtest.VUScheduler, metricsEngine *metrics.Engine) error {
	defer close(e.done)

	e.mu.Lock()
	e.scheduler = scheduler
	e.metrics = metricsEngine
	e.logger = scheduler.Logger()
	e.pool = newVUPool(ctx, scheduler, e.config.Pacing)
	e.startTime = time.Now()
	e.mu.Unlock()
	e.running.Store(true)

	runCtx, cancel := context.WithTimeout(ctx, e.config.TotalDuration())
	e.mu.Lock()
	e.cancelFunc = cancel
	e.mu.Unlock()
	defer cancel()

	e.logStage(0)
	e.vuController(runCtx)

	e.pool.shutdown(e.config.gracefulStop(), e.logger)

	e.metrics.SetActiveVUs(0)
	e.metrics.SetPhase(metrics.PhaseDone)
	e.running.Store(false)

	return nil
}

// vuController adjusts VU count every rampInterval until ctx ends.
func (e *RampingVUs) vuController(ctx context.Context) {
	ticker := time.NewTicker(rampInterval)
	defer ticker.Stop()

	e.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

func (e *RampingVUs) tick(ctx context.Context) {
	prevStage := int(e.currentStage.Load())

	target := e.calculateTargetVUs(time.Since(e.startTime))
	e.targetVUs.Store(int32(target))
	e.adjustVUs(ctx, target)
	e.updatePhase()

	if stage := int(e.currentStage.Load()); stage != prevStage {
		e.logStage(stage)
	}
}

func (e *RampingVUs) logStage(idx int) {
	if idx >= len(e.config.Stages) {
		return
	}
	stage := e.config.Stages[idx]
	e.logger.Info("stage started",
		zap.Int("stage", idx+1),
		zap.String("name", stage.Name),
		zap.Int("target", stage.Target),
		zap.Duration("duration", stage.Duration))
}

// calculateTargetVUs returns the interpolated VU target at elapsed.
func (e *RampingVUs) calculateTargetVUs(elapsed time.Duration) int {
	var stageStart time.Duration
	prevTarget := 0

	for i, stage := range e.config.Stages {
		stageEnd := stageStart + stage.Duration

		if elapsed < stageEnd {
			e.currentStage.Store(int32(i))

			stageProgress := float64(elapsed-stageStart) / float64(stage.Duration)
			if stageProgress < 0 {
				stageProgress = 0
			}
			if stageProgress > 1 {
				stageProgress = 1
			}

			targetVUs := float64(prevTarget) + float64(stage.Target-prevTarget)*stageProgress
			return int(targetVUs + 0.5)
		}

		prevTarget = stage.Target
		stageStart = stageEnd
	}

	if len(e.config.Stages) > 0 {
		e.currentStage.Store(int32(len(e.config.Stages) - 1))
		return e.config.Stages[len(e.config.Stages)-1].Target
	}
	return 0
}

// adjustVUs spawns or retires VUs to match targetVUs. Retired VUs finish
// their current iteration first.
func (e *RampingVUs) adjustVUs(ctx context.Context, targetVUs int) {
	e.vusMu.Lock()
	defer e.vusMu.Unlock()

	if ctx.Err() != nil {
		return
	}

	currentVUs := len(e.vus)

	if targetVUs > currentVUs {
		for i := currentVUs; i < targetVUs; i++ {
			vu := e.scheduler.SpawnVU()
			e.vus = append(e.vus, vu)
			e.pool.start(ctx, vu)
		}
	} else if targetVUs < currentVUs {
		for i := currentVUs - 1; i >= targetVUs; i-- {
			e.vus[i].RequestStop()
		}
		e.vus = e.vus[:targetVUs]
	}

	e.metrics.SetActiveVUs(targetVUs)
}

// updatePhase derives the metrics phase from the current stage.
func (e *RampingVUs) updatePhase() {
	stageIdx := int(e.currentStage.Load())
	if stageIdx >= len(e.config.Stages) {
		return
	}

	stage := e.config.Stages[stageIdx]
	prevTarget := 0
	if stageIdx > 0 {
		prevTarget = e.config.Stages[stageIdx-1].Target
	}

	switch {
	case stage.Target > prevTarget:
		e.metrics.SetPhase(metrics.PhaseRampUp)
	case stage.Target < prevTarget:
		e.metrics.SetPhase(metrics.PhaseRampDown)
	default:
		e.metrics.SetPhase(metrics.PhaseSteady)
	}
}

// GetProgress returns current progress (0.0 to 1.0).
func (e *RampingVUs) GetProgress() float64 {
	e.mu.RLock()
	start := e.startTime
	e.mu.RUnlock()

	if !e.running.Load() {
		if start.IsZero() {
			return 0.0
		}
		return 1.0
	}

	totalDuration := e.config.TotalDuration()
	if totalDuration == 0 {
		return 1.0
	}

	progress := float64(time.Since(start)) / float64(totalDuration)
	if progress > 1.0 {
		progress = 1.0
	}
	return progress
}

// GetActiveVUs returns current active VU count.
func (e *RampingVUs) GetActiveVUs() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.pool == nil {
		return 0
	}
	return int(e.pool.active.Load())
}

// GetStats returns executor statistics.
func (e *RampingVUs) GetStats() *Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var elapsed time.Duration
	if !e.startTime.IsZero() {
		elapsed = time.Since(e.startTime)
	}

	stageIdx := int(e.currentStage.Load())
	stageName := ""
	if stageIdx < len(e.config.Stages) {
		stageName = e.config.Stages[stageIdx].Name
	}

	stats := &Stats{
		StartTime:        e.startTime,
		CurrentTime:      time.Now(),
		Elapsed:          elapsed,
		TotalDuration:    e.config.TotalDuration(),
		TargetVUs:        int(e.targetVUs.Load()),
		CurrentStage:     stageIdx,
		CurrentStageName: stageName,
		TotalStages:      len(e.config.Stages),
	}
	if e.pool != nil {
		stats.ActiveVUs = int(e.pool.active.Load())
		stats.Iterations = e.pool.iterations.Load()
	}
	return stats
}

// Stop ends the run early and waits for Run to return or ctx to end.
func (e *RampingVUs) Stop(ctx context.Context) error {
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

// Ensure RampingVUs implements Executor
var _ Executor = (*RampingVUs)(nil)
