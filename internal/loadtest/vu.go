// Package loadtest is the virtual-user runtime: it runs a Scenario on many
// concurrent VirtualUsers and feeds their results into a metrics.Engine.
package loadtest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rokkincat/trackload/internal/loadtest/metrics"
	"github.com/rokkincat/trackload/internal/logging"
)

// ErrVUStopped is returned by RunIteration once a stop has been requested.
var ErrVUStopped = errors.New("virtual user is stopping")

// Scenario is the work a VU performs on every iteration.
//
// Implementations record their requests and checks through the VU and
// return an error only for failures that ended the iteration early.
type Scenario interface {
	Name() string
	Iteration(ctx context.Context, vu *VirtualUser) error
}

// ScenarioFunc adapts an ordinary function to the Scenario interface.
type ScenarioFunc func(ctx context.Context, vu *VirtualUser) error

// Name implements Scenario.
func (f ScenarioFunc) Name() string { return "func" }

// Iteration implements Scenario.
func (f ScenarioFunc) Iteration(ctx context.Context, vu *VirtualUser) error { return f(ctx, vu) }

// VUState represents the lifecycle state of a Virtual User.
type VUState int32

const (
	// VUStateIdle indicates the VU is ready but not currently running.
	VUStateIdle VUState = iota
	// VUStateRunning indicates the VU is inside an iteration.
	VUStateRunning
	// VUStateStopping indicates the VU has been requested to stop.
	VUStateStopping
	// VUStateStopped indicates the VU has fully stopped.
	VUStateStopped
)

func (s VUState) String() string {
	switch s {
	case VUStateIdle:
		return "idle"
	case VUStateRunning:
		return "running"
	case VUStateStopping:
		return "stopping"
	case VUStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// RequestSample is the outcome of one HTTP request made by a scenario.
type RequestSample struct {
	Duration      time.Duration
	StatusCode    int
	BytesReceived int64
	Err           error
}

// Failed reports whether the request errored or returned a 4xx/5xx status.
func (s RequestSample) Failed() bool {
	return s.Err != nil || s.StatusCode == 0 || s.StatusCode >= 400
}

// VirtualUser is a single simulated client running scenario iterations.
//
// A VU has its own iteration counter, lifecycle state and data scope that
// persists across iterations (e.g. a cached session).
type VirtualUser struct {
	ID int

	Scenario   Scenario
	HTTPClient *http.Client
	Metrics    *metrics.Engine
	Logger     *zap.Logger

	state    atomic.Int32
	stopCh   chan struct{}
	doneCh   chan struct{}
	doneOnce sync.Once

	iteration atomic.Int64

	data   map[string]interface{}
	dataMu sync.RWMutex
}

// NewVirtualUser creates a new Virtual User. A nil logger is replaced by a no-op one.
func NewVirtualUser(id int, scenario Scenario, httpClient *http.Client, metricsEngine *metrics.Engine, logger *zap.Logger) *VirtualUser {
	if logger == nil {
		logger = logging.Nop()
	}
	return &VirtualUser{
		ID:         id,
		Scenario:   scenario,
		HTTPClient: httpClient,
		Metrics:    metricsEngine,
		Logger:     logger.With(zap.Int("vu", id)),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		data:       make(map[string]interface{}),
	}
}

// GetState returns the current VU state.
func (vu *VirtualUser) GetState() VUState {
	return VUState(vu.state.Load())
}

// GetIteration returns the number of iterations started.
func (vu *VirtualUser) GetIteration() int64 {
	return vu.iteration.Load()
}

// IsStopping reports whether a stop was requested or completed.
func (vu *VirtualUser) IsStopping() bool {
	s := vu.GetState()
	return s == VUStateStopping || s == VUStateStopped
}

// RunIteration executes one iteration of the scenario.
//
// The scenario's error is returned as is; it never stops the VU by itself.
func (vu *VirtualUser) RunIteration(ctx context.Context) error {
	if vu.IsStopping() {
		return fmt.Errorf("VU %d: %w", vu.ID, ErrVUStopped)
	}

	vu.state.CompareAndSwap(int32(VUStateIdle), int32(VUStateRunning))
	iter := vu.iteration.Add(1)

	err := vu.Scenario.Iteration(ctx, vu)

	// A stop requested mid-iteration must survive.
	vu.state.CompareAndSwap(int32(VUStateRunning), int32(VUStateIdle))

	if ctx.Err() != nil {
		return ctx.Err()
	}

	vu.Metrics.RecordIteration()
	if err != nil {
		vu.Logger.Debug("iteration failed",
			zap.Int64("iter", iter),
			zap.String("scenario", vu.Scenario.Name()),
			zap.Error(err))
	}
	return err
}

// RecordRequest feeds a request outcome into the metrics engine under name.
func (vu *VirtualUser) RecordRequest(name string, sample RequestSample) {
	failed := sample.Failed()
	vu.Metrics.RecordLatency(sample.Duration, name, !failed, sample.BytesReceived)

	if failed {
		vu.Logger.Debug("request failed",
			zap.Int64("iter", vu.GetIteration()),
			zap.String("request", name),
			zap.Int("status", sample.StatusCode),
			zap.Error(sample.Err))
	}
}

// Check records the outcome of a named check and returns passed.
func (vu *VirtualUser) Check(name string, passed bool) bool {
	vu.Metrics.RecordCheck(name, passed)
	return passed
}

// StopCh is closed when a stop is requested.
func (vu *VirtualUser) StopCh() <-chan struct{} {
	return vu.stopCh
}

// RequestStop signals the VU to stop after completing the current iteration.
func (vu *VirtualUser) RequestStop() {
	if vu.state.CompareAndSwap(int32(VUStateRunning), int32(VUStateStopping)) ||
		vu.state.CompareAndSwap(int32(VUStateIdle), int32(VUStateStopping)) {
		close(vu.stopCh)
	}
}

// WaitForStop waits for the VU to stop with a timeout.
//
// Returns true if the VU stopped within the timeout, false otherwise.
func (vu *VirtualUser) WaitForStop(timeout time.Duration) bool {
	select {
	case <-vu.doneCh:
		return true
	case <-time.After(timeout):
		return false
	}
}

// MarkStopped marks the VU as fully stopped.
// Called when the goroutine running the VU exits.
func (vu *VirtualUser) MarkStopped() {
	prev := VUState(vu.state.Swap(int32(VUStateStopped)))
	if prev == VUStateIdle || prev == VUStateRunning {
		close(vu.stopCh)
	}
	vu.doneOnce.Do(func() { close(vu.doneCh) })
}

// SetData stores a value in the VU's variable scope.
func (vu *VirtualUser) SetData(key string, value interface{}) {
	vu.dataMu.Lock()
	defer vu.dataMu.Unlock()
	vu.data[key] = value
}

// GetData retrieves a value from the VU's variable scope.
func (vu *VirtualUser) GetData(key string) (interface{}, bool) {
	vu.dataMu.RLock()
	defer vu.dataMu.RUnlock()
	val, ok := vu.data[key]
	return val, ok
}
