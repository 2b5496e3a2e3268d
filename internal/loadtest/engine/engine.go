// Package engine runs a configured load test end to end: it builds the
// executor and scheduler, collects metrics and evaluates thresholds.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rokkincat/trackload/internal/config"
	"github.com/rokkincat/trackload/internal/loadtest"
	"github.com/rokkincat/trackload/internal/loadtest/executor"
	"github.com/rokkincat/trackload/internal/loadtest/metrics"
	"github.com/rokkincat/trackload/internal/logging"
)

// Engine orchestrates one load test run.
//
// Example usage:
//
//	cfg, _ := config.LoadFile("trackload.yaml")
//	eng, _ := engine.NewEngine(cfg, tracker.NewLoadScenario(tracker.ScenarioConfigFrom(cfg)), logger)
//	result, _ := eng.Run(ctx)
//	fmt.Printf("passed: %v\n", result.Passed)
type Engine struct {
	config     *config.Config
	scenario   loadtest.Scenario
	logger     *zap.Logger
	httpConfig loadtest.HTTPClientConfig

	metricsEngine *metrics.Engine
	executor      executor.Executor
	metricsAddr   string

	mu        sync.RWMutex
	startTime time.Time
	running   bool
}

// RequestStats contains statistics for one named request.
type RequestStats struct {
	Name    string               `json:"name"`
	Count   int64                `json:"count"`
	Latency metrics.LatencyStats `json:"latency"`
}

// TestResult contains the complete outcome of a run.
type TestResult struct {
	Name      string        `json:"name"`
	Scenario  string        `json:"scenario"`
	Executor  string        `json:"executor"`
	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
	Duration  time.Duration `json:"duration"`

	// Interrupted is set when the run was cancelled before its profile ended
	Interrupted bool `json:"interrupted,omitempty"`

	Iterations   int64                   `json:"iterations"`
	Metrics      *metrics.Snapshot       `json:"metrics"`
	TimeSeries   []*metrics.TimeBucket   `json:"timeSeries,omitempty"`
	Phases       []metrics.PhaseChange   `json:"phases,omitempty"`
	RequestStats map[string]RequestStats `json:"requestStats,omitempty"`
	Checks       []metrics.CheckStats    `json:"checks,omitempty"`

	Passed     bool              `json:"passed"`
	Thresholds []ThresholdResult `json:"thresholds,omitempty"`
}

// ThresholdResult contains the result of a threshold evaluation.
type ThresholdResult struct {
	Metric     string `json:"metric"`
	Expression string `json:"expression"`
	Passed     bool   `json:"passed"`
	Value      string `json:"value"`
	Message    string `json:"message,omitempty"`
}

// NewEngine validates cfg and prepares a run of scenario. A nil logger is
// replaced by a no-op one.
func NewEngine(cfg *config.Config, scenario loadtest.Scenario, logger *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if scenario == nil {
		return nil, errors.New("scenario is required")
	}
	if logger == nil {
		logger = logging.Nop()
	}

	httpConfig := loadtest.DefaultHTTPClientConfig()
	httpConfig.Timeout = cfg.HTTP.Timeout.GetDuration(httpConfig.Timeout)
	if cfg.HTTP.MaxIdleConnsPerHost > 0 {
		httpConfig.MaxIdleConnsPerHost = cfg.HTTP.MaxIdleConnsPerHost
	}
	httpConfig.InsecureSkipVerify = cfg.HTTP.InsecureSkipVerify
	httpConfig.UseSharedClient = !cfg.Load.NoConnectionReuse

	return &Engine{
		config:     cfg,
		scenario:   scenario,
		logger:     logger,
		httpConfig: httpConfig,
	}, nil
}

// Run executes the load profile and blocks until it finishes or ctx is
// cancelled. Cancellation still yields a result covering what ran.
func (e *Engine) Run(ctx context.Context) (*TestResult, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, errors.New("engine is already running")
	}
	e.running = true
	e.metricsEngine = metrics.NewEngine()
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()
	defer e.metricsEngine.Stop()

	e.metricsEngine.SetPhase(metrics.PhaseInit)

	stopServer, err := e.serveMetrics()
	if err != nil {
		return nil, err
	}
	defer stopServer()

	execCfg := executor.ConfigFromLoad(e.config.Name, &e.config.Load)
	exec, err := executor.CreateAndInitExecutor(ctx, execCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create executor: %w", err)
	}
	scheduler := loadtest.NewVUScheduler(e.scenario, e.metricsEngine, e.httpConfig, e.logger)

	e.mu.Lock()
	e.executor = exec
	e.startTime = time.Now()
	e.mu.Unlock()

	e.logger.Info("load test started",
		zap.String("name", e.config.Name),
		zap.String("host", e.config.Target.Host),
		zap.String("executor", string(exec.Type())),
		zap.Int("maxVUs", executor.CalculateMaxVUs(execCfg)),
		zap.Duration("duration", execCfg.TotalDuration()))

	runErr := exec.Run(ctx, scheduler, e.metricsEngine)

	graceful := execCfg.GracefulStop
	if graceful <= 0 {
		graceful = executor.DefaultGracefulStop
	}
	scheduler.Shutdown(graceful)

	result := e.buildResult(exec)
	result.Interrupted = ctx.Err() != nil

	e.logger.Info("load test finished",
		zap.Duration("elapsed", result.Duration),
		zap.Int64("iterations", result.Iterations),
		zap.Int64("requests", result.Metrics.TotalRequests),
		zap.Bool("interrupted", result.Interrupted),
		zap.Bool("passed", result.Passed))

	if runErr != nil {
		return result, fmt.Errorf("executor failed: %w", runErr)
	}
	return result, nil
}

func (e *Engine) buildResult(exec executor.Executor) *TestResult {
	snapshot := e.metricsEngine.GetSnapshot()

	requestStats := make(map[string]RequestStats)
	for name, stats := range e.metricsEngine.GetRequestStats() {
		requestStats[name] = RequestStats{Name: name, Count: stats.Count, Latency: stats}
	}

	thresholds := e.evaluateThresholds(snapshot)
	passed := true
	for _, tr := range thresholds {
		if !tr.Passed {
			passed = false
			break
		}
	}

	end := time.Now()
	return &TestResult{
		Name:         e.config.Name,
		Scenario:     e.scenario.Name(),
		Executor:     string(exec.Type()),
		StartTime:    e.startTime,
		EndTime:      end,
		Duration:     end.Sub(e.startTime),
		Iterations:   snapshot.Iterations,
		Metrics:      snapshot,
		TimeSeries:   e.metricsEngine.GetTimeSeries(),
		Phases:       e.metricsEngine.GetPhaseHistory(),
		RequestStats: requestStats,
		Checks:       e.metricsEngine.GetChecks(),
		Passed:       passed,
		Thresholds:   thresholds,
	}
}

// serveMetrics exposes the live metrics at /metrics when metrics.addr is
// set. The returned func shuts the server down.
func (e *Engine) serveMetrics() (func(), error) {
	addr := e.config.Metrics.Addr
	if addr == "" {
		return func() {}, nil
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		metrics.NewCollector(e.metricsEngine),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on metrics address %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	e.mu.Lock()
	e.metricsAddr = ln.Addr().String()
	e.mu.Unlock()

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	e.logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			e.logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}, nil
}

// MetricsAddr returns the address the metrics endpoint listens on, or ""
// when it is disabled or the run has not started.
func (e *Engine) MetricsAddr() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.metricsAddr
}

// GetMetrics returns the current metrics snapshot.
func (e *Engine) GetMetrics() *metrics.Snapshot {
	e.mu.RLock()
	me := e.metricsEngine
	e.mu.RUnlock()

	if me == nil {
		return nil
	}
	return me.GetSnapshot()
}

// GetChecks returns the current check tallies.
func (e *Engine) GetChecks() []metrics.CheckStats {
	e.mu.RLock()
	me := e.metricsEngine
	e.mu.RUnlock()

	if me == nil {
		return nil
	}
	return me.GetChecks()
}

// GetStats returns the executor's live statistics.
func (e *Engine) GetStats() *executor.Stats {
	e.mu.RLock()
	exec := e.executor
	e.mu.RUnlock()

	if exec == nil {
		return nil
	}
	return exec.GetStats()
}

// GetProgress returns run progress from 0.0 to 1.0.
func (e *Engine) GetProgress() float64 {
	e.mu.RLock()
	exec := e.executor
	e.mu.RUnlock()

	if exec == nil {
		return 0
	}
	return exec.GetProgress()
}

// IsRunning returns true if the engine is currently running.
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Stop ends the run early, letting in-flight iterations finish within the
// graceful stop window.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.RLock()
	exec := e.executor
	running := e.running
	e.mu.RUnlock()

	if !running || exec == nil {
		return nil
	}
	return exec.Stop(ctx)
}
