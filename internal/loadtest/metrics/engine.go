// Package metrics aggregates request latencies, counters and check outcomes
// for a load test run.
package metrics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Engine collects and aggregates performance metrics using HDR histograms.
//
// Counters are atomic, histograms are mutex protected and a background
// emitter appends a time bucket every BucketInterval even when idle.
// Engine is safe for concurrent use.
type Engine struct {
	// 1µs to 1h, 3 significant figures
	latencyHist   *hdrhistogram.Histogram
	latencyHistMu sync.Mutex

	requestHists   map[string]*hdrhistogram.Histogram
	requestHistsMu sync.RWMutex

	totalRequests   atomic.Int64
	successRequests atomic.Int64
	failedRequests  atomic.Int64
	totalBytes      atomic.Int64
	iterations      atomic.Int64

	checks      map[string]*checkCounter
	checkOrder  []string
	checksMu    sync.RWMutex
	checkPasses atomic.Int64
	checkFails  atomic.Int64

	activeVUs atomic.Int32

	bucketStore *TimeBucketStore

	currentPhase Phase
	phaseMu      sync.RWMutex
	phaseHistory []PhaseChange

	startTime time.Time

	emitterCtx    context.Context
	emitterCancel context.CancelFunc
	emitterWg     sync.WaitGroup
	stopOnce      sync.Once

	config EngineConfig
}

type checkCounter struct {
	passes atomic.Int64
	fails  atomic.Int64
}

// NewEngine creates a new metrics engine with default configuration.
func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultEngineConfig())
}

// NewEngineWithConfig creates a new metrics engine with custom configuration.
// The background emitter starts immediately; call Stop when done.
func NewEngineWithConfig(config EngineConfig) *Engine {
	ctx, cancel := context.WithCancel(context.Background())

	engine := &Engine{
		latencyHist:   hdrhistogram.New(config.HistogramMin, config.HistogramMax, config.HistogramSigFigs),
		requestHists:  make(map[string]*hdrhistogram.Histogram),
		checks:        make(map[string]*checkCounter),
		bucketStore:   NewTimeBucketStore(config.MaxBuckets),
		currentPhase:  PhaseInit,
		startTime:     time.Now(),
		emitterCtx:    ctx,
		emitterCancel: cancel,
		config:        config,
	}

	engine.emitterWg.Add(1)
	go engine.runEmitter()

	return engine
}

// RecordLatency records one completed (or failed) request.
//
// requestName feeds the per-request breakdown and may be empty.
func (e *Engine) RecordLatency(duration time.Duration, requestName string, success bool, bytes int64) {
	latencyMicros := duration.Microseconds()
	if latencyMicros < e.config.HistogramMin {
		latencyMicros = e.config.HistogramMin
	}
	if latencyMicros > e.config.HistogramMax {
		latencyMicros = e.config.HistogramMax
	}

	e.latencyHistMu.Lock()
	_ = e.latencyHist.RecordValue(latencyMicros)
	e.latencyHistMu.Unlock()

	if requestName != "" {
		e.recordRequestHistogram(requestName, latencyMicros)
	}

	e.totalRequests.Add(1)
	e.totalBytes.Add(bytes)
	if success {
		e.successRequests.Add(1)
	} else {
		e.failedRequests.Add(1)
	}

	e.bucketStore.RecordRequest(success)
}

// HDR histogram RecordValue is not thread-safe, so the lock covers it too.
func (e *Engine) recordRequestHistogram(name string, latencyMicros int64) {
	e.requestHistsMu.Lock()
	defer e.requestHistsMu.Unlock()

	hist, exists := e.requestHists[name]
	if !exists {
		hist = hdrhistogram.New(e.config.HistogramMin, e.config.HistogramMax, e.config.HistogramSigFigs)
		e.requestHists[name] = hist
	}

	_ = hist.RecordValue(latencyMicros)
}

// RecordCheck records one evaluation of a named check.
func (e *Engine) RecordCheck(name string, passed bool) {
	e.checksMu.RLock()
	c, ok := e.checks[name]
	e.checksMu.RUnlock()

	if !ok {
		e.checksMu.Lock()
		if c, ok = e.checks[name]; !ok {
			c = &checkCounter{}
			e.checks[name] = c
			e.checkOrder = append(e.checkOrder, name)
		}
		e.checksMu.Unlock()
	}

	if passed {
		c.passes.Add(1)
		e.checkPasses.Add(1)
	} else {
		c.fails.Add(1)
		e.checkFails.Add(1)
	}
}

// GetChecks returns per-check counts in first-seen order.
func (e *Engine) GetChecks() []CheckStats {
	e.checksMu.RLock()
	defer e.checksMu.RUnlock()

	result := make([]CheckStats, 0, len(e.checkOrder))
	for _, name := range e.checkOrder {
		c := e.checks[name]
		result = append(result, CheckStats{
			Name:   name,
			Passes: c.passes.Load(),
			Fails:  c.fails.Load(),
		})
	}
	return result
}

// RecordIteration counts one finished scenario iteration.
func (e *Engine) RecordIteration() {
	e.iterations.Add(1)
}

// SetPhase updates the current test phase. Repeated calls with the same
// phase are ignored.
func (e *Engine) SetPhase(phase Phase) {
	e.phaseMu.Lock()
	defer e.phaseMu.Unlock()

	if e.currentPhase == phase {
		return
	}

	e.currentPhase = phase
	e.phaseHistory = append(e.phaseHistory, PhaseChange{
		Phase:     phase,
		Timestamp: time.Now(),
		Requests:  e.totalRequests.Load(),
	})
}

// GetPhase returns the current test phase.
func (e *Engine) GetPhase() Phase {
	e.phaseMu.RLock()
	defer e.phaseMu.RUnlock()
	return e.currentPhase
}

// SetActiveVUs updates the active VU count.
func (e *Engine) SetActiveVUs(count int) {
	e.activeVUs.Store(int32(count))
}

// GetActiveVUs returns the current active VU count.
func (e *Engine) GetActiveVUs() int {
	return int(e.activeVUs.Load())
}

func (e *Engine) runEmitter() {
	defer e.emitterWg.Done()

	ticker := time.NewTicker(e.config.BucketInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.emitterCtx.Done():
			return
		case <-ticker.C:
			e.emitBucket()
		}
	}
}

func (e *Engine) emitBucket() {
	e.bucketStore.CreateBucket(
		e.totalRequests.Load(),
		e.successRequests.Load(),
		e.failedRequests.Load(),
		e.totalBytes.Load(),
		e.GetLatencyPercentiles(),
		e.GetActiveVUs(),
		e.GetPhase(),
	)
}

// GetLatencyPercentiles returns current latency percentiles.
func (e *Engine) GetLatencyPercentiles() LatencyPercentiles {
	e.latencyHistMu.Lock()
	defer e.latencyHistMu.Unlock()

	return LatencyPercentiles{
		Min: micros(e.latencyHist.Min()),
		Max: micros(e.latencyHist.Max()),
		P50: micros(e.latencyHist.ValueAtQuantile(50)),
		P90: micros(e.latencyHist.ValueAtQuantile(90)),
		P95: micros(e.latencyHist.ValueAtQuantile(95)),
		P99: micros(e.latencyHist.ValueAtQuantile(99)),
	}
}

// GetSnapshot returns a point-in-time snapshot of all metrics.
func (e *Engine) GetSnapshot() *Snapshot {
	e.latencyHistMu.Lock()
	latencyStats := latencyStatsOf(e.latencyHist)
	e.latencyHistMu.Unlock()

	elapsed := time.Since(e.startTime)
	totalReqs := e.totalRequests.Load()
	failedReqs := e.failedRequests.Load()

	overallRPS := 0.0
	if elapsed.Seconds() > 0 {
		overallRPS = float64(totalReqs) / elapsed.Seconds()
	}

	steadyRPS, steadyBuckets := e.bucketStore.CalculateSteadyStateRPS()

	rps := overallRPS
	if steadyBuckets > 0 {
		rps = steadyRPS
	}

	// Rate over the last closed bucket.
	currentRPS := 0.0
	if latest := e.bucketStore.GetLatestBucket(); latest != nil {
		currentRPS = latest.IntervalRPS
	}

	errorRate := 0.0
	if totalReqs > 0 {
		errorRate = float64(failedReqs) / float64(totalReqs)
	}

	passes, fails := e.checkPasses.Load(), e.checkFails.Load()
	checkRate := 0.0
	if passes+fails > 0 {
		checkRate = float64(passes) / float64(passes+fails)
	}

	return &Snapshot{
		TotalRequests:   totalReqs,
		SuccessRequests: e.successRequests.Load(),
		FailedRequests:  failedReqs,
		TotalBytes:      e.totalBytes.Load(),
		Iterations:      e.iterations.Load(),
		Latency:         latencyStats,
		RPS:             rps,
		SteadyStateRPS:  steadyRPS,
		CurrentRPS:      currentRPS,
		ErrorRate:       errorRate,
		ChecksPassed:    passes,
		ChecksFailed:    fails,
		CheckRate:       checkRate,
		ActiveVUs:       e.GetActiveVUs(),
		CurrentPhase:    e.GetPhase(),
		Elapsed:         elapsed,
		StartTime:       e.startTime,
		Timestamp:       time.Now(),
	}
}

// GetTimeSeries returns all time-series buckets.
func (e *Engine) GetTimeSeries() []*TimeBucket {
	return e.bucketStore.GetBuckets()
}

// GetPhaseHistory returns the history of phase changes.
func (e *Engine) GetPhaseHistory() []PhaseChange {
	e.phaseMu.RLock()
	defer e.phaseMu.RUnlock()

	result := make([]PhaseChange, len(e.phaseHistory))
	copy(result, e.phaseHistory)
	return result
}

// GetRequestStats returns latency statistics per request name.
func (e *Engine) GetRequestStats() map[string]LatencyStats {
	e.requestHistsMu.RLock()
	defer e.requestHistsMu.RUnlock()

	result := make(map[string]LatencyStats, len(e.requestHists))
	for name, hist := range e.requestHists {
		result[name] = latencyStatsOf(hist)
	}
	return result
}

// Stop stops the emitter and writes a final bucket. Safe to call twice.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.emitterCancel()
		e.emitterWg.Wait()
		e.emitBucket()
	})
}

// Reset resets all metrics to initial state.
func (e *Engine) Reset() {
	e.latencyHistMu.Lock()
	e.latencyHist.Reset()
	e.latencyHistMu.Unlock()

	e.requestHistsMu.Lock()
	e.requestHists = make(map[string]*hdrhistogram.Histogram)
	e.requestHistsMu.Unlock()

	e.checksMu.Lock()
	e.checks = make(map[string]*checkCounter)
	e.checkOrder = nil
	e.checksMu.Unlock()

	e.totalRequests.Store(0)
	e.successRequests.Store(0)
	e.failedRequests.Store(0)
	e.totalBytes.Store(0)
	e.iterations.Store(0)
	e.checkPasses.Store(0)
	e.checkFails.Store(0)
	e.activeVUs.Store(0)

	e.phaseMu.Lock()
	e.currentPhase = PhaseInit
	e.phaseHistory = nil
	e.phaseMu.Unlock()

	e.bucketStore.Reset()
	e.startTime = time.Now()
}

func latencyStatsOf(h *hdrhistogram.Histogram) LatencyStats {
	return LatencyStats{
		Min:    micros(h.Min()),
		Max:    micros(h.Max()),
		Mean:   time.Duration(h.Mean() * float64(time.Microsecond)),
		StdDev: time.Duration(h.StdDev() * float64(time.Microsecond)),
		P50:    micros(h.ValueAtQuantile(50)),
		P90:    micros(h.ValueAtQuantile(90)),
		P95:    micros(h.ValueAtQuantile(95)),
		P99:    micros(h.ValueAtQuantile(99)),
		Count:  h.TotalCount(),
	}
}

func micros(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}
