package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// TimeBucketStore keeps time-bucketed metrics in a bounded ring buffer.
//
// RecordRequest is lock-free; CreateBucket and the readers take the mutex.
type TimeBucketStore struct {
	buckets    []*TimeBucket
	head       int // next write position
	count      int
	maxBuckets int
	mu         sync.RWMutex

	lastBucketTime time.Time

	// current interval accumulators
	currentRequests atomic.Int64
	currentFailures atomic.Int64
}

// NewTimeBucketStore creates a store holding at most maxBuckets buckets.
func NewTimeBucketStore(maxBuckets int) *TimeBucketStore {
	if maxBuckets <= 0 {
		maxBuckets = 3600
	}

	return &TimeBucketStore{
		buckets:        make([]*TimeBucket, maxBuckets),
		maxBuckets:     maxBuckets,
		lastBucketTime: time.Now(),
	}
}

// RecordRequest adds a request to the current interval.
func (tbs *TimeBucketStore) RecordRequest(success bool) {
	tbs.currentRequests.Add(1)
	if !success {
		tbs.currentFailures.Add(1)
	}
}

// CreateBucket closes the current interval and appends it to the ring.
func (tbs *TimeBucketStore) CreateBucket(
	totalRequests, totalSuccesses, totalFailures, totalBytes int64,
	latencies LatencyPercentiles,
	activeVUs int,
	phase Phase,
) *TimeBucket {
	tbs.mu.Lock()
	defer tbs.mu.Unlock()

	now := time.Now()

	intervalRequests := tbs.currentRequests.Swap(0)
	intervalFailures := tbs.currentFailures.Swap(0)

	intervalDuration := now.Sub(tbs.lastBucketTime).Seconds()
	if intervalDuration <= 0 {
		intervalDuration = 1.0
	}

	intervalErrorRate := 0.0
	if intervalRequests > 0 {
		intervalErrorRate = float64(intervalFailures) / float64(intervalRequests)
	}

	bucket := &TimeBucket{
		Timestamp:         now,
		TotalRequests:     totalRequests,
		TotalSuccesses:    totalSuccesses,
		TotalFailures:     totalFailures,
		TotalBytes:        totalBytes,
		IntervalRequests:  intervalRequests,
		IntervalRPS:       float64(intervalRequests) / intervalDuration,
		IntervalErrorRate: intervalErrorRate,
		LatencyMin:        latencies.Min,
		LatencyMax:        latencies.Max,
		LatencyP50:        latencies.P50,
		LatencyP90:        latencies.P90,
		LatencyP95:        latencies.P95,
		LatencyP99:        latencies.P99,
		ActiveVUs:         activeVUs,
		Phase:             phase,
	}

	tbs.buckets[tbs.head] = bucket
	tbs.head = (tbs.head + 1) % tbs.maxBuckets
	if tbs.count < tbs.maxBuckets {
		tbs.count++
	}
	tbs.lastBucketTime = now

	return bucket
}

// GetBuckets returns all buckets in chronological order.
func (tbs *TimeBucketStore) GetBuckets() []*TimeBucket {
	tbs.mu.RLock()
	defer tbs.mu.RUnlock()

	if tbs.count == 0 {
		return nil
	}

	result := make([]*TimeBucket, tbs.count)
	start := 0
	if tbs.count == tbs.maxBuckets {
		start = tbs.head
	}
	for i := 0; i < tbs.count; i++ {
		result[i] = tbs.buckets[(start+i)%tbs.maxBuckets]
	}

	return result
}

// GetBucketsForPhase returns the buckets emitted during phase.
func (tbs *TimeBucketStore) GetBucketsForPhase(phase Phase) []*TimeBucket {
	var result []*TimeBucket
	for _, b := range tbs.GetBuckets() {
		if b.Phase == phase {
			result = append(result, b)
		}
	}
	return result
}

// GetLatestBucket returns the most recent bucket, or nil if none.
func (tbs *TimeBucketStore) GetLatestBucket() *TimeBucket {
	tbs.mu.RLock()
	defer tbs.mu.RUnlock()

	if tbs.count == 0 {
		return nil
	}
	return tbs.buckets[(tbs.head-1+tbs.maxBuckets)%tbs.maxBuckets]
}

// Count returns the number of stored buckets.
func (tbs *TimeBucketStore) Count() int {
	tbs.mu.RLock()
	defer tbs.mu.RUnlock()
	return tbs.count
}

// Reset drops all buckets and interval counts.
func (tbs *TimeBucketStore) Reset() {
	tbs.mu.Lock()
	defer tbs.mu.Unlock()

	tbs.buckets = make([]*TimeBucket, tbs.maxBuckets)
	tbs.head = 0
	tbs.count = 0
	tbs.lastBucketTime = time.Now()
	tbs.currentRequests.Store(0)
	tbs.currentFailures.Store(0)
}

// CalculateSteadyStateRPS averages interval RPS over steady-phase buckets.
//
// Returns the average and the number of buckets it was computed from.
// Ramp periods are excluded, which makes it the better throughput figure.
func (tbs *TimeBucketStore) CalculateSteadyStateRPS() (float64, int) {
	steady := tbs.GetBucketsForPhase(PhaseSteady)
	if len(steady) == 0 {
		return 0, 0
	}

	var sum float64
	for _, b := range steady {
		sum += b.IntervalRPS
	}
	return sum / float64(len(steady)), len(steady)
}
