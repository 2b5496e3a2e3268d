package metrics

import "testing"

func TestTimeBucketStore_RingBuffer(t *testing.T) {
	store := NewTimeBucketStore(3)

	for i := int64(1); i <= 5; i++ {
		store.RecordRequest(true)
		store.CreateBucket(i, i, 0, 0, LatencyPercentiles{}, 1, PhaseSteady)
	}

	if store.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", store.Count())
	}

	buckets := store.GetBuckets()
	for i, want := range []int64{3, 4, 5} {
		if buckets[i].TotalRequests != want {
			t.Errorf("buckets[%d].TotalRequests = %d, want %d", i, buckets[i].TotalRequests, want)
		}
	}

	if latest := store.GetLatestBucket(); latest == nil || latest.TotalRequests != 5 {
		t.Errorf("GetLatestBucket() = %+v, want TotalRequests 5", latest)
	}
}

func TestTimeBucketStore_IntervalCounts(t *testing.T) {
	store := NewTimeBucketStore(10)

	store.RecordRequest(true)
	store.RecordRequest(false)
	store.RecordRequest(false)
	store.RecordRequest(true)

	b := store.CreateBucket(4, 2, 2, 0, LatencyPercentiles{}, 2, PhaseRampUp)
	if b.IntervalRequests != 4 {
		t.Errorf("IntervalRequests = %d, want 4", b.IntervalRequests)
	}
	if b.IntervalErrorRate != 0.5 {
		t.Errorf("IntervalErrorRate = %v, want 0.5", b.IntervalErrorRate)
	}

	next := store.CreateBucket(4, 2, 2, 0, LatencyPercentiles{}, 2, PhaseRampUp)
	if next.IntervalRequests != 0 {
		t.Errorf("IntervalRequests after swap = %d, want 0", next.IntervalRequests)
	}
}

func TestTimeBucketStore_SteadyStateRPS(t *testing.T) {
	store := NewTimeBucketStore(10)

	if rps, n := store.CalculateSteadyStateRPS(); rps != 0 || n != 0 {
		t.Errorf("empty store = (%v, %d), want (0, 0)", rps, n)
	}

	store.CreateBucket(0, 0, 0, 0, LatencyPercentiles{}, 1, PhaseRampUp)
	store.RecordRequest(true)
	store.CreateBucket(1, 1, 0, 0, LatencyPercentiles{}, 1, PhaseSteady)

	if _, n := store.CalculateSteadyStateRPS(); n != 1 {
		t.Errorf("steady buckets = %d, want 1", n)
	}
	if len(store.GetBucketsForPhase(PhaseRampUp)) != 1 {
		t.Error("expected one ramp-up bucket")
	}

	store.Reset()
	if store.Count() != 0 || store.GetLatestBucket() != nil {
		t.Error("Reset() should empty the store")
	}
}
