package engine

import (
	"testing"
	"time"

	"github.com/rokkincat/trackload/internal/config"
	"github.com/rokkincat/trackload/internal/loadtest/metrics"
)

func TestEvaluateThresholds(t *testing.T) {
	snapshot := &metrics.Snapshot{
		TotalRequests: 1000,
		RPS:           50,
		ErrorRate:     0.02,
		CheckRate:     0.97,
		Latency: metrics.LatencyStats{
			Min:  5 * time.Millisecond,
			Mean: 40 * time.Millisecond,
			P50:  35 * time.Millisecond,
			P95:  180 * time.Millisecond,
			P99:  400 * time.Millisecond,
			Max:  900 * time.Millisecond,
		},
	}

	tests := []struct {
		name       string
		thresholds config.ThresholdsConfig
		want       []bool
	}{
		{"p95 under", config.ThresholdsConfig{HTTPReqDuration: []string{"p95 < 200ms"}}, []bool{true}},
		{"p99 over", config.ThresholdsConfig{HTTPReqDuration: []string{"p99 < 300ms"}}, []bool{false}},
		{"avg and max", config.ThresholdsConfig{HTTPReqDuration: []string{"avg <= 40ms", "max < 1s"}}, []bool{true, true}},
		{"med", config.ThresholdsConfig{HTTPReqDuration: []string{"med > 30ms"}}, []bool{true}},
		{"error rate", config.ThresholdsConfig{HTTPReqFailed: []string{"rate < 0.01"}}, []bool{false}},
		{"request count", config.ThresholdsConfig{HTTPReqs: []string{"count >= 1000"}}, []bool{true}},
		{"request rate", config.ThresholdsConfig{HTTPReqs: []string{"rate > 100"}}, []bool{false}},
		{"checks", config.ThresholdsConfig{Checks: []string{"rate > 0.95", "rate == 1"}}, []bool{true, false}},
		{"unparseable", config.ThresholdsConfig{HTTPReqFailed: []string{"p95 < 1"}}, []bool{false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Engine{config: &config.Config{Thresholds: tt.thresholds}}
			results := e.evaluateThresholds(snapshot)

			if len(results) != len(tt.want) {
				t.Fatalf("got %d results, want %d", len(results), len(tt.want))
			}
			for i, r := range results {
				if r.Passed != tt.want[i] {
					t.Errorf("%s %q passed = %v, want %v (%s)", r.Metric, r.Expression, r.Passed, tt.want[i], r.Message)
				}
				if !r.Passed && r.Message == "" {
					t.Errorf("%q failed without a message", r.Expression)
				}
			}
		})
	}
}

func TestEvaluateThresholds_None(t *testing.T) {
	e := &Engine{config: &config.Config{}}
	if got := e.evaluateThresholds(&metrics.Snapshot{}); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}

func TestCompareValues(t *testing.T) {
	tests := []struct {
		actual    float64
		op        string
		threshold float64
		want      bool
	}{
		{1, "<", 2, true},
		{2, "<=", 2, true},
		{3, ">", 2, true},
		{2, ">=", 3, false},
		{2, "==", 2, true},
		{2, "!=", 2, false},
		{2, "~", 2, false},
	}
	for _, tt := range tests {
		if got := compareValues(tt.actual, tt.op, tt.threshold); got != tt.want {
			t.Errorf("compareValues(%v %s %v) = %v, want %v", tt.actual, tt.op, tt.threshold, got, tt.want)
		}
	}
}
