package engine

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rokkincat/trackload/internal/config"
	"github.com/rokkincat/trackload/internal/loadtest/metrics"
)

// evaluateThresholds evaluates all configured thresholds.
func (e *Engine) evaluateThresholds(snapshot *metrics.Snapshot) []ThresholdResult {
	t := e.config.Thresholds
	if t.IsEmpty() {
		return nil
	}

	var results []ThresholdResult
	for _, expr := range t.HTTPReqDuration {
		results = append(results, evaluateDuration(expr, snapshot))
	}
	for _, expr := range t.HTTPReqFailed {
		results = append(results, evaluateRate(config.MetricHTTPReqFailed, expr, snapshot.ErrorRate))
	}
	for _, expr := range t.HTTPReqs {
		results = append(results, evaluateRequests(expr, snapshot))
	}
	for _, expr := range t.Checks {
		results = append(results, evaluateRate(config.MetricChecks, expr, snapshot.CheckRate))
	}
	return results
}

func evaluateDuration(expr string, snapshot *metrics.Snapshot) ThresholdResult {
	result := ThresholdResult{Metric: config.MetricHTTPReqDuration, Expression: expr}

	te, err := config.ParseThreshold(config.MetricHTTPReqDuration, expr)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse expression: %v", err)
		return result
	}
	threshold, err := config.ParseDurationString(te.Value)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse threshold value: %v", err)
		return result
	}

	var actual time.Duration
	switch te.Aggregation {
	case "min":
		actual = snapshot.Latency.Min
	case "max":
		actual = snapshot.Latency.Max
	case "avg":
		actual = snapshot.Latency.Mean
	case "med", "p50":
		actual = snapshot.Latency.P50
	case "p90":
		actual = snapshot.Latency.P90
	case "p95":
		actual = snapshot.Latency.P95
	case "p99":
		actual = snapshot.Latency.P99
	}

	result.Value = actual.String()
	result.Passed = compareValues(float64(actual), te.Op, float64(threshold))
	if !result.Passed {
		result.Message = fmt.Sprintf("%s is %s, threshold: %s %s", te.Aggregation, actual, te.Op, threshold)
	}
	return result
}

// evaluateRate evaluates "rate <op> x" against a ratio metric.
func evaluateRate(metric, expr string, actual float64) ThresholdResult {
	result := ThresholdResult{Metric: metric, Expression: expr}

	te, err := config.ParseThreshold(metric, expr)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse expression: %v", err)
		return result
	}
	threshold, _ := strconv.ParseFloat(te.Value, 64)

	result.Value = fmt.Sprintf("%.4f", actual)
	result.Passed = compareValues(actual, te.Op, threshold)
	if !result.Passed {
		result.Message = fmt.Sprintf("rate is %.4f, threshold: %s %.4f", actual, te.Op, threshold)
	}
	return result
}

func evaluateRequests(expr string, snapshot *metrics.Snapshot) ThresholdResult {
	result := ThresholdResult{Metric: config.MetricHTTPReqs, Expression: expr}

	te, err := config.ParseThreshold(config.MetricHTTPReqs, expr)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse expression: %v", err)
		return result
	}
	threshold, _ := strconv.ParseFloat(te.Value, 64)

	actual := snapshot.RPS
	if te.Aggregation == "count" {
		actual = float64(snapshot.TotalRequests)
	}

	result.Value = fmt.Sprintf("%.2f", actual)
	result.Passed = compareValues(actual, te.Op, threshold)
	if !result.Passed {
		result.Message = fmt.Sprintf("%s is %.2f, threshold: %s %.2f", te.Aggregation, actual, te.Op, threshold)
	}
	return result
}

// compareValues compares two values using the given operator.
func compareValues(actual float64, op string, threshold float64) bool {
	switch op {
	case "<":
		return actual < threshold
	case "<=":
		return actual <= threshold
	case ">":
		return actual > threshold
	case ">=":
		return actual >= threshold
	case "==":
		return actual == threshold
	case "!=":
		return actual != threshold
	default:
		return false
	}
}
