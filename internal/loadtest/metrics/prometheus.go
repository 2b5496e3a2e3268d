package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "trackload"

// Collector exposes an Engine's live state as Prometheus metrics.
// Values are read from a fresh snapshot on every scrape.
type Collector struct {
	engine *Engine

	requests       *prometheus.Desc
	failedRequests *prometheus.Desc
	bytes          *prometheus.Desc
	iterations     *prometheus.Desc
	activeVUs      *prometheus.Desc
	rps            *prometheus.Desc
	latency        *prometheus.Desc
	requestLatency *prometheus.Desc
	checks         *prometheus.Desc
	phase          *prometheus.Desc
}

// NewCollector creates a collector reading from engine.
func NewCollector(engine *Engine) *Collector {
	return &Collector{
		engine: engine,
		requests: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "http_reqs_total"),
			"Total HTTP requests issued.", nil, nil),
		failedRequests: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "http_req_failed_total"),
			"HTTP requests that errored or returned a failing status.", nil, nil),
		bytes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "data_received_bytes_total"),
			"Response bytes received.", nil, nil),
		iterations: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "iterations_total"),
			"Completed scenario iterations.", nil, nil),
		activeVUs: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "vus"),
			"Currently active virtual users.", nil, nil),
		rps: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "http_reqs_per_second"),
			"Request throughput (steady-state when available).", nil, nil),
		latency: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "http_req_duration_seconds"),
			"Request latency percentiles across all requests.", []string{"quantile"}, nil),
		requestLatency: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "request_duration_seconds"),
			"Request latency percentiles per named request.", []string{"request", "quantile"}, nil),
		checks: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "checks_total"),
			"Check evaluations by outcome.", []string{"check", "result"}, nil),
		phase: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "phase"),
			"Current test phase (1 for the active phase).", []string{"phase"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.requests
	ch <- c.failedRequests
	ch <- c.bytes
	ch <- c.iterations
	ch <- c.activeVUs
	ch <- c.rps
	ch <- c.latency
	ch <- c.requestLatency
	ch <- c.checks
	ch <- c.phase
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.engine.GetSnapshot()

	ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(snap.TotalRequests))
	ch <- prometheus.MustNewConstMetric(c.failedRequests, prometheus.CounterValue, float64(snap.FailedRequests))
	ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.CounterValue, float64(snap.TotalBytes))
	ch <- prometheus.MustNewConstMetric(c.iterations, prometheus.CounterValue, float64(snap.Iterations))
	ch <- prometheus.MustNewConstMetric(c.activeVUs, prometheus.GaugeValue, float64(snap.ActiveVUs))
	ch <- prometheus.MustNewConstMetric(c.rps, prometheus.GaugeValue, snap.RPS)

	emitQuantiles(ch, c.latency, snap.Latency)
	for name, stats := range c.engine.GetRequestStats() {
		emitQuantiles(ch, c.requestLatency, stats, name)
	}

	for _, check := range c.engine.GetChecks() {
		ch <- prometheus.MustNewConstMetric(c.checks, prometheus.CounterValue, float64(check.Passes), check.Name, "pass")
		ch <- prometheus.MustNewConstMetric(c.checks, prometheus.CounterValue, float64(check.Fails), check.Name, "fail")
	}

	ch <- prometheus.MustNewConstMetric(c.phase, prometheus.GaugeValue, 1, string(snap.CurrentPhase))
}

func emitQuantiles(ch chan<- prometheus.Metric, desc *prometheus.Desc, stats LatencyStats, labels ...string) {
	quantiles := []struct {
		q string
		v float64
	}{
		{"0.5", stats.P50.Seconds()},
		{"0.9", stats.P90.Seconds()},
		{"0.95", stats.P95.Seconds()},
		{"0.99", stats.P99.Seconds()},
	}
	for _, q := range quantiles {
		values := append(append([]string{}, labels...), q.q)
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, q.v, values...)
	}
}

// Ensure Collector implements prometheus.Collector
var _ prometheus.Collector = (*Collector)(nil)
