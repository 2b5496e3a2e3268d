package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	engine := NewEngine()
	defer engine.Stop()

	engine.RecordLatency(12*time.Millisecond, "point", true, 64)
	engine.RecordLatency(30*time.Millisecond, "point", false, 16)
	engine.RecordCheck("point creation status was ok", true)
	engine.RecordCheck("point creation status was ok", false)
	engine.RecordIteration()
	engine.SetActiveVUs(3)
	engine.SetPhase(PhaseSteady)

	collector := NewCollector(engine)
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(collector))

	expected := `
# HELP trackload_http_reqs_total Total HTTP requests issued.
# TYPE trackload_http_reqs_total counter
trackload_http_reqs_total 2
# HELP trackload_http_req_failed_total HTTP requests that errored or returned a failing status.
# TYPE trackload_http_req_failed_total counter
trackload_http_req_failed_total 1
# HELP trackload_vus Currently active virtual users.
# TYPE trackload_vus gauge
trackload_vus 3
# HELP trackload_checks_total Check evaluations by outcome.
# TYPE trackload_checks_total counter
trackload_checks_total{check="point creation status was ok",result="fail"} 1
trackload_checks_total{check="point creation status was ok",result="pass"} 1
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"trackload_http_reqs_total",
		"trackload_http_req_failed_total",
		"trackload_vus",
		"trackload_checks_total",
	)
	assert.NoError(t, err)

	// overall quantiles plus per-request quantiles
	count, err := testutil.GatherAndCount(reg, "trackload_http_req_duration_seconds", "trackload_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 8, count)

	assert.Equal(t, 1, testutil.CollectAndCount(collector, "trackload_phase"))
}
