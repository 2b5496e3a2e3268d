package engine

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rokkincat/trackload/internal/config"
	"github.com/rokkincat/trackload/internal/loadtest/metrics"
	"github.com/rokkincat/trackload/internal/tracker"
)

type trackingServer struct {
	*httptest.Server
	logins atomic.Int64
	points atomic.Int64
}

// newTrackingServer emulates the session and point endpoints. When
// rejectLogin is set every login answers 401.
func newTrackingServer(t *testing.T, rejectLogin bool) *trackingServer {
	t.Helper()
	ts := &trackingServer{}

	mux := http.NewServeMux()
	mux.HandleFunc(tracker.PathSessions, func(w http.ResponseWriter, r *http.Request) {
		ts.logins.Add(1)
		if rejectLogin {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Authorization", "tok123")
		_, _ = w.Write([]byte(`{"data":{"id":"1"}}`))
	})
	mux.HandleFunc(tracker.PathPoints, func(w http.ResponseWriter, r *http.Request) {
		ts.points.Add(1)
		time.Sleep(5 * time.Millisecond)
		if r.Header.Get("Authorization") != "tok123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	ts.Server = httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func testConfig(host string) *config.Config {
	cfg := config.Default()
	cfg.Name = "integration"
	cfg.Target.Host = host
	cfg.Credentials = config.Credentials{Email: "admin@example.com", Password: "secret"}
	cfg.Load = config.LoadConfig{
		Executor:     config.ExecutorConstantVUs,
		VUs:          2,
		Duration:     config.Duration(time.Second),
		GracefulStop: config.Duration(2 * time.Second),
	}
	return cfg
}

func newTestEngine(t *testing.T, cfg *config.Config) *Engine {
	t.Helper()
	scenario := tracker.NewLoadScenario(tracker.ScenarioConfigFrom(cfg))
	eng, err := NewEngine(cfg, scenario, nil)
	require.NoError(t, err)
	return eng
}

func checksByName(checks []metrics.CheckStats) map[string]metrics.CheckStats {
	out := make(map[string]metrics.CheckStats, len(checks))
	for _, c := range checks {
		out[c.Name] = c
	}
	return out
}

func TestEngineIntegration_ConstantVUs(t *testing.T) {
	server := newTrackingServer(t, false)

	cfg := testConfig(server.URL)
	cfg.Thresholds = config.ThresholdsConfig{
		HTTPReqDuration: []string{"p95 < 2s"},
		HTTPReqFailed:   []string{"rate < 0.01"},
		Checks:          []string{"rate > 0.99"},
	}

	result, err := newTestEngine(t, cfg).Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Passed, "thresholds: %+v", result.Thresholds)
	assert.False(t, result.Interrupted)
	assert.Equal(t, "constant-vus", result.Executor)
	assert.Equal(t, "point-ingestion", result.Scenario)
	assert.Len(t, result.Thresholds, 3)

	assert.Greater(t, result.Iterations, int64(0))
	assert.Equal(t, server.logins.Load(), server.points.Load())
	assert.Equal(t, result.Metrics.TotalRequests, server.logins.Load()+server.points.Load())
	assert.Zero(t, result.Metrics.FailedRequests)

	assert.Contains(t, result.RequestStats, tracker.RequestSession)
	assert.Contains(t, result.RequestStats, tracker.RequestPoint)

	checks := checksByName(result.Checks)
	assert.Equal(t, result.Iterations, checks[tracker.CheckPointCreated].Passes)
	assert.Zero(t, checks[tracker.CheckPointCreated].Fails)
	assert.Equal(t, 1.0, result.Metrics.CheckRate)
}

func TestEngineIntegration_RampingVUs(t *testing.T) {
	server := newTrackingServer(t, false)

	cfg := testConfig(server.URL)
	cfg.Load = config.LoadConfig{
		Executor: config.ExecutorRampingVUs,
		Stages: []config.Stage{
			{Duration: config.Duration(500 * time.Millisecond), Target: 3, Name: "warmup"},
			{Duration: config.Duration(time.Second), Target: 3, Name: "hold"},
		},
		GracefulStop: config.Duration(2 * time.Second),
	}

	result, err := newTestEngine(t, cfg).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "ramping-vus", result.Executor)
	assert.Greater(t, result.Iterations, int64(0))
	assert.True(t, result.Passed, "no thresholds configured")

	var phases []metrics.Phase
	for _, p := range result.Phases {
		phases = append(phases, p.Phase)
	}
	assert.Contains(t, phases, metrics.PhaseRampUp)
	assert.Contains(t, phases, metrics.PhaseSteady)
	assert.Equal(t, metrics.PhaseDone, phases[len(phases)-1])
}

func TestEngineIntegration_RejectedLoginFailsChecks(t *testing.T) {
	server := newTrackingServer(t, true)

	cfg := testConfig(server.URL)
	cfg.Thresholds = config.ThresholdsConfig{Checks: []string{"rate > 0.9"}}

	result, err := newTestEngine(t, cfg).Run(context.Background())
	require.NoError(t, err, "failed iterations never abort the run")

	assert.False(t, result.Passed)
	require.Len(t, result.Thresholds, 1)
	assert.False(t, result.Thresholds[0].Passed)
	assert.NotEmpty(t, result.Thresholds[0].Message)

	assert.Zero(t, server.points.Load())
	assert.NotContains(t, result.RequestStats, tracker.RequestPoint)

	checks := checksByName(result.Checks)
	assert.Zero(t, checks[tracker.CheckSessionEstablished].Passes)
	assert.Equal(t, result.Iterations, checks[tracker.CheckSessionEstablished].Fails)
	assert.Equal(t, 1.0, result.Metrics.ErrorRate)
}

func TestEngine_Cancel(t *testing.T) {
	server := newTrackingServer(t, false)

	cfg := testConfig(server.URL)
	cfg.Load.Duration = config.Duration(time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	result, err := newTestEngine(t, cfg).Run(ctx)
	require.NoError(t, err)

	assert.True(t, result.Interrupted)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Greater(t, result.Iterations, int64(0))
}

func TestEngine_Stop(t *testing.T) {
	server := newTrackingServer(t, false)

	cfg := testConfig(server.URL)
	cfg.Load.Duration = config.Duration(time.Minute)
	eng := newTestEngine(t, cfg)

	done := make(chan *TestResult, 1)
	go func() {
		result, _ := eng.Run(context.Background())
		done <- result
	}()

	require.Eventually(t, func() bool { return eng.GetProgress() > 0 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, eng.IsRunning())
	assert.NotNil(t, eng.GetStats())
	assert.NotNil(t, eng.GetMetrics())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, eng.Stop(ctx))

	select {
	case result := <-done:
		require.NotNil(t, result)
		assert.Less(t, result.Duration, 30*time.Second)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	assert.False(t, eng.IsRunning())
}

func TestEngine_MetricsEndpoint(t *testing.T) {
	server := newTrackingServer(t, false)

	cfg := testConfig(server.URL)
	cfg.Load.Duration = config.Duration(2 * time.Second)
	cfg.Metrics.Addr = "127.0.0.1:0"
	eng := newTestEngine(t, cfg)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = eng.Run(context.Background())
	}()

	require.Eventually(t, func() bool { return eng.MetricsAddr() != "" }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		snap := eng.GetMetrics()
		return snap != nil && snap.TotalRequests > 0
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + eng.MetricsAddr() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	text := string(body)
	assert.True(t, strings.Contains(text, "trackload_http_reqs_total"), "missing request counter")
	assert.True(t, strings.Contains(text, `check="point creation status was ok"`), "missing check series")
	assert.True(t, strings.Contains(text, "go_goroutines"), "missing runtime collector")

	<-done
}

func TestNewEngine_Invalid(t *testing.T) {
	cfg := testConfig("http://localhost")
	cfg.Credentials.Password = ""

	_, err := NewEngine(cfg, tracker.NewLoadScenario(tracker.ScenarioConfigFrom(cfg)), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials.password")

	_, err = NewEngine(testConfig("http://localhost"), nil, nil)
	assert.Error(t, err)
}

func TestEngine_RunTwice(t *testing.T) {
	eng := newTestEngine(t, testConfig("http://localhost"))
	eng.running = true

	_, err := eng.Run(context.Background())
	assert.Error(t, err)
}
