package loadtest

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	lhttp "github.com/rokkincat/trackload/internal/http"
	"github.com/rokkincat/trackload/internal/loadtest/metrics"
	"github.com/rokkincat/trackload/internal/logging"
)

// VUScheduler manages the lifecycle of Virtual Users.
//
// Executors use it to spawn and retire VUs. It owns the HTTP client
// configuration and coordinates shutdown.
type VUScheduler struct {
	scenario Scenario
	metrics  *metrics.Engine
	logger   *zap.Logger

	httpClientConfig HTTPClientConfig

	vus   map[int]*VirtualUser
	vusMu sync.RWMutex

	nextVUID atomic.Int32

	// nil when every VU gets its own client
	sharedClient *http.Client
}

// HTTPClientConfig contains HTTP client configuration.
type HTTPClientConfig struct {
	Timeout             time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	InsecureSkipVerify  bool

	// UseSharedClient makes every VU share one connection pool
	UseSharedClient bool
}

// DefaultHTTPClientConfig returns sensible defaults for load testing.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		Timeout:             30 * time.Second,
		MaxIdleConns:        1000,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
		UseSharedClient:     true,
	}
}

// NewVUScheduler creates a new VU scheduler. A nil logger is replaced by a no-op one.
func NewVUScheduler(scenario Scenario, metricsEngine *metrics.Engine, httpConfig HTTPClientConfig, logger *zap.Logger) *VUScheduler {
	if logger == nil {
		logger = logging.Nop()
	}

	scheduler := &VUScheduler{
		scenario:         scenario,
		metrics:          metricsEngine,
		logger:           logger,
		httpClientConfig: httpConfig,
		vus:              make(map[int]*VirtualUser),
	}

	if httpConfig.UseSharedClient {
		scheduler.sharedClient = scheduler.createHTTPClient()
	}

	return scheduler
}

func (s *VUScheduler) createHTTPClient() *http.Client {
	return lhttp.NewHTTPClient(lhttp.TransportConfig{
		Timeout:             s.httpClientConfig.Timeout,
		MaxIdleConns:        s.httpClientConfig.MaxIdleConns,
		MaxIdleConnsPerHost: s.httpClientConfig.MaxIdleConnsPerHost,
		IdleConnTimeout:     s.httpClientConfig.IdleConnTimeout,
		InsecureSkipVerify:  s.httpClientConfig.InsecureSkipVerify,
	})
}

// SpawnVU creates and registers a new Virtual User.
// The caller is responsible for running it.
func (s *VUScheduler) SpawnVU() *VirtualUser {
	id := int(s.nextVUID.Add(1))

	client := s.sharedClient
	if client == nil {
		client = s.createHTTPClient()
	}

	vu := NewVirtualUser(id, s.scenario, client, s.metrics, s.logger)

	s.vusMu.Lock()
	s.vus[id] = vu
	s.vusMu.Unlock()

	return vu
}

// GetActiveVUCount returns the count of non-stopped VUs.
func (s *VUScheduler) GetActiveVUCount() int {
	s.vusMu.RLock()
	defer s.vusMu.RUnlock()

	count := 0
	for _, vu := range s.vus {
		if vu.GetState() != VUStateStopped {
			count++
		}
	}
	return count
}

// StopAllVUs requests all VUs to stop.
func (s *VUScheduler) StopAllVUs() {
	s.vusMu.RLock()
	defer s.vusMu.RUnlock()

	for _, vu := range s.vus {
		vu.RequestStop()
	}
}

// RemoveVU marks a VU stopped and forgets it. Per-VU clients release
// their idle connections.
func (s *VUScheduler) RemoveVU(id int) {
	s.vusMu.Lock()
	vu, exists := s.vus[id]
	delete(s.vus, id)
	s.vusMu.Unlock()

	if !exists {
		return
	}
	vu.MarkStopped()
	if vu.HTTPClient != s.sharedClient {
		vu.HTTPClient.CloseIdleConnections()
	}
}

// WaitForAllVUs waits for all VUs to stop with a timeout.
//
// Returns the number of VUs that did not stop within the timeout.
func (s *VUScheduler) WaitForAllVUs(timeout time.Duration) int {
	deadline := time.Now().Add(timeout)

	s.vusMu.RLock()
	vus := make([]*VirtualUser, 0, len(s.vus))
	for _, vu := range s.vus {
		vus = append(vus, vu)
	}
	s.vusMu.RUnlock()

	notStopped := 0
	for _, vu := range vus {
		remaining := time.Until(deadline)
		if remaining <= 0 || !vu.WaitForStop(remaining) {
			notStopped++
		}
	}

	return notStopped
}

// Shutdown stops all VUs, waits up to timeout and releases connections.
// It returns the number of VUs still running when it gave up.
func (s *VUScheduler) Shutdown(timeout time.Duration) int {
	if active := s.GetActiveVUCount(); active > 0 {
		s.logger.Debug("stopping VUs", zap.Int("active", active), zap.Duration("timeout", timeout))
	}
	s.StopAllVUs()

	remaining := s.WaitForAllVUs(timeout)
	if remaining > 0 {
		s.logger.Warn("VUs did not stop within graceful period",
			zap.Int("remaining", remaining),
			zap.Duration("timeout", timeout))
	}

	if s.sharedClient != nil {
		s.sharedClient.CloseIdleConnections()
	}
	return remaining
}

// Logger returns the scheduler's logger.
func (s *VUScheduler) Logger() *zap.Logger {
	return s.logger
}
