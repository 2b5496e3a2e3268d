package loadtest_test

import (
	"context"
	"testing"
	"time"

	"github.com/rokkincat/trackload/internal/loadtest"
	"github.com/rokkincat/trackload/internal/loadtest/metrics"
)

func noopScenario() loadtest.Scenario {
	return loadtest.ScenarioFunc(func(context.Context, *loadtest.VirtualUser) error { return nil })
}

func TestVUScheduler_SpawnSharedClient(t *testing.T) {
	engine := metrics.NewEngine()
	defer engine.Stop()

	s := loadtest.NewVUScheduler(noopScenario(), engine, loadtest.DefaultHTTPClientConfig(), nil)

	a := s.SpawnVU()
	b := s.SpawnVU()

	if a.ID == b.ID {
		t.Error("VU IDs must be unique")
	}
	if a.HTTPClient != b.HTTPClient {
		t.Error("VUs should share the HTTP client by default")
	}
	if s.GetActiveVUCount() != 2 {
		t.Errorf("GetActiveVUCount() = %d, want 2", s.GetActiveVUCount())
	}
}

func TestVUScheduler_SpawnPerVUClient(t *testing.T) {
	engine := metrics.NewEngine()
	defer engine.Stop()

	cfg := loadtest.DefaultHTTPClientConfig()
	cfg.UseSharedClient = false
	s := loadtest.NewVUScheduler(noopScenario(), engine, cfg, nil)

	a := s.SpawnVU()
	b := s.SpawnVU()
	if a.HTTPClient == b.HTTPClient {
		t.Error("each VU should get its own client without connection reuse")
	}

	s.RemoveVU(a.ID)
	if s.GetActiveVUCount() != 1 {
		t.Errorf("GetActiveVUCount() after RemoveVU = %d, want 1", s.GetActiveVUCount())
	}
	if a.GetState() != loadtest.VUStateStopped {
		t.Errorf("removed VU state = %v, want stopped", a.GetState())
	}
	s.RemoveVU(a.ID)
}

func TestVUScheduler_Shutdown(t *testing.T) {
	engine := metrics.NewEngine()
	defer engine.Stop()

	s := loadtest.NewVUScheduler(noopScenario(), engine, loadtest.DefaultHTTPClientConfig(), nil)

	vus := []*loadtest.VirtualUser{s.SpawnVU(), s.SpawnVU(), s.SpawnVU()}
	for _, vu := range vus {
		go func(vu *loadtest.VirtualUser) {
			defer vu.MarkStopped()
			for !vu.IsStopping() {
				_ = vu.RunIteration(context.Background())
				time.Sleep(time.Millisecond)
			}
		}(vu)
	}

	if remaining := s.Shutdown(time.Second); remaining != 0 {
		t.Errorf("Shutdown() remaining = %d, want 0", remaining)
	}
	if s.GetActiveVUCount() != 0 {
		t.Errorf("GetActiveVUCount() = %d, want 0", s.GetActiveVUCount())
	}
}

func TestVUScheduler_ShutdownTimeout(t *testing.T) {
	engine := metrics.NewEngine()
	defer engine.Stop()

	s := loadtest.NewVUScheduler(noopScenario(), engine, loadtest.DefaultHTTPClientConfig(), nil)
	s.SpawnVU() // never run, so never marked stopped

	if remaining := s.Shutdown(20 * time.Millisecond); remaining != 1 {
		t.Errorf("Shutdown() remaining = %d, want 1", remaining)
	}
}
