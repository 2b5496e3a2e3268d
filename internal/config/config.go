// Package config provides configuration loading and validation for trackload.
//
// A Config is assembled from, in increasing precedence: built-in defaults,
// an optional YAML file, TRACKLOAD_* environment variables and command-line
// flags.
//
// Example YAML:
//
//	name: "Point ingestion"
//	target:
//	  host: "http://0.0.0.0:4000"
//	credentials:
//	  email: "admin@example.com"
//	  password: "secret"
//	load:
//	  executor: ramping-vus
//	  stages:
//	    - duration: 30s
//	      target: 10
//	    - duration: 5m
//	      target: 10
//	thresholds:
//	  checks:
//	    - "rate > 0.99"
package config

import (
	"time"
)

// Executor names understood by the load runtime.
const (
	ExecutorRampingVUs  = "ramping-vus"
	ExecutorConstantVUs = "constant-vus"
)

// Pacing strategies.
const (
	PacingNone     = "none"
	PacingConstant = "constant"
	PacingRandom   = "random"
)

// DefaultHost is the tracking service address used when none is configured.
const DefaultHost = "http://0.0.0.0:4000"

// Config is the root configuration for a trackload run.
type Config struct {
	// Name of the test (for reporting)
	Name string `json:"name" yaml:"name"`

	Target      TargetConfig     `json:"target" yaml:"target"`
	Credentials Credentials      `json:"credentials" yaml:"credentials"`
	Load        LoadConfig       `json:"load" yaml:"load"`
	Session     SessionConfig    `json:"session" yaml:"session"`
	Point       PointConfig      `json:"point" yaml:"point"`
	HTTP        HTTPConfig       `json:"http" yaml:"http"`
	Thresholds  ThresholdsConfig `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
	Log         LogConfig        `json:"log" yaml:"log"`
	Metrics     MetricsConfig    `json:"metrics" yaml:"metrics"`
}

// TargetConfig locates the service under test.
type TargetConfig struct {
	Host string `json:"host" yaml:"host"`
}

// Credentials authenticate the administrative user. Never mutated after load.
type Credentials struct {
	Email    string `json:"email" yaml:"email"`
	Password string `json:"password,omitempty" yaml:"password"`
}

// LoadConfig describes how virtual users are scheduled.
type LoadConfig struct {
	// Executor is "ramping-vus" or "constant-vus"
	Executor string `json:"executor" yaml:"executor"`

	// Stages drive the ramping-vus executor
	Stages []Stage `json:"stages,omitempty" yaml:"stages,omitempty"`

	// VUs and Duration drive the constant-vus executor
	VUs      int      `json:"vus,omitempty" yaml:"vus,omitempty"`
	Duration Duration `json:"duration,omitempty" yaml:"duration,omitempty"`

	// GracefulStop is how long running iterations may take to finish at the end
	GracefulStop Duration `json:"gracefulStop,omitempty" yaml:"gracefulStop,omitempty"`

	// Pacing controls time between iterations of a VU
	Pacing *PacingConfig `json:"pacing,omitempty" yaml:"pacing,omitempty"`

	// NoConnectionReuse gives every VU its own HTTP client
	NoConnectionReuse bool `json:"noConnectionReuse,omitempty" yaml:"noConnectionReuse,omitempty"`
}

// Stage is a period with a target concurrency level.
type Stage struct {
	Duration Duration `json:"duration" yaml:"duration"`
	Target   int      `json:"target" yaml:"target"`
	Name     string   `json:"name,omitempty" yaml:"name,omitempty"`
}

// PacingConfig controls pacing between iterations.
type PacingConfig struct {
	Type     string   `json:"type" yaml:"type"`
	Duration Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
	Min      Duration `json:"min,omitempty" yaml:"min,omitempty"`
	Max      Duration `json:"max,omitempty" yaml:"max,omitempty"`
}

// SessionConfig controls how session tokens are obtained per iteration.
type SessionConfig struct {
	// Reuse caches a VU's session until its token expires instead of
	// authenticating on every iteration.
	Reuse bool `json:"reuse" yaml:"reuse"`

	// TTL bounds reuse of tokens whose expiry cannot be read from the token itself.
	TTL Duration `json:"ttl,omitempty" yaml:"ttl,omitempty"`

	// ContinueOnFailure sends the point submission even when authentication
	// failed, with an empty Authorization header.
	ContinueOnFailure bool `json:"continueOnFailure" yaml:"continueOnFailure"`
}

// PointConfig overrides parts of the synthetic location point.
type PointConfig struct {
	// UUID pins the point identifier. Empty means a fresh UUID per submission.
	UUID string `json:"uuid,omitempty" yaml:"uuid,omitempty"`

	UserID int64 `json:"userId,omitempty" yaml:"userId,omitempty"`
	// Coordinates are pointers so that an explicit 0 is kept.
	Latitude  *float64 `json:"latitude,omitempty" yaml:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty" yaml:"longitude,omitempty"`
}

// HTTPConfig tunes the HTTP transport.
type HTTPConfig struct {
	Timeout             Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	MaxIdleConnsPerHost int      `json:"maxIdleConnsPerHost,omitempty" yaml:"maxIdleConnsPerHost,omitempty"`
	InsecureSkipVerify  bool     `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"`
}

// ThresholdsConfig defines pass/fail criteria for the run.
type ThresholdsConfig struct {
	// HTTPReqDuration e.g. ["p95 < 500ms", "avg < 200ms"]
	HTTPReqDuration []string `json:"http_req_duration,omitempty" yaml:"http_req_duration,omitempty"`

	// HTTPReqFailed e.g. ["rate < 0.01"]
	HTTPReqFailed []string `json:"http_req_failed,omitempty" yaml:"http_req_failed,omitempty"`

	// HTTPReqs e.g. ["count > 1000", "rate > 100"]
	HTTPReqs []string `json:"http_reqs,omitempty" yaml:"http_reqs,omitempty"`

	// Checks e.g. ["rate > 0.99"]
	Checks []string `json:"checks,omitempty" yaml:"checks,omitempty"`
}

// IsEmpty reports whether no threshold is configured.
func (t ThresholdsConfig) IsEmpty() bool {
	return len(t.HTTPReqDuration) == 0 && len(t.HTTPReqFailed) == 0 &&
		len(t.HTTPReqs) == 0 && len(t.Checks) == 0
}

// LogConfig selects the log level and encoding.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// MetricsConfig enables the Prometheus endpoint while a run is in progress.
type MetricsConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// Default returns the configuration used when nothing else is supplied:
// a 30s warm-up to 10 VUs followed by a 5m hold.
func Default() *Config {
	return &Config{
		Name:   "Point ingestion",
		Target: TargetConfig{Host: DefaultHost},
		Load: LoadConfig{
			Executor: ExecutorRampingVUs,
			Stages: []Stage{
				{Duration: Duration(30 * time.Second), Target: 10, Name: "warmup"},
				{Duration: Duration(5 * time.Minute), Target: 10, Name: "hold"},
			},
			GracefulStop: Duration(30 * time.Second),
		},
		Session: SessionConfig{
			TTL: Duration(15 * time.Minute),
		},
		Point: PointConfig{
			UserID:    4401,
			Latitude:  float64Ptr(43),
			Longitude: float64Ptr(-89),
		},
		HTTP: HTTPConfig{
			Timeout:             Duration(30 * time.Second),
			MaxIdleConnsPerHost: 100,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// TotalDuration returns how long the configured load profile runs.
func (l *LoadConfig) TotalDuration() time.Duration {
	if l.Executor == ExecutorConstantVUs {
		return time.Duration(l.Duration)
	}

	var total time.Duration
	for _, s := range l.Stages {
		total += time.Duration(s.Duration)
	}
	return total
}

// MaxVUs returns the peak VU count the load profile reaches.
func (l *LoadConfig) MaxVUs() int {
	if l.Executor == ExecutorConstantVUs {
		return l.VUs
	}

	peak := 0
	for _, s := range l.Stages {
		if s.Target > peak {
			peak = s.Target
		}
	}
	return peak
}

func float64Ptr(v float64) *float64 { return &v }
