// Package tracker speaks the location-tracking service's HTTP API: session
// login, point submission and the auxiliary admin endpoints. LoadScenario
// drives it from the load runtime.
package tracker

import (
	"context"
	"time"

	lhttp "github.com/rokkincat/trackload/internal/http"
	"github.com/rokkincat/trackload/internal/loadtest"
)

// API paths.
const (
	PathSessions         = "/api/sessions"
	PathPoints           = "/api/points"
	PathAcceptedTerms    = "/api/accepted_terms"
	PathPayPerformance   = "/api/user_pay_performance/"
	PathDailyStatsExport = "/api/_admin/export/daily_stats"
)

// Recorder receives the outcome of every request a Client makes.
type Recorder func(name string, sample loadtest.RequestSample)

// Client calls the tracking service. Every request carries
// Accept-Encoding: gzip and Content-Type: application/json.
type Client struct {
	http     *lhttp.Client
	recorder Recorder
}

// NewClient creates a client for host. Extra options are applied after
// the base URL and default headers.
func NewClient(host string, opts ...lhttp.ClientOption) *Client {
	base := []lhttp.ClientOption{
		lhttp.WithBaseURL(host),
		lhttp.WithHeader("Accept-Encoding", "gzip"),
		lhttp.WithHeader("Content-Type", "application/json"),
	}
	return &Client{http: lhttp.NewClient(append(base, opts...)...)}
}

// WithRecorder returns a copy of c that reports each request to rec.
func (c *Client) WithRecorder(rec Recorder) *Client {
	cp := *c
	cp.recorder = rec
	return &cp
}

// Host returns the base URL requests are sent to.
func (c *Client) Host() string {
	return c.http.BaseURL()
}

// send executes req and reports it under name.
func (c *Client) send(ctx context.Context, name string, req *lhttp.Request) (*lhttp.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(ctx, req)

	if c.recorder != nil && ctx.Err() == nil {
		sample := loadtest.RequestSample{Duration: time.Since(start), Err: err}
		if resp != nil {
			sample.Duration = resp.Timing.TotalTime
			sample.StatusCode = resp.StatusCode
			sample.BytesReceived = resp.BytesReceived
		}
		c.recorder(name, sample)
	}

	return resp, err
}

// authorized builds a request carrying token as-is in the Authorization header.
func authorized(method, path, token string) *lhttp.Request {
	return lhttp.NewRequest(method, path).WithHeader("Authorization", token)
}
