package tracker

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rokkincat/trackload/internal/config"
	lhttp "github.com/rokkincat/trackload/internal/http"
	"github.com/rokkincat/trackload/internal/loadtest"
)

// Check names.
const (
	CheckSessionEstablished = "session established"
	CheckPointCreated       = "point creation status was ok"
)

const (
	dataClient = "tracker.client"
	dataTokens = "tracker.tokens"
)

// ScenarioConfig configures LoadScenario.
type ScenarioConfig struct {
	Host        string
	Credentials Credentials

	// ReuseSession keeps a session per VU instead of logging in every iteration
	ReuseSession bool

	// SessionTTL bounds the life of cached tokens that carry no exp claim
	SessionTTL time.Duration

	// ContinueOnFailure sends the point without a token when login fails
	ContinueOnFailure bool

	Point PointOptions
}

// ScenarioConfigFrom maps the run configuration onto a ScenarioConfig.
func ScenarioConfigFrom(cfg *config.Config) ScenarioConfig {
	return ScenarioConfig{
		Host: cfg.Target.Host,
		Credentials: Credentials{
			Email:    cfg.Credentials.Email,
			Password: cfg.Credentials.Password,
		},
		ReuseSession:      cfg.Session.Reuse,
		SessionTTL:        time.Duration(cfg.Session.TTL),
		ContinueOnFailure: cfg.Session.ContinueOnFailure,
		Point: PointOptions{
			UUID:      cfg.Point.UUID,
			UserID:    cfg.Point.UserID,
			Latitude:  cfg.Point.Latitude,
			Longitude: cfg.Point.Longitude,
		},
	}
}

// LoadScenario is one user's iteration: log in, then submit one point.
type LoadScenario struct {
	cfg ScenarioConfig
}

// NewLoadScenario creates the point-ingestion scenario.
func NewLoadScenario(cfg ScenarioConfig) *LoadScenario {
	return &LoadScenario{cfg: cfg}
}

// Name implements loadtest.Scenario.
func (s *LoadScenario) Name() string {
	return "point-ingestion"
}

// Iteration implements loadtest.Scenario.
func (s *LoadScenario) Iteration(ctx context.Context, vu *loadtest.VirtualUser) error {
	client := s.clientFor(vu)

	sess, authErr := s.session(ctx, vu, client)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	token := ""
	if authErr != nil {
		vu.Check(CheckSessionEstablished, false)
		if !s.cfg.ContinueOnFailure {
			vu.Check(CheckPointCreated, false)
			return authErr
		}
	} else {
		vu.Check(CheckSessionEstablished, true)
		token = sess.Token
	}

	resp, err := client.SubmitPoint(ctx, token, NewLocationPoint(s.cfg.Point))
	if ctx.Err() != nil {
		return ctx.Err()
	}
	vu.Check(CheckPointCreated, err == nil && CheckStatus(resp))
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && s.cfg.ReuseSession {
		s.tokens(vu).Invalidate()
	}
	return authErr
}

func (s *LoadScenario) session(ctx context.Context, vu *loadtest.VirtualUser, client *Client) (*Session, error) {
	if !s.cfg.ReuseSession {
		return client.Login(ctx, s.cfg.Credentials)
	}

	cache := s.tokens(vu)
	if sess, ok := cache.Get(); ok {
		return sess, nil
	}

	sess, err := client.Login(ctx, s.cfg.Credentials)
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) && authErr.StatusCode != 0 {
			vu.Logger.Debug("login rejected",
				zap.Int64("iter", vu.GetIteration()),
				zap.Int("status", authErr.StatusCode),
				zap.String("reason", authErr.Reason))
		}
		return nil, err
	}
	cache.Put(sess)
	return sess, nil
}

// clientFor returns the VU's client, built once on top of the VU's
// pooled HTTP client so connections are reused across iterations.
func (s *LoadScenario) clientFor(vu *loadtest.VirtualUser) *Client {
	if v, ok := vu.GetData(dataClient); ok {
		return v.(*Client)
	}
	c := NewClient(s.cfg.Host, lhttp.WithHTTPClient(vu.HTTPClient)).WithRecorder(vu.RecordRequest)
	vu.SetData(dataClient, c)
	return c
}

func (s *LoadScenario) tokens(vu *loadtest.VirtualUser) *TokenCache {
	if v, ok := vu.GetData(dataTokens); ok {
		return v.(*TokenCache)
	}
	c := NewTokenCache(s.cfg.SessionTTL)
	vu.SetData(dataTokens, c)
	return c
}
