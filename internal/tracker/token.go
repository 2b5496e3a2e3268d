package tracker

import (
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RefreshSkew is how long before expiry a cached session is dropped.
const RefreshSkew = 5 * time.Second

// TokenExpiry reads the exp claim of a JWT without verifying its
// signature. A "Bearer " prefix is ignored. ok is false for tokens that
// are not JWTs or carry no exp.
func TokenExpiry(token string) (exp time.Time, ok bool) {
	raw := strings.TrimSpace(token)
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// TokenCache holds one session until shortly before it expires.
type TokenCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	session *Session
	expires time.Time
}

// NewTokenCache creates a cache. ttl applies to tokens that carry no
// expiry of their own; zero means such tokens are never cached.
func NewTokenCache(ttl time.Duration) *TokenCache {
	return &TokenCache{ttl: ttl, now: time.Now}
}

// Get returns the cached session if it is still fresh.
func (c *TokenCache) Get() (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil, false
	}
	if !c.now().Before(c.expires.Add(-RefreshSkew)) {
		c.session = nil
		return nil, false
	}
	return c.session, true
}

// Put caches s.
func (c *TokenCache) Put(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	exp, ok := TokenExpiry(s.Token)
	if !ok {
		if c.ttl <= 0 {
			c.session = nil
			return
		}
		exp = c.now().Add(c.ttl)
	}
	c.session = s
	c.expires = exp
}

// Invalidate drops the cached session.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
}
