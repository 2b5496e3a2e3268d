package tracker

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "4401",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return tok
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok := signedToken(t, exp)

	for _, raw := range []string{tok, "Bearer " + tok, "bearer " + tok} {
		got, ok := TokenExpiry(raw)
		if !ok {
			t.Errorf("TokenExpiry(%.12q...) not ok", raw)
			continue
		}
		if !got.Equal(exp) {
			t.Errorf("exp = %v, want %v", got, exp)
		}
	}

	if _, ok := TokenExpiry("tok123"); ok {
		t.Error("opaque token reported an expiry")
	}
}

func TestTokenCache_JWTExpiry(t *testing.T) {
	now := time.Now()
	cache := NewTokenCache(0)
	cache.now = func() time.Time { return now }

	sess := &Session{ID: "1", Token: signedToken(t, now.Add(time.Minute))}
	cache.Put(sess)

	if got, ok := cache.Get(); !ok || got != sess {
		t.Fatal("fresh session not returned")
	}

	now = now.Add(time.Minute - RefreshSkew)
	if _, ok := cache.Get(); ok {
		t.Error("session returned inside the refresh window")
	}
}

func TestTokenCache_TTLFallback(t *testing.T) {
	now := time.Now()
	cache := NewTokenCache(10 * time.Second)
	cache.now = func() time.Time { return now }

	cache.Put(&Session{ID: "1", Token: "tok123"})
	if _, ok := cache.Get(); !ok {
		t.Fatal("session not cached")
	}

	now = now.Add(6 * time.Second)
	if _, ok := cache.Get(); ok {
		t.Error("session outlived ttl minus skew")
	}
}

func TestTokenCache_NoTTL(t *testing.T) {
	cache := NewTokenCache(0)
	cache.Put(&Session{ID: "1", Token: "tok123"})
	if _, ok := cache.Get(); ok {
		t.Error("opaque token cached without a ttl")
	}
}

func TestTokenCache_Invalidate(t *testing.T) {
	cache := NewTokenCache(time.Hour)
	cache.Put(&Session{ID: "1", Token: "tok123"})
	cache.Invalidate()
	if _, ok := cache.Get(); ok {
		t.Error("session survived Invalidate")
	}
}
