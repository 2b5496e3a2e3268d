// Command test-server is a local stand-in for the tracking service, used to
// try trackload without a real deployment.
//
//	go run ./scripts/test-server -addr :4000
//	trackload run --host http://localhost:4000 --email admin@example.com --password secret
package main

import (
	"flag"
	"io"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/rokkincat/trackload/internal/logging"
	"github.com/rokkincat/trackload/internal/tracker"
)

var signingKey = []byte("trackload-test-server")

func main() {
	addr := flag.String("addr", ":4000", "listen address")
	tokenTTL := flag.Duration("token-ttl", 10*time.Minute, "lifetime of issued tokens")
	password := flag.String("password", "secret", "password every account accepts")
	flag.Parse()

	logger, err := logging.New("info", logging.FormatConsole)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	var sessions, points atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc(tracker.PathSessions, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if gjson.GetBytes(body, "session.password").String() != *password {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"errors":{"detail":"invalid credentials"}}`)
			return
		}

		id := sessions.Add(1)
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   gjson.GetBytes(body, "session.email").String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(*tokenTTL)),
		})
		signed, err := token.SignedString(signingKey)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Authorization", "Bearer "+signed)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"data":{"id":"`+strconv.FormatInt(id, 10)+`"}}`)
	})

	mux.HandleFunc(tracker.PathPoints, func(w http.ResponseWriter, r *http.Request) {
		if !validToken(r.Header.Get("Authorization")) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if !gjson.GetBytes(body, "location.0.uuid").Exists() {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		points.Add(1)
		w.WriteHeader(http.StatusCreated)
	})

	server := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      5 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	go func() {
		for range time.Tick(10 * time.Second) {
			logger.Info("totals", zap.Int64("sessions", sessions.Load()), zap.Int64("points", points.Load()))
		}
	}()

	logger.Info("test server listening", zap.String("addr", *addr), zap.Int("cpus", runtime.NumCPU()))
	if err := server.ListenAndServe(); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func validToken(header string) bool {
	raw := strings.TrimSpace(header)
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		raw = raw[7:]
	}
	_, err := jwt.Parse(raw, func(*jwt.Token) (any, error) { return signingKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return err == nil
}
