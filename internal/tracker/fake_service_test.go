package tracker

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

// fakeService emulates the tracking service's session and point endpoints.
type fakeService struct {
	*httptest.Server

	sessionStatus int
	sessionBody   string
	token         string
	pointStatus   int

	logins atomic.Int64
	points atomic.Int64

	mu         sync.Mutex
	pointAuths []string
	pointBody  []byte
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()

	f := &fakeService{
		sessionStatus: http.StatusOK,
		sessionBody:   `{"data":{"id":"1"}}`,
		token:         "tok123",
		pointStatus:   http.StatusCreated,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(PathSessions, func(w http.ResponseWriter, r *http.Request) {
		f.logins.Add(1)
		if f.sessionStatus == http.StatusOK || f.sessionStatus == http.StatusCreated {
			w.Header().Set("Authorization", f.token)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.sessionStatus)
		io.WriteString(w, f.sessionBody)
	})
	mux.HandleFunc(PathPoints, func(w http.ResponseWriter, r *http.Request) {
		f.points.Add(1)
		body, _ := io.ReadAll(r.Body)

		auth := r.Header.Get("Authorization")
		f.mu.Lock()
		f.pointAuths = append(f.pointAuths, auth)
		f.pointBody = body
		f.mu.Unlock()

		if auth != f.token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(f.pointStatus)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeService) authHeaders() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.pointAuths...)
}

func (f *fakeService) lastPointBody() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pointBody
}
