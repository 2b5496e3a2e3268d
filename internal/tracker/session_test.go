package tracker

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLogin_Success(t *testing.T) {
	var gotBody sessionRequest
	var gotHeaders http.Header

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != PathSessions {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotHeaders = r.Header.Clone()
		json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Authorization", "tok123")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data":{"id":"1","email":"admin@example.com"}}`))
	}))
	defer server.Close()

	sess, err := NewClient(server.URL).Login(context.Background(), Credentials{Email: "admin@example.com", Password: "secret"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if sess.ID != "1" {
		t.Errorf("ID = %q, want 1", sess.ID)
	}
	if sess.Token != "tok123" {
		t.Errorf("Token = %q, want tok123", sess.Token)
	}

	if gotBody.Session.Email != "admin@example.com" || gotBody.Session.Password != "secret" {
		t.Errorf("body = %+v", gotBody)
	}
	if got := gotHeaders.Get("Accept-Encoding"); got != "gzip" {
		t.Errorf("Accept-Encoding = %q, want gzip", got)
	}
	if got := gotHeaders.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}
}

func TestLogin_NumericID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Authorization", "Bearer abc")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":42}}`))
	}))
	defer server.Close()

	sess, err := NewClient(server.URL).Login(context.Background(), Credentials{Email: "a", Password: "b"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if sess.ID != "42" {
		t.Errorf("ID = %q, want 42", sess.ID)
	}
	if sess.Token != "Bearer abc" {
		t.Errorf("Token = %q, want it verbatim", sess.Token)
	}
}

func TestLogin_GzipBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		zw.Write([]byte(`{"data":{"id":"7"}}`))
		zw.Close()

		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Authorization", "tok")
		w.Write(buf.Bytes())
	}))
	defer server.Close()

	sess, err := NewClient(server.URL).Login(context.Background(), Credentials{})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if sess.ID != "7" {
		t.Errorf("ID = %q, want 7", sess.ID)
	}
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		token   string
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"bad"}`, "", ErrUnauthorized},
		{"forbidden", http.StatusForbidden, ``, "", ErrUnauthorized},
		{"server error", http.StatusInternalServerError, ``, "tok", ErrUnexpectedStatus},
		{"no content", http.StatusNoContent, ``, "tok", ErrUnexpectedStatus},
		{"not json", http.StatusOK, `<html>`, "tok", ErrMalformedSession},
		{"missing data", http.StatusOK, `{}`, "tok", ErrMalformedSession},
		{"missing id", http.StatusOK, `{"data":{}}`, "tok", ErrMalformedSession},
		{"wrong id type", http.StatusOK, `{"data":{"id":true}}`, "tok", ErrMalformedSession},
		{"empty id", http.StatusOK, `{"data":{"id":""}}`, "tok", ErrMalformedSession},
		{"missing token", http.StatusOK, `{"data":{"id":"1"}}`, "", ErrMalformedSession},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.token != "" {
					w.Header().Set("Authorization", tt.token)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			sess, err := NewClient(server.URL).Login(context.Background(), Credentials{})
			if err == nil {
				t.Fatalf("Login() = %+v, want error", sess)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}

			var authErr *AuthError
			if !errors.As(err, &authErr) {
				t.Fatalf("error %T is not *AuthError", err)
			}
			if authErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", authErr.StatusCode, tt.status)
			}
		})
	}
}

func TestLogin_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewClient(url).Login(context.Background(), Credentials{})
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("error = %v, want *AuthError", err)
	}
	if authErr.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", authErr.StatusCode)
	}
	if errors.Is(err, ErrUnauthorized) {
		t.Error("transport failure should not be reported as unauthorized")
	}
}

func TestLoginWithResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errors":["invalid"]}`))
	}))
	defer server.Close()

	sess, resp, err := NewClient(server.URL).LoginWithResponse(context.Background(), Credentials{})
	if sess != nil {
		t.Errorf("session = %+v, want nil", sess)
	}
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("error = %v, want ErrUnauthorized", err)
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("response = %+v, want the 401", resp)
	}
	if string(resp.Body) != `{"errors":["invalid"]}` {
		t.Errorf("body = %s", resp.Body)
	}
}
