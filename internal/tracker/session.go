package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"

	lhttp "github.com/rokkincat/trackload/internal/http"
)

// Request names used in metrics.
const (
	RequestSession = "session"
	RequestPoint   = "point"
)

var (
	// ErrUnauthorized means the service rejected the credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMalformedSession means the login succeeded but the response lacked
	// a session id or token.
	ErrMalformedSession = errors.New("malformed session response")

	// ErrUnexpectedStatus means the login returned neither success nor an
	// auth rejection.
	ErrUnexpectedStatus = errors.New("unexpected status")
)

// Credentials authenticate the administrative user.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is the result of a successful login.
type Session struct {
	// ID is data.id from the response body
	ID string

	// Token is the Authorization response header, sent back verbatim
	Token string
}

// AuthError describes why a login did not yield a Session.
type AuthError struct {
	StatusCode int
	Reason     string
	Err        error
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("login failed (status %d): %s: %v", e.StatusCode, e.Reason, e.Err)
	}
	return fmt.Sprintf("login failed: %s: %v", e.Reason, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

const sessionSchemaJSON = `{
  "type": "object",
  "required": ["data"],
  "properties": {
    "data": {
      "type": "object",
      "required": ["id"],
      "properties": {
        "id": {"type": ["string", "integer"]}
      }
    }
  }
}`

var sessionSchema = mustCompileSchema("session.json", sessionSchemaJSON)

func mustCompileSchema(name, schema string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(schema)); err != nil {
		panic(fmt.Sprintf("invalid schema %s: %v", name, err))
	}
	return compiler.MustCompile(name)
}

type sessionRequest struct {
	Session Credentials `json:"session"`
}

// Login authenticates creds against POST /api/sessions.
//
// Any failure is returned as an *AuthError wrapping ErrUnauthorized,
// ErrMalformedSession, ErrUnexpectedStatus or the transport error.
func (c *Client) Login(ctx context.Context, creds Credentials) (*Session, error) {
	sess, _, err := c.LoginWithResponse(ctx, creds)
	return sess, err
}

// LoginWithResponse is Login that also returns the raw response, which is
// nil only when the request itself failed.
func (c *Client) LoginWithResponse(ctx context.Context, creds Credentials) (*Session, *lhttp.Response, error) {
	req := lhttp.NewRequest(http.MethodPost, PathSessions).
		WithBody(sessionRequest{Session: creds})

	resp, err := c.send(ctx, RequestSession, req)
	if err != nil {
		return nil, nil, &AuthError{Reason: "request failed", Err: err}
	}

	sess, err := ParseSession(resp)
	return sess, resp, err
}

// ParseSession extracts a Session from a login response.
func ParseSession(resp *lhttp.Response) (*Session, error) {
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{StatusCode: resp.StatusCode, Reason: "credentials rejected", Err: ErrUnauthorized}
	case !CheckStatus(resp):
		return nil, &AuthError{StatusCode: resp.StatusCode, Reason: "session endpoint", Err: ErrUnexpectedStatus}
	}

	var doc interface{}
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return nil, &AuthError{StatusCode: resp.StatusCode, Reason: "body is not JSON", Err: ErrMalformedSession}
	}
	if err := sessionSchema.Validate(doc); err != nil {
		return nil, &AuthError{StatusCode: resp.StatusCode, Reason: err.Error(), Err: ErrMalformedSession}
	}

	id := gjson.GetBytes(resp.Body, "data.id").String()
	if id == "" {
		return nil, &AuthError{StatusCode: resp.StatusCode, Reason: "empty data.id", Err: ErrMalformedSession}
	}

	token := resp.GetHeader("Authorization")
	if token == "" {
		return nil, &AuthError{StatusCode: resp.StatusCode, Reason: "missing Authorization header", Err: ErrMalformedSession}
	}

	return &Session{ID: id, Token: token}, nil
}
