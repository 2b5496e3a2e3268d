package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	lhttp "github.com/rokkincat/trackload/internal/http"
)

// Format represents the available output formats
type Format string

const (
	// FormatText is the default human-readable text format
	FormatText Format = "text"
	// FormatJSON outputs in JSON format
	FormatJSON Format = "json"
	// FormatYAML outputs in YAML format
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name. Empty selects text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format: %s (want text, json or yaml)", s)
	}
}

// TimingData is the per-phase latency of a call in milliseconds.
type TimingData struct {
	DNSLookup       int64 `json:"dnsLookupMs,omitempty" yaml:"dnsLookupMs,omitempty"`
	TCPConnection   int64 `json:"tcpConnectionMs,omitempty" yaml:"tcpConnectionMs,omitempty"`
	TLSHandshake    int64 `json:"tlsHandshakeMs,omitempty" yaml:"tlsHandshakeMs,omitempty"`
	TimeToFirstByte int64 `json:"timeToFirstByteMs,omitempty" yaml:"timeToFirstByteMs,omitempty"`
	ContentTransfer int64 `json:"contentTransferMs,omitempty" yaml:"contentTransferMs,omitempty"`
	Total           int64 `json:"totalMs" yaml:"totalMs"`
}

// CallResult is the structured form of one API call.
type CallResult struct {
	Name       string            `json:"name" yaml:"name"`
	SessionID  string            `json:"sessionId,omitempty" yaml:"sessionId,omitempty"`
	Passed     bool              `json:"passed" yaml:"passed"`
	StatusCode int               `json:"statusCode" yaml:"statusCode"`
	Status     string            `json:"status" yaml:"status"`
	Headers    map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body       interface{}       `json:"body,omitempty" yaml:"body,omitempty"`
	Timing     TimingData        `json:"timing" yaml:"timing"`
	Timestamp  string            `json:"timestamp" yaml:"timestamp"`
}

// NewCallResult captures resp. A JSON body is kept structured; anything
// else is kept as a string.
func NewCallResult(name, sessionID string, resp *lhttp.Response, passed bool) *CallResult {
	headers := make(map[string]string, len(resp.Headers))
	for key, values := range resp.Headers {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}

	var body interface{}
	if len(resp.Body) > 0 {
		if err := resp.GetBodyAsJSON(&body); err != nil {
			body = resp.GetBodyAsString()
		}
	}

	ms := func(d time.Duration) int64 { return d.Milliseconds() }

	return &CallResult{
		Name:       name,
		SessionID:  sessionID,
		Passed:     passed,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Headers:    headers,
		Body:       body,
		Timing: TimingData{
			DNSLookup:       ms(resp.Timing.DNSLookupTime),
			TCPConnection:   ms(resp.Timing.TCPConnectTime),
			TLSHandshake:    ms(resp.Timing.TLSHandshakeTime),
			TimeToFirstByte: resp.GetTimeToFirstByteMillis(),
			ContentTransfer: ms(resp.Timing.ContentTransferTime),
			Total:           resp.GetResponseTimeMillis(),
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func marshalJSON(r *CallResult) (string, error) {
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	return string(out) + "\n", nil
}

func marshalYAML(r *CallResult) (string, error) {
	out, err := yaml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	return string(out), nil
}
