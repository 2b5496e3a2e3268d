package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/rokkincat/trackload/internal/logging"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Validate checks everything a load run needs.
//
// Returns nil if valid, or a *ValidationErrors containing every problem found.
func (c *Config) Validate() error {
	errs := &ValidationErrors{}

	c.ValidateTarget(errs)
	validateLoad(&c.Load, errs)
	validateThresholds(&c.Thresholds, errs)

	if c.HTTP.Timeout < 0 {
		errs.Add("http.timeout", "cannot be negative")
	}
	if c.HTTP.MaxIdleConnsPerHost < 0 {
		errs.Add("http.maxIdleConnsPerHost", "cannot be negative")
	}
	if c.Session.TTL < 0 {
		errs.Add("session.ttl", "cannot be negative")
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs.Add("log.level", fmt.Sprintf("unknown log level: %s", c.Log.Level))
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// ValidateTarget checks host and credentials only. One-shot commands that
// never schedule load use it on its own.
func (c *Config) ValidateTarget(errs *ValidationErrors) {
	if c.Target.Host == "" {
		errs.Add("target.host", "host is required")
	} else if u, err := url.Parse(c.Target.Host); err != nil {
		errs.Add("target.host", fmt.Sprintf("invalid URL: %v", err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs.Add("target.host", fmt.Sprintf("unsupported scheme: %q", u.Scheme))
	}

	if c.Credentials.Email == "" {
		errs.Add("credentials.email", "email is required")
	}
	if c.Credentials.Password == "" {
		errs.Add("credentials.password", "password is required")
	}
}

func validateLoad(l *LoadConfig, errs *ValidationErrors) {
	switch l.Executor {
	case ExecutorRampingVUs:
		if len(l.Stages) == 0 {
			errs.Add("load.stages", "at least one stage is required for ramping-vus executor")
		}
		for i, stage := range l.Stages {
			validateStage(fmt.Sprintf("load.stages[%d]", i), &stage, errs)
		}
	case ExecutorConstantVUs:
		if l.VUs <= 0 {
			errs.Add("load.vus", "vus must be greater than 0")
		}
		if l.Duration <= 0 {
			errs.Add("load.duration", "duration is required for constant-vus executor")
		}
	case "":
		errs.Add("load.executor", "executor type is required")
	default:
		errs.Add("load.executor", fmt.Sprintf("unknown executor type: %s", l.Executor))
	}

	if l.GracefulStop < 0 {
		errs.Add("load.gracefulStop", "cannot be negative")
	}

	if l.Pacing != nil {
		validatePacing("load.pacing", l.Pacing, errs)
	}
}

func validateStage(prefix string, stage *Stage, errs *ValidationErrors) {
	if stage.Duration <= 0 {
		errs.Add(prefix+".duration", "duration must be greater than 0")
	}
	if stage.Target < 0 {
		errs.Add(prefix+".target", "target cannot be negative")
	}
}

func validatePacing(prefix string, pacing *PacingConfig, errs *ValidationErrors) {
	switch pacing.Type {
	case PacingNone:
	case PacingConstant:
		if pacing.Duration <= 0 {
			errs.Add(prefix+".duration", "duration is required for constant pacing")
		}
	case PacingRandom:
		if pacing.Max <= 0 {
			errs.Add(prefix+".max", "max is required for random pacing")
		}
		if pacing.Min > pacing.Max {
			errs.Add(prefix, "min must be less than or equal to max")
		}
	default:
		errs.Add(prefix+".type", fmt.Sprintf("invalid pacing type: %s", pacing.Type))
	}
}

// Threshold metric names.
const (
	MetricHTTPReqDuration = "http_req_duration"
	MetricHTTPReqFailed   = "http_req_failed"
	MetricHTTPReqs        = "http_reqs"
	MetricChecks          = "checks"
)

// aggregations allowed per threshold metric
var thresholdAggregations = map[string][]string{
	MetricHTTPReqDuration: {"p50", "p90", "p95", "p99", "min", "max", "avg", "med"},
	MetricHTTPReqFailed:   {"rate"},
	MetricHTTPReqs:        {"count", "rate"},
	MetricChecks:          {"rate"},
}

var thresholdPattern = regexp.MustCompile(`^(\w+)\s*(<=|>=|==|!=|<|>)\s*(.+)$`)

// ThresholdExpression is a parsed expression such as "p95 < 500ms".
type ThresholdExpression struct {
	Aggregation string
	Op          string
	Value       string
}

// ParseThreshold parses and checks an expression against the aggregations
// the given metric supports.
func ParseThreshold(metric, expr string) (*ThresholdExpression, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("threshold expression cannot be empty")
	}

	m := thresholdPattern.FindStringSubmatch(expr)
	if len(m) != 4 {
		return nil, fmt.Errorf("invalid expression format: %s", expr)
	}

	te := &ThresholdExpression{Aggregation: m[1], Op: m[2], Value: strings.TrimSpace(m[3])}

	allowed, ok := thresholdAggregations[metric]
	if !ok {
		return nil, fmt.Errorf("unknown threshold metric: %s", metric)
	}
	if !contains(allowed, te.Aggregation) {
		return nil, fmt.Errorf("%s supports %s, got: %s", metric, strings.Join(allowed, ", "), te.Aggregation)
	}

	if metric == MetricHTTPReqDuration {
		if _, err := ParseDurationString(te.Value); err != nil {
			return nil, err
		}
	} else if _, err := strconv.ParseFloat(te.Value, 64); err != nil {
		return nil, fmt.Errorf("invalid threshold value: %s", te.Value)
	}

	return te, nil
}

func validateThresholds(t *ThresholdsConfig, errs *ValidationErrors) {
	check := func(metric string, exprs []string) {
		for i, expr := range exprs {
			if _, err := ParseThreshold(metric, expr); err != nil {
				errs.Add(fmt.Sprintf("thresholds.%s[%d]", metric, i), err.Error())
			}
		}
	}

	check(MetricHTTPReqDuration, t.HTTPReqDuration)
	check(MetricHTTPReqFailed, t.HTTPReqFailed)
	check(MetricHTTPReqs, t.HTTPReqs)
	check(MetricChecks, t.Checks)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
