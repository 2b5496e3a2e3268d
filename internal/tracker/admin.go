package tracker

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	lhttp "github.com/rokkincat/trackload/internal/http"
)

// Request names of the auxiliary endpoints.
const (
	RequestAcceptTerms      = "accepted_terms"
	RequestPayPerformance   = "user_pay_performance"
	RequestDailyStatsExport = "daily_stats_export"
)

type acceptedTermsRequest struct {
	AcceptedTerms struct {
		TermsID int64 `json:"terms_id"`
	} `json:"accepted_terms"`
}

// AcceptTerms records that the session's user accepted termsID.
func (c *Client) AcceptTerms(ctx context.Context, token string, termsID int64) (*lhttp.Response, error) {
	var body acceptedTermsRequest
	body.AcceptedTerms.TermsID = termsID

	resp, err := c.send(ctx, RequestAcceptTerms, authorized(http.MethodPost, PathAcceptedTerms, token).WithBody(body))
	if err != nil {
		return nil, fmt.Errorf("accept terms: %w", err)
	}
	return resp, nil
}

// PayPerformance fetches the pay performance report for userID.
func (c *Client) PayPerformance(ctx context.Context, token string, userID int64) (*lhttp.Response, error) {
	path := PathPayPerformance + strconv.FormatInt(userID, 10)

	resp, err := c.send(ctx, RequestPayPerformance, authorized(http.MethodGet, path, token))
	if err != nil {
		return nil, fmt.Errorf("pay performance: %w", err)
	}
	return resp, nil
}

// DailyStatsExport fetches the admin daily statistics export.
func (c *Client) DailyStatsExport(ctx context.Context, token string) (*lhttp.Response, error) {
	resp, err := c.send(ctx, RequestDailyStatsExport, authorized(http.MethodGet, PathDailyStatsExport, token))
	if err != nil {
		return nil, fmt.Errorf("daily stats export: %w", err)
	}
	return resp, nil
}
