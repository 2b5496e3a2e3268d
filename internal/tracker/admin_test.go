package tracker

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuxiliaryEndpoints(t *testing.T) {
	type seen struct {
		method, path, auth, body string
	}
	var got seen

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got = seen{r.Method, r.URL.Path, r.Header.Get("Authorization"), string(b)}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() (int, error)
		want seen
	}{
		{
			name: "accept terms",
			call: func() (int, error) {
				resp, err := client.AcceptTerms(ctx, "tok", 3)
				if err != nil {
					return 0, err
				}
				return resp.StatusCode, nil
			},
			want: seen{http.MethodPost, "/api/accepted_terms", "tok", `{"accepted_terms":{"terms_id":3}}`},
		},
		{
			name: "pay performance",
			call: func() (int, error) {
				resp, err := client.PayPerformance(ctx, "tok", 4401)
				if err != nil {
					return 0, err
				}
				return resp.StatusCode, nil
			},
			want: seen{http.MethodGet, "/api/user_pay_performance/4401", "tok", ""},
		},
		{
			name: "daily stats export",
			call: func() (int, error) {
				resp, err := client.DailyStatsExport(ctx, "tok")
				if err != nil {
					return 0, err
				}
				return resp.StatusCode, nil
			},
			want: seen{http.MethodGet, "/api/_admin/export/daily_stats", "tok", ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := tt.call()
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if status != http.StatusOK {
				t.Errorf("status = %d", status)
			}
			if got != tt.want {
				t.Errorf("request = %+v, want %+v", got, tt.want)
			}
		})
	}
}
