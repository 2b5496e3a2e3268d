package tracker

import (
	"testing"

	lhttp "github.com/rokkincat/trackload/internal/http"
)

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{200, true},
		{201, true},
		{202, false},
		{204, false},
		{301, false},
		{400, false},
		{401, false},
		{404, false},
		{500, false},
	}

	for _, tt := range tests {
		if got := CheckStatus(&lhttp.Response{StatusCode: tt.status}); got != tt.want {
			t.Errorf("CheckStatus(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}

	if CheckStatus(nil) {
		t.Error("CheckStatus(nil) = true, want false")
	}
}
