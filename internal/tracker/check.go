package tracker

import (
	"net/http"

	lhttp "github.com/rokkincat/trackload/internal/http"
)

// CheckStatus reports whether resp has status 200 or 201. Nothing else,
// not even another 2xx, counts as success.
func CheckStatus(resp *lhttp.Response) bool {
	if resp == nil {
		return false
	}
	return resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated
}
