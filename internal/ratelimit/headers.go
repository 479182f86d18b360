package ratelimit

import (
	"math"
	"net/http"
	"strconv"
)

// SetHeaders writes the standard rate limit headers for d. Retry-After is
// only set when d rejected the request.
func SetHeaders(w http.ResponseWriter, d Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

	if !d.Admitted {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(d)))
	}
}

func retryAfterSeconds(d Decision) int {
	secs := int(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
