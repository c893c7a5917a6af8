package realtime

import (
	"time"

	"golang.org/x/time/rate"
)

// newEventLimiter allows limit events per window on one connection, with the
// whole allowance available as a burst.
func newEventLimiter(limit int, window time.Duration) *rate.Limiter {
	if limit <= 0 {
		limit = rateLimitEvents
	}
	if window <= 0 {
		window = rateLimitWindow
	}
	return rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)
}
