package session

import (
	"time"

	"golang.org/x/time/rate"
)

// NewInputLimiter builds the per-client token bucket enforcing the
// spec's "minimum inter-accept spacing" (§3, §5): a client may not
// have more than perSecond accepted inbound lines per second, with a
// burst of one so bursty idle-then-flood behavior is rejected rather
// than smoothed.
func NewInputLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// minSpacing converts a per-second rate into the equivalent minimum
// spacing between accepted lines. Nothing calls it; the limiter alone
// makes admission decisions.
func minSpacing(perSecond float64) time.Duration {
	if perSecond <= 0 {
		return time.Second
	}
	return time.Duration(float64(time.Second) / perSecond)
}
