package worker

import (
	"math"
	"time"
)

// BackoffPolicy defines exponential backoff parameters.
type BackoffPolicy struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration // 0 disables clamping
	Factor    float64
}

// Delay returns the wait before retry attempt (1-based):
// BaseDelay * Factor^(attempt-1), clamped to MaxDelay when set.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 5 * time.Second
	}
	if p.Factor <= 0 {
		p.Factor = 2
	}

	delay := float64(p.BaseDelay) * math.Pow(p.Factor, float64(attempt-1))
	d := time.Duration(delay)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if d <= 0 {
		d = p.BaseDelay
	}
	return d
}
