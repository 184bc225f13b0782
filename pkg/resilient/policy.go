package resilient

import (
	"errors"
	"math"
	"time"
)

// Policy bounds how many times an operation is attempted and how long to wait
// between attempts. The wait before attempt n (n >= 2) is
// BaseDelay * BackoffMultiplier^(n-2); attempt 1 runs immediately.
type Policy struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	BackoffMultiplier float64

	// AttemptTimeout caps a single attempt. An attempt that runs out of time
	// counts as an ordinary failure and is retried. Zero means no cap.
	AttemptTimeout time.Duration
}

// DefaultPolicy returns three attempts spaced 800ms and 1.6s apart.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       3,
		BaseDelay:         800 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

var (
	ErrInvalidMaxAttempts = errors.New("retry policy: max attempts must be at least 1")
	ErrInvalidMultiplier  = errors.New("retry policy: backoff multiplier must be at least 1")
	ErrNegativeDelay      = errors.New("retry policy: base delay must not be negative")
)

// Validate reports whether the policy can be used by Invoke.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}
	if p.BackoffMultiplier < 1 {
		return ErrInvalidMultiplier
	}
	if p.BaseDelay < 0 {
		return ErrNegativeDelay
	}
	return nil
}

// Delay returns the wait that precedes the given 1-based attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 2 {
		return 0
	}
	return time.Duration(float64(p.BaseDelay) * math.Pow(p.BackoffMultiplier, float64(attempt-2)))
}

// TotalDelay is the sum of waits preceding attempts 2..attempts.
func (p Policy) TotalDelay(attempts int) time.Duration {
	var total time.Duration
	for n := 2; n <= attempts; n++ {
		total += p.Delay(n)
	}
	return total
}
