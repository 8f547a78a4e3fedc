package httpclient

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Defaults used when a policy field is left at its zero value by config.
const (
	DefaultMaxRetries    = 3
	DefaultBaseDelay     = time.Second
	DefaultMaxDelay      = 10 * time.Second
	DefaultBackoffFactor = 2.0
)

// Policy validation errors.
var (
	ErrBaseDelayExceedsMax = errors.New("base delay must not exceed max delay")
	ErrBackoffFactorRange  = errors.New("backoff factor must be >= 1.0")
	ErrNegativeDelay       = errors.New("delays must be non-negative")
)

// RetryPolicy controls how many times a request is retried and how long to wait
// between attempts. The delay before retry n (0-indexed) is
// min(BaseDelay * BackoffFactor^n, MaxDelay).
type RetryPolicy struct {
	MaxRetries    uint
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryPolicy returns the policy used when nothing is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    DefaultMaxRetries,
		BaseDelay:     DefaultBaseDelay,
		MaxDelay:      DefaultMaxDelay,
		BackoffFactor: DefaultBackoffFactor,
	}
}

// Validate checks the policy invariants.
func (p RetryPolicy) Validate() error {
	if p.BaseDelay < 0 || p.MaxDelay < 0 {
		return ErrNegativeDelay
	}

	if p.BaseDelay > p.MaxDelay {
		return fmt.Errorf("%w: base %s, max %s", ErrBaseDelayExceedsMax, p.BaseDelay, p.MaxDelay)
	}

	if p.BackoffFactor < 1.0 {
		return fmt.Errorf("%w: got %.2f", ErrBackoffFactorRange, p.BackoffFactor)
	}

	return nil
}

// Attempts is the total number of attempts the policy allows.
func (p RetryPolicy) Attempts() int {
	return int(p.MaxRetries) + 1
}

// Delay returns the backoff delay inserted before retry n (0-indexed).
func (p RetryPolicy) Delay(retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}

	delay := float64(p.BaseDelay) * math.Pow(p.BackoffFactor, float64(retry))
	if math.IsInf(delay, 0) || math.IsNaN(delay) || delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}

	return time.Duration(delay)
}

// WorstCaseLatency is the upper bound on one Execute call: every attempt running
// into its timeout plus every backoff delay.
func (p RetryPolicy) WorstCaseLatency(timeout time.Duration) time.Duration {
	attempts := p.Attempts()
	total := time.Duration(attempts) * timeout

	for retry := range attempts - 1 {
		total += p.Delay(retry)
	}

	return total
}
