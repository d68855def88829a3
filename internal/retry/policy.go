// Package retry decides how often and how patiently transient failures are
// retried. Content fetches retry single requests; the build queue retries
// whole builds.
package retry

import (
	"context"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
)

// Policy is a backoff schedule plus a retry budget. The zero budget means
// the operation runs exactly once.
type Policy struct {
	Mode       config.RetryBackoffMode
	Initial    time.Duration
	Max        time.Duration
	MaxRetries int
}

// DefaultPolicy is linear from 1s up to 30s with no retries.
func DefaultPolicy() Policy {
	return Policy{Mode: config.RetryBackoffLinear, Initial: time.Second, Max: 30 * time.Second}
}

// NewPolicy overlays the given values on DefaultPolicy. Non-positive delays,
// a negative budget and unknown modes keep the default. Initial never exceeds Max.
func NewPolicy(mode config.RetryBackoffMode, initial, maxDelay time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	if config.NormalizeRetryBackoff(string(mode)) != "" {
		p.Mode = config.NormalizeRetryBackoff(string(mode))
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDelay > 0 {
		p.Max = maxDelay
	}
	p.Initial = min(p.Initial, p.Max)
	if maxRetries > 0 {
		p.MaxRetries = maxRetries
	}
	return p
}

// FromConfig reads a retry block from the configuration file.
func FromConfig(rc config.RetryConfig) Policy {
	return NewPolicy(rc.Backoff, rc.Initial(), rc.Max(), rc.MaxRetries)
}

// Delay is the wait before retry n (the first retry is n=1).
func (p Policy) Delay(n int) time.Duration {
	var d time.Duration
	switch {
	case n <= 0:
		return 0
	case p.Mode == config.RetryBackoffFixed:
		d = p.Initial
	case p.Mode == config.RetryBackoffExponential:
		if n > 32 {
			return p.Max
		}
		d = p.Initial << (n - 1)
	default:
		d = p.Initial * time.Duration(n)
	}
	if d <= 0 || d > p.Max {
		return p.Max
	}
	return d
}

// Do calls op until it succeeds, fails with an error retryable rejects, or
// the budget runs out, and returns the last error. A nil retryable retries
// everything. Cancellation while waiting returns ctx.Err().
func (p Policy) Do(ctx context.Context, retryable func(error) bool, op func(attempt int) error) error {
	for attempt := 0; ; attempt++ {
		err := op(attempt)
		if err == nil {
			return nil
		}
		if attempt >= p.MaxRetries || (retryable != nil && !retryable(err)) {
			return err
		}
		if werr := wait(ctx, p.Delay(attempt+1)); werr != nil {
			return werr
		}
	}
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
