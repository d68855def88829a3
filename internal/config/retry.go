package config

import (
	"strings"
	"time"
)

// RetryBackoffMode enumerates supported backoff strategies for retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

// NormalizeRetryBackoff converts arbitrary user input (case-insensitive) into a typed mode, returning empty string for unknown.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(RetryBackoffFixed):
		return RetryBackoffFixed
	case string(RetryBackoffLinear):
		return RetryBackoffLinear
	case string(RetryBackoffExponential):
		return RetryBackoffExponential
	default:
		return ""
	}
}

// RetryConfig is the shared retry block used by content fetches and queued builds.
// MaxRetries of 0 disables retries.
type RetryConfig struct {
	MaxRetries   int              `yaml:"max_retries,omitempty"`
	Backoff      RetryBackoffMode `yaml:"backoff,omitempty"`
	InitialDelay string           `yaml:"initial_delay,omitempty"`
	MaxDelay     string           `yaml:"max_delay,omitempty"`
}

// Initial returns the parsed initial delay (zero when unset or invalid).
func (r RetryConfig) Initial() time.Duration { return parseDurationOr(r.InitialDelay, 0) }

// Max returns the parsed maximum delay (zero when unset or invalid).
func (r RetryConfig) Max() time.Duration { return parseDurationOr(r.MaxDelay, 0) }
