package config

import (
	"strings"
	"time"
)

func parseDurationOr(raw string, def time.Duration) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// TimeoutDuration returns the per-request content API timeout.
func (c ContentConfig) TimeoutDuration() time.Duration {
	return parseDurationOr(c.Timeout, 30*time.Second)
}

// TimeoutDuration returns the per-download timeout.
func (a AssetsConfig) TimeoutDuration() time.Duration {
	return parseDurationOr(a.Timeout, 30*time.Second)
}

// TimeoutDuration returns the upper bound for a single toolchain command.
func (t ToolchainConfig) TimeoutDuration() time.Duration {
	return parseDurationOr(t.Timeout, 10*time.Minute)
}

// RebuildIntervalDuration returns the scheduled rebuild interval, zero when disabled.
func (d DaemonConfig) RebuildIntervalDuration() time.Duration {
	return parseDurationOr(d.RebuildInterval, 0)
}
