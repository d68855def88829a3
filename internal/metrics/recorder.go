package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultWarning  ResultLabel = "warning"
	ResultFatal    ResultLabel = "fatal"
	ResultCanceled ResultLabel = "canceled"
)

// BuildOutcomeLabel enumerates final build outcomes.
type BuildOutcomeLabel string

const (
	BuildOutcomeSuccess  BuildOutcomeLabel = "success"
	BuildOutcomeWarning  BuildOutcomeLabel = "warning"
	BuildOutcomeFailed   BuildOutcomeLabel = "failed"
	BuildOutcomeCanceled BuildOutcomeLabel = "canceled"
)

// Recorder defines observability hooks for build, stage, asset and toolchain metrics.
// Implementations may forward to Prometheus; NoopRecorder is the default when metrics
// are not configured.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncBuildOutcome(outcome BuildOutcomeLabel)
	IncAssetResult(kind string, success bool) // kind: content|featured
	ObserveToolchainCommand(step string, d time.Duration, success bool)
	IncBuildRetry(site string)
	IncBuildRetryExhausted(site string)
	SetQueueDepth(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration)          {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)                  {}
func (NoopRecorder) IncStageResult(string, ResultLabel)                  {}
func (NoopRecorder) IncBuildOutcome(BuildOutcomeLabel)                   {}
func (NoopRecorder) IncAssetResult(string, bool)                         {}
func (NoopRecorder) ObserveToolchainCommand(string, time.Duration, bool) {}
func (NoopRecorder) IncBuildRetry(string)                                {}
func (NoopRecorder) IncBuildRetryExhausted(string)                       {}
func (NoopRecorder) SetQueueDepth(int)                                   {}
