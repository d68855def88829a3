// Package queue runs site builds on a bounded pool of workers and keeps a
// short in-memory history of finished jobs.
package queue

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/eventstore"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/pipeline"
	"git.home.luguber.info/inful/sitebuilder/internal/retry"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

// BuildType records what triggered a job.
type BuildType string

const (
	BuildTypeManual       BuildType = "manual"        // CLI or HTTP request
	BuildTypeScheduled    BuildType = "scheduled"     // periodic rebuild
	BuildTypeConfigReload BuildType = "config_reload" // site table changed on disk
)

// BuildStatus represents the current status of a build job.
type BuildStatus string

const (
	BuildStatusQueued    BuildStatus = "queued"
	BuildStatusRunning   BuildStatus = "running"
	BuildStatusCompleted BuildStatus = "completed"
	BuildStatusFailed    BuildStatus = "failed"
	BuildStatusCancelled BuildStatus = "canceled"
)

// Sentinel errors returned by Enqueue.
var (
	ErrQueueFull    = stdErrors.New("build queue is full")
	ErrQueueStopped = stdErrors.New("build queue is stopped")
)

// BuildJob is a single site build in the queue.
type BuildJob struct {
	ID          string                `json:"id"`
	Type        BuildType             `json:"type"`
	Status      BuildStatus           `json:"status"`
	Site        site.Config           `json:"site"`
	CreatedAt   time.Time             `json:"createdAt"`
	StartedAt   *time.Time            `json:"startedAt,omitempty"`
	CompletedAt *time.Time            `json:"completedAt,omitempty"`
	DurationMS  int64                 `json:"durationMs,omitempty"`
	Attempts    int                   `json:"attempts"`
	Retries     int                   `json:"retries,omitempty"`
	Error       string                `json:"error,omitempty"`
	Result      *pipeline.BuildResult `json:"result,omitempty"`

	cancel context.CancelFunc
}

// Builder executes one build. *pipeline.Coordinator satisfies it.
type Builder interface {
	Build(ctx context.Context, req pipeline.Request) *pipeline.BuildResult
}

// BuildEventEmitter abstracts lifecycle event emission.
type BuildEventEmitter interface {
	EmitBuildStarted(ctx context.Context, buildID string, meta eventstore.BuildStartedMeta) error
	EmitBuildCompleted(ctx context.Context, buildID, outcome string, duration time.Duration, artifacts map[string]string) error
	EmitBuildFailed(ctx context.Context, buildID, stage, errorMsg string) error
	EmitBuildResult(ctx context.Context, buildID string, result any) error
}

// ResultPublisher receives every finished result.
type ResultPublisher interface {
	Publish(ctx context.Context, jobID string, result *pipeline.BuildResult) error
}

// BuildQueue manages the queue of build jobs.
type BuildQueue struct {
	jobs        chan *BuildJob
	workers     int
	maxSize     int
	mu          sync.RWMutex
	queued      map[string]*BuildJob
	active      map[string]*BuildJob
	history     []*BuildJob
	historySize int
	stopChan    chan struct{}
	stopOnce    sync.Once
	stopped     bool
	wg          sync.WaitGroup
	builder     Builder

	retryPolicy retry.Policy
	recorder    metrics.Recorder
	logger      *slog.Logger

	eventEmitter BuildEventEmitter
	publisher    ResultPublisher
}

// New creates a build queue with the given capacity, worker count and builder.
func New(maxSize, workers int, builder Builder) *BuildQueue {
	if maxSize <= 0 {
		maxSize = 32
	}
	if workers <= 0 {
		workers = 2
	}
	if builder == nil {
		panic("queue.New: builder is required")
	}
	return &BuildQueue{
		jobs:        make(chan *BuildJob, maxSize),
		workers:     workers,
		maxSize:     maxSize,
		queued:      make(map[string]*BuildJob),
		active:      make(map[string]*BuildJob),
		historySize: 50,
		stopChan:    make(chan struct{}),
		builder:     builder,
		retryPolicy: retry.DefaultPolicy(),
		recorder:    metrics.NoopRecorder{},
		logger:      slog.Default(),
	}
}

// ConfigureRetry updates the retry policy for transient failures.
func (bq *BuildQueue) ConfigureRetry(cfg config.RetryConfig) {
	bq.retryPolicy = retry.FromConfig(cfg)
}

// SetHistorySize bounds how many finished jobs are kept.
func (bq *BuildQueue) SetHistorySize(n int) {
	if n > 0 {
		bq.mu.Lock()
		bq.historySize = n
		bq.mu.Unlock()
	}
}

// SetRecorder injects a metrics recorder.
func (bq *BuildQueue) SetRecorder(r metrics.Recorder) {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	bq.recorder = r
}

// SetLogger sets the logger.
func (bq *BuildQueue) SetLogger(l *slog.Logger) {
	if l != nil {
		bq.logger = l
	}
}

// SetEventEmitter injects a build event emitter.
func (bq *BuildQueue) SetEventEmitter(emitter BuildEventEmitter) {
	bq.eventEmitter = emitter
}

// SetPublisher injects the result publisher.
func (bq *BuildQueue) SetPublisher(p ResultPublisher) {
	bq.publisher = p
}

// Start begins processing jobs with the configured number of workers.
func (bq *BuildQueue) Start(ctx context.Context) {
	bq.logger.Info("Starting build queue", slog.Int("workers", bq.workers), slog.Int("max_size", bq.maxSize))
	for i := range bq.workers {
		bq.wg.Add(1)
		go bq.worker(ctx, fmt.Sprintf("worker-%d", i))
	}
}

// Stop cancels running jobs and waits for the workers to exit. Jobs still
// waiting in the queue are recorded as canceled.
func (bq *BuildQueue) Stop(_ context.Context) {
	bq.stopOnce.Do(func() {
		bq.mu.Lock()
		bq.stopped = true
		for _, job := range bq.active {
			if job.cancel != nil {
				job.cancel()
			}
		}
		bq.mu.Unlock()
		close(bq.stopChan)
	})
	bq.wg.Wait()

	bq.mu.Lock()
	defer bq.mu.Unlock()
drain:
	for {
		select {
		case <-bq.jobs:
		default:
			break drain
		}
	}
	for id, job := range bq.queued {
		delete(bq.queued, id)
		bq.cancelQueuedLocked(job)
	}
	bq.recorder.SetQueueDepth(0)
}

// Length returns the number of jobs waiting to run. Jobs canceled while
// queued are not counted.
func (bq *BuildQueue) Length() int {
	bq.mu.RLock()
	defer bq.mu.RUnlock()
	return len(bq.queued)
}

func (bq *BuildQueue) cancelQueuedLocked(job *BuildJob) {
	now := time.Now()
	job.Status = BuildStatusCancelled
	job.CompletedAt = &now
	job.Error = context.Canceled.Error()
	bq.addToHistoryLocked(job)
}

// Enqueue adds a job. ID, Type and Site.Domain are required.
func (bq *BuildQueue) Enqueue(job *BuildJob) error {
	if job == nil {
		return errors.ValidationError("job cannot be nil").Build()
	}
	if job.ID == "" {
		return errors.ValidationError("job ID is required").Build()
	}
	if job.Site.Domain == "" {
		return errors.ValidationError("job site domain is required").WithContext("job_id", job.ID).Build()
	}
	if job.Type == "" {
		job.Type = BuildTypeManual
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	bq.mu.Lock()
	defer bq.mu.Unlock()
	if bq.stopped {
		return ErrQueueStopped
	}
	job.Status = BuildStatusQueued
	select {
	case bq.jobs <- job:
		bq.queued[job.ID] = job
		bq.recorder.SetQueueDepth(len(bq.queued))
		bq.logger.Info("Build enqueued", logfields.JobID(job.ID), logfields.Site(job.Site.Domain),
			slog.String("type", string(job.Type)))
		return nil
	default:
		return ErrQueueFull
	}
}

// Cancel stops a queued or running job. It reports whether the job was found unfinished.
func (bq *BuildQueue) Cancel(id string) bool {
	bq.mu.Lock()
	defer bq.mu.Unlock()
	if job, ok := bq.queued[id]; ok {
		delete(bq.queued, id)
		bq.cancelQueuedLocked(job)
		bq.recorder.SetQueueDepth(len(bq.queued))
		return true
	}
	if job, ok := bq.active[id]; ok && job.cancel != nil {
		job.cancel()
		return true
	}
	return false
}

// JobSnapshot returns a copy of a job (queued, active, then history).
func (bq *BuildQueue) JobSnapshot(id string) (*BuildJob, bool) {
	bq.mu.RLock()
	defer bq.mu.RUnlock()
	if j, ok := bq.queued[id]; ok {
		return j.snapshot(), true
	}
	if j, ok := bq.active[id]; ok {
		return j.snapshot(), true
	}
	for _, j := range bq.history {
		if j.ID == id {
			return j.snapshot(), true
		}
	}
	return nil, false
}

// Jobs returns copies of every known job: queued, active, then history (newest first).
func (bq *BuildQueue) Jobs() []*BuildJob {
	bq.mu.RLock()
	defer bq.mu.RUnlock()
	out := make([]*BuildJob, 0, len(bq.queued)+len(bq.active)+len(bq.history))
	for _, j := range bq.queued {
		out = append(out, j.snapshot())
	}
	for _, j := range bq.active {
		out = append(out, j.snapshot())
	}
	for i := len(bq.history) - 1; i >= 0; i-- {
		out = append(out, bq.history[i].snapshot())
	}
	return out
}

func (j *BuildJob) snapshot() *BuildJob {
	cp := *j
	cp.cancel = nil
	return &cp
}

func (bq *BuildQueue) worker(ctx context.Context, workerID string) {
	defer bq.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-bq.stopChan:
			return
		case job := <-bq.jobs:
			if job != nil {
				bq.processJob(ctx, job, workerID)
			}
		}
	}
}

func (bq *BuildQueue) processJob(ctx context.Context, job *BuildJob, workerID string) {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	bq.mu.Lock()
	if _, ok := bq.queued[job.ID]; !ok || bq.stopped {
		// Canceled while waiting, or left for Stop to cancel.
		bq.mu.Unlock()
		return
	}
	delete(bq.queued, job.ID)
	bq.recorder.SetQueueDepth(len(bq.queued))
	startTime := time.Now()
	job.cancel = cancel
	job.StartedAt = &startTime
	job.Status = BuildStatusRunning
	bq.active[job.ID] = job
	bq.mu.Unlock()

	res := bq.executeBuild(jobCtx, job, workerID)

	bq.markJobCompleted(jobCtx, job, res)
	bq.emitCompletionEvents(ctx, job, res)
	if bq.publisher != nil {
		if err := bq.publisher.Publish(ctx, job.ID, res); err != nil {
			bq.logger.Warn("Failed to publish build result", logfields.JobID(job.ID), logfields.Error(err))
		}
	}
}

func (bq *BuildQueue) emitBuildStartedEvent(ctx context.Context, job *BuildJob, workerID string) {
	if bq.eventEmitter == nil {
		return
	}
	meta := eventstore.BuildStartedMeta{
		Site:     job.Site.Domain,
		Template: job.Site.Template,
		Trigger:  string(job.Type),
		WorkerID: workerID,
	}
	if err := bq.eventEmitter.EmitBuildStarted(ctx, job.ID, meta); err != nil {
		bq.logger.Warn("Failed to emit build_started event", logfields.JobID(job.ID), logfields.Error(err))
	}
}

func (bq *BuildQueue) markJobCompleted(ctx context.Context, job *BuildJob, res *pipeline.BuildResult) {
	endTime := time.Now()
	bq.mu.Lock()
	defer bq.mu.Unlock()
	job.CompletedAt = &endTime
	if job.StartedAt != nil {
		job.DurationMS = endTime.Sub(*job.StartedAt).Milliseconds()
	}
	job.Result = res
	job.cancel = nil
	switch {
	case res.Success:
		job.Status = BuildStatusCompleted
	case ctx.Err() != nil:
		job.Status = BuildStatusCancelled
		job.Error = res.Error
	default:
		job.Status = BuildStatusFailed
		job.Error = res.Error
	}
	delete(bq.active, job.ID)
	bq.addToHistoryLocked(job)
	bq.logger.Info("Build job finished", logfields.JobID(job.ID), logfields.Site(job.Site.Domain),
		logfields.JobStatus(string(job.Status)), slog.Int("attempts", job.Attempts))
}

func (bq *BuildQueue) emitCompletionEvents(ctx context.Context, job *BuildJob, res *pipeline.BuildResult) {
	if bq.eventEmitter == nil {
		return
	}
	if err := bq.eventEmitter.EmitBuildResult(ctx, job.ID, res); err != nil {
		bq.logger.Warn("Failed to emit build_result event", logfields.JobID(job.ID), logfields.Error(err))
	}
	if !res.Success {
		stage := res.FailedStage
		if stage == "" {
			stage = "build"
		}
		if err := bq.eventEmitter.EmitBuildFailed(ctx, job.ID, stage, res.Error); err != nil {
			bq.logger.Warn("Failed to emit build_failed event", logfields.JobID(job.ID), logfields.Error(err))
		}
		return
	}
	artifacts := map[string]string{
		"dist_path":         res.DistPath,
		"article_count":     strconv.Itoa(res.ArticleCount),
		"category_count":    strconv.Itoa(res.CategoryCount),
		"images_downloaded": strconv.Itoa(res.ImagesDownloaded),
		"total_images":      strconv.Itoa(res.TotalImages),
	}
	outcome := string(pipeline.OutcomeSuccess)
	if res.Report != nil {
		outcome = string(res.Report.Outcome)
	}
	duration := time.Duration(res.DurationMS) * time.Millisecond
	if err := bq.eventEmitter.EmitBuildCompleted(ctx, job.ID, outcome, duration, artifacts); err != nil {
		bq.logger.Warn("Failed to emit build_completed event", logfields.JobID(job.ID), logfields.Error(err))
	}
}

func (bq *BuildQueue) addToHistoryLocked(job *BuildJob) {
	bq.history = append(bq.history, job)
	if len(bq.history) > bq.historySize {
		copy(bq.history, bq.history[len(bq.history)-bq.historySize:])
		bq.history = bq.history[:bq.historySize]
	}
}

// executeBuild runs the builder, retrying transient failures per the policy.
func (bq *BuildQueue) executeBuild(ctx context.Context, job *BuildJob, workerID string) *pipeline.BuildResult {
	policy := bq.retryPolicy
	req := pipeline.Request{Site: job.Site, BuildID: job.ID}

	totalRetries := 0
	for {
		bq.setAttempts(job, job.Attempts+1)
		bq.emitBuildStartedEvent(ctx, job, workerID)
		res := bq.builder.Build(ctx, req)
		if res.Success || ctx.Err() != nil {
			return res
		}

		transient, transientStage := findTransientError(res)
		if shouldStopRetrying(transient, totalRetries, policy.MaxRetries) {
			if transient && totalRetries > 0 {
				bq.recorder.IncBuildRetryExhausted(transientStage)
			}
			return res
		}

		totalRetries++
		bq.setRetries(job, totalRetries)
		bq.recorder.IncBuildRetry(transientStage)
		delay := policy.Delay(totalRetries)
		bq.logger.Warn("Transient build error, retrying",
			logfields.JobID(job.ID),
			slog.Int("retry", totalRetries),
			slog.Int("max_retries", policy.MaxRetries),
			logfields.Stage(transientStage),
			slog.Duration("delay", delay),
			slog.String("error", res.Error),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return res
		}
	}
}

func (bq *BuildQueue) setAttempts(job *BuildJob, n int) {
	bq.mu.Lock()
	job.Attempts = n
	bq.mu.Unlock()
}

func (bq *BuildQueue) setRetries(job *BuildJob, n int) {
	bq.mu.Lock()
	job.Retries = n
	bq.mu.Unlock()
}

func shouldStopRetrying(transient bool, totalRetries, maxRetries int) bool {
	return !transient || totalRetries >= maxRetries
}

// findTransientError reports whether the fatal issue of a failed result is retryable.
func findTransientError(res *pipeline.BuildResult) (bool, string) {
	if res == nil || res.Report == nil {
		return false, ""
	}
	for _, issue := range res.Report.Issues {
		if issue.Severity == pipeline.SeverityError && issue.Transient {
			return true, string(issue.Stage)
		}
	}
	return false, ""
}
