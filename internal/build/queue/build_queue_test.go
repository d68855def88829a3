package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/eventstore"
	"git.home.luguber.info/inful/sitebuilder/internal/pipeline"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

// stubBuilder returns queued results in order, repeating the last one.
type stubBuilder struct {
	mu      sync.Mutex
	results []*pipeline.BuildResult
	calls   atomic.Int32
	block   chan struct{}
}

func (b *stubBuilder) Build(ctx context.Context, req pipeline.Request) *pipeline.BuildResult {
	n := int(b.calls.Add(1))
	if b.block != nil {
		select {
		case <-b.block:
		case <-ctx.Done():
			return &pipeline.BuildResult{Site: req.Site.Domain, Error: ctx.Err().Error()}
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := n - 1
	if idx >= len(b.results) {
		idx = len(b.results) - 1
	}
	res := *b.results[idx]
	res.Site = req.Site.Domain
	return &res
}

func success() *pipeline.BuildResult {
	return &pipeline.BuildResult{Success: true, HasIndex: true, TotalImages: 2, ImagesDownloaded: 2,
		Report: &pipeline.BuildReport{Outcome: pipeline.OutcomeSuccess}}
}

func failure(transient bool) *pipeline.BuildResult {
	return &pipeline.BuildResult{
		Error:       "content fetch failed",
		FailedStage: string(pipeline.StageFetching),
		Report: &pipeline.BuildReport{
			Outcome: pipeline.OutcomeFailed,
			Issues: []pipeline.ReportIssue{{
				Code: pipeline.IssueContentFetch, Stage: pipeline.StageFetching,
				Severity: pipeline.SeverityError, Transient: transient,
			}},
		},
	}
}

type recordingEmitter struct {
	mu    sync.Mutex
	types []string
}

func (e *recordingEmitter) add(t string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.types = append(e.types, t)
}
func (e *recordingEmitter) EmitBuildStarted(context.Context, string, eventstore.BuildStartedMeta) error {
	e.add(eventstore.TypeBuildStarted)
	return nil
}
func (e *recordingEmitter) EmitBuildCompleted(context.Context, string, string, time.Duration, map[string]string) error {
	e.add(eventstore.TypeBuildCompleted)
	return nil
}
func (e *recordingEmitter) EmitBuildFailed(context.Context, string, string, string) error {
	e.add(eventstore.TypeBuildFailed)
	return nil
}
func (e *recordingEmitter) EmitBuildResult(context.Context, string, any) error {
	e.add(eventstore.TypeBuildResult)
	return nil
}
func (e *recordingEmitter) snapshot() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.types...)
}

type recordingPublisher struct {
	published chan string
}

func (p *recordingPublisher) Publish(_ context.Context, jobID string, _ *pipeline.BuildResult) error {
	p.published <- jobID
	return nil
}

func job(id string) *BuildJob {
	return &BuildJob{ID: id, Site: site.Config{Domain: "example.com", Template: "default"}}
}

func waitForStatus(t *testing.T, q *BuildQueue, id string, want BuildStatus) *BuildJob {
	t.Helper()
	var snap *BuildJob
	require.Eventually(t, func() bool {
		var ok bool
		snap, ok = q.JobSnapshot(id)
		return ok && snap.Status == want
	}, 5*time.Second, 5*time.Millisecond)
	return snap
}

func TestQueueRunsJobAndEmitsEvents(t *testing.T) {
	builder := &stubBuilder{results: []*pipeline.BuildResult{success()}}
	q := New(4, 1, builder)
	emitter := &recordingEmitter{}
	pub := &recordingPublisher{published: make(chan string, 1)}
	q.SetEventEmitter(emitter)
	q.SetPublisher(pub)
	q.Start(context.Background())
	defer q.Stop(context.Background())

	require.NoError(t, q.Enqueue(job("j1")))
	snap := waitForStatus(t, q, "j1", BuildStatusCompleted)

	require.NotNil(t, snap.Result)
	assert.True(t, snap.Result.Success)
	assert.Equal(t, 1, snap.Attempts)
	assert.NotNil(t, snap.CompletedAt)
	assert.Equal(t, "j1", <-pub.published)
	assert.Equal(t, []string{eventstore.TypeBuildStarted, eventstore.TypeBuildResult, eventstore.TypeBuildCompleted}, emitter.snapshot())
}

func TestQueueFailedJob(t *testing.T) {
	builder := &stubBuilder{results: []*pipeline.BuildResult{failure(false)}}
	q := New(4, 1, builder)
	emitter := &recordingEmitter{}
	q.SetEventEmitter(emitter)
	q.Start(context.Background())
	defer q.Stop(context.Background())

	require.NoError(t, q.Enqueue(job("j1")))
	snap := waitForStatus(t, q, "j1", BuildStatusFailed)
	assert.Equal(t, "content fetch failed", snap.Error)
	assert.Eventually(t, func() bool {
		for _, typ := range emitter.snapshot() {
			if typ == eventstore.TypeBuildFailed {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestQueueRetriesTransientFailures(t *testing.T) {
	builder := &stubBuilder{results: []*pipeline.BuildResult{failure(true), failure(true), success()}}
	q := New(4, 1, builder)
	q.ConfigureRetry(config.RetryConfig{MaxRetries: 3, Backoff: config.RetryBackoffFixed, InitialDelay: "1ms", MaxDelay: "1ms"})
	q.Start(context.Background())
	defer q.Stop(context.Background())

	require.NoError(t, q.Enqueue(job("j1")))
	snap := waitForStatus(t, q, "j1", BuildStatusCompleted)
	assert.Equal(t, 3, snap.Attempts)
	assert.Equal(t, 2, snap.Retries)
}

func TestQueueRetryExhausted(t *testing.T) {
	builder := &stubBuilder{results: []*pipeline.BuildResult{failure(true)}}
	q := New(4, 1, builder)
	q.ConfigureRetry(config.RetryConfig{MaxRetries: 1, Backoff: config.RetryBackoffFixed, InitialDelay: "1ms", MaxDelay: "1ms"})
	q.Start(context.Background())
	defer q.Stop(context.Background())

	require.NoError(t, q.Enqueue(job("j1")))
	snap := waitForStatus(t, q, "j1", BuildStatusFailed)
	assert.Equal(t, 2, snap.Attempts)
	assert.Equal(t, int32(2), builder.calls.Load())
}

func TestQueueNoRetryByDefault(t *testing.T) {
	builder := &stubBuilder{results: []*pipeline.BuildResult{failure(true)}}
	q := New(4, 1, builder)
	q.Start(context.Background())
	defer q.Stop(context.Background())

	require.NoError(t, q.Enqueue(job("j1")))
	waitForStatus(t, q, "j1", BuildStatusFailed)
	assert.Equal(t, int32(1), builder.calls.Load())
}

func TestQueueCancelRunningJob(t *testing.T) {
	builder := &stubBuilder{results: []*pipeline.BuildResult{success()}, block: make(chan struct{})}
	q := New(4, 1, builder)
	q.Start(context.Background())
	defer q.Stop(context.Background())

	require.NoError(t, q.Enqueue(job("j1")))
	waitForStatus(t, q, "j1", BuildStatusRunning)
	assert.True(t, q.Cancel("j1"))
	snap := waitForStatus(t, q, "j1", BuildStatusCancelled)
	assert.Contains(t, snap.Error, "canceled")
	assert.False(t, q.Cancel("j1"))
}

func TestQueueCancelQueuedJob(t *testing.T) {
	builder := &stubBuilder{results: []*pipeline.BuildResult{success()}, block: make(chan struct{})}
	q := New(4, 1, builder)
	q.Start(context.Background())
	defer func() {
		close(builder.block)
		q.Stop(context.Background())
	}()

	require.NoError(t, q.Enqueue(job("first")))
	waitForStatus(t, q, "first", BuildStatusRunning)
	require.NoError(t, q.Enqueue(job("second")))
	assert.True(t, q.Cancel("second"))

	snap, ok := q.JobSnapshot("second")
	require.True(t, ok)
	assert.Equal(t, BuildStatusCancelled, snap.Status)
}

func TestEnqueueValidation(t *testing.T) {
	q := New(1, 1, &stubBuilder{results: []*pipeline.BuildResult{success()}})
	assert.Error(t, q.Enqueue(nil))
	assert.Error(t, q.Enqueue(&BuildJob{Site: site.Config{Domain: "a"}}))
	assert.Error(t, q.Enqueue(&BuildJob{ID: "x"}))

	require.NoError(t, q.Enqueue(job("a")))
	assert.ErrorIs(t, q.Enqueue(job("b")), ErrQueueFull)
	assert.Equal(t, 1, q.Length())

	q.Stop(context.Background())
	assert.ErrorIs(t, q.Enqueue(job("c")), ErrQueueStopped)
}

func TestHistoryIsBounded(t *testing.T) {
	builder := &stubBuilder{results: []*pipeline.BuildResult{success()}}
	q := New(8, 1, builder)
	q.SetHistorySize(2)
	q.Start(context.Background())
	defer q.Stop(context.Background())

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(job(id)))
		waitForStatus(t, q, id, BuildStatusCompleted)
	}
	_, ok := q.JobSnapshot("a")
	assert.False(t, ok)
	jobs := q.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "c", jobs[0].ID)
}

func TestStopCancelsWaitingJobs(t *testing.T) {
	builder := &stubBuilder{results: []*pipeline.BuildResult{success()}, block: make(chan struct{})}
	q := New(4, 1, builder)
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(job("running")))
	waitForStatus(t, q, "running", BuildStatusRunning)
	require.NoError(t, q.Enqueue(job("waiting")))
	require.NoError(t, q.Enqueue(job("dropped")))
	assert.Equal(t, 2, q.Length())

	assert.True(t, q.Cancel("dropped"))
	assert.Equal(t, 1, q.Length(), "jobs canceled while queued are not counted")

	q.Stop(context.Background())

	assert.Zero(t, q.Length())
	snap, ok := q.JobSnapshot("waiting")
	require.True(t, ok)
	assert.Equal(t, BuildStatusCancelled, snap.Status)
	assert.NotNil(t, snap.CompletedAt)
	assert.Equal(t, int32(1), builder.calls.Load(), "waiting jobs never start after Stop")
	for _, j := range q.Jobs() {
		assert.NotEqual(t, BuildStatusQueued, j.Status, j.ID)
	}
}
