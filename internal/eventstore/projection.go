package eventstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Summary statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// BuildSummary is the read model of one build.
type BuildSummary struct {
	BuildID     string            `json:"buildId"`
	Site        string            `json:"site"`
	Template    string            `json:"template"`
	Trigger     string            `json:"trigger,omitempty"`
	Status      string            `json:"status"`
	Outcome     string            `json:"outcome,omitempty"`
	StartedAt   time.Time         `json:"startedAt"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
	DurationMS  int64             `json:"durationMs,omitempty"`
	FailedStage string            `json:"failedStage,omitempty"`
	Error       string            `json:"error,omitempty"`
	Attempts    int               `json:"attempts"`
	Artifacts   map[string]string `json:"artifacts,omitempty"`
}

// BuildHistoryProjection maintains an in-memory view of build history
// reconstructed from stored events.
type BuildHistoryProjection struct {
	mu       sync.RWMutex
	store    Store
	builds   map[string]*BuildSummary
	history  []*BuildSummary // finished builds, newest first
	maxSize  int
	lastSync time.Time
}

// NewBuildHistoryProjection creates a projection backed by store.
func NewBuildHistoryProjection(store Store, maxHistorySize int) *BuildHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &BuildHistoryProjection{
		store:   store,
		builds:  make(map[string]*BuildSummary),
		maxSize: maxHistorySize,
	}
}

// Rebuild replays every stored event. Called at startup.
func (p *BuildHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.builds = make(map[string]*BuildSummary)
	p.history = nil
	for _, e := range events {
		p.applyLocked(e)
	}
	sort.SliceStable(p.history, func(i, j int) bool {
		return p.history[i].StartedAt.After(p.history[j].StartedAt)
	})
	p.trimLocked()
	p.lastSync = time.Now()
	return nil
}

// Apply folds a single event into the projection.
func (p *BuildHistoryProjection) Apply(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyLocked(e)
}

func (p *BuildHistoryProjection) applyLocked(e Event) {
	id := e.BuildID()
	if id == "" {
		return
	}
	s, ok := p.builds[id]
	if !ok {
		s = &BuildSummary{BuildID: id, Status: StatusRunning, StartedAt: e.Timestamp()}
		p.builds[id] = s
	}

	switch e.Type() {
	case TypeBuildStarted:
		var meta BuildStartedMeta
		if json.Unmarshal(e.Payload(), &meta) == nil {
			s.Site, s.Template, s.Trigger = meta.Site, meta.Template, meta.Trigger
		}
		s.Attempts++
		if s.Attempts == 1 {
			s.StartedAt = e.Timestamp()
		}
		s.Status = StatusRunning
	case TypeBuildCompleted:
		var data BuildCompletedData
		if json.Unmarshal(e.Payload(), &data) == nil {
			s.Outcome = data.Outcome
			s.Artifacts = data.Artifacts
		}
		p.finishLocked(s, e.Timestamp(), StatusCompleted)
	case TypeBuildFailed:
		var data BuildFailedData
		if json.Unmarshal(e.Payload(), &data) == nil {
			s.FailedStage = data.Stage
			s.Error = data.Error
		}
		p.finishLocked(s, e.Timestamp(), StatusFailed)
	}
}

func (p *BuildHistoryProjection) finishLocked(s *BuildSummary, at time.Time, status string) {
	s.CompletedAt = &at
	s.DurationMS = at.Sub(s.StartedAt).Milliseconds()
	s.Status = status
	for _, h := range p.history {
		if h.BuildID == s.BuildID {
			return
		}
	}
	p.history = append([]*BuildSummary{s}, p.history...)
	p.trimLocked()
}

// trimLocked bounds history and forgets finished builds that fell out of it.
func (p *BuildHistoryProjection) trimLocked() {
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	keep := make(map[string]struct{}, len(p.history))
	for _, h := range p.history {
		keep[h.BuildID] = struct{}{}
	}
	for id, s := range p.builds {
		if s.Status == StatusRunning {
			continue
		}
		if _, ok := keep[id]; !ok {
			delete(p.builds, id)
		}
	}
}

// GetHistory returns finished builds, newest first.
func (p *BuildHistoryProjection) GetHistory() []BuildSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]BuildSummary, len(p.history))
	for i, h := range p.history {
		out[i] = *h
	}
	return out
}

// GetBuild returns a copy of one build's summary.
func (p *BuildHistoryProjection) GetBuild(buildID string) (BuildSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.builds[buildID]
	if !ok {
		return BuildSummary{}, false
	}
	return *s, true
}

// LastCompleted returns the most recently finished build for site, or any site when empty.
func (p *BuildHistoryProjection) LastCompleted(site string) (BuildSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, h := range p.history {
		if site == "" || h.Site == site {
			return *h, true
		}
	}
	return BuildSummary{}, false
}

// LastSyncTime returns when the projection was last rebuilt.
func (p *BuildHistoryProjection) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}
