package eventstore

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// Emitter appends lifecycle events to a store and keeps a projection current.
type Emitter struct {
	store      Store
	projection *BuildHistoryProjection
	logger     *slog.Logger
}

// NewEmitter returns an emitter. projection may be nil.
func NewEmitter(store Store, projection *BuildHistoryProjection, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{store: store, projection: projection, logger: logger}
}

func (e *Emitter) emit(ctx context.Context, ev *BaseEvent, err error) error {
	if err != nil {
		return err
	}
	if err := e.store.Append(ctx, ev.EventBuildID, ev.EventType, ev.EventPayload, ev.EventMetadata); err != nil {
		e.logger.Warn("Failed to append build event", logfields.JobID(ev.EventBuildID),
			slog.String("event_type", ev.EventType), logfields.Error(err))
		return err
	}
	if e.projection != nil {
		e.projection.Apply(ev)
	}
	return nil
}

// EmitBuildStarted records a build_started event.
func (e *Emitter) EmitBuildStarted(ctx context.Context, buildID string, meta BuildStartedMeta) error {
	ev, err := NewBuildStarted(buildID, meta)
	return e.emit(ctx, ev, err)
}

// EmitBuildCompleted records a build_completed event.
func (e *Emitter) EmitBuildCompleted(ctx context.Context, buildID, outcome string, duration time.Duration, artifacts map[string]string) error {
	ev, err := NewBuildCompleted(buildID, outcome, duration, artifacts)
	return e.emit(ctx, ev, err)
}

// EmitBuildFailed records a build_failed event.
func (e *Emitter) EmitBuildFailed(ctx context.Context, buildID, stage, errorMsg string) error {
	ev, err := NewBuildFailed(buildID, stage, errorMsg)
	return e.emit(ctx, ev, err)
}

// EmitBuildResult records the full result document.
func (e *Emitter) EmitBuildResult(ctx context.Context, buildID string, result any) error {
	ev, err := NewBuildResult(buildID, result)
	return e.emit(ctx, ev, err)
}
