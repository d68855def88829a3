package eventstore

import (
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// Event type names.
const (
	TypeBuildStarted   = "build_started"
	TypeBuildCompleted = "build_completed"
	TypeBuildFailed    = "build_failed"
	TypeBuildResult    = "build_result"
)

// BuildStartedMeta describes the job a build belongs to.
type BuildStartedMeta struct {
	Site     string `json:"site"`
	Template string `json:"template"`
	Trigger  string `json:"trigger"`
	WorkerID string `json:"worker_id,omitempty"`
}

// BuildCompletedData is the payload of a build_completed event.
type BuildCompletedData struct {
	Outcome    string            `json:"outcome"`
	DurationMS int64             `json:"duration_ms"`
	Artifacts  map[string]string `json:"artifacts,omitempty"`
}

// BuildFailedData is the payload of a build_failed event.
type BuildFailedData struct {
	Stage string `json:"stage"`
	Error string `json:"error"`
}

func newEvent(buildID, eventType string, payload any) (*BaseEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryEventStore, "marshal event payload").
			WithContext("build_id", buildID).
			WithContext("event_type", eventType).
			Build()
	}
	return &BaseEvent{
		EventBuildID:   buildID,
		EventType:      eventType,
		EventTimestamp: time.Now(),
		EventPayload:   data,
	}, nil
}

// NewBuildStarted creates a build_started event.
func NewBuildStarted(buildID string, meta BuildStartedMeta) (*BaseEvent, error) {
	return newEvent(buildID, TypeBuildStarted, meta)
}

// NewBuildCompleted creates a build_completed event.
func NewBuildCompleted(buildID, outcome string, duration time.Duration, artifacts map[string]string) (*BaseEvent, error) {
	return newEvent(buildID, TypeBuildCompleted, BuildCompletedData{
		Outcome:    outcome,
		DurationMS: duration.Milliseconds(),
		Artifacts:  artifacts,
	})
}

// NewBuildFailed creates a build_failed event.
func NewBuildFailed(buildID, stage, errorMsg string) (*BaseEvent, error) {
	return newEvent(buildID, TypeBuildFailed, BuildFailedData{Stage: stage, Error: errorMsg})
}

// NewBuildResult creates a build_result event carrying the full result document.
func NewBuildResult(buildID string, result any) (*BaseEvent, error) {
	return newEvent(buildID, TypeBuildResult, result)
}
