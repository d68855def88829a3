package eventstore

import (
	"encoding/json"
	"time"
)

// Event is one immutable build lifecycle record.
type Event interface {
	ID() int64
	BuildID() string
	Type() string
	Timestamp() time.Time
	Payload() []byte
	Metadata() map[string]string
}

// BaseEvent provides a default implementation of Event.
type BaseEvent struct {
	EventID        int64
	EventBuildID   string
	EventType      string
	EventTimestamp time.Time
	EventPayload   []byte
	EventMetadata  map[string]string
}

func (e *BaseEvent) ID() int64                   { return e.EventID }
func (e *BaseEvent) BuildID() string             { return e.EventBuildID }
func (e *BaseEvent) Type() string                { return e.EventType }
func (e *BaseEvent) Timestamp() time.Time        { return e.EventTimestamp }
func (e *BaseEvent) Payload() []byte             { return e.EventPayload }
func (e *BaseEvent) Metadata() map[string]string { return e.EventMetadata }

// EventView is the JSON shape of an event as served over HTTP.
type EventView struct {
	ID        int64             `json:"id"`
	BuildID   string            `json:"buildId"`
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   json.RawMessage   `json:"payload,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// View converts an event for serialization. Non-JSON payloads are dropped.
func View(e Event) EventView {
	v := EventView{
		ID:        e.ID(),
		BuildID:   e.BuildID(),
		Type:      e.Type(),
		Timestamp: e.Timestamp(),
		Metadata:  e.Metadata(),
	}
	if p := e.Payload(); len(p) > 0 && json.Valid(p) {
		v.Payload = json.RawMessage(p)
	}
	return v
}
