package eventstore

import (
	"bytes"
	"testing"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

const testBuildID = "build-1"

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestEventStoreAppendAndRetrieve(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()
	payload := []byte(`{"test":"data"}`)

	if err := store.Append(ctx, testBuildID, "test_event", payload, map[string]string{"key": "value"}); err != nil {
		t.Fatalf("failed to append event: %v", err)
	}
	if err := store.Append(ctx, "other", "test_event", nil, nil); err != nil {
		t.Fatalf("failed to append event: %v", err)
	}

	events, err := store.GetByBuildID(ctx, testBuildID)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.BuildID() != testBuildID || ev.Type() != "test_event" {
		t.Errorf("unexpected event %s/%s", ev.BuildID(), ev.Type())
	}
	if !bytes.Equal(ev.Payload(), payload) {
		t.Errorf("expected payload %s, got %s", payload, ev.Payload())
	}
	if ev.Metadata()["key"] != "value" {
		t.Errorf("expected metadata key=value, got %v", ev.Metadata())
	}
}

func TestEventStoreGetRange(t *testing.T) {
	store := newStore(t)
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	store.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		clock = base.Add(time.Duration(i) * time.Hour)
		if err := store.Append(t.Context(), testBuildID, "tick", []byte(`{}`), nil); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	events, err := store.GetRange(t.Context(), base.Add(30*time.Minute), base.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events in range, got %d", len(events))
	}
	if !events[0].Timestamp().Equal(base.Add(time.Hour)) {
		t.Errorf("unexpected timestamp %v", events[0].Timestamp())
	}
}

func TestEventStoreClosedReturnsClassifiedError(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	err = store.Append(t.Context(), testBuildID, "x", nil, nil)
	if !errors.HasCategory(err, errors.CategoryEventStore) {
		t.Fatalf("expected eventstore category, got %v", err)
	}
}

func TestView(t *testing.T) {
	ev := &BaseEvent{EventID: 3, EventBuildID: "b", EventType: TypeBuildFailed, EventPayload: []byte(`{"stage":"building"}`)}
	v := View(ev)
	if string(v.Payload) != `{"stage":"building"}` {
		t.Errorf("unexpected payload %s", v.Payload)
	}
	ev.EventPayload = []byte("not json")
	if View(ev).Payload != nil {
		t.Error("non-JSON payload should be dropped")
	}
}
