package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestMarshalEnvelope(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e := ViewerJoined{
		Stream:      "s1",
		UserID:      "u1",
		Username:    "alice",
		ViewerCount: 3,
		At:          at,
	}

	raw, err := Marshal(e)
	if err != nil {
		t.Fatalf("Marshal() unexpected error = %v", err)
	}

	var env struct {
		Type      Kind            `json:"type"`
		StreamID  string          `json:"stream_id"`
		Timestamp time.Time       `json:"timestamp"`
		Payload   json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("Unmarshal() unexpected error = %v", err)
	}
	if env.Type != KindViewerJoined {
		t.Errorf("Type = %s, want %s", env.Type, KindViewerJoined)
	}
	if env.StreamID != "s1" {
		t.Errorf("StreamID = %s, want s1", env.StreamID)
	}
	if !env.Timestamp.Equal(at) {
		t.Errorf("Timestamp = %v, want %v", env.Timestamp, at)
	}

	var payload ViewerJoined
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		t.Fatalf("payload Unmarshal() unexpected error = %v", err)
	}
	if payload.UserID != "u1" || payload.ViewerCount != 3 {
		t.Errorf("payload = %+v, want UserID u1 ViewerCount 3", payload)
	}
}

type stubNotifier struct {
	published []Event
	err       error
}

func (s *stubNotifier) Publish(e Event) error {
	s.published = append(s.published, e)
	return s.err
}

func TestFanoutPublishesToAll(t *testing.T) {
	a := &stubNotifier{}
	b := &stubNotifier{err: errors.New("sink down")}
	c := &stubNotifier{}

	err := Fanout{a, b, c}.Publish(StreamStarted{Stream: "s1"})
	if err == nil {
		t.Fatal("Fanout.Publish() error = nil, want the failing sink's error")
	}
	// A failing sink must not starve the ones after it.
	for i, n := range []*stubNotifier{a, b, c} {
		if len(n.published) != 1 {
			t.Errorf("sink %d received %d events, want 1", i, len(n.published))
		}
	}
}

func TestNoopSwallowsEverything(t *testing.T) {
	if err := (Noop{}).Publish(StreamEnded{Stream: "s1"}); err != nil {
		t.Errorf("Noop.Publish() error = %v, want nil", err)
	}
}
