package service

import (
	"sync"
	"testing"
	"time"

	"github.com/livecast/livecast/internal/events"
	"github.com/livecast/livecast/internal/models"
)

// captureNotifier records every published event for assertions.
type captureNotifier struct {
	mu     sync.Mutex
	events []events.Event
}

func (n *captureNotifier) Publish(e events.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return nil
}

func (n *captureNotifier) byKind(kind events.Kind) []events.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []events.Event
	for _, e := range n.events {
		if e.Kind() == kind {
			out = append(out, e)
		}
	}
	return out
}

// testClock makes watch-time arithmetic deterministic.
type testClock struct {
	mu      sync.Mutex
	current time.Time
}

func newTestClock() *testClock {
	return &testClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	c.mu.Unlock()
}

type engine struct {
	store     *Store
	clock     *testClock
	notifier  *captureNotifier
	registry  *StreamRegistry
	presence  *ViewerPresenceTracker
	chat      *ChatFanoutService
	gifts     *GiftLedger
	analytics *AnalyticsAggregator
}

func newTestEngine() *engine {
	clock := newTestClock()
	store := NewStore()
	store.now = clock.Now
	notifier := &captureNotifier{}

	analytics := NewAnalyticsAggregator(store)
	presence := NewViewerPresenceTracker(store, notifier, analytics, nil)
	chat := NewChatFanoutService(store, notifier, analytics, nil)
	gifts := NewGiftLedger(store, chat, analytics, notifier)
	registry := NewStreamRegistry(store, notifier, presence, analytics, nil, 0, 0)

	return &engine{
		store:     store,
		clock:     clock,
		notifier:  notifier,
		registry:  registry,
		presence:  presence,
		chat:      chat,
		gifts:     gifts,
		analytics: analytics,
	}
}

// createStream registers a draft stream with sane defaults applied.
func (e *engine) createStream(t *testing.T, ownerID string, req CreateStreamRequest) *models.Stream {
	t.Helper()
	if req.Title == "" {
		req.Title = "Test Stream"
	}
	if req.Category == "" {
		req.Category = "gaming"
	}
	stream, err := e.registry.CreateStream(ownerID, req)
	if err != nil {
		t.Fatalf("CreateStream() unexpected error = %v", err)
	}
	return stream
}

// liveStream creates and starts a stream owned by ownerID.
func (e *engine) liveStream(t *testing.T, ownerID string, req CreateStreamRequest) *models.Stream {
	t.Helper()
	stream := e.createStream(t, ownerID, req)
	started, err := e.registry.StartStream(stream.ID, ownerID)
	if err != nil {
		t.Fatalf("StartStream() unexpected error = %v", err)
	}
	return started
}

func (e *engine) join(t *testing.T, streamID, userID string) *models.Viewer {
	t.Helper()
	viewer, err := e.presence.Join(streamID, JoinRequest{UserID: userID, Username: "user-" + userID})
	if err != nil {
		t.Fatalf("Join(%s, %s) unexpected error = %v", streamID, userID, err)
	}
	return viewer
}

func (e *engine) activeCount(t *testing.T, streamID string) int {
	t.Helper()
	viewers, err := e.presence.ListActive(streamID)
	if err != nil {
		t.Fatalf("ListActive() unexpected error = %v", err)
	}
	return len(viewers)
}
