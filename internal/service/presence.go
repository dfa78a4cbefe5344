package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/livecast/livecast/internal/events"
	"github.com/livecast/livecast/internal/models"
)

// ViewerPresenceTracker tracks who is watching each stream and for how
// long. Presence mutation and the dependent analytics recomputation are
// applied as one step under the session lock, so concurrent joins on the
// same stream can neither under-count viewers nor miss the true peak.
type ViewerPresenceTracker struct {
	store     *Store
	notifier  events.Notifier
	analytics *AnalyticsAggregator
	mirror    Mirror
}

func NewViewerPresenceTracker(store *Store, notifier events.Notifier, analytics *AnalyticsAggregator, mirror Mirror) *ViewerPresenceTracker {
	return &ViewerPresenceTracker{store: store, notifier: notifier, analytics: analytics, mirror: mirror}
}

type JoinRequest struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Country  string `json:"country"`
	Device   string `json:"device"`
}

// Join adds a presence record for a live stream. Joining twice while still
// active is idempotent and returns the existing presence. Rejoining after a
// leave creates a brand-new record: totalViewers counts every join,
// uniqueViewers counts distinct users.
func (t *ViewerPresenceTracker) Join(streamID string, req JoinRequest) (*models.Viewer, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("user id is required: %w", ErrValidation)
	}
	sess, ok := t.store.get(streamID)
	if !ok {
		return nil, fmt.Errorf("stream %s: %w", streamID, ErrNotFound)
	}

	sess.mu.Lock()
	stream := sess.stream
	if stream.Status != models.StreamStatusLive {
		sess.mu.Unlock()
		return nil, fmt.Errorf("stream %s is not live: %w", streamID, ErrInvalidState)
	}
	if !stream.AllowsViewer(req.UserID) {
		sess.mu.Unlock()
		return nil, fmt.Errorf("user %s is not allowed on private stream %s: %w", req.UserID, streamID, ErrForbidden)
	}
	if existing, active := sess.active[req.UserID]; active {
		clone := existing.Clone()
		sess.mu.Unlock()
		return clone, nil
	}

	viewer := &models.Viewer{
		ID:          uuid.New().String(),
		StreamID:    streamID,
		UserID:      req.UserID,
		Username:    req.Username,
		JoinedAt:    t.store.now(),
		IsActive:    true,
		IsModerator: sess.isModerator(req.UserID),
		Country:     req.Country,
		Device:      req.Device,
	}
	sess.presences = append(sess.presences, viewer)
	sess.active[req.UserID] = viewer
	sess.seen[req.UserID] = struct{}{}
	stream.ViewerCount = len(sess.active)
	t.analytics.noteJoin(sess, viewer)

	clone := viewer.Clone()
	count := stream.ViewerCount
	sess.mu.Unlock()

	notify(t.notifier, events.ViewerJoined{
		Stream:      streamID,
		UserID:      clone.UserID,
		Username:    clone.Username,
		ViewerCount: count,
		At:          clone.JoinedAt,
	})
	if t.mirror != nil {
		mirrorAsync("viewer count", streamID, func() error { return t.mirror.SetViewerCount(streamID, count) })
	}
	return clone, nil
}

// Leave closes the viewer's presence record. Leaving while not active is a
// no-op and returns nil — it is the safe cancellation path for a prior Join.
func (t *ViewerPresenceTracker) Leave(streamID, userID string) (*models.Viewer, error) {
	sess, ok := t.store.get(streamID)
	if !ok {
		return nil, fmt.Errorf("stream %s: %w", streamID, ErrNotFound)
	}

	sess.mu.Lock()
	viewer, active := sess.active[userID]
	if !active {
		sess.mu.Unlock()
		return nil, nil
	}
	t.leaveLocked(sess, viewer, t.store.now())
	clone := viewer.Clone()
	count := sess.stream.ViewerCount
	sess.mu.Unlock()

	notify(t.notifier, events.ViewerLeft{
		Stream:           streamID,
		UserID:           clone.UserID,
		Username:         clone.Username,
		ViewerCount:      count,
		WatchTimeSeconds: clone.WatchTimeSeconds,
		At:               *clone.LeftAt,
	})
	if t.mirror != nil {
		mirrorAsync("viewer count", streamID, func() error { return t.mirror.SetViewerCount(streamID, count) })
	}
	return clone, nil
}

// leaveLocked applies the leave mutation and its analytics update under the
// session lock. WatchTimeSeconds is set exactly once, here.
func (t *ViewerPresenceTracker) leaveLocked(sess *session, viewer *models.Viewer, now time.Time) {
	left := now
	viewer.LeftAt = &left
	viewer.IsActive = false
	if secs := int64(now.Sub(viewer.JoinedAt).Seconds()); secs > 0 {
		viewer.WatchTimeSeconds = secs
	}
	delete(sess.active, viewer.UserID)
	sess.stream.ViewerCount = len(sess.active)
	t.analytics.noteLeave(sess, viewer)
}

// leaveAllLocked forces every active viewer out in joinTime order for
// deterministic accounting. Caller holds the session lock; returned clones
// are for post-unlock fan-out.
func (t *ViewerPresenceTracker) leaveAllLocked(sess *session, now time.Time) []*models.Viewer {
	remaining := make([]*models.Viewer, 0, len(sess.active))
	for _, v := range sess.active {
		remaining = append(remaining, v)
	}
	sort.Slice(remaining, func(i, j int) bool {
		if !remaining[i].JoinedAt.Equal(remaining[j].JoinedAt) {
			return remaining[i].JoinedAt.Before(remaining[j].JoinedAt)
		}
		return remaining[i].ID < remaining[j].ID
	})

	out := make([]*models.Viewer, 0, len(remaining))
	for _, v := range remaining {
		t.leaveLocked(sess, v, now)
		out = append(out, v.Clone())
	}
	return out
}

// LeaveAll force-leaves every active viewer. The registry invokes the
// locked variant directly during EndStream; this entry point exists for
// callers that need the cascade without ending the stream.
func (t *ViewerPresenceTracker) LeaveAll(streamID string) ([]*models.Viewer, error) {
	sess, ok := t.store.get(streamID)
	if !ok {
		return nil, fmt.Errorf("stream %s: %w", streamID, ErrNotFound)
	}

	sess.mu.Lock()
	now := t.store.now()
	left := t.leaveAllLocked(sess, now)
	sess.mu.Unlock()

	for i, v := range left {
		notify(t.notifier, events.ViewerLeft{
			Stream:           streamID,
			UserID:           v.UserID,
			Username:         v.Username,
			ViewerCount:      len(left) - i - 1,
			WatchTimeSeconds: v.WatchTimeSeconds,
			At:               now,
		})
	}
	if t.mirror != nil && len(left) > 0 {
		mirrorAsync("viewer count", streamID, func() error { return t.mirror.SetViewerCount(streamID, 0) })
	}
	return left, nil
}

// ListActive returns a snapshot of currently active viewers in join order.
func (t *ViewerPresenceTracker) ListActive(streamID string) ([]*models.Viewer, error) {
	sess, ok := t.store.get(streamID)
	if !ok {
		return nil, fmt.Errorf("stream %s: %w", streamID, ErrNotFound)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	out := make([]*models.Viewer, 0, len(sess.active))
	for _, v := range sess.active {
		out = append(out, v.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// SetModerator grants or revokes moderator rights. Owner-only. The flag
// sticks across rejoins for the rest of the stream's lifetime.
func (t *ViewerPresenceTracker) SetModerator(streamID, callerID, userID string, isModerator bool) error {
	sess, ok := t.store.get(streamID)
	if !ok {
		return fmt.Errorf("stream %s: %w", streamID, ErrNotFound)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if callerID != sess.stream.OwnerID {
		return fmt.Errorf("only the owner may manage moderators on stream %s: %w", streamID, ErrUnauthorized)
	}
	if isModerator {
		sess.moderators[userID] = struct{}{}
	} else {
		delete(sess.moderators, userID)
	}
	if v, active := sess.active[userID]; active {
		v.IsModerator = isModerator
	}
	return nil
}
