package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/livecast/livecast/internal/events"
	"github.com/livecast/livecast/internal/models"
)

const (
	// DefaultRetention is how long an ended stream stays retrievable for
	// analytics before the cleanup loop purges it.
	DefaultRetention = time.Hour

	// DefaultCleanupInterval is how often the cleanup loop runs.
	DefaultCleanupInterval = 5 * time.Minute
)

// StreamRegistry owns the canonical stream records and their lifecycle:
// draft/scheduled -> live -> ended, with ended terminal.
type StreamRegistry struct {
	store     *Store
	notifier  events.Notifier
	presence  *ViewerPresenceTracker
	analytics *AnalyticsAggregator
	mirror    Mirror

	retention       time.Duration
	cleanupInterval time.Duration
}

func NewStreamRegistry(
	store *Store,
	notifier events.Notifier,
	presence *ViewerPresenceTracker,
	analytics *AnalyticsAggregator,
	mirror Mirror,
	retention time.Duration,
	cleanupInterval time.Duration,
) *StreamRegistry {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	return &StreamRegistry{
		store:           store,
		notifier:        notifier,
		presence:        presence,
		analytics:       analytics,
		mirror:          mirror,
		retention:       retention,
		cleanupInterval: cleanupInterval,
	}
}

type CreateStreamRequest struct {
	Title               string                  `json:"title"`
	Description         string                  `json:"description"`
	Category            string                  `json:"category"`
	Tags                []string                `json:"tags"`
	Visibility          models.StreamVisibility `json:"visibility"`
	AllowedViewers      []string                `json:"allowed_viewers"`
	ChatEnabled         bool                    `json:"chat_enabled"`
	MonetizationEnabled bool                    `json:"monetization_enabled"`
	Scheduled           bool                    `json:"scheduled"`
}

type UpdateStreamRequest struct {
	Title          *string                  `json:"title"`
	Description    *string                  `json:"description"`
	Category       *string                  `json:"category"`
	Tags           *[]string                `json:"tags"`
	Visibility     *models.StreamVisibility `json:"visibility"`
	AllowedViewers *[]string                `json:"allowed_viewers"`
	ChatEnabled    *bool                    `json:"chat_enabled"`
	Monetization   *bool                    `json:"monetization_enabled"`
}

// CreateStream registers a new stream in draft (or scheduled) state with a
// freshly generated stream key.
func (r *StreamRegistry) CreateStream(ownerID string, req CreateStreamRequest) (*models.Stream, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("owner id is required: %w", ErrValidation)
	}
	if req.Title == "" {
		return nil, fmt.Errorf("title is required: %w", ErrValidation)
	}
	if req.Category == "" {
		return nil, fmt.Errorf("category is required: %w", ErrValidation)
	}
	visibility := req.Visibility
	if visibility == "" {
		visibility = models.VisibilityPublic
	}
	if visibility != models.VisibilityPublic && visibility != models.VisibilityPrivate {
		return nil, fmt.Errorf("unknown visibility %q: %w", visibility, ErrValidation)
	}

	status := models.StreamStatusDraft
	if req.Scheduled {
		status = models.StreamStatusScheduled
	}

	now := r.store.now()
	stream := &models.Stream{
		ID:                  uuid.New().String(),
		OwnerID:             ownerID,
		StreamKey:           generateStreamKey(),
		Title:               req.Title,
		Description:         req.Description,
		Category:            req.Category,
		Tags:                append([]string(nil), req.Tags...),
		Status:              status,
		Visibility:          visibility,
		AllowedViewers:      append([]string(nil), req.AllowedViewers...),
		ChatEnabled:         req.ChatEnabled,
		MonetizationEnabled: req.MonetizationEnabled,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	r.store.add(stream)

	if r.mirror != nil {
		clone := stream.Clone()
		mirrorAsync("stream", stream.ID, func() error { return r.mirror.MirrorStream(clone) })
	}
	return stream.Clone(), nil
}

// StartStream transitions draft/scheduled -> live and emits the started
// lifecycle event. Owner-only.
func (r *StreamRegistry) StartStream(streamID, callerID string) (*models.Stream, error) {
	sess, ok := r.store.get(streamID)
	if !ok {
		return nil, fmt.Errorf("stream %s: %w", streamID, ErrNotFound)
	}

	sess.mu.Lock()
	stream := sess.stream
	if callerID != stream.OwnerID {
		sess.mu.Unlock()
		return nil, fmt.Errorf("only the owner may start stream %s: %w", streamID, ErrUnauthorized)
	}
	switch stream.Status {
	case models.StreamStatusDraft, models.StreamStatusScheduled:
	case models.StreamStatusLive:
		sess.mu.Unlock()
		return nil, fmt.Errorf("stream %s is already live: %w", streamID, ErrInvalidState)
	default:
		sess.mu.Unlock()
		return nil, fmt.Errorf("stream %s has ended: %w", streamID, ErrInvalidState)
	}

	now := r.store.now()
	stream.Status = models.StreamStatusLive
	stream.StartedAt = &now
	stream.UpdatedAt = now
	clone := stream.Clone()
	sess.mu.Unlock()

	notify(r.notifier, events.StreamStarted{
		Stream:  clone.ID,
		OwnerID: clone.OwnerID,
		Title:   clone.Title,
		At:      now,
	})
	if r.mirror != nil {
		mirrorAsync("stream", clone.ID, func() error { return r.mirror.MirrorStream(clone) })
	}
	log.Info().Str("module", "service").Str("stream_id", clone.ID).Msg("stream started")
	return clone, nil
}

// EndStream transitions live -> ended, forces every active viewer out in
// joinTime order, and finalizes the analytics snapshot — all within the
// stream's consistency domain. Leave and ended events fan out afterwards.
func (r *StreamRegistry) EndStream(streamID, callerID string) (*models.Stream, error) {
	sess, ok := r.store.get(streamID)
	if !ok {
		return nil, fmt.Errorf("stream %s: %w", streamID, ErrNotFound)
	}

	sess.mu.Lock()
	stream := sess.stream
	if callerID != stream.OwnerID {
		sess.mu.Unlock()
		return nil, fmt.Errorf("only the owner may end stream %s: %w", streamID, ErrUnauthorized)
	}
	if stream.Status != models.StreamStatusLive {
		sess.mu.Unlock()
		return nil, fmt.Errorf("stream %s is not live: %w", streamID, ErrInvalidState)
	}

	now := r.store.now()
	stream.Status = models.StreamStatusEnded
	stream.EndedAt = &now
	stream.UpdatedAt = now

	left := r.presence.leaveAllLocked(sess, now)
	r.analytics.finalizeLocked(sess, now)

	duration := int64(now.Sub(*stream.StartedAt).Seconds())
	clone := stream.Clone()
	sess.mu.Unlock()

	for i, v := range left {
		notify(r.notifier, events.ViewerLeft{
			Stream:           clone.ID,
			UserID:           v.UserID,
			Username:         v.Username,
			ViewerCount:      len(left) - i - 1,
			WatchTimeSeconds: v.WatchTimeSeconds,
			At:               now,
		})
	}
	notify(r.notifier, events.StreamEnded{
		Stream:          clone.ID,
		OwnerID:         clone.OwnerID,
		DurationSeconds: duration,
		At:              now,
	})
	if r.mirror != nil {
		mirrorAsync("stream", clone.ID, func() error { return r.mirror.MirrorStream(clone) })
		mirrorAsync("viewer count", clone.ID, func() error { return r.mirror.SetViewerCount(clone.ID, 0) })
	}
	log.Info().Str("module", "service").Str("stream_id", clone.ID).
		Int("viewers_closed", len(left)).Int64("duration_seconds", duration).Msg("stream ended")
	return clone, nil
}

// UpdateStream patches mutable metadata on any non-ended stream.
func (r *StreamRegistry) UpdateStream(streamID, callerID string, req UpdateStreamRequest) (*models.Stream, error) {
	sess, ok := r.store.get(streamID)
	if !ok {
		return nil, fmt.Errorf("stream %s: %w", streamID, ErrNotFound)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	stream := sess.stream
	if callerID != stream.OwnerID {
		return nil, fmt.Errorf("only the owner may update stream %s: %w", streamID, ErrUnauthorized)
	}
	if stream.Status == models.StreamStatusEnded {
		return nil, fmt.Errorf("stream %s has ended and is immutable: %w", streamID, ErrInvalidState)
	}

	if req.Title != nil {
		if *req.Title == "" {
			return nil, fmt.Errorf("title cannot be blank: %w", ErrValidation)
		}
		stream.Title = *req.Title
	}
	if req.Category != nil {
		if *req.Category == "" {
			return nil, fmt.Errorf("category cannot be blank: %w", ErrValidation)
		}
		stream.Category = *req.Category
	}
	if req.Description != nil {
		stream.Description = *req.Description
	}
	if req.Tags != nil {
		stream.Tags = append([]string(nil), (*req.Tags)...)
	}
	if req.Visibility != nil {
		v := *req.Visibility
		if v != models.VisibilityPublic && v != models.VisibilityPrivate {
			return nil, fmt.Errorf("unknown visibility %q: %w", v, ErrValidation)
		}
		stream.Visibility = v
	}
	if req.AllowedViewers != nil {
		stream.AllowedViewers = append([]string(nil), (*req.AllowedViewers)...)
	}
	if req.ChatEnabled != nil {
		stream.ChatEnabled = *req.ChatEnabled
	}
	if req.Monetization != nil {
		stream.MonetizationEnabled = *req.Monetization
	}
	stream.UpdatedAt = r.store.now()

	clone := stream.Clone()
	if r.mirror != nil {
		mirrorAsync("stream", clone.ID, func() error { return r.mirror.MirrorStream(clone) })
	}
	return clone, nil
}

func (r *StreamRegistry) GetStream(streamID string) (*models.Stream, error) {
	sess, ok := r.store.get(streamID)
	if !ok {
		return nil, fmt.Errorf("stream %s: %w", streamID, ErrNotFound)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.stream.Clone(), nil
}

// ListLive returns currently live streams, optionally filtered by category,
// ordered by viewer count descending with start time ascending as the tie
// break so the ordering is deterministic.
func (r *StreamRegistry) ListLive(category string, limit int) []*models.Stream {
	var out []*models.Stream
	for _, sess := range r.store.all() {
		sess.mu.Lock()
		if sess.stream.Status == models.StreamStatusLive &&
			(category == "" || sess.stream.Category == category) {
			out = append(out, sess.stream.Clone())
		}
		sess.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ViewerCount != out[j].ViewerCount {
			return out[i].ViewerCount > out[j].ViewerCount
		}
		if !out[i].StartedAt.Equal(*out[j].StartedAt) {
			return out[i].StartedAt.Before(*out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Start runs the periodic cleanup loop until ctx is cancelled. Ended
// streams past the retention window are purged together with their
// presence, message, and analytics state.
func (r *StreamRegistry) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.purgeExpired()
			}
		}
	}()
}

func (r *StreamRegistry) purgeExpired() {
	now := r.store.now()
	var expired []string
	for _, sess := range r.store.all() {
		sess.mu.Lock()
		if sess.stream.Status == models.StreamStatusEnded &&
			sess.stream.EndedAt != nil &&
			now.Sub(*sess.stream.EndedAt) >= r.retention {
			expired = append(expired, sess.stream.ID)
		}
		sess.mu.Unlock()
	}
	for _, id := range expired {
		r.store.remove(id)
		if r.mirror != nil {
			streamID := id
			mirrorAsync("delete", streamID, func() error { return r.mirror.DeleteStream(streamID) })
		}
	}
	if len(expired) > 0 {
		log.Info().Str("module", "service").Int("purged", len(expired)).Msg("purged ended streams past retention")
	}
}

func generateStreamKey() string {
	bytes := make([]byte, 16)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
