package models

import (
	"time"
)

type StreamStatus string

const (
	StreamStatusDraft     StreamStatus = "draft"
	StreamStatusScheduled StreamStatus = "scheduled"
	StreamStatusLive      StreamStatus = "live"
	StreamStatusEnded     StreamStatus = "ended"
)

type StreamVisibility string

const (
	VisibilityPublic  StreamVisibility = "public"
	VisibilityPrivate StreamVisibility = "private"
)

type Stream struct {
	ID                  string           `json:"id"`
	OwnerID             string           `json:"owner_id"`
	StreamKey           string           `json:"stream_key"`
	Title               string           `json:"title"`
	Description         string           `json:"description"`
	Category            string           `json:"category"`
	Tags                []string         `json:"tags,omitempty"`
	Status              StreamStatus     `json:"status"`
	Visibility          StreamVisibility `json:"visibility"`
	AllowedViewers      []string         `json:"allowed_viewers,omitempty"`
	ChatEnabled         bool             `json:"chat_enabled"`
	MonetizationEnabled bool             `json:"monetization_enabled"`
	StartedAt           *time.Time       `json:"started_at,omitempty"`
	EndedAt             *time.Time       `json:"ended_at,omitempty"`
	ViewerCount         int              `json:"viewer_count"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// AllowsViewer reports whether userID may watch this stream. The owner is
// always allowed; public streams allow everyone.
func (s *Stream) AllowsViewer(userID string) bool {
	if s.Visibility != VisibilityPrivate || userID == s.OwnerID {
		return true
	}
	for _, id := range s.AllowedViewers {
		if id == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand to callers outside the session lock.
func (s *Stream) Clone() *Stream {
	c := *s
	if s.Tags != nil {
		c.Tags = append([]string(nil), s.Tags...)
	}
	if s.AllowedViewers != nil {
		c.AllowedViewers = append([]string(nil), s.AllowedViewers...)
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		c.StartedAt = &t
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	return &c
}
