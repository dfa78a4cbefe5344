package models

import "time"

// Viewer is one user's continuous viewing interval within a stream. A user
// who leaves and rejoins gets a brand-new record; the old one is kept for
// analytics until the parent stream is purged.
type Viewer struct {
	ID               string     `json:"id"`
	StreamID         string     `json:"stream_id"`
	UserID           string     `json:"user_id"`
	Username         string     `json:"username"`
	JoinedAt         time.Time  `json:"joined_at"`
	LeftAt           *time.Time `json:"left_at,omitempty"`
	IsActive         bool       `json:"is_active"`
	WatchTimeSeconds int64      `json:"watch_time_seconds"`
	IsModerator      bool       `json:"is_moderator"`
	Country          string     `json:"country,omitempty"`
	Device           string     `json:"device,omitempty"`
}

func (v *Viewer) Clone() *Viewer {
	c := *v
	if v.LeftAt != nil {
		t := *v.LeftAt
		c.LeftAt = &t
	}
	return &c
}
