package models

import "time"

// AnalyticsSnapshot carries the per-stream counters. During a live session
// the fields are the eager incremental approximation; after Finalize they
// are recomputed from the presence records and the snapshot is immutable.
type AnalyticsSnapshot struct {
	StreamID                string         `json:"stream_id"`
	TotalViewers            int            `json:"total_viewers"`
	UniqueViewers           int            `json:"unique_viewers"`
	PeakViewers             int            `json:"peak_viewers"`
	TotalWatchTimeSeconds   int64          `json:"total_watch_time_seconds"`
	AverageWatchTimeSeconds float64        `json:"average_watch_time_seconds"`
	ChatMessageCount        int64          `json:"chat_message_count"`
	Gifts                   []*Gift        `json:"gifts,omitempty"`
	RevenueGenerated        int64          `json:"revenue_generated"`
	ViewersByCountry        map[string]int `json:"viewers_by_country,omitempty"`
	ViewersByDevice         map[string]int `json:"viewers_by_device,omitempty"`
	FinalizedAt             *time.Time     `json:"finalized_at,omitempty"`
}

func (a *AnalyticsSnapshot) Clone() *AnalyticsSnapshot {
	c := *a
	if a.Gifts != nil {
		c.Gifts = make([]*Gift, len(a.Gifts))
		for i, g := range a.Gifts {
			c.Gifts[i] = g.Clone()
		}
	}
	c.ViewersByCountry = cloneCountMap(a.ViewersByCountry)
	c.ViewersByDevice = cloneCountMap(a.ViewersByDevice)
	if a.FinalizedAt != nil {
		t := *a.FinalizedAt
		c.FinalizedAt = &t
	}
	return &c
}

func cloneCountMap(m map[string]int) map[string]int {
	if m == nil {
		return nil
	}
	c := make(map[string]int, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
