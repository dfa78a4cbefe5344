package service

import (
	"errors"
	"testing"
	"time"

	"github.com/livecast/livecast/internal/models"
)

func TestGetAnalyticsOwnerOnly(t *testing.T) {
	e := newTestEngine()
	stream := e.liveStream(t, "owner-1", CreateStreamRequest{})

	if _, err := e.analytics.GetAnalytics(stream.ID, "viewer"); !errors.Is(err, ErrForbidden) {
		t.Errorf("GetAnalytics() by non-owner error = %v, want ErrForbidden", err)
	}
	if _, err := e.analytics.GetAnalytics("missing", "owner-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetAnalytics() on missing stream error = %v, want ErrNotFound", err)
	}
	if _, err := e.analytics.GetAnalytics(stream.ID, "owner-1"); err != nil {
		t.Errorf("GetAnalytics() by owner error = %v", err)
	}
}

func TestFinalizeRequiresEndedStream(t *testing.T) {
	e := newTestEngine()
	stream := e.liveStream(t, "owner-1", CreateStreamRequest{})

	if err := e.analytics.Finalize(stream.ID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Finalize() on live stream error = %v, want ErrInvalidState", err)
	}
}

func TestFinalizeIdempotent(t *testing.T) {
	e := newTestEngine()
	stream := e.liveStream(t, "owner-1", CreateStreamRequest{})
	e.join(t, stream.ID, "u1")
	e.clock.Advance(time.Minute)

	if _, err := e.registry.EndStream(stream.ID, "owner-1"); err != nil {
		t.Fatalf("EndStream() unexpected error = %v", err)
	}
	first, _ := e.analytics.GetAnalytics(stream.ID, "owner-1")
	if first.FinalizedAt == nil {
		t.Fatal("FinalizedAt not set after EndStream")
	}

	e.clock.Advance(time.Hour)
	if err := e.analytics.Finalize(stream.ID); err != nil {
		t.Fatalf("second Finalize() unexpected error = %v", err)
	}
	second, _ := e.analytics.GetAnalytics(stream.ID, "owner-1")
	if !second.FinalizedAt.Equal(*first.FinalizedAt) {
		t.Error("second Finalize() moved FinalizedAt, finalize must be idempotent")
	}
	if second.TotalWatchTimeSeconds != first.TotalWatchTimeSeconds {
		t.Errorf("TotalWatchTimeSeconds changed from %d to %d on re-finalize",
			first.TotalWatchTimeSeconds, second.TotalWatchTimeSeconds)
	}
}

func TestFinalizeRecomputesFromPresences(t *testing.T) {
	e := newTestEngine()
	stream := e.liveStream(t, "owner-1", CreateStreamRequest{})
	e.join(t, stream.ID, "u1")
	e.clock.Advance(2 * time.Minute)

	// Skew the incremental counter; the recompute must win.
	sess, ok := e.store.get(stream.ID)
	if !ok {
		t.Fatal("session missing")
	}
	sess.mu.Lock()
	sess.snapshot.TotalWatchTimeSeconds += 999
	sess.mu.Unlock()

	if _, err := e.registry.EndStream(stream.ID, "owner-1"); err != nil {
		t.Fatalf("EndStream() unexpected error = %v", err)
	}
	snap, _ := e.analytics.GetAnalytics(stream.ID, "owner-1")
	if snap.TotalWatchTimeSeconds != 120 {
		t.Errorf("TotalWatchTimeSeconds = %d, want recomputed 120", snap.TotalWatchTimeSeconds)
	}
	if snap.AverageWatchTimeSeconds != 120 {
		t.Errorf("AverageWatchTimeSeconds = %v, want 120", snap.AverageWatchTimeSeconds)
	}
}

func TestAnalyticsSnapshotIsACopy(t *testing.T) {
	e := newTestEngine()
	stream := e.liveStream(t, "owner-1", CreateStreamRequest{})
	e.presence.Join(stream.ID, JoinRequest{UserID: "u1", Country: "DE", Device: "mobile"})

	snap, err := e.analytics.GetAnalytics(stream.ID, "owner-1")
	if err != nil {
		t.Fatalf("GetAnalytics() unexpected error = %v", err)
	}
	snap.TotalViewers = 999
	snap.ViewersByCountry["DE"] = 999

	fresh, _ := e.analytics.GetAnalytics(stream.ID, "owner-1")
	if fresh.TotalViewers != 1 || fresh.ViewersByCountry["DE"] != 1 {
		t.Error("mutating a returned snapshot leaked into the aggregator")
	}
}

func TestViewerSegmentation(t *testing.T) {
	e := newTestEngine()
	stream := e.liveStream(t, "owner-1", CreateStreamRequest{})

	joins := []JoinRequest{
		{UserID: "u1", Country: "DE", Device: "mobile"},
		{UserID: "u2", Country: "DE", Device: "desktop"},
		{UserID: "u3", Country: "FR", Device: "mobile"},
		{UserID: "u4"}, // unknown origin is simply not counted
	}
	for _, req := range joins {
		if _, err := e.presence.Join(stream.ID, req); err != nil {
			t.Fatalf("Join(%s) unexpected error = %v", req.UserID, err)
		}
	}

	snap, _ := e.analytics.GetAnalytics(stream.ID, "owner-1")
	if snap.ViewersByCountry["DE"] != 2 || snap.ViewersByCountry["FR"] != 1 {
		t.Errorf("ViewersByCountry = %v, want DE:2 FR:1", snap.ViewersByCountry)
	}
	if snap.ViewersByDevice["mobile"] != 2 || snap.ViewersByDevice["desktop"] != 1 {
		t.Errorf("ViewersByDevice = %v, want mobile:2 desktop:1", snap.ViewersByDevice)
	}
}

// Full session walkthrough: joins, a leave, a rejoin, then end-of-stream
// finalization, checking the counters at every step.
func TestSessionLifecycleAccounting(t *testing.T) {
	e := newTestEngine()
	stream := e.liveStream(t, "owner-1", CreateStreamRequest{ChatEnabled: true, MonetizationEnabled: true})

	e.join(t, stream.ID, "u1")
	e.join(t, stream.ID, "u2")

	snap, _ := e.analytics.GetAnalytics(stream.ID, "owner-1")
	if snap.TotalViewers != 2 || snap.UniqueViewers != 2 || snap.PeakViewers != 2 {
		t.Errorf("after joins: Total = %d, Unique = %d, Peak = %d, want 2/2/2",
			snap.TotalViewers, snap.UniqueViewers, snap.PeakViewers)
	}

	e.clock.Advance(time.Minute)
	if _, err := e.presence.Leave(stream.ID, "u1"); err != nil {
		t.Fatalf("Leave() unexpected error = %v", err)
	}
	if n := e.activeCount(t, stream.ID); n != 1 {
		t.Errorf("active after leave = %d, want 1", n)
	}

	e.clock.Advance(30 * time.Second)
	e.join(t, stream.ID, "u1")

	snap, _ = e.analytics.GetAnalytics(stream.ID, "owner-1")
	if snap.TotalViewers != 3 || snap.UniqueViewers != 2 || snap.PeakViewers != 2 {
		t.Errorf("after rejoin: Total = %d, Unique = %d, Peak = %d, want 3/2/2",
			snap.TotalViewers, snap.UniqueViewers, snap.PeakViewers)
	}

	e.chat.PostMessage(stream.ID, PostMessageRequest{UserID: "u2", Content: "hello"})
	e.gifts.SendGift(stream.ID, SendGiftRequest{FromUserID: "u2", GiftType: models.GiftTypeStar, Quantity: 3})

	e.clock.Advance(time.Minute)
	if _, err := e.registry.EndStream(stream.ID, "owner-1"); err != nil {
		t.Fatalf("EndStream() unexpected error = %v", err)
	}

	// u1 first interval 60s, u2 full 150s, u1 second interval 60s.
	snap, _ = e.analytics.GetAnalytics(stream.ID, "owner-1")
	if snap.TotalWatchTimeSeconds != 270 {
		t.Errorf("TotalWatchTimeSeconds = %d, want 270", snap.TotalWatchTimeSeconds)
	}
	if snap.AverageWatchTimeSeconds != 90 {
		t.Errorf("AverageWatchTimeSeconds = %v, want 90", snap.AverageWatchTimeSeconds)
	}
	if snap.TotalViewers != 3 || snap.UniqueViewers != 2 || snap.PeakViewers != 2 {
		t.Errorf("final: Total = %d, Unique = %d, Peak = %d, want 3/2/2",
			snap.TotalViewers, snap.UniqueViewers, snap.PeakViewers)
	}
	// One chat message plus the gift announcement.
	if snap.ChatMessageCount != 2 {
		t.Errorf("ChatMessageCount = %d, want 2", snap.ChatMessageCount)
	}
	if snap.RevenueGenerated != 30 {
		t.Errorf("RevenueGenerated = %d, want 30", snap.RevenueGenerated)
	}
	if snap.FinalizedAt == nil {
		t.Error("FinalizedAt not set")
	}
}
