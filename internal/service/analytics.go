package service

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/livecast/livecast/internal/models"
)

// AnalyticsAggregator maintains the per-stream counters two ways: eager
// incremental updates applied inline with every presence/chat/gift mutation,
// and an authoritative recompute from the presence records at stream end.
// Both paths are kept; Finalize's numbers win in the stored snapshot.
type AnalyticsAggregator struct {
	store *Store
}

func NewAnalyticsAggregator(store *Store) *AnalyticsAggregator {
	return &AnalyticsAggregator{store: store}
}

// The note* helpers run under the owning session's lock, as part of the
// mutation they account for.

func (a *AnalyticsAggregator) noteJoin(sess *session, v *models.Viewer) {
	snap := sess.snapshot
	snap.TotalViewers = len(sess.presences)
	snap.UniqueViewers = len(sess.seen)
	if n := len(sess.active); n > snap.PeakViewers {
		snap.PeakViewers = n
	}
	if v.Country != "" {
		snap.ViewersByCountry[v.Country]++
	}
	if v.Device != "" {
		snap.ViewersByDevice[v.Device]++
	}
}

func (a *AnalyticsAggregator) noteLeave(sess *session, v *models.Viewer) {
	snap := sess.snapshot
	snap.TotalWatchTimeSeconds += v.WatchTimeSeconds
	if done := len(sess.presences) - len(sess.active); done > 0 {
		snap.AverageWatchTimeSeconds = float64(snap.TotalWatchTimeSeconds) / float64(done)
	}
}

func (a *AnalyticsAggregator) noteChat(sess *session) {
	sess.snapshot.ChatMessageCount++
}

func (a *AnalyticsAggregator) noteGift(sess *session, g *models.Gift) {
	sess.snapshot.RevenueGenerated += g.TotalValue
	sess.snapshot.Gifts = append(sess.snapshot.Gifts, g)
}

// finalizeLocked recomputes the authoritative totals from the finalized
// presence intervals, independent of the incremental path. Idempotent; the
// snapshot is immutable afterwards. Caller holds the session lock and has
// already forced every viewer out.
func (a *AnalyticsAggregator) finalizeLocked(sess *session, now time.Time) {
	if sess.finalized {
		return
	}
	snap := sess.snapshot

	var total int64
	for _, p := range sess.presences {
		total += p.WatchTimeSeconds
	}
	if drift := total - snap.TotalWatchTimeSeconds; drift != 0 {
		log.Debug().Str("module", "service").Str("stream_id", sess.stream.ID).
			Int64("drift_seconds", drift).Msg("incremental watch time diverged from recompute")
	}

	snap.TotalWatchTimeSeconds = total
	snap.TotalViewers = len(sess.presences)
	snap.UniqueViewers = len(sess.seen)
	if len(sess.presences) > 0 {
		snap.AverageWatchTimeSeconds = float64(total) / float64(len(sess.presences))
	}
	t := now
	snap.FinalizedAt = &t
	sess.finalized = true
}

// Finalize recomputes and seals the snapshot for an ended stream. The
// registry calls this as part of EndStream; calling it again is a no-op.
func (a *AnalyticsAggregator) Finalize(streamID string) error {
	sess, ok := a.store.get(streamID)
	if !ok {
		return fmt.Errorf("stream %s: %w", streamID, ErrNotFound)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.stream.Status != models.StreamStatusEnded {
		return fmt.Errorf("stream %s is not ended: %w", streamID, ErrInvalidState)
	}
	a.finalizeLocked(sess, a.store.now())
	return nil
}

// GetAnalytics returns a copy of the snapshot. Owner-only.
func (a *AnalyticsAggregator) GetAnalytics(streamID, callerID string) (*models.AnalyticsSnapshot, error) {
	sess, ok := a.store.get(streamID)
	if !ok {
		return nil, fmt.Errorf("stream %s: %w", streamID, ErrNotFound)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if callerID != sess.stream.OwnerID {
		return nil, fmt.Errorf("analytics for stream %s are owner-only: %w", streamID, ErrForbidden)
	}
	return sess.snapshot.Clone(), nil
}
