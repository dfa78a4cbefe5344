package service

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/livecast/livecast/internal/models"
)

// DefaultChatHistorySize is the per-stream message ring capacity.
const DefaultChatHistorySize = 1000

// session is one stream's consistency domain. Every mutation of the stream
// record, its viewers, its message ring, or its analytics snapshot happens
// under mu; operations on different sessions never contend. Fan-out and
// mirroring happen strictly after mu is released.
type session struct {
	mu sync.Mutex

	stream *models.Stream

	active     map[string]*models.Viewer // currently watching, by userID
	presences  []*models.Viewer          // every presence record ever, join order
	seen       map[string]struct{}       // distinct userIDs across all presences
	moderators map[string]struct{}

	messages *messageRing
	byID     map[string]*models.Message // pin/react lookups; pruned on eviction

	snapshot  *models.AnalyticsSnapshot
	finalized bool
}

func newSession(stream *models.Stream, ringCapacity int) *session {
	return &session{
		stream:     stream,
		active:     make(map[string]*models.Viewer),
		seen:       make(map[string]struct{}),
		moderators: make(map[string]struct{}),
		messages:   newMessageRing(ringCapacity),
		byID:       make(map[string]*models.Message),
		snapshot: &models.AnalyticsSnapshot{
			StreamID:         stream.ID,
			ViewersByCountry: make(map[string]int),
			ViewersByDevice:  make(map[string]int),
		},
	}
}

// isModerator assumes the session lock is held.
func (s *session) isModerator(userID string) bool {
	if userID == s.stream.OwnerID {
		return true
	}
	_, ok := s.moderators[userID]
	return ok
}

// Store holds all sessions. The map itself is guarded by an RWMutex, but
// per-stream state is only ever touched under the owning session's lock,
// so streams do not serialize against each other.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session

	ringCapacity int
	now          func() time.Time
}

func NewStore() *Store {
	return &Store{
		sessions:     make(map[string]*session),
		ringCapacity: DefaultChatHistorySize,
		now:          time.Now,
	}
}

// SetChatHistorySize overrides the ring capacity for streams created after
// the call. Existing sessions keep their buffers.
func (st *Store) SetChatHistorySize(n int) {
	if n > 0 {
		st.mu.Lock()
		st.ringCapacity = n
		st.mu.Unlock()
	}
}

func (st *Store) add(stream *models.Stream) *session {
	sess := newSession(stream, st.ringCapacity)
	st.mu.Lock()
	st.sessions[stream.ID] = sess
	st.mu.Unlock()
	return sess
}

func (st *Store) get(streamID string) (*session, bool) {
	st.mu.RLock()
	sess, ok := st.sessions[streamID]
	st.mu.RUnlock()
	return sess, ok
}

func (st *Store) remove(streamID string) {
	st.mu.Lock()
	delete(st.sessions, streamID)
	st.mu.Unlock()
}

func (st *Store) all() []*session {
	st.mu.RLock()
	out := make([]*session, 0, len(st.sessions))
	for _, sess := range st.sessions {
		out = append(out, sess)
	}
	st.mu.RUnlock()
	return out
}

// Mirror is the optional persistence collaborator. The engine's in-memory
// state is authoritative during a session; mirror calls run asynchronously
// and their failures never surface to callers.
type Mirror interface {
	MirrorStream(stream *models.Stream) error
	DeleteStream(streamID string) error
	SetViewerCount(streamID string, count int) error
	CacheMessage(msg *models.Message) error
}

func mirrorAsync(what, streamID string, fn func() error) {
	go func() {
		if err := fn(); err != nil {
			log.Warn().Err(err).Str("module", "service").Str("stream_id", streamID).Msgf("mirror %s failed", what)
		}
	}()
}
