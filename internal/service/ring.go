package service

import "github.com/livecast/livecast/internal/models"

// messageRing is a fixed-capacity circular buffer over the most recent
// messages of one stream. Append and eviction are O(1); evicted messages
// are gone for good — durable history belongs to an external collaborator.
type messageRing struct {
	buf   []*models.Message
	head  int // index of the oldest element
	count int
}

func newMessageRing(capacity int) *messageRing {
	if capacity <= 0 {
		capacity = 1
	}
	return &messageRing{buf: make([]*models.Message, capacity)}
}

// append adds m and returns the message it evicted, if the ring was full.
func (r *messageRing) append(m *models.Message) *models.Message {
	if r.count < len(r.buf) {
		r.buf[(r.head+r.count)%len(r.buf)] = m
		r.count++
		return nil
	}
	evicted := r.buf[r.head]
	r.buf[r.head] = m
	r.head = (r.head + 1) % len(r.buf)
	return evicted
}

func (r *messageRing) len() int { return r.count }

// snapshot returns up to limit of the newest messages, oldest first.
// limit <= 0 means everything currently buffered.
func (r *messageRing) snapshot(limit int) []*models.Message {
	n := r.count
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*models.Message, 0, n)
	start := r.count - n
	for i := start; i < r.count; i++ {
		out = append(out, r.buf[(r.head+i)%len(r.buf)])
	}
	return out
}
