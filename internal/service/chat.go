package service

import (
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/livecast/livecast/internal/events"
	"github.com/livecast/livecast/internal/models"
)

const (
	minMessageLength = 1
	maxMessageLength = 500
)

// ChatFanoutService maintains each stream's bounded message log and
// dispatches chat, system, and announcement messages to the Notifier.
// Durable chat history is an external collaborator's responsibility: once
// a message rotates out of the ring it is gone.
type ChatFanoutService struct {
	store     *Store
	notifier  events.Notifier
	analytics *AnalyticsAggregator
	mirror    Mirror
}

func NewChatFanoutService(store *Store, notifier events.Notifier, analytics *AnalyticsAggregator, mirror Mirror) *ChatFanoutService {
	return &ChatFanoutService{store: store, notifier: notifier, analytics: analytics, mirror: mirror}
}

type PostMessageRequest struct {
	UserID   string             `json:"user_id"`
	Username string             `json:"username"`
	Type     models.MessageType `json:"type"`
	Content  string             `json:"content"`
}

// PostMessage validates and appends a message to the stream's ring buffer.
// Chat-type messages are rejected while chat is disabled; system messages
// always pass.
func (c *ChatFanoutService) PostMessage(streamID string, req PostMessageRequest) (*models.Message, error) {
	msgType := req.Type
	if msgType == "" {
		msgType = models.MessageTypeChat
	}
	if !models.ValidMessageType(msgType) {
		return nil, fmt.Errorf("unknown message type %q: %w", msgType, ErrValidation)
	}
	if n := utf8.RuneCountInString(req.Content); n < minMessageLength || n > maxMessageLength {
		return nil, fmt.Errorf("message must be %d-%d characters, got %d: %w",
			minMessageLength, maxMessageLength, n, ErrValidation)
	}

	sess, ok := c.store.get(streamID)
	if !ok {
		return nil, fmt.Errorf("stream %s: %w", streamID, ErrNotFound)
	}

	sess.mu.Lock()
	stream := sess.stream
	if stream.Status == models.StreamStatusEnded {
		sess.mu.Unlock()
		return nil, fmt.Errorf("stream %s has ended: %w", streamID, ErrInvalidState)
	}
	if !stream.ChatEnabled && msgType == models.MessageTypeChat {
		sess.mu.Unlock()
		return nil, fmt.Errorf("chat is disabled on stream %s: %w", streamID, ErrChatDisabled)
	}

	msg := &models.Message{
		ID:          uuid.New().String(),
		StreamID:    streamID,
		UserID:      req.UserID,
		Username:    req.Username,
		Type:        msgType,
		Content:     req.Content,
		CreatedAt:   c.store.now(),
		IsFromOwner: req.UserID == stream.OwnerID,
	}
	c.postLocked(sess, msg)
	clone := msg.Clone()
	sess.mu.Unlock()

	c.dispatch(clone)
	return clone, nil
}

// postLocked appends to the ring and bumps the chat counter as one step.
// Shared with the gift ledger for announcement messages; caller holds the
// session lock.
func (c *ChatFanoutService) postLocked(sess *session, msg *models.Message) {
	if evicted := sess.messages.append(msg); evicted != nil {
		delete(sess.byID, evicted.ID)
	}
	sess.byID[msg.ID] = msg
	c.analytics.noteChat(sess)
}

// dispatch fans a stored message out to the Notifier and the mirror,
// outside the session lock.
func (c *ChatFanoutService) dispatch(msg *models.Message) {
	notify(c.notifier, events.ChatMessage{
		Stream:      msg.StreamID,
		MessageID:   msg.ID,
		UserID:      msg.UserID,
		Username:    msg.Username,
		MessageType: string(msg.Type),
		Content:     msg.Content,
		IsFromOwner: msg.IsFromOwner,
		At:          msg.CreatedAt,
	})
	if c.mirror != nil {
		clone := msg.Clone()
		mirrorAsync("message", msg.StreamID, func() error { return c.mirror.CacheMessage(clone) })
	}
}

// Pin marks a message as pinned. Owner or moderator only.
func (c *ChatFanoutService) Pin(streamID, messageID, callerID string) (*models.Message, error) {
	return c.setPinned(streamID, messageID, callerID, true)
}

// Unpin clears the pinned flag. Owner or moderator only.
func (c *ChatFanoutService) Unpin(streamID, messageID, callerID string) (*models.Message, error) {
	return c.setPinned(streamID, messageID, callerID, false)
}

func (c *ChatFanoutService) setPinned(streamID, messageID, callerID string, pinned bool) (*models.Message, error) {
	sess, ok := c.store.get(streamID)
	if !ok {
		return nil, fmt.Errorf("stream %s: %w", streamID, ErrNotFound)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if !sess.isModerator(callerID) {
		return nil, fmt.Errorf("pinning on stream %s is owner/moderator-only: %w", streamID, ErrUnauthorized)
	}
	msg, ok := sess.byID[messageID]
	if !ok {
		return nil, fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	msg.IsPinned = pinned
	return msg.Clone(), nil
}

// React adds one reaction to a message. Messages are immutable except for
// IsPinned and Reactions, so this is the only other mutator.
func (c *ChatFanoutService) React(streamID, messageID, userID, reaction string) (*models.Message, error) {
	if reaction == "" || utf8.RuneCountInString(reaction) > 32 {
		return nil, fmt.Errorf("invalid reaction: %w", ErrValidation)
	}
	sess, ok := c.store.get(streamID)
	if !ok {
		return nil, fmt.Errorf("stream %s: %w", streamID, ErrNotFound)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	msg, ok := sess.byID[messageID]
	if !ok {
		return nil, fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	if msg.Reactions == nil {
		msg.Reactions = make(map[string]int)
	}
	msg.Reactions[reaction]++
	return msg.Clone(), nil
}

// Messages returns up to limit of the newest buffered messages, oldest
// first. limit <= 0 returns the whole ring.
func (c *ChatFanoutService) Messages(streamID string, limit int) ([]*models.Message, error) {
	sess, ok := c.store.get(streamID)
	if !ok {
		return nil, fmt.Errorf("stream %s: %w", streamID, ErrNotFound)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	buffered := sess.messages.snapshot(limit)
	out := make([]*models.Message, len(buffered))
	for i, m := range buffered {
		out[i] = m.Clone()
	}
	return out, nil
}
