// Package events defines the closed set of fan-out events the engine emits
// and the Notifier interface that delivers them to subscribers. Delivery is
// at-most-once and best-effort: a failed publish never rolls back the state
// change that produced the event.
package events

import (
	"encoding/json"
	"time"
)

type Kind string

const (
	KindStreamStarted Kind = "stream_started"
	KindStreamEnded   Kind = "stream_ended"
	KindViewerJoined  Kind = "viewer_joined"
	KindViewerLeft    Kind = "viewer_left"
	KindChatMessage   Kind = "chat_message"
	KindGiftSent      Kind = "gift_sent"
)

// Event is the sealed union of everything the engine fans out. Concrete
// payloads live in this package only.
type Event interface {
	Kind() Kind
	StreamID() string
	OccurredAt() time.Time
	isEvent()
}

type StreamStarted struct {
	Stream  string    `json:"stream_id"`
	OwnerID string    `json:"owner_id"`
	Title   string    `json:"title"`
	At      time.Time `json:"timestamp"`
}

func (e StreamStarted) Kind() Kind            { return KindStreamStarted }
func (e StreamStarted) StreamID() string      { return e.Stream }
func (e StreamStarted) OccurredAt() time.Time { return e.At }
func (StreamStarted) isEvent()                {}

type StreamEnded struct {
	Stream          string    `json:"stream_id"`
	OwnerID         string    `json:"owner_id"`
	DurationSeconds int64     `json:"duration_seconds"`
	At              time.Time `json:"timestamp"`
}

func (e StreamEnded) Kind() Kind            { return KindStreamEnded }
func (e StreamEnded) StreamID() string      { return e.Stream }
func (e StreamEnded) OccurredAt() time.Time { return e.At }
func (StreamEnded) isEvent()                {}

type ViewerJoined struct {
	Stream      string    `json:"stream_id"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	ViewerCount int       `json:"viewer_count"`
	At          time.Time `json:"timestamp"`
}

func (e ViewerJoined) Kind() Kind            { return KindViewerJoined }
func (e ViewerJoined) StreamID() string      { return e.Stream }
func (e ViewerJoined) OccurredAt() time.Time { return e.At }
func (ViewerJoined) isEvent()                {}

type ViewerLeft struct {
	Stream           string    `json:"stream_id"`
	UserID           string    `json:"user_id"`
	Username         string    `json:"username"`
	ViewerCount      int       `json:"viewer_count"`
	WatchTimeSeconds int64     `json:"watch_time_seconds"`
	At               time.Time `json:"timestamp"`
}

func (e ViewerLeft) Kind() Kind            { return KindViewerLeft }
func (e ViewerLeft) StreamID() string      { return e.Stream }
func (e ViewerLeft) OccurredAt() time.Time { return e.At }
func (ViewerLeft) isEvent()                {}

type ChatMessage struct {
	Stream      string    `json:"stream_id"`
	MessageID   string    `json:"message_id"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	MessageType string    `json:"message_type"`
	Content     string    `json:"content"`
	IsFromOwner bool      `json:"is_from_owner"`
	At          time.Time `json:"timestamp"`
}

func (e ChatMessage) Kind() Kind            { return KindChatMessage }
func (e ChatMessage) StreamID() string      { return e.Stream }
func (e ChatMessage) OccurredAt() time.Time { return e.At }
func (ChatMessage) isEvent()                {}

type GiftSent struct {
	Stream     string    `json:"stream_id"`
	GiftID     string    `json:"gift_id"`
	FromUserID string    `json:"from_user_id"`
	ToUserID   string    `json:"to_user_id"`
	GiftType   string    `json:"gift_type"`
	Quantity   int       `json:"quantity"`
	TotalValue int64     `json:"total_value"`
	At         time.Time `json:"timestamp"`
}

func (e GiftSent) Kind() Kind            { return KindGiftSent }
func (e GiftSent) StreamID() string      { return e.Stream }
func (e GiftSent) OccurredAt() time.Time { return e.At }
func (GiftSent) isEvent()                {}

// Envelope is the wire form shared by every delivery transport.
type Envelope struct {
	Type      Kind      `json:"type"`
	StreamID  string    `json:"stream_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   Event     `json:"payload"`
}

// Marshal wraps an event in its envelope and encodes it as JSON.
func Marshal(e Event) ([]byte, error) {
	return json.Marshal(Envelope{
		Type:      e.Kind(),
		StreamID:  e.StreamID(),
		Timestamp: e.OccurredAt(),
		Payload:   e,
	})
}
