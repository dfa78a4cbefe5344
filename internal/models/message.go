package models

import "time"

type MessageType string

const (
	MessageTypeChat      MessageType = "chat"
	MessageTypeGift      MessageType = "gift"
	MessageTypeFollow    MessageType = "follow"
	MessageTypeSubscribe MessageType = "subscribe"
	MessageTypeDonation  MessageType = "donation"
	MessageTypeSystem    MessageType = "system"
)

// ValidMessageType reports whether t is one of the known message kinds.
func ValidMessageType(t MessageType) bool {
	switch t {
	case MessageTypeChat, MessageTypeGift, MessageTypeFollow,
		MessageTypeSubscribe, MessageTypeDonation, MessageTypeSystem:
		return true
	}
	return false
}

// Message is immutable once posted, except for IsPinned and Reactions.
type Message struct {
	ID          string         `json:"id"`
	StreamID    string         `json:"stream_id"`
	UserID      string         `json:"user_id"`
	Username    string         `json:"username"`
	Type        MessageType    `json:"type"`
	Content     string         `json:"content"`
	CreatedAt   time.Time      `json:"created_at"`
	IsFromOwner bool           `json:"is_from_owner"`
	IsPinned    bool           `json:"is_pinned"`
	Reactions   map[string]int `json:"reactions,omitempty"`
}

func (m *Message) Clone() *Message {
	c := *m
	if m.Reactions != nil {
		c.Reactions = make(map[string]int, len(m.Reactions))
		for k, v := range m.Reactions {
			c.Reactions[k] = v
		}
	}
	return &c
}
