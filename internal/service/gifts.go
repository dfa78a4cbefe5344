package service

import (
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/livecast/livecast/internal/events"
	"github.com/livecast/livecast/internal/models"
)

const maxGiftQuantity = 1000

// GiftLedger converts gifts into revenue events and announcement messages.
// The ledger write, the revenue/analytics update, and the announcement all
// land under one session lock, so the totals can never disagree with the
// gift list.
type GiftLedger struct {
	store     *Store
	chat      *ChatFanoutService
	analytics *AnalyticsAggregator
	notifier  events.Notifier
}

func NewGiftLedger(store *Store, chat *ChatFanoutService, analytics *AnalyticsAggregator, notifier events.Notifier) *GiftLedger {
	return &GiftLedger{store: store, chat: chat, analytics: analytics, notifier: notifier}
}

type SendGiftRequest struct {
	FromUserID string          `json:"from_user_id"`
	Username   string          `json:"username"`
	GiftType   models.GiftType `json:"gift_type"`
	Quantity   int             `json:"quantity"`
	Message    string          `json:"message"`
}

// SendGift records a gift on a live, monetized stream.
func (g *GiftLedger) SendGift(streamID string, req SendGiftRequest) (*models.Gift, error) {
	if req.FromUserID == "" {
		return nil, fmt.Errorf("sender id is required: %w", ErrValidation)
	}
	unitValue, known := models.GiftValues[req.GiftType]
	if !known {
		return nil, fmt.Errorf("unknown gift type %q: %w", req.GiftType, ErrValidation)
	}
	if req.Quantity < 1 || req.Quantity > maxGiftQuantity {
		return nil, fmt.Errorf("gift quantity must be 1-%d, got %d: %w", maxGiftQuantity, req.Quantity, ErrValidation)
	}

	sess, ok := g.store.get(streamID)
	if !ok {
		return nil, fmt.Errorf("stream %s: %w", streamID, ErrNotFound)
	}

	sess.mu.Lock()
	stream := sess.stream
	if stream.Status != models.StreamStatusLive {
		sess.mu.Unlock()
		return nil, fmt.Errorf("stream %s is not live: %w", streamID, ErrInvalidState)
	}
	if !stream.MonetizationEnabled {
		sess.mu.Unlock()
		return nil, fmt.Errorf("monetization is disabled on stream %s: %w", streamID, ErrMonetizationDisabled)
	}

	now := g.store.now()
	gift := &models.Gift{
		ID:         uuid.New().String(),
		StreamID:   streamID,
		FromUserID: req.FromUserID,
		ToUserID:   stream.OwnerID,
		Type:       req.GiftType,
		Quantity:   req.Quantity,
		UnitValue:  unitValue,
		TotalValue: unitValue * int64(req.Quantity),
		CreatedAt:  now,
	}
	g.analytics.noteGift(sess, gift)

	announcement := &models.Message{
		ID:        uuid.New().String(),
		StreamID:  streamID,
		UserID:    req.FromUserID,
		Username:  req.Username,
		Type:      models.MessageTypeGift,
		Content:   giftAnnouncement(req),
		CreatedAt: now,
	}
	g.chat.postLocked(sess, announcement)

	giftClone := gift.Clone()
	msgClone := announcement.Clone()
	sess.mu.Unlock()

	notify(g.notifier, events.GiftSent{
		Stream:     streamID,
		GiftID:     giftClone.ID,
		FromUserID: giftClone.FromUserID,
		ToUserID:   giftClone.ToUserID,
		GiftType:   string(giftClone.Type),
		Quantity:   giftClone.Quantity,
		TotalValue: giftClone.TotalValue,
		At:         now,
	})
	g.chat.dispatch(msgClone)
	return giftClone, nil
}

func giftAnnouncement(req SendGiftRequest) string {
	sender := req.Username
	if sender == "" {
		sender = req.FromUserID
	}
	text := fmt.Sprintf("%s sent %d x %s", sender, req.Quantity, req.GiftType)
	if req.Message != "" {
		text = text + ": " + req.Message
	}
	if utf8.RuneCountInString(text) > maxMessageLength {
		text = string([]rune(text)[:maxMessageLength])
	}
	return text
}
