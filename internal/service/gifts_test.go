package service

import (
	"errors"
	"testing"

	"github.com/livecast/livecast/internal/events"
	"github.com/livecast/livecast/internal/models"
)

func TestSendGiftValues(t *testing.T) {
	tests := []struct {
		giftType models.GiftType
		quantity int
		want     int64
	}{
		{models.GiftTypeRose, 1, 1},
		{models.GiftTypeHeart, 2, 10},
		{models.GiftTypeStar, 3, 30},
		{models.GiftTypeDiamond, 1, 50},
		{models.GiftTypeCrown, 4, 400},
	}

	for _, tt := range tests {
		t.Run(string(tt.giftType), func(t *testing.T) {
			e := newTestEngine()
			stream := e.liveStream(t, "owner-1", CreateStreamRequest{MonetizationEnabled: true})

			gift, err := e.gifts.SendGift(stream.ID, SendGiftRequest{
				FromUserID: "u1",
				GiftType:   tt.giftType,
				Quantity:   tt.quantity,
			})
			if err != nil {
				t.Fatalf("SendGift() unexpected error = %v", err)
			}
			if gift.TotalValue != tt.want {
				t.Errorf("TotalValue = %d, want %d", gift.TotalValue, tt.want)
			}
			if gift.ToUserID != "owner-1" {
				t.Errorf("ToUserID = %s, gifts must be credited to the owner", gift.ToUserID)
			}

			snap, _ := e.analytics.GetAnalytics(stream.ID, "owner-1")
			if snap.RevenueGenerated != tt.want {
				t.Errorf("RevenueGenerated = %d, want %d", snap.RevenueGenerated, tt.want)
			}
		})
	}
}

func TestSendGiftValidation(t *testing.T) {
	e := newTestEngine()
	stream := e.liveStream(t, "owner-1", CreateStreamRequest{MonetizationEnabled: true})

	tests := []struct {
		name string
		req  SendGiftRequest
	}{
		{"missing sender", SendGiftRequest{GiftType: models.GiftTypeRose, Quantity: 1}},
		{"unknown gift type", SendGiftRequest{FromUserID: "u1", GiftType: "unicorn", Quantity: 1}},
		{"zero quantity", SendGiftRequest{FromUserID: "u1", GiftType: models.GiftTypeRose, Quantity: 0}},
		{"quantity over cap", SendGiftRequest{FromUserID: "u1", GiftType: models.GiftTypeRose, Quantity: 1001}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.gifts.SendGift(stream.ID, tt.req); !errors.Is(err, ErrValidation) {
				t.Errorf("SendGift() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestSendGiftStateChecks(t *testing.T) {
	e := newTestEngine()
	req := SendGiftRequest{FromUserID: "u1", GiftType: models.GiftTypeRose, Quantity: 1}

	draft := e.createStream(t, "owner-1", CreateStreamRequest{MonetizationEnabled: true})
	if _, err := e.gifts.SendGift(draft.ID, req); !errors.Is(err, ErrInvalidState) {
		t.Errorf("SendGift() on draft stream error = %v, want ErrInvalidState", err)
	}

	unmonetized := e.liveStream(t, "owner-1", CreateStreamRequest{})
	if _, err := e.gifts.SendGift(unmonetized.ID, req); !errors.Is(err, ErrMonetizationDisabled) {
		t.Errorf("SendGift() without monetization error = %v, want ErrMonetizationDisabled", err)
	}

	ended := e.liveStream(t, "owner-1", CreateStreamRequest{MonetizationEnabled: true})
	e.registry.EndStream(ended.ID, "owner-1")
	if _, err := e.gifts.SendGift(ended.ID, req); !errors.Is(err, ErrInvalidState) {
		t.Errorf("SendGift() on ended stream error = %v, want ErrInvalidState", err)
	}

	if _, err := e.gifts.SendGift("missing", req); !errors.Is(err, ErrNotFound) {
		t.Errorf("SendGift() on missing stream error = %v, want ErrNotFound", err)
	}
}

func TestSendGiftPostsAnnouncement(t *testing.T) {
	e := newTestEngine()
	// Chat disabled: gift announcements are not chat-type and still land.
	stream := e.liveStream(t, "owner-1", CreateStreamRequest{MonetizationEnabled: true})

	gift, err := e.gifts.SendGift(stream.ID, SendGiftRequest{
		FromUserID: "u1",
		Username:   "alice",
		GiftType:   models.GiftTypeStar,
		Quantity:   3,
		Message:    "great stream!",
	})
	if err != nil {
		t.Fatalf("SendGift() unexpected error = %v", err)
	}

	msgs, err := e.chat.Messages(stream.ID, 0)
	if err != nil {
		t.Fatalf("Messages() unexpected error = %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1 announcement", len(msgs))
	}
	ann := msgs[0]
	if ann.Type != models.MessageTypeGift {
		t.Errorf("announcement Type = %s, want %s", ann.Type, models.MessageTypeGift)
	}
	if want := "alice sent 3 x star: great stream!"; ann.Content != want {
		t.Errorf("announcement = %q, want %q", ann.Content, want)
	}

	sent := e.notifier.byKind(events.KindGiftSent)
	if len(sent) != 1 {
		t.Fatalf("got %d gift_sent events, want 1", len(sent))
	}
	ev := sent[0].(events.GiftSent)
	if ev.GiftID != gift.ID || ev.TotalValue != 30 {
		t.Errorf("gift_sent event = %+v, want GiftID %s TotalValue 30", ev, gift.ID)
	}

	snap, _ := e.analytics.GetAnalytics(stream.ID, "owner-1")
	if snap.ChatMessageCount != 1 {
		t.Errorf("ChatMessageCount = %d, announcement must bump the counter", snap.ChatMessageCount)
	}
}

func TestGiftsAccumulateInSnapshot(t *testing.T) {
	e := newTestEngine()
	stream := e.liveStream(t, "owner-1", CreateStreamRequest{MonetizationEnabled: true})

	gifts := []SendGiftRequest{
		{FromUserID: "u1", GiftType: models.GiftTypeRose, Quantity: 5},
		{FromUserID: "u2", GiftType: models.GiftTypeDiamond, Quantity: 1},
		{FromUserID: "u1", GiftType: models.GiftTypeHeart, Quantity: 2},
	}
	var wantRevenue int64
	for _, req := range gifts {
		g, err := e.gifts.SendGift(stream.ID, req)
		if err != nil {
			t.Fatalf("SendGift() unexpected error = %v", err)
		}
		wantRevenue += g.TotalValue
	}

	snap, err := e.analytics.GetAnalytics(stream.ID, "owner-1")
	if err != nil {
		t.Fatalf("GetAnalytics() unexpected error = %v", err)
	}
	if len(snap.Gifts) != len(gifts) {
		t.Errorf("snapshot holds %d gifts, want %d", len(snap.Gifts), len(gifts))
	}
	if snap.RevenueGenerated != wantRevenue {
		t.Errorf("RevenueGenerated = %d, want %d", snap.RevenueGenerated, wantRevenue)
	}

	var sum int64
	for _, g := range snap.Gifts {
		sum += g.TotalValue
	}
	if sum != snap.RevenueGenerated {
		t.Errorf("gift values sum to %d but RevenueGenerated = %d", sum, snap.RevenueGenerated)
	}
}
