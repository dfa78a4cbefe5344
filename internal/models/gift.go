package models

import "time"

type GiftType string

const (
	GiftTypeRose    GiftType = "rose"
	GiftTypeHeart   GiftType = "heart"
	GiftTypeStar    GiftType = "star"
	GiftTypeDiamond GiftType = "diamond"
	GiftTypeCrown   GiftType = "crown"
)

// GiftValues maps each gift type to its unit value in coins.
var GiftValues = map[GiftType]int64{
	GiftTypeRose:    1,
	GiftTypeHeart:   5,
	GiftTypeStar:    10,
	GiftTypeDiamond: 50,
	GiftTypeCrown:   100,
}

type Gift struct {
	ID         string    `json:"id"`
	StreamID   string    `json:"stream_id"`
	FromUserID string    `json:"from_user_id"`
	ToUserID   string    `json:"to_user_id"`
	Type       GiftType  `json:"type"`
	Quantity   int       `json:"quantity"`
	UnitValue  int64     `json:"unit_value"`
	TotalValue int64     `json:"total_value"`
	CreatedAt  time.Time `json:"created_at"`
}

func (g *Gift) Clone() *Gift {
	c := *g
	return &c
}
