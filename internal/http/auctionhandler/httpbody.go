package auctionhandler

import (
	"time"

	"github.com/shopspring/decimal"

	"shopbidgo/internal/auction"
)

type CreateAuctionBody struct {
	ShopID       string                `json:"shop_id"     binding:"required" example:"shop123"`
	ProductRef   string                `json:"product_ref" binding:"required" example:"prod456"`
	StartTime    time.Time             `json:"start_time"  binding:"required" example:"2026-08-23T16:00:00Z"`
	EndTime      time.Time             `json:"end_time"    binding:"required" example:"2026-08-23T18:00:00Z"`
	StartingBid  decimal.Decimal       `json:"starting_bid" example:"10"`
	BuyNowPrice  *decimal.Decimal      `json:"buy_now_price,omitempty" example:"50"`
	ReservePrice *decimal.Decimal      `json:"reserve_price,omitempty" example:"25"`
	Popcorn      auction.PopcornConfig `json:"popcorn"`
} // @name CreateAuctionRequest

type PlaceBidBody struct {
	BidderID    string          `json:"bidder_id" binding:"required" example:"user123"`
	DisplayName string          `json:"display_name" example:"Dana"`
	Amount      decimal.Decimal `json:"amount" binding:"required" example:"12.50"`
} // @name PlaceBidRequest

type BuyNowBody struct {
	BuyerID     string `json:"buyer_id" binding:"required" example:"user123"`
	DisplayName string `json:"display_name" example:"Dana"`
} // @name BuyNowRequest

type RelistBody struct {
	StartTime time.Time `json:"start_time" binding:"required" example:"2026-08-24T16:00:00Z"`
	EndTime   time.Time `json:"end_time"   binding:"required" example:"2026-08-24T18:00:00Z"`
} // @name RelistRequest

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse

type ListAuctionsQuery struct {
	ShopID string `form:"shop_id" binding:"omitempty"`
	Status string `form:"status"  binding:"omitempty,oneof=pending active ended closed"`
	Limit  int    `form:"limit,default=10"  binding:"gte=0,lte=100"`
	Offset int    `form:"offset,default=0"  binding:"gte=0"`
} // @name ListAuctionsQuery

type EventsQuery struct {
	SinceVersion int64 `form:"since_version,default=0" binding:"gte=0"`
	Limit        int   `form:"limit,default=100" binding:"gte=0,lte=500"`
} // @name EventsQuery
