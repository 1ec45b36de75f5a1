// Package events carries committed auction mutations to live viewers.
// Events are emitted in commit order per auction and carry the commit's
// version. Subscribers drop anything whose version is not strictly
// greater than the last one they applied; the leading event of a commit
// carries every field the commit touched, so trailing same-version
// refinements are safe to skip.
package events

import (
	"time"

	"github.com/shopspring/decimal"

	"shopbidgo/internal/auction"
)

type Type string

const (
	TypeBidPlaced     Type = "bid-placed"
	TypeStatusChanged Type = "status-changed"
	TypeTimeExtended  Type = "time-extended"
)

// Event is the flat wire payload. Fields are additive by key: the
// marketplace patches its local view with whatever is present.
type Event struct {
	Type      Type      `json:"event"`
	AuctionID string    `json:"auction_id"`
	Version   int64     `json:"version"`
	At        time.Time `json:"at"`

	Status       auction.Status   `json:"status,omitempty"`
	CurrentBid   *decimal.Decimal `json:"current_bid,omitempty"`
	Bid          *auction.Bid     `json:"bid,omitempty"`
	BidCount     int              `json:"bid_count,omitempty"`
	EndTime      *time.Time       `json:"end_time,omitempty"`
	AuctionEnded bool             `json:"auction_ended,omitempty"`

	Winner          *auction.Winner `json:"winner,omitempty"`
	WinnerProcessed bool            `json:"winner_processed,omitempty"`
}

// NewBidPlaced builds the event for a committed bid from the post-commit
// snapshot. It carries every field the commit touched, including the end
// time (moved on a popcorn extension) and, when a buy-now ended the
// auction in the same commit, the settled winner. The trailing
// time-extended or status-changed event at the same version only
// restates these fields, so a subscriber applying the strictly-greater
// version rule loses nothing by skipping it.
func NewBidPlaced(a *auction.Auction, ended bool) Event {
	cur := a.CurrentBid
	end := a.EndTime
	ev := Event{
		Type:         TypeBidPlaced,
		AuctionID:    a.ID,
		Version:      a.Version,
		At:           time.Now().UTC(),
		CurrentBid:   &cur,
		Bid:          a.HighestBid(),
		BidCount:     len(a.BidHistory),
		EndTime:      &end,
		AuctionEnded: ended,
	}
	if ended {
		ev.Status = a.Status
		ev.Winner = a.Winner
		ev.WinnerProcessed = a.WinnerProcessed
	}
	return ev
}

// NewStatusChanged reflects a lifecycle transition. Winner fields are
// populated only once winner processing has run, so viewers never see a
// half-settled ending.
func NewStatusChanged(a *auction.Auction) Event {
	return Event{
		Type:            TypeStatusChanged,
		AuctionID:       a.ID,
		Version:         a.Version,
		At:              time.Now().UTC(),
		Status:          a.Status,
		Winner:          a.Winner,
		WinnerProcessed: a.WinnerProcessed,
	}
}

// NewTimeExtended announces a popcorn extension.
func NewTimeExtended(a *auction.Auction) Event {
	end := a.EndTime
	return Event{
		Type:      TypeTimeExtended,
		AuctionID: a.ID,
		Version:   a.Version,
		At:        time.Now().UTC(),
		EndTime:   &end,
	}
}
