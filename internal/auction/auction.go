package auction

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Status of an auction. Transitions are owned by the engine's lifecycle
// coordinator; nothing else may flip this field.
type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusEnded   Status = "ended"
	StatusClosed  Status = "closed"
)

var (
	ErrNotFound          = errors.New("auction not found")
	ErrAuctionNotActive  = errors.New("auction not active")
	ErrBidTooLow         = errors.New("bid must be higher than current bid")
	ErrBuyNowUnavailable = errors.New("buy now not available")
	ErrCannotRelist      = errors.New("cannot relist auction with bids")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAuctionHasBids    = errors.New("auction has bids")
	ErrContention        = errors.New("too much contention, retry")
)

// Bid is immutable once committed.
type Bid struct {
	BidderID    string          `json:"bidder_id"`
	DisplayName string          `json:"display_name"`
	Amount      decimal.Decimal `json:"amount"`
	PlacedAt    time.Time       `json:"placed_at"`
	ViaBuyNow   bool            `json:"via_buy_now,omitempty"`
}

// Winner is set at most once, together with WinnerProcessed.
type Winner struct {
	BidderID    string          `json:"bidder_id"`
	DisplayName string          `json:"display_name"`
	Amount      decimal.Decimal `json:"amount"`
	ViaBuyNow   bool            `json:"via_buy_now,omitempty"`
}

// PopcornConfig drives the anti-sniping end-time extension.
type PopcornConfig struct {
	Enabled        bool  `json:"enabled"`
	TriggerSeconds int64 `json:"trigger_seconds"`
	ExtendSeconds  int64 `json:"extend_seconds"`
}

// Auction is one listed product per time window. Version increments by
// exactly 1 per committed mutation; the store rejects writes against a
// stale version.
type Auction struct {
	ID         string `json:"id"`
	ShopID     string `json:"shop_id"`
	ProductRef string `json:"product_ref"`

	StartTime time.Time `json:"start_time" example:"2026-08-23T16:00:00Z"`
	EndTime   time.Time `json:"end_time"   example:"2026-08-23T18:00:00Z"`

	StartingBid decimal.Decimal  `json:"starting_bid"`
	CurrentBid  decimal.Decimal  `json:"current_bid"`
	BuyNowPrice *decimal.Decimal `json:"buy_now_price,omitempty"`
	// ReservePrice is hidden from bidders; only settlement reads it.
	ReservePrice *decimal.Decimal `json:"-"`

	Status     Status        `json:"status" example:"active"`
	BidHistory []Bid         `json:"bid_history"`
	Popcorn    PopcornConfig `json:"popcorn"`

	Winner          *Winner `json:"winner,omitempty"`
	WinnerProcessed bool    `json:"winner_processed"`

	Version int64 `json:"version"`
}

// Clone returns a deep copy so callers can mutate a snapshot without
// touching the committed record.
func (a *Auction) Clone() *Auction {
	cp := *a
	cp.BidHistory = make([]Bid, len(a.BidHistory))
	copy(cp.BidHistory, a.BidHistory)
	if a.BuyNowPrice != nil {
		p := *a.BuyNowPrice
		cp.BuyNowPrice = &p
	}
	if a.ReservePrice != nil {
		p := *a.ReservePrice
		cp.ReservePrice = &p
	}
	if a.Winner != nil {
		w := *a.Winner
		cp.Winner = &w
	}
	return &cp
}

// HighestBid returns the last committed bid. BidHistory amounts are
// strictly increasing, so last == highest by construction.
func (a *Auction) HighestBid() *Bid {
	if len(a.BidHistory) == 0 {
		return nil
	}
	return &a.BidHistory[len(a.BidHistory)-1]
}

// ReserveMet reports whether amount satisfies the reserve price.
// A nil reserve is always met.
func (a *Auction) ReserveMet(amount decimal.Decimal) bool {
	if a.ReservePrice == nil {
		return true
	}
	return amount.GreaterThanOrEqual(*a.ReservePrice)
}

// AppendBid records an accepted bid and lifts CurrentBid. Admission
// checks (status, strict increase) are the engine's job; this only keeps
// the record's internal invariants.
func (a *Auction) AppendBid(b Bid) {
	a.BidHistory = append(a.BidHistory, b)
	if b.Amount.GreaterThan(a.CurrentBid) {
		a.CurrentBid = b.Amount
	}
}

// CanTransition reports whether moving from the auction's current status
// to target is a legal edge of the lifecycle state machine.
func (a *Auction) CanTransition(target Status) bool {
	switch a.Status {
	case StatusPending:
		return target == StatusActive || target == StatusClosed
	case StatusActive:
		return target == StatusEnded || target == StatusClosed
	case StatusEnded:
		// Relist (empty-history guard applies) or admin archive.
		return target == StatusPending || target == StatusClosed
	default:
		return false
	}
}
