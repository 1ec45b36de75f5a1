package ws

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// EventSnapshot is pushed once per join so the widget renders current
// state before the first live event arrives.
const EventSnapshot = "auctions/snapshot"

// Envelope wraps every WS frame in both directions.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "auctions/bid"
	Body  json.RawMessage `json:"body,omitempty"` // arbitrary JSON object
}

// ──────────────────────────── Request / Response DTOs ─────────────────────────

// BidRequest is the body for "auctions/bid". Amount accepts a JSON
// number or string; decimals survive the trip either way.
type BidRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	DisplayName string          `json:"display_name,omitempty"`
}

// BuyNowRequest is the body for "auctions/buy-now".
type BuyNowRequest struct {
	DisplayName string `json:"display_name,omitempty"`
}

// ErrorBody is returned for rejected frames.
type ErrorBody struct {
	Error string `json:"error"`
}
