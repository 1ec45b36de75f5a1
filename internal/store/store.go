// Package store is the durable record of auctions and their committed
// events. The engine never mutates in place: every write is a full
// snapshot guarded by the record's version, so concurrent writers are
// serialized by optimistic concurrency regardless of how many engine
// instances run.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"shopbidgo/internal/auction"
)

var (
	ErrNotFound        = errors.New("store: auction not found")
	ErrAlreadyExists   = errors.New("store: auction already exists")
	ErrVersionConflict = errors.New("store: version conflict")
	ErrHasBids         = errors.New("store: auction has bid history")
)

// AuctionStore is the engine's only write path. ConditionalWrite persists
// the given snapshot iff the stored version still equals expected; the
// snapshot's Version must be expected+1.
type AuctionStore interface {
	Create(ctx context.Context, a *auction.Auction) error
	Get(ctx context.Context, id string) (*auction.Auction, error)
	ConditionalWrite(ctx context.Context, expected int64, a *auction.Auction) error
	// QueryByStatusAndTime returns auctions in the given status whose
	// relevant deadline has passed: StartTime for pending, EndTime for
	// active.
	QueryByStatusAndTime(ctx context.Context, st auction.Status, until time.Time) ([]*auction.Auction, error)
	// QueryUnprocessed returns ended/closed auctions whose winner
	// processing has not completed. Feeds the crash-recovery sweep.
	QueryUnprocessed(ctx context.Context) ([]*auction.Auction, error)
	ListByShop(ctx context.Context, shopID string, st auction.Status, limit, offset int) ([]*auction.Auction, error)
	// Delete removes an auction, refusing when it has bid history.
	Delete(ctx context.Context, id string) error
}

// EventRecord is a committed engine event as persisted by the journal
// worker. (auction_id, version) is unique: re-delivery is a no-op.
type EventRecord struct {
	AuctionID string          `json:"auction_id"`
	Version   int64           `json:"version"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	EmittedAt time.Time       `json:"emitted_at"`
}

// EventJournal backs the admin table's polling fallback.
type EventJournal interface {
	AppendEvents(ctx context.Context, recs []EventRecord) error
	EventsSince(ctx context.Context, auctionID string, sinceVersion int64, limit int) ([]EventRecord, error)
}
