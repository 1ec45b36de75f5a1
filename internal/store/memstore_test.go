package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopbidgo/internal/auction"
)

func newTestAuction(id string) *auction.Auction {
	start := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	return &auction.Auction{
		ID:          id,
		ShopID:      "shop1",
		ProductRef:  "prod-9",
		StartTime:   start,
		EndTime:     start.Add(time.Hour),
		StartingBid: decimal.NewFromInt(10),
		CurrentBid:  decimal.NewFromInt(10),
		Status:      auction.StatusPending,
		Version:     1,
	}
}

func TestMemStore_ConditionalWriteVersionContract(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.Create(ctx, newTestAuction("a1")))

	got, err := s.Get(ctx, "a1")
	require.NoError(t, err)

	next := got.Clone()
	next.Status = auction.StatusActive
	next.Version = got.Version + 1
	require.NoError(t, s.ConditionalWrite(ctx, got.Version, next))

	// A second write against the same prior version must lose.
	stale := got.Clone()
	stale.Status = auction.StatusClosed
	stale.Version = got.Version + 1
	assert.ErrorIs(t, s.ConditionalWrite(ctx, got.Version, stale), ErrVersionConflict)

	cur, err := s.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, auction.StatusActive, cur.Status)
	assert.Equal(t, int64(2), cur.Version)
}

func TestMemStore_CreateDuplicate(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.Create(ctx, newTestAuction("a1")))
	assert.ErrorIs(t, s.Create(ctx, newTestAuction("a1")), ErrAlreadyExists)
}

func TestMemStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.Create(ctx, newTestAuction("a1")))

	got, err := s.Get(ctx, "a1")
	require.NoError(t, err)
	got.AppendBid(auction.Bid{BidderID: "u1", Amount: decimal.NewFromInt(99)})

	again, err := s.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, again.BidHistory, "mutating a snapshot must not leak into the store")
}

func TestMemStore_QueryByStatusAndTime(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	due := newTestAuction("due")
	due.StartTime = now.Add(-time.Minute)
	notYet := newTestAuction("notyet")
	notYet.StartTime = now.Add(time.Minute)
	running := newTestAuction("running")
	running.Status = auction.StatusActive
	running.EndTime = now.Add(-time.Second)
	require.NoError(t, s.Create(ctx, due))
	require.NoError(t, s.Create(ctx, notYet))
	require.NoError(t, s.Create(ctx, running))

	pending, err := s.QueryByStatusAndTime(ctx, auction.StatusPending, now)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "due", pending[0].ID)

	active, err := s.QueryByStatusAndTime(ctx, auction.StatusActive, now)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "running", active[0].ID)
}

func TestMemStore_QueryUnprocessed(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	done := newTestAuction("done")
	done.Status = auction.StatusEnded
	done.WinnerProcessed = true
	stuck := newTestAuction("stuck")
	stuck.Status = auction.StatusEnded
	require.NoError(t, s.Create(ctx, done))
	require.NoError(t, s.Create(ctx, stuck))

	got, err := s.QueryUnprocessed(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "stuck", got[0].ID)
}

func TestMemStore_DeleteGuard(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	withBids := newTestAuction("bids")
	withBids.AppendBid(auction.Bid{BidderID: "u1", Amount: decimal.NewFromInt(11)})
	require.NoError(t, s.Create(ctx, withBids))
	require.NoError(t, s.Create(ctx, newTestAuction("clean")))

	assert.ErrorIs(t, s.Delete(ctx, "bids"), ErrHasBids)
	assert.NoError(t, s.Delete(ctx, "clean"))
	assert.ErrorIs(t, s.Delete(ctx, "missing"), ErrNotFound)
}

func TestMemStore_EventJournal(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	at := time.Now().UTC()

	recs := []EventRecord{
		{AuctionID: "a1", Version: 2, Type: "bid-placed", Payload: []byte(`{}`), EmittedAt: at},
		{AuctionID: "a1", Version: 3, Type: "time-extended", Payload: []byte(`{}`), EmittedAt: at},
		{AuctionID: "a1", Version: 2, Type: "bid-placed", Payload: []byte(`{}`), EmittedAt: at}, // duplicate
	}
	require.NoError(t, s.AppendEvents(ctx, recs))

	got, err := s.EventsSince(ctx, "a1", 1, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].Version)
	assert.Equal(t, int64(3), got[1].Version)

	tail, err := s.EventsSince(ctx, "a1", 2, 0)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, "time-extended", tail[0].Type)
}
