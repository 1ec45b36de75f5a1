package auctionwatcher

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopbidgo/internal/auction"
)

type fakeEnder struct {
	calls []string
	err   error
}

func (f *fakeEnder) EndAuction(_ context.Context, auctionID string) (*auction.Auction, error) {
	f.calls = append(f.calls, auctionID)
	return nil, f.err
}

func TestTimerKey(t *testing.T) {
	assert.Equal(t, "auction_timer:au_1", TimerKey("au_1"))
}

func TestTimerArmsWithDeadlineTTL(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	tm := NewTimer(rdb)
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	tm.nowFn = func() time.Time { return now }

	mock.ExpectSet(TimerKey("au_1"), 1, 90*time.Second).SetVal("OK")
	require.NoError(t, tm.ArmEnd(context.Background(), "au_1", now.Add(90*time.Second)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTimerArmsOverdueDeadlineImmediately(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	tm := NewTimer(rdb)
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	tm.nowFn = func() time.Time { return now }

	mock.ExpectSet(TimerKey("au_1"), 1, time.Millisecond).SetVal("OK")
	require.NoError(t, tm.ArmEnd(context.Background(), "au_1", now.Add(-time.Minute)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTimerDisarm(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	tm := NewTimer(rdb)

	mock.ExpectDel(TimerKey("au_1")).SetVal(1)
	require.NoError(t, tm.Disarm(context.Background(), "au_1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleExpiryEndsMatchingAuctions(t *testing.T) {
	eng := &fakeEnder{}

	handleExpiry(context.Background(), eng, TimerKey("au_1"))
	handleExpiry(context.Background(), eng, "session:xyz")
	handleExpiry(context.Background(), eng, TimerKey("au_2"))

	assert.Equal(t, []string{"au_1", "au_2"}, eng.calls)
}

func TestHandleExpiryToleratesLostRaces(t *testing.T) {
	eng := &fakeEnder{err: auction.ErrInvalidTransition}
	handleExpiry(context.Background(), eng, TimerKey("au_1"))
	assert.Len(t, eng.calls, 1)
}
