package downstream

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"shopbidgo/internal/auction"
)

type countingNotifier struct {
	calls    atomic.Int32
	failures int32
}

func (n *countingNotifier) NotifyWinner(context.Context, string, auction.Winner) error {
	if n.calls.Add(1) <= n.failures {
		return errors.New("downstream unavailable")
	}
	return nil
}

type countingRestrictor struct {
	calls atomic.Int32
	ref   atomic.Value
}

func (r *countingRestrictor) RestrictProduct(_ context.Context, productRef, _ string) error {
	r.calls.Add(1)
	r.ref.Store(productRef)
	return nil
}

func settledAuction() *auction.Auction {
	return &auction.Auction{
		ID:         "au_1",
		ProductRef: "prod_9",
		Status:     auction.StatusEnded,
		Winner: &auction.Winner{
			BidderID: "u7",
			Amount:   decimal.RequireFromString("80"),
		},
		WinnerProcessed: true,
	}
}

func TestDispatcherRetriesUntilSuccess(t *testing.T) {
	n := &countingNotifier{failures: 2}
	d := NewDispatcher(n, nil, 5, time.Millisecond)

	d.WinnerDecided(settledAuction())
	d.Wait()

	assert.Equal(t, int32(3), n.calls.Load())
}

func TestDispatcherGivesUpAfterAttempts(t *testing.T) {
	n := &countingNotifier{failures: 100}
	d := NewDispatcher(n, nil, 3, time.Millisecond)

	d.WinnerDecided(settledAuction())
	d.Wait()

	assert.Equal(t, int32(3), n.calls.Load())
}

func TestDispatcherRestrictsProduct(t *testing.T) {
	r := &countingRestrictor{}
	d := NewDispatcher(nil, r, 3, time.Millisecond)

	d.WinnerDecided(settledAuction())
	d.Wait()

	assert.Equal(t, int32(1), r.calls.Load())
	assert.Equal(t, "prod_9", r.ref.Load())
}

func TestDispatcherIgnoresAuctionWithoutWinner(t *testing.T) {
	n := &countingNotifier{}
	d := NewDispatcher(n, nil, 3, time.Millisecond)

	a := settledAuction()
	a.Winner = nil
	d.WinnerDecided(a)
	d.Wait()

	assert.Zero(t, n.calls.Load())
}
